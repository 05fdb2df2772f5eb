package validator

import (
	"context"
	"strings"
	"testing"

	"github.com/WaylonWalker/lsp-core/internal/protocol"
)

func TestToLSPMapping(t *testing.T) {
	cases := map[Severity]int{
		SeverityError:       protocol.DiagnosticSeverityError,
		SeverityWarning:     protocol.DiagnosticSeverityWarning,
		SeverityInformation: protocol.DiagnosticSeverityInformation,
		SeverityHint:        protocol.DiagnosticSeverityHint,
	}
	for sev, want := range cases {
		if got := ToLSP(sev); got != want {
			t.Errorf("ToLSP(%v) = %d, want %d", sev, got, want)
		}
	}
}

func TestLineLengthValidatorFlagsLongLines(t *testing.T) {
	v := NewLineLengthValidator(10)
	text := "short\n" + strings.Repeat("x", 20)
	issues, err := v.Validate(context.Background(), "/tmp/a.txt", text, nil)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(issues) != 1 {
		t.Fatalf("len(issues) = %d, want 1", len(issues))
	}
	if issues[0].FirstLine != 2 {
		t.Fatalf("FirstLine = %d, want 2", issues[0].FirstLine)
	}
}

func TestLineLengthValidatorDefaultsLimit(t *testing.T) {
	v := NewLineLengthValidator(0)
	if v.MaxLineLength != 120 {
		t.Fatalf("MaxLineLength = %d, want 120", v.MaxLineLength)
	}
}

func TestLineLengthValidatorNoIssuesWithinLimit(t *testing.T) {
	v := NewLineLengthValidator(120)
	issues, err := v.Validate(context.Background(), "/tmp/a.txt", "fine\nalso fine", nil)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(issues) != 0 {
		t.Fatalf("len(issues) = %d, want 0", len(issues))
	}
}
