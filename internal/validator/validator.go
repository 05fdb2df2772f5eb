// Package validator defines the external collaborator contract spec.md
// §6 calls out as out of scope for the core itself (the language-specific
// diagnostics producer), plus a small built-in implementation exercising
// that contract end to end.
//
// Severity naming follows
// _examples/WaylonWalker-markata-go/pkg/lint/lint.go's Severity enum and
// convertSeverity idiom, generalized from lint issues to LSP diagnostics.
package validator

import (
	"context"
	"strings"

	"github.com/WaylonWalker/lsp-core/internal/protocol"
)

// Severity is a validator-reported severity, using the validator
// contract's own small scale rather than LSP's DiagnosticSeverity; ToLSP
// converts between the two at the publishing boundary.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityInformation
	SeverityHint
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityInformation:
		return "information"
	case SeverityHint:
		return "hint"
	default:
		return "warning"
	}
}

// ToLSP converts a validator Severity into an LSP DiagnosticSeverity,
// defaulting unrecognized values to Warning rather than failing the
// conversion.
func ToLSP(s Severity) int {
	switch s {
	case SeverityError:
		return protocol.DiagnosticSeverityError
	case SeverityWarning:
		return protocol.DiagnosticSeverityWarning
	case SeverityInformation:
		return protocol.DiagnosticSeverityInformation
	case SeverityHint:
		return protocol.DiagnosticSeverityHint
	default:
		return protocol.DiagnosticSeverityWarning
	}
}

// Issue is one problem reported by a Validator, using 1-based positions
// per spec.md §6; publishDiagnostics (internal/server) subtracts 1 before emitting
// an LSP protocol.Diagnostic.
type Issue struct {
	FirstLine   int
	FirstColumn int
	LastLine    int
	LastColumn  int
	Severity    Severity
	Message     string
	Source      string
}

// Options carries validator configuration resolved from internal/config,
// opaque to the core beyond being passed through.
type Options map[string]any

// Validator is the external collaborator contract: given a document's
// path and full text, produce diagnostics. Implementations are expected
// to be safe for concurrent use, since BaseLspLanguageServer schedules
// validation on its worker pool and multiple documents may validate
// concurrently.
type Validator interface {
	Validate(ctx context.Context, path, text string, options Options) ([]Issue, error)
}

// LineLengthValidator is a minimal built-in Validator flagging lines
// longer than MaxLineLength, exercised by internal/server's diagnostics
// publishing path and its tests when no language-specific validator is
// configured.
type LineLengthValidator struct {
	MaxLineLength int
}

// NewLineLengthValidator constructs a LineLengthValidator with the given
// limit (defaulting to 120 when non-positive).
func NewLineLengthValidator(maxLineLength int) *LineLengthValidator {
	if maxLineLength <= 0 {
		maxLineLength = 120
	}
	return &LineLengthValidator{MaxLineLength: maxLineLength}
}

// Validate implements Validator.
func (v *LineLengthValidator) Validate(_ context.Context, _ string, text string, _ Options) ([]Issue, error) {
	var issues []Issue
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		length := len([]rune(line))
		if length > v.MaxLineLength {
			issues = append(issues, Issue{
				FirstLine:   i + 1,
				FirstColumn: v.MaxLineLength + 1,
				LastLine:    i + 1,
				LastColumn:  length + 1,
				Severity:    SeverityWarning,
				Message:     "line exceeds maximum length",
				Source:      "lsp-core",
			})
		}
	}
	return issues, nil
}
