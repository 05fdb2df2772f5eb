package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseLevelRoundTrip(t *testing.T) {
	level, err := ParseLevel("debug")
	if err != nil {
		t.Fatalf("ParseLevel: %v", err)
	}
	if level != Debug {
		t.Fatalf("ParseLevel(debug) = %v, want Debug", level)
	}
	if level.String() != "DEBUG" {
		t.Fatalf("String() = %q, want DEBUG", level.String())
	}
}

func TestParseLevelRejectsUnknown(t *testing.T) {
	if _, err := ParseLevel("verbose"); err == nil {
		t.Fatal("ParseLevel(verbose) returned nil error")
	}
}

func TestLogfFiltersBelowThreshold(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, Warn)

	l.Debugf("should not appear")
	if buf.Len() != 0 {
		t.Fatalf("buffer not empty after filtered Debugf: %q", buf.String())
	}

	l.Warnf("disk usage at %d%%", 90)
	if !strings.Contains(buf.String(), "[WARN]") || !strings.Contains(buf.String(), "disk usage at 90%") {
		t.Fatalf("unexpected log output: %q", buf.String())
	}
}

func TestSetLevelChangesThreshold(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, Error)

	l.Infof("hidden")
	if buf.Len() != 0 {
		t.Fatalf("Infof wrote output below threshold: %q", buf.String())
	}

	l.SetLevel(Info)
	l.Infof("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Fatalf("Infof did not write after raising threshold: %q", buf.String())
	}
}

type nopCloser struct {
	bytes.Buffer
	closed bool
}

func (c *nopCloser) Close() error {
	c.closed = true
	return nil
}

func TestCloseClosesUnderlyingWriter(t *testing.T) {
	c := &nopCloser{}
	l := New(c, Info)
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !c.closed {
		t.Fatal("underlying writer was not closed")
	}
}
