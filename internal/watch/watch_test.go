package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/WaylonWalker/lsp-core/internal/protocol"
)

func TestWatcherReportsFileWrite(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "main.f90")
	if err := os.WriteFile(file, []byte("program x\nend program\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	w, err := New(dir, []string{"**/*.f90"}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(file, []byte("program x\nend program\n\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	select {
	case events := <-w.Events():
		if len(events) != 1 {
			t.Fatalf("len(events) = %d, want 1", len(events))
		}
		if events[0].Type != protocol.FileChangeTypeChanged {
			t.Fatalf("Type = %d, want Changed", events[0].Type)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for file write event")
	}
}

func TestWatcherFiltersByPattern(t *testing.T) {
	dir := t.TempDir()
	ignored := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(ignored, []byte("hello"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	w, err := New(dir, []string{"**/*.f90"}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(ignored, []byte("hello again"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	select {
	case events := <-w.Events():
		t.Fatalf("unexpected events for filtered path: %+v", events)
	case <-time.After(500 * time.Millisecond):
		// No event within the window is the expected outcome.
	}
}
