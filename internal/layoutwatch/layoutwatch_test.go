package layoutwatch

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func layoutDoc(name string, keyWidth int) string {
	return fmt.Sprintf(`{
  "version": 1,
  "name": %q,
  "width": 200,
  "height": 100,
  "grid": {"columns": 2, "rows": 1},
  "keys": [
    {"char": "a", "x": 0, "y": 0, "width": %d, "height": 100},
    {"char": "b", "x": 100, "y": 0, "width": %d, "height": 100}
  ]
}`, name, keyWidth, keyWidth)
}

func TestStartReturnsInitialLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layout.json")
	if err := os.WriteFile(path, []byte(layoutDoc("initial", 100)), 0o644); err != nil {
		t.Fatalf("write layout: %v", err)
	}

	w, err := New(path, 50*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	kb, err := w.Start()
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	if kb.Name() != "initial" {
		t.Errorf("initial layout name = %q, want %q", kb.Name(), "initial")
	}
	if w.Path() != path {
		t.Errorf("Path() = %q, want %q", w.Path(), path)
	}
}

func TestStartRejectsBrokenLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layout.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write layout: %v", err)
	}

	w, err := New(path, 50*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := w.Start(); err == nil {
		t.Error("expected parse error from Start")
	}
}

func TestReloadOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layout.json")
	if err := os.WriteFile(path, []byte(layoutDoc("v1", 100)), 0o644); err != nil {
		t.Fatalf("write layout: %v", err)
	}

	w, err := New(path, 50*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(path, []byte(layoutDoc("v2", 100)), 0o644); err != nil {
		t.Fatalf("rewrite layout: %v", err)
	}

	select {
	case kb := <-w.Events():
		if kb.Name() != "v2" {
			t.Errorf("reloaded layout name = %q, want %q", kb.Name(), "v2")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload event")
	}
}

func TestBrokenRewriteReportsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layout.json")
	if err := os.WriteFile(path, []byte(layoutDoc("v1", 100)), 0o644); err != nil {
		t.Fatalf("write layout: %v", err)
	}

	w, err := New(path, 50*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(path, []byte(`{"version": 2}`), 0o644); err != nil {
		t.Fatalf("rewrite layout: %v", err)
	}

	select {
	case err := <-w.Errors():
		if err == nil {
			t.Fatal("expected non-nil parse error")
		}
	case kb := <-w.Events():
		t.Fatalf("unexpected reload of broken layout %q", kb.Name())
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for error event")
	}
}

func TestIgnoresSiblingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "layout.json")
	if err := os.WriteFile(path, []byte(layoutDoc("v1", 100)), 0o644); err != nil {
		t.Fatalf("write layout: %v", err)
	}

	w, err := New(path, 50*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(dir, "other.json"), []byte("{}"), 0o644); err != nil {
		t.Fatalf("write sibling: %v", err)
	}

	select {
	case kb := <-w.Events():
		t.Fatalf("unexpected reload %q from sibling write", kb.Name())
	case <-time.After(300 * time.Millisecond):
	}
}
