package discover

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("%PDF-1.4"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func sourcePaths(items []Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = filepath.Base(it.SourcePath)
	}
	return out
}

func TestDiscover_DirectoryNonRecursive(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "b.pdf"))
	touch(t, filepath.Join(dir, "a.PDF"))
	touch(t, filepath.Join(dir, "notes.txt"))
	touch(t, filepath.Join(dir, "nested", "c.pdf"))

	items, err := Discover([]string{dir}, Options{}, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	got := sourcePaths(items)
	want := []string{"a.PDF", "b.pdf"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("item %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestDiscover_Recursive(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "top.pdf"))
	touch(t, filepath.Join(dir, "nested", "deep", "inner.pdf"))

	items, err := Discover([]string{dir}, Options{Recursive: true}, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2: %v", len(items), sourcePaths(items))
	}
}

func TestDiscover_DeduplicatesOverlappingInputs(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "doc.pdf")
	touch(t, p)

	items, err := Discover([]string{dir, p, p}, Options{}, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 {
		t.Errorf("got %d items, want 1: %v", len(items), sourcePaths(items))
	}
}

func TestDiscover_OrderIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"zz.pdf", "aa.pdf", "mm.pdf"} {
		touch(t, filepath.Join(dir, name))
	}

	first, err := Discover([]string{dir}, Options{}, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	second, err := Discover([]string{dir}, Options{}, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	for i := range first {
		if first[i].SourcePath != second[i].SourcePath {
			t.Fatalf("order differs between runs: %v vs %v", sourcePaths(first), sourcePaths(second))
		}
	}
	if base := filepath.Base(first[0].SourcePath); base != "aa.pdf" {
		t.Errorf("first item = %q, want aa.pdf", base)
	}
}

func TestDiscover_NoInput(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "readme.md"))

	_, err := Discover([]string{dir}, Options{}, testLogger())
	if !errors.Is(err, ErrNoInput) {
		t.Errorf("err = %v, want ErrNoInput", err)
	}
}

func TestDiscover_MissingInputIsFatal(t *testing.T) {
	_, err := Discover([]string{filepath.Join(t.TempDir(), "absent")}, Options{}, testLogger())
	if err == nil {
		t.Error("want error for nonexistent input")
	}
}

func TestDiscover_ProbeFailureStillDispatches(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "truncated.pdf")) // not a real PDF body

	items, err := Discover([]string{dir}, Options{Probe: true}, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1", len(items))
	}
	if items[0].Pages != 0 {
		t.Errorf("pages = %d, want 0 for unreadable pdf", items[0].Pages)
	}
}
