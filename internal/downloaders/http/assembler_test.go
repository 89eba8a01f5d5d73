package fgethttp

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFileAssemblerLifecycle(t *testing.T) {
	dir := t.TempDir()
	finalPath := filepath.Join(dir, "out.bin")
	asm := NewFileAssembler(finalPath)

	if asm.TempPath != filepath.Join(dir, ".out.bin.fget.tmp") {
		t.Fatalf("TempPath = %q", asm.TempPath)
	}
	if err := asm.Preallocate(10); err != nil {
		t.Fatalf("Preallocate: %v", err)
	}
	info, err := os.Stat(asm.TempPath)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Size() != 10 {
		t.Errorf("preallocated size = %d, want 10", info.Size())
	}

	// Write the tail first to mirror the scheduler's dispatch order.
	for _, part := range []struct {
		offset int64
		data   string
	}{{5, "56789"}, {0, "01234"}} {
		f, err := asm.OpenAt(part.offset)
		if err != nil {
			t.Fatalf("OpenAt(%d): %v", part.offset, err)
		}
		if _, err := f.WriteString(part.data); err != nil {
			t.Fatalf("write: %v", err)
		}
		f.Close()
	}

	if err := os.WriteFile(finalPath, []byte("stale"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := asm.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if got := string(readFile(t, finalPath)); got != "0123456789" {
		t.Errorf("final content = %q", got)
	}
	if _, err := os.Stat(asm.TempPath); !os.IsNotExist(err) {
		t.Error("temp file still present after commit")
	}
}

func TestFileAssemblerPurge(t *testing.T) {
	dir := t.TempDir()
	asm := NewFileAssembler(filepath.Join(dir, "out.bin"))
	if err := asm.Preallocate(100); err != nil {
		t.Fatalf("Preallocate: %v", err)
	}
	if err := asm.Purge(); err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if err := asm.Purge(); err != nil {
		t.Errorf("second Purge: %v", err)
	}
	if entries := dirEntries(t, dir); len(entries) != 0 {
		t.Errorf("directory not empty after purge: %v", entries)
	}
}

func TestFileAssemblerMissingDir(t *testing.T) {
	asm := NewFileAssembler(filepath.Join(t.TempDir(), "nope", "out.bin"))
	err := asm.Preallocate(1)
	var fsErr *FilesystemError
	if !errors.As(err, &fsErr) {
		t.Fatalf("expected FilesystemError, got %v", err)
	}
	if fsErr.Op != "create" {
		t.Errorf("Op = %q, want create", fsErr.Op)
	}
}
