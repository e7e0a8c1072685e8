package fs_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	internalfs "primeshard/internal/fs"
)

func TestFault_FailsOnlyTheConfiguredCall(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	real := internalfs.NewReal()
	faulty := internalfs.NewFault(real, internalfs.FaultWriteFileAtomic, 1)

	path := func(name string) string { return filepath.Join(dir, name) }

	if err := faulty.WriteFileAtomic(path("a"), []byte("a"), 0o644); err != nil {
		t.Fatalf("call 0 (not the target): %v", err)
	}

	err := faulty.WriteFileAtomic(path("b"), []byte("b"), 0o644)
	if !errors.Is(err, internalfs.ErrInjected) {
		t.Fatalf("call 1 (the target): expected ErrInjected, got %v", err)
	}

	if err := faulty.WriteFileAtomic(path("c"), []byte("c"), 0o644); err != nil {
		t.Fatalf("call 2 (after the target): %v", err)
	}

	if exists, _ := real.Exists(path("b")); exists {
		t.Error("call 1's file should not exist: the injected fault happens before the real write")
	}
}

func TestFault_UnrelatedOpPassesThrough(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	real := internalfs.NewReal()
	faulty := internalfs.NewFault(real, internalfs.FaultOpenFile, 0)

	path := filepath.Join(dir, "unaffected")

	if err := faulty.WriteFileAtomic(path, []byte("ok"), 0o644); err != nil {
		t.Fatalf("WriteFileAtomic should pass through untouched: %v", err)
	}
}

func TestFault_OpenFileInjection(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	real := internalfs.NewReal()
	faulty := internalfs.NewFault(real, internalfs.FaultOpenFile, 0)

	_, err := faulty.OpenFile(filepath.Join(dir, "x"), os.O_CREATE|os.O_WRONLY, 0o644)
	if !errors.Is(err, internalfs.ErrInjected) {
		t.Fatalf("expected ErrInjected, got %v", err)
	}
}
