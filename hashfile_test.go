package primeshard

import (
	"errors"
	"path/filepath"
	"testing"

	internalfs "primeshard/internal/fs"
)

func TestHashFile_ComputeIsCachedAcrossCalls(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	target := filepath.Join(dir, "data.bin")
	fsys := internalfs.NewReal()

	if err := fsys.WriteFileAtomic(target, []byte("hello world"), 0o644); err != nil {
		t.Fatalf("seeding target: %v", err)
	}

	h := NewHashFile(fsys, target, nil)

	first, err := h.Compute()
	if err != nil {
		t.Fatalf("first Compute: %v", err)
	}

	// Mutate the target after the first Compute; a cached second call must
	// not notice, since Compute caches for the instance's lifetime.
	if err := fsys.WriteFileAtomic(target, []byte("mutated"), 0o644); err != nil {
		t.Fatalf("mutating target: %v", err)
	}

	second, err := h.Compute()
	if err != nil {
		t.Fatalf("second Compute: %v", err)
	}

	if first != second {
		t.Errorf("expected cached digest, got %q then %q", first, second)
	}
}

func TestHashFile_ComputeMissingTarget(t *testing.T) {
	t.Parallel()

	fsys := internalfs.NewReal()
	h := NewHashFile(fsys, filepath.Join(t.TempDir(), "absent.bin"), nil)

	if _, err := h.Compute(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestHashFile_WriteRefusesExistingWithoutOverwrite(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	target := filepath.Join(dir, "data.bin")
	fsys := internalfs.NewReal()

	if err := fsys.WriteFileAtomic(target, []byte("x"), 0o644); err != nil {
		t.Fatalf("seeding target: %v", err)
	}

	h := NewHashFile(fsys, target, nil)

	if err := h.Write("deadbeef", false); err != nil {
		t.Fatalf("first Write: %v", err)
	}

	if err := h.Write("cafebabe", false); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	if err := h.Write("cafebabe", true); err != nil {
		t.Fatalf("overwrite Write: %v", err)
	}

	digest, err := h.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	if digest != "cafebabe" {
		t.Errorf("expected overwritten digest, got %q", digest)
	}
}

func TestHashFile_VerifyRoundTripAndMismatch(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	target := filepath.Join(dir, "data.bin")
	fsys := internalfs.NewReal()

	if err := fsys.WriteFileAtomic(target, []byte("payload"), 0o644); err != nil {
		t.Fatalf("seeding target: %v", err)
	}

	h := NewHashFile(fsys, target, nil)

	digest, err := h.Compute()
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	if err := h.Write(digest, false); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if !h.Verify() {
		t.Error("expected Verify to succeed right after Write")
	}

	// A fresh instance (no cached digest) against a tampered sibling should
	// fail to verify instead of erroring.
	if err := fsys.WriteFileAtomic(h.SiblingPath(), []byte("0000"), 0o644); err != nil {
		t.Fatalf("tampering sibling: %v", err)
	}

	fresh := NewHashFile(fsys, target, nil)
	if fresh.Verify() {
		t.Error("expected Verify to fail against a tampered sibling")
	}
}

func TestHashFile_VerifyFalseWhenSiblingMissing(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	target := filepath.Join(dir, "data.bin")
	fsys := internalfs.NewReal()

	if err := fsys.WriteFileAtomic(target, []byte("payload"), 0o644); err != nil {
		t.Fatalf("seeding target: %v", err)
	}

	h := NewHashFile(fsys, target, nil)
	if h.Verify() {
		t.Error("expected Verify to fail with no sibling written yet")
	}
}
