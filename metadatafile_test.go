package primeshard

import (
	"errors"
	"path/filepath"
	"testing"

	internalfs "primeshard/internal/fs"
)

func TestMetadataFile_WriteThenReadRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	fsys := internalfs.NewReal()
	path := filepath.Join(dir, "metadata.json")

	m := NewMetadataFile(fsys, path, nil)

	if err := m.Write(MetadataDocument{"total_primes": 3}, false); err != nil {
		t.Fatalf("Write: %v", err)
	}

	doc, err := m.Read(false)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	count, ok := asInt(doc["total_primes"])
	if !ok || count != 3 {
		t.Errorf("expected total_primes=3, got %#v", doc["total_primes"])
	}
}

func TestMetadataFile_WriteMergesShallowByDefault(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	fsys := internalfs.NewReal()
	path := filepath.Join(dir, "metadata.json")

	m := NewMetadataFile(fsys, path, nil)

	if err := m.Write(MetadataDocument{"a": 1, "b": 1}, false); err != nil {
		t.Fatalf("first Write: %v", err)
	}

	if err := m.Write(MetadataDocument{"b": 2, "c": 3}, false); err != nil {
		t.Fatalf("second Write: %v", err)
	}

	doc, err := m.Read(false)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	a, _ := asInt(doc["a"])
	b, _ := asInt(doc["b"])
	c, _ := asInt(doc["c"])

	if a != 1 || b != 2 || c != 3 {
		t.Errorf("expected merged {a:1 b:2 c:3}, got a=%v b=%v c=%v", a, b, c)
	}
}

func TestMetadataFile_WriteOverwriteReplacesWholeDocument(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	fsys := internalfs.NewReal()
	path := filepath.Join(dir, "metadata.json")

	m := NewMetadataFile(fsys, path, nil)

	if err := m.Write(MetadataDocument{"a": 1}, false); err != nil {
		t.Fatalf("first Write: %v", err)
	}

	if err := m.Write(MetadataDocument{"b": 2}, true); err != nil {
		t.Fatalf("overwrite Write: %v", err)
	}

	doc, err := m.Read(false)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	if _, present := doc["a"]; present {
		t.Error("expected key 'a' to be gone after overwrite write")
	}

	if b, ok := asInt(doc["b"]); !ok || b != 2 {
		t.Errorf("expected b=2, got %#v", doc["b"])
	}
}

func TestMetadataFile_ReadLockedWithoutIgnoreFails(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	fsys := internalfs.NewReal()
	path := filepath.Join(dir, "metadata.json")

	m := NewMetadataFile(fsys, path, nil)

	if err := m.lock.Acquire(); err != nil {
		t.Fatalf("seeding lock: %v", err)
	}

	if _, err := m.Read(false); !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}

	if _, err := m.Read(true); err != nil {
		t.Fatalf("expected ignoreLock Read to succeed, got %v", err)
	}
}

func TestMetadataFile_ReadSwallowsHashMismatchIntoEmptyDocument(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	fsys := internalfs.NewReal()
	path := filepath.Join(dir, "metadata.json")

	m := NewMetadataFile(fsys, path, nil)
	if err := m.Write(MetadataDocument{"a": 1}, false); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if err := fsys.WriteFileAtomic(m.hash.SiblingPath(), []byte("0000"), 0o644); err != nil {
		t.Fatalf("tampering hash sibling: %v", err)
	}

	doc, err := m.Read(false)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	if len(doc) != 0 {
		t.Errorf("expected empty document on hash mismatch, got %#v", doc)
	}

	if _, err := m.ReadStrict(false); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ReadStrict to surface ErrCorrupt, got %v", err)
	}
}

func TestMetadataFile_ReadMissingFileIsEmptyNotError(t *testing.T) {
	t.Parallel()

	fsys := internalfs.NewReal()
	m := NewMetadataFile(fsys, filepath.Join(t.TempDir(), "metadata.json"), nil)

	doc, err := m.Read(false)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	if len(doc) != 0 {
		t.Errorf("expected empty document, got %#v", doc)
	}
}
