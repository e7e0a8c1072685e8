package primeshard

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	internalfs "primeshard/internal/fs"
)

func TestZstdCodec_WriteOpenRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	fsys := internalfs.NewReal()
	path := filepath.Join(dir, "shard.npz")

	codec := NewZstdCodec()

	chunks := map[string][]Item{
		"2_7":   {2, 3, 5, 7},
		"11_19": {11, 13, 17, 19},
	}

	if err := codec.Write(fsys, path, chunks); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := codec.Open(fsys, path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if diff := cmp.Diff(chunks, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestZstdCodec_WriteIsDeterministic(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	fsys := internalfs.NewReal()

	chunks := map[string][]Item{
		"20_29": {23, 29},
		"2_19":  {2, 3, 5, 7, 11, 13, 17, 19},
	}

	pathA := filepath.Join(dir, "a.npz")
	pathB := filepath.Join(dir, "b.npz")

	if err := NewZstdCodec().Write(fsys, pathA, chunks); err != nil {
		t.Fatalf("first Write: %v", err)
	}

	if err := NewZstdCodec().Write(fsys, pathB, chunks); err != nil {
		t.Fatalf("second Write: %v", err)
	}

	dataA, err := fsys.ReadFile(pathA)
	if err != nil {
		t.Fatalf("ReadFile a: %v", err)
	}

	dataB, err := fsys.ReadFile(pathB)
	if err != nil {
		t.Fatalf("ReadFile b: %v", err)
	}

	if string(dataA) != string(dataB) {
		t.Error("expected identical archive bytes for identical input")
	}
}

func TestZstdCodec_OpenRejectsBadMagic(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	fsys := internalfs.NewReal()
	path := filepath.Join(dir, "bogus.npz")

	if err := fsys.WriteFileAtomic(path, []byte("not-an-archive-at-all"), 0o644); err != nil {
		t.Fatalf("seeding bogus file: %v", err)
	}

	if _, err := NewZstdCodec().Open(fsys, path); !errors.Is(err, ErrArchiveInvalid) {
		t.Fatalf("expected ErrArchiveInvalid, got %v", err)
	}
}

func TestZstdCodec_OpenEmptyChunkMap(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	fsys := internalfs.NewReal()
	path := filepath.Join(dir, "empty.npz")

	if err := NewZstdCodec().Write(fsys, path, map[string][]Item{}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := NewZstdCodec().Open(fsys, path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if len(got) != 0 {
		t.Errorf("expected no entries, got %d", len(got))
	}
}
