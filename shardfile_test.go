package primeshard

import (
	"errors"
	"path/filepath"
	"testing"

	internalfs "primeshard/internal/fs"
)

func TestShardFile_WriteReadReturnsSortedDeduplicated(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	fsys := internalfs.NewReal()
	path := filepath.Join(dir, "prime_shard_1_of_1.npz")

	sf := NewShardFile(fsys, path, NewZstdCodec())

	chunks := map[string][]Item{
		"11_19": {19, 17, 13, 11}, // deliberately out of order
		"2_7":   {7, 3, 2, 5, 5},  // and with a duplicate
	}

	if err := sf.Write(chunks, false); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := sf.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	want := []Item{2, 3, 5, 7, 11, 13, 17, 19}

	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}

	for i, v := range want {
		if got[i] != v {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestShardFile_WriteRefusesExistingWithoutOverwrite(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	fsys := internalfs.NewReal()
	path := filepath.Join(dir, "prime_shard_1_of_1.npz")

	sf := NewShardFile(fsys, path, NewZstdCodec())
	chunks := map[string][]Item{"2_3": {2, 3}}

	if err := sf.Write(chunks, false); err != nil {
		t.Fatalf("first Write: %v", err)
	}

	if err := sf.Write(chunks, false); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	if err := sf.Write(map[string][]Item{"5_5": {5}}, true); err != nil {
		t.Fatalf("overwrite Write: %v", err)
	}

	got, err := sf.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	if len(got) != 1 || got[0] != 5 {
		t.Errorf("expected overwrite to fully replace contents, got %v", got)
	}
}

func TestShardFile_WriteRejectsEmptyOrBlankInputs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	fsys := internalfs.NewReal()
	sf := NewShardFile(fsys, filepath.Join(dir, "s.npz"), NewZstdCodec())

	cases := map[string]map[string][]Item{
		"nil map":     nil,
		"empty map":   {},
		"empty chunk": {"2_3": {}},
		"empty name":  {"": {2, 3}},
	}

	for name, chunks := range cases {
		if err := sf.Write(chunks, false); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("%s: expected ErrInvalidArgument, got %v", name, err)
		}
	}
}

func TestShardFile_ReadMissingFileFails(t *testing.T) {
	t.Parallel()

	fsys := internalfs.NewReal()
	sf := NewShardFile(fsys, filepath.Join(t.TempDir(), "absent.npz"), NewZstdCodec())

	if _, err := sf.Read(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestShardFile_DeleteIsIdempotent(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	fsys := internalfs.NewReal()
	path := filepath.Join(dir, "s.npz")

	sf := NewShardFile(fsys, path, NewZstdCodec())

	if err := sf.Write(map[string][]Item{"2_3": {2, 3}}, false); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if err := sf.Delete(); err != nil {
		t.Fatalf("first Delete: %v", err)
	}

	if err := sf.Delete(); err != nil {
		t.Fatalf("second Delete (should be a no-op): %v", err)
	}
}
