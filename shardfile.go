package primeshard

import (
	"errors"
	"fmt"
	"os"
	"sort"

	internalfs "primeshard/internal/fs"
)

// ShardFile reads and writes one shard: a mapping from chunk name to an
// ordered Item array, stored via an external archive Codec (spec.md §4.4).
type ShardFile struct {
	path  ManagedPath
	fsys  internalfs.FS
	codec Codec
}

// NewShardFile attaches a ShardFile to path, using codec for serialization.
func NewShardFile(fsys internalfs.FS, path string, codec Codec) *ShardFile {
	return &ShardFile{path: NewManagedPath(path), fsys: fsys, codec: codec}
}

// Path returns the shard's own path.
func (s *ShardFile) Path() string {
	return s.path.String()
}

// Write validates chunkDict and serializes it through the codec. It refuses
// to write over an existing file unless overwrite is true, in which case
// the existing file is deleted first (spec.md §4.4).
func (s *ShardFile) Write(chunkDict map[string][]Item, overwrite bool) error {
	if err := validateChunkDict(chunkDict); err != nil {
		return err
	}

	exists, err := s.fsys.Exists(s.path.String())
	if err != nil {
		return fmt.Errorf("checking %s: %w", s.path, err)
	}

	if exists {
		if !overwrite {
			return fmt.Errorf("%w: %s", ErrAlreadyExists, s.path)
		}

		if err := s.Delete(); err != nil {
			return err
		}
	}

	if err := s.codec.Write(s.fsys, s.path.String(), chunkDict); err != nil {
		return fmt.Errorf("writing shard %s: %w", s.path, err)
	}

	return nil
}

// Read opens the archive, concatenates every chunk's array (insertion order
// is not assumed meaningful), and returns a sorted, deduplicated array. This
// is the canonical shard-read contract (spec.md §4.4): callers always see a
// sorted unique view, regardless of on-disk chunk ordering.
func (s *ShardFile) Read() ([]Item, error) {
	exists, err := s.fsys.Exists(s.path.String())
	if err != nil {
		return nil, fmt.Errorf("checking %s: %w", s.path, err)
	}

	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, s.path)
	}

	chunks, err := s.codec.Open(s.fsys, s.path.String())
	if err != nil {
		return nil, fmt.Errorf("reading shard %s: %w", s.path, err)
	}

	var total int
	for _, c := range chunks {
		total += len(c)
	}

	all := make([]Item, 0, total)
	for _, c := range chunks {
		all = append(all, c...)
	}

	return sortDedupe(all), nil
}

// Delete idempotently unlinks the shard file.
func (s *ShardFile) Delete() error {
	if err := s.fsys.Remove(s.path.String()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("deleting shard %s: %w", s.path, err)
	}

	return nil
}

// validateChunkDict enforces spec.md §4.4's write-time invariants: the
// mapping must be non-empty, and every chunk array and chunk name must be
// non-empty. Monotonic ordering within a chunk is enforced by ShardManager
// before a ShardFile ever sees the data; ShardFile only re-checks
// non-emptiness, per spec.md.
func validateChunkDict(chunkDict map[string][]Item) error {
	if len(chunkDict) == 0 {
		return fmt.Errorf("%w: chunk dictionary is empty", ErrInvalidArgument)
	}

	for name, items := range chunkDict {
		if name == "" {
			return fmt.Errorf("%w: chunk name is empty", ErrInvalidArgument)
		}

		if len(items) == 0 {
			return fmt.Errorf("%w: chunk %q is empty", ErrInvalidArgument, name)
		}
	}

	return nil
}

// sortDedupe sorts a ascending in place and compacts out duplicates,
// returning the deduplicated prefix backed by a's array. Callers pass a
// slice they own (Read allocates it fresh from the codec's output).
func sortDedupe(a []Item) []Item {
	sort.Slice(a, func(i, j int) bool { return a[i] < a[j] })

	if len(a) == 0 {
		return a
	}

	out := a[:1]

	for _, v := range a[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}

	return out
}
