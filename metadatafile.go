package primeshard

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	internalfs "primeshard/internal/fs"
)

// MetadataFile is the JSON document at a path, coupled to a LockFile and a
// HashFile on the same path (spec.md §4.3).
type MetadataFile struct {
	path   ManagedPath
	fsys   internalfs.FS
	lock   *LockFile
	hash   *HashFile
	logger *zap.Logger
}

// NewMetadataFile attaches a MetadataFile to path.
func NewMetadataFile(fsys internalfs.FS, path string, logger *zap.Logger) *MetadataFile {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &MetadataFile{
		path:   NewManagedPath(path),
		fsys:   fsys,
		lock:   NewLockFile(fsys, path, logger),
		hash:   NewHashFile(fsys, path, logger),
		logger: logger,
	}
}

// Path returns the metadata file's own path.
func (m *MetadataFile) Path() string {
	return m.path.String()
}

// Read loads the document. If the file is locked and ignoreLock is false,
// it returns ErrLocked. Otherwise it verifies the hash; on mismatch it logs
// the discrepancy and returns an empty document (spec.md §4.3) rather than
// an error — callers needing strict behavior use ReadStrict. Malformed JSON
// or a missing file also return an empty document.
func (m *MetadataFile) Read(ignoreLock bool) (MetadataDocument, error) {
	doc, _, err := m.read(ignoreLock, false)

	return doc, err
}

// ReadStrict behaves like Read, except a hash mismatch, malformed JSON, or a
// missing file becomes ErrCorrupt instead of being swallowed into an empty
// document.
func (m *MetadataFile) ReadStrict(ignoreLock bool) (MetadataDocument, error) {
	doc, corrupt, err := m.read(ignoreLock, true)
	if err != nil {
		return nil, err
	}

	if corrupt {
		return nil, fmt.Errorf("%w: %s", ErrCorrupt, m.path)
	}

	return doc, nil
}

// read returns (document, wasCorruptOrMissing, error). The third return is
// non-nil for ErrLocked and for filesystem errors other than a missing file;
// a hash mismatch, malformed JSON, or a missing file is reported through the
// flag instead (set for a missing file only when checkCorrupt is true), so
// Read can swallow it and ReadStrict can surface it.
func (m *MetadataFile) read(ignoreLock, checkCorrupt bool) (MetadataDocument, bool, error) {
	if !ignoreLock {
		locked, err := m.lock.IsLocked()
		if err != nil {
			return nil, false, err
		}

		if locked {
			return nil, false, fmt.Errorf("%w: %s", ErrLocked, m.path)
		}
	}

	exists, err := m.fsys.Exists(m.path.String())
	if err != nil {
		return nil, false, fmt.Errorf("checking %s: %w", m.path, err)
	}

	if !exists {
		return MetadataDocument{}, checkCorrupt, nil
	}

	m.hash.computed = nil // the file may have changed since the last compute

	if !m.hash.Verify() {
		m.logger.Warn("metadatafile: hash verification failed, treating as empty", zap.String("path", m.path.String()))

		return MetadataDocument{}, true, nil
	}

	data, err := m.fsys.ReadFile(m.path.String())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return MetadataDocument{}, checkCorrupt, nil
		}

		return nil, false, fmt.Errorf("reading %s: %w", m.path, err)
	}

	var doc MetadataDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		m.logger.Warn("metadatafile: malformed JSON, treating as empty", zap.String("path", m.path.String()), zap.Error(err))

		return MetadataDocument{}, true, nil
	}

	return doc, false, nil
}

// Write acquires the lock, merges newData into the current document (unless
// overwrite is true, in which case newData becomes the whole document),
// serializes with sorted keys and 4-space indentation, writes the bytes,
// refreshes the hashfile, and releases the lock on every exit path.
//
// The merge is shallow: new keys replace old ones wholesale, nested objects
// are not deep-merged (spec.md §4.3) — this is what lets one shard's record
// be atomically replaced by writing under its path key without disturbing
// any other shard's record.
func (m *MetadataFile) Write(newData MetadataDocument, overwrite bool) error {
	if err := m.lock.Acquire(); err != nil {
		return err
	}

	defer func() {
		if err := m.lock.Release(false); err != nil {
			m.logger.Warn("metadatafile: failed to release lock", zap.String("path", m.path.String()), zap.Error(err))
		}
	}()

	document := newData

	if !overwrite {
		current, err := m.Read(true)
		if err != nil {
			return err
		}

		merged := make(MetadataDocument, len(current)+len(newData))

		for k, v := range current {
			merged[k] = v
		}

		for k, v := range newData {
			merged[k] = v
		}

		document = merged
	}

	data, err := json.MarshalIndent(document, "", "    ")
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", m.path, err)
	}

	if err := m.fsys.WriteFileAtomic(m.path.String(), data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", m.path, err)
	}

	m.hash.computed = nil // target bytes changed; drop the stale cache

	digest, err := m.hash.Compute()
	if err != nil {
		return fmt.Errorf("hashing %s: %w", m.path, err)
	}

	if err := m.hash.Write(digest, true); err != nil {
		return fmt.Errorf("writing hash for %s: %w", m.path, err)
	}

	return nil
}
