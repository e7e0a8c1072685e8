package primeshard

import (
	"path/filepath"
	"strings"
)

// ManagedPath is a uniform wrapper over a filesystem path, giving every
// sibling-file type (HashFile, LockFile) a consistent way to derive a
// companion path, display itself, and compare against another path.
type ManagedPath struct {
	path string
}

// NewManagedPath wraps path.
func NewManagedPath(path string) ManagedPath {
	return ManagedPath{path: path}
}

// String returns the path as given to NewManagedPath.
func (m ManagedPath) String() string {
	return m.path
}

// Sibling returns the path in the same directory, same base name, with
// suffix appended literally (e.g. "metadata.json" + ".lock" ->
// "metadata.json.lock"). Used for the hashfile sibling.
func (m ManagedPath) Sibling(suffix string) ManagedPath {
	return ManagedPath{path: m.path + suffix}
}

// WithExt returns the path with its extension replaced by ext (ext includes
// the leading dot, e.g. ".lock"). Used for the lockfile sibling, which
// replaces rather than appends (spec.md §4.2: "sibling P with extension
// replaced by .lock").
func (m ManagedPath) WithExt(ext string) ManagedPath {
	trimmed := strings.TrimSuffix(m.path, filepath.Ext(m.path))

	return ManagedPath{path: trimmed + ext}
}

// Equal reports whether two ManagedPaths refer to the same literal path
// string. It does not resolve symlinks or clean the path.
func (m ManagedPath) Equal(other ManagedPath) bool {
	return m.path == other.path
}
