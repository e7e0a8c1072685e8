package primeshard

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	internalfs "primeshard/internal/fs"
)

// HashFile streams the bytes of a target file through SHA-256 and
// persists/verifies the digest in a sibling ".sha256" file (spec.md §4.1).
// No third-party hashing library improves on crypto/sha256 here: it's the
// exact primitive the spec names, so this is one of the few places this
// module reaches for the standard library on purpose (see DESIGN.md).
type HashFile struct {
	target ManagedPath
	fsys   internalfs.FS
	logger *zap.Logger

	computed *string // lazily-populated, compute-once-per-instance cache
}

// NewHashFile attaches a HashFile to target, using fsys for all I/O.
func NewHashFile(fsys internalfs.FS, target string, logger *zap.Logger) *HashFile {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &HashFile{target: NewManagedPath(target), fsys: fsys, logger: logger}
}

// SiblingPath returns target + ".sha256".
func (h *HashFile) SiblingPath() string {
	return h.target.Sibling(".sha256").String()
}

// Compute streams target through SHA-256 in HashBlockSize blocks and
// returns the hex digest. The result is cached for the lifetime of this
// HashFile instance: a subsequent Compute call returns the cached value
// without re-reading target. This is an explicit instance-lifetime cache
// (a `*string` field set on first compute), not reliance on attribute
// presence the way the Python original's lazy property worked (spec.md §9).
func (h *HashFile) Compute() (string, error) {
	if h.computed != nil {
		return *h.computed, nil
	}

	f, err := h.fsys.Open(h.target.String())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, h.target)
		}

		return "", fmt.Errorf("opening %s: %w", h.target, err)
	}
	defer func() { _ = f.Close() }()

	digest := sha256.New()

	buf := make([]byte, HashBlockSize)
	if _, err := io.CopyBuffer(digest, f, buf); err != nil {
		return "", fmt.Errorf("hashing %s: %w", h.target, err)
	}

	sum := hex.EncodeToString(digest.Sum(nil))
	h.computed = &sum

	return sum, nil
}

// Write persists digest to the sibling path. Fails with ErrAlreadyExists if
// the sibling exists and overwrite is false; with overwrite true, the
// sibling is deleted first.
func (h *HashFile) Write(digest string, overwrite bool) error {
	sibling := h.SiblingPath()

	exists, err := h.fsys.Exists(sibling)
	if err != nil {
		return fmt.Errorf("checking %s: %w", sibling, err)
	}

	if exists {
		if !overwrite {
			return fmt.Errorf("%w: %s", ErrAlreadyExists, sibling)
		}

		if err := h.fsys.Remove(sibling); err != nil {
			return fmt.Errorf("removing stale %s: %w", sibling, err)
		}
	}

	if err := h.fsys.WriteFileAtomic(sibling, []byte(digest), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", sibling, err)
	}

	return nil
}

// Read reads and trims the sibling digest file.
func (h *HashFile) Read() (string, error) {
	sibling := h.SiblingPath()

	data, err := h.fsys.ReadFile(sibling)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, sibling)
		}

		return "", fmt.Errorf("reading %s: %w", sibling, err)
	}

	return strings.TrimSpace(string(data)), nil
}

// Verify reports whether both the target and its sibling exist and
// Read() == Compute(). Any I/O or parse error is swallowed into false and
// logged to the side channel (spec.md §4.1), never returned as an error:
// callers that need to know why should call Read/Compute directly.
func (h *HashFile) Verify() bool {
	stored, err := h.Read()
	if err != nil {
		h.logger.Warn("hashfile: could not read sibling digest", zap.String("path", h.SiblingPath()), zap.Error(err))

		return false
	}

	computed, err := h.Compute()
	if err != nil {
		h.logger.Warn("hashfile: could not compute digest", zap.String("path", h.target.String()), zap.Error(err))

		return false
	}

	if stored != computed {
		h.logger.Warn("hashfile: digest mismatch", zap.String("path", h.target.String()))

		return false
	}

	return true
}
