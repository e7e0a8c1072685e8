package primeshard

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	internalfs "primeshard/internal/fs"
)

// lockStaleTimeout is the compile-time staleness threshold (spec.md §4.2):
// a lock whose recorded timestamp is older than this is reclaimable
// regardless of whether its owning process is actually alive.
const lockStaleTimeout = LockTimeoutSeconds * time.Second

// LockFile is an advisory exclusive lock encoded as a sibling ".lock" file
// holding "pid\ntimestamp" (spec.md §4.2). It guards MetadataFile's
// read-merge-write cycle across processes.
//
// Unlike the teacher's internal/fs.Locker, this is not a kernel flock: it's
// the spec's own pid+timestamp protocol, because staleness here has to
// survive a crashed process whose fd was never released, which flock alone
// can't express (a dead process's flock is released by the kernel, but a
// live process holding a lock past the timeout is not — the spec wants the
// latter reclaimed too). See DESIGN.md for why internal/fs's flock-based
// Locker was dropped rather than reused here.
type LockFile struct {
	sibling ManagedPath
	fsys    internalfs.FS
	pid     int
	timeout time.Duration
	logger  *zap.Logger

	now func() time.Time
}

// NewLockFile attaches a LockFile to target, owning the sibling path with
// target's extension replaced by ".lock".
func NewLockFile(fsys internalfs.FS, target string, logger *zap.Logger) *LockFile {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &LockFile{
		sibling: NewManagedPath(target).WithExt(".lock"),
		fsys:    fsys,
		pid:     os.Getpid(),
		timeout: lockStaleTimeout,
		logger:  logger,
		now:     time.Now,
	}
}

// SiblingPath returns the lockfile's own path.
func (l *LockFile) SiblingPath() string {
	return l.sibling.String()
}

// IsLocked reports whether the sibling lock file exists.
func (l *LockFile) IsLocked() (bool, error) {
	exists, err := l.fsys.Exists(l.sibling.String())
	if err != nil {
		return false, fmt.Errorf("checking %s: %w", l.sibling, err)
	}

	return exists, nil
}

// lockContent is the parsed "pid\ntimestamp" payload.
type lockContent struct {
	pid       int
	timestamp float64
}

// Acquire atomically creates the sibling lock file and writes the current
// process's pid and timestamp.
//
// If the sibling already exists, Acquire checks staleness: a stale lock
// (content unparseable, or its timestamp older than the timeout) is
// forcibly removed, but Acquire still returns ErrTimeout — the caller is
// expected to retry, at which point the now-vacant path lets the retry
// succeed (spec.md §4.2, §7: "LockFile.acquire always reclaims stale locks
// before raising Timeout, so a retry loop makes forward progress").
func (l *LockFile) Acquire() error {
	f, err := l.fsys.OpenFile(l.sibling.String(), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err == nil {
		defer func() { _ = f.Close() }()

		payload := fmt.Sprintf("%d\n%s", l.pid, formatTimestamp(l.now()))
		if _, err := f.Write([]byte(payload)); err != nil {
			return fmt.Errorf("writing lockfile %s: %w", l.sibling, err)
		}

		return nil
	}

	if !errors.Is(err, os.ErrExist) {
		return fmt.Errorf("creating lockfile %s: %w", l.sibling, err)
	}

	// Sibling already exists: reclaim it if stale, but still ask the
	// caller to retry rather than racing straight into a second create.
	if l.isStale() {
		l.logger.Warn("lockfile: reclaiming stale lock", zap.String("path", l.sibling.String()))

		if rmErr := l.fsys.Remove(l.sibling.String()); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			return fmt.Errorf("removing stale lockfile %s: %w", l.sibling, rmErr)
		}
	}

	return fmt.Errorf("%w: %s", ErrTimeout, l.sibling)
}

// Release verifies ownership and unlinks the sibling.
//
// If ignoreOwner is false, Release reads back the lock, checks the stored
// pid matches this process and the age is below the timeout, and only then
// unlinks; any mismatch returns ErrCouldNotRelease. With ignoreOwner true,
// Release unconditionally unlinks (used to reclaim a lock known to be
// stale).
func (l *LockFile) Release(ignoreOwner bool) error {
	if ignoreOwner {
		if err := l.fsys.Remove(l.sibling.String()); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("removing lockfile %s: %w", l.sibling, err)
		}

		return nil
	}

	content, err := l.read()
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrCouldNotRelease, l.sibling, err)
	}

	if content.pid != l.pid || l.age(content) >= l.timeout {
		return fmt.Errorf("%w: %s", ErrCouldNotRelease, l.sibling)
	}

	if err := l.fsys.Remove(l.sibling.String()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing lockfile %s: %w", l.sibling, err)
	}

	return nil
}

// Refresh overwrites the timestamp if this process still owns the lock,
// failing with ErrNotOwned otherwise.
func (l *LockFile) Refresh() error {
	content, err := l.read()
	if err != nil || content.pid != l.pid {
		return fmt.Errorf("%w: %s", ErrNotOwned, l.sibling)
	}

	payload := fmt.Sprintf("%d\n%s", l.pid, formatTimestamp(l.now()))
	if err := l.fsys.WriteFileAtomic(l.sibling.String(), []byte(payload), 0o644); err != nil {
		return fmt.Errorf("refreshing lockfile %s: %w", l.sibling, err)
	}

	return nil
}

// isStale reports whether the sibling is absent, unparseable (corrupt, per
// spec.md §3: "any other shape => the lock is corrupt, treated equivalent
// to stale"), or older than the timeout.
func (l *LockFile) isStale() bool {
	content, err := l.read()
	if err != nil {
		return true
	}

	return l.age(content) >= l.timeout
}

func (l *LockFile) age(c lockContent) time.Duration {
	return l.now().Sub(time.Unix(0, int64(c.timestamp*float64(time.Second))))
}

func (l *LockFile) read() (lockContent, error) {
	data, err := l.fsys.ReadFile(l.sibling.String())
	if err != nil {
		return lockContent{}, fmt.Errorf("reading %s: %w", l.sibling, err)
	}

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 2 {
		return lockContent{}, fmt.Errorf("%w: lockfile %s must have exactly two lines", ErrCorrupt, l.sibling)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(lines[0]))
	if err != nil {
		return lockContent{}, fmt.Errorf("%w: lockfile %s has non-numeric pid", ErrCorrupt, l.sibling)
	}

	ts, err := strconv.ParseFloat(strings.TrimSpace(lines[1]), 64)
	if err != nil {
		return lockContent{}, fmt.Errorf("%w: lockfile %s has non-numeric timestamp", ErrCorrupt, l.sibling)
	}

	return lockContent{pid: pid, timestamp: ts}, nil
}

func formatTimestamp(t time.Time) string {
	return strconv.FormatFloat(float64(t.UnixNano())/float64(time.Second), 'f', 6, 64)
}
