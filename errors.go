package primeshard

import "errors"

// Sentinel errors for the store's error taxonomy. Callers use errors.Is;
// every returned error wraps one of these where the failure fits the
// taxonomy, and is left unwrapped (a raw filesystem error) otherwise.
var (
	// ErrInvalidArgument means a precondition was violated: empty array,
	// zero/negative counts, a reversed interval, a non-positive byte size.
	// A caller bug, surfaced immediately, never retried.
	ErrInvalidArgument = errors.New("primeshard: invalid argument")

	// ErrNotFound means a required file is missing (shard, metadata, the
	// hash target, or the hash sibling).
	ErrNotFound = errors.New("primeshard: not found")

	// ErrAlreadyExists means a write was attempted with overwrite=false
	// against a path that already exists.
	ErrAlreadyExists = errors.New("primeshard: already exists")

	// ErrLocked means the metadata file's lock is held by another (live)
	// process and the caller did not ask to ignore it.
	ErrLocked = errors.New("primeshard: locked")

	// ErrTimeout means lock acquisition failed. A stale lock is always
	// reclaimed before this is returned, so a retry makes progress.
	ErrTimeout = errors.New("primeshard: lock acquisition timed out")

	// ErrCorrupt means the hashfile didn't verify, the lockfile content
	// couldn't be parsed, or the metadata JSON was malformed, in a context
	// where the caller asked for that to be a hard failure instead of the
	// default "behave as if empty" swallow.
	ErrCorrupt = errors.New("primeshard: corrupt")

	// ErrIntegrityViolated means the on-disk shard set doesn't match what
	// metadata records (used by VerifyShardIntegrity / Repartition).
	ErrIntegrityViolated = errors.New("primeshard: shard integrity violated")

	// ErrCouldNotRelease means LockFile.Release couldn't verify ownership
	// (wrong pid, or the lock aged past the staleness timeout under us).
	ErrCouldNotRelease = errors.New("primeshard: could not release lock")

	// ErrNotOwned means LockFile.Refresh was called by a process that does
	// not currently hold the lock.
	ErrNotOwned = errors.New("primeshard: lock not owned by this process")
)
