package fs

import (
	"errors"
	"os"
)

// ErrInjected is returned by [Fault] for the call it was configured to fail.
var ErrInjected = errors.New("fs: injected fault")

// Fault wraps an [FS] and fails one deterministically chosen call instead of
// a real disk error. Unlike a probabilistic fault injector, each [Fault]
// fails at most once, on the Nth matching call, which is what exercising
// ShardManager.Save's documented partial-failure behavior (spec §4.6) needs:
// "shard k's write fails, shards 0..k-1 stay on disk, metadata is untouched".
//
// The zero value is not usable; construct with [NewFault].
type Fault struct {
	FS

	op    FaultOp
	after int // fail on the (after+1)'th matching call
	seen  int
}

// FaultOp identifies which [FS] method [Fault] should fail.
type FaultOp int

const (
	// FaultNone disables injection; Fault behaves like the wrapped FS.
	FaultNone FaultOp = iota
	// FaultWriteFileAtomic fails [Fault.WriteFileAtomic].
	FaultWriteFileAtomic
	// FaultOpenFile fails [Fault.OpenFile].
	FaultOpenFile
)

// NewFault wraps fsys, failing the `after`-th (0-indexed) call to op with
// [ErrInjected]. Every other call, and every call to a different op, passes
// through to fsys unchanged.
func NewFault(fsys FS, op FaultOp, after int) *Fault {
	return &Fault{FS: fsys, op: op, after: after}
}

func (f *Fault) shouldFail(op FaultOp) bool {
	if f.op != op || f.op == FaultNone {
		return false
	}

	hit := f.seen == f.after
	f.seen++

	return hit
}

// WriteFileAtomic fails with [ErrInjected] on the configured call, otherwise
// delegates to the wrapped [FS].
func (f *Fault) WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	if f.shouldFail(FaultWriteFileAtomic) {
		return ErrInjected
	}

	return f.FS.WriteFileAtomic(path, data, perm)
}

// OpenFile fails with [ErrInjected] on the configured call, otherwise
// delegates to the wrapped [FS].
func (f *Fault) OpenFile(path string, flag int, perm os.FileMode) (File, error) {
	if f.shouldFail(FaultOpenFile) {
		return nil, ErrInjected
	}

	return f.FS.OpenFile(path, flag, perm)
}

// Compile-time interface check.
var _ FS = (*Fault)(nil)
