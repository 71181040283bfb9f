// Package hookerr defines the small error taxonomy shared by every hook.
//
// Every hook boundary collapses errors into one of five kinds before
// deciding how to respond to the host: invalid input and I/O failures
// degrade silently to a no-op, conflicts surface as a decision, external
// (gateway) failures degrade to file-only operation, and timeouts abort
// whatever work remains. Callers use errors.Is against the sentinels
// below rather than matching on message text.
package hookerr

import "errors"

var (
	// ErrInvalidInput marks malformed stdin JSON or a missing required field.
	ErrInvalidInput = errors.New("invalid_input")
	// ErrIO marks a store file access failure: missing file, permission
	// denied, or a failed atomic rename.
	ErrIO = errors.New("io")
	// ErrConflict marks a claim already held, or a release attempted by a
	// non-owner.
	ErrConflict = errors.New("conflict")
	// ErrExternal marks an orchestrator gateway failure: not installed,
	// timed out, exited nonzero, or produced non-JSON output.
	ErrExternal = errors.New("external")
	// ErrTimeout marks a hook deadline that was reached before the work
	// completed.
	ErrTimeout = errors.New("timeout")
)

// Wrap annotates err with kind so errors.Is(err, kind) succeeds while the
// original message and %w chain are preserved.
func Wrap(kind error, msg string, err error) error {
	if err == nil {
		return nil
	}
	return &wrapped{kind: kind, msg: msg, err: err}
}

type wrapped struct {
	kind error
	msg  string
	err  error
}

func (w *wrapped) Error() string {
	if w.msg == "" {
		return w.kind.Error() + ": " + w.err.Error()
	}
	return w.msg + ": " + w.err.Error()
}

func (w *wrapped) Unwrap() error { return w.err }

func (w *wrapped) Is(target error) bool { return target == w.kind }

// Kind returns the sentinel kind carried by err, or nil if err was not
// produced by Wrap.
func Kind(err error) error {
	var w *wrapped
	if errors.As(err, &w) {
		return w.kind
	}
	return nil
}
