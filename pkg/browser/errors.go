package browser

import (
	"errors"
	"fmt"
)

var (
	ErrUnavailable   = errors.New("browser host unavailable")
	ErrTargetClosed  = errors.New("target closed")
	ErrSurfaceClosed = errors.New("display surface closed")
	ErrDetached      = errors.New("debugger detached")
)

// HostError wraps failures from the rendering host with the operation name.
type HostError struct {
	Op     string
	Target TargetID
	Err    error
}

func (e *HostError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Target, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *HostError) Unwrap() error {
	return e.Err
}

// WrapHostError annotates err with the failing host operation.
func WrapHostError(op string, target TargetID, err error) error {
	if err == nil {
		return nil
	}
	return &HostError{Op: op, Target: target, Err: err}
}

// IsGone reports whether err means the target or surface no longer exists.
// Teardown treats these as already done.
func IsGone(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrTargetClosed) || errors.Is(err, ErrSurfaceClosed) || errors.Is(err, ErrDetached)
}
