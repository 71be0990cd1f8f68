package provider

import "fmt"

// UnavailableError wraps a failed provider call (network, auth, rate
// limit). It aborts the current sync run; the caller may retry the whole
// operation later, which is safe because syncs are idempotent.
type UnavailableError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *UnavailableError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider %s: HTTP %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("provider %s: %v", e.Op, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}
