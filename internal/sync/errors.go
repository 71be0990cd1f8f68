package sync

import "fmt"

// NotFoundError reports that a locally referenced entity does not exist.
// Not retryable; the caller asked for something that is not there.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}
