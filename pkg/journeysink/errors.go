package journeysink

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidEndpoint        = errors.New("invalid journey store endpoint")
	ErrInvalidResponse        = errors.New("invalid response from journey store")
	ErrUnknown                = errors.New("journey store transport failure")
	ErrNotFound               = errors.New("journey not found")
	ErrConcurrentModification = errors.New("journey was modified concurrently")
)

// ServerError is returned for any non 2xx response. These are never retried.
type ServerError struct {
	Status int
	Body   string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("journey store returned status %d: %s", e.Status, e.Body)
}
