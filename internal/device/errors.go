package device

import (
	"errors"
	"fmt"
)

// ErrRemote matches every RemoteError via errors.Is.
var ErrRemote = errors.New("remote device error")

// RemoteError is a failed exchange with the device: a transport failure or a
// reply outside the 2xx range. StatusCode is 0 when no reply was received.
type RemoteError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *RemoteError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: device replied with code %d", e.Op, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return e.Op + ": device request failed"
	}
}

func (e *RemoteError) Unwrap() error { return e.Err }

func (e *RemoteError) Is(target error) bool { return target == ErrRemote }
