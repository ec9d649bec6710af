package service

import (
	"errors"
	"fmt"
	"time"

	"remote-device-manager/internal/domain"
)

// Transient allocation signals. Both trigger another polling cycle and are
// never surfaced to callers.
var (
	ErrNoMatch  = errors.New("no matching free device")
	ErrConflict = errors.New("device reservation lost a race")
)

// InvalidRequestError rejects a request that fails a precondition. Fatal
// for the call.
type InvalidRequestError struct {
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return e.Reason
}

// TimeoutError is returned when the allocation deadline elapses before a
// device could be reserved.
type TimeoutError struct {
	Request *domain.DeviceRequest
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("unable to allocate device for request '%s' even after '%.0f seconds'",
		e.Request, e.Timeout.Seconds())
}
