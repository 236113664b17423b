package transport

import "errors"

var (
	// ErrRetriesExhausted is reported once reconnection gives up. The
	// transport stays closed until Initialize is called again.
	ErrRetriesExhausted = errors.New("reconnect attempts exhausted")
	// ErrDisposed is returned by Initialize after Dispose.
	ErrDisposed = errors.New("transport disposed")
)

// InitError is a failure while setting up a session: bad URL, unreachable
// backend on the first dial, or a capture device that cannot be opened.
// It is reported once and never retried automatically.
type InitError struct {
	Op  string
	Err error
}

func (e *InitError) Error() string {
	if e == nil || e.Err == nil {
		return "initialization failed"
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *InitError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsInitError reports whether err is an initialization failure.
func IsInitError(err error) bool {
	var initErr *InitError
	return errors.As(err, &initErr)
}
