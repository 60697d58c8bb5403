package model

import (
	"errors"
	"os"
	"syscall"
)

// Error taxonomy shared by sources, the normalizer and the render loop.
var (
	// ErrSourceUnavailable means a resource is missing, forbidden or exhausted.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrMalformedInput means a record could not be parsed or decoded.
	ErrMalformedInput = errors.New("malformed input")
	// ErrNotificationOverflow means a notification queue dropped events.
	ErrNotificationOverflow = errors.New("notification overflow")
	// ErrTerminalFault means the terminal could not be read or written.
	ErrTerminalFault = errors.New("terminal fault")
	// ErrMalformedPayload means a delta was rejected by the store.
	ErrMalformedPayload = errors.New("malformed payload")
	// ErrInternalFault means a background goroutine panicked.
	ErrInternalFault = errors.New("internal fault")
)

// Classify maps OS errors onto the taxonomy. Errors already in the taxonomy
// and unknown errors are returned unchanged.
func Classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrSourceUnavailable), errors.Is(err, ErrMalformedInput),
		errors.Is(err, ErrNotificationOverflow), errors.Is(err, ErrTerminalFault):
		return err
	case errors.Is(err, os.ErrNotExist), errors.Is(err, os.ErrPermission),
		errors.Is(err, syscall.EMFILE), errors.Is(err, syscall.ENFILE),
		errors.Is(err, syscall.ENOSPC), errors.Is(err, syscall.ENODEV):
		return &classified{kind: ErrSourceUnavailable, err: err}
	}
	return err
}

type classified struct {
	kind error
	err  error
}

func (c *classified) Error() string {
	return c.kind.Error() + ": " + c.err.Error()
}

func (c *classified) Unwrap() []error {
	return []error{c.kind, c.err}
}
