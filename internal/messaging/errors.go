package messaging

import "github.com/pkg/errors"

var (
	// ErrInvalidIdentifier is returned for ids that are not 24 hex characters
	ErrInvalidIdentifier = errors.New("invalid identifier")
	// ErrInvalidReceiver is returned when a well-formed receiver has no account
	ErrInvalidReceiver = errors.New("cannot message this recipient")
	ErrSelfMessage     = errors.New("cannot send a message to yourself")
	ErrEmptyContent    = errors.New("message content is required")
	ErrContentTooLong  = errors.New("message content is too long")
	// ErrUnauthorized is returned when the session does not identify an account
	ErrUnauthorized = errors.New("unauthorized")
	// ErrPersistence marks failures of the message or account store
	ErrPersistence = errors.New("persistence failure")
)

// IsValidation reports whether err is a client-side validation failure
func IsValidation(err error) bool {
	return errors.Is(err, ErrSelfMessage) ||
		errors.Is(err, ErrEmptyContent) ||
		errors.Is(err, ErrContentTooLong)
}

type persistenceError struct {
	op  string
	err error
}

func (e *persistenceError) Error() string {
	return e.op + ": " + e.err.Error()
}

func (e *persistenceError) Unwrap() error {
	return e.err
}

func (e *persistenceError) Is(target error) bool {
	return target == ErrPersistence
}

func persistence(op string, err error) error {
	return &persistenceError{op: op, err: err}
}
