package identity

import "errors"

var (
	// ErrNotFound signals an absent user. It is an expected outcome, not a failure.
	ErrNotFound = errors.New("user not found")
	// ErrUserExists is returned by CreateUser when the email is already taken.
	ErrUserExists = errors.New("user already exists")
)

// PersistenceError wraps a datastore failure on read or write.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return "persistence failure: " + e.Op + ": " + e.Err.Error()
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func persistenceError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}
