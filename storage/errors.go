package storage

import "errors"

var (
	// ErrNotFound is returned when the requested document does not exist.
	ErrNotFound = errors.New("not found")
	// ErrKeyAlreadyExists is returned when an insert collides with an
	// existing document.
	ErrKeyAlreadyExists = errors.New("key already exists")
	// ErrWrongState is returned when a conditional state transition finds
	// the ballot in a state other than the expected one.
	ErrWrongState = errors.New("ballot is not in the expected state")
	// ErrAlreadyConfirmed is returned when a voter already holds a
	// confirmed ballot for the question.
	ErrAlreadyConfirmed = errors.New("voter already confirmed a ballot for this question")
	// ErrConflict is returned when a write lost an optimistic concurrency
	// race and the operation may be retried.
	ErrConflict = errors.New("storage conflict")
)
