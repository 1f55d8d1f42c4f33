package ballotbox

import (
	"errors"

	"github.com/vocdoni/dreip-node/storage"
)

var (
	// ErrNotFound is returned when the election, question or ballot does
	// not exist.
	ErrNotFound = errors.New("not found")
	// ErrWrongState is returned when a ballot is not in the state the
	// operation requires.
	ErrWrongState = errors.New("ballot is in the wrong state")
	// ErrSignatureInvalid is returned when a receipt signature does not
	// authenticate the ballot reference.
	ErrSignatureInvalid = errors.New("invalid receipt signature")
	// ErrConstraintViolation is returned when the voter does not satisfy
	// the question's group constraint, or the election is not accepting
	// votes.
	ErrConstraintViolation = errors.New("constraint violation")
	// ErrAlreadyConfirmed is returned when the voter already holds a
	// confirmed ballot for the question.
	ErrAlreadyConfirmed = errors.New("already confirmed")
	// ErrStorageConflict is returned when a write lost a concurrency race;
	// the operation may be retried.
	ErrStorageConflict = errors.New("storage conflict")
)

// mapStoreErr translates storage sentinel errors into the engine's error
// taxonomy. Unknown errors pass through untouched.
func mapStoreErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, storage.ErrWrongState):
		return ErrWrongState
	case errors.Is(err, storage.ErrAlreadyConfirmed):
		return ErrAlreadyConfirmed
	case errors.Is(err, storage.ErrConflict):
		return ErrStorageConflict
	default:
		return err
	}
}
