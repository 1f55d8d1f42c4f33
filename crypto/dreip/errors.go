package dreip

import "errors"

var (
	// ErrInvalidEncoding is returned when a serialized scalar or point does
	// not decode to a canonical group element.
	ErrInvalidEncoding = errors.New("invalid encoding")
	// ErrProofInvalid is returned when a zero-knowledge proof does not
	// verify against its statement.
	ErrProofInvalid = errors.New("proof verification failed")
	// ErrInvalidVote is returned when a plaintext vote value is not 0 or 1.
	ErrInvalidVote = errors.New("vote value must be 0 or 1")
)
