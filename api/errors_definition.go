//nolint:lll
package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/vocdoni/dreip-node/ballotbox"
	"github.com/vocdoni/dreip-node/crypto/dreip"
	"github.com/vocdoni/dreip-node/storage"
)

// The custom Error type satisfies the error interface.
// Error() returns a human-readable description of the error.
//
// Error codes in the 40001-49999 range are the user's fault,
// and they return HTTP Status 400, 401 or 404, whatever is most appropriate.
//
// Error codes 50001-59999 are the server's fault
// and they return HTTP Status 500 or 503, or something else if appropriate.
//
// NEVER change any of the current error codes, only append new errors after
// the current last 4XXXX or 5XXXX. If you notice there's a gap, DON'T fill it
// in, that code was used in the past for some error and shouldn't be reused.
var (
	ErrResourceNotFound      = Error{Code: 40001, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("resource not found")}
	ErrMalformedBody         = Error{Code: 40002, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed JSON body")}
	ErrMalformedParam        = Error{Code: 40003, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed parameter")}
	ErrInvalidSignature      = Error{Code: 40004, HTTPstatus: http.StatusUnauthorized, Err: fmt.Errorf("invalid receipt signature")}
	ErrElectionNotFound      = Error{Code: 40005, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("election not found")}
	ErrWrongBallotState      = Error{Code: 40006, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("ballot is in the wrong state")}
	ErrConstraintViolation   = Error{Code: 40007, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("constraint violation")}
	ErrAlreadyConfirmed      = Error{Code: 40008, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("voter already confirmed a ballot")}
	ErrInvalidBallot         = Error{Code: 40009, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid ballot")}
	ErrElectionNotClosed     = Error{Code: 40010, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("election results are not published yet")}
	ErrElectionAlreadyExists = Error{Code: 40011, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("election already exists")}

	ErrMarshalingServerJSONFailed = Error{Code: 50001, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("marshaling (server-side) JSON failed")}
	ErrGenericInternalServerError = Error{Code: 50002, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("internal server error")}
	ErrStorageConflict            = Error{Code: 50003, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("transient storage conflict, retry the request")}
)

// fromEngineErr maps the ballot engine's error taxonomy onto the API error
// table. Proof failures map to an opaque message: the internal reason is
// never reported to the client.
func fromEngineErr(err error) Error {
	switch {
	case errors.Is(err, ballotbox.ErrNotFound), errors.Is(err, storage.ErrNotFound):
		return ErrResourceNotFound
	case errors.Is(err, ballotbox.ErrWrongState):
		return ErrWrongBallotState
	case errors.Is(err, ballotbox.ErrSignatureInvalid):
		return ErrInvalidSignature
	case errors.Is(err, ballotbox.ErrAlreadyConfirmed):
		return ErrAlreadyConfirmed
	case errors.Is(err, ballotbox.ErrConstraintViolation):
		return ErrConstraintViolation.WithErr(err)
	case errors.Is(err, ballotbox.ErrStorageConflict):
		return ErrStorageConflict
	case errors.Is(err, dreip.ErrProofInvalid), errors.Is(err, dreip.ErrInvalidEncoding), errors.Is(err, dreip.ErrInvalidVote):
		return ErrInvalidBallot
	default:
		return ErrGenericInternalServerError
	}
}
