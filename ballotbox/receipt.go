package ballotbox

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"

	"github.com/vocdoni/dreip-node/types"
)

// Signer produces and checks the detached receipt MACs. The signature lets
// a voter prove receipt authenticity offline; it is unrelated to any
// session token. The secret is initialized once at startup and read-only
// afterwards.
type Signer struct {
	secret []byte
}

// NewSigner creates a receipt signer over the process-local secret.
func NewSigner(secret []byte) *Signer {
	key := make([]byte, len(secret))
	copy(key, secret)
	return &Signer{secret: key}
}

// Sign computes the HMAC-SHA256 over (ballot_id || election_id ||
// question_id || state).
func (s *Signer) Sign(ref types.BallotRef, state types.BallotState) types.B64Bytes {
	mac := hmac.New(sha256.New, s.secret)
	var id [8]byte
	binary.BigEndian.PutUint64(id[:], ref.BallotID)
	mac.Write(id[:])
	mac.Write(ref.ElectionID)
	mac.Write(ref.QuestionID)
	mac.Write([]byte(state))
	return mac.Sum(nil)
}

// Verify checks a receipt signature for the given reference and state.
func (s *Signer) Verify(ref types.BallotRef, state types.BallotState, sig types.B64Bytes) error {
	if !hmac.Equal(s.Sign(ref, state), sig) {
		return ErrSignatureInvalid
	}
	return nil
}
