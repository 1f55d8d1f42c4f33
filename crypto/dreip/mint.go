package dreip

import (
	"fmt"
	"math/big"

	"github.com/vocdoni/dreip-node/crypto"
	"github.com/vocdoni/dreip-node/crypto/ecc"
)

// SecretVote is the full per-candidate vote as known to the prover: the
// ciphertext, its proof, and the secrets behind it. The secrets are only
// ever persisted for later revelation on audit.
type SecretVote struct {
	Random *big.Int
	Value  uint8
	R      ecc.Point
	Z      ecc.Point
	Proof  *VoteProof
}

// MintedBallot is the output of GenerateBallot: one SecretVote per
// candidate, the sum-to-one proof over their aggregation, and the
// confirmation code of the receipt.
type MintedBallot struct {
	Votes            map[string]*SecretVote
	Proof            *BallotProof
	ConfirmationCode []byte
}

// GenerateBallot mints the cryptographic body of a ballot: for every
// candidate it samples fresh randomness, encrypts 1 for the chosen candidate
// and 0 for everyone else, and proves each ciphertext well-formed. The
// aggregated ciphertext is then proven to encrypt exactly one.
func (g *Group) GenerateBallot(Y ecc.Point, ref BallotRef, candidates []string, choice string) (*MintedBallot, error) {
	found := false
	for _, name := range candidates {
		if name == choice {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("candidate %q is not part of the question", choice)
	}

	votes := make(map[string]*SecretVote, len(candidates))
	rTotal := new(big.Int)
	RTotal := g.NewPoint()
	ZTotal := g.NewPoint()
	for _, name := range candidates {
		r, err := crypto.RandScalar(g.order)
		if err != nil {
			return nil, err
		}
		var v uint8
		if name == choice {
			v = 1
		}
		R, Z, err := g.EncryptVote(r, v)
		if err != nil {
			return nil, err
		}
		voteRef := VoteRef{
			ElectionID: ref.ElectionID,
			QuestionID: ref.QuestionID,
			BallotID:   ref.BallotID,
			Candidate:  name,
		}
		proof, err := g.ProveVote(Y, voteRef, R, Z, r, v)
		if err != nil {
			return nil, err
		}
		votes[name] = &SecretVote{Random: r, Value: v, R: R, Z: Z, Proof: proof}

		rTotal.Add(rTotal, r)
		rTotal.Mod(rTotal, g.order)
		RTotal.Add(RTotal, R)
		ZTotal.Add(ZTotal, Z)
	}

	proof, err := g.ProveBallot(ref, rTotal, RTotal, ZTotal)
	if err != nil {
		return nil, err
	}
	return &MintedBallot{
		Votes:            votes,
		Proof:            proof,
		ConfirmationCode: g.ConfirmationCode(ref, RTotal, ZTotal),
	}, nil
}

// SumCiphertexts aggregates a set of vote ciphertexts into the pair
// (R_total, Z_total).
func (g *Group) SumCiphertexts(votes []ecc.Point, zs []ecc.Point) (RTotal, ZTotal ecc.Point) {
	RTotal = g.NewPoint()
	for _, R := range votes {
		RTotal.Add(RTotal, R)
	}
	ZTotal = g.NewPoint()
	for _, Z := range zs {
		ZTotal.Add(ZTotal, Z)
	}
	return RTotal, ZTotal
}

// VerifyTotals checks the homomorphic tally identities of one candidate
// against the aggregated confirmed ciphertexts:
//
//	r_sum·g1 = R_sum
//	tally·g1 = Z_sum − x·R_sum
func (g *Group) VerifyTotals(x, tally, rSum *big.Int, RSum, ZSum ecc.Point) error {
	lhs := g.NewPoint()
	lhs.ScalarMult(g.g1, rSum)
	if !lhs.Equal(RSum) {
		return fmt.Errorf("%w: r_sum does not open R_sum", ErrProofInvalid)
	}

	rhs := g.NewPoint()
	rhs.ScalarMult(RSum, x)
	rhs.Neg(rhs)
	rhs.Add(rhs, ZSum)
	lhs = g.NewPoint()
	lhs.ScalarMult(g.g1, tally)
	if !lhs.Equal(rhs) {
		return fmt.Errorf("%w: tally does not open Z_sum - x*R_sum", ErrProofInvalid)
	}
	return nil
}

// VerifyRevealed checks the opening of an audited vote: R = r·g1 and
// Z = r·g2 + v·g1 with v a bit.
func (g *Group) VerifyRevealed(R, Z ecc.Point, r *big.Int, v uint8) error {
	if v > 1 {
		return ErrInvalidVote
	}
	expR, expZ, err := g.EncryptVote(r, v)
	if err != nil {
		return err
	}
	if !expR.Equal(R) {
		return fmt.Errorf("%w: revealed randomness does not open R", ErrProofInvalid)
	}
	if !expZ.Equal(Z) {
		return fmt.Errorf("%w: revealed vote does not open Z", ErrProofInvalid)
	}
	return nil
}
