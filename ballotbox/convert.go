package ballotbox

import (
	"fmt"
	"math/big"

	"github.com/vocdoni/dreip-node/crypto"
	"github.com/vocdoni/dreip-node/crypto/dreip"
	"github.com/vocdoni/dreip-node/crypto/ecc"
	"github.com/vocdoni/dreip-node/types"
)

// voteRecord serializes a minted secret vote into its document form,
// including the server-side secrets revealed on audit.
func voteRecord(sv *dreip.SecretVote) *types.Vote {
	return &types.Vote{
		R: sv.R.Marshal(),
		Z: sv.Z.Marshal(),
		PWF: &types.VoteProof{
			C1: crypto.ScalarToBytes(sv.Proof.C1),
			C2: crypto.ScalarToBytes(sv.Proof.C2),
			R1: crypto.ScalarToBytes(sv.Proof.R1),
			R2: crypto.ScalarToBytes(sv.Proof.R2),
		},
		Random: crypto.ScalarToBytes(sv.Random),
		Value:  crypto.ScalarToBytes(big.NewInt(int64(sv.Value))),
	}
}

// ballotProofRecord serializes the sum-to-one proof.
func ballotProofRecord(p *dreip.BallotProof) *types.BallotProof {
	return &types.BallotProof{
		A: p.A.Marshal(),
		B: p.B.Marshal(),
		R: crypto.ScalarToBytes(p.R),
	}
}

// votePoints decodes the ciphertext points of a stored vote.
func votePoints(g *dreip.Group, v *types.Vote) (R, Z ecc.Point, err error) {
	R, err = dreip.PointFromBytes(g.CurveType(), v.R)
	if err != nil {
		return nil, nil, fmt.Errorf("vote R: %w", err)
	}
	Z, err = dreip.PointFromBytes(g.CurveType(), v.Z)
	if err != nil {
		return nil, nil, fmt.Errorf("vote Z: %w", err)
	}
	return R, Z, nil
}

// voteSecrets decodes the stored randomness and plaintext of a vote. The
// plaintext travels as a full 32-byte scalar of which only the lowest bit
// may be set.
func voteSecrets(g *dreip.Group, v *types.Vote) (r *big.Int, value uint8, err error) {
	r, err = g.ScalarFromBytes(v.Random)
	if err != nil {
		return nil, 0, fmt.Errorf("vote randomness: %w", err)
	}
	val, err := g.ScalarFromBytes(v.Value)
	if err != nil {
		return nil, 0, fmt.Errorf("vote value: %w", err)
	}
	if !val.IsUint64() || val.Uint64() > 1 {
		return nil, 0, fmt.Errorf("vote value out of range: %w", dreip.ErrInvalidVote)
	}
	return r, uint8(val.Uint64()), nil
}

// sumBallot aggregates the ciphertexts of a stored ballot into
// (R_total, Z_total), used to derive the confirmation code.
func sumBallot(g *dreip.Group, b *types.Ballot) (RTotal, ZTotal ecc.Point, err error) {
	RTotal = g.NewPoint()
	ZTotal = g.NewPoint()
	for name, v := range b.Votes {
		R, Z, err := votePoints(g, v)
		if err != nil {
			return nil, nil, fmt.Errorf("candidate %q: %w", name, err)
		}
		RTotal.Add(RTotal, R)
		ZTotal.Add(ZTotal, Z)
	}
	return RTotal, ZTotal, nil
}
