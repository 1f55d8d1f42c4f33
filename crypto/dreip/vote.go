package dreip

import (
	"fmt"
	"math/big"

	"github.com/vocdoni/dreip-node/crypto"
	"github.com/vocdoni/dreip-node/crypto/ecc"
)

// VoteRef binds a per-candidate proof transcript to its exact position: one
// candidate of one ballot of one question.
type VoteRef struct {
	ElectionID []byte
	QuestionID []byte
	BallotID   uint64
	Candidate  string
}

// VoteProof is a disjunctive Chaum-Pedersen proof that a vote ciphertext
// (R, Z) encrypts either 0 or 1. The four elements are scalars: the two
// split challenges and the two responses, one pair per branch.
type VoteProof struct {
	C1 *big.Int
	C2 *big.Int
	R1 *big.Int
	R2 *big.Int
}

// EncryptVote encodes a vote bit under fresh randomness r as the ciphertext
// pair R = r·g1, Z = r·g2 + v·g1.
func (g *Group) EncryptVote(r *big.Int, v uint8) (R, Z ecc.Point, err error) {
	if v > 1 {
		return nil, nil, ErrInvalidVote
	}
	R = g.NewPoint()
	R.ScalarMult(g.g1, r)
	Z = g.NewPoint()
	Z.ScalarMult(g.g2, r)
	if v == 1 {
		Z.Add(Z, g.g1)
	}
	return R, Z, nil
}

// voteChallenge computes the Fiat-Shamir challenge of the per-vote proof.
func (g *Group) voteChallenge(ref VoteRef, Y, R, Z, a0, b0, a1, b1 ecc.Point) *big.Int {
	t := newTranscript(voteProofDomain)
	t.appendUint64(ref.BallotID)
	t.append(ref.ElectionID)
	t.append(ref.QuestionID)
	t.append([]byte(ref.Candidate))
	t.append(g.g1.Marshal())
	t.append(g.g2.Marshal())
	t.append(Y.Marshal())
	t.append(R.Marshal())
	t.append(Z.Marshal())
	t.append(a0.Marshal())
	t.append(b0.Marshal())
	t.append(a1.Marshal())
	t.append(b1.Marshal())
	return t.challenge(g.order)
}

// ProveVote produces the disjunctive proof for a ciphertext (R, Z) built
// with randomness r and plaintext bit v. The real branch is proven with a
// fresh witness, the other branch is simulated with a random challenge and
// response, and the real challenge is fixed by the transcript hash.
func (g *Group) ProveVote(Y ecc.Point, ref VoteRef, R, Z ecc.Point, r *big.Int, v uint8) (*VoteProof, error) {
	if v > 1 {
		return nil, ErrInvalidVote
	}
	w, err := crypto.RandScalar(g.order)
	if err != nil {
		return nil, err
	}
	cSim, err := crypto.RandScalar(g.order)
	if err != nil {
		return nil, err
	}
	rSim, err := crypto.RandScalar(g.order)
	if err != nil {
		return nil, err
	}

	// Real branch commitments.
	aReal := g.NewPoint()
	aReal.ScalarMult(g.g1, w)
	bReal := g.NewPoint()
	bReal.ScalarMult(g.g2, w)

	// Simulated branch commitments, for the bit value 1-v.
	aSim, bSim := g.simulatedCommitments(R, Z, cSim, rSim, 1-v)

	// Order the four commitments by branch bit.
	a0, b0, a1, b1 := aReal, bReal, aSim, bSim
	if v == 1 {
		a0, b0, a1, b1 = aSim, bSim, aReal, bReal
	}

	c := g.voteChallenge(ref, Y, R, Z, a0, b0, a1, b1)
	cReal := new(big.Int).Sub(c, cSim)
	cReal.Mod(cReal, g.order)
	rReal := new(big.Int).Mul(cReal, r)
	rReal.Add(rReal, w)
	rReal.Mod(rReal, g.order)

	if v == 0 {
		return &VoteProof{C1: cReal, C2: cSim, R1: rReal, R2: rSim}, nil
	}
	return &VoteProof{C1: cSim, C2: cReal, R1: rSim, R2: rReal}, nil
}

// simulatedCommitments computes the commitments of the simulated branch for
// bit value j from its pre-chosen challenge and response:
//
//	A_j = r_j·g1 − c_j·R
//	B_j = r_j·g2 − c_j·(Z − j·g1)
func (g *Group) simulatedCommitments(R, Z ecc.Point, cj, rj *big.Int, j uint8) (ecc.Point, ecc.Point) {
	aj := g.NewPoint()
	aj.ScalarMult(g.g1, rj)
	tmp := g.NewPoint()
	tmp.ScalarMult(R, cj)
	tmp.Neg(tmp)
	aj.Add(aj, tmp)

	zj := g.NewPoint()
	zj.Set(Z)
	if j == 1 {
		negG1 := g.NewPoint()
		negG1.Neg(g.g1)
		zj.Add(zj, negG1)
	}
	bj := g.NewPoint()
	bj.ScalarMult(g.g2, rj)
	tmp = g.NewPoint()
	tmp.ScalarMult(zj, cj)
	tmp.Neg(tmp)
	bj.Add(bj, tmp)
	return aj, bj
}

// VerifyVote checks a per-vote proof against its ciphertext. The verifier
// recomputes both branch commitments from the proof scalars and accepts
// exactly when the split challenges add up to the transcript hash.
func (g *Group) VerifyVote(Y ecc.Point, ref VoteRef, R, Z ecc.Point, proof *VoteProof) error {
	if proof == nil || proof.C1 == nil || proof.C2 == nil || proof.R1 == nil || proof.R2 == nil {
		return fmt.Errorf("%w: incomplete vote proof", ErrProofInvalid)
	}
	a0, b0 := g.simulatedCommitments(R, Z, proof.C1, proof.R1, 0)
	a1, b1 := g.simulatedCommitments(R, Z, proof.C2, proof.R2, 1)

	c := g.voteChallenge(ref, Y, R, Z, a0, b0, a1, b1)
	sum := new(big.Int).Add(proof.C1, proof.C2)
	sum.Mod(sum, g.order)
	if sum.Cmp(c) != 0 {
		return fmt.Errorf("%w: vote proof challenge mismatch", ErrProofInvalid)
	}
	return nil
}
