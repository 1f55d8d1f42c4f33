package dreip

import (
	"fmt"
	"math/big"

	"github.com/vocdoni/dreip-node/crypto"
	"github.com/vocdoni/dreip-node/crypto/ecc"
)

// BallotRef identifies the ballot a ballot-level proof transcript binds to.
type BallotRef struct {
	ElectionID []byte
	QuestionID []byte
	BallotID   uint64
}

// BallotProof is the sum-to-one proof of a ballot: a two-base Schnorr proof
// of knowledge of r_total such that R_total = r_total·g1 and
// Z_total = r_total·g2 + g1, where the totals are the sums of the
// per-candidate ciphertexts.
type BallotProof struct {
	A ecc.Point
	B ecc.Point
	R *big.Int
}

// ConfirmationCodeLen is the length of the hash prefix used as confirmation
// code.
const ConfirmationCodeLen = 30

func (g *Group) ballotChallenge(ref BallotRef, RTotal, ZTotal, a, b ecc.Point) *big.Int {
	t := newTranscript(ballotProofDomain)
	t.append(ref.ElectionID)
	t.append(ref.QuestionID)
	t.appendUint64(ref.BallotID)
	t.append(g.g1.Marshal())
	t.append(g.g2.Marshal())
	t.append(RTotal.Marshal())
	t.append(ZTotal.Marshal())
	t.append(a.Marshal())
	t.append(b.Marshal())
	return t.challenge(g.order)
}

// ProveBallot produces the sum-to-one proof from the aggregated randomness
// r_total and the aggregated ciphertext (R_total, Z_total).
func (g *Group) ProveBallot(ref BallotRef, rTotal *big.Int, RTotal, ZTotal ecc.Point) (*BallotProof, error) {
	w, err := crypto.RandScalar(g.order)
	if err != nil {
		return nil, err
	}
	a := g.NewPoint()
	a.ScalarMult(g.g1, w)
	b := g.NewPoint()
	b.ScalarMult(g.g2, w)

	c := g.ballotChallenge(ref, RTotal, ZTotal, a, b)
	r := new(big.Int).Mul(c, rTotal)
	r.Add(r, w)
	r.Mod(r, g.order)
	return &BallotProof{A: a, B: b, R: r}, nil
}

// VerifyBallot checks the sum-to-one proof against the aggregated
// ciphertext:
//
//	a ?= r·g1 − c·R_total
//	b ?= r·g2 − c·(Z_total − g1)
func (g *Group) VerifyBallot(ref BallotRef, RTotal, ZTotal ecc.Point, proof *BallotProof) error {
	if proof == nil || proof.A == nil || proof.B == nil || proof.R == nil {
		return fmt.Errorf("%w: incomplete ballot proof", ErrProofInvalid)
	}
	c := g.ballotChallenge(ref, RTotal, ZTotal, proof.A, proof.B)

	lhs := g.NewPoint()
	lhs.ScalarMult(g.g1, proof.R)
	tmp := g.NewPoint()
	tmp.ScalarMult(RTotal, c)
	tmp.Neg(tmp)
	lhs.Add(lhs, tmp)
	if !lhs.Equal(proof.A) {
		return fmt.Errorf("%w: ballot proof first equation", ErrProofInvalid)
	}

	zShift := g.NewPoint()
	zShift.Set(ZTotal)
	negG1 := g.NewPoint()
	negG1.Neg(g.g1)
	zShift.Add(zShift, negG1)

	lhs = g.NewPoint()
	lhs.ScalarMult(g.g2, proof.R)
	tmp = g.NewPoint()
	tmp.ScalarMult(zShift, c)
	tmp.Neg(tmp)
	lhs.Add(lhs, tmp)
	if !lhs.Equal(proof.B) {
		return fmt.Errorf("%w: ballot proof second equation", ErrProofInvalid)
	}
	return nil
}

// ConfirmationCode derives the receipt confirmation code of a ballot: the
// first 30 bytes of the domain-tagged digest over the ballot reference and
// its aggregated ciphertext.
func (g *Group) ConfirmationCode(ref BallotRef, RTotal, ZTotal ecc.Point) []byte {
	t := newTranscript(confirmCodeDomain)
	t.append([]byte("cc"))
	t.append(ref.ElectionID)
	t.append(ref.QuestionID)
	t.appendUint64(ref.BallotID)
	t.append(RTotal.Marshal())
	t.append(ZTotal.Marshal())
	digest := t.digest()
	return digest[:ConfirmationCodeLen]
}
