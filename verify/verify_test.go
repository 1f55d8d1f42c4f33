package verify

import (
	"math/big"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/vocdoni/dreip-node/crypto"
	"github.com/vocdoni/dreip-node/crypto/dreip"
	"github.com/vocdoni/dreip-node/crypto/ecc/bn254"
	"github.com/vocdoni/dreip-node/types"
)

// dumpBuilder accumulates a question dump the way the server builds one:
// minting ballots, confirming or auditing them, and keeping the running
// totals of the confirmed ones.
type dumpBuilder struct {
	t       *testing.T
	group   *dreip.Group
	x       *big.Int
	dump    *QuestionDump
	nextID  uint64
	tallies map[string]*big.Int
	rSums   map[string]*big.Int
}

func newDumpBuilder(t *testing.T, candidates []string) *dumpBuilder {
	t.Helper()
	group, x, err := dreip.GenerateElection(bn254.CurveType)
	qt.Assert(t, err, qt.IsNil)
	b := &dumpBuilder{
		t:     t,
		group: group,
		x:     x,
		dump: &QuestionDump{
			ElectionID: types.HexBytes{0x01},
			QuestionID: types.HexBytes{0x02},
			Candidates: candidates,
			CurveType:  group.CurveType(),
			G1:         group.G1().Marshal(),
			G2:         group.G2().Marshal(),
			PublicKey:  group.PublicKey().Marshal(),
		},
		tallies: map[string]*big.Int{},
		rSums:   map[string]*big.Int{},
	}
	for _, name := range candidates {
		b.tallies[name] = new(big.Int)
		b.rSums[name] = new(big.Int)
	}
	return b
}

func (b *dumpBuilder) mint(choice string) (*types.Ballot, *dreip.MintedBallot) {
	b.t.Helper()
	b.nextID++
	ref := dreip.BallotRef{ElectionID: b.dump.ElectionID, QuestionID: b.dump.QuestionID, BallotID: b.nextID}
	minted, err := b.group.GenerateBallot(b.group.PublicKey(), ref, b.dump.Candidates, choice)
	qt.Assert(b.t, err, qt.IsNil)
	votes := make(map[string]*types.Vote, len(minted.Votes))
	for name, sv := range minted.Votes {
		votes[name] = &types.Vote{
			R: sv.R.Marshal(),
			Z: sv.Z.Marshal(),
			PWF: &types.VoteProof{
				C1: crypto.ScalarToBytes(sv.Proof.C1),
				C2: crypto.ScalarToBytes(sv.Proof.C2),
				R1: crypto.ScalarToBytes(sv.Proof.R1),
				R2: crypto.ScalarToBytes(sv.Proof.R2),
			},
		}
	}
	return &types.Ballot{
		BallotID:     b.nextID,
		ElectionID:   b.dump.ElectionID,
		QuestionID:   b.dump.QuestionID,
		CreationTime: time.Now().UTC(),
		Votes:        votes,
		PWF: &types.BallotProof{
			A: minted.Proof.A.Marshal(),
			B: minted.Proof.B.Marshal(),
			R: crypto.ScalarToBytes(minted.Proof.R),
		},
	}, minted
}

func (b *dumpBuilder) confirm(choice string) {
	b.t.Helper()
	ballot, minted := b.mint(choice)
	ballot.State = types.BallotStateConfirmed
	for name, sv := range minted.Votes {
		b.tallies[name].Add(b.tallies[name], big.NewInt(int64(sv.Value)))
		b.rSums[name].Add(b.rSums[name], sv.Random)
		b.rSums[name].Mod(b.rSums[name], b.group.Order())
	}
	b.dump.ConfirmedBallots = append(b.dump.ConfirmedBallots, ballot)
}

func (b *dumpBuilder) audit(choice string) {
	b.t.Helper()
	ballot, minted := b.mint(choice)
	ballot.State = types.BallotStateAudited
	for name, sv := range minted.Votes {
		vote := ballot.Votes[name]
		vote.Random = crypto.ScalarToBytes(sv.Random)
		vote.Value = crypto.ScalarToBytes(big.NewInt(int64(sv.Value)))
	}
	b.dump.AuditedBallots = append(b.dump.AuditedBallots, ballot)
}

// close publishes the totals and the private key.
func (b *dumpBuilder) close() {
	b.t.Helper()
	b.dump.PrivateKey = crypto.ScalarToBytes(b.x)
	b.dump.Totals = nil
	for _, name := range b.dump.Candidates {
		b.dump.Totals = append(b.dump.Totals, &types.CandidateTotal{
			ElectionID:    b.dump.ElectionID,
			QuestionID:    b.dump.QuestionID,
			CandidateName: name,
			Tally:         crypto.ScalarToBytes(b.tallies[name]),
			RSum:          crypto.ScalarToBytes(b.rSums[name]),
		})
	}
}

func TestVerifyClosedQuestion(t *testing.T) {
	c := qt.New(t)
	b := newDumpBuilder(t, []string{"alice", "bob"})

	// Three confirmed ballots (alice, alice, bob), one audited, closed.
	b.confirm("alice")
	b.confirm("alice")
	b.confirm("bob")
	b.audit("alice")
	b.close()

	c.Assert(VerifyQuestion(b.dump), qt.IsNil)
	c.Assert(new(big.Int).SetBytes(b.dump.Totals[0].Tally).Uint64(), qt.Equals, uint64(2))
	c.Assert(new(big.Int).SetBytes(b.dump.Totals[1].Tally).Uint64(), qt.Equals, uint64(1))
}

func TestVerifyOpenQuestion(t *testing.T) {
	c := qt.New(t)
	b := newDumpBuilder(t, []string{"alice", "bob"})
	b.confirm("bob")
	b.audit("bob")

	// Without totals and private key only steps 1 and 2 run.
	c.Assert(VerifyQuestion(b.dump), qt.IsNil)
}

func TestVerifyDetectsTamperedCiphertext(t *testing.T) {
	c := qt.New(t)
	b := newDumpBuilder(t, []string{"alice", "bob"})
	b.confirm("alice")
	b.confirm("bob")
	b.close()

	// Flip a bit in one confirmed Z: the per-candidate proof no longer
	// verifies and the homomorphic identity breaks.
	z := b.dump.ConfirmedBallots[0].Votes["alice"].Z
	tampered := make(types.B64Bytes, len(z))
	copy(tampered, z)
	tampered[len(tampered)-1] ^= 0x01
	b.dump.ConfirmedBallots[0].Votes["alice"].Z = tampered

	err := VerifyQuestion(b.dump)
	c.Assert(err, qt.IsNotNil)
}

func TestVerifyDetectsWrongTotals(t *testing.T) {
	c := qt.New(t)
	b := newDumpBuilder(t, []string{"alice", "bob"})
	b.confirm("alice")
	b.close()

	// Claiming one extra vote for bob must fail the tally identity.
	for _, total := range b.dump.Totals {
		if total.CandidateName == "bob" {
			total.Tally = crypto.ScalarToBytes(big.NewInt(1))
		}
	}
	c.Assert(VerifyQuestion(b.dump), qt.ErrorIs, dreip.ErrProofInvalid)
}

func TestVerifyDetectsRevealedMismatch(t *testing.T) {
	c := qt.New(t)
	b := newDumpBuilder(t, []string{"alice", "bob"})
	b.audit("alice")

	// Claim the audited ballot voted bob instead: the revealed plaintexts
	// no longer open the ciphertexts.
	votes := b.dump.AuditedBallots[0].Votes
	votes["alice"].Value = crypto.ScalarToBytes(big.NewInt(0))
	votes["bob"].Value = crypto.ScalarToBytes(big.NewInt(1))

	c.Assert(VerifyQuestion(b.dump), qt.ErrorIs, dreip.ErrProofInvalid)
}

func TestVerifyDetectsDoubleVoteBallot(t *testing.T) {
	c := qt.New(t)
	b := newDumpBuilder(t, []string{"alice", "bob"})

	// Hand-craft a confirmed ballot with v=1 for both candidates. Every
	// per-candidate proof is individually valid; only the ballot-level
	// proof can catch the miscount.
	b.nextID++
	ref := dreip.BallotRef{ElectionID: b.dump.ElectionID, QuestionID: b.dump.QuestionID, BallotID: b.nextID}
	votes := map[string]*types.Vote{}
	rTotal := new(big.Int)
	RTotal := b.group.NewPoint()
	ZTotal := b.group.NewPoint()
	for _, name := range b.dump.Candidates {
		r, err := crypto.RandScalar(b.group.Order())
		c.Assert(err, qt.IsNil)
		R, Z, err := b.group.EncryptVote(r, 1)
		c.Assert(err, qt.IsNil)
		voteRef := dreip.VoteRef{ElectionID: ref.ElectionID, QuestionID: ref.QuestionID, BallotID: ref.BallotID, Candidate: name}
		proof, err := b.group.ProveVote(b.group.PublicKey(), voteRef, R, Z, r, 1)
		c.Assert(err, qt.IsNil)
		c.Assert(b.group.VerifyVote(b.group.PublicKey(), voteRef, R, Z, proof), qt.IsNil)
		votes[name] = &types.Vote{
			R: R.Marshal(),
			Z: Z.Marshal(),
			PWF: &types.VoteProof{
				C1: crypto.ScalarToBytes(proof.C1),
				C2: crypto.ScalarToBytes(proof.C2),
				R1: crypto.ScalarToBytes(proof.R1),
				R2: crypto.ScalarToBytes(proof.R2),
			},
		}
		rTotal.Add(rTotal, r)
		rTotal.Mod(rTotal, b.group.Order())
		RTotal.Add(RTotal, R)
		ZTotal.Add(ZTotal, Z)
	}
	sumProof, err := b.group.ProveBallot(ref, rTotal, RTotal, ZTotal)
	c.Assert(err, qt.IsNil)
	b.dump.ConfirmedBallots = append(b.dump.ConfirmedBallots, &types.Ballot{
		BallotID:   b.nextID,
		ElectionID: b.dump.ElectionID,
		QuestionID: b.dump.QuestionID,
		State:      types.BallotStateConfirmed,
		Votes:      votes,
		PWF: &types.BallotProof{
			A: sumProof.A.Marshal(),
			B: sumProof.B.Marshal(),
			R: crypto.ScalarToBytes(sumProof.R),
		},
	})

	c.Assert(VerifyQuestion(b.dump), qt.ErrorIs, dreip.ErrProofInvalid)
}

func TestDumpRoundTrip(t *testing.T) {
	c := qt.New(t)
	b := newDumpBuilder(t, []string{"alice", "bob"})
	b.confirm("alice")
	b.audit("bob")
	b.close()

	// CBOR archive round-trip.
	encoded, err := EncodeDump(b.dump)
	c.Assert(err, qt.IsNil)
	decoded, err := DecodeDump(encoded)
	c.Assert(err, qt.IsNil)
	c.Assert(VerifyQuestion(decoded), qt.IsNil)
	c.Assert(decoded.ElectionID.Equal(b.dump.ElectionID), qt.IsTrue)
	c.Assert(decoded.ConfirmedBallots, qt.HasLen, 1)
	c.Assert(decoded.AuditedBallots, qt.HasLen, 1)
}
