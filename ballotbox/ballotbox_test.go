package ballotbox

import (
	"context"
	"math/big"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/vocdoni/dreip-node/crypto"
	"github.com/vocdoni/dreip-node/crypto/dreip"
	"github.com/vocdoni/dreip-node/crypto/ecc/bn254"
	"github.com/vocdoni/dreip-node/internal/storetest"
	"github.com/vocdoni/dreip-node/types"
)

var testSecret = []byte("test-receipt-hmac-secret")

// newTestElection creates a published two-candidate election backed by a
// fresh key pair, registered in the given store.
func newTestElection(t *testing.T, store *storetest.MemStore) (*types.Election, *dreip.Group, *big.Int) {
	t.Helper()
	group, x, err := dreip.GenerateElection(bn254.CurveType)
	qt.Assert(t, err, qt.IsNil)
	e := &types.Election{
		ID:    types.HexBytes{0x01, 0x02},
		Name:  "test election",
		State: types.ElectionStatePublished,
		Questions: []types.Question{{
			ID:          types.HexBytes{0xaa},
			Description: "who?",
			Candidates:  []string{"alice", "bob"},
		}, {
			ID:          types.HexBytes{0xbb},
			Description: "restricted",
			Candidates:  []string{"yes", "no"},
			Constraint:  map[string][]string{"students": {"union"}},
		}},
		Crypto: types.CryptoParams{
			CurveType:  group.CurveType(),
			G1:         group.G1().Marshal(),
			G2:         group.G2().Marshal(),
			PublicKey:  group.PublicKey().Marshal(),
			PrivateKey: crypto.ScalarToBytes(x),
		},
	}
	store.PutElection(e)
	return e, group, x
}

func tallyOf(t *testing.T, store *storetest.MemStore, e *types.Election, qid types.HexBytes, candidate string) uint64 {
	t.Helper()
	total, err := store.CandidateTotal(context.Background(), e.ID, qid, candidate)
	qt.Assert(t, err, qt.IsNil)
	v := new(big.Int).SetBytes(total.Tally)
	return v.Uint64()
}

func TestCast(t *testing.T) {
	c := qt.New(t)
	store := storetest.New()
	e, _, _ := newTestElection(t, store)
	engine := New(store, testSecret)
	ctx := context.Background()
	qid := e.Questions[0].ID

	receipts, err := engine.Cast(ctx, e.ID, qid, []string{"alice"})
	c.Assert(err, qt.IsNil)
	c.Assert(receipts, qt.HasLen, 1)

	receipt := receipts[0]
	c.Assert(receipt.Ballot.BallotID, qt.Equals, uint64(1))
	c.Assert(receipt.Ballot.State, qt.Equals, types.BallotStateUnconfirmed)
	c.Assert(receipt.ConfirmationCode, qt.HasLen, dreip.ConfirmationCodeLen)

	// The receipt is in secret form: no randomness, no plaintext.
	for _, vote := range receipt.Ballot.Votes {
		c.Assert(vote.Random, qt.HasLen, 0)
		c.Assert(vote.Value, qt.HasLen, 0)
		c.Assert(vote.PWF, qt.IsNotNil)
	}

	// The detached signature authenticates the receipt offline.
	ref := types.BallotRef{ElectionID: e.ID, QuestionID: qid, BallotID: 1}
	c.Assert(engine.Signer().Verify(ref, types.BallotStateUnconfirmed, receipt.Signature), qt.IsNil)

	// Ballot IDs are allocated monotonically.
	receipts, err = engine.Cast(ctx, e.ID, qid, []string{"bob", "alice"})
	c.Assert(err, qt.IsNil)
	c.Assert(receipts[0].Ballot.BallotID, qt.Equals, uint64(2))
	c.Assert(receipts[1].Ballot.BallotID, qt.Equals, uint64(3))

	// No tally movement before confirmation.
	c.Assert(tallyOf(t, store, e, qid, "alice"), qt.Equals, uint64(0))

	// Unknown candidate is rejected.
	_, err = engine.Cast(ctx, e.ID, qid, []string{"mallory"})
	c.Assert(err, qt.ErrorIs, ErrConstraintViolation)

	// Unknown question is rejected.
	_, err = engine.Cast(ctx, e.ID, types.HexBytes{0xff}, []string{"alice"})
	c.Assert(err, qt.ErrorIs, ErrNotFound)
}

func TestAuditRevealsButDoesNotCount(t *testing.T) {
	c := qt.New(t)
	store := storetest.New()
	e, _, _ := newTestElection(t, store)
	engine := New(store, testSecret)
	ctx := context.Background()
	qid := e.Questions[0].ID

	receipts, err := engine.Cast(ctx, e.ID, qid, []string{"alice"})
	c.Assert(err, qt.IsNil)
	ref := types.BallotRef{ElectionID: e.ID, QuestionID: qid, BallotID: receipts[0].Ballot.BallotID}

	audited, err := engine.Audit(ctx, []SignedRef{{Ref: ref, Signature: receipts[0].Signature}})
	c.Assert(err, qt.IsNil)
	c.Assert(audited, qt.HasLen, 1)
	c.Assert(audited[0].Ballot.State, qt.Equals, types.BallotStateAudited)

	// The audited receipt exposes the plaintexts: alice voted 1, bob 0.
	one := crypto.ScalarToBytes(big.NewInt(1))
	zero := crypto.ScalarToBytes(big.NewInt(0))
	c.Assert([]byte(audited[0].Ballot.Votes["alice"].Value), qt.DeepEquals, one)
	c.Assert([]byte(audited[0].Ballot.Votes["bob"].Value), qt.DeepEquals, zero)
	c.Assert(audited[0].Ballot.Votes["alice"].Random, qt.Not(qt.HasLen), 0)

	// Audit never reaches the tally.
	c.Assert(tallyOf(t, store, e, qid, "alice"), qt.Equals, uint64(0))

	// Audited is terminal: no confirm, no second audit.
	voter := types.Voter{ID: types.HexBytes{0x10}}
	_, err = engine.Confirm(ctx, voter, []SignedRef{{Ref: ref, Signature: receipts[0].Signature}})
	c.Assert(err, qt.ErrorIs, ErrWrongState)
	_, err = engine.Audit(ctx, []SignedRef{{Ref: ref, Signature: receipts[0].Signature}})
	c.Assert(err, qt.ErrorIs, ErrWrongState)
}

func TestConfirmCountsAndStripsSecrets(t *testing.T) {
	c := qt.New(t)
	store := storetest.New()
	e, _, _ := newTestElection(t, store)
	engine := New(store, testSecret)
	ctx := context.Background()
	qid := e.Questions[0].ID

	// Three voters: alice, alice, bob.
	for i, choice := range []string{"alice", "alice", "bob"} {
		receipts, err := engine.Cast(ctx, e.ID, qid, []string{choice})
		c.Assert(err, qt.IsNil)
		voter := types.Voter{ID: types.HexBytes{byte(0x10 + i)}}
		ref := types.BallotRef{ElectionID: e.ID, QuestionID: qid, BallotID: receipts[0].Ballot.BallotID}
		confirmed, err := engine.Confirm(ctx, voter, []SignedRef{{Ref: ref, Signature: receipts[0].Signature}})
		c.Assert(err, qt.IsNil)
		c.Assert(confirmed[0].Ballot.State, qt.Equals, types.BallotStateConfirmed)
		// Confirmed receipts never reveal randomness.
		for _, vote := range confirmed[0].Ballot.Votes {
			c.Assert(vote.Random, qt.HasLen, 0)
			c.Assert(vote.Value, qt.HasLen, 0)
		}
	}

	c.Assert(tallyOf(t, store, e, qid, "alice"), qt.Equals, uint64(2))
	c.Assert(tallyOf(t, store, e, qid, "bob"), qt.Equals, uint64(1))

	// The stored confirmed ballots have their secrets discarded for good.
	b, err := store.Ballot(ctx, types.BallotRef{ElectionID: e.ID, QuestionID: qid, BallotID: 1})
	c.Assert(err, qt.IsNil)
	for _, vote := range b.Votes {
		c.Assert(vote.Random, qt.HasLen, 0)
	}
}

func TestDoubleConfirmRejected(t *testing.T) {
	c := qt.New(t)
	store := storetest.New()
	e, _, _ := newTestElection(t, store)
	engine := New(store, testSecret)
	ctx := context.Background()
	qid := e.Questions[0].ID
	voter := types.Voter{ID: types.HexBytes{0x42}}

	// The voter casts two ballots, audits one, then tries to confirm both.
	receipts, err := engine.Cast(ctx, e.ID, qid, []string{"alice", "bob"})
	c.Assert(err, qt.IsNil)
	ref0 := types.BallotRef{ElectionID: e.ID, QuestionID: qid, BallotID: receipts[0].Ballot.BallotID}
	ref1 := types.BallotRef{ElectionID: e.ID, QuestionID: qid, BallotID: receipts[1].Ballot.BallotID}

	_, err = engine.Audit(ctx, []SignedRef{{Ref: ref0, Signature: receipts[0].Signature}})
	c.Assert(err, qt.IsNil)

	_, err = engine.Confirm(ctx, voter, []SignedRef{{Ref: ref1, Signature: receipts[1].Signature}})
	c.Assert(err, qt.IsNil)

	// A third ballot by the same voter cannot be confirmed.
	receipts, err = engine.Cast(ctx, e.ID, qid, []string{"alice"})
	c.Assert(err, qt.IsNil)
	ref2 := types.BallotRef{ElectionID: e.ID, QuestionID: qid, BallotID: receipts[0].Ballot.BallotID}
	_, err = engine.Confirm(ctx, voter, []SignedRef{{Ref: ref2, Signature: receipts[0].Signature}})
	c.Assert(err, qt.ErrorIs, ErrAlreadyConfirmed)

	c.Assert(tallyOf(t, store, e, qid, "alice"), qt.Equals, uint64(0))
	c.Assert(tallyOf(t, store, e, qid, "bob"), qt.Equals, uint64(1))
}

func TestConfirmBatchIsAtomic(t *testing.T) {
	c := qt.New(t)
	store := storetest.New()
	e, _, _ := newTestElection(t, store)
	engine := New(store, testSecret)
	ctx := context.Background()
	qid := e.Questions[0].ID
	voter := types.Voter{ID: types.HexBytes{0x43}}

	receipts, err := engine.Cast(ctx, e.ID, qid, []string{"alice", "bob"})
	c.Assert(err, qt.IsNil)
	ref0 := types.BallotRef{ElectionID: e.ID, QuestionID: qid, BallotID: receipts[0].Ballot.BallotID}
	ref1 := types.BallotRef{ElectionID: e.ID, QuestionID: qid, BallotID: receipts[1].Ballot.BallotID}

	// Confirming both in one request violates the single-confirmation rule
	// on the second item, so neither may transition.
	_, err = engine.Confirm(ctx, voter, []SignedRef{
		{Ref: ref0, Signature: receipts[0].Signature},
		{Ref: ref1, Signature: receipts[1].Signature},
	})
	c.Assert(err, qt.ErrorIs, ErrAlreadyConfirmed)

	b, err := store.Ballot(ctx, ref0)
	c.Assert(err, qt.IsNil)
	c.Assert(b.State, qt.Equals, types.BallotStateUnconfirmed)
	c.Assert(tallyOf(t, store, e, qid, "alice"), qt.Equals, uint64(0))
}

func TestSignatureInvalid(t *testing.T) {
	c := qt.New(t)
	store := storetest.New()
	e, _, _ := newTestElection(t, store)
	engine := New(store, testSecret)
	ctx := context.Background()
	qid := e.Questions[0].ID

	receipts, err := engine.Cast(ctx, e.ID, qid, []string{"alice"})
	c.Assert(err, qt.IsNil)
	ref := types.BallotRef{ElectionID: e.ID, QuestionID: qid, BallotID: receipts[0].Ballot.BallotID}

	bad := make(types.B64Bytes, len(receipts[0].Signature))
	copy(bad, receipts[0].Signature)
	bad[0] ^= 0xff
	_, err = engine.Audit(ctx, []SignedRef{{Ref: ref, Signature: bad}})
	c.Assert(err, qt.ErrorIs, ErrSignatureInvalid)

	// A signature over a different ballot does not transfer.
	other := ref
	other.BallotID++
	_, err = engine.Audit(ctx, []SignedRef{{Ref: other, Signature: receipts[0].Signature}})
	c.Assert(err, qt.ErrorIs, ErrSignatureInvalid)
}

func TestExpiredBallot(t *testing.T) {
	c := qt.New(t)
	store := storetest.New()
	e, _, _ := newTestElection(t, store)
	engine := New(store, testSecret)
	ctx := context.Background()
	qid := e.Questions[0].ID

	receipts, err := engine.Cast(ctx, e.ID, qid, []string{"alice"})
	c.Assert(err, qt.IsNil)
	ref := types.BallotRef{ElectionID: e.ID, QuestionID: qid, BallotID: receipts[0].Ballot.BallotID}

	// TTL expiry deletes unconfirmed ballots; a late audit finds nothing.
	store.DropBallot(ref)
	_, err = engine.Audit(ctx, []SignedRef{{Ref: ref, Signature: receipts[0].Signature}})
	c.Assert(err, qt.ErrorIs, ErrNotFound)
}

func TestGroupConstraint(t *testing.T) {
	c := qt.New(t)
	store := storetest.New()
	e, _, _ := newTestElection(t, store)
	engine := New(store, testSecret)
	ctx := context.Background()
	qid := e.Questions[1].ID // constrained to students/union

	receipts, err := engine.Cast(ctx, e.ID, qid, []string{"yes"})
	c.Assert(err, qt.IsNil)
	ref := types.BallotRef{ElectionID: e.ID, QuestionID: qid, BallotID: receipts[0].Ballot.BallotID}
	item := SignedRef{Ref: ref, Signature: receipts[0].Signature}

	outsider := types.Voter{ID: types.HexBytes{0x50}, Electorate: "staff", Groups: []string{"union"}}
	_, err = engine.Confirm(ctx, outsider, []SignedRef{item})
	c.Assert(err, qt.ErrorIs, ErrConstraintViolation)

	member := types.Voter{ID: types.HexBytes{0x51}, Electorate: "students", Groups: []string{"union"}}
	_, err = engine.Confirm(ctx, member, []SignedRef{item})
	c.Assert(err, qt.IsNil)

	// The constraint restricts confirm only; anyone could audit.
	c.Assert(tallyOf(t, store, e, qid, "yes"), qt.Equals, uint64(1))
}

func TestFetchReceipt(t *testing.T) {
	c := qt.New(t)
	store := storetest.New()
	e, _, _ := newTestElection(t, store)
	engine := New(store, testSecret)
	ctx := context.Background()
	qid := e.Questions[0].ID

	receipts, err := engine.Cast(ctx, e.ID, qid, []string{"bob"})
	c.Assert(err, qt.IsNil)
	ref := types.BallotRef{ElectionID: e.ID, QuestionID: qid, BallotID: receipts[0].Ballot.BallotID}

	// The public receipt of an unconfirmed ballot is stripped and carries
	// the same confirmation code as the cast receipt.
	fetched, err := engine.FetchReceipt(ctx, ref)
	c.Assert(err, qt.IsNil)
	c.Assert(fetched.ConfirmationCode.Equal(receipts[0].ConfirmationCode), qt.IsTrue)
	for _, vote := range fetched.Ballot.Votes {
		c.Assert(vote.Random, qt.HasLen, 0)
	}

	// After audit the fetched receipt is in revealed form.
	_, err = engine.Audit(ctx, []SignedRef{{Ref: ref, Signature: receipts[0].Signature}})
	c.Assert(err, qt.IsNil)
	fetched, err = engine.FetchReceipt(ctx, ref)
	c.Assert(err, qt.IsNil)
	c.Assert(fetched.Ballot.State, qt.Equals, types.BallotStateAudited)
	c.Assert(fetched.Ballot.Votes["bob"].Random, qt.Not(qt.HasLen), 0)

	_, err = engine.FetchReceipt(ctx, types.BallotRef{ElectionID: e.ID, QuestionID: qid, BallotID: 99})
	c.Assert(err, qt.ErrorIs, ErrNotFound)
}
