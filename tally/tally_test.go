package tally

import (
	"context"
	"math/big"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/vocdoni/dreip-node/crypto"
	"github.com/vocdoni/dreip-node/crypto/dreip"
	"github.com/vocdoni/dreip-node/crypto/ecc/bn254"
	"github.com/vocdoni/dreip-node/internal/storetest"
	"github.com/vocdoni/dreip-node/storage"
	"github.com/vocdoni/dreip-node/types"
)

func TestIncrementAndResults(t *testing.T) {
	c := qt.New(t)
	group, _, err := dreip.GenerateElection(bn254.CurveType)
	c.Assert(err, qt.IsNil)

	store := storetest.New()
	acc := NewAccumulator(store, group.Order())
	ctx := context.Background()
	eid := types.HexBytes{0x01}
	qid := types.HexBytes{0x02}

	// Confirm three votes for alice (1,1,0) and accumulate randomness.
	rSum := new(big.Int)
	for _, v := range []int64{1, 1, 0} {
		r, err := crypto.RandScalar(group.Order())
		c.Assert(err, qt.IsNil)
		c.Assert(acc.Increment(ctx, eid, qid, "alice", big.NewInt(v), r), qt.IsNil)
		rSum.Add(rSum, r)
		rSum.Mod(rSum, group.Order())
	}

	total, err := store.CandidateTotal(ctx, eid, qid, "alice")
	c.Assert(err, qt.IsNil)
	c.Assert(new(big.Int).SetBytes(total.Tally).Uint64(), qt.Equals, uint64(2))
	c.Assert([]byte(total.RSum), qt.DeepEquals, crypto.ScalarToBytes(rSum))
	// Each increment bumps the version.
	c.Assert(total.Version, qt.Equals, uint64(3))

	results, err := acc.Results(ctx, eid, qid)
	c.Assert(err, qt.IsNil)
	c.Assert(results, qt.HasLen, 1)
	c.Assert(results[0].CandidateName, qt.Equals, "alice")
	c.Assert(results[0].Count.String(), qt.Equals, "2")
}

// conflictStore loses every optimistic write.
type conflictStore struct {
	*storetest.MemStore
}

func (s *conflictStore) SaveCandidateTotal(context.Context, *types.CandidateTotal, uint64) error {
	return storage.ErrConflict
}

func TestIncrementGivesUpAfterRetries(t *testing.T) {
	c := qt.New(t)
	group, _, err := dreip.GenerateElection(bn254.CurveType)
	c.Assert(err, qt.IsNil)

	acc := NewAccumulator(&conflictStore{storetest.New()}, group.Order())
	err = acc.Increment(context.Background(), types.HexBytes{0x01}, types.HexBytes{0x02},
		"alice", big.NewInt(1), big.NewInt(7))
	c.Assert(err, qt.ErrorIs, storage.ErrConflict)
}
