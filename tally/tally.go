// Package tally maintains the homomorphic per-candidate accumulators: for
// every (election, question, candidate) a running tally of confirmed
// 1-votes and the sum of their encryption randomness, both scalars of the
// election group. The accumulator never touches the database's integer
// arithmetic: scalars travel in their serialized 32-byte form and all
// additions happen in-process, guarded by optimistic concurrency on a
// version field.
package tally

import (
	"context"
	"fmt"
	"math/big"

	"github.com/vocdoni/dreip-node/crypto"
	"github.com/vocdoni/dreip-node/types"
)

// maxRetries bounds the optimistic retry loop of one increment. Contention
// is one writer per confirm call per candidate, so a lost race is rare.
const maxRetries = 5

// Store is the persistence surface the accumulator needs.
type Store interface {
	CandidateTotal(ctx context.Context, electionID, questionID types.HexBytes, candidate string) (*types.CandidateTotal, error)
	SaveCandidateTotal(ctx context.Context, total *types.CandidateTotal, expectedVersion uint64) error
	CandidateTotals(ctx context.Context, electionID, questionID types.HexBytes) ([]*types.CandidateTotal, error)
}

// Accumulator performs scalar arithmetic over stored candidate totals.
type Accumulator struct {
	store Store
	order *big.Int
}

// NewAccumulator creates an accumulator for a group of the given order.
func NewAccumulator(store Store, order *big.Int) *Accumulator {
	return &Accumulator{store: store, order: order}
}

// Increment adds a confirmed vote's plaintext v and randomness r to one
// candidate's accumulator: tally += v, r_sum += r, both mod q. Lost
// optimistic races are retried a bounded number of times; the last error is
// returned when retries run out.
func (a *Accumulator) Increment(ctx context.Context, electionID, questionID types.HexBytes, candidate string, v, r *big.Int) error {
	var lastErr error
	for range maxRetries {
		total, err := a.store.CandidateTotal(ctx, electionID, questionID, candidate)
		if err != nil {
			return err
		}
		tally, err := crypto.ScalarFromBytes(a.order, total.Tally)
		if err != nil {
			return fmt.Errorf("stored tally: %w", err)
		}
		rSum, err := crypto.ScalarFromBytes(a.order, total.RSum)
		if err != nil {
			return fmt.Errorf("stored r_sum: %w", err)
		}
		tally.Add(tally, v)
		tally.Mod(tally, a.order)
		rSum.Add(rSum, r)
		rSum.Mod(rSum, a.order)

		next := *total
		next.Tally = crypto.ScalarToBytes(tally)
		next.RSum = crypto.ScalarToBytes(rSum)
		if err := a.store.SaveCandidateTotal(ctx, &next, total.Version); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("candidate total update lost %d races: %w", maxRetries, lastErr)
}

// Result is one candidate's published count at election close.
type Result struct {
	CandidateName string         `json:"candidateName"`
	Count         *types.BigInt  `json:"count"`
	Tally         types.B64Bytes `json:"tally"`
	RSum          types.B64Bytes `json:"rSum"`
}

// Results decodes the accumulator documents of a question into candidate
// counts. The tally scalar of a well-formed election is the plain integer
// number of confirmed 1-votes, so the decoded value is the count itself.
func (a *Accumulator) Results(ctx context.Context, electionID, questionID types.HexBytes) ([]Result, error) {
	totals, err := a.store.CandidateTotals(ctx, electionID, questionID)
	if err != nil {
		return nil, err
	}
	results := make([]Result, 0, len(totals))
	for _, total := range totals {
		tally, err := crypto.ScalarFromBytes(a.order, total.Tally)
		if err != nil {
			return nil, fmt.Errorf("stored tally for %q: %w", total.CandidateName, err)
		}
		results = append(results, Result{
			CandidateName: total.CandidateName,
			Count:         (*types.BigInt)(tally),
			Tally:         total.Tally,
			RSum:          total.RSum,
		})
	}
	return results, nil
}
