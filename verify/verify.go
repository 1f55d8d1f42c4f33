// Package verify re-checks a question's full public record from scratch.
// It reads only public data and depends only on the group algebra and the
// proof primitives, so anyone holding a dump can reproduce the verdict:
// verification is read-only and deterministic.
//
// The checks run in the order the protocol defines and the first failure
// wins: (1) every audited ballot opens correctly and proves well-formed,
// (2) every confirmed ballot proves well-formed, (3) if totals and the
// private key are supplied, every candidate's homomorphic identity holds
// and the counts are plausible.
package verify

import (
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/vocdoni/dreip-node/crypto/dreip"
	"github.com/vocdoni/dreip-node/crypto/ecc"
	"github.com/vocdoni/dreip-node/types"
)

// Verifier re-checks ballots of one question against its election group.
type Verifier struct {
	group      *dreip.Group
	electionID types.HexBytes
	questionID types.HexBytes
	candidates []string
}

// NewVerifier builds a verifier from the dump's public parameters. The
// published public key must match g2 and, when the private key is present,
// it must open g2.
func NewVerifier(d *QuestionDump) (*Verifier, error) {
	group, err := dreip.GroupFromBytes(d.CurveType, d.G1, d.G2)
	if err != nil {
		return nil, fmt.Errorf("election group: %w", err)
	}
	Y, err := dreip.PointFromBytes(d.CurveType, d.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("public key: %w", err)
	}
	if !Y.Equal(group.G2()) {
		return nil, fmt.Errorf("%w: public key does not match g2", dreip.ErrProofInvalid)
	}
	if len(d.Candidates) == 0 {
		return nil, fmt.Errorf("dump has no candidates")
	}
	if len(d.PrivateKey) > 0 {
		x, err := group.ScalarFromBytes(d.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("private key: %w", err)
		}
		if err := group.CheckPrivateKey(x); err != nil {
			return nil, err
		}
	}
	return &Verifier{
		group:      group,
		electionID: d.ElectionID,
		questionID: d.QuestionID,
		candidates: d.Candidates,
	}, nil
}

// VerifyQuestion re-verifies a full question dump, returning nil only when
// every proof and every homomorphic identity holds.
func VerifyQuestion(d *QuestionDump) error {
	v, err := NewVerifier(d)
	if err != nil {
		return err
	}
	if err := v.verifyBallots(d.AuditedBallots, v.verifyAuditedBallot); err != nil {
		return err
	}
	if err := v.verifyBallots(d.ConfirmedBallots, v.verifyConfirmedBallot); err != nil {
		return err
	}
	if d.Closed() {
		return v.verifyTotals(d)
	}
	return nil
}

// verifyBallots runs one check over a ballot list concurrently. Failures
// are collected per position and the lowest-index failure is returned, so
// the verdict does not depend on scheduling.
func (v *Verifier) verifyBallots(ballots []*types.Ballot, check func(*types.Ballot) error) error {
	failures := make([]error, len(ballots))
	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())
	for i, ballot := range ballots {
		g.Go(func() error {
			failures[i] = check(ballot)
			return nil
		})
	}
	_ = g.Wait()
	for i, err := range failures {
		if err != nil {
			return fmt.Errorf("ballot %d: %w", ballots[i].BallotID, err)
		}
	}
	return nil
}

// ballotVotes checks the ballot carries exactly one vote per candidate and
// returns them in candidate order alongside the decoded ciphertext points.
func (v *Verifier) ballotVotes(b *types.Ballot) ([]*types.Vote, []ecc.Point, []ecc.Point, error) {
	if len(b.Votes) != len(v.candidates) {
		return nil, nil, nil, fmt.Errorf("%w: ballot has %d votes for %d candidates",
			dreip.ErrProofInvalid, len(b.Votes), len(v.candidates))
	}
	votes := make([]*types.Vote, len(v.candidates))
	Rs := make([]ecc.Point, len(v.candidates))
	Zs := make([]ecc.Point, len(v.candidates))
	for i, name := range v.candidates {
		vote, ok := b.Votes[name]
		if !ok {
			return nil, nil, nil, fmt.Errorf("%w: missing vote for candidate %q", dreip.ErrProofInvalid, name)
		}
		R, err := dreip.PointFromBytes(v.group.CurveType(), vote.R)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("candidate %q R: %w", name, err)
		}
		Z, err := dreip.PointFromBytes(v.group.CurveType(), vote.Z)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("candidate %q Z: %w", name, err)
		}
		votes[i], Rs[i], Zs[i] = vote, R, Z
	}
	return votes, Rs, Zs, nil
}

func (v *Verifier) voteRef(ballotID uint64, candidate string) dreip.VoteRef {
	return dreip.VoteRef{
		ElectionID: v.electionID,
		QuestionID: v.questionID,
		BallotID:   ballotID,
		Candidate:  candidate,
	}
}

func (v *Verifier) ballotRef(ballotID uint64) dreip.BallotRef {
	return dreip.BallotRef{
		ElectionID: v.electionID,
		QuestionID: v.questionID,
		BallotID:   ballotID,
	}
}

// verifyProofs checks every per-candidate proof and the ballot-level proof
// of a ballot, shared between the audited and confirmed paths.
func (v *Verifier) verifyProofs(b *types.Ballot, votes []*types.Vote, Rs, Zs []ecc.Point) error {
	Y := v.group.PublicKey()
	for i, name := range v.candidates {
		vote := votes[i]
		if vote.PWF == nil {
			return fmt.Errorf("%w: candidate %q has no proof", dreip.ErrProofInvalid, name)
		}
		proof, err := v.decodeVoteProof(vote.PWF)
		if err != nil {
			return fmt.Errorf("candidate %q proof: %w", name, err)
		}
		if err := v.group.VerifyVote(Y, v.voteRef(b.BallotID, name), Rs[i], Zs[i], proof); err != nil {
			return fmt.Errorf("candidate %q: %w", name, err)
		}
	}

	RTotal, ZTotal := v.group.SumCiphertexts(Rs, Zs)
	if b.PWF == nil {
		return fmt.Errorf("%w: ballot has no sum proof", dreip.ErrProofInvalid)
	}
	proof, err := v.decodeBallotProof(b.PWF)
	if err != nil {
		return fmt.Errorf("ballot proof: %w", err)
	}
	return v.group.VerifyBallot(v.ballotRef(b.BallotID), RTotal, ZTotal, proof)
}

// verifyAuditedBallot checks an audited ballot: the revealed randomness and
// plaintexts open every ciphertext, the plaintexts are bits summing to one,
// and all proofs verify.
func (v *Verifier) verifyAuditedBallot(b *types.Ballot) error {
	if b.State != types.BallotStateAudited {
		return fmt.Errorf("%w: expected an audited ballot, got %s", dreip.ErrProofInvalid, b.State)
	}
	votes, Rs, Zs, err := v.ballotVotes(b)
	if err != nil {
		return err
	}
	voteSum := uint64(0)
	for i, name := range v.candidates {
		vote := votes[i]
		r, err := v.group.ScalarFromBytes(vote.Random)
		if err != nil {
			return fmt.Errorf("candidate %q randomness: %w", name, err)
		}
		value, err := v.group.ScalarFromBytes(vote.Value)
		if err != nil {
			return fmt.Errorf("candidate %q value: %w", name, err)
		}
		if !value.IsUint64() || value.Uint64() > 1 {
			return fmt.Errorf("candidate %q: %w", name, dreip.ErrInvalidVote)
		}
		if err := v.group.VerifyRevealed(Rs[i], Zs[i], r, uint8(value.Uint64())); err != nil {
			return fmt.Errorf("candidate %q: %w", name, err)
		}
		voteSum += value.Uint64()
	}
	if voteSum != 1 {
		return fmt.Errorf("%w: revealed votes sum to %d", dreip.ErrProofInvalid, voteSum)
	}
	return v.verifyProofs(b, votes, Rs, Zs)
}

// verifyConfirmedBallot checks a confirmed ballot in secret form: every
// proof verifies and no randomness leaks.
func (v *Verifier) verifyConfirmedBallot(b *types.Ballot) error {
	if b.State != types.BallotStateConfirmed {
		return fmt.Errorf("%w: expected a confirmed ballot, got %s", dreip.ErrProofInvalid, b.State)
	}
	votes, Rs, Zs, err := v.ballotVotes(b)
	if err != nil {
		return err
	}
	for i, name := range v.candidates {
		if len(votes[i].Random) > 0 || len(votes[i].Value) > 0 {
			return fmt.Errorf("%w: confirmed vote for candidate %q reveals its secrets", dreip.ErrProofInvalid, name)
		}
	}
	return v.verifyProofs(b, votes, Rs, Zs)
}

// verifyTotals checks the close-time record: for every candidate the
// published r_sum opens the sum of confirmed R ciphertexts, the published
// tally opens Z_sum − x·R_sum, the count is plausible, and the counts over
// all candidates add up to the number of confirmed ballots.
func (v *Verifier) verifyTotals(d *QuestionDump) error {
	x, err := v.group.ScalarFromBytes(d.PrivateKey)
	if err != nil {
		return fmt.Errorf("private key: %w", err)
	}
	if err := v.group.CheckPrivateKey(x); err != nil {
		return err
	}

	totals := make(map[string]*types.CandidateTotal, len(d.Totals))
	for _, total := range d.Totals {
		totals[total.CandidateName] = total
	}

	// Aggregate the confirmed ciphertexts per candidate.
	RSums := make([]ecc.Point, len(v.candidates))
	ZSums := make([]ecc.Point, len(v.candidates))
	for i := range v.candidates {
		RSums[i] = v.group.NewPoint()
		ZSums[i] = v.group.NewPoint()
	}
	for _, b := range d.ConfirmedBallots {
		_, Rs, Zs, err := v.ballotVotes(b)
		if err != nil {
			return fmt.Errorf("ballot %d: %w", b.BallotID, err)
		}
		for i := range v.candidates {
			RSums[i].Add(RSums[i], Rs[i])
			ZSums[i].Add(ZSums[i], Zs[i])
		}
	}

	confirmed := uint64(len(d.ConfirmedBallots))
	countSum := uint64(0)
	for i, name := range v.candidates {
		total, ok := totals[name]
		if !ok {
			return fmt.Errorf("%w: missing total for candidate %q", dreip.ErrProofInvalid, name)
		}
		tally, err := v.group.ScalarFromBytes(total.Tally)
		if err != nil {
			return fmt.Errorf("candidate %q tally: %w", name, err)
		}
		rSum, err := v.group.ScalarFromBytes(total.RSum)
		if err != nil {
			return fmt.Errorf("candidate %q r_sum: %w", name, err)
		}
		if err := v.group.VerifyTotals(x, tally, rSum, RSums[i], ZSums[i]); err != nil {
			return fmt.Errorf("candidate %q: %w", name, err)
		}
		if !tally.IsUint64() || tally.Uint64() > confirmed {
			return fmt.Errorf("%w: candidate %q tally %s is not a plausible count",
				dreip.ErrProofInvalid, name, tally.String())
		}
		countSum += tally.Uint64()
	}
	if countSum != confirmed {
		return fmt.Errorf("%w: counts sum to %d over %d confirmed ballots",
			dreip.ErrProofInvalid, countSum, confirmed)
	}
	return nil
}

func (v *Verifier) decodeVoteProof(p *types.VoteProof) (*dreip.VoteProof, error) {
	c1, err := v.group.ScalarFromBytes(p.C1)
	if err != nil {
		return nil, err
	}
	c2, err := v.group.ScalarFromBytes(p.C2)
	if err != nil {
		return nil, err
	}
	r1, err := v.group.ScalarFromBytes(p.R1)
	if err != nil {
		return nil, err
	}
	r2, err := v.group.ScalarFromBytes(p.R2)
	if err != nil {
		return nil, err
	}
	return &dreip.VoteProof{C1: c1, C2: c2, R1: r1, R2: r2}, nil
}

func (v *Verifier) decodeBallotProof(p *types.BallotProof) (*dreip.BallotProof, error) {
	a, err := dreip.PointFromBytes(v.group.CurveType(), p.A)
	if err != nil {
		return nil, err
	}
	b, err := dreip.PointFromBytes(v.group.CurveType(), p.B)
	if err != nil {
		return nil, err
	}
	r, err := v.group.ScalarFromBytes(p.R)
	if err != nil {
		return nil, err
	}
	return &dreip.BallotProof{A: a, B: b, R: r}, nil
}
