// Package ballotbox is the ballot engine: it mints, audits and confirms
// DRE-ip ballots, driving the one-way state machine
//
//	Unconfirmed ──audit──▶   Audited   (terminal, revealed)
//	Unconfirmed ──confirm──▶ Confirmed (terminal, counted)
//
// Confirm is the only write path into the tally accumulators, and commits
// the state transition and every accumulator update as one transaction.
// All operations take the full list of requested ballots and transition
// either all of them or none.
package ballotbox

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/vocdoni/dreip-node/crypto/dreip"
	"github.com/vocdoni/dreip-node/log"
	"github.com/vocdoni/dreip-node/tally"
	"github.com/vocdoni/dreip-node/types"
)

// Store is the persistence surface the engine drives. *storage.Storage
// implements it.
type Store interface {
	ElectionGroup(ctx context.Context, id types.HexBytes) (*types.Election, *dreip.Group, error)
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
	NextBallotID(ctx context.Context, electionID, questionID types.HexBytes) (uint64, error)
	InsertBallot(ctx context.Context, b *types.Ballot) error
	Ballot(ctx context.Context, ref types.BallotRef) (*types.Ballot, error)
	SetBallotAudited(ctx context.Context, ref types.BallotRef) error
	SetBallotConfirmed(ctx context.Context, ref types.BallotRef, votes map[string]*types.Vote) error
	RecordConfirmation(ctx context.Context, ref types.BallotRef, voterID types.HexBytes) error

	tally.Store
}

// SignedRef is a ballot reference authenticated by its receipt signature.
type SignedRef struct {
	Ref       types.BallotRef
	Signature types.B64Bytes
}

// Engine is the ballot engine.
type Engine struct {
	store  Store
	signer *Signer
}

// New creates a ballot engine over the given store and receipt-signing
// secret.
func New(store Store, hmacSecret []byte) *Engine {
	return &Engine{store: store, signer: NewSigner(hmacSecret)}
}

// Signer exposes the engine's receipt signer.
func (e *Engine) Signer() *Signer {
	return e.signer
}

func dreipRef(ref types.BallotRef) dreip.BallotRef {
	return dreip.BallotRef{
		ElectionID: ref.ElectionID,
		QuestionID: ref.QuestionID,
		BallotID:   ref.BallotID,
	}
}

// Cast mints one unconfirmed ballot per requested candidate choice. Each
// ballot gets its ID from the question's atomic counter, per-candidate
// ciphertexts and proofs, the sum-to-one proof, a confirmation code and a
// signed receipt. The returned receipts mirror the input order.
func (e *Engine) Cast(ctx context.Context, electionID, questionID types.HexBytes, choices []string) ([]*types.Receipt, error) {
	elec, group, err := e.store.ElectionGroup(ctx, electionID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	question, err := e.runningQuestion(elec, questionID)
	if err != nil {
		return nil, err
	}

	receipts := make([]*types.Receipt, 0, len(choices))
	err = e.store.WithTransaction(ctx, func(sc context.Context) error {
		receipts = receipts[:0]
		for _, choice := range choices {
			if !question.HasCandidate(choice) {
				return fmt.Errorf("%w: unknown candidate %q", ErrConstraintViolation, choice)
			}
			ballotID, err := e.store.NextBallotID(sc, electionID, questionID)
			if err != nil {
				return mapStoreErr(err)
			}
			ref := types.BallotRef{ElectionID: electionID, QuestionID: questionID, BallotID: ballotID}
			minted, err := group.GenerateBallot(group.PublicKey(), dreipRef(ref), question.Candidates, choice)
			if err != nil {
				return fmt.Errorf("mint ballot: %w", err)
			}
			votes := make(map[string]*types.Vote, len(minted.Votes))
			for name, sv := range minted.Votes {
				votes[name] = voteRecord(sv)
			}
			ballot := &types.Ballot{
				BallotID:     ballotID,
				ElectionID:   electionID,
				QuestionID:   questionID,
				CreationTime: time.Now().UTC(),
				State:        types.BallotStateUnconfirmed,
				Votes:        votes,
				PWF:          ballotProofRecord(minted.Proof),
			}
			if err := e.store.InsertBallot(sc, ballot); err != nil {
				return mapStoreErr(err)
			}
			receipts = append(receipts, &types.Receipt{
				Ballot:           ballot.PublicView(),
				ConfirmationCode: minted.ConfirmationCode,
				Signature:        e.signer.Sign(ref, types.BallotStateUnconfirmed),
			})
		}
		return nil
	})
	if err != nil {
		return nil, mapStoreErr(err)
	}
	log.Infow("ballots cast",
		"electionId", electionID.String(), "questionId", questionID.String(), "count", len(receipts))
	return receipts, nil
}

// Audit transitions the referenced ballots from Unconfirmed to Audited,
// making their randomness and plaintexts public. Audited ballots never
// reach the tally. Either every referenced ballot transitions or none does.
func (e *Engine) Audit(ctx context.Context, items []SignedRef) ([]*types.Receipt, error) {
	receipts := make([]*types.Receipt, 0, len(items))
	err := e.store.WithTransaction(ctx, func(sc context.Context) error {
		receipts = receipts[:0]
		for _, item := range items {
			if err := e.signer.Verify(item.Ref, types.BallotStateUnconfirmed, item.Signature); err != nil {
				return err
			}
			if err := e.store.SetBallotAudited(sc, item.Ref); err != nil {
				return mapStoreErr(err)
			}
			_, group, err := e.store.ElectionGroup(sc, item.Ref.ElectionID)
			if err != nil {
				return mapStoreErr(err)
			}
			ballot, err := e.store.Ballot(sc, item.Ref)
			if err != nil {
				return mapStoreErr(err)
			}
			receipt, err := e.buildReceipt(group, ballot)
			if err != nil {
				return err
			}
			receipts = append(receipts, receipt)
		}
		return nil
	})
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return receipts, nil
}

// Confirm transitions the referenced ballots from Unconfirmed to Confirmed
// for the given voter, incrementing every affected candidate accumulator in
// the same transaction. It enforces the question's group constraint and the
// one-confirmed-ballot-per-voter rule.
func (e *Engine) Confirm(ctx context.Context, voter types.Voter, items []SignedRef) ([]*types.Receipt, error) {
	receipts := make([]*types.Receipt, 0, len(items))
	err := e.store.WithTransaction(ctx, func(sc context.Context) error {
		receipts = receipts[:0]
		for _, item := range items {
			if err := e.signer.Verify(item.Ref, types.BallotStateUnconfirmed, item.Signature); err != nil {
				return err
			}
			elec, group, err := e.store.ElectionGroup(sc, item.Ref.ElectionID)
			if err != nil {
				return mapStoreErr(err)
			}
			question, err := e.runningQuestion(elec, item.Ref.QuestionID)
			if err != nil {
				return err
			}
			if !question.AllowsVoter(voter.Electorate, voter.Groups) {
				return fmt.Errorf("%w: voter group not allowed to confirm", ErrConstraintViolation)
			}
			ballot, err := e.store.Ballot(sc, item.Ref)
			if err != nil {
				return mapStoreErr(err)
			}
			if ballot.State != types.BallotStateUnconfirmed {
				return ErrWrongState
			}

			secret := make(map[string]*types.Vote, len(ballot.Votes))
			for name, vote := range ballot.Votes {
				secret[name] = vote.Secret()
			}
			if err := e.store.SetBallotConfirmed(sc, item.Ref, secret); err != nil {
				return mapStoreErr(err)
			}
			if err := e.store.RecordConfirmation(sc, item.Ref, voter.ID); err != nil {
				return mapStoreErr(err)
			}

			acc := tally.NewAccumulator(e.store, group.Order())
			for name, vote := range ballot.Votes {
				r, value, err := voteSecrets(group, vote)
				if err != nil {
					return fmt.Errorf("candidate %q: %w", name, err)
				}
				if err := acc.Increment(sc, item.Ref.ElectionID, item.Ref.QuestionID, name,
					big.NewInt(int64(value)), r); err != nil {
					return mapStoreErr(err)
				}
			}

			ballot.State = types.BallotStateConfirmed
			ballot.Votes = secret
			receipt, err := e.buildReceipt(group, ballot)
			if err != nil {
				return err
			}
			receipts = append(receipts, receipt)
		}
		return nil
	})
	if err != nil {
		return nil, mapStoreErr(err)
	}
	log.Infow("ballots confirmed", "voterId", voter.ID.String(), "count", len(receipts))
	return receipts, nil
}

// FetchReceipt returns the public receipt of a ballot: revealed form for
// audited ballots, secret form for everything else.
func (e *Engine) FetchReceipt(ctx context.Context, ref types.BallotRef) (*types.Receipt, error) {
	_, group, err := e.store.ElectionGroup(ctx, ref.ElectionID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	ballot, err := e.store.Ballot(ctx, ref)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return e.buildReceipt(group, ballot)
}

// runningQuestion checks the election accepts votes and resolves the
// question.
func (e *Engine) runningQuestion(elec *types.Election, questionID types.HexBytes) (*types.Question, error) {
	if elec.State != types.ElectionStatePublished {
		return nil, fmt.Errorf("%w: election is not published", ErrConstraintViolation)
	}
	now := time.Now().UTC()
	if !elec.StartTime.IsZero() && now.Before(elec.StartTime) {
		return nil, fmt.Errorf("%w: election has not started", ErrConstraintViolation)
	}
	if !elec.EndTime.IsZero() && now.After(elec.EndTime) {
		return nil, fmt.Errorf("%w: election has ended", ErrConstraintViolation)
	}
	question := elec.Question(questionID)
	if question == nil {
		return nil, fmt.Errorf("%w: unknown question", ErrNotFound)
	}
	return question, nil
}

// buildReceipt assembles the public receipt of a ballot in its current
// state.
func (e *Engine) buildReceipt(group *dreip.Group, ballot *types.Ballot) (*types.Receipt, error) {
	ref := types.BallotRef{
		ElectionID: ballot.ElectionID,
		QuestionID: ballot.QuestionID,
		BallotID:   ballot.BallotID,
	}
	RTotal, ZTotal, err := sumBallot(group, ballot)
	if err != nil {
		return nil, err
	}
	return &types.Receipt{
		Ballot:           ballot.PublicView(),
		ConfirmationCode: group.ConfirmationCode(dreipRef(ref), RTotal, ZTotal),
		Signature:        e.signer.Sign(ref, ballot.State),
	}, nil
}
