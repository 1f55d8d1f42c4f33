package storage

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vocdoni/dreip-node/crypto"
	"github.com/vocdoni/dreip-node/types"
)

// CandidateTotal reads the accumulator document of one candidate. When the
// document does not exist yet, a zeroed accumulator with Version 0 is
// returned; saving it with expected version 0 performs the initial insert.
func (s *Storage) CandidateTotal(ctx context.Context, electionID, questionID types.HexBytes, candidate string) (*types.CandidateTotal, error) {
	var total types.CandidateTotal
	err := s.totals().FindOne(ctx, bson.D{
		{Key: "election_id", Value: electionID},
		{Key: "question_id", Value: questionID},
		{Key: "candidate_name", Value: candidate},
	}).Decode(&total)
	if errors.Is(err, mongo.ErrNoDocuments) {
		zero := make([]byte, crypto.ScalarLen)
		return &types.CandidateTotal{
			ElectionID:    electionID,
			QuestionID:    questionID,
			CandidateName: candidate,
			Tally:         zero,
			RSum:          zero,
			Version:       0,
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find candidate total: %w", err)
	}
	return &total, nil
}

// SaveCandidateTotal writes an accumulator document guarded by its version:
// the write succeeds only if the stored version still equals
// expectedVersion, and bumps it by one. Version 0 means the document is
// expected to not exist yet. A lost race returns ErrConflict.
func (s *Storage) SaveCandidateTotal(ctx context.Context, total *types.CandidateTotal, expectedVersion uint64) error {
	if expectedVersion == 0 {
		doc := *total
		doc.Version = 1
		if _, err := s.totals().InsertOne(ctx, &doc); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return ErrConflict
			}
			return fmt.Errorf("insert candidate total: %w", err)
		}
		return nil
	}
	res, err := s.totals().UpdateOne(ctx, bson.D{
		{Key: "election_id", Value: total.ElectionID},
		{Key: "question_id", Value: total.QuestionID},
		{Key: "candidate_name", Value: total.CandidateName},
		{Key: "version", Value: expectedVersion},
	}, bson.D{{Key: "$set", Value: bson.D{
		{Key: "tally", Value: total.Tally},
		{Key: "r_sum", Value: total.RSum},
		{Key: "version", Value: expectedVersion + 1},
	}}})
	if err != nil {
		return fmt.Errorf("update candidate total: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrConflict
	}
	return nil
}

// CandidateTotals lists every accumulator document of a question, ordered
// by candidate name.
func (s *Storage) CandidateTotals(ctx context.Context, electionID, questionID types.HexBytes) ([]*types.CandidateTotal, error) {
	cursor, err := s.totals().Find(ctx, bson.D{
		{Key: "election_id", Value: electionID},
		{Key: "question_id", Value: questionID},
	}, options.Find().SetSort(bson.D{{Key: "candidate_name", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list candidate totals: %w", err)
	}
	var totals []*types.CandidateTotal
	if err := cursor.All(ctx, &totals); err != nil {
		return nil, fmt.Errorf("decode candidate totals: %w", err)
	}
	return totals, nil
}
