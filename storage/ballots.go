package storage

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vocdoni/dreip-node/types"
)

// NextBallotID allocates the next ballot ID of a question from its counter
// document with a single atomic find-and-modify, so concurrent casts can
// never collide. IDs start at 1.
func (s *Storage) NextBallotID(ctx context.Context, electionID, questionID types.HexBytes) (uint64, error) {
	key := fmt.Sprintf("bid:%s:%s", electionID.Hex(), questionID.Hex())
	var counter struct {
		Next int64 `bson:"next"`
	}
	err := s.counters().FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: key}},
		bson.D{{Key: "$inc", Value: bson.D{{Key: "next", Value: 1}}}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("allocate ballot id: %w", err)
	}
	return uint64(counter.Next), nil
}

// InsertBallot persists a freshly minted ballot.
func (s *Storage) InsertBallot(ctx context.Context, b *types.Ballot) error {
	if _, err := s.ballots().InsertOne(ctx, b); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrKeyAlreadyExists
		}
		return fmt.Errorf("insert ballot: %w", err)
	}
	return nil
}

func ballotFilter(ref types.BallotRef) bson.D {
	return bson.D{
		{Key: "election_id", Value: ref.ElectionID},
		{Key: "question_id", Value: ref.QuestionID},
		{Key: "ballot_id", Value: ref.BallotID},
	}
}

// Ballot retrieves one ballot document.
func (s *Storage) Ballot(ctx context.Context, ref types.BallotRef) (*types.Ballot, error) {
	var b types.Ballot
	err := s.ballots().FindOne(ctx, ballotFilter(ref)).Decode(&b)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find ballot: %w", err)
	}
	return &b, nil
}

// Ballots lists the ballots of a question ordered by ballot ID, optionally
// filtered by state.
func (s *Storage) Ballots(ctx context.Context, electionID, questionID types.HexBytes, state types.BallotState) ([]*types.Ballot, error) {
	filter := bson.D{
		{Key: "election_id", Value: electionID},
		{Key: "question_id", Value: questionID},
	}
	if state != "" {
		filter = append(filter, bson.E{Key: "state", Value: state})
	}
	cursor, err := s.ballots().Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "ballot_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list ballots: %w", err)
	}
	var ballots []*types.Ballot
	if err := cursor.All(ctx, &ballots); err != nil {
		return nil, fmt.Errorf("decode ballots: %w", err)
	}
	return ballots, nil
}

// SetBallotAudited transitions a ballot from Unconfirmed to Audited with a
// single conditional update. The transition is what makes the stored
// randomness and plaintexts public: audited ballots serve their votes in
// revealed form.
func (s *Storage) SetBallotAudited(ctx context.Context, ref types.BallotRef) error {
	filter := append(ballotFilter(ref), bson.E{Key: "state", Value: types.BallotStateUnconfirmed})
	res, err := s.ballots().UpdateOne(ctx, filter,
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "state", Value: types.BallotStateAudited},
		}}})
	if err != nil {
		return fmt.Errorf("audit ballot: %w", err)
	}
	if res.MatchedCount == 0 {
		return s.transitionFailure(ctx, ref)
	}
	return nil
}

// SetBallotConfirmed transitions a ballot from Unconfirmed to Confirmed and
// replaces its votes with the given secret forms, discarding the stored
// randomness for good. Callers run this inside a transaction together with
// RecordConfirmation and the accumulator updates.
func (s *Storage) SetBallotConfirmed(ctx context.Context, ref types.BallotRef, votes map[string]*types.Vote) error {
	filter := append(ballotFilter(ref), bson.E{Key: "state", Value: types.BallotStateUnconfirmed})
	res, err := s.ballots().UpdateOne(ctx, filter,
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "state", Value: types.BallotStateConfirmed},
			{Key: "votes", Value: votes},
		}}})
	if err != nil {
		return fmt.Errorf("confirm ballot: %w", err)
	}
	if res.MatchedCount == 0 {
		return s.transitionFailure(ctx, ref)
	}
	return nil
}

// RecordConfirmation inserts the voter's confirmation marker for a
// question. The unique index turns a second confirmation by the same voter
// into ErrAlreadyConfirmed.
func (s *Storage) RecordConfirmation(ctx context.Context, ref types.BallotRef, voterID types.HexBytes) error {
	if _, err := s.confirmed().InsertOne(ctx, bson.D{
		{Key: "election_id", Value: ref.ElectionID},
		{Key: "question_id", Value: ref.QuestionID},
		{Key: "voter_id", Value: voterID},
		{Key: "ballot_id", Value: ref.BallotID},
	}); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrAlreadyConfirmed
		}
		return fmt.Errorf("record confirmation: %w", err)
	}
	return nil
}

// transitionFailure distinguishes a missing ballot from one in the wrong
// state after a conditional update matched nothing.
func (s *Storage) transitionFailure(ctx context.Context, ref types.BallotRef) error {
	if _, err := s.Ballot(ctx, ref); errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	return ErrWrongState
}
