package storage

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/vocdoni/dreip-node/crypto/dreip"
	"github.com/vocdoni/dreip-node/log"
	"github.com/vocdoni/dreip-node/types"
)

// CreateElection validates and inserts a new election document with its
// crypto bundle.
func (s *Storage) CreateElection(ctx context.Context, e *types.Election) error {
	if len(e.ID) == 0 {
		return fmt.Errorf("missing election ID")
	}
	for i := range e.Questions {
		if err := e.Questions[i].Validate(); err != nil {
			return err
		}
	}
	if _, err := s.elections().InsertOne(ctx, e); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrKeyAlreadyExists
		}
		return fmt.Errorf("insert election: %w", err)
	}
	log.Infow("election created", "electionId", e.ID.String(), "questions", len(e.Questions))
	return nil
}

// Election retrieves an election document by ID.
func (s *Storage) Election(ctx context.Context, id types.HexBytes) (*types.Election, error) {
	var e types.Election
	err := s.elections().FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&e)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find election: %w", err)
	}
	return &e, nil
}

// SetElectionState moves an election through its lifecycle.
func (s *Storage) SetElectionState(ctx context.Context, id types.HexBytes, state types.ElectionState) error {
	res, err := s.elections().UpdateOne(ctx,
		bson.D{{Key: "_id", Value: id}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "state", Value: state}}}})
	if err != nil {
		return fmt.Errorf("update election state: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ElectionGroup returns the election document together with its decoded
// two-generator group. Decoded groups are cached: the crypto bundle is
// immutable once the election exists.
func (s *Storage) ElectionGroup(ctx context.Context, id types.HexBytes) (*types.Election, *dreip.Group, error) {
	e, err := s.Election(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if cached, ok := s.groups.Get(id.Hex()); ok {
		return e, cached.(*dreip.Group), nil
	}
	group, err := dreip.GroupFromBytes(e.Crypto.CurveType, e.Crypto.G1, e.Crypto.G2)
	if err != nil {
		return nil, nil, fmt.Errorf("decode election group: %w", err)
	}
	s.groups.Add(id.Hex(), group)
	return e, group, nil
}
