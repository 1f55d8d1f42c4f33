// Package storage is the persistence layer of the voting backend, on top of
// a MongoDB replica set.
//
// # Collections
//
//   - elections:        election metadata plus the crypto bundle
//   - ballots:          ballot documents, unique on (election, question, ballot_id),
//     TTL-expired while still Unconfirmed
//   - candidate_totals: homomorphic accumulator documents, one per
//     (election, question, candidate), versioned for optimistic concurrency
//   - confirmations:    one document per confirmed (election, question, voter),
//     unique, enforcing the single-confirmation rule
//   - counters:         find-and-modify counters for ballot ID allocation
//
// Ballot confirmation mutates the ballot document and every affected
// candidate total inside one multi-document transaction, so a replica set
// is required.
package storage

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vocdoni/dreip-node/log"
)

const (
	electionsCol  = "elections"
	ballotsCol    = "ballots"
	totalsCol     = "candidate_totals"
	confirmedCol  = "confirmations"
	countersCol   = "counters"
	connectWait   = 10 * time.Second
	groupCacheLen = 128
)

// DefaultBallotTTL is how long an unconfirmed ballot survives before the
// storage layer expires it.
const DefaultBallotTTL = time.Hour

// Options configures a Storage instance.
type Options struct {
	// URL is the MongoDB connection string.
	URL string
	// Database is the database name.
	Database string
	// BallotTTL overrides DefaultBallotTTL when positive.
	BallotTTL time.Duration
}

// Storage manages the MongoDB collections of the voting backend.
type Storage struct {
	client    *mongo.Client
	db        *mongo.Database
	ballotTTL time.Duration
	// groups caches decoded election groups; the crypto bundle of an
	// election is immutable once created.
	groups *lru.Cache[string, any]
}

// New connects to MongoDB and prepares the collections and indexes.
func New(ctx context.Context, opts Options) (*Storage, error) {
	if opts.URL == "" || opts.Database == "" {
		return nil, fmt.Errorf("missing mongodb url or database name")
	}
	ttl := opts.BallotTTL
	if ttl <= 0 {
		ttl = DefaultBallotTTL
	}

	ctxConn, cancel := context.WithTimeout(ctx, connectWait)
	defer cancel()
	client, err := mongo.Connect(ctxConn, options.Client().ApplyURI(opts.URL))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	if err := client.Ping(ctxConn, nil); err != nil {
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	cache, err := lru.New[string, any](groupCacheLen)
	if err != nil {
		return nil, err
	}
	s := &Storage{
		client:    client,
		db:        client.Database(opts.Database),
		ballotTTL: ttl,
		groups:    cache,
	}
	if err := s.ensureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("create indexes: %w", err)
	}
	log.Infow("storage initialized", "database", opts.Database, "ballotTTL", ttl.String())
	return s, nil
}

// Close disconnects the client.
func (s *Storage) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Storage) elections() *mongo.Collection { return s.db.Collection(electionsCol) }
func (s *Storage) ballots() *mongo.Collection   { return s.db.Collection(ballotsCol) }
func (s *Storage) totals() *mongo.Collection    { return s.db.Collection(totalsCol) }
func (s *Storage) confirmed() *mongo.Collection { return s.db.Collection(confirmedCol) }
func (s *Storage) counters() *mongo.Collection  { return s.db.Collection(countersCol) }

func (s *Storage) ensureIndexes(ctx context.Context) error {
	// Ballot uniqueness on the (election, question, ballot_id) triple.
	if _, err := s.ballots().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "election_id", Value: 1},
			{Key: "question_id", Value: 1},
			{Key: "ballot_id", Value: 1},
		},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return err
	}
	// TTL expiry of ballots that never left the Unconfirmed state.
	if _, err := s.ballots().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "creation_time", Value: 1}},
		Options: options.Index().
			SetExpireAfterSeconds(int32(s.ballotTTL / time.Second)).
			SetPartialFilterExpression(bson.D{{Key: "state", Value: "Unconfirmed"}}),
	}); err != nil {
		return err
	}
	// One accumulator document per candidate.
	if _, err := s.totals().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "election_id", Value: 1},
			{Key: "question_id", Value: 1},
			{Key: "candidate_name", Value: 1},
		},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return err
	}
	// At most one confirmed ballot per voter and question.
	if _, err := s.confirmed().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "election_id", Value: 1},
			{Key: "question_id", Value: 1},
			{Key: "voter_id", Value: 1},
		},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return err
	}
	return nil
}

// WithTransaction runs fn inside a multi-document transaction, retrying on
// transient transaction errors. The context passed to fn must be used for
// every operation that belongs to the transaction.
func (s *Storage) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		return nil, fn(sc)
	})
	return err
}
