// Package storetest provides an in-memory implementation of the ballot
// engine's store interface for tests, mirroring the transactional
// all-or-none behavior of the MongoDB storage layer.
package storetest

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/vocdoni/dreip-node/crypto"
	"github.com/vocdoni/dreip-node/crypto/dreip"
	"github.com/vocdoni/dreip-node/storage"
	"github.com/vocdoni/dreip-node/types"
)

// MemStore is an in-memory document store. Writes replace whole documents,
// so a transaction snapshot is a shallow copy of the maps and a failed
// transaction rolls every map back except the elections map.
type MemStore struct {
	mu            sync.Mutex
	elections     map[string]*types.Election
	ballots       map[string]*types.Ballot
	counters      map[string]uint64
	confirmations map[string]uint64
	totals        map[string]*types.CandidateTotal
}

// New creates an empty MemStore.
func New() *MemStore {
	return &MemStore{
		elections:     map[string]*types.Election{},
		ballots:       map[string]*types.Ballot{},
		counters:      map[string]uint64{},
		confirmations: map[string]uint64{},
		totals:        map[string]*types.CandidateTotal{},
	}
}

func ballotKey(ref types.BallotRef) string {
	return fmt.Sprintf("%s:%s:%d", ref.ElectionID.Hex(), ref.QuestionID.Hex(), ref.BallotID)
}

// PutElection registers an election document.
func (m *MemStore) PutElection(e *types.Election) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.elections[e.ID.Hex()] = e
}

// DropBallot simulates TTL expiry of an unconfirmed ballot.
func (m *MemStore) DropBallot(ref types.BallotRef) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.ballots, ballotKey(ref))
}

// CreateElection inserts an election document.
func (m *MemStore) CreateElection(_ context.Context, e *types.Election) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.elections[e.ID.Hex()]; ok {
		return storage.ErrKeyAlreadyExists
	}
	m.elections[e.ID.Hex()] = e
	return nil
}

// Election retrieves an election document.
func (m *MemStore) Election(_ context.Context, id types.HexBytes) (*types.Election, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.elections[id.Hex()]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return e, nil
}

// SetElectionState moves an election through its lifecycle.
func (m *MemStore) SetElectionState(_ context.Context, id types.HexBytes, state types.ElectionState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.elections[id.Hex()]
	if !ok {
		return storage.ErrNotFound
	}
	next := *e
	next.State = state
	m.elections[id.Hex()] = &next
	return nil
}

// ElectionGroup returns an election with its decoded group.
func (m *MemStore) ElectionGroup(ctx context.Context, id types.HexBytes) (*types.Election, *dreip.Group, error) {
	e, err := m.Election(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	group, err := dreip.GroupFromBytes(e.Crypto.CurveType, e.Crypto.G1, e.Crypto.G2)
	if err != nil {
		return nil, nil, err
	}
	return e, group, nil
}

// WithTransaction runs fn with snapshot semantics: on error the ballot,
// counter, confirmation and total maps are restored. Elections are not
// part of the snapshot.
func (m *MemStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	ballots := make(map[string]*types.Ballot, len(m.ballots))
	for k, v := range m.ballots {
		ballots[k] = v
	}
	counters := make(map[string]uint64, len(m.counters))
	for k, v := range m.counters {
		counters[k] = v
	}
	confirmations := make(map[string]uint64, len(m.confirmations))
	for k, v := range m.confirmations {
		confirmations[k] = v
	}
	totals := make(map[string]*types.CandidateTotal, len(m.totals))
	for k, v := range m.totals {
		totals[k] = v
	}
	m.mu.Unlock()

	if err := fn(ctx); err != nil {
		m.mu.Lock()
		m.ballots = ballots
		m.counters = counters
		m.confirmations = confirmations
		m.totals = totals
		m.mu.Unlock()
		return err
	}
	return nil
}

// NextBallotID allocates the next ballot ID of a question.
func (m *MemStore) NextBallotID(_ context.Context, electionID, questionID types.HexBytes) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := fmt.Sprintf("bid:%s:%s", electionID.Hex(), questionID.Hex())
	m.counters[key]++
	return m.counters[key], nil
}

// InsertBallot stores a new ballot.
func (m *MemStore) InsertBallot(_ context.Context, b *types.Ballot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := ballotKey(types.BallotRef{ElectionID: b.ElectionID, QuestionID: b.QuestionID, BallotID: b.BallotID})
	if _, ok := m.ballots[key]; ok {
		return storage.ErrKeyAlreadyExists
	}
	m.ballots[key] = b
	return nil
}

// Ballot retrieves one ballot.
func (m *MemStore) Ballot(_ context.Context, ref types.BallotRef) (*types.Ballot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.ballots[ballotKey(ref)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	out := *b
	return &out, nil
}

// Ballots lists the ballots of a question ordered by ballot ID.
func (m *MemStore) Ballots(_ context.Context, electionID, questionID types.HexBytes, state types.BallotState) ([]*types.Ballot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*types.Ballot
	for _, b := range m.ballots {
		if !b.ElectionID.Equal(electionID) || !b.QuestionID.Equal(questionID) {
			continue
		}
		if state != "" && b.State != state {
			continue
		}
		ballot := *b
		out = append(out, &ballot)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BallotID < out[j].BallotID })
	return out, nil
}

// SetBallotAudited transitions Unconfirmed -> Audited.
func (m *MemStore) SetBallotAudited(_ context.Context, ref types.BallotRef) error {
	return m.transition(ref, types.BallotStateAudited, nil)
}

// SetBallotConfirmed transitions Unconfirmed -> Confirmed and replaces the
// votes with their secret forms.
func (m *MemStore) SetBallotConfirmed(_ context.Context, ref types.BallotRef, votes map[string]*types.Vote) error {
	return m.transition(ref, types.BallotStateConfirmed, votes)
}

func (m *MemStore) transition(ref types.BallotRef, state types.BallotState, votes map[string]*types.Vote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.ballots[ballotKey(ref)]
	if !ok {
		return storage.ErrNotFound
	}
	if b.State != types.BallotStateUnconfirmed {
		return storage.ErrWrongState
	}
	next := *b
	next.State = state
	if votes != nil {
		next.Votes = votes
	}
	m.ballots[ballotKey(ref)] = &next
	return nil
}

// RecordConfirmation enforces the single-confirmation rule.
func (m *MemStore) RecordConfirmation(_ context.Context, ref types.BallotRef, voterID types.HexBytes) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := fmt.Sprintf("%s:%s:%s", ref.ElectionID.Hex(), ref.QuestionID.Hex(), voterID.Hex())
	if _, ok := m.confirmations[key]; ok {
		return storage.ErrAlreadyConfirmed
	}
	m.confirmations[key] = ref.BallotID
	return nil
}

func totalKey(electionID, questionID types.HexBytes, candidate string) string {
	return fmt.Sprintf("%s:%s:%s", electionID.Hex(), questionID.Hex(), candidate)
}

// CandidateTotal reads one accumulator document, zeroed when absent.
func (m *MemStore) CandidateTotal(_ context.Context, electionID, questionID types.HexBytes, candidate string) (*types.CandidateTotal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if total, ok := m.totals[totalKey(electionID, questionID, candidate)]; ok {
		out := *total
		return &out, nil
	}
	zero := make([]byte, crypto.ScalarLen)
	return &types.CandidateTotal{
		ElectionID:    electionID,
		QuestionID:    questionID,
		CandidateName: candidate,
		Tally:         zero,
		RSum:          zero,
	}, nil
}

// SaveCandidateTotal writes an accumulator document guarded by its version.
func (m *MemStore) SaveCandidateTotal(_ context.Context, total *types.CandidateTotal, expectedVersion uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := totalKey(total.ElectionID, total.QuestionID, total.CandidateName)
	current, ok := m.totals[key]
	if expectedVersion == 0 {
		if ok {
			return storage.ErrConflict
		}
	} else if !ok || current.Version != expectedVersion {
		return storage.ErrConflict
	}
	next := *total
	next.Version = expectedVersion + 1
	m.totals[key] = &next
	return nil
}

// CandidateTotals lists the accumulator documents of a question ordered by
// candidate name.
func (m *MemStore) CandidateTotals(_ context.Context, electionID, questionID types.HexBytes) ([]*types.CandidateTotal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*types.CandidateTotal
	for _, total := range m.totals {
		if total.ElectionID.Equal(electionID) && total.QuestionID.Equal(questionID) {
			t := *total
			out = append(out, &t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CandidateName < out[j].CandidateName })
	return out, nil
}
