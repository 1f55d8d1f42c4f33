package types

import (
	"time"
)

// BallotState is the lifecycle state of a ballot. Ballots are created
// Unconfirmed and move exactly once, to Audited or to Confirmed.
type BallotState string

const (
	BallotStateUnconfirmed BallotState = "Unconfirmed"
	BallotStateAudited     BallotState = "Audited"
	BallotStateConfirmed   BallotState = "Confirmed"
)

// Valid reports whether s is one of the three known states.
func (s BallotState) Valid() bool {
	switch s {
	case BallotStateUnconfirmed, BallotStateAudited, BallotStateConfirmed:
		return true
	}
	return false
}

// Terminal reports whether the state admits no further transition.
func (s BallotState) Terminal() bool {
	return s == BallotStateAudited || s == BallotStateConfirmed
}

// VoteProof is the disjunctive Chaum-Pedersen proof that a per-candidate
// ciphertext encrypts either 0 or 1. All four elements are scalars.
type VoteProof struct {
	C1 B64Bytes `json:"c1" bson:"c1"`
	C2 B64Bytes `json:"c2" bson:"c2"`
	R1 B64Bytes `json:"r1" bson:"r1"`
	R2 B64Bytes `json:"r2" bson:"r2"`
}

// BallotProof is the ballot-level proof that the per-candidate votes sum to
// exactly one: a two-base Schnorr proof over the aggregated ciphertext.
// A and B are points, R is a scalar.
type BallotProof struct {
	A B64Bytes `json:"a" bson:"a"`
	B B64Bytes `json:"b" bson:"b"`
	R B64Bytes `json:"r" bson:"r"`
}

// Vote is the per-candidate vote record of a ballot. R and Z are the
// ciphertext points, PWF the per-candidate proof. Random and Value hold the
// randomness r and the plaintext v (a 32-byte big-endian scalar): they are
// stored server-side on unconfirmed ballots, publicly revealed on audited
// ballots, and absent from confirmed ballots and from every public view
// other than the audited one.
type Vote struct {
	R      B64Bytes   `json:"R" bson:"R"`
	Z      B64Bytes   `json:"Z" bson:"Z"`
	PWF    *VoteProof `json:"pwf" bson:"pwf"`
	Random B64Bytes   `json:"r,omitempty" bson:"r,omitempty"`
	Value  B64Bytes   `json:"v,omitempty" bson:"v,omitempty"`
}

// Secret returns a copy of the vote with the revealed fields stripped.
func (v *Vote) Secret() *Vote {
	return &Vote{R: v.R, Z: v.Z, PWF: v.PWF}
}

// Ballot is the ballot document. BallotID is allocated from a monotonically
// increasing per-question counter, so (ElectionID, QuestionID, BallotID) is
// unique.
type Ballot struct {
	BallotID     uint64           `json:"ballotId" bson:"ballot_id"`
	ElectionID   HexBytes         `json:"electionId" bson:"election_id"`
	QuestionID   HexBytes         `json:"questionId" bson:"question_id"`
	CreationTime time.Time        `json:"creationTime" bson:"creation_time"`
	State        BallotState      `json:"state" bson:"state"`
	Votes        map[string]*Vote `json:"votes" bson:"votes"`
	PWF          *BallotProof     `json:"pwf" bson:"pwf"`
}

// PublicView returns the ballot as served to clients: audited ballots keep
// their revealed randomness, every other state strips it.
func (b *Ballot) PublicView() *Ballot {
	if b.State == BallotStateAudited {
		return b
	}
	out := *b
	out.Votes = make(map[string]*Vote, len(b.Votes))
	for name, v := range b.Votes {
		out.Votes[name] = v.Secret()
	}
	return &out
}

// BallotRef identifies one ballot.
type BallotRef struct {
	ElectionID HexBytes `json:"electionId"`
	QuestionID HexBytes `json:"questionId"`
	BallotID   uint64   `json:"ballotId"`
}

// Receipt is what a voter takes home after cast, audit or confirm: the
// public view of the ballot, the confirmation code and a detached HMAC
// signature that allows offline verification of receipt authenticity.
type Receipt struct {
	Ballot           *Ballot  `json:"ballot"`
	ConfirmationCode B64Bytes `json:"confirmationCode"`
	Signature        B64Bytes `json:"signature"`
}

// CandidateTotal is the homomorphic accumulator document for one candidate
// of one question: the running tally and randomness sums over all confirmed
// ballots, both kept as serialized 32-byte scalars. Version is the
// optimistic-concurrency token.
type CandidateTotal struct {
	ElectionID    HexBytes `json:"electionId" bson:"election_id"`
	QuestionID    HexBytes `json:"questionId" bson:"question_id"`
	CandidateName string   `json:"candidateName" bson:"candidate_name"`
	Tally         B64Bytes `json:"tally" bson:"tally"`
	RSum          B64Bytes `json:"rSum" bson:"r_sum"`
	Version       uint64   `json:"-" bson:"version"`
}
