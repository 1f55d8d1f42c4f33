package api

import (
	"time"

	"github.com/vocdoni/dreip-node/tally"
	"github.com/vocdoni/dreip-node/types"
)

// CreateElectionRequest is the body of POST /elections.
type CreateElectionRequest struct {
	Name        string           `json:"name"`
	StartTime   time.Time        `json:"startTime"`
	EndTime     time.Time        `json:"endTime"`
	Electorates []string         `json:"electorates,omitempty"`
	Questions   []types.Question `json:"questions"`
}

// SetElectionStateRequest is the body of POST /elections/{e}/state.
type SetElectionStateRequest struct {
	State types.ElectionState `json:"state"`
}

// CastRequest is the body of POST /elections/{e}/votes/cast: one minted
// ballot per requested choice, all for the same question.
type CastRequest struct {
	QuestionID types.HexBytes `json:"questionId"`
	Choices    []string       `json:"choices"`
}

// SignedRefRequest references one ballot with its receipt signature.
type SignedRefRequest struct {
	QuestionID types.HexBytes `json:"questionId"`
	BallotID   uint64         `json:"ballotId"`
	Signature  types.B64Bytes `json:"signature"`
}

// AuditRequest is the body of POST /elections/{e}/votes/audit.
type AuditRequest struct {
	Ballots []SignedRefRequest `json:"ballots"`
}

// ConfirmRequest is the body of POST /elections/{e}/votes/confirm. The
// voter identity comes from the authentication layer upstream; the core
// only consumes its stable identifier and group membership.
type ConfirmRequest struct {
	Voter   types.Voter        `json:"voter"`
	Ballots []SignedRefRequest `json:"ballots"`
}

// ReceiptsResponse returns the receipts of a cast, audit or confirm
// request, mirroring the input order.
type ReceiptsResponse struct {
	Receipts []*types.Receipt `json:"receipts"`
}

// BallotsResponse lists the public views of a question's ballots.
type BallotsResponse struct {
	Ballots []*types.Ballot `json:"ballots"`
}

// TotalsResponse returns the published totals of a closed question,
// together with the election private key that opens them.
type TotalsResponse struct {
	Results    []tally.Result `json:"results"`
	PrivateKey types.B64Bytes `json:"privateKey"`
}
