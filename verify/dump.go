package verify

import (
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/vocdoni/dreip-node/types"
)

// QuestionDump is the full public record of one question: the election
// parameters, every audited ballot in revealed form, every confirmed ballot
// in secret form, and — once the election is closed — the candidate totals
// and the election private key.
type QuestionDump struct {
	ElectionID types.HexBytes `json:"electionId"`
	QuestionID types.HexBytes `json:"questionId"`
	Candidates []string       `json:"candidates"`

	CurveType  string         `json:"curveType"`
	G1         types.B64Bytes `json:"g1"`
	G2         types.B64Bytes `json:"g2"`
	PublicKey  types.B64Bytes `json:"publicKey"`
	PrivateKey types.B64Bytes `json:"privateKey,omitempty"`

	AuditedBallots   []*types.Ballot         `json:"auditedBallots"`
	ConfirmedBallots []*types.Ballot         `json:"confirmedBallots"`
	Totals           []*types.CandidateTotal `json:"totals,omitempty"`
}

// Closed reports whether the dump carries close-time data: the private key
// and the candidate totals.
func (d *QuestionDump) Closed() bool {
	return len(d.PrivateKey) > 0 && len(d.Totals) > 0
}

// EncodeDump serializes a dump deterministically as CBOR; the archive form
// consumed by the offline verification tool.
func EncodeDump(d *QuestionDump) ([]byte, error) {
	encOpts := cbor.CoreDetEncOptions()
	em, err := encOpts.EncMode()
	if err != nil {
		return nil, fmt.Errorf("encode dump: %w", err)
	}
	return em.Marshal(d)
}

// DecodeDump parses a dump archive, accepting both the CBOR archive form
// and the JSON form served by the HTTP dump endpoint.
func DecodeDump(data []byte) (*QuestionDump, error) {
	var d QuestionDump
	if len(data) > 0 && (data[0] == '{' || data[0] == '[') {
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("decode dump: %w", err)
		}
		return &d, nil
	}
	if err := cbor.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("decode dump: %w", err)
	}
	return &d, nil
}
