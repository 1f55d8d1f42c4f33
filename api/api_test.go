package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/vocdoni/dreip-node/internal/storetest"
	"github.com/vocdoni/dreip-node/types"
	"github.com/vocdoni/dreip-node/verify"
)

func newTestAPI(t *testing.T) (*API, *httptest.Server) {
	t.Helper()
	a, err := NewWithoutServer(&APIConfig{
		Store:      storetest.New(),
		HMACSecret: []byte("api-test-secret"),
	})
	qt.Assert(t, err, qt.IsNil)
	server := httptest.NewServer(a.Router())
	t.Cleanup(server.Close)
	return a, server
}

func doRequest(t *testing.T, method, url string, body, out any) int {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		qt.Assert(t, err, qt.IsNil)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, reader)
	qt.Assert(t, err, qt.IsNil)
	resp, err := http.DefaultClient.Do(req)
	qt.Assert(t, err, qt.IsNil)
	defer func() {
		qt.Assert(t, resp.Body.Close(), qt.IsNil)
	}()
	data, err := io.ReadAll(resp.Body)
	qt.Assert(t, err, qt.IsNil)
	if out != nil && resp.StatusCode == http.StatusOK {
		qt.Assert(t, json.Unmarshal(data, out), qt.IsNil, qt.Commentf("body: %s", data))
	}
	return resp.StatusCode
}

func createPublishedElection(t *testing.T, server *httptest.Server) *types.Election {
	t.Helper()
	var election types.Election
	status := doRequest(t, http.MethodPost, server.URL+ElectionsEndpoint, &CreateElectionRequest{
		Name: "api test election",
		Questions: []types.Question{{
			ID:          types.HexBytes{0x01},
			Description: "best transport",
			Candidates:  []string{"bike", "train"},
		}},
	}, &election)
	qt.Assert(t, status, qt.Equals, http.StatusOK)
	qt.Assert(t, election.Crypto.PrivateKey, qt.HasLen, 0)

	status = doRequest(t, http.MethodPost,
		fmt.Sprintf("%s/elections/%s/state", server.URL, election.ID.Hex()),
		&SetElectionStateRequest{State: types.ElectionStatePublished}, nil)
	qt.Assert(t, status, qt.Equals, http.StatusOK)
	return &election
}

func TestPing(t *testing.T) {
	c := qt.New(t)
	_, server := newTestAPI(t)
	c.Assert(doRequest(t, http.MethodGet, server.URL+PingEndpoint, nil, nil), qt.Equals, http.StatusOK)
}

func TestVoteLifecycle(t *testing.T) {
	c := qt.New(t)
	_, server := newTestAPI(t)
	election := createPublishedElection(t, server)
	qid := election.Questions[0].ID
	base := fmt.Sprintf("%s/elections/%s", server.URL, election.ID.Hex())

	// Cast three ballots: bike, bike, train.
	var cast ReceiptsResponse
	status := doRequest(t, http.MethodPost, base+"/votes/cast", &CastRequest{
		QuestionID: qid,
		Choices:    []string{"bike", "bike", "train"},
	}, &cast)
	c.Assert(status, qt.Equals, http.StatusOK)
	c.Assert(cast.Receipts, qt.HasLen, 3)
	for i, receipt := range cast.Receipts {
		c.Assert(receipt.Ballot.BallotID, qt.Equals, uint64(i+1))
		c.Assert(receipt.Ballot.State, qt.Equals, types.BallotStateUnconfirmed)
	}

	// Confirm each ballot with a distinct voter.
	for i, receipt := range cast.Receipts {
		var confirmed ReceiptsResponse
		status := doRequest(t, http.MethodPost, base+"/votes/confirm", &ConfirmRequest{
			Voter: types.Voter{ID: types.HexBytes{byte(i + 1)}},
			Ballots: []SignedRefRequest{{
				QuestionID: qid,
				BallotID:   receipt.Ballot.BallotID,
				Signature:  receipt.Signature,
			}},
		}, &confirmed)
		c.Assert(status, qt.Equals, http.StatusOK)
		c.Assert(confirmed.Receipts[0].Ballot.State, qt.Equals, types.BallotStateConfirmed)
	}

	// Totals are sealed while the election runs.
	totalsURL := fmt.Sprintf("%s/%s/totals", base, qid.Hex())
	c.Assert(doRequest(t, http.MethodGet, totalsURL, nil, nil), qt.Equals, http.StatusBadRequest)

	// Close the election and read the published totals.
	status = doRequest(t, http.MethodPost, base+"/state",
		&SetElectionStateRequest{State: types.ElectionStateArchived}, nil)
	c.Assert(status, qt.Equals, http.StatusOK)

	var totals TotalsResponse
	c.Assert(doRequest(t, http.MethodGet, totalsURL, nil, &totals), qt.Equals, http.StatusOK)
	c.Assert(totals.PrivateKey, qt.Not(qt.HasLen), 0)
	c.Assert(totals.Results, qt.HasLen, 2)
	counts := map[string]string{}
	for _, result := range totals.Results {
		counts[result.CandidateName] = result.Count.String()
	}
	c.Assert(counts["bike"], qt.Equals, "2")
	c.Assert(counts["train"], qt.Equals, "1")

	// The dump of the closed question passes independent verification.
	var dump verify.QuestionDump
	dumpURL := fmt.Sprintf("%s/%s/dump", base, qid.Hex())
	c.Assert(doRequest(t, http.MethodGet, dumpURL, nil, &dump), qt.Equals, http.StatusOK)
	c.Assert(dump.ConfirmedBallots, qt.HasLen, 3)
	c.Assert(verify.VerifyQuestion(&dump), qt.IsNil)
}

func TestAuditEndpoint(t *testing.T) {
	c := qt.New(t)
	_, server := newTestAPI(t)
	election := createPublishedElection(t, server)
	qid := election.Questions[0].ID
	base := fmt.Sprintf("%s/elections/%s", server.URL, election.ID.Hex())

	var cast ReceiptsResponse
	status := doRequest(t, http.MethodPost, base+"/votes/cast", &CastRequest{
		QuestionID: qid,
		Choices:    []string{"train"},
	}, &cast)
	c.Assert(status, qt.Equals, http.StatusOK)

	var audited ReceiptsResponse
	status = doRequest(t, http.MethodPost, base+"/votes/audit", &AuditRequest{
		Ballots: []SignedRefRequest{{
			QuestionID: qid,
			BallotID:   cast.Receipts[0].Ballot.BallotID,
			Signature:  cast.Receipts[0].Signature,
		}},
	}, &audited)
	c.Assert(status, qt.Equals, http.StatusOK)
	c.Assert(audited.Receipts[0].Ballot.State, qt.Equals, types.BallotStateAudited)
	c.Assert(audited.Receipts[0].Ballot.Votes["train"].Random, qt.Not(qt.HasLen), 0)

	// Auditing again is a state error.
	status = doRequest(t, http.MethodPost, base+"/votes/audit", &AuditRequest{
		Ballots: []SignedRefRequest{{
			QuestionID: qid,
			BallotID:   cast.Receipts[0].Ballot.BallotID,
			Signature:  cast.Receipts[0].Signature,
		}},
	}, nil)
	c.Assert(status, qt.Equals, http.StatusBadRequest)

	// A tampered signature is unauthorized.
	bad := make(types.B64Bytes, len(cast.Receipts[0].Signature))
	copy(bad, cast.Receipts[0].Signature)
	bad[0] ^= 0xff
	var castMore ReceiptsResponse
	status = doRequest(t, http.MethodPost, base+"/votes/cast", &CastRequest{
		QuestionID: qid, Choices: []string{"bike"},
	}, &castMore)
	c.Assert(status, qt.Equals, http.StatusOK)
	status = doRequest(t, http.MethodPost, base+"/votes/audit", &AuditRequest{
		Ballots: []SignedRefRequest{{
			QuestionID: qid,
			BallotID:   castMore.Receipts[0].Ballot.BallotID,
			Signature:  bad,
		}},
	}, nil)
	c.Assert(status, qt.Equals, http.StatusUnauthorized)
}

func TestBallotEndpoints(t *testing.T) {
	c := qt.New(t)
	_, server := newTestAPI(t)
	election := createPublishedElection(t, server)
	qid := election.Questions[0].ID
	base := fmt.Sprintf("%s/elections/%s", server.URL, election.ID.Hex())

	var cast ReceiptsResponse
	status := doRequest(t, http.MethodPost, base+"/votes/cast", &CastRequest{
		QuestionID: qid,
		Choices:    []string{"bike", "train"},
	}, &cast)
	c.Assert(status, qt.Equals, http.StatusOK)

	var list BallotsResponse
	listURL := fmt.Sprintf("%s/%s/ballots", base, qid.Hex())
	c.Assert(doRequest(t, http.MethodGet, listURL, nil, &list), qt.Equals, http.StatusOK)
	c.Assert(list.Ballots, qt.HasLen, 2)
	for _, b := range list.Ballots {
		for _, vote := range b.Votes {
			c.Assert(vote.Random, qt.HasLen, 0)
		}
	}

	var receipt types.Receipt
	receiptURL := fmt.Sprintf("%s/%s/ballots/%d", base, qid.Hex(), cast.Receipts[0].Ballot.BallotID)
	c.Assert(doRequest(t, http.MethodGet, receiptURL, nil, &receipt), qt.Equals, http.StatusOK)
	c.Assert(receipt.ConfirmationCode.Equal(cast.Receipts[0].ConfirmationCode), qt.IsTrue)

	missingURL := fmt.Sprintf("%s/%s/ballots/99", base, qid.Hex())
	c.Assert(doRequest(t, http.MethodGet, missingURL, nil, nil), qt.Equals, http.StatusNotFound)
}
