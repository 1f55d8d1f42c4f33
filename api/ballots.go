package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/vocdoni/dreip-node/ballotbox"
	"github.com/vocdoni/dreip-node/log"
	"github.com/vocdoni/dreip-node/storage"
	"github.com/vocdoni/dreip-node/tally"
	"github.com/vocdoni/dreip-node/types"
	"github.com/vocdoni/dreip-node/verify"
)

// castVotes mints one ballot per requested choice. The whole request is
// atomic: either every ballot is created or none, and the response mirrors
// the input order.
// POST /elections/{electionId}/votes/cast
func (a *API) castVotes(w http.ResponseWriter, r *http.Request) {
	electionID, err := urlParamID(r, ElectionURLParam)
	if err != nil {
		ErrMalformedParam.WithErr(err).Write(w)
		return
	}
	var req CastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrMalformedBody.WithErr(err).Write(w)
		return
	}
	if len(req.Choices) == 0 {
		ErrMalformedBody.With("no choices").Write(w)
		return
	}
	receipts, err := a.engine.Cast(r.Context(), electionID, req.QuestionID, req.Choices)
	if err != nil {
		log.Debugw("cast rejected", "electionId", electionID.String(), "error", err)
		fromEngineErr(err).Write(w)
		return
	}
	httpWriteJSON(w, &ReceiptsResponse{Receipts: receipts})
}

// signedRefs converts request items to engine references for one election.
func signedRefs(electionID types.HexBytes, items []SignedRefRequest) []ballotbox.SignedRef {
	refs := make([]ballotbox.SignedRef, len(items))
	for i, item := range items {
		refs[i] = ballotbox.SignedRef{
			Ref: types.BallotRef{
				ElectionID: electionID,
				QuestionID: item.QuestionID,
				BallotID:   item.BallotID,
			},
			Signature: item.Signature,
		}
	}
	return refs
}

// auditVotes transitions the referenced ballots to Audited, atomically
// over the input list.
// POST /elections/{electionId}/votes/audit
func (a *API) auditVotes(w http.ResponseWriter, r *http.Request) {
	electionID, err := urlParamID(r, ElectionURLParam)
	if err != nil {
		ErrMalformedParam.WithErr(err).Write(w)
		return
	}
	var req AuditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrMalformedBody.WithErr(err).Write(w)
		return
	}
	if len(req.Ballots) == 0 {
		ErrMalformedBody.With("no ballots").Write(w)
		return
	}
	receipts, err := a.engine.Audit(r.Context(), signedRefs(electionID, req.Ballots))
	if err != nil {
		log.Debugw("audit rejected", "electionId", electionID.String(), "error", err)
		fromEngineErr(err).Write(w)
		return
	}
	httpWriteJSON(w, &ReceiptsResponse{Receipts: receipts})
}

// confirmVotes transitions the referenced ballots to Confirmed for the
// voter, atomically over the input list, updating the tally accumulators in
// the same transaction.
// POST /elections/{electionId}/votes/confirm
func (a *API) confirmVotes(w http.ResponseWriter, r *http.Request) {
	electionID, err := urlParamID(r, ElectionURLParam)
	if err != nil {
		ErrMalformedParam.WithErr(err).Write(w)
		return
	}
	var req ConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrMalformedBody.WithErr(err).Write(w)
		return
	}
	if len(req.Ballots) == 0 {
		ErrMalformedBody.With("no ballots").Write(w)
		return
	}
	if len(req.Voter.ID) == 0 {
		ErrMalformedBody.With("missing voter").Write(w)
		return
	}
	receipts, err := a.engine.Confirm(r.Context(), req.Voter, signedRefs(electionID, req.Ballots))
	if err != nil {
		log.Debugw("confirm rejected", "electionId", electionID.String(), "error", err)
		fromEngineErr(err).Write(w)
		return
	}
	httpWriteJSON(w, &ReceiptsResponse{Receipts: receipts})
}

// listBallots serves the public views of every ballot of a question.
// GET /elections/{electionId}/{questionId}/ballots
func (a *API) listBallots(w http.ResponseWriter, r *http.Request) {
	electionID, err := urlParamID(r, ElectionURLParam)
	if err != nil {
		ErrMalformedParam.WithErr(err).Write(w)
		return
	}
	questionID, err := urlParamID(r, QuestionURLParam)
	if err != nil {
		ErrMalformedParam.WithErr(err).Write(w)
		return
	}
	ballots, err := a.store.Ballots(r.Context(), electionID, questionID, "")
	if err != nil {
		ErrGenericInternalServerError.Write(w)
		return
	}
	public := make([]*types.Ballot, len(ballots))
	for i, b := range ballots {
		public[i] = b.PublicView()
	}
	httpWriteJSON(w, &BallotsResponse{Ballots: public})
}

// ballotReceipt serves the public receipt of one ballot.
// GET /elections/{electionId}/{questionId}/ballots/{ballotId}
func (a *API) ballotReceipt(w http.ResponseWriter, r *http.Request) {
	electionID, err := urlParamID(r, ElectionURLParam)
	if err != nil {
		ErrMalformedParam.WithErr(err).Write(w)
		return
	}
	questionID, err := urlParamID(r, QuestionURLParam)
	if err != nil {
		ErrMalformedParam.WithErr(err).Write(w)
		return
	}
	ballotID, err := strconv.ParseUint(chi.URLParam(r, BallotURLParam), 10, 64)
	if err != nil {
		ErrMalformedParam.WithErr(err).Write(w)
		return
	}
	receipt, err := a.engine.FetchReceipt(r.Context(), types.BallotRef{
		ElectionID: electionID,
		QuestionID: questionID,
		BallotID:   ballotID,
	})
	if err != nil {
		fromEngineErr(err).Write(w)
		return
	}
	httpWriteJSON(w, receipt)
}

// questionTotals serves the published totals of a closed question together
// with the election private key. Before close the totals stay sealed.
// GET /elections/{electionId}/{questionId}/totals
func (a *API) questionTotals(w http.ResponseWriter, r *http.Request) {
	electionID, err := urlParamID(r, ElectionURLParam)
	if err != nil {
		ErrMalformedParam.WithErr(err).Write(w)
		return
	}
	questionID, err := urlParamID(r, QuestionURLParam)
	if err != nil {
		ErrMalformedParam.WithErr(err).Write(w)
		return
	}
	election, group, err := a.store.ElectionGroup(r.Context(), electionID)
	if err != nil {
		fromEngineErr(err).Write(w)
		return
	}
	if election.State != types.ElectionStateArchived {
		ErrElectionNotClosed.Write(w)
		return
	}
	acc := tally.NewAccumulator(a.store, group.Order())
	results, err := acc.Results(r.Context(), electionID, questionID)
	if err != nil {
		ErrGenericInternalServerError.Write(w)
		return
	}
	httpWriteJSON(w, &TotalsResponse{
		Results:    results,
		PrivateKey: election.Crypto.PrivateKey,
	})
}

// questionDump serves the full public record of a question for independent
// verification. The private key and the totals are attached only once the
// election is closed.
// GET /elections/{electionId}/{questionId}/dump
func (a *API) questionDump(w http.ResponseWriter, r *http.Request) {
	electionID, err := urlParamID(r, ElectionURLParam)
	if err != nil {
		ErrMalformedParam.WithErr(err).Write(w)
		return
	}
	questionID, err := urlParamID(r, QuestionURLParam)
	if err != nil {
		ErrMalformedParam.WithErr(err).Write(w)
		return
	}
	election, err := a.store.Election(r.Context(), electionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			ErrElectionNotFound.Write(w)
			return
		}
		ErrGenericInternalServerError.Write(w)
		return
	}
	question := election.Question(questionID)
	if question == nil {
		ErrResourceNotFound.Write(w)
		return
	}
	audited, err := a.store.Ballots(r.Context(), electionID, questionID, types.BallotStateAudited)
	if err != nil {
		ErrGenericInternalServerError.Write(w)
		return
	}
	confirmed, err := a.store.Ballots(r.Context(), electionID, questionID, types.BallotStateConfirmed)
	if err != nil {
		ErrGenericInternalServerError.Write(w)
		return
	}
	dump := &verify.QuestionDump{
		ElectionID:       electionID,
		QuestionID:       questionID,
		Candidates:       question.Candidates,
		CurveType:        election.Crypto.CurveType,
		G1:               election.Crypto.G1,
		G2:               election.Crypto.G2,
		PublicKey:        election.Crypto.PublicKey,
		AuditedBallots:   audited,
		ConfirmedBallots: confirmed,
	}
	if election.State == types.ElectionStateArchived {
		dump.PrivateKey = election.Crypto.PrivateKey
		totals, err := a.store.CandidateTotals(r.Context(), electionID, questionID)
		if err != nil {
			ErrGenericInternalServerError.Write(w)
			return
		}
		dump.Totals = totals
	}
	httpWriteJSON(w, dump)
}
