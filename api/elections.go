package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/vocdoni/dreip-node/crypto"
	"github.com/vocdoni/dreip-node/crypto/dreip"
	"github.com/vocdoni/dreip-node/crypto/ecc/bn254"
	"github.com/vocdoni/dreip-node/log"
	"github.com/vocdoni/dreip-node/storage"
	"github.com/vocdoni/dreip-node/types"
)

// createElection mints the crypto bundle for a new election and persists
// the document in Draft state. The full metadata lifecycle lives in the
// admin surface; this is the minimal creation path the ballot engine needs.
// POST /elections
func (a *API) createElection(w http.ResponseWriter, r *http.Request) {
	var req CreateElectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrMalformedBody.WithErr(err).Write(w)
		return
	}
	if len(req.Questions) == 0 {
		ErrMalformedBody.With("election has no questions").Write(w)
		return
	}

	group, x, err := dreip.GenerateElection(bn254.CurveType)
	if err != nil {
		log.Warnw("could not generate election keys", "error", err)
		ErrGenericInternalServerError.Write(w)
		return
	}
	id := uuid.New()
	election := &types.Election{
		ID:          id[:],
		Name:        req.Name,
		State:       types.ElectionStateDraft,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Electorates: req.Electorates,
		Questions:   req.Questions,
		Crypto: types.CryptoParams{
			CurveType:  group.CurveType(),
			G1:         group.G1().Marshal(),
			G2:         group.G2().Marshal(),
			PublicKey:  group.PublicKey().Marshal(),
			PrivateKey: crypto.ScalarToBytes(x),
		},
	}
	if err := a.store.CreateElection(r.Context(), election); err != nil {
		if errors.Is(err, storage.ErrKeyAlreadyExists) {
			ErrElectionAlreadyExists.Write(w)
			return
		}
		ErrMalformedBody.WithErr(err).Write(w)
		return
	}
	public := *election
	public.Crypto = election.Crypto.WithoutPrivateKey()
	httpWriteJSON(w, &public)
}

// electionInfo returns the election document. The private key is omitted
// unless the election is archived.
// GET /elections/{electionId}
func (a *API) electionInfo(w http.ResponseWriter, r *http.Request) {
	electionID, err := urlParamID(r, ElectionURLParam)
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
	public := *election
	public.Crypto = election.Crypto.WithoutPrivateKey()
	if election.State == types.ElectionStateArchived {
		// Closed elections publish the private key with the results.
		public.Crypto = election.Crypto
	}
	httpWriteJSON(w, &public)
}

// setElectionState moves an election through its lifecycle.
// POST /elections/{electionId}/state
func (a *API) setElectionState(w http.ResponseWriter, r *http.Request) {
	electionID, err := urlParamID(r, ElectionURLParam)
	if err != nil {
		ErrMalformedParam.WithErr(err).Write(w)
		return
	}
	var req SetElectionStateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrMalformedBody.WithErr(err).Write(w)
		return
	}
	switch req.State {
	case types.ElectionStateDraft, types.ElectionStatePublished, types.ElectionStateArchived:
	default:
		ErrMalformedBody.Withf("unknown election state %q", req.State).Write(w)
		return
	}
	if err := a.store.SetElectionState(r.Context(), electionID, req.State); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			ErrElectionNotFound.Write(w)
			return
		}
		ErrGenericInternalServerError.Write(w)
		return
	}
	httpWriteOK(w)
}
