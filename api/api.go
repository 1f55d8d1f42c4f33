package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/vocdoni/dreip-node/ballotbox"
	"github.com/vocdoni/dreip-node/log"
	"github.com/vocdoni/dreip-node/types"
)

const apiRequestTimeout = 30 * time.Second

// Store is the persistence surface the API needs: the ballot engine's
// store plus the election and listing accessors of the HTTP surface.
// *storage.Storage implements it.
type Store interface {
	ballotbox.Store
	CreateElection(ctx context.Context, e *types.Election) error
	Election(ctx context.Context, id types.HexBytes) (*types.Election, error)
	SetElectionState(ctx context.Context, id types.HexBytes, state types.ElectionState) error
	Ballots(ctx context.Context, electionID, questionID types.HexBytes, state types.BallotState) ([]*types.Ballot, error)
}

// APIConfig type represents the configuration for the API HTTP server.
type APIConfig struct {
	Host       string
	Port       int
	Store      Store
	HMACSecret []byte // secret for the receipt signatures, set once at startup
}

// API type represents the API HTTP server.
type API struct {
	router *chi.Mux
	store  Store
	engine *ballotbox.Engine
}

// New creates a new API instance with the given configuration and starts
// the HTTP server in the background.
func New(ctx context.Context, conf *APIConfig) (*API, error) {
	a, err := NewWithoutServer(conf)
	if err != nil {
		return nil, err
	}
	go func() {
		addr := fmt.Sprintf("%s:%d", conf.Host, conf.Port)
		log.Infow("starting API server", "host", conf.Host, "port", conf.Port)
		server := &http.Server{
			Addr:              addr,
			Handler:           a.router,
			ReadHeaderTimeout: apiRequestTimeout,
			BaseContext:       func(net.Listener) context.Context { return ctx },
		}
		if err := server.ListenAndServe(); err != nil {
			log.Fatalf("failed to start the API server: %v", err)
		}
	}()
	return a, nil
}

// NewWithoutServer creates the API without binding a listener, for tests
// and for embedding the router elsewhere.
func NewWithoutServer(conf *APIConfig) (*API, error) {
	if conf == nil {
		return nil, fmt.Errorf("missing API configuration")
	}
	if conf.Store == nil {
		return nil, fmt.Errorf("missing storage instance")
	}
	if len(conf.HMACSecret) == 0 {
		return nil, fmt.Errorf("missing HMAC secret")
	}
	a := &API{
		store:  conf.Store,
		engine: ballotbox.New(conf.Store, conf.HMACSecret),
	}
	a.initRouter()
	return a, nil
}

// Router returns the chi router, for testing purposes.
func (a *API) Router() *chi.Mux {
	return a.router
}

// initRouter creates the router with all the routes and middleware.
func (a *API) initRouter() {
	a.router = chi.NewRouter()
	a.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Timeout(apiRequestTimeout))
	a.registerHandlers()
}

// registerHandlers registers all the HTTP handlers for the API endpoints.
func (a *API) registerHandlers() {
	log.Infow("register handler", "endpoint", PingEndpoint, "method", "GET")
	a.router.Get(PingEndpoint, func(w http.ResponseWriter, _ *http.Request) {
		httpWriteOK(w)
	})
	log.Infow("register handler", "endpoint", ElectionsEndpoint, "method", "POST")
	a.router.Post(ElectionsEndpoint, a.createElection)
	log.Infow("register handler", "endpoint", ElectionEndpoint, "method", "GET")
	a.router.Get(ElectionEndpoint, a.electionInfo)
	log.Infow("register handler", "endpoint", ElectionStateEndpoint, "method", "POST")
	a.router.Post(ElectionStateEndpoint, a.setElectionState)
	log.Infow("register handler", "endpoint", CastVotesEndpoint, "method", "POST")
	a.router.Post(CastVotesEndpoint, a.castVotes)
	log.Infow("register handler", "endpoint", AuditVotesEndpoint, "method", "POST")
	a.router.Post(AuditVotesEndpoint, a.auditVotes)
	log.Infow("register handler", "endpoint", ConfirmVotesEndpoint, "method", "POST")
	a.router.Post(ConfirmVotesEndpoint, a.confirmVotes)
	log.Infow("register handler", "endpoint", BallotsEndpoint, "method", "GET")
	a.router.Get(BallotsEndpoint, a.listBallots)
	log.Infow("register handler", "endpoint", BallotEndpoint, "method", "GET")
	a.router.Get(BallotEndpoint, a.ballotReceipt)
	log.Infow("register handler", "endpoint", TotalsEndpoint, "method", "GET")
	a.router.Get(TotalsEndpoint, a.questionTotals)
	log.Infow("register handler", "endpoint", DumpEndpoint, "method", "GET")
	a.router.Get(DumpEndpoint, a.questionDump)
}
