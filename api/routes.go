package api

// Route constants for the API endpoints

const (
	// Health endpoint
	PingEndpoint = "/ping" // GET: Health check

	// Election endpoints
	ElectionURLParam      = "electionId"
	ElectionsEndpoint     = "/elections"                                          // POST: Create election
	ElectionEndpoint      = "/elections/{" + ElectionURLParam + "}"               // GET: Election public info
	ElectionStateEndpoint = "/elections/{" + ElectionURLParam + "}/state"         // POST: Move election lifecycle
	CastVotesEndpoint     = "/elections/{" + ElectionURLParam + "}/votes/cast"    // POST: Cast ballots
	AuditVotesEndpoint    = "/elections/{" + ElectionURLParam + "}/votes/audit"   // POST: Audit ballots
	ConfirmVotesEndpoint  = "/elections/{" + ElectionURLParam + "}/votes/confirm" // POST: Confirm ballots

	// Question endpoints
	QuestionURLParam = "questionId"
	BallotURLParam   = "ballotId"
	BallotsEndpoint  = "/elections/{" + ElectionURLParam + "}/{" + QuestionURLParam + "}/ballots"                          // GET: List ballots
	BallotEndpoint   = "/elections/{" + ElectionURLParam + "}/{" + QuestionURLParam + "}/ballots/{" + BallotURLParam + "}" // GET: One receipt
	TotalsEndpoint   = "/elections/{" + ElectionURLParam + "}/{" + QuestionURLParam + "}/totals"                           // GET: Published totals
	DumpEndpoint     = "/elections/{" + ElectionURLParam + "}/{" + QuestionURLParam + "}/dump"                             // GET: Question dump
)
