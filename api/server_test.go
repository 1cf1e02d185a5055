package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"dualvote-backend/encryption"
	"dualvote-backend/models"
	"dualvote-backend/registry"
	"dualvote-backend/service"
	"dualvote-backend/storage"
)

type testServer struct {
	*Server
	elections *service.ElectionService
	roll      *registry.FileRegistry
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dir := t.TempDir()

	store, err := storage.NewJSONStore(filepath.Join(dir, "store"))
	if err != nil {
		t.Fatalf("NewJSONStore: %v", err)
	}
	crypto := encryption.NewCryptoService()
	keystore, err := encryption.NewKeystore(filepath.Join(dir, "keys"), crypto)
	if err != nil {
		t.Fatalf("NewKeystore: %v", err)
	}
	roll, err := registry.NewFileRegistry(filepath.Join(dir, "voter_roll.json"))
	if err != nil {
		t.Fatalf("NewFileRegistry: %v", err)
	}

	metrics := service.NewMetricsCollector()
	elections := service.NewElectionService(store, keystore)
	guard := service.NewDuplicateCastGuard(store)
	receipts := service.NewReceiptService(store, crypto)
	casting := service.NewCastingService(store, crypto, roll, elections, guard, receipts, metrics)
	tally := service.NewTallyService(store, crypto, keystore, elections, metrics)

	queue := service.NewCastQueue(casting, 32, 4)
	queue.Start()
	t.Cleanup(queue.Stop)

	server := NewServer(Config{
		Elections: elections,
		Tally:     tally,
		Receipts:  receipts,
		Queue:     queue,
		Metrics:   metrics,
	})
	return &testServer{Server: server, elections: elections, roll: roll}
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.Router().ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func (ts *testServer) openElection(t *testing.T) *models.Election {
	t.Helper()
	now := time.Now().UTC()
	election, err := ts.elections.CreateElection(service.ElectionParams{
		Name:           "General Election",
		Constituencies: []string{"North"},
		Candidates: []models.Candidate{
			{CandidateID: "CAND-A", Name: "Alice", Constituency: "North"},
			{CandidateID: "CAND-B", Name: "Bob", Constituency: "North"},
		},
		Parties: []models.Party{
			{PartyID: "PTY-RED", Name: "Red Party"},
			{PartyID: "PTY-BLUE", Name: "Blue Party"},
		},
		TotalPRSeats: 5,
		StartDate:    now.Add(-time.Hour),
		EndDate:      now.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("CreateElection: %v", err)
	}
	if err := ts.elections.OpenVoting(election.ElectionID); err != nil {
		t.Fatalf("OpenVoting: %v", err)
	}
	return election
}

func (ts *testServer) addVoter(t *testing.T, voterID string) {
	t.Helper()
	if err := ts.roll.Add(registry.EligibilityRecord{
		VoterID:      voterID,
		Constituency: "North",
		Eligible:     true,
	}); err != nil {
		t.Fatalf("roll.Add: %v", err)
	}
}

func TestCreateElectionEndpoint(t *testing.T) {
	ts := newTestServer(t)
	now := time.Now().UTC()

	rec := ts.do(t, http.MethodPost, "/api/elections", service.ElectionParams{
		Name:           "General Election",
		Constituencies: []string{"North"},
		Candidates:     []models.Candidate{{Name: "Alice", Constituency: "North"}},
		Parties:        []models.Party{{Name: "Red Party"}},
		TotalPRSeats:   5,
		StartDate:      now,
		EndDate:        now.Add(time.Hour),
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create election: status %d, body %s", rec.Code, rec.Body.String())
	}

	var election models.Election
	ts.decode(t, rec, &election)
	if election.Status != models.StatusScheduled {
		t.Errorf("new election status: %s", election.Status)
	}
	if election.PublicKey == "" {
		t.Error("new election has no public key")
	}
	if election.Candidates[0].CandidateID == "" || election.Parties[0].PartyID == "" {
		t.Error("expected generated candidate and party IDs")
	}

	rec = ts.do(t, http.MethodGet, "/api/elections/"+election.ElectionID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get election: status %d", rec.Code)
	}

	rec = ts.do(t, http.MethodPost, "/api/elections", service.ElectionParams{Name: "broken"})
	if rec.Code == http.StatusCreated {
		t.Error("invalid election params must not create an election")
	}
}

func TestVoteAndVerifyFlow(t *testing.T) {
	ts := newTestServer(t)
	election := ts.openElection(t)
	ts.addVoter(t, "voter-1")

	cast := models.CastRequest{
		VoterID:     "voter-1",
		ElectionID:  election.ElectionID,
		CandidateID: "CAND-A",
		PartyID:     "PTY-RED",
	}
	rec := ts.do(t, http.MethodPost, "/api/vote", cast)
	if rec.Code != http.StatusOK {
		t.Fatalf("vote: status %d, body %s", rec.Code, rec.Body.String())
	}
	var receipt models.CastReceipt
	ts.decode(t, rec, &receipt)
	if receipt.ReceiptID == "" || receipt.IntegrityHash == "" {
		t.Fatalf("incomplete receipt: %+v", receipt)
	}

	rec = ts.do(t, http.MethodGet, "/api/verify/"+receipt.ReceiptID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("verify: status %d, body %s", rec.Code, rec.Body.String())
	}
	var verification models.VerificationResult
	ts.decode(t, rec, &verification)
	if verification.VerificationCount != 1 {
		t.Errorf("verification count = %d, want 1", verification.VerificationCount)
	}
	if verification.ElectionID != election.ElectionID {
		t.Errorf("verification election %s, want %s", verification.ElectionID, election.ElectionID)
	}

	// Second dual-ballot for the same voter is a conflict.
	rec = ts.do(t, http.MethodPost, "/api/vote", cast)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate vote: status %d, want %d", rec.Code, http.StatusConflict)
	}
}

func TestVoteValidationAndErrorMapping(t *testing.T) {
	ts := newTestServer(t)
	election := ts.openElection(t)
	ts.addVoter(t, "voter-1")

	tests := []struct {
		name string
		req  models.CastRequest
		want int
	}{{
		name: "missing fields",
		req:  models.CastRequest{VoterID: "voter-1"},
		want: http.StatusBadRequest,
	}, {
		name: "unknown election",
		req: models.CastRequest{
			VoterID: "voter-1", ElectionID: "nope",
			CandidateID: "CAND-A", PartyID: "PTY-RED",
		},
		want: http.StatusNotFound,
	}, {
		name: "ineligible voter",
		req: models.CastRequest{
			VoterID: "stranger", ElectionID: election.ElectionID,
			CandidateID: "CAND-A", PartyID: "PTY-RED",
		},
		want: http.StatusForbidden,
	}, {
		name: "unknown candidate",
		req: models.CastRequest{
			VoterID: "voter-1", ElectionID: election.ElectionID,
			CandidateID: "CAND-X", PartyID: "PTY-RED",
		},
		want: http.StatusBadRequest,
	}, {
		name: "unknown party",
		req: models.CastRequest{
			VoterID: "voter-1", ElectionID: election.ElectionID,
			CandidateID: "CAND-A", PartyID: "PTY-X",
		},
		want: http.StatusBadRequest,
	}}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/api/vote", tc.req)
			if rec.Code != tc.want {
				t.Errorf("status %d, want %d (body %s)", rec.Code, tc.want, rec.Body.String())
			}
		})
	}

	rec := ts.do(t, http.MethodGet, "/api/verify/RCP-DOESNOTEXIST", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown receipt: status %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestLifecycleAndResultsEndpoints(t *testing.T) {
	ts := newTestServer(t)
	election := ts.openElection(t)
	ts.addVoter(t, "voter-1")

	// Results are refused until the election is tallied.
	rec := ts.do(t, http.MethodGet, "/api/elections/"+election.ElectionID+"/results", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("results while open: status %d, want %d", rec.Code, http.StatusConflict)
	}

	// So is tallying before close.
	rec = ts.do(t, http.MethodPost, "/api/elections/"+election.ElectionID+"/tally", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("tally while open: status %d, want %d", rec.Code, http.StatusConflict)
	}

	rec = ts.do(t, http.MethodPost, "/api/vote", models.CastRequest{
		VoterID:     "voter-1",
		ElectionID:  election.ElectionID,
		CandidateID: "CAND-A",
		PartyID:     "PTY-RED",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("vote: status %d", rec.Code)
	}

	rec = ts.do(t, http.MethodPost, "/api/elections/"+election.ElectionID+"/close", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("close: status %d, body %s", rec.Code, rec.Body.String())
	}

	// Voting after close is refused.
	rec = ts.do(t, http.MethodPost, "/api/vote", models.CastRequest{
		VoterID:     "voter-1",
		ElectionID:  election.ElectionID,
		CandidateID: "CAND-A",
		PartyID:     "PTY-RED",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("vote after close: status %d, want %d", rec.Code, http.StatusConflict)
	}

	rec = ts.do(t, http.MethodPost, "/api/elections/"+election.ElectionID+"/tally", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("tally: status %d, body %s", rec.Code, rec.Body.String())
	}
	var result models.TallyResult
	ts.decode(t, rec, &result)
	if result.TotalBallots != 1 {
		t.Errorf("tallied %d ballots, want 1", result.TotalBallots)
	}

	rec = ts.do(t, http.MethodGet, "/api/elections/"+election.ElectionID+"/results", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("results: status %d", rec.Code)
	}
}

func TestStatusEndpoint(t *testing.T) {
	ts := newTestServer(t)
	election := ts.openElection(t)

	rec := ts.do(t, http.MethodGet, "/api/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status endpoint: %d", rec.Code)
	}

	var status struct {
		Elections []struct {
			ElectionID string                `json:"election_id"`
			Status     models.ElectionStatus `json:"status"`
		} `json:"elections"`
	}
	ts.decode(t, rec, &status)
	if len(status.Elections) != 1 {
		t.Fatalf("expected 1 election in status, got %d", len(status.Elections))
	}
	if status.Elections[0].ElectionID != election.ElectionID || status.Elections[0].Status != models.StatusOpen {
		t.Errorf("unexpected status entry: %+v", status.Elections[0])
	}
}

func TestUnknownElectionEndpoints(t *testing.T) {
	ts := newTestServer(t)

	for _, call := range []struct {
		method, path string
	}{
		{http.MethodGet, "/api/elections/nope"},
		{http.MethodPost, "/api/elections/nope/open"},
		{http.MethodPost, "/api/elections/nope/close"},
		{http.MethodPost, "/api/elections/nope/tally"},
		{http.MethodGet, "/api/elections/nope/results"},
	} {
		rec := ts.do(t, call.method, call.path, nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s %s: status %d, want %d", call.method, call.path, rec.Code, http.StatusNotFound)
		}
	}
}
