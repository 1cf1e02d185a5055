package service

import (
	"path/filepath"
	"testing"
	"time"

	"dualvote-backend/encryption"
	"dualvote-backend/models"
	"dualvote-backend/registry"
	"dualvote-backend/storage"
)

type testEnv struct {
	store     *storage.JSONStore
	crypto    *encryption.CryptoService
	keystore  *encryption.Keystore
	roll      *registry.FileRegistry
	metrics   *MetricsCollector
	elections *ElectionService
	guard     *DuplicateCastGuard
	receipts  *ReceiptService
	casting   *CastingService
	tally     *TallyService
}

func newTestEnv(t *testing.T) *testEnv {
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

	env := &testEnv{
		store:    store,
		crypto:   crypto,
		keystore: keystore,
		roll:     roll,
		metrics:  NewMetricsCollector(),
	}
	env.elections = NewElectionService(store, keystore)
	env.guard = NewDuplicateCastGuard(store)
	env.receipts = NewReceiptService(store, crypto)
	env.casting = NewCastingService(store, crypto, roll, env.elections, env.guard, env.receipts, env.metrics)
	env.tally = NewTallyService(store, crypto, keystore, env.elections, env.metrics)
	return env
}

// rewire rebuilds the cast-path services on top of a substitute store, used
// to inject persistence failures.
func (env *testEnv) rewire(store Store) {
	env.elections = NewElectionService(store, env.keystore)
	env.guard = NewDuplicateCastGuard(store)
	env.receipts = NewReceiptService(store, env.crypto)
	env.casting = NewCastingService(store, env.crypto, env.roll, env.elections, env.guard, env.receipts, env.metrics)
	env.tally = NewTallyService(store, env.crypto, env.keystore, env.elections, env.metrics)
}

func (env *testEnv) addVoter(t *testing.T, voterID, constituency string) {
	t.Helper()
	if err := env.roll.Add(registry.EligibilityRecord{
		VoterID:      voterID,
		Constituency: constituency,
		Eligible:     true,
	}); err != nil {
		t.Fatalf("roll.Add(%s): %v", voterID, err)
	}
}

// newOpenElection creates and opens a two-constituency election:
// North: CAND-A, CAND-B; South: CAND-C, CAND-D.
// Parties: PTY-RED, PTY-BLUE, PTY-GREEN. 10 PR seats.
func (env *testEnv) newOpenElection(t *testing.T) *models.Election {
	t.Helper()
	now := time.Now().UTC()
	election, err := env.elections.CreateElection(ElectionParams{
		Name:           "General Election",
		Description:    "Dual ballot test election",
		Constituencies: []string{"North", "South"},
		Candidates: []models.Candidate{
			{CandidateID: "CAND-A", Name: "Alice", Party: "Red", Constituency: "North"},
			{CandidateID: "CAND-B", Name: "Bob", Party: "Blue", Constituency: "North"},
			{CandidateID: "CAND-C", Name: "Carol", Party: "Red", Constituency: "South"},
			{CandidateID: "CAND-D", Name: "Dan", Party: "Green", Constituency: "South"},
		},
		Parties: []models.Party{
			{PartyID: "PTY-BLUE", Name: "Blue Party"},
			{PartyID: "PTY-GREEN", Name: "Green Party"},
			{PartyID: "PTY-RED", Name: "Red Party"},
		},
		TotalPRSeats: 10,
		StartDate:    now.Add(-time.Hour),
		EndDate:      now.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("CreateElection: %v", err)
	}
	if err := env.elections.OpenVoting(election.ElectionID); err != nil {
		t.Fatalf("OpenVoting: %v", err)
	}
	return election
}
