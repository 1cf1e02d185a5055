package service

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"dualvote-backend/encryption"
	"dualvote-backend/models"
)

// ElectionService owns the election lifecycle. Status transitions and cast
// admission share one mutex, so a transition to Closed is a barrier: new
// casts are rejected the moment the status flips, and CloseVoting then
// waits for every in-flight cast to commit before returning.
type ElectionService struct {
	store    Store
	keystore *encryption.Keystore

	mu       sync.Mutex
	inFlight map[string]*sync.WaitGroup
}

func NewElectionService(store Store, keystore *encryption.Keystore) *ElectionService {
	return &ElectionService{
		store:    store,
		keystore: keystore,
		inFlight: make(map[string]*sync.WaitGroup),
	}
}

// ElectionParams describes a new dual-ballot election. Candidate and party
// IDs may be supplied; missing ones are generated.
type ElectionParams struct {
	Name           string             `json:"name"`
	Description    string             `json:"description"`
	Constituencies []string           `json:"constituencies"`
	Candidates     []models.Candidate `json:"candidates"`
	Parties        []models.Party     `json:"parties"`
	TotalPRSeats   int                `json:"total_pr_seats"`
	StartDate      time.Time          `json:"start_date"`
	EndDate        time.Time          `json:"end_date"`
}

// CreateElection generates the election's key pair and persists the new
// election in Scheduled state. The private key never leaves the keystore.
func (es *ElectionService) CreateElection(params ElectionParams) (*models.Election, error) {
	electionID := uuid.New().String()

	candidates := make([]models.Candidate, len(params.Candidates))
	for i, c := range params.Candidates {
		if c.CandidateID == "" {
			c.CandidateID = "CAND-" + shortID()
		}
		candidates[i] = c
	}
	parties := make([]models.Party, len(params.Parties))
	for i, p := range params.Parties {
		if p.PartyID == "" {
			p.PartyID = "PTY-" + shortID()
		}
		parties[i] = p
	}

	election := &models.Election{
		ElectionID:     electionID,
		Name:           params.Name,
		Description:    params.Description,
		Constituencies: params.Constituencies,
		Candidates:     candidates,
		Parties:        parties,
		TotalPRSeats:   params.TotalPRSeats,
		StartDate:      params.StartDate.UTC(),
		EndDate:        params.EndDate.UTC(),
		Status:         models.StatusScheduled,
		CreatedAt:      time.Now().UTC(),
	}
	if err := election.Validate(); err != nil {
		return nil, fmt.Errorf("invalid election: %w", err)
	}

	publicKey, err := es.keystore.GenerateElectionKey(electionID)
	if err != nil {
		return nil, fmt.Errorf("failed to set up election key material: %w", err)
	}
	election.PublicKey = publicKey

	if err := es.store.SaveElection(election); err != nil {
		return nil, fmt.Errorf("failed to save election: %w", err)
	}

	log.Infof("Created election %s (%q) with %d constituencies, %d parties, %d PR seats",
		electionID, election.Name, len(election.Constituencies), len(election.Parties), election.TotalPRSeats)
	return election, nil
}

// Election returns a snapshot of the election.
func (es *ElectionService) Election(electionID string) (*models.Election, error) {
	return es.store.Election(electionID)
}

// Elections returns snapshots of all elections ordered by creation time.
func (es *ElectionService) Elections() []*models.Election {
	return es.store.Elections()
}

// OpenVoting transitions Scheduled -> Open.
func (es *ElectionService) OpenVoting(electionID string) error {
	return es.transition(electionID, models.StatusOpen)
}

// CloseVoting transitions Open -> Closed and blocks until all in-flight
// casts have finished, so tallying never races a commit.
func (es *ElectionService) CloseVoting(electionID string) error {
	if err := es.transition(electionID, models.StatusClosed); err != nil {
		return err
	}

	es.mu.Lock()
	wg := es.inFlight[electionID]
	es.mu.Unlock()
	if wg != nil {
		wg.Wait()
	}
	log.Infof("Election %s closed, all in-flight casts drained", electionID)
	return nil
}

// MarkTallied transitions Closed -> Tallied. Called by the tally engine
// after the result snapshot is persisted.
func (es *ElectionService) MarkTallied(electionID string) error {
	return es.transition(electionID, models.StatusTallied)
}

func (es *ElectionService) transition(electionID string, next models.ElectionStatus) error {
	es.mu.Lock()
	defer es.mu.Unlock()

	election, err := es.store.Election(electionID)
	if err != nil {
		return err
	}
	if !election.Status.CanTransitionTo(next) {
		return fmt.Errorf("cannot transition election %s from %s to %s", electionID, election.Status, next)
	}
	if err := es.store.UpdateElectionStatus(electionID, next); err != nil {
		return fmt.Errorf("failed to update election status: %w", err)
	}
	log.Infof("Election %s: %s -> %s", electionID, election.Status, next)
	return nil
}

// BeginCast admits a cast attempt: the election must be Open and the clock
// inside the voting window. On success the cast is registered in-flight and
// the returned release function must be called when it finishes.
func (es *ElectionService) BeginCast(electionID string) (*models.Election, func(), error) {
	es.mu.Lock()
	defer es.mu.Unlock()

	election, err := es.store.Election(electionID)
	if err != nil {
		return nil, nil, err
	}
	if election.Status != models.StatusOpen || !election.InWindow(time.Now().UTC()) {
		return nil, nil, models.ErrElectionNotOpen
	}

	wg := es.inFlight[electionID]
	if wg == nil {
		wg = &sync.WaitGroup{}
		es.inFlight[electionID] = wg
	}
	wg.Add(1)
	return election, wg.Done, nil
}

func shortID() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
}
