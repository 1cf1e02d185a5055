package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"dualvote-backend/models"
)

// JSONStore keeps the three append-only stores of a cast event (cast
// records, anonymous ballots, receipts) in separate files with no foreign
// key between the identity side and the vote side. Each write lands whole
// via a temp-file rename. Election status and a receipt's verification
// count are the only fields ever mutated.
type JSONStore struct {
	basePath string
	mu       sync.RWMutex

	elections   map[string]*models.Election
	castRecords []models.CastRecord
	ballots     []models.AnonymousBallot
	receipts    map[string]*models.Receipt
	results     map[string]*models.TallyResult
}

const (
	electionsFile   = "elections.json"
	castRecordsFile = "cast_records.json"
	ballotsFile     = "ballots.json"
	receiptsFile    = "receipts.json"
	resultsFile     = "results.json"
)

func NewJSONStore(basePath string) (*JSONStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	s := &JSONStore{
		basePath:  basePath,
		elections: make(map[string]*models.Election),
		receipts:  make(map[string]*models.Receipt),
		results:   make(map[string]*models.TallyResult),
	}

	var elections []*models.Election
	if err := s.loadFile(electionsFile, &elections); err != nil {
		return nil, err
	}
	for _, e := range elections {
		s.elections[e.ElectionID] = e
	}
	if err := s.loadFile(castRecordsFile, &s.castRecords); err != nil {
		return nil, err
	}
	if err := s.loadFile(ballotsFile, &s.ballots); err != nil {
		return nil, err
	}
	var receipts []*models.Receipt
	if err := s.loadFile(receiptsFile, &receipts); err != nil {
		return nil, err
	}
	for _, r := range receipts {
		s.receipts[r.ReceiptID] = r
	}
	var results []*models.TallyResult
	if err := s.loadFile(resultsFile, &results); err != nil {
		return nil, err
	}
	for _, r := range results {
		s.results[r.ElectionID] = r
	}

	log.Debugf("Opened store at %s: %d elections, %d cast records, %d ballots, %d receipts",
		basePath, len(s.elections), len(s.castRecords), len(s.ballots), len(s.receipts))
	return s, nil
}

func (s *JSONStore) loadFile(name string, v interface{}) error {
	data, err := os.ReadFile(filepath.Join(s.basePath, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", name, err)
	}
	return nil
}

func (s *JSONStore) saveFile(name string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", name, err)
	}

	path := filepath.Join(s.basePath, name)
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to save %s: %w", name, err)
	}
	return nil
}

// Elections

func (s *JSONStore) SaveElection(e *models.Election) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *e
	s.elections[e.ElectionID] = &cp
	return s.saveFile(electionsFile, s.electionListLocked())
}

func (s *JSONStore) Election(electionID string) (*models.Election, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.elections[electionID]
	if !ok {
		return nil, models.ErrElectionNotFound
	}
	cp := *e
	return &cp, nil
}

func (s *JSONStore) Elections() []*models.Election {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.electionListLocked()
}

func (s *JSONStore) electionListLocked() []*models.Election {
	out := make([]*models.Election, 0, len(s.elections))
	for _, e := range s.elections {
		cp := *e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s *JSONStore) UpdateElectionStatus(electionID string, status models.ElectionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.elections[electionID]
	if !ok {
		return models.ErrElectionNotFound
	}
	e.Status = status
	return s.saveFile(electionsFile, s.electionListLocked())
}

// Cast records (identity side)

func (s *JSONStore) AppendCastRecord(rec models.CastRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.castRecords = append(s.castRecords, rec)
	if err := s.saveFile(castRecordsFile, s.castRecords); err != nil {
		s.castRecords = s.castRecords[:len(s.castRecords)-1]
		return err
	}
	return nil
}

// DeleteCastRecord removes a cast record. It exists solely as the
// compensating action when a ballot commit fails after reservation.
func (s *JSONStore) DeleteCastRecord(voterID, electionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, rec := range s.castRecords {
		if rec.VoterID == voterID && rec.ElectionID == electionID {
			s.castRecords = append(s.castRecords[:i], s.castRecords[i+1:]...)
			return s.saveFile(castRecordsFile, s.castRecords)
		}
	}
	return fmt.Errorf("cast record for election %s not found", electionID)
}

func (s *JSONStore) CastRecords() []models.CastRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.CastRecord, len(s.castRecords))
	copy(out, s.castRecords)
	return out
}

// Anonymous ballots (vote side)

// AppendBallot stores a ballot keeping the slice ordered by token. Tokens
// are uniformly random, so on-disk position carries no trace of cast order.
func (s *JSONStore) AppendBallot(b models.AnonymousBallot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := sort.Search(len(s.ballots), func(i int) bool { return s.ballots[i].Token >= b.Token })
	s.ballots = append(s.ballots, models.AnonymousBallot{})
	copy(s.ballots[i+1:], s.ballots[i:])
	s.ballots[i] = b

	if err := s.saveFile(ballotsFile, s.ballots); err != nil {
		s.ballots = append(s.ballots[:i], s.ballots[i+1:]...)
		return err
	}
	return nil
}

func (s *JSONStore) Ballots(electionID string) []models.AnonymousBallot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.AnonymousBallot
	for _, b := range s.ballots {
		if b.ElectionID == electionID {
			out = append(out, b)
		}
	}
	return out
}

func (s *JSONStore) BallotByHash(electionID, integrityHash string) (*models.AnonymousBallot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, b := range s.ballots {
		if b.ElectionID == electionID && b.IntegrityHash == integrityHash {
			cp := b
			return &cp, true
		}
	}
	return nil, false
}

// Receipts

func (s *JSONStore) AppendReceipt(r models.Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := r
	s.receipts[r.ReceiptID] = &cp
	if err := s.saveFile(receiptsFile, s.receiptListLocked()); err != nil {
		delete(s.receipts, r.ReceiptID)
		return err
	}
	return nil
}

func (s *JSONStore) Receipt(receiptID string) (*models.Receipt, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.receipts[receiptID]
	if !ok {
		return nil, false
	}
	cp := *r
	return &cp, true
}

// IncrementVerificationCount bumps the only mutable receipt field and
// returns the new count.
func (s *JSONStore) IncrementVerificationCount(receiptID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.receipts[receiptID]
	if !ok {
		return 0, models.ErrReceiptNotFound
	}
	r.VerificationCount++
	if err := s.saveFile(receiptsFile, s.receiptListLocked()); err != nil {
		r.VerificationCount--
		return 0, err
	}
	return r.VerificationCount, nil
}

func (s *JSONStore) receiptListLocked() []*models.Receipt {
	out := make([]*models.Receipt, 0, len(s.receipts))
	for _, r := range s.receipts {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReceiptID < out[j].ReceiptID })
	return out
}

// Tally results

func (s *JSONStore) SaveTallyResult(res *models.TallyResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *res
	s.results[res.ElectionID] = &cp
	out := make([]*models.TallyResult, 0, len(s.results))
	for _, r := range s.results {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ElectionID < out[j].ElectionID })
	return s.saveFile(resultsFile, out)
}

func (s *JSONStore) TallyResult(electionID string) (*models.TallyResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.results[electionID]
	if !ok {
		return nil, false
	}
	cp := *r
	return &cp, true
}
