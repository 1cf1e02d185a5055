package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"dualvote-backend/models"
)

// EligibilityRegistry is the boundary to the external identity system. The
// core trusts its answers as already-verified: it only ever reads the
// voter's constituency assignment and eligibility flag.
type EligibilityRegistry interface {
	Lookup(voterID string) (*EligibilityRecord, error)
}

// EligibilityRecord is the per-voter slice of the electoral roll the core
// is allowed to see.
type EligibilityRecord struct {
	VoterID      string `json:"voter_id"`
	Constituency string `json:"constituency"`
	Eligible     bool   `json:"eligible"`
}

// FileRegistry implements EligibilityRegistry from a JSON voter roll on
// disk. It stands in for the citizen-database collaborator in deployments
// and tests.
type FileRegistry struct {
	path   string
	mu     sync.RWMutex
	voters map[string]*EligibilityRecord
}

func NewFileRegistry(path string) (*FileRegistry, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create registry directory: %w", err)
	}

	r := &FileRegistry{
		path:   path,
		voters: make(map[string]*EligibilityRecord),
	}
	if err := r.load(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *FileRegistry) load() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read voter roll: %w", err)
	}

	var roll struct {
		Voters []*EligibilityRecord `json:"voters"`
	}
	if err := json.Unmarshal(data, &roll); err != nil {
		return fmt.Errorf("failed to unmarshal voter roll: %w", err)
	}

	for _, v := range roll.Voters {
		if v.VoterID == "" {
			return fmt.Errorf("voter roll entry missing voter ID")
		}
		r.voters[v.VoterID] = v
	}
	log.Infof("Loaded voter roll with %d entries from %s", len(r.voters), r.path)
	return nil
}

// Lookup returns the eligibility record for a voter. Unknown voters are
// reported as not eligible rather than as a distinct error: the roll is the
// single source of truth.
func (r *FileRegistry) Lookup(voterID string) (*EligibilityRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.voters[voterID]
	if !ok {
		return nil, models.ErrVoterNotEligible
	}
	cp := *v
	return &cp, nil
}

// Add inserts or replaces a voter roll entry and persists the roll. Used by
// seeding and tests.
func (r *FileRegistry) Add(rec EligibilityRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.voters[rec.VoterID] = &rec

	roll := struct {
		Voters []*EligibilityRecord `json:"voters"`
	}{Voters: make([]*EligibilityRecord, 0, len(r.voters))}
	for _, v := range r.voters {
		roll.Voters = append(roll.Voters, v)
	}

	data, err := json.MarshalIndent(roll, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal voter roll: %w", err)
	}
	if err := os.WriteFile(r.path, data, 0644); err != nil {
		return fmt.Errorf("failed to save voter roll: %w", err)
	}
	return nil
}
