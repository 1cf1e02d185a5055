package models

import (
	"fmt"
	"time"
)

// ElectionStatus is the lifecycle state of an election. Transitions are
// strictly forward: Scheduled -> Open -> Closed -> Tallied.
type ElectionStatus string

const (
	StatusScheduled ElectionStatus = "scheduled"
	StatusOpen      ElectionStatus = "open"
	StatusClosed    ElectionStatus = "closed"
	StatusTallied   ElectionStatus = "tallied"
)

// CanTransitionTo reports whether moving from s to next is a legal
// lifecycle step.
func (s ElectionStatus) CanTransitionTo(next ElectionStatus) bool {
	switch s {
	case StatusScheduled:
		return next == StatusOpen
	case StatusOpen:
		return next == StatusClosed
	case StatusClosed:
		return next == StatusTallied
	default:
		return false
	}
}

// Candidate runs for a single constituency seat under the FPTP ballot.
// Party affiliation is informational; PR votes are cast for parties
// directly and are independent of candidate affiliation.
type Candidate struct {
	CandidateID  string `json:"candidate_id"`
	Name         string `json:"name"`
	Party        string `json:"party"`
	Constituency string `json:"constituency"`
}

// Party is an option on the nationwide PR ballot.
type Party struct {
	PartyID string `json:"party_id"`
	Name    string `json:"name"`
}

// Election is a dual-ballot election: one FPTP seat per constituency plus
// a nationwide proportional allocation of TotalPRSeats. Everything except
// Status is immutable once voting opens.
type Election struct {
	ElectionID     string         `json:"election_id"`
	Name           string         `json:"name"`
	Description    string         `json:"description"`
	Constituencies []string       `json:"constituencies"`
	Candidates     []Candidate    `json:"candidates"`
	Parties        []Party        `json:"parties"`
	TotalPRSeats   int            `json:"total_pr_seats"`
	StartDate      time.Time      `json:"start_date"`
	EndDate        time.Time      `json:"end_date"`
	PublicKey      string         `json:"public_key"`
	Status         ElectionStatus `json:"status"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Candidate returns the candidate with the given ID, or nil.
func (e *Election) Candidate(candidateID string) *Candidate {
	for i := range e.Candidates {
		if e.Candidates[i].CandidateID == candidateID {
			return &e.Candidates[i]
		}
	}
	return nil
}

// Party returns the party with the given ID, or nil.
func (e *Election) Party(partyID string) *Party {
	for i := range e.Parties {
		if e.Parties[i].PartyID == partyID {
			return &e.Parties[i]
		}
	}
	return nil
}

// CandidatesByConstituency returns all candidates standing in the given
// constituency.
func (e *Election) CandidatesByConstituency(constituency string) []Candidate {
	var out []Candidate
	for _, c := range e.Candidates {
		if c.Constituency == constituency {
			out = append(out, c)
		}
	}
	return out
}

// HasConstituency reports whether the constituency belongs to the election.
func (e *Election) HasConstituency(constituency string) bool {
	for _, c := range e.Constituencies {
		if c == constituency {
			return true
		}
	}
	return false
}

// InWindow reports whether t falls inside the voting window [start, end).
func (e *Election) InWindow(t time.Time) bool {
	return !t.Before(e.StartDate) && t.Before(e.EndDate)
}

// Validate checks structural consistency of a new election.
func (e *Election) Validate() error {
	if e.Name == "" {
		return fmt.Errorf("election name is required")
	}
	if len(e.Constituencies) == 0 {
		return fmt.Errorf("election needs at least one constituency")
	}
	if len(e.Parties) == 0 {
		return fmt.Errorf("election needs at least one party for the PR ballot")
	}
	if e.TotalPRSeats <= 0 {
		return fmt.Errorf("total PR seats must be positive, got %d", e.TotalPRSeats)
	}
	if !e.EndDate.After(e.StartDate) {
		return fmt.Errorf("election end date must be after start date")
	}
	for _, c := range e.Candidates {
		if !e.HasConstituency(c.Constituency) {
			return fmt.Errorf("candidate %s assigned to unknown constituency %q", c.CandidateID, c.Constituency)
		}
	}
	return nil
}
