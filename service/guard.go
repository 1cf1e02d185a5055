package service

import (
	"fmt"
	"sync"
	"time"

	"dualvote-backend/models"
)

type castKey struct {
	voterID    string
	electionID string
}

// DuplicateCastGuard enforces at most one dual-ballot per (voter, election).
// TryReserveCast is the single contention point of a cast: the map insert
// under one mutex makes concurrent reservations for the same pair resolve
// to exactly one winner. Contention is per reservation attempt, never per
// election.
type DuplicateCastGuard struct {
	mu       sync.Mutex
	reserved map[castKey]struct{}
	store    Store
}

// NewDuplicateCastGuard builds a guard pre-seeded from the persisted cast
// records, so restarts cannot re-admit a voter who already cast.
func NewDuplicateCastGuard(store Store) *DuplicateCastGuard {
	g := &DuplicateCastGuard{
		reserved: make(map[castKey]struct{}),
		store:    store,
	}
	for _, rec := range store.CastRecords() {
		g.reserved[castKey{rec.VoterID, rec.ElectionID}] = struct{}{}
	}
	return g
}

// AlreadyCast reports whether a reservation exists for the pair. A cheap
// pre-check; the authoritative decision is TryReserveCast.
func (g *DuplicateCastGuard) AlreadyCast(voterID, electionID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.reserved[castKey{voterID, electionID}]
	return ok
}

// TryReserveCast atomically checks for an existing reservation and inserts
// one, persisting the cast record in the same step. Exactly one of N
// concurrent calls for the same pair succeeds; the rest get ErrAlreadyVoted.
func (g *DuplicateCastGuard) TryReserveCast(voterID, electionID string, castAt time.Time) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := castKey{voterID, electionID}
	if _, ok := g.reserved[key]; ok {
		return models.ErrAlreadyVoted
	}
	g.reserved[key] = struct{}{}

	if err := g.store.AppendCastRecord(models.CastRecord{
		VoterID:    voterID,
		ElectionID: electionID,
		CastAt:     castAt,
	}); err != nil {
		delete(g.reserved, key)
		return fmt.Errorf("failed to persist cast record: %w", err)
	}
	return nil
}

// ReleaseReservation is the compensating action for a failed ballot commit.
// A reservation without a committed ballot would permanently lock out a
// legitimate voter, so this must succeed; failure is escalated by the caller.
func (g *DuplicateCastGuard) ReleaseReservation(voterID, electionID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := castKey{voterID, electionID}
	if _, ok := g.reserved[key]; !ok {
		return fmt.Errorf("no reservation held for election %s", electionID)
	}
	if err := g.store.DeleteCastRecord(voterID, electionID); err != nil {
		return fmt.Errorf("failed to delete cast record: %w", err)
	}
	delete(g.reserved, key)
	return nil
}
