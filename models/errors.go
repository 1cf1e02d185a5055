package models

import (
	"errors"
	"fmt"
)

// Domain errors surfaced by the casting, verification and tally services.
// All are terminal from the caller's point of view; only the partial-cast
// case triggers automatic compensation inside the core.
var (
	ErrAlreadyVoted       = errors.New("voter has already cast a ballot in this election")
	ErrElectionNotOpen    = errors.New("election is not open for voting")
	ErrElectionNotFound   = errors.New("election not found")
	ErrInvalidSelection   = errors.New("candidate or party is not a valid selection for this voter")
	ErrVoterNotEligible   = errors.New("voter is not eligible to vote")
	ErrReceiptNotFound    = errors.New("receipt not found")
	ErrIntegrityViolation = errors.New("ballot integrity check failed")
	ErrTallyPrecondition  = errors.New("election must be closed before tallying")
)

// PartialCastError reports a reservation that succeeded while the ballot
// commit failed. When RollbackErr is nil the reservation was compensated
// and the voter may cast again. A non-nil RollbackErr is a fatal integrity
// fault: the voter is wrongly blocked until an admin reconciles the stores.
type PartialCastError struct {
	VoterID     string
	ElectionID  string
	CommitErr   error
	RollbackErr error
}

func (e *PartialCastError) Error() string {
	if e.RollbackErr != nil {
		return fmt.Sprintf("ballot commit failed for election %s and reservation rollback failed: commit: %v, rollback: %v",
			e.ElectionID, e.CommitErr, e.RollbackErr)
	}
	return fmt.Sprintf("ballot commit failed for election %s, reservation rolled back: %v", e.ElectionID, e.CommitErr)
}

func (e *PartialCastError) Unwrap() error { return e.CommitErr }
