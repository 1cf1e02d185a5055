package service

import "dualvote-backend/models"

// Store is the persistence surface the services need. *storage.JSONStore
// satisfies it; tests substitute wrappers to inject commit failures.
type Store interface {
	SaveElection(e *models.Election) error
	Election(electionID string) (*models.Election, error)
	Elections() []*models.Election
	UpdateElectionStatus(electionID string, status models.ElectionStatus) error

	AppendCastRecord(rec models.CastRecord) error
	DeleteCastRecord(voterID, electionID string) error
	CastRecords() []models.CastRecord

	AppendBallot(b models.AnonymousBallot) error
	Ballots(electionID string) []models.AnonymousBallot
	BallotByHash(electionID, integrityHash string) (*models.AnonymousBallot, bool)

	AppendReceipt(r models.Receipt) error
	Receipt(receiptID string) (*models.Receipt, bool)
	IncrementVerificationCount(receiptID string) (int, error)

	SaveTallyResult(res *models.TallyResult) error
	TallyResult(electionID string) (*models.TallyResult, bool)
}
