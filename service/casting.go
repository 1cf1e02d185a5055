package service

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"dualvote-backend/encryption"
	"dualvote-backend/models"
	"dualvote-backend/registry"
)

// CastingService orchestrates a dual-ballot cast: eligibility check,
// admission against the election state, selection validation, duplicate
// reservation, encryption, split-store commit, and receipt issuance.
//
// Reservation and ballot commit form a saga: if the commit fails the
// reservation is rolled back automatically; if the rollback itself fails
// the error escalates as a PartialCastError for admin reconciliation.
type CastingService struct {
	store     Store
	crypto    *encryption.CryptoService
	registry  registry.EligibilityRegistry
	elections *ElectionService
	guard     *DuplicateCastGuard
	receipts  *ReceiptService
	metrics   *MetricsCollector
}

func NewCastingService(store Store, cryptoService *encryption.CryptoService,
	eligibility registry.EligibilityRegistry, elections *ElectionService,
	guard *DuplicateCastGuard, receipts *ReceiptService, metrics *MetricsCollector) *CastingService {

	return &CastingService{
		store:     store,
		crypto:    cryptoService,
		registry:  eligibility,
		elections: elections,
		guard:     guard,
		receipts:  receipts,
		metrics:   metrics,
	}
}

// CastDualBallot records one FPTP and one PR vote for an eligible voter and
// returns the receipt. The voter identity is trusted: authentication and
// session handling happen upstream.
func (cs *CastingService) CastDualBallot(req models.CastRequest) (*models.CastReceipt, error) {
	started := time.Now()

	voter, err := cs.registry.Lookup(req.VoterID)
	if err != nil {
		return nil, err
	}
	if !voter.Eligible {
		return nil, models.ErrVoterNotEligible
	}

	// Cheap duplicate pre-check before any further work. The binding
	// decision is the reservation below.
	if cs.guard.AlreadyCast(req.VoterID, req.ElectionID) {
		return nil, models.ErrAlreadyVoted
	}

	election, done, err := cs.elections.BeginCast(req.ElectionID)
	if err != nil {
		return nil, err
	}
	defer done()

	candidate := election.Candidate(req.CandidateID)
	if candidate == nil || candidate.Constituency != voter.Constituency {
		return nil, models.ErrInvalidSelection
	}
	if election.Party(req.PartyID) == nil {
		return nil, models.ErrInvalidSelection
	}

	publicKey, err := encryption.ParsePublicKey(election.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("election key material unavailable: %w", err)
	}

	fptpPlain, err := json.Marshal(models.FPTPSelection{
		CandidateID:  candidate.CandidateID,
		Constituency: candidate.Constituency,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to serialize FPTP selection: %w", err)
	}
	encryptedFPTP, err := cs.crypto.EncryptSelection(publicKey, fptpPlain)
	if err != nil {
		return nil, err
	}

	prPlain, err := json.Marshal(models.PRSelection{PartyID: req.PartyID})
	if err != nil {
		return nil, fmt.Errorf("failed to serialize PR selection: %w", err)
	}
	encryptedPR, err := cs.crypto.EncryptSelection(publicKey, prPlain)
	if err != nil {
		return nil, err
	}

	token, err := cs.crypto.NewBallotToken()
	if err != nil {
		return nil, err
	}

	castAt := time.Now().UTC()
	if err := cs.guard.TryReserveCast(req.VoterID, req.ElectionID, castAt); err != nil {
		return nil, err
	}

	// The ballot side carries a truncated timestamp so the two stores
	// cannot be joined by exact timestamp equality. The digest binds the
	// truncated value.
	recordedAt := castAt.Truncate(time.Minute)
	digest := cs.crypto.BallotDigest(encryptedFPTP, encryptedPR, req.ElectionID, recordedAt)
	ballot := models.AnonymousBallot{
		BallotID:      uuid.New().String(),
		Token:         token,
		ElectionID:    req.ElectionID,
		EncryptedFPTP: encryptedFPTP,
		EncryptedPR:   encryptedPR,
		IntegrityHash: digest,
		CastAt:        recordedAt,
	}

	if err := cs.store.AppendBallot(ballot); err != nil {
		if rbErr := cs.guard.ReleaseReservation(req.VoterID, req.ElectionID); rbErr != nil {
			fatal := &models.PartialCastError{
				VoterID:     req.VoterID,
				ElectionID:  req.ElectionID,
				CommitErr:   err,
				RollbackErr: rbErr,
			}
			log.Criticalf("FATAL integrity fault, manual reconciliation required: %v", fatal)
			return nil, fatal
		}
		log.Warnf("Ballot commit failed for election %s, reservation rolled back: %v", req.ElectionID, err)
		return nil, fmt.Errorf("failed to commit ballot: %w", err)
	}

	receipt, err := cs.receipts.Issue(req.ElectionID, digest, recordedAt)
	if err != nil {
		// The ballot is committed and will be counted; only the voter's
		// verification artifact is missing. Never retried silently.
		return nil, fmt.Errorf("ballot recorded but receipt issuance failed: %w", err)
	}

	cs.metrics.RecordCast(time.Since(started))
	log.Debugf("Recorded dual ballot for election %s, receipt %s", req.ElectionID, receipt.ReceiptID)

	return &models.CastReceipt{
		ReceiptID:     receipt.ReceiptID,
		IntegrityHash: receipt.IntegrityHash,
		IssuedAt:      receipt.IssuedAt,
	}, nil
}
