package service

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"dualvote-backend/encryption"
	"dualvote-backend/models"
)

// ReceiptService mints receipts binding a cast dual-ballot's integrity hash
// and answers verification lookups. A receipt never encodes the ballot
// token, the voter ID, or any vote content; the only link to the ballot is
// the hash itself.
type ReceiptService struct {
	store  Store
	crypto *encryption.CryptoService
}

func NewReceiptService(store Store, cryptoService *encryption.CryptoService) *ReceiptService {
	return &ReceiptService{store: store, crypto: cryptoService}
}

// Issue mints a receipt for a committed ballot. The receipt ID draws on a
// randomness source independent of the ballot token.
func (rs *ReceiptService) Issue(electionID, integrityHash string, issuedAt time.Time) (*models.Receipt, error) {
	receipt := models.Receipt{
		ReceiptID:     newReceiptID(),
		IntegrityHash: integrityHash,
		ElectionID:    electionID,
		IssuedAt:      issuedAt,
	}
	if err := rs.store.AppendReceipt(receipt); err != nil {
		return nil, fmt.Errorf("failed to persist receipt: %w", err)
	}
	return &receipt, nil
}

// Verify confirms that the receipt's ballot exists and is untampered. The
// stored ciphertexts and metadata are re-hashed and compared against the
// receipt's bound hash; the vote content itself is never decrypted or
// echoed. Each lookup increments the receipt's verification count.
func (rs *ReceiptService) Verify(receiptID string) (*models.VerificationResult, error) {
	receipt, ok := rs.store.Receipt(receiptID)
	if !ok {
		return nil, models.ErrReceiptNotFound
	}

	ballot, ok := rs.store.BallotByHash(receipt.ElectionID, receipt.IntegrityHash)
	if !ok {
		log.Errorf("Receipt %s has no matching ballot in election %s", receiptID, receipt.ElectionID)
		return nil, models.ErrIntegrityViolation
	}

	rehash := rs.crypto.BallotDigest(ballot.EncryptedFPTP, ballot.EncryptedPR, ballot.ElectionID, ballot.CastAt)
	if rehash != receipt.IntegrityHash {
		log.Errorf("Integrity mismatch for receipt %s: ballot payload does not reproduce bound hash", receiptID)
		return nil, models.ErrIntegrityViolation
	}

	count, err := rs.store.IncrementVerificationCount(receiptID)
	if err != nil {
		return nil, fmt.Errorf("failed to record verification: %w", err)
	}

	electionName := receipt.ElectionID
	if election, err := rs.store.Election(receipt.ElectionID); err == nil {
		electionName = election.Name
	}

	return &models.VerificationResult{
		ReceiptID:         receiptID,
		ElectionID:        receipt.ElectionID,
		ElectionName:      electionName,
		RecordedAt:        ballot.CastAt,
		VerificationCount: count,
	}, nil
}

// newReceiptID formats a receipt identifier as RCP- followed by 12 hex
// characters of fresh randomness.
func newReceiptID() string {
	u := uuid.New()
	return "RCP-" + strings.ToUpper(hex.EncodeToString(u[:6]))
}
