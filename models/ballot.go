package models

import "time"

// CastRecord is the eligibility-side half of a cast event: it proves the
// voter participated and nothing else. Unique per (voter, election).
type CastRecord struct {
	VoterID    string    `json:"voter_id"`
	ElectionID string    `json:"election_id"`
	CastAt     time.Time `json:"cast_at"`
}

// AnonymousBallot is the vote-side half of a cast event. No field can be
// traced back to a voter: Token is drawn fresh from 256 bits of entropy per
// cast and is never stored next to identity, and CastAt is truncated so the
// cast record's exact timestamp cannot be matched against it.
type AnonymousBallot struct {
	BallotID      string    `json:"ballot_id"`
	Token         string    `json:"token"`
	ElectionID    string    `json:"election_id"`
	EncryptedFPTP []byte    `json:"encrypted_fptp"`
	EncryptedPR   []byte    `json:"encrypted_pr"`
	IntegrityHash string    `json:"integrity_hash"`
	CastAt        time.Time `json:"cast_at"`
}

// Receipt is the only artifact handed back to the voter. ReceiptID is drawn
// from a randomness source independent of the ballot token, so holding a
// receipt gives no way to locate the ballot except through the hash binding.
// VerificationCount is the single mutable field in the whole store.
type Receipt struct {
	ReceiptID         string    `json:"receipt_id"`
	IntegrityHash     string    `json:"integrity_hash"`
	ElectionID        string    `json:"election_id"`
	IssuedAt          time.Time `json:"issued_at"`
	VerificationCount int       `json:"verification_count"`
}

// FPTPSelection is the plaintext constituency vote. It is serialized and
// encrypted with the election key; the constituency travels inside the
// ciphertext so the stored ballot leaks nothing about the voter's district.
type FPTPSelection struct {
	CandidateID  string `json:"candidate_id"`
	Constituency string `json:"constituency"`
}

// PRSelection is the plaintext nationwide party vote.
type PRSelection struct {
	PartyID string `json:"party_id"`
}

// CastRequest is a dual-ballot cast as received from the authenticated
// voter. The identity fields are trusted: authentication happens upstream.
type CastRequest struct {
	VoterID     string `json:"voter_id"`
	ElectionID  string `json:"election_id"`
	CandidateID string `json:"candidate_id"`
	PartyID     string `json:"party_id"`
}

// CastReceipt is returned to the voter after a successful cast.
type CastReceipt struct {
	ReceiptID     string    `json:"receipt_id"`
	IntegrityHash string    `json:"integrity_hash"`
	IssuedAt      time.Time `json:"issued_at"`
}

// VerificationResult confirms a receipt without exposing vote content.
type VerificationResult struct {
	ReceiptID         string    `json:"receipt_id"`
	ElectionID        string    `json:"election_id"`
	ElectionName      string    `json:"election_name"`
	RecordedAt        time.Time `json:"recorded_at"`
	VerificationCount int       `json:"verification_count"`
}
