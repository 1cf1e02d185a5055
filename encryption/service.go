package encryption

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/crypto/ecies"
	"golang.org/x/crypto/sha3"
)

// CryptoService bundles the ballot sealing and integrity hashing primitives.
// Selections are sealed with ECIES under the election public key: every call
// draws a fresh ephemeral key, so equal plaintexts never produce equal
// ciphertexts.
type CryptoService struct{}

func NewCryptoService() *CryptoService {
	return &CryptoService{}
}

// GenerateElectionKey creates a new secp256k1 key pair for an election.
func (cs *CryptoService) GenerateElectionKey() (*ecdsa.PrivateKey, error) {
	return crypto.GenerateKey()
}

// EncryptSelection seals a serialized ballot selection with the election
// public key. Non-deterministic by construction.
func (cs *CryptoService) EncryptSelection(publicKey *ecdsa.PublicKey, plaintext []byte) ([]byte, error) {
	ct, err := ecies.Encrypt(rand.Reader, ecies.ImportECDSAPublic(publicKey), plaintext, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt selection: %w", err)
	}
	return ct, nil
}

// DecryptSelection opens a sealed selection with the election private key.
func (cs *CryptoService) DecryptSelection(privateKey *ecdsa.PrivateKey, ciphertext []byte) ([]byte, error) {
	pt, err := ecies.ImportECDSA(privateKey).Decrypt(ciphertext, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt selection: %w", err)
	}
	return pt, nil
}

// Keccak256 computes a Keccak-256 hash over the concatenation of data.
func (cs *CryptoService) Keccak256(data ...[]byte) []byte {
	d := sha3.NewLegacyKeccak256()
	for _, b := range data {
		d.Write(b)
	}
	return d.Sum(nil)
}

// BallotDigest computes the integrity hash binding a ballot's ciphertexts
// to its election and timestamp. Fields are length-prefixed so the
// serialization is canonical: no two distinct payloads share an encoding.
func (cs *CryptoService) BallotDigest(encryptedFPTP, encryptedPR []byte, electionID string, castAt time.Time) string {
	buf := new(bytes.Buffer)
	for _, field := range [][]byte{encryptedFPTP, encryptedPR, []byte(electionID)} {
		binary.Write(buf, binary.BigEndian, uint32(len(field)))
		buf.Write(field)
	}
	binary.Write(buf, binary.BigEndian, castAt.UnixNano())
	return hex.EncodeToString(cs.Keccak256(buf.Bytes()))
}

// NewBallotToken draws a fresh 256-bit token joining the two halves of a
// cast event. Generated one-way: it never appears next to a voter ID.
func (cs *CryptoService) NewBallotToken() (string, error) {
	token := make([]byte, 32)
	if _, err := rand.Read(token); err != nil {
		return "", fmt.Errorf("failed to generate ballot token: %w", err)
	}
	return hex.EncodeToString(token), nil
}
