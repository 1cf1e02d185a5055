package encryption

import (
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// Keystore persists per-election key material. Private keys stay on disk
// with 0600 permissions and are only read back at tally time by the tally
// authority.
type Keystore struct {
	dir    string
	crypto *CryptoService
}

type keyRecord struct {
	ElectionID string `json:"election_id"`
	PublicKey  string `json:"public_key"`
	PrivateKey string `json:"private_key"`
}

func NewKeystore(dir string, cryptoService *CryptoService) (*Keystore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create keystore directory: %w", err)
	}
	return &Keystore{dir: dir, crypto: cryptoService}, nil
}

func (ks *Keystore) keyPath(electionID string) string {
	return filepath.Join(ks.dir, fmt.Sprintf("election_%s_key.json", electionID))
}

// GenerateElectionKey creates and persists the key pair for a new election,
// returning the hex-encoded public key for embedding in the election record.
func (ks *Keystore) GenerateElectionKey(electionID string) (string, error) {
	privateKey, err := ks.crypto.GenerateElectionKey()
	if err != nil {
		return "", fmt.Errorf("failed to generate election key: %w", err)
	}

	record := keyRecord{
		ElectionID: electionID,
		PublicKey:  hexutil.Encode(crypto.FromECDSAPub(&privateKey.PublicKey)),
		PrivateKey: hexutil.Encode(crypto.FromECDSA(privateKey)),
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal election key: %w", err)
	}

	if err := os.WriteFile(ks.keyPath(electionID), data, 0600); err != nil {
		return "", fmt.Errorf("failed to save election key: %w", err)
	}

	return record.PublicKey, nil
}

// ElectionKey loads the private key for an election.
func (ks *Keystore) ElectionKey(electionID string) (*ecdsa.PrivateKey, error) {
	data, err := os.ReadFile(ks.keyPath(electionID))
	if err != nil {
		return nil, fmt.Errorf("failed to read election key: %w", err)
	}

	var record keyRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to parse election key: %w", err)
	}

	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(record.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to restore election private key: %w", err)
	}

	return privateKey, nil
}

// ParsePublicKey decodes a hex-encoded election public key.
func ParsePublicKey(publicKeyHex string) (*ecdsa.PublicKey, error) {
	raw, err := hexutil.Decode(publicKeyHex)
	if err != nil {
		return nil, fmt.Errorf("failed to decode election public key: %w", err)
	}
	publicKey, err := crypto.UnmarshalPubkey(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse election public key: %w", err)
	}
	return publicKey, nil
}
