package wallet

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

var errKeyMismatch = errors.New("public half does not match seed")

// KeypairFromEnv loads a keypair from the named environment variable.
func KeypairFromEnv(name string) (*Keypair, error) {
	v, ok := os.LookupEnv(name)
	if !ok || strings.TrimSpace(v) == "" {
		return nil, fmt.Errorf("wallet: %s is not set", name)
	}
	kp, err := NewKeypair(v)
	if err != nil {
		return nil, fmt.Errorf("wallet: %s: %w", name, err)
	}
	return kp, nil
}

// KeypairFromFile loads a solana-keygen JSON keypair file.
func KeypairFromFile(path string) (*Keypair, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("wallet: read keypair file: %w", err)
	}
	kp, err := NewKeypair(string(b))
	if err != nil {
		return nil, fmt.Errorf("wallet: %s: %w", path, err)
	}
	return kp, nil
}

// decodeKey accepts the two formats wallets export: a solana-keygen byte
// array or a base58 string.
func decodeKey(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "[") {
		raw, err := base58.Decode(s)
		if err != nil {
			return nil, fmt.Errorf("invalid base58 private key: %w", err)
		}
		return raw, nil
	}

	var ints []int
	if err := json.Unmarshal([]byte(s), &ints); err != nil {
		return nil, fmt.Errorf("invalid JSON private key: %w", err)
	}
	raw := make([]byte, len(ints))
	for i, v := range ints {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("invalid byte at %d: %d", i, v)
		}
		raw[i] = byte(v)
	}
	return raw, nil
}

// parsePrivateKey decodes s and checks that the embedded public key is the
// one the seed derives, which catches truncated or hand-edited keys.
func parsePrivateKey(s string) (solana.PrivateKey, error) {
	raw, err := decodeKey(s)
	if err != nil {
		return nil, fmt.Errorf("wallet: %w", err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("wallet: expected %d bytes, got %d", ed25519.PrivateKeySize, len(raw))
	}

	derived := ed25519.NewKeyFromSeed(raw[:ed25519.SeedSize])
	if !bytes.Equal(derived[ed25519.SeedSize:], raw[ed25519.SeedSize:]) {
		return nil, fmt.Errorf("wallet: %w", errKeyMismatch)
	}
	return solana.PrivateKey(derived), nil
}
