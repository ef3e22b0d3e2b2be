package wallet

import (
	"context"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// Keypair signs transactions with a locally held ed25519 key. It is used for
// the treasury and for custodial accounts managed by rewardctl.
type Keypair struct {
	priv solana.PrivateKey
	pub  solana.PublicKey
}

// NewKeypair parses a base58-encoded 64-byte key or a solana-keygen JSON array.
func NewKeypair(privateKey string) (*Keypair, error) {
	if strings.TrimSpace(privateKey) == "" {
		return nil, fmt.Errorf("wallet: PrivateKey is required")
	}
	priv, err := parsePrivateKey(privateKey)
	if err != nil {
		return nil, err
	}
	return &Keypair{priv: priv, pub: priv.PublicKey()}, nil
}

// NewRandomKeypair generates a fresh keypair.
func NewRandomKeypair() (*Keypair, error) {
	priv, err := solana.NewRandomPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("wallet: generate key: %w", err)
	}
	return &Keypair{priv: priv, pub: priv.PublicKey()}, nil
}

func (k *Keypair) Address() string             { return k.pub.String() }
func (k *Keypair) PublicKey() solana.PublicKey { return k.pub }

// SignTransaction signs every signer slot this key owns. A transaction that
// needs another signer is left unsigned and reported as an error.
func (k *Keypair) SignTransaction(ctx context.Context, tx *solana.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(k.pub) {
			return &k.priv
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to sign transaction: %w", err)
	}
	return nil
}

// Export returns the key in base58, the format NewKeypair accepts.
func (k *Keypair) Export() string { return k.priv.String() }
