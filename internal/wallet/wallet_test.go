package wallet

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewKeypair_Formats(t *testing.T) {
	orig, err := NewRandomKeypair()
	require.NoError(t, err)

	fromB58, err := NewKeypair(orig.Export())
	require.NoError(t, err)
	assert.Equal(t, orig.PublicKey(), fromB58.PublicKey())

	raw := []byte(orig.priv)
	ints := make([]int, len(raw))
	for i, b := range raw {
		ints[i] = int(b)
	}
	js, err := json.Marshal(ints)
	require.NoError(t, err)

	fromJSON, err := NewKeypair(" " + string(js) + "\n")
	require.NoError(t, err)
	assert.Equal(t, orig.Address(), fromJSON.Address())
}

func TestNewKeypair_Invalid(t *testing.T) {
	for _, in := range []string{"", "  ", "[1,2,3]", "[300]", "[", "notbase58!", "3yZe7d"} {
		_, err := NewKeypair(in)
		assert.Error(t, err, in)
	}
}

func TestKeypairFromFile(t *testing.T) {
	kp, err := NewRandomKeypair()
	require.NoError(t, err)

	ints := make([]int, 0, 64)
	for _, b := range kp.priv {
		ints = append(ints, int(b))
	}
	js, _ := json.Marshal(ints)
	path := filepath.Join(t.TempDir(), "id.json")
	require.NoError(t, os.WriteFile(path, js, 0o600))

	loaded, err := KeypairFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, kp.PublicKey(), loaded.PublicKey())

	_, err = KeypairFromFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestKeypairFromEnv(t *testing.T) {
	kp, err := NewRandomKeypair()
	require.NoError(t, err)

	t.Setenv("TEST_TREASURY_KEY", kp.Export())
	loaded, err := KeypairFromEnv("TEST_TREASURY_KEY")
	require.NoError(t, err)
	assert.Equal(t, kp.Address(), loaded.Address())

	_, err = KeypairFromEnv("TEST_TREASURY_KEY_UNSET")
	assert.Error(t, err)
}

func TestSignTransaction(t *testing.T) {
	kp, err := NewRandomKeypair()
	require.NoError(t, err)
	other, err := NewRandomKeypair()
	require.NoError(t, err)

	ix := solana.NewInstruction(solana.SystemProgramID, solana.AccountMetaSlice{
		{PublicKey: kp.PublicKey(), IsSigner: true, IsWritable: true},
	}, []byte("gm"))
	tx, err := solana.NewTransaction([]solana.Instruction{ix}, solana.Hash(other.PublicKey()), solana.TransactionPayer(kp.PublicKey()))
	require.NoError(t, err)

	require.NoError(t, kp.SignTransaction(context.Background(), tx))
	assert.NoError(t, tx.VerifySignatures())

	foreign, err := solana.NewTransaction([]solana.Instruction{ix}, solana.Hash(other.PublicKey()), solana.TransactionPayer(kp.PublicKey()))
	require.NoError(t, err)
	assert.Error(t, other.SignTransaction(context.Background(), foreign))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, kp.SignTransaction(ctx, tx))
}

func TestNewKeypair_RejectsMismatchedPublicHalf(t *testing.T) {
	kp, err := NewRandomKeypair()
	require.NoError(t, err)

	raw := append([]byte(nil), kp.priv...)
	raw[63] ^= 0xff
	_, err = NewKeypair(solana.PrivateKey(raw).String())
	assert.ErrorIs(t, err, errKeyMismatch)
}
