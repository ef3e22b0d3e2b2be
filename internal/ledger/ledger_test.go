package ledger

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/aman-zulfiqar/solana-task-rewards/internal/rpc"
	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMint = "FGn3YwW5iMDe2Sz7ekYTV8ZvAdmQmzeSGpFEsAjHEQnm"

type fakeRPC struct {
	mu sync.Mutex

	decimals  uint8
	accounts  map[string]bool
	balances  map[string]uint64
	blockhash string

	accountErr error
	balanceErr error
	sendErr    error
	status     func(sig string) *rpc.SignatureStatus

	sent  []*solana.Transaction
	calls map[string]int
}

func newFakeRPC() *fakeRPC {
	key, _ := solana.NewRandomPrivateKey()
	return &fakeRPC{
		decimals:  9,
		accounts:  make(map[string]bool),
		balances:  make(map[string]uint64),
		blockhash: solana.Hash(key.PublicKey()).String(),
		calls:     make(map[string]int),
		status: func(string) *rpc.SignatureStatus {
			return &rpc.SignatureStatus{Slot: 1, ConfirmationStatus: "confirmed"}
		},
	}
}

func (f *fakeRPC) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *fakeRPC) hit(method string) {
	f.mu.Lock()
	f.calls[method]++
	f.mu.Unlock()
}

func notFound(method string) error {
	return fmt.Errorf("%s: %w", method, &rpc.RPCError{Code: rpc.CodeInvalidParams, Message: "Invalid param: could not find account"})
}

func (f *fakeRPC) GetAccountInfo(_ context.Context, address string, _ string) (*rpc.AccountInfo, error) {
	f.hit("getAccountInfo")
	if f.accountErr != nil {
		return nil, f.accountErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.accounts[address] {
		return nil, nil
	}
	return &rpc.AccountInfo{Lamports: 2039280, Owner: solana.TokenProgramID.String()}, nil
}

func (f *fakeRPC) GetTokenAccountBalance(_ context.Context, address string, _ string) (*rpc.TokenAmount, error) {
	f.hit("getTokenAccountBalance")
	if f.balanceErr != nil {
		return nil, f.balanceErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.accounts[address] {
		return nil, notFound("getTokenAccountBalance")
	}
	return &rpc.TokenAmount{Amount: strconv.FormatUint(f.balances[address], 10), Decimals: f.decimals}, nil
}

func (f *fakeRPC) GetTokenSupply(_ context.Context, _ string, _ string) (*rpc.TokenAmount, error) {
	f.hit("getTokenSupply")
	return &rpc.TokenAmount{Amount: "1000000000000000", Decimals: f.decimals}, nil
}

func (f *fakeRPC) GetLatestBlockhash(_ context.Context, _ string) (*rpc.Blockhash, error) {
	f.hit("getLatestBlockhash")
	return &rpc.Blockhash{Blockhash: f.blockhash, LastValidBlockHeight: 100}, nil
}

func (f *fakeRPC) SendTransaction(_ context.Context, encodedTx string, _ rpc.SendOptions) (string, error) {
	f.hit("sendTransaction")
	if f.sendErr != nil {
		return "", f.sendErr
	}
	tx, err := DecodeTransaction(encodedTx)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	f.sent = append(f.sent, tx)
	f.mu.Unlock()
	return tx.Signatures[0].String(), nil
}

func (f *fakeRPC) GetSignatureStatuses(_ context.Context, sigs []string) ([]*rpc.SignatureStatus, error) {
	f.hit("getSignatureStatuses")
	out := make([]*rpc.SignatureStatus, len(sigs))
	for i, s := range sigs {
		out[i] = f.status(s)
	}
	return out, nil
}

type testSigner struct {
	key solana.PrivateKey
	err error
}

func newTestSigner(t *testing.T) *testSigner {
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return &testSigner{key: key}
}

func (s *testSigner) PublicKey() solana.PublicKey { return s.key.PublicKey() }

func (s *testSigner) SignTransaction(_ context.Context, tx *solana.Transaction) error {
	if s.err != nil {
		return s.err
	}
	_, err := tx.Sign(func(k solana.PublicKey) *solana.PrivateKey {
		if k.Equals(s.key.PublicKey()) {
			return &s.key
		}
		return nil
	})
	return err
}

func randomOwner(t *testing.T) solana.PublicKey {
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return key.PublicKey()
}

func newTestClient(t *testing.T, f *fakeRPC) *Client {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	c, err := NewClient(ClientConfig{
		RPC:            f,
		Mint:           testMint,
		ConfirmTimeout: 200 * time.Millisecond,
		PollInterval:   5 * time.Millisecond,
		Logger:         logger,
	})
	require.NoError(t, err)
	return c
}

func ataOf(t *testing.T, owner solana.PublicKey) solana.PublicKey {
	ata, _, err := FindAssociatedTokenAddress(owner, solana.MustPublicKeyFromBase58(testMint))
	require.NoError(t, err)
	return ata
}

func programOf(tx *solana.Transaction, i int) solana.PublicKey {
	return tx.Message.AccountKeys[tx.Message.Instructions[i].ProgramIDIndex]
}

func TestToBaseUnits(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		decimals uint8
		want     uint64
		wantErr  bool
	}{
		{"airdrop grant", "200", 9, 200_000_000_000, false},
		{"floors fraction", "0.1", 2, 10, false},
		{"never rounds up", "0.129", 2, 12, false},
		{"zero decimals", "7.9", 0, 7, false},
		{"below smallest unit", "0.001", 2, 0, true},
		{"zero", "0", 9, 0, true},
		{"negative", "-1", 9, 0, true},
		{"overflow", "100000000000000000000", 9, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToBaseUnits(decimal.RequireFromString(tt.amount), tt.decimals)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidAmount))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromBaseUnits(t *testing.T) {
	assert.True(t, decimal.RequireFromString("1.5").Equal(FromBaseUnits(1_500_000_000, 9)))
	assert.True(t, decimal.Zero.Equal(FromBaseUnits(0, 9)))
	assert.True(t, decimal.NewFromInt(42).Equal(FromBaseUnits(42, 0)))
}

func TestParseAddress(t *testing.T) {
	pk, err := ParseAddress("  " + testMint + " ")
	require.NoError(t, err)
	assert.Equal(t, testMint, pk.String())

	for _, bad := range []string{"", "   ", "not-a-key", "0OIl"} {
		_, err := ParseAddress(bad)
		assert.True(t, errors.Is(err, ErrInvalidAddress), bad)
	}
}

func TestResolverResolveIsDeterministic(t *testing.T) {
	f := newFakeRPC()
	r := NewResolver(f, "")
	owner := randomOwner(t)
	mint := solana.MustPublicKeyFromBase58(testMint)

	a, err := r.Resolve(owner, mint)
	require.NoError(t, err)
	b, err := r.Resolve(owner, mint)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	other, err := r.Resolve(randomOwner(t), mint)
	require.NoError(t, err)
	assert.NotEqual(t, a, other)

	_, err = r.Resolve(solana.PublicKey{}, mint)
	assert.True(t, errors.Is(err, ErrInvalidAddress))
	assert.Zero(t, f.count("getAccountInfo"))
}

func TestResolverExists(t *testing.T) {
	ctx := context.Background()
	account := randomOwner(t)

	t.Run("missing", func(t *testing.T) {
		f := newFakeRPC()
		ok, err := NewResolver(f, "").Exists(ctx, account)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("present", func(t *testing.T) {
		f := newFakeRPC()
		f.accounts[account.String()] = true
		ok, err := NewResolver(f, "").Exists(ctx, account)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("not found error is absence", func(t *testing.T) {
		f := newFakeRPC()
		f.accountErr = notFound("getAccountInfo")
		ok, err := NewResolver(f, "").Exists(ctx, account)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("transport failure propagates", func(t *testing.T) {
		f := newFakeRPC()
		f.accountErr = fmt.Errorf("getAccountInfo: %w", rpc.ErrUnavailable)
		_, err := NewResolver(f, "").Exists(ctx, account)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrLedgerUnavailable))
	})

	t.Run("malformed address propagates", func(t *testing.T) {
		f := newFakeRPC()
		f.accountErr = &rpc.RPCError{Code: rpc.CodeInvalidParams, Message: "Invalid param: WrongSize"}
		_, err := NewResolver(f, "").Exists(ctx, account)
		assert.True(t, errors.Is(err, ErrInvalidAddress))
	})
}

func TestGetBalance(t *testing.T) {
	ctx := context.Background()

	t.Run("no token account is zero", func(t *testing.T) {
		f := newFakeRPC()
		bal, err := newTestClient(t, f).GetBalance(ctx, randomOwner(t).String())
		require.NoError(t, err)
		assert.True(t, bal.IsZero())
	})

	t.Run("scales raw units", func(t *testing.T) {
		f := newFakeRPC()
		owner := randomOwner(t)
		ata := ataOf(t, owner).String()
		f.accounts[ata] = true
		f.balances[ata] = 1_500_000_000

		bal, err := newTestClient(t, f).GetBalance(ctx, owner.String())
		require.NoError(t, err)
		assert.Equal(t, "1.5", bal.String())
	})

	t.Run("transient failure", func(t *testing.T) {
		f := newFakeRPC()
		f.balanceErr = fmt.Errorf("getTokenAccountBalance: %w", rpc.ErrUnavailable)
		_, err := newTestClient(t, f).GetBalance(ctx, randomOwner(t).String())
		assert.True(t, errors.Is(err, ErrLedgerUnavailable))
	})

	t.Run("expired context", func(t *testing.T) {
		f := newFakeRPC()
		f.balanceErr = context.DeadlineExceeded
		_, err := newTestClient(t, f).GetBalance(ctx, randomOwner(t).String())
		assert.True(t, errors.Is(err, ErrLedgerUnavailable))
		assert.True(t, errors.Is(err, context.DeadlineExceeded))
	})

	t.Run("invalid owner makes no call", func(t *testing.T) {
		f := newFakeRPC()
		_, err := newTestClient(t, f).GetBalance(ctx, "bogus")
		assert.True(t, errors.Is(err, ErrInvalidAddress))
		assert.Zero(t, f.count("getTokenAccountBalance"))
	})
}

func TestBuildInstructions(t *testing.T) {
	payer := randomOwner(t)
	src := payer
	dst := randomOwner(t)
	mint := solana.MustPublicKeyFromBase58(testMint)
	plan := InstructionPlan{
		Payer:              payer,
		Source:             src,
		Destination:        dst,
		Mint:               mint,
		SourceAccount:      ataOf(t, src),
		DestinationAccount: ataOf(t, dst),
		Decimals:           9,
		BaseAmount:         200_000_000_000,
	}

	t.Run("both accounts missing", func(t *testing.T) {
		ixs, err := BuildInstructions(plan)
		require.NoError(t, err)
		require.Len(t, ixs, 3)
		assert.Equal(t, associatedTokenProgramID, ixs[0].ProgramID())
		assert.Equal(t, plan.SourceAccount, ixs[0].Accounts()[1].PublicKey)
		assert.Equal(t, associatedTokenProgramID, ixs[1].ProgramID())
		assert.Equal(t, plan.DestinationAccount, ixs[1].Accounts()[1].PublicKey)
		assert.Equal(t, payer, ixs[1].Accounts()[0].PublicKey)
		assert.Equal(t, solana.TokenProgramID, ixs[2].ProgramID())

		create, err := ixs[0].Data()
		require.NoError(t, err)
		assert.Equal(t, []byte{1}, create, "idempotent create")

		data, err := ixs[2].Data()
		require.NoError(t, err)
		require.Len(t, data, 10)
		assert.Equal(t, byte(12), data[0])
		assert.Equal(t, uint64(200_000_000_000), binary.LittleEndian.Uint64(data[1:9]))
		assert.Equal(t, byte(9), data[9])

		accs := ixs[2].Accounts()
		require.Len(t, accs, 4)
		assert.Equal(t, plan.SourceAccount, accs[0].PublicKey)
		assert.Equal(t, mint, accs[1].PublicKey)
		assert.Equal(t, plan.DestinationAccount, accs[2].PublicKey)
		assert.Equal(t, src, accs[3].PublicKey)
		assert.True(t, accs[3].IsSigner)
	})

	t.Run("both accounts exist", func(t *testing.T) {
		p := plan
		p.SourceExists, p.DestinationExists = true, true
		ixs, err := BuildInstructions(p)
		require.NoError(t, err)
		require.Len(t, ixs, 1)
		assert.Equal(t, solana.TokenProgramID, ixs[0].ProgramID())
	})

	t.Run("only destination missing", func(t *testing.T) {
		p := plan
		p.SourceExists = true
		ixs, err := BuildInstructions(p)
		require.NoError(t, err)
		require.Len(t, ixs, 2)
		assert.Equal(t, plan.DestinationAccount, ixs[0].Accounts()[1].PublicKey)
	})

	t.Run("zero key", func(t *testing.T) {
		p := plan
		p.Mint = solana.PublicKey{}
		_, err := BuildInstructions(p)
		assert.True(t, errors.Is(err, ErrInvalidAddress))
	})
}

func TestPrepare_PayerAndOrder(t *testing.T) {
	f := newFakeRPC()
	c := newTestClient(t, f)
	treasury := randomOwner(t)
	user := randomOwner(t)
	f.accounts[ataOf(t, treasury).String()] = true

	p, err := c.Prepare(context.Background(), TransferIntent{
		Source:      treasury.String(),
		Destination: user.String(),
		Amount:      decimal.NewFromInt(200),
	}, treasury)
	require.NoError(t, err)

	tx := p.Transaction
	assert.Equal(t, treasury, tx.Message.AccountKeys[0], "payer must be the fee payer")
	require.Len(t, tx.Message.Instructions, 2)
	assert.Equal(t, associatedTokenProgramID, programOf(tx, 0))
	assert.Equal(t, solana.TokenProgramID, programOf(tx, 1))
	assert.Equal(t, uint64(200_000_000_000), p.Plan.BaseAmount)
	assert.Equal(t, []solana.PublicKey{ataOf(t, user)}, p.CreatedAccounts())

	encoded, err := p.Encode()
	require.NoError(t, err)
	assert.Empty(t, p.Transaction.Signatures, "encoding must not touch the prepared envelope")

	decoded, err := DecodeTransaction(encoded)
	require.NoError(t, err)
	assert.Len(t, decoded.Signatures, 1)
}

func TestPrepare_InvalidInputs(t *testing.T) {
	f := newFakeRPC()
	c := newTestClient(t, f)
	owner := randomOwner(t)

	_, err := c.Prepare(context.Background(), TransferIntent{Source: "x", Destination: owner.String(), Amount: decimal.NewFromInt(1)}, owner)
	assert.True(t, errors.Is(err, ErrInvalidAddress))

	_, err = c.Prepare(context.Background(), TransferIntent{Source: owner.String(), Destination: owner.String(), Amount: decimal.Zero}, owner)
	assert.True(t, errors.Is(err, ErrInvalidAmount))

	assert.Zero(t, f.count("getLatestBlockhash"))
}

func TestTransfer_Confirmed(t *testing.T) {
	f := newFakeRPC()
	c := newTestClient(t, f)
	signer := newTestSigner(t)
	dest := randomOwner(t)

	res, err := c.Transfer(context.Background(), TransferIntent{
		Source:      signer.PublicKey().String(),
		Destination: dest.String(),
		Amount:      decimal.RequireFromString("10"),
	}, signer)
	require.NoError(t, err)
	require.Len(t, f.sent, 1)
	assert.Equal(t, f.sent[0].Signatures[0].String(), res.Signature)
	assert.Len(t, res.CreatedAccounts, 2)
	assert.NoError(t, f.sent[0].VerifySignatures())
}

func TestTransfer_SignerMismatch(t *testing.T) {
	f := newFakeRPC()
	c := newTestClient(t, f)

	_, err := c.Transfer(context.Background(), TransferIntent{
		Source:      randomOwner(t).String(),
		Destination: randomOwner(t).String(),
		Amount:      decimal.NewFromInt(1),
	}, newTestSigner(t))
	assert.True(t, errors.Is(err, ErrSignerMismatch))
	assert.Zero(t, f.count("sendTransaction"))
}

func TestTransfer_SignatureRejected(t *testing.T) {
	f := newFakeRPC()
	c := newTestClient(t, f)
	signer := newTestSigner(t)
	signer.err = errors.New("user declined")

	res, err := c.Transfer(context.Background(), TransferIntent{
		Source:      signer.PublicKey().String(),
		Destination: randomOwner(t).String(),
		Amount:      decimal.NewFromInt(1),
	}, signer)
	assert.Nil(t, res)
	assert.True(t, errors.Is(err, ErrSignatureRejected))
	assert.Zero(t, f.count("sendTransaction"))
}

func TestTransfer_SubmissionFailed(t *testing.T) {
	f := newFakeRPC()
	f.sendErr = fmt.Errorf("sendTransaction: %w", &rpc.RPCError{Code: rpc.CodeSendTxPreflight, Message: "insufficient funds"})
	c := newTestClient(t, f)
	signer := newTestSigner(t)

	res, err := c.Transfer(context.Background(), TransferIntent{
		Source:      signer.PublicKey().String(),
		Destination: randomOwner(t).String(),
		Amount:      decimal.NewFromInt(1),
	}, signer)
	assert.Nil(t, res)
	assert.True(t, errors.Is(err, ErrSubmissionFailed))
	assert.False(t, errors.Is(err, ErrConfirmationTimeout))
}

func TestPrepareSigned_SignatureKnownBeforeSend(t *testing.T) {
	f := newFakeRPC()
	c := newTestClient(t, f)
	signer := newTestSigner(t)

	p, err := c.PrepareSigned(context.Background(), TransferIntent{
		Source:      signer.PublicKey().String(),
		Destination: randomOwner(t).String(),
		Amount:      decimal.NewFromInt(1),
	}, signer)
	require.NoError(t, err)
	assert.NotEmpty(t, p.Signature())
	assert.NoError(t, p.Transaction.VerifySignatures())
	assert.Zero(t, f.count("sendTransaction"))

	sig, err := c.Submit(context.Background(), p.Transaction)
	require.NoError(t, err)
	assert.Equal(t, p.Signature(), sig)
}

func TestSubmit_TransportFailureIsUncertain(t *testing.T) {
	for name, sendErr := range map[string]error{
		"retries exhausted": fmt.Errorf("%w: sendTransaction: max retries exceeded: request failed", rpc.ErrUnavailable),
		"deadline":          context.DeadlineExceeded,
	} {
		t.Run(name, func(t *testing.T) {
			f := newFakeRPC()
			c := newTestClient(t, f)
			signer := newTestSigner(t)

			p, err := c.PrepareSigned(context.Background(), TransferIntent{
				Source:      signer.PublicKey().String(),
				Destination: randomOwner(t).String(),
				Amount:      decimal.NewFromInt(1),
			}, signer)
			require.NoError(t, err)

			f.sendErr = sendErr
			sig, err := c.Submit(context.Background(), p.Transaction)
			require.Error(t, err)
			assert.Equal(t, p.Signature(), sig)
			assert.True(t, errors.Is(err, ErrConfirmationTimeout))
			assert.True(t, errors.Is(err, sendErr))
			assert.False(t, errors.Is(err, ErrSubmissionFailed))
		})
	}
}

func TestTransfer_TransportFailureKeepsSignature(t *testing.T) {
	f := newFakeRPC()
	f.sendErr = fmt.Errorf("%w: sendTransaction: max retries exceeded", rpc.ErrUnavailable)
	c := newTestClient(t, f)
	signer := newTestSigner(t)

	res, err := c.Transfer(context.Background(), TransferIntent{
		Source:      signer.PublicKey().String(),
		Destination: randomOwner(t).String(),
		Amount:      decimal.NewFromInt(1),
	}, signer)
	assert.True(t, errors.Is(err, ErrConfirmationTimeout))
	require.NotNil(t, res)
	assert.NotEmpty(t, res.Signature)
}

func TestTransfer_ConfirmationTimeoutKeepsSignature(t *testing.T) {
	f := newFakeRPC()
	f.status = func(string) *rpc.SignatureStatus { return nil }
	c := newTestClient(t, f)
	signer := newTestSigner(t)

	res, err := c.Transfer(context.Background(), TransferIntent{
		Source:      signer.PublicKey().String(),
		Destination: randomOwner(t).String(),
		Amount:      decimal.NewFromInt(1),
	}, signer)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfirmationTimeout))
	require.NotNil(t, res)
	assert.NotEmpty(t, res.Signature)
	assert.Greater(t, f.count("getSignatureStatuses"), 1)
}

func TestTransfer_FailedOnChain(t *testing.T) {
	f := newFakeRPC()
	f.status = func(string) *rpc.SignatureStatus {
		return &rpc.SignatureStatus{Slot: 3, Err: map[string]any{"InstructionError": []any{2, "Custom"}}}
	}
	c := newTestClient(t, f)
	signer := newTestSigner(t)

	_, err := c.Transfer(context.Background(), TransferIntent{
		Source:      signer.PublicKey().String(),
		Destination: randomOwner(t).String(),
		Amount:      decimal.NewFromInt(1),
	}, signer)
	assert.True(t, errors.Is(err, ErrTransactionFailed))
}

func TestSubmitEncoded(t *testing.T) {
	f := newFakeRPC()
	c := newTestClient(t, f)
	signer := newTestSigner(t)
	ctx := context.Background()

	p, err := c.Prepare(ctx, TransferIntent{
		Source:      signer.PublicKey().String(),
		Destination: randomOwner(t).String(),
		Amount:      decimal.NewFromInt(5),
	}, signer.PublicKey())
	require.NoError(t, err)

	unsigned, err := p.Encode()
	require.NoError(t, err)
	_, err = c.SubmitEncoded(ctx, unsigned)
	assert.True(t, errors.Is(err, ErrSignatureRejected))
	assert.Zero(t, f.count("sendTransaction"))

	_, err = c.SubmitEncoded(ctx, "%%%")
	assert.True(t, errors.Is(err, ErrMalformedTransaction))

	require.NoError(t, signer.SignTransaction(ctx, p.Transaction))
	signed, err := EncodeTransaction(p.Transaction)
	require.NoError(t, err)
	sig, err := c.SubmitEncoded(ctx, signed)
	require.NoError(t, err)
	assert.Equal(t, p.Transaction.Signatures[0].String(), sig)
}

func TestSignatureStatus(t *testing.T) {
	f := newFakeRPC()
	c := newTestClient(t, f)
	ctx := context.Background()

	cases := []struct {
		status *rpc.SignatureStatus
		want   Status
	}{
		{nil, StatusUnknown},
		{&rpc.SignatureStatus{ConfirmationStatus: "processed"}, StatusPending},
		{&rpc.SignatureStatus{ConfirmationStatus: "confirmed"}, StatusConfirmed},
		{&rpc.SignatureStatus{ConfirmationStatus: "finalized"}, StatusConfirmed},
		{&rpc.SignatureStatus{ConfirmationStatus: "confirmed", Err: "boom"}, StatusFailed},
	}
	for _, tc := range cases {
		st := tc.status
		f.status = func(string) *rpc.SignatureStatus { return st }
		got, err := c.SignatureStatus(ctx, "sig")
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, tc.want.String())
	}
}

func TestEnsureAccount(t *testing.T) {
	ctx := context.Background()
	signer := newTestSigner(t)
	owner := randomOwner(t)

	t.Run("existing account", func(t *testing.T) {
		f := newFakeRPC()
		f.accounts[ataOf(t, owner).String()] = true
		ata, created, err := newTestClient(t, f).EnsureAccount(ctx, owner.String(), signer)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, ataOf(t, owner), ata)
		assert.Zero(t, f.count("sendTransaction"))
	})

	t.Run("missing account is created", func(t *testing.T) {
		f := newFakeRPC()
		ata, created, err := newTestClient(t, f).EnsureAccount(ctx, owner.String(), signer)
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, ataOf(t, owner), ata)
		require.Len(t, f.sent, 1)
		assert.Equal(t, signer.PublicKey(), f.sent[0].Message.AccountKeys[0])
		assert.Equal(t, associatedTokenProgramID, programOf(f.sent[0], 0))
	})
}
