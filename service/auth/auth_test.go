package auth

import (
	"context"
	"crypto/ecdsa"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/locey/TaskAVS/base/errcode"
	"github.com/locey/TaskAVS/base/stores/gdb/gdbtest"
	"github.com/locey/TaskAVS/dao"
)

type wallet struct {
	key     *ecdsa.PrivateKey
	address string
}

func newWallet(t *testing.T) wallet {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return wallet{key: key, address: strings.ToLower(crypto.PubkeyToAddress(key.PublicKey).Hex())}
}

// sign produces a wallet style personal_sign signature, v in {27, 28}.
func (w wallet) sign(t *testing.T, message string) string {
	t.Helper()
	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), w.key)
	require.NoError(t, err)
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig)
}

func setupAuthenticator(t *testing.T) (*Authenticator, *dao.Dao) {
	t.Helper()
	d := dao.New(context.Background(), gdbtest.Open(t))
	return NewAuthenticator(d, NewTokenIssuer("test-secret", 0)), d
}

func TestRecoverAddress(t *testing.T) {
	w := newWallet(t)
	got, err := RecoverAddress("hello", w.sign(t, "hello"))
	require.NoError(t, err)
	assert.Equal(t, w.address, got)

	_, err = RecoverAddress("hello", "0x1234")
	assert.Error(t, err)
	_, err = RecoverAddress("hello", "not-hex")
	assert.Error(t, err)
}

func TestAuthenticator_IssueNonce(t *testing.T) {
	a, d := setupAuthenticator(t)
	ctx := context.Background()
	w := newWallet(t)

	n1, err := a.IssueNonce(ctx, strings.ToUpper(w.address[:2])+w.address[2:])
	require.NoError(t, err)
	assert.Len(t, n1, NonceBytes*2)

	n2, err := a.IssueNonce(ctx, w.address)
	require.NoError(t, err)
	assert.NotEqual(t, n1, n2)

	identity, err := d.GetIdentityByAddress(ctx, w.address)
	require.NoError(t, err)
	assert.Equal(t, n2, identity.Nonce)

	_, err = a.IssueNonce(ctx, "0xnot-an-address")
	assert.True(t, errcode.Is(err, errcode.ErrInvalidInput))
}

func TestAuthenticator_Verify(t *testing.T) {
	a, _ := setupAuthenticator(t)
	ctx := context.Background()
	w := newWallet(t)

	nonce, err := a.IssueNonce(ctx, w.address)
	require.NoError(t, err)
	msg := LoginMessage(w.address, nonce)
	sig := w.sign(t, msg)

	token, err := a.Verify(ctx, w.address, sig, msg)
	require.NoError(t, err)
	session, err := a.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, w.address, session.Address)
	assert.NotEmpty(t, session.UserID)

	// the nonce rotated, so the same pair cannot log in twice
	_, err = a.Verify(ctx, w.address, sig, msg)
	assert.True(t, errcode.Is(err, errcode.ErrUnauthorized))
}

func TestAuthenticator_VerifyFailures(t *testing.T) {
	a, _ := setupAuthenticator(t)
	ctx := context.Background()
	w := newWallet(t)
	other := newWallet(t)

	nonce, err := a.IssueNonce(ctx, w.address)
	require.NoError(t, err)
	msg := LoginMessage(w.address, nonce)

	cases := []struct {
		name      string
		address   string
		signature string
		message   string
		kind      *errcode.Err
	}{
		{"unknown identity", other.address, other.sign(t, msg), msg, errcode.ErrNotFound},
		{"empty signature", w.address, "", msg, errcode.ErrInvalidInput},
		{"bad address", "0x12", w.sign(t, msg), msg, errcode.ErrInvalidInput},
		{"signed by someone else", w.address, other.sign(t, msg), msg, errcode.ErrUnauthorized},
		{"stale nonce", w.address, w.sign(t, "Nonce: 00"), "Nonce: 00", errcode.ErrUnauthorized},
		{"malformed signature", w.address, "0xdeadbeef", msg, errcode.ErrUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := a.Verify(ctx, tc.address, tc.signature, tc.message)
			require.Error(t, err)
			assert.True(t, errcode.Is(err, tc.kind), "got %v", err)
		})
	}

	// failures leave the nonce usable
	_, err = a.Verify(ctx, w.address, w.sign(t, msg), msg)
	assert.NoError(t, err)
}

func TestAuthenticator_VerifyConcurrentReplay(t *testing.T) {
	a, _ := setupAuthenticator(t)
	ctx := context.Background()
	w := newWallet(t)

	nonce, err := a.IssueNonce(ctx, w.address)
	require.NoError(t, err)
	msg := LoginMessage(w.address, nonce)
	sig := w.sign(t, msg)

	const n = 4
	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := a.Verify(ctx, w.address, sig, msg); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, ok)
}

func TestAuthenticator_Ban(t *testing.T) {
	a, _ := setupAuthenticator(t)
	ctx := context.Background()
	w := newWallet(t)

	nonce, err := a.IssueNonce(ctx, w.address)
	require.NoError(t, err)
	msg := LoginMessage(w.address, nonce)

	identity, err := a.Ban(ctx, w.address, "fraud")
	require.NoError(t, err)
	assert.True(t, identity.IsBanned)

	_, err = a.Verify(ctx, w.address, w.sign(t, msg), msg)
	require.Error(t, err)
	assert.True(t, errcode.Is(err, errcode.ErrForbidden))
	assert.Contains(t, err.Error(), "fraud")

	identity, err = a.Unban(ctx, w.address)
	require.NoError(t, err)
	assert.False(t, identity.IsBanned)
	_, err = a.Verify(ctx, w.address, w.sign(t, msg), msg)
	assert.NoError(t, err)

	_, err = a.Ban(ctx, newWallet(t).address, "x")
	assert.True(t, errcode.Is(err, errcode.ErrNotFound))
}

func TestTokenIssuer_Parse(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)
	now := time.Now()
	issuer.now = func() time.Time { return now }

	token, err := issuer.Issue("user-1", "0xabc")
	require.NoError(t, err)
	session, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", session.UserID)
	assert.Equal(t, "0xabc", session.Address)

	_, err = NewTokenIssuer("other", time.Hour).Parse(token)
	assert.True(t, errcode.Is(err, errcode.ErrUnauthorized), "wrong secret")

	issuer.now = func() time.Time { return now.Add(2 * time.Hour) }
	_, err = issuer.Parse(token)
	assert.True(t, errcode.Is(err, errcode.ErrUnauthorized), "expired")

	_, err = issuer.Parse("garbage")
	assert.True(t, errcode.Is(err, errcode.ErrUnauthorized))
}

func TestNewTokenIssuer_DefaultTTL(t *testing.T) {
	assert.Equal(t, 7*24*time.Hour, NewTokenIssuer("s", 0).ttl)
}
