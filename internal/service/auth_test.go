package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/GoPolymarket/paperbot/internal/manager"
	"github.com/GoPolymarket/paperbot/internal/repository"
	"github.com/GoPolymarket/paperbot/internal/signer"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type authFixture struct {
	svc    *AuthService
	store  *repository.MemoryStore
	tokens *TokenIssuer
	clock  *fakeClock
	wallet *signer.Signer
	addr   string
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	wallet := signer.NewSignerFromKey(key)

	clock := &fakeClock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	store := repository.NewMemoryStore()
	nonces := manager.NewNonceManager(5*time.Minute, manager.WithClock(clock.Now))
	tokens := NewTokenIssuer("test-secret", time.Hour)
	tokens.now = clock.Now

	return &authFixture{
		svc:    NewAuthService(store, nonces, tokens),
		store:  store,
		tokens: tokens,
		clock:  clock,
		wallet: wallet,
		addr:   strings.ToLower(wallet.Address().Hex()),
	}
}

func (f *authFixture) storedNonce(t *testing.T) string {
	t.Helper()
	rec, err := f.store.WalletAuth(context.Background(), f.addr)
	require.NoError(t, err)
	return rec.Nonce
}

func TestNormalizeAddress(t *testing.T) {
	addr, err := NormalizeAddress(" 0xAbCdEf0123456789aBcDeF0123456789AbCdEf01 ")
	require.NoError(t, err)
	assert.Equal(t, "0xabcdef0123456789abcdef0123456789abcdef01", addr)

	for _, bad := range []string{"", "abcdef0123456789abcdef0123456789abcdef01", "0x1234", "0xZZcdef0123456789abcdef0123456789abcdef01"} {
		_, err := NormalizeAddress(bad)
		assert.ErrorIs(t, err, ErrInvalidAddress, bad)
	}
}

func TestAuthFlow(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	nonce, err := f.svc.RequestNonce(ctx, f.wallet.Address().Hex())
	require.NoError(t, err)
	assert.Equal(t, f.addr, nonce.Address)
	assert.Equal(t, "Sign this message to authenticate: "+nonce.Nonce, nonce.Message)

	sig, err := f.wallet.SignMessage(nonce.Message)
	require.NoError(t, err)

	tok, err := f.svc.Verify(ctx, f.addr, sig)
	require.NoError(t, err)
	assert.Equal(t, f.addr, tok.Address)

	resolved, err := f.tokens.Resolve(tok.Token)
	require.NoError(t, err)
	assert.Equal(t, f.addr, resolved)

	assert.NotEqual(t, nonce.Nonce, f.storedNonce(t), "nonce must rotate after success")

	// Replaying the same signature fails against the rotated nonce.
	_, err = f.svc.Verify(ctx, f.addr, sig)
	assert.ErrorIs(t, err, ErrAddressMismatch)
}

func TestAuthRequestNonceRejectsBadAddress(t *testing.T) {
	f := newAuthFixture(t)
	_, err := f.svc.RequestNonce(context.Background(), "not-an-address")
	assert.ErrorIs(t, err, ErrInvalidAddress)

	_, err = f.svc.Verify(context.Background(), "0x12", "0x00")
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func TestAuthRequestNonceReplacesPrevious(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	first, err := f.svc.RequestNonce(ctx, f.addr)
	require.NoError(t, err)
	second, err := f.svc.RequestNonce(ctx, f.addr)
	require.NoError(t, err)
	assert.NotEqual(t, first.Nonce, second.Nonce)

	sig, err := f.wallet.SignMessage(first.Message)
	require.NoError(t, err)
	_, err = f.svc.Verify(ctx, f.addr, sig)
	assert.ErrorIs(t, err, ErrAddressMismatch)
}

func TestAuthVerifyWithoutChallenge(t *testing.T) {
	f := newAuthFixture(t)
	_, err := f.svc.Verify(context.Background(), f.addr, "0xdeadbeef")
	assert.ErrorIs(t, err, ErrNoChallenge)
}

func TestAuthVerifyExpiredRotatesNonce(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	nonce, err := f.svc.RequestNonce(ctx, f.addr)
	require.NoError(t, err)
	sig, err := f.wallet.SignMessage(nonce.Message)
	require.NoError(t, err)

	f.clock.Advance(5*time.Minute + time.Second)

	_, err = f.svc.Verify(ctx, f.addr, sig)
	assert.ErrorIs(t, err, ErrChallengeExpired)
	rotated := f.storedNonce(t)
	assert.NotEqual(t, nonce.Nonce, rotated)

	// The refreshed record is live again, but the old signature is useless.
	_, err = f.svc.Verify(ctx, f.addr, sig)
	assert.ErrorIs(t, err, ErrAddressMismatch)
}

func TestAuthVerifyExpiredSkipsSignatureCheck(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, err := f.svc.RequestNonce(ctx, f.addr)
	require.NoError(t, err)
	f.clock.Advance(time.Hour)

	_, err = f.svc.Verify(ctx, f.addr, "garbage")
	assert.ErrorIs(t, err, ErrChallengeExpired)
}

func TestAuthVerifyAtTTLBoundaryIsValid(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	nonce, err := f.svc.RequestNonce(ctx, f.addr)
	require.NoError(t, err)
	sig, err := f.wallet.SignMessage(nonce.Message)
	require.NoError(t, err)

	f.clock.Advance(5 * time.Minute)
	_, err = f.svc.Verify(ctx, f.addr, sig)
	assert.NoError(t, err)
}

func TestAuthVerifyInvalidSignatureRotates(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	nonce, err := f.svc.RequestNonce(ctx, f.addr)
	require.NoError(t, err)

	_, err = f.svc.Verify(ctx, f.addr, "0x1234")
	assert.ErrorIs(t, err, ErrInvalidSignature)
	assert.NotEqual(t, nonce.Nonce, f.storedNonce(t))
}

func TestAuthVerifyWrongSigner(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	nonce, err := f.svc.RequestNonce(ctx, f.addr)
	require.NoError(t, err)

	otherKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	sig, err := signer.NewSignerFromKey(otherKey).SignMessage(nonce.Message)
	require.NoError(t, err)

	_, err = f.svc.Verify(ctx, f.addr, sig)
	assert.ErrorIs(t, err, ErrAddressMismatch)
	assert.NotEqual(t, nonce.Nonce, f.storedNonce(t))
}

func TestVerifyConcurrentReplayIssuesOneToken(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	nonce, err := f.svc.RequestNonce(ctx, f.addr)
	require.NoError(t, err)
	sig, err := f.wallet.SignMessage(nonce.Message)
	require.NoError(t, err)

	const attempts = 16
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.svc.Verify(ctx, f.addr, sig)
		}()
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, ErrAddressMismatch)
	}
	assert.Equal(t, 1, ok)
}
