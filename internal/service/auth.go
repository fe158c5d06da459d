package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/GoPolymarket/paperbot/internal/manager"
	"github.com/GoPolymarket/paperbot/internal/model"
	"github.com/GoPolymarket/paperbot/internal/pkg/logger"
	"github.com/GoPolymarket/paperbot/internal/pkg/metrics"
	"github.com/GoPolymarket/paperbot/internal/repository"
	"github.com/GoPolymarket/paperbot/internal/signer"
	"github.com/ethereum/go-ethereum/common"
)

// Wallet challenge failures. Their text is safe to return to clients.
var (
	ErrInvalidAddress   = errors.New("invalid address")
	ErrNoChallenge      = errors.New("no nonce for address")
	ErrChallengeExpired = errors.New("nonce expired; request a new one")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrAddressMismatch  = errors.New("signature mismatch")
)

// NormalizeAddress lower-cases a 0x-prefixed hex address.
func NormalizeAddress(address string) (string, error) {
	addr := strings.ToLower(strings.TrimSpace(address))
	if !strings.HasPrefix(addr, "0x") || !common.IsHexAddress(addr) {
		return "", ErrInvalidAddress
	}
	return addr, nil
}

// AuthService runs the wallet challenge: issue a nonce, verify the signed
// challenge, mint a bearer token. The nonce is replaced on every verify
// attempt so a signature can be used at most once.
type AuthService struct {
	store  repository.Store
	nonces *manager.NonceManager
	tokens *TokenIssuer
}

func NewAuthService(store repository.Store, nonces *manager.NonceManager, tokens *TokenIssuer) *AuthService {
	return &AuthService{store: store, nonces: nonces, tokens: tokens}
}

func (s *AuthService) RequestNonce(ctx context.Context, address string) (*model.NonceResponse, error) {
	addr, err := NormalizeAddress(address)
	if err != nil {
		return nil, err
	}
	nonce, err := s.nonces.New()
	if err != nil {
		return nil, err
	}
	rec := &model.WalletAuth{Address: addr, Nonce: nonce, UpdatedAt: s.nonces.Now()}
	if err := s.store.SaveWalletAuth(ctx, rec); err != nil {
		return nil, fmt.Errorf("save nonce: %w", err)
	}
	return &model.NonceResponse{Address: addr, Nonce: nonce, Message: s.nonces.Message(nonce)}, nil
}

func (s *AuthService) Verify(ctx context.Context, address, signature string) (*model.TokenResponse, error) {
	addr, err := NormalizeAddress(address)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("invalid_address").Inc()
		return nil, err
	}

	// The rotation is committed whatever the outcome, so failures are
	// carried out of the transaction instead of rolling it back.
	var outcome error
	err = s.store.Transaction(ctx, func(tx repository.Tx) error {
		rec, err := tx.WalletAuth(ctx, addr)
		if errors.Is(err, repository.ErrNotFound) {
			outcome = ErrNoChallenge
			return nil
		}
		if err != nil {
			return err
		}

		if s.nonces.Expired(rec.UpdatedAt) {
			outcome = ErrChallengeExpired
		} else {
			outcome = checkSignature(s.nonces.Message(rec.Nonce), signature, addr)
		}

		next, err := s.nonces.New()
		if err != nil {
			return err
		}
		rec.Nonce = next
		rec.UpdatedAt = s.nonces.Now()
		return tx.SaveWalletAuth(ctx, rec)
	})
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("verify %s: %w", addr, err)
	}
	if outcome != nil {
		metrics.AuthAttempts.WithLabelValues(outcomeLabel(outcome)).Inc()
		logger.Info("Wallet verification rejected", "address", addr, "reason", outcome.Error())
		return nil, outcome
	}

	token, err := s.tokens.Issue(addr)
	if err != nil {
		return nil, err
	}
	metrics.AuthAttempts.WithLabelValues("ok").Inc()
	return &model.TokenResponse{Token: token, Address: addr}, nil
}

func checkSignature(message, signature, addr string) error {
	recovered, err := signer.RecoverAddress(message, signature)
	if err != nil {
		return ErrInvalidSignature
	}
	if !strings.EqualFold(recovered.Hex(), addr) {
		return ErrAddressMismatch
	}
	return nil
}

func outcomeLabel(err error) string {
	switch {
	case errors.Is(err, ErrNoChallenge):
		return "no_challenge"
	case errors.Is(err, ErrChallengeExpired):
		return "expired"
	case errors.Is(err, ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, ErrAddressMismatch):
		return "mismatch"
	default:
		return "error"
	}
}
