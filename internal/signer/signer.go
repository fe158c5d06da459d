package signer

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

var ErrInvalidSignature = errors.New("invalid signature")

// Signer produces EIP-191 personal_sign signatures, the format wallets emit
// for eth_sign / personal_sign over a plain text message.
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewSigner parses a hex private key, with or without 0x prefix.
func NewSigner(privateKeyHex string) (*Signer, error) {
	if privateKeyHex == "" {
		return nil, fmt.Errorf("private key is required")
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %v", err)
	}
	return NewSignerFromKey(key), nil
}

func NewSignerFromKey(key *ecdsa.PrivateKey) *Signer {
	return &Signer{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}
}

func (s *Signer) Address() common.Address {
	return s.address
}

// SignMessage returns the 65 byte [R || S || V] signature as 0x-hex with
// V in {27, 28}.
func (s *Signer) SignMessage(message string) (string, error) {
	signature, err := crypto.Sign(accounts.TextHash([]byte(message)), s.key)
	if err != nil {
		return "", err
	}
	signature[64] += 27
	return hexutil.Encode(signature), nil
}

// RecoverAddress returns the address that produced signature over message.
// Any decoding or recovery failure is reported as ErrInvalidSignature.
func RecoverAddress(message, signature string) (common.Address, error) {
	signature = strings.TrimSpace(signature)
	if !strings.HasPrefix(signature, "0x") && !strings.HasPrefix(signature, "0X") {
		signature = "0x" + signature
	}
	rawSig, err := hexutil.Decode(signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: encoding", ErrInvalidSignature)
	}
	if len(rawSig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("%w: length %d", ErrInvalidSignature, len(rawSig))
	}
	// Normalize V to 0/1 for recovery.
	if rawSig[64] >= 27 {
		rawSig[64] -= 27
	}
	if rawSig[64] > 1 {
		return common.Address{}, fmt.Errorf("%w: recovery id", ErrInvalidSignature)
	}
	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), rawSig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: recovery failed", ErrInvalidSignature)
	}
	return crypto.PubkeyToAddress(*pub), nil
}
