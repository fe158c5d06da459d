package signer

import (
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecoverAddress(t *testing.T) {
	s := newTestSigner(t)
	msg := "Sign this message to authenticate: 00ff"

	sig, err := s.SignMessage(msg)
	require.NoError(t, err)

	recovered, err := RecoverAddress(msg, sig)
	require.NoError(t, err)
	assert.Equal(t, s.Address(), recovered)

	// Without 0x prefix and with V as 0/1.
	raw, _ := hexutil.Decode(sig)
	raw[64] -= 27
	recovered, err = RecoverAddress(msg, hexutil.Encode(raw)[2:])
	require.NoError(t, err)
	assert.Equal(t, s.Address(), recovered)
}

func TestRecoverAddressDifferentMessage(t *testing.T) {
	s := newTestSigner(t)
	sig, err := s.SignMessage("Sign this message to authenticate: n1")
	require.NoError(t, err)

	recovered, err := RecoverAddress("Sign this message to authenticate: n2", sig)
	if err == nil {
		assert.NotEqual(t, s.Address(), recovered)
	}
}

func TestRecoverAddressRejectsGarbage(t *testing.T) {
	cases := []string{"", "0x", "0xzz", "0x1234"}
	for _, sig := range cases {
		_, err := RecoverAddress("msg", sig)
		assert.ErrorIs(t, err, ErrInvalidSignature, "signature %q", sig)
	}

	bad := make([]byte, 65)
	bad[64] = 29
	_, err := RecoverAddress("msg", hexutil.Encode(bad))
	assert.ErrorIs(t, err, ErrInvalidSignature)
}
