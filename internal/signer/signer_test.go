package signer

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDomain = Domain{
	ChainID:           1,
	VerifyingContract: common.HexToAddress("0x00000000000000000000000000000000000000a1"),
}

const testGameKey = "0x5a1f9c0e3b7d2a8f4c6e1b9d0a3f7c2e8b4d6a1f9c0e3b7d2a8f4c6e1b9d0a3f"

func newTestSigner(t *testing.T) *Signer {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	keyHex := hexutil.Encode(crypto.FromECDSA(key))[2:] // Remove 0x

	s, err := NewSigner(keyHex, testDomain)
	require.NoError(t, err)
	return s
}

func TestSigner_SignClaim(t *testing.T) {
	s := newTestSigner(t)

	sig, err := s.SignClaim(testGameKey)
	assert.NoError(t, err)
	assert.Equal(t, 132, len(sig)) // 0x + 65 bytes * 2 = 132

	recovered, err := RecoverClaimSigner(testDomain, testGameKey, s.Address(), sig)
	require.NoError(t, err)
	assert.Equal(t, s.Address(), recovered)
	assert.NoError(t, VerifyClaim(testDomain, testGameKey, s.Address(), sig))
}

func TestVerifyClaimRejectsMismatches(t *testing.T) {
	s := newTestSigner(t)
	sig, err := s.SignClaim(testGameKey)
	require.NoError(t, err)

	other := common.HexToAddress("0x0000000000000000000000000000000000000001")
	assert.Error(t, VerifyClaim(testDomain, testGameKey, other, sig), "wrong module")

	otherKey := "0x" + common.Bytes2Hex(crypto.Keccak256([]byte("slots")))
	assert.Error(t, VerifyClaim(testDomain, otherKey, s.Address(), sig), "wrong game")

	otherDomain := testDomain
	otherDomain.ChainID = 137
	assert.Error(t, VerifyClaim(otherDomain, testGameKey, s.Address(), sig), "wrong chain")

	assert.Error(t, VerifyClaim(testDomain, testGameKey, s.Address(), "0xdead"), "short signature")
}

func TestRecoverAcceptsZeroOneRecoveryID(t *testing.T) {
	s := newTestSigner(t)
	sig, err := s.SignClaim(testGameKey)
	require.NoError(t, err)

	raw := common.FromHex(sig)
	raw[64] -= 27
	assert.NoError(t, VerifyClaim(testDomain, testGameKey, s.Address(), hexutil.Encode(raw)))
}

func TestNewSignerRejectsBadKey(t *testing.T) {
	_, err := NewSigner("", testDomain)
	assert.Error(t, err)
	_, err = NewSigner("not-hex", testDomain)
	assert.Error(t, err)
}

func BenchmarkSignClaim(b *testing.B) {
	key, _ := crypto.GenerateKey()
	keyHex := hexutil.Encode(crypto.FromECDSA(key))[2:]
	s, _ := NewSigner(keyHex, testDomain)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = s.SignClaim(testGameKey)
	}
}
