package signer

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer holds a game module key and signs capability claims with it.
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
	domain  Domain
}

func NewSigner(privateKeyHex string, domain Domain) (*Signer, error) {
	if privateKeyHex == "" {
		return nil, fmt.Errorf("private key is required")
	}
	key, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %v", err)
	}

	publicKey := key.Public()
	publicKeyECDSA, ok := publicKey.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("error casting public key to ECDSA")
	}

	return &Signer{
		key:     key,
		address: crypto.PubkeyToAddress(*publicKeyECDSA),
		domain:  domain,
	}, nil
}

// SignClaim signs the claim for gameKey as this module. The result is a
// 65 byte [R || S || V] signature, hex encoded, with V in 27/28.
func (s *Signer) SignClaim(gameKey string) (string, error) {
	signature, err := crypto.Sign(ClaimDigest(s.domain, gameKey, s.address), s.key)
	if err != nil {
		return "", err
	}
	if signature[64] < 27 {
		signature[64] += 27
	}
	return "0x" + common.Bytes2Hex(signature), nil
}

func (s *Signer) Address() common.Address {
	return s.address
}
