package signer

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
)

// Constants for EIP-712
const (
	EIP712DomainName    = "HouseVault Treasury"
	EIP712DomainVersion = "1"
)

var (
	// EIP712DomainTypeHash is the keccak256 hash of the EIP712Domain type definition
	EIP712DomainTypeHash = crypto.Keccak256Hash([]byte("EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"))

	// ClaimTypeHash is the keccak256 hash of the capability claim type definition
	ClaimTypeHash = crypto.Keccak256Hash([]byte("CapabilityClaim(bytes32 gameKey,address module)"))
)

// Domain binds claim signatures to one treasury deployment. VerifyingContract
// is the treasury admin address.
type Domain struct {
	ChainID           int64
	VerifyingContract common.Address
}

// Separator computes the EIP-712 domain separator.
func (d Domain) Separator() common.Hash {
	// All fields are 32 bytes
	data := make([]byte, 32*5)
	copy(data[0:32], EIP712DomainTypeHash.Bytes())
	copy(data[32:64], crypto.Keccak256([]byte(EIP712DomainName)))
	copy(data[64:96], crypto.Keccak256([]byte(EIP712DomainVersion)))
	copy(data[96:128], math.U256Bytes(big.NewInt(d.ChainID)))
	copy(data[128+12:160], d.VerifyingContract.Bytes())
	return crypto.Keccak256Hash(data)
}

// ClaimDigest is keccak256("\x19\x01" || domainSeparator || hashStruct(claim)).
func ClaimDigest(d Domain, gameKey string, module common.Address) []byte {
	data := make([]byte, 32*3)
	copy(data[0:32], ClaimTypeHash.Bytes())
	copy(data[32:64], common.HexToHash(gameKey).Bytes())
	copy(data[64+12:96], module.Bytes())
	hashStruct := crypto.Keccak256(data)

	return crypto.Keccak256([]byte{0x19, 0x01}, d.Separator().Bytes(), hashStruct)
}

// RecoverClaimSigner returns the address that produced sigHex over the claim.
func RecoverClaimSigner(d Domain, gameKey string, module common.Address, sigHex string) (common.Address, error) {
	sig := common.FromHex(sigHex)
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("signature must be %d bytes, got %d", crypto.SignatureLength, len(sig))
	}
	// Accept both 27/28 and 0/1 recovery ids.
	sig = append([]byte(nil), sig...)
	if sig[64] >= 27 {
		sig[64] -= 27
	}

	pub, err := crypto.SigToPub(ClaimDigest(d, gameKey, module), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("invalid signature: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// VerifyClaim checks that module itself signed the claim for gameKey.
func VerifyClaim(d Domain, gameKey string, module common.Address, sigHex string) error {
	recovered, err := RecoverClaimSigner(d, gameKey, module, sigHex)
	if err != nil {
		return err
	}
	if recovered != module {
		return fmt.Errorf("signature recovered %s, expected %s", recovered.Hex(), module.Hex())
	}
	return nil
}
