package treasury

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// DeriveGameKey returns the registry key of a game: keccak256 over the
// registrant, name and version. The same triple always maps to the same key.
func DeriveGameKey(registrant common.Address, name, version string) string {
	return crypto.Keccak256Hash(
		registrant.Bytes(),
		[]byte(name),
		[]byte{0},
		[]byte(version),
	).Hex()
}
