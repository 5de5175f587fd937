package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/GoPolymarket/housevault/internal/signer"
	"github.com/GoPolymarket/housevault/internal/treasury"
	"github.com/ethereum/go-ethereum/common"
)

// claimsig prints the body a game module posts to /v1/games/:key/claim.
func main() {
	key := flag.String("key", os.Getenv("MODULE_PRIVATE_KEY"), "module private key (hex)")
	admin := flag.String("admin", "", "treasury admin address")
	chainID := flag.Int64("chain-id", 137, "chain id of the treasury domain")
	gameKey := flag.String("game", "", "game key; derived from -registrant/-name/-version when empty")
	registrant := flag.String("registrant", "", "registrant address")
	name := flag.String("name", "", "game name")
	version := flag.String("version", "", "game version")
	flag.Parse()

	if !common.IsHexAddress(*admin) {
		fail("-admin must be an address")
	}
	s, err := signer.NewSigner(*key, signer.Domain{
		ChainID:           *chainID,
		VerifyingContract: common.HexToAddress(*admin),
	})
	if err != nil {
		fail(err.Error())
	}

	if *gameKey == "" {
		if !common.IsHexAddress(*registrant) || *name == "" || *version == "" {
			fail("either -game or -registrant, -name and -version are required")
		}
		*gameKey = treasury.DeriveGameKey(common.HexToAddress(*registrant), *name, *version)
	}

	sig, err := s.SignClaim(*gameKey)
	if err != nil {
		fail(err.Error())
	}

	fmt.Println("--- Capability Claim ---")
	fmt.Printf("Game:      %s\n", *gameKey)
	fmt.Printf("Module:    %s\n", s.Address().Hex())
	fmt.Printf("Signature: %s\n", sig)
	fmt.Printf("\n{\"identity\":%q,\"signature\":%q}\n", s.Address().Hex(), sig)
}

func fail(msg string) {
	fmt.Fprintln(os.Stderr, "claimsig:", msg)
	os.Exit(2)
}
