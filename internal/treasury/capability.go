package treasury

import "github.com/ethereum/go-ethereum/common"

// noCopy makes go vet's copylocks check flag value copies of a Capability.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Capability proves that its holder is the registered module of one game.
// It is only ever created by ClaimCapability and the treasury honours the
// exact pointer it issued, so a zero value or a copy authorizes nothing.
type Capability struct {
	noCopy   noCopy
	gameKey  string
	identity common.Address
}

func (c *Capability) GameKey() string {
	if c == nil {
		return ""
	}
	return c.gameKey
}

func (c *Capability) Identity() common.Address {
	if c == nil {
		return common.Address{}
	}
	return c.identity
}
