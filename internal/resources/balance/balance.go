package balance

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rentchain/rental-client/internal/lib"
	"github.com/rentchain/rental-client/internal/resources"
)

// DisplayPrecision is the number of fractional digits shown for token amounts
const DisplayPrecision int32 = 2

type Snapshot struct {
	Account     common.Address
	TokenSymbol string
	Raw         *big.Int
	Decimals    uint8
	ObservedAt  time.Time
}

// Display renders raw / 10^decimals with a fixed number of fractional digits
func (s Snapshot) Display(precision int32) string {
	return lib.FormatUnits(s.Raw, s.Decimals, precision)
}

type AllowanceSnapshot struct {
	Owner       common.Address
	Spender     common.Address
	TokenSymbol string
	Raw         *big.Int
	Decimals    uint8
	ObservedAt  time.Time
}

// Covers reports whether the allowance is enough to spend amount
func (a AllowanceSnapshot) Covers(amount *big.Int) bool {
	return a.Raw != nil && a.Raw.Cmp(amount) >= 0
}

type allowanceKey struct {
	owner   common.Address
	spender common.Address
}

// View is what a balance widget renders
type View struct {
	State       resources.LoadState `json:"state"`
	Account     string              `json:"account,omitempty"`
	TokenSymbol string              `json:"tokenSymbol"`
	Raw         string              `json:"raw,omitempty"`
	Display     string              `json:"display,omitempty"`
	ObservedAt  *time.Time          `json:"observedAt,omitempty"`
}
