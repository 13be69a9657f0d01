package ton

import (
	"strings"

	"github.com/xssnick/tonutils-go/address"
)

// AddressInfo is what an admin needs to know about a payout address before paying
type AddressInfo struct {
	Valid      bool
	Testnet    bool
	Bounceable bool
	// Normalized is the non-bounceable user-friendly form, safe for wallets that may be uninitialized
	Normalized string
}

// Inspect parses a user-friendly or raw (0:hex) address. Withdrawal validation stays
// a length check; this only annotates notices.
func Inspect(raw string) AddressInfo {
	raw = strings.TrimSpace(raw)
	addr, err := address.ParseAddr(raw)
	if err != nil {
		if addr, err = address.ParseRawAddr(raw); err != nil {
			return AddressInfo{}
		}
	}
	return AddressInfo{
		Valid:      true,
		Testnet:    addr.IsTestnetOnly(),
		Bounceable: addr.IsBounceable(),
		Normalized: addr.Bounce(false).String(),
	}
}

// MatchesNetwork reports whether a parsed address may be paid on n
func (i AddressInfo) MatchesNetwork(n Network) bool {
	return !i.Testnet || n == NetworkTestnet
}
