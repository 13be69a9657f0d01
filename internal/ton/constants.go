package ton

// NanoTON is the smallest TON unit (1 TON = 10^9 nanoTON)
const NanoTON = 1_000_000_000

// Network represents TON network type
type Network string

const (
	NetworkMainnet Network = "mainnet"
	NetworkTestnet Network = "testnet"
)

// Explorer endpoints
const (
	TonViewerMainnet = "https://tonviewer.com"
	TonViewerTestnet = "https://testnet.tonviewer.com"
)

// Valid reports whether n is a known network
func (n Network) Valid() bool {
	return n == NetworkMainnet || n == NetworkTestnet
}
