package ton

import (
	"errors"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrNegativeAmount = errors.New("negative amount")

var nanoPerTON = decimal.NewFromInt(NanoTON)

// ToNano converts a TON amount to nanoTON, truncating anything below one nanoTON
func ToNano(amount decimal.Decimal) (decimal.Decimal, error) {
	if amount.IsNegative() {
		return decimal.Zero, ErrNegativeAmount
	}
	return amount.Mul(nanoPerTON).Truncate(0), nil
}

// FromNano converts nanoTON back to TON
func FromNano(nano decimal.Decimal) decimal.Decimal {
	return nano.Div(nanoPerTON)
}

// TonkeeperTransfer is the https form of ton://transfer, usable where only http links are clickable
const TonkeeperTransfer = "https://app.tonkeeper.com/transfer/"

// TransferLink builds a ton://transfer deep link that opens a wallet with the
// payout prefilled. The comment lets the payout be matched to its record.
func TransferLink(address string, amount decimal.Decimal, comment string) (string, error) {
	return transferLink("ton://transfer/", address, amount, comment)
}

// UniversalTransferLink is TransferLink through the Tonkeeper universal link
func UniversalTransferLink(address string, amount decimal.Decimal, comment string) (string, error) {
	return transferLink(TonkeeperTransfer, address, amount, comment)
}

func transferLink(prefix, address string, amount decimal.Decimal, comment string) (string, error) {
	nano, err := ToNano(amount)
	if err != nil {
		return "", err
	}
	q := url.Values{}
	q.Set("amount", nano.String())
	if comment != "" {
		q.Set("text", comment)
	}
	return prefix + url.PathEscape(strings.TrimSpace(address)) + "?" + q.Encode(), nil
}

// ExplorerLink returns the explorer page of an address
func ExplorerLink(network Network, address string) string {
	base := TonViewerMainnet
	if network == NetworkTestnet {
		base = TonViewerTestnet
	}
	return base + "/" + url.PathEscape(strings.TrimSpace(address))
}
