// Package chain holds the minimal on-chain transaction types exchanged
// with the wallet provider.
package chain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/nspcc-dev/neo-go/pkg/util"
)

// Transaction is a contract call prepared for wallet signing.
type Transaction struct {
	Contract util.Uint160
	Method   string
	ValueWei *big.Int
	Data     []byte
}

// TxResult is the provider's view of a submitted transaction.
type TxResult struct {
	Hash      util.Uint256
	GasSpent  int64
	Confirmed bool
}

// ParseContractAddress decodes a hex contract script hash, with or
// without a 0x prefix.
func ParseContractAddress(raw string) (util.Uint160, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	hash, err := util.Uint160DecodeStringLE(trimmed)
	if err != nil {
		return util.Uint160{}, fmt.Errorf("parse contract address %q: %w", raw, err)
	}
	return hash, nil
}
