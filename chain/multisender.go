package chain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// multisenderABI covers the single entry point the relay uses: a batched
// native-currency send taking parallel address/amount arrays, funded by the
// transaction value.
const multisenderABI = `[{
	"name": "multisendETH",
	"type": "function",
	"stateMutability": "payable",
	"inputs": [
		{"name": "_addresses", "type": "address[]"},
		{"name": "_amounts", "type": "uint256[]"}
	],
	"outputs": []
}]`

// Multisender builds calldata for the multisender contract.
type Multisender struct {
	Address common.Address
	abi     abi.ABI
}

// NewMultisender parses the contract address and the embedded ABI.
func NewMultisender(address string) (*Multisender, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("multisender: invalid contract address %q", address)
	}
	parsed, err := abi.JSON(strings.NewReader(multisenderABI))
	if err != nil {
		return nil, fmt.Errorf("multisender: parse abi: %w", err)
	}
	return &Multisender{
		Address: common.HexToAddress(address),
		abi:     parsed,
	}, nil
}

// PackSend encodes a multisendETH call for the given recipients. Both slices
// must be the same non-zero length.
func (m *Multisender) PackSend(addresses []common.Address, amounts []*big.Int) ([]byte, error) {
	if len(addresses) == 0 || len(addresses) != len(amounts) {
		return nil, fmt.Errorf("multisender: %d addresses vs %d amounts", len(addresses), len(amounts))
	}
	data, err := m.abi.Pack("multisendETH", addresses, amounts)
	if err != nil {
		return nil, fmt.Errorf("multisender: pack call: %w", err)
	}
	return data, nil
}
