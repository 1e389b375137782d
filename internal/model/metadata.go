package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Metadata carries the block-level context shared by all inspectors.
// Prices are exact rationals; floats appear only in final outputs.
type Metadata struct {
	BlockNumber          uint64
	BlockHash            common.Hash
	BuilderAddress       common.Address
	EthPriceUSD          *big.Rat
	TokenPricesUSD       map[common.Address]*big.Rat
	TokenDecimals        map[common.Address]uint8
	ProposerFeeRecipient common.Address
	ProposerMevReward    *big.Int
}

// Decimals returns the known decimals of a token, when the metadata carries
// them.
func (m *Metadata) Decimals(token common.Address) (uint8, bool) {
	if m == nil || m.TokenDecimals == nil {
		return 0, false
	}
	d, ok := m.TokenDecimals[token]
	return d, ok
}

// TokenPrice returns the USD price of one whole token unit.
func (m *Metadata) TokenPrice(token common.Address) (*big.Rat, bool) {
	if m == nil || m.TokenPricesUSD == nil {
		return nil, false
	}
	price, ok := m.TokenPricesUSD[token]
	return price, ok
}
