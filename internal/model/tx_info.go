package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// GasDetails holds the gas accounting of one transaction.
type GasDetails struct {
	GasUsed           uint64
	EffectiveGasPrice *big.Int
	PriorityFeePerGas *big.Int
	CoinbaseTransfer  *big.Int
}

// GasPaid returns effective_gas_price * gas_used in wei.
func (g GasDetails) GasPaid() *big.Int {
	if g.EffectiveGasPrice == nil {
		return new(big.Int)
	}
	return new(big.Int).Mul(g.EffectiveGasPrice, new(big.Int).SetUint64(g.GasUsed))
}

// PriorityFeePaid returns priority_fee_per_gas * gas_used in wei.
func (g GasDetails) PriorityFeePaid() *big.Int {
	if g.PriorityFeePerGas == nil {
		return new(big.Int)
	}
	return new(big.Int).Mul(g.PriorityFeePerGas, new(big.Int).SetUint64(g.GasUsed))
}

// Bribe returns the direct coinbase transfer in wei.
func (g GasDetails) Bribe() *big.Int {
	if g.CoinbaseTransfer == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(g.CoinbaseTransfer)
}

// TxInfo is the per-transaction metadata recorded on a tree root.
type TxInfo struct {
	BlockNumber uint64
	TxIndex     uint64
	TxHash      common.Hash
	EOA         common.Address
	MevContract common.Address
	GasDetails  GasDetails
}
