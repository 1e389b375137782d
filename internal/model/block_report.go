package model

import (
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// BlockReport is the terminal per-block summary produced by composition.
type BlockReport struct {
	BlockHash                    common.Hash
	BlockNumber                  uint64
	MevCount                     uint64
	EthPriceUSD                  float64
	CumulativeGasUsed            uint64
	CumulativeGasPaid            *big.Int
	TotalBribe                   *big.Int
	CumulativeMevPriorityFeePaid *big.Int
	BuilderAddress               common.Address
	BuilderEthProfit             *big.Int
	BuilderProfitUSD             float64
	ProposerFeeRecipient         common.Address
	ProposerMevReward            *big.Int
	ProposerProfitUSD            float64
	CumulativeMevProfitUSD       float64
	Bundles                      []Bundle
}

type blockReportJSON struct {
	BlockHash                    string   `json:"block_hash"`
	BlockNumber                  uint64   `json:"block_number"`
	MevCount                     uint64   `json:"mev_count"`
	EthPriceUSD                  float64  `json:"eth_price_usd"`
	CumulativeGasUsed            uint64   `json:"cumulative_gas_used"`
	CumulativeGasPaid            string   `json:"cumulative_gas_paid"`
	TotalBribe                   string   `json:"total_bribe"`
	CumulativeMevPriorityFeePaid string   `json:"cumulative_mev_priority_fee_paid"`
	BuilderAddress               string   `json:"builder_address"`
	BuilderEthProfit             string   `json:"builder_eth_profit"`
	BuilderProfitUSD             float64  `json:"builder_profit_usd"`
	ProposerFeeRecipient         string   `json:"proposer_fee_recipient"`
	ProposerMevReward            string   `json:"proposer_mev_reward"`
	ProposerProfitUSD            float64  `json:"proposer_profit_usd"`
	CumulativeMevProfitUSD       float64  `json:"cumulative_mev_profit_usd"`
	Bundles                      []Bundle `json:"bundles"`
}

// MarshalJSON encodes the report with stable field names and decimal strings
// for wei amounts.
func (r BlockReport) MarshalJSON() ([]byte, error) {
	return json.Marshal(blockReportJSON{
		BlockHash:                    r.BlockHash.Hex(),
		BlockNumber:                  r.BlockNumber,
		MevCount:                     r.MevCount,
		EthPriceUSD:                  r.EthPriceUSD,
		CumulativeGasUsed:            r.CumulativeGasUsed,
		CumulativeGasPaid:            bigString(r.CumulativeGasPaid),
		TotalBribe:                   bigString(r.TotalBribe),
		CumulativeMevPriorityFeePaid: bigString(r.CumulativeMevPriorityFeePaid),
		BuilderAddress:               r.BuilderAddress.Hex(),
		BuilderEthProfit:             bigString(r.BuilderEthProfit),
		BuilderProfitUSD:             r.BuilderProfitUSD,
		ProposerFeeRecipient:         r.ProposerFeeRecipient.Hex(),
		ProposerMevReward:            bigString(r.ProposerMevReward),
		ProposerProfitUSD:            r.ProposerProfitUSD,
		CumulativeMevProfitUSD:       r.CumulativeMevProfitUSD,
		Bundles:                      r.Bundles,
	})
}
