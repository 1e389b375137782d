package inspect

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"mevscope/internal/model"
	"mevscope/internal/valuation"
)

var (
	wethTok  = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	usdcTok  = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	daiTok   = common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F")
	poolA    = common.HexToAddress("0x0b01")
	poolB    = common.HexToAddress("0x0b02")
	attacker = common.HexToAddress("0x0aa1")
	victim   = common.HexToAddress("0x0bb1")
)

func testMeta() *model.Metadata {
	return &model.Metadata{
		BlockNumber: 100,
		BlockHash:   common.HexToHash("0xb10c"),
		EthPriceUSD: big.NewRat(2000, 1),
		TokenPricesUSD: map[common.Address]*big.Rat{
			wethTok: big.NewRat(2000, 1),
			usdcTok: big.NewRat(1, 1),
			daiTok:  big.NewRat(1, 1),
		},
		TokenDecimals: map[common.Address]uint8{
			wethTok: 18,
			usdcTok: 6,
			daiTok:  18,
		},
	}
}

func testValuer() *valuation.Valuer {
	return valuation.NewValuer(valuation.NewTokenRegistry(nil), nil)
}

func weiEth(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

func milliEth(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(15), nil))
}

func txInfoAt(index uint64, hash common.Hash, eoa common.Address, gasUsed uint64, gasPrice int64) model.TxInfo {
	return model.TxInfo{
		BlockNumber: 100,
		TxIndex:     index,
		TxHash:      hash,
		EOA:         eoa,
		GasDetails: model.GasDetails{
			GasUsed:           gasUsed,
			EffectiveGasPrice: big.NewInt(gasPrice),
			PriorityFeePerGas: big.NewInt(1),
		},
	}
}

func hashN(n byte) common.Hash {
	var h common.Hash
	h[31] = n
	return h
}

func headerBundle(mevType model.MevType, profit float64, hashes ...common.Hash) model.Bundle {
	return model.Bundle{
		Header: model.BundleHeader{
			BlockNumber: 100,
			TxHashes:    hashes,
			MevType:     mevType,
			ProfitUSD:   profit,
			GasPaid:     big.NewInt(1000),
		},
	}
}
