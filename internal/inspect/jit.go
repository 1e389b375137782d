package inspect

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"mevscope/internal/model"
	"mevscope/internal/tree"
	"mevscope/internal/valuation"
)

// JitInspector detects just-in-time liquidity: a mint and a burn on the same
// pool by the same sender bracketing victim swaps on that pool.
type JitInspector struct {
	valuer *valuation.Valuer
	logger *zap.Logger
}

func NewJitInspector(valuer *valuation.Valuer, logger *zap.Logger) *JitInspector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JitInspector{valuer: valuer, logger: logger}
}

func (j *JitInspector) Name() string { return "jit" }

type liquidityTx struct {
	info    model.TxInfo
	actions []model.Action
	mints   []model.Mint
	burns   []model.Burn
	pools   map[common.Address]bool
}

func (j *JitInspector) Inspect(ctx context.Context, t *tree.Tree, meta *model.Metadata) ([]model.Bundle, error) {
	interesting := t.Collect(func(action model.Action) bool {
		switch action.(type) {
		case model.Mint, model.Burn, model.Swap:
			return true
		default:
			return false
		}
	})

	entries := make([]liquidityTx, 0, len(interesting))
	for _, txActions := range interesting {
		info, ok := t.TxInfo(txActions.TxHash)
		if !ok {
			continue
		}
		entry := liquidityTx{info: info, actions: txActions.Actions, pools: make(map[common.Address]bool)}
		for _, action := range txActions.Actions {
			switch a := action.(type) {
			case model.Mint:
				entry.mints = append(entry.mints, a)
			case model.Burn:
				entry.burns = append(entry.burns, a)
			case model.Swap:
				entry.pools[a.Pool] = true
			}
		}
		entries = append(entries, entry)
	}

	used := make(map[int]bool)
	var bundles []model.Bundle

	for i, mintEntry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if used[i] || len(mintEntry.mints) == 0 {
			continue
		}

		for _, mint := range mintEntry.mints {
			burnIdx := j.findBurn(entries, i, mint.Pool, mintEntry.info.EOA, used)
			if burnIdx < 0 {
				continue
			}

			var victims []int
			for k := i + 1; k < burnIdx; k++ {
				if entries[k].pools[mint.Pool] && entries[k].info.EOA != mintEntry.info.EOA {
					victims = append(victims, k)
				}
			}
			if len(victims) == 0 {
				continue
			}

			bundle, ok := j.buildBundle(ctx, meta, entries, i, victims, burnIdx)
			if !ok {
				continue
			}
			used[i] = true
			used[burnIdx] = true
			bundles = append(bundles, bundle)
			break
		}
	}

	return bundles, nil
}

func (j *JitInspector) findBurn(entries []liquidityTx, mintIdx int, pool common.Address, provider common.Address, used map[int]bool) int {
	for idx := mintIdx + 1; idx < len(entries); idx++ {
		if used[idx] || entries[idx].info.EOA != provider {
			continue
		}
		for _, burn := range entries[idx].burns {
			if burn.Pool == pool {
				return idx
			}
		}
	}
	return -1
}

func (j *JitInspector) buildBundle(
	ctx context.Context,
	meta *model.Metadata,
	entries []liquidityTx,
	mintIdx int,
	victims []int,
	burnIdx int,
) (model.Bundle, bool) {
	mintEntry := entries[mintIdx]
	burnEntry := entries[burnIdx]

	providerActions := make([]model.Action, 0, len(mintEntry.actions)+len(burnEntry.actions))
	providerActions = append(providerActions, mintEntry.actions...)
	providerActions = append(providerActions, burnEntry.actions...)

	deltas := j.valuer.TokenDeltas(providerActions)
	usdDeltas, ok := j.valuer.USDDeltaByAddress(ctx, mintEntry.info.TxIndex, deltas, meta)
	if !ok {
		return model.Bundle{}, false
	}

	revenue := new(big.Rat)
	for _, delta := range usdDeltas {
		revenue.Add(revenue, delta)
	}

	gasPaid := new(big.Int).Add(mintEntry.info.GasDetails.GasPaid(), burnEntry.info.GasDetails.GasPaid())
	gasUSD := j.valuer.GasPriceUSD(gasPaid, meta)

	profit := new(big.Rat).Sub(revenue, gasUSD)
	if profit.Sign() <= 0 {
		return model.Bundle{}, false
	}

	data := model.JitLiquidity{
		MintTx: mintEntry.info.TxHash,
		BurnTx: burnEntry.info.TxHash,
		Mints:  mintEntry.mints,
		Burns:  burnEntry.burns,
	}
	for _, idx := range victims {
		data.VictimTxs = append(data.VictimTxs, entries[idx].info.TxHash)
	}

	j.logger.Debug("jit liquidity detected",
		zap.String("mint", mintEntry.info.TxHash.Hex()),
		zap.String("burn", burnEntry.info.TxHash.Hex()),
		zap.Int("victims", len(victims)),
	)

	header := model.BundleHeader{
		BlockNumber:     mintEntry.info.BlockNumber,
		TxHashes:        data.TxHashes(),
		EOA:             mintEntry.info.EOA,
		MevContract:     mintEntry.info.MevContract,
		MevType:         model.MevJit,
		ProfitUSD:       valuation.RatToFloat(profit),
		GasPaid:         gasPaid,
		PriorityFeePaid: new(big.Int).Add(mintEntry.info.GasDetails.PriorityFeePaid(), burnEntry.info.GasDetails.PriorityFeePaid()),
		Bribe:           new(big.Int).Add(mintEntry.info.GasDetails.Bribe(), burnEntry.info.GasDetails.Bribe()),
	}
	return model.Bundle{Header: header, Data: data}, true
}
