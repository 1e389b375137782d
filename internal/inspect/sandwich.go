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

// poolDirection keys swaps by pool and trade direction.
type poolDirection struct {
	Pool     common.Address
	TokenIn  common.Address
	TokenOut common.Address
}

func (k poolDirection) reversed() poolDirection {
	return poolDirection{Pool: k.Pool, TokenIn: k.TokenOut, TokenOut: k.TokenIn}
}

// SandwichInspector detects in-block sandwiches: a front swap A->B and a
// back swap B->A on the same pool by the same sender, with victim swaps
// A->B in between.
type SandwichInspector struct {
	valuer *valuation.Valuer
	logger *zap.Logger
}

func NewSandwichInspector(valuer *valuation.Valuer, logger *zap.Logger) *SandwichInspector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SandwichInspector{valuer: valuer, logger: logger}
}

func (s *SandwichInspector) Name() string { return "sandwich" }

type swapTx struct {
	info    model.TxInfo
	actions []model.Action
	swaps   []model.Swap
}

func (s *SandwichInspector) Inspect(ctx context.Context, t *tree.Tree, meta *model.Metadata) ([]model.Bundle, error) {
	interesting := t.Collect(func(action model.Action) bool {
		switch action.(type) {
		case model.Swap, model.Transfer, model.FlashLoan:
			return true
		default:
			return false
		}
	})

	entries := make([]swapTx, 0, len(interesting))
	for _, txActions := range interesting {
		info, ok := t.TxInfo(txActions.TxHash)
		if !ok {
			continue
		}
		swaps := model.FlattenSwaps(txActions.Actions)
		if len(swaps) == 0 {
			continue
		}
		entries = append(entries, swapTx{info: info, actions: txActions.Actions, swaps: swaps})
	}

	buckets := make(map[poolDirection][]int)
	for i, entry := range entries {
		for _, swap := range entry.swaps {
			key := poolDirection{Pool: swap.Pool, TokenIn: swap.TokenIn, TokenOut: swap.TokenOut}
			buckets[key] = append(buckets[key], i)
		}
	}

	used := make(map[int]bool)
	var bundles []model.Bundle

	for i, front := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if used[i] {
			continue
		}

		for _, swap := range front.swaps {
			key := poolDirection{Pool: swap.Pool, TokenIn: swap.TokenIn, TokenOut: swap.TokenOut}
			backIdx := s.findBack(entries, buckets[key.reversed()], i, front.info.EOA, used)
			if backIdx < 0 {
				continue
			}

			victims := s.findVictims(entries, buckets[key], i, backIdx, front.info.EOA)
			if len(victims) == 0 {
				continue
			}

			bundle, ok := s.buildBundle(ctx, meta, entries, i, victims, backIdx)
			if !ok {
				continue
			}
			used[i] = true
			used[backIdx] = true
			bundles = append(bundles, bundle)
			break
		}
	}

	return bundles, nil
}

// findBack returns the earliest later transaction by the same sender trading
// the opposite direction, or -1.
func (s *SandwichInspector) findBack(entries []swapTx, candidates []int, frontIdx int, attacker common.Address, used map[int]bool) int {
	for _, idx := range candidates {
		if idx <= frontIdx || used[idx] {
			continue
		}
		if entries[idx].info.EOA == attacker {
			return idx
		}
	}
	return -1
}

// findVictims returns transactions between front and back trading the same
// direction as the front, excluding the attacker's own.
func (s *SandwichInspector) findVictims(entries []swapTx, candidates []int, frontIdx, backIdx int, attacker common.Address) []int {
	var victims []int
	for _, idx := range candidates {
		if idx <= frontIdx || idx >= backIdx {
			continue
		}
		if entries[idx].info.EOA == attacker {
			continue
		}
		victims = append(victims, idx)
	}
	return victims
}

func (s *SandwichInspector) buildBundle(
	ctx context.Context,
	meta *model.Metadata,
	entries []swapTx,
	frontIdx int,
	victims []int,
	backIdx int,
) (model.Bundle, bool) {
	front := entries[frontIdx]
	back := entries[backIdx]

	attackerActions := make([]model.Action, 0, len(front.actions)+len(back.actions))
	attackerActions = append(attackerActions, front.actions...)
	attackerActions = append(attackerActions, back.actions...)

	deltas := s.valuer.TokenDeltas(attackerActions)
	usdDeltas, ok := s.valuer.USDDeltaByAddress(ctx, front.info.TxIndex, deltas, meta)
	if !ok {
		return model.Bundle{}, false
	}

	revenue := new(big.Rat)
	for _, delta := range usdDeltas {
		revenue.Add(revenue, delta)
	}

	gasPaid := new(big.Int).Add(front.info.GasDetails.GasPaid(), back.info.GasDetails.GasPaid())
	gasUSD := s.valuer.GasPriceUSD(gasPaid, meta)

	profit := new(big.Rat).Sub(revenue, gasUSD)
	if profit.Sign() <= 0 {
		return model.Bundle{}, false
	}

	data := model.SandwichAttack{
		FrontTxs:   []common.Hash{front.info.TxHash},
		BackTxs:    []common.Hash{back.info.TxHash},
		FrontSwaps: front.swaps,
		BackSwaps:  back.swaps,
	}
	for _, idx := range victims {
		data.VictimTxs = append(data.VictimTxs, entries[idx].info.TxHash)
		data.VictimSwaps = append(data.VictimSwaps, entries[idx].swaps...)
	}

	s.logger.Debug("sandwich detected",
		zap.String("front", front.info.TxHash.Hex()),
		zap.String("back", back.info.TxHash.Hex()),
		zap.Int("victims", len(victims)),
	)

	header := model.BundleHeader{
		BlockNumber:     front.info.BlockNumber,
		TxHashes:        data.TxHashes(),
		EOA:             front.info.EOA,
		MevContract:     front.info.MevContract,
		MevType:         model.MevSandwich,
		ProfitUSD:       valuation.RatToFloat(profit),
		GasPaid:         gasPaid,
		PriorityFeePaid: new(big.Int).Add(front.info.GasDetails.PriorityFeePaid(), back.info.GasDetails.PriorityFeePaid()),
		Bribe:           new(big.Int).Add(front.info.GasDetails.Bribe(), back.info.GasDetails.Bribe()),
	}
	return model.Bundle{Header: header, Data: data}, true
}
