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

// ArbInspector detects atomic arbitrage: a transaction whose swap sequence
// forms a cycle returning value to its starting token at a profit net of
// gas. Flash-loan child swaps count toward the cycle.
type ArbInspector struct {
	valuer *valuation.Valuer
	logger *zap.Logger
}

func NewArbInspector(valuer *valuation.Valuer, logger *zap.Logger) *ArbInspector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArbInspector{valuer: valuer, logger: logger}
}

func (a *ArbInspector) Name() string { return "atomic_arb" }

func (a *ArbInspector) Inspect(ctx context.Context, t *tree.Tree, meta *model.Metadata) ([]model.Bundle, error) {
	interesting := t.Collect(func(action model.Action) bool {
		switch action.(type) {
		case model.Swap, model.Transfer, model.FlashLoan:
			return true
		default:
			return false
		}
	})

	var bundles []model.Bundle
	for _, txActions := range interesting {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		info, ok := t.TxInfo(txActions.TxHash)
		if !ok {
			continue
		}

		bundle, ok := a.processSwaps(ctx, info, txActions.Actions, meta)
		if !ok {
			continue
		}
		bundles = append(bundles, bundle)
	}

	return bundles, nil
}

func (a *ArbInspector) processSwaps(
	ctx context.Context,
	info model.TxInfo,
	actions []model.Action,
	meta *model.Metadata,
) (model.Bundle, bool) {
	swaps := model.FlattenSwaps(actions)
	if !isPossibleArb(swaps) {
		return model.Bundle{}, false
	}

	deltas := a.valuer.TokenDeltas(actions)
	usdDeltas, ok := a.valuer.USDDeltaByAddress(ctx, info.TxIndex, deltas, meta)
	if !ok {
		return model.Bundle{}, false
	}

	revenue := new(big.Rat)
	for _, delta := range usdDeltas {
		revenue.Add(revenue, delta)
	}

	gasPaid := info.GasDetails.GasPaid()
	gasUSD := a.valuer.GasPriceUSD(gasPaid, meta)

	profit := new(big.Rat).Sub(revenue, gasUSD)
	if profit.Sign() <= 0 {
		// Cyclic but unprofitable trades are not arbitrage.
		return model.Bundle{}, false
	}

	a.logger.Debug("arbitrage detected",
		zap.String("tx", info.TxHash.Hex()),
		zap.Int("swaps", len(swaps)),
		zap.String("profit_usd", profit.FloatString(6)),
	)

	header := a.valuer.BuildHeader(info, valuation.RatToFloat(profit), model.MevBackrun)
	data := model.AtomicArb{
		TxHash:     info.TxHash,
		GasDetails: info.GasDetails,
		Swaps:      swaps,
	}
	return model.Bundle{Header: header, Data: data}, true
}

// isPossibleArb applies the cycle heuristic over the flattened swap list.
func isPossibleArb(swaps []model.Swap) bool {
	if len(swaps) <= 1 {
		return false
	}

	if len(swaps) == 2 {
		start := swaps[0].TokenIn
		mid := swaps[0].TokenOut
		mid1 := swaps[1].TokenIn
		end := swaps[1].TokenOut
		// Address equality, not object identity: swaps into a re-issued
		// version of the same token are still triangular.
		return start == end && mid == mid1 && start != mid
	}

	poolTokens := make(map[common.Address]map[common.Address]struct{})
	for _, swap := range swaps {
		tokens, ok := poolTokens[swap.Pool]
		if !ok {
			tokens = make(map[common.Address]struct{})
			poolTokens[swap.Pool] = tokens
		}
		tokens[swap.TokenIn] = struct{}{}
		tokens[swap.TokenOut] = struct{}{}
	}

	pools := len(poolTokens)
	unique := make(map[common.Address]struct{})
	for _, tokens := range poolTokens {
		for token := range tokens {
			unique[token] = struct{}{}
		}
	}

	// Multi-hop router trades revisit few tokens across many pools without
	// forming a cycle.
	if len(unique) < pools && len(unique) <= 3 {
		return false
	}
	return true
}
