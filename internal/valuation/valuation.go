package valuation

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"mevscope/internal/model"
)

const weiDecimals = 18

// Valuer computes USD values from token balance deltas and block metadata.
// All intermediate math is exact rational; floats appear only in built
// headers.
type Valuer struct {
	registry *TokenRegistry
	logger   *zap.Logger
}

// NewValuer builds a Valuer with its token registry.
func NewValuer(registry *TokenRegistry, logger *zap.Logger) *Valuer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Valuer{registry: registry, logger: logger}
}

// TokenDeltas computes net token balance deltas per address from actions.
// Flash-loan children are included; the loan principal itself nets to zero.
func (v *Valuer) TokenDeltas(actions []model.Action) map[common.Address]map[common.Address]*big.Int {
	deltas := make(map[common.Address]map[common.Address]*big.Int)
	v.accumulateDeltas(deltas, actions)
	return deltas
}

func (v *Valuer) accumulateDeltas(deltas map[common.Address]map[common.Address]*big.Int, actions []model.Action) {
	for _, action := range actions {
		switch a := action.(type) {
		case model.Swap:
			applyDelta(deltas, a.From, a.TokenIn, new(big.Int).Neg(a.AmountIn))
			applyDelta(deltas, a.Recipient, a.TokenOut, a.AmountOut)
		case model.Transfer:
			applyDelta(deltas, a.From, a.Token, new(big.Int).Neg(a.Amount))
			applyDelta(deltas, a.To, a.Token, a.Amount)
		case model.Mint:
			applyDelta(deltas, a.Owner, a.Token0, new(big.Int).Neg(a.Amount0))
			applyDelta(deltas, a.Owner, a.Token1, new(big.Int).Neg(a.Amount1))
		case model.Burn:
			applyDelta(deltas, a.Owner, a.Token0, a.Amount0)
			applyDelta(deltas, a.Owner, a.Token1, a.Amount1)
		case model.FlashLoan:
			v.accumulateDeltas(deltas, a.Children)
		}
	}
}

func applyDelta(deltas map[common.Address]map[common.Address]*big.Int, owner, token common.Address, amount *big.Int) {
	if amount == nil || amount.Sign() == 0 {
		return
	}
	byToken, ok := deltas[owner]
	if !ok {
		byToken = make(map[common.Address]*big.Int)
		deltas[owner] = byToken
	}
	current, ok := byToken[token]
	if !ok {
		current = new(big.Int)
		byToken[token] = current
	}
	current.Add(current, amount)
}

// USDDeltaByAddress converts token deltas into per-address USD deltas using
// metadata prices. Returns false when any touched token lacks a price or
// decimals, which callers treat as "skip", not an error. A token that nets
// to zero still needs a price: a cycle through an unpriceable token cannot
// be valued with confidence.
func (v *Valuer) USDDeltaByAddress(
	ctx context.Context,
	txIndex uint64,
	deltas map[common.Address]map[common.Address]*big.Int,
	meta *model.Metadata,
) (map[common.Address]*big.Rat, bool) {
	out := make(map[common.Address]*big.Rat, len(deltas))

	for owner, byToken := range deltas {
		total := new(big.Rat)
		for token, amount := range byToken {
			price, ok := meta.TokenPrice(token)
			if !ok {
				v.logger.Debug("no price for token",
					zap.Uint64("tx_index", txIndex),
					zap.String("token", token.Hex()),
				)
				return nil, false
			}
			decimals, ok := meta.Decimals(token)
			if !ok {
				var err error
				decimals, err = v.registry.Decimals(ctx, token)
				if err != nil {
					v.logger.Debug("no decimals for token",
						zap.Uint64("tx_index", txIndex),
						zap.String("token", token.Hex()),
						zap.Error(err),
					)
					return nil, false
				}
			}
			total.Add(total, scaledUSD(amount, decimals, price))
		}
		out[owner] = total
	}

	return out, true
}

// GasPriceUSD converts a wei gas amount into USD at the block ETH price.
func (v *Valuer) GasPriceUSD(gasPaidWei *big.Int, meta *model.Metadata) *big.Rat {
	if meta == nil {
		return new(big.Rat)
	}
	return WeiToUSD(gasPaidWei, meta.EthPriceUSD)
}

// WeiToUSD converts a wei amount into USD at the given ETH price, exactly.
func WeiToUSD(wei *big.Int, ethPrice *big.Rat) *big.Rat {
	if wei == nil || ethPrice == nil {
		return new(big.Rat)
	}
	return scaledUSD(wei, weiDecimals, ethPrice)
}

// scaledUSD returns amount / 10^decimals * price as an exact rational.
func scaledUSD(amount *big.Int, decimals uint8, price *big.Rat) *big.Rat {
	denom := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	scaled := new(big.Rat).SetFrac(new(big.Int).Set(amount), denom)
	return scaled.Mul(scaled, price)
}

// RatToFloat rounds an exact rational to the nearest float64. Used only at
// the final numeric-output step.
func RatToFloat(r *big.Rat) float64 {
	if r == nil {
		return 0
	}
	f, _ := r.Float64()
	return f
}

// BuildHeader assembles a bundle header from transaction info and the
// already-computed USD profit.
func (v *Valuer) BuildHeader(
	info model.TxInfo,
	profitUSD float64,
	mevType model.MevType,
) model.BundleHeader {
	return model.BundleHeader{
		BlockNumber:     info.BlockNumber,
		TxHashes:        []common.Hash{info.TxHash},
		EOA:             info.EOA,
		MevContract:     info.MevContract,
		MevType:         mevType,
		ProfitUSD:       profitUSD,
		GasPaid:         info.GasDetails.GasPaid(),
		PriorityFeePaid: info.GasDetails.PriorityFeePaid(),
		Bribe:           info.GasDetails.Bribe(),
	}
}
