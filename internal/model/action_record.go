package model

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ActionRecord is the normalized JSONL representation of one decoded action.
// Big integers are encoded as decimal strings. Transaction-level fields are
// repeated on every record of the same transaction; the first record seen
// establishes the transaction info.
type ActionRecord struct {
	TxHash            string         `json:"tx_hash"`
	TxIndex           uint64         `json:"tx_index"`
	From              string         `json:"from"`
	To                string         `json:"to"`
	GasUsed           uint64         `json:"gas_used"`
	EffectiveGasPrice string         `json:"effective_gas_price"`
	PriorityFeePerGas string         `json:"priority_fee_per_gas"`
	CoinbaseTransfer  string         `json:"coinbase_transfer,omitempty"`
	Kind              string         `json:"kind"`
	Pool              string         `json:"pool,omitempty"`
	TokenIn           string         `json:"token_in,omitempty"`
	TokenOut          string         `json:"token_out,omitempty"`
	AmountIn          string         `json:"amount_in,omitempty"`
	AmountOut         string         `json:"amount_out,omitempty"`
	Token             string         `json:"token,omitempty"`
	Recipient         string         `json:"recipient,omitempty"`
	Owner             string         `json:"owner,omitempty"`
	Token0            string         `json:"token0,omitempty"`
	Token1            string         `json:"token1,omitempty"`
	Amount0           string         `json:"amount0,omitempty"`
	Amount1           string         `json:"amount1,omitempty"`
	Amount            string         `json:"amount,omitempty"`
	Children          []ActionRecord `json:"children,omitempty"`
}

// Record kinds.
const (
	KindSwap      = "swap"
	KindTransfer  = "transfer"
	KindMint      = "mint"
	KindBurn      = "burn"
	KindFlashLoan = "flash_loan"
)

// HasGasInfo reports whether the record carries usable transaction gas
// accounting. Records without it produce unattributed tree entries.
func (r ActionRecord) HasGasInfo() bool {
	return r.GasUsed > 0 && r.EffectiveGasPrice != ""
}

// TxInfo builds the transaction info carried by the record.
func (r ActionRecord) TxInfo(blockNumber uint64) (TxInfo, error) {
	effective, err := parseBig(r.EffectiveGasPrice)
	if err != nil {
		return TxInfo{}, fmt.Errorf("effective_gas_price: %w", err)
	}
	priority, err := parseBig(r.PriorityFeePerGas)
	if err != nil {
		return TxInfo{}, fmt.Errorf("priority_fee_per_gas: %w", err)
	}
	coinbase, err := parseBig(r.CoinbaseTransfer)
	if err != nil {
		return TxInfo{}, fmt.Errorf("coinbase_transfer: %w", err)
	}

	return TxInfo{
		BlockNumber: blockNumber,
		TxIndex:     r.TxIndex,
		TxHash:      common.HexToHash(r.TxHash),
		EOA:         common.HexToAddress(r.From),
		MevContract: common.HexToAddress(r.To),
		GasDetails: GasDetails{
			GasUsed:           r.GasUsed,
			EffectiveGasPrice: effective,
			PriorityFeePerGas: priority,
			CoinbaseTransfer:  coinbase,
		},
	}, nil
}

// Action decodes the record into its typed action.
func (r ActionRecord) Action() (Action, error) {
	switch r.Kind {
	case KindSwap:
		amountIn, err := parseBig(r.AmountIn)
		if err != nil {
			return nil, fmt.Errorf("amount_in: %w", err)
		}
		amountOut, err := parseBig(r.AmountOut)
		if err != nil {
			return nil, fmt.Errorf("amount_out: %w", err)
		}
		return Swap{
			Pool:      common.HexToAddress(r.Pool),
			TokenIn:   common.HexToAddress(r.TokenIn),
			TokenOut:  common.HexToAddress(r.TokenOut),
			AmountIn:  amountIn,
			AmountOut: amountOut,
			From:      common.HexToAddress(r.From),
			Recipient: common.HexToAddress(r.Recipient),
		}, nil
	case KindTransfer:
		amount, err := parseBig(r.Amount)
		if err != nil {
			return nil, fmt.Errorf("amount: %w", err)
		}
		return Transfer{
			Token:  common.HexToAddress(r.Token),
			From:   common.HexToAddress(r.From),
			To:     common.HexToAddress(r.Recipient),
			Amount: amount,
		}, nil
	case KindMint, KindBurn:
		amount0, err := parseBig(r.Amount0)
		if err != nil {
			return nil, fmt.Errorf("amount0: %w", err)
		}
		amount1, err := parseBig(r.Amount1)
		if err != nil {
			return nil, fmt.Errorf("amount1: %w", err)
		}
		if r.Kind == KindMint {
			return Mint{
				Pool:    common.HexToAddress(r.Pool),
				Owner:   common.HexToAddress(r.Owner),
				Token0:  common.HexToAddress(r.Token0),
				Token1:  common.HexToAddress(r.Token1),
				Amount0: amount0,
				Amount1: amount1,
			}, nil
		}
		return Burn{
			Pool:    common.HexToAddress(r.Pool),
			Owner:   common.HexToAddress(r.Owner),
			Token0:  common.HexToAddress(r.Token0),
			Token1:  common.HexToAddress(r.Token1),
			Amount0: amount0,
			Amount1: amount1,
		}, nil
	case KindFlashLoan:
		amount, err := parseBig(r.Amount)
		if err != nil {
			return nil, fmt.Errorf("amount: %w", err)
		}
		children := make([]Action, 0, len(r.Children))
		for i, child := range r.Children {
			action, err := child.Action()
			if err != nil {
				return nil, fmt.Errorf("child %d: %w", i, err)
			}
			children = append(children, action)
		}
		return FlashLoan{
			Lender:   common.HexToAddress(r.Pool),
			Asset:    common.HexToAddress(r.Token),
			Amount:   amount,
			Children: children,
		}, nil
	default:
		return nil, fmt.Errorf("unknown action kind: %q", r.Kind)
	}
}

func parseBig(s string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid integer: %q", s)
	}
	return v, nil
}
