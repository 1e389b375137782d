package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Action is a normalized on-chain action decoded from a transaction trace.
// The set of implementations is closed: Swap, Transfer, Mint, Burn and
// FlashLoan.
type Action interface {
	isAction()
}

// Swap is a single pool swap.
type Swap struct {
	Pool      common.Address
	TokenIn   common.Address
	TokenOut  common.Address
	AmountIn  *big.Int
	AmountOut *big.Int
	From      common.Address
	Recipient common.Address
}

// Transfer is a plain token transfer.
type Transfer struct {
	Token  common.Address
	From   common.Address
	To     common.Address
	Amount *big.Int
}

// Mint adds liquidity to a pool.
type Mint struct {
	Pool    common.Address
	Owner   common.Address
	Token0  common.Address
	Token1  common.Address
	Amount0 *big.Int
	Amount1 *big.Int
}

// Burn removes liquidity from a pool.
type Burn struct {
	Pool    common.Address
	Owner   common.Address
	Token0  common.Address
	Token1  common.Address
	Amount0 *big.Int
	Amount1 *big.Int
}

// FlashLoan wraps the actions executed while the loan was held. The loan
// itself is not a swap, but its children may be.
type FlashLoan struct {
	Lender   common.Address
	Asset    common.Address
	Amount   *big.Int
	Children []Action
}

func (Swap) isAction()      {}
func (Transfer) isAction()  {}
func (Mint) isAction()      {}
func (Burn) isAction()      {}
func (FlashLoan) isAction() {}

// FlattenSwaps returns the swaps in actions in order, with flash-loan child
// swaps flattened into the same sequence.
func FlattenSwaps(actions []Action) []Swap {
	swaps := make([]Swap, 0, len(actions))
	for _, action := range actions {
		switch a := action.(type) {
		case Swap:
			swaps = append(swaps, a)
		case FlashLoan:
			swaps = append(swaps, FlattenSwaps(a.Children)...)
		}
	}
	return swaps
}
