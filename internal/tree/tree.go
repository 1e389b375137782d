package tree

import (
	"github.com/ethereum/go-ethereum/common"

	"mevscope/internal/model"
)

// Root is one transaction with its decoded actions in trace order.
type Root struct {
	Info    model.TxInfo
	HasInfo bool
	Actions []model.Action
}

// Tree is the read-only, block-scoped action tree shared by all inspectors.
// It must not be mutated once handed to a composer.
type Tree struct {
	blockNumber uint64
	blockHash   common.Hash
	roots       []Root
	byHash      map[common.Hash]int
}

// New creates an empty tree for one block.
func New(blockNumber uint64, blockHash common.Hash) *Tree {
	return &Tree{
		blockNumber: blockNumber,
		blockHash:   blockHash,
		byHash:      make(map[common.Hash]int),
	}
}

func (t *Tree) BlockNumber() uint64    { return t.blockNumber }
func (t *Tree) BlockHash() common.Hash { return t.blockHash }

// AddRoot appends a transaction root with full metadata.
func (t *Tree) AddRoot(info model.TxInfo, actions []model.Action) {
	t.byHash[info.TxHash] = len(t.roots)
	t.roots = append(t.roots, Root{Info: info, HasInfo: true, Actions: actions})
}

// AddUnattributed appends a transaction whose gas accounting is unknown.
// TxInfo lookups for it report absence, and inspectors skip it.
func (t *Tree) AddUnattributed(txHash common.Hash, actions []model.Action) {
	t.byHash[txHash] = len(t.roots)
	t.roots = append(t.roots, Root{
		Info:    model.TxInfo{TxHash: txHash, BlockNumber: t.blockNumber},
		Actions: actions,
	})
}

// Roots returns the transaction roots in block order.
func (t *Tree) Roots() []Root {
	return t.roots
}

// TxActions is the per-transaction result of a Collect query.
type TxActions struct {
	TxHash  common.Hash
	Actions []model.Action
}

// Collect returns, per transaction in block order, the actions matching the
// predicate. Transactions with no match are omitted.
func (t *Tree) Collect(pred func(model.Action) bool) []TxActions {
	out := make([]TxActions, 0, len(t.roots))
	for _, root := range t.roots {
		var matched []model.Action
		for _, action := range root.Actions {
			if pred(action) {
				matched = append(matched, action)
			}
		}
		if len(matched) > 0 {
			out = append(out, TxActions{TxHash: root.Info.TxHash, Actions: matched})
		}
	}
	return out
}

// TxInfo returns the metadata of a transaction. The second return is false
// when the transaction is unknown or was added without gas accounting.
func (t *Tree) TxInfo(txHash common.Hash) (model.TxInfo, bool) {
	idx, ok := t.byHash[txHash]
	if !ok || !t.roots[idx].HasInfo {
		return model.TxInfo{}, false
	}
	return t.roots[idx].Info, true
}
