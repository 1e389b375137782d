package inspect

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"mevscope/internal/model"
	"mevscope/internal/tree"
)

func jitTree(withVictim bool) *tree.Tree {
	tr := tree.New(100, common.HexToHash("0xb10c"))

	tr.AddRoot(
		txInfoAt(0, hashN(1), attacker, 100_000, 20_000_000_000),
		[]model.Action{
			model.Mint{
				Pool:    poolA,
				Owner:   attacker,
				Token0:  wethTok,
				Token1:  usdcTok,
				Amount0: weiEth(1),
				Amount1: big.NewInt(2000e6),
			},
		},
	)
	if withVictim {
		tr.AddRoot(
			txInfoAt(1, hashN(2), victim, 100_000, 20_000_000_000),
			[]model.Action{
				swapOn(poolA, wethTok, usdcTok, weiEth(1), big.NewInt(1900e6), victim),
			},
		)
	}
	tr.AddRoot(
		txInfoAt(2, hashN(3), attacker, 100_000, 20_000_000_000),
		[]model.Action{
			model.Burn{
				Pool:    poolA,
				Owner:   attacker,
				Token0:  wethTok,
				Token1:  usdcTok,
				Amount0: new(big.Int).Add(weiEth(1), milliEth(50)),
				Amount1: big.NewInt(2100e6),
			},
		},
	)
	return tr
}

func TestJitInspector(t *testing.T) {
	inspector := NewJitInspector(testValuer(), nil)

	bundles, err := inspector.Inspect(context.Background(), jitTree(true), testMeta())
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if len(bundles) != 1 {
		t.Fatalf("expected 1 bundle, got %d", len(bundles))
	}

	header := bundles[0].Header
	if header.MevType != model.MevJit {
		t.Fatalf("mev type = %s", header.MevType)
	}
	// Fees collected are 0.05 ETH ($100) plus 100 USDC, less $8 gas.
	if header.ProfitUSD != 192 {
		t.Fatalf("profit = %f, want 192", header.ProfitUSD)
	}

	data, ok := bundles[0].Data.(model.JitLiquidity)
	if !ok {
		t.Fatalf("payload type %T", bundles[0].Data)
	}
	if data.MintTx != hashN(1) || data.BurnTx != hashN(3) {
		t.Fatalf("mint/burn = %s/%s", data.MintTx.Hex(), data.BurnTx.Hex())
	}
	if len(data.VictimTxs) != 1 || data.VictimTxs[0] != hashN(2) {
		t.Fatalf("victim txs = %v", data.VictimTxs)
	}
	want := []common.Hash{hashN(1), hashN(2), hashN(3)}
	if !model.HashesEqual(bundles[0].TxHashes(), want) {
		t.Fatalf("tx hashes = %v", bundles[0].TxHashes())
	}
}

func TestJitInspectorNoVictim(t *testing.T) {
	inspector := NewJitInspector(testValuer(), nil)

	bundles, err := inspector.Inspect(context.Background(), jitTree(false), testMeta())
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if len(bundles) != 0 {
		t.Fatalf("mint/burn without victims must not match, got %d", len(bundles))
	}
}

func TestJitInspectorDifferentPool(t *testing.T) {
	inspector := NewJitInspector(testValuer(), nil)

	tr := tree.New(100, common.Hash{})
	tr.AddRoot(
		txInfoAt(0, hashN(1), attacker, 100_000, 20_000_000_000),
		[]model.Action{
			model.Mint{Pool: poolA, Owner: attacker, Token0: wethTok, Token1: usdcTok, Amount0: weiEth(1), Amount1: big.NewInt(2000e6)},
		},
	)
	tr.AddRoot(
		txInfoAt(1, hashN(2), victim, 100_000, 20_000_000_000),
		[]model.Action{
			swapOn(poolA, wethTok, usdcTok, weiEth(1), big.NewInt(1900e6), victim),
		},
	)
	tr.AddRoot(
		txInfoAt(2, hashN(3), attacker, 100_000, 20_000_000_000),
		[]model.Action{
			model.Burn{Pool: poolB, Owner: attacker, Token0: wethTok, Token1: usdcTok, Amount0: weiEth(2), Amount1: big.NewInt(4000e6)},
		},
	)

	bundles, err := inspector.Inspect(context.Background(), tr, testMeta())
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if len(bundles) != 0 {
		t.Fatalf("burn on a different pool must not match, got %d", len(bundles))
	}
}
