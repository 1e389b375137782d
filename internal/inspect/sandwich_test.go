package inspect

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"mevscope/internal/model"
	"mevscope/internal/tree"
)

func sandwichTree(backRecipient common.Address) *tree.Tree {
	tr := tree.New(100, common.HexToHash("0xb10c"))

	// Attacker front-runs, buying USDC.
	tr.AddRoot(
		txInfoAt(0, hashN(1), attacker, 100_000, 20_000_000_000),
		[]model.Action{
			swapOn(poolA, wethTok, usdcTok, weiEth(1), big.NewInt(2000e6), attacker),
		},
	)
	// Victim trades the same direction.
	tr.AddRoot(
		txInfoAt(1, hashN(2), victim, 100_000, 20_000_000_000),
		[]model.Action{
			swapOn(poolA, wethTok, usdcTok, weiEth(1), big.NewInt(1900e6), victim),
		},
	)
	// Attacker back-runs, selling at the moved price.
	tr.AddRoot(
		txInfoAt(2, hashN(3), backRecipient, 100_000, 20_000_000_000),
		[]model.Action{
			swapOn(poolA, usdcTok, wethTok, big.NewInt(2000e6), new(big.Int).Add(weiEth(1), milliEth(100)), backRecipient),
		},
	)
	return tr
}

func TestSandwichInspector(t *testing.T) {
	inspector := NewSandwichInspector(testValuer(), nil)

	bundles, err := inspector.Inspect(context.Background(), sandwichTree(attacker), testMeta())
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if len(bundles) != 1 {
		t.Fatalf("expected 1 bundle, got %d", len(bundles))
	}

	header := bundles[0].Header
	if header.MevType != model.MevSandwich {
		t.Fatalf("mev type = %s", header.MevType)
	}
	// Attacker nets +0.1 ETH ($200) against two legs of $4 gas each.
	if header.ProfitUSD != 192 {
		t.Fatalf("profit = %f, want 192", header.ProfitUSD)
	}
	if header.GasPaid.Cmp(big.NewInt(4_000_000_000_000_000)) != 0 {
		t.Fatalf("gas paid = %s", header.GasPaid)
	}

	data, ok := bundles[0].Data.(model.SandwichAttack)
	if !ok {
		t.Fatalf("payload type %T", bundles[0].Data)
	}
	if len(data.FrontTxs) != 1 || data.FrontTxs[0] != hashN(1) {
		t.Fatalf("front txs = %v", data.FrontTxs)
	}
	if len(data.VictimTxs) != 1 || data.VictimTxs[0] != hashN(2) {
		t.Fatalf("victim txs = %v", data.VictimTxs)
	}
	if len(data.BackTxs) != 1 || data.BackTxs[0] != hashN(3) {
		t.Fatalf("back txs = %v", data.BackTxs)
	}
	want := []common.Hash{hashN(1), hashN(2), hashN(3)}
	if !model.HashesEqual(bundles[0].TxHashes(), want) {
		t.Fatalf("tx hashes = %v", bundles[0].TxHashes())
	}
}

func TestSandwichInspectorBackByOtherSender(t *testing.T) {
	inspector := NewSandwichInspector(testValuer(), nil)

	other := common.HexToAddress("0x0cc1")
	bundles, err := inspector.Inspect(context.Background(), sandwichTree(other), testMeta())
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if len(bundles) != 0 {
		t.Fatalf("back leg by another sender must not match, got %d", len(bundles))
	}
}

func TestSandwichInspectorNoVictim(t *testing.T) {
	inspector := NewSandwichInspector(testValuer(), nil)

	tr := tree.New(100, common.Hash{})
	tr.AddRoot(
		txInfoAt(0, hashN(1), attacker, 100_000, 20_000_000_000),
		[]model.Action{
			swapOn(poolA, wethTok, usdcTok, weiEth(1), big.NewInt(2000e6), attacker),
		},
	)
	tr.AddRoot(
		txInfoAt(1, hashN(2), attacker, 100_000, 20_000_000_000),
		[]model.Action{
			swapOn(poolA, usdcTok, wethTok, big.NewInt(2000e6), new(big.Int).Add(weiEth(1), milliEth(100)), attacker),
		},
	)

	bundles, err := inspector.Inspect(context.Background(), tr, testMeta())
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if len(bundles) != 0 {
		t.Fatalf("round trip without victims must not match, got %d", len(bundles))
	}
}

func TestSandwichInspectorUnprofitable(t *testing.T) {
	inspector := NewSandwichInspector(testValuer(), nil)

	tr := tree.New(100, common.Hash{})
	tr.AddRoot(
		txInfoAt(0, hashN(1), attacker, 100_000, 20_000_000_000),
		[]model.Action{
			swapOn(poolA, wethTok, usdcTok, weiEth(1), big.NewInt(2000e6), attacker),
		},
	)
	tr.AddRoot(
		txInfoAt(1, hashN(2), victim, 100_000, 20_000_000_000),
		[]model.Action{
			swapOn(poolA, wethTok, usdcTok, weiEth(1), big.NewInt(1900e6), victim),
		},
	)
	// Back leg recovers exactly the principal; gas makes the round trip a loss.
	tr.AddRoot(
		txInfoAt(2, hashN(3), attacker, 100_000, 20_000_000_000),
		[]model.Action{
			swapOn(poolA, usdcTok, wethTok, big.NewInt(2000e6), weiEth(1), attacker),
		},
	)

	bundles, err := inspector.Inspect(context.Background(), tr, testMeta())
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if len(bundles) != 0 {
		t.Fatalf("unprofitable sandwich must not match, got %d", len(bundles))
	}
}
