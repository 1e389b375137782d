package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"mevscope/internal/inspect"
	"mevscope/internal/model"
	"mevscope/internal/valuation"
)

type memorySink struct {
	reports []model.BlockReport
}

func (m *memorySink) PutReport(report model.BlockReport) error {
	m.reports = append(m.reports, report)
	return nil
}

const testMetaJSON = `{
  "block_number": %d,
  "block_hash": "0x00000000000000000000000000000000000000000000000000000000000000aa",
  "builder_address": "0x388C818CA8B9251b393131C08a736A67ccB19297",
  "eth_price_usd": "2000",
  "token_prices_usd": {
    "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2": "2000",
    "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48": "1"
  },
  "token_decimals": {
    "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2": 18,
    "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48": 6
  }
}`

// Two swaps closing a cycle with 0.05 ETH of profit before $40 of gas.
const testActionsJSON = `{"tx_hash":"0x01","tx_index":0,"from":"0x0aa1","gas_used":1000000,"effective_gas_price":"20000000000","priority_fee_per_gas":"1000000000","kind":"swap","pool":"0x0b01","token_in":"0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2","token_out":"0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48","amount_in":"1000000000000000000","amount_out":"2000000000","recipient":"0x0aa1"}
{"tx_hash":"0x01","tx_index":0,"from":"0x0aa1","gas_used":1000000,"effective_gas_price":"20000000000","priority_fee_per_gas":"1000000000","kind":"swap","pool":"0x0b02","token_in":"0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48","token_out":"0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2","amount_in":"2000000000","amount_out":"1050000000000000000","recipient":"0x0aa1"}
`

func writeBlock(t *testing.T, dir string, number uint64) {
	t.Helper()
	actionsPath := filepath.Join(dir, fmt.Sprintf("%d.jsonl", number))
	if err := os.WriteFile(actionsPath, []byte(testActionsJSON), 0o644); err != nil {
		t.Fatalf("write actions: %v", err)
	}
	metaPath := filepath.Join(dir, fmt.Sprintf("%d.meta.json", number))
	if err := os.WriteFile(metaPath, []byte(fmt.Sprintf(testMetaJSON, number)), 0o644); err != nil {
		t.Fatalf("write meta: %v", err)
	}
}

func testInspectors() []inspect.Inspector {
	valuer := valuation.NewValuer(valuation.NewTokenRegistry(nil), nil)
	return []inspect.Inspector{inspect.NewArbInspector(valuer, nil)}
}

func TestRunnerDirectoryInput(t *testing.T) {
	dir := t.TempDir()
	writeBlock(t, dir, 101)
	writeBlock(t, dir, 100)

	sink := &memorySink{}
	runner := NewRunner(
		RunConfig{
			Input:             dir,
			CheckpointPath:    filepath.Join(dir, "checkpoint.json"),
			CheckpointEnabled: true,
		},
		testInspectors(),
		inspect.DefaultDependencyTable(),
		nil,
		sink,
		nil,
	)

	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(sink.reports) != 2 {
		t.Fatalf("expected 2 reports, got %d", len(sink.reports))
	}
	if sink.reports[0].BlockNumber != 100 || sink.reports[1].BlockNumber != 101 {
		t.Fatalf("reports out of order: %d, %d", sink.reports[0].BlockNumber, sink.reports[1].BlockNumber)
	}
	if sink.reports[0].MevCount != 1 {
		t.Fatalf("mev count = %d, want 1", sink.reports[0].MevCount)
	}
	if sink.reports[0].Bundles[0].Header.ProfitUSD != 60 {
		t.Fatalf("profit = %f, want 60", sink.reports[0].Bundles[0].Header.ProfitUSD)
	}

	cp, found, err := NewCheckpointStore(filepath.Join(dir, "checkpoint.json"), true).Load()
	if err != nil || !found {
		t.Fatalf("checkpoint: found=%v err=%v", found, err)
	}
	if cp.LastProcessedBlock != 101 {
		t.Fatalf("checkpoint block = %d", cp.LastProcessedBlock)
	}
	if cp.ReportsWritten != 2 {
		t.Fatalf("checkpoint reports = %d", cp.ReportsWritten)
	}
}

func TestRunnerResumesFromCheckpoint(t *testing.T) {
	dir := t.TempDir()
	writeBlock(t, dir, 100)
	writeBlock(t, dir, 101)

	checkpointPath := filepath.Join(dir, "checkpoint.json")
	if err := NewCheckpointStore(checkpointPath, true).Save(100, 1); err != nil {
		t.Fatalf("seed checkpoint: %v", err)
	}

	sink := &memorySink{}
	runner := NewRunner(
		RunConfig{Input: dir, CheckpointPath: checkpointPath, CheckpointEnabled: true},
		testInspectors(),
		inspect.DefaultDependencyTable(),
		nil,
		sink,
		nil,
	)

	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(sink.reports) != 1 {
		t.Fatalf("expected only the unprocessed block, got %d reports", len(sink.reports))
	}
	if sink.reports[0].BlockNumber != 101 {
		t.Fatalf("block = %d", sink.reports[0].BlockNumber)
	}

	cp, _, err := NewCheckpointStore(checkpointPath, true).Load()
	if err != nil {
		t.Fatalf("reload checkpoint: %v", err)
	}
	if cp.LastProcessedBlock != 101 || cp.ReportsWritten != 2 {
		t.Fatalf("checkpoint after resume = %d/%d", cp.LastProcessedBlock, cp.ReportsWritten)
	}
}

func TestRunnerSkipsBrokenBlock(t *testing.T) {
	dir := t.TempDir()
	writeBlock(t, dir, 100)

	// A block file with no metadata cannot be processed; the run continues.
	badActions := filepath.Join(dir, "99.jsonl")
	if err := os.WriteFile(badActions, []byte(testActionsJSON), 0o644); err != nil {
		t.Fatalf("write actions: %v", err)
	}

	sink := &memorySink{}
	runner := NewRunner(
		RunConfig{Input: dir},
		testInspectors(),
		inspect.DefaultDependencyTable(),
		nil,
		sink,
		nil,
	)

	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(sink.reports) != 1 {
		t.Fatalf("expected 1 report, got %d", len(sink.reports))
	}
	if sink.reports[0].BlockNumber != 100 {
		t.Fatalf("block = %d", sink.reports[0].BlockNumber)
	}
}

func TestRunnerSingleFileRequiresMeta(t *testing.T) {
	dir := t.TempDir()
	actionsPath := filepath.Join(dir, "block.jsonl")
	if err := os.WriteFile(actionsPath, []byte(testActionsJSON), 0o644); err != nil {
		t.Fatalf("write actions: %v", err)
	}

	runner := NewRunner(
		RunConfig{Input: actionsPath},
		testInspectors(),
		inspect.DefaultDependencyTable(),
		nil,
		&memorySink{},
		nil,
	)

	if err := runner.Run(context.Background()); err == nil {
		t.Fatalf("single-file input without metadata must fail")
	}
}
