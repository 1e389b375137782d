package storage

import (
	"bufio"
	"encoding/json"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"mevscope/internal/model"
)

func testReport(blockNumber uint64) model.BlockReport {
	return model.BlockReport{
		BlockNumber:                  blockNumber,
		BlockHash:                    common.HexToHash("0xaa"),
		MevCount:                     1,
		EthPriceUSD:                  2000,
		CumulativeGasUsed:            71000,
		CumulativeGasPaid:            big.NewInt(1_210_000),
		TotalBribe:                   big.NewInt(0),
		CumulativeMevPriorityFeePaid: big.NewInt(0),
		BuilderEthProfit:             big.NewInt(1_210_000),
		ProposerMevReward:            big.NewInt(0),
		Bundles: []model.Bundle{
			{
				Header: model.BundleHeader{
					BlockNumber: blockNumber,
					TxHashes:    []common.Hash{common.HexToHash("0x01")},
					MevType:     model.MevBackrun,
					ProfitUSD:   60,
					GasPaid:     big.NewInt(1000),
				},
			},
		},
	}
}

func TestJsonlStorageAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "reports.jsonl")
	sink := NewJsonlStorage(path)

	if err := sink.PutReport(testReport(100)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := sink.PutReport(testReport(101)); err != nil {
		t.Fatalf("put: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer file.Close()

	var blockNumbers []uint64
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var decoded struct {
			BlockNumber uint64 `json:"block_number"`
			MevCount    uint64 `json:"mev_count"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &decoded); err != nil {
			t.Fatalf("decode line: %v", err)
		}
		if decoded.MevCount != 1 {
			t.Fatalf("mev count = %d", decoded.MevCount)
		}
		blockNumbers = append(blockNumbers, decoded.BlockNumber)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}

	if len(blockNumbers) != 2 || blockNumbers[0] != 100 || blockNumbers[1] != 101 {
		t.Fatalf("block numbers = %v", blockNumbers)
	}
}
