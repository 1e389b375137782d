package tree

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"mevscope/internal/model"
)

// Build assembles a tree from decoded action records. Records are grouped by
// transaction hash; the first record of a transaction establishes its gas
// accounting. Records with malformed payloads are skipped.
func Build(blockNumber uint64, blockHash common.Hash, records []model.ActionRecord, logger *zap.Logger) *Tree {
	if logger == nil {
		logger = zap.NewNop()
	}

	type txGroup struct {
		record  model.ActionRecord
		actions []model.Action
	}

	order := make([]common.Hash, 0, len(records))
	groups := make(map[common.Hash]*txGroup)

	for _, record := range records {
		hash := common.HexToHash(record.TxHash)
		group, ok := groups[hash]
		if !ok {
			group = &txGroup{record: record}
			groups[hash] = group
			order = append(order, hash)
		}

		action, err := record.Action()
		if err != nil {
			logger.Warn("skip malformed action record", zap.String("tx", record.TxHash), zap.Error(err))
			continue
		}
		group.actions = append(group.actions, action)
	}

	sort.SliceStable(order, func(i, j int) bool {
		return groups[order[i]].record.TxIndex < groups[order[j]].record.TxIndex
	})

	t := New(blockNumber, blockHash)
	for _, hash := range order {
		group := groups[hash]
		if !group.record.HasGasInfo() {
			logger.Debug("tx without gas info", zap.String("tx", hash.Hex()))
			t.AddUnattributed(hash, group.actions)
			continue
		}
		info, err := group.record.TxInfo(blockNumber)
		if err != nil {
			logger.Warn("skip tx with malformed gas info", zap.String("tx", hash.Hex()), zap.Error(err))
			t.AddUnattributed(hash, group.actions)
			continue
		}
		t.AddRoot(info, group.actions)
	}

	return t
}

// ReadBlockFile loads action records from a JSONL file and builds the tree.
func ReadBlockFile(path string, blockNumber uint64, blockHash common.Hash, logger *zap.Logger) (*Tree, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open block file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	var records []model.ActionRecord
	var failed int
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var record model.ActionRecord
		if err := json.Unmarshal(line, &record); err != nil {
			failed++
			logger.Warn("decode action record", zap.Error(err))
			continue
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan block file: %w", err)
	}

	if failed > 0 {
		logger.Info("block file loaded with failures", zap.String("path", path), zap.Int("records", len(records)), zap.Int("failed", failed))
	}

	return Build(blockNumber, blockHash, records, logger), nil
}
