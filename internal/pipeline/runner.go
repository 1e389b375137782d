package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"mevscope/internal/chain"
	"mevscope/internal/config"
	"mevscope/internal/inspect"
	"mevscope/internal/model"
	"mevscope/internal/storage"
	"mevscope/internal/tree"
)

// RunConfig holds runtime settings for the block pipeline.
type RunConfig struct {
	Input             string
	MetaPath          string
	CheckpointPath    string
	CheckpointEnabled bool
	MaxRetries        int
	RetryBackoff      time.Duration
}

// Runner drives block files through the detection engine and writes reports
// to storage. Input is either a single action JSONL file (with MetaPath
// set) or a directory holding <number>.jsonl plus <number>.meta.json pairs.
type Runner struct {
	cfg        RunConfig
	inspectors []inspect.Inspector
	table      inspect.DependencyTable
	chain      *chain.Client
	storage    storage.Storage
	logger     *zap.Logger
	checkpoint *CheckpointStore
}

// NewRunner builds a Runner with its dependencies. chainClient may be nil
// when metadata files are complete.
func NewRunner(
	cfg RunConfig,
	inspectors []inspect.Inspector,
	table inspect.DependencyTable,
	chainClient *chain.Client,
	storageSink storage.Storage,
	logger *zap.Logger,
) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:        cfg,
		inspectors: inspectors,
		table:      table,
		chain:      chainClient,
		storage:    storageSink,
		logger:     logger,
		checkpoint: NewCheckpointStore(cfg.CheckpointPath, cfg.CheckpointEnabled),
	}
}

type blockInput struct {
	Number      uint64
	ActionsPath string
	MetaPath    string
}

// Run executes the pipeline over all discovered blocks.
func (r *Runner) Run(ctx context.Context) error {
	if r.storage == nil {
		return fmt.Errorf("storage is nil")
	}
	if len(r.inspectors) == 0 {
		return fmt.Errorf("at least one inspector is required")
	}

	blocks, err := r.discoverBlocks()
	if err != nil {
		return err
	}

	var resumeAfter, reports uint64
	if r.checkpoint != nil {
		cp, ok, err := r.checkpoint.Load()
		if err != nil {
			return err
		}
		if ok {
			resumeAfter = cp.LastProcessedBlock
			reports = cp.ReportsWritten
			r.logger.Info("resume from checkpoint",
				zap.Uint64("last_processed", resumeAfter),
				zap.Uint64("reports_written", reports),
			)
		}
	}

	var processed int
	for _, block := range blocks {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if resumeAfter > 0 && block.Number > 0 && block.Number <= resumeAfter {
			continue
		}

		if err := r.processBlock(ctx, block, reports+1); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// A block that fails to compose produces no report. Do not emit
			// partial bundles; move on.
			r.logger.Warn("block skipped", zap.Uint64("block", block.Number), zap.Error(err))
			continue
		}
		reports++
		processed++
	}

	r.logger.Info("pipeline complete", zap.Int("blocks", processed))
	return nil
}

func (r *Runner) processBlock(ctx context.Context, block blockInput, reportsWritten uint64) error {
	meta, err := config.LoadMetadata(block.MetaPath)
	if err != nil {
		return fmt.Errorf("load metadata: %w", err)
	}
	if meta.BlockNumber == 0 {
		meta.BlockNumber = block.Number
	}

	if err := r.fillFromChain(ctx, meta); err != nil {
		return err
	}

	t, err := tree.ReadBlockFile(block.ActionsPath, meta.BlockNumber, meta.BlockHash, r.logger)
	if err != nil {
		return fmt.Errorf("read block actions: %w", err)
	}

	composer := inspect.NewComposer(r.inspectors, r.table, r.logger)
	if err := composer.Start(ctx, t, meta); err != nil {
		return err
	}

	report, bundles, err := composer.Wait(ctx)
	if err != nil {
		composer.Stop()
		return fmt.Errorf("compose block %d: %w", meta.BlockNumber, err)
	}

	if err := r.storage.PutReport(*report); err != nil {
		return fmt.Errorf("store report: %w", err)
	}

	if r.checkpoint != nil && meta.BlockNumber > 0 {
		if err := r.checkpoint.Save(meta.BlockNumber, reportsWritten); err != nil {
			return err
		}
	}

	r.logger.Info("block processed",
		zap.Uint64("block", meta.BlockNumber),
		zap.Uint64("mev_count", report.MevCount),
		zap.Int("bundles", len(bundles)),
	)
	return nil
}

// fillFromChain resolves builder address and block hash from the header when
// the metadata file omits them.
func (r *Runner) fillFromChain(ctx context.Context, meta *model.Metadata) error {
	if r.chain == nil {
		return nil
	}
	zeroHash := meta.BlockHash == (common.Hash{})
	zeroBuilder := meta.BuilderAddress == (common.Address{})
	if !zeroHash && !zeroBuilder {
		return nil
	}

	var header *types.Header
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		header, err = r.chain.HeaderByNumber(ctx, meta.BlockNumber)
		if err != nil {
			r.logger.Warn("header fetch failed", zap.Error(err), zap.Uint64("block", meta.BlockNumber))
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("fetch header %d: %w", meta.BlockNumber, err)
	}

	if zeroHash {
		meta.BlockHash = header.Hash()
	}
	if zeroBuilder {
		meta.BuilderAddress = header.Coinbase
	}
	return nil
}

func (r *Runner) discoverBlocks() ([]blockInput, error) {
	stat, err := os.Stat(r.cfg.Input)
	if err != nil {
		return nil, fmt.Errorf("stat input: %w", err)
	}

	if !stat.IsDir() {
		if r.cfg.MetaPath == "" {
			return nil, fmt.Errorf("meta path is required for single-file input")
		}
		return []blockInput{{ActionsPath: r.cfg.Input, MetaPath: r.cfg.MetaPath}}, nil
	}

	entries, err := os.ReadDir(r.cfg.Input)
	if err != nil {
		return nil, fmt.Errorf("read input dir: %w", err)
	}

	var blocks []blockInput
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".jsonl") || strings.HasSuffix(name, ".meta.json") {
			continue
		}
		stem := strings.TrimSuffix(name, ".jsonl")
		number, err := strconv.ParseUint(stem, 10, 64)
		if err != nil {
			r.logger.Warn("skip non-numeric block file", zap.String("file", name))
			continue
		}
		blocks = append(blocks, blockInput{
			Number:      number,
			ActionsPath: filepath.Join(r.cfg.Input, name),
			MetaPath:    filepath.Join(r.cfg.Input, stem+".meta.json"),
		})
	}

	sort.Slice(blocks, func(i, j int) bool { return blocks[i].Number < blocks[j].Number })
	return blocks, nil
}
