package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mevscope/internal/chain"
	"mevscope/internal/config"
	"mevscope/internal/inspect"
	"mevscope/internal/model"
	"mevscope/internal/pipeline"
	"mevscope/internal/storage"
	"mevscope/internal/storage/postgres"
	"mevscope/internal/valuation"
)

func runPipeline(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Input == "" {
		return fmt.Errorf("input path is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var chainClient *chain.Client
	if cfg.RPCURL != "" {
		chainClient, err = chain.NewClient(ctx, cfg.RPCURL)
		if err != nil {
			return fmt.Errorf("connect rpc: %w", err)
		}
		defer chainClient.Close()

		chainID, err := chainClient.GetChainID(ctx)
		if err != nil {
			return fmt.Errorf("get chain id: %w", err)
		}
		logger.Info("connected", zap.String("chain_id", chainID.String()))
	}

	sink := &reportSink{jsonl: storage.NewJsonlStorage(cfg.Out), ctx: ctx}
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		sink.pg = store
	}

	registry := valuation.NewTokenRegistry(chainClient)
	valuer := valuation.NewValuer(registry, logger)

	inspectors := []inspect.Inspector{
		inspect.NewArbInspector(valuer, logger),
		inspect.NewSandwichInspector(valuer, logger),
		inspect.NewJitInspector(valuer, logger),
	}

	runner := pipeline.NewRunner(pipeline.RunConfig{
		Input:             cfg.Input,
		MetaPath:          cfg.MetaPath,
		CheckpointPath:    cfg.Checkpoint,
		CheckpointEnabled: cfg.CheckpointEnabled,
		MaxRetries:        cfg.MaxRetries,
		RetryBackoff:      cfg.RetryBackoff,
	}, inspectors, inspect.DefaultDependencyTable(), chainClient, sink, logger)

	logger.Info("inspector start",
		zap.String("in", cfg.Input),
		zap.String("out", cfg.Out),
		zap.Int("inspectors", len(inspectors)),
		zap.Bool("postgres", cfg.PGDSN != ""),
		zap.Bool("checkpoint_enabled", cfg.CheckpointEnabled),
	)

	return runner.Run(ctx)
}

// reportSink fans a report out to the JSONL file and, when configured,
// Postgres.
type reportSink struct {
	ctx   context.Context
	jsonl *storage.JsonlStorage
	pg    *postgres.Store
}

func (s *reportSink) PutReport(report model.BlockReport) error {
	if err := s.jsonl.PutReport(report); err != nil {
		return err
	}
	if s.pg != nil {
		if err := s.pg.UpsertReport(s.ctx, report); err != nil {
			return err
		}
	}
	return nil
}
