package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "inspector",
		Short:        "Block MEV inspector",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the MEV detection pipeline over block action files",
		RunE:  runPipeline,
	}

	runCmd.Flags().String("rpc", "", "Ethereum RPC URL (optional, fills missing block metadata)")
	runCmd.Flags().String("in", "", "block actions JSONL file, or directory of <number>.jsonl files")
	runCmd.Flags().String("meta", "", "block metadata JSON (single-file mode)")
	runCmd.Flags().String("out", "./data/reports.jsonl", "output reports JSONL path")
	runCmd.Flags().String("pg-dsn", "", "optional Postgres DSN for report persistence")
	runCmd.Flags().String("checkpoint", "./data/checkpoint.json", "checkpoint file path")
	runCmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	runCmd.Flags().Int("max-retries", 5, "maximum retry attempts for chain lookups")
	runCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	runCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(runCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
