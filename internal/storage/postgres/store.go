package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mevscope/internal/model"
)

// Store provides Postgres persistence for block reports and bundles.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// UpsertReport inserts or updates a block report together with its bundles.
func (s *Store) UpsertReport(ctx context.Context, report model.BlockReport) error {
	batch := &pgx.Batch{}
	batch.Queue(`
		INSERT INTO block_reports (
			block_number, block_hash, mev_count, eth_price_usd,
			cumulative_gas_used, cumulative_gas_paid, total_bribe,
			cumulative_mev_priority_fee_paid, builder_address,
			builder_eth_profit, builder_profit_usd,
			proposer_fee_recipient, proposer_mev_reward, proposer_profit_usd,
			cumulative_mev_profit_usd, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,now(),now())
		ON CONFLICT (block_number)
		DO UPDATE SET
			block_hash = EXCLUDED.block_hash,
			mev_count = EXCLUDED.mev_count,
			eth_price_usd = EXCLUDED.eth_price_usd,
			cumulative_gas_used = EXCLUDED.cumulative_gas_used,
			cumulative_gas_paid = EXCLUDED.cumulative_gas_paid,
			total_bribe = EXCLUDED.total_bribe,
			cumulative_mev_priority_fee_paid = EXCLUDED.cumulative_mev_priority_fee_paid,
			builder_address = EXCLUDED.builder_address,
			builder_eth_profit = EXCLUDED.builder_eth_profit,
			builder_profit_usd = EXCLUDED.builder_profit_usd,
			proposer_fee_recipient = EXCLUDED.proposer_fee_recipient,
			proposer_mev_reward = EXCLUDED.proposer_mev_reward,
			proposer_profit_usd = EXCLUDED.proposer_profit_usd,
			cumulative_mev_profit_usd = EXCLUDED.cumulative_mev_profit_usd,
			updated_at = now()
	`,
		int64(report.BlockNumber),
		report.BlockHash.Hex(),
		int64(report.MevCount),
		report.EthPriceUSD,
		int64(report.CumulativeGasUsed),
		numericString(report.CumulativeGasPaid),
		numericString(report.TotalBribe),
		numericString(report.CumulativeMevPriorityFeePaid),
		report.BuilderAddress.Hex(),
		numericString(report.BuilderEthProfit),
		report.BuilderProfitUSD,
		report.ProposerFeeRecipient.Hex(),
		numericString(report.ProposerMevReward),
		report.ProposerProfitUSD,
		report.CumulativeMevProfitUSD,
	)

	batch.Queue(`DELETE FROM mev_bundles WHERE block_number = $1`, int64(report.BlockNumber))

	for _, bundle := range report.Bundles {
		payload, err := json.Marshal(bundle)
		if err != nil {
			return fmt.Errorf("marshal bundle: %w", err)
		}
		hashes := bundle.TxHashes()
		txHashes := make([]string, 0, len(hashes))
		for _, h := range hashes {
			txHashes = append(txHashes, h.Hex())
		}
		batch.Queue(`
			INSERT INTO mev_bundles (
				block_number, mev_type, tx_hashes, eoa, mev_contract,
				profit_usd, gas_paid, priority_fee_paid, bribe, payload, created_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,now())
		`,
			int64(report.BlockNumber),
			bundle.Header.MevType.String(),
			txHashes,
			bundle.Header.EOA.Hex(),
			bundle.Header.MevContract.Hex(),
			bundle.Header.ProfitUSD,
			numericString(bundle.Header.GasPaid),
			numericString(bundle.Header.PriorityFeePaid),
			numericString(bundle.Header.Bribe),
			payload,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

func numericString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
