package inspect

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"mevscope/internal/model"
	"mevscope/internal/tree"
	"mevscope/internal/valuation"
)

// ComposerState is the lifecycle of a Composer. Finished is terminal and
// entered exactly once.
type ComposerState int

const (
	StateIdle ComposerState = iota
	StateRunning
	StateFinished
)

func (s ComposerState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// blockPreprocessing holds the block-level aggregates computed while the
// inspectors run. Consumed once when the report header is built.
type blockPreprocessing struct {
	meta              *model.Metadata
	cumulativeGasUsed uint64
	cumulativeGasPaid *big.Int
	builderAddress    common.Address
}

func preprocess(t *tree.Tree, meta *model.Metadata) *blockPreprocessing {
	var gasUsed uint64
	gasPaid := new(big.Int)
	for _, root := range t.Roots() {
		if !root.HasInfo {
			continue
		}
		gasUsed += root.Info.GasDetails.GasUsed
		gasPaid.Add(gasPaid, root.Info.GasDetails.GasPaid())
	}
	return &blockPreprocessing{
		meta:              meta,
		cumulativeGasUsed: gasUsed,
		cumulativeGasPaid: gasPaid,
		builderAddress:    meta.BuilderAddress,
	}
}

// Composer runs all registered inspectors concurrently over one block, then
// resolves overlapping detections through the dependency table and builds
// the block report. Single-shot: one Start per instance.
type Composer struct {
	inspectors []Inspector
	table      DependencyTable
	logger     *zap.Logger

	mu      sync.Mutex
	state   ComposerState
	cancel  context.CancelFunc
	pre     *blockPreprocessing
	report  *model.BlockReport
	bundles []model.Bundle
	err     error

	done chan struct{}
}

// NewComposer builds a Composer over the given inspectors and table.
func NewComposer(inspectors []Inspector, table DependencyTable, logger *zap.Logger) *Composer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Composer{
		inspectors: inspectors,
		table:      table,
		logger:     logger,
		done:       make(chan struct{}),
	}
}

// State returns the current lifecycle state.
func (c *Composer) State() ComposerState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsProcessing reports whether inspectors are in flight.
func (c *Composer) IsProcessing() bool { return c.State() == StateRunning }

// IsFinished reports whether composition has completed.
func (c *Composer) IsFinished() bool { return c.State() == StateFinished }

// Start transitions Idle to Running: it computes the block pre-processing
// aggregates synchronously and spawns one goroutine per inspector, each
// holding shared read-only references to the tree and metadata.
func (c *Composer) Start(ctx context.Context, t *tree.Tree, meta *model.Metadata) error {
	c.mu.Lock()
	if c.state != StateIdle {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("composer already started: state %s", state)
	}
	c.state = StateRunning
	c.pre = preprocess(t, meta)

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()

	c.logger.Debug("composer start",
		zap.Uint64("block", meta.BlockNumber),
		zap.Int("inspectors", len(c.inspectors)),
	)

	go c.run(runCtx, t, meta)
	return nil
}

func (c *Composer) run(ctx context.Context, t *tree.Tree, meta *model.Metadata) {
	results := make([][]model.Bundle, len(c.inspectors))

	var wg sync.WaitGroup
	for i, inspector := range c.inspectors {
		wg.Add(1)
		go func(i int, inspector Inspector) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					// A failing inspector drops only its own contribution.
					c.logger.Error("inspector panicked",
						zap.String("inspector", inspector.Name()),
						zap.Any("panic", r),
					)
				}
			}()

			bundles, err := inspector.Inspect(ctx, t, meta)
			if err != nil {
				c.logger.Warn("inspector failed",
					zap.String("inspector", inspector.Name()),
					zap.Error(err),
				)
				return
			}
			results[i] = bundles
		}(i, inspector)
	}
	wg.Wait()

	c.finish(ctx, results)
}

func (c *Composer) finish(ctx context.Context, results [][]model.Bundle) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = StateFinished
	defer close(c.done)

	if err := ctx.Err(); err != nil {
		// A cancelled block never emits a partial report.
		c.err = err
		c.pre = nil
		return
	}

	var raw []model.Bundle
	for _, bundles := range results {
		raw = append(raw, bundles...)
	}

	pre := c.pre
	c.pre = nil
	c.report, c.bundles = c.resolve(pre, raw)
}

// Wait blocks until composition finishes and returns the block report with
// the final deduplicated bundles.
func (c *Composer) Wait(ctx context.Context) (*model.BlockReport, []model.Bundle, error) {
	select {
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	case <-c.done:
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, nil, c.err
	}
	return c.report, c.bundles, nil
}

// Stop cancels in-flight inspectors and joins them before returning. Safe to
// call at any state.
func (c *Composer) Stop() {
	c.mu.Lock()
	if c.state != StateRunning {
		c.mu.Unlock()
		return
	}
	cancel := c.cancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	<-c.done
}

// resolve groups raw bundles by type and walks the dependency table in
// declared order, merging and subsuming overlapping detections, then builds
// the report header from the pre-processing aggregates.
func (c *Composer) resolve(pre *blockPreprocessing, raw []model.Bundle) (*model.BlockReport, []model.Bundle) {
	sorted := make(map[model.MevType][]model.Bundle, len(raw))
	for _, bundle := range raw {
		sorted[bundle.Header.MevType] = append(sorted[bundle.Header.MevType], bundle)
	}

	for _, entry := range c.table {
		if entry.Compose != nil {
			c.composeDepFilter(entry, sorted)
		} else {
			c.subsumeDepFilter(entry, sorted)
		}
	}

	final := make([]model.Bundle, 0, len(raw))
	for _, mevType := range model.AllMevTypes {
		final = append(final, sorted[mevType]...)
	}

	report := c.buildReport(pre, final)
	return report, final
}

// composeDepFilter merges pairs of dependency bundles sharing transactions
// into one bundle of the entry's head type. Unmatched first-dependency
// bundles remain reported standalone.
func (c *Composer) composeDepFilter(entry DependencyEntry, sorted map[model.MevType][]model.Bundle) {
	zero := sorted[entry.Deps[0]]
	if len(zero) == 0 {
		return
	}
	delete(sorted, entry.Deps[0])

	for _, head := range zero {
		hashes := head.TxHashes()

		matchIdx := -1
		for i, dep := range sorted[entry.Deps[1]] {
			depHashes := dep.TxHashes()
			if model.HashesEqual(depHashes, hashes) || model.HashesIntersect(depHashes, hashes) {
				matchIdx = i
				break
			}
		}

		if matchIdx < 0 {
			sorted[entry.Deps[0]] = append(sorted[entry.Deps[0]], head)
			continue
		}

		group := sorted[entry.Deps[1]]
		dep := group[matchIdx]
		sorted[entry.Deps[1]] = append(group[:matchIdx], group[matchIdx+1:]...)

		merged, ok := entry.Compose(head, dep)
		if !ok {
			c.logger.Warn("compose rejected payload pair",
				zap.String("head", entry.Head.String()),
				zap.String("first", head.Header.MevType.String()),
				zap.String("second", dep.Header.MevType.String()),
			)
			sorted[entry.Deps[0]] = append(sorted[entry.Deps[0]], head)
			sorted[entry.Deps[1]] = insertBundle(sorted[entry.Deps[1]], matchIdx, dep)
			continue
		}
		sorted[entry.Head] = append(sorted[entry.Head], merged)
	}
}

// subsumeDepFilter removes dependency bundles whose transaction sets equal
// or overlap a head bundle's set. Matches are first marked by original index,
// then each group is rebuilt without the marked entries, so the discovery
// order across heads never invalidates an index. A dependency bundle is
// removed at most once even when several heads overlap it.
func (c *Composer) subsumeDepFilter(entry DependencyEntry, sorted map[model.MevType][]model.Bundle) {
	heads := sorted[entry.Head]
	if len(heads) == 0 {
		return
	}

	marked := make(map[model.MevType]map[int]bool)

	for _, head := range heads {
		hashes := head.TxHashes()
		for _, dep := range entry.Deps {
			for i, depBundle := range sorted[dep] {
				if marked[dep][i] {
					continue
				}
				depHashes := depBundle.TxHashes()
				if model.HashesEqual(depHashes, hashes) || model.HashesIntersect(depHashes, hashes) {
					if marked[dep] == nil {
						marked[dep] = make(map[int]bool)
					}
					marked[dep][i] = true
				}
			}
		}
	}

	for dep, removed := range marked {
		group := sorted[dep]
		kept := make([]model.Bundle, 0, len(group)-len(removed))
		for i, bundle := range group {
			if !removed[i] {
				kept = append(kept, bundle)
			}
		}
		sorted[dep] = kept
	}
}

func insertBundle(group []model.Bundle, index int, bundle model.Bundle) []model.Bundle {
	group = append(group, model.Bundle{})
	copy(group[index+1:], group[index:])
	group[index] = bundle
	return group
}

func (c *Composer) buildReport(pre *blockPreprocessing, final []model.Bundle) *model.BlockReport {
	totalBribe := new(big.Int)
	cumPriorityFee := new(big.Int)
	for _, bundle := range final {
		if bundle.Header.Bribe != nil {
			totalBribe.Add(totalBribe, bundle.Header.Bribe)
		}
		if bundle.Header.PriorityFeePaid != nil {
			cumPriorityFee.Add(cumPriorityFee, bundle.Header.PriorityFeePaid)
		}
	}

	builderEthProfit := new(big.Int).Add(totalBribe, pre.cumulativeGasPaid)
	meta := pre.meta

	// Rounding to float happens only here; accumulation stays exact.
	return &model.BlockReport{
		BlockHash:                    meta.BlockHash,
		BlockNumber:                  meta.BlockNumber,
		MevCount:                     uint64(len(final)),
		EthPriceUSD:                  valuation.RatToFloat(meta.EthPriceUSD),
		CumulativeGasUsed:            pre.cumulativeGasUsed,
		CumulativeGasPaid:            pre.cumulativeGasPaid,
		TotalBribe:                   totalBribe,
		CumulativeMevPriorityFeePaid: cumPriorityFee,
		BuilderAddress:               pre.builderAddress,
		BuilderEthProfit:             builderEthProfit,
		BuilderProfitUSD:             valuation.RatToFloat(valuation.WeiToUSD(builderEthProfit, meta.EthPriceUSD)),
		ProposerFeeRecipient:         meta.ProposerFeeRecipient,
		ProposerMevReward:            meta.ProposerMevReward,
		ProposerProfitUSD:            valuation.RatToFloat(valuation.WeiToUSD(meta.ProposerMevReward, meta.EthPriceUSD)),
		CumulativeMevProfitUSD:       valuation.RatToFloat(valuation.WeiToUSD(cumPriorityFee, meta.EthPriceUSD)),
		Bundles:                      final,
	}
}
