package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/atmx/paper-ledger/internal/metrics"
	"github.com/atmx/paper-ledger/internal/model"
	"github.com/atmx/paper-ledger/internal/quote"
	"github.com/atmx/paper-ledger/internal/store"
)

// DefaultDustWarnThreshold is the residual cost basis (USD) above which a
// close is logged as a warning.
var DefaultDustWarnThreshold = decimal.NewFromFloat(0.01)

// Config holds the engine's tunables. Zero values take defaults.
type Config struct {
	// CloseEpsilon is the quantity at or below which a position is closed.
	CloseEpsilon decimal.Decimal

	// DustWarnThreshold: closing a position that discards more than this
	// much residual cost basis (USD, absolute) is logged as a warning.
	// nil means DefaultDustWarnThreshold; zero warns on any residual.
	DustWarnThreshold *decimal.Decimal

	// QuoteConcurrency bounds parallel best-bid lookups. Default 8.
	QuoteConcurrency int

	Logger *slog.Logger
	Now    func() time.Time
}

// Engine owns the persisted ledger. Every mutation is one load → mutate →
// save cycle held under a single-writer lock, so concurrent callers in this
// process cannot lose each other's updates.
//
// Store failures never reach the caller: an unreadable document is replaced
// by a fresh ledger and a failed save is logged and dropped.
type Engine struct {
	store  store.Store
	quotes quote.Source
	opts   Options

	dustThreshold decimal.Decimal
	concurrency   int
	logger        *slog.Logger
	now           func() time.Time

	mu sync.Mutex
}

// NewEngine creates an engine persisting to st and marking positions with
// quotes from src. src may be nil, in which case every position is marked
// at its average entry price.
func NewEngine(st store.Store, src quote.Source, cfg Config) *Engine {
	e := &Engine{
		store:         st,
		quotes:        src,
		opts:          Options{CloseEpsilon: cfg.CloseEpsilon},
		dustThreshold: DefaultDustWarnThreshold,
		concurrency:   cfg.QuoteConcurrency,
		logger:        cfg.Logger,
		now:           cfg.Now,
	}
	if cfg.DustWarnThreshold != nil {
		e.dustThreshold = cfg.DustWarnThreshold.Abs()
	}
	if e.concurrency <= 0 {
		e.concurrency = 8
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// Snapshot returns the current ledger document.
func (e *Engine) Snapshot(ctx context.Context) *model.Ledger {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.load(ctx)
}

// RecordTrade applies one trade and persists the ledger.
func (e *Engine) RecordTrade(ctx context.Context, t model.Trade) (model.Fill, error) {
	fills, err := e.RecordTrades(ctx, []model.Trade{t})
	if err != nil {
		return model.Fill{}, err
	}
	return fills[0], nil
}

// RecordTrades applies trades in order within a single load/save. Every
// trade is validated first; if any is invalid nothing is recorded.
func (e *Engine) RecordTrades(ctx context.Context, trades []model.Trade) ([]model.Fill, error) {
	if len(trades) == 0 {
		return []model.Fill{}, nil
	}
	for i, t := range trades {
		if err := Validate(t); err != nil {
			return nil, fmt.Errorf("trade %d: %w", i, err)
		}
	}

	start := time.Now()

	e.mu.Lock()
	defer e.mu.Unlock()

	l := e.load(ctx)

	fills := make([]model.Fill, 0, len(trades))
	for _, t := range trades {
		fill, err := Apply(l, t, e.opts)
		if err != nil {
			// Validated above; the in-memory document is discarded.
			return nil, err
		}
		fills = append(fills, fill)
		e.observeFill(t, fill)
	}

	e.save(ctx, l)

	metrics.OpenPositions.Set(float64(len(l.Positions)))
	metrics.RealizedPnL.Set(l.RealizedPnL.InexactFloat64())
	for _, t := range trades {
		metrics.RecordLatency.WithLabelValues(string(t.Side)).Observe(time.Since(start).Seconds())
	}
	return fills, nil
}

// Stats loads the ledger, marks every open position to market and returns
// the derived statistics. Nothing is written.
func (e *Engine) Stats(ctx context.Context) model.Stats {
	r := e.Report(ctx)
	return r.Stats
}

// Report is a statistics snapshot together with its rendered text.
type Report struct {
	Stats     model.Stats      `json:"stats"`
	Positions []model.Position `json:"positions"`
	Marks     []model.Mark     `json:"marks"`
	Text      string           `json:"text"`
}

// Report computes statistics and renders the text report from one load.
func (e *Engine) Report(ctx context.Context) Report {
	e.mu.Lock()
	l := e.load(ctx)
	e.mu.Unlock()

	positions := sortedPositions(l)
	marks := e.resolveMarks(ctx, positions)
	stats := ComputeStats(l, marks, e.now())

	return Report{
		Stats:     stats,
		Positions: positions,
		Marks:     marks,
		Text:      RenderReport(stats, positions),
	}
}

// Reset discards all history and positions and starts a new ledger now.
func (e *Engine) Reset(ctx context.Context) *model.Ledger {
	e.mu.Lock()
	defer e.mu.Unlock()

	l := model.NewLedger(e.now())
	e.save(ctx, l)

	metrics.OpenPositions.Set(0)
	metrics.RealizedPnL.Set(0)
	e.logger.Info("paper ledger reset", "start_time", l.Started().UTC())
	return l.Clone()
}

// Rebuild recomputes positions and PnL by replaying the stored trade
// history, keeping the ledger's start time.
func (e *Engine) Rebuild(ctx context.Context) (*model.Ledger, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	current := e.load(ctx)
	rebuilt, err := Replay(current.Started(), current.Trades, e.opts)
	if err != nil {
		return nil, err
	}
	e.save(ctx, rebuilt)

	metrics.OpenPositions.Set(float64(len(rebuilt.Positions)))
	metrics.RealizedPnL.Set(rebuilt.RealizedPnL.InexactFloat64())
	e.logger.Info("paper ledger rebuilt",
		"trades", len(rebuilt.Trades),
		"positions", len(rebuilt.Positions),
		"realized_pnl", rebuilt.RealizedPnL.String(),
	)
	return rebuilt.Clone(), nil
}

// --- internals ---

// load never fails: a missing or unreadable document yields a fresh ledger.
func (e *Engine) load(ctx context.Context) *model.Ledger {
	l, err := e.store.Load(ctx)
	switch {
	case err == nil:
		l.Normalize()
		return l
	case errors.Is(err, store.ErrNotFound):
		e.logger.Debug("no stored ledger, starting fresh")
	default:
		metrics.StoreLoadFailures.Inc()
		e.logger.Warn("ledger load failed, starting fresh", "err", err)
	}
	return model.NewLedger(e.now())
}

// save is best effort: failures are logged and counted, never returned.
func (e *Engine) save(ctx context.Context, l *model.Ledger) {
	if err := e.store.Save(ctx, l); err != nil {
		metrics.StoreSaveFailures.Inc()
		e.logger.Error("ledger save failed", "err", err)
	}
}

func (e *Engine) observeFill(t model.Trade, fill model.Fill) {
	metrics.TradesRecorded.WithLabelValues(string(t.Side)).Inc()

	if fill.Unmatched {
		metrics.UnmatchedSells.Inc()
		e.logger.Info("sell without open position",
			"key", fill.Key,
			"market", t.Market,
			"qty", t.TokenAmount.String(),
		)
		return
	}

	if fill.Closed && fill.Residual.Abs().GreaterThan(e.dustThreshold) {
		e.logger.Warn("closed position discarded residual cost basis",
			"key", fill.Key,
			"residual", fill.Residual.String(),
		)
	}

	e.logger.Info("paper trade recorded",
		"key", fill.Key,
		"side", string(t.Side),
		"market", t.Market,
		"outcome", t.Outcome,
		"qty", t.TokenAmount.String(),
		"usdc", t.USDCAmount.String(),
		"price", t.Price.String(),
		"realized_pnl", fill.RealizedPnL.String(),
		"closed", fill.Closed,
	)
}

// resolveMarks looks up a best bid for every position concurrently. A failed
// lookup only affects its own position, which is marked at its average
// entry price.
func (e *Engine) resolveMarks(ctx context.Context, positions []model.Position) []model.Mark {
	marks := make([]model.Mark, len(positions))

	var g errgroup.Group
	g.SetLimit(e.concurrency)

	for i, p := range positions {
		g.Go(func() error {
			marks[i] = e.mark(ctx, p)
			return nil
		})
	}
	_ = g.Wait()

	return marks
}

func (e *Engine) mark(ctx context.Context, p model.Position) model.Mark {
	fallback := model.Mark{Position: p, Price: p.AvgEntryPrice, Fallback: true}
	if e.quotes == nil {
		metrics.QuoteLookups.WithLabelValues("fallback").Inc()
		return fallback
	}

	price, err := e.quotes.BestBid(ctx, p.Asset)
	if err != nil {
		metrics.QuoteLookups.WithLabelValues("fallback").Inc()
		e.logger.Warn("quote unavailable, marking at entry price",
			"asset", p.Asset,
			"market", p.Market,
			"err", err,
		)
		return fallback
	}

	metrics.QuoteLookups.WithLabelValues("ok").Inc()
	return model.Mark{Position: p, Price: price}
}

func sortedPositions(l *model.Ledger) []model.Position {
	positions := make([]model.Position, 0, len(l.Positions))
	for _, p := range l.Positions {
		positions = append(positions, p)
	}
	sort.Slice(positions, func(i, j int) bool {
		return positions[i].Key() < positions[j].Key()
	})
	return positions
}
