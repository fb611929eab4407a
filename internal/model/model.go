// Package model defines the core domain types of the paper-trading ledger.
// Money is shopspring/decimal throughout, never float64.
//
// The JSON shape of Ledger is the persisted document: field names and
// layout are the on-disk format and must not change.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// The persisted document stores amounts as JSON numbers, not strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// Side is the direction of a trade.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Valid reports whether s is BUY or SELL.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// Trade is an immutable record of an executed (simulated) trade.
// Invariant assumed by callers: Price ≈ USDCAmount / TokenAmount.
type Trade struct {
	Timestamp     int64           `json:"timestamp"` // epoch milliseconds
	Side          Side            `json:"side"`
	Market        string          `json:"market"`
	Outcome       string          `json:"outcome"`
	USDCAmount    decimal.Decimal `json:"usdcAmount"`  // USD notional exchanged
	TokenAmount   decimal.Decimal `json:"tokenAmount"` // instrument units
	Price         decimal.Decimal `json:"price"`
	TraderAddress string          `json:"traderAddress"`
	ConditionID   string          `json:"conditionId"`
	Asset         string          `json:"asset"` // instrument (token) identifier
}

// Key returns the position key this trade applies to.
func (t Trade) Key() string {
	return PositionKey(t.ConditionID, t.Asset)
}

// Time returns the trade timestamp as a time.Time.
func (t Trade) Time() time.Time {
	return time.UnixMilli(t.Timestamp)
}

// Position is the net open holding in one outcome instrument of one market.
// Invariant: AvgEntryPrice == TotalInvested / TokenAmount while TokenAmount > 0.
type Position struct {
	Market        string          `json:"market"`
	Outcome       string          `json:"outcome"`
	ConditionID   string          `json:"conditionId"`
	Asset         string          `json:"asset"`
	TokenAmount   decimal.Decimal `json:"tokenAmount"`
	AvgEntryPrice decimal.Decimal `json:"avgEntryPrice"`
	TotalInvested decimal.Decimal `json:"totalInvested"` // cost basis of the open quantity
}

// Key returns the composite key of the position.
func (p Position) Key() string {
	return PositionKey(p.ConditionID, p.Asset)
}

// PositionKey builds the "<conditionId>:<asset>" key positions are stored under.
func PositionKey(conditionID, asset string) string {
	return conditionID + ":" + asset
}

// Ledger is the whole persisted paper-trading state.
type Ledger struct {
	// StartTime is set once on first initialization (or reset), epoch ms.
	StartTime int64               `json:"startTime"`
	Trades    []Trade             `json:"trades"`
	Positions map[string]Position `json:"positions"`
	// RealizedPnL accumulates over every partial and full close.
	RealizedPnL decimal.Decimal `json:"realizedPnL"`
	// TotalInvested is a lifetime counter of USD spent on BUY trades, including
	// averaging into existing positions. It never decreases, so it is not the
	// capital currently at risk.
	TotalInvested decimal.Decimal `json:"totalInvested"`
}

// NewLedger returns a zero-state ledger started at now.
func NewLedger(now time.Time) *Ledger {
	return &Ledger{
		StartTime:     now.UnixMilli(),
		Trades:        []Trade{},
		Positions:     make(map[string]Position),
		RealizedPnL:   decimal.Zero,
		TotalInvested: decimal.Zero,
	}
}

// Started returns StartTime as a time.Time.
func (l *Ledger) Started() time.Time {
	return time.UnixMilli(l.StartTime)
}

// Normalize replaces nil collections left by a sparse document with empty ones.
func (l *Ledger) Normalize() {
	if l.Trades == nil {
		l.Trades = []Trade{}
	}
	if l.Positions == nil {
		l.Positions = make(map[string]Position)
	}
}

// Clone returns a deep copy of the ledger.
func (l *Ledger) Clone() *Ledger {
	c := *l
	c.Trades = append([]Trade(nil), l.Trades...)
	if c.Trades == nil {
		c.Trades = []Trade{}
	}
	c.Positions = make(map[string]Position, len(l.Positions))
	for k, p := range l.Positions {
		c.Positions[k] = p
	}
	return &c
}

// Fill describes the effect a single recorded trade had on the ledger.
type Fill struct {
	Key         string          `json:"key"`
	Side        Side            `json:"side"`
	RealizedPnL decimal.Decimal `json:"realized_pnl"` // delta from this trade (SELL only)
	Closed      bool            `json:"closed"`       // position removed by this trade
	Unmatched   bool            `json:"unmatched"`    // SELL with no open position
	Residual    decimal.Decimal `json:"residual"`     // cost basis discarded on close
	Position    *Position       `json:"position,omitempty"`
}

// Stats is a point-in-time snapshot of ledger performance.
type Stats struct {
	TotalTrades   int             `json:"totalTrades"`
	BuyTrades     int             `json:"buyTrades"`
	SellTrades    int             `json:"sellTrades"`
	TotalInvested decimal.Decimal `json:"totalInvested"`
	CurrentValue  decimal.Decimal `json:"currentValue"`
	RealizedPnL   decimal.Decimal `json:"realizedPnL"`
	UnrealizedPnL decimal.Decimal `json:"unrealizedPnL"`
	TotalPnL      decimal.Decimal `json:"totalPnL"`
	ROI           decimal.Decimal `json:"roi"` // percent
	OpenPositions int             `json:"openPositions"`
	RunningTime   string          `json:"runningTime"`
	Elapsed       time.Duration   `json:"-"`
}

// Mark is the resolved current price of one open position.
type Mark struct {
	Position Position        `json:"position"`
	Price    decimal.Decimal `json:"price"`
	Fallback bool            `json:"fallback"` // quote unavailable, entry price used
}
