// Package ledger implements the paper-trading accounting engine.
//
// Positions use the weighted-average-cost method: buys re-average the entry
// price, sells realize PnL against the current average and leave it
// unchanged. The pure transforms in this file mutate a *model.Ledger in
// place; Engine wraps them in the load → mutate → save cycle.
package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atmx/paper-ledger/internal/model"
)

var (
	// ErrInvalidSide is returned for trades whose side is not BUY or SELL.
	ErrInvalidSide = errors.New("ledger: side must be BUY or SELL")

	// ErrInvalidTrade is returned for trades that cannot be applied, such as
	// a non-positive token amount.
	ErrInvalidTrade = errors.New("ledger: invalid trade")

	// DefaultCloseEpsilon is the quantity at or below which a position is
	// treated as fully closed.
	DefaultCloseEpsilon = decimal.NewFromFloat(0.01)
)

// Options tunes how trades are applied.
type Options struct {
	// CloseEpsilon: a position whose quantity falls to or below this after a
	// sell is removed. Zero means DefaultCloseEpsilon.
	CloseEpsilon decimal.Decimal
}

func (o Options) closeEpsilon() decimal.Decimal {
	if o.CloseEpsilon.IsPositive() {
		return o.CloseEpsilon
	}
	return DefaultCloseEpsilon
}

// Validate checks the fields Apply depends on.
func Validate(t model.Trade) error {
	if !t.Side.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidSide, t.Side)
	}
	if !t.TokenAmount.IsPositive() {
		return fmt.Errorf("%w: token amount must be positive, got %s", ErrInvalidTrade, t.TokenAmount)
	}
	if t.USDCAmount.IsNegative() {
		return fmt.Errorf("%w: usdc amount must not be negative, got %s", ErrInvalidTrade, t.USDCAmount)
	}
	return nil
}

// Apply records t in l and updates positions, realized PnL and lifetime
// invested capital. The trade is appended to history whatever its effect
// on positions. On error l is left untouched.
func Apply(l *model.Ledger, t model.Trade, opts Options) (model.Fill, error) {
	if err := Validate(t); err != nil {
		return model.Fill{}, err
	}
	l.Normalize()

	l.Trades = append(l.Trades, t)

	key := t.Key()
	fill := model.Fill{
		Key:         key,
		Side:        t.Side,
		RealizedPnL: decimal.Zero,
		Residual:    decimal.Zero,
	}

	if t.Side == model.SideBuy {
		pos, ok := l.Positions[key]
		// A stored position without a positive quantity cannot be averaged
		// into and is replaced.
		if ok && pos.TokenAmount.IsPositive() {
			// Average in new tokens.
			pos.TokenAmount = pos.TokenAmount.Add(t.TokenAmount)
			pos.TotalInvested = pos.TotalInvested.Add(t.USDCAmount)
			pos.AvgEntryPrice = pos.TotalInvested.Div(pos.TokenAmount)
		} else {
			pos = model.Position{
				Market:        t.Market,
				Outcome:       t.Outcome,
				ConditionID:   t.ConditionID,
				Asset:         t.Asset,
				TokenAmount:   t.TokenAmount,
				AvgEntryPrice: t.Price,
				TotalInvested: t.USDCAmount,
			}
		}
		l.Positions[key] = pos
		l.TotalInvested = l.TotalInvested.Add(t.USDCAmount)
		fill.Position = &pos
		return fill, nil
	}

	pos, ok := l.Positions[key]
	if !ok {
		// Selling against an externally held or already closed position.
		fill.Unmatched = true
		return fill, nil
	}

	costBasis := pos.AvgEntryPrice.Mul(t.TokenAmount)
	realized := t.USDCAmount.Sub(costBasis)

	l.RealizedPnL = l.RealizedPnL.Add(realized)
	pos.TokenAmount = pos.TokenAmount.Sub(t.TokenAmount)
	pos.TotalInvested = pos.TotalInvested.Sub(costBasis)
	fill.RealizedPnL = realized

	if pos.TokenAmount.LessThanOrEqual(opts.closeEpsilon()) {
		delete(l.Positions, key)
		fill.Closed = true
		fill.Residual = pos.TotalInvested
		return fill, nil
	}

	l.Positions[key] = pos
	fill.Position = &pos
	return fill, nil
}

// Replay folds trades into a fresh ledger started at start. It is the
// event-log view of the ledger: positions and PnL are fully determined by
// the trade history.
func Replay(start time.Time, trades []model.Trade, opts Options) (*model.Ledger, error) {
	l := model.NewLedger(start)
	for i, t := range trades {
		if _, err := Apply(l, t, opts); err != nil {
			return nil, fmt.Errorf("replay trade %d: %w", i, err)
		}
	}
	return l, nil
}
