package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atmx/paper-ledger/internal/model"
)

var hundred = decimal.NewFromInt(100)

// ComputeStats derives a statistics snapshot from the ledger and the
// resolved marks of its open positions.
func ComputeStats(l *model.Ledger, marks []model.Mark, now time.Time) model.Stats {
	currentValue := decimal.Zero
	unrealized := decimal.Zero

	for _, m := range marks {
		value := m.Position.TokenAmount.Mul(m.Price)
		currentValue = currentValue.Add(value)
		unrealized = unrealized.Add(value.Sub(m.Position.TotalInvested))
	}

	totalPnL := l.RealizedPnL.Add(unrealized)

	// ROI is measured against lifetime invested capital.
	roi := decimal.Zero
	if l.TotalInvested.IsPositive() {
		roi = totalPnL.Div(l.TotalInvested).Mul(hundred)
	}

	var buys, sells int
	for _, t := range l.Trades {
		switch t.Side {
		case model.SideBuy:
			buys++
		case model.SideSell:
			sells++
		}
	}

	elapsed := now.Sub(l.Started())
	if elapsed < 0 {
		elapsed = 0
	}

	return model.Stats{
		TotalTrades:   len(l.Trades),
		BuyTrades:     buys,
		SellTrades:    sells,
		TotalInvested: l.TotalInvested,
		CurrentValue:  currentValue,
		RealizedPnL:   l.RealizedPnL,
		UnrealizedPnL: unrealized,
		TotalPnL:      totalPnL,
		ROI:           roi,
		OpenPositions: len(l.Positions),
		RunningTime:   FormatRunningTime(elapsed),
		Elapsed:       elapsed,
	}
}

// FormatRunningTime renders d as "Xh Ym" when at least an hour, else "Ym".
func FormatRunningTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	hours := int64(d / time.Hour)
	minutes := int64((d % time.Hour) / time.Minute)
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}
