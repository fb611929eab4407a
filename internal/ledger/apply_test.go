package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atmx/paper-ledger/internal/model"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func buy(cond, asset string, tokens, usdc float64) model.Trade {
	return model.Trade{
		Timestamp:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli(),
		Side:        model.SideBuy,
		Market:      "Will it rain in " + cond + "?",
		Outcome:     "Yes",
		USDCAmount:  d(usdc),
		TokenAmount: d(tokens),
		Price:       d(usdc).Div(d(tokens)),
		ConditionID: cond,
		Asset:       asset,
	}
}

func sell(cond, asset string, tokens, usdc float64) model.Trade {
	t := buy(cond, asset, tokens, usdc)
	t.Side = model.SideSell
	return t
}

func fresh() *model.Ledger {
	return model.NewLedger(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
}

func mustApply(t *testing.T, l *model.Ledger, tr model.Trade) model.Fill {
	t.Helper()
	fill, err := Apply(l, tr, Options{})
	require.NoError(t, err)
	return fill
}

func TestApply_BuyCreatesPosition(t *testing.T) {
	l := fresh()
	fill := mustApply(t, l, buy("c1", "a1", 100, 40))

	require.Len(t, l.Positions, 1)
	pos := l.Positions["c1:a1"]
	assert.True(t, pos.TokenAmount.Equal(d(100)))
	assert.True(t, pos.TotalInvested.Equal(d(40)))
	assert.True(t, pos.AvgEntryPrice.Equal(d(0.4)))
	assert.True(t, l.TotalInvested.Equal(d(40)))
	assert.Equal(t, "c1:a1", fill.Key)
	assert.False(t, fill.Closed)
	require.NotNil(t, fill.Position)
}

func TestApply_BuysAverageByVolume(t *testing.T) {
	l := fresh()
	buys := []struct{ tokens, usdc float64 }{
		{100, 40}, {50, 30}, {25, 5}, {10, 9},
	}
	var sumTokens, sumUSDC float64
	for _, b := range buys {
		mustApply(t, l, buy("c1", "a1", b.tokens, b.usdc))
		sumTokens += b.tokens
		sumUSDC += b.usdc
	}

	pos := l.Positions["c1:a1"]
	assert.InDelta(t, sumTokens, pos.TokenAmount.InexactFloat64(), 1e-9)
	assert.InDelta(t, sumUSDC, pos.TotalInvested.InexactFloat64(), 1e-9)
	assert.InDelta(t, sumUSDC/sumTokens, pos.AvgEntryPrice.InexactFloat64(), 1e-9)
	assert.InDelta(t, sumUSDC, l.TotalInvested.InexactFloat64(), 1e-9)
}

func TestApply_ScenarioBuyBuySellAll(t *testing.T) {
	l := fresh()
	mustApply(t, l, buy("c1", "a1", 100, 40))
	mustApply(t, l, buy("c1", "a1", 50, 30))

	pos := l.Positions["c1:a1"]
	assert.True(t, pos.TokenAmount.Equal(d(150)))
	assert.True(t, pos.TotalInvested.Equal(d(70)))
	assert.InDelta(t, 0.4667, pos.AvgEntryPrice.InexactFloat64(), 1e-4)

	fill := mustApply(t, l, sell("c1", "a1", 150, 90))

	assert.True(t, fill.Closed)
	assert.Empty(t, l.Positions)
	assert.InDelta(t, 20, fill.RealizedPnL.InexactFloat64(), 1e-9)
	assert.InDelta(t, 20, l.RealizedPnL.InexactFloat64(), 1e-9)
	assert.InDelta(t, 0, fill.Residual.InexactFloat64(), 1e-9)
	assert.True(t, l.TotalInvested.Equal(d(70)), "lifetime invested must not drop on sell")
	assert.Len(t, l.Trades, 3)
}

func TestApply_PartialSellKeepsAverage(t *testing.T) {
	l := fresh()
	mustApply(t, l, buy("c1", "a1", 100, 40))

	fill := mustApply(t, l, sell("c1", "a1", 30, 15))

	pos := l.Positions["c1:a1"]
	assert.True(t, pos.AvgEntryPrice.Equal(d(0.4)), "avg entry changed to %s", pos.AvgEntryPrice)
	assert.True(t, pos.TokenAmount.Equal(d(70)))
	assert.True(t, pos.TotalInvested.Equal(d(28)))
	assert.True(t, fill.RealizedPnL.Equal(d(3)))
	assert.False(t, fill.Closed)
}

func TestApply_RealizedDeltaIsNotionalMinusCost(t *testing.T) {
	tests := []struct {
		name          string
		tokens, usdc  float64
		sellQty, sell float64
	}{
		{"profit", 200, 80, 50, 30},
		{"loss", 200, 80, 50, 10},
		{"break even", 200, 80, 50, 20},
		{"worthless", 200, 80, 200, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := fresh()
			mustApply(t, l, buy("c1", "a1", tt.tokens, tt.usdc))
			avg := l.Positions["c1:a1"].AvgEntryPrice
			before := l.RealizedPnL

			mustApply(t, l, sell("c1", "a1", tt.sellQty, tt.sell))

			want := d(tt.sell).Sub(avg.Mul(d(tt.sellQty)))
			assert.True(t, l.RealizedPnL.Sub(before).Equal(want),
				"realized delta %s, want %s", l.RealizedPnL.Sub(before), want)
		})
	}
}

func TestApply_SellWithoutPositionIsNoop(t *testing.T) {
	l := fresh()
	fill := mustApply(t, l, sell("c1", "a1", 10, 5))

	assert.True(t, fill.Unmatched)
	assert.Empty(t, l.Positions)
	assert.True(t, l.RealizedPnL.IsZero())
	assert.True(t, l.TotalInvested.IsZero())
	require.Len(t, l.Trades, 1, "unmatched sell is still recorded")
}

func TestApply_CloseWithinEpsilon(t *testing.T) {
	l := fresh()
	mustApply(t, l, buy("c1", "a1", 100, 50))

	fill := mustApply(t, l, sell("c1", "a1", 99.995, 60))

	assert.True(t, fill.Closed)
	assert.Empty(t, l.Positions)
	// 0.005 tokens at 0.5 of cost basis are discarded.
	assert.InDelta(t, 0.0025, fill.Residual.InexactFloat64(), 1e-9)
}

func TestApply_CustomEpsilon(t *testing.T) {
	l := fresh()
	_, err := Apply(l, buy("c1", "a1", 100, 50), Options{CloseEpsilon: d(5)})
	require.NoError(t, err)

	fill, err := Apply(l, sell("c1", "a1", 96, 48), Options{CloseEpsilon: d(5)})
	require.NoError(t, err)
	assert.True(t, fill.Closed)
}

func TestApply_DifferentKeysDoNotInteract(t *testing.T) {
	l := fresh()
	mustApply(t, l, buy("c1", "yes", 100, 40))
	mustApply(t, l, buy("c1", "no", 100, 60))
	mustApply(t, l, buy("c2", "yes", 10, 1))

	mustApply(t, l, sell("c1", "yes", 100, 50))

	require.Len(t, l.Positions, 2)
	assert.True(t, l.Positions["c1:no"].TotalInvested.Equal(d(60)))
	assert.True(t, l.Positions["c2:yes"].TokenAmount.Equal(d(10)))
	assert.True(t, l.RealizedPnL.Equal(d(10)))
}

func TestApply_TotalInvestedNeverDecreases(t *testing.T) {
	l := fresh()
	seq := []model.Trade{
		buy("c1", "a1", 100, 40),
		sell("c1", "a1", 50, 10),
		buy("c2", "a2", 10, 7),
		sell("c9", "a9", 10, 7),
		sell("c1", "a1", 50, 60),
		buy("c1", "a1", 20, 2),
	}
	prev := l.TotalInvested
	for _, tr := range seq {
		mustApply(t, l, tr)
		assert.True(t, l.TotalInvested.GreaterThanOrEqual(prev))
		prev = l.TotalInvested
	}
	assert.True(t, l.TotalInvested.Equal(d(49)))
}

func TestApply_InvalidTradeLeavesLedgerUntouched(t *testing.T) {
	l := fresh()
	mustApply(t, l, buy("c1", "a1", 100, 40))

	bad := buy("c1", "a1", 10, 4)
	bad.Side = "HOLD"
	_, err := Apply(l, bad, Options{})
	assert.ErrorIs(t, err, ErrInvalidSide)

	zero := buy("c1", "a1", 10, 4)
	zero.TokenAmount = decimal.Zero
	_, err = Apply(l, zero, Options{})
	assert.ErrorIs(t, err, ErrInvalidTrade)

	assert.Len(t, l.Trades, 1)
	assert.True(t, l.Positions["c1:a1"].TokenAmount.Equal(d(100)))
}

func TestApply_NormalizesSparseLedger(t *testing.T) {
	l := &model.Ledger{}
	mustApply(t, l, buy("c1", "a1", 1, 1))
	assert.Len(t, l.Positions, 1)
}

func TestReplay_MatchesIncremental(t *testing.T) {
	seq := []model.Trade{
		buy("c1", "a1", 100, 40),
		buy("c1", "a1", 50, 30),
		sell("c1", "a1", 60, 45),
		buy("c2", "a2", 10, 7),
		sell("c3", "a3", 1, 1),
	}
	incremental := fresh()
	for _, tr := range seq {
		mustApply(t, incremental, tr)
	}

	replayed, err := Replay(incremental.Started(), seq, Options{})
	require.NoError(t, err)

	assert.Equal(t, incremental.StartTime, replayed.StartTime)
	assert.Equal(t, len(incremental.Trades), len(replayed.Trades))
	assert.True(t, incremental.RealizedPnL.Equal(replayed.RealizedPnL))
	assert.True(t, incremental.TotalInvested.Equal(replayed.TotalInvested))
	require.Equal(t, len(incremental.Positions), len(replayed.Positions))
	for k, p := range incremental.Positions {
		r := replayed.Positions[k]
		assert.True(t, p.TokenAmount.Equal(r.TokenAmount), k)
		assert.True(t, p.TotalInvested.Equal(r.TotalInvested), k)
	}
}

func TestReplay_RejectsInvalidHistory(t *testing.T) {
	bad := buy("c1", "a1", 1, 1)
	bad.Side = ""
	_, err := Replay(time.Now(), []model.Trade{buy("c1", "a1", 1, 1), bad}, Options{})
	assert.ErrorIs(t, err, ErrInvalidSide)
}

func TestApply_BuyReplacesNonPositivePosition(t *testing.T) {
	for _, qty := range []float64{-5, 0} {
		l := fresh()
		l.Positions["c1:a1"] = model.Position{
			ConditionID:   "c1",
			Asset:         "a1",
			TokenAmount:   d(qty),
			AvgEntryPrice: d(0.5),
			TotalInvested: d(-2.5),
		}

		require.NotPanics(t, func() {
			mustApply(t, l, buy("c1", "a1", 5, 2))
		})

		pos := l.Positions["c1:a1"]
		assert.True(t, pos.TokenAmount.Equal(d(5)), "qty %s", pos.TokenAmount)
		assert.True(t, pos.TotalInvested.Equal(d(2)))
		assert.True(t, pos.AvgEntryPrice.Equal(d(0.4)))
	}
}
