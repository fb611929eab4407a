package ledger

import (
	"fmt"
	"sort"
	"strings"

	"github.com/atmx/paper-ledger/internal/model"
)

const boxWidth = 62

// RenderReport formats stats as a fixed-width box followed by a listing of
// the open positions.
func RenderReport(stats model.Stats, positions []model.Position) string {
	var b strings.Builder

	rule := strings.Repeat("═", boxWidth)
	row := func(format string, args ...any) {
		fmt.Fprintf(&b, "║%-*s║\n", boxWidth, fmt.Sprintf(format, args...))
	}

	b.WriteString("\n╔" + rule + "╗\n")
	row("%s", center("PAPER TRADING REPORT", boxWidth))
	b.WriteString("╠" + rule + "╣\n")
	row("  Running Time: %s", stats.RunningTime)
	row("  Total Trades: %d", stats.TotalTrades)
	row("    - Buys:     %d", stats.BuyTrades)
	row("    - Sells:    %d", stats.SellTrades)
	b.WriteString("╠" + rule + "╣\n")
	row("  Total Invested:    $%s", stats.TotalInvested.StringFixed(2))
	row("  Current Value:     $%s", stats.CurrentValue.StringFixed(2))
	row("  Realized P&L:      $%s", stats.RealizedPnL.StringFixed(2))
	row("  Unrealized P&L:    $%s", stats.UnrealizedPnL.StringFixed(2))
	row("  Total P&L:         $%s", stats.TotalPnL.StringFixed(2))
	row("  ROI:               %s%%", stats.ROI.StringFixed(2))
	b.WriteString("╠" + rule + "╣\n")
	row("  Open Positions: %d", stats.OpenPositions)
	b.WriteString("╚" + rule + "╝\n")

	if len(positions) > 0 {
		sorted := append([]model.Position(nil), positions...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].Key() < sorted[j].Key() })

		b.WriteString("\n\nOpen Positions:\n")
		for _, p := range sorted {
			fmt.Fprintf(&b, "  • %s (%s)\n", p.Market, p.Outcome)
			fmt.Fprintf(&b, "    Tokens: %s @ $%s avg\n", p.TokenAmount.StringFixed(2), p.AvgEntryPrice.StringFixed(4))
			fmt.Fprintf(&b, "    Invested: $%s\n\n", p.TotalInvested.StringFixed(2))
		}
	}

	return b.String()
}

func center(s string, width int) string {
	pad := width - len(s)
	if pad <= 0 {
		return s
	}
	return strings.Repeat(" ", pad/2) + s
}
