package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/atmx/paper-ledger/internal/model"
)

var recordFlags struct {
	side      string
	market    string
	outcome   string
	condition string
	asset     string
	trader    string
	tokens    string
	usdc      string
	price     string
}

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record one simulated trade",
	Long: `Record one simulated trade in the ledger.

A BUY averages into the position for (condition, asset); a SELL realizes
PnL against the position's average entry price. Selling an instrument with
no open position is recorded in history but changes nothing else.

Price defaults to usdc / tokens.`,
	Args: cobra.NoArgs,
	RunE: runRecord,
}

func init() {
	rootCmd.AddCommand(recordCmd)

	f := recordCmd.Flags()
	f.StringVar(&recordFlags.side, "side", "", "BUY or SELL")
	f.StringVar(&recordFlags.market, "market", "", "market name or slug")
	f.StringVar(&recordFlags.outcome, "outcome", "", "outcome label (e.g. Yes)")
	f.StringVar(&recordFlags.condition, "condition", "", "condition id")
	f.StringVar(&recordFlags.asset, "asset", "", "outcome token id")
	f.StringVar(&recordFlags.trader, "trader", "", "trader address being copied")
	f.StringVar(&recordFlags.tokens, "tokens", "", "token quantity")
	f.StringVar(&recordFlags.usdc, "usdc", "", "USD notional")
	f.StringVar(&recordFlags.price, "price", "", "unit price (optional)")

	for _, name := range []string{"side", "condition", "asset", "tokens", "usdc"} {
		recordCmd.MarkFlagRequired(name)
	}
}

func runRecord(cmd *cobra.Command, args []string) error {
	tokens, err := decimal.NewFromString(recordFlags.tokens)
	if err != nil {
		return fmt.Errorf("invalid --tokens: %w", err)
	}
	usdc, err := decimal.NewFromString(recordFlags.usdc)
	if err != nil {
		return fmt.Errorf("invalid --usdc: %w", err)
	}

	var price decimal.Decimal
	switch {
	case recordFlags.price != "":
		price, err = decimal.NewFromString(recordFlags.price)
		if err != nil {
			return fmt.Errorf("invalid --price: %w", err)
		}
	case tokens.IsPositive():
		price = usdc.Div(tokens)
	}

	t := model.Trade{
		Timestamp:     time.Now().UnixMilli(),
		Side:          model.Side(strings.ToUpper(recordFlags.side)),
		Market:        recordFlags.market,
		Outcome:       recordFlags.outcome,
		USDCAmount:    usdc,
		TokenAmount:   tokens,
		Price:         price,
		TraderAddress: recordFlags.trader,
		ConditionID:   recordFlags.condition,
		Asset:         recordFlags.asset,
	}

	fill, err := engine.RecordTrade(cmd.Context(), t)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(fill)
}
