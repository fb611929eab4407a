package cmd

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/atmx/paper-ledger/internal/bootstrap"
	"github.com/atmx/paper-ledger/internal/config"
	"github.com/atmx/paper-ledger/internal/ledger"
)

var (
	cfgFile   string
	storePath string
	noQuotes  bool

	engine  *ledger.Engine
	cleanup = func() {}

	openStore = bootstrap.OpenStore
)

var rootCmd = &cobra.Command{
	Use:   "paperctl",
	Short: "Paper-trading ledger for prediction markets",
	Long: `paperctl records simulated trades in a local paper-trading ledger and
reports realized and unrealized PnL against live order-book prices.

No orders are ever submitted. The ledger lives in a single JSON document
(paper_trades.json by default) or in the configured PostgreSQL store.

Examples:
  paperctl record --side BUY --condition 0xabc --asset 123 --tokens 100 --usdc 40
  paperctl report
  paperctl reset --yes`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if storePath != "" {
			cfg.Store.Driver = config.DriverFile
			cfg.Store.Path = storePath
		}
		if noQuotes {
			cfg.Quote.Disabled = true
		}

		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
		slog.SetDefault(logger)

		st, closeStore, err := openStore(context.Background(), cfg, logger)
		cleanup = closeStore
		if err != nil {
			return err
		}
		engine = bootstrap.Engine(cfg, st, bootstrap.QuoteSource(cfg), logger)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// Stores opened for the command are closed whether or not it succeeds.
func Execute() error {
	defer func() {
		cleanup()
		cleanup = func() {}
	}()
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", os.Getenv("PAPER_CONFIG"), "config file (YAML, JSON or TOML)")
	rootCmd.PersistentFlags().StringVar(&storePath, "file", "", "ledger file (forces the file store)")
	rootCmd.PersistentFlags().BoolVar(&noQuotes, "no-quotes", false, "mark positions at entry price instead of querying the CLOB")
}
