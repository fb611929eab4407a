package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atmx/paper-ledger/internal/config"
	"github.com/atmx/paper-ledger/internal/model"
	"github.com/atmx/paper-ledger/internal/store"
)

// resetFlags restores every flag to its default between executions of the
// package-level command tree.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	err := Execute()
	return out.String(), err
}

func loadFile(t *testing.T, path string) *model.Ledger {
	t.Helper()
	l, err := store.NewFileStore(path).Load(context.Background())
	require.NoError(t, err)
	return l
}

func TestRecord_DefaultsPriceAndUpperCasesSide(t *testing.T) {
	path := filepath.Join(t.TempDir(), "paper_trades.json")

	out, err := run(t, "record", "--file", path, "--no-quotes",
		"--side", "buy", "--market", "Rain in Paris?", "--outcome", "Yes",
		"--condition", "c1", "--asset", "a1", "--tokens", "100", "--usdc", "40")
	require.NoError(t, err)

	var fill model.Fill
	require.NoError(t, json.Unmarshal([]byte(out), &fill))
	assert.Equal(t, model.SideBuy, fill.Side)
	assert.Equal(t, "c1:a1", fill.Key)

	l := loadFile(t, path)
	require.Len(t, l.Trades, 1)
	assert.Equal(t, model.SideBuy, l.Trades[0].Side)
	assert.True(t, l.Trades[0].Price.Equal(decimal.NewFromFloat(0.4)), "price %s", l.Trades[0].Price)
}

func TestRecord_ExplicitPrice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "paper_trades.json")

	_, err := run(t, "record", "--file", path, "--no-quotes",
		"--side", "BUY", "--condition", "c1", "--asset", "a1",
		"--tokens", "100", "--usdc", "40", "--price", "0.41")
	require.NoError(t, err)

	l := loadFile(t, path)
	assert.True(t, l.Trades[0].Price.Equal(decimal.NewFromFloat(0.41)))
}

func TestRecord_InvalidInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "paper_trades.json")

	_, err := run(t, "record", "--file", path, "--no-quotes",
		"--side", "hold", "--condition", "c1", "--asset", "a1", "--tokens", "1", "--usdc", "1")
	assert.Error(t, err)

	_, err = run(t, "record", "--file", path, "--no-quotes",
		"--side", "BUY", "--condition", "c1", "--asset", "a1", "--tokens", "lots", "--usdc", "1")
	assert.Error(t, err)
}

func TestReset_RequiresConfirmation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "paper_trades.json")
	_, err := run(t, "record", "--file", path, "--no-quotes",
		"--side", "BUY", "--condition", "c1", "--asset", "a1", "--tokens", "10", "--usdc", "4")
	require.NoError(t, err)

	_, err = run(t, "reset", "--file", path, "--no-quotes")
	require.Error(t, err)
	assert.Len(t, loadFile(t, path).Trades, 1)

	out, err := run(t, "reset", "--file", path, "--no-quotes", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "ledger reset at")
	l := loadFile(t, path)
	assert.Empty(t, l.Trades)
	assert.Empty(t, l.Positions)
}

func TestReportAndRebuild(t *testing.T) {
	path := filepath.Join(t.TempDir(), "paper_trades.json")
	_, err := run(t, "record", "--file", path, "--no-quotes",
		"--side", "BUY", "--market", "Rain in Paris?", "--outcome", "Yes",
		"--condition", "c1", "--asset", "a1", "--tokens", "100", "--usdc", "40")
	require.NoError(t, err)

	out, err := run(t, "report", "--file", path, "--no-quotes")
	require.NoError(t, err)
	assert.Contains(t, out, "PAPER TRADING REPORT")
	assert.Contains(t, out, "• Rain in Paris? (Yes)")

	out, err = run(t, "rebuild", "--file", path, "--no-quotes")
	require.NoError(t, err)
	assert.Contains(t, out, "replayed 1 trades: 1 open positions")
}

func TestExecute_ClosesStoreOnFailure(t *testing.T) {
	closed := 0
	prev := openStore
	t.Cleanup(func() { openStore = prev })
	openStore = func(context.Context, *config.Config, *slog.Logger) (store.Store, func(), error) {
		return store.NewMemoryStore(), func() { closed++ }, nil
	}

	_, err := run(t, "reset", "--no-quotes")
	require.Error(t, err)
	assert.Equal(t, 1, closed)

	_, err = run(t, "stats", "--no-quotes")
	require.NoError(t, err)
	assert.Equal(t, 2, closed)
}
