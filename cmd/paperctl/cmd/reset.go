package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var resetConfirmed bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Discard all trades and positions and restart the clock",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !resetConfirmed {
			return errors.New("reset discards the whole ledger; pass --yes to confirm")
		}
		l := engine.Reset(cmd.Context())
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "ledger reset at %s\n", l.Started().UTC().Format("2006-01-02 15:04:05 MST"))
		return err
	},
}

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Recompute positions and PnL by replaying the trade history",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		l, err := engine.Rebuild(cmd.Context())
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "replayed %d trades: %d open positions, realized PnL $%s\n",
			len(l.Trades), len(l.Positions), l.RealizedPnL.StringFixed(2))
		return err
	},
}

func init() {
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(rebuildCmd)

	resetCmd.Flags().BoolVar(&resetConfirmed, "yes", false, "confirm the reset")
}
