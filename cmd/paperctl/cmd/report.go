package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the paper trading report",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rep := engine.Report(cmd.Context())
		_, err := fmt.Fprint(cmd.OutOrStdout(), rep.Text)
		return err
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print the statistics snapshot as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printJSON(cmd, engine.Stats(cmd.Context()))
	},
}

var positionsCmd = &cobra.Command{
	Use:   "positions",
	Short: "List open positions as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rep := engine.Report(cmd.Context())
		return printJSON(cmd, rep.Marks)
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(positionsCmd)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
