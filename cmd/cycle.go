package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/energyiot/app"
)

var cycleCmd = &cobra.Command{
	Use:       "cycle [per_price|hourly|refresh]",
	Short:     "Run a single cycle now",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{app.JobPerPrice, app.JobHourly, app.JobRefresh},
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(ctx context.Context, svc *app.Service) error {
			sum, err := svc.RunOnce(ctx, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "cycle %s %s: %s\n", sum.Kind, sum.ID, sum.Outcome)
			for _, d := range sum.Decisions {
				fmt.Fprintf(out, "  %-30s %-8s %s\n", d.Trigger, d.Result(), d.Reason)
			}
			for _, f := range sum.Failures {
				fmt.Fprintf(out, "  failure %s/%s: %s\n", f.TriggerName, f.ItemName, f.Message)
			}
			return sum.Err
		})
	},
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Renew device group session tokens",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cycleCmd.RunE(cmd, []string{app.JobRefresh})
	},
}

func init() {
	rootCmd.AddCommand(cycleCmd, refreshCmd)
}
