package cmd

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/energyiot/app"
	"github.com/kilianp07/energyiot/core/mode"
	"github.com/kilianp07/energyiot/core/override"
	"github.com/kilianp07/energyiot/infra/logger"
)

var (
	overrideStart    string
	overrideInterval int
)

var overrideCmd = &cobra.Command{
	Use:   "override",
	Short: "Suspend per-price cycles for a number of half-hour slots",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(ctx context.Context, svc *app.Service) error {
			w, err := override.Create(ctx, svc.Store, overrideStart, strconv.Itoa(overrideInterval), time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Override Inserted: %s - %s\n", w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339))
			return nil
		})
	},
}

var modeCmd = &cobra.Command{
	Use:   "mode [new mode]",
	Short: "Show or change the operating mode",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(ctx context.Context, svc *app.Service) error {
			if len(args) == 0 {
				m, err := mode.Current(ctx, svc.Store, logger.NopLogger{})
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), m)
				return nil
			}
			m, err := mode.Set(ctx, svc.Store, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Mode changed to: %s\n", m)
			return nil
		})
	},
}

func init() {
	overrideCmd.Flags().StringVar(&overrideStart, "start", "NOW", "RFC3339 start or NOW")
	overrideCmd.Flags().IntVar(&overrideInterval, "interval", 2, "number of half-hour slots")
	rootCmd.AddCommand(overrideCmd, modeCmd)
}
