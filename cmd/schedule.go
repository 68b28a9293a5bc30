package cmd

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/energyiot/config"
	"github.com/kilianp07/energyiot/core/scheduler"
)

var scheduleFile string

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Show the next run of each cycle",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var sc scheduler.Config
		if scheduleFile != "" {
			var err error
			if sc, err = scheduler.LoadConfig(scheduleFile); err != nil {
				return err
			}
		} else {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			sc = cfg.Schedule
		}
		if err := sc.Validate(); err != nil {
			return err
		}
		next, err := sc.NextRuns(time.Now())
		if err != nil {
			return err
		}
		names := make([]string, 0, len(next))
		for n := range next {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			fmt.Fprintf(cmd.OutOrStdout(), "%-10s %s\n", n, next[n].Format(time.RFC3339))
		}
		return nil
	},
}

func init() {
	scheduleCmd.Flags().StringVar(&scheduleFile, "file", "", "standalone schedule file (yaml or json)")
	rootCmd.AddCommand(scheduleCmd)
}
