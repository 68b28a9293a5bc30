package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/energyiot/app"
	"github.com/kilianp07/energyiot/core/model"
	"github.com/kilianp07/energyiot/infra/octopus"
	"github.com/kilianp07/energyiot/pkg/export"
)

var (
	chartOut     string
	exportFormat string
)

// periodPrices returns the stored prices of the current tariff period,
// fetching them when nothing is stored.
func periodPrices(ctx context.Context, svc *app.Service) ([]model.PricePoint, time.Time, error) {
	from, to := svc.Calendar.TariffPeriod(time.Now())
	prices, err := svc.Store.GetPricesInRange(ctx, from, to)
	if err != nil {
		return nil, from, err
	}
	if len(prices) == 0 && svc.Prices != nil {
		if prices, err = svc.Prices.FetchPrices(ctx, from, to); err != nil {
			return nil, from, err
		}
	}
	if len(prices) == 0 {
		return nil, from, errors.New("no prices for the current tariff period")
	}
	return prices, from, nil
}

var chartCmd = &cobra.Command{
	Use:   "chart",
	Short: "Render the current tariff period prices as an HTML chart",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(ctx context.Context, svc *app.Service) error {
			prices, from, err := periodPrices(ctx, svc)
			if err != nil {
				return err
			}
			title := fmt.Sprintf("Prices %s", from.In(svc.Calendar.Zone()).Format("02/01/2006 15:04"))
			html, err := octopus.ChartHTML(title, prices, svc.Calendar.Zone())
			if err != nil {
				return err
			}
			if err := os.WriteFile(chartOut, []byte(html), 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d prices written to %s\n", len(prices), chartOut)
			return nil
		})
	},
}

var pricesCmd = &cobra.Command{
	Use:   "prices",
	Short: "Print the current tariff period prices as CSV or JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(ctx context.Context, svc *app.Service) error {
			prices, _, err := periodPrices(ctx, svc)
			if err != nil {
				return err
			}
			switch exportFormat {
			case "csv":
				return export.WriteCSV(cmd.OutOrStdout(), prices, svc.Calendar.Zone())
			case "json":
				return export.WriteJSON(cmd.OutOrStdout(), prices)
			}
			return fmt.Errorf("unknown format %q", exportFormat)
		})
	},
}

func init() {
	chartCmd.Flags().StringVarP(&chartOut, "out", "o", "prices.html", "output file")
	pricesCmd.Flags().StringVarP(&exportFormat, "format", "f", "csv", "csv or json")
	rootCmd.AddCommand(chartCmd, pricesCmd)
}
