package cli

import (
	"fmt"
	"io"

	"github.com/okian/edurating/internal/domain/growth"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func newGrowthCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "growth",
		Short: "Growth bonus thresholds",
	}
	cmd.AddCommand(newGrowthResolveCmd(app))
	return cmd
}

func newGrowthResolveCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <amount>",
		Short: "Resolve the growth bonus for a year-over-year change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := decimal.NewFromString(args[0])
			if err != nil {
				return fmt.Errorf("invalid amount %q", args[0])
			}
			snap, err := app.load(cmd.Context())
			if err != nil {
				return err
			}

			bonus := growth.Resolve(amount, snap.GrowthRules)
			qualifies := growth.QualifiesForBonus(amount, snap.GrowthRules)
			out := struct {
				Amount    decimal.Decimal `json:"amount"`
				Bonus     decimal.Decimal `json:"bonus"`
				Qualifies bool            `json:"qualifies"`
			}{amount, bonus, qualifies}

			return app.print(cmd.OutOrStdout(), out, func(w io.Writer) {
				fmt.Fprintf(w, "amount %s: bonus %s (qualifies: %t)\n", amount, bonus, qualifies)
			})
		},
	}
}
