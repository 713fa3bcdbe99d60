package cli

import (
	"fmt"
	"io"

	"github.com/okian/edurating/internal/domain/weights"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func newWeightsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "weights",
		Short: "Rating weight checks",
	}
	cmd.AddCommand(newWeightsValidateCmd(app))
	return cmd
}

// newWeightsValidateCmd needs no rules file. Invalid weights exit non-zero.
func newWeightsValidateCmd(app *App) *cobra.Command {
	var w weights.RatingWeights

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check that task, survey and manual weights sum to one",
		RunE: func(cmd *cobra.Command, args []string) error {
			total := weights.TotalWeight(w)
			valid := weights.IsValid(w)
			out := struct {
				Total decimal.Decimal `json:"total"`
				Valid bool            `json:"valid"`
			}{total, valid}

			if err := app.print(cmd.OutOrStdout(), out, func(wr io.Writer) {
				fmt.Fprintf(wr, "total %s: valid %t\n", total, valid)
			}); err != nil {
				return err
			}
			return weights.Validate(w)
		},
	}

	decimalVar(cmd.Flags(), &w.TaskWeight, "task", "Task weight")
	decimalVar(cmd.Flags(), &w.SurveyWeight, "survey", "Survey weight")
	decimalVar(cmd.Flags(), &w.ManualWeight, "manual", "Manual weight")
	return cmd
}
