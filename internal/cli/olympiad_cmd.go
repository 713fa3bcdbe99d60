package cli

import (
	"fmt"
	"io"

	"github.com/okian/edurating/internal/domain/olympiad"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func newOlympiadCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "olympiad",
		Short: "Olympiad placement scoring",
	}
	cmd.AddCommand(newOlympiadScoreCmd(app), newOlympiadRulesCmd(app))
	return cmd
}

func newOlympiadScoreCmd(app *App) *cobra.Command {
	var (
		level     string
		placement int
		students  int
	)

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score one olympiad achievement",
		RunE: func(cmd *cobra.Command, args []string) error {
			lvl, err := olympiad.ParseLevel(level)
			if err != nil {
				return err
			}
			snap, err := app.load(cmd.Context())
			if err != nil {
				return err
			}
			score, err := olympiad.CalculateScore(lvl, placement, students, snap.OlympiadRules)
			if err != nil {
				return err
			}

			out := struct {
				Level        olympiad.Level  `json:"level"`
				Placement    int             `json:"placement"`
				StudentCount int             `json:"student_count"`
				Score        decimal.Decimal `json:"score"`
			}{lvl, placement, students, score}

			return app.print(cmd.OutOrStdout(), out, func(w io.Writer) {
				fmt.Fprintf(w, "%s place %d, %d student(s): %s\n", lvl, placement, students, score)
			})
		},
	}

	cmd.Flags().StringVar(&level, "level", "", "Olympiad level: rayon, region, country, international")
	cmd.Flags().IntVar(&placement, "placement", 1, "Placement achieved")
	cmd.Flags().IntVar(&students, "students", 1, "Number of participating students")
	_ = cmd.MarkFlagRequired("level")
	return cmd
}

func newOlympiadRulesCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "List active rules grouped by level",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := app.load(cmd.Context())
			if err != nil {
				return err
			}
			groups := olympiad.GroupByLevel(snap.OlympiadRules)

			return app.print(cmd.OutOrStdout(), groups, func(w io.Writer) {
				for _, lvl := range olympiad.Levels() {
					rules, ok := groups[lvl]
					if !ok {
						continue
					}
					fmt.Fprintf(w, "%s\n", lvl)
					for _, r := range rules {
						fmt.Fprintf(w, "  place %d: base %s, +%s per extra student\n", r.Placement, r.BaseScore, r.StudentBonus)
					}
				}
			})
		},
	}
}
