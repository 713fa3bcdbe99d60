package cli

import (
	"fmt"
	"io"

	"github.com/okian/edurating/internal/adapters/repository"
	"github.com/okian/edurating/internal/domain/approval"
	"github.com/spf13/cobra"
)

func newApprovalCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approval",
		Short: "Approval chain queries",
	}
	cmd.AddCommand(
		newApprovalNextCmd(app),
		newApprovalStatusCmd(app),
		newApprovalDecideCmd(app),
	)
	return cmd
}

// workflow loads the named workflow from the rules file.
func (a *App) workflow(cmd *cobra.Command, workflowType string) (approval.Workflow, error) {
	snap, err := a.load(cmd.Context())
	if err != nil {
		return approval.Workflow{}, err
	}
	wf, ok := snap.Workflow(workflowType)
	if !ok {
		return approval.Workflow{}, fmt.Errorf("%w: workflow %q", repository.ErrNotFound, workflowType)
	}
	return wf, nil
}

func newApprovalNextCmd(app *App) *cobra.Command {
	var (
		level        int
		requiredOnly bool
	)

	cmd := &cobra.Command{
		Use:   "next <workflow-type>",
		Short: "Show the step after the current level",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wf, err := app.workflow(cmd, args[0])
			if err != nil {
				return err
			}
			var (
				step approval.Step
				ok   bool
			)
			if requiredOnly {
				step, ok = approval.NextRequiredStep(wf.Chain, wf.Config, level)
			} else {
				step, ok = approval.NextStep(wf.Chain, level)
			}

			out := struct {
				Found bool                     `json:"found"`
				Step  *approval.NormalizedStep `json:"step,omitempty"`
			}{Found: ok}
			if ok {
				ns := approval.Normalize(approval.Chain{step})[0]
				out.Step = &ns
			}

			return app.print(cmd.OutOrStdout(), out, func(w io.Writer) {
				if !ok {
					fmt.Fprintf(w, "no step after level %d\n", level)
					return
				}
				fmt.Fprintf(w, "level %d: %s (%s, required: %t)\n", out.Step.Level, out.Step.Title, out.Step.Role, out.Step.Required)
			})
		},
	}

	cmd.Flags().IntVar(&level, "level", 0, "Current approval level")
	cmd.Flags().BoolVar(&requiredOnly, "required-only", false, "Skip optional steps per the workflow config")
	return cmd
}

func newApprovalStatusCmd(app *App) *cobra.Command {
	var level int

	cmd := &cobra.Command{
		Use:   "status <workflow-type>",
		Short: "Classify the current level",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wf, err := app.workflow(cmd, args[0])
			if err != nil {
				return err
			}
			maxLevel, _ := approval.MaxRequiredLevel(wf.Chain)
			out := struct {
				CurrentLevel     int            `json:"current_level"`
				FullyApproved    bool           `json:"fully_approved"`
				State            approval.State `json:"state"`
				MaxRequiredLevel int            `json:"max_required_level"`
			}{
				CurrentLevel:     level,
				FullyApproved:    approval.IsFullyApproved(wf.Chain, level),
				State:            approval.Classify(wf.Chain, level),
				MaxRequiredLevel: maxLevel,
			}

			return app.print(cmd.OutOrStdout(), out, func(w io.Writer) {
				fmt.Fprintf(w, "%s at level %d: %s (required up to %d)\n", wf.Type, level, out.State, maxLevel)
			})
		},
	}

	cmd.Flags().IntVar(&level, "level", 0, "Current approval level")
	return cmd
}

func newApprovalDecideCmd(app *App) *cobra.Command {
	var (
		level  int
		action string
	)

	cmd := &cobra.Command{
		Use:   "decide <workflow-type>",
		Short: "Apply approve, reject or revise at the current level",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			act, err := approval.ParseAction(action)
			if err != nil {
				return err
			}
			wf, err := app.workflow(cmd, args[0])
			if err != nil {
				return err
			}
			d, err := approval.Decide(wf, level, act)
			if err != nil {
				return err
			}

			return app.print(cmd.OutOrStdout(), d, func(w io.Writer) {
				fmt.Fprintf(w, "%s: %s, level %d -> %d\n", d.Action, d.Status, d.FromLevel, d.Level)
				if d.Pending != nil {
					fmt.Fprintf(w, "pending: level %d (%s)\n", d.Pending.Level, d.Pending.Role)
				}
			})
		},
	}

	cmd.Flags().IntVar(&level, "level", 0, "Current approval level")
	cmd.Flags().StringVar(&action, "action", "", "approve, reject or revise")
	_ = cmd.MarkFlagRequired("action")
	return cmd
}
