// Package cli implements ratingctl, which evaluates a YAML rules file offline
// with the same engines the service uses.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/okian/edurating/internal/adapters/repository"
	"github.com/okian/edurating/pkg/logger"
	"github.com/spf13/cobra"
)

// App holds the flags shared by every command.
type App struct {
	RulesFile string
	JSON      bool
	Logger    logger.Logger

	snapshot *repository.Snapshot
}

// NewRootCmd creates the top-level "ratingctl" command and registers all
// subcommands against app.
func NewRootCmd(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "ratingctl",
		Short:         "Evaluate rating rules from a YAML file",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&app.RulesFile, "rules", app.RulesFile, "Path to the YAML rules file")
	root.PersistentFlags().BoolVar(&app.JSON, "json", false, "Print results as JSON")

	root.AddCommand(
		newGrowthCmd(app),
		newOlympiadCmd(app),
		newApprovalCmd(app),
		newWeightsCmd(app),
	)
	return root
}

// load reads and validates the rules file once per invocation.
func (a *App) load(ctx context.Context) (*repository.Snapshot, error) {
	if a.snapshot != nil {
		return a.snapshot, nil
	}
	if a.RulesFile == "" {
		return nil, ErrNoRulesFile
	}
	var opts []repository.SnapshotOption
	if a.Logger != nil {
		opts = append(opts, repository.WithSnapshotLogger(a.Logger))
	}
	snap, err := repository.NewSnapshotStore(repository.NewFileSource(a.RulesFile), opts...).Reload(ctx)
	if err != nil {
		return nil, err
	}
	a.snapshot = snap
	return snap, nil
}

// print writes v as indented JSON when --json is set, otherwise it calls text.
func (a *App) print(w io.Writer, v any, text func(io.Writer)) error {
	if !a.JSON {
		text(w)
		return nil
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
