package commands

import (
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/walteh/deployrc/cmd/deployrc/opts"
	"github.com/walteh/deployrc/pkg/target"
	"gitlab.com/tozd/go/errors"
)

// NewMarkCmd creates a new mark command
func NewMarkCmd(opts *opts.RootOpts) *cobra.Command {
	var noDeploy bool

	cmd := &cobra.Command{
		Use:   "mark <files...>",
		Short: "Mark files as saved",
		Long: `Mark records saved files.
It will:
1. Mark the files as changed for every target with sync_when_open enabled
2. Deploy the files selected by a package with deploy_on_save to the targets of that package

Marked files are deployed with "deploy --pending" and unmarked once uploaded.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := zerolog.Ctx(cmd.Context()).With().Str("command", "mark").Logger().WithContext(cmd.Context())

			var deployed []*target.Target
			seen := map[*target.Target]bool{}

			for _, arg := range args {
				abs, err := filepath.Abs(arg)
				if err != nil {
					return errors.Errorf("resolving %s: %w", arg, err)
				}
				if err := opts.Workspace.MarkChanged(ctx, abs); err != nil {
					return errors.Errorf("marking %s: %w", arg, err)
				}
				if noDeploy {
					continue
				}

				targets, err := opts.Workspace.DeployOnSave(ctx, abs, opts.Config)
				if err != nil {
					return errors.Errorf("deploying %s on save: %w", arg, err)
				}
				for _, t := range targets {
					if !seen[t] {
						seen[t] = true
						deployed = append(deployed, t)
					}
				}
			}

			opts.Logger.Successf("Marked %d file(s).", len(args))

			if len(deployed) == 0 {
				return nil
			}
			return logSummary(ctx, opts.Logger, opts.Workspace.Tracker(), deployed)
		},
	}

	cmd.Flags().BoolVar(&noDeploy, "no-deploy", false, "only mark, skip deploy_on_save packages")

	return cmd
}
