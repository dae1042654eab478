package commands

import (
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/walteh/deployrc/cmd/deployrc/opts"
	"github.com/walteh/deployrc/pkg/log"
	"github.com/walteh/deployrc/pkg/status"
)

// NewStatusCmd creates a new status command
func NewStatusCmd(opts *opts.RootOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the files waiting for sync-when-open targets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			root := opts.Workspace.Root()

			total := 0
			for _, t := range opts.Config.ConfiguredTargets() {
				if !t.SyncWhenOpen {
					continue
				}
				files := opts.Workspace.PendingFiles(t)
				if len(files) == 0 {
					continue
				}
				total += len(files)

				opts.Logger.StartTarget(ctx, log.TargetRun{Name: t.DisplayName(), Type: t.NormalizedType(), Files: len(files)})
				for _, f := range files {
					rel, err := filepath.Rel(root, f)
					if err != nil {
						rel = f
					}
					opts.Logger.LogFile(ctx, status.FileInfo{
						File:   f,
						Remote: filepath.ToSlash(rel),
						Target: t.DisplayName(),
						Status: status.StatusPending,
					})
				}
				opts.Logger.EndTarget(ctx)
			}

			if total == 0 {
				opts.Logger.Success("Nothing to deploy, all targets are up to date.")
			}
			return nil
		},
	}

	return cmd
}
