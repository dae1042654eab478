package commands

import (
	"context"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/walteh/deployrc/cmd/deployrc/opts"
	"github.com/walteh/deployrc/pkg/log"
	"github.com/walteh/deployrc/pkg/status"
	"github.com/walteh/deployrc/pkg/target"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"
)

// NewDeployCmd creates a new deploy command
func NewDeployCmd(opts *opts.RootOpts) *cobra.Command {
	var (
		targetNames []string
		packageName string
		pending     bool
	)

	cmd := &cobra.Command{
		Use:   "deploy [files...]",
		Short: "Deploy files to targets",
		Long: `Deploy uploads files to one or more targets.
It will:
1. Run the prepare operations of every target
2. Upload the files with every plugin registered for the target type
3. Run the before-deploy and deployed operations around each upload

Files are given as arguments, selected by a package (--package) or taken from the
files marked for sync-when-open targets (--pending).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := zerolog.Ctx(cmd.Context()).With().Str("command", "deploy").Logger().WithContext(cmd.Context())

			targets, err := selectTargets(opts, targetNames)
			if err != nil {
				return err
			}

			switch {
			case packageName != "":
				if len(args) > 0 || pending {
					return errors.New("--package can not be combined with files or --pending")
				}
				targets, err = deployPackage(ctx, opts, packageName, targets)
			case pending:
				if len(args) > 0 {
					return errors.New("--pending can not be combined with files")
				}
				targets, err = deployPending(ctx, opts, targets)
			default:
				targets, err = deployFiles(ctx, opts, args, targets)
			}
			if err != nil {
				return err
			}

			return logSummary(ctx, opts.Logger, opts.Workspace.Tracker(), targets)
		},
	}

	cmd.Flags().StringArrayVarP(&targetNames, "target", "t", nil, "target to deploy to, repeatable")
	cmd.Flags().StringVarP(&packageName, "package", "p", "", "deploy the files of a package")
	cmd.Flags().BoolVar(&pending, "pending", false, "deploy the files marked for sync-when-open targets")

	return cmd
}

// selectTargets resolves the --target flags. Without flags nil is returned.
func selectTargets(opts *opts.RootOpts, names []string) ([]*target.Target, error) {
	var out []*target.Target
	for _, name := range names {
		t, ok := opts.Config.TargetByName(name)
		if !ok {
			return nil, errors.Errorf("unknown target %q", name)
		}
		out = append(out, t)
	}
	return out, nil
}

func deployFiles(ctx context.Context, opts *opts.RootOpts, args []string, targets []*target.Target) ([]*target.Target, error) {
	if len(args) == 0 {
		return nil, errors.New("no files given, pass files, --package or --pending")
	}

	if len(targets) == 0 {
		all := opts.Config.ConfiguredTargets()
		if len(all) != 1 {
			return nil, errors.New("no target selected, use --target")
		}
		targets = all
	}

	files := make([]string, 0, len(args))
	for _, arg := range args {
		abs, err := filepath.Abs(arg)
		if err != nil {
			return nil, errors.Errorf("resolving %s: %w", arg, err)
		}
		if !opts.Workspace.CanHandle(abs) {
			return nil, errors.Errorf("file %s is not part of workspace %s", abs, opts.Workspace.Root())
		}
		files = append(files, abs)
	}

	return targets, opts.Workspace.DeployFilesToTargets(ctx, files, targets, nil)
}

func deployPackage(ctx context.Context, opts *opts.RootOpts, name string, targets []*target.Target) ([]*target.Target, error) {
	pkg, ok := opts.Config.Package(name)
	if !ok {
		return nil, errors.Errorf("unknown package %q", name)
	}

	if len(targets) == 0 {
		var err error
		targets, err = opts.Config.PackageTargets(pkg)
		if err != nil {
			return nil, err
		}
	}
	if len(targets) == 0 {
		return nil, errors.Errorf("package %q has no targets, use --target", name)
	}

	var g errgroup.Group
	for _, t := range targets {
		t := t
		g.Go(func() error {
			if err := opts.Workspace.DeployPackage(ctx, pkg, t); err != nil {
				return errors.Errorf("deploying package %s to %s: %w", name, t.DisplayName(), err)
			}
			return nil
		})
	}
	return targets, g.Wait()
}

func deployPending(ctx context.Context, opts *opts.RootOpts, targets []*target.Target) ([]*target.Target, error) {
	if len(targets) == 0 {
		for _, t := range opts.Config.ConfiguredTargets() {
			if t.SyncWhenOpen {
				targets = append(targets, t)
			}
		}
	}

	var g errgroup.Group
	for _, t := range targets {
		t := t
		files := opts.Workspace.PendingFiles(t)
		if len(files) == 0 {
			zerolog.Ctx(ctx).Debug().Str("target", t.DisplayName()).Msg("nothing pending")
			continue
		}
		g.Go(func() error {
			if err := opts.Workspace.DeployFilesTo(ctx, files, t, nil); err != nil {
				return errors.Errorf("deploying pending files to %s: %w", t.DisplayName(), err)
			}
			return nil
		})
	}
	return targets, g.Wait()
}

// logSummary logs the tracked files per target and fails when a file failed
func logSummary(ctx context.Context, logger *log.Logger, tracker *status.Tracker, targets []*target.Target) error {
	files := tracker.ListFiles()

	for _, t := range targets {
		var mine []status.FileInfo
		for _, f := range files {
			if f.Target == t.DisplayName() {
				mine = append(mine, f)
			}
		}
		if len(mine) == 0 {
			continue
		}

		logger.LogNewline()
		logger.StartTarget(ctx, log.TargetRun{Name: t.DisplayName(), Type: t.NormalizedType(), Files: len(mine)})
		for _, f := range mine {
			logger.LogFile(ctx, f)
		}
		logger.EndTarget(ctx)
	}

	if failed := tracker.Failed(); len(failed) > 0 {
		return errors.Errorf("%d of %d files failed", len(failed), len(files))
	}
	return nil
}
