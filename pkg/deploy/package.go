package deploy

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/walteh/deployrc/pkg/config"
	"github.com/walteh/deployrc/pkg/target"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"
)

// 📄 DeployFileTo deploys a single file to t. The file must be located below the workspace root.
func (w *Workspace) DeployFileTo(ctx context.Context, file string, t *target.Target) error {
	if w.IsFinalized() || t == nil {
		return nil
	}

	abs, err := filepath.Abs(file)
	if err != nil {
		return errors.Errorf("resolving %s: %w", file, err)
	}
	if !w.CanHandle(abs) {
		return errors.Errorf("file %s is not part of workspace %s", abs, w.root)
	}

	return w.DeployFilesTo(ctx, []string{abs}, t, nil)
}

// 📦 DeployPackage deploys the files of a package to t. Reloads triggered by prepare operations
// evaluate the package filter again.
func (w *Workspace) DeployPackage(ctx context.Context, pkg *config.PackageConfig, t *target.Target) error {
	if w.IsFinalized() || pkg == nil {
		return nil
	}

	reload := func(ctx context.Context) ([]string, error) {
		return w.FindFilesByFilter(ctx, pkg.Files, pkg.Exclude)
	}

	files, err := reload(ctx)
	if err != nil {
		return errors.Errorf("finding files of package %s: %w", pkg.Name, err)
	}
	if len(files) == 0 {
		w.notifier.Warning(fmt.Sprintf("No files found for package '%s'.", pkg.Name))
		return nil
	}

	zerolog.Ctx(ctx).Debug().Str("package", pkg.Name).Int("files", len(files)).Msg("deploying package")

	return w.DeployFilesTo(ctx, files, t, reload)
}

// 🎯 DeployFilesToTargets deploys files to several targets concurrently. Conflicting targets
// still run one after another through the session registry. The first error is returned after
// every run finished.
func (w *Workspace) DeployFilesToTargets(ctx context.Context, files []string, targets []*target.Target, reload Reloader) error {
	var g errgroup.Group
	for _, t := range targets {
		t := t
		g.Go(func() error {
			if err := w.DeployFilesTo(ctx, files, t, reload); err != nil {
				return errors.Errorf("deploying to %s: %w", t.DisplayName(), err)
			}
			return nil
		})
	}
	return g.Wait()
}

// 💾 DeployOnSave deploys a saved file to the targets of every deploy_on_save package selecting it.
// The targets deployed to are returned, none when no such package selects the file.
func (w *Workspace) DeployOnSave(ctx context.Context, file string, cfg *config.DeployrcConfig) ([]*target.Target, error) {
	if w.IsFinalized() || cfg == nil {
		return nil, nil
	}

	rel, ok := w.relative(file)
	if !ok {
		return nil, errors.Errorf("file %s is not part of workspace %s", file, w.root)
	}

	targets, err := cfg.SaveTargets(rel)
	if err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		zerolog.Ctx(ctx).Debug().Str("file", rel).Msg("no deploy on save package")
		return nil, nil
	}

	abs, err := filepath.Abs(file)
	if err != nil {
		return nil, errors.Errorf("resolving %s: %w", file, err)
	}

	return targets, w.DeployFilesToTargets(ctx, []string{abs}, targets, nil)
}
