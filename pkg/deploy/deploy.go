// Package deploy runs deployments of workspace files to targets: operations, upload plugins,
// cancellation and the per-target session, with cleanup on every exit path.
package deploy

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/rs/zerolog"
	"github.com/walteh/deployrc/pkg/cancel"
	"github.com/walteh/deployrc/pkg/operation"
	"github.com/walteh/deployrc/pkg/session"
	"github.com/walteh/deployrc/pkg/status"
	"github.com/walteh/deployrc/pkg/target"
	"github.com/walteh/deployrc/pkg/transform"
	"github.com/walteh/deployrc/pkg/upload"
	"gitlab.com/tozd/go/errors"
)

// 🔄 Reloader returns a fresh file list when a prepare operation asks for it
type Reloader func(ctx context.Context) ([]string, error)

// runState is the mutable data of one DeployFilesTo call
type runState struct {
	target *target.Target
	name   string

	files           []string
	reload          Reloader
	reloadRequested bool

	transformer        transform.Transformer
	transformerOptions map[string]string
	scopeDirs          []string

	controller *cancel.Controller
	session    *session.Session
}

// 🚀 DeployFilesTo deploys files to t.
//
// Expected stops (no files, no target, prepare aborted, finalized workspace) return nil. Missing
// plugins are reported through the notifier and return nil. A transformer that cannot be loaded
// is returned as an error before the target session is acquired. Errors of a single plugin are
// written to the output and never stop the remaining plugins.
func (w *Workspace) DeployFilesTo(ctx context.Context, files []string, t *target.Target, reload Reloader) error {
	if w.IsFinalized() || files == nil || t == nil {
		return nil
	}

	rs := &runState{
		target: t,
		name:   t.DisplayName(),
		files:  files,
		reload: reload,
	}
	if rs.reload == nil {
		initial := slices.Clone(files)
		rs.reload = func(context.Context) ([]string, error) {
			return slices.Clone(initial), nil
		}
	}

	ctx = zerolog.Ctx(ctx).With().Str("target", rs.name).Logger().WithContext(ctx)
	logger := zerolog.Ctx(ctx)

	rs.files = w.normalize(rs.files, t)

	if !w.operations.Execute(ctx, target.EventPrepare, t, rs.files, w.operationHooks(rs, target.EventPrepare)) {
		logger.Info().Msg("deploy canceled by a prepare operation")
		w.notifier.Info(w.formatter.CanceledByOperation(rs.name))
		return nil
	}

	if rs.reloadRequested {
		reloaded, err := rs.reload(ctx)
		if err != nil {
			return errors.Errorf("reloading files of %s: %w", rs.name, err)
		}
		rs.files = w.normalize(reloaded, t)
		logger.Debug().Int("files", len(rs.files)).Msg("file list reloaded")
	}

	if len(rs.files) == 0 {
		logger.Debug().Msg("no files to deploy")
		return nil
	}

	plugins := w.plugins.PluginsFor(t)
	if len(plugins) == 0 {
		w.notifier.Warning(fmt.Sprintf("No plugins found for target '%s' (type '%s').", rs.name, t.NormalizedType()))
		return nil
	}

	tr, err := w.transformers.Load(t)
	if err != nil {
		return errors.Errorf("could not load data transformer of target %s: %w", rs.name, err)
	}
	tr, err = transform.WithPassword(tr, t, w.secrets)
	if err != nil {
		return errors.Errorf("could not load password transformer of target %s: %w", rs.name, err)
	}
	rs.transformer = transform.Safe(tr)
	rs.transformerOptions = maps.Clone(t.TransformerOptions)
	rs.scopeDirs = target.ScopeDirectories(t, w.root)

	rs.controller = cancel.NewController(cancel.ControllerOptions{
		TargetName: rs.name,
		Affordance: w.newAffordance(ctx, t),
		Confirmer:  w.confirmer,
	})
	defer w.cleanup(ctx, rs)

	rs.controller.Show()

	rs.session, err = w.sessions.Acquire(ctx, t, rs.controller.Affordance())
	if err != nil {
		return errors.Errorf("acquiring target %s: %w", rs.name, err)
	}
	rs.controller.RestoreText()

	for _, p := range plugins {
		if err := rs.controller.WaitWhileCancelling(ctx); err != nil {
			logger.Debug().Err(err).Msg("stopped waiting for cancel confirmation")
			break
		}
		if rs.controller.Token().IsRequested() {
			logger.Info().Msg("deploy canceled")
			break
		}

		if err := w.deployWithPlugin(ctx, rs, p); err != nil {
			logger.Error().Err(err).Str("plugin", p.Name()).Msg("plugin failed")
			w.output.AppendLine(w.formatter.FinishedWithErrors(rs.name, err))
		}
	}

	return nil
}

// cleanup disposes the controller (and with it the affordance) and releases the session
func (w *Workspace) cleanup(ctx context.Context, rs *runState) {
	rs.controller.Dispose()
	w.sessions.Release(rs.session)

	if err := w.state.Save(ctx); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("saving state")
	}
}

// deployWithPlugin runs BeforeDeploy, the upload and AfterDeployed for one plugin.
// A panic of the plugin is returned as error.
func (w *Workspace) deployWithPlugin(ctx context.Context, rs *runState, p upload.Plugin) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("plugin %s panicked: %v", p.Name(), r)
		}
	}()

	logger := zerolog.Ctx(ctx).With().Str("plugin", p.Name()).Logger()

	w.output.AppendLine("")
	if len(rs.files) > 1 {
		w.output.AppendLine(w.formatter.Start(rs.name))
	}

	uc := &upload.Context{
		Token:  rs.controller.Token(),
		Units:  w.buildUnits(ctx, rs),
		Target: rs.target,
	}
	remotePaths := uc.RemotePaths()
	w.tracker.StartOperation(ctx, len(uc.Units))

	w.output.AppendLine("")
	if !w.operations.Execute(ctx, target.EventBeforeDeploy, rs.target, remotePaths, w.operationHooks(rs, target.EventBeforeDeploy)) {
		w.output.AppendLine(w.formatter.CanceledByOperation(rs.name))
		return nil
	}

	logger.Debug().Int("units", len(uc.Units)).Msg("uploading files")
	if err := p.UploadFiles(ctx, uc); err != nil {
		return errors.Errorf("uploading with %s: %w", p.Name(), err)
	}

	if !w.operations.Execute(ctx, target.EventAfterDeployed, rs.target, remotePaths, w.operationHooks(rs, target.EventAfterDeployed)) {
		w.output.AppendLine(w.formatter.CanceledByOperation(rs.name))
		return nil
	}

	if len(rs.files) > 1 {
		w.output.AppendLine(w.formatter.Finished(rs.name))
	}

	return nil
}

// 📦 buildUnits creates the units of one plugin invocation. Files outside every scope directory
// of the target are skipped.
func (w *Workspace) buildUnits(ctx context.Context, rs *runState) []*upload.Unit {
	units := make([]*upload.Unit, 0, len(rs.files))
	for _, file := range rs.files {
		np, ok := target.GetNameAndPathForFileDeployment(rs.target, file, rs.scopeDirs)
		if !ok {
			continue
		}

		u := &upload.Unit{
			File:        file,
			Destination: np,
			Transformer: rs.transformer,
			TransformContext: transform.Context{
				Operation:  transform.OperationDeploy,
				File:       file,
				RemoteFile: np.Full(),
				Target:     rs.target,
				Options:    rs.transformerOptions,
				StateKey:   rs.target.StateKey(),
			},
			StateKey: rs.target.StateKey,
		}
		u.OnBeforeUpload = w.beforeUpload(rs, u)
		u.OnUploadCompleted = w.uploadCompleted(rs, u)

		w.tracker.TrackFile(ctx, status.FileInfo{File: file, Remote: u.RemotePath(), Target: rs.name, Status: status.StatusPending})
		units = append(units, u)
	}
	return units
}

func (w *Workspace) beforeUpload(rs *runState, u *upload.Unit) func(ctx context.Context, destination string) {
	return func(ctx context.Context, destination string) {
		if destination == "" {
			destination = u.RemotePath()
		}
		destination = fmt.Sprintf("%s (%s)", destination, rs.name)

		w.output.Append(w.formatter.Deploying(u.File, destination) + " ")
		w.tracker.TrackFile(ctx, status.FileInfo{
			File:   u.File,
			Remote: u.RemotePath(),
			Target: rs.name,
			Status: status.StatusUploading,
		})

		if err := rs.controller.WaitWhileCancelling(ctx); err != nil {
			zerolog.Ctx(ctx).Debug().Err(err).Msg("stopped waiting for cancel confirmation")
		}

		// the upload still happens, the annotation only tells the user
		if rs.controller.Token().IsRequested() {
			w.output.AppendLine(w.formatter.Canceled())
		}
	}
}

func (w *Workspace) uploadCompleted(rs *runState, u *upload.Unit) func(ctx context.Context, err error) {
	return func(ctx context.Context, err error) {
		info := status.FileInfo{
			File:   u.File,
			Remote: u.RemotePath(),
			Target: rs.name,
			Status: status.StatusUploaded,
		}

		if err != nil {
			info.Status = status.StatusFailed
			if rs.controller.Token().IsRequested() {
				info.Status = status.StatusCanceled
			}
			info.Error = err
		} else if w.state.Clear(rs.target.StateKey(), w.stateFile(u.File)) {
			zerolog.Ctx(ctx).Debug().Str("file", u.File).Msg("sync when open state cleared")
		}

		w.output.AppendLine(w.formatter.Result(err))
		w.tracker.TrackFile(ctx, info)
		w.tracker.Step(ctx)
	}
}

// operationHooks writes one output line per operation. For prepare operations a requested
// reload is recorded in rs.
func (w *Workspace) operationHooks(rs *runState, ev target.Event) operation.Hooks {
	return operation.Hooks{
		OnBeforeEach: func(ctx context.Context, op target.Operation, index int) {
			w.output.Append(w.formatter.Operation(ev.String(), operation.OperationName(op, index)))
		},
		OnEachCompleted: func(ctx context.Context, op target.Operation, index int, err error, doesContinue bool) {
			w.output.AppendLine(w.formatter.Result(err))
		},
		OnReloadFiles: func() {
			rs.reloadRequested = true
		},
	}
}
