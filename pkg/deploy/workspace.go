// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package deploy

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
	"github.com/walteh/deployrc/pkg/cancel"
	"github.com/walteh/deployrc/pkg/log"
	"github.com/walteh/deployrc/pkg/operation"
	"github.com/walteh/deployrc/pkg/session"
	"github.com/walteh/deployrc/pkg/state"
	"github.com/walteh/deployrc/pkg/status"
	"github.com/walteh/deployrc/pkg/target"
	"github.com/walteh/deployrc/pkg/transform"
	"github.com/walteh/deployrc/pkg/upload"
	"gitlab.com/tozd/go/errors"
)

// 📣 Notifier shows messages to the user outside of the run output
type Notifier interface {
	Info(msg string)
	Warning(msg string)
	Error(msg string)
}

// AffordanceFactory creates the cancel affordance of a run
type AffordanceFactory func(ctx context.Context, t *target.Target) cancel.Affordance

// ⚙️ Options configures a Workspace. Zero values fall back to the defaults noted per field.
type Options struct {
	Root    string           // workspace root, required
	Ignore  []string         // workspace ignore globs, relative to Root
	Targets []*target.Target // configured targets, used for sync-when-open markers

	Plugins      *upload.Registry    // default upload.DefaultRegistry()
	Transformers *transform.Registry // default transform.DefaultRegistry()
	Secrets      transform.SecretSource
	Operations   *operation.Runner // default synchronous runner on operation.DefaultRegistry()
	Sessions     *session.Registry // default session.Default
	State        *state.State      // default memory store

	Output    status.Output    // default status.Discard
	Formatter status.Formatter // default status.DefaultFormatter
	Tracker   *status.Tracker  // default fresh tracker
	Notifier  Notifier         // default discarding logger

	NewAffordance AffordanceFactory // default invisible affordance
	Confirmer     cancel.Confirmer  // default cancel.AlwaysConfirm
}

// 🏠 Workspace deploys files below a root directory to its targets
type Workspace struct {
	root   string
	ignore []string

	targets       []*target.Target
	plugins       *upload.Registry
	transformers  *transform.Registry
	secrets       transform.SecretSource
	operations    *operation.Runner
	sessions      *session.Registry
	state         *state.State
	output        status.Output
	formatter     status.Formatter
	tracker       *status.Tracker
	notifier      Notifier
	newAffordance AffordanceFactory
	confirmer     cancel.Confirmer

	finalized atomic.Bool
}

// 🏭 New creates a workspace
func New(opts Options) (*Workspace, error) {
	if strings.TrimSpace(opts.Root) == "" {
		return nil, errors.New("workspace root is required")
	}
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, errors.Errorf("resolving workspace root: %w", err)
	}

	w := &Workspace{
		root:          root,
		ignore:        append([]string(nil), opts.Ignore...),
		targets:       opts.Targets,
		plugins:       opts.Plugins,
		transformers:  opts.Transformers,
		secrets:       opts.Secrets,
		operations:    opts.Operations,
		sessions:      opts.Sessions,
		state:         opts.State,
		output:        opts.Output,
		formatter:     opts.Formatter,
		tracker:       opts.Tracker,
		notifier:      opts.Notifier,
		newAffordance: opts.NewAffordance,
		confirmer:     opts.Confirmer,
	}

	if w.plugins == nil {
		w.plugins = upload.DefaultRegistry()
	}
	if w.transformers == nil {
		w.transformers = transform.DefaultRegistry()
	}
	if w.secrets == nil {
		w.secrets = transform.KeyringSecrets{}
	}
	if w.operations == nil {
		w.operations = operation.NewRunner(nil, false)
	}
	if w.sessions == nil {
		w.sessions = session.Default
	}
	if w.state == nil {
		w.state = state.NewMemory()
	}
	if w.output == nil {
		w.output = status.Discard
	}
	if w.formatter == nil {
		w.formatter = status.NewDefaultFormatter()
	}
	if w.tracker == nil {
		w.tracker = status.NewTracker(w.formatter)
	}
	if w.notifier == nil {
		w.notifier = log.Discard()
	}
	if w.newAffordance == nil {
		w.newAffordance = func(context.Context, *target.Target) cancel.Affordance { return cancel.NopAffordance{} }
	}
	if w.confirmer == nil {
		w.confirmer = cancel.AlwaysConfirm
	}

	return w, nil
}

// Root returns the absolute workspace root
func (w *Workspace) Root() string {
	return w.root
}

// Tracker returns the tracker the runs of this workspace report to
func (w *Workspace) Tracker() *status.Tracker {
	return w.tracker
}

// State returns the sync-when-open store
func (w *Workspace) State() *state.State {
	return w.state
}

// 🛑 Finalize puts the workspace into its shutdown state: runs started afterwards return immediately
func (w *Workspace) Finalize() {
	w.finalized.Store(true)
}

// IsFinalized reports whether Finalize was called
func (w *Workspace) IsFinalized() bool {
	return w.finalized.Load()
}

// CanHandle reports whether file is located below the workspace root
func (w *Workspace) CanHandle(file string) bool {
	_, ok := w.relative(file)
	return ok
}

// relative returns the slash separated path of file relative to the root
func (w *Workspace) relative(file string) (string, bool) {
	abs, err := filepath.Abs(file)
	if err != nil {
		return "", false
	}
	rel, err := filepath.Rel(w.root, abs)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// 🙈 IsFileIgnored reports whether file matches a workspace ignore glob or an ignore glob of t.
// The state file is always ignored.
func (w *Workspace) IsFileIgnored(file string, t *target.Target) bool {
	rel, inside := w.relative(file)
	if !inside {
		rel = filepath.ToSlash(file)
	}

	if filepath.Base(file) == state.FileName {
		return true
	}

	patterns := w.ignore
	if t != nil && len(t.Ignore) > 0 {
		patterns = append(append([]string(nil), w.ignore...), t.Ignore...)
	}

	for _, p := range patterns {
		p = filepath.ToSlash(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
		// a directory pattern ignores everything below it
		if ok, _ := doublestar.Match(strings.TrimSuffix(p, "/")+"/**", rel); ok {
			return true
		}
	}
	return false
}

// normalize drops empty and ignored entries
func (w *Workspace) normalize(files []string, t *target.Target) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		if strings.TrimSpace(f) == "" || w.IsFileIgnored(f, t) {
			continue
		}
		out = append(out, f)
	}
	return out
}

// 🔍 FindFilesByFilter returns the absolute paths of the files below the root matching one of
// the include globs and none of the exclude globs, sorted
func (w *Workspace) FindFilesByFilter(ctx context.Context, include, exclude []string) ([]string, error) {
	fsys := os.DirFS(w.root)
	seen := map[string]struct{}{}

	for _, pattern := range include {
		pattern = strings.TrimPrefix(filepath.ToSlash(strings.TrimSpace(pattern)), "/")
		if pattern == "" {
			continue
		}
		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, errors.Errorf("matching %q: %w", pattern, err)
		}
		for _, m := range matches {
			seen[m] = struct{}{}
		}
	}

	files := make([]string, 0, len(seen))
	for m := range seen {
		if excluded(m, exclude) {
			continue
		}
		files = append(files, filepath.Join(w.root, filepath.FromSlash(m)))
	}
	sort.Strings(files)

	zerolog.Ctx(ctx).Debug().Strs("include", include).Strs("exclude", exclude).Int("files", len(files)).Msg("files found by filter")

	return files, nil
}

func excluded(rel string, exclude []string) bool {
	for _, p := range exclude {
		p = strings.TrimPrefix(filepath.ToSlash(strings.TrimSpace(p)), "/")
		if p == "" {
			continue
		}
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

// stateFile is the key of a file in the sync-when-open store
func (w *Workspace) stateFile(file string) string {
	if rel, ok := w.relative(file); ok {
		return rel
	}
	return filepath.ToSlash(file)
}

// 📝 MarkChanged records file as changed for every target with sync-when-open enabled
func (w *Workspace) MarkChanged(ctx context.Context, file string) error {
	if !w.CanHandle(file) {
		return errors.Errorf("file %s is not part of workspace %s", file, w.root)
	}

	for _, t := range w.targets {
		if !t.SyncWhenOpen || w.IsFileIgnored(file, t) {
			continue
		}
		w.state.Mark(t.StateKey(), w.stateFile(file))
		zerolog.Ctx(ctx).Debug().Str("target", t.DisplayName()).Str("file", file).Msg("marked for sync")
	}

	return w.state.Save(ctx)
}

// PendingFiles returns the absolute paths of the files marked for t
func (w *Workspace) PendingFiles(t *target.Target) []string {
	if t == nil {
		return nil
	}
	var files []string
	for _, f := range w.state.Files(t.StateKey()) {
		if filepath.IsAbs(filepath.FromSlash(f)) {
			files = append(files, filepath.FromSlash(f))
			continue
		}
		files = append(files, filepath.Join(w.root, filepath.FromSlash(f)))
	}
	return files
}
