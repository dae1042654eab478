package opts

import (
	"github.com/walteh/deployrc/pkg/config"
	"github.com/walteh/deployrc/pkg/deploy"
	"github.com/walteh/deployrc/pkg/log"
	"github.com/walteh/deployrc/pkg/state"
)

// RootOpts contains shared options used by all commands.
// It is filled once the root flags are parsed, before any command runs.
type RootOpts struct {
	Config    *config.DeployrcConfig
	State     *state.State
	Workspace *deploy.Workspace
	Logger    *log.Logger
}
