package operation

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"github.com/walteh/deployrc/pkg/remote"
	"gitlab.com/tozd/go/errors"
)

func init() {
	Register("ssh", &SSHExecutor{})
}

// 🔑 SSHExecutor runs the "command" option on a remote host. Connection options are read from
// the operation first and fall back to the target's options (host, port, user, password,
// key_file, known_hosts).
type SSHExecutor struct {
	Connect func(ctx context.Context, o remote.SSHOptions) (remote.CommandRunner, error)
}

// Execute implements Executor
func (e *SSHExecutor) Execute(ctx context.Context, oc *Context) error {
	command := strings.TrimSpace(oc.Operation.Options["command"])
	if command == "" {
		return errors.Errorf("option command is required")
	}

	merged := make(map[string]string, len(oc.Target.Options)+len(oc.Operation.Options))
	for k, v := range oc.Target.Options {
		merged[k] = v
	}
	for k, v := range oc.Operation.Options {
		merged[k] = v
	}

	o, err := remote.SSHOptionsFrom(merged)
	if err != nil {
		return errors.Errorf("reading ssh options: %w", err)
	}

	connect := e.Connect
	if connect == nil {
		connect = remote.NewCommandRunner
	}

	runner, err := connect(ctx, o)
	if err != nil {
		return errors.Errorf("connecting: %w", err)
	}
	defer runner.Close()

	out, err := runner.RunCommand(ctx, command)
	zerolog.Ctx(ctx).Debug().Str("host", o.Host).Str("command", command).Str("output", out).Msg("ssh command finished")
	if err != nil {
		return err
	}

	return nil
}
