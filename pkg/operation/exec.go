package operation

import (
	"context"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

func init() {
	Register("exec", &ShellExecutor{})
}

// 🐚 ShellExecutor runs the "command" option through the local shell.
// The command sees DEPLOYRC_TARGET, DEPLOYRC_TARGET_TYPE, DEPLOYRC_EVENT and DEPLOYRC_FILES
// (newline separated remote paths) in its environment.
type ShellExecutor struct{}

// Execute implements Executor
func (e *ShellExecutor) Execute(ctx context.Context, oc *Context) error {
	command := strings.TrimSpace(oc.Operation.Options["command"])
	if command == "" {
		return errors.Errorf("option command is required")
	}

	shell, flag := "sh", "-c"
	if runtime.GOOS == "windows" {
		shell, flag = "cmd", "/C"
	}

	cmd := exec.CommandContext(ctx, shell, flag, command)
	cmd.Dir = oc.Operation.Options["cwd"]
	cmd.Env = append(os.Environ(),
		"DEPLOYRC_TARGET="+oc.Target.DisplayName(),
		"DEPLOYRC_TARGET_TYPE="+oc.Target.NormalizedType(),
		"DEPLOYRC_EVENT="+oc.Event.String(),
		"DEPLOYRC_FILES="+strings.Join(oc.Files, "\n"),
	)

	out, err := cmd.CombinedOutput()
	zerolog.Ctx(ctx).Debug().Str("command", command).Bytes("output", out).Msg("command finished")
	if err != nil {
		return errors.Errorf("running %q: %w (output: %s)", command, err, strings.TrimSpace(string(out)))
	}

	return nil
}
