package operation

import (
	"context"
	"strings"
	"time"

	"gitlab.com/tozd/go/errors"
)

func init() {
	Register("wait", &WaitExecutor{})
}

// ⏳ WaitExecutor sleeps for the "duration" option (default 1s)
type WaitExecutor struct{}

// Execute implements Executor
func (e *WaitExecutor) Execute(ctx context.Context, oc *Context) error {
	d := time.Second
	if s := strings.TrimSpace(oc.Operation.Options["duration"]); s != "" {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return errors.Errorf("invalid duration %q: %w", s, err)
		}
		d = parsed
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
