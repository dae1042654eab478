package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/deployrc/cmd/deployrc/opts"
	"github.com/walteh/deployrc/pkg/cancel"
	"github.com/walteh/deployrc/pkg/target"
)

func setupTestContext(t *testing.T) context.Context {
	logger := zerolog.New(zerolog.NewTestWriter(t)).With().Timestamp().Logger()
	return logger.WithContext(context.Background())
}

type fakeSpinner struct {
	mu      sync.Mutex
	texts   []string
	stopped bool
}

func (s *fakeSpinner) UpdateText(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, text)
}

func (s *fakeSpinner) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	return nil
}

func newTestConsole(interactive bool) (*console, *fakeSpinner) {
	spin := &fakeSpinner{}
	return &console{
		startSpinner: func(text string) (spinner, error) {
			spin.UpdateText(text)
			return spin, nil
		},
		confirm:     func(string) (bool, error) { return false, nil },
		interactive: interactive,
		bound:       make(map[*spinnerAffordance]cancel.Command),
	}, spin
}

func TestSpinnerAffordance(t *testing.T) {
	ctx := setupTestContext(t)
	c, spin := newTestConsole(true)

	a := c.NewAffordance(ctx, &target.Target{ID: "prod", Name: "prod"})
	ctrl := cancel.NewController(cancel.ControllerOptions{TargetName: "prod", Affordance: a, Confirmer: c})

	ctrl.Show()
	require.Len(t, c.commands(), 1, "show should bind the cancel command")
	assert.Equal(t, []string{"Cancel deployment to 'prod' (ctrl+c)"}, spin.texts)

	a.SetText("Waiting for 'staging' ...")
	assert.Equal(t, "Waiting for 'staging' ... (ctrl+c)", spin.texts[len(spin.texts)-1])

	ctrl.Dispose()
	assert.Empty(t, c.commands(), "dispose should unbind the command")
	assert.True(t, spin.stopped, "dispose should stop the spinner")
}

func TestSpinnerAffordanceWithoutTerminal(t *testing.T) {
	ctx := setupTestContext(t)
	c, spin := newTestConsole(false)
	c.startSpinner = nil

	a := c.NewAffordance(ctx, &target.Target{ID: "prod", Name: "prod"})
	a.SetText("Cancel deployment to 'prod'")
	a.Show()
	a.Dispose()

	assert.Empty(t, spin.texts, "no spinner should be started")
}

func TestConsoleInterrupt(t *testing.T) {
	tests := []struct {
		name          string
		interactive   bool
		answer        bool
		wantCancelled bool
	}{
		{name: "not_interactive_cancels", interactive: false, wantCancelled: true},
		{name: "confirmed", interactive: true, answer: true, wantCancelled: true},
		{name: "declined", interactive: true, answer: false, wantCancelled: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := setupTestContext(t)
			c, _ := newTestConsole(tt.interactive)

			var asked atomic.Int32
			c.confirm = func(string) (bool, error) {
				asked.Add(1)
				return tt.answer, nil
			}

			ctrl := cancel.NewController(cancel.ControllerOptions{
				TargetName: "prod",
				Affordance: c.NewAffordance(ctx, &target.Target{ID: "prod", Name: "prod"}),
				Confirmer:  c,
			})
			ctrl.Show()
			defer ctrl.Dispose()

			c.interrupt(ctx, func() { t.Error("stop should not be called while a deploy is running") })

			if tt.wantCancelled {
				require.Eventually(t, ctrl.Token().IsRequested, time.Second, 5*time.Millisecond, "token should be cancelled")
			} else {
				require.Eventually(t, func() bool { return asked.Load() == 1 && !ctrl.IsCancelling() }, time.Second, 5*time.Millisecond)
				assert.False(t, ctrl.Token().IsRequested(), "declined cancel should keep running")
				assert.Len(t, c.commands(), 1, "command should be bound again")
			}
		})
	}
}

func TestConsoleInterruptWithoutDeploy(t *testing.T) {
	c, _ := newTestConsole(true)

	stopped := false
	c.interrupt(setupTestContext(t), func() { stopped = true })

	assert.True(t, stopped, "interrupt without bound commands should stop")
}

func TestFormatVersion(t *testing.T) {
	out := FormatVersion(&VersionInfo{
		Version:   "v1.2.3",
		GoVersion: "go1.25.0",
		Platform:  "linux/amd64",
		Revision:  "abc123",
		Time:      "2025-01-01T00:00:00Z",
		Modified:  true,
	})

	assert.Contains(t, out, "🚀 deployrc version info:")
	assert.Contains(t, out, "Version:   v1.2.3")
	assert.Contains(t, out, "Revision:  abc123 (modified)")
	assert.Contains(t, out, "Platform:  linux/amd64")
}

func TestGetVersionInfo(t *testing.T) {
	info := GetVersionInfo()
	assert.NotEmpty(t, info.Version)
	assert.NotEmpty(t, info.GoVersion)
	assert.Contains(t, info.Platform, "/")
}

func TestRootCmdStopsListening(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "deployrc.yaml")
	cfgBody := "targets:\n  - name: out\n    type: local\n    options:\n      dir: " + filepath.Join(dir, "out") + "\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfgBody), 0644))

	tests := []struct {
		name          string
		args          []string
		errContains   string
		wantListening int32
	}{
		{
			name:          "failing_command",
			args:          []string{"--debug", "--config", cfgPath, "deploy", "--target", "missing", filepath.Join(dir, "a.txt")},
			errContains:   `unknown target "missing"`,
			wantListening: 1,
		},
		{
			name:          "command_without_config",
			args:          []string{"version"},
			wantListening: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestConsole(false)
			rootCmd, stopListening := newRootCmd(&opts.RootOpts{}, c)
			rootCmd.SetOut(&bytes.Buffer{})
			rootCmd.SetArgs(tt.args)

			err := rootCmd.ExecuteContext(setupTestContext(t))
			if tt.errContains != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantListening, c.listeners.Load(), "listener state once Execute returned")

			stopListening()
			stopListening()
			assert.Zero(t, c.listeners.Load(), "listener should be stopped")
		})
	}
}
