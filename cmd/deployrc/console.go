package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"

	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
	"github.com/walteh/deployrc/pkg/cancel"
	"github.com/walteh/deployrc/pkg/target"
	"golang.org/x/term"
)

// spinner is the part of a pterm spinner an affordance drives
type spinner interface {
	UpdateText(text string)
	Stop() error
}

type startSpinnerFunc func(text string) (spinner, error)

func startPtermSpinner(text string) (spinner, error) {
	s, err := pterm.DefaultSpinner.WithRemoveWhenDone(true).Start(text)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func ptermConfirm(message string) (bool, error) {
	return pterm.DefaultInteractiveConfirm.WithDefaultValue(false).Show(message)
}

// 🖥️ console owns the cancel affordances of the terminal. Every run shows a spinner and
// Ctrl+C triggers the cancel commands bound at that moment.
type console struct {
	startSpinner startSpinnerFunc // nil when stdout is not a terminal
	confirm      func(message string) (bool, error)
	interactive  bool

	mu    sync.Mutex
	bound map[*spinnerAffordance]cancel.Command

	confirmMu sync.Mutex

	listeners atomic.Int32
}

func newConsole() *console {
	c := &console{
		confirm:     ptermConfirm,
		interactive: term.IsTerminal(int(os.Stdin.Fd())),
		bound:       make(map[*spinnerAffordance]cancel.Command),
	}
	if term.IsTerminal(int(os.Stdout.Fd())) {
		c.startSpinner = startPtermSpinner
	}
	return c
}

// NewAffordance creates the cancel affordance of one run
func (c *console) NewAffordance(ctx context.Context, t *target.Target) cancel.Affordance {
	return &spinnerAffordance{
		console: c,
		logger:  zerolog.Ctx(ctx).With().Str("target", t.DisplayName()).Logger(),
	}
}

// Confirm asks on the terminal, one question at a time. Without a terminal every
// cancel request is confirmed.
func (c *console) Confirm(ctx context.Context, message string) (bool, error) {
	if !c.interactive {
		return true, nil
	}
	c.confirmMu.Lock()
	defer c.confirmMu.Unlock()

	if err := ctx.Err(); err != nil {
		return false, err
	}
	return c.confirm(message)
}

func (c *console) bind(a *spinnerAffordance, cmd cancel.Command) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cmd == nil {
		delete(c.bound, a)
		return
	}
	c.bound[a] = cmd
}

func (c *console) commands() []cancel.Command {
	c.mu.Lock()
	defer c.mu.Unlock()
	cmds := make([]cancel.Command, 0, len(c.bound))
	for _, cmd := range c.bound {
		cmds = append(cmds, cmd)
	}
	return cmds
}

// interrupt invokes every bound cancel command. With nothing bound, stop is called.
func (c *console) interrupt(ctx context.Context, stop func()) {
	cmds := c.commands()
	if len(cmds) == 0 {
		zerolog.Ctx(ctx).Debug().Msg("interrupt without running deploy, stopping")
		stop()
		return
	}
	for _, cmd := range cmds {
		go cmd(ctx)
	}
}

// 🛑 listen routes SIGINT to interrupt until the returned func is called
func (c *console) listen(ctx context.Context, stop func()) func() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)

	c.listeners.Add(1)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case <-sigs:
				c.interrupt(ctx, stop)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			signal.Stop(sigs)
			close(done)
			c.listeners.Add(-1)
		})
	}
}

// 🔘 spinnerAffordance shows the cancel state of a run as a spinner
type spinnerAffordance struct {
	console *console
	logger  zerolog.Logger

	mu      sync.Mutex
	text    string
	tooltip string
	spin    spinner
}

func (a *spinnerAffordance) SetText(text string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.text = text
	if a.spin != nil {
		a.spin.UpdateText(text + " (ctrl+c)")
	}
}

func (a *spinnerAffordance) SetTooltip(tooltip string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tooltip = tooltip
}

func (a *spinnerAffordance) SetCommand(cmd cancel.Command) {
	a.console.bind(a, cmd)
}

func (a *spinnerAffordance) Show() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.spin != nil || a.console.startSpinner == nil {
		a.logger.Debug().Str("text", a.text).Msg("deploy running")
		return
	}
	s, err := a.console.startSpinner(a.text + " (ctrl+c)")
	if err != nil {
		a.logger.Warn().Err(err).Msg("starting spinner")
		return
	}
	a.spin = s
}

func (a *spinnerAffordance) Dispose() {
	a.console.bind(a, nil)

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.spin == nil {
		return
	}
	if err := a.spin.Stop(); err != nil {
		a.logger.Debug().Err(err).Msg("stopping spinner")
	}
	a.spin = nil
}
