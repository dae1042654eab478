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

package cancel

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// 🖱️ Command is bound to an affordance and invoked when the user triggers it
type Command func(ctx context.Context)

// 🔘 Affordance is the visible cancel control of a run
type Affordance interface {
	SetText(text string)
	SetTooltip(tooltip string)
	// SetCommand binds the command triggered by the user, nil unbinds it
	SetCommand(cmd Command)
	Show()
	Dispose()
}

// ❓ Confirmer asks the user whether a cancel request should really cancel
type Confirmer interface {
	Confirm(ctx context.Context, message string) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer
type ConfirmFunc func(ctx context.Context, message string) (bool, error)

// Confirm implements Confirmer
func (f ConfirmFunc) Confirm(ctx context.Context, message string) (bool, error) {
	return f(ctx, message)
}

// AlwaysConfirm confirms every cancel request
var AlwaysConfirm = ConfirmFunc(func(context.Context, string) (bool, error) { return true, nil })

// 🎮 Controller wires a cancellation source, the "is cancelling" guard and an affordance
// into the cancel flow of one run
type Controller struct {
	source     *Source
	guard      Guard
	affordance Affordance
	confirmer  Confirmer
	targetName string

	disposeOnce sync.Once
	disposed    atomic.Bool
}

// ControllerOptions configures a Controller
type ControllerOptions struct {
	TargetName string
	Affordance Affordance
	Confirmer  Confirmer
}

// 🏭 NewController creates a controller with a fresh cancellation source
func NewController(opts ControllerOptions) *Controller {
	if opts.Affordance == nil {
		opts.Affordance = NopAffordance{}
	}
	if opts.Confirmer == nil {
		opts.Confirmer = AlwaysConfirm
	}
	return &Controller{
		source:     NewSource(),
		affordance: opts.Affordance,
		confirmer:  opts.Confirmer,
		targetName: opts.TargetName,
	}
}

// Token returns the run's cancellation token
func (c *Controller) Token() *Token {
	return c.source.Token()
}

// Affordance returns the affordance the controller drives
func (c *Controller) Affordance() Affordance {
	return c.affordance
}

// Show binds the cancel command and shows the affordance
func (c *Controller) Show() {
	c.affordance.SetCommand(c.RequestCancel)
	c.RestoreText()
	c.affordance.Show()
}

// RestoreText resets the affordance text after it showed another state
func (c *Controller) RestoreText() {
	c.affordance.SetText(fmt.Sprintf("Cancel deployment to '%s'", c.targetName))
	c.affordance.SetTooltip("Click here to cancel the deployment")
}

// 🛑 RequestCancel is the command bound to the affordance. While the user confirms,
// IsCancelling reports true and WaitWhileCancelling blocks.
// Requests arriving after Dispose are ignored.
func (c *Controller) RequestCancel(ctx context.Context) {
	if c.disposed.Load() {
		return
	}
	if !c.guard.Begin() {
		return
	}
	defer func() {
		if !c.Token().IsRequested() && !c.disposed.Load() {
			c.affordance.SetCommand(c.RequestCancel)
			c.RestoreText()
		}
		c.guard.End()
	}()

	c.affordance.SetCommand(nil)
	c.affordance.SetText("Cancelling deployment ...")

	ok, err := c.confirmer.Confirm(ctx, fmt.Sprintf("Do you really want to cancel the deployment to '%s'?", c.targetName))
	if c.disposed.Load() {
		zerolog.Ctx(ctx).Debug().Str("target", c.targetName).Msg("run finished while confirming cancel")
		return
	}
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("target", c.targetName).Msg("asking for cancel confirmation")
		return
	}
	if ok {
		zerolog.Ctx(ctx).Debug().Str("target", c.targetName).Msg("cancellation confirmed")
		c.source.Cancel()
	}
}

// IsCancelling reports whether a cancel request is being confirmed
func (c *Controller) IsCancelling() bool {
	return c.guard.Active()
}

// WaitWhileCancelling blocks while a cancel request is being confirmed
func (c *Controller) WaitWhileCancelling(ctx context.Context) error {
	return c.guard.Wait(ctx)
}

// 🧹 Dispose unbinds the command, disposes the affordance and the cancellation source
func (c *Controller) Dispose() {
	c.disposeOnce.Do(func() {
		c.disposed.Store(true)
		c.affordance.SetCommand(nil)
		c.affordance.Dispose()
		c.source.Dispose()
	})
}

// NopAffordance is an invisible affordance
type NopAffordance struct{}

func (NopAffordance) SetText(string)     {}
func (NopAffordance) SetTooltip(string)  {}
func (NopAffordance) SetCommand(Command) {}
func (NopAffordance) Show()              {}
func (NopAffordance) Dispose()           {}
