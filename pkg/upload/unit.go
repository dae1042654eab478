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

package upload

import (
	"context"
	"os"

	"github.com/walteh/deployrc/pkg/cancel"
	"github.com/walteh/deployrc/pkg/target"
	"github.com/walteh/deployrc/pkg/transform"
	"gitlab.com/tozd/go/errors"
)

// 📄 Unit is one local file queued for upload within a single deploy run
type Unit struct {
	File        string             // absolute local path
	Destination target.NameAndPath // resolved remote name and directory

	Transformer      transform.Transformer
	TransformContext transform.Context
	StateKey         func() string

	// OnBeforeUpload is called with the destination a plugin writes to, empty means RemotePath
	OnBeforeUpload func(ctx context.Context, destination string)
	// OnUploadCompleted is called once per upload attempt with its outcome
	OnUploadCompleted func(ctx context.Context, err error)
}

// RemotePath returns the remote path relative to the target root
func (u *Unit) RemotePath() string {
	return u.Destination.Full()
}

// 📖 Read returns the local content after the transformer ran
func (u *Unit) Read(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(u.File)
	if err != nil {
		return nil, errors.Errorf("reading %s: %w", u.File, err)
	}

	if u.Transformer == nil {
		return data, nil
	}

	tc := u.TransformContext
	if u.StateKey != nil {
		tc.StateKey = u.StateKey()
	}

	out, err := u.Transformer(ctx, data, tc)
	if err != nil {
		return nil, errors.Errorf("transforming %s: %w", u.File, err)
	}
	return out, nil
}

// BeforeUpload notifies the observer that the upload of this unit starts
func (u *Unit) BeforeUpload(ctx context.Context, destination string) {
	if u.OnBeforeUpload != nil {
		u.OnBeforeUpload(ctx, destination)
	}
}

// UploadCompleted notifies the observer about the outcome of the upload
func (u *Unit) UploadCompleted(ctx context.Context, err error) {
	if u.OnUploadCompleted != nil {
		u.OnUploadCompleted(ctx, err)
	}
}

// 📦 Context is what a plugin gets for one upload call
type Context struct {
	Token  *cancel.Token
	Units  []*Unit
	Target *target.Target
}

// IsCancelling reports whether cancellation of the run was requested. Evaluated on every call.
func (c *Context) IsCancelling() bool {
	return c.Token.IsRequested()
}

// RemotePaths returns the remote paths of all units
func (c *Context) RemotePaths() []string {
	paths := make([]string, len(c.Units))
	for i, u := range c.Units {
		paths[i] = u.RemotePath()
	}
	return paths
}
