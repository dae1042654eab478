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

// Package local uploads into a directory of the local file system (targets of type "local").
package local

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/walteh/deployrc/pkg/upload"
	"gitlab.com/tozd/go/errors"
)

func init() {
	upload.Register("local", New())
}

// 📁 Plugin copies files below the "dir" option of the target
type Plugin struct{}

// 🏭 New creates a new local plugin
func New() *Plugin {
	return &Plugin{}
}

// Name implements upload.Plugin
func (p *Plugin) Name() string {
	return "local"
}

// UploadFiles implements upload.Plugin
func (p *Plugin) UploadFiles(ctx context.Context, uc *upload.Context) error {
	dir := strings.TrimSpace(uc.Target.Option("dir", ""))
	if dir == "" {
		return errors.Errorf("option dir is required")
	}

	root, err := filepath.Abs(dir)
	if err != nil {
		return errors.Errorf("resolving %s: %w", dir, err)
	}

	failed := upload.UploadEach(ctx, uc, func(ctx context.Context, u *upload.Unit, data []byte) error {
		return WriteFileAtomic(filepath.Join(root, filepath.FromSlash(u.RemotePath())), data)
	})

	zerolog.Ctx(ctx).Debug().Str("dir", root).Int("files", len(uc.Units)).Int("failed", failed).Msg("local upload finished")
	return nil
}

// 💾 WriteFileAtomic writes content next to path and renames it into place, creating parent
// directories
func WriteFileAtomic(path string, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Errorf("creating parent directories: %w", err)
	}

	tempPath := path + ".tmp"

	if err := os.WriteFile(tempPath, content, 0644); err != nil {
		return errors.Errorf("writing temp file: %w", err)
	}

	// Rename temp file to target (atomic operation)
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath) // Clean up temp file
		return errors.Errorf("renaming temp file: %w", err)
	}

	return nil
}
