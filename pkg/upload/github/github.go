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

// Package github commits uploaded files into a GitHub repository (targets of type "github").
package github

import (
	"context"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/google/go-github/v60/github"
	"github.com/rs/zerolog"
	"github.com/walteh/deployrc/pkg/upload"
	"gitlab.com/tozd/go/errors"
)

func init() {
	upload.Register("github", New())
}

// 🐙 Plugin writes every unit as a commit through the contents API.
//
// Options: "repo" (owner/name, required), "branch" (default branch when empty), "dir" (path
// prefix inside the repository), "message" (commit message, %s is the remote path) and "token"
// (falls back to GITHUB_TOKEN).
type Plugin struct {
	NewClient func(token string) *github.Client
}

// 🏭 New creates a new github plugin
func New() *Plugin {
	return &Plugin{
		NewClient: func(token string) *github.Client {
			return github.NewClient(nil).WithAuthToken(token)
		},
	}
}

// Name implements upload.Plugin
func (p *Plugin) Name() string {
	return "github"
}

// 🔍 parseRepo parses an owner/name repository reference
func parseRepo(repo string) (owner, name string, err error) {
	repo = strings.TrimSuffix(strings.TrimSpace(repo), ".git")
	parts := strings.Split(repo, "/")
	if len(parts) < 2 || parts[len(parts)-2] == "" || parts[len(parts)-1] == "" {
		return "", "", errors.Errorf("invalid repository format: %s", repo)
	}

	return parts[len(parts)-2], parts[len(parts)-1], nil
}

// UploadFiles implements upload.Plugin
func (p *Plugin) UploadFiles(ctx context.Context, uc *upload.Context) error {
	owner, name, err := parseRepo(uc.Target.Option("repo", ""))
	if err != nil {
		return err
	}

	token := uc.Target.Option("token", os.Getenv("GITHUB_TOKEN"))
	if token == "" {
		return errors.New("GITHUB_TOKEN environment variable not set")
	}

	client := p.NewClient(token)
	branch := uc.Target.Option("branch", "")
	dir := strings.Trim(uc.Target.Option("dir", ""), "/")
	message := uc.Target.Option("message", "deploy %s")

	failed := upload.UploadEach(ctx, uc, func(ctx context.Context, u *upload.Unit, data []byte) error {
		filePath := strings.TrimPrefix(path.Join(dir, u.RemotePath()), "/")
		return putFile(ctx, client, owner, name, branch, filePath, strings.ReplaceAll(message, "%s", u.RemotePath()), data)
	})

	zerolog.Ctx(ctx).Debug().Str("repo", owner+"/"+name).Int("files", len(uc.Units)).Int("failed", failed).Msg("github upload finished")
	return nil
}

// 📝 putFile creates or updates one file. The current blob sha is needed for updates.
func putFile(ctx context.Context, client *github.Client, owner, repo, branch, filePath, message string, content []byte) error {
	opts := &github.RepositoryContentFileOptions{
		Message: github.String(message),
		Content: content,
	}
	if branch != "" {
		opts.Branch = github.String(branch)
	}

	existing, _, resp, err := client.Repositories.GetContents(ctx, owner, repo, filePath, &github.RepositoryContentGetOptions{Ref: branch})
	switch {
	case err == nil && existing != nil:
		opts.SHA = existing.SHA
		if _, _, err := client.Repositories.UpdateFile(ctx, owner, repo, filePath, opts); err != nil {
			return errors.Errorf("updating %s: %w", filePath, err)
		}
	case resp != nil && resp.StatusCode == http.StatusNotFound:
		if _, _, err := client.Repositories.CreateFile(ctx, owner, repo, filePath, opts); err != nil {
			return errors.Errorf("creating %s: %w", filePath, err)
		}
	case err != nil:
		return errors.Errorf("getting %s: %w", filePath, err)
	default:
		return errors.Errorf("%s is a directory", filePath)
	}

	return nil
}
