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

package target

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// 📅 Event is a lifecycle phase of a deploy run that can carry target operations
type Event int

const (
	EventPrepare       Event = iota // before anything else, may request a file list reload
	EventBeforeDeploy               // before each plugin uploads
	EventAfterDeployed              // after each plugin uploaded
)

// String returns a string representation of Event
func (e Event) String() string {
	switch e {
	case EventPrepare:
		return "prepare"
	case EventBeforeDeploy:
		return "beforeDeploy"
	case EventAfterDeployed:
		return "deployed"
	default:
		return "unknown"
	}
}

// ⚙️ Operation is a configured side effect bound to a lifecycle event of a target
type Operation struct {
	Type    string            // executor type tag (exec, http, ssh, wait)
	Name    string            // optional display name
	Options map[string]string // executor specific options

	// IgnoreIfFail makes the operation best effort: a failure is reported but the chain continues
	IgnoreIfFail bool

	// ReloadFiles asks the orchestrator to reload the file list once the operation succeeded.
	// Only honored for prepare operations.
	ReloadFiles bool
}

// 📁 FolderMapping maps local directories (doublestar patterns, relative to the scope
// directory) to a remote directory
type FolderMapping struct {
	Source      string
	Destination string
}

// 🎯 Target is a configured remote destination for file transfer
type Target struct {
	ID          string
	Name        string
	Type        string
	Description string

	// Group names a set of mutually exclusive targets. Empty means the target only conflicts with itself.
	Group string

	Options  map[string]string
	Ignore   []string
	Mappings []FolderMapping

	Transformer        string
	TransformerOptions map[string]string

	Password        string
	PasswordKeyring string // keyring user holding the password, service is "deployrc"

	SyncWhenOpen bool

	Prepare      []Operation
	BeforeDeploy []Operation
	Deployed     []Operation

	inProgress atomic.Int32
}

// DisplayName returns the name shown to the user
func (t *Target) DisplayName() string {
	if t == nil {
		return ""
	}
	if name := strings.TrimSpace(t.Name); name != "" {
		return name
	}
	return fmt.Sprintf("Target #%s", t.ID)
}

// NormalizedType returns the lowercased, trimmed type tag
func (t *Target) NormalizedType() string {
	return NormalizeType(t.Type)
}

// StateKey returns the key identifying this target in per-target state
func (t *Target) StateKey() string {
	return t.ID
}

// Option returns an option value or the given default
func (t *Target) Option(key, def string) string {
	if v, ok := t.Options[key]; ok && v != "" {
		return v
	}
	return def
}

// Operations returns the operations configured for the given event
func (t *Target) Operations(ev Event) []Operation {
	switch ev {
	case EventPrepare:
		return t.Prepare
	case EventBeforeDeploy:
		return t.BeforeDeploy
	case EventAfterDeployed:
		return t.Deployed
	default:
		return nil
	}
}

// 🚧 MarkInProgress annotates the target as part of an active session
func (t *Target) MarkInProgress() {
	t.inProgress.Add(1)
}

// UnmarkInProgress removes one in-progress annotation
func (t *Target) UnmarkInProgress() {
	t.inProgress.Add(-1)
}

// InProgress reports whether a session currently holds this target
func (t *Target) InProgress() bool {
	return t.inProgress.Load() > 0
}

// NormalizeType lowercases and trims a type tag
func NormalizeType(typ string) string {
	return strings.ToLower(strings.TrimSpace(typ))
}
