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

// Package state keeps the per-target "sync when open" markers of a workspace.
//
// A marker for (target, file) means the file changed locally and has not been uploaded to the
// target since. Markers are cleared by successful uploads and persisted to .deployrc.lock.
package state

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

const (
	// FileName is the name of the state file inside the workspace root
	FileName = ".deployrc.lock"
	// SchemaVersion is written to every state file
	SchemaVersion = "1.0.0"
)

type stateFile struct {
	SchemaVersion string              `json:"schema_version"`
	LastUpdated   time.Time           `json:"last_updated"`
	SyncWhenOpen  map[string][]string `json:"sync_when_open"`
}

// 💾 State is the sync-when-open store. All methods are safe for concurrent use.
type State struct {
	path string // empty for memory only stores

	mu          sync.Mutex
	saveMu      sync.Mutex // serializes snapshot, write and rename of Save
	lastUpdated time.Time
	entries     map[string]map[string]struct{} // target key -> files
}

// 🏭 New creates a store persisted to dir/.deployrc.lock
func New(dir string) (*State, error) {
	if dir == "" {
		return nil, errors.Errorf("state directory is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, errors.Errorf("resolving state directory: %w", err)
	}
	s := NewMemory()
	s.path = filepath.Join(abs, FileName)
	return s, nil
}

// NewMemory creates a store that is never persisted
func NewMemory() *State {
	return &State{entries: make(map[string]map[string]struct{})}
}

// Path returns the state file path, empty for memory only stores
func (s *State) Path() string {
	return s.path
}

// 📥 Load replaces the in-memory markers with the persisted ones. A missing file is a clean state.
func (s *State) Load(ctx context.Context) error {
	if s.path == "" {
		return nil
	}

	logger := zerolog.Ctx(ctx)
	logger.Debug().Str("path", s.path).Msg("loading state")

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.mu.Lock()
		s.entries = make(map[string]map[string]struct{})
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		return errors.Errorf("reading state file: %w", err)
	}

	var f stateFile
	if err := json.Unmarshal(data, &f); err != nil {
		return errors.Errorf("parsing state file: %w", err)
	}
	if f.SchemaVersion != "" && f.SchemaVersion != SchemaVersion {
		return errors.Errorf("unsupported state schema version %q", f.SchemaVersion)
	}

	entries := make(map[string]map[string]struct{}, len(f.SyncWhenOpen))
	for key, files := range f.SyncWhenOpen {
		set := make(map[string]struct{}, len(files))
		for _, file := range files {
			set[file] = struct{}{}
		}
		entries[key] = set
	}

	s.mu.Lock()
	s.entries = entries
	s.lastUpdated = f.LastUpdated
	s.mu.Unlock()

	return nil
}

// 📤 Save writes the markers atomically
func (s *State) Save(ctx context.Context) error {
	if s.path == "" {
		return nil
	}

	zerolog.Ctx(ctx).Debug().Str("path", s.path).Msg("writing state")

	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	f := stateFile{
		SchemaVersion: SchemaVersion,
		LastUpdated:   s.lastUpdated,
		SyncWhenOpen:  make(map[string][]string, len(s.entries)),
	}
	for key, set := range s.entries {
		if len(set) == 0 {
			continue
		}
		f.SyncWhenOpen[key] = sortedKeys(set)
	}
	s.mu.Unlock()

	data, err := json.MarshalIndent(f, "", "\t")
	if err != nil {
		return errors.Errorf("encoding state: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return errors.Errorf("creating state directory: %w", err)
	}

	// unique temp name, other processes may save the same workspace
	tmp, err := os.CreateTemp(filepath.Dir(s.path), FileName+".*.tmp")
	if err != nil {
		return errors.Errorf("creating temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return errors.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return errors.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		os.Remove(tmp.Name())
		return errors.Errorf("setting state file mode: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return errors.Errorf("renaming temp file: %w", err)
	}

	return nil
}

// Mark records that file needs to be synced to the target
func (s *State) Mark(targetKey, file string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.entries[targetKey]
	if !ok {
		set = make(map[string]struct{})
		s.entries[targetKey] = set
	}
	set[file] = struct{}{}
	s.lastUpdated = time.Now().UTC()
}

// Has reports whether file is marked for the target
func (s *State) Has(targetKey, file string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.entries[targetKey][file]
	return ok
}

// Clear removes the marker of file for the target and reports whether there was one
func (s *State) Clear(targetKey, file string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.entries[targetKey]
	if !ok {
		return false
	}
	if _, ok := set[file]; !ok {
		return false
	}
	delete(set, file)
	if len(set) == 0 {
		delete(s.entries, targetKey)
	}
	s.lastUpdated = time.Now().UTC()
	return true
}

// Files returns the marked files of a target, sorted
func (s *State) Files(targetKey string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedKeys(s.entries[targetKey])
}

// Targets returns the keys of all targets with markers, sorted
func (s *State) Targets() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.entries))
	for k, set := range s.entries {
		if len(set) > 0 {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
