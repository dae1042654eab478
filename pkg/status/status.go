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

package status

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// 📊 FileStatus represents the upload state of a file
type FileStatus int

const (
	StatusUnknown   FileStatus = iota
	StatusPending              // part of the run, not started yet
	StatusUploading            // upload started
	StatusUploaded             // upload completed without error
	StatusFailed               // upload completed with an error
	StatusCanceled             // run was canceled while the file was handled
)

// String returns a string representation of FileStatus
func (s FileStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusUploading:
		return "uploading"
	case StatusUploaded:
		return "uploaded"
	case StatusFailed:
		return "failed"
	case StatusCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// 📄 FileInfo contains what is known about one file of a run
type FileInfo struct {
	File   string // local path
	Remote string // remote path
	Target string // target display name
	Status FileStatus
	Error  error
}

// 🔧 Tracker tracks the files of deploy runs and reports progress
type Tracker struct {
	formatter Formatter

	mu    sync.RWMutex
	files map[string]FileInfo

	total     int
	processed int
}

// 🏭 NewTracker creates a new tracker. A nil formatter means the default one.
func NewTracker(formatter Formatter) *Tracker {
	if formatter == nil {
		formatter = NewDefaultFormatter()
	}
	return &Tracker{
		formatter: formatter,
		files:     make(map[string]FileInfo),
	}
}

func trackKey(target, remote string) string {
	return target + "\x00" + remote
}

// TrackFile records the state of a file
func (m *Tracker) TrackFile(ctx context.Context, info FileInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.files[trackKey(info.Target, info.Remote)] = info

	ev := zerolog.Ctx(ctx).Debug().Str("file", info.File).Str("remote", info.Remote).Str("target", info.Target).Str("status", info.Status.String())
	if info.Error != nil {
		ev = ev.Err(info.Error)
	}
	ev.Msg("file status changed")
}

// GetFileInfo returns the recorded state of a remote file of a target
func (m *Tracker) GetFileInfo(target, remote string) (FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	info, ok := m.files[trackKey(target, remote)]
	if !ok {
		return FileInfo{}, errors.Errorf("file not tracked: %s (%s)", remote, target)
	}
	return info, nil
}

// ListFiles returns every tracked file ordered by target and remote path
func (m *Tracker) ListFiles() []FileInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	files := make([]FileInfo, 0, len(m.files))
	for _, info := range m.files {
		files = append(files, info)
	}
	sort.Slice(files, func(i, j int) bool {
		if files[i].Target != files[j].Target {
			return files[i].Target < files[j].Target
		}
		return files[i].Remote < files[j].Remote
	})
	return files
}

// StartOperation adds total files to the expected count
func (m *Tracker) StartOperation(ctx context.Context, total int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.total += total
	zerolog.Ctx(ctx).Debug().Int("total", m.total).Msg(m.formatter.Progress(m.processed, m.total))
}

// Step marks one more file as processed
func (m *Tracker) Step(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.processed++
	zerolog.Ctx(ctx).Debug().
		Int("processed", m.processed).
		Int("total", m.total).
		Msg(m.formatter.Progress(m.processed, m.total))
}

// Progress returns the processed and expected counts
func (m *Tracker) Progress() (processed, total int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.processed, m.total
}

// Failed returns the tracked files whose upload failed
func (m *Tracker) Failed() []FileInfo {
	var failed []FileInfo
	for _, info := range m.ListFiles() {
		if info.Status == StatusFailed {
			failed = append(failed, info)
		}
	}
	return failed
}
