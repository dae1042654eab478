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

package log

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/deployrc/pkg/status"
	"gitlab.com/tozd/go/errors"
)

func TestLogger(t *testing.T) {
	// Disable color for testing
	color.NoColor = true
	defer func() { color.NoColor = false }()

	tests := []struct {
		name     string
		op       func(t *testing.T, logger *Logger)
		wantLogs []string
	}{
		{
			name: "log_file",
			op: func(t *testing.T, logger *Logger) {
				logger.LogFile(context.Background(), status.FileInfo{
					File:   "/src/test.txt",
					Remote: "/test.txt",
					Target: "prod",
					Status: status.StatusUploaded,
				})
			},
			wantLogs: []string{
				"    ✓ /test.txt                           prod            uploaded",
			},
		},
		{
			name: "log_failed_file",
			op: func(t *testing.T, logger *Logger) {
				logger.LogFile(context.Background(), status.FileInfo{
					Remote: "/test.txt",
					Target: "prod",
					Status: status.StatusFailed,
					Error:  errors.New("denied"),
				})
			},
			wantLogs: []string{
				"    ✗ /test.txt                           prod            failed     denied",
			},
		},
		{
			name: "start_target",
			op: func(t *testing.T, logger *Logger) {
				logger.StartTarget(context.Background(), TargetRun{Name: "prod", Type: "sftp", Files: 2})
			},
			wantLogs: []string{
				"◆ prod • sftp",
			},
		},
		{
			name: "messages",
			op: func(t *testing.T, logger *Logger) {
				logger.Header("deploying")
				logger.Successf("done %d", 1)
				logger.Warningf("careful %s", "now")
				logger.Errorf("failed %s", "badly")
				logger.Infof("note %d", 2)
			},
			wantLogs: []string{
				"deployrc • deploying",
				"✅ done 1",
				"⚠️  careful now",
				"❌ failed badly",
				"ℹ️  note 2",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewWithZerolog(&buf, zerolog.New(zerolog.NewTestWriter(t)))

			tt.op(t, logger)

			var lines []string
			for _, l := range strings.Split(buf.String(), "\n") {
				if strings.TrimSpace(l) != "" {
					lines = append(lines, l)
				}
			}
			assert.Equal(t, tt.wantLogs, lines)
		})
	}
}

func TestEndTargetResetsFiles(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithZerolog(&buf, zerolog.New(zerolog.NewTestWriter(t)))

	logger.StartTarget(context.Background(), TargetRun{Name: "prod"})
	logger.LogFile(context.Background(), status.FileInfo{Remote: "/a", Status: status.StatusUploaded})
	require.Len(t, logger.files, 1)

	logger.EndTarget(context.Background())
	assert.Empty(t, logger.files)
}

func TestLoggerContext(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, zerolog.InfoLevel)

	ctx := NewContext(context.Background(), logger)
	assert.Same(t, logger, FromContext(ctx))

	// a missing logger is not fatal
	fallback := FromContext(context.Background())
	require.NotNil(t, fallback)
	fallback.Info("goes nowhere")
}
