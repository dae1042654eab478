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
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// 🎨 Display configuration
const (
	fileIndent  = 4  // spaces to indent file entries
	nameWidth   = 35 // Base width for filename
	targetWidth = 15 // Width for the target name
	statusWidth = 10 // Width for status text
)

// 🎯 FormatFileLine formats the final state of one uploaded file for the summary table
func FormatFileLine(info FileInfo) string {
	var prefix string
	switch info.Status {
	case StatusUploaded:
		prefix = color.GreenString("✓")
	case StatusUploading, StatusPending:
		prefix = color.YellowString("⟳")
	case StatusFailed:
		prefix = color.RedString("✗")
	default:
		prefix = color.HiBlackString("-")
	}

	line := fmt.Sprintf("%s%s %-*s %-*s %-*s",
		strings.Repeat(" ", fileIndent),
		prefix,
		nameWidth, info.Remote,
		targetWidth, info.Target,
		statusWidth, info.Status.String(),
	)

	if info.Error != nil {
		line += " " + color.RedString(info.Error.Error())
	}

	return strings.TrimRight(line, " ")
}
