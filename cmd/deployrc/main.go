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

package main

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/walteh/deployrc/cmd/deployrc/commands"
	"github.com/walteh/deployrc/cmd/deployrc/opts"
	"github.com/walteh/deployrc/pkg/log"

	// upload plugins register themselves by type
	_ "github.com/walteh/deployrc/pkg/upload/github"
	_ "github.com/walteh/deployrc/pkg/upload/local"
	_ "github.com/walteh/deployrc/pkg/upload/sftp"
)

func main() {
	rootCmd, stopListening := newRootCmd(&opts.RootOpts{}, newConsole())

	err := rootCmd.ExecuteContext(context.Background())
	stopListening()
	if err != nil {
		log.New(os.Stderr, zerolog.InfoLevel).Errorf("%v", err)
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. The returned func stops the interrupt listener
// started before every command and must be called once Execute returned, errors included.
func newRootCmd(rootOpts *opts.RootOpts, ui *console) (*cobra.Command, func()) {
	var stopListening func()

	rootCmd := &cobra.Command{
		Use:   "deployrc",
		Short: "Deploy workspace files to configured targets",
		Long: `deployrc uploads files of a workspace to the targets configured in its .deployrc:
local folders, SFTP servers and GitHub repositories. Operations run before and after
every deploy, and a running deploy can be canceled with Ctrl+C.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			setupLogging()
			ctx := zerolog.DefaultContextLogger.WithContext(cmd.Context())

			runCtx, stop := context.WithCancel(ctx)
			cmd.SetContext(runCtx)
			listenStop := ui.listen(runCtx, stop)
			stopListening = func() {
				listenStop()
				stop()
			}

			return loadRootOpts(runCtx, rootOpts, ui)
		},
	}

	addRootFlags(rootCmd)

	rootCmd.AddCommand(
		commands.NewDeployCmd(rootOpts),
		commands.NewTargetsCmd(rootOpts),
		commands.NewPackagesCmd(rootOpts),
		commands.NewMarkCmd(rootOpts),
		commands.NewStatusCmd(rootOpts),
		newVersionCmd(),
	)

	return rootCmd, func() {
		if stopListening != nil {
			stopListening()
			stopListening = nil
		}
	}
}
