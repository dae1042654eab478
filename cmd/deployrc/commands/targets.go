package commands

import (
	"fmt"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/walteh/deployrc/cmd/deployrc/opts"
	"github.com/walteh/deployrc/pkg/target"
	"github.com/walteh/deployrc/pkg/upload"
)

// NewTargetsCmd creates a new targets command
func NewTargetsCmd(opts *opts.RootOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "targets",
		Short: "List the configured targets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return pterm.DefaultTable.
				WithHasHeader().
				WithWriter(cmd.OutOrStdout()).
				WithData(targetsTable(opts.Config.ConfiguredTargets(), upload.DefaultRegistry())).
				Render()
		},
	}

	return cmd
}

// targetsTable renders one row per target, plugins are the ones registered for its type
func targetsTable(targets []*target.Target, plugins *upload.Registry) pterm.TableData {
	data := pterm.TableData{{"Name", "Type", "Group", "Plugins", "Mappings", "Sync when open", "Description"}}
	for _, t := range targets {
		names := make([]string, 0)
		for _, p := range plugins.PluginsFor(t) {
			names = append(names, p.Name())
		}
		plugin := strings.Join(names, ", ")
		if plugin == "" {
			plugin = "-"
		}
		data = append(data, []string{
			t.DisplayName(),
			t.NormalizedType(),
			orDash(t.Group),
			plugin,
			fmt.Sprint(len(t.Mappings)),
			fmt.Sprint(t.SyncWhenOpen),
			orDash(t.Description),
		})
	}
	return data
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
