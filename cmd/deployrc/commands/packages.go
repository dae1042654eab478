package commands

import (
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/walteh/deployrc/cmd/deployrc/opts"
	"github.com/walteh/deployrc/pkg/config"
)

// NewPackagesCmd creates a new packages command
func NewPackagesCmd(opts *opts.RootOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "packages",
		Short: "List the configured packages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(opts.Config.Packages) == 0 {
				opts.Logger.Info("No packages configured.")
				return nil
			}
			return pterm.DefaultTable.
				WithHasHeader().
				WithWriter(cmd.OutOrStdout()).
				WithData(packagesTable(opts.Config.Packages)).
				Render()
		},
	}

	return cmd
}

func packagesTable(pkgs []config.PackageConfig) pterm.TableData {
	data := pterm.TableData{{"Name", "Files", "Exclude", "Targets", "Description"}}
	for _, p := range pkgs {
		data = append(data, []string{
			p.Name,
			strings.Join(p.Files, ", "),
			orDash(strings.Join(p.Exclude, ", ")),
			orDash(strings.Join(p.Targets, ", ")),
			orDash(p.Description),
		})
	}
	return data
}
