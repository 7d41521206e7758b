package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ZebulonRouseFrantzich/wsbuild/internal/workspace"
)

func (a *app) tasksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tasks",
		Short: "List the available tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := a.context(cmd)

			cfg, err := a.loadConfig(ctx)
			if err != nil {
				return err
			}

			// the graph is only listed, so the collaborators are never called
			graph, err := workspace.NewGraph(cfg, workspace.Deps{
				Fetcher:   nopFetcher{},
				Commander: nopCommander{},
			})
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TASK\tDEPENDS ON\tDESCRIPTION")
			for _, t := range graph.Tasks() {
				deps := strings.Join(t.Deps, ", ")
				if deps == "" {
					deps = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", t.Name, deps, t.Description)
			}
			return w.Flush()
		},
	}
}
