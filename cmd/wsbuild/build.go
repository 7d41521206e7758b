package main

import (
	"github.com/spf13/cobra"

	"github.com/ZebulonRouseFrantzich/wsbuild/internal/git"
	"github.com/ZebulonRouseFrantzich/wsbuild/internal/task"
	"github.com/ZebulonRouseFrantzich/wsbuild/internal/workspace"
)

func (a *app) buildCmd() *cobra.Command {
	var jobs int

	cmd := &cobra.Command{
		Use:   "build [task...]",
		Short: "Run build tasks (default: build)",
		Long: `Run the named tasks and their dependencies. Without arguments the full
workspace is built:

  build
  └── build:workspace
      ├── build:workspace:npm    unpack npm into {dir}/npm
      ├── build:workspace:node   fetch node into {dir}/node
      └── build:workspace:cli    go build -o {dir}/{output}

Tasks declared in wsbuild.lua can be named as well.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := a.context(cmd)

			cfg, err := a.loadConfig(ctx)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("jobs") {
				cfg.Jobs = jobs
			}

			fetcher, err := a.newFetcher(cfg.Node)
			if err != nil {
				return err
			}
			commander := &workspace.ExecCommander{Stdout: a.stderr, Stderr: a.stderr}

			graph, err := workspace.NewGraph(cfg, workspace.Deps{
				Fetcher:   fetcher,
				Commander: commander,
				Repo:      git.NewClient("."),
			})
			if err != nil {
				return err
			}

			targets := args
			if len(targets) == 0 {
				targets = []string{workspace.TaskBuild}
			}

			runner := task.NewRunner(graph,
				task.WithConcurrency(cfg.MaxJobs()),
				task.WithTracerProvider(a.tracing.TracerProvider()),
			)
			reports, err := runner.Run(ctx, targets...)
			if err != nil {
				return err
			}

			a.logger.InfoContext(ctx, "build finished", "tasks", len(reports), "dir", cfg.Dir)
			return nil
		},
	}

	cmd.Flags().IntVarP(&jobs, "jobs", "j", 0, "maximum tasks run at once (default: one per CPU)")
	return cmd
}
