package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ZebulonRouseFrantzich/wsbuild/internal/config"
	"github.com/ZebulonRouseFrantzich/wsbuild/internal/logctx"
	"github.com/ZebulonRouseFrantzich/wsbuild/internal/nodedist"
	"github.com/ZebulonRouseFrantzich/wsbuild/internal/platform"
	"github.com/ZebulonRouseFrantzich/wsbuild/internal/telemetry"
)

// app holds the state shared by all commands of one invocation.
type app struct {
	stdout   io.Writer
	stderr   io.Writer
	detector platform.Detector

	configPath string
	verbose    bool

	env     *config.Env
	logger  *slog.Logger
	tracing *telemetry.Provider
}

func newApp(stdout, stderr io.Writer, detector platform.Detector) *app {
	return &app{stdout: stdout, stderr: stderr, detector: detector}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "wsbuild",
		Short: "Assemble a runnable CLI workspace",
		Long: `wsbuild assembles a CLI workspace directory: a Node.js runtime fetched from
an official release tarball, the npm package tree and the natively built CLI.

Configuration is read from wsbuild.lua in the current directory when present,
and WSBUILD_* environment variables override it.`,
		Version:           Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return a.setup() },
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "",
		"config file (default: ./"+config.DefaultFile+" when present)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false,
		"debug logging and full config error details")

	root.AddCommand(a.buildCmd(), a.fetchNodeCmd(), a.tasksCmd())
	return root
}

// execute runs the command line and flushes tracing afterwards.
func (a *app) execute(ctx context.Context, args []string) error {
	root := a.rootCmd()
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if a.tracing != nil {
		if serr := a.tracing.Shutdown(context.WithoutCancel(ctx)); serr != nil && err == nil {
			err = fmt.Errorf("flush traces: %w", serr)
		}
	}
	return err
}

// setup reads the environment and installs logging and tracing.
func (a *app) setup() error {
	env, err := config.LoadEnv()
	if err != nil {
		return err
	}
	a.env = env

	level := env.SlogLevel()
	if a.verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(a.stderr, &slog.HandlerOptions{Level: level})
	a.logger = slog.New(logctx.NewTraceHandler(handler))

	a.tracing, err = telemetry.NewProvider(telemetry.Config{
		Exporter:       env.TraceExporter,
		File:           env.TraceFile,
		Writer:         a.stderr,
		ServiceVersion: Version,
	})
	return err
}

func (a *app) context(cmd *cobra.Command) context.Context {
	return logctx.WithLogger(cmd.Context(), a.logger)
}

// loadConfig resolves and loads the workspace configuration.
func (a *app) loadConfig(ctx context.Context) (*config.Config, error) {
	path, err := config.ResolvePath(a.configPath, a.configPath != "")
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(ctx, path, a.detector, a.env)
	if err != nil {
		var parseErr *config.ParseError
		if errors.As(err, &parseErr) {
			return nil, errors.New(config.FormatError(parseErr, a.verbose))
		}
		return nil, err
	}

	a.logger.DebugContext(ctx, "configuration loaded", "file", path, "host", cfg.Host.String(), "dir", cfg.Dir)
	return cfg, nil
}

// newFetcher builds a fetcher for node settings, loading the keyring when set.
func (a *app) newFetcher(node config.NodeConfig) (*nodedist.Fetcher, error) {
	opts := nodedist.Options{
		Client:    telemetry.NewHTTPClient(a.tracing.TracerProvider(), 0),
		Logger:    a.logger,
		UserAgent: "wsbuild/" + Version,
		Timeout:   a.env.FetchTimeout,
		Verify:    node.Verify,
	}
	if node.Keyring != "" {
		keyring, err := nodedist.LoadKeyring(node.Keyring)
		if err != nil {
			return nil, err
		}
		opts.Keyring = keyring
	}
	return nodedist.NewFetcher(opts), nil
}
