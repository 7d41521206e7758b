// Package workspace turns a configuration into the task graph that assembles
// a CLI workspace directory: a Node.js runtime, the npm package tree and the
// natively built CLI binary.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/ZebulonRouseFrantzich/wsbuild/internal/config"
	"github.com/ZebulonRouseFrantzich/wsbuild/internal/git"
	"github.com/ZebulonRouseFrantzich/wsbuild/internal/logctx"
	"github.com/ZebulonRouseFrantzich/wsbuild/internal/nodedist"
	"github.com/ZebulonRouseFrantzich/wsbuild/internal/task"
)

// Built-in task names.
const (
	TaskBuild     = "build"
	TaskWorkspace = "build:workspace"
	TaskNode      = "build:workspace:node"
	TaskNpm       = "build:workspace:npm"
	TaskCLI       = "build:workspace:cli"
)

// npmPackagePrefix is the top-level directory of every npm registry tarball.
const npmPackagePrefix = "package/"

// Fetcher places release archives on disk. *nodedist.Fetcher implements it.
type Fetcher interface {
	EnsureDownloaded(ctx context.Context, rel nodedist.Release, dest string) (*nodedist.Result, error)
	EnsureUnpacked(ctx context.Context, url, stripPrefix, destDir string) (*nodedist.Result, error)
}

// Deps are the collaborators the build tasks use.
type Deps struct {
	Fetcher   Fetcher
	Commander Commander
	// Repo stamps the CLI version. Nil always stamps "dev".
	Repo git.Repo
}

// Paths are the locations the build writes.
type Paths struct {
	Dir  string
	Node string
	Npm  string
	CLI  string
}

// PathsFor returns the workspace layout for cfg.
func PathsFor(cfg *config.Config) Paths {
	return Paths{
		Dir:  cfg.Dir,
		Node: filepath.Join(cfg.Dir, "node"),
		Npm:  filepath.Join(cfg.Dir, "npm"),
		CLI:  filepath.Join(cfg.Dir, cfg.CLI.Output),
	}
}

// NpmTarballURL returns the registry URL of the npm package at version.
func NpmTarballURL(registry, version string) string {
	return fmt.Sprintf("%s/npm/-/npm-%s.tgz", strings.TrimRight(registry, "/"), strings.TrimPrefix(version, "v"))
}

// NewGraph declares the built-in build tasks and the tasks from cfg. The
// release is resolved up front so an unsupported platform fails before
// anything runs.
func NewGraph(cfg *config.Config, deps Deps) (*task.Graph, error) {
	if deps.Fetcher == nil || deps.Commander == nil {
		return nil, errors.New("workspace: fetcher and commander are required")
	}

	goos, goarch := cfg.NodeTarget()
	release, err := nodedist.NewRelease(cfg.Node.Version, goos, goarch, cfg.Node.Mirror)
	if err != nil {
		return nil, err
	}

	paths := PathsFor(cfg)
	b := &builder{cfg: cfg, deps: deps, paths: paths, release: release}

	g := task.NewGraph()
	builtin := []task.Task{
		{Name: TaskBuild, Description: "Build the CLI workspace", Deps: []string{TaskWorkspace}},
		{
			Name:        TaskWorkspace,
			Description: "Assemble " + paths.Dir,
			Deps:        []string{TaskNpm, TaskNode, TaskCLI},
		},
		{Name: TaskNode, Description: "Download Node.js " + release.Version, Run: b.node},
		{Name: TaskNpm, Description: "Unpack npm " + cfg.Npm.Version, Run: b.npm},
		{Name: TaskCLI, Description: "Build " + cfg.CLI.Output, Run: b.cli},
	}
	for _, t := range builtin {
		if err := g.Add(t); err != nil {
			return nil, err
		}
	}

	for _, spec := range cfg.Tasks {
		t := task.Task{Name: spec.Name, Description: spec.Description, Deps: spec.Deps}
		if len(spec.Run) > 0 {
			cmd := Command{Name: spec.Run[0], Args: spec.Run[1:], Dir: spec.Dir}
			t.Run = func(ctx context.Context) error {
				return deps.Commander.Run(ctx, cmd)
			}
			if t.Description == "" {
				t.Description = cmd.String()
			}
		}
		if err := g.Add(t); err != nil {
			return nil, err
		}
	}

	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

type builder struct {
	cfg     *config.Config
	deps    Deps
	paths   Paths
	release nodedist.Release
}

func (b *builder) node(ctx context.Context) error {
	res, err := b.deps.Fetcher.EnsureDownloaded(ctx, b.release, b.paths.Node)
	if err != nil {
		return err
	}
	logResult(ctx, "node", res)
	return nil
}

func (b *builder) npm(ctx context.Context) error {
	url := NpmTarballURL(b.cfg.Npm.Registry, b.cfg.Npm.Version)
	res, err := b.deps.Fetcher.EnsureUnpacked(ctx, url, npmPackagePrefix, b.paths.Npm)
	if err != nil {
		return err
	}
	logResult(ctx, "npm", res)
	return nil
}

func (b *builder) cli(ctx context.Context) error {
	version := Version(ctx, b.deps.Repo)
	output, err := filepath.Abs(b.paths.CLI)
	if err != nil {
		return fmt.Errorf("resolve output path: %w", err)
	}

	cmd := Command{
		Name: "go",
		Args: []string{"build", "-ldflags", "-X main.Version=" + version, "-o", output, b.cfg.CLI.Package},
	}
	logctx.LoggerFromContext(ctx).InfoContext(ctx, "building cli", "version", version, "output", output)
	return b.deps.Commander.Run(ctx, cmd)
}

func logResult(ctx context.Context, what string, res *nodedist.Result) {
	logger := logctx.LoggerFromContext(ctx)
	if res.Skipped {
		logger.InfoContext(ctx, what+" already present", "path", res.Path)
		return
	}
	logger.InfoContext(ctx, what+" installed",
		"path", res.Path,
		"downloaded", humanize.Bytes(uint64(res.Downloaded)),
		"written", humanize.Bytes(uint64(res.Written)),
		"verified", res.Verified.String(),
	)
}

// Version returns the version stamped into the CLI: dev-{short HEAD} inside
// a git repository with commits, dev otherwise.
func Version(ctx context.Context, repo git.Repo) string {
	if repo == nil {
		return "dev"
	}
	sha, err := git.HeadCommitShort(ctx, repo)
	if err != nil {
		logctx.LoggerFromContext(ctx).DebugContext(ctx, "no git commit for version", "error", err)
		return "dev"
	}
	return "dev-" + sha
}
