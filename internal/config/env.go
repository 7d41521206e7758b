package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is prepended to every environment variable read by LoadEnv.
const EnvPrefix = "WSBUILD"

// Env holds the WSBUILD_* environment. Workspace fields override the config
// file when set; the rest configure the process itself.
type Env struct {
	NodeVersion  string `envconfig:"NODE_VERSION"`
	NodeMirror   string `envconfig:"NODE_MIRROR"`
	NodeVerify   *bool  `envconfig:"NODE_VERIFY"`
	NodeKeyring  string `envconfig:"NODE_KEYRING"`
	NpmVersion   string `envconfig:"NPM_VERSION"`
	NpmRegistry  string `envconfig:"NPM_REGISTRY"`
	WorkspaceDir string `envconfig:"WORKSPACE_DIR"`
	Jobs         int    `envconfig:"JOBS"`

	LogLevel      string        `envconfig:"LOG_LEVEL" default:"INFO"`
	FetchTimeout  time.Duration `envconfig:"FETCH_TIMEOUT" default:"10m"`
	TraceExporter string        `envconfig:"TRACE_EXPORTER" default:"none"`
	TraceFile     string        `envconfig:"TRACE_FILE"`
}

// LoadEnv reads WSBUILD_* environment variables.
func LoadEnv() (*Env, error) {
	var env Env
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return nil, fmt.Errorf("error processing env: %w", err)
	}

	switch env.TraceExporter {
	case "none", "stdout", "file":
	default:
		return nil, fmt.Errorf("invalid %s_TRACE_EXPORTER %q (want none, stdout or file)", EnvPrefix, env.TraceExporter)
	}
	if env.TraceExporter == "file" && env.TraceFile == "" {
		return nil, fmt.Errorf("%s_TRACE_EXPORTER=file requires %s_TRACE_FILE", EnvPrefix, EnvPrefix)
	}

	return &env, nil
}

// Apply overrides cfg with every workspace variable that is set.
func (e *Env) Apply(cfg *Config) {
	if e.NodeVersion != "" {
		cfg.Node.Version = strings.TrimPrefix(e.NodeVersion, "v")
	}
	if e.NodeMirror != "" {
		cfg.Node.Mirror = e.NodeMirror
	}
	if e.NodeVerify != nil {
		cfg.Node.Verify = *e.NodeVerify
	}
	if e.NodeKeyring != "" {
		cfg.Node.Keyring = e.NodeKeyring
	}
	if e.NpmVersion != "" {
		cfg.Npm.Version = strings.TrimPrefix(e.NpmVersion, "v")
	}
	if e.NpmRegistry != "" {
		cfg.Npm.Registry = e.NpmRegistry
	}
	if e.WorkspaceDir != "" {
		cfg.Dir = e.WorkspaceDir
	}
	if e.Jobs > 0 {
		cfg.Jobs = e.Jobs
	}
}

// SlogLevel maps LogLevel to a slog level, defaulting to Info.
func (e *Env) SlogLevel() slog.Level {
	switch strings.ToUpper(e.LogLevel) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
