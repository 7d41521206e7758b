package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ZebulonRouseFrantzich/wsbuild/internal/platform"
)

var linuxHost = platform.Info{
	OS:      "linux",
	Arch:    "amd64",
	ArchRaw: "amd64",
	Distro:  "ubuntu",
	Family:  platform.FamilyDebian,
	Version: "22.04",
	CPUs:    4,
}

var macHost = platform.Info{OS: "darwin", Arch: "arm64", ArchRaw: "arm64", CPUs: 8}

// failingDetector always fails detection.
type failingDetector struct{ err error }

func (f failingDetector) Detect(ctx context.Context) (*platform.Info, error) {
	return nil, f.err
}

func TestParser_ParseString_Empty(t *testing.T) {
	parser := NewParser(nil)
	cfg, err := parser.ParseString(context.Background(), `-- nothing here`)
	if err != nil {
		t.Fatalf("ParseString() error = %v", err)
	}

	want := Defaults()
	if cfg.Dir != want.Dir || cfg.Node != want.Node || cfg.Npm != want.Npm || cfg.CLI != want.CLI {
		t.Errorf("ParseString() = %+v, want defaults %+v", cfg, want)
	}
	if cfg.Host != nil {
		t.Error("Host should be nil without a detector")
	}
}

func TestParser_ParseString_Minimal(t *testing.T) {
	luaCode := `
		workspace = {
			node = { version = "20.11.0" },
		}
	`

	cfg, err := NewParser(nil).ParseString(context.Background(), luaCode)
	if err != nil {
		t.Fatalf("ParseString() error = %v", err)
	}

	if cfg.Node.Version != "20.11.0" {
		t.Errorf("Node.Version = %s, want 20.11.0", cfg.Node.Version)
	}
	// Everything else keeps its default
	if cfg.Node.Mirror != DefaultNodeMirror {
		t.Errorf("Node.Mirror = %s, want %s", cfg.Node.Mirror, DefaultNodeMirror)
	}
	if cfg.Node.Verify {
		t.Error("Node.Verify should default to false")
	}
	if cfg.Npm.Version != DefaultNpmVersion {
		t.Errorf("Npm.Version = %s, want %s", cfg.Npm.Version, DefaultNpmVersion)
	}
	if cfg.Dir != DefaultDir {
		t.Errorf("Dir = %s, want %s", cfg.Dir, DefaultDir)
	}
}

func TestParser_ParseString_Full(t *testing.T) {
	luaCode := `
		workspace = {
			dir = "./build/ws",
			jobs = 2,
			node = {
				version = "v22.11.0",
				mirror = "https://mirror.example.com/node",
				os = "darwin",
				arch = "arm64",
				verify = true,
				keyring = "keys/node.asc",
			},
			npm = {
				version = "10.9.0",
				registry = "https://npm.example.com",
			},
			cli = {
				output = "bin/heroku",
				package = "./cmd/heroku",
			},
			tasks = {
				{ name = "lint", description = "vet the code", deps = { "build" }, run = { "go", "vet", "./..." } },
				{ name = "smoke", deps = { "lint" }, run = { "./tmp/workspace/heroku", "version" }, dir = "." },
				{ name = "all", deps = { "lint", "smoke" } },
			},
		}
	`

	cfg, err := NewParser(nil).ParseString(context.Background(), luaCode)
	if err != nil {
		t.Fatalf("ParseString() error = %v", err)
	}

	if cfg.Dir != "./build/ws" {
		t.Errorf("Dir = %s", cfg.Dir)
	}
	if cfg.Jobs != 2 {
		t.Errorf("Jobs = %d, want 2", cfg.Jobs)
	}

	wantNode := NodeConfig{
		Version: "22.11.0",
		Mirror:  "https://mirror.example.com/node",
		OS:      "darwin",
		Arch:    "arm64",
		Verify:  true,
		Keyring: "keys/node.asc",
	}
	if cfg.Node != wantNode {
		t.Errorf("Node = %+v, want %+v", cfg.Node, wantNode)
	}
	if cfg.Npm.Registry != "https://npm.example.com" {
		t.Errorf("Npm.Registry = %s", cfg.Npm.Registry)
	}
	if cfg.CLI.Output != "bin/heroku" || cfg.CLI.Package != "./cmd/heroku" {
		t.Errorf("CLI = %+v", cfg.CLI)
	}

	if len(cfg.Tasks) != 3 {
		t.Fatalf("Tasks length = %d, want 3", len(cfg.Tasks))
	}
	lint := cfg.Tasks[0]
	if lint.Name != "lint" || lint.Description != "vet the code" {
		t.Errorf("Tasks[0] = %+v", lint)
	}
	if strings.Join(lint.Run, " ") != "go vet ./..." {
		t.Errorf("Tasks[0].Run = %v", lint.Run)
	}
	if strings.Join(cfg.Tasks[2].Deps, ",") != "lint,smoke" {
		t.Errorf("Tasks[2].Deps = %v", cfg.Tasks[2].Deps)
	}
	if cfg.Tasks[1].Dir != "." {
		t.Errorf("Tasks[1].Dir = %q", cfg.Tasks[1].Dir)
	}
}

func TestParser_ParseString_WithPlatform(t *testing.T) {
	luaCode := `
		workspace = {
			cli = {
				output = platform.is_macos and "heroku-darwin" or "heroku-" .. platform.os,
			},
			jobs = platform.cpus,
			tasks = {
				platform.when(platform.in_family("debian"), { name = "deb", run = { "dpkg-buildpackage" } }),
				{ name = "check", run = { "go", "test", platform.when(platform.is_linux, "-race"), "./..." } },
			},
		}
	`

	tests := []struct {
		name       string
		info       platform.Info
		wantOutput string
		wantTasks  int
		wantRun    string
	}{
		{name: "linux", info: linuxHost, wantOutput: "heroku-linux", wantTasks: 2, wantRun: "go test -race ./..."},
		{name: "macos", info: macHost, wantOutput: "heroku-darwin", wantTasks: 1, wantRun: "go test ./..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parser := NewParser(platform.Static(tt.info))
			cfg, err := parser.ParseString(context.Background(), luaCode)
			if err != nil {
				t.Fatalf("ParseString() error = %v", err)
			}

			if cfg.CLI.Output != tt.wantOutput {
				t.Errorf("CLI.Output = %s, want %s", cfg.CLI.Output, tt.wantOutput)
			}
			if cfg.Jobs != tt.info.CPUs {
				t.Errorf("Jobs = %d, want %d", cfg.Jobs, tt.info.CPUs)
			}
			if len(cfg.Tasks) != tt.wantTasks {
				t.Fatalf("Tasks = %+v, want %d tasks", cfg.Tasks, tt.wantTasks)
			}
			check := cfg.Tasks[len(cfg.Tasks)-1]
			if got := strings.Join(check.Run, " "); got != tt.wantRun {
				t.Errorf("check.Run = %q, want %q", got, tt.wantRun)
			}
			if cfg.Host == nil || cfg.Host.OS != tt.info.OS {
				t.Errorf("Host = %+v, want %s", cfg.Host, tt.info.OS)
			}
		})
	}
}

func TestParser_ParseString_PlatformIsReadOnly(t *testing.T) {
	parser := NewParser(platform.Static(linuxHost))
	_, err := parser.ParseString(context.Background(), `platform.os = "darwin"`)
	if err == nil {
		t.Fatal("expected error when writing to the platform table")
	}
	if !strings.Contains(err.Error(), "read-only") {
		t.Errorf("error = %v, want read-only error", err)
	}
}

func TestParser_ParseString_DetectorError(t *testing.T) {
	parser := NewParser(failingDetector{err: errors.New("no host")})
	_, err := parser.ParseString(context.Background(), `workspace = {}`)
	if err == nil || !strings.Contains(err.Error(), "platform detection failed") {
		t.Errorf("expected platform detection error, got %v", err)
	}
}

func TestParser_ParseString_Errors(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		message string
	}{
		{
			name:    "syntax error",
			code:    `workspace = {`,
			message: "Lua error",
		},
		{
			name:    "runtime error",
			code:    `error("boom")`,
			message: "Lua error",
		},
		{
			name:    "workspace not a table",
			code:    `workspace = "tmp"`,
			message: "invalid 'workspace' value",
		},
		{
			name:    "version wrong type",
			code:    `workspace = { node = { version = 22 } }`,
			message: "invalid type for workspace.node.version",
		},
		{
			name:    "verify wrong type",
			code:    `workspace = { node = { verify = "yes" } }`,
			message: "invalid type for workspace.node.verify",
		},
		{
			name:    "jobs not an integer",
			code:    `workspace = { jobs = 1.5 }`,
			message: "invalid type for workspace.jobs",
		},
		{
			name:    "tasks entry not a table",
			code:    `workspace = { tasks = { "lint" } }`,
			message: "invalid type for workspace.tasks[1]",
		},
		{
			name:    "run entry wrong type",
			code:    `workspace = { tasks = { { name = "x", run = { {} } } } }`,
			message: "invalid type for workspace.tasks[1].run[1]",
		},
		{
			name:    "empty version",
			code:    `workspace = { node = { version = "" } }`,
			message: "config validation failed",
		},
		{
			name:    "reserved task name",
			code:    `workspace = { tasks = { { name = "build:workspace", run = { "true" } } } }`,
			message: "config validation failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewParser(nil).ParseString(context.Background(), tt.code)
			if err == nil {
				t.Fatal("expected error but got none")
			}
			var parseErr *ParseError
			if !errors.As(err, &parseErr) {
				t.Fatalf("expected *ParseError, got %T: %v", err, err)
			}
			if !strings.Contains(parseErr.Message, tt.message) {
				t.Errorf("Message = %q, want substring %q", parseErr.Message, tt.message)
			}
		})
	}
}

func TestParser_ParseString_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewParser(nil).ParseString(ctx, `while true do end`)
	if err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestParser_ParseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultFile)
	if err := os.WriteFile(path, []byte(`workspace = { dir = "./out" }`), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := NewParser(nil).ParseFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}
	if cfg.Dir != "./out" {
		t.Errorf("Dir = %s, want ./out", cfg.Dir)
	}

	if _, err := NewParser(nil).ParseFile(context.Background(), filepath.Join(dir, "missing.lua")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestParser_ParseFile_ErrorNamesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFile)
	if err := os.WriteFile(path, []byte(`workspace = {`), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := NewParser(nil).ParseFile(context.Background(), path)
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected *ParseError, got %v", err)
	}
	if parseErr.File != path {
		t.Errorf("File = %q, want %q", parseErr.File, path)
	}
	if !strings.Contains(err.Error(), path) {
		t.Errorf("error %q should name the file", err)
	}
}

func TestFormatError(t *testing.T) {
	err := &ParseError{
		File:    "wsbuild.lua",
		Message: "Lua error",
		Detail:  "<string>:1: unexpected symbol\nstack traceback:\n\t[G]: ?",
	}

	short := FormatError(err, false)
	if strings.Contains(short, "stack traceback") {
		t.Errorf("short format should drop the traceback: %q", short)
	}
	if !strings.HasPrefix(short, "wsbuild.lua: Lua error: ") {
		t.Errorf("short format = %q", short)
	}

	verbose := FormatError(err, true)
	if !strings.Contains(verbose, "Details:") || !strings.Contains(verbose, "stack traceback") {
		t.Errorf("verbose format should include the raw detail: %q", verbose)
	}

	plain := errors.New("plain")
	if FormatError(plain, false) != "plain" {
		t.Error("non-ParseError should format as its message")
	}
}
