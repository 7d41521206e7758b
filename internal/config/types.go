package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ZebulonRouseFrantzich/wsbuild/internal/platform"
)

// Config is the effective workspace build configuration.
type Config struct {
	// Workspace directory the build populates
	Dir string `json:"dir"`

	// Maximum number of tasks run at once; 0 means one per CPU
	Jobs int `json:"jobs,omitempty"`

	Node NodeConfig `json:"node"`
	Npm  NpmConfig  `json:"npm"`
	CLI  CLIConfig  `json:"cli"`

	// Extra tasks declared by the config file
	Tasks []TaskSpec `json:"tasks,omitempty"`

	// Host is the detected platform. It is not part of the file.
	Host *platform.Info `json:"-"`
}

// NodeConfig selects the Node.js release placed at {dir}/node.
type NodeConfig struct {
	Version string `json:"version"`
	Mirror  string `json:"mirror,omitempty"`

	// OS and Arch override the detected host (Go names, e.g. "darwin", "arm64")
	OS   string `json:"os,omitempty"`
	Arch string `json:"arch,omitempty"`

	// Verify checks the tarball against the release's SHASUMS256.txt.
	// Off by default, so a fetch makes a single request.
	Verify bool `json:"verify"`

	// Keyring is an OpenPGP keyring that must have signed SHASUMS256.txt
	Keyring string `json:"keyring,omitempty"`
}

// NpmConfig selects the npm package unpacked to {dir}/npm.
type NpmConfig struct {
	Version  string `json:"version"`
	Registry string `json:"registry,omitempty"`
}

// CLIConfig describes the native CLI build.
type CLIConfig struct {
	// Output is the binary name inside the workspace directory
	Output string `json:"output"`
	// Package is the Go package passed to go build
	Package string `json:"package"`
}

// TaskSpec is a command task declared in the config file.
type TaskSpec struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Deps        []string `json:"deps,omitempty"`
	Run         []string `json:"run,omitempty"`
	// Dir is the working directory of Run, relative to the config file's directory
	Dir string `json:"dir,omitempty"`
}

// Defaults returns the configuration used when nothing overrides it.
func Defaults() *Config {
	return &Config{
		Dir: DefaultDir,
		Node: NodeConfig{
			Version: DefaultNodeVersion,
			Mirror:  DefaultNodeMirror,
		},
		Npm: NpmConfig{
			Version:  DefaultNpmVersion,
			Registry: DefaultNpmRegistry,
		},
		CLI: CLIConfig{
			Output:  DefaultCLIOutput,
			Package: DefaultCLIPackage,
		},
	}
}

// NodeTarget returns the OS and architecture to fetch Node.js for: the
// configured override, else the detected host.
func (c *Config) NodeTarget() (goos, goarch string) {
	goos, goarch = c.Node.OS, c.Node.Arch
	if c.Host != nil {
		if goos == "" {
			goos = c.Host.OS
		}
		if goarch == "" {
			goarch = c.Host.ArchRaw
		}
	}
	return goos, goarch
}

// MaxJobs returns the task concurrency limit.
func (c *Config) MaxJobs() int {
	if c.Jobs > 0 {
		return c.Jobs
	}
	if c.Host != nil && c.Host.CPUs > 0 {
		return c.Host.CPUs
	}
	return 1
}

// ValidationError represents a config validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return "config validation failed for " + e.Field + ": " + e.Message
	}
	return "config validation failed: " + e.Message
}

// versionPattern matches release versions such as 22.11.0 or 23.0.0-rc.1
var versionPattern = regexp.MustCompile(`^v?[0-9]+\.[0-9]+\.[0-9]+([-+][0-9A-Za-z.-]+)?$`)

// taskNamePattern matches task names such as lint or test:unit
var taskNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9:_-]*$`)

// Validate checks the configuration for values the build cannot use.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Dir) == "" {
		return &ValidationError{Field: "dir", Message: "workspace directory cannot be empty"}
	}
	if c.Jobs < 0 {
		return &ValidationError{Field: "jobs", Message: fmt.Sprintf("must not be negative (got %d)", c.Jobs)}
	}

	if err := validateVersion(c.Node.Version); err != nil {
		return &ValidationError{Field: "node.version", Message: err.Error()}
	}
	if c.Node.Mirror != "" {
		if err := validateBaseURL(c.Node.Mirror); err != nil {
			return &ValidationError{Field: "node.mirror", Message: err.Error()}
		}
	}
	if c.Node.Keyring != "" && !c.Node.Verify {
		return &ValidationError{Field: "node.keyring", Message: "a keyring requires verify = true"}
	}

	if err := validateVersion(c.Npm.Version); err != nil {
		return &ValidationError{Field: "npm.version", Message: err.Error()}
	}
	if err := validateBaseURL(c.Npm.Registry); err != nil {
		return &ValidationError{Field: "npm.registry", Message: err.Error()}
	}

	if err := validateOutput(c.CLI.Output); err != nil {
		return &ValidationError{Field: "cli.output", Message: err.Error()}
	}
	if strings.TrimSpace(c.CLI.Package) == "" {
		return &ValidationError{Field: "cli.package", Message: "package cannot be empty"}
	}

	return c.validateTasks()
}

func (c *Config) validateTasks() error {
	if len(c.Tasks) > maxTaskCount {
		return &ValidationError{
			Field:   "tasks",
			Message: fmt.Sprintf("too many tasks (%d), maximum is %d", len(c.Tasks), maxTaskCount),
		}
	}

	seen := make(map[string]bool, len(c.Tasks))
	for i, task := range c.Tasks {
		field := fmt.Sprintf("tasks[%d]", i)
		if err := validateTaskName(task.Name); err != nil {
			return &ValidationError{Field: field + ".name", Message: err.Error()}
		}
		if seen[task.Name] {
			return &ValidationError{Field: field + ".name", Message: fmt.Sprintf("duplicate task name %q", task.Name)}
		}
		seen[task.Name] = true

		if len(task.Run) == 0 && len(task.Deps) == 0 {
			return &ValidationError{Field: field, Message: fmt.Sprintf("task %q needs run or deps", task.Name)}
		}
		if len(task.Run) > maxCommandArguments {
			return &ValidationError{Field: field + ".run", Message: "too many arguments"}
		}
		if len(task.Run) > 0 && strings.TrimSpace(task.Run[0]) == "" {
			return &ValidationError{Field: field + ".run", Message: "command cannot be empty"}
		}
		for j, dep := range task.Deps {
			if dep == "" {
				return &ValidationError{Field: fmt.Sprintf("%s.deps[%d]", field, j), Message: "dependency cannot be empty"}
			}
		}
	}

	return nil
}

// IsReservedTaskName reports whether name belongs to the built-in build tasks.
func IsReservedTaskName(name string) bool {
	return name == reservedTaskPrefix || strings.HasPrefix(name, reservedTaskPrefix+":")
}

func validateTaskName(name string) error {
	if name == "" {
		return fmt.Errorf("task name cannot be empty")
	}
	if len(name) > maxTaskNameLength {
		return fmt.Errorf("task name too long (%d chars, max %d)", len(name), maxTaskNameLength)
	}
	if !taskNamePattern.MatchString(name) {
		return fmt.Errorf("invalid task name %q (lowercase letters, digits, ':', '_' and '-')", name)
	}
	if IsReservedTaskName(name) {
		return fmt.Errorf("task name %q is reserved for the built-in build tasks", name)
	}
	return nil
}

func validateVersion(version string) error {
	if version == "" {
		return fmt.Errorf("version cannot be empty")
	}
	if !versionPattern.MatchString(version) {
		return fmt.Errorf("invalid version %q (expected e.g. 22.11.0)", version)
	}
	return nil
}

// validateBaseURL accepts absolute http and https URLs.
func validateBaseURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("URL cannot be empty")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("URL must use https:// or http:// scheme (got: %q)", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL has no host: %s", raw)
	}
	return nil
}

// validateOutput keeps the CLI binary inside the workspace directory.
func validateOutput(output string) error {
	if output == "" {
		return fmt.Errorf("output cannot be empty")
	}
	if filepath.IsAbs(output) {
		return fmt.Errorf("output must be relative to the workspace directory: %s", output)
	}
	cleaned := filepath.Clean(output)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path traversal not allowed: %s", output)
	}
	return nil
}
