package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ZebulonRouseFrantzich/wsbuild/internal/platform"
)

// ErrNoConfigFile is returned by ResolvePath when an explicitly named file does not exist.
var ErrNoConfigFile = errors.New("config file not found")

// ResolvePath returns the config file to load. An explicit path must exist.
// Otherwise DefaultFile in the working directory is used when present, and
// "" (defaults only) when it is not.
func ResolvePath(path string, explicit bool) (string, error) {
	if path == "" {
		path = DefaultFile
	}

	_, err := os.Stat(path)
	switch {
	case err == nil:
		return path, nil
	case errors.Is(err, os.ErrNotExist) && !explicit:
		return "", nil
	case errors.Is(err, os.ErrNotExist):
		return "", fmt.Errorf("%w: %s", ErrNoConfigFile, path)
	default:
		return "", fmt.Errorf("stat config: %w", err)
	}
}

// Load builds the effective configuration: Defaults(), then the Lua file at
// path (skipped when path is empty), then env. The host is always detected.
// Relative task directories are resolved against the config file's directory.
func Load(ctx context.Context, path string, detector platform.Detector, env *Env) (*Config, error) {
	if detector == nil {
		return nil, fmt.Errorf("platform detector is required")
	}

	var cfg *Config
	if path != "" {
		var err error
		cfg, err = NewParser(detector).ParseFile(ctx, path)
		if err != nil {
			return nil, err
		}

		base := filepath.Dir(path)
		for i := range cfg.Tasks {
			if cfg.Tasks[i].Dir != "" && !filepath.IsAbs(cfg.Tasks[i].Dir) {
				cfg.Tasks[i].Dir = filepath.Join(base, cfg.Tasks[i].Dir)
			}
		}
	} else {
		info, err := detector.Detect(ctx)
		if err != nil {
			return nil, fmt.Errorf("platform detection failed: %w", err)
		}
		cfg = Defaults()
		cfg.Host = info
	}

	if env != nil {
		env.Apply(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
