package nodedist

import (
	"fmt"
	"strings"

	"github.com/ZebulonRouseFrantzich/wsbuild/internal/platform"
)

// DefaultMirror is the official Node.js release host
const DefaultMirror = "https://nodejs.org/download/release"

// Release identifies one Node.js release tarball.
// OS and Arch hold Node's names (e.g. "darwin", "x64"), not Go's.
type Release struct {
	Version string
	OS      string
	Arch    string
	Mirror  string
}

// NewRelease builds a Release for the given version and Go OS/arch pair.
// An empty mirror selects DefaultMirror.
func NewRelease(version, goos, goarch, mirror string) (Release, error) {
	version = strings.TrimPrefix(strings.TrimSpace(version), "v")
	if version == "" {
		return Release{}, fmt.Errorf("node version is required")
	}
	if strings.ContainsAny(version, "/\\ ") {
		return Release{}, fmt.Errorf("invalid node version: %q", version)
	}

	osName, err := mapNodeOS(goos)
	if err != nil {
		return Release{}, err
	}
	archName, err := mapNodeArch(goarch)
	if err != nil {
		return Release{}, err
	}

	if mirror == "" {
		mirror = DefaultMirror
	}

	return Release{
		Version: version,
		OS:      osName,
		Arch:    archName,
		Mirror:  strings.TrimRight(mirror, "/"),
	}, nil
}

// ReleaseForPlatform builds a Release for a detected platform.
func ReleaseForPlatform(version string, info *platform.Info, mirror string) (Release, error) {
	if info == nil {
		return Release{}, fmt.Errorf("platform info is required")
	}
	return NewRelease(version, info.OS, info.ArchRaw, mirror)
}

// Basename returns the archive's top-level directory, e.g. node-v22.11.0-linux-x64
func (r Release) Basename() string {
	return fmt.Sprintf("node-v%s-%s-%s", r.Version, r.OS, r.Arch)
}

// Filename returns the archive file name
func (r Release) Filename() string {
	return r.Basename() + ".tar.gz"
}

func (r Release) baseURL() string {
	mirror := r.Mirror
	if mirror == "" {
		mirror = DefaultMirror
	}
	return fmt.Sprintf("%s/v%s", mirror, r.Version)
}

// ArchiveURL returns the download URL.
// Pattern: {mirror}/v{version}/node-v{version}-{os}-{arch}.tar.gz
func (r Release) ArchiveURL() string {
	return r.baseURL() + "/" + r.Filename()
}

// ShasumsURL returns the URL of the release's SHASUMS256.txt
func (r Release) ShasumsURL() string {
	return r.baseURL() + "/SHASUMS256.txt"
}

// SignatureURL returns the URL of the detached signature over SHASUMS256.txt
func (r Release) SignatureURL() string {
	return r.ShasumsURL() + ".sig"
}

// EntryPath returns the path of the node executable inside the archive
func (r Release) EntryPath() string {
	return r.Basename() + "/bin/node"
}

// mapNodeOS maps Go GOOS values to Node.js dist OS names.
// Windows ships zip archives only and is not supported.
func mapNodeOS(goos string) (string, error) {
	switch goos {
	case "linux", "darwin", "aix":
		return goos, nil
	default:
		return "", fmt.Errorf("%w: no node tarball for OS %q", ErrUnsupportedPlatform, goos)
	}
}

// mapNodeArch maps Go GOARCH values (or already-normalized names) to Node.js dist arch names
func mapNodeArch(goarch string) (string, error) {
	switch goarch {
	case "amd64", "x86_64", "x64":
		return "x64", nil
	case "arm64", "aarch64":
		return "arm64", nil
	case "arm", "armv7l":
		return "armv7l", nil
	case "ppc64le", "ppc64", "s390x":
		return goarch, nil
	default:
		return "", fmt.Errorf("%w: no node tarball for architecture %q", ErrUnsupportedPlatform, goarch)
	}
}
