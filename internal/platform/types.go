// Package platform detects the host a workspace is built on.
//
// The detected Info selects which Node.js release tarball is fetched and is
// exposed to Lua configuration as a read-only `platform` table, so a config
// can vary per host without touching the build driver.
package platform

import "context"

// Linux distribution families reported in Info.Family.
const (
	FamilyDebian  = "debian"  // Debian, Ubuntu, Linux Mint
	FamilyRHEL    = "rhel"    // RHEL, CentOS, Rocky Linux, AlmaLinux
	FamilyFedora  = "fedora"  // Fedora
	FamilySUSE    = "suse"    // openSUSE, SLES
	FamilyArch    = "arch"    // Arch Linux, Manjaro
	FamilyAlpine  = "alpine"  // Alpine Linux (musl, no official node tarball)
	FamilyUnknown = "unknown" // Unrecognized distributions
)

// Info describes the build host.
type Info struct {
	OS      string // GOOS, e.g. "linux", "darwin"
	Arch    string // normalized architecture, e.g. "amd64", "arm64", "arm"
	ArchRaw string // architecture as reported, e.g. "x86_64"
	Distro  string // Linux distribution ID, e.g. "ubuntu"
	Family  string // canonical distribution family, e.g. "debian"
	Version string // distribution version, e.g. "22.04"
	CPUs    int    // logical CPUs, a default for task parallelism
}

// String returns the os/arch pair, e.g. "linux/amd64".
func (i *Info) String() string {
	return i.OS + "/" + i.Arch
}

// IsLinux returns true if the platform is Linux.
func (i *Info) IsLinux() bool {
	return i.OS == "linux"
}

// IsMacOS returns true if the platform is macOS.
func (i *Info) IsMacOS() bool {
	return i.OS == "darwin"
}

// IsAppleSilicon returns true if running on Apple Silicon (macOS + arm64).
func (i *Info) IsAppleSilicon() bool {
	return i.OS == "darwin" && i.Arch == "arm64"
}

// InFamily reports whether the host is a Linux distribution of the given family.
func (i *Info) InFamily(family string) bool {
	return i.IsLinux() && i.Distro != "" && i.Family == family
}

// Detector reports the build host.
type Detector interface {
	Detect(ctx context.Context) (*Info, error)
}

// Static returns a Detector that always reports a copy of info.
// It is used when the platform is fixed by configuration or in tests.
func Static(info Info) Detector {
	return staticDetector{info: info}
}

type staticDetector struct {
	info Info
}

func (s staticDetector) Detect(ctx context.Context) (*Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	info := s.info
	return &info, nil
}
