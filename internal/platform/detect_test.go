package platform

import (
	"context"
	"runtime"
	"testing"
)

func TestRealDetector_Detect(t *testing.T) {
	detector := NewDetector()

	info, err := detector.Detect(context.Background())
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}

	if info.OS != runtime.GOOS {
		t.Errorf("OS = %v, want %v", info.OS, runtime.GOOS)
	}
	if info.Arch != runtime.GOARCH {
		t.Errorf("Arch = %v, want %v", info.Arch, runtime.GOARCH)
	}
	if info.ArchRaw != runtime.GOARCH {
		t.Errorf("ArchRaw = %v, want %v", info.ArchRaw, runtime.GOARCH)
	}
	if info.CPUs < 1 {
		t.Errorf("CPUs = %d, want at least 1", info.CPUs)
	}

	// Distro fields may be empty on Linux (graceful fallback), but come together
	if info.Distro != "" && info.Family == "" {
		t.Error("Family should be set when Distro is set")
	}
	if runtime.GOOS != "linux" && (info.Distro != "" || info.Family != "" || info.Version != "") {
		t.Errorf("distro fields should be empty on non-Linux, got %+v", info)
	}
}

func TestRealDetector_DetectCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewDetector().Detect(ctx); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestInfo_Methods(t *testing.T) {
	tests := []struct {
		name         string
		info         *Info
		str          string
		linux        bool
		macos        bool
		appleSilicon bool
		debian       bool
	}{
		{
			name:   "Linux amd64 Debian",
			info:   &Info{OS: "linux", Arch: "amd64", Distro: "ubuntu", Family: FamilyDebian},
			str:    "linux/amd64",
			linux:  true,
			debian: true,
		},
		{
			name:  "Linux without distro",
			info:  &Info{OS: "linux", Arch: "arm64", Family: FamilyDebian},
			str:   "linux/arm64",
			linux: true,
		},
		{
			name:         "macOS arm64",
			info:         &Info{OS: "darwin", Arch: "arm64"},
			str:          "darwin/arm64",
			macos:        true,
			appleSilicon: true,
		},
		{
			name:  "macOS amd64",
			info:  &Info{OS: "darwin", Arch: "amd64"},
			str:   "darwin/amd64",
			macos: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.info.String(); got != tt.str {
				t.Errorf("String() = %v, want %v", got, tt.str)
			}
			if got := tt.info.IsLinux(); got != tt.linux {
				t.Errorf("IsLinux() = %v, want %v", got, tt.linux)
			}
			if got := tt.info.IsMacOS(); got != tt.macos {
				t.Errorf("IsMacOS() = %v, want %v", got, tt.macos)
			}
			if got := tt.info.IsAppleSilicon(); got != tt.appleSilicon {
				t.Errorf("IsAppleSilicon() = %v, want %v", got, tt.appleSilicon)
			}
			if got := tt.info.InFamily(FamilyDebian); got != tt.debian {
				t.Errorf("InFamily(debian) = %v, want %v", got, tt.debian)
			}
		})
	}
}

func TestStatic(t *testing.T) {
	want := Info{OS: "linux", Arch: "amd64", ArchRaw: "x86_64", Distro: "ubuntu", Family: FamilyDebian}
	detector := Static(want)

	info, err := detector.Detect(context.Background())
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if *info != want {
		t.Errorf("Detect() = %+v, want %+v", *info, want)
	}

	// Callers get independent copies
	info.OS = "darwin"
	again, _ := detector.Detect(context.Background())
	if again.OS != "linux" {
		t.Error("Static detector result was shared between calls")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := detector.Detect(ctx); err == nil {
		t.Error("expected error for cancelled context")
	}
}
