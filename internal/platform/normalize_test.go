package platform

import (
	"testing"
)

func TestNormalizeArch(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"amd64", "amd64", "amd64"},
		{"x86_64", "x86_64", "amd64"},
		{"x64", "x64", "amd64"},
		{"arm64", "arm64", "arm64"},
		{"aarch64", "aarch64", "arm64"},
		{"armv7l", "armv7l", "arm"},
		{"ppc64le passes through", "ppc64le", "ppc64le"},
		{"uppercase", " X86_64 ", "amd64"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalizeArch(tt.input); got != tt.want {
				t.Errorf("normalizeArch() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNormalizeID(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"ubuntu", "ubuntu", "ubuntu"},
		{"Ubuntu uppercase", "Ubuntu", "ubuntu"},
		{"with spaces", "  ubuntu  ", "ubuntu"},
		{"version", " 22.04 ", "22.04"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalizeID(tt.input); got != tt.want {
				t.Errorf("normalizeID() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMapFamily(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"debian", "debian", FamilyDebian},
		{"rhel", "rhel", FamilyRHEL},
		{"fedora", "fedora", FamilyFedora},
		{"suse", "suse", FamilySUSE},
		{"arch", "arch", FamilyArch},
		{"alpine", "alpine", FamilyAlpine},

		{"ubuntu maps to debian", "ubuntu", FamilyDebian},
		{"centos maps to rhel", "centos", FamilyRHEL},
		{"opensuse maps to suse", "opensuse", FamilySUSE},
		{"manjaro maps to arch", "manjaro", FamilyArch},

		{"RHEL all caps", "RHEL", FamilyRHEL},
		{"with spaces", "  debian  ", FamilyDebian},

		{"empty", "", FamilyUnknown},
		{"unrecognized", "somethingelse", FamilyUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mapFamily(tt.input); got != tt.want {
				t.Errorf("mapFamily() = %v, want %v", got, tt.want)
			}
		})
	}
}
