package platform

import "strings"

// familyMap maps distribution family strings from gopsutil to canonical families.
var familyMap = map[string]string{
	"debian":   FamilyDebian,
	"ubuntu":   FamilyDebian, // gopsutil might return ubuntu as family
	"rhel":     FamilyRHEL,
	"centos":   FamilyRHEL,
	"rocky":    FamilyRHEL,
	"fedora":   FamilyFedora,
	"suse":     FamilySUSE,
	"opensuse": FamilySUSE,
	"arch":     FamilyArch,
	"manjaro":  FamilyArch,
	"alpine":   FamilyAlpine,
}

// archAliases maps uname-style names to GOARCH names.
var archAliases = map[string]string{
	"x86_64":  "amd64",
	"x64":     "amd64",
	"aarch64": "arm64",
	"armv7l":  "arm",
}

// normalizeArch converts an architecture name to its GOARCH spelling.
// Unknown names pass through lowercased; whether a release exists for them
// is decided by the consumer.
func normalizeArch(arch string) string {
	arch = strings.ToLower(strings.TrimSpace(arch))
	if canonical, ok := archAliases[arch]; ok {
		return canonical
	}
	return arch
}

// normalizeID lowercases and trims distribution IDs and versions.
func normalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// mapFamily maps distribution family strings to canonical family names.
func mapFamily(family string) string {
	if canonical, ok := familyMap[normalizeID(family)]; ok {
		return canonical
	}
	return FamilyUnknown
}
