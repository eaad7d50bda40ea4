package installer

import (
	"regexp"
	"strings"
)

var (
	// pip/uv: "Successfully installed fastapi-0.104.1 uvicorn-0.24.0"
	successLineRe = regexp.MustCompile(`Successfully installed (.+)`)
	// poetry: "  - Installing fastapi (0.104.1)" / "Installing fastapi (0.104.1)"
	poetryInstallRe = regexp.MustCompile(`Installing\s+(\S+)\s+\(([^)]+)\)`)
)

// parseInstalled extracts name/version pairs from backend output. An
// unrecognized output shape yields nil; the install itself already
// succeeded by the time this runs.
func parseInstalled(output, backend string) []Package {
	switch backend {
	case "pip", "uv":
		m := successLineRe.FindStringSubmatch(output)
		if m == nil {
			return nil
		}
		var pkgs []Package
		for _, item := range strings.Fields(m[1]) {
			idx := strings.LastIndex(item, "-")
			if idx <= 0 || idx == len(item)-1 {
				continue
			}
			pkgs = append(pkgs, Package{Name: item[:idx], Version: item[idx+1:]})
		}
		return pkgs
	case "poetry":
		var pkgs []Package
		for _, m := range poetryInstallRe.FindAllStringSubmatch(output, -1) {
			pkgs = append(pkgs, Package{Name: m[1], Version: m[2]})
		}
		return pkgs
	default:
		return nil
	}
}

// SpecifierName strips extras and version constraints from a package
// specifier: "uvicorn[standard]>=0.24.0" -> "uvicorn".
func SpecifierName(spec string) string {
	name := spec
	if i := strings.IndexByte(name, '['); i >= 0 {
		name = name[:i]
	}
	if i := strings.IndexAny(name, "><=!~"); i >= 0 {
		name = name[:i]
	}
	return strings.TrimSpace(name)
}
