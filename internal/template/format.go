package template

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FormatList formats templates as a table with columns SLUG, NAME,
// PYTHON, BACKENDS, and DESCRIPTION.
func FormatList(templates []Template) string {
	if len(templates) == 0 {
		return "No templates.\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-14s %-14s %-9s %-16s %s\n", "SLUG", "NAME", "PYTHON", "BACKENDS", "DESCRIPTION")
	for _, t := range templates {
		fmt.Fprintf(&b, "%-14s %-14s %-9s %-16s %s\n",
			t.Slug, t.Name, t.PythonVersion, strings.Join(t.Backends, ","), t.Description)
	}
	return b.String()
}

// FormatDetail formats one template with its dependency groups and
// editor configuration summary.
func FormatDetail(t Template) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\nSlug: %s\nDescription: %s\n", t.Name, t.Slug, t.Description)
	fmt.Fprintf(&b, "Python: %s\nBackends: %s\n", t.PythonVersion, strings.Join(t.Backends, ", "))
	if len(t.Tags) > 0 {
		fmt.Fprintf(&b, "Tags: %s\n", strings.Join(t.Tags, ", "))
	}
	if t.DocsURL != "" {
		fmt.Fprintf(&b, "Docs: %s\n", t.DocsURL)
	}

	b.WriteString("\nDependency groups:\n")
	for _, g := range t.Groups() {
		fmt.Fprintf(&b, "  %-10s %s\n", g, strings.Join(t.Dependencies[g], ", "))
	}

	if len(t.Editor.Extensions) > 0 {
		b.WriteString("\nEditor extensions:\n")
		for _, ext := range t.Editor.Extensions {
			fmt.Fprintf(&b, "  %s\n", ext)
		}
	}
	return b.String()
}

// FormatListJSON marshals templates as indented JSON.
func FormatListJSON(templates []Template) (string, error) {
	data, err := json.MarshalIndent(templates, "", "  ")
	if err != nil {
		return "", fmt.Errorf("template: json marshal: %w", err)
	}
	return string(data), nil
}
