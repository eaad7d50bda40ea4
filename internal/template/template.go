// Package template loads and validates the declarative setup templates
// a run is driven by: interpreter constraint, grouped dependency
// specifiers, editor settings overlay, and extension recommendations.
package template

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned when a template cannot be found in the registry.
var ErrNotFound = errors.New("template: not found")

// LoadError reports a template that failed parsing or validation. The
// orchestrator treats it as fatal before any phase starts.
type LoadError struct {
	Slug string
	Err  error
}

func (e *LoadError) Error() string {
	if e.Slug == "" {
		return fmt.Sprintf("template: %v", e.Err)
	}
	return fmt.Sprintf("template %q: %v", e.Slug, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Editor is the template's editor-configuration overlay.
type Editor struct {
	Settings   map[string]any `json:"settings,omitempty"   yaml:"settings"`
	Extensions []string       `json:"extensions,omitempty" yaml:"extensions"`
	Launch     map[string]any `json:"launch,omitempty"     yaml:"launch"`
}

// Template is one validated setup template.
type Template struct {
	Name          string              `json:"name"               yaml:"name"`
	Slug          string              `json:"slug"               yaml:"slug"`
	Description   string              `json:"description"        yaml:"description"`
	PythonVersion string              `json:"python_version"     yaml:"python_version"`
	Backends      []string            `json:"backends"           yaml:"backends"`
	Dependencies  map[string][]string `json:"dependencies"       yaml:"dependencies"`
	Editor        Editor              `json:"editor"             yaml:"editor"`
	Tags          []string            `json:"tags,omitempty"     yaml:"tags"`
	DocsURL       string              `json:"docs_url,omitempty" yaml:"docs_url"`
	Docs          string              `json:"docs,omitempty"     yaml:"docs"` // markdown detail text
}

var (
	slugRe      = regexp.MustCompile(`^[a-z0-9-]{3,20}$`)
	extensionRe = regexp.MustCompile(`^[^.\s]+\.[^\s]+$`)
)

var knownBackends = map[string]bool{"pip": true, "uv": true, "poetry": true}

// Load parses YAML bytes into a validated Template.
func Load(data []byte) (Template, error) {
	var t Template
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Template{}, &LoadError{Err: fmt.Errorf("failed to parse YAML: %w", err)}
	}
	if err := t.Validate(); err != nil {
		return Template{}, &LoadError{Slug: t.Slug, Err: err}
	}
	return t, nil
}

// Validate checks the structural rules a usable template must satisfy.
func (t *Template) Validate() error {
	if t.Name == "" {
		return errors.New("name is required")
	}
	if !slugRe.MatchString(t.Slug) {
		return fmt.Errorf("slug %q must be 3-20 chars of [a-z0-9-]", t.Slug)
	}
	if t.PythonVersion == "" {
		return errors.New("python_version is required")
	}
	if len(t.Backends) == 0 {
		return errors.New("at least one backend is required")
	}
	for _, b := range t.Backends {
		if !knownBackends[b] {
			return fmt.Errorf("unknown backend %q", b)
		}
	}
	if len(t.Dependencies["core"]) == 0 {
		return errors.New("dependencies must include a non-empty core group")
	}
	for _, ext := range t.Editor.Extensions {
		if !extensionRe.MatchString(ext) {
			return fmt.Errorf("extension %q must look like publisher.name", ext)
		}
	}
	return nil
}

// Packages returns the specifiers of the named groups in order, always
// starting with core. Unknown group names are ignored.
func (t *Template) Packages(groups []string) []string {
	ordered := append([]string{"core"}, groups...)
	seen := make(map[string]bool)
	var out []string
	for _, g := range ordered {
		if seen[g] {
			continue
		}
		seen[g] = true
		out = append(out, t.Dependencies[g]...)
	}
	return out
}

// Groups returns the template's dependency group names, core first,
// the rest alphabetical.
func (t *Template) Groups() []string {
	var rest []string
	for g := range t.Dependencies {
		if g != "core" {
			rest = append(rest, g)
		}
	}
	sort.Strings(rest)
	return append([]string{"core"}, rest...)
}

// SupportsBackend reports whether the template allows the backend.
func (t *Template) SupportsBackend(name string) bool {
	for _, b := range t.Backends {
		if b == name {
			return true
		}
	}
	return false
}

// LoadDir loads every *.yaml / *.yml file from a directory. A file that
// fails to parse or validate fails the whole load; templates are
// user-authored input and silent skips hide typos.
func LoadDir(dir string) ([]Template, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &LoadError{Err: fmt.Errorf("read directory %q: %w", dir, err)}
	}

	var templates []Template
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, &LoadError{Err: err}
		}
		t, err := Load(data)
		if err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	return templates, nil
}

// Registry is a thread-safe store of templates keyed by slug.
type Registry struct {
	mu        sync.RWMutex
	templates map[string]Template
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{templates: make(map[string]Template)}
}

// Register adds a template, replacing any previous one with the slug.
func (r *Registry) Register(t Template) error {
	if err := t.Validate(); err != nil {
		return &LoadError{Slug: t.Slug, Err: err}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.templates[t.Slug] = t
	return nil
}

// Get retrieves a template by slug.
func (r *Registry) Get(slug string) (Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.templates[slug]
	if !ok {
		return Template{}, ErrNotFound
	}
	return t, nil
}

// List returns all templates sorted by slug.
func (r *Registry) List() []Template {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]Template, 0, len(r.templates))
	for _, t := range r.templates {
		list = append(list, t)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Slug < list[j].Slug })
	return list
}

// Search returns templates whose name, slug, description or tags
// contain the query, case-insensitively.
func (r *Registry) Search(query string) []Template {
	q := strings.ToLower(query)
	var out []Template
	for _, t := range r.List() {
		if strings.Contains(strings.ToLower(t.Name), q) ||
			strings.Contains(t.Slug, q) ||
			strings.Contains(strings.ToLower(t.Description), q) ||
			tagsMatch(t.Tags, q) {
			out = append(out, t)
		}
	}
	return out
}

func tagsMatch(tags []string, q string) bool {
	for _, tag := range tags {
		if strings.Contains(strings.ToLower(tag), q) {
			return true
		}
	}
	return false
}
