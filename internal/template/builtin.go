package template

import "embed"

//go:embed builtin/*.yaml
var builtinFS embed.FS

// Builtin returns a registry populated with the templates shipped in
// the binary.
func Builtin() (*Registry, error) {
	reg := NewRegistry()
	entries, err := builtinFS.ReadDir("builtin")
	if err != nil {
		return nil, &LoadError{Err: err}
	}
	for _, entry := range entries {
		data, err := builtinFS.ReadFile("builtin/" + entry.Name())
		if err != nil {
			return nil, &LoadError{Err: err}
		}
		t, err := Load(data)
		if err != nil {
			return nil, err
		}
		if err := reg.Register(t); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
