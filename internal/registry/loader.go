package registry

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// registryFile is the on-disk schema: a document with a top-level "services"
// list. A bare top-level list is also accepted for convenience.
type registryFile struct {
	Services []Service `yaml:"services"`
}

// Load reads the service catalogue from the YAML file at path.
// It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("registry: open %q: %w", path, err)
	}
	defer f.Close()

	reg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("registry: parse %q: %w", path, err)
	}
	return reg, nil
}

// LoadFromReader decodes a YAML service catalogue from r.
//
// Malformed entries (missing id, name, or url) are skipped with a warning
// rather than failing the whole load; a partially usable catalogue beats none.
// Duplicate IDs keep the first occurrence and drop later ones, also with a
// warning. An error is returned only when the document itself cannot be
// decoded or no usable entry remains.
func LoadFromReader(r io.Reader) (*Registry, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}

	var file registryFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		// Retry as a bare top-level list.
		var list []Service
		if listErr := yaml.Unmarshal(raw, &list); listErr != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
		file.Services = list
	}
	if len(file.Services) == 0 {
		var list []Service
		if err := yaml.Unmarshal(raw, &list); err == nil {
			file.Services = list
		}
	}

	seen := make(map[string]bool, len(file.Services))
	valid := make([]Service, 0, len(file.Services))
	for i, svc := range file.Services {
		if svc.ID == "" || svc.Name == "" || svc.URL == "" {
			slog.Warn("skipping malformed service entry",
				"index", i, "id", svc.ID, "name", svc.Name)
			continue
		}
		if seen[svc.ID] {
			slog.Warn("skipping duplicate service id", "index", i, "id", svc.ID)
			continue
		}
		seen[svc.ID] = true
		valid = append(valid, svc)
	}

	if len(valid) == 0 {
		return nil, fmt.Errorf("no valid service entries")
	}
	return New(valid), nil
}
