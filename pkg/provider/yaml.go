package provider

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// file is the on-disk layout of a descriptor table.
type file struct {
	Providers []Descriptor `yaml:"providers"`
}

// Decode reads a YAML descriptor table and validates every entry.
//
//	providers:
//	  - name: acme
//	    protocol: oauth2
//	    auth_url: https://id.acme.test/authorize
//	    token_url: https://id.acme.test/token
//	    profile_url: https://id.acme.test/me
//	    mapping:
//	      id: profile.sub
func Decode(r io.Reader) ([]Descriptor, error) {
	var f file
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, errors.Join(ErrInvalidDescriptor, err)
	}

	seen := make(map[string]struct{}, len(f.Providers))
	for i, d := range f.Providers {
		if err := d.Validate(); err != nil {
			return nil, fmt.Errorf("providers[%d]: %w", i, err)
		}
		if _, dup := seen[d.Name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateProvider, d.Name)
		}
		seen[d.Name] = struct{}{}
	}
	return f.Providers, nil
}

// LoadFile decodes the descriptor table at path.
func LoadFile(path string) ([]Descriptor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open providers file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return Decode(f)
}
