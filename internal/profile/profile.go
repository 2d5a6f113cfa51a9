// Package profile persists the issuer identity printed on invoices.
package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"invoicepilot/internal/core"
)

type file struct {
	Business core.BusinessProfile `yaml:"business"`
}

// Store keeps the current profile in memory and writes changes to a YAML
// file. It is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	path    string
	current core.BusinessProfile
}

// Load reads the profile at path. A missing file yields the built-in
// defaults; fields absent from the file keep their default values.
func Load(path string) (*Store, error) {
	s := &Store{path: path, current: core.DefaultBusiness()}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return s, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	f := file{Business: s.current}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse profile %s: %w", path, err)
	}
	s.current = f.Business
	return s, nil
}

// Get returns the current profile.
func (s *Store) Get() core.BusinessProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Update validates p, writes it to disk and makes it current.
func (s *Store) Update(p core.BusinessProfile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := save(s.path, p); err != nil {
		return err
	}
	s.current = p
	return nil
}

func save(path string, p core.BusinessProfile) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create profile directory: %w", err)
	}
	data, err := yaml.Marshal(file{Business: p})
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write profile: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace profile: %w", err)
	}
	return nil
}
