package strategy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/anmolg1997/kg-rag/pkg/logger"
)

// SaveFile writes the active strategies to a YAML file.
func (m *Manager) SaveFile(path string) error {
	combined := m.Combined()

	raw, err := yaml.Marshal(combined)
	if err != nil {
		return fmt.Errorf("marshal strategies: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write strategy file: %w", err)
	}

	logger.Info("saved strategies", "path", path)
	return nil
}

// LoadFile reads strategies from a YAML file, validates them, and activates
// both. The active preset becomes custom.
func (m *Manager) LoadFile(path string) (Combined, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Combined{}, fmt.Errorf("read strategy file: %w", err)
	}

	var combined Combined
	if err := yaml.Unmarshal(raw, &combined); err != nil {
		return Combined{}, fmt.Errorf("%w: %v", ErrInvalidStrategy, err)
	}
	if err := m.check(combined.Extraction); err != nil {
		return Combined{}, err
	}
	if err := m.check(combined.Retrieval); err != nil {
		return Combined{}, err
	}

	m.mu.Lock()
	m.extraction = combined.Extraction.Clone()
	m.retrieval = combined.Retrieval.Clone()
	m.preset = ""
	m.mu.Unlock()

	logger.Info("loaded strategies", "path", path)
	return combined.Clone(), nil
}
