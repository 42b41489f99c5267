package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/forensor/forensor/internal/domain"
)

const fileName = ".forensor.yaml"

// YAMLLoader implements domain.ConfigLoader by reading .forensor.yaml.
type YAMLLoader struct{}

// New creates a YAMLLoader.
func New() *YAMLLoader { return &YAMLLoader{} }

// Load reads .forensor.yaml from projectPath. A missing file yields
// DefaultConfig. Keys present in the file override only the fields they
// name; everything else keeps its default. Validation failures abort
// before any scanning starts.
func (l *YAMLLoader) Load(projectPath string) (domain.AuditConfig, error) {
	data, err := os.ReadFile(filepath.Join(projectPath, fileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.DefaultConfig(), nil
		}
		return domain.AuditConfig{}, err
	}

	cfg := domain.DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return domain.AuditConfig{}, fmt.Errorf("parsing %s: %w", fileName, err)
	}

	if err := cfg.Validate(); err != nil {
		return domain.AuditConfig{}, fmt.Errorf("invalid %s: %w", fileName, err)
	}

	return cfg, nil
}
