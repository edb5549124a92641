package config

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// seedFile is the backends.yaml structure used to bootstrap an empty
// vault on first run.
type seedFile struct {
	Backends []seedBackend `yaml:"backends"`
}

type seedBackend struct {
	Name    string `yaml:"name"`
	URL     string `yaml:"url"`
	Token   string `yaml:"token"`
	Enabled *bool  `yaml:"enabled"`
}

// LoadSeed reads a YAML seed file and returns the valid backends it
// declares. Invalid entries are skipped with a log line rather than
// failing the whole file.
func LoadSeed(path string, logger *zap.Logger) ([]Backend, error) {
	logger.Debug("Loading backend seed file", zap.String("path", path))

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}

	backends := make([]Backend, 0, len(seed.Backends))
	for _, entry := range seed.Backends {
		backend := Backend{
			ID:      uuid.NewString(),
			Name:    entry.Name,
			URL:     entry.URL,
			Token:   entry.Token,
			Enabled: entry.Enabled == nil || *entry.Enabled,
		}
		if err := backend.Validate(); err != nil {
			logger.Warn("Skipping invalid seed backend",
				zap.String("name", entry.Name),
				zap.Error(err))
			continue
		}
		backends = append(backends, backend)
	}

	logger.Info("Backend seed file loaded",
		zap.String("path", path),
		zap.Int("backends", len(backends)))
	return backends, nil
}
