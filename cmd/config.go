package cmd

import (
	"os"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"

	"github.com/toxicrawl/toxicrawl/pkg/worker"
)

// loadConfig reads the shared YAML config used by every subcommand: the
// worker consumes all of it, seed and backfill only the broker, storage and
// collection sections.
func loadConfig(file string) (*worker.Config, error) {
	if file == "" {
		file = "config.yaml"
	}

	config := &worker.Config{}

	if err := defaults.Set(config); err != nil {
		return nil, err
	}

	yamlFile, err := os.ReadFile(file) //nolint:gosec // User-provided config file path
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(yamlFile, config); err != nil {
		return nil, err
	}

	return config, nil
}
