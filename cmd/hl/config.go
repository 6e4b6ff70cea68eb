package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/helpline1930/helpline/internal/config"
)

const defaultConfigPath = "helpline.yaml"

// loadConfig reads the config file, falling back to built-in defaults
// when the default path does not exist. An explicit path must exist.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && path == defaultConfigPath {
			return config.Parse(nil)
		}
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
