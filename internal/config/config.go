package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
)

const envPrefix = "SSHAGENT"

type Settings struct {
	DataPath     string `envconfig:"DATA_PATH" default:""`
	DatabasePath string `envconfig:"DATABASE_PATH" default:""`
	ListenAddr   string `envconfig:"LISTEN_ADDR" default:"127.0.0.1:8022"`

	// Logging
	LogPath   string `envconfig:"LOG_PATH" default:""`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`
}

var Cfg Settings

// Load reads SSHAGENT_* environment variables into Cfg and fills in the
// paths derived from the data directory.
func Load() error {
	var s Settings
	if err := envconfig.Process(envPrefix, &s); err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if s.DataPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("load config: resolve data path: %w", err)
		}
		s.DataPath = filepath.Join(home, ".sshagent")
	}
	if s.DatabasePath == "" {
		s.DatabasePath = filepath.Join(s.DataPath, "keys.db")
	}
	Cfg = s
	return nil
}
