package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Database DatabaseConfig
	Grid     GridConfig
	Seed     SeedConfig
}

// DatabaseConfig holds sqlite settings.
type DatabaseConfig struct {
	Path string
}

// GridConfig holds default query state.
type GridConfig struct {
	Page  int
	Limit int
}

// SeedConfig holds demo dataset settings.
type SeedConfig struct {
	Rows int
}

// LoadConfig reads configuration from file and env. Env var overrides use
// prefix GRIDSTATE_; an empty path falls back to GRIDSTATE_CONFIG and then
// ~/.config/gridstate/config.toml.
func LoadConfig(path string) (Config, error) {
	v := viper.New()

	v.SetDefault("database.path", filepath.Join(os.Getenv("HOME"), ".local", "share", "gridstate", "gridstate.db"))
	v.SetDefault("grid.page", 1)
	v.SetDefault("grid.limit", 10)
	v.SetDefault("seed.rows", 50)

	v.SetConfigType("toml")

	if path == "" {
		path = os.Getenv("GRIDSTATE_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "gridstate"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("GRIDSTATE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		// An explicitly named file must exist; the default search is
		// allowed to come up empty.
		if path != "" {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}
