package bot

import (
	"fmt"

	coreconfig "github.com/m3rciful/fruitbot/core/config"
	coredatabase "github.com/m3rciful/fruitbot/core/database"
	"github.com/m3rciful/fruitbot/internal/intake"
	"github.com/m3rciful/fruitbot/internal/metrics"
	"github.com/m3rciful/fruitbot/internal/oracle"
	"github.com/m3rciful/fruitbot/internal/session"
)

// Config is the full application configuration: the shared transport
// sections plus storage, oracle, session and metrics settings.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database coredatabase.Config `yaml:"database"`
	Gemini   oracle.Config       `yaml:"gemini"`
	Session  session.Config      `yaml:"session"`
	Metrics  metrics.Config      `yaml:"metrics"`
	Messages intake.Messages     `yaml:"messages"`
}

// CoreConfig exposes the transport configuration.
func (c *Config) CoreConfig() *coreconfig.Config {
	return &c.Config
}

// LoadConfig reads path (may be empty), overlays the environment and validates every section.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates every section and fills defaults.
func (c *Config) Normalize() error {
	if err := coreconfig.Normalize(&c.Config); err != nil {
		return err
	}
	if c.Database.Driver == "" {
		c.Database.Driver = coredatabase.DriverSQLite
	}
	if err := c.Database.Normalize(); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := c.Gemini.Normalize(); err != nil {
		return err
	}
	if err := c.Session.Normalize(); err != nil {
		return err
	}
	c.Messages = c.Messages.WithDefaults()
	return nil
}

// LoadDatabaseConfig reads only the database section, for tooling that
// must not require bot or oracle credentials.
func LoadDatabaseConfig(path string) (coredatabase.Config, error) {
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return coredatabase.Config{}, err
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = coredatabase.DriverSQLite
	}
	if err := cfg.Database.Normalize(); err != nil {
		return coredatabase.Config{}, fmt.Errorf("database: %w", err)
	}
	return cfg.Database, nil
}
