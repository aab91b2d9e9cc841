package backend

import (
	"errors"

	"spendwise/internal/config"
)

// Config selects and parameterizes a backend.
type Config struct {
	Type         BackendType
	SQLiteDBPath string
}

// FromAppConfig picks the backend settings out of the application config.
func FromAppConfig(cfg *config.Config) (Config, error) {
	if cfg == nil {
		return Config{}, errors.New("backend: nil application config")
	}
	t, err := ParseType(cfg.DataBackend)
	if err != nil {
		return Config{}, err
	}
	return Config{Type: t, SQLiteDBPath: cfg.SQLiteDBPath}, nil
}

func (c Config) validate() error {
	if _, err := ParseType(string(c.Type)); err != nil {
		return err
	}
	if c.Type == SQLiteBackend && c.SQLiteDBPath == "" {
		return errors.New("backend: sqlite needs a database path")
	}
	return nil
}
