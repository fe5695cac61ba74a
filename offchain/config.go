package offchain

import (
	"fmt"
	"strings"
)

const (
	BackendSQLite = "sqlite"
	BackendBolt   = "bolt"
	BackendMemory = "memory"
)

type Config struct {
	Backend string
	Path    string
}

func DefaultConfig() *Config {
	return &Config{Backend: BackendSQLite, Path: "btcrelay.db"}
}

// Open creates the Storage selected by cfg.
func Open(cfg *Config) (Storage, error) {
	switch strings.ToLower(cfg.Backend) {
	case BackendSQLite, "":
		return NewSQLiteStorage(cfg.Path)
	case BackendBolt:
		return NewBoltStorage(cfg.Path)
	case BackendMemory:
		return NewMemStorage(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}
