// Package backend builds the storage slot selected by DATA_BACKEND.
package backend

import (
	"fmt"
	"strings"

	"cambi/internal/config"
	"cambi/internal/storage"
)

// BackendType represents the type of backend
type BackendType string

const (
	MemoryBackend BackendType = config.BackendMemory
	FileBackend   BackendType = config.BackendFile
	SQLiteBackend BackendType = config.BackendSQLite
	RedisBackend  BackendType = config.BackendRedis
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, FileBackend, SQLiteBackend, RedisBackend:
		return true
	default:
		return false
	}
}

// Config holds what a factory needs to open a store.
type Config struct {
	Type BackendType
	Slot string

	DataFile     string
	SQLiteDBPath string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	MalformedPolicy storage.MalformedPolicy
}

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	return Config{
		Type:            backendType,
		Slot:            appConfig.StorageSlot,
		DataFile:        appConfig.DataFile,
		SQLiteDBPath:    appConfig.SQLiteDBPath,
		RedisAddr:       appConfig.RedisAddr,
		RedisPassword:   appConfig.RedisPassword,
		RedisDB:         appConfig.RedisDB,
		MalformedPolicy: storage.MalformedPolicy(appConfig.MalformedSlotPolicy),
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type %q (valid: %s)", c.Type, strings.Join(GetBackendTypeStrings(), ", "))
	}

	switch c.Type {
	case FileBackend:
		if c.DataFile == "" {
			return fmt.Errorf("data file path is required for file backend")
		}
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}
	case RedisBackend:
		if c.RedisAddr == "" {
			return fmt.Errorf("Redis address is required for redis backend")
		}
	case MemoryBackend:
		// nothing to check
	}

	if c.MalformedPolicy != "" {
		if err := c.MalformedPolicy.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{MemoryBackend, FileBackend, SQLiteBackend, RedisBackend}
}

// GetBackendTypeStrings returns all valid backend type strings
func GetBackendTypeStrings() []string {
	types := GetBackendTypes()
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = t.String()
	}
	return out
}
