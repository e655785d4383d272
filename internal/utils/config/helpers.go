package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/open-edge-platform/rpmkit/internal/rpm/compressor"
)

// ConfigHelpers provides convenient access to global configuration
type ConfigHelpers struct {
	config *GlobalConfig
}

// NewConfigHelpers creates a new config helpers instance
func NewConfigHelpers(config *GlobalConfig) *ConfigHelpers {
	return &ConfigHelpers{config: config}
}

// Workers returns the number of concurrent workers
func (c *ConfigHelpers) Workers() int {
	if c.config.Workers < 1 {
		return 1
	}
	return c.config.Workers
}

// TempDir returns the temporary directory path
func (c *ConfigHelpers) TempDir() string {
	if c.config.TempDir == "" {
		return os.TempDir()
	}
	return c.config.TempDir
}

// LogLevel returns the configured log level
func (c *ConfigHelpers) LogLevel() string {
	return c.config.Logging.Level
}

// IsDebugMode returns true if debug logging is enabled
func (c *ConfigHelpers) IsDebugMode() bool {
	return c.config.Logging.Level == "debug"
}

// SigningKeyFile returns the absolute path of the private signing key
func (c *ConfigHelpers) SigningKeyFile() (string, error) {
	if c.config.Signing.KeyFile == "" {
		return "", fmt.Errorf("no signing key configured")
	}
	return filepath.Abs(c.config.Signing.KeyFile)
}

// Passphrase reads the signing key passphrase from the configured
// environment variable. An unset variable means no passphrase.
func (c *ConfigHelpers) Passphrase() []byte {
	if c.config.Signing.PassphraseEnv == "" {
		return nil
	}
	v, ok := os.LookupEnv(c.config.Signing.PassphraseEnv)
	if !ok {
		return nil
	}
	return []byte(v)
}

// VerifyKeySource returns where public keys are loaded from
func (c *ConfigHelpers) VerifyKeySource() string {
	return c.config.Verify.KeySource
}

// Compression returns the payload codec for new packages
func (c *ConfigHelpers) Compression() (compressor.Kind, error) {
	return compressor.FromString(c.config.Build.Compression)
}

// GetConfig returns the underlying global config (for advanced usage)
func (c *ConfigHelpers) GetConfig() *GlobalConfig {
	return c.config
}

// CreateTempDir ensures a temp subdirectory exists
func (c *ConfigHelpers) CreateTempDir(subdir string) (string, error) {
	tempDir := filepath.Join(c.TempDir(), subdir)
	err := createDirIfNotExists(tempDir)
	return tempDir, err
}

// Helper function to create directories
func createDirIfNotExists(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, 0755)
	}
	return nil
}
