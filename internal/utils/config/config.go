package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
	k8syaml "sigs.k8s.io/yaml"
)

//go:embed schema/config.schema.json
var configSchema string

const configSchemaURL = "config.schema.json"

// GlobalConfig is the tool-wide configuration file.
type GlobalConfig struct {
	Workers int           `yaml:"workers"`
	TempDir string        `yaml:"temp_dir"`
	Logging LoggingConfig `yaml:"logging"`
	Signing SigningConfig `yaml:"signing"`
	Verify  VerifyConfig  `yaml:"verify"`
	Build   BuildConfig   `yaml:"build"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// SigningConfig points at the private key. The passphrase itself never
// lives in the file; PassphraseEnv names the variable holding it.
type SigningConfig struct {
	KeyFile       string `yaml:"key_file"`
	PassphraseEnv string `yaml:"passphrase_env"`
}

// VerifyConfig names the public keys used to check signatures: a local
// path or an https URL.
type VerifyConfig struct {
	KeySource string `yaml:"key_source"`
}

type BuildConfig struct {
	Compression string `yaml:"compression"`
}

// DefaultGlobalConfig returns the configuration used when no file is given.
func DefaultGlobalConfig() *GlobalConfig {
	return &GlobalConfig{
		Workers: 4,
		TempDir: os.TempDir(),
		Logging: LoggingConfig{Level: "info"},
		Signing: SigningConfig{PassphraseEnv: "RPMKIT_PASSPHRASE"},
		Build:   BuildConfig{Compression: "gzip"},
	}
}

// LoadGlobalConfig reads path on top of the defaults. An empty path yields
// the defaults.
func LoadGlobalConfig(path string) (*GlobalConfig, error) {
	if path == "" {
		return DefaultGlobalConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	cfg, err := ParseGlobalConfig(data)
	if err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// ParseGlobalConfig validates data against the config schema and decodes
// it on top of the defaults.
func ParseGlobalConfig(data []byte) (*GlobalConfig, error) {
	if err := validateAgainstSchema(data); err != nil {
		return nil, err
	}
	cfg := DefaultGlobalConfig()
	if len(bytes.TrimSpace(data)) == 0 {
		return cfg, nil
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	return cfg, nil
}

func validateAgainstSchema(data []byte) error {
	jsonData, err := k8syaml.YAMLToJSON(data)
	if err != nil {
		return fmt.Errorf("parsing YAML: %w", err)
	}
	if string(bytes.TrimSpace(jsonData)) == "null" {
		return nil
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(configSchemaURL, strings.NewReader(configSchema)); err != nil {
		return fmt.Errorf("loading config schema: %w", err)
	}
	schema, err := compiler.Compile(configSchemaURL)
	if err != nil {
		return fmt.Errorf("compiling config schema: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(jsonData))
	dec.UseNumber()
	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("decoding config: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}
