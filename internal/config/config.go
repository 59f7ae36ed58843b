// Package config loads medkb settings from an optional YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const DefaultFile = "medkb.yaml"

type Config struct {
	DataDir   string       `yaml:"data_dir" validate:"required"`
	Evaluator string       `yaml:"evaluator" validate:"oneof=native mangle"`
	Watch     bool         `yaml:"watch"`
	Log       LogConfig    `yaml:"log"`
	Server    ServerConfig `yaml:"server"`
}

type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json text"`
	// Output is stdout, stderr or a file path.
	Output string `yaml:"output" validate:"required"`
}

type ServerConfig struct {
	Addr string `yaml:"addr" validate:"required,hostname_port"`
	// MutationRate is the sustained number of mutating requests per second.
	MutationRate  float64 `yaml:"mutation_rate" validate:"gt=0"`
	MutationBurst int     `yaml:"mutation_burst" validate:"gte=1"`
}

func DefaultConfig() *Config {
	return &Config{
		DataDir:   "data",
		Evaluator: "native",
		Watch:     true,
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Server: ServerConfig{
			Addr:          "127.0.0.1:5000",
			MutationRate:  5,
			MutationBurst: 10,
		},
	}
}

var validate = validator.New()

// Load reads path over the defaults. An empty path means DefaultFile, which
// may be absent; an explicit path must exist.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			cfg.applyEnvOverrides()
			return cfg, cfg.Validate()
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, cfg.Validate()
}

// Validate checks every field and reports all problems at once.
func (c *Config) Validate() error {
	c.Evaluator = strings.ToLower(strings.TrimSpace(c.Evaluator))
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))

	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("invalid config: %w", err)
	}
	problems := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		problems = append(problems, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("MEDKB_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("MEDKB_EVALUATOR"); v != "" {
		c.Evaluator = v
	}
	if v := os.Getenv("MEDKB_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("MEDKB_ADDR"); v != "" {
		c.Server.Addr = v
	}
}
