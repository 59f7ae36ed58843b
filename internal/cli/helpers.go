package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/morozRed/medkb/internal/config"
	"github.com/morozRed/medkb/internal/engine"
	"github.com/morozRed/medkb/internal/logging"
)

type runtime struct {
	cfg    *config.Config
	logger *zap.Logger
	engine *engine.Engine
}

func (r *runtime) Close() {
	if r.logger != nil {
		_ = r.logger.Sync()
	}
}

// LoadConfig reads the config file named by --config and applies the
// persistent flag overrides.
func LoadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := OptionalStringFlag(cmd, "config")
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	overrides := []struct {
		flag   string
		target *string
	}{
		{"data-dir", &cfg.DataDir},
		{"evaluator", &cfg.Evaluator},
		{"log-level", &cfg.Log.Level},
	}
	for _, o := range overrides {
		value, err := OptionalStringFlag(cmd, o.flag)
		if err != nil {
			return nil, err
		}
		if value != "" {
			*o.target = value
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg.DataDir, err = resolveDataDir(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func openRuntime(cmd *cobra.Command) (*runtime, error) {
	cfg, err := LoadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	eng, err := engine.New(engine.Options{
		DataDir:   cfg.DataDir,
		Evaluator: cfg.Evaluator,
		Logger:    logger,
		SaveState: true,
	})
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("failed to load knowledge base: %w", err)
	}
	return &runtime{cfg: cfg, logger: logger, engine: eng}, nil
}

func IsCorruptStateError(err error) bool {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return true
	}
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &typeErr)
}

func pluralize(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
