// Package config collects run settings from the environment. Command-line flags override
// individual fields after Load.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/codalotl/sampleverify/internal/container"
	"github.com/codalotl/sampleverify/internal/oracle"
	"github.com/codalotl/sampleverify/internal/repair"
	"github.com/codalotl/sampleverify/internal/verify"
)

const (
	EnvVarOpenAIKey     = "OPENAI_API_KEY"
	EnvVarOpenAIModel   = "OPENAI_MODEL"
	EnvVarOpenAIBaseURL = "OPENAI_BASE_URL"
	EnvVarRepairRPM     = "SAMPLEVERIFY_REPAIR_RPM"
)

// secretPath is read when OPENAI_API_KEY is unset (podman/docker secrets).
var secretPath = "/run/secrets/openai_api_key"

type Config struct {
	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string `validate:"omitempty,url"`

	// RepairAgent, then RepairCommand, take precedence over the OpenAI API.
	RepairAgent   string `validate:"omitempty,oneof=claude codalotl codex crush cursor-agent"`
	RepairModel   string
	RepairCommand string
	RepairRPM     int `validate:"gte=0,lte=10000"`

	ContainerRuntime string `validate:"required"`
	LanguagesFile    string

	MaxAttempts int `validate:"gte=1,lte=20"`
	Parallel    int `validate:"gte=1,lte=64"`
}

// Load reads the environment. It fails only on malformed values; call Validate once flags
// have been applied.
func Load() (Config, error) {
	cfg := Config{
		OpenAIAPIKey:     strings.TrimSpace(os.Getenv(EnvVarOpenAIKey)),
		OpenAIModel:      strings.TrimSpace(os.Getenv(EnvVarOpenAIModel)),
		OpenAIBaseURL:    strings.TrimSpace(os.Getenv(EnvVarOpenAIBaseURL)),
		RepairAgent:      strings.ToLower(strings.TrimSpace(os.Getenv(repair.EnvVarRepairAgent))),
		RepairModel:      strings.TrimSpace(os.Getenv(repair.EnvVarRepairModel)),
		RepairCommand:    strings.TrimSpace(os.Getenv(repair.EnvVarRepairCommand)),
		ContainerRuntime: strings.TrimSpace(os.Getenv(container.EnvVarRuntime)),
		LanguagesFile:    strings.TrimSpace(os.Getenv(oracle.EnvVarLanguages)),
		MaxAttempts:      verify.DefaultMaxAttempts,
		Parallel:         4,
	}
	if cfg.OpenAIAPIKey == "" {
		if b, err := os.ReadFile(secretPath); err == nil {
			cfg.OpenAIAPIKey = strings.TrimSpace(string(b))
		}
	}
	if cfg.OpenAIModel == "" {
		cfg.OpenAIModel = repair.DefaultModel
	}
	if cfg.ContainerRuntime == "" {
		cfg.ContainerRuntime = "docker"
	}
	if raw := strings.TrimSpace(os.Getenv(EnvVarRepairRPM)); raw != "" {
		rpm, err := strconv.Atoi(raw)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %q is not a number", EnvVarRepairRPM, raw)
		}
		cfg.RepairRPM = rpm
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// HasRepairBackend reports whether a repair function can be built.
func (c Config) HasRepairBackend() bool {
	return c.RepairAgent != "" || c.RepairCommand != "" || c.OpenAIAPIKey != ""
}

// Completer builds the configured repair backend. It returns nil, nil when none is configured.
func (c Config) Completer(logger *slog.Logger) (repair.Completer, error) {
	var (
		completer repair.Completer
		err       error
	)
	switch {
	case c.RepairAgent != "":
		var cmd *repair.Command
		cmd, err = repair.NewAgent(c.RepairAgent, c.RepairModel, "")
		completer = cmd
	case c.RepairCommand != "":
		var cmd *repair.Command
		cmd, err = repair.NewCommand(c.RepairCommand, "")
		completer = cmd
	case c.OpenAIAPIKey != "":
		var client *repair.OpenAI
		client, err = repair.NewOpenAI(repair.OpenAIOptions{
			APIKey:            c.OpenAIAPIKey,
			Model:             c.OpenAIModel,
			BaseURL:           c.OpenAIBaseURL,
			RequestsPerMinute: c.RepairRPM,
			Logger:            logger,
		})
		completer = client
	default:
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return completer, nil
}
