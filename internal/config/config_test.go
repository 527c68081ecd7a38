package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codalotl/sampleverify/internal/container"
	"github.com/codalotl/sampleverify/internal/oracle"
	"github.com/codalotl/sampleverify/internal/repair"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvVarOpenAIKey, EnvVarOpenAIModel, EnvVarOpenAIBaseURL, EnvVarRepairRPM,
		repair.EnvVarRepairCommand, repair.EnvVarRepairAgent, repair.EnvVarRepairModel, container.EnvVarRuntime, oracle.EnvVarLanguages} {
		t.Setenv(k, "")
	}
	orig := secretPath
	secretPath = filepath.Join(t.TempDir(), "missing")
	t.Cleanup(func() { secretPath = orig })
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "docker", cfg.ContainerRuntime)
	require.Equal(t, repair.DefaultModel, cfg.OpenAIModel)
	require.Equal(t, 5, cfg.MaxAttempts)
	require.False(t, cfg.HasRepairBackend())
	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvVarOpenAIKey, " sk-env ")
	t.Setenv(EnvVarOpenAIBaseURL, "http://localhost:8080/v1")
	t.Setenv(EnvVarRepairRPM, "30")
	t.Setenv(container.EnvVarRuntime, "podman")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "sk-env", cfg.OpenAIAPIKey)
	require.Equal(t, 30, cfg.RepairRPM)
	require.Equal(t, "podman", cfg.ContainerRuntime)
	require.True(t, cfg.HasRepairBackend())
	require.NoError(t, cfg.Validate())
}

func TestLoadReadsSecretFile(t *testing.T) {
	clearEnv(t)
	secretPath = filepath.Join(t.TempDir(), "openai_api_key")
	require.NoError(t, os.WriteFile(secretPath, []byte("sk-secret\n"), 0o600))

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "sk-secret", cfg.OpenAIAPIKey)
}

func TestLoadRejectsBadRPM(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvVarRepairRPM, "fast")
	_, err := Load()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	require.NoError(t, err)

	bad := cfg
	bad.MaxAttempts = 0
	require.Error(t, bad.Validate())

	bad = cfg
	bad.OpenAIBaseURL = "not a url"
	require.Error(t, bad.Validate())

	bad = cfg
	bad.Parallel = 0
	require.Error(t, bad.Validate())
}

func TestCompleterPrecedence(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	require.NoError(t, err)

	c, err := cfg.Completer(nil)
	require.NoError(t, err)
	require.Nil(t, c)

	cfg.OpenAIAPIKey = "sk-test"
	c, err = cfg.Completer(nil)
	require.NoError(t, err)
	require.IsType(t, &repair.OpenAI{}, c)

	cfg.RepairCommand = "claude -p"
	c, err = cfg.Completer(nil)
	require.NoError(t, err)
	require.IsType(t, &repair.Command{}, c)

	cfg.RepairAgent = "nope"
	require.Error(t, cfg.Validate())
	_, err = cfg.Completer(nil)
	require.Error(t, err)
}

func TestLoadRepairAgent(t *testing.T) {
	clearEnv(t)
	t.Setenv(repair.EnvVarRepairAgent, " Codex ")
	t.Setenv(repair.EnvVarRepairModel, "gpt-5")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "codex", cfg.RepairAgent)
	require.Equal(t, "gpt-5", cfg.RepairModel)
	require.True(t, cfg.HasRepairBackend())
	require.NoError(t, cfg.Validate())
}
