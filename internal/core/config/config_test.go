package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.Server.Port)
	assert.Equal(t, "/api", cfg.Server.Endpoint)
	assert.Equal(t, 4, cfg.Sandbox.VCPUs)
	assert.Equal(t, 45*time.Minute, cfg.Sandbox.Timeout)
	assert.Equal(t, 5000, cfg.Sandbox.Port)
	assert.Equal(t, "python3.13", cfg.Sandbox.Runtime)
	assert.Equal(t, "datadoghq.com", cfg.Agent.Site)
	assert.Equal(t, 5*time.Second, cfg.Agent.StartupWait)
	assert.Equal(t, 2*time.Second, cfg.App.SettleDelay)
	assert.True(t, cfg.App.TracingShim)
	assert.False(t, cfg.Agent.SkipInstall())
	assert.Equal(t, 30*time.Second, cfg.Health.Interval)
	assert.Equal(t, 90.0, cfg.Health.MemoryWarn)
	assert.Equal(t, 90.0, cfg.Health.CPUWarn)
}

func TestLoadConfig_EnvAliases(t *testing.T) {
	t.Setenv("FLASK_API_GITHUB_REPO", "https://github.com/example/flask-api.git")
	t.Setenv("DD_API_KEY", "secret")
	t.Setenv("SKIP_DD_AGENT_INSTALL", "true")
	t.Setenv("SERVER_PORT", "8081")
	t.Setenv("APP_SETTLE_DELAY", "0s")
	t.Setenv("HEALTH_MEMORY_WARN", "75")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "https://github.com/example/flask-api.git", cfg.Sandbox.SourceRepo)
	assert.Equal(t, "secret", cfg.Agent.APIKey)
	assert.True(t, cfg.Agent.SkipInstall())
	assert.Equal(t, "8081", cfg.Server.Port)
	assert.Equal(t, time.Duration(0), cfg.App.SettleDelay)
	assert.Equal(t, 75.0, cfg.Health.MemoryWarn)
}

func TestAgentConfig_SkipInstall(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"true", true},
		{"", false},
		{"false", false},
		{"TRUE", false},
		{"1", false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			assert.Equal(t, tt.want, AgentConfig{Skip: tt.value}.SkipInstall())
		})
	}
}

func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte("sandbox:\n  vcpus: 2\n  port: 8000\napp:\n  service_name: demo\n")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Sandbox.VCPUs)
	assert.Equal(t, 8000, cfg.Sandbox.Port)
	assert.Equal(t, "demo", cfg.App.ServiceName)
}

func TestConfigManager_Caches(t *testing.T) {
	cm := &ConfigManager{}
	cm.SetConfigPath(filepath.Join(t.TempDir(), "none.env"))

	first, err := cm.GetConfig()
	require.NoError(t, err)
	second, err := cm.GetConfig()
	require.NoError(t, err)

	assert.Same(t, first, second)
}

func TestLoadConfig_DotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := []byte("FLASK_API_GITHUB_REPO=https://github.com/example/app.git\nDD_API_KEY=from-file\nSANDBOX_VCPUS=8\nAPP_SETTLE_DELAY=3s\n")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "https://github.com/example/app.git", cfg.Sandbox.SourceRepo)
	assert.Equal(t, "from-file", cfg.Agent.APIKey)
	assert.Equal(t, 8, cfg.Sandbox.VCPUs)
	assert.Equal(t, 3*time.Second, cfg.App.SettleDelay)
}
