package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Sandbox   SandboxConfig   `mapstructure:"sandbox"`
	Agent     AgentConfig     `mapstructure:"agent"`
	App       AppConfig       `mapstructure:"app"`
	Relay     RelayConfig     `mapstructure:"relay"`
	Docker    DockerConfig    `mapstructure:"docker"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Health    HealthConfig    `mapstructure:"health"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         string        `mapstructure:"port"`
	Endpoint     string        `mapstructure:"endpoint"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// SandboxConfig describes the environment requested for every provisioning run.
type SandboxConfig struct {
	SourceRepo string        `mapstructure:"source_repo"`
	VCPUs      int           `mapstructure:"vcpus"`
	Timeout    time.Duration `mapstructure:"timeout"`
	Port       int           `mapstructure:"port"`
	Runtime    string        `mapstructure:"runtime"`
	WorkDir    string        `mapstructure:"workdir"`
}

type AgentConfig struct {
	APIKey           string        `mapstructure:"api_key"`
	Skip             string        `mapstructure:"skip"`
	Site             string        `mapstructure:"site"`
	Env              string        `mapstructure:"env"`
	APMEnabled       bool          `mapstructure:"apm_enabled"`
	InstallScriptURL string        `mapstructure:"install_script_url"`
	InstallDir       string        `mapstructure:"install_dir"`
	ConfigFile       string        `mapstructure:"config_file"`
	ServiceName      string        `mapstructure:"service_name"`
	LogFile          string        `mapstructure:"log_file"`
	StartupWait      time.Duration `mapstructure:"startup_wait"`
}

// SkipInstall reports whether agent bootstrapping was disabled. Only the
// literal "true" disables it.
func (a AgentConfig) SkipInstall() bool {
	return a.Skip == "true"
}

type AppConfig struct {
	Dir              string        `mapstructure:"dir"`
	Requirements     string        `mapstructure:"requirements"`
	Entrypoint       string        `mapstructure:"entrypoint"`
	ServiceName      string        `mapstructure:"service_name"`
	Version          string        `mapstructure:"version"`
	PropagationStyle string        `mapstructure:"propagation_style"`
	TraceAgentURL    string        `mapstructure:"trace_agent_url"`
	TracingShim      bool          `mapstructure:"tracing_shim"`
	SettleDelay      time.Duration `mapstructure:"settle_delay"`
}

type RelayConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

type DockerConfig struct {
	Host        string        `mapstructure:"host"`
	PublicHost  string        `mapstructure:"public_host"`
	MemoryLimit int64         `mapstructure:"memory_limit"`
	Network     string        `mapstructure:"network"`
	StopTimeout time.Duration `mapstructure:"stop_timeout"`
}

// HealthConfig controls the background checks behind GET /health. The warn
// values are usage percentages.
type HealthConfig struct {
	Interval       time.Duration `mapstructure:"interval"`
	SampleInterval time.Duration `mapstructure:"sample_interval"`
	MemoryWarn     float64       `mapstructure:"memory_warn"`
	CPUWarn        float64       `mapstructure:"cpu_warn"`
}

type TelemetryConfig struct {
	Enabled       bool                `mapstructure:"enabled"`
	ServiceName   string              `mapstructure:"service_name"`
	OTELCollector OTELCollectorConfig `mapstructure:"otel_collector"`
	Metrics       MetricsConfig       `mapstructure:"metrics"`
}

type OTELCollectorConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type MetricsConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// envAliases binds keys to the variable names the deployment already uses.
var envAliases = map[string]string{
	"sandbox.source_repo": "FLASK_API_GITHUB_REPO",
	"agent.api_key":       "DD_API_KEY",
	"agent.skip":          "SKIP_DD_AGENT_INSTALL",
	"agent.site":          "DD_SITE",
	"agent.env":           "DD_ENV",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "3000")
	v.SetDefault("server.endpoint", "/api")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Minute)

	v.SetDefault("sandbox.source_repo", "")
	v.SetDefault("sandbox.vcpus", 4)
	v.SetDefault("sandbox.timeout", 45*time.Minute)
	v.SetDefault("sandbox.port", 5000)
	v.SetDefault("sandbox.runtime", "python3.13")
	v.SetDefault("sandbox.workdir", "/vercel/sandbox")

	v.SetDefault("agent.api_key", "")
	v.SetDefault("agent.skip", "")
	v.SetDefault("agent.site", "datadoghq.com")
	v.SetDefault("agent.env", "dev")
	v.SetDefault("agent.apm_enabled", true)
	v.SetDefault("agent.install_script_url", "https://install.datadoghq.com/scripts/install_script_agent7.sh")
	v.SetDefault("agent.install_dir", "/opt/datadog-agent")
	v.SetDefault("agent.config_file", "/etc/datadog-agent/datadog.yaml")
	v.SetDefault("agent.service_name", "datadog-agent")
	v.SetDefault("agent.log_file", "/tmp/datadog-agent.log")
	v.SetDefault("agent.startup_wait", 5*time.Second)

	v.SetDefault("app.dir", "flask-api")
	v.SetDefault("app.requirements", "requirements.txt")
	v.SetDefault("app.entrypoint", "app.py")
	v.SetDefault("app.service_name", "flask-api")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.propagation_style", "tracecontext")
	v.SetDefault("app.trace_agent_url", "http://localhost:8126")
	v.SetDefault("app.tracing_shim", true)
	v.SetDefault("app.settle_delay", 2*time.Second)

	v.SetDefault("relay.timeout", 30*time.Second)

	v.SetDefault("docker.host", "")
	v.SetDefault("docker.public_host", "localhost")
	v.SetDefault("docker.memory_limit", int64(0))
	v.SetDefault("docker.network", "")
	v.SetDefault("docker.stop_timeout", 10*time.Second)

	v.SetDefault("health.interval", 30*time.Second)
	v.SetDefault("health.sample_interval", 5*time.Second)
	v.SetDefault("health.memory_warn", 90.0)
	v.SetDefault("health.cpu_warn", 90.0)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "sandbox-provisioner")
	v.SetDefault("telemetry.otel_collector.host", "localhost")
	v.SetDefault("telemetry.otel_collector.port", 4317)
	v.SetDefault("telemetry.metrics.interval", 15*time.Second)
}

// LoadConfig reads the optional config file at path and overlays the process
// environment. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for key, env := range envAliases {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			known := v.AllKeys()
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
			if filepath.Ext(path) == ".env" {
				applyFlatKeys(v, known)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode into config struct: %w", err)
	}

	return &config, nil
}

// applyFlatKeys maps SERVER_PORT style entries from a dotenv file onto the
// nested keys. They are applied as defaults so the process environment still wins.
func applyFlatKeys(v *viper.Viper, known []string) {
	flat := make(map[string]string, len(known)+len(envAliases))
	for _, key := range known {
		flat[strings.ReplaceAll(key, ".", "_")] = key
	}
	for key, env := range envAliases {
		flat[strings.ToLower(env)] = key
	}

	for _, k := range v.AllKeys() {
		if target, ok := flat[k]; ok && target != k {
			v.SetDefault(target, v.Get(k))
		}
	}
}

type ConfigManager struct {
	config     *Config
	configPath string
	mutex      sync.RWMutex
}

var (
	instance *ConfigManager
	once     sync.Once
)

func GetConfigManager() *ConfigManager {
	once.Do(func() {
		instance = &ConfigManager{
			configPath: ".env",
		}
	})
	return instance
}

func (cm *ConfigManager) SetConfigPath(path string) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()
	cm.configPath = path
	cm.config = nil
}

func (cm *ConfigManager) GetConfigPath() string {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()
	return cm.configPath
}

func (cm *ConfigManager) GetConfig() (*Config, error) {
	cm.mutex.RLock()
	if cm.config != nil {
		defer cm.mutex.RUnlock()
		return cm.config, nil
	}
	cm.mutex.RUnlock()

	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	if cm.config != nil {
		return cm.config, nil
	}

	var err error
	cm.config, err = LoadConfig(cm.configPath)
	return cm.config, err
}
