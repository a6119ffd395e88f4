package cli

import (
	"github.com/theblitlabs/sandbox-provisioner/internal/core/config"
	"github.com/theblitlabs/sandbox-provisioner/internal/execution/sandbox/docker"
	"github.com/theblitlabs/sandbox-provisioner/internal/services"
	"github.com/theblitlabs/sandbox-provisioner/internal/utils/errorutil"
)

func loadConfig() (*config.Config, error) {
	cm := config.GetConfigManager()
	cfg, err := cm.GetConfig()
	return cfg, errorutil.WrapError(err, "failed to load config from %s", cm.GetConfigPath())
}

func newDockerProvider(cfg *config.Config) (*docker.Provider, error) {
	provider, err := docker.NewProvider(docker.ProviderConfig{
		Host:        cfg.Docker.Host,
		PublicHost:  cfg.Docker.PublicHost,
		MemoryLimit: cfg.Docker.MemoryLimit,
		Network:     cfg.Docker.Network,
		WorkDir:     cfg.Sandbox.WorkDir,
		StopTimeout: cfg.Docker.StopTimeout,
	})
	return provider, errorutil.WrapError(err, "failed to create sandbox provider")
}

// currentOptions reads the provisioning options from the shared config.
func currentOptions() (services.ProvisionOptions, error) {
	cfg, err := loadConfig()
	if err != nil {
		return services.ProvisionOptions{}, err
	}
	return services.OptionsFromConfig(cfg), nil
}
