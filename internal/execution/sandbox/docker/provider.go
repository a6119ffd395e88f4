package docker

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/go-connections/nat"
	"github.com/google/uuid"

	"github.com/theblitlabs/sandbox-provisioner/internal/core/models"
	"github.com/theblitlabs/sandbox-provisioner/internal/core/ports"
	"github.com/theblitlabs/sandbox-provisioner/pkg/logger"
)

const labelManaged = "io.sandbox-provisioner.managed"

type ProviderConfig struct {
	Host        string
	PublicHost  string
	MemoryLimit int64
	Network     string
	WorkDir     string
	StopTimeout time.Duration
}

// Provider creates sandboxes as Docker containers. The container's main
// process sleeps for the requested timeout, so an abandoned sandbox expires
// and is auto-removed on its own.
type Provider struct {
	client dockerAPI
	images *ImageManager
	config ProviderConfig
}

func NewProvider(config ProviderConfig) (*Provider, error) {
	log := logger.WithComponent("docker")

	cli, err := newDockerClient(config.Host)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create Docker client")
		return nil, fmt.Errorf("failed to create Docker client: %w", err)
	}

	log.Debug().
		Str("public_host", config.PublicHost).
		Int64("memory_limit", config.MemoryLimit).
		Str("network", config.Network).
		Msg("Docker provider initialized")

	return newProvider(cli, config), nil
}

func newProvider(c dockerAPI, config ProviderConfig) *Provider {
	if config.PublicHost == "" {
		config.PublicHost = "localhost"
	}
	if config.WorkDir == "" {
		config.WorkDir = "/workspace"
	}
	if config.StopTimeout <= 0 {
		config.StopTimeout = 10 * time.Second
	}
	return &Provider{
		client: c,
		images: NewImageManager(c),
		config: config,
	}
}

// Ping checks that the Docker daemon answers and describes it.
func (p *Provider) Ping(ctx context.Context) (string, error) {
	ping, err := p.client.Ping(ctx)
	if err != nil {
		return "", fmt.Errorf("docker daemon not responding: %w", err)
	}
	return fmt.Sprintf("Docker daemon running (API %s, %s)", ping.APIVersion, ping.OSType), nil
}

func (p *Provider) Close() error {
	return p.client.Close()
}

func (p *Provider) Create(ctx context.Context, spec models.EnvironmentSpec) (ports.Sandbox, error) {
	log := logger.WithComponent("docker")

	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid environment spec: %w", err)
	}

	image := ImageForRuntime(spec.Resources.Runtime)
	if err := p.images.EnsureImageAvailable(ctx, image); err != nil {
		log.Error().Err(err).Str("image", image).Msg("Failed to prepare image")
		return nil, fmt.Errorf("image preparation failed: %w", err)
	}

	exposed := nat.PortSet{}
	bindings := nat.PortMap{}
	for _, port := range spec.Ports {
		natPort, err := nat.NewPort("tcp", strconv.Itoa(port))
		if err != nil {
			return nil, fmt.Errorf("invalid port %d: %w", port, err)
		}
		exposed[natPort] = struct{}{}
		bindings[natPort] = []nat.PortBinding{{HostIP: "0.0.0.0", HostPort: ""}}
	}

	id := uuid.New().String()
	hostConfig := &container.HostConfig{
		PortBindings: bindings,
		AutoRemove:   true,
		Resources: container.Resources{
			NanoCPUs: int64(spec.Resources.VCPUs) * 1e9,
			Memory:   p.config.MemoryLimit,
		},
	}
	if p.config.Network != "" {
		hostConfig.NetworkMode = container.NetworkMode(p.config.Network)
	}

	created, err := p.client.ContainerCreate(ctx,
		&container.Config{
			Image:        image,
			Cmd:          []string{"sleep", strconv.Itoa(int(spec.Timeout.Seconds()))},
			ExposedPorts: exposed,
			Labels: map[string]string{
				labelManaged:                "true",
				"io.sandbox-provisioner.id": id,
			},
		},
		hostConfig, nil, nil, "sandbox-"+id)
	if err != nil {
		log.Error().Err(err).Str("image", image).Msg("Container creation failed")
		return nil, fmt.Errorf("container creation failed: %w", err)
	}

	sb := &Sandbox{
		client:      p.client,
		containerID: created.ID,
		publicHost:  p.config.PublicHost,
		stopTimeout: p.config.StopTimeout,
		info: models.Environment{
			ID:        id,
			Resources: spec.Resources,
			Timeout:   spec.Timeout,
			Ports:     append([]int(nil), spec.Ports...),
			WorkDir:   p.config.WorkDir,
			CreatedAt: time.Now(),
		},
	}

	if err := p.client.ContainerStart(ctx, created.ID, types.ContainerStartOptions{}); err != nil {
		log.Error().Err(err).Str("container_id", created.ID).Msg("Container start failed")
		p.discard(sb)
		return nil, fmt.Errorf("container start failed: %w", err)
	}

	log.Info().
		Str("sandbox_id", id).
		Str("container_id", created.ID).
		Str("image", image).
		Int("vcpus", spec.Resources.VCPUs).
		Dur("timeout", spec.Timeout).
		Msg("Container started")

	if err := p.checkout(ctx, sb, spec.Source); err != nil {
		p.discard(sb)
		return nil, err
	}

	return sb, nil
}

// checkout places the source artifact in the sandbox work directory.
func (p *Provider) checkout(ctx context.Context, sb *Sandbox, source models.Source) error {
	log := logger.WithComponent("docker")

	result, err := sb.RunCommand(ctx, models.Command{
		Cmd:  "git",
		Args: []string{"clone", "--depth", "1", source.URL, p.config.WorkDir},
		Sudo: true,
	})
	if err != nil {
		return fmt.Errorf("source checkout failed: %w", err)
	}
	if !result.Success() {
		log.Error().
			Str("sandbox_id", sb.info.ID).
			Int("exit_code", result.ExitCode).
			Str("output", result.Output()).
			Msg("Source checkout failed")
		return fmt.Errorf("source checkout failed with exit code %d", result.ExitCode)
	}
	return nil
}

func (p *Provider) discard(sb *Sandbox) {
	ctx, cancel := context.WithTimeout(context.Background(), p.config.StopTimeout+5*time.Second)
	defer cancel()
	if err := sb.Stop(ctx); err != nil {
		log := logger.WithComponent("docker")
		log.Debug().Err(err).Str("container_id", sb.containerID).Msg("Cleanup after failed create")
	}
}

var _ ports.SandboxProvider = (*Provider)(nil)
