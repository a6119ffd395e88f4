package docker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"

	"github.com/theblitlabs/sandbox-provisioner/internal/core/models"
	"github.com/theblitlabs/sandbox-provisioner/internal/core/ports"
	"github.com/theblitlabs/sandbox-provisioner/pkg/logger"
)

const execPollInterval = 50 * time.Millisecond

type Sandbox struct {
	client      dockerAPI
	containerID string
	publicHost  string
	stopTimeout time.Duration
	info        models.Environment
}

func (s *Sandbox) Info() models.Environment {
	return s.info
}

func envSlice(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

func (s *Sandbox) RunCommand(ctx context.Context, cmd models.Command) (*models.CommandResult, error) {
	log := logger.WithComponent("docker.exec")

	execConfig := types.ExecConfig{
		Cmd:          append([]string{cmd.Cmd}, cmd.Args...),
		Env:          envSlice(cmd.Env),
		WorkingDir:   cmd.WorkDir,
		AttachStdout: !cmd.Detached,
		AttachStderr: !cmd.Detached,
		Detach:       cmd.Detached,
	}
	if cmd.Sudo {
		execConfig.User = "root"
	}

	created, err := s.client.ContainerExecCreate(ctx, s.containerID, execConfig)
	if err != nil {
		return nil, fmt.Errorf("exec create failed: %w", err)
	}

	if cmd.Detached {
		if err := s.client.ContainerExecStart(ctx, created.ID, types.ExecStartCheck{Detach: true}); err != nil {
			return nil, fmt.Errorf("exec start failed: %w", err)
		}
		log.Debug().
			Str("sandbox_id", s.info.ID).
			Str("exec_id", created.ID).
			Str("cmd", cmd.Cmd).
			Msg("Detached command accepted")
		return &models.CommandResult{Detached: true}, nil
	}

	attached, err := s.client.ContainerExecAttach(ctx, created.ID, types.ExecStartCheck{})
	if err != nil {
		return nil, fmt.Errorf("exec attach failed: %w", err)
	}
	defer attached.Close()

	var stdout, stderr bytes.Buffer
	var outW, errW io.Writer = &stdout, &stderr
	if cmd.Stdout != nil {
		outW = io.MultiWriter(&stdout, cmd.Stdout)
	}
	if cmd.Stderr != nil {
		errW = io.MultiWriter(&stderr, cmd.Stderr)
	}

	if _, err := stdcopy.StdCopy(outW, errW, attached.Reader); err != nil {
		return nil, fmt.Errorf("reading exec output failed: %w", err)
	}

	exitCode, err := s.waitExec(ctx, created.ID)
	if err != nil {
		return nil, err
	}

	return &models.CommandResult{
		ExitCode: exitCode,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}, nil
}

// waitExec polls until the exec process is reported as finished. The output
// stream can close slightly before the daemon records the exit code.
func (s *Sandbox) waitExec(ctx context.Context, execID string) (int, error) {
	for {
		inspect, err := s.client.ContainerExecInspect(ctx, execID)
		if err != nil {
			return -1, fmt.Errorf("exec inspect failed: %w", err)
		}
		if !inspect.Running {
			return inspect.ExitCode, nil
		}

		select {
		case <-ctx.Done():
			return -1, ctx.Err()
		case <-time.After(execPollInterval):
		}
	}
}

func (s *Sandbox) Domain(port int) (string, error) {
	if !s.info.Exposes(port) {
		return "", fmt.Errorf("port %d is not exposed", port)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	inspect, err := s.client.ContainerInspect(ctx, s.containerID)
	if err != nil {
		return "", fmt.Errorf("container inspect failed: %w", err)
	}
	if inspect.NetworkSettings == nil {
		return "", fmt.Errorf("container %s has no network settings", s.containerID)
	}

	bindings := inspect.NetworkSettings.Ports[nat.Port(strconv.Itoa(port)+"/tcp")]
	for _, b := range bindings {
		if b.HostPort != "" {
			return fmt.Sprintf("http://%s:%s", s.publicHost, b.HostPort), nil
		}
	}
	return "", fmt.Errorf("no host binding for port %d", port)
}

func (s *Sandbox) Stop(ctx context.Context) error {
	log := logger.WithComponent("docker")

	timeout := s.stopTimeout
	if err := s.client.ContainerStop(ctx, s.containerID, &timeout); err != nil && !isGone(err) {
		log.Warn().Err(err).Str("container_id", s.containerID).Msg("Container stop failed")
	}

	if err := s.client.ContainerRemove(ctx, s.containerID, types.ContainerRemoveOptions{Force: true}); err != nil && !isGone(err) {
		return fmt.Errorf("container removal failed: %w", err)
	}

	log.Info().Str("sandbox_id", s.info.ID).Str("container_id", s.containerID).Msg("Sandbox stopped")
	return nil
}

// isGone reports errors caused by the container already being removed,
// which happens when AutoRemove wins the race.
func isGone(err error) bool {
	return client.IsErrNotFound(err) || strings.Contains(err.Error(), "is already in progress")
}

var _ ports.Sandbox = (*Sandbox)(nil)
