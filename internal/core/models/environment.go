package models

import (
	"errors"
	"fmt"
	"time"
)

type SourceType string

const (
	SourceTypeGit SourceType = "git"
)

// Source locates the artifact an environment is created from.
type Source struct {
	URL  string     `json:"url"`
	Type SourceType `json:"type"`
}

type Resources struct {
	VCPUs   int    `json:"vcpus"`
	Runtime string `json:"runtime"`
}

// EnvironmentSpec is what the orchestrator asks the provider for.
type EnvironmentSpec struct {
	Source    Source        `json:"source"`
	Resources Resources     `json:"resources"`
	Timeout   time.Duration `json:"timeout"`
	Ports     []int         `json:"ports"`
}

func (s EnvironmentSpec) Validate() error {
	if s.Source.URL == "" {
		return errors.New("source url is required")
	}
	if s.Source.Type != SourceTypeGit {
		return fmt.Errorf("unsupported source type: %q", s.Source.Type)
	}
	if s.Resources.VCPUs <= 0 {
		return errors.New("vcpus must be positive")
	}
	if s.Resources.Runtime == "" {
		return errors.New("runtime is required")
	}
	if s.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}
	for _, p := range s.Ports {
		if p <= 0 || p > 65535 {
			return fmt.Errorf("invalid port: %d", p)
		}
	}
	return nil
}

// Environment describes a created sandbox. The live handle is ports.Sandbox.
type Environment struct {
	ID        string        `json:"id"`
	Resources Resources     `json:"resources"`
	Timeout   time.Duration `json:"timeout"`
	Ports     []int         `json:"ports"`
	WorkDir   string        `json:"workdir"`
	CreatedAt time.Time     `json:"created_at"`
}

func (e Environment) Exposes(port int) bool {
	for _, p := range e.Ports {
		if p == port {
			return true
		}
	}
	return false
}
