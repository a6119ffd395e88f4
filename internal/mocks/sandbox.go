package mocks

import (
	"context"
	"strings"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/theblitlabs/sandbox-provisioner/internal/core/models"
	"github.com/theblitlabs/sandbox-provisioner/internal/core/ports"
)

type MockSandboxProvider struct {
	mock.Mock
}

func (m *MockSandboxProvider) Create(ctx context.Context, spec models.EnvironmentSpec) (ports.Sandbox, error) {
	args := m.Called(ctx, spec)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(ports.Sandbox), args.Error(1)
}

// CommandRule answers every command whose rendered text contains Match.
type CommandRule struct {
	Match  string
	Result models.CommandResult
	Err    error
}

// FakeSandbox is a scripted ports.Sandbox. Rules are checked in the order
// they were added; unmatched commands succeed with exit code 0.
type FakeSandbox struct {
	mu sync.Mutex

	Env       models.Environment
	Rules     []CommandRule
	Commands  []models.Command
	DomainURL string
	DomainErr error
	StopErr   error
	Stopped   int
}

func NewFakeSandbox(id string) *FakeSandbox {
	return &FakeSandbox{
		Env: models.Environment{
			ID:        id,
			Resources: models.Resources{VCPUs: 4, Runtime: "python3.13"},
			Ports:     []int{5000},
			WorkDir:   "/vercel/sandbox",
		},
		DomainURL: "https://" + id + ".sandbox.test",
	}
}

// On adds a rule returning the given exit code.
func (f *FakeSandbox) On(match string, exitCode int) *FakeSandbox {
	return f.OnResult(match, models.CommandResult{ExitCode: exitCode}, nil)
}

func (f *FakeSandbox) OnResult(match string, result models.CommandResult, err error) *FakeSandbox {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Rules = append(f.Rules, CommandRule{Match: match, Result: result, Err: err})
	return f
}

func (f *FakeSandbox) Info() models.Environment {
	return f.Env
}

func (f *FakeSandbox) RunCommand(_ context.Context, cmd models.Command) (*models.CommandResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Commands = append(f.Commands, cmd)
	text := cmd.String()
	for _, rule := range f.Rules {
		if strings.Contains(text, rule.Match) {
			if rule.Err != nil {
				return nil, rule.Err
			}
			result := rule.Result
			result.Detached = cmd.Detached
			if cmd.Detached {
				result.ExitCode = 0
			}
			return &result, nil
		}
	}
	return &models.CommandResult{Detached: cmd.Detached}, nil
}

func (f *FakeSandbox) Domain(port int) (string, error) {
	if f.DomainErr != nil {
		return "", f.DomainErr
	}
	return f.DomainURL, nil
}

func (f *FakeSandbox) Stop(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Stopped++
	return f.StopErr
}

// Ran reports whether any executed command contains match.
func (f *FakeSandbox) Ran(match string) bool {
	return f.Count(match) > 0
}

func (f *FakeSandbox) Count(match string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, cmd := range f.Commands {
		if strings.Contains(cmd.String(), match) {
			n++
		}
	}
	return n
}

// Find returns the first executed command containing match.
func (f *FakeSandbox) Find(match string) (models.Command, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, cmd := range f.Commands {
		if strings.Contains(cmd.String(), match) {
			return cmd, true
		}
	}
	return models.Command{}, false
}

var (
	_ ports.SandboxProvider = (*MockSandboxProvider)(nil)
	_ ports.Sandbox         = (*FakeSandbox)(nil)
)
