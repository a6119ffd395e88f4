package models

import (
	"io"
	"strings"
)

// Command is a single invocation inside a sandbox. Env applies to this
// invocation only and is never written into the sandbox shell environment.
type Command struct {
	Cmd      string
	Args     []string
	Env      map[string]string
	WorkDir  string
	Sudo     bool
	Detached bool
	Stdout   io.Writer
	Stderr   io.Writer
}

func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Cmd
	}
	return c.Cmd + " " + strings.Join(c.Args, " ")
}

type CommandResult struct {
	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	Detached bool   `json:"detached"`
}

func (r *CommandResult) Success() bool {
	return r != nil && r.ExitCode == 0
}

// Output returns stdout followed by stderr, trimmed.
func (r *CommandResult) Output() string {
	if r == nil {
		return ""
	}
	return strings.TrimSpace(strings.TrimSpace(r.Stdout) + "\n" + strings.TrimSpace(r.Stderr))
}
