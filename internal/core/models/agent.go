package models

type AgentState string

const (
	AgentStateNotAttempted        AgentState = "not_attempted"
	AgentStateInstallFailed       AgentState = "install_failed"
	AgentStateInstalledNotRunning AgentState = "installed_not_running"
	AgentStateRunning             AgentState = "running"
	AgentStateRunningDegraded     AgentState = "running_degraded"
)

// IsRunning reports whether an agent process is believed to be up.
func (s AgentState) IsRunning() bool {
	return s == AgentStateRunning || s == AgentStateRunningDegraded
}
