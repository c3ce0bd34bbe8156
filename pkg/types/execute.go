package types

// ExecuteRequest is the first message sent on the execution websocket.
type ExecuteRequest struct {
	ScriptPath string   `json:"script_path"`
	Args       []string `json:"args,omitempty"`
}

// SessionInfo describes one active execution session in the registry.
// ReturnCode is null while the child is still running.
type SessionInfo struct {
	PID        int    `json:"pid"`
	Status     string `json:"status"` // "running" or "finished"
	ReturnCode *int   `json:"return_code"`
}

// ActiveProcesses is the response of the process inspection endpoint.
type ActiveProcesses struct {
	ActiveProcesses map[string]SessionInfo `json:"active_processes"`
	Count           int                    `json:"count"`
}

// RunRecord is one durable history entry per execution session.
type RunRecord struct {
	SessionID  string   `json:"session_id"`
	Script     string   `json:"script"`
	Args       []string `json:"args,omitempty"`
	Status     string   `json:"status"` // "completed", "failed" or "cancelled"
	ExitCode   int      `json:"exit_code"`
	StartedAt  string   `json:"started_at"`
	EndedAt    string   `json:"ended_at"`
	DurationMs int      `json:"duration_ms"`
}

// Run statuses stored in the history database.
const (
	RunCompleted = "completed"
	RunFailed    = "failed"
	RunCancelled = "cancelled"
)
