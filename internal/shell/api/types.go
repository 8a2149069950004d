package api

// =============================================================================
// Request Types
// =============================================================================

// ToggleServiceRequest is the request body for enabling or disabling a service.
type ToggleServiceRequest struct {
	Enabled bool `json:"enabled"`
}

// =============================================================================
// Response Types
// =============================================================================

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HealthResponse is the response for health checks.
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadyResponse is the response for readiness checks.
type ReadyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// ToggleServiceResponse confirms a service toggle.
type ToggleServiceResponse struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

// PlanResponse carries a generated deployment plan.
type PlanResponse struct {
	Compose    string   `json:"compose"`
	Env        string   `json:"env"`
	Containers []string `json:"containers"`
}

// ApplyResponse confirms an applied plan.
type ApplyResponse struct {
	Status     string   `json:"status"`
	Containers []string `json:"containers"`
}

// ActionResponse confirms a single-container lifecycle operation.
type ActionResponse struct {
	Status    string `json:"status"`
	Container string `json:"container"`
}

// LogsResponse carries container log output.
type LogsResponse struct {
	Container string `json:"container"`
	Logs      string `json:"logs"`
}

// InstallRunResponse acknowledges a started installation run. RunID is empty
// until the run's first stage begins; poll the status endpoint for progress.
type InstallRunResponse struct {
	Status string `json:"status"`
	RunID  string `json:"run_id,omitempty"`
}
