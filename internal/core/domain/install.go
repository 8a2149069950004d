package domain

import (
	"fmt"
	"time"
)

// =============================================================================
// Installation Status
// =============================================================================

// InstallState is the lifecycle state of an installation run.
type InstallState string

const (
	InstallNotStarted InstallState = "not_started"
	InstallInProgress InstallState = "in_progress"
	InstallCompleted  InstallState = "completed"
	InstallError      InstallState = "error"
)

// InstallStatus is the durable record of a wizard run. It is created when a
// run begins and mutated only by the stage executor. A completed record is
// frozen; an error record may still advance through an explicit retry of the
// failing stage.
type InstallStatus struct {
	RunID         string       `json:"run_id"`
	CurrentStage  string       `json:"current_stage"`
	StageName     string       `json:"current_stage_name"`
	StageProgress int          `json:"stage_progress"`   // 0-100 within the stage
	Progress      int          `json:"overall_progress"` // 0-100 overall
	State         InstallState `json:"status"`
	Logs          []string     `json:"logs"`
	Errors        []string     `json:"errors"`
	StartedAt     *time.Time   `json:"start_time,omitempty"`
	EndedAt       *time.Time   `json:"end_time,omitempty"`
}

// Terminal reports whether the run has stopped advancing on its own. An
// error record is terminal until a stage is explicitly retried.
func (s *InstallStatus) Terminal() bool {
	return s.State == InstallCompleted || s.State == InstallError
}

// AddLog appends a timestamped log line.
func (s *InstallStatus) AddLog(now time.Time, message string) {
	s.Logs = append(s.Logs, fmt.Sprintf("[%s] %s", now.Format("2006-01-02 15:04:05"), message))
}

// AddError appends a timestamped error line to both the error list and the
// log so the dashboard sees errors in context.
func (s *InstallStatus) AddError(now time.Time, message string) {
	line := fmt.Sprintf("[%s] ERROR: %s", now.Format("2006-01-02 15:04:05"), message)
	s.Errors = append(s.Errors, line)
	s.Logs = append(s.Logs, line)
}

// Elapsed returns the run duration, or zero if the run has not finished.
func (s *InstallStatus) Elapsed() time.Duration {
	if s.StartedAt == nil || s.EndedAt == nil {
		return 0
	}
	return s.EndedAt.Sub(*s.StartedAt)
}
