// Package wizard drives the installation state machine: a fixed sequence of
// stages, each run by an injected executor, with durable progress so a
// restarted process resumes reporting from the last persisted record.
package wizard

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arrstack/arrstack/internal/core/domain"
)

// =============================================================================
// Stages
// =============================================================================

// Stage identifiers, in execution order.
const (
	StagePreCheck          = "pre_check"
	StageDependencyInstall = "dependency_install"
	StageDockerSetup       = "docker_setup"
	StageGenerateCompose   = "generate_compose"
	StageServiceSetup      = "service_setup"
	StageContainerCreation = "container_creation"
	StagePostInstall       = "post_install"
	StageFinalization      = "finalization"
)

// StageOrder is the canonical stage sequence.
var StageOrder = []string{
	StagePreCheck,
	StageDependencyInstall,
	StageDockerSetup,
	StageGenerateCompose,
	StageServiceSetup,
	StageContainerCreation,
	StagePostInstall,
	StageFinalization,
}

// StageNames maps stage identifiers to display names.
var StageNames = map[string]string{
	StagePreCheck:          "System Compatibility Check",
	StageDependencyInstall: "Installing Dependencies",
	StageDockerSetup:       "Setting Up Docker",
	StageGenerateCompose:   "Generating Compose Files",
	StageServiceSetup:      "Configuring Services",
	StageContainerCreation: "Creating Containers",
	StagePostInstall:       "Post-Installation Configuration",
	StageFinalization:      "Finalizing Installation",
}

// Reporter lets a stage executor publish progress and log lines while it
// runs. Updates are persisted immediately so a polling caller sees them.
type Reporter interface {
	Progress(pct int)
	Log(message string)
}

// StageFunc executes one stage. It blocks for the duration of the underlying
// work; progressive feedback goes through the Reporter. A nil return is the
// explicit success signal that lets the machine advance.
type StageFunc func(ctx context.Context, rep Reporter) error

// Executors maps each stage identifier to its executor. Every stage in
// StageOrder must be present.
type Executors map[string]StageFunc

// StatusStore persists the installation record.
type StatusStore interface {
	SaveInstallStatus(ctx context.Context, status domain.InstallStatus) error
}

// =============================================================================
// Machine
// =============================================================================

// Machine is the installation state machine. Safe for concurrent status
// reads while a stage runs; execution is single-flight: Run and RunStage
// fail with ErrStageRunning while an executor is in flight.
type Machine struct {
	executors Executors
	store     StatusStore
	logger    *slog.Logger
	now       func() time.Time

	mu      sync.Mutex
	status  domain.InstallStatus
	running bool
}

// New builds a machine starting from a fresh not_started record.
func New(executors Executors, store StatusStore, logger *slog.Logger) *Machine {
	m := &Machine{
		executors: executors,
		store:     store,
		logger:    logger,
		now:       time.Now,
	}
	m.status = domain.InstallStatus{
		CurrentStage: StagePreCheck,
		StageName:    StageNames[StagePreCheck],
		State:        domain.InstallNotStarted,
	}
	return m
}

// Resume replaces the machine's record with a persisted one. The machine
// trusts the record as-is; it does not re-verify prior stage results.
func (m *Machine) Resume(status domain.InstallStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = status
}

// Status returns a snapshot of the installation record.
func (m *Machine) Status() domain.InstallStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneStatus(m.status)
}

// Run executes the remaining stages in order, starting from the current
// stage. A fresh machine runs the full sequence; one resumed from an error
// record retries the failing stage and continues. Returns the first stage
// failure, leaving the machine halted in that stage.
func (m *Machine) Run(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return ErrStageRunning
	}
	if m.status.State == domain.InstallCompleted {
		m.mu.Unlock()
		return ErrRunComplete
	}
	m.running = true
	defer m.release()
	m.begin()
	start := stageIndex(m.status.CurrentStage)
	m.mu.Unlock()
	if start < 0 {
		return ErrUnknownStage
	}

	for _, stage := range StageOrder[start:] {
		if err := m.runStage(ctx, stage); err != nil {
			return err
		}
	}

	m.finish()
	return nil
}

// RunStage executes a single stage: the current one (including an explicit
// retry after failure) or the immediate next one after a success.
func (m *Machine) RunStage(ctx context.Context, stage string) error {
	idx := stageIndex(stage)
	if idx < 0 {
		return ErrUnknownStage
	}

	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return ErrStageRunning
	}
	if m.status.State == domain.InstallCompleted {
		m.mu.Unlock()
		return ErrRunComplete
	}
	current := stageIndex(m.status.CurrentStage)
	if idx != current && idx != current+1 {
		m.mu.Unlock()
		return ErrStageOrder
	}
	if idx == current+1 && m.status.State == domain.InstallError {
		// The failing stage has to succeed before anything after it runs.
		m.mu.Unlock()
		return ErrStageOrder
	}
	m.running = true
	defer m.release()
	m.begin()
	m.mu.Unlock()

	if err := m.runStage(ctx, stage); err != nil {
		return err
	}
	if stage == StageFinalization {
		m.finish()
	}
	return nil
}

// =============================================================================
// Execution
// =============================================================================

// release clears the single-flight marker once execution finishes.
func (m *Machine) release() {
	m.mu.Lock()
	m.running = false
	m.mu.Unlock()
}

// begin transitions a fresh or failed record into in_progress. Caller holds
// the lock.
func (m *Machine) begin() {
	if m.status.State == domain.InstallNotStarted {
		now := m.now()
		m.status.RunID = uuid.New().String()
		m.status.StartedAt = &now
		m.status.AddLog(now, "Starting installation process")
	}
	m.status.State = domain.InstallInProgress
}

func (m *Machine) runStage(ctx context.Context, stage string) error {
	exec, ok := m.executors[stage]
	if !ok {
		return ErrUnknownStage
	}

	m.mu.Lock()
	m.status.CurrentStage = stage
	m.status.StageName = StageNames[stage]
	m.status.StageProgress = 0
	m.recalcProgress()
	m.status.AddLog(m.now(), "Stage started: "+StageNames[stage])
	m.persist(ctx)
	runID := m.status.RunID
	m.mu.Unlock()

	m.logger.Info("wizard stage started", "stage", stage, "run_id", runID)

	err := exec(ctx, &stageReporter{m: m, ctx: ctx, stage: stage})
	if err != nil {
		serr := NewStageError(stage, "executor failed", err)
		m.mu.Lock()
		m.status.State = domain.InstallError
		m.status.AddError(m.now(), serr.Error())
		m.persist(ctx)
		m.mu.Unlock()
		m.logger.Error("wizard stage failed", "stage", stage, "error", err)
		return serr
	}

	m.mu.Lock()
	m.status.StageProgress = 100
	m.recalcProgress()
	m.status.AddLog(m.now(), "Stage completed: "+StageNames[stage])
	m.persist(ctx)
	m.mu.Unlock()

	m.logger.Info("wizard stage completed", "stage", stage)
	return nil
}

func (m *Machine) finish() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.status.State = domain.InstallCompleted
	m.status.Progress = 100
	m.status.EndedAt = &now
	m.status.AddLog(now, "Installation completed in "+m.status.Elapsed().Round(time.Second).String())
	m.persist(context.Background())
}

// recalcProgress applies the equal-weight formula: completed stages plus the
// running stage's fractional contribution, never reporting 100 before the
// run completes. Caller holds the lock.
func (m *Machine) recalcProgress() {
	idx := stageIndex(m.status.CurrentStage)
	if idx < 0 {
		return
	}
	total := len(StageOrder)
	completed := idx * 100 / total
	fraction := m.status.StageProgress / total
	p := completed + fraction
	if p > 99 && m.status.State != domain.InstallCompleted {
		p = 99
	}
	if p > m.status.Progress {
		m.status.Progress = p
	}
}

// persist writes the record through the store. A storage failure is logged,
// not fatal: losing a progress snapshot must not abort an installation.
// Caller holds the lock.
func (m *Machine) persist(ctx context.Context) {
	if m.store == nil {
		return
	}
	if err := m.store.SaveInstallStatus(ctx, cloneStatus(m.status)); err != nil {
		m.logger.Warn("failed to persist installation status", "error", err)
	}
}

func stageIndex(stage string) int {
	for i, s := range StageOrder {
		if s == stage {
			return i
		}
	}
	return -1
}

func cloneStatus(s domain.InstallStatus) domain.InstallStatus {
	out := s
	out.Logs = append([]string(nil), s.Logs...)
	out.Errors = append([]string(nil), s.Errors...)
	return out
}

// stageReporter funnels executor progress updates into the machine record.
type stageReporter struct {
	m     *Machine
	ctx   context.Context
	stage string
}

func (r *stageReporter) Progress(pct int) {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.status.CurrentStage != r.stage {
		return
	}
	r.m.status.StageProgress = pct
	r.m.recalcProgress()
	r.m.persist(r.ctx)
}

func (r *stageReporter) Log(message string) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.status.AddLog(r.m.now(), message)
	r.m.persist(r.ctx)
}
