// Package api provides HTTP handlers for the arrstack API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/arrstack/arrstack/internal/core/catalog"
	"github.com/arrstack/arrstack/internal/core/domain"
	"github.com/arrstack/arrstack/internal/core/plan"
	"github.com/arrstack/arrstack/internal/core/status"
	"github.com/arrstack/arrstack/internal/core/wizard"
	"github.com/arrstack/arrstack/internal/shell/docker"
	"github.com/arrstack/arrstack/internal/shell/installer"
	"github.com/arrstack/arrstack/internal/shell/orchestrator"
	"github.com/arrstack/arrstack/internal/shell/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// =============================================================================
// Handler
// =============================================================================

// Handler provides HTTP handlers for the API.
type Handler struct {
	store     store.Store
	docker    docker.Client
	orch      *orchestrator.Orchestrator
	installer *installer.Installer
	prober    installer.HostProber
	catalog   *catalog.Catalog
	logger    *slog.Logger

	// cfgMu and selMu serialize read-modify-write cycles on the two
	// configuration documents. installMu guards the wizard machine; the
	// machine itself serializes stage execution per run.
	cfgMu     sync.Mutex
	selMu     sync.Mutex
	installMu sync.Mutex
	machine   *wizard.Machine
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, d docker.Client, orch *orchestrator.Orchestrator, inst *installer.Installer, prober installer.HostProber, cat *catalog.Catalog, l *slog.Logger) *Handler {
	if l == nil {
		l = slog.Default()
	}
	if cat == nil {
		cat = catalog.Default()
	}
	return &Handler{
		store:     s,
		docker:    d,
		orch:      orch,
		installer: inst,
		prober:    prober,
		catalog:   cat,
		logger:    l,
	}
}

// Routes returns the router with all routes configured.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(h.jsonContentType)
	r.Use(h.requestIDHeader)

	// Health endpoints
	r.Get("/health", h.handleHealth)
	r.Get("/ready", h.handleReady)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/compatibility", h.handleCompatibility)

		r.Route("/config", func(r chi.Router) {
			r.Get("/", h.handleGetConfig)
			r.Put("/", h.handlePutConfig)
		})

		r.Route("/selection", func(r chi.Router) {
			r.Get("/", h.handleGetSelection)
			r.Put("/", h.handlePutSelection)
		})

		r.Route("/services", func(r chi.Router) {
			r.Get("/", h.handleListServices)
			r.Post("/{name}/toggle", h.handleToggleService)
		})

		r.Route("/plan", func(r chi.Router) {
			r.Post("/generate", h.handleGeneratePlan)
			r.Post("/apply", h.handleApplyPlan)
		})

		r.Route("/containers", func(r chi.Router) {
			r.Get("/", h.handleListContainers)
			r.Post("/restart-all", h.handleRestartAll)
			r.Post("/update-all", h.handleUpdateAll)
			r.Post("/{name}/start", h.handleStartContainer)
			r.Post("/{name}/stop", h.handleStopContainer)
			r.Post("/{name}/restart", h.handleRestartContainer)
			r.Post("/{name}/update", h.handleUpdateContainer)
			r.Get("/{name}/logs", h.handleContainerLogs)
		})

		r.Route("/install", func(r chi.Router) {
			r.Get("/status", h.handleInstallStatus)
			r.Post("/run", h.handleInstallRun)
			r.Post("/stage/{stage}", h.handleInstallStage)
		})
	})

	return r
}

// =============================================================================
// Middleware
// =============================================================================

// jsonContentType sets Content-Type header to application/json.
func (h *Handler) jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// requestIDHeader copies the request ID to the response header.
func (h *Handler) requestIDHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reqID := middleware.GetReqID(r.Context()); reqID != "" {
			w.Header().Set("X-Request-ID", reqID)
		}
		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// Health Handlers
// =============================================================================

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy"})
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)

	// Check database (implicit - if we got here, store was created)
	checks["database"] = "ok"

	// Check Docker
	if err := h.docker.Ping(); err != nil {
		checks["docker"] = "failed"
		h.writeJSON(w, http.StatusServiceUnavailable, ReadyResponse{
			Status: "not_ready",
			Checks: checks,
		})
		return
	}
	checks["docker"] = "ok"

	h.writeJSON(w, http.StatusOK, ReadyResponse{
		Status: "ready",
		Checks: checks,
	})
}

func (h *Handler) handleCompatibility(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.loadConfig(r)
	if err != nil {
		h.logger.Error("failed to load configuration", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to load configuration", "internal_error")
		return
	}
	h.writeJSON(w, http.StatusOK, h.prober.Compatibility(cfg.DockerDir))
}

// =============================================================================
// Config Handlers
// =============================================================================

func (h *Handler) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.loadConfig(r)
	if err != nil {
		h.logger.Error("failed to load configuration", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to load configuration", "internal_error")
		return
	}
	h.writeJSON(w, http.StatusOK, cfg)
}

func (h *Handler) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	var cfg domain.BaseConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON", "validation_error")
		return
	}

	if err := cfg.Validate(); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error(), "validation_error")
		return
	}

	h.cfgMu.Lock()
	defer h.cfgMu.Unlock()

	if err := h.store.SaveBaseConfig(r.Context(), cfg); err != nil {
		h.logger.Error("failed to save configuration", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to save configuration", "internal_error")
		return
	}

	h.writeJSON(w, http.StatusOK, cfg)
}

// =============================================================================
// Selection Handlers
// =============================================================================

func (h *Handler) handleGetSelection(w http.ResponseWriter, r *http.Request) {
	sel, err := h.loadSelection(r)
	if err != nil {
		h.logger.Error("failed to load service selection", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to load service selection", "internal_error")
		return
	}
	h.writeJSON(w, http.StatusOK, sel)
}

func (h *Handler) handlePutSelection(w http.ResponseWriter, r *http.Request) {
	var sel domain.SelectionState
	if err := json.NewDecoder(r.Body).Decode(&sel); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON", "validation_error")
		return
	}

	// Unknown identifiers are dropped, missing ones filled in as disabled.
	sel = sel.Normalize(h.catalog)

	h.selMu.Lock()
	defer h.selMu.Unlock()

	if err := h.store.SaveSelection(r.Context(), sel); err != nil {
		h.logger.Error("failed to save service selection", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to save service selection", "internal_error")
		return
	}

	h.writeJSON(w, http.StatusOK, sel)
}

// =============================================================================
// Service Handlers
// =============================================================================

func (h *Handler) handleListServices(w http.ResponseWriter, r *http.Request) {
	sel, err := h.loadSelection(r)
	if err != nil {
		h.logger.Error("failed to load service selection", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to load service selection", "internal_error")
		return
	}

	containers := h.orch.ContainerStatus(r.Context())
	h.writeJSON(w, http.StatusOK, status.BuildServiceInfo(sel, containers, h.catalog))
}

func (h *Handler) handleToggleService(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req ToggleServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON", "validation_error")
		return
	}

	h.selMu.Lock()
	defer h.selMu.Unlock()

	sel, err := h.loadSelection(r)
	if err != nil {
		h.logger.Error("failed to load service selection", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to load service selection", "internal_error")
		return
	}

	if !sel.Toggle(name, req.Enabled) {
		h.writeError(w, http.StatusNotFound, "unknown service: "+name, "service_not_found")
		return
	}

	if err := h.store.SaveSelection(r.Context(), sel); err != nil {
		h.logger.Error("failed to save service selection", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to save service selection", "internal_error")
		return
	}

	h.writeJSON(w, http.StatusOK, ToggleServiceResponse{Name: name, Enabled: req.Enabled})
}

// =============================================================================
// Plan Handlers
// =============================================================================

func (h *Handler) handleGeneratePlan(w http.ResponseWriter, r *http.Request) {
	p, env, ok := h.buildPlan(w, r)
	if !ok {
		return
	}

	compose, err := plan.RenderYAML(p)
	if err != nil {
		h.writePlanError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, PlanResponse{
		Compose:    compose,
		Env:        env,
		Containers: containerNames(p),
	})
}

func (h *Handler) handleApplyPlan(w http.ResponseWriter, r *http.Request) {
	p, env, ok := h.buildPlan(w, r)
	if !ok {
		return
	}

	if err := h.orch.Apply(r.Context(), p, env); err != nil {
		h.writePlanError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, ApplyResponse{
		Status:     "success",
		Containers: containerNames(p),
	})
}

// buildPlan loads the persisted configuration and produces a deployment plan
// plus rendered environment file. On failure it writes the error response and
// returns ok=false.
func (h *Handler) buildPlan(w http.ResponseWriter, r *http.Request) (*plan.DeploymentPlan, string, bool) {
	cfg, err := h.loadConfig(r)
	if err != nil {
		h.logger.Error("failed to load configuration", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to load configuration", "internal_error")
		return nil, "", false
	}
	sel, err := h.loadSelection(r)
	if err != nil {
		h.logger.Error("failed to load service selection", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to load service selection", "internal_error")
		return nil, "", false
	}

	p, err := plan.Generate(sel, cfg, h.prober.HardwareCaps(), h.catalog)
	if err != nil {
		h.writePlanError(w, err)
		return nil, "", false
	}

	env, err := plan.RenderEnvFile(cfg)
	if err != nil {
		h.writePlanError(w, err)
		return nil, "", false
	}

	return p, env, true
}

// =============================================================================
// Container Handlers
// =============================================================================

func (h *Handler) handleListContainers(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.orch.ContainerStatus(r.Context()))
}

func (h *Handler) handleStartContainer(w http.ResponseWriter, r *http.Request) {
	h.containerAction(w, r, "started", h.orch.Start)
}

func (h *Handler) handleStopContainer(w http.ResponseWriter, r *http.Request) {
	h.containerAction(w, r, "stopped", h.orch.Stop)
}

func (h *Handler) handleRestartContainer(w http.ResponseWriter, r *http.Request) {
	h.containerAction(w, r, "restarted", h.orch.Restart)
}

func (h *Handler) handleUpdateContainer(w http.ResponseWriter, r *http.Request) {
	h.containerAction(w, r, "updated", h.orch.Update)
}

func (h *Handler) containerAction(w http.ResponseWriter, r *http.Request, verb string, fn func(ctx context.Context, name string) error) {
	name := chi.URLParam(r, "name")

	if err := fn(r.Context(), name); err != nil {
		h.writeContainerError(w, name, err)
		return
	}

	h.writeJSON(w, http.StatusOK, ActionResponse{Status: verb, Container: name})
}

func (h *Handler) handleRestartAll(w http.ResponseWriter, r *http.Request) {
	result, err := h.orch.RestartAll(r.Context())
	if err != nil {
		h.writeContainerError(w, "", err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleUpdateAll(w http.ResponseWriter, r *http.Request) {
	result, err := h.orch.UpdateAll(r.Context())
	if err != nil {
		h.writeContainerError(w, "", err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleContainerLogs(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	tail := 100
	if t := r.URL.Query().Get("tail"); t != "" {
		if n, err := strconv.Atoi(t); err == nil && n > 0 {
			tail = n
		}
	}

	logs, err := h.orch.Logs(r.Context(), name, tail)
	if err != nil {
		h.writeContainerError(w, name, err)
		return
	}

	h.writeJSON(w, http.StatusOK, LogsResponse{Container: name, Logs: logs})
}

// =============================================================================
// Install Handlers
// =============================================================================

func (h *Handler) handleInstallStatus(w http.ResponseWriter, r *http.Request) {
	h.installMu.Lock()
	m := h.machine
	h.installMu.Unlock()

	if m != nil {
		h.writeJSON(w, http.StatusOK, m.Status())
		return
	}

	// No run this process lifetime; fall back to the persisted record.
	st, err := h.store.GetInstallStatus(r.Context())
	if err != nil {
		if storeNotFound(err) {
			h.writeJSON(w, http.StatusOK, domain.InstallStatus{
				CurrentStage: wizard.StagePreCheck,
				StageName:    wizard.StageNames[wizard.StagePreCheck],
				State:        domain.InstallNotStarted,
				Logs:         []string{},
				Errors:       []string{},
			})
			return
		}
		h.logger.Error("failed to load install status", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to load install status", "internal_error")
		return
	}

	h.writeJSON(w, http.StatusOK, st)
}

func (h *Handler) handleInstallRun(w http.ResponseWriter, r *http.Request) {
	h.installMu.Lock()
	defer h.installMu.Unlock()

	m, err := h.ensureMachine(r)
	if err != nil {
		h.logger.Error("failed to prepare install run", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to prepare install run", "internal_error")
		return
	}

	snap := m.Status()
	if snap.State == domain.InstallInProgress {
		h.writeError(w, http.StatusConflict, "installation already running", "install_in_progress")
		return
	}
	if snap.State == domain.InstallCompleted {
		h.writeError(w, http.StatusConflict, "installation already completed", "install_completed")
		return
	}

	if err := h.seedDefaults(r); err != nil {
		h.logger.Error("failed to seed default configuration", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to seed default configuration", "internal_error")
		return
	}

	// The run outlives the request; progress is polled via /install/status.
	go func() {
		if err := m.Run(context.Background()); err != nil {
			h.logger.Error("installation run failed", "error", err)
		}
	}()

	h.writeJSON(w, http.StatusAccepted, InstallRunResponse{Status: "started", RunID: snap.RunID})
}

func (h *Handler) handleInstallStage(w http.ResponseWriter, r *http.Request) {
	stage := chi.URLParam(r, "stage")

	h.installMu.Lock()
	m, err := h.ensureMachine(r)
	h.installMu.Unlock()
	if err != nil {
		h.logger.Error("failed to prepare install run", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to prepare install run", "internal_error")
		return
	}

	if err := h.seedDefaults(r); err != nil {
		h.logger.Error("failed to seed default configuration", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to seed default configuration", "internal_error")
		return
	}

	if err := m.RunStage(r.Context(), stage); err != nil {
		switch {
		case errors.Is(err, wizard.ErrUnknownStage):
			h.writeError(w, http.StatusNotFound, "unknown stage: "+stage, "stage_not_found")
		case errors.Is(err, wizard.ErrRunComplete):
			h.writeError(w, http.StatusConflict, "installation already completed", "install_completed")
		case errors.Is(err, wizard.ErrStageRunning):
			h.writeError(w, http.StatusConflict, "a stage is already running", "stage_in_progress")
		case errors.Is(err, wizard.ErrStageOrder):
			h.writeError(w, http.StatusConflict, err.Error(), "stage_out_of_order")
		default:
			h.writeError(w, http.StatusInternalServerError, err.Error(), "stage_failed")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, m.Status())
}

// ensureMachine lazily creates the wizard machine, resuming from the
// persisted record when one exists. Callers hold installMu.
func (h *Handler) ensureMachine(r *http.Request) (*wizard.Machine, error) {
	if h.machine != nil {
		return h.machine, nil
	}

	m := wizard.New(h.installer.Executors(), h.store, h.logger)

	st, err := h.store.GetInstallStatus(r.Context())
	if err == nil {
		m.Resume(st)
	} else if !storeNotFound(err) {
		return nil, err
	}

	h.machine = m
	return m, nil
}

// seedDefaults persists the default configuration documents for any that are
// missing, so installer stages always find something to read.
func (h *Handler) seedDefaults(r *http.Request) error {
	ctx := r.Context()
	return h.store.WithTx(ctx, func(tx store.Store) error {
		if _, err := tx.GetBaseConfig(ctx); err != nil {
			if !storeNotFound(err) {
				return err
			}
			if err := tx.SaveBaseConfig(ctx, domain.DefaultBaseConfig()); err != nil {
				return err
			}
		}
		if _, err := tx.GetSelection(ctx); err != nil {
			if !storeNotFound(err) {
				return err
			}
			if err := tx.SaveSelection(ctx, domain.DefaultSelection().Normalize(h.catalog)); err != nil {
				return err
			}
		}
		return nil
	})
}

// =============================================================================
// Helpers
// =============================================================================

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode JSON", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message, code string) {
	h.writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// writePlanError maps plan generation failures onto HTTP statuses.
func (h *Handler) writePlanError(w http.ResponseWriter, err error) {
	var vErr *domain.ValidationError
	if errors.As(err, &vErr) {
		h.writeError(w, http.StatusBadRequest, vErr.Error(), "validation_error")
		return
	}
	h.logger.Error("plan operation failed", "error", err)
	h.writeError(w, http.StatusInternalServerError, err.Error(), "internal_error")
}

// writeContainerError maps container lifecycle failures onto HTTP statuses.
func (h *Handler) writeContainerError(w http.ResponseWriter, name string, err error) {
	switch {
	case orchestrator.IsNotFound(err):
		h.writeError(w, http.StatusNotFound, "container not found: "+name, "container_not_found")
	case errors.Is(err, docker.ErrConnectionFailed):
		h.writeError(w, http.StatusServiceUnavailable, "container runtime unavailable", "docker_unavailable")
	default:
		h.logger.Error("container operation failed", "container", name, "error", err)
		h.writeError(w, http.StatusInternalServerError, err.Error(), "internal_error")
	}
}

// loadConfig reads the persisted base configuration, falling back to the
// defaults when nothing has been saved yet.
func (h *Handler) loadConfig(r *http.Request) (domain.BaseConfig, error) {
	cfg, err := h.store.GetBaseConfig(r.Context())
	if err != nil {
		if storeNotFound(err) {
			return domain.DefaultBaseConfig(), nil
		}
		return domain.BaseConfig{}, err
	}
	return cfg, nil
}

// loadSelection reads the persisted selection, normalized against the
// catalog so stale records from older releases still load.
func (h *Handler) loadSelection(r *http.Request) (domain.SelectionState, error) {
	sel, err := h.store.GetSelection(r.Context())
	if err != nil {
		if storeNotFound(err) {
			return domain.DefaultSelection().Normalize(h.catalog), nil
		}
		return nil, err
	}
	return sel.Normalize(h.catalog), nil
}

func containerNames(p *plan.DeploymentPlan) []string {
	names := make([]string, 0, len(p.Containers))
	for _, c := range p.Containers {
		names = append(names, c.Name)
	}
	return names
}

// storeNotFound checks if an error is a not found error.
func storeNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
