package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"gpu-renter/core/agent"
	"gpu-renter/core/models"
	"gpu-renter/observability"

	"github.com/gorilla/mux"
)

// RunService is the run control surface the handlers call
type RunService interface {
	StartRun(ctx context.Context, in agent.StartRunInput) (*models.Run, error)
	Tick(ctx context.Context, runID string) (agent.Result, error)
	Status(ctx context.Context, runID string) (*agent.RunStatus, error)
	ListVendors(ctx context.Context) ([]models.Vendor, error)
}

// RunHandler handles run HTTP requests
type RunHandler struct {
	runs RunService
	log  *observability.Logger
}

// NewRunHandler creates a new run handler
func NewRunHandler(runs RunService, log *observability.Logger) *RunHandler {
	if log == nil {
		log = observability.NopLogger()
	}
	return &RunHandler{runs: runs, log: log.With("component", "RunHandler")}
}

// StartRunRequest is the body of a start request. userId is accepted as an
// alias of ownerId for older clients.
type StartRunRequest struct {
	OwnerID     string   `json:"ownerId"`
	UserID      string   `json:"userId"`
	Goal        string   `json:"goal"`
	BudgetTotal *float64 `json:"budgetTotal"`
}

type tickRequest struct {
	RunID string `json:"runId"`
}

// StartRun handles POST /v1/runs
func (h *RunHandler) StartRun(w http.ResponseWriter, r *http.Request) {
	h.startRun(w, r, http.StatusCreated)
}

// AgentStart handles POST /api/agent-start
func (h *RunHandler) AgentStart(w http.ResponseWriter, r *http.Request) {
	h.startRun(w, r, http.StatusOK)
}

func (h *RunHandler) startRun(w http.ResponseWriter, r *http.Request, status int) {
	var req StartRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, CodeValidation, errors.New("invalid request body"))
		return
	}
	if req.BudgetTotal == nil {
		respondError(w, http.StatusBadRequest, CodeValidation, errors.New("budgetTotal is required"))
		return
	}
	owner := req.OwnerID
	if owner == "" {
		owner = req.UserID
	}

	run, err := h.runs.StartRun(r.Context(), agent.StartRunInput{OwnerID: owner, Goal: req.Goal, BudgetTotal: *req.BudgetTotal})
	if err != nil {
		respondServiceError(w, h.log, err)
		return
	}
	writeJSON(w, status, run)
}

// Tick handles POST /v1/runs/{id}/tick
func (h *RunHandler) Tick(w http.ResponseWriter, r *http.Request) {
	h.tick(w, r, mux.Vars(r)["id"])
}

// AgentTick handles POST /api/agent-tick with runId in the body or query
func (h *RunHandler) AgentTick(w http.ResponseWriter, r *http.Request) {
	var req tickRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			respondError(w, http.StatusBadRequest, CodeValidation, errors.New("invalid request body"))
			return
		}
	}
	runID := req.RunID
	if runID == "" {
		runID = r.URL.Query().Get("runId")
	}
	h.tick(w, r, runID)
}

func (h *RunHandler) tick(w http.ResponseWriter, r *http.Request, runID string) {
	if strings.TrimSpace(runID) == "" {
		respondError(w, http.StatusBadRequest, CodeValidation, errors.New("missing runId"))
		return
	}
	res, err := h.runs.Tick(r.Context(), runID)
	if err != nil {
		respondServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GetRun handles GET /v1/runs/{id}
func (h *RunHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	h.status(w, r, mux.Vars(r)["id"])
}

// AgentStatus handles GET /api/agent-status?runId=
func (h *RunHandler) AgentStatus(w http.ResponseWriter, r *http.Request) {
	h.status(w, r, r.URL.Query().Get("runId"))
}

func (h *RunHandler) status(w http.ResponseWriter, r *http.Request, runID string) {
	if strings.TrimSpace(runID) == "" {
		respondError(w, http.StatusBadRequest, CodeValidation, errors.New("missing runId"))
		return
	}
	status, err := h.runs.Status(r.Context(), runID)
	if err != nil {
		respondServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// ListVendors handles GET /v1/vendors
func (h *RunHandler) ListVendors(w http.ResponseWriter, r *http.Request) {
	vendors, err := h.runs.ListVendors(r.Context())
	if err != nil {
		respondServiceError(w, h.log, fmt.Errorf("list vendors: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": vendors})
}
