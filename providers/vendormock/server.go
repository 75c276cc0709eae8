package vendormock

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"gpu-renter/providers/vendor"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// Config configures the simulated vendor
type Config struct {
	Secret           string
	BasePricePerHour float64
	// FailVendorID forces every job submitted with this x-vendor-id to fail
	FailVendorID string
	// FailRate is the probability that any other job fails
	FailRate float64
	// Rand returns a value in [0,1); defaults to math/rand
	Rand func() float64
	Now  func() time.Time
}

// Server is an in-process vendor honoring the quote/submit/status protocol
type Server struct {
	cfg    Config
	router *mux.Router

	mu   sync.Mutex
	jobs map[string]Job
}

// NewServer creates a new mock vendor
func NewServer(cfg Config) *Server {
	if cfg.BasePricePerHour <= 0 {
		cfg.BasePricePerHour = 1.4
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.Float64
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	s := &Server{cfg: cfg, jobs: make(map[string]Job)}
	r := mux.NewRouter()
	r.HandleFunc("/quote", s.authorize(s.handleQuote)).Methods(http.MethodPost)
	r.HandleFunc("/submit-job", s.authorize(s.handleSubmit)).Methods(http.MethodPost)
	r.HandleFunc("/job-status", s.authorize(s.handleStatus)).Methods(http.MethodGet)
	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Job returns a snapshot of a simulated job
func (s *Server) Job(id string) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	return job, ok
}

func (s *Server) authorize(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+s.cfg.Secret {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
			return
		}
		next(w, r)
	}
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	var req struct {
		JobType  string   `json:"jobType"`
		GPUType  string   `json:"gpuType"`
		MaxHours *float64 `json:"maxHours"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.JobType == "" || req.GPUType == "" || req.MaxHours == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing jobType, gpuType, or maxHours"})
		return
	}

	maxHours := *req.MaxHours
	writeJSON(w, http.StatusOK, vendor.QuoteResponse{
		VendorJobTemplateID: fmt.Sprintf("tmpl_%s_%d", req.GPUType, s.cfg.Now().UnixMilli()),
		PriceEstimate:       round2(s.cfg.BasePricePerHour * maxHours),
		Currency:            "USD",
		ETAMinutes:          int(math.Ceil(maxHours * 60)),
	})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req vendor.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.VendorJobTemplateID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing vendorJobTemplateId"})
		return
	}

	if req.X402TxID == "" {
		w.Header().Set(vendor.HeaderPaymentTxID, fmt.Sprintf("mock_tx_%d", s.cfg.Now().UnixMilli()))
		writeJSON(w, http.StatusPaymentRequired, map[string]string{"error": "Payment required"})
		return
	}

	job := Job{
		VendorJobID: "vgpu_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8],
		VendorID:    r.Header.Get(vendor.HeaderVendorID),
		Status:      statusRunning,
		Logs:        []string{"Starting job " + req.VendorJobTemplateID},
	}
	if req.JobParams.Goal != "" {
		job.Logs = append(job.Logs, "Goal: "+req.JobParams.Goal)
	}

	s.mu.Lock()
	s.jobs[job.VendorJobID] = job
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, vendor.SubmitResponse{VendorJobID: job.VendorJobID, Status: job.Status})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("vendorJobId")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing vendorJobId"})
		return
	}

	s.mu.Lock()
	job, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Job not found"})
		return
	}
	fail := s.cfg.FailVendorID != "" && job.VendorID == s.cfg.FailVendorID
	if !fail && job.Status == statusRunning && job.Polls+1 >= pollsToFinish {
		fail = s.cfg.Rand() < s.cfg.FailRate
	}
	job = Advance(job, fail)
	s.jobs[id] = job
	s.mu.Unlock()

	base := s.cfg.BasePricePerHour
	resp := vendor.StatusResponse{
		Status:   vendor.JobState(job.Status),
		Progress: job.Progress,
		Logs:     job.Logs,
	}
	switch job.Status {
	case statusCompleted:
		resp.EstimatedRemainingMinutes = intPtr(0)
		resp.CostSoFar = &base
		resp.FinalMetrics = map[string]interface{}{"loss": 0.78, "val_accuracy": 0.87}
		resp.ArtifactURL = strPtr("https://fake-storage/artifacts/model.bin")
	case statusFailed:
		half := base / 2
		resp.EstimatedRemainingMinutes = intPtr(0)
		resp.CostSoFar = &half
		resp.ErrorMessage = strPtr("Simulated vendor failure")
	default:
		cost := round2(job.Progress * base)
		resp.EstimatedRemainingMinutes = intPtr(int(math.Ceil((1 - job.Progress) * 60)))
		resp.CostSoFar = &cost
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func intPtr(i int) *int       { return &i }
func strPtr(s string) *string { return &s }
