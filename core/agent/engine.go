package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gpu-renter/core/models"
	"gpu-renter/core/planner"
	"gpu-renter/core/repository"
	"gpu-renter/observability"
	"gpu-renter/providers/vendor"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tick outcome messages
const (
	MsgInvalidRunID         = "Invalid runId"
	MsgRunNotFound          = "Run not found"
	MsgMissingVendorConfig  = "Active job missing vendor configuration"
	MsgJobCompleted         = "Job completed"
	MsgJobFailed            = "Job failed"
	MsgJobStillRunning      = "Job still running"
	MsgJobStatusUnavailable = "Job status unavailable"
	MsgNoVendors            = "No vendors available"
	MsgWaiting              = "Waiting"
	MsgRunAborted           = "Run aborted"
	MsgUnknownVendor        = "Unknown vendor"
	MsgQuoteFailed          = "Quote failed"
	MsgQuoteExceedsBudget   = "Quote exceeds budget"
	MsgSubmitFailed         = "Submit job failed"
	MsgBudgetUpdateFailed   = "Budget update failed"
	MsgBudgetOutcomeUnknown = "Budget deduction outcome unknown"
	MsgJobStarted           = "Job started"
	MsgTickFailed           = "Tick failed"
	MsgTickInProgress       = "Tick already in progress"
)

const defaultVendorFailure = "Vendor reported failure"

// DefaultTickTimeout bounds a tick when none is configured. It sits below
// the default run lock TTL.
const DefaultTickTimeout = 90 * time.Second

// VendorClient is the vendor protocol the engine drives
type VendorClient interface {
	Quote(ctx context.Context, v models.Vendor, req vendor.QuoteRequest) (*vendor.QuoteResponse, error)
	Submit(ctx context.Context, v models.Vendor, req vendor.SubmitRequest) (*vendor.SubmitResponse, error)
	Status(ctx context.Context, v models.Vendor, vendorJobID string) (*vendor.StatusResponse, error)
}

// Result is the outcome of one tick
type Result struct {
	Message string `json:"message"`
}

// Engine advances a run by at most one step per Tick
type Engine struct {
	ledger      repository.Ledger
	planner     planner.Planner
	vendors     VendorClient
	log         *observability.Logger
	tracer      trace.Tracer
	stats       *Stats
	now         func() time.Time
	tickTimeout time.Duration
}

// NewEngine creates a new tick engine
func NewEngine(ledger repository.Ledger, p planner.Planner, vendors VendorClient, log *observability.Logger) *Engine {
	if log == nil {
		log = observability.NopLogger()
	}
	return &Engine{
		ledger:      ledger,
		planner:     p,
		vendors:     vendors,
		log:         log.With("component", "TickEngine"),
		tracer:      otel.Tracer("gpu-renter/core/agent"),
		stats:       &Stats{},
		now:         time.Now,
		tickTimeout: DefaultTickTimeout,
	}
}

// SetTickTimeout sets the deadline each tick runs under; non-positive
// values keep the current one
func (e *Engine) SetTickTimeout(d time.Duration) {
	if d > 0 {
		e.tickTimeout = d
	}
}

// Stats returns the engine counters
func (e *Engine) Stats() StatsSnapshot {
	return e.stats.Snapshot()
}

// Tick reconciles the run with vendor reality and takes at most one
// meaningful step. It never returns an error; failures are recorded as
// observations and summarized in the message.
//
// Cancelling ctx does not interrupt a tick: once a vendor has been paid the
// payment, deduction and audit entries must still be written. The tick runs
// under its own deadline instead.
func (e *Engine) Tick(ctx context.Context, runID string) (res Result) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.tickTimeout)
	defer cancel()

	ctx, span := e.tracer.Start(ctx, "agent.Tick", trace.WithAttributes(attribute.String("run.id", runID)))
	defer span.End()
	e.stats.ticks.Add(1)

	defer func() {
		if r := recover(); r != nil {
			res = e.fail(ctx, span, runID, fmt.Errorf("panic: %v", r))
		}
	}()

	msg, err := e.tick(ctx, runID)
	if err != nil {
		return e.fail(ctx, span, runID, err)
	}
	span.SetAttributes(attribute.String("tick.outcome", msg))
	return Result{Message: msg}
}

func (e *Engine) fail(ctx context.Context, span trace.Span, runID string, err error) Result {
	e.stats.tickFailures.Add(1)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(attribute.String("tick.outcome", MsgTickFailed))
	e.log.Error("tick failed", "run_id", runID, "error", err)

	if _, parseErr := uuid.Parse(runID); parseErr == nil {
		// Best effort; the run may not exist.
		if obsErr := e.observe(ctx, runID, nil, models.ObservationError, err.Error()); obsErr != nil {
			e.log.Warn("failed to record tick failure", "run_id", runID, "error", obsErr)
		}
	}
	return Result{Message: MsgTickFailed}
}

func (e *Engine) tick(ctx context.Context, runID string) (string, error) {
	// Step 1: resolve the run
	if _, err := uuid.Parse(runID); err != nil {
		return MsgInvalidRunID, nil
	}
	run, err := e.ledger.Runs.GetRun(ctx, runID)
	if errors.Is(err, repository.ErrNotFound) {
		return MsgRunNotFound, nil
	}
	if err != nil {
		return "", fmt.Errorf("load run: %w", err)
	}
	if run.IsTerminal() {
		return fmt.Sprintf("Run already %s", run.Status), nil
	}

	// Step 2: reconcile the active job
	jobs, err := e.ledger.Jobs.ListJobsByRun(ctx, run.ID)
	if err != nil {
		return "", fmt.Errorf("list jobs: %w", err)
	}
	if active := models.ActiveJob(jobs); active != nil {
		return e.reconcile(ctx, run, active)
	}

	// Step 3: gather planning context
	vendors, err := e.ledger.Vendors.ListVendors(ctx)
	if err != nil {
		return "", fmt.Errorf("list vendors: %w", err)
	}
	payments, err := e.ledger.Payments.ListPaymentsByRun(ctx, run.ID)
	if err != nil {
		return "", fmt.Errorf("list payments: %w", err)
	}
	if len(vendors) == 0 {
		return MsgNoVendors, e.observe(ctx, run.ID, nil, models.ObservationError, MsgNoVendors)
	}

	// Step 4: decide and record the reasoning verbatim
	plan := e.planner.Decide(ctx, planner.Input{Run: *run, Vendors: vendors, Jobs: jobs, Payments: payments})
	if err := e.observe(ctx, run.ID, nil, models.ObservationAgentReasoning, plan.AuditContent()); err != nil {
		return "", err
	}

	// Step 5: act on the decision
	decision := plan.Decision
	switch decision.Action {
	case planner.ActionWait:
		return MsgWaiting, nil
	case planner.ActionAbort:
		if err := e.ledger.Runs.UpdateRunStatus(ctx, run.ID, models.RunStatusFailed); err != nil {
			return "", fmt.Errorf("abort run: %w", err)
		}
		e.log.Info("run aborted", "run_id", run.ID, "reason", decision.Reason)
		return MsgRunAborted, nil
	case planner.ActionStartJob:
	default:
		return MsgWaiting, e.observe(ctx, run.ID, nil, models.ObservationError, fmt.Sprintf("Unknown planner action: %s", decision.Action))
	}

	chosen := models.FindVendor(vendors, decision.VendorID)
	if chosen == nil {
		return MsgUnknownVendor, e.observe(ctx, run.ID, nil, models.ObservationError, "Unknown vendorId: "+decision.VendorID)
	}

	return e.startJob(ctx, run, *chosen, decision)
}

// reconcile polls the vendor for the active job and applies its outcome
func (e *Engine) reconcile(ctx context.Context, run *models.Run, job *models.Job) (string, error) {
	// Step 2a: integrity check
	v, err := e.ledger.Vendors.GetVendor(ctx, job.VendorID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return "", fmt.Errorf("load vendor: %w", err)
	}
	if v == nil || job.VendorJobID == nil || *job.VendorJobID == "" {
		if err := e.failJob(ctx, job.ID, MsgMissingVendorConfig, nil); err != nil {
			return "", err
		}
		e.stats.jobsFailed.Add(1)
		e.log.Error("active job missing vendor configuration", "run_id", run.ID, "job_id", job.ID, "vendor_id", job.VendorID)
		return MsgMissingVendorConfig, e.observe(ctx, run.ID, &job.ID, models.ObservationError, MsgMissingVendorConfig)
	}

	// Step 2b: poll
	status, err := e.vendors.Status(ctx, *v, *job.VendorJobID)
	if err != nil {
		if vendor.IsNotFound(err) {
			reason := fmt.Sprintf("Vendor %s does not recognize job %s", v.ID, *job.VendorJobID)
			if err := e.failJob(ctx, job.ID, reason, nil); err != nil {
				return "", err
			}
			e.stats.jobsFailed.Add(1)
			e.log.Error("vendor lost job", "run_id", run.ID, "job_id", job.ID, "vendor_job_id", *job.VendorJobID)
			return MsgJobFailed, e.observe(ctx, run.ID, &job.ID, models.ObservationError, reason)
		}
		e.log.Warn("job status poll failed", "run_id", run.ID, "job_id", job.ID, "error", err)
		return MsgJobStatusUnavailable, e.observe(ctx, run.ID, &job.ID, models.ObservationError, "Job status unavailable: "+err.Error())
	}

	if len(status.Logs) > 0 {
		if err := e.observe(ctx, run.ID, &job.ID, models.ObservationJobLog, strings.Join(status.Logs, "\n")); err != nil {
			return "", err
		}
	}

	switch status.Status {
	case vendor.JobStateCompleted:
		// Step 2c
		update := models.JobUpdate{
			Status:      models.StatusPtr(models.JobStatusCompleted),
			ActualCost:  status.CostSoFar,
			ArtifactURL: status.ArtifactURL,
		}
		if err := e.ledger.Jobs.UpdateJob(ctx, job.ID, update); err != nil {
			return "", fmt.Errorf("complete job: %w", err)
		}
		if err := e.ledger.Runs.UpdateRunStatus(ctx, run.ID, models.RunStatusCompleted); err != nil {
			return "", fmt.Errorf("complete run: %w", err)
		}
		e.stats.jobsCompleted.Add(1)
		e.log.Info("job completed", "run_id", run.ID, "job_id", job.ID)

		if len(status.FinalMetrics) > 0 {
			metrics, err := json.Marshal(status.FinalMetrics)
			if err != nil {
				return "", fmt.Errorf("encode metrics: %w", err)
			}
			if err := e.observe(ctx, run.ID, &job.ID, models.ObservationMetric, string(metrics)); err != nil {
				return "", err
			}
		}
		return MsgJobCompleted, nil

	case vendor.JobStateFailed:
		// Step 2d: the run stays open for a recovery job
		reason := defaultVendorFailure
		if status.ErrorMessage != nil && *status.ErrorMessage != "" {
			reason = *status.ErrorMessage
		}
		if err := e.failJob(ctx, job.ID, reason, nil); err != nil {
			return "", err
		}
		e.stats.jobsFailed.Add(1)
		e.log.Warn("vendor reported job failure", "run_id", run.ID, "job_id", job.ID, "vendor_id", v.ID, "reason", reason)
		return MsgJobFailed, e.observe(ctx, run.ID, &job.ID, models.ObservationError, reason)

	default:
		return MsgJobStillRunning, nil
	}
}

// startJob runs quote, budget check, submit with payment, and the conditional deduction
func (e *Engine) startJob(ctx context.Context, run *models.Run, v models.Vendor, decision planner.Decision) (string, error) {
	// Step 6: quote
	quote, err := e.vendors.Quote(ctx, v, vendor.QuoteRequest{
		JobType:     vendor.JobTypeFineTune,
		GPUType:     v.PreferredGPUType(),
		MaxHours:    decision.MaxHours,
		JobMetadata: map[string]interface{}{"goal": run.Goal},
	})
	if err != nil {
		e.log.Warn("quote failed", "run_id", run.ID, "vendor_id", v.ID, "error", err)
		return MsgQuoteFailed, e.observe(ctx, run.ID, nil, models.ObservationError, "Quote failed: "+err.Error())
	}
	if quote.PriceEstimate > run.BudgetRemaining {
		return MsgQuoteExceedsBudget, e.observe(ctx, run.ID, nil, models.ObservationError, "Quote exceeds remaining budget")
	}
	currency := quote.Currency
	if currency == "" {
		currency = "USD"
	}

	// Step 7: record the quoted job
	job := &models.Job{
		RunID:                   run.ID,
		VendorID:                v.ID,
		Status:                  models.JobStatusQuoted,
		ExpectedCost:            models.Float64Ptr(quote.PriceEstimate),
		ExpectedDurationMinutes: models.IntPtr(quote.ETAMinutes),
	}
	if err := e.ledger.Jobs.CreateJob(ctx, job); err != nil {
		return "", fmt.Errorf("create job: %w", err)
	}
	prePayment := strings.Join([]string{
		fmt.Sprintf("Budget remaining: %v", run.BudgetRemaining),
		fmt.Sprintf("Quote: %v %s", quote.PriceEstimate, currency),
		"Proceeding with payment via x402 to vendor " + v.ID,
	}, "\n")
	if err := e.observe(ctx, run.ID, &job.ID, models.ObservationAgentReasoning, prePayment); err != nil {
		return "", err
	}

	// Step 8: submit with the payment challenge
	submitted, err := e.vendors.Submit(ctx, v, vendor.SubmitRequest{
		VendorJobTemplateID: quote.VendorJobTemplateID,
		JobParams:           vendor.JobParams{Goal: run.Goal, MaxHours: decision.MaxHours},
	})
	if err != nil {
		reason := err.Error()
		payment := &models.Payment{
			RunID:        run.ID,
			JobID:        job.ID,
			VendorID:     v.ID,
			Amount:       quote.PriceEstimate,
			Currency:     currency,
			Status:       models.PaymentStatusFailed,
			ErrorMessage: models.StringPtr(reason),
		}
		if err := e.ledger.Payments.CreatePayment(ctx, payment); err != nil {
			return "", fmt.Errorf("record failed payment: %w", err)
		}
		if err := e.failJob(ctx, job.ID, reason, nil); err != nil {
			return "", err
		}
		e.stats.jobsFailed.Add(1)
		e.log.Warn("submit failed", "run_id", run.ID, "job_id", job.ID, "vendor_id", v.ID, "error", err)
		return MsgSubmitFailed, e.observe(ctx, run.ID, &job.ID, models.ObservationError, reason)
	}

	txID := submitted.PaymentTxID
	if txID == "" {
		txID = fmt.Sprintf("local_tx_%d", e.now().UnixMilli())
	}
	payment := &models.Payment{
		RunID:        run.ID,
		JobID:        job.ID,
		VendorID:     v.ID,
		Amount:       quote.PriceEstimate,
		Currency:     currency,
		Status:       models.PaymentStatusCompleted,
		ExternalTxID: models.StringPtr(txID),
	}
	if err := e.ledger.Payments.CreatePayment(ctx, payment); err != nil {
		return "", fmt.Errorf("record payment: %w", err)
	}
	if err := e.observe(ctx, run.ID, &job.ID, models.ObservationAgentReasoning, "Payment settled via x402. txId="+txID); err != nil {
		return "", err
	}

	// Step 9: conditional budget deduction
	ok, err := e.ledger.Runs.DeductBudget(ctx, run.ID, quote.PriceEstimate)
	if err != nil || !ok {
		return e.budgetRace(ctx, run, job, submitted.VendorJobID, quote.PriceEstimate, err)
	}

	// Step 10: activate
	if err := e.ledger.Jobs.UpdateJob(ctx, job.ID, models.JobUpdate{
		Status:      models.StatusPtr(models.JobStatusRunning),
		VendorJobID: models.StringPtr(submitted.VendorJobID),
	}); err != nil {
		return "", fmt.Errorf("activate job: %w", err)
	}
	if err := e.ledger.Runs.UpdateRunStatus(ctx, run.ID, models.RunStatusRunning); err != nil {
		return "", fmt.Errorf("activate run: %w", err)
	}
	e.stats.jobsStarted.Add(1)
	e.log.Info("job started", "run_id", run.ID, "job_id", job.ID, "vendor_id", v.ID, "vendor_job_id", submitted.VendorJobID, "amount", quote.PriceEstimate, "tx_id", txID)
	return MsgJobStarted, nil
}

// budgetRace fails a submitted job whose deduction did not apply. The vendor
// job may already be executing, so its handle is kept for reconciliation.
//
// A store error (cause != nil) is not a lost race: the update may have been
// committed before the error surfaced, so the entry says the outcome is unknown.
func (e *Engine) budgetRace(ctx context.Context, run *models.Run, job *models.Job, vendorJobID string, amount float64, cause error) (string, error) {
	if cause != nil {
		if err := e.failJob(ctx, job.ID, MsgBudgetOutcomeUnknown, models.StringPtr(vendorJobID)); err != nil {
			return "", err
		}
		e.stats.jobsFailed.Add(1)
		e.stats.budgetUnknown.Add(1)
		e.log.Error("budget deduction outcome unknown after submission, reconciliation required",
			"run_id", run.ID, "job_id", job.ID, "vendor_job_id", vendorJobID, "amount", amount, "error", cause)

		content := fmt.Sprintf("Budget deduction outcome unknown for %v on vendor job %s: %v; reconciliation required", amount, vendorJobID, cause)
		return MsgBudgetOutcomeUnknown, e.observe(ctx, run.ID, &job.ID, models.ObservationError, content)
	}

	if err := e.failJob(ctx, job.ID, MsgBudgetUpdateFailed, models.StringPtr(vendorJobID)); err != nil {
		return "", err
	}
	e.stats.jobsFailed.Add(1)
	e.stats.budgetRaces.Add(1)
	e.log.Error("budget deduction did not apply after submission, reconciliation required",
		"run_id", run.ID, "job_id", job.ID, "vendor_job_id", vendorJobID)

	content := fmt.Sprintf("Budget update failed or insufficient funds; vendor job %s may be running unpaid, reconciliation required", vendorJobID)
	return MsgBudgetUpdateFailed, e.observe(ctx, run.ID, &job.ID, models.ObservationError, content)
}

func (e *Engine) failJob(ctx context.Context, jobID, reason string, vendorJobID *string) error {
	err := e.ledger.Jobs.UpdateJob(ctx, jobID, models.JobUpdate{
		Status:       models.StatusPtr(models.JobStatusFailed),
		ErrorMessage: models.StringPtr(reason),
		VendorJobID:  vendorJobID,
	})
	if err != nil {
		return fmt.Errorf("fail job %s: %w", jobID, err)
	}
	return nil
}

func (e *Engine) observe(ctx context.Context, runID string, jobID *string, typ models.ObservationType, content string) error {
	obs := &models.Observation{RunID: runID, JobID: jobID, Type: typ, Content: content}
	if err := e.ledger.Observations.AppendObservation(ctx, obs); err != nil {
		return fmt.Errorf("append observation: %w", err)
	}
	return nil
}
