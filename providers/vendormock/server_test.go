package vendormock

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"gpu-renter/core/models"
	"gpu-renter/providers/vendor"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdvance_ThreePollsToFinish(t *testing.T) {
	job := Job{VendorJobID: "vj", Status: statusRunning}

	job = Advance(job, false)
	assert.Equal(t, statusRunning, job.Status)
	assert.Equal(t, "Epoch 1/3 loss=1.50", job.Logs[0])

	job = Advance(job, false)
	assert.Equal(t, statusRunning, job.Status)
	assert.Equal(t, "Epoch 2/3 loss=0.75", job.Logs[1])

	job = Advance(job, false)
	assert.Equal(t, statusCompleted, job.Status)
	assert.InDelta(t, 1.0, job.Progress, 1e-9)

	again := Advance(job, true)
	assert.Equal(t, job, again)
}

func TestAdvance_DoesNotMutateInput(t *testing.T) {
	job := Job{Status: statusRunning, Logs: []string{"start"}}
	_ = Advance(job, false)
	assert.Equal(t, []string{"start"}, job.Logs)
	assert.Equal(t, 0, job.Polls)
}

func TestServer_EndToEndWithClient(t *testing.T) {
	mock := NewServer(Config{Secret: "s", BasePricePerHour: 1.4, Rand: func() float64 { return 0.99 }, FailRate: 0.1})
	srv := httptest.NewServer(mock)
	defer srv.Close()

	client, err := vendor.NewClient(vendor.Config{Secret: "s"})
	require.NoError(t, err)
	v := models.Vendor{ID: "gpu_vendor_1", Endpoint: srv.URL}
	ctx := context.Background()

	quote, err := client.Quote(ctx, v, vendor.QuoteRequest{JobType: vendor.JobTypeFineTune, GPUType: "A10", MaxHours: 1})
	require.NoError(t, err)
	assert.InDelta(t, 1.4, quote.PriceEstimate, 1e-9)
	assert.Equal(t, 60, quote.ETAMinutes)

	sub, err := client.Submit(ctx, v, vendor.SubmitRequest{VendorJobTemplateID: quote.VendorJobTemplateID, JobParams: vendor.JobParams{Goal: "g", MaxHours: 1}})
	require.NoError(t, err)
	assert.NotEmpty(t, sub.VendorJobID)
	assert.Contains(t, sub.PaymentTxID, "mock_tx_")

	var status *vendor.StatusResponse
	for i := 0; i < 3; i++ {
		status, err = client.Status(ctx, v, sub.VendorJobID)
		require.NoError(t, err)
	}
	assert.Equal(t, vendor.JobStateCompleted, status.Status)
	require.NotNil(t, status.CostSoFar)
	assert.InDelta(t, 1.4, *status.CostSoFar, 1e-9)
	assert.Equal(t, 0.78, status.FinalMetrics["loss"])
}

func TestServer_FailVendor(t *testing.T) {
	mock := NewServer(Config{Secret: "s", FailVendorID: "gpu_vendor_1"})
	srv := httptest.NewServer(mock)
	defer srv.Close()

	client, err := vendor.NewClient(vendor.Config{Secret: "s"})
	require.NoError(t, err)
	v := models.Vendor{ID: "gpu_vendor_1", Endpoint: srv.URL}
	ctx := context.Background()

	sub, err := client.Submit(ctx, v, vendor.SubmitRequest{VendorJobTemplateID: "tpl", X402TxID: "paid"})
	require.NoError(t, err)

	var status *vendor.StatusResponse
	for i := 0; i < 3; i++ {
		status, err = client.Status(ctx, v, sub.VendorJobID)
		require.NoError(t, err)
	}
	assert.Equal(t, vendor.JobStateFailed, status.Status)
	require.NotNil(t, status.ErrorMessage)
	assert.Equal(t, "Simulated vendor failure", *status.ErrorMessage)
}

func TestServer_UnknownJobAndAuth(t *testing.T) {
	mock := NewServer(Config{Secret: "s"})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/job-status?vendorJobId=missing", nil)
	req.Header.Set("Authorization", "Bearer s")
	mock.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/job-status?vendorJobId=missing", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	mock.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
