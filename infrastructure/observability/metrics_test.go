package observability_test

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"artion-backend/infrastructure/observability"
)

func counterValue(t *testing.T, c *observability.Collector, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := c.GetRegistry().Gather()
	require.NoError(t, err)

	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			matched := true
			for _, pair := range metric.GetLabel() {
				if want, ok := labels[pair.GetName()]; ok && want != pair.GetValue() {
					matched = false
				}
			}
			if matched {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestCollector_RecordsSagaMetrics(t *testing.T) {
	// Arrange
	collector := observability.NewCollector("artion")

	// Act
	collector.RecordOutcome("committed")
	collector.RecordOutcome("committed")
	collector.RecordOutcome("aborted")
	collector.RecordProbe("authorized")
	collector.RecordLedgerTx("approval", "ok")
	collector.RecordCompensation("failed")
	collector.RecordPhase("commit", 2*time.Second, errors.New("reverted"))

	// Assert
	assert.Equal(t, 2.0, counterValue(t, collector, "artion_bundle_saga_outcomes_total", map[string]string{"outcome": "committed"}))
	assert.Equal(t, 1.0, counterValue(t, collector, "artion_bundle_saga_outcomes_total", map[string]string{"outcome": "aborted"}))
	assert.Equal(t, 1.0, counterValue(t, collector, "artion_authorization_probes_total", map[string]string{"result": "authorized"}))
	assert.Equal(t, 1.0, counterValue(t, collector, "artion_ledger_transactions_total", map[string]string{"kind": "approval", "result": "ok"}))
	assert.Equal(t, 1.0, counterValue(t, collector, "artion_bundle_compensations_total", map[string]string{"result": "failed"}))
}

func TestCollector_SeparateRegistries(t *testing.T) {
	a := observability.NewCollector("artion")
	b := observability.NewCollector("artion")

	a.RecordOutcome("committed")

	assert.Equal(t, 0.0, counterValue(t, b, "artion_bundle_saga_outcomes_total", map[string]string{"outcome": "committed"}))
}

func TestCollector_Handler(t *testing.T) {
	collector := observability.NewCollector("artion")
	collector.RecordHTTPRequest(http.MethodGet, "/health", http.StatusOK, time.Millisecond)

	rec := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(body), "artion_http_requests_total")
}
