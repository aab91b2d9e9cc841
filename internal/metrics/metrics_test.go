package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_IndependentRegistries(t *testing.T) {
	a, b := New(), New()
	a.ExpenseMutations.WithLabelValues("create", ResultOK).Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(a.ExpenseMutations.WithLabelValues("create", ResultOK)))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.ExpenseMutations.WithLabelValues("create", ResultOK)))
}

func TestHandler_ExposesMetrics(t *testing.T) {
	m := New()
	m.Categorizations.WithLabelValues(ResultFallback).Inc()
	m.LiveSubscribers.Set(2)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	for _, want := range []string{
		`spendwise_categorizations_total{result="fallback"} 1`,
		`spendwise_live_subscribers 2`,
		`go_goroutines`,
	} {
		assert.True(t, strings.Contains(body, want), "missing %q", want)
	}
}
