package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

func metricsBody(t *testing.T, metrics *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	return rr.Body.String()
}

func TestMetricsHandlerExposesPrometheusMetrics(t *testing.T) {
	metrics := NewMetrics()
	metrics.UnbalancedVoucher()

	body := metricsBody(t, metrics)
	if !strings.Contains(body, "jangbu_unbalanced_vouchers_total 1") {
		t.Fatalf("expected body to contain jangbu_unbalanced_vouchers_total, got: %s", body)
	}
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/postings")

	req := httptest.NewRequest(http.MethodPost, "/postings", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusTeapot {
		t.Fatalf("expected status %d, got %d", http.StatusTeapot, rr.Code)
	}

	body := metricsBody(t, metrics)
	if !strings.Contains(body, `jangbu_http_requests_total{code="418",route="/postings"} 1`) {
		t.Fatalf("expected metrics to record request, got: %s", body)
	}
	if !strings.Contains(body, `jangbu_http_request_duration_seconds_bucket{route="/postings"`) {
		t.Fatalf("expected duration histogram to be present, got: %s", body)
	}
}

func TestVoucherCounters(t *testing.T) {
	metrics := NewMetrics()
	metrics.VoucherPosted("INBOUND")
	metrics.VoucherPosted("INBOUND")
	metrics.VoucherVoided("OUTBOUND")
	metrics.PostingRetried()

	body := metricsBody(t, metrics)
	if !strings.Contains(body, `jangbu_vouchers_posted_total{direction="INBOUND"} 2`) {
		t.Fatalf("expected posted counter, got: %s", body)
	}
	if !strings.Contains(body, `jangbu_vouchers_voided_total{direction="OUTBOUND"} 1`) {
		t.Fatalf("expected voided counter, got: %s", body)
	}
	if !strings.Contains(body, "jangbu_posting_retries_total 1") {
		t.Fatalf("expected retry counter, got: %s", body)
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var metrics *Metrics
	metrics.VoucherPosted("INBOUND")
	metrics.UnbalancedVoucher()

	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 from nil metrics handler, got %d", rr.Code)
	}
}
