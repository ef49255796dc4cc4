package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// HealthStatus represents the health status of the service
type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

// CertificateExpiryFunc reports the merchant certificate expiry, false while no channel has been built
type CertificateExpiryFunc func() (time.Time, bool)

// HealthChecker manages health checks for the service
type HealthChecker struct {
	certExpiry CertificateExpiryFunc
	warnWithin time.Duration
	now        func() time.Time
}

// NewHealthChecker creates a new HealthChecker.
// Certificates expiring within warnWithin are reported but do not fail the check.
func NewHealthChecker(certExpiry CertificateExpiryFunc, warnWithin time.Duration) *HealthChecker {
	return &HealthChecker{
		certExpiry: certExpiry,
		warnWithin: warnWithin,
		now:        time.Now,
	}
}

// Check performs health checks and returns the status
func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	checks := make(map[string]string)
	overallStatus := "healthy"
	now := h.now()

	switch {
	case h.certExpiry == nil:
		checks["swish_certificate"] = "not configured"
	default:
		notAfter, ok := h.certExpiry()
		switch {
		case !ok:
			// Channels are built lazily on the first payment
			checks["swish_certificate"] = "not loaded"
		case now.After(notAfter):
			checks["swish_certificate"] = "expired at " + notAfter.Format(time.RFC3339)
			overallStatus = "unhealthy"
		case notAfter.Sub(now) < h.warnWithin:
			checks["swish_certificate"] = "expiring at " + notAfter.Format(time.RFC3339)
		default:
			checks["swish_certificate"] = "healthy"
		}
	}

	return HealthStatus{
		Status:    overallStatus,
		Timestamp: now,
		Checks:    checks,
	}
}

// HealthHandler returns an HTTP handler for health checks
func (h *HealthChecker) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := h.Check(r.Context())

		w.Header().Set("Content-Type", "application/json")
		if status.Status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}

		json.NewEncoder(w).Encode(status)
	}
}
