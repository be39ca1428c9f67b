package health

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jusscott/risk-assessment-app-sub005/circuitstate"
)

// Routes builds the operational HTTP surface: the aggregate health report,
// the circuit status map, the administrative reset endpoints, and the
// Prometheus scrape endpoint when a gatherer is supplied.
func Routes(agg *Aggregator, circuits *circuitstate.Registry, gatherer prometheus.Gatherer) chi.Router {
	r := chi.NewRouter()

	r.Get("/health", HealthHandler(agg))
	r.Get("/health/circuits", CircuitStatusHandler(circuits))
	r.Post("/admin/circuits/{service}/reset", ResetCircuitHandler(circuits))
	r.Post("/admin/health/cache/reset", ResetCacheHandler(agg))

	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	return r
}

// HealthHandler serves the aggregate report. `?bypassCache=true` forces a
// fresh poll. Healthy and degraded report 200 so load balancers keep
// routing to a partially working system; only a fully unhealthy system
// reports 503.
func HealthHandler(agg *Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bypass := r.URL.Query().Get("bypassCache") == "true"

		report := agg.Check(r.Context(), bypass)

		code := http.StatusOK
		if report.Status == StatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, report)
	}
}

// CircuitStatusHandler serves the circuit status map.
func CircuitStatusHandler(circuits *circuitstate.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, circuits.StatusMap())
	}
}

// ResetCircuitHandler force-closes one service's circuit breaker.
func ResetCircuitHandler(circuits *circuitstate.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		service := chi.URLParam(r, "service")

		result := circuits.ResetCircuit(service)

		code := http.StatusOK
		if !result.Success {
			code = http.StatusNotFound
		}
		writeJSON(w, code, result)
	}
}

// ResetCacheHandler clears the aggregator's report cache. Breaker state is
// not touched.
func ResetCacheHandler(agg *Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agg.ResetCache()
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "health cache cleared",
		})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
