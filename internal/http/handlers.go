package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"time"

	"bankcal/internal/core"
	applog "bankcal/internal/log"
	"bankcal/internal/recurrence"
	"bankcal/internal/services"
)

type importRequest struct {
	Transactions []core.Transaction `json:"transactions"`
}

type importResponse struct {
	Imported int `json:"imported"`
}

type detectRequest struct {
	Transactions []core.Transaction `json:"transactions"`
	Options      json.RawMessage    `json:"options,omitempty"`
}

type runDetectionRequest struct {
	Options json.RawMessage `json:"options,omitempty"`
}

type runDetectionResponse struct {
	recurrence.Result
	Transactions int `json:"transactions"`
}

type monthResponse[T any] struct {
	Month string `json:"month"`
	Items T      `json:"items"`
}

type exportResponse struct {
	Month    string `json:"month"`
	Exported int    `json:"exported"`
}

func monthLabel(year, month int) string {
	return fmt.Sprintf("%04d-%02d", year, month)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady runs every registered check with a short deadline.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status, code := "ready", http.StatusOK
	checks := make(map[string]string, len(s.checks))

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		err := s.checks[name](ctx)
		cancel()
		if err != nil {
			checks[name] = "failed: " + err.Error()
			status, code = "not_ready", http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	writeJSON(w, code, map[string]any{
		"status":    status,
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics writes counters in Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	rl := s.limiter.GetMetrics()
	metric := func(name, kind, help string, v any) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %v\n\n", name, help, name, kind, name, v)
	}
	metric("http_requests_total", "counter", "Total number of HTTP requests", s.tracer.GetMetrics().TotalRequests)
	metric("rate_limit_hits_total", "counter", "Total rate limit rejections", rl.TotalHits)
	metric("active_rate_limit_clients", "gauge", "Currently tracked rate limit clients", rl.ClientCount)
	metric("suspicious_requests_total", "counter", "Total suspicious requests detected", s.detector.SuspiciousRequests())
	if s.stats != nil {
		st := s.stats()
		metric("detection_cache_hits_total", "counter", "Detection result cache hits", st.Hits)
		metric("detection_cache_misses_total", "counter", "Detection result cache misses", st.Misses)
		metric("detection_cache_entries", "gauge", "Detection results currently cached", st.Size)
	}
	metric("uptime_seconds", "gauge", "Application uptime in seconds", int64(s.now().Sub(s.started).Seconds()))
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeServiceError(w, r, err)
		return
	}
	n, err := s.svc.ImportTransactions(r.Context(), req.Transactions)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, importResponse{Imported: n})
}

// handleDetect runs detection on the posted transactions only; nothing is stored.
func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	var req detectRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeServiceError(w, r, err)
		return
	}
	opts, err := resolveOptions(s.svc.Defaults(), req.Options)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if req.Transactions == nil {
		req.Transactions = []core.Transaction{}
	}

	res, err := s.svc.Detect(r.Context(), req.Transactions, opts)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	applog.FromContext(r.Context()).InfoContext(r.Context(), "Detection served",
		applog.NewFields().
			WithOperation(applog.OpDetect).
			WithDetection(len(req.Transactions), len(res.Series), len(res.OrphanIDs)).
			ToSlice()...)
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleRunDetection(w http.ResponseWriter, r *http.Request) {
	var req runDetectionRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		writeServiceError(w, r, err)
		return
	}
	opts, err := resolveOptions(s.svc.Defaults(), req.Options)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	res, n, err := s.svc.RunDetection(r.Context(), opts)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, runDetectionResponse{Result: res, Transactions: n})
}

func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	year, month, err := s.parseMonthParam(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	series, err := s.svc.SeriesForMonth(r.Context(), year, month)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, monthResponse[[]recurrence.Series]{Month: monthLabel(year, month), Items: series})
}

func (s *Server) handleUpcoming(w http.ResponseWriter, r *http.Request) {
	year, month, err := s.parseMonthParam(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	upcoming, err := s.svc.Upcoming(r.Context(), year, month)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, monthResponse[[]services.UpcomingPayment]{Month: monthLabel(year, month), Items: upcoming})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	year, month, err := s.parseMonthParam(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	overview, err := s.svc.MonthSummary(r.Context(), year, month)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	year, month, err := s.parseMonthParam(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	n, err := s.svc.ExportMonth(r.Context(), year, month)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, exportResponse{Month: monthLabel(year, month), Exported: n})
}
