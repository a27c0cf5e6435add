package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/promptops/modelrouter/pkg/accounting"
	"github.com/promptops/modelrouter/pkg/cache"
	"github.com/promptops/modelrouter/pkg/cost"
	"github.com/promptops/modelrouter/pkg/registry"
	"github.com/promptops/modelrouter/pkg/router"
	"github.com/promptops/modelrouter/pkg/router/core"
)

// Server exposes the router over HTTP.
type Server struct {
	port         string
	logger       *slog.Logger
	mux          *http.ServeMux
	modelRouter  *router.Router
	accounting   *accounting.Manager
	cacheManager *cache.CacheManager
	httpServer   *http.Server
}

// NewServer creates an HTTP server around a configured router.
// accountingManager and cacheManager may be nil, which disables the
// /v1/costs ledger queries and response caching respectively.
func NewServer(port string, modelRouter *router.Router, accountingManager *accounting.Manager, cacheManager *cache.CacheManager, logger *slog.Logger) *Server {
	s := &Server{
		port:         port,
		logger:       logger,
		mux:          http.NewServeMux(),
		modelRouter:  modelRouter,
		accounting:   accountingManager,
		cacheManager: cacheManager,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.Handle("/metrics", promhttp.Handler())

	v1 := http.NewServeMux()
	v1.HandleFunc("/invoke", s.handleInvoke)
	v1.HandleFunc("/models", s.handleModels)
	v1.HandleFunc("/costs", s.handleCosts)
	v1.HandleFunc("/protection", s.handleProtection)
	v1.HandleFunc("/cache", s.handleCache)

	s.mux.Handle("/v1/", http.StripPrefix("/v1", v1))
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              ":" + s.port,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("starting HTTP server", "port", s.port)
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the underlying mux, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","service":"modelrouter","timestamp":"%s"}`, time.Now().Format(time.RFC3339))
}

func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req core.InvocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "Invalid JSON", "INVALID_JSON", http.StatusBadRequest)
		return
	}
	if req.Prompt == "" {
		s.writeError(w, "prompt is required", "MISSING_PROMPT", http.StatusBadRequest)
		return
	}
	if req.Caller == "" {
		req.Caller = r.Header.Get("X-Caller")
	}

	cacheEnabled := s.cacheManager != nil && req.Metadata["cache"] == "true"

	var result *core.InvocationResult
	var cached bool
	var err error

	if cacheEnabled {
		var res core.InvocationResult
		res, cached, err = s.cacheManager.Execute(r.Context(), req, func() (core.InvocationResult, error) {
			inner, invokeErr := s.modelRouter.Invoke(r.Context(), req)
			if invokeErr != nil {
				return core.InvocationResult{}, invokeErr
			}
			return *inner, nil
		})
		if err == nil {
			result = &res
		}
	} else {
		result, err = s.modelRouter.Invoke(r.Context(), req)
	}

	if err != nil {
		s.writeInvokeError(w, err)
		return
	}

	s.addCostHeaders(w, result)
	if cacheEnabled {
		if cached {
			w.Header().Set("X-Cache", "HIT")
		} else {
			w.Header().Set("X-Cache", "MISS")
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// writeInvokeError maps router errors to HTTP status codes.
func (s *Server) writeInvokeError(w http.ResponseWriter, err error) {
	var notFound *registry.NotFoundError
	var noEligible *router.NoEligibleModelError
	var exhausted *router.FallbackExhaustedError

	switch {
	case errors.As(err, &notFound):
		s.writeError(w, err.Error(), "MODEL_NOT_FOUND", http.StatusNotFound)
	case errors.As(err, &noEligible):
		s.writeError(w, err.Error(), "NO_ELIGIBLE_MODEL", http.StatusUnprocessableEntity)
	case errors.As(err, &exhausted):
		s.writeError(w, err.Error(), "FALLBACK_EXHAUSTED", http.StatusBadGateway)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		s.writeError(w, err.Error(), "REQUEST_CANCELLED", 499)
	default:
		s.logger.Error("invocation failed", "error", err)
		s.writeError(w, err.Error(), "INTERNAL_ERROR", http.StatusInternalServerError)
	}
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	reg := s.modelRouter.Registry()

	configs := reg.Models
	if provider := r.URL.Query().Get("provider"); provider != "" {
		configs = reg.GetModelsByProvider(provider)
	}

	var models []core.Model
	for _, mc := range configs {
		caps := make([]string, 0, len(mc.Capabilities))
		for _, c := range mc.Capabilities {
			caps = append(caps, string(c))
		}
		capsJSON, _ := json.Marshal(caps)

		model := core.Model{
			ID:       mc.ID,
			Provider: mc.Provider,
			Metadata: map[string]string{
				"currency":        mc.Pricing.Currency,
				"input_per_mtok":  fmt.Sprintf("%.6f", mc.Pricing.InputPerMTok),
				"output_per_mtok": fmt.Sprintf("%.6f", mc.Pricing.OutputPerMTok),
				"capabilities":    string(capsJSON),
				"context_window":  strconv.Itoa(mc.ContextWindow),
				"deprecated":      strconv.FormatBool(mc.Deprecated),
			},
		}
		models = append(models, model)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(core.ModelsResponse{Models: models})
}

func (s *Server) handleCosts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if s.accounting == nil {
		s.writeError(w, "Cost accounting not available", "ACCOUNTING_DISABLED", http.StatusServiceUnavailable)
		return
	}

	filter, err := parseCostFilter(r)
	if err != nil {
		s.writeError(w, err.Error(), "INVALID_FILTER", http.StatusBadRequest)
		return
	}

	summary, err := s.accounting.GetCostSummary(filter)
	if err != nil {
		s.logger.Error("cost summary query failed", "error", err)
		s.writeError(w, "Cost query failed", "COST_QUERY_FAILED", http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"summary": summary,
	}

	if filter.GroupBy != "" {
		groups, err := s.accounting.GetGroupedCosts(filter)
		if err != nil {
			s.writeError(w, err.Error(), "INVALID_GROUP_BY", http.StatusBadRequest)
			return
		}
		response["groups"] = groups
	} else {
		records, err := s.accounting.GetCosts(filter)
		if err != nil {
			s.logger.Error("cost records query failed", "error", err)
			s.writeError(w, "Cost query failed", "COST_QUERY_FAILED", http.StatusInternalServerError)
			return
		}
		response["records"] = records
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func parseCostFilter(r *http.Request) (accounting.CostFilter, error) {
	filter := accounting.CostFilter{
		Caller:   r.URL.Query().Get("caller"),
		Provider: r.URL.Query().Get("provider"),
		Model:    r.URL.Query().Get("model"),
		GroupBy:  r.URL.Query().Get("group_by"),
	}

	if from := r.URL.Query().Get("from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			return filter, fmt.Errorf("invalid from timestamp: %w", err)
		}
		filter.From = &t
	}
	if to := r.URL.Query().Get("to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			return filter, fmt.Errorf("invalid to timestamp: %w", err)
		}
		filter.To = &t
	}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			return filter, fmt.Errorf("invalid limit: %q", limit)
		}
		filter.Limit = n
	}

	return filter, nil
}

func (s *Server) handleProtection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	modelID := r.URL.Query().Get("model")

	var response map[string]interface{}
	if modelID != "" {
		response = s.modelRouter.ProtectionStats(modelID)
	} else {
		stats := make(map[string]interface{})
		for _, mc := range s.modelRouter.Registry().Models {
			stats[mc.ID] = s.modelRouter.ProtectionStats(mc.ID)
		}
		response = stats
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func (s *Server) handleCache(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if s.cacheManager == nil {
			s.writeError(w, "Cache not available", "CACHE_DISABLED", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(s.cacheManager.Stats())
	case http.MethodDelete:
		if s.cacheManager == nil {
			s.writeError(w, "Cache not available", "CACHE_DISABLED", http.StatusServiceUnavailable)
			return
		}
		s.cacheManager.Clear()
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) writeError(w http.ResponseWriter, message, code string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	json.NewEncoder(w).Encode(core.ErrorResponse{
		Error: message,
		Code:  code,
	})
}

func (s *Server) addCostHeaders(w http.ResponseWriter, result *core.InvocationResult) {
	headers := cost.FormatCostHeaders([]*cost.CostResult{{
		TotalCost: result.Cost,
		Currency:  result.Currency,
	}})
	for key, value := range headers {
		w.Header().Set(key, value)
	}
	w.Header().Set("X-Model-ID", result.ModelID)
	w.Header().Set("X-Attempts", strconv.Itoa(result.Attempt))
}
