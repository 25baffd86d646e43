package web

import (
	"encoding/json"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/rtoken-labs/rvm/internal/keeper"
	"github.com/rtoken-labs/rvm/internal/logger"
	"github.com/rtoken-labs/rvm/internal/state"
	"github.com/rtoken-labs/rvm/internal/types"
)

var webLogger = logger.GetForComponent("web_server")

// WebServer handles HTTP requests for protocol monitoring
type WebServer struct {
	router *mux.Router
	port   string
	keeper *keeper.Keeper
}

// NewWebServer creates a new web server instance
func NewWebServer(port string, k *keeper.Keeper) *WebServer {
	if port == "" {
		port = "8080"
	}

	server := &WebServer{
		router: mux.NewRouter(),
		port:   port,
		keeper: k,
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all HTTP routes
func (ws *WebServer) setupRoutes() {
	// Health endpoint (direct route)
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")

	// API endpoints
	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.handleHealth).Methods("GET")
	api.HandleFunc("/status", ws.handleGetStatus).Methods("GET")
	api.HandleFunc("/actions", ws.handleGetActions).Methods("GET")
	api.HandleFunc("/trades", ws.handleGetTrades).Methods("GET")
	api.HandleFunc("/parameters", ws.handleGetParameters).Methods("GET")

	// Add CORS middleware
	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
}

// Start starts the web server
func (ws *WebServer) Start() error {
	webLogger.Info().Str("port", ws.port).Msg("Starting web server")

	server := &http.Server{
		Addr:         ":" + ws.port,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server.ListenAndServe()
}

// handleHealth returns server health status
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	dbHealthy := true
	hasErrors := false
	if err := state.TestDBConnection(); err != nil {
		dbHealthy = false
		hasErrors = true
	}

	latestCycleID, err := state.LatestCycleID()
	if err != nil {
		hasErrors = true
	}

	overallStatus := "OK"
	if hasErrors {
		overallStatus = "DEGRADED"
	}

	response := map[string]interface{}{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"system": map[string]interface{}{
			"version":          runtime.Version(),
			"goroutines_count": runtime.NumGoroutine(),
			"alloc_bytes":      memStats.Alloc,
			"sys_bytes":        memStats.Sys,
			"gc_cycles":        memStats.NumGC,
		},
		"component": map[string]interface{}{
			"name":    "rvm-recollateralization-keeper",
			"version": "1.0.0",
		},
		"keeper_status": map[string]interface{}{
			"database_healthy": dbHealthy,
			"latest_cycle_id":  latestCycleID,
		},
	}

	statusCode := http.StatusOK
	if hasErrors {
		statusCode = http.StatusServiceUnavailable
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// handleGetStatus returns the live protocol status report
func (ws *WebServer) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	report := ws.keeper.Status(r.Context(), time.Now())
	ws.writeJSONResponse(w, http.StatusOK, report)
}

// handleGetActions returns recent keeper cycles, optionally filtered by action
func (ws *WebServer) handleGetActions(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 && parsedLimit <= 100 {
			limit = parsedLimit
		}
	}

	var (
		snapshots []types.ActionSnapshot
		err       error
	)
	if name := r.URL.Query().Get("action"); name != "" {
		snapshots, err = state.GetActionSnapshotsByName(name, limit)
	} else {
		snapshots, err = state.GetRecentActionSnapshots(limit)
	}
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get action snapshots")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve actions")
		return
	}

	response := map[string]interface{}{
		"actions": snapshots,
		"count":   len(snapshots),
		"limit":   limit,
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetTrades returns all currently open trades
func (ws *WebServer) handleGetTrades(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"backing_trades": ws.keeper.TradesForBackingManager(),
		"revenue_trades": ws.keeper.TradesForRevenueTraders(),
		"timestamp":      time.Now().UTC(),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetParameters returns the active protocol parameters
func (ws *WebServer) handleGetParameters(w http.ResponseWriter, r *http.Request) {
	params, err := state.GetActiveProtocolParameters("default")
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get protocol parameters")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve protocol parameters")
		return
	}

	response := map[string]interface{}{
		"parameters": map[string]interface{}{
			"max_trade_slippage":     params.MaxTradeSlippage.String(),
			"min_trade_volume":       params.MinTradeVolume.String(),
			"max_trade_volume":       params.MaxTradeVolume.String(),
			"auction_length_seconds": int64(params.AuctionLength / time.Second),
			"rtoken_dist":            params.RTokenDist,
			"rsr_dist":               params.RSRDist,
		},
		"timestamp": time.Now().UTC(),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// writeJSONResponse writes a JSON response
func (ws *WebServer) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		webLogger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error response
func (ws *WebServer) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	response := map[string]interface{}{
		"error":     true,
		"message":   message,
		"timestamp": time.Now().UTC(),
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// corsMiddleware adds CORS headers
func (ws *WebServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		webLogger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

// responseWriterWrapper wraps http.ResponseWriter to capture status code
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
