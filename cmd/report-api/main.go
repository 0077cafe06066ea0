package main

import (
	"NetSimScope/internal/config"
	"NetSimScope/internal/query"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gorilla/mux"
)

func main() {
	configPath := "configs/config.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Find the first enabled ClickHouse writer config; the API reads from
	// the same table the analyzer writes to.
	var chCfg *config.ClickHouseConfig
	for _, def := range cfg.Writers {
		if def.Enabled && def.Type == "clickhouse" {
			chCfg = &def.ClickHouse
			break
		}
	}
	if chCfg == nil {
		log.Fatalf("No enabled ClickHouse writer found in config. API server cannot start.")
	}

	querier, err := query.NewClickHouseQuerier(*chCfg)
	if err != nil {
		log.Fatalf("Failed to create querier: %v", err)
	}

	r := mux.NewRouter()
	apiHandler := &APIHandler{querier: querier}
	r.HandleFunc("/api/v1/versions/{version}/summary", apiHandler.summaryHandler).Methods("GET")
	r.HandleFunc("/api/v1/versions/{version}/series", apiHandler.seriesHandler).Methods("GET")

	server := &http.Server{
		Addr:    cfg.API.ListenAddr,
		Handler: r,
	}

	go func() {
		log.Printf("Report API server starting on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v", server.Addr, err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Report API server shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	log.Println("Report API server exited.")
}

// APIHandler holds the dependencies for API handlers.
type APIHandler struct {
	querier query.Querier
}

// summaryHandler serves the per-metric aggregate summary for one version.
func (h *APIHandler) summaryHandler(w http.ResponseWriter, r *http.Request) {
	version := mux.Vars(r)["version"]

	summaries, err := h.querier.Summary(r.Context(), version)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to query summary: %v", err), http.StatusInternalServerError)
		return
	}

	writeJSON(w, summaries)
}

// seriesHandler serves stored time-series points for one version, filtered
// by optional ?metric= and ?flow= query parameters.
func (h *APIHandler) seriesHandler(w http.ResponseWriter, r *http.Request) {
	version := mux.Vars(r)["version"]
	metric := r.URL.Query().Get("metric")

	var flowID *uint32
	if raw := r.URL.Query().Get("flow"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid flow id %q", raw), http.StatusBadRequest)
			return
		}
		v := uint32(id)
		flowID = &v
	}

	points, err := h.querier.Series(r.Context(), version, metric, flowID)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to query series: %v", err), http.StatusInternalServerError)
		return
	}

	writeJSON(w, points)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}
