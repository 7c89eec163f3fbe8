package main

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mcdev12/quizbattle/go/internal/battle/relay"
	"github.com/mcdev12/quizbattle/go/internal/config"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

func setupServer(cfg *config.Config, services *Services) *http.Server {
	mux := http.NewServeMux()

	// Setup CORS middleware
	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
		},
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedHeaders: []string{"*"},
	})

	// Register services
	services.Gateway.RegisterRoutes(mux)
	if services.HistoryHandler != nil {
		services.HistoryHandler.RegisterRoutes(mux)
	}

	// Add health check endpoint
	setupHealthCheck(mux, services)

	// Wrap with CORS
	handler := c.Handler(mux)

	// Setup HTTP/2 server
	return &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: h2c.NewHandler(handler, &http2.Server{}),
	}
}

type healthResponse struct {
	Status         string                `json:"status"`
	Battles        int                   `json:"battles"`
	Connections    int                   `json:"connections"`
	RelayConnected bool                  `json:"relay_connected"`
	RelayPending   int                   `json:"relay_pending"`
	Relay          relay.CounterSnapshot `json:"relay"`
}

func setupHealthCheck(mux *http.ServeMux, services *Services) {
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{
			Status:         "ok",
			Battles:        services.Registry.Len(),
			Connections:    services.Gateway.GetStats().TotalConnections,
			RelayConnected: services.Relay.Connected(),
			RelayPending:   services.Relay.Pending(),
			Relay:          services.Counters.Snapshot(),
		}
		status := http.StatusOK
		if !resp.RelayConnected {
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	})
}
