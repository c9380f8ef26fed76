package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/beachside/racetrack/go/internal/gateway"
)

func setupServer(config Config, api *gateway.APIHandler, ws *gateway.WebSocketHandler) *http.Server {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowedOrigins: config.AllowedOrigins,
		AllowedHeaders: []string{"*"},
	})
	r.Use(c.Handler)

	r.Post("/api/login", api.HandleLogin)
	r.Get("/api/state", api.HandleState)
	r.Get("/health", api.HandleHealth)
	r.Get("/ws", ws.HandleConnection)

	// No WriteTimeout: it would sever long-lived WebSocket connections.
	return &http.Server{
		Addr:        fmt.Sprintf(":%s", config.Port),
		Handler:     r,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 120 * time.Second,
	}
}
