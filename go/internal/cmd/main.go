package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/beachside/racetrack/go/internal/auth"
	"github.com/beachside/racetrack/go/internal/gateway"
	"github.com/beachside/racetrack/go/internal/hub"
	"github.com/beachside/racetrack/go/internal/relay"
	"github.com/beachside/racetrack/go/internal/store"
)

// fanoutBroadcaster delivers hub events to the WebSocket clients and,
// when configured, mirrors them onto NATS.
type fanoutBroadcaster struct {
	gateway *gateway.ConnectionManager
	relay   *relay.Publisher
}

func (f fanoutBroadcaster) Broadcast(event hub.Event) {
	f.gateway.Broadcast(event)
	if f.relay != nil {
		f.relay.Publish(event)
	}
}

func (f fanoutBroadcaster) SendTo(connID string, event hub.Event) {
	f.gateway.SendTo(connID, event)
}

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	mode := flag.String("mode", "", "server mode: production or developer")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	config, err := loadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if *mode != "" {
		config.Mode = *mode
	}

	level, err := zerolog.ParseLevel(config.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	keys := auth.Keys{
		Receptionist: os.Getenv("RECEPTIONIST_KEY"),
		Observer:     os.Getenv("OBSERVER_KEY"),
		Safety:       os.Getenv("SAFETY_KEY"),
	}
	if err := keys.Validate(); err != nil {
		log.Fatal().Err(err).Msg("missing role keys")
	}

	log.Info().
		Str("mode", config.Mode).
		Str("port", config.Port).
		Str("data_file", config.DataFile).
		Msg("starting race track server")

	boltStore, err := store.OpenBolt(config.DataFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open snapshot database")
	}
	defer boltStore.Close()

	authService := auth.NewService(keys)
	connectionManager := gateway.NewConnectionManager(gateway.DefaultConnectionConfig())

	var eventRelay *relay.Publisher
	if config.NATSUrl != "" {
		relayConfig := relay.DefaultConfig()
		relayConfig.URL = config.NATSUrl
		eventRelay, err = relay.Connect(relayConfig)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect event relay")
		}
		defer eventRelay.Close()
	}

	raceHub := hub.New(
		config.hubConfig(),
		boltStore,
		fanoutBroadcaster{gateway: connectionManager, relay: eventRelay},
		clockwork.NewRealClock(),
	)

	apiHandler := gateway.NewAPIHandler(authService, raceHub)
	wsHandler := gateway.NewWebSocketHandler(connectionManager, authService, raceHub)
	server := setupServer(config, apiHandler, wsHandler)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go connectionManager.Start(ctx)
	go raceHub.Run(ctx)

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	cancel()

	// Give the hub time to write its final snapshot.
	time.Sleep(1 * time.Second)

	log.Info().Msg("race track server shutdown complete")
}
