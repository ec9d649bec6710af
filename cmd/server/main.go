package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"remote-device-manager/internal/config"
	"remote-device-manager/internal/handler"
	"remote-device-manager/internal/middleware"
	"remote-device-manager/internal/repository"
	"remote-device-manager/internal/service"
	"remote-device-manager/internal/slave"
	"remote-device-manager/internal/websocket"
	"remote-device-manager/pkg/logger"

	_ "github.com/go-kivik/kivik/v4/couchdb"

	"github.com/go-kivik/kivik/v4"
	"github.com/gorilla/mux"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.Logging.Level})

	couchURL := fmt.Sprintf("http://%s:%s@%s:%s",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
	)

	client, err := kivik.New("couch", couchURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to CouchDB")
	}

	exists, err := client.DBExists(context.Background(), cfg.Database.Name)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to check database existence")
	}

	if !exists {
		if err := client.CreateDB(context.Background(), cfg.Database.Name); err != nil {
			log.Fatal().Err(err).Msg("failed to create database")
		}
		log.Info().Str("database", cfg.Database.Name).Msg("created database")
	}

	deviceRepo := repository.NewDeviceRepository(client, cfg.Database.Name)
	slaveClient := slave.NewClient(cfg.Slave.AuthToken)

	eventHub := websocket.NewHub(10*time.Second, 60*time.Second, 54*time.Second, log)
	go eventHub.Run()

	matcher := service.NewCapabilityMatcher()
	reservations := service.NewReservationService(deviceRepo, log)
	allocationService := service.NewAllocationService(deviceRepo, slaveClient, matcher, reservations, eventHub, cfg.Devices.PollingFreq, log)
	releaseService := service.NewReleaseService(deviceRepo, slaveClient, matcher, reservations, eventHub, log)
	classificationService := service.NewClassificationService(deviceRepo, matcher, reservations, eventHub, log)
	deviceService := service.NewDeviceService(deviceRepo)

	appiumHandler := handler.NewAppiumHandler(allocationService, releaseService, classificationService)
	deviceHandler := handler.NewDeviceHandler(deviceService)
	wsHandler := handler.NewWebSocketHandler(eventHub, log)

	r := mux.NewRouter()

	r.Use(middleware.LoggerMiddleware(log))
	r.Use(middleware.CORSMiddleware(
		cfg.CORS.AllowedOrigins,
		cfg.CORS.AllowedMethods,
		cfg.CORS.AllowedHeaders,
	))

	appium := r.PathPrefix("/appium").Subrouter()
	appium.HandleFunc("/allocate", appiumHandler.Allocate).Methods("POST", "OPTIONS")
	appium.HandleFunc("/unallocate", appiumHandler.Unallocate).Methods("POST", "OPTIONS")
	appium.HandleFunc("/unallocateAll", appiumHandler.UnallocateAll).Methods("POST", "OPTIONS")
	appium.HandleFunc("/blacklist", appiumHandler.Blacklist).Methods("POST", "OPTIONS")
	appium.HandleFunc("/whitelist", appiumHandler.Whitelist).Methods("POST", "OPTIONS")

	r.HandleFunc("/devices", deviceHandler.List).Methods("GET", "OPTIONS")
	r.HandleFunc("/ws", wsHandler.HandleConnection)
	r.HandleFunc("/health", healthHandler).Methods("GET")

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
		// Allocation long-polls up to the 900s cap; the write timeout has
		// to outlive it.
		ReadTimeout:  15 * time.Second,
		WriteTimeout: service.MaxTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", addr).
			Str("env", cfg.Server.Env).
			Dur("polling_freq", cfg.Devices.PollingFreq).
			Msg("starting remote device manager")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped gracefully")
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy","service":"remote-device-manager"}`))
}
