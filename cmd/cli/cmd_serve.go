package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sguter90/soilmaestro/pkg/cache"
	"github.com/sguter90/soilmaestro/pkg/ingest"
	"github.com/sguter90/soilmaestro/pkg/models"
	"github.com/sguter90/soilmaestro/pkg/mqttingest"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the SoilMaestro server",
	Long: `Start the SoilMaestro HTTP server. When MQTT_BROKER is set, readings
published by devices are ingested as well.`,
	RunE: runServe,
}

// thresholdOverrides names the env thresholds that differ from the persisted ones
func thresholdOverrides(env, persisted models.ThresholdConfig) []string {
	var ignored []string
	if env.SoilThreshold != persisted.SoilThreshold {
		ignored = append(ignored, "SOIL_THRESHOLD")
	}
	if env.TempThreshold != persisted.TempThreshold {
		ignored = append(ignored, "TEMP_THRESHOLD")
	}
	if env.HumThreshold != persisted.HumThreshold {
		ignored = append(ignored, "HUM_THRESHOLD")
	}
	return ignored
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	a := appFrom(cmd)
	cfg, logger := a.cfg, a.logger
	ctx := cmd.Context()

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	thresholds := ingest.NewThresholdCell(cfg.Thresholds, store)
	if err := thresholds.Load(ctx); err != nil {
		return fmt.Errorf("failed to load thresholds: %w", err)
	}
	active := thresholds.Get()
	logger.Info("Thresholds loaded",
		"soil", active.SoilThreshold, "temp", active.TempThreshold, "hum", active.HumThreshold, "version", active.Version)
	if cfg.ThresholdsFromEnv {
		if ignored := thresholdOverrides(cfg.Thresholds, active); len(ignored) > 0 {
			logger.Warn("Threshold environment values ignored, persisted settings take precedence; use POST /api/threshold to change them",
				"ignored", ignored)
		}
	}

	opts := []ingest.Option{
		ingest.WithLogger(logger),
		ingest.WithAnonymousUser(cfg.AnonymousUserID),
	}

	if cfg.RedisAddr != "" {
		latest, err := cache.New(ctx, cache.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return err
		}
		defer latest.Close()
		opts = append(opts, ingest.WithCache(latest))
		logger.Info("Latest reading cache enabled", "addr", cfg.RedisAddr)
	}

	service := ingest.NewService(store, thresholds, opts...)

	if cfg.MQTTBroker != "" {
		subscriber := mqttingest.New(mqttingest.Config{
			Broker:      cfg.MQTTBroker,
			ClientID:    cfg.MQTTClientID,
			TopicPrefix: cfg.MQTTTopic,
			QoS:         1,
		}, service, logger)
		if err := subscriber.Start(); err != nil {
			return err
		}
		defer subscriber.Stop()
	}

	// Setup Router
	routeManager := NewRouteManager(store, service, thresholds, RouteOptions{
		AllowedOrigins: cfg.AllowedOrigins,
		Location:       cfg.Location,
		Logger:         logger,
	})
	routeManager.Setup()

	addr := ":" + cfg.ServerPort
	server := &http.Server{
		Handler:      routeManager.Router,
		Addr:         addr,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	}()

	logger.Info("Starting SoilMaestro server", "addr", addr, "driver", cfg.DBDriver)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}
