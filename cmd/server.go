package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"FallWatch.iot/internal/broadcast"
	"FallWatch.iot/internal/config"
	"FallWatch.iot/internal/controller"
	"FallWatch.iot/internal/location"
	"FallWatch.iot/internal/logger"
	"FallWatch.iot/internal/middleware"
	"FallWatch.iot/internal/monitor"
	"FallWatch.iot/internal/mqtt"
	"FallWatch.iot/internal/notify"
	"FallWatch.iot/internal/repository"
	"FallWatch.iot/internal/routes"
	"FallWatch.iot/internal/service"
	"FallWatch.iot/internal/session"

	"github.com/benbjohnson/clock"
	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}

	zl, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "fallwatch")
	if err != nil {
		log.Fatalf("Error creating logger: %v", err)
	}
	defer zl.Sync()
	zap.ReplaceGlobals(zl)

	if err := run(cfg, zl); err != nil {
		zl.Fatal("Server stopped with error", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	clk := clock.New()

	tz, err := time.LoadLocation(cfg.AlertTimezone)
	if err != nil {
		logger.Warn("Unknown alert timezone, using UTC", zap.String("timezone", cfg.AlertTimezone), zap.Error(err))
		tz = time.UTC
	}

	hub := broadcast.NewHub(broadcast.DefaultBufferSize, logger)

	locations := location.NewCache(location.NewFileStore(cfg.LocationFile), logger)
	locations.Load()

	sessions, err := newSessionStore(cfg, clk, logger)
	if err != nil {
		return err
	}
	directory := session.NewDirectory(sessions, clk)

	var mailer notify.Mailer
	if cfg.SMTP.Username != "" && cfg.SMTP.Password != "" {
		mailer = notify.NewSMTPMailer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password)
	} else {
		logger.Warn("Email credentials missing, email alerts disabled")
	}
	coordinator := notify.NewCoordinator(notify.DefaultChannelTimeout, logger,
		notify.NewPushChannel(hub),
		notify.NewTelegramChannel(cfg.Telegram.URL, cfg.Telegram.Token, cfg.Telegram.ChatID, tz, logger),
		notify.NewSMSChannel(cfg.SMS.URL, cfg.SMS.APIKey, directory, tz, logger),
		notify.NewEmailChannel(mailer, cfg.SMTP.From, cfg.SMTP.To, notify.NewCooldown(clk, cfg.SMTP.Cooldown), tz, logger),
	)
	dispatcher := notify.NewDispatcher(coordinator, notify.DefaultQueueSize, logger)
	if err := dispatcher.Open(); err != nil {
		return fmt.Errorf("failed to start alert dispatcher: %w", err)
	}
	defer dispatcher.Close()

	opts := []monitor.Option{monitor.WithClock(clk)}
	var telemetry repository.TelemetryRepository
	if cfg.InfluxDB.Enabled() {
		influx := repository.NewInfluxDBRepository(cfg.InfluxDB.URL, cfg.InfluxDB.Token, cfg.InfluxDB.Org, cfg.InfluxDB.Bucket, logger)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := influx.EnsureBucket(ctx); err != nil {
			logger.Warn("Could not ensure InfluxDB bucket", zap.String("bucket", cfg.InfluxDB.Bucket), zap.Error(err))
		}
		cancel()
		defer influx.Close()
		telemetry = influx
		opts = append(opts, monitor.WithRecorder(influx))
		logger.Info("Telemetry history enabled", zap.String("url", cfg.InfluxDB.URL), zap.String("bucket", cfg.InfluxDB.Bucket))
	}

	mon := monitor.New(cfg.LivenessWindow, locations, dispatcher, hub, logger, opts...)
	defer mon.Close()

	users, err := repository.NewFileUserRepository(cfg.UsersFile)
	if err != nil {
		return err
	}
	auth := service.NewAuthService(users, sessions, clk, cfg.SessionTTL)

	if cfg.MQTT.Broker != "" {
		client, err := mqtt.NewClient(cfg.MQTT, mqtt.NewIngestHandler(mon, logger), logger)
		if err != nil {
			logger.Error("MQTT ingestion disabled", zap.String("broker", cfg.MQTT.Broker), zap.Error(err))
		} else {
			defer client.Disconnect()
		}
	}

	allowAll := len(cfg.AllowedOrigins) == 0 || (len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*")

	router := mux.NewRouter()
	routes.RegisterRoutes(router, routes.Controllers{
		Data: controller.NewDataController(mon, service.NewDataService(telemetry), logger),
		Fall: controller.NewFallController(coordinator, locations, clk, logger),
		Auth: controller.NewAuthController(auth, cfg.SecureCookies, logger),
		Live: controller.NewLiveController(mon, hub, locations, broadcast.NewUpgrader(allowAll), logger),
	}, routes.Options{
		DeviceAuth:  middleware.DeviceToken(cfg.DeviceToken, logger),
		SessionAuth: middleware.RequireSession(auth),
		Logging:     middleware.RequestLogger(logger),
		StaticDir:   cfg.StaticDir,
	})

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", middleware.DeviceTokenHeader},
		AllowCredentials: !allowAll,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           c.Handler(router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server listening", zap.String("addr", srv.Addr), zap.Duration("liveness_window", cfg.LivenessWindow))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		logger.Info("Shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		return fmt.Errorf("error starting server: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

func newSessionStore(cfg config.Config, clk clock.Clock, logger *zap.Logger) (session.Store, error) {
	if cfg.SessionStore != "redis" {
		return session.NewMemoryStore(clk), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("could not connect to Redis at %s: %w", cfg.Redis.Addr, err)
	}
	logger.Info("Connected to Redis", zap.String("addr", cfg.Redis.Addr))
	return session.NewRedisStore(client, clk, session.DefaultKeyPrefix), nil
}
