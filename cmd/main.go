package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "hvac_gateway/docs"
	"hvac_gateway/internal/config"
	"hvac_gateway/internal/device"
	"hvac_gateway/internal/handlers"
	"hvac_gateway/internal/logger"
	"hvac_gateway/internal/repository"
	"hvac_gateway/internal/repository/db"
	"hvac_gateway/internal/server"
	"hvac_gateway/internal/service"
	"hvac_gateway/internal/telemetry"

	"github.com/gin-gonic/gin"
)

const shutdownTimeout = 10 * time.Second

// @title                      HVAC Gateway API
// @version                    1.0
// @description                Role-gated control surface for one HVAC unit. Reads are served from a cached device snapshot; writes go to the device and trigger a refresh.
// @BasePath                   /
// @securityDefinitions.basic  BasicAuth
// @securityDefinitions.apikey BearerAuth
// @in                         header
// @name                       Authorization
func main() {
	// load config.yml + environment
	cfg, err := config.Load("")
	if err != nil {
		logger.Get(logger.InfoLevel).Fatalw("error reading config", "err", err)
	}

	// init logger
	log := logger.GetWithFormat(cfg.Logging.Level, cfg.Logging.Format)
	defer func() { _ = log.Sync() }()

	if err := cfg.Validate(); err != nil {
		log.Fatalw("invalid configuration", "err", err)
	}
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	// open DB
	conn, err := db.InitDB(cfg.DB.Path)
	if err != nil {
		log.Fatalw("failed to init sqlite", "path", cfg.DB.Path, "err", err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()
	repos := repository.NewRepository(conn)

	client, err := device.NewClient(device.Options{
		Host:    cfg.Device.Host,
		Name:    cfg.Device.Name,
		Timeout: cfg.Device.Timeout,
		Bulk:    cfg.Device.Bulk,
	})
	if err != nil {
		log.Fatalw("invalid device settings", "err", err)
	}

	sinks := openSinks(cfg, log)
	defer closeSinks(sinks, log)

	// wire dependencies
	cache := service.NewStateCache(client, service.StateCacheOptions{
		Interval: cfg.Device.RefreshInterval,
		Log:      log,
		Sinks:    snapshotSinks(sinks),
		Recorder: repos.EventRepo,
	})
	auth, err := service.NewAuthService(service.AuthConfig{
		User:               service.Credentials{Username: cfg.Auth.Username, Password: cfg.Auth.Password},
		Superuser:          service.Credentials{Username: cfg.Auth.SuUsername, Password: cfg.Auth.SuPassword},
		TokenSecret:        cfg.Auth.TokenSecret,
		TokenTTL:           cfg.Auth.TokenTTL,
		CredentialCacheTTL: cfg.Auth.CredentialCacheTTL,
		Log:                log,
	})
	if err != nil {
		log.Fatalw("invalid credentials configuration", "err", err)
	}
	services := service.NewService(cache, auth, service.NewEventLogService(repos.EventRepo))
	apiHandler := handlers.NewHandler(services, log, handlers.Options{
		Policy:      cfg.Policy(),
		RateLimit:   cfg.Server.RateLimitPerSec,
		Burst:       cfg.Server.RateLimitBurst,
		CORSOrigins: cfg.Server.CORSOrigins,
	})

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// start periodic refresh
	services.Refresher.Start(ctx)

	log.Infow("gateway_starting",
		"addr", cfg.Server.Addr(),
		"device", client.BaseURL(),
		"refresh_interval", cfg.Device.RefreshInterval.String(),
		"bulk", cfg.Device.Bulk,
	)

	// start HTTP server
	srv := &server.Server{}
	runHTTPServer(srv, cfg.Server.Addr(), apiHandler, log)

	// graceful shutdown
	waitForShutdown(cancel, srv, log)
}

// openSinks connects the enabled telemetry sinks. A sink that fails to
// connect is logged and skipped.
func openSinks(cfg *config.Config, log *logger.Logger) []telemetry.Sink {
	var sinks []telemetry.Sink

	mqttSink, err := telemetry.NewMQTTSink(telemetry.MQTTConfig{
		Enabled:  cfg.MQTT.Enabled,
		Broker:   cfg.MQTT.Broker,
		ClientID: cfg.MQTT.ClientID,
		Topic:    cfg.MQTT.Topic,
		Device:   cfg.Device.Name,
	})
	switch {
	case err == nil:
		log.Infow("mqtt_sink_connected", "broker", cfg.MQTT.Broker, "topic", mqttSink.Topic())
		sinks = append(sinks, mqttSink)
	case !errors.Is(err, telemetry.ErrDisabled):
		log.Errorw("mqtt_sink_unavailable", "err", err)
	}

	influxSink, err := telemetry.NewInfluxSink(telemetry.InfluxConfig{
		Enabled: cfg.Influx.Enabled,
		URL:     cfg.Influx.URL,
		Token:   cfg.Influx.Token,
		Org:     cfg.Influx.Org,
		Bucket:  cfg.Influx.Bucket,
		Device:  cfg.Device.Name,
	}, log)
	switch {
	case err == nil:
		log.Infow("influx_sink_connected", "url", cfg.Influx.URL, "bucket", cfg.Influx.Bucket)
		sinks = append(sinks, influxSink)
	case !errors.Is(err, telemetry.ErrDisabled):
		log.Errorw("influx_sink_unavailable", "err", err)
	}

	return sinks
}

func snapshotSinks(sinks []telemetry.Sink) []service.SnapshotSink {
	out := make([]service.SnapshotSink, 0, len(sinks))
	for _, s := range sinks {
		out = append(out, s)
	}
	return out
}

func closeSinks(sinks []telemetry.Sink, log *logger.Logger) {
	for _, s := range sinks {
		if err := s.Close(); err != nil {
			log.Warnw("telemetry_sink_close_failed", "err", err)
		}
	}
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, addr string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if err := srv.Run(addr, handler.InitRoutes()); err != nil {
			log.Fatalw("error starting server", "addr", addr, "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	// stop background goroutines
	cancel()

	// allow in-flight requests to complete
	ctx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
	}
}
