// Command emulator serves an in-memory HVAC device on the remote device API
// so the gateway can run without hardware.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hvac_gateway/internal/config"
	"hvac_gateway/internal/emulator"
	"hvac_gateway/internal/logger"
	"hvac_gateway/internal/server"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		logger.Get(logger.InfoLevel).Fatalw("error reading config", "err", err)
	}
	log := logger.GetWithFormat(cfg.Logging.Level, cfg.Logging.Format)
	defer func() { _ = log.Sync() }()

	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	dev := emulator.NewDevice()
	go dev.Run(ctx, cfg.Emulator.Tick)

	srv := &server.Server{}
	go func() {
		log.Infow("emulator_listening", "port", cfg.Emulator.Port, "device", cfg.Device.Name, "tick", cfg.Emulator.Tick.String())
		if err := srv.Run(cfg.Emulator.Port, emulator.NewServer(dev, cfg.Device.Name, log).Routes()); err != nil {
			log.Fatalw("error starting emulator", "err", err)
		}
	}()

	<-ctx.Done()
	log.Infow("shutting down emulator...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("emulator forced to shutdown", "err", err)
	}
}
