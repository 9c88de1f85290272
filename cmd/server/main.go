package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/betbot/gobet/internal/controlplane/server"
	"github.com/betbot/gobet/internal/registry"
	"github.com/betbot/gobet/internal/settings"
	"github.com/betbot/gobet/pkg/config"
	"github.com/betbot/gobet/pkg/logger"
)

func main() {
	var envFile = flag.String("env", "", "path to .env file (optional)")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	if err := logger.Init(logger.Config{
		Level: cfg.LogLevel, OutputFile: cfg.LogFile,
		MaxSize: 100, MaxBackups: 3, MaxAge: 7, Compress: true,
	}); err != nil {
		log.Fatalf("init logger failed: %v", err)
	}

	secrets, err := cfg.OpenSecretStore()
	if err != nil {
		log.Fatalf("open secret store failed: %v", err)
	}
	defer secrets.Close()

	client, err := cfg.NewExchangeClient()
	if err != nil {
		log.Fatalf("build exchange client failed: %v", err)
	}

	settingsStore, err := config.NewSettingsStore(cfg.SettingsPath)
	if err != nil {
		log.Fatalf("load settings failed: %v", err)
	}
	killswitch := settings.NewKillswitch()
	breaker := config.NewCircuitBreaker(settingsStore.Load())

	reg := registry.New(registry.Deps{
		ConfigDir: cfg.ConfigDir, DataDir: cfg.DataDir,
		Secrets: secrets, Client: client, Breaker: breaker,
		Settings: settingsStore, Killswitch: killswitch,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := reg.Load(ctx); err != nil {
		log.Fatalf("load persisted bots failed: %v", err)
	}

	srv := server.New(server.Config{SettingsPath: cfg.SettingsPath}, reg, settingsStore, killswitch)

	httpSrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Infof("controlplane listening on %s", cfg.ListenAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("http server error: %v", err)
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	<-stopCh

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer shutdownCancel()
	reg.ShutdownAll(shutdownCtx)
	_ = httpSrv.Shutdown(shutdownCtx)

	fmt.Println("server stopped")
}
