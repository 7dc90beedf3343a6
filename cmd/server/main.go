package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"termdeck/internal/config"
	"termdeck/internal/dbpool"
	"termdeck/internal/gateway"
	"termdeck/internal/history"
	"termdeck/internal/session"
	"termdeck/internal/watcher"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	log := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(log)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("config load failed", "err", err)
		os.Exit(1)
	}

	registry := session.NewRegistry(cfg.MaxSessions, log)
	pools := dbpool.NewManager(0, log)

	hist, err := history.Open(cfg.DataDir)
	if err != nil {
		log.Error("history store open failed", "err", err)
		os.Exit(1)
	}

	// The watcher callback is wired after the gateway exists.
	var srv *gateway.Server
	watch := watcher.New(func(sessionID, path string) {
		if srv != nil {
			srv.OnDirChange(sessionID, path)
		}
	}, log)

	registry.SetExitHook(func(id string) {
		watch.Unwatch(id)
	})

	srv = gateway.New(registry, pools, hist, watch, cfg.StaticDir, cfg.ServeStatic(), log)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: srv.Handler(),
	}

	// Graceful shutdown on signals: drain sessions and pools before exit.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		log.Info("shutting down")
		registry.Shutdown()
		pools.Shutdown()
		watch.Shutdown()
		hist.Close()
		httpServer.Close()
	}()

	log.Info("gateway listening", "port", cfg.Port, "env", cfg.Env)
	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		log.Error("http server failed", "err", err)
		os.Exit(1)
	}
}
