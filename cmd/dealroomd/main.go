package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"dealroom/internal/config"
	"dealroom/internal/engine"
	"dealroom/internal/rules"
	"dealroom/internal/server"
	"dealroom/internal/store"
)

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		os.Exit(1)
	}
	defer log.Sync()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal("bad configuration", zap.Error(err))
	}

	rng := rules.NewRNG(time.Now().UnixNano())
	st := store.New(rng, store.TTLConfig{
		Waiting:   cfg.WaitingTTL,
		Selection: cfg.SelectionTTL,
		Finished:  cfg.FinishedTTL,
	}, log)

	srv := server.New(st, cfg.CORSOrigins, log)
	eng := engine.New(st, rng, engine.Defaults(), srv, log)
	srv.AttachEngine(eng)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		ticker := time.NewTicker(cfg.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := st.Sweep(time.Now()); n > 0 {
					log.Info("swept stale rooms", zap.Int("removed", n))
				}
			}
		}
	}()

	httpSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: srv.Handler(cfg.CORSOrigins),
	}

	go func() {
		log.Info("listening", zap.String("addr", httpSrv.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("shutdown incomplete", zap.Error(err))
	}
}
