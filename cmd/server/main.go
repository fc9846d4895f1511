// Package main runs the local studyflow backend: the offline-first data
// service the web UI talks to on localhost, plus the background sync engine
// pushing queued changes to the cloud backend whenever it is reachable.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/studyflow/backend/internal/api"
	"github.com/studyflow/backend/internal/config"
	"github.com/studyflow/backend/internal/logging"
	"github.com/studyflow/backend/internal/netmon"
	"github.com/studyflow/backend/internal/remote"
	"github.com/studyflow/backend/internal/service"
	"github.com/studyflow/backend/internal/session"
	"github.com/studyflow/backend/internal/store"
	syncengine "github.com/studyflow/backend/internal/sync"
	"github.com/studyflow/backend/internal/sync/scheduler"
)

func main() {
	if err := run(); err != nil {
		logging.Error("server exited", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(".env")
	if err != nil {
		return err
	}
	logging.Init(os.Stderr, logging.ParseLevel(cfg.LogLevel))

	st, err := store.Open(cfg.DataDir)
	if err != nil {
		return err
	}
	defer st.Close()

	sess := session.NewJWTSession()
	if cfg.AuthToken != "" {
		if err := sess.SetToken(cfg.AuthToken); err != nil {
			logging.Warn("auth token rejected, sync will pause until re-auth", logging.Fields{"error": err.Error()})
		}
	}

	monitor := netmon.New(netmon.Config{
		ProbeURL:      cfg.ProbeURL,
		ProbeInterval: cfg.ProbeInterval,
	})
	monitor.Start()
	defer monitor.Stop()

	client := remote.New(remote.Config{BaseURL: cfg.RemoteURL}, sess)
	engine := syncengine.New(st, client, monitor, sess, syncengine.Config{
		BackoffBase: cfg.BackoffBase,
		BackoffCap:  cfg.BackoffCap,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine.Start(ctx)
	defer engine.Stop()

	sched := scheduler.New(engine, scheduler.Config{Interval: cfg.SyncInterval})
	sched.Start(ctx)
	defer sched.Stop()

	svc := service.New(st, engine)
	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.NewServer(svc, engine).Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info("listening", logging.Fields{"addr": cfg.ListenAddr})
		errCh <- server.ListenAndServe()
	}()

	// Push whatever survived the last shutdown as soon as we are up.
	engine.Trigger(ctx)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logging.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
