package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/invisible-tech/alertmap/internal/config"
	"github.com/invisible-tech/alertmap/internal/controller"
	"github.com/invisible-tech/alertmap/internal/server"
	"github.com/invisible-tech/alertmap/internal/version"
	"github.com/invisible-tech/alertmap/pkg/feeds"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetLevel(logrus.InfoLevel)

	if err := config.LoadDotEnv(config.GetEnv("ENV_FILE", ".env")); err != nil {
		log.WithError(err).Warn("Failed to load env file")
	}
	cfg := config.DefaultDashboardConfig()
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	}

	log.WithFields(logrus.Fields{
		"version":      version.Get().String(),
		"addr":         cfg.HTTPAddr,
		"geo_provider": cfg.GeoProvider,
		"max_events":   cfg.MaxEvents,
	}).Info("Starting alertmap")

	ctrl := controller.New(cfg, log)
	if _, err := ctrl.Restore(); err != nil {
		log.WithError(err).Warn("Failed to restore events")
	}

	sup, err := feeds.New(cfg, ctrl, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to create alert feeds")
	}
	srv := server.New(cfg, ctrl, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return ctrl.Run(gctx) })
	g.Go(func() error { return sup.Start(gctx) })
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down alertmap")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return errors.Join(srv.Shutdown(shutdownCtx), sup.Shutdown(shutdownCtx))
	})

	err = g.Wait()
	if cerr := ctrl.Close(); cerr != nil {
		log.WithError(cerr).Warn("Failed to close geo provider")
	}
	if err != nil {
		log.WithError(err).Error("alertmap stopped with error")
		os.Exit(1)
	}
	log.Info("alertmap shutdown complete")
}
