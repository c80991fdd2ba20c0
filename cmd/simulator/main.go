package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/invisible-tech/alertmap/internal/config"
	"github.com/invisible-tech/alertmap/internal/version"
	"github.com/invisible-tech/alertmap/pkg/shipper"
	"github.com/invisible-tech/alertmap/pkg/trafficgen"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetLevel(logrus.InfoLevel)

	if err := config.LoadDotEnv(config.GetEnv("ENV_FILE", ".env")); err != nil {
		log.WithError(err).Warn("Failed to load env file")
	}
	cfg := config.DefaultSimulatorConfig()
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	}

	name := cfg.Scenario
	if len(os.Args) > 1 {
		name = os.Args[1]
	}
	scenario, err := trafficgen.ParseScenario(name)
	if err != nil {
		log.WithError(err).Fatal("Invalid scenario")
	}

	sh, err := shipper.New(shipper.Config{
		IngestURL: cfg.IngestURL,
		BatchSize: cfg.BatchSize,
		Timeout:   cfg.RequestTimeout,
	}, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to create shipper")
	}

	log.WithFields(logrus.Fields{
		"version":  version.Get().String(),
		"ingest":   cfg.IngestURL,
		"scenario": scenario,
	}).Info("Starting simulator")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gen := trafficgen.NewGenerator(time.Now().UnixNano())
	if scenario == trafficgen.ScenarioDemo {
		if err := sh.Demo(ctx, gen, trafficgen.DemoPlan(cfg.DemoStepDuration), cfg.DemoPause); err != nil {
			log.WithError(err).Error("Demo failed")
		}
		scenario = trafficgen.ScenarioNormal
	}
	if err := sh.Stream(ctx, gen, scenario, cfg.Rate, 0); err != nil {
		log.WithError(err).Error("Simulator failed")
	}

	sent, failed := sh.Stats()
	log.WithFields(logrus.Fields{"sent": sent, "failed": failed}).Info("Simulator stopped")
}
