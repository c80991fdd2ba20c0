// Package shipper posts generated alert records to the alertmap ingest endpoint.
package shipper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/invisible-tech/alertmap/pkg/trafficgen"
)

// Config for the shipper.
type Config struct {
	IngestURL string
	BatchSize int
	Timeout   time.Duration
}

// Shipper sends batches of records to the ingest endpoint.
type Shipper struct {
	cfg        Config
	log        *logrus.Logger
	httpClient *http.Client

	sent   atomic.Int64
	failed atomic.Int64
}

// New creates a Shipper.
func New(cfg Config, log *logrus.Logger) (*Shipper, error) {
	if cfg.IngestURL == "" {
		return nil, errors.New("ingest URL not configured")
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	return &Shipper{
		cfg:        cfg,
		log:        log,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type ingestResponse struct {
	Ingested int    `json:"ingested"`
	Error    string `json:"error"`
}

// Send posts one batch and returns how many records the server accepted.
func (s *Shipper) Send(ctx context.Context, records []trafficgen.Record) (int, error) {
	body, err := json.Marshal(records)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal batch: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.IngestURL, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.failed.Add(int64(len(records)))
		return 0, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	var out ingestResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&out); err != nil && resp.StatusCode == http.StatusOK {
		s.failed.Add(int64(len(records)))
		return 0, fmt.Errorf("failed to decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		s.failed.Add(int64(len(records)))
		return 0, fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, out.Error)
	}
	s.sent.Add(int64(out.Ingested))
	return out.Ingested, nil
}

// Stream sends batches from gen under scenario at rate batches per second
// until d elapses (d <= 0 runs until ctx is cancelled). Failed sends are
// logged and do not stop the stream.
func (s *Shipper) Stream(ctx context.Context, gen *trafficgen.Generator, scenario trafficgen.Scenario, rate float64, d time.Duration) error {
	if rate <= 0 {
		rate = scenario.Rate()
	}
	gen.SetScenario(scenario)
	interval := time.Duration(float64(time.Second) / rate)

	log := s.log.WithFields(logrus.Fields{"scenario": scenario, "rate": rate})
	log.Info("Streaming simulated alerts")

	var deadline <-chan time.Time
	if d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		deadline = timer.C
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	batches := 0
	for {
		if _, err := s.Send(ctx, gen.Batch(s.cfg.BatchSize)); err != nil && ctx.Err() == nil {
			log.WithError(err).Warn("POST failed")
		}
		batches++
		if batches%50 == 0 {
			sent, failed := s.Stats()
			log.WithFields(logrus.Fields{"sent": sent, "failed": failed}).Info("Simulator progress")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-deadline:
			log.Info("Scenario complete")
			return nil
		case <-ticker.C:
		}
	}
}

// Demo plays each step of plan with a pause between steps, then returns.
func (s *Shipper) Demo(ctx context.Context, gen *trafficgen.Generator, plan []trafficgen.Step, pause time.Duration) error {
	s.log.Info("Running attack scenario demonstration")
	for i, step := range plan {
		if err := s.Stream(ctx, gen, step.Scenario, 0, step.Duration); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
		if i < len(plan)-1 && pause > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(pause):
			}
		}
	}
	gen.SetScenario(trafficgen.ScenarioNormal)
	s.log.Info("Demo complete, returning to normal operations")
	return nil
}

// Stats returns records accepted by the server and records that failed to send.
func (s *Shipper) Stats() (sent, failed int64) {
	return s.sent.Load(), s.failed.Load()
}
