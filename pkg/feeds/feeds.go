// Package feeds runs the optional alert sources that push records into the
// controller alongside the HTTP ingest endpoint.
package feeds

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/invisible-tech/alertmap/internal/config"
	"github.com/invisible-tech/alertmap/pkg/evetail"
	"github.com/invisible-tech/alertmap/pkg/kafkafeed"
)

// Ingester accepts a JSON payload of one record or a list of records.
type Ingester interface {
	Ingest(ctx context.Context, payload []byte) (int, error)
}

// Feed is a long-running alert source.
type Feed interface {
	Start(ctx context.Context) error
}

// Supervisor orchestrates the configured feeds.
type Supervisor struct {
	log   *logrus.Logger
	feeds map[string]Feed
	done  chan struct{}
}

// New builds the feeds enabled in cfg. A configuration with no feeds is valid.
func New(cfg config.DashboardConfig, ing Ingester, log *logrus.Logger) (*Supervisor, error) {
	s := &Supervisor{log: log, feeds: make(map[string]Feed), done: make(chan struct{})}

	if cfg.EveFile != "" {
		tail, err := evetail.New(evetail.Config{Path: cfg.EveFile, Ingester: ing}, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create eve.json follower: %w", err)
		}
		s.feeds["evetail"] = tail
	}

	if cfg.KafkaEnabled() {
		consumer, err := kafkafeed.New(kafkafeed.Config{
			Brokers:  cfg.KafkaBrokers,
			Topic:    cfg.KafkaTopic,
			GroupID:  cfg.KafkaGroupID,
			Ingester: ing,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create kafka consumer: %w", err)
		}
		s.feeds["kafka"] = consumer
	}

	return s, nil
}

// Add registers an extra feed under name.
func (s *Supervisor) Add(name string, f Feed) {
	s.feeds[name] = f
}

// Len returns the number of configured feeds.
func (s *Supervisor) Len() int {
	return len(s.feeds)
}

// Start runs every feed until ctx is cancelled or one of them fails.
func (s *Supervisor) Start(ctx context.Context) error {
	defer close(s.done)
	if len(s.feeds) == 0 {
		s.log.Info("No alert feeds configured")
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for name, f := range s.feeds {
		name, f := name, f
		g.Go(func() error {
			s.log.WithField("feed", name).Info("Starting alert feed")
			if err := f.Start(gctx); err != nil {
				return fmt.Errorf("feed %s: %w", name, err)
			}
			return nil
		})
	}
	err := g.Wait()
	s.log.Info("All alert feeds stopped")
	return err
}

// Shutdown waits for Start to return after its context was cancelled.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		s.log.Warn("Shutdown timeout, some feeds may not have stopped cleanly")
		return ctx.Err()
	}
}
