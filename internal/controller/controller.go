// Package controller owns the event store and wires ingestion, geo
// enrichment, retention and the query engines together.
package controller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/invisible-tech/alertmap/internal/aggregate"
	"github.com/invisible-tech/alertmap/internal/config"
	"github.com/invisible-tech/alertmap/internal/export"
	"github.com/invisible-tech/alertmap/internal/geo"
	"github.com/invisible-tech/alertmap/internal/normalize"
	"github.com/invisible-tech/alertmap/internal/risk"
	"github.com/invisible-tech/alertmap/internal/store"
	"github.com/invisible-tech/alertmap/internal/types"
	"github.com/invisible-tech/alertmap/pkg/geoapi"
)

// Prometheus metrics (registered once).
var (
	eventsIngested = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "alertmap_ingest_events_total",
			Help: "Total events accepted into the store",
		},
	)
	recordsSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "alertmap_ingest_skipped_total",
			Help: "Total malformed records skipped during ingestion",
		},
	)
	payloadsRejected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "alertmap_ingest_rejected_total",
			Help: "Total ingest payloads rejected as invalid or empty",
		},
	)
)

func init() {
	prometheus.MustRegister(eventsIngested)
	prometheus.MustRegister(recordsSkipped)
	prometheus.MustRegister(payloadsRejected)
}

// Controller is the single owner of the event store.
type Controller struct {
	cfg        config.DashboardConfig
	log        *logrus.Logger
	store      *store.Store
	resolver   *geo.Resolver
	normalizer *normalize.Normalizer
	engine     *risk.Engine
	hostname   func(ctx context.Context, ip string) (string, error)
	closers    []io.Closer
	now        func() time.Time
}

// New creates a Controller, selecting the geo provider from cfg. A provider
// that cannot be opened is logged and the service runs fallback-only.
func New(cfg config.DashboardConfig, log *logrus.Logger) *Controller {
	c := &Controller{cfg: cfg, log: log}
	c.initGeo()
	c.init()
	return c
}

// NewWithResolver creates a Controller around an existing resolver.
func NewWithResolver(cfg config.DashboardConfig, resolver *geo.Resolver, log *logrus.Logger) *Controller {
	c := &Controller{cfg: cfg, log: log, resolver: resolver}
	c.init()
	return c
}

func (c *Controller) init() {
	c.store = store.New(store.Config{
		MaxEvents:     c.cfg.MaxEvents,
		Retention:     c.cfg.Retention,
		SweepInterval: c.cfg.SweepInterval,
	}, c.log)
	c.normalizer = normalize.New(c.resolver)
	c.engine = risk.NewEngine()
	c.hostname = c.lookupHostname
	c.now = time.Now
}

func (c *Controller) initGeo() {
	var provider geo.Provider
	switch c.cfg.GeoProvider {
	case config.GeoProviderMaxMind:
		db, err := geo.OpenMaxMind(c.cfg.GeoIPDBPath)
		if err != nil {
			c.log.WithError(err).WithField("path", c.cfg.GeoIPDBPath).Warn("GeoIP database unavailable, using fallback table")
			break
		}
		c.closers = append(c.closers, db)
		provider = db
		c.log.WithField("path", c.cfg.GeoIPDBPath).Info("GeoIP database loaded")
	case config.GeoProviderAPI:
		if c.cfg.GeoAPIEndpoint == "" {
			c.log.Warn("GEO_PROVIDER=api without GEO_API_ENDPOINT, using fallback table")
			break
		}
		client := geoapi.NewClient(geoapi.Config{
			APIEndpoint: c.cfg.GeoAPIEndpoint,
			APIKey:      c.cfg.GeoAPIKey,
			Timeout:     c.cfg.GeoAPITimeout,
			CacheTTL:    c.cfg.GeoCacheTTL,
			Cooldown:    c.cfg.GeoAPICooldown,
		}, c.log)
		provider = geo.NewAPIProvider(client, c.cfg.GeoAPITimeout)
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := client.HealthCheck(ctx); err != nil {
				c.log.WithError(err).Warn("Geo API health check failed, lookups will fall back on error")
			} else {
				c.log.Info("Geo API connection verified")
			}
		}()
	}
	c.resolver = geo.NewResolver(provider, geo.DefaultRules(), c.log)
}

// Close releases the geo provider.
func (c *Controller) Close() error {
	var errs []error
	for _, cl := range c.closers {
		if err := cl.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PreciseGeo reports whether a precise geo provider is active.
func (c *Controller) PreciseGeo() bool {
	return c.resolver.Precise()
}

// Run sweeps expired events until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) error {
	c.store.Run(ctx)
	return nil
}

// Restore seeds the store from the configured restore file, if any.
func (c *Controller) Restore() (int, error) {
	if c.cfg.RestoreFile == "" {
		return 0, nil
	}
	events, err := export.LoadFile(c.cfg.RestoreFile)
	if err != nil {
		return 0, err
	}
	return c.Preload(events), nil
}

// Preload canonicalizes previously stored events and seeds the store with
// them, keeping only the most recent that fit. Events with unparseable
// timestamps are dropped.
func (c *Controller) Preload(events []types.Event) int {
	kept := make([]types.Event, 0, len(events))
	for _, ev := range events {
		ts, ok := normalize.Canonicalize(ev.Timestamp)
		if !ok {
			c.log.WithField("timestamp", ev.Timestamp).Warn("Skip restored event with invalid timestamp")
			continue
		}
		ev.Timestamp = ts
		ev.RiskScore, ev.ThreatLevel = 0, types.ThreatLow
		kept = append(kept, ev)
	}
	n := c.store.Preload(kept)
	c.log.WithFields(logrus.Fields{"restored": n, "read": len(events)}).Info("Restored events")
	return n
}

// Ingest parses and normalizes a payload of one record or a list of records
// and appends the valid ones as a single batch. It returns how many events
// were stored; malformed records are skipped and logged. Only an absent or
// unparseable payload is an error.
func (c *Controller) Ingest(ctx context.Context, payload []byte) (int, error) {
	records, err := normalize.ParsePayload(payload)
	if err != nil {
		payloadsRejected.Inc()
		c.log.WithError(err).Warn("Received invalid or empty JSON")
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	events, errs := c.normalizer.Batch(records)
	for _, err := range errs {
		c.log.WithError(err).Warn("Skip event")
	}
	recordsSkipped.Add(float64(len(errs)))

	added := c.store.AppendBatch(events)
	eventsIngested.Add(float64(added))
	c.log.WithFields(logrus.Fields{
		"batch":    len(records),
		"ingested": added,
		"skipped":  len(errs),
		"total":    c.store.Len(),
	}).Debug("Ingested batch")
	return added, nil
}

// EventCount returns the number of events held.
func (c *Controller) EventCount() int {
	return c.store.Len()
}

// GeoSummary returns ranked geographic groups for q.
func (c *Controller) GeoSummary(q types.Query) []types.GroupSummary {
	return aggregate.ByGeo(c.store.Snapshot(), q, c.now())
}

// IPSummary returns ranked source addresses for q.
func (c *Controller) IPSummary(q types.Query) []types.IPSummary {
	return aggregate.ByIP(c.store.Snapshot(), q, c.now(), c.engine)
}

// RecentAlerts returns the most recent events for q with risk assessed.
func (c *Controller) RecentAlerts(q types.Query) []types.Event {
	return aggregate.Recent(c.store.Snapshot(), q, c.now(), c.engine)
}

// Metrics returns the KPI view over the last minutes.
func (c *Controller) Metrics(minutes int) types.Metrics {
	return aggregate.Metrics(c.store.Snapshot(), window(minutes), c.now(), c.engine)
}

// Vulnerabilities returns the top blocked signatures over the last minutes.
func (c *Controller) Vulnerabilities(minutes int) types.Vulnerabilities {
	return aggregate.TopSignatures(c.store.Snapshot(), window(minutes), c.now(), aggregate.DefaultVulnLimit)
}

// IPInfo returns the detail view of ip, or aggregate.ErrIPNotFound.
func (c *Controller) IPInfo(ctx context.Context, ip string) (types.IPInfo, error) {
	return aggregate.IPInfo(c.store.Snapshot(), ip, c.engine, func(ip string) (string, error) {
		return c.hostname(ctx, ip)
	})
}

// Export returns the events of the last minutes, oldest first.
func (c *Controller) Export(minutes int) []types.Event {
	return aggregate.Window(c.store.Snapshot(), c.now(), window(minutes))
}

func (c *Controller) lookupHostname(ctx context.Context, ip string) (string, error) {
	timeout := c.cfg.HostnameTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	names, err := net.DefaultResolver.LookupAddr(ctx, ip)
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "", fmt.Errorf("no PTR record for %s", ip)
	}
	return names[0], nil
}

func window(minutes int) time.Duration {
	if minutes < 0 {
		minutes = 0
	}
	return time.Duration(minutes) * time.Minute
}
