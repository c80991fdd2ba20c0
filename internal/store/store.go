// Package store holds normalized events in a bounded, insertion-ordered ring
// and expires them by age.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/invisible-tech/alertmap/internal/types"
)

const (
	DefaultMaxEvents     = 20000
	DefaultRetention     = 60 * time.Minute
	DefaultSweepInterval = 15 * time.Second
)

var (
	storedEvents = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "alertmap_store_events",
			Help: "Events currently held in the store",
		},
	)
	evictedEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alertmap_store_evicted_total",
			Help: "Events evicted from the store",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(storedEvents)
	prometheus.MustRegister(evictedEvents)
}

// Config sizes the store.
type Config struct {
	MaxEvents     int
	Retention     time.Duration
	SweepInterval time.Duration
}

// Store is a fixed-capacity ring of events. When full, appending overwrites
// the oldest entry. Entries are kept in insertion order and never re-sorted;
// expiry truncates from the head, so an event older than its predecessors is
// only removed once everything ahead of it has aged out.
type Store struct {
	mu   sync.Mutex
	buf  []types.Event
	head int
	size int

	retention     time.Duration
	sweepInterval time.Duration
	log           *logrus.Logger
	now           func() time.Time
}

// New creates an empty store; zero config values take the defaults.
func New(cfg Config, log *logrus.Logger) *Store {
	if cfg.MaxEvents <= 0 {
		cfg.MaxEvents = DefaultMaxEvents
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	return &Store{
		buf:           make([]types.Event, cfg.MaxEvents),
		retention:     cfg.Retention,
		sweepInterval: cfg.SweepInterval,
		log:           log,
		now:           time.Now,
	}
}

// Cap returns the maximum number of events held.
func (s *Store) Cap() int {
	return len(s.buf)
}

// Len returns the number of events held.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// Append adds ev at the tail, evicting the oldest event when full.
func (s *Store) Append(ev types.Event) {
	s.mu.Lock()
	evicted := s.push(ev)
	n := s.size
	s.mu.Unlock()

	if evicted {
		evictedEvents.WithLabelValues("capacity").Inc()
	}
	storedEvents.Set(float64(n))
}

// AppendBatch adds evs in order as one critical section, so a concurrent
// Snapshot sees either none or all of the batch. It returns len(evs).
func (s *Store) AppendBatch(evs []types.Event) int {
	if len(evs) == 0 {
		return 0
	}
	evicted := 0
	s.mu.Lock()
	for i := range evs {
		if s.push(evs[i]) {
			evicted++
		}
	}
	n := s.size
	s.mu.Unlock()

	if evicted > 0 {
		evictedEvents.WithLabelValues("capacity").Add(float64(evicted))
	}
	storedEvents.Set(float64(n))
	return len(evs)
}

// push must be called with mu held. It reports whether an event was evicted.
func (s *Store) push(ev types.Event) bool {
	if s.size == len(s.buf) {
		s.buf[s.head] = ev
		s.head = (s.head + 1) % len(s.buf)
		return true
	}
	s.buf[(s.head+s.size)%len(s.buf)] = ev
	s.size++
	return false
}

// Snapshot returns a point-in-time copy of the events, oldest first.
func (s *Store) Snapshot() []types.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Event, s.size)
	for i := 0; i < s.size; i++ {
		out[i] = s.buf[(s.head+i)%len(s.buf)]
	}
	return out
}

// Preload seeds the store from a previous export, keeping only the most
// recent events that fit.
func (s *Store) Preload(evs []types.Event) int {
	if over := len(evs) - len(s.buf); over > 0 {
		evs = evs[over:]
	}
	return s.AppendBatch(evs)
}

// Expire removes events older than now minus the retention window from the
// head and returns how many were removed.
func (s *Store) Expire(now time.Time) int {
	removed, n := s.truncate(types.Cutoff(now, s.retention))
	if removed > 0 {
		evictedEvents.WithLabelValues("retention").Add(float64(removed))
	}
	storedEvents.Set(float64(n))
	return removed
}

func (s *Store) truncate(cutoff string) (removed, remaining int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.size > 0 && s.buf[s.head].Timestamp < cutoff {
		s.buf[s.head] = types.Event{}
		s.head = (s.head + 1) % len(s.buf)
		s.size--
		removed++
	}
	return removed, s.size
}

// Run sweeps expired events every sweep interval until ctx is cancelled.
func (s *Store) Run(ctx context.Context) {
	s.log.WithFields(logrus.Fields{
		"interval":  s.sweepInterval.String(),
		"retention": s.retention.String(),
	}).Info("Starting retention sweeper")
	wait.UntilWithContext(ctx, s.sweep, s.sweepInterval)
	s.log.Info("Retention sweeper stopped")
}

func (s *Store) sweep(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.log.WithField("panic", r).Error("Retention sweep failed, continuing")
		}
	}()
	if removed := s.Expire(s.now()); removed > 0 {
		s.log.WithField("removed", removed).Info("Cleaned old events")
	}
}
