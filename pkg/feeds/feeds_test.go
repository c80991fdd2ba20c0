package feeds

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/invisible-tech/alertmap/internal/config"
)

type nopIngester struct{}

func (nopIngester) Ingest(context.Context, []byte) (int, error) { return 0, nil }

type blockingFeed struct{ started chan struct{} }

func (f *blockingFeed) Start(ctx context.Context) error {
	close(f.started)
	<-ctx.Done()
	return nil
}

type failingFeed struct{}

func (failingFeed) Start(context.Context) error { return errors.New("boom") }

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestNew(t *testing.T) {
	s, err := New(config.DashboardConfig{}, nopIngester{}, quietLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("Len = %d, want 0", s.Len())
	}

	cfg := config.DashboardConfig{
		EveFile:      filepath.Join(t.TempDir(), "eve.json"),
		KafkaBrokers: []string{"127.0.0.1:1"},
		KafkaTopic:   "suricata-alerts",
		KafkaGroupID: "alertmap",
	}
	s, err = New(cfg, nopIngester{}, quietLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if s.Len() != 2 {
		t.Errorf("Len = %d, want 2", s.Len())
	}
	if _, ok := s.feeds["evetail"]; !ok {
		t.Error("evetail feed missing")
	}
	if _, ok := s.feeds["kafka"]; !ok {
		t.Error("kafka feed missing")
	}
}

func TestNew_BadEveDirectory(t *testing.T) {
	if _, err := New(config.DashboardConfig{EveFile: "/nonexistent/dir/eve.json"}, nopIngester{}, quietLogger()); err == nil {
		t.Error("expected error")
	}
}

func TestSupervisor_StartAndShutdown(t *testing.T) {
	s, _ := New(config.DashboardConfig{}, nopIngester{}, quietLogger())
	feed := &blockingFeed{started: make(chan struct{})}
	s.Add("test", feed)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	select {
	case <-feed.started:
	case <-time.After(2 * time.Second):
		t.Fatal("feed not started")
	}
	cancel()

	sctx, scancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer scancel()
	if err := s.Shutdown(sctx); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
	if err := <-done; err != nil {
		t.Errorf("Start: %v", err)
	}
}

func TestSupervisor_FailingFeedStopsOthers(t *testing.T) {
	s, _ := New(config.DashboardConfig{}, nopIngester{}, quietLogger())
	s.Add("blocking", &blockingFeed{started: make(chan struct{})})
	s.Add("failing", failingFeed{})

	done := make(chan error, 1)
	go func() { done <- s.Start(context.Background()) }()
	select {
	case err := <-done:
		if err == nil {
			t.Error("expected error from failing feed")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return")
	}
}

func TestSupervisor_StartWithoutFeeds(t *testing.T) {
	s, _ := New(config.DashboardConfig{}, nopIngester{}, quietLogger())
	if err := s.Start(context.Background()); err != nil {
		t.Errorf("Start: %v", err)
	}
}
