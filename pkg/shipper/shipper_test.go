package shipper

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/invisible-tech/alertmap/pkg/trafficgen"
)

func canListen(t *testing.T) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("cannot bind for test: %v", err)
	}
	ln.Close()
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

type ingestServer struct {
	mu        sync.Mutex
	batches   [][]map[string]any
	requestID string
	status    int
}

func (s *ingestServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/json" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	s.requestID = r.Header.Get("X-Request-Id")
	if s.status != 0 {
		w.WriteHeader(s.status)
		json.NewEncoder(w).Encode(map[string]string{"error": "invalid or empty JSON"})
		return
	}
	var batch []map[string]any
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	s.batches = append(s.batches, batch)
	json.NewEncoder(w).Encode(map[string]int{"ingested": len(batch)})
}

func (s *ingestServer) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batches)
}

func TestNew(t *testing.T) {
	if _, err := New(Config{}, quietLogger()); err == nil {
		t.Error("expected error without ingest URL")
	}
	s, err := New(Config{IngestURL: "http://127.0.0.1:8080/api/v1/ingest"}, quietLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if s.cfg.BatchSize != 1 || s.cfg.Timeout != 3*time.Second {
		t.Errorf("defaults = %+v", s.cfg)
	}
}

func TestShipper_Send(t *testing.T) {
	canListen(t)
	is := &ingestServer{}
	srv := httptest.NewServer(is)
	defer srv.Close()

	s, _ := New(Config{IngestURL: srv.URL, BatchSize: 4}, quietLogger())
	n, err := s.Send(context.Background(), trafficgen.NewGenerator(1).Batch(4))
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if n != 4 || is.count() != 1 || len(is.batches[0]) != 4 {
		t.Errorf("n=%d batches=%v", n, is.batches)
	}
	if is.requestID == "" {
		t.Error("request id header not set")
	}
	if sent, failed := s.Stats(); sent != 4 || failed != 0 {
		t.Errorf("stats = %d/%d", sent, failed)
	}
}

func TestShipper_SendErrors(t *testing.T) {
	canListen(t)
	is := &ingestServer{status: http.StatusBadRequest}
	srv := httptest.NewServer(is)

	s, _ := New(Config{IngestURL: srv.URL}, quietLogger())
	if _, err := s.Send(context.Background(), trafficgen.NewGenerator(1).Batch(1)); err == nil {
		t.Error("expected error for 400 response")
	}
	srv.Close()
	if _, err := s.Send(context.Background(), trafficgen.NewGenerator(1).Batch(2)); err == nil {
		t.Error("expected error for closed server")
	}
	if _, failed := s.Stats(); failed != 3 {
		t.Errorf("failed = %d, want 3", failed)
	}
}

func TestShipper_StreamStopsAfterDuration(t *testing.T) {
	canListen(t)
	is := &ingestServer{}
	srv := httptest.NewServer(is)
	defer srv.Close()

	s, _ := New(Config{IngestURL: srv.URL}, quietLogger())
	gen := trafficgen.NewGenerator(3)
	done := make(chan error, 1)
	go func() {
		done <- s.Stream(context.Background(), gen, trafficgen.ScenarioMalware, 100, 100*time.Millisecond)
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Stream: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Stream did not stop")
	}
	if is.count() < 2 {
		t.Errorf("batches = %d", is.count())
	}
	if gen.Scenario() != trafficgen.ScenarioMalware {
		t.Errorf("scenario = %q", gen.Scenario())
	}
	for _, b := range is.batches {
		alert := b[0]["alert"].(map[string]any)
		if id := alert["signature_id"].(float64); id < 1007001 || id > 1007006 {
			t.Errorf("non-malware signature %v", id)
		}
	}
}

func TestShipper_StreamStopsOnCancel(t *testing.T) {
	canListen(t)
	srv := httptest.NewServer(&ingestServer{})
	defer srv.Close()

	s, _ := New(Config{IngestURL: srv.URL}, quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Stream(ctx, trafficgen.NewGenerator(1), trafficgen.ScenarioNormal, 0, 0) }()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Stream: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Stream did not stop")
	}
}

func TestShipper_Demo(t *testing.T) {
	canListen(t)
	is := &ingestServer{}
	srv := httptest.NewServer(is)
	defer srv.Close()

	s, _ := New(Config{IngestURL: srv.URL}, quietLogger())
	gen := trafficgen.NewGenerator(5)
	plan := trafficgen.DemoPlan(30 * time.Millisecond)
	if err := s.Demo(context.Background(), gen, plan, time.Millisecond); err != nil {
		t.Fatalf("Demo: %v", err)
	}
	if gen.Scenario() != trafficgen.ScenarioNormal {
		t.Errorf("scenario after demo = %q", gen.Scenario())
	}
	if is.count() < len(plan) {
		t.Errorf("batches = %d", is.count())
	}
}
