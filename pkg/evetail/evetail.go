// Package evetail follows a Suricata eve.json log and forwards alert records
// to an ingester as they are appended.
package evetail

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

var linesRead = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "alertmap_evetail_lines_total",
		Help: "Lines read from the eve.json log",
	},
	[]string{"result"},
)

func init() {
	prometheus.MustRegister(linesRead)
}

// Ingester accepts a JSON payload of one record or a list of records.
type Ingester interface {
	Ingest(ctx context.Context, payload []byte) (int, error)
}

// Config for the eve.json follower.
type Config struct {
	Path string
	// EventTypes lists the event_type values forwarded. Records without an
	// event_type are forwarded too. Defaults to alert only.
	EventTypes []string
	// FromStart reads the existing file content before following it.
	FromStart bool
	// PollInterval rescans the file in case a notification was missed.
	PollInterval time.Duration
	Ingester     Ingester
}

// Tailer follows one eve.json file.
type Tailer struct {
	cfg     Config
	log     *logrus.Logger
	watcher *fsnotify.Watcher
	types   map[string]bool

	mu      sync.Mutex
	file    *os.File
	offset  int64
	partial []byte
}

// New creates a Tailer and watches the log's directory so that rotation and
// re-creation are seen.
func New(cfg Config, log *logrus.Logger) (*Tailer, error) {
	if cfg.Path == "" {
		return nil, errors.New("evetail: path required")
	}
	if cfg.Ingester == nil {
		return nil, errors.New("evetail: ingester required")
	}
	if len(cfg.EventTypes) == 0 {
		cfg.EventTypes = []string{"alert"}
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	cfg.Path = filepath.Clean(cfg.Path)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(cfg.Path)); err != nil {
		watcher.Close()
		return nil, err
	}

	t := &Tailer{cfg: cfg, log: log, watcher: watcher, types: make(map[string]bool)}
	for _, et := range cfg.EventTypes {
		t.types[et] = true
	}
	return t, nil
}

// Start follows the log until ctx is cancelled.
func (t *Tailer) Start(ctx context.Context) error {
	t.log.WithField("path", t.cfg.Path).Info("Following eve.json")
	defer t.close()

	t.open(!t.cfg.FromStart)
	t.poll(ctx)

	ticker := time.NewTicker(t.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			t.log.Info("eve.json follower stopping")
			return nil

		case event, ok := <-t.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != t.cfg.Path {
				continue
			}
			switch {
			case event.Op&fsnotify.Create == fsnotify.Create:
				t.log.WithField("path", t.cfg.Path).Info("eve.json created, reading from start")
				t.closeFile()
				t.open(false)
				t.poll(ctx)
			case event.Op&fsnotify.Write == fsnotify.Write:
				t.poll(ctx)
			case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				t.log.WithField("path", t.cfg.Path).Info("eve.json rotated away")
				t.poll(ctx)
				t.closeFile()
			}

		case err, ok := <-t.watcher.Errors:
			if !ok {
				return nil
			}
			t.log.WithError(err).Error("Watcher error")

		case <-ticker.C:
			t.mu.Lock()
			missing := t.file == nil
			t.mu.Unlock()
			if missing {
				t.open(false)
			}
			t.poll(ctx)
		}
	}
}

func (t *Tailer) open(atEnd bool) {
	f, err := os.Open(t.cfg.Path)
	if err != nil {
		t.log.WithError(err).WithField("path", t.cfg.Path).Debug("Cannot open eve.json")
		return
	}
	var offset int64
	if atEnd {
		if offset, err = f.Seek(0, io.SeekEnd); err != nil {
			f.Close()
			return
		}
	}
	t.mu.Lock()
	t.file, t.offset, t.partial = f, offset, nil
	t.mu.Unlock()
}

func (t *Tailer) closeFile() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.file != nil {
		t.file.Close()
		t.file = nil
	}
	t.partial = nil
}

func (t *Tailer) close() {
	t.closeFile()
	t.watcher.Close()
}

// poll reads whatever was appended since the last read and forwards the
// complete lines. A file that shrank was truncated and is re-read from the start.
func (t *Tailer) poll(ctx context.Context) {
	t.mu.Lock()
	if t.file == nil {
		t.mu.Unlock()
		return
	}
	info, err := t.file.Stat()
	if err != nil {
		t.mu.Unlock()
		return
	}
	if info.Size() < t.offset {
		t.log.WithField("path", t.cfg.Path).Info("eve.json truncated, reading from start")
		t.offset, t.partial = 0, nil
	}
	if info.Size() == t.offset {
		t.mu.Unlock()
		return
	}
	buf := make([]byte, info.Size()-t.offset)
	n, err := t.file.ReadAt(buf, t.offset)
	if err != nil && !errors.Is(err, io.EOF) {
		t.mu.Unlock()
		t.log.WithError(err).Error("Failed to read eve.json")
		return
	}
	t.offset += int64(n)
	data := append(t.partial, buf[:n]...)
	lines, rest := splitLines(data)
	t.partial = rest
	t.mu.Unlock()

	t.forward(ctx, lines)
}

// splitLines returns the complete lines of data and the unterminated remainder.
func splitLines(data []byte) ([][]byte, []byte) {
	var lines [][]byte
	for {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			break
		}
		if line := bytes.TrimSpace(data[:i]); len(line) > 0 {
			lines = append(lines, line)
		}
		data = data[i+1:]
	}
	if len(data) == 0 {
		return lines, nil
	}
	return lines, append([]byte(nil), data...)
}

type envelope struct {
	EventType string `json:"event_type"`
}

// forward sends the wanted records as one batch.
func (t *Tailer) forward(ctx context.Context, lines [][]byte) {
	var batch [][]byte
	for _, line := range lines {
		var env envelope
		if err := json.Unmarshal(line, &env); err != nil {
			linesRead.WithLabelValues("invalid").Inc()
			t.log.WithError(err).Debug("Skip unparseable eve.json line")
			continue
		}
		if env.EventType != "" && !t.types[env.EventType] {
			linesRead.WithLabelValues("ignored").Inc()
			continue
		}
		linesRead.WithLabelValues("forwarded").Inc()
		batch = append(batch, line)
	}
	if len(batch) == 0 {
		return
	}

	payload := make([]byte, 0, 2+len(batch)*256)
	payload = append(payload, '[')
	payload = append(payload, bytes.Join(batch, []byte{','})...)
	payload = append(payload, ']')
	n, err := t.cfg.Ingester.Ingest(ctx, payload)
	if err != nil {
		t.log.WithError(err).Warn("Failed to ingest eve.json records")
		return
	}
	t.log.WithFields(logrus.Fields{"records": len(batch), "ingested": n}).Debug("Forwarded eve.json records")
}
