// Package kafkafeed consumes Suricata alert records from a Kafka topic.
package kafkafeed

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

var messagesConsumed = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "alertmap_kafka_messages_total",
		Help: "Kafka messages consumed, by result",
	},
	[]string{"result"},
)

func init() {
	prometheus.MustRegister(messagesConsumed)
}

// Ingester accepts a JSON payload of one record or a list of records.
type Ingester interface {
	Ingest(ctx context.Context, payload []byte) (int, error)
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Config for the consumer.
type Config struct {
	Brokers  []string
	Topic    string
	GroupID  string
	Ingester Ingester
	// Backoff is the pause after a failed read.
	Backoff time.Duration
}

// Consumer reads alert messages and hands their payloads to the ingester.
type Consumer struct {
	cfg    Config
	log    *logrus.Logger
	reader messageReader
}

// New creates a consumer group reader for the configured topic.
func New(cfg Config, log *logrus.Logger) (*Consumer, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return nil, errors.New("kafkafeed: brokers and topic required")
	}
	if cfg.Ingester == nil {
		return nil, errors.New("kafkafeed: ingester required")
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.Topic,
		GroupID:        cfg.GroupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: time.Second,
		StartOffset:    kafka.LastOffset,
		MaxWait:        time.Second,
		ReadBackoffMin: 100 * time.Millisecond,
		ReadBackoffMax: time.Second,
	})
	log.WithFields(logrus.Fields{
		"brokers":  cfg.Brokers,
		"topic":    cfg.Topic,
		"group_id": cfg.GroupID,
	}).Info("Kafka consumer initialized")
	return newConsumer(cfg, reader, log), nil
}

func newConsumer(cfg Config, reader messageReader, log *logrus.Logger) *Consumer {
	if cfg.Backoff <= 0 {
		cfg.Backoff = 2 * time.Second
	}
	return &Consumer{cfg: cfg, log: log, reader: reader}
}

// Start consumes until ctx is cancelled, then closes the reader.
func (c *Consumer) Start(ctx context.Context) error {
	defer c.Close()
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.log.Info("Kafka consumer stopping")
				return nil
			}
			messagesConsumed.WithLabelValues("read_error").Inc()
			c.log.WithError(err).Warn("Failed to read kafka message")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.cfg.Backoff):
			}
			continue
		}
		c.handle(ctx, msg)
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) {
	n, err := c.cfg.Ingester.Ingest(ctx, msg.Value)
	if err != nil {
		messagesConsumed.WithLabelValues("rejected").Inc()
		c.log.WithError(err).WithFields(logrus.Fields{
			"partition": msg.Partition,
			"offset":    msg.Offset,
		}).Warn("Rejected kafka message")
		return
	}
	messagesConsumed.WithLabelValues("ingested").Inc()
	c.log.WithFields(logrus.Fields{
		"partition": msg.Partition,
		"offset":    msg.Offset,
		"ingested":  n,
	}).Debug("Consumed kafka message")
}

// Close closes the underlying reader.
func (c *Consumer) Close() error {
	if c.reader == nil {
		return nil
	}
	if err := c.reader.Close(); err != nil {
		c.log.WithError(err).Error("Failed to close kafka consumer")
		return err
	}
	return nil
}
