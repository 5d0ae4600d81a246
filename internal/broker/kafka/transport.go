// Package kafka carries control channel events over Kafka topics: newTask
// events arrive on a task topic and taskResult events leave on a result topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/JakeFAU/firmlight-worker/internal/broker"
	"github.com/JakeFAU/firmlight-worker/internal/task"
)

// EventHeader names the message header that carries the event name.
const EventHeader = "event"

const fetchRetryDelay = 500 * time.Millisecond

// Config selects brokers and topics.
type Config struct {
	Brokers     []string
	TaskTopic   string
	ResultTopic string
	GroupID     string
	DialTimeout time.Duration
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Transport implements broker.Channel.
type Transport struct {
	reader  messageReader
	writer  messageWriter
	writeMu sync.Mutex
	logger  *zap.Logger
}

// Dial checks that a seed broker answers, then builds the reader and writer.
// Failures wrap broker.ErrConnect.
func Dial(ctx context.Context, cfg Config, logger *zap.Logger) (*Transport, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("%w: no kafka brokers configured", broker.ErrConnect)
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	dialCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	conn, err := kafka.DialContext(dialCtx, "tcp", cfg.Brokers[0])
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %w", broker.ErrConnect, cfg.Brokers[0], err)
	}
	_ = conn.Close()

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: cfg.Brokers,
		Topic:   cfg.TaskTopic,
		GroupID: cfg.GroupID,
	})
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.ResultTopic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: false,
	}
	if logger != nil {
		logger.Info("connected to kafka",
			zap.Strings("brokers", cfg.Brokers),
			zap.String("task_topic", cfg.TaskTopic),
			zap.String("result_topic", cfg.ResultTopic),
		)
	}
	return NewWithClients(reader, writer, logger), nil
}

// NewWithClients builds a transport around custom clients (tests).
func NewWithClients(reader messageReader, writer messageWriter, logger *zap.Logger) *Transport {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transport{reader: reader, writer: writer, logger: logger}
}

// Serve fetches messages, hands each to handle and commits it. Messages are
// committed once handed off, so a crash loses queued tasks, the same as the
// websocket transport.
func (t *Transport) Serve(ctx context.Context, handle broker.EventHandler) error {
	for {
		msg, err := t.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("%w: reader closed", broker.ErrChannelClosed)
			}
			t.logger.Warn("kafka fetch failed", zap.Error(err))
			if !sleepWithContext(ctx, fetchRetryDelay) {
				return nil
			}
			continue
		}

		handle(ctx, eventName(msg), json.RawMessage(msg.Value))

		if err := t.reader.CommitMessages(ctx, msg); err != nil {
			t.logger.Warn("kafka commit failed", zap.Int64("offset", msg.Offset), zap.Error(err))
		}
	}
}

// Report publishes a taskResult keyed by task ID.
func (t *Transport) Report(ctx context.Context, result task.Result) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode task result: %w", err)
	}
	msg := kafka.Message{
		Key:     []byte(result.TaskID),
		Value:   payload,
		Headers: []kafka.Header{{Key: EventHeader, Value: []byte(broker.EventTaskResult)}},
		Time:    time.Now().UTC(),
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if err := t.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("%w: write result: %w", broker.ErrChannelClosed, err)
	}
	return nil
}

// Close shuts down the reader and writer.
func (t *Transport) Close() error {
	return errors.Join(t.reader.Close(), t.writer.Close())
}

func eventName(msg kafka.Message) string {
	for _, h := range msg.Headers {
		if h.Key == EventHeader && len(h.Value) > 0 {
			return string(h.Value)
		}
	}
	return broker.EventNewTask
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
