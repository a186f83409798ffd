package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/btorressz/idxflow-orderflow/internal/app/dto"
	"github.com/btorressz/idxflow-orderflow/internal/domain/model"
	"github.com/btorressz/idxflow-orderflow/internal/lib/logger/sl"
)

// KafkaConfig holds Kafka connection configuration
type KafkaConfig struct {
	Brokers       []string
	Topic         string
	ConsumerGroup string
	BatchSize     int
	BatchTimeout  int // milliseconds
}

// SwapProducer defines interface for producing swap events
type SwapProducer interface {
	PublishSwapBatch(ctx context.Context, swaps []*dto.SwapDTO) error
	Close() error
}

// SwapConsumer defines interface for consuming swap events
type SwapConsumer interface {
	Subscribe(ctx context.Context) (<-chan *model.Swap, error)
	Commit(ctx context.Context, swap *model.Swap) error
	Close() error
}

// KafkaProducer implements SwapProducer using Kafka
type KafkaProducer struct {
	writer *kafka.Writer
}

// NewKafkaProducer creates a new Kafka producer
func NewKafkaProducer(config KafkaConfig) *KafkaProducer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(config.Brokers...),
		Topic:        config.Topic,
		Balancer:     &kafka.Hash{}, // swaps of one trader land on one partition
		RequiredAcks: kafka.RequireAll,
	}

	return &KafkaProducer{writer: writer}
}

func swapMessage(swap *dto.SwapDTO) (kafka.Message, error) {
	data, err := json.Marshal(swap)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(swap.Who),
		Value: data,
		Time:  time.Now(),
	}, nil
}

// PublishSwapBatch sends batch swap events to Kafka in one write
func (p *KafkaProducer) PublishSwapBatch(ctx context.Context, swaps []*dto.SwapDTO) error {
	msgs, err := swapMessages(swaps)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, msgs...)
}

func swapMessages(swaps []*dto.SwapDTO) ([]kafka.Message, error) {
	msgs := make([]kafka.Message, len(swaps))
	for i, swap := range swaps {
		msg, err := swapMessage(swap)
		if err != nil {
			return nil, fmt.Errorf("encode swap %s: %w", swap.ID, err)
		}
		msgs[i] = msg
	}
	return msgs, nil
}

// Close closes the producer
func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}

// KafkaConsumer implements SwapConsumer using Kafka
type KafkaConsumer struct {
	log           *slog.Logger
	reader        *kafka.Reader
	topic         string
	pendingMsgs   map[string]kafka.Message // swap ID -> message awaiting commit
	pendingMsgsMu sync.RWMutex
	batchSize     int
	batchTimeout  time.Duration
}

// NewKafkaConsumer creates a new Kafka consumer
func NewKafkaConsumer(log *slog.Logger, config KafkaConfig) *KafkaConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        config.Brokers,
		Topic:          config.Topic,
		GroupID:        config.ConsumerGroup,
		MinBytes:       10e3,              // 10KB
		MaxBytes:       10e6,              // 10MB
		CommitInterval: 0,                 // commits are explicit
		StartOffset:    kafka.FirstOffset, // oldest message if no offset is stored
	})

	batchTimeout := time.Duration(config.BatchTimeout) * time.Millisecond
	if batchTimeout <= 0 {
		batchTimeout = time.Second
	}

	return &KafkaConsumer{
		log:          log.With(slog.String("component", "kafka_consumer"), slog.String("topic", config.Topic)),
		reader:       reader,
		topic:        config.Topic,
		pendingMsgs:  make(map[string]kafka.Message),
		batchSize:    config.BatchSize,
		batchTimeout: batchTimeout,
	}
}

// Subscribe returns a channel of swap events from Kafka
func (c *KafkaConsumer) Subscribe(ctx context.Context) (<-chan *model.Swap, error) {
	swapCh := make(chan *model.Swap, 1000)

	go c.startBatchCommitter(ctx)

	go func() {
		defer close(swapCh)

		for {
			msg, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() == nil {
					c.log.Error("failed to fetch message", sl.Err(err))
				}
				return
			}

			var swap model.Swap
			if err := json.Unmarshal(msg.Value, &swap); err != nil {
				c.log.Warn("dropping malformed swap", slog.Int64("offset", msg.Offset), sl.Err(err))
				// commit bad messages so the partition does not stall
				_ = c.reader.CommitMessages(ctx, msg)
				continue
			}

			if swap.ID == "" {
				swap.ID = fmt.Sprintf("%s-%d-%d", swap.Who, msg.Partition, msg.Offset)
			}

			c.pendingMsgsMu.Lock()
			c.pendingMsgs[swap.ID] = msg
			pendingCount := len(c.pendingMsgs)
			c.pendingMsgsMu.Unlock()

			if c.batchSize > 0 && pendingCount > c.batchSize*10 {
				c.log.Warn("large number of uncommitted messages",
					slog.Int("pending", pendingCount), slog.Int("batch_size", c.batchSize))
			}

			select {
			case <-ctx.Done():
				return
			case swapCh <- &swap:
			}
		}
	}()

	return swapCh, nil
}

// startBatchCommitter periodically commits pending messages in batches
func (c *KafkaConsumer) startBatchCommitter(ctx context.Context) {
	ticker := time.NewTicker(c.batchTimeout)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.commitAllPending(context.WithoutCancel(ctx))
			return
		case <-ticker.C:
			c.commitAllPending(ctx)
		}
	}
}

func (c *KafkaConsumer) commitAllPending(ctx context.Context) {
	c.pendingMsgsMu.Lock()
	defer c.pendingMsgsMu.Unlock()

	if len(c.pendingMsgs) == 0 {
		return
	}

	msgs := make([]kafka.Message, 0, len(c.pendingMsgs))
	for _, msg := range c.pendingMsgs {
		msgs = append(msgs, msg)
	}

	if err := c.reader.CommitMessages(ctx, msgs...); err != nil {
		c.log.Error("failed to commit batch", slog.Int("messages", len(msgs)), sl.Err(err))
		return
	}

	c.log.Debug("committed batch", slog.Int("messages", len(msgs)))
	c.pendingMsgs = make(map[string]kafka.Message)
}

// Commit acknowledges that a swap has been processed
func (c *KafkaConsumer) Commit(ctx context.Context, swap *model.Swap) error {
	if swap == nil || swap.ID == "" {
		return fmt.Errorf("cannot commit nil swap or swap with empty ID")
	}

	c.pendingMsgsMu.Lock()
	msg, exists := c.pendingMsgs[swap.ID]
	if !exists {
		c.pendingMsgsMu.Unlock()
		return fmt.Errorf("message for swap %s not found in pending messages", swap.ID)
	}

	if len(c.pendingMsgs) < c.batchSize {
		delete(c.pendingMsgs, swap.ID)
		c.pendingMsgsMu.Unlock()

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			return fmt.Errorf("failed to commit message for swap %s: %w", swap.ID, err)
		}
		return nil
	}

	c.pendingMsgsMu.Unlock()
	c.commitAllPending(ctx)
	return nil
}

// Close closes the consumer
func (c *KafkaConsumer) Close() error {
	c.commitAllPending(context.Background())
	return c.reader.Close()
}
