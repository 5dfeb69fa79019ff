package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/prism-platform/notification-service/internal/config"
)

// DeliveryJob is one unit of channel delivery work: send one notification to
// one user over one channel
type DeliveryJob struct {
	NotificationID string    `json:"notification_id"`
	UserID         string    `json:"user_id"`
	Channel        string    `json:"channel"`
	EnqueuedAt     time.Time `json:"enqueued_at"`
}

// BatchJob asks the worker to expand and process one notification batch
type BatchJob struct {
	BatchID    string    `json:"batch_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Producer handles publishing jobs to Kafka
type Producer struct {
	deliveries *kafka.Writer
	batches    *kafka.Writer
}

// Consumer handles consuming jobs from Kafka
type Consumer struct {
	reader *kafka.Reader
}

// NewProducer creates a new Kafka producer for both job topics
func NewProducer(cfg config.KafkaConfig) *Producer {
	newWriter := func(topic string) *kafka.Writer {
		return &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 10 * time.Millisecond,
			BatchSize:    100,
			Async:        false, // Synchronous for reliability
		}
	}
	return &Producer{
		deliveries: newWriter(cfg.DeliveryTopic),
		batches:    newWriter(cfg.BatchTopic),
	}
}

// NewDeliveryConsumer creates a consumer for the delivery-job topic
func NewDeliveryConsumer(cfg config.KafkaConfig, groupID string) *Consumer {
	return newConsumer(cfg.Brokers, cfg.DeliveryTopic, groupID)
}

// NewBatchConsumer creates a consumer for the batch-job topic
func NewBatchConsumer(cfg config.KafkaConfig, groupID string) *Consumer {
	return newConsumer(cfg.Brokers, cfg.BatchTopic, groupID)
}

func newConsumer(brokers []string, topic, groupID string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       topic,
		GroupID:     groupID,
		MinBytes:    10e3, // 10KB
		MaxBytes:    10e6, // 10MB
		MaxWait:     1 * time.Second,
		StartOffset: kafka.LastOffset,
	})
	return &Consumer{reader: reader}
}

// PublishDelivery publishes a delivery job, keyed by notification ID so that
// retries for the same notification land on the same partition
func (p *Producer) PublishDelivery(ctx context.Context, job DeliveryJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal delivery job: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(job.NotificationID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "channel", Value: []byte(job.Channel)},
		},
		Time: time.Now(),
	}
	if err := p.deliveries.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write delivery job: %w", err)
	}
	return nil
}

// PublishBatch publishes a batch-processing job
func (p *Producer) PublishBatch(ctx context.Context, job BatchJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal batch job: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(job.BatchID),
		Value: data,
		Time:  time.Now(),
	}
	if err := p.batches.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write batch job: %w", err)
	}
	return nil
}

// ConsumeDeliveries consumes delivery jobs until the context is cancelled.
// Handler errors are logged and the job is skipped; each job run is
// independent so one stuck delivery never blocks the stream.
func (c *Consumer) ConsumeDeliveries(ctx context.Context, handler func(DeliveryJob) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.Printf("Error reading delivery job from Kafka: %v", err)
				continue
			}

			var job DeliveryJob
			if err := json.Unmarshal(msg.Value, &job); err != nil {
				log.Printf("Error unmarshaling delivery job: %v", err)
				continue
			}

			if err := handler(job); err != nil {
				log.Printf("Error processing delivery job %s/%s: %v", job.NotificationID, job.Channel, err)
				continue
			}
		}
	}
}

// ConsumeBatches consumes batch jobs until the context is cancelled
func (c *Consumer) ConsumeBatches(ctx context.Context, handler func(BatchJob) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.Printf("Error reading batch job from Kafka: %v", err)
				continue
			}

			var job BatchJob
			if err := json.Unmarshal(msg.Value, &job); err != nil {
				log.Printf("Error unmarshaling batch job: %v", err)
				continue
			}

			if err := handler(job); err != nil {
				log.Printf("Error processing batch job %s: %v", job.BatchID, err)
				continue
			}
		}
	}
}

// Close closes the producer
func (p *Producer) Close() error {
	if err := p.deliveries.Close(); err != nil {
		p.batches.Close()
		return err
	}
	return p.batches.Close()
}

// Close closes the consumer
func (c *Consumer) Close() error {
	return c.reader.Close()
}
