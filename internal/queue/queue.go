// internal/queue/queue.go
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"imageseo/internal/models"
)

// Producer publishes pipeline tasks to the Kafka topic.
type Producer struct {
	writer *kafka.Writer
}

func NewProducer(broker, topic string) *Producer {
	return &Producer{
		writer: kafka.NewWriter(kafka.WriterConfig{
			Brokers: []string{broker},
			Topic:   topic,
		}),
	}
}

func (p *Producer) PublishProcessImage(ctx context.Context, id uuid.UUID) error {
	const op = "queue.PublishProcessImage"
	task := models.Task{Type: models.TaskProcessImage, ImageID: id}
	if err := p.publish(ctx, id.String(), task); err != nil {
		return fmt.Errorf("%s: %v", op, err)
	}
	return nil
}

func (p *Producer) PublishBulkDescribe(ctx context.Context, ids []uuid.UUID) error {
	const op = "queue.PublishBulkDescribe"
	task := models.Task{Type: models.TaskBulkDescribe, ImageIDs: ids}
	if err := p.publish(ctx, "", task); err != nil {
		return fmt.Errorf("%s: %v", op, err)
	}
	return nil
}

func (p *Producer) publish(ctx context.Context, key string, task models.Task) error {
	value, err := json.Marshal(task)
	if err != nil {
		return err
	}
	msg := kafka.Message{Value: value}
	if key != "" {
		msg.Key = []byte(key)
	}
	return p.writer.WriteMessages(ctx, msg)
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// SingleRunner and BulkRunner are the two pipelines the consumer dispatches to.
type SingleRunner interface {
	Run(ctx context.Context, id uuid.UUID) error
}

type BulkRunner interface {
	Run(ctx context.Context, ids []uuid.UUID) error
}

// Consumer reads tasks from Kafka and runs the matching pipeline. Delivery is
// at-least-once; task failures are logged and never crash the worker, since
// every task is idempotent and a redelivery or a fresh task has the same
// effect.
type Consumer struct {
	reader *kafka.Reader
	single SingleRunner
	bulk   BulkRunner
	log    *zap.Logger
}

func NewConsumer(broker, topic, groupID string, single SingleRunner, bulk BulkRunner, log *zap.Logger) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers: []string{broker},
			Topic:   topic,
			GroupID: groupID,
		}),
		single: single,
		bulk:   bulk,
		log:    log,
	}
}

// Run blocks until ctx is canceled.
func (c *Consumer) Run(ctx context.Context) {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				return
			}
			c.log.Error("error reading message", zap.Error(err))
			continue
		}
		c.Dispatch(ctx, msg.Value)
	}
}

// Dispatch decodes one task payload and runs it to completion.
func (c *Consumer) Dispatch(ctx context.Context, value []byte) {
	var task models.Task
	if err := json.Unmarshal(value, &task); err != nil {
		c.log.Error("invalid task payload", zap.Error(err))
		return
	}

	switch task.Type {
	case models.TaskProcessImage:
		if err := c.single.Run(ctx, task.ImageID); err != nil {
			c.log.Error("error processing image",
				zap.String("image_id", task.ImageID.String()),
				zap.Error(err))
		}
	case models.TaskBulkDescribe:
		if err := c.bulk.Run(ctx, task.ImageIDs); err != nil {
			c.log.Error("error describing bulk batch",
				zap.Int("batch_size", len(task.ImageIDs)),
				zap.Error(err))
		}
	default:
		c.log.Error("unknown task type", zap.String("type", task.Type))
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
