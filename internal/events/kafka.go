package events

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/Yolo-Padel/yolo-padel-sub002/internal/common/config"
)

// messageWriter kafka.Writer 的写入能力
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher 向单个主题批量写入事件，按实体分区
type KafkaPublisher struct {
	writer messageWriter
}

// NewKafkaPublisher 创建 Kafka 发布器
func NewKafkaPublisher(cfg *config.KafkaConfig) *KafkaPublisher {
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: cfg.BatchTimeout,
		RequiredAcks: kafka.RequireOne,
	}}
}

// Publish 一次写入全部事件
func (p *KafkaPublisher) Publish(ctx context.Context, events ...Event) error {
	msgs := make([]kafka.Message, 0, len(events))
	for _, e := range events {
		data, err := e.Encode()
		if err != nil {
			return fmt.Errorf("failed to marshal event: %w", err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(e.PartitionKey()),
			Value: data,
			Time:  e.OccurredAt,
			Headers: []kafka.Header{
				{Key: "routing_key", Value: []byte(e.RoutingKey())},
			},
		})
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}
	return nil
}

// Driver 驱动名
func (p *KafkaPublisher) Driver() string { return DriverKafka }

// Close 关闭 writer
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
