package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/KNICEX/algo-trading/internal/service/notification"
	"github.com/segmentio/kafka-go"
)

type Config struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

var _ notification.Notifier = (*Publisher)(nil)

// Publisher 把算法事件以 JSON 写入 kafka，同一实例的消息使用相同的 key 保证分区内有序
type Publisher struct {
	writer messageWriter
}

func NewPublisher(cfg Config) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

func (p *Publisher) Notify(ctx context.Context, msg notification.Message) error {
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal %s message: %w", msg.Type, err)
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.Key()),
		Value: value,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(msg.Type)},
		},
	})
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
