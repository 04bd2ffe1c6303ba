package producer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/lbianlbian/progv2/pkg/contracts/events"
)

// KafkaPublisher publica as transições da exchange nos tópicos de ordens.
type KafkaPublisher struct {
	Opened    *kafka.Writer
	Matched   *kafka.Writer
	Cancelled *kafka.Writer
}

func NewKafkaPublisher(opened, matched, cancelled *kafka.Writer) *KafkaPublisher {
	return &KafkaPublisher{Opened: opened, Matched: matched, Cancelled: cancelled}
}

func (p *KafkaPublisher) PublishOrderOpened(ctx context.Context, e events.OrderOpened) error {
	e.TsUnixMs = time.Now().UnixMilli()
	b, _ := json.Marshal(e)
	return p.Opened.WriteMessages(ctx, kafka.Message{Key: []byte(e.Slot), Value: b})
}

func (p *KafkaPublisher) PublishOrderMatched(ctx context.Context, e events.OrderMatched) error {
	e.TsUnixMs = time.Now().UnixMilli()
	b, _ := json.Marshal(e)
	return p.Matched.WriteMessages(ctx, kafka.Message{Key: []byte(e.Slot), Value: b})
}

func (p *KafkaPublisher) PublishOrderCancelled(ctx context.Context, e events.OrderCancelled) error {
	e.TsUnixMs = time.Now().UnixMilli()
	b, _ := json.Marshal(e)
	return p.Cancelled.WriteMessages(ctx, kafka.Message{Key: []byte(e.Slot), Value: b})
}
