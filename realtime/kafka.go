package realtime

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaPublisher writes each event to a Kafka topic named after the event topic.
type KafkaPublisher struct {
	writer *kafka.Writer
	prefix string
}

func NewKafkaPublisher(brokers []string, topicPrefix string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			RequiredAcks:           kafka.RequireOne,
			Async:                  false,
			AllowAutoTopicCreation: true,
			BatchTimeout:           10 * time.Millisecond,
		},
		prefix: topicPrefix,
	}
}

func (p *KafkaPublisher) Name() string { return "kafka" }

func (p *KafkaPublisher) Publish(ctx context.Context, evt Event) error {
	msg, err := kafkaMessage(p.prefix, evt)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, msg)
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func kafkaMessage(prefix string, evt Event) (kafka.Message, error) {
	payload, err := encode(evt)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Topic: prefix + evt.Topic,
		Key:   []byte(evt.Name),
		Value: payload,
		Time:  time.Now(),
	}, nil
}
