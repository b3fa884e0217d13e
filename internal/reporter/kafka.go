package reporter

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaSink writes JSON events to a topic, keyed by run ID so the events of
// one run stay in order on a single partition.
type KafkaSink struct {
	w *kafka.Writer
}

// NewKafkaSink builds a writer for a comma-separated broker list.
func NewKafkaSink(brokers, topic string) (*KafkaSink, error) {
	if strings.TrimSpace(brokers) == "" {
		return nil, errors.New("kafka brokers not configured")
	}
	if topic == "" {
		topic = "autobuild.events"
	}
	return &KafkaSink{w: &kafka.Writer{
		Addr:         kafka.TCP(strings.Split(brokers, ",")...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}}, nil
}

func (k *KafkaSink) Publish(ctx context.Context, ev Event) error {
	data, err := json.Marshal(Stamp(ev))
	if err != nil {
		return err
	}
	return k.w.WriteMessages(ctx, kafka.Message{Key: []byte(ev.RunID), Value: data})
}

func (k *KafkaSink) Close() error { return k.w.Close() }
