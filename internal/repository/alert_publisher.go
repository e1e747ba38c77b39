package repository

import (
	"context"
	"time"

	"TagSentry/internal/domain/models"
	pkgkafka "TagSentry/pkg/kafka"
)

// KafkaAlertPublisher implements AlertPublisher over a Kafka topic. The
// payload is a flat JSON document consumed by the notification workers.
type KafkaAlertPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaAlertPublisher(producer *pkgkafka.Producer, topic string) *KafkaAlertPublisher {
	return &KafkaAlertPublisher{producer: producer, topic: topic}
}

func (p *KafkaAlertPublisher) Publish(ctx context.Context, res *models.DetectionResult) error {
	return p.producer.Publish(ctx, p.topic, []byte(res.Device.ID), map[string]interface{}{
		"device_id":    res.Device.ID,
		"address":      res.Device.Address,
		"label":        res.Device.Label(),
		"score":        res.Score,
		"level":        string(res.Level),
		"reason":       res.Reason,
		"locations":    len(res.Locations),
		"max_distance": res.MaxDistance,
		"detected_at":  res.DetectedAt.Format(time.RFC3339),
	})
}

func (p *KafkaAlertPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
