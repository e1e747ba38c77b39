package usecase

import (
	"context"

	"TagSentry/internal/domain/models"
	drepo "TagSentry/internal/domain/repository"
	applogger "TagSentry/pkg/logger"
	"TagSentry/pkg/queue"
)

// AlertMessageType is the queue message type for detection alerts.
const AlertMessageType = "detection_alert"

var levelRank = map[models.ThreatLevel]int{
	models.ThreatLow:      0,
	models.ThreatMedium:   1,
	models.ThreatHigh:     2,
	models.ThreatCritical: 3,
}

// AlertPayload is what the notification worker receives for one alert.
type AlertPayload struct {
	DeviceID string  `json:"device_id"`
	Label    string  `json:"label"`
	Score    float64 `json:"score"`
	Level    string  `json:"level"`
	Reason   string  `json:"reason"`
}

// AlertDispatcher forwards detection results at or above the configured
// level to the alert topic and the notification queue. Both targets are
// optional; dispatch failures are logged and counted, never propagated.
type AlertDispatcher struct {
	pub      drepo.AlertPublisher
	notify   queue.QueueService
	minLevel models.ThreatLevel
	metrics  drepo.Metrics
	log      *applogger.Logger
}

func NewAlertDispatcher(
	pub drepo.AlertPublisher,
	notify queue.QueueService,
	minLevel string,
	metrics drepo.Metrics,
	log *applogger.Logger,
) *AlertDispatcher {
	lvl := models.ThreatLevel(minLevel)
	if _, ok := levelRank[lvl]; !ok {
		lvl = models.ThreatHigh
	}
	return &AlertDispatcher{
		pub:      pub,
		notify:   notify,
		minLevel: lvl,
		metrics:  metrics,
		log:      log,
	}
}

// Dispatch sends every result at or above the minimum level.
func (a *AlertDispatcher) Dispatch(ctx context.Context, results []models.DetectionResult) {
	threshold := levelRank[a.minLevel]
	for i := range results {
		r := &results[i]
		if levelRank[r.Level] < threshold {
			continue
		}
		a.dispatchOne(ctx, r)
	}
}

func (a *AlertDispatcher) dispatchOne(ctx context.Context, r *models.DetectionResult) {
	if a.pub != nil {
		if err := a.pub.Publish(ctx, r); err != nil {
			a.metrics.RecordError("alert_publish")
			if a.log != nil {
				a.log.Error("alert publish failed",
					applogger.String("device", r.Device.ID),
					applogger.Error(err),
				)
			}
		}
	}
	if a.notify != nil {
		payload := AlertPayload{
			DeviceID: r.Device.ID,
			Label:    r.Device.Label(),
			Score:    r.Score,
			Level:    string(r.Level),
			Reason:   r.Reason,
		}
		if err := a.notify.PublishMessage(ctx, AlertMessageType, payload); err != nil {
			a.metrics.RecordError("alert_enqueue")
			if a.log != nil {
				a.log.Error("alert enqueue failed",
					applogger.String("device", r.Device.ID),
					applogger.Error(err),
				)
			}
		}
	}
}

// AlertJob is the notification queue worker. Actual delivery channels
// (push, email) live outside the core; the worker records the alert in
// the service log.
type AlertJob struct {
	log *applogger.Logger
}

func NewAlertJob(log *applogger.Logger) *AlertJob { return &AlertJob{log: log} }

func (j *AlertJob) Name() string { return "alert_notifier" }
func (j *AlertJob) Type() string { return AlertMessageType }

func (j *AlertJob) Handle(ctx context.Context, payload interface{}) error {
	p, err := queue.ParsePayload[AlertPayload](payload)
	if err != nil {
		return err
	}
	if j.log != nil {
		j.log.Warn("tracking alert",
			applogger.String("device", p.DeviceID),
			applogger.String("label", p.Label),
			applogger.String("level", p.Level),
			applogger.Float64("score", p.Score),
		)
	}
	return nil
}

var _ queue.Job = (*AlertJob)(nil)
