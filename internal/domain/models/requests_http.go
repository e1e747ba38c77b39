package models

// Requests for detection HTTP endpoints. Defined in domain for consistency and reuse.

type RunDetectionRequest struct {
	MinScore float64 `query:"min_score" json:"min_score" default:"0.5" validate:"gte=0,lte=1"`
}

type DeviceCheckRequest struct {
	DeviceID string `param:"id" json:"device_id" validate:"required"`
}

type WhitelistAddRequest struct {
	DeviceID string `json:"device_id" validate:"required"`
	Note     string `json:"note" validate:"max=256"`
}

type WhitelistRemoveRequest struct {
	DeviceID string `param:"id" json:"device_id" validate:"required"`
}

type UpdateSettingsRequest struct {
	AlertThresholdCount        int     `json:"alert_threshold_count" default:"3" validate:"gte=1"`
	MinDetectionDistanceMeters float64 `json:"min_detection_distance_meters" default:"400" validate:"gte=0"`
}
