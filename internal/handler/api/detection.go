package api

import (
	"encoding/json"
	"errors"
	"time"

	"TagSentry/internal/domain/models"
	drepo "TagSentry/internal/domain/repository"
	icache "TagSentry/internal/service/cache"
	"TagSentry/internal/service/metrics"
	"TagSentry/internal/service/ratelimit"
	"TagSentry/internal/usecase"
	xhttp "TagSentry/pkg/http"
	applogger "TagSentry/pkg/logger"

	"github.com/labstack/echo/v4"
)

const resultsCacheTTL = 15 * time.Second

// DetectionHandler exposes the detection engine over HTTP: sweeps, cached
// results, single-device checks, whitelist and settings management.
type DetectionHandler struct {
	detector  *usecase.Detector
	whitelist drepo.WhitelistStore
	settings  drepo.SettingsStore
	cache     icache.BytesCache
	rl        *ratelimit.Limiter
	logger    *applogger.Logger
}

func NewDetectionHandler(
	detector *usecase.Detector,
	whitelist drepo.WhitelistStore,
	settings drepo.SettingsStore,
	logger *applogger.Logger,
) *DetectionHandler {
	metrics.Register()
	return &DetectionHandler{
		detector:  detector,
		whitelist: whitelist,
		settings:  settings,
		cache:     icache.NewTTLCache(),
		rl:        ratelimit.New(),
		logger:    logger,
	}
}

// SetCache swaps the response cache, e.g. for a Redis-backed one.
func (h *DetectionHandler) SetCache(c icache.BytesCache) { h.cache = c }

func (h *DetectionHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/detection/run", h.Run)
	g.GET("/detection/results", h.Results)
	g.GET("/devices/:id/check", h.CheckDevice)
	g.GET("/whitelist", h.WhitelistList)
	g.POST("/whitelist", h.WhitelistAdd)
	g.DELETE("/whitelist/:id", h.WhitelistRemove)
	g.GET("/settings", h.SettingsGet)
	g.PUT("/settings", h.SettingsUpdate)
}

func (h *DetectionHandler) observe(endpoint string, start time.Time) {
	metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

// Run triggers a full sweep. Sweeps are expensive, so the endpoint is both
// rate limited and single-flight; a concurrent run returns 409.
func (h *DetectionHandler) Run(c echo.Context) error {
	start := time.Now()
	defer h.observe("run", start)

	if !h.rl.Allow(c.RealIP(), 2, 0.2) {
		metrics.APIErrors.WithLabelValues("run").Inc()
		return xhttp.TooManyRequestsResponse(c)
	}

	req := &models.RunDetectionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	results, err := h.detector.RunDetection(c.Request().Context())
	if err != nil {
		if errors.Is(err, usecase.ErrSweepInProgress) {
			return xhttp.ConflictResponse(c, "detection sweep already running")
		}
		metrics.APIErrors.WithLabelValues("run").Inc()
		h.logger.Error("detection run failed", applogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}

	if req.MinScore > 0 {
		filtered := results[:0]
		for _, r := range results {
			if r.Score >= req.MinScore {
				filtered = append(filtered, r)
			}
		}
		results = filtered
	}
	h.cacheSet("detection:results", results)
	return xhttp.ListResponse(c, results, int64(len(results)))
}

// Results serves the last sweep's output without recomputing. Supports
// ?min_score= and ?limit= for dashboards that only want the top entries.
func (h *DetectionHandler) Results(c echo.Context) error {
	start := time.Now()
	defer h.observe("results", start)

	var results []models.DetectionResult
	if b, ok := h.cacheGet("detection:results"); ok {
		_ = json.Unmarshal(b, &results)
	}
	if results == nil {
		results, _ = h.detector.CachedResults(c.Request().Context())
	}
	if results == nil {
		results = []models.DetectionResult{}
	}

	minScore := xhttp.ParseFloatDefault(c.QueryParam("min_score"), 0)
	if minScore > 0 {
		filtered := make([]models.DetectionResult, 0, len(results))
		for _, r := range results {
			if r.Score >= minScore {
				filtered = append(filtered, r)
			}
		}
		results = filtered
	}
	if limit := xhttp.ParseIntDefault(c.QueryParam("limit"), 0); limit > 0 && limit < len(results) {
		results = results[:limit]
	}
	return xhttp.ListResponse(c, results, int64(len(results)))
}

// CheckDevice scores one device on demand.
func (h *DetectionHandler) CheckDevice(c echo.Context) error {
	start := time.Now()
	defer h.observe("check_device", start)

	req := &models.DeviceCheckRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.detector.RunDetectionForDevice(c.Request().Context(), req.DeviceID)
	if err != nil {
		if errors.Is(err, usecase.ErrDeviceNotFound) {
			return xhttp.NotFoundResponse(c, "device not seen")
		}
		metrics.APIErrors.WithLabelValues("check_device").Inc()
		h.logger.Error("device check failed",
			applogger.String("device", req.DeviceID), applogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	if res == nil {
		return xhttp.SuccessResponse(c, map[string]interface{}{
			"device_id":  req.DeviceID,
			"suspicious": false,
		})
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"device_id":  req.DeviceID,
		"suspicious": true,
		"result":     res,
	})
}

func (h *DetectionHandler) WhitelistList(c echo.Context) error {
	start := time.Now()
	defer h.observe("whitelist_list", start)

	ids, err := h.whitelist.List(c.Request().Context())
	if err != nil {
		metrics.APIErrors.WithLabelValues("whitelist_list").Inc()
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, ids, int64(len(ids)))
}

func (h *DetectionHandler) WhitelistAdd(c echo.Context) error {
	start := time.Now()
	defer h.observe("whitelist_add", start)

	req := &models.WhitelistAddRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if err := h.whitelist.Add(c.Request().Context(), req.DeviceID, req.Note); err != nil {
		metrics.APIErrors.WithLabelValues("whitelist_add").Inc()
		return xhttp.AppErrorResponse(c, err)
	}
	h.cacheDrop("detection:results")
	return xhttp.CreatedResponse(c, map[string]string{"device_id": req.DeviceID})
}

func (h *DetectionHandler) WhitelistRemove(c echo.Context) error {
	start := time.Now()
	defer h.observe("whitelist_remove", start)

	req := &models.WhitelistRemoveRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if err := h.whitelist.Remove(c.Request().Context(), req.DeviceID); err != nil {
		metrics.APIErrors.WithLabelValues("whitelist_remove").Inc()
		return xhttp.AppErrorResponse(c, err)
	}
	h.cacheDrop("detection:results")
	return xhttp.NoContentResponse(c)
}

func (h *DetectionHandler) SettingsGet(c echo.Context) error {
	start := time.Now()
	defer h.observe("settings_get", start)

	s, err := h.settings.Load(c.Request().Context())
	if err != nil {
		metrics.APIErrors.WithLabelValues("settings_get").Inc()
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, s)
}

func (h *DetectionHandler) SettingsUpdate(c echo.Context) error {
	start := time.Now()
	defer h.observe("settings_update", start)

	req := &models.UpdateSettingsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	s := models.Settings{
		AlertThresholdCount:        req.AlertThresholdCount,
		MinDetectionDistanceMeters: req.MinDetectionDistanceMeters,
	}
	if err := h.settings.Save(c.Request().Context(), s); err != nil {
		metrics.APIErrors.WithLabelValues("settings_update").Inc()
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, s)
}

func (h *DetectionHandler) cacheSet(key string, v interface{}) {
	if h.cache == nil {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	_ = h.cache.SetBytes(key, b, resultsCacheTTL)
}

func (h *DetectionHandler) cacheGet(key string) ([]byte, bool) {
	if h.cache == nil {
		return nil, false
	}
	b, ok, err := h.cache.GetBytes(key)
	return b, ok && err == nil
}

func (h *DetectionHandler) cacheDrop(key string) {
	if h.cache == nil {
		return
	}
	_ = h.cache.SetBytes(key, nil, time.Nanosecond)
}
