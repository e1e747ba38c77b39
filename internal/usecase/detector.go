package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"TagSentry/internal/domain/models"
	drepo "TagSentry/internal/domain/repository"
	domsvc "TagSentry/internal/domain/service"
	"TagSentry/internal/repository"
	"TagSentry/internal/services/movement"
	"TagSentry/internal/services/scoring"
	pkgcache "TagSentry/pkg/cache"
	"TagSentry/pkg/config"
	applogger "TagSentry/pkg/logger"
)

// ErrSweepInProgress is returned when a detection sweep is already
// running; sweeps are single-flight across the deployment.
var ErrSweepInProgress = errors.New("detection sweep already in progress")

// ErrDeviceNotFound is returned by RunDetectionForDevice for devices the
// service has never sighted.
var ErrDeviceNotFound = errors.New("device not seen")

const (
	sweepLockKey   = "detection:sweep:lock"
	sweepLockTTL   = time.Minute
	resultCacheKey = "detection:last"
)

// Detector runs full detection sweeps: candidate selection, movement
// correlation, threat scoring, the MAC-agnostic shadow path, and alert
// dispatch.
type Detector struct {
	cfg        config.Detection
	resultTTL  time.Duration
	devices    drepo.DeviceStore
	sightings  drepo.SightingStore
	locations  drepo.LocationStore
	settings   drepo.SettingsStore
	whitelist  drepo.WhitelistStore
	mover      domsvc.MovementCorrelator
	scorer     domsvc.ThreatScorer
	rotator    domsvc.RotationCorrelator
	cache      pkgcache.Service
	dispatcher *AlertDispatcher
	metrics    drepo.Metrics
	log        *applogger.Logger
}

func NewDetector(
	cfg config.Detection,
	resultTTL time.Duration,
	devices drepo.DeviceStore,
	sightings drepo.SightingStore,
	locations drepo.LocationStore,
	settings drepo.SettingsStore,
	whitelist drepo.WhitelistStore,
	mover domsvc.MovementCorrelator,
	scorer domsvc.ThreatScorer,
	rotator domsvc.RotationCorrelator,
	cache pkgcache.Service,
	dispatcher *AlertDispatcher,
	metrics drepo.Metrics,
	log *applogger.Logger,
) *Detector {
	return &Detector{
		cfg:        cfg,
		resultTTL:  resultTTL,
		devices:    devices,
		sightings:  sightings,
		locations:  locations,
		settings:   settings,
		whitelist:  whitelist,
		mover:      mover,
		scorer:     scorer,
		rotator:    rotator,
		cache:      cache,
		dispatcher: dispatcher,
		metrics:    metrics,
		log:        log,
	}
}

// RunDetection executes a full sweep and returns results sorted by score
// descending. A settings or whitelist load failure aborts the sweep; a
// shadow-path failure degrades to per-address results only.
func (d *Detector) RunDetection(ctx context.Context) ([]models.DetectionResult, error) {
	if d.cache != nil {
		ok, err := d.cache.TryLock(ctx, sweepLockKey, sweepLockTTL)
		if err == nil && !ok {
			return nil, ErrSweepInProgress
		}
		if err == nil {
			defer func() { _ = d.cache.Unlock(context.WithoutCancel(ctx), sweepLockKey) }()
		}
	}

	start := time.Now()

	settings, err := d.settings.Load(ctx)
	if err != nil {
		d.metrics.RecordError("settings_load")
		return nil, fmt.Errorf("load settings: %w", err)
	}
	excluded, err := d.whitelist.IDs(ctx)
	if err != nil {
		d.metrics.RecordError("whitelist_load")
		return nil, fmt.Errorf("load whitelist: %w", err)
	}
	userLocs, err := d.locations.UserLocations(ctx)
	if err != nil {
		return nil, fmt.Errorf("user locations: %w", err)
	}
	userPath, err := d.locations.UserPath(ctx)
	if err != nil {
		return nil, fmt.Errorf("user path: %w", err)
	}

	minLocations := d.cfg.MinLocations
	if settings.AlertThresholdCount > minLocations {
		minLocations = settings.AlertThresholdCount
	}
	candidates, err := d.devices.Candidates(ctx, minLocations)
	if err != nil {
		return nil, fmt.Errorf("candidates: %w", err)
	}
	d.metrics.RecordCandidates(len(candidates))

	results := d.evaluateAll(ctx, candidates, excluded, settings, userLocs, userPath)
	if err := ctx.Err(); err != nil {
		// cancelled mid-sweep: emit nothing rather than a partial set
		return nil, err
	}
	results = d.applyShadows(ctx, results, excluded, settings, userLocs, userPath)

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })

	d.metrics.RecordLatency("sweep", time.Since(start).Seconds())
	for _, r := range results {
		d.metrics.RecordDetection(string(r.Level))
	}
	if d.log != nil {
		d.log.Info("detection sweep complete",
			applogger.Int("candidates", len(candidates)),
			applogger.Int("results", len(results)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}

	d.cacheResults(ctx, results)
	if d.dispatcher != nil {
		d.dispatcher.Dispatch(ctx, results)
	}
	return results, nil
}

// RunDetectionForDevice scores a single device on demand. Returns nil when
// the device is whitelisted or scores below threshold.
func (d *Detector) RunDetectionForDevice(ctx context.Context, deviceID string) (*models.DetectionResult, error) {
	excluded, err := d.whitelist.IDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("load whitelist: %w", err)
	}
	if _, ok := excluded[deviceID]; ok {
		return nil, nil
	}
	settings, err := d.settings.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	dev, err := d.devices.Get(ctx, deviceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("get device: %w", err)
	}

	userLocs, err := d.locations.UserLocations(ctx)
	if err != nil {
		return nil, fmt.Errorf("user locations: %w", err)
	}
	userPath, err := d.locations.UserPath(ctx)
	if err != nil {
		return nil, fmt.Errorf("user path: %w", err)
	}
	return d.evaluate(ctx, *dev, settings, userLocs, userPath)
}

// evaluateAll fans candidate evaluation out over a bounded worker set.
// Each worker writes only its own slot, so no result synchronization is
// needed beyond the WaitGroup.
func (d *Detector) evaluateAll(
	ctx context.Context,
	candidates []models.DeviceRecord,
	excluded map[string]struct{},
	settings models.Settings,
	userLocs []models.Location,
	userPath []models.UserPathPoint,
) []models.DetectionResult {
	slots := make([]*models.DetectionResult, len(candidates))
	sem := make(chan struct{}, d.cfg.FetchConcurrency)
	var wg sync.WaitGroup

	for i, cand := range candidates {
		if _, ok := excluded[cand.ID]; ok {
			continue
		}
		if cand.Linked() {
			continue // flattened into its representative
		}
		if ctx.Err() != nil {
			break
		}
		sem <- struct{}{}

		wg.Add(1)
		go func(i int, dev models.DeviceRecord) {
			defer wg.Done()
			defer func() { <-sem }()
			res, err := d.evaluate(ctx, dev, settings, userLocs, userPath)
			if err != nil {
				d.metrics.RecordError("evaluate")
				if d.log != nil {
					d.log.Warn("candidate evaluation failed",
						applogger.String("device", dev.ID),
						applogger.Error(err),
					)
				}
				return
			}
			slots[i] = res
		}(i, cand)
	}
	wg.Wait()

	out := make([]models.DetectionResult, 0, len(slots))
	for _, r := range slots {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out
}

// evaluate scores one device. A nil result with nil error means the device
// did not qualify.
func (d *Detector) evaluate(
	ctx context.Context,
	dev models.DeviceRecord,
	settings models.Settings,
	userLocs []models.Location,
	userPath []models.UserPathPoint,
) (*models.DetectionResult, error) {
	locs, err := d.locations.ForDevice(ctx, dev.ID)
	if err != nil {
		return nil, fmt.Errorf("locations for %s: %w", dev.ID, err)
	}
	if len(locs) < d.cfg.MinLocations {
		return nil, nil
	}

	maxDist, avgDist := movement.MaxAvgDistance(locs)
	minDist := d.cfg.MinDistanceMeters
	if settings.MinDetectionDistanceMeters > minDist {
		minDist = settings.MinDetectionDistanceMeters
	}
	if maxDist < minDist {
		return nil, nil // stationary cluster, not following
	}

	sightings, err := d.sightings.ForDevice(ctx, dev.ID)
	if err != nil {
		return nil, fmt.Errorf("sightings for %s: %w", dev.ID, err)
	}

	analysis := d.mover.Correlate(locs, sightings, userLocs, userPath)

	in := models.ScoreInput{
		Device:      dev,
		Locations:   locs,
		Sightings:   sightings,
		Movement:    analysis,
		MaxDistance: maxDist,
		AvgDistance: avgDist,
	}
	score := d.scorer.Score(in)

	siblings, err := d.devices.LinkedSiblings(ctx, dev.ID)
	if err != nil {
		return nil, fmt.Errorf("siblings of %s: %w", dev.ID, err)
	}
	score *= 1 - d.scorer.WeakLinkDiscount(siblings)
	if score < d.cfg.MinScore {
		return nil, nil
	}

	return &models.DetectionResult{
		Device:      dev,
		Locations:   locs,
		Score:       score,
		Level:       models.LevelForScore(score),
		MaxDistance: maxDist,
		AvgDistance: avgDist,
		Reason:      scoring.Reason(in, score),
		DetectedAt:  time.Now(),
	}, nil
}

// applyShadows folds the MAC-agnostic detection path into the per-address
// results. Devices the per-address path already emitted are left as-is;
// shadow failures never fail the sweep.
func (d *Detector) applyShadows(
	ctx context.Context,
	results []models.DetectionResult,
	excluded map[string]struct{},
	settings models.Settings,
	userLocs []models.Location,
	userPath []models.UserPathPoint,
) []models.DetectionResult {
	shadows, err := d.rotator.Shadows(ctx)
	if err != nil {
		d.metrics.RecordError("shadow_path")
		if d.log != nil {
			d.log.Error("shadow correlation failed, continuing with per-address results",
				applogger.Error(err))
		}
		return results
	}

	byDevice := make(map[string]struct{}, len(results))
	for _, r := range results {
		byDevice[r.Device.ID] = struct{}{}
	}

	for _, sh := range shadows {
		if _, ok := excluded[sh.Device.ID]; ok {
			continue
		}
		if _, ok := byDevice[sh.Device.ID]; ok {
			// the per-address path already emitted this physical device
			continue
		}

		res, err := d.evaluate(ctx, sh.Device, settings, userLocs, userPath)
		if err != nil {
			d.metrics.RecordError("shadow_evaluate")
			continue
		}
		if res == nil {
			// address rotation kept every individual record below the
			// location threshold; surface the shadow verdict itself
			if sh.Combined < d.cfg.MinScore {
				continue
			}
			locs, lerr := d.locations.ForDevice(ctx, sh.Device.ID)
			if lerr != nil {
				d.metrics.RecordError("shadow_evaluate")
				continue
			}
			in := models.ScoreInput{Device: sh.Device, Locations: locs}
			res = &models.DetectionResult{
				Device:     sh.Device,
				Locations:  locs,
				Score:      sh.Combined,
				Level:      models.LevelForScore(sh.Combined),
				Reason:     scoring.ShadowReason(in, sh.Combined, sh),
				DetectedAt: time.Now(),
			}
		} else {
			blended := (res.Score + sh.Combined) / 2
			if blended < d.cfg.MinScore {
				continue
			}
			res.Score = blended
			res.Level = models.LevelForScore(blended)
			res.Reason = scoring.ShadowReason(models.ScoreInput{
				Device:      res.Device,
				Locations:   res.Locations,
				MaxDistance: res.MaxDistance,
			}, blended, sh)
		}
		byDevice[res.Device.ID] = struct{}{}
		results = append(results, *res)
	}
	return results
}

func (d *Detector) cacheResults(ctx context.Context, results []models.DetectionResult) {
	if d.cache == nil {
		return
	}
	if err := d.cache.Set(ctx, resultCacheKey, results, d.resultTTL); err != nil {
		d.metrics.RecordError("result_cache")
	}
}

// CachedResults returns the last sweep's results, if any.
func (d *Detector) CachedResults(ctx context.Context) ([]models.DetectionResult, bool) {
	if d.cache == nil {
		return nil, false
	}
	var out []models.DetectionResult
	if err := d.cache.Get(ctx, resultCacheKey, &out); err != nil {
		return nil, false
	}
	return out, true
}
