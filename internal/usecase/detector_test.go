package usecase

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"TagSentry/internal/domain/models"
	drepo "TagSentry/internal/domain/repository"
	"TagSentry/internal/repository"
	"TagSentry/pkg/config"
)

type fakeDevices struct {
	candidates []models.DeviceRecord
	byID       map[string]*models.DeviceRecord
	siblings   map[string][]models.DeviceRecord
}

func (f *fakeDevices) Init(ctx context.Context) error { return nil }
func (f *fakeDevices) Upsert(ctx context.Context, r *models.DeviceRecord) error { return nil }
func (f *fakeDevices) Link(ctx context.Context, req models.LinkRequest) error { return nil }
func (f *fakeDevices) Close() error { return nil }

func (f *fakeDevices) Get(ctx context.Context, id string) (*models.DeviceRecord, error) {
	if rec, ok := f.byID[id]; ok {
		return rec, nil
	}
	return nil, repository.ErrNotFound
}

func (f *fakeDevices) Candidates(ctx context.Context, minLocations int) ([]models.DeviceRecord, error) {
	return f.candidates, nil
}

func (f *fakeDevices) LinkedSiblings(ctx context.Context, id string) ([]models.DeviceRecord, error) {
	return f.siblings[id], nil
}

func (f *fakeDevices) ByFingerprint(ctx context.Context) (map[string][]models.DeviceRecord, error) {
	return nil, nil
}

type fakeSightings struct {
	byDevice map[string][]models.SightingRecord
}

func (f *fakeSightings) Init(ctx context.Context) error { return nil }
func (f *fakeSightings) Store(ctx context.Context, s *models.Sighting) error { return nil }
func (f *fakeSightings) StoreBatch(ctx context.Context, ss []*models.Sighting) error { return nil }
func (f *fakeSightings) Close() error { return nil }

func (f *fakeSightings) ForDevice(ctx context.Context, deviceID string) ([]models.SightingRecord, error) {
	return f.byDevice[deviceID], nil
}

type fakeLocations struct {
	byDevice map[string][]models.Location
	user     []models.Location
	path     []models.UserPathPoint
}

func (f *fakeLocations) ForDevice(ctx context.Context, deviceID string) ([]models.Location, error) {
	return f.byDevice[deviceID], nil
}

func (f *fakeLocations) UserLocations(ctx context.Context) ([]models.Location, error) {
	return f.user, nil
}

func (f *fakeLocations) UserPath(ctx context.Context) ([]models.UserPathPoint, error) {
	return f.path, nil
}

// cancellingLocations cancels the run from inside the first location
// fetch, mimicking an external caller giving up mid-sweep.
type cancellingLocations struct {
	fakeLocations
	cancel context.CancelFunc
}

func (f *cancellingLocations) ForDevice(ctx context.Context, deviceID string) ([]models.Location, error) {
	f.cancel()
	return f.fakeLocations.ForDevice(ctx, deviceID)
}

type fakeSettings struct {
	s   models.Settings
	err error
}

func (f *fakeSettings) Load(ctx context.Context) (models.Settings, error) { return f.s, f.err }
func (f *fakeSettings) Save(ctx context.Context, s models.Settings) error { f.s = s; return nil }

type fakeWhitelist struct {
	ids map[string]struct{}
}

func (f *fakeWhitelist) IDs(ctx context.Context) (map[string]struct{}, error) { return f.ids, nil }
func (f *fakeWhitelist) List(ctx context.Context) ([]string, error) { return nil, nil }
func (f *fakeWhitelist) Add(ctx context.Context, id, note string) error { return nil }
func (f *fakeWhitelist) Remove(ctx context.Context, id string) error { return nil }

type fakeMover struct{}

func (fakeMover) Correlate(dl []models.Location, ds []models.SightingRecord,
	ul []models.Location, up []models.UserPathPoint) models.MovementAnalysis {
	return models.MovementAnalysis{Combined: 0.5}
}

type fakeScorer struct {
	scores   map[string]float64
	discount float64
}

func (f *fakeScorer) Score(in models.ScoreInput) float64 { return f.scores[in.Device.ID] }
func (f *fakeScorer) ScoreLegacy(in models.ScoreInput) float64 { return f.scores[in.Device.ID] }

func (f *fakeScorer) WeakLinkDiscount(siblings []models.DeviceRecord) float64 {
	if len(siblings) == 0 {
		return 0
	}
	return f.discount
}

type fakeRotator struct {
	shadows []models.ShadowDetectionResult
	err     error
}

func (f *fakeRotator) HandoffScore(records []models.DeviceRecord) float64 { return 0 }

func (f *fakeRotator) Shadows(ctx context.Context) ([]models.ShadowDetectionResult, error) {
	return f.shadows, f.err
}

type fakeMetrics struct {
	errors     map[string]int
	candidates int
}

func (f *fakeMetrics) RecordSightingIngested(source, category string) {}
func (f *fakeMetrics) RecordDetection(level string) {}
func (f *fakeMetrics) RecordLatency(op string, seconds float64) {}
func (f *fakeMetrics) RecordCandidates(n int) { f.candidates = n }

func (f *fakeMetrics) RecordError(kind string) {
	if f.errors == nil {
		f.errors = make(map[string]int)
	}
	f.errors[kind]++
}

// farLocations spans roughly 2.2 km north to south, well past the
// 400 m following threshold.
func farLocations() []models.Location {
	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	return []models.Location{
		{ID: "l1", Latitude: 0.00, Longitude: 0, Timestamp: base},
		{ID: "l2", Latitude: 0.01, Longitude: 0, Timestamp: base.Add(time.Hour)},
		{ID: "l3", Latitude: 0.02, Longitude: 0, Timestamp: base.Add(2 * time.Hour)},
	}
}

func nearLocations() []models.Location {
	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	return []models.Location{
		{ID: "l1", Latitude: 0, Longitude: 0, Timestamp: base},
		{ID: "l1", Latitude: 0, Longitude: 0, Timestamp: base.Add(time.Hour)},
		{ID: "l1", Latitude: 0, Longitude: 0, Timestamp: base.Add(2 * time.Hour)},
	}
}

type detectorEnv struct {
	devices   *fakeDevices
	locations drepo.LocationStore
	scorer    *fakeScorer
	rotator   *fakeRotator
	whitelist *fakeWhitelist
	settings  *fakeSettings
	metrics   *fakeMetrics
}

func newTestDetector(env *detectorEnv) *Detector {
	if env.devices == nil {
		env.devices = &fakeDevices{byID: map[string]*models.DeviceRecord{}}
	}
	if env.locations == nil {
		env.locations = &fakeLocations{byDevice: map[string][]models.Location{}}
	}
	if env.scorer == nil {
		env.scorer = &fakeScorer{scores: map[string]float64{}}
	}
	if env.rotator == nil {
		env.rotator = &fakeRotator{}
	}
	if env.whitelist == nil {
		env.whitelist = &fakeWhitelist{ids: map[string]struct{}{}}
	}
	if env.settings == nil {
		env.settings = &fakeSettings{s: models.Settings{
			AlertThresholdCount:        3,
			MinDetectionDistanceMeters: 400,
		}}
	}
	if env.metrics == nil {
		env.metrics = &fakeMetrics{}
	}
	return NewDetector(
		config.DefaultDetection(),
		time.Minute,
		env.devices,
		&fakeSightings{byDevice: map[string][]models.SightingRecord{}},
		env.locations,
		env.settings,
		env.whitelist,
		fakeMover{},
		env.scorer,
		env.rotator,
		nil,
		nil,
		env.metrics,
		nil,
	)
}

func TestRunDetectionScoresFollowingDevice(t *testing.T) {
	env := &detectorEnv{
		devices: &fakeDevices{
			candidates: []models.DeviceRecord{{ID: "tag-1", Name: "AirTag"}},
			byID:       map[string]*models.DeviceRecord{},
		},
		locations: &fakeLocations{byDevice: map[string][]models.Location{"tag-1": farLocations()}},
		scorer:    &fakeScorer{scores: map[string]float64{"tag-1": 0.8}},
	}
	d := newTestDetector(env)

	results, err := d.RunDetection(context.Background())
	if err != nil {
		t.Fatalf("RunDetection: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	r := results[0]
	if r.Device.ID != "tag-1" {
		t.Fatalf("unexpected device %q", r.Device.ID)
	}
	if r.Score != 0.8 {
		t.Fatalf("score = %v, want 0.8", r.Score)
	}
	if r.Level != models.ThreatHigh {
		t.Fatalf("level = %v, want HIGH", r.Level)
	}
	if r.Reason == "" {
		t.Fatalf("expected a human-readable reason")
	}
	if env.metrics.candidates != 1 {
		t.Fatalf("candidate gauge = %d, want 1", env.metrics.candidates)
	}
}

func TestRunDetectionSkipsWhitelisted(t *testing.T) {
	env := &detectorEnv{
		devices: &fakeDevices{
			candidates: []models.DeviceRecord{{ID: "tag-1"}},
			byID:       map[string]*models.DeviceRecord{},
		},
		locations: &fakeLocations{byDevice: map[string][]models.Location{"tag-1": farLocations()}},
		scorer:    &fakeScorer{scores: map[string]float64{"tag-1": 0.9}},
		whitelist: &fakeWhitelist{ids: map[string]struct{}{"tag-1": {}}},
	}
	d := newTestDetector(env)

	results, err := d.RunDetection(context.Background())
	if err != nil {
		t.Fatalf("RunDetection: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("whitelisted device produced %d results", len(results))
	}
}

func TestRunDetectionSkipsStationaryCluster(t *testing.T) {
	env := &detectorEnv{
		devices: &fakeDevices{
			candidates: []models.DeviceRecord{{ID: "beacon-1"}},
			byID:       map[string]*models.DeviceRecord{},
		},
		locations: &fakeLocations{byDevice: map[string][]models.Location{"beacon-1": nearLocations()}},
		scorer:    &fakeScorer{scores: map[string]float64{"beacon-1": 0.9}},
	}
	d := newTestDetector(env)

	results, err := d.RunDetection(context.Background())
	if err != nil {
		t.Fatalf("RunDetection: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("stationary beacon produced %d results", len(results))
	}
}

func TestRunDetectionRequiresMinimumLocations(t *testing.T) {
	// Two locations 1.1 km apart: far, but below the 3-location threshold.
	env := &detectorEnv{
		devices: &fakeDevices{
			candidates: []models.DeviceRecord{{ID: "tag-1"}},
			byID:       map[string]*models.DeviceRecord{},
		},
		locations: &fakeLocations{byDevice: map[string][]models.Location{"tag-1": farLocations()[:2]}},
		scorer:    &fakeScorer{scores: map[string]float64{"tag-1": 0.9}},
	}
	d := newTestDetector(env)

	results, err := d.RunDetection(context.Background())
	if err != nil {
		t.Fatalf("RunDetection: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("two-location device produced %d results", len(results))
	}
}

func TestRunDetectionDropsBelowMinScore(t *testing.T) {
	env := &detectorEnv{
		devices: &fakeDevices{
			candidates: []models.DeviceRecord{{ID: "tag-1"}},
			byID:       map[string]*models.DeviceRecord{},
		},
		locations: &fakeLocations{byDevice: map[string][]models.Location{"tag-1": farLocations()}},
		scorer:    &fakeScorer{scores: map[string]float64{"tag-1": 0.2}},
	}
	d := newTestDetector(env)

	results, err := d.RunDetection(context.Background())
	if err != nil {
		t.Fatalf("RunDetection: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("low-score device produced %d results", len(results))
	}
}

func TestRunDetectionAppliesWeakLinkDiscount(t *testing.T) {
	env := &detectorEnv{
		devices: &fakeDevices{
			candidates: []models.DeviceRecord{{ID: "tag-1"}},
			byID:       map[string]*models.DeviceRecord{},
			siblings: map[string][]models.DeviceRecord{
				"tag-1": {{ID: "tag-1b", LinkedDeviceID: "tag-1", LinkStrength: models.LinkWeak}},
			},
		},
		locations: &fakeLocations{byDevice: map[string][]models.Location{"tag-1": farLocations()}},
		scorer:    &fakeScorer{scores: map[string]float64{"tag-1": 0.8}, discount: 0.15},
	}
	d := newTestDetector(env)

	results, err := d.RunDetection(context.Background())
	if err != nil {
		t.Fatalf("RunDetection: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if got := results[0].Score; math.Abs(got-0.68) > 1e-9 {
		t.Fatalf("discounted score = %v, want 0.68", got)
	}
}

func TestRunDetectionSortsByScoreDescending(t *testing.T) {
	env := &detectorEnv{
		devices: &fakeDevices{
			candidates: []models.DeviceRecord{{ID: "a"}, {ID: "b"}, {ID: "c"}},
			byID:       map[string]*models.DeviceRecord{},
		},
		locations: &fakeLocations{byDevice: map[string][]models.Location{
			"a": farLocations(), "b": farLocations(), "c": farLocations(),
		}},
		scorer: &fakeScorer{scores: map[string]float64{"a": 0.6, "b": 0.95, "c": 0.7}},
	}
	d := newTestDetector(env)

	results, err := d.RunDetection(context.Background())
	if err != nil {
		t.Fatalf("RunDetection: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Fatalf("results not sorted: %v before %v", results[i-1].Score, results[i].Score)
		}
	}
	if results[0].Device.ID != "b" {
		t.Fatalf("top result = %q, want b", results[0].Device.ID)
	}
}

func TestRunDetectionShadowFailureDegrades(t *testing.T) {
	env := &detectorEnv{
		devices: &fakeDevices{
			candidates: []models.DeviceRecord{{ID: "tag-1"}},
			byID:       map[string]*models.DeviceRecord{},
		},
		locations: &fakeLocations{byDevice: map[string][]models.Location{"tag-1": farLocations()}},
		scorer:    &fakeScorer{scores: map[string]float64{"tag-1": 0.8}},
		rotator:   &fakeRotator{err: errors.New("fingerprint scan failed")},
	}
	d := newTestDetector(env)

	results, err := d.RunDetection(context.Background())
	if err != nil {
		t.Fatalf("shadow failure must not fail the sweep: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected the per-address result to survive, got %d", len(results))
	}
	if env.metrics.errors["shadow_path"] != 1 {
		t.Fatalf("expected shadow_path error metric, got %v", env.metrics.errors)
	}
}

func TestRunDetectionShadowSkipsRepresentedDevice(t *testing.T) {
	// tag-1 already came out of the per-address path; its shadow is a
	// duplicate of the same physical device and must not touch the score.
	env := &detectorEnv{
		devices: &fakeDevices{
			candidates: []models.DeviceRecord{{ID: "tag-1"}},
			byID:       map[string]*models.DeviceRecord{},
		},
		locations: &fakeLocations{byDevice: map[string][]models.Location{"tag-1": farLocations()}},
		scorer:    &fakeScorer{scores: map[string]float64{"tag-1": 0.6}},
		rotator: &fakeRotator{shadows: []models.ShadowDetectionResult{{
			Device:      models.DeviceRecord{ID: "tag-1"},
			ShadowKey:   "fmy:aabbccddee01",
			Persistence: 0.9,
			Rotation:    1,
			Combined:    1.0,
		}}},
	}
	d := newTestDetector(env)

	results, err := d.RunDetection(context.Background())
	if err != nil {
		t.Fatalf("RunDetection: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if got := results[0].Score; got != 0.6 {
		t.Fatalf("score = %v, want the per-address 0.6 untouched", got)
	}
}

func TestRunDetectionBlendsShadowScore(t *testing.T) {
	// rot-5 never qualified as a per-address candidate; the shadow path
	// evaluates its representative and averages in the group verdict.
	env := &detectorEnv{
		devices:   &fakeDevices{byID: map[string]*models.DeviceRecord{}},
		locations: &fakeLocations{byDevice: map[string][]models.Location{"rot-5": farLocations()}},
		scorer:    &fakeScorer{scores: map[string]float64{"rot-5": 0.7}},
		rotator: &fakeRotator{shadows: []models.ShadowDetectionResult{{
			Device:      models.DeviceRecord{ID: "rot-5"},
			ShadowKey:   "fmy:aabbccddee01",
			Persistence: 0.9,
			Rotation:    1,
			Combined:    0.9,
		}}},
	}
	d := newTestDetector(env)

	results, err := d.RunDetection(context.Background())
	if err != nil {
		t.Fatalf("RunDetection: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 blended result, got %d", len(results))
	}
	if got := results[0].Score; math.Abs(got-0.8) > 1e-9 {
		t.Fatalf("blended score = %v, want 0.8", got)
	}
	if results[0].Level != models.ThreatHigh {
		t.Fatalf("blended level = %v, want HIGH", results[0].Level)
	}
}

func TestRunDetectionShadowBlendBelowMinScore(t *testing.T) {
	// The representative evaluates above the floor on its own, but the
	// weak group verdict drags the blend under it; nothing is emitted.
	env := &detectorEnv{
		devices:   &fakeDevices{byID: map[string]*models.DeviceRecord{}},
		locations: &fakeLocations{byDevice: map[string][]models.Location{"rot-9": farLocations()}},
		scorer:    &fakeScorer{scores: map[string]float64{"rot-9": 0.55}},
		rotator: &fakeRotator{shadows: []models.ShadowDetectionResult{{
			Device:      models.DeviceRecord{ID: "rot-9"},
			ShadowKey:   "fmy:aabbccddee02",
			Persistence: 0.4,
			Rotation:    0.1,
			Combined:    0.31,
		}}},
	}
	d := newTestDetector(env)

	results, err := d.RunDetection(context.Background())
	if err != nil {
		t.Fatalf("RunDetection: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("sub-threshold blend produced %d results", len(results))
	}
}

func TestRunDetectionSurfacesShadowOnlyDevice(t *testing.T) {
	// Every rotated address stayed below the location threshold, so the
	// per-address path sees nothing; only the fingerprint group does.
	env := &detectorEnv{
		devices: &fakeDevices{byID: map[string]*models.DeviceRecord{}},
		locations: &fakeLocations{byDevice: map[string][]models.Location{
			"rot-3": farLocations()[:1],
		}},
		scorer: &fakeScorer{scores: map[string]float64{}},
		rotator: &fakeRotator{shadows: []models.ShadowDetectionResult{{
			Device:      models.DeviceRecord{ID: "rot-3"},
			ShadowKey:   "svc:tile:8899aabbccddeeff",
			Persistence: 0.8,
			Rotation:    0.9,
			Combined:    0.83,
		}}},
	}
	d := newTestDetector(env)

	results, err := d.RunDetection(context.Background())
	if err != nil {
		t.Fatalf("RunDetection: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected shadow-only result, got %d", len(results))
	}
	if got := results[0].Score; got != 0.83 {
		t.Fatalf("shadow score = %v, want 0.83", got)
	}
}

func TestRunDetectionCancelledEmitsNothing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	env := &detectorEnv{
		devices: &fakeDevices{
			candidates: []models.DeviceRecord{{ID: "a"}, {ID: "b"}, {ID: "c"}},
			byID:       map[string]*models.DeviceRecord{},
		},
		locations: &cancellingLocations{
			fakeLocations: fakeLocations{byDevice: map[string][]models.Location{
				"a": farLocations(), "b": farLocations(), "c": farLocations(),
			}},
			cancel: cancel,
		},
		scorer: &fakeScorer{scores: map[string]float64{"a": 0.9, "b": 0.9, "c": 0.9}},
	}
	d := newTestDetector(env)

	results, err := d.RunDetection(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if results != nil {
		t.Fatalf("cancelled sweep emitted %d partial results", len(results))
	}
}

func TestRunDetectionForDeviceNotFound(t *testing.T) {
	d := newTestDetector(&detectorEnv{})

	_, err := d.RunDetectionForDevice(context.Background(), "unknown")
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Fatalf("err = %v, want ErrDeviceNotFound", err)
	}
}

func TestRunDetectionForDeviceWhitelisted(t *testing.T) {
	env := &detectorEnv{
		whitelist: &fakeWhitelist{ids: map[string]struct{}{"tag-1": {}}},
	}
	d := newTestDetector(env)

	res, err := d.RunDetectionForDevice(context.Background(), "tag-1")
	if err != nil {
		t.Fatalf("RunDetectionForDevice: %v", err)
	}
	if res != nil {
		t.Fatalf("whitelisted device must not be scored")
	}
}

func TestRunDetectionSettingsFailureAborts(t *testing.T) {
	env := &detectorEnv{
		settings: &fakeSettings{err: errors.New("clickhouse down")},
	}
	d := newTestDetector(env)

	if _, err := d.RunDetection(context.Background()); err == nil {
		t.Fatalf("settings load failure must abort the sweep")
	}
}

func TestRunDetectionSettingsRaiseDistanceFloor(t *testing.T) {
	// Settings demand 3 km; the device only spans ~2.2 km.
	env := &detectorEnv{
		devices: &fakeDevices{
			candidates: []models.DeviceRecord{{ID: "tag-1"}},
			byID:       map[string]*models.DeviceRecord{},
		},
		locations: &fakeLocations{byDevice: map[string][]models.Location{"tag-1": farLocations()}},
		scorer:    &fakeScorer{scores: map[string]float64{"tag-1": 0.9}},
		settings: &fakeSettings{s: models.Settings{
			AlertThresholdCount:        3,
			MinDetectionDistanceMeters: 3000,
		}},
	}
	d := newTestDetector(env)

	results, err := d.RunDetection(context.Background())
	if err != nil {
		t.Fatalf("RunDetection: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("device below the settings distance floor produced %d results", len(results))
	}
}
