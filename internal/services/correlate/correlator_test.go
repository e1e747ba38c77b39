package correlate

import (
	"context"
	"testing"
	"time"

	"TagSentry/internal/domain/models"
	"TagSentry/pkg/config"
)

type fakeDeviceStore struct {
	groups map[string][]models.DeviceRecord
	links  []models.LinkRequest
}

func (f *fakeDeviceStore) Init(ctx context.Context) error { return nil }

func (f *fakeDeviceStore) Upsert(ctx context.Context, rec *models.DeviceRecord) error { return nil }
func (f *fakeDeviceStore) Get(ctx context.Context, id string) (*models.DeviceRecord, error) {
	return nil, nil
}
func (f *fakeDeviceStore) Candidates(ctx context.Context, minLocations int) ([]models.DeviceRecord, error) {
	return nil, nil
}
func (f *fakeDeviceStore) LinkedSiblings(ctx context.Context, id string) ([]models.DeviceRecord, error) {
	return nil, nil
}
func (f *fakeDeviceStore) ByFingerprint(ctx context.Context) (map[string][]models.DeviceRecord, error) {
	return f.groups, nil
}
func (f *fakeDeviceStore) Link(ctx context.Context, req models.LinkRequest) error {
	f.links = append(f.links, req)
	return nil
}
func (f *fakeDeviceStore) Close() error { return nil }

type fakeLocationStore struct {
	byDevice map[string][]models.Location
	user     []models.Location
}

func (f *fakeLocationStore) ForDevice(ctx context.Context, deviceID string) ([]models.Location, error) {
	return f.byDevice[deviceID], nil
}
func (f *fakeLocationStore) UserLocations(ctx context.Context) ([]models.Location, error) {
	return f.user, nil
}
func (f *fakeLocationStore) UserPath(ctx context.Context) ([]models.UserPathPoint, error) {
	return nil, nil
}

func testCorrelator(devices *fakeDeviceStore, locations *fakeLocationStore) *Correlator {
	return NewCorrelator(config.DefaultDetection(), devices, locations, nil)
}

func rec(id string, first, last time.Time) models.DeviceRecord {
	return models.DeviceRecord{ID: id, FirstSeen: first, LastSeen: last, FingerprintConf: 0.95}
}

func TestHandoffScoreTooFewRecords(t *testing.T) {
	c := testCorrelator(&fakeDeviceStore{}, &fakeLocationStore{})
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	records := []models.DeviceRecord{rec("a", base, base.Add(15*time.Minute))}
	if got := c.HandoffScore(records); got != 0 {
		t.Fatalf("expected 0 for a single record, got %v", got)
	}
}

func TestHandoffScoreSingleHandoffScoresZero(t *testing.T) {
	// One qualifying hand-off could be coincidence; the score needs two.
	c := testCorrelator(&fakeDeviceStore{}, &fakeLocationStore{})
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	records := []models.DeviceRecord{
		rec("a", base, base.Add(15*time.Minute)),
		rec("b", base.Add(16*time.Minute), base.Add(30*time.Minute)),
	}
	if got := c.HandoffScore(records); got != 0 {
		t.Fatalf("expected 0 for one hand-off, got %v", got)
	}
}

func TestHandoffScorePerfectRotationChain(t *testing.T) {
	// Three records hand off back-to-back at identical 15 minute
	// intervals: every transition qualifies and regularity is 1.
	c := testCorrelator(&fakeDeviceStore{}, &fakeLocationStore{})
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	records := []models.DeviceRecord{
		rec("a", base, base.Add(15*time.Minute)),
		rec("b", base.Add(16*time.Minute), base.Add(30*time.Minute)),
		rec("c", base.Add(31*time.Minute), base.Add(45*time.Minute)),
	}
	got := c.HandoffScore(records)
	if got != 1 {
		t.Fatalf("expected 1 for a perfect rotation chain, got %v", got)
	}
}

func TestHandoffScoreIgnoresWideGaps(t *testing.T) {
	// The second record appears hours after the first disappears; only
	// the b->c transition qualifies, which is below the minimum.
	c := testCorrelator(&fakeDeviceStore{}, &fakeLocationStore{})
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	records := []models.DeviceRecord{
		rec("a", base, base.Add(15*time.Minute)),
		rec("b", base.Add(6*time.Hour), base.Add(7*time.Hour)),
		rec("c", base.Add(7*time.Hour).Add(2*time.Minute), base.Add(8*time.Hour)),
	}
	if got := c.HandoffScore(records); got != 0 {
		t.Fatalf("expected 0 when only one transition qualifies, got %v", got)
	}
}

func TestHandoffScoreIrregularIntervalsScoreLower(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	c := testCorrelator(&fakeDeviceStore{}, &fakeLocationStore{})

	regular := []models.DeviceRecord{
		rec("a", base, base.Add(15*time.Minute)),
		rec("b", base.Add(16*time.Minute), base.Add(30*time.Minute)),
		rec("c", base.Add(31*time.Minute), base.Add(45*time.Minute)),
		rec("d", base.Add(46*time.Minute), base.Add(60*time.Minute)),
	}
	irregular := []models.DeviceRecord{
		rec("a", base, base.Add(2*time.Minute)),
		rec("b", base.Add(3*time.Minute), base.Add(40*time.Minute)),
		rec("c", base.Add(41*time.Minute), base.Add(44*time.Minute)),
		rec("d", base.Add(45*time.Minute), base.Add(60*time.Minute)),
	}

	if r, i := c.HandoffScore(regular), c.HandoffScore(irregular); i >= r {
		t.Fatalf("irregular intervals should score lower: regular=%v irregular=%v", r, i)
	}
}

func TestHandoffGapTunable(t *testing.T) {
	// Transitions 20 minutes apart only qualify once the gap window is
	// widened past the default 5 minutes.
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	records := []models.DeviceRecord{
		rec("a", base, base.Add(10*time.Minute)),
		rec("b", base.Add(30*time.Minute), base.Add(40*time.Minute)),
		rec("c", base.Add(60*time.Minute), base.Add(70*time.Minute)),
	}

	def := testCorrelator(&fakeDeviceStore{}, &fakeLocationStore{})
	if got := def.HandoffScore(records); got != 0 {
		t.Fatalf("default gap window should reject 20-minute transitions, got %v", got)
	}

	cfg := config.DefaultDetection()
	cfg.HandoffGap = 30 * time.Minute
	wide := NewCorrelator(cfg, &fakeDeviceStore{}, &fakeLocationStore{}, nil)
	if got := wide.HandoffScore(records); got <= 0 {
		t.Fatalf("widened gap window should accept the transitions, got %v", got)
	}
}

func TestShadowsSkipsSingletonGroups(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	devices := &fakeDeviceStore{groups: map[string][]models.DeviceRecord{
		"fmy:aabbccddee01": {rec("a", base, base.Add(time.Hour))},
	}}
	locations := &fakeLocationStore{
		byDevice: map[string][]models.Location{"a": {{ID: "l1"}}},
		user:     []models.Location{{ID: "l1"}},
	}
	c := testCorrelator(devices, locations)

	out, err := c.Shadows(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("a single record is not a rotation, got %d results", len(out))
	}
}

func TestShadowsSkipsEmptyKey(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	devices := &fakeDeviceStore{groups: map[string][]models.DeviceRecord{
		"": {
			rec("a", base, base.Add(15*time.Minute)),
			rec("b", base.Add(16*time.Minute), base.Add(30*time.Minute)),
		},
	}}
	locations := &fakeLocationStore{
		byDevice: map[string][]models.Location{"a": {{ID: "l1"}}, "b": {{ID: "l2"}}},
		user:     []models.Location{{ID: "l1"}, {ID: "l2"}},
	}
	c := testCorrelator(devices, locations)

	out, err := c.Shadows(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("unfingerprinted records must never group, got %d results", len(out))
	}
}

func TestShadowsRotatingTrackerAcrossUserLocations(t *testing.T) {
	// One physical tracker rotating through three addresses, each address
	// seen at exactly one of the user's locations: presence counts are
	// uniform (variance 0), coverage is full, and the rotation chain is
	// tight. The group must qualify and link to the latest record.
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	devices := &fakeDeviceStore{groups: map[string][]models.DeviceRecord{
		"fmy:aabbccddee01": {
			rec("a", base, base.Add(15*time.Minute)),
			rec("b", base.Add(16*time.Minute), base.Add(30*time.Minute)),
			rec("c", base.Add(31*time.Minute), base.Add(45*time.Minute)),
		},
	}}
	locations := &fakeLocationStore{
		byDevice: map[string][]models.Location{
			"a": {{ID: "home"}},
			"b": {{ID: "office"}},
			"c": {{ID: "gym"}},
		},
		user: []models.Location{{ID: "home"}, {ID: "office"}, {ID: "gym"}},
	}
	c := testCorrelator(devices, locations)

	out, err := c.Shadows(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 shadow result, got %d", len(out))
	}
	res := out[0]

	// variance 0, specificity 0.95, coverage 1 -> persistence 0.95.
	if res.Persistence < 0.94 || res.Persistence > 0.96 {
		t.Fatalf("persistence = %v, want ~0.95", res.Persistence)
	}
	if res.Rotation != 1 {
		t.Fatalf("rotation = %v, want 1 for a perfect chain", res.Rotation)
	}
	want := res.Persistence*0.7 + res.Rotation*0.3
	if diff := res.Combined - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("combined = %v, want %v", res.Combined, want)
	}
	if res.LocationCount != 3 {
		t.Fatalf("location count = %d, want 3", res.LocationCount)
	}
	if res.Device.ID != "c" {
		t.Fatalf("representative = %s, want the latest record c", res.Device.ID)
	}

	if len(devices.links) != 2 {
		t.Fatalf("expected 2 link requests, got %d", len(devices.links))
	}
	for _, l := range devices.links {
		if l.LinkedDeviceID != "c" {
			t.Fatalf("link target = %s, want representative c", l.LinkedDeviceID)
		}
		if l.Strength != models.LinkStrong {
			t.Fatalf("strength = %s, want STRONG for confidence >= 0.9", l.Strength)
		}
	}
}

func TestShadowsWeakLinkBelowConfidence(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	a := rec("a", base, base.Add(15*time.Minute))
	b := rec("b", base.Add(16*time.Minute), base.Add(30*time.Minute))
	c3 := rec("c", base.Add(31*time.Minute), base.Add(45*time.Minute))
	a.FingerprintConf, b.FingerprintConf, c3.FingerprintConf = 0.7, 0.7, 0.7

	devices := &fakeDeviceStore{groups: map[string][]models.DeviceRecord{
		"svc:tile:0011223344556677": {a, b, c3},
	}}
	locations := &fakeLocationStore{
		byDevice: map[string][]models.Location{
			"a": {{ID: "home"}},
			"b": {{ID: "office"}},
			"c": {{ID: "gym"}},
		},
		user: []models.Location{{ID: "home"}, {ID: "office"}, {ID: "gym"}},
	}
	c := testCorrelator(devices, locations)

	out, err := c.Shadows(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 shadow result, got %d", len(out))
	}
	for _, l := range devices.links {
		if l.Strength != models.LinkWeak {
			t.Fatalf("strength = %s, want WEAK below 0.9 confidence", l.Strength)
		}
	}
}

func TestShadowsFiltersBelowCombinedThreshold(t *testing.T) {
	// Two addresses never seen near the user's locations and with no
	// qualifying hand-offs: coverage is zero, the group drops out.
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	devices := &fakeDeviceStore{groups: map[string][]models.DeviceRecord{
		"fmy:aabbccddee02": {
			rec("a", base, base.Add(15*time.Minute)),
			rec("b", base.Add(6*time.Hour), base.Add(7*time.Hour)),
		},
	}}
	locations := &fakeLocationStore{
		byDevice: map[string][]models.Location{
			"a": {{ID: "elsewhere"}},
			"b": {{ID: "elsewhere"}},
		},
		user: []models.Location{{ID: "home"}, {ID: "office"}},
	}
	c := testCorrelator(devices, locations)

	out, err := c.Shadows(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected no results below threshold, got %d", len(out))
	}
	if len(devices.links) != 0 {
		t.Fatalf("rejected groups must not link, got %d links", len(devices.links))
	}
}

func TestShadowsSortedByCombinedDescending(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	strong := []models.DeviceRecord{
		rec("a", base, base.Add(15*time.Minute)),
		rec("b", base.Add(16*time.Minute), base.Add(30*time.Minute)),
		rec("c", base.Add(31*time.Minute), base.Add(45*time.Minute)),
	}
	weak := []models.DeviceRecord{
		rec("x", base, base.Add(15*time.Minute)),
		rec("y", base.Add(16*time.Minute), base.Add(30*time.Minute)),
		rec("z", base.Add(31*time.Minute), base.Add(45*time.Minute)),
	}
	for i := range weak {
		weak[i].FingerprintConf = 0.5
	}

	devices := &fakeDeviceStore{groups: map[string][]models.DeviceRecord{
		"fmy:aabbccddee03":          strong,
		"svc:tile:8899aabbccddeeff": weak,
	}}
	locations := &fakeLocationStore{
		byDevice: map[string][]models.Location{
			"a": {{ID: "home"}}, "b": {{ID: "office"}}, "c": {{ID: "gym"}},
			"x": {{ID: "home"}}, "y": {{ID: "office"}}, "z": {{ID: "gym"}},
		},
		user: []models.Location{{ID: "home"}, {ID: "office"}, {ID: "gym"}},
	}
	c := testCorrelator(devices, locations)

	out, err := c.Shadows(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 shadow results, got %d", len(out))
	}
	if out[0].Combined < out[1].Combined {
		t.Fatalf("results not sorted: %v then %v", out[0].Combined, out[1].Combined)
	}
	if out[0].ShadowKey != "fmy:aabbccddee03" {
		t.Fatalf("strongest group should rank first, got %s", out[0].ShadowKey)
	}
}
