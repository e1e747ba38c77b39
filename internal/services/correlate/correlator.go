package correlate

import (
	"context"
	"fmt"
	"sort"

	"TagSentry/internal/domain/models"
	drepo "TagSentry/internal/domain/repository"
	"TagSentry/pkg/config"
	applogger "TagSentry/pkg/logger"
)

// Shadow combination weights: a stable per-location presence pattern says
// more than rotation timing alone.
const (
	shadowWeightPersistence = 0.7
	shadowWeightRotation    = 0.3
)

// Correlator groups device records across hardware-address rotations, via
// explicit hand-off timing and MAC-agnostic shadow grouping.
type Correlator struct {
	cfg       config.Detection
	devices   drepo.DeviceStore
	locations drepo.LocationStore
	log       *applogger.Logger
}

func NewCorrelator(cfg config.Detection, devices drepo.DeviceStore, locations drepo.LocationStore, log *applogger.Logger) *Correlator {
	return &Correlator{cfg: cfg, devices: devices, locations: locations, log: log}
}

// Shadows groups all unlinked device records by shared fingerprint and
// scores each group for single-device-rotating behavior. A shadow key seen
// exactly once per location across many of the user's locations is the
// signature of one physical device rotating addresses.
//
// Qualifying groups also get their records linked to the group's
// representative through the device store; links always point at the
// representative directly, never at another linked record.
func (c *Correlator) Shadows(ctx context.Context) ([]models.ShadowDetectionResult, error) {
	groups, err := c.devices.ByFingerprint(ctx)
	if err != nil {
		return nil, fmt.Errorf("group by fingerprint: %w", err)
	}
	userLocs, err := c.locations.UserLocations(ctx)
	if err != nil {
		return nil, fmt.Errorf("user locations: %w", err)
	}
	if len(userLocs) == 0 {
		return nil, nil
	}

	var out []models.ShadowDetectionResult
	for key, records := range groups {
		if key == "" || len(records) < 2 {
			continue
		}

		presence, err := c.presenceByLocation(ctx, records)
		if err != nil {
			return nil, err
		}

		counts := make([]float64, 0, len(presence))
		seenAt := 0
		for _, loc := range userLocs {
			if n := len(presence[loc.ID]); n > 0 {
				counts = append(counts, float64(n))
				seenAt++
			}
		}
		if seenAt == 0 {
			continue
		}

		coverage := float64(seenAt) / float64(len(userLocs))
		persistence := (1 / (1 + variance(counts))) * specificity(records) * coverage
		rotation := c.HandoffScore(records)
		combined := persistence*shadowWeightPersistence + rotation*shadowWeightRotation
		if combined < c.cfg.ShadowMinCombined {
			continue
		}

		rep := representative(records)
		if err := c.linkToRepresentative(ctx, key, records, rep); err != nil {
			return nil, err
		}

		out = append(out, models.ShadowDetectionResult{
			Device:        rep,
			ShadowKey:     key,
			Persistence:   persistence,
			Rotation:      rotation,
			Combined:      combined,
			LocationCount: seenAt,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Combined > out[j].Combined })
	return out, nil
}

// presenceByLocation maps location id -> set of device ids from this group
// sighted there.
func (c *Correlator) presenceByLocation(ctx context.Context, records []models.DeviceRecord) (map[string]map[string]struct{}, error) {
	presence := make(map[string]map[string]struct{})
	for _, rec := range records {
		locs, err := c.locations.ForDevice(ctx, rec.ID)
		if err != nil {
			return nil, fmt.Errorf("locations for %s: %w", rec.ID, err)
		}
		for _, l := range locs {
			if presence[l.ID] == nil {
				presence[l.ID] = make(map[string]struct{})
			}
			presence[l.ID][rec.ID] = struct{}{}
		}
	}
	return presence, nil
}

// specificity grades how collision-resistant the group's fingerprint is.
// Fingerprint confidence already encodes how many components built the
// key, so the strongest confidence in the group serves directly.
func specificity(records []models.DeviceRecord) float64 {
	best := 0.0
	for _, r := range records {
		if r.FingerprintConf > best {
			best = r.FingerprintConf
		}
	}
	return best
}

// representative picks the record with the most recent sighting, ties
// broken by strongest observed signal.
func representative(records []models.DeviceRecord) models.DeviceRecord {
	rep := records[0]
	for _, r := range records[1:] {
		if r.LastSeen.After(rep.LastSeen) {
			rep = r
		} else if r.LastSeen.Equal(rep.LastSeen) && r.HighestRSSI > rep.HighestRSSI {
			rep = r
		}
	}
	return rep
}

func (c *Correlator) linkToRepresentative(ctx context.Context, key string, records []models.DeviceRecord, rep models.DeviceRecord) error {
	for _, r := range records {
		if r.ID == rep.ID {
			continue
		}
		if r.LinkedDeviceID == rep.ID {
			continue // already flattened
		}
		strength := models.LinkWeak
		if r.FingerprintConf >= 0.9 {
			strength = models.LinkStrong
		}
		req := models.LinkRequest{
			DeviceID:       r.ID,
			LinkedDeviceID: rep.ID,
			Strength:       strength,
			Reason:         fmt.Sprintf("shared fingerprint %s", key),
		}
		if err := c.devices.Link(ctx, req); err != nil {
			return fmt.Errorf("link %s -> %s: %w", r.ID, rep.ID, err)
		}
		if c.log != nil {
			c.log.Debug("linked rotating address",
				applogger.String("device", r.ID),
				applogger.String("representative", rep.ID),
				applogger.String("strength", string(strength)),
			)
		}
	}
	return nil
}
