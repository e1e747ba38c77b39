package scoring

import (
	"fmt"
	"strings"

	"TagSentry/internal/domain/models"
	"TagSentry/pkg/util"
)

// Reason renders the plain-text explanation attached to a detection
// result. The caller owns any further presentation.
func Reason(in models.ScoreInput, score float64) string {
	level := models.LevelForScore(score)
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s followed you across %d locations over %s",
		level, in.Device.Label(), len(in.Locations),
		util.HumanDuration(in.Device.LastSeen.Sub(in.Device.FirstSeen)))
	if in.MaxDistance > 0 {
		fmt.Fprintf(&b, " (up to %s apart)", util.HumanDistance(in.MaxDistance))
	}
	if in.Device.FindMySeparated {
		b.WriteString(" - SEPARATED FROM OWNER")
	}
	return b.String()
}

// ShadowReason annotates a reason with the MAC-agnostic sub-scores.
func ShadowReason(in models.ScoreInput, score float64, shadow models.ShadowDetectionResult) string {
	return fmt.Sprintf("%s; rotating-address group %q (persistence %.2f, rotation %.2f)",
		Reason(in, score), shadow.ShadowKey, shadow.Persistence, shadow.Rotation)
}
