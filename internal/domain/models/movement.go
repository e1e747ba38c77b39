package models

// MovementAnalysis is the movement correlator's verdict for one device.
// When InsufficientData is set every score is zero and the result must not
// be read as a confident "low".
type MovementAnalysis struct {
	SyncScore        float64
	RouteOverlap     float64
	DwellMatch       float64
	TimeOfDayScore   float64
	Combined         float64
	ClusterCount     int
	Diversity        float64
	InsufficientData bool
}

// ScoreInput bundles everything the threat scorer needs for one device.
type ScoreInput struct {
	Device      DeviceRecord
	Locations   []Location
	Sightings   []SightingRecord
	Movement    MovementAnalysis
	MaxDistance float64
	AvgDistance float64
}
