// Package archrouter computes obstacle-avoiding orthogonal edge routes:
// it picks which side of each node an edge attaches to, allocates discrete
// handle slots along that side, spreads overlapping parallel edges into
// lanes, and bends each route around sibling nodes.
//
// Nothing in this package returns an error. Every dead end in the search has
// a deterministic fallback: a route that overlaps an obstacle is a quality
// defect, a missing route is not an option.
package archrouter

// Opts are the routing tunables. The zero value is not usable; start from
// DefaultOpts.
type Opts struct {
	// HandlesPerSide is the number of discrete connection slots on each node side.
	HandlesPerSide int
	// LaneSpacing separates parallel edges sharing a corridor.
	LaneSpacing float64
	// ObstaclePadding is the clearance kept around sibling nodes.
	ObstaclePadding float64
	// ChamferSize is the 45° corner cut length.
	ChamferSize float64
	// MinGapWidth is the narrowest corridor between two obstacles worth
	// routing through.
	MinGapWidth float64

	// ScanStep and ScanLimit drive the last-resort linear midline scan.
	ScanStep  float64
	ScanLimit int
	// CollinearEps is the tolerance for waypoint dedup and collinearity pruning.
	CollinearEps float64
}

var DefaultOpts = Opts{
	HandlesPerSide:  10,
	LaneSpacing:     18,
	ObstaclePadding: 20,
	ChamferSize:     12,
	MinGapWidth:     40,
	ScanStep:        20,
	ScanLimit:       40,
	CollinearEps:    0.5,
}

// penalties for side-pair candidate scoring
const (
	obstaclePenalty   = 200.
	facingAwayPenalty = 1000.
)
