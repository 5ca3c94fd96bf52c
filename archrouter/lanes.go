package archrouter

import (
	"math"
	"sort"

	"oss.terrastruct.com/archroute/archgraph"
)

// laneMergeThreshold is the coarser midline distance under which two lane
// groups with the same side pair are merged even though their quantized
// signatures differ.
const laneMergeThreshold = 24.

// assignLanes groups edges whose routes would visually overlap and spreads
// each group into parallel lanes. Grouping is two-phase: exact signature
// buckets first (side pair + quantized midline), then a coarser pairwise
// merge to catch near-miss buckets. Lane order within a group follows the
// endpoints' spatial order so parallel edges don't cross.
func assignLanes(plans []*plan, opts *Opts) {
	type sig struct {
		srcSide, dstSide archgraph.Side
		axisX            bool
		q                int
	}

	var lanePlans []*plan
	for _, pl := range plans {
		if pl.pat == patternCorner || pl.edge.SrcNode == pl.edge.DstNode {
			pl.edge.Lane = 0
			pl.edge.TotalLanes = 1
			continue
		}
		lanePlans = append(lanePlans, pl)
	}

	// phase 1: signature buckets
	bucketOf := make(map[sig]int)
	var buckets [][]*plan
	for _, pl := range lanePlans {
		s := sig{
			srcSide: pl.srcSide,
			dstSide: pl.dstSide,
			axisX:   pl.midAxisX,
			q:       int(math.Floor(pl.defaultMid / opts.LaneSpacing)),
		}
		idx, ok := bucketOf[s]
		if !ok {
			idx = len(buckets)
			bucketOf[s] = idx
			buckets = append(buckets, nil)
		}
		buckets[idx] = append(buckets[idx], pl)
	}

	// phase 2: merge buckets whose members nearly coincide
	group := make([]int, len(buckets))
	for i := range group {
		group[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		if group[i] != i {
			group[i] = find(group[i])
		}
		return group[i]
	}
	for i := 0; i < len(buckets); i++ {
		for j := i + 1; j < len(buckets); j++ {
			if find(i) == find(j) {
				continue
			}
			if bucketsOverlap(buckets[i], buckets[j]) {
				group[find(j)] = find(i)
			}
		}
	}

	merged := make(map[int][]*plan)
	var order []int
	for i, bucket := range buckets {
		root := find(i)
		if _, ok := merged[root]; !ok {
			order = append(order, root)
		}
		merged[root] = append(merged[root], bucket...)
	}

	for _, root := range order {
		members := merged[root]
		sort.SliceStable(members, func(i, j int) bool {
			a, b := members[i], members[j]
			if a.perpLo != b.perpLo {
				return a.perpLo < b.perpLo
			}
			if a.perpHi != b.perpHi {
				return a.perpHi < b.perpHi
			}
			return a.edge.ID < b.edge.ID
		})
		total := len(members)
		for lane, pl := range members {
			pl.edge.Lane = lane
			pl.edge.TotalLanes = total
			pl.laneOffset = (float64(lane) - float64(total-1)/2) * opts.LaneSpacing
		}
	}
}

// bucketsOverlap reports whether any cross pair of the two buckets has the
// same side pair, midlines within laneMergeThreshold, and overlapping
// perpendicular spans.
func bucketsOverlap(a, b []*plan) bool {
	for _, pa := range a {
		for _, pb := range b {
			if pa.srcSide != pb.srcSide || pa.dstSide != pb.dstSide || pa.midAxisX != pb.midAxisX {
				continue
			}
			if math.Abs(pa.defaultMid-pb.defaultMid) > laneMergeThreshold {
				continue
			}
			if pa.perpHi < pb.perpLo || pb.perpHi < pa.perpLo {
				continue
			}
			return true
		}
	}
	return false
}
