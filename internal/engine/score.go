package engine

import (
	"math"
	"sort"
)

// astKey is the (normalized path, 1-based line) identity used to recognize
// an ast-grep-confirmed hit, built from match.Line+1.
type astKey = HitKey

// DedupCache is the set of (path, line) pairs already returned by earlier
// summaries on this engine instance.
type DedupCache struct {
	seen map[HitKey]bool
}

// NewDedupCache returns an empty cache.
func NewDedupCache() *DedupCache {
	return &DedupCache{seen: map[HitKey]bool{}}
}

// Contains reports whether key has already been returned.
func (c *DedupCache) Contains(key HitKey) bool {
	return c.seen[key]
}

// Insert records key as returned.
func (c *DedupCache) Insert(key HitKey) {
	c.seen[key] = true
}

// ScoreAndDedup applies origin/ast/discover-set adjustments to raw hits,
// merges by (path, line) keeping the best score, sorts descending, and
// filters out anything already present in the dedup cache. It returns
// the cycle's authoritative hit list and inserts the surviving keys into
// cache.
func ScoreAndDedup(hits []SearchHit, discoverSet map[string]bool, astMatches []AstHitRef, cache *DedupCache) []SearchHit {
	astSet := make(map[astKey]bool, len(astMatches))
	for _, m := range astMatches {
		astSet[HitKey{Path: m.Path, Line: m.Line}] = true
	}

	best := map[HitKey]SearchHit{}
	order := make([]HitKey, 0, len(hits))

	for _, h := range hits {
		key := h.Key()

		score := h.Score
		if discoverSet[h.Path] {
			score += 0.2
		}
		switch h.Origin {
		case OriginRgGlobal:
			score -= 0.05
		case OriginRgIndexed:
			score += 0.1
		case OriginRga:
			score -= 0.1
		}
		if astSet[key] {
			score += 0.5
			h.Origin = OriginAstGrep
		}
		h.Score = score

		if existing, ok := best[key]; ok {
			if h.Score > existing.Score {
				best[key] = h
			}
			continue
		}
		best[key] = h
		order = append(order, key)
	}

	merged := make([]SearchHit, 0, len(order))
	for _, key := range order {
		merged = append(merged, best[key])
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return scoreLess(merged[j].Score, merged[i].Score)
	})

	out := make([]SearchHit, 0, len(merged))
	for _, h := range merged {
		key := h.Key()
		if cache.Contains(key) {
			continue
		}
		cache.Insert(key)
		out = append(out, h)
	}
	return out
}

// scoreLess is a NaN-safe less-than: any comparison involving NaN is treated
// as equal (false), so sort never panics or misbehaves on a non-finite
// score.
func scoreLess(a, b float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return false
	}
	return a < b
}

// ComputeMetrics derives the retrieval-quality metrics for one cycle's
// surviving hits. Empty hits yields all zero.
func ComputeMetrics(hits []SearchHit, astMatches []AstHitRef, fdSet map[string]bool) SearchMetrics {
	if len(hits) == 0 {
		return SearchMetrics{}
	}

	astSet := make(map[astKey]bool, len(astMatches))
	for _, m := range astMatches {
		astSet[HitKey{Path: m.Path, Line: m.Line}] = true
	}
	precision := float64(len(astSet)) / float64(len(hits))

	distinctPaths := map[string]bool{}
	minLine, maxLine := hits[0].Line, hits[0].Line
	for _, h := range hits {
		distinctPaths[h.Path] = true
		if h.Line < minLine {
			minLine = h.Line
		}
		if h.Line > maxLine {
			maxLine = h.Line
		}
	}

	r := float64(len(hits)) / float64(len(distinctPaths))
	density := r / (r + 1)

	l := float64(maxLine-minLine) / float64(len(hits)+1)
	clusterScore := 1 / (1 + l)

	fdBonus := 0.0
	if len(fdSet) > 0 {
		numerator := len(hits)
		if numerator > len(fdSet) {
			numerator = len(fdSet)
		}
		fdBonus = float64(numerator) / float64(len(fdSet))
	}

	reward := 0.5*precision + 0.3*density + 0.15*clusterScore + 0.05*fdBonus

	return SearchMetrics{
		Precision:    round2(precision),
		Density:      round2(density),
		ClusterScore: round2(clusterScore),
		Reward:       round2(reward),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
