package engine

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestScoreAndDedupMergesByPathLineKeepsBestScore(t *testing.T) {
	hits := []SearchHit{
		{Path: "a.go", Line: 10, Score: 0.5, Origin: OriginRgGlobal},
		{Path: "a.go", Line: 10, Score: 0.9, Origin: OriginRgScoped},
		{Path: "b.go", Line: 4, Score: 0.4, Origin: OriginRgScoped},
	}
	cache := NewDedupCache()

	out := ScoreAndDedup(hits, nil, nil, cache)

	if len(out) != 2 {
		t.Fatalf("expected 2 merged hits, got %d: %+v", len(out), out)
	}
	if out[0].Path != "a.go" || out[0].Line != 10 {
		t.Fatalf("expected a.go:10 to rank first, got %+v", out[0])
	}
	if !cache.Contains(HitKey{Path: "a.go", Line: 10}) {
		t.Fatalf("expected surviving key to be inserted into the dedup cache")
	}
}

func TestScoreAndDedupSkipsAlreadySeenKeys(t *testing.T) {
	cache := NewDedupCache()
	cache.Insert(HitKey{Path: "a.go", Line: 10})

	out := ScoreAndDedup([]SearchHit{{Path: "a.go", Line: 10, Score: 1}}, nil, nil, cache)

	if len(out) != 0 {
		t.Fatalf("expected the already-seen key to be filtered out, got %+v", out)
	}
}

func TestScoreAndDedupAppliesDiscoverAndAstBonuses(t *testing.T) {
	hits := []SearchHit{
		{Path: "a.go", Line: 1, Score: 0.0, Origin: OriginRgGlobal},
		{Path: "b.go", Line: 2, Score: 0.0, Origin: OriginRgIndexed},
	}
	discoverSet := map[string]bool{"a.go": true}
	astMatches := []AstHitRef{{Path: "a.go", Line: 1}}

	out := ScoreAndDedup(hits, discoverSet, astMatches, NewDedupCache())

	want := map[HitKey]struct {
		score  float64
		origin Origin
	}{
		{Path: "a.go", Line: 1}: {score: 0.65, origin: OriginAstGrep}, // +0.2 discover, -0.05 rg-global, +0.5 ast
		{Path: "b.go", Line: 2}: {score: 0.1, origin: OriginRgIndexed},
	}
	for _, h := range out {
		w, ok := want[h.Key()]
		if !ok {
			t.Fatalf("unexpected hit %+v", h)
		}
		if math.Abs(h.Score-w.score) > 1e-9 {
			t.Errorf("hit %v: score = %v, want %v", h.Key(), h.Score, w.score)
		}
		if h.Origin != w.origin {
			t.Errorf("hit %v: origin = %v, want %v", h.Key(), h.Origin, w.origin)
		}
	}
}

func TestScoreLessTreatsNaNAsEqual(t *testing.T) {
	nan := math.NaN()
	if scoreLess(nan, 1.0) {
		t.Errorf("scoreLess(NaN, 1.0) = true, want false")
	}
	if scoreLess(1.0, nan) {
		t.Errorf("scoreLess(1.0, NaN) = true, want false")
	}
	if !scoreLess(1.0, 2.0) {
		t.Errorf("scoreLess(1.0, 2.0) = false, want true")
	}
}

func TestComputeMetricsEmptyHitsIsAllZero(t *testing.T) {
	got := ComputeMetrics(nil, nil, nil)
	want := SearchMetrics{}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ComputeMetrics(nil) mismatch (-want +got):\n%s", diff)
	}
}

func TestComputeMetricsRewardsPrecisionAndClustering(t *testing.T) {
	hits := []SearchHit{
		{Path: "a.go", Line: 10},
		{Path: "a.go", Line: 11},
	}
	astMatches := []AstHitRef{{Path: "a.go", Line: 10}, {Path: "a.go", Line: 11}}
	fdSet := map[string]bool{"a.go": true}

	got := ComputeMetrics(hits, astMatches, fdSet)

	if got.Precision != 1.0 {
		t.Errorf("Precision = %v, want 1.0 (every hit ast-confirmed)", got.Precision)
	}
	if got.Reward <= 0 {
		t.Errorf("Reward = %v, want > 0", got.Reward)
	}
}

func TestComputeMetricsPrecisionUsesAstSetCardinality(t *testing.T) {
	hits := []SearchHit{
		{Path: "a.go", Line: 10},
		{Path: "a.go", Line: 11},
	}
	// One ast match lands on a line outside hits entirely; it still counts
	// toward the ast set's size, not just its overlap with hits.
	astMatches := []AstHitRef{{Path: "a.go", Line: 10}, {Path: "b.go", Line: 99}}

	got := ComputeMetrics(hits, astMatches, nil)

	if got.Precision != 1.0 {
		t.Errorf("Precision = %v, want 1.0 (ast set has 2 members, 2 hits)", got.Precision)
	}
}
