// Package engine implements the search cycle engine: the discover, probe,
// escalate, disambiguate, verify pipeline described by the project's design
// document. It composes the tool adapters in internal/tools with a
// persistent hint store, a query rewriter, a snippet formatter and a
// scoring/dedup stage to turn a symbol lookup into a ranked SearchSummary.
package engine

import "time"

// Origin identifies where a hit came from. Go has no sum types, so the
// ripgrep sub-variant (scoped/global/indexed) is folded into the same
// string space as the other tool origins rather than carried as a nested
// tag.
type Origin string

const (
	OriginRgScoped  Origin = "rg-scoped"
	OriginRgGlobal  Origin = "rg-global"
	OriginRgIndexed Origin = "rg-indexed"
	OriginAstGrep   Origin = "ast-grep"
	OriginRga       Origin = "rga"
)

// Symbol is the untrimmed request identifier. Trim() returns the form used
// for all downstream logic.
type Symbol string

// Trim returns the trimmed form of the symbol.
func (s Symbol) Trim() string {
	return trimSpace(string(s))
}

// IsLiteral reports whether the trimmed symbol consists only of ASCII
// alphanumerics or underscore, the predicate the fast path depends on.
func (s Symbol) IsLiteral() bool {
	trimmed := s.Trim()
	if trimmed == "" {
		return false
	}
	for _, r := range trimmed {
		if !isAlnumOrUnderscore(r) {
			return false
		}
	}
	return true
}

func isAlnumOrUnderscore(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r >= 'A' && r <= 'Z':
		return true
	case r >= '0' && r <= '9':
		return true
	case r == '_':
		return true
	default:
		return false
	}
}

func trimSpace(s string) string {
	start := 0
	end := len(s)
	for start < end && isSpace(s[start]) {
		start++
	}
	for end > start && isSpace(s[end-1]) {
		end--
	}
	return s[start:end]
}

func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	default:
		return false
	}
}

// SearchHit is one raw match produced by a tool adapter before scoring and
// dedup. Path is always relative to the search root.
type SearchHit struct {
	Path    string
	Line    int
	Snippet string
	Score   float64
	Origin  Origin
}

// Key returns the (path, line) identity used for deduplication.
func (h SearchHit) Key() HitKey {
	return HitKey{Path: h.Path, Line: h.Line}
}

// HitKey is the dedup/identity key for a SearchHit.
type HitKey struct {
	Path string
	Line int
}

// TopHit is the presentation form of a SearchHit.
type TopHit struct {
	Path        string  `json:"path"`
	Line        int     `json:"line"`
	Score       float64 `json:"score"`
	Origin      string  `json:"origin"`
	OriginLabel string  `json:"origin_label"`
	Snippet     string  `json:"snippet,omitempty"`
}

// SearchMetrics are retrieval-quality metrics in [0, 1].
type SearchMetrics struct {
	Precision    float64 `json:"precision"`
	Density      float64 `json:"density"`
	ClusterScore float64 `json:"cluster_score"`
	Reward       float64 `json:"reward"`
}

// StageStats carries per-stage hit counts and elapsed time, plus the
// cumulative metrics for the cycle. Zero-valued optional timing fields are
// omitted from JSON rather than serialized as zero.
type StageStats struct {
	DiscoverCandidates int           `json:"discover_candidates"`
	DiscoverMS         int64         `json:"discover_ms"`
	ProbeHits          int           `json:"probe_hits"`
	ProbeMS            int64         `json:"probe_ms"`
	EscalateHits       int           `json:"escalate_hits"`
	EscalateMS         int64         `json:"escalate_ms,omitempty"`
	IndexCandidates    int           `json:"index_candidates"`
	IndexProbeHits     int           `json:"index_probe_hits"`
	IndexMS            int64         `json:"index_ms,omitempty"`
	RgaHits            int           `json:"rga_hits"`
	RgaMS              int64         `json:"rga_ms,omitempty"`
	AstMatches         int           `json:"ast_matches"`
	DisambiguateMS     int64         `json:"disambiguate_ms"`
	VerifyMS           int64         `json:"verify_ms"`
	CycleLatencyMS     int64         `json:"cycle_latency_ms"`
	Precision          float64       `json:"precision"`
	Density            float64       `json:"density"`
	Clustering         float64       `json:"clustering"`
	Reward             float64       `json:"reward"`
	Languages          []LangStat    `json:"languages,omitempty"`
}

// LangStat is the per-language sub-accounting attached to StageStats.
type LangStat struct {
	Language  string `json:"language"`
	Candidate int    `json:"candidates"`
	Hits      int    `json:"hits"`
	LatencyMS int64  `json:"latency_ms"`
}

// SearchSummary is the terminal output of one cycle.
type SearchSummary struct {
	Cycle         int         `json:"cycle"`
	Symbol        string      `json:"symbol"`
	Queries       []string    `json:"queries"`
	TopHits       []TopHit    `json:"top_hits"`
	Deduped       int         `json:"deduped"`
	NextActions   []string    `json:"next_actions"`
	FdCandidates  []string    `json:"fd_candidates,omitempty"`
	AstHits       []AstHitRef `json:"ast_hits,omitempty"`
	StageStats    StageStats  `json:"stage_stats"`
	Reward        float64     `json:"reward"`
}

// AstHitRef is a (path, line) pair surfaced for matches ast-grep confirmed.
type AstHitRef struct {
	Path string `json:"path"`
	Line int    `json:"line"`
}

// Request describes one search cycle invocation.
type Request struct {
	Symbol         string
	Language       string
	Root           string
	Timeout        time.Duration
	MaxMatches     int
	Concurrency    int
	EnableIndex    bool
	EnableRga      bool
	UseFd          bool
	UseAstGrep     bool
	IndexDir       string
	CacheDir       string
	LogDir         string
	ContextBefore  int
	ContextAfter   int
	Body           bool
	ToolFlags      map[string]bool
}
