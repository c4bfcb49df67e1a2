package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cyclegrep/cyclegrep/internal/index"
	"github.com/cyclegrep/cyclegrep/internal/telemetry"
	"github.com/cyclegrep/cyclegrep/internal/tools"
)

// Engine owns the per-process tool-adapter handles, the hint store, and the
// dedup cache for the lifetime of one engine instance. Each cycle borrows
// them mutably; hits move through the pipeline by value.
type Engine struct {
	root        string
	symbol      string
	language    string
	langTokens  LanguageTokens
	maxMatches  int
	logDir      string
	cacheDir    string
	indexDir    string
	useIndex    bool
	useRga      bool
	useFd       bool
	useAst      bool

	fd  *tools.FdAdapter
	rg  *tools.RipgrepAdapter
	rga *tools.RgaAdapter
	ast *tools.AstGrepAdapter
	idx index.Index

	hints      *HintStore
	dedupCache *DedupCache
	rewardTotal float64

	log zerolog.Logger
}

// NewEngine constructs an engine for req. It ensures the cache directory
// exists (and the index directory, when the index is enabled) and loads the
// on-disk hint store.
func NewEngine(req Request, log zerolog.Logger) (*Engine, error) {
	root := req.Root
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve current directory: %w", err)
		}
		root = wd
	}
	canonical, err := filepath.EvalSymlinks(root)
	if err == nil {
		root = canonical
	}
	root, err = filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("canonicalize root %q: %w", root, err)
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	maxMatches := req.MaxMatches
	if maxMatches < 1 {
		maxMatches = 20
	}

	cacheDir := req.CacheDir
	if cacheDir == "" {
		cacheDir = filepath.Join(root, ".cyclegrep-cache")
	}
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	indexDir := req.IndexDir
	if indexDir == "" {
		indexDir = filepath.Join(root, ".cyclegrep-index")
	}
	if req.EnableIndex {
		if err := os.MkdirAll(indexDir, 0o755); err != nil {
			return nil, fmt.Errorf("create index dir: %w", err)
		}
	}

	langTokens := NormalizeLanguageHint(req.Language)

	var fd *tools.FdAdapter
	if req.UseFd {
		fd = tools.NewFdAdapter(timeout, 200)
	}
	var ast *tools.AstGrepAdapter
	if req.UseAstGrep {
		ast = tools.NewAstGrepAdapter(timeout, maxMatches)
	}
	var rga *tools.RgaAdapter
	if req.EnableRga {
		rga = tools.NewRgaAdapter(timeout, maxMatches)
	}

	threads := req.Concurrency
	if threads < 1 {
		threads = 8
	}
	rg := tools.NewRipgrepAdapter(timeout, maxMatches, req.ContextBefore, req.ContextAfter, 200, threads)

	hints := LoadHintStore(cacheDir, log)

	return &Engine{
		root:        root,
		symbol:      req.Symbol,
		language:    req.Language,
		langTokens:  langTokens,
		maxMatches:  maxMatches,
		logDir:      req.LogDir,
		cacheDir:    cacheDir,
		indexDir:    indexDir,
		useIndex:    req.EnableIndex,
		useRga:      req.EnableRga,
		useFd:       req.UseFd,
		useAst:      req.UseAstGrep,
		fd:          fd,
		rg:          rg,
		rga:         rga,
		ast:         ast,
		hints:       hints,
		dedupCache:  NewDedupCache(),
		log:         log,
	}, nil
}

// Close releases resources held by the engine (the inverted index, if one
// was opened).
func (e *Engine) Close() {
	if e.idx != nil {
		_ = e.idx.Close()
	}
}

func elapsedMS(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}

// RunCycle drives one invocation of the five-stage pipeline and returns the
// terminal summary. A cycle is treated as infallible in normal operation:
// tool and state failures are recovered locally and only
// propagate as a logged warning.
func (e *Engine) RunCycle(ctx context.Context) (*SearchSummary, error) {
	cycleID := uuid.NewString()
	e.log.Info().Str("cycle_id", cycleID).Str("symbol", e.symbol).Msg("search_cycle_start")

	rewriter := NewQueryRewriter(Symbol(e.symbol).Trim(), e.langTokens)
	rewrites := rewriter.Build()

	if summary := e.tryFastPath(ctx, rewrites); summary != nil {
		e.logSummary(summary)
		return summary, nil
	}

	var stats StageStats

	discoverStart := time.Now()
	discoverCandidates := e.discover(ctx)
	stats.DiscoverMS = elapsedMS(discoverStart)
	stats.DiscoverCandidates = len(discoverCandidates)
	telemetry.RecordStageLatency("discover", stats.DiscoverMS)
	discoverSet := make(map[string]bool, len(discoverCandidates))
	for _, p := range discoverCandidates {
		discoverSet[p] = true
	}

	probeStart := time.Now()
	hits := e.probe(ctx, rewrites, discoverCandidates, OriginRgScoped)
	stats.ProbeMS = elapsedMS(probeStart)
	stats.ProbeHits = len(hits)
	telemetry.RecordStageLatency("probe", stats.ProbeMS)

	if len(hits) == 0 {
		escalateStart := time.Now()
		hits = e.probe(ctx, rewrites, nil, OriginRgGlobal)
		stats.EscalateMS = elapsedMS(escalateStart)
		stats.EscalateHits = len(hits)
		telemetry.RecordStageLatency("escalate", stats.EscalateMS)
	}

	if len(hits) == 0 && e.useIndex {
		indexStart := time.Now()
		candidates := e.indexCandidates(ctx)
		stats.IndexCandidates = len(candidates)
		if len(candidates) > 0 {
			indexHits := e.probe(ctx, rewrites, candidates, OriginRgIndexed)
			stats.IndexProbeHits = len(indexHits)
			hits = append(hits, indexHits...)
		}
		stats.IndexMS = elapsedMS(indexStart)
		telemetry.RecordStageLatency("index", stats.IndexMS)
	}

	if len(hits) == 0 && e.useRga && e.rga != nil {
		rgaStart := time.Now()
		telemetry.RecordToolInvocation("rga")
		matches, err := e.rga.Search(ctx, e.root, e.symbol)
		if err != nil {
			e.log.Warn().Err(err).Msg("rga search failed")
		} else {
			telemetry.RecordToolResults("rga", len(matches))
			stats.RgaHits = len(matches)
			for _, m := range matches {
				hits = append(hits, e.hitFromRga(m))
			}
		}
		stats.RgaMS = elapsedMS(rgaStart)
		telemetry.RecordStageLatency("rga", stats.RgaMS)
	}

	disambiguateStart := time.Now()
	astScope := distinctPaths(hits)
	astMatches := e.disambiguate(ctx, astScope)
	stats.DisambiguateMS = elapsedMS(disambiguateStart)
	stats.AstMatches = len(astMatches)
	telemetry.RecordStageLatency("disambiguate", stats.DisambiguateMS)

	verifyStart := time.Now()
	outcome := e.verify(hits, astMatches, discoverSet, discoverCandidates)
	stats.VerifyMS = elapsedMS(verifyStart)
	telemetry.RecordStageLatency("verify", stats.VerifyMS)

	stats.Precision = outcome.metrics.Precision
	stats.Density = outcome.metrics.Density
	stats.Clustering = outcome.metrics.ClusterScore
	stats.Reward = outcome.metrics.Reward
	stats.CycleLatencyMS = stats.DiscoverMS + stats.ProbeMS + stats.EscalateMS +
		stats.IndexMS + stats.RgaMS + stats.DisambiguateMS + stats.VerifyMS
	stats.Languages = languageStats(discoverCandidates, outcome.hits, stats.CycleLatencyMS)

	e.rewardTotal += outcome.metrics.Reward
	e.hints.Save()

	summary := &SearchSummary{
		Cycle:        1,
		Symbol:       e.symbol,
		Queries:      rewrites,
		TopHits:      outcome.topHits,
		Deduped:      outcome.dedupCount,
		NextActions:  outcome.nextActions,
		FdCandidates: pathsOrNil(discoverCandidates),
		AstHits:      outcome.astHits,
		StageStats:   stats,
		Reward:       round2(e.rewardTotal),
	}

	telemetry.RecordReward(outcome.metrics.Reward)
	telemetry.RecordCycleLatency(stats.CycleLatencyMS)

	e.log.Info().
		Str("cycle_id", cycleID).
		Str("symbol", e.symbol).
		Int64("latency_ms", stats.CycleLatencyMS).
		Float64("reward", summary.Reward).
		Int("deduped", summary.Deduped).
		Msg("search_cycle_complete")

	e.logSummary(summary)
	return summary, nil
}

func pathsOrNil(p []string) []string {
	if len(p) == 0 {
		return nil
	}
	return p
}

// tryFastPath runs the single-stage shortcut for literal identifiers
// for literal identifiers. Returns nil when the fast path does not apply
// or yields no matches, signalling the caller to fall through to the full
// pipeline.
func (e *Engine) tryFastPath(ctx context.Context, rewrites []string) *SearchSummary {
	if !Symbol(e.symbol).IsLiteral() {
		return nil
	}

	telemetry.RecordToolInvocation("rg")
	probeStart := time.Now()
	matches, err := e.rg.SearchUnion(ctx, e.root, rewrites, nil)
	if err != nil {
		e.log.Warn().Err(err).Msg("fast-path ripgrep failed")
		return nil
	}
	telemetry.RecordToolResults("rg", len(matches))
	if len(matches) == 0 {
		return nil
	}
	probeMS := elapsedMS(probeStart)
	telemetry.RecordStageLatency("probe", probeMS)

	hits := make([]SearchHit, 0, len(matches))
	for _, m := range matches {
		hits = append(hits, e.hitFromRipgrep(m, OriginRgGlobal))
	}

	verifyStart := time.Now()
	outcome := e.verify(hits, nil, nil, nil)
	verifyMS := elapsedMS(verifyStart)
	telemetry.RecordStageLatency("verify", verifyMS)

	stats := StageStats{
		ProbeMS:        probeMS,
		ProbeHits:      len(hits),
		VerifyMS:       verifyMS,
		CycleLatencyMS: probeMS + verifyMS,
		Precision:      outcome.metrics.Precision,
		Density:        outcome.metrics.Density,
		Clustering:     outcome.metrics.ClusterScore,
		Reward:         outcome.metrics.Reward,
	}
	// No discover stage runs here, so per-language candidate counts are
	// zero; per-language hit counts and latency shares still populate.
	stats.Languages = languageStats(nil, outcome.hits, stats.CycleLatencyMS)

	e.rewardTotal += outcome.metrics.Reward
	e.hints.Save()

	summary := &SearchSummary{
		Cycle:       1,
		Symbol:      e.symbol,
		Queries:     rewrites,
		TopHits:     outcome.topHits,
		Deduped:     outcome.dedupCount,
		NextActions: outcome.nextActions,
		StageStats:  stats,
		Reward:      round2(e.rewardTotal),
	}

	telemetry.RecordReward(outcome.metrics.Reward)
	telemetry.RecordCycleLatency(stats.CycleLatencyMS)
	return summary
}

// languageExtensions maps a normalized language token to the set of file
// extensions the discover filter admits.
func languageExtensions(tokens LanguageTokens) map[string]bool {
	exts := map[string]bool{}
	for _, t := range tokens {
		switch t {
		case "rust":
			exts["rs"] = true
		case "swift":
			exts["swift"] = true
		case "ts":
			exts["ts"] = true
			exts["tsx"] = true
		case "tsx":
			exts["tsx"] = true
		case "js":
			exts["js"] = true
			exts["jsx"] = true
		case "jsx":
			exts["jsx"] = true
		case "kt", "kts":
			exts["kt"] = true
			exts["kts"] = true
		case "py":
			exts["py"] = true
		}
	}
	return exts
}

func passesExtensionFilter(path string, exts map[string]bool) bool {
	if len(exts) == 0 {
		return true
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	return exts[ext]
}

// discover assembles the discovery candidate set.
func (e *Engine) discover(ctx context.Context) []string {
	exts := languageExtensions(e.langTokens)

	var candidates []string
	seen := map[string]bool{}
	add := func(p string) {
		norm := e.normalize(p)
		if !passesExtensionFilter(norm, exts) || seen[norm] {
			return
		}
		seen[norm] = true
		candidates = append(candidates, norm)
	}

	if e.fd != nil {
		telemetry.RecordToolInvocation("fd")
		results, err := e.fd.Run(ctx, e.root, e.symbol)
		if err != nil {
			e.log.Warn().Err(err).Msg("fd invocation failed")
		} else {
			telemetry.RecordToolResults("fd", len(results))
			for _, p := range results {
				add(p)
			}
		}
	}

	symbolHints := e.hints.HintsForSymbol(e.root, e.symbol)
	telemetry.RecordCacheHits("symbol_hints", len(symbolHints))
	for _, p := range symbolHints {
		add(p)
	}

	dirHints := e.hints.TopDirectories(e.root, 3)
	telemetry.RecordCacheHits("directory_hints", len(dirHints))
	for _, dir := range dirHints {
		full := filepath.Join(e.root, dir)
		entries, err := os.ReadDir(full)
		if err != nil {
			e.log.Warn().Err(err).Str("dir", full).Msg("failed to read cached directory")
			continue
		}
		taken := 0
		for _, entry := range entries {
			if taken >= 5 {
				break
			}
			if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
				continue
			}
			add(filepath.Join(full, entry.Name()))
			taken++
		}
	}

	if e.langTokens.Has("swift") {
		pkgSwift := filepath.Join(e.root, "Package.swift")
		if _, err := os.Stat(pkgSwift); err == nil {
			add(pkgSwift)
		}
		sourcesDir := filepath.Join(e.root, "Sources")
		addSwiftSourcesFiles(sourcesDir, add, 20)
	}

	return candidates
}

func addSwiftSourcesFiles(sourcesDir string, add func(string), limit int) {
	taken := 0
	level1, err := os.ReadDir(sourcesDir)
	if err != nil {
		return
	}
	for _, l1 := range level1 {
		if taken >= limit {
			return
		}
		p1 := filepath.Join(sourcesDir, l1.Name())
		if !l1.IsDir() {
			if !strings.HasPrefix(l1.Name(), ".") {
				add(p1)
				taken++
			}
			continue
		}
		level2, err := os.ReadDir(p1)
		if err != nil {
			continue
		}
		for _, l2 := range level2 {
			if taken >= limit {
				break
			}
			if l2.IsDir() || strings.HasPrefix(l2.Name(), ".") {
				continue
			}
			add(filepath.Join(p1, l2.Name()))
			taken++
		}
	}
}

// normalize canonicalizes p (if possible) and strips the root prefix,
// so downstream hits always carry a root-relative path.
func (e *Engine) normalize(p string) string {
	abs := p
	if !filepath.IsAbs(p) {
		abs = filepath.Join(e.root, p)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	rel, err := filepath.Rel(e.root, abs)
	if err != nil {
		return abs
	}
	return rel
}

func (e *Engine) probe(ctx context.Context, rewrites []string, scope []string, origin Origin) []SearchHit {
	if len(rewrites) == 0 {
		return nil
	}
	telemetry.RecordToolInvocation("rg")
	matches, err := e.rg.SearchUnion(ctx, e.root, rewrites, scope)
	if err != nil {
		e.log.Warn().Err(err).Msg("ripgrep invocation failed")
		return nil
	}
	telemetry.RecordToolResults("rg", len(matches))
	hits := make([]SearchHit, 0, len(matches))
	for _, m := range matches {
		hits = append(hits, e.hitFromRipgrep(m, origin))
	}
	return hits
}

func (e *Engine) indexCandidates(ctx context.Context) []string {
	if e.idx == nil {
		exts := languageExtensions(e.langTokens)
		extList := make([]string, 0, len(exts))
		for ext := range exts {
			extList = append(extList, ext)
		}
		idx, err := index.BuildOrOpen(e.root, e.indexDir, extList)
		if err != nil {
			e.log.Warn().Err(err).Msg("failed to initialize index")
			return nil
		}
		e.idx = idx
	}

	telemetry.RecordToolInvocation("index")
	results, err := e.idx.Search(ctx, e.symbol, e.maxMatches)
	if err != nil {
		e.log.Warn().Err(err).Msg("index search failed")
		return nil
	}
	telemetry.RecordToolResults("index", len(results))
	return results
}

func (e *Engine) disambiguate(ctx context.Context, scope []string) []AstHitRef {
	if e.ast == nil {
		return nil
	}
	telemetry.RecordToolInvocation("ast-grep")
	matches, patternErrs, err := e.ast.SearchIdentifier(ctx, e.root, e.symbol, []string(e.langTokens), scope)
	if err != nil {
		e.log.Warn().Err(err).Msg("ast-grep invocation failed")
		return nil
	}
	for _, perr := range patternErrs {
		e.log.Warn().Err(perr).Msg("ast-grep pattern skipped")
	}
	telemetry.RecordToolResults("ast-grep", len(matches))
	out := make([]AstHitRef, 0, len(matches))
	for _, m := range matches {
		out = append(out, AstHitRef{Path: e.normalize(m.Path), Line: m.Line + 1})
	}
	return out
}

func distinctPaths(hits []SearchHit) []string {
	seen := map[string]bool{}
	var out []string
	for _, h := range hits {
		if seen[h.Path] {
			continue
		}
		seen[h.Path] = true
		out = append(out, h.Path)
	}
	return out
}

func (e *Engine) hitFromRipgrep(m tools.RipgrepMatch, origin Origin) SearchHit {
	return SearchHit{
		Path:    e.normalize(m.Path),
		Line:    m.LineNumber,
		Snippet: m.Lines,
		Score:   1.0,
		Origin:  origin,
	}
}

func (e *Engine) hitFromRga(m tools.RgaMatch) SearchHit {
	return SearchHit{
		Path:    e.normalize(m.Path),
		Line:    m.LineNumber,
		Snippet: m.Lines,
		Score:   0.9,
		Origin:  OriginRga,
	}
}

type verificationOutcome struct {
	topHits     []TopHit
	nextActions []string
	dedupCount  int
	astHits     []AstHitRef
	metrics     SearchMetrics
	hits        []SearchHit
}

func (e *Engine) verify(hits []SearchHit, astMatches []AstHitRef, discoverSet map[string]bool, fdCandidates []string) verificationOutcome {
	remaining := ScoreAndDedup(hits, discoverSet, astMatches, e.dedupCache)
	e.hints.Observe(e.symbol, remaining)

	topN := remaining
	if len(topN) > 5 {
		topN = topN[:5]
	}
	topHits := make([]TopHit, 0, len(topN))
	nextActions := make([]string, 0, len(topN))
	for _, h := range topN {
		snippet := FormatSnippet(e.root, h.Path, h.Line, h.Snippet)
		topHits = append(topHits, TopHit{
			Path:        h.Path,
			Line:        h.Line,
			Score:       round2(h.Score),
			Origin:      string(h.Origin),
			OriginLabel: formatOriginLabel(h.Origin, h.Path),
			Snippet:     snippet,
		})
		nextActions = append(nextActions, fmt.Sprintf("inspect %s:%d", h.Path, h.Line))
	}

	fdSet := make(map[string]bool, len(fdCandidates))
	for _, p := range fdCandidates {
		fdSet[p] = true
	}
	metrics := ComputeMetrics(remaining, astMatches, fdSet)

	return verificationOutcome{
		topHits:     topHits,
		nextActions: nextActions,
		dedupCount:  len(remaining),
		astHits:     astMatches,
		metrics:     metrics,
		hits:        remaining,
	}
}

var extensionLanguageLabels = map[string]string{
	"rs":   "rust",
	"swift": "swift",
	"ts":   "typescript",
	"tsx":  "tsx",
	"js":   "javascript",
	"jsx":  "jsx",
	"py":   "python",
	"kt":   "kotlin",
	"kts":  "kotlin",
}

func formatOriginLabel(origin Origin, path string) string {
	if lang, ok := languageForPath(path); ok {
		return fmt.Sprintf("%s [%s]", origin, lang)
	}
	return string(origin)
}

// languageForPath maps a file's extension to its display language name,
// independent of the normalized token names languageExtensions filters on.
func languageForPath(path string) (string, bool) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	lang, ok := extensionLanguageLabels[ext]
	return lang, ok
}

// languageStats breaks candidates and hits down per display language (by
// file extension) and divides the cycle's total latency evenly across every
// language actually touched, satisfying StageStats.Languages' candidate/hit
// counts and latency shares.
func languageStats(candidates []string, hits []SearchHit, cycleLatencyMS int64) []LangStat {
	langs := map[string]*LangStat{}
	var order []string
	touch := func(lang string) *LangStat {
		if ls, ok := langs[lang]; ok {
			return ls
		}
		ls := &LangStat{Language: lang}
		langs[lang] = ls
		order = append(order, lang)
		return ls
	}

	for _, p := range candidates {
		if lang, ok := languageForPath(p); ok {
			touch(lang).Candidate++
		}
	}
	for _, h := range hits {
		if lang, ok := languageForPath(h.Path); ok {
			touch(lang).Hits++
		}
	}
	if len(order) == 0 {
		return nil
	}

	share := cycleLatencyMS / int64(len(order))
	out := make([]LangStat, 0, len(order))
	for _, lang := range order {
		ls := *langs[lang]
		ls.LatencyMS = share
		out = append(out, ls)
	}
	return out
}

// logLine is the JSON-lines log record appended at cycle completion
// that feeds the on-disk cycle log.
type logLine struct {
	Timestamp  float64       `json:"timestamp"`
	Root       string        `json:"root"`
	Symbol     string        `json:"symbol"`
	UseIndex   bool          `json:"use_index"`
	UseRga     bool          `json:"use_rga"`
	UseFd      bool          `json:"use_fd"`
	UseAstGrep bool          `json:"use_ast_grep"`
	Status     string        `json:"status"`
	LatencyMS  int64         `json:"latency_ms"`
	Summary    *SearchSummary `json:"summary"`
}

func (e *Engine) logSummary(summary *SearchSummary) {
	if e.logDir == "" {
		return
	}
	if err := os.MkdirAll(e.logDir, 0o755); err != nil {
		e.log.Warn().Err(err).Str("dir", e.logDir).Msg("failed to create log directory")
		return
	}

	line := logLine{
		Timestamp:  float64(time.Now().UnixNano()) / 1e9,
		Root:       e.root,
		Symbol:     e.symbol,
		UseIndex:   e.useIndex,
		UseRga:     e.useRga,
		UseFd:      e.useFd,
		UseAstGrep: e.useAst,
		Status:     "ok",
		LatencyMS:  summary.StageStats.CycleLatencyMS,
		Summary:    summary,
	}

	raw, err := json.Marshal(line)
	if err != nil {
		e.log.Warn().Err(err).Msg("failed to marshal log line")
		return
	}
	raw = append(raw, '\n')

	path := filepath.Join(e.logDir, "search.log.jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		e.log.Warn().Err(err).Str("path", path).Msg("failed to open log file")
		return
	}
	defer f.Close()
	if _, err := f.Write(raw); err != nil {
		e.log.Warn().Err(err).Str("path", path).Msg("failed to append log line")
	}
}
