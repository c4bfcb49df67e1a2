// Package bench runs a JSON scenario file against the search cycle engine
// N times per scenario and summarizes latency, throughput, and hit-rate.
// It reports per-scenario mean latency, throughput, and success rate
// alongside the run's totals.
package bench

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/cyclegrep/cyclegrep/internal/engine"
)

// Scenario is one named benchmark case read from the scenario file.
type Scenario struct {
	Name        string       `json:"name"`
	Path        string       `json:"path"`
	Symbol      string       `json:"symbol"`
	Language    string       `json:"language,omitempty"`
	Expected    *Expectation `json:"expected,omitempty"`
	EnableIndex *bool        `json:"enable_index,omitempty"`
	EnableRga   *bool        `json:"enable_rga,omitempty"`
	CacheDir    string       `json:"cache_dir,omitempty"`
	LogDir      string       `json:"log_dir,omitempty"`
	IndexDir    string       `json:"index_dir,omitempty"`
	Concurrency int          `json:"concurrency,omitempty"`
	TimeoutS    int          `json:"timeout_s,omitempty"`
	MaxMatches  int          `json:"max_matches,omitempty"`
}

// Expectation describes the hit a scenario's top results must contain to
// count as a success.
type Expectation struct {
	Path string `json:"path"`
	Line int    `json:"line,omitempty"`
	TopN int    `json:"top_n,omitempty"`
}

// ScenarioReport is the per-scenario result of running Run.
type ScenarioReport struct {
	Name           string             `json:"name"`
	Symbol         string             `json:"symbol"`
	Iterations     int                `json:"iterations"`
	MeanLatencyMS  float64            `json:"mean_latency_ms"`
	ThroughputQPS  float64            `json:"throughput_qps"`
	SuccessRate    float64            `json:"success_rate"`
	Hits           int                `json:"hits"`
	Expected       *Expectation       `json:"expected,omitempty"`
	LatestTopHits  []engine.TopHit    `json:"latest_top_hits"`
}

// Totals aggregates every scenario's iterations into one summary.
type Totals struct {
	TotalIterations int     `json:"total_iterations"`
	TotalHits       int     `json:"total_hits"`
	MeanLatencyMS   float64 `json:"mean_latency_ms"`
	ThroughputQPS   float64 `json:"throughput_qps"`
	SuccessRate     float64 `json:"success_rate"`
}

// Summary is the terminal report of one benchmark run.
type Summary struct {
	Scenarios []ScenarioReport `json:"scenarios"`
	Totals    Totals           `json:"totals"`
}

// Options configures a benchmark run's defaults, overridden per-scenario
// where the scenario specifies a value.
type Options struct {
	Iterations  int
	CacheDir    string
	LogDir      string
	EnableIndex bool
	EnableRga   bool
	UseFd       bool
	UseAstGrep  bool
}

// LoadScenarios reads and parses a scenario file.
func LoadScenarios(path string) ([]Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read benchmark scenarios from %q: %w", path, err)
	}
	var scenarios []Scenario
	if err := json.Unmarshal(raw, &scenarios); err != nil {
		return nil, fmt.Errorf("parse benchmark scenarios in %q: %w", path, err)
	}
	return scenarios, nil
}

// Run executes every scenario opts.Iterations times and returns the
// aggregated summary.
func Run(ctx context.Context, cwd string, scenarios []Scenario, opts Options, log zerolog.Logger) (*Summary, error) {
	iterations := opts.Iterations
	if iterations < 1 {
		iterations = 1
	}

	var reports []ScenarioReport
	var totalElapsed time.Duration
	var totalIterations, totalHits int

	for _, scenario := range scenarios {
		repoRoot, err := resolvePath(cwd, scenario.Path)
		if err != nil {
			return nil, err
		}

		var latencies []float64
		hits := 0
		var latestTopHits []engine.TopHit

		for i := 0; i < iterations; i++ {
			req := buildRequest(repoRoot, scenario, opts)

			start := time.Now()
			eng, err := engine.NewEngine(req, log)
			if err != nil {
				return nil, fmt.Errorf("scenario %q: %w", scenario.Name, err)
			}
			summary, err := eng.RunCycle(ctx)
			eng.Close()
			if err != nil {
				return nil, fmt.Errorf("scenario %q: %w", scenario.Name, err)
			}
			elapsed := time.Since(start)

			latencies = append(latencies, elapsed.Seconds()*1000.0)
			totalElapsed += elapsed
			totalIterations++

			if matchesExpectation(summary, scenario) {
				hits++
				totalHits++
			}
			latestTopHits = summary.TopHits
		}

		meanLatency := mean(latencies)
		successRate := 0.0
		if len(latencies) > 0 {
			successRate = float64(hits) / float64(len(latencies))
		}
		throughput := 0.0
		if meanLatency > 0 {
			throughput = 1000.0 / meanLatency
		}

		reports = append(reports, ScenarioReport{
			Name:          scenario.Name,
			Symbol:        scenario.Symbol,
			Iterations:    len(latencies),
			MeanLatencyMS: round2(meanLatency),
			ThroughputQPS: round2(throughput),
			SuccessRate:   round2(successRate),
			Hits:          hits,
			Expected:      scenario.Expected,
			LatestTopHits: latestTopHits,
		})
	}

	overallMean := 0.0
	overallQPS := 0.0
	overallSuccess := 0.0
	if totalIterations > 0 {
		overallMean = (totalElapsed.Seconds() * 1000.0) / float64(totalIterations)
		overallSuccess = float64(totalHits) / float64(totalIterations)
	}
	if totalElapsed > 0 {
		overallQPS = float64(totalIterations) / totalElapsed.Seconds()
	}

	return &Summary{
		Scenarios: reports,
		Totals: Totals{
			TotalIterations: totalIterations,
			TotalHits:       totalHits,
			MeanLatencyMS:   round2(overallMean),
			ThroughputQPS:   round2(overallQPS),
			SuccessRate:     round2(overallSuccess),
		},
	}, nil
}

// AppendJSONLine appends summary as one JSON line to path, creating parent
// directories and the file as needed.
func AppendJSONLine(path string, summary *Summary) error {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	line, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	line = append(line, '\n')

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(line)
	return err
}

func buildRequest(repoRoot string, scenario Scenario, opts Options) engine.Request {
	enableIndex := opts.EnableIndex
	if scenario.EnableIndex != nil {
		enableIndex = *scenario.EnableIndex
	}
	enableRga := opts.EnableRga
	if scenario.EnableRga != nil {
		enableRga = *scenario.EnableRga
	}

	indexDir := scenario.IndexDir
	if indexDir == "" {
		if opts.CacheDir != "" {
			indexDir = filepath.Join(opts.CacheDir, "index")
		} else {
			indexDir = filepath.Join(repoRoot, ".cyclegrep-index")
		}
	}

	cacheDir := scenario.CacheDir
	if cacheDir == "" {
		cacheDir = opts.CacheDir
	}

	logDir := scenario.LogDir
	if logDir == "" {
		logDir = opts.LogDir
	}

	timeoutS := scenario.TimeoutS
	if timeoutS <= 0 {
		timeoutS = 3
	}
	maxMatches := scenario.MaxMatches
	if maxMatches <= 0 {
		maxMatches = 20
	}
	concurrency := scenario.Concurrency
	if concurrency <= 0 {
		concurrency = 8
	}

	return engine.Request{
		Symbol:      scenario.Symbol,
		Language:    scenario.Language,
		Root:        repoRoot,
		Timeout:     time.Duration(timeoutS) * time.Second,
		MaxMatches:  maxMatches,
		Concurrency: concurrency,
		EnableIndex: enableIndex,
		EnableRga:   enableRga,
		UseFd:       opts.UseFd,
		UseAstGrep:  opts.UseAstGrep,
		IndexDir:    indexDir,
		CacheDir:    cacheDir,
		LogDir:      logDir,
	}
}

func resolvePath(base, path string) (string, error) {
	joined := path
	if !filepath.IsAbs(path) {
		joined = filepath.Join(base, path)
	}
	abs, err := filepath.Abs(joined)
	if err != nil {
		return "", fmt.Errorf("resolve path %q: %w", joined, err)
	}
	return abs, nil
}

func matchesExpectation(summary *engine.SearchSummary, scenario Scenario) bool {
	if scenario.Expected == nil {
		return len(summary.TopHits) > 0
	}
	topN := scenario.Expected.TopN
	if topN <= 0 {
		topN = 1
	}
	hits := summary.TopHits
	if len(hits) > topN {
		hits = hits[:topN]
	}
	for _, hit := range hits {
		if pathMatches(hit.Path, scenario.Expected.Path) && (scenario.Expected.Line == 0 || scenario.Expected.Line == hit.Line) {
			return true
		}
	}
	return false
}

func pathMatches(hitPath, expected string) bool {
	if hitPath == expected {
		return true
	}
	return strings.HasSuffix(filepath.ToSlash(hitPath), filepath.ToSlash(expected))
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
