// Package telemetry wires the search engine's metrics plumbing: an
// OpenTelemetry meter backed by a Prometheus exporter, exposing counters for
// tool invocations/results/cache hits and histograms for reward and
// latency. Telemetry is a write-only sink from the engine's perspective;
// this package owns the exporter lifecycle and the Prometheus text
// rendering used by internal/httpapi's /metrics route.
package telemetry

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

const meterName = "cyclegrep"

type handles struct {
	toolInvocations metric.Int64Counter
	toolResults     metric.Int64Counter
	cacheHits       metric.Int64Counter
	reward          metric.Float64Histogram
	cycleLatency    metric.Float64Histogram
	stageLatency    metric.Float64Histogram
}

var (
	initOnce sync.Once
	initErr  error
	registry *prometheus.Registry
	m        *handles
	disabled bool
)

// Disable suppresses exporter initialization. The serve subcommand's
// --disable-telemetry flag calls it; there is no top-level flag, and the
// search and bench subcommands never initialize telemetry.
func Disable() {
	disabled = true
}

// Init sets up the meter provider and Prometheus exporter. Safe to call
// multiple times; only the first call takes effect.
func Init() error {
	if disabled {
		return nil
	}
	initOnce.Do(func() {
		registry = prometheus.NewRegistry()

		exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
		if err != nil {
			initErr = fmt.Errorf("build prometheus exporter: %w", err)
			return
		}

		res, err := resource.New(context.Background(),
			resource.WithAttributes(semconv.ServiceName("cyclegrep")))
		if err != nil {
			res = resource.Default()
		}

		provider := sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(exporter),
			sdkmetric.WithResource(res),
		)
		otel.SetMeterProvider(provider)

		meter := provider.Meter(meterName)

		toolInvocations, _ := meter.Int64Counter("cyclegrep_tool_invocations_total",
			metric.WithDescription("Number of tool invocations executed by the search engine"))
		toolResults, _ := meter.Int64Counter("cyclegrep_tool_results_total",
			metric.WithDescription("Number of matches produced by tool invocations"))
		cacheHits, _ := meter.Int64Counter("cyclegrep_cache_hits_total",
			metric.WithDescription("Cache hits recorded during search execution"))
		reward, _ := meter.Float64Histogram("cyclegrep_reward_score",
			metric.WithDescription("Reward signal produced per search cycle"))
		cycleLatency, _ := meter.Float64Histogram("cyclegrep_cycle_latency_ms",
			metric.WithDescription("End-to-end latency of a search cycle in milliseconds"))
		stageLatency, _ := meter.Float64Histogram("cyclegrep_stage_latency_ms",
			metric.WithDescription("Latency of individual pipeline stages in milliseconds"))

		m = &handles{
			toolInvocations: toolInvocations,
			toolResults:     toolResults,
			cacheHits:       cacheHits,
			reward:          reward,
			cycleLatency:    cycleLatency,
			stageLatency:    stageLatency,
		}
	})
	return initErr
}

// RecordToolInvocation records one invocation of the named tool.
func RecordToolInvocation(tool string) {
	if m == nil {
		return
	}
	m.toolInvocations.Add(context.Background(), 1, metric.WithAttributes(attrTool(tool)))
}

// RecordToolResults records the number of results a tool invocation
// produced.
func RecordToolResults(tool string, count int) {
	if m == nil {
		return
	}
	m.toolResults.Add(context.Background(), int64(count), metric.WithAttributes(attrTool(tool)))
}

// RecordCacheHits records hits against the named cache (symbol_hints,
// directory_hints); a no-op when hits is zero.
func RecordCacheHits(cache string, hits int) {
	if m == nil || hits == 0 {
		return
	}
	m.cacheHits.Add(context.Background(), int64(hits), metric.WithAttributes(attrCache(cache)))
}

// RecordReward records the reward accumulated during a cycle.
func RecordReward(value float64) {
	if m == nil {
		return
	}
	m.reward.Record(context.Background(), value)
}

// RecordCycleLatency records the total latency of a search cycle.
func RecordCycleLatency(latencyMS int64) {
	if m == nil {
		return
	}
	m.cycleLatency.Record(context.Background(), float64(latencyMS))
}

// RecordStageLatency records the latency of one named pipeline stage; a
// no-op when latencyMS is zero.
func RecordStageLatency(stage string, latencyMS int64) {
	if m == nil || latencyMS == 0 {
		return
	}
	m.stageLatency.Record(context.Background(), float64(latencyMS), metric.WithAttributes(attrStage(stage)))
}

// ExportPrometheus renders all currently collected metrics in Prometheus
// text exposition format, used directly by internal/httpapi's /metrics
// route.
func ExportPrometheus() (string, error) {
	if registry == nil {
		return "", fmt.Errorf("telemetry not initialized")
	}
	families, err := registry.Gather()
	if err != nil {
		return "", fmt.Errorf("gather metrics: %w", err)
	}

	var sb strings.Builder
	encoder := expfmt.NewEncoder(&sb, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := encoder.Encode(mf); err != nil {
			return "", fmt.Errorf("encode metrics: %w", err)
		}
	}
	return sb.String(), nil
}

func attrTool(tool string) attribute.KeyValue   { return attribute.String("tool", tool) }
func attrCache(cache string) attribute.KeyValue { return attribute.String("cache", cache) }
func attrStage(stage string) attribute.KeyValue { return attribute.String("stage", stage) }
