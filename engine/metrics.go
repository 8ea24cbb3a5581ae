package engine

import (
	"context"
	"time"

	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

var (
	keyNode   = tag.MustNewKey("node")
	keyResult = tag.MustNewKey("result")

	nodeLatencyMs = stats.Float64("govflow/node_latency", "node execution latency", stats.UnitMilliseconds)
	runOutcomes   = stats.Int64("govflow/run_outcomes", "runs reaching a resting status", stats.UnitDimensionless)

	NodeLatencyView = &view.View{
		Name:        "govflow/node_latency",
		Measure:     nodeLatencyMs,
		Description: "distribution of node execution latency",
		Aggregation: view.Distribution(1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000),
		TagKeys:     []tag.Key{keyNode, keyResult},
	}
	RunOutcomeView = &view.View{
		Name:        "govflow/run_outcomes",
		Measure:     runOutcomes,
		Description: "count of runs by resting status",
		Aggregation: view.Count(),
		TagKeys:     []tag.Key{keyResult},
	}
)

// RegisterViews makes the engine measures exportable.
func RegisterViews() error {
	return view.Register(NodeLatencyView, RunOutcomeView)
}

func recordNode(ctx context.Context, node string, result string, elapsed time.Duration) {
	stats.RecordWithTags(ctx, []tag.Mutator{tag.Upsert(keyNode, node), tag.Upsert(keyResult, result)},
		nodeLatencyMs.M(float64(elapsed)/float64(time.Millisecond)))
}

func recordOutcome(ctx context.Context, status string) {
	stats.RecordWithTags(ctx, []tag.Mutator{tag.Upsert(keyResult, status)}, runOutcomes.M(1))
}
