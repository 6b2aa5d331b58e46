package rank

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"vrankerd/internal/chainrpc"
	"vrankerd/internal/obsmetrics"
)

var tracer = otel.Tracer("vrankerd/internal/rank")

// StashLister fetches an external candidate address set used to tag
// ranked validators, matching thousandvalidators.Client's shape. It is
// defined here rather than imported to keep internal/rank free of a
// dependency on the thousandvalidators package.
type StashLister interface {
	FetchStashes(ctx context.Context) map[string]bool
}

// AgeResolver fills in StashCreatedAtBlock/ParentCreatedAtBlock on every
// validator, matching AccountAgeResolver.ResolveAll's shape.
type AgeResolver interface {
	ResolveAll(ctx context.Context, validators []ValidatorRecord) error
}

// Pipeline wires together a single ranking run: chain snapshot, address
// age resolution, scoring, cluster analysis, and dominance analysis, in the
// order diagrammed by the ranking flow. Persistence is not part of the
// Pipeline; the caller writes the result.
type Pipeline struct {
	Client      chainrpc.Client
	AgeResolver AgeResolver
	Stashes     StashLister
	Scoring     ScoringConfig
	Metrics     *obsmetrics.PipelineMetrics
	Logger      *slog.Logger
}

// RunOnce executes one end-to-end ranking pass and returns the snapshot,
// the ranked validators, and the thousand-validator-program candidate
// set. Persistence is left to the caller, which holds the concrete
// store.RankingWriter and run identifier. Each stage opens its own span
// under a parent "ranking_run" span.
func (p *Pipeline) RunOnce(ctx context.Context) (*Snapshot, []*RankedValidator, map[string]bool, error) {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, runSpan := tracer.Start(ctx, "ranking_run")
	defer runSpan.End()

	var snap *Snapshot
	err := p.traceStage(ctx, "snapshot", func(stageCtx context.Context) error {
		s, err := TakeSnapshot(stageCtx, p.Client, p.Scoring.HistorySize)
		snap = s
		return err
	})
	if err != nil {
		runSpan.RecordError(err)
		runSpan.SetStatus(codes.Error, err.Error())
		return nil, nil, nil, fmt.Errorf("take snapshot: %w", err)
	}

	if p.AgeResolver != nil {
		if err := p.traceStage(ctx, "age_resolution", func(stageCtx context.Context) error {
			return p.AgeResolver.ResolveAll(stageCtx, snap.Validators)
		}); err != nil {
			logger.Warn("account age resolution incomplete", "error", err)
		}
	}

	var ranked []*RankedValidator
	_ = p.traceStage(ctx, "scoring", func(context.Context) error {
		ranked = Score(snap, p.Scoring)
		return nil
	})

	_ = p.traceStage(ctx, "cluster_analysis", func(context.Context) error {
		AssignClusters(ranked)
		return nil
	})

	_ = p.traceStage(ctx, "dominance_analysis", func(context.Context) error {
		AssignDominance(ranked)
		return nil
	})

	var stashes map[string]bool
	if p.Stashes != nil {
		stashes = p.Stashes.FetchStashes(ctx)
	}
	if stashes == nil {
		stashes = map[string]bool{}
	}
	for _, rv := range ranked {
		rv.IncludedThousandValidators = stashes[rv.StashID]
	}

	if p.Metrics != nil {
		p.Metrics.SetValidatorCount(len(ranked))
	}

	return snap, ranked, stashes, nil
}

// traceStage opens a child span named for the pipeline stage, runs fn
// within it, records the stage's wall-clock duration against Metrics, and
// marks the span as failed if fn returns an error.
func (p *Pipeline) traceStage(ctx context.Context, name string, fn func(context.Context) error) error {
	stageCtx, span := tracer.Start(ctx, name)
	defer span.End()

	start := time.Now()
	err := fn(stageCtx)
	p.observe(name, start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (p *Pipeline) observe(stage string, start time.Time) {
	if p.Metrics != nil {
		p.Metrics.ObserveStage(stage, time.Since(start))
	}
}
