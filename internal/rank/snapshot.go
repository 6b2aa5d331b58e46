package rank

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"vrankerd/internal/chainrpc"
)

// IdentityEnrichmentPoolSize is the minimum bounded concurrency for
// per-account identity lookups, per spec.md §4.1 ("bounded pool (>= 8)").
const IdentityEnrichmentPoolSize = 8

// Snapshot is the frozen result of one round of chain queries: every
// validator (active + waiting) tagged with its group, plus the
// snapshot-wide derived data the Scorer needs.
type Snapshot struct {
	BlockHeight uint64
	Validators  []ValidatorRecord

	Nominations  []Nomination
	Governance   GovernanceActivity
	EraIndexes   []Era
	EraPrefs     map[Era][]EraPrefs
	EraPoints    map[Era][]EraPoints
	EraSlashes   map[Era][]Slash
	EraExposures map[Era][]EraExposure
}

// TakeSnapshot fans out the RPC queries described in spec.md §4.1
// concurrently, awaits joint completion, then enriches every validator
// with its on-chain identity using a bounded worker pool. Any RPC error
// aborts the snapshot; there is no partial result.
func TakeSnapshot(ctx context.Context, client chainrpc.Client, historySize int) (*Snapshot, error) {
	snap := &Snapshot{
		EraPrefs:     make(map[Era][]EraPrefs),
		EraPoints:    make(map[Era][]EraPoints),
		EraSlashes:   make(map[Era][]Slash),
		EraExposures: make(map[Era][]EraExposure),
	}

	var (
		activeValidators []ValidatorRecord
		waiting          []chainrpc.WaitingIntention
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		block, err := client.BestBlock(gctx)
		if err != nil {
			return fmt.Errorf("fetch best block: %w", err)
		}
		snap.BlockHeight = block.Height
		return nil
	})
	g.Go(func() error {
		v, err := client.ActiveValidators(gctx)
		if err != nil {
			return fmt.Errorf("fetch active validators: %w", err)
		}
		activeValidators = v
		return nil
	})
	g.Go(func() error {
		w, err := client.WaitingIntentions(gctx)
		if err != nil {
			return fmt.Errorf("fetch waiting intentions: %w", err)
		}
		waiting = w
		return nil
	})
	g.Go(func() error {
		n, err := client.Nominations(gctx)
		if err != nil {
			return fmt.Errorf("fetch nominations: %w", err)
		}
		snap.Nominations = n
		return nil
	})
	g.Go(func() error {
		voters, err := client.CouncilVotes(gctx)
		if err != nil {
			return fmt.Errorf("fetch council votes: %w", err)
		}
		snap.Governance.CouncilVoters = voters
		return nil
	})
	g.Go(func() error {
		actors, err := client.DemocracyActivity(gctx)
		if err != nil {
			return fmt.Errorf("fetch democracy activity: %w", err)
		}
		snap.Governance.ActiveAddresses = actors
		return nil
	})
	g.Go(func() error {
		eras, err := client.HistoricEras(gctx, historySize)
		if err != nil {
			return fmt.Errorf("fetch historic eras: %w", err)
		}
		snap.EraIndexes = eras
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Era-scoped queries (prefs, points, slashes) are independent of each
	// other and of exposure; fan them out too. Exposure is fetched
	// sequentially below per spec.md §4.1 ("exposure fetch is sequential
	// per era").
	eg, egctx := errgroup.WithContext(ctx)
	type eraResult struct {
		era    Era
		prefs  []EraPrefs
		points []EraPoints
		slash  []Slash
	}
	results := make([]eraResult, len(snap.EraIndexes))
	for i, era := range snap.EraIndexes {
		i, era := i, era
		eg.Go(func() error {
			prefs, err := client.EraPreferences(egctx, era)
			if err != nil {
				return fmt.Errorf("fetch era %d preferences: %w", era, err)
			}
			points, err := client.EraPointsFor(egctx, era)
			if err != nil {
				return fmt.Errorf("fetch era %d points: %w", era, err)
			}
			slashes, err := client.EraSlashes(egctx, era)
			if err != nil {
				return fmt.Errorf("fetch era %d slashes: %w", era, err)
			}
			results[i] = eraResult{era: era, prefs: prefs, points: points, slash: slashes}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	for _, r := range results {
		snap.EraPrefs[r.era] = r.prefs
		snap.EraPoints[r.era] = r.points
		snap.EraSlashes[r.era] = r.slash
	}

	// Exposure: stateful RPC, sequential per era.
	for _, era := range snap.EraIndexes {
		exp, err := client.EraExposure(ctx, era)
		if err != nil {
			return nil, fmt.Errorf("fetch era %d exposure: %w", era, err)
		}
		snap.EraExposures[era] = exp
	}

	validators := make([]ValidatorRecord, 0, len(activeValidators)+len(waiting))
	validators = append(validators, activeValidators...)
	for _, w := range waiting {
		validators = append(validators, ValidatorRecord{
			StashID:    w.StashID,
			Controller: w.Controller,
			Active:     false,
			Prefs:      w.Prefs,
			Ledger:     w.Ledger,
		})
	}

	if err := enrichIdentities(ctx, client, validators); err != nil {
		return nil, err
	}
	snap.Validators = validators

	return snap, nil
}

// enrichIdentities issues one identity query per account concurrently,
// bounded by IdentityEnrichmentPoolSize.
func enrichIdentities(ctx context.Context, client chainrpc.Client, validators []ValidatorRecord) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(IdentityEnrichmentPoolSize)
	for i := range validators {
		i := i
		g.Go(func() error {
			id, err := client.Identity(gctx, validators[i].StashID)
			if err != nil {
				return fmt.Errorf("fetch identity for %s: %w", validators[i].StashID, err)
			}
			validators[i].Identity = id
			return nil
		})
	}
	return g.Wait()
}
