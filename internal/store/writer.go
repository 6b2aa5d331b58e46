package store

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"vrankerd/internal/rank"
)

var tracer = otel.Tracer("vrankerd/internal/store")

// Migrate creates/updates the ranking, total, and run_audit tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&RankingRow{}, &TotalRow{}, &RunAuditRow{})
}

// RankingWriter persists a completed ranking run, per spec.md §4.6: insert
// one row per validator, then atomically purge every row whose
// block_height differs from the run's, so the table always holds exactly
// one generation between runs. Per-row insert failures are logged and
// skipped; they do not abort the write.
type RankingWriter struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewRankingWriter constructs a writer bound to the given database handle.
func NewRankingWriter(db *gorm.DB, logger *slog.Logger) *RankingWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &RankingWriter{db: db, logger: logger}
}

// Write persists every ranked validator for this run, purges prior
// generations, updates the singleton totals, and records a run_audit row.
// currentEra is the most recent era index from the snapshot's EraIndexes
// (distinct from blockHeight, which only identifies the ranking
// generation) and is what ends up in the current_era singleton total.
func (w *RankingWriter) Write(ctx context.Context, runID uuid.UUID, startedAt time.Time, blockHeight uint64, currentEra rank.Era, validators []*rank.RankedValidator, thousandValidatorStashes map[string]bool) error {
	ctx, span := tracer.Start(ctx, "write")
	defer span.End()

	timestamp := startedAt
	inserted := 0
	for _, v := range validators {
		row, err := toRow(v, blockHeight, timestamp, thousandValidatorStashes)
		if err != nil {
			w.logger.Error("encode ranking row", "stash", v.StashID, "error", err)
			continue
		}
		if err := w.db.WithContext(ctx).Create(row).Error; err != nil {
			w.logger.Error("insert ranking row", "stash", v.StashID, "error", err)
			continue
		}
		inserted++
	}

	if err := w.db.WithContext(ctx).
		Where("block_height != ?", blockHeight).
		Delete(&RankingRow{}).Error; err != nil {
		w.logger.Error("purge prior ranking generations", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	w.updateTotals(ctx, uint64(currentEra), validators)

	audit := &RunAuditRow{
		ID:             runID,
		StartedAt:      startedAt,
		FinishedAt:     time.Now().UTC(),
		BlockHeight:    blockHeight,
		ValidatorCount: inserted,
		Outcome:        "success",
	}
	if err := w.db.WithContext(ctx).Create(audit).Error; err != nil {
		w.logger.Error("insert run audit row", "error", err)
	}
	return nil
}

// WriteFailure records a run_audit row for a run that aborted before
// producing a ranking, per spec.md §7 kind 1 (transient RPC error aborts
// the run; the scheduler logs and re-arms — this is the log's durable
// counterpart).
func (w *RankingWriter) WriteFailure(ctx context.Context, runID uuid.UUID, startedAt time.Time, cause error) {
	audit := &RunAuditRow{
		ID:         runID,
		StartedAt:  startedAt,
		FinishedAt: time.Now().UTC(),
		Outcome:    "error",
		ErrorText:  cause.Error(),
	}
	if err := w.db.WithContext(ctx).Create(audit).Error; err != nil {
		w.logger.Error("insert failed-run audit row", "error", err)
	}
}

func toRow(v *rank.RankedValidator, blockHeight uint64, timestamp time.Time, thousandValidatorStashes map[string]bool) (*RankingRow, error) {
	identityJSON, err := json.Marshal(v.Identity)
	if err != nil {
		return nil, err
	}
	commissionHistoryJSON, err := json.Marshal(v.CommissionHistory)
	if err != nil {
		return nil, err
	}
	eraPointsHistoryJSON, err := json.Marshal(v.EraPointsHistory)
	if err != nil {
		return nil, err
	}
	payoutHistoryJSON, err := json.Marshal(v.PayoutHistory)
	if err != nil {
		return nil, err
	}
	slashesJSON, err := json.Marshal(v.Slashes)
	if err != nil {
		return nil, err
	}

	return &RankingRow{
		ID:          uuid.New(),
		BlockHeight: blockHeight,
		Timestamp:   timestamp,

		StashID:    v.StashID,
		Controller: v.Controller,
		Active:     v.Active,

		IdentityJSON: identityJSON,

		SelfStake:  v.SelfStake.String(),
		TotalStake: v.TotalStake.String(),
		OtherStake: v.OtherStake.String(),
		Nominators: v.Nominators,
		ActiveEras: v.ActiveEras,

		ActiveRating:          v.ActiveRating,
		AddressCreationRating: v.AddressCreationRating,
		IdentityRating:        v.IdentityRating,
		SubAccountsRating:     v.SubAccountsRating,
		NominatorsRating:      v.NominatorsRating,
		CommissionRating:      v.CommissionRating,
		EraPointsRating:       v.EraPointsRating,
		SlashRating:           v.SlashRating,
		GovernanceRating:      v.GovernanceRating,
		PayoutRating:          v.PayoutRating,
		TotalRating:           v.TotalRating,

		CommissionHistoryJSON: commissionHistoryJSON,
		EraPointsHistoryJSON:  eraPointsHistoryJSON,
		PayoutHistoryJSON:     payoutHistoryJSON,
		SlashesJSON:           slashesJSON,

		CouncilBacking:     v.CouncilBacking,
		ActiveInGovernance: v.ActiveInGovernance,

		Performance:         v.Performance,
		RelativePerformance: v.RelativePerformance,

		ClusterName:       v.ClusterName,
		ClusterMembers:    v.ClusterMembers,
		PartOfCluster:     v.PartOfCluster,
		ShowClusterMember: v.ShowClusterMember,

		Dominated: v.Dominated,
		Rank:      v.Rank,

		IncludedThousandValidators: thousandValidatorStashes[v.StashID],

		CreatedAt: time.Now().UTC(),
	}, nil
}

func (w *RankingWriter) updateTotals(ctx context.Context, currentEra uint64, validators []*rank.RankedValidator) {
	var active, waiting, nominators, verifiedIdentities int
	var commissionSum float64
	minStake := rank.ZeroStake()
	haveMinStake := false

	for _, v := range validators {
		if v.Active {
			active++
		} else {
			waiting++
		}
		nominators += v.Nominators
		if v.Identity.Verified() {
			verifiedIdentities++
		}
		commissionSum += v.Prefs.CommissionPercent()
		for _, other := range v.Exposure.Other {
			if !haveMinStake || other.Value.Cmp(minStake) < 0 {
				minStake = other.Value
				haveMinStake = true
			}
		}
	}

	averageCommission := 0.0
	if len(validators) > 0 {
		averageCommission = commissionSum / float64(len(validators))
	}
	minStakeStr := "0"
	if haveMinStake {
		minStakeStr = minStake.String()
	}

	w.upsertTotal(ctx, "active_validator_count", intToStr(active))
	w.upsertTotal(ctx, "waiting_validator_count", intToStr(waiting))
	w.upsertTotal(ctx, "nominator_count", intToStr(nominators))
	w.upsertTotal(ctx, "current_era", intToStr(int(currentEra)))
	w.upsertTotal(ctx, "minimum_stake", minStakeStr)
	w.upsertTotal(ctx, "average_commission", floatToStr(averageCommission))
	w.upsertTotal(ctx, "verified_identity_count", intToStr(verifiedIdentities))
}

func (w *RankingWriter) upsertTotal(ctx context.Context, name, count string) {
	row := &TotalRow{Name: name, Count: count, UpdatedAt: time.Now().UTC()}
	err := w.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"count", "updated_at"}),
	}).Create(row).Error
	if err != nil {
		w.logger.Error("update singleton total", "name", name, "error", err)
	}
}
