// Package store holds the gorm models and the RankingWriter that persists a
// completed ranking run into the relational store, per spec.md §4.6.
package store

import (
	"time"

	"github.com/google/uuid"
)

// RankingRow is the persisted form of a rank.RankedValidator: one row per
// validator per run, tagged with the run's block height and start
// timestamp. JSON-serializable fields are stored as JSON text, following
// services/otc-gateway/models.go's use of jsonb columns for structured
// blobs the relational schema does not otherwise need to query into.
type RankingRow struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	BlockHeight uint64    `gorm:"not null;index"`
	Timestamp   time.Time `gorm:"not null"`

	StashID    string `gorm:"size:128;index"`
	Controller string `gorm:"size:128"`
	Active     bool   `gorm:"index"`

	IdentityJSON []byte `gorm:"type:jsonb"`

	SelfStake  string `gorm:"size:128"`
	TotalStake string `gorm:"size:128"`
	OtherStake string `gorm:"size:128"`
	Nominators int
	ActiveEras int

	ActiveRating          int
	AddressCreationRating int
	IdentityRating        int
	SubAccountsRating     int
	NominatorsRating      int
	CommissionRating      int
	EraPointsRating       int
	SlashRating           int
	GovernanceRating      int
	PayoutRating          int
	TotalRating           int `gorm:"index"`

	CommissionHistoryJSON []byte `gorm:"type:jsonb"`
	EraPointsHistoryJSON  []byte `gorm:"type:jsonb"`
	PayoutHistoryJSON     []byte `gorm:"type:jsonb"`
	SlashesJSON           []byte `gorm:"type:jsonb"`

	CouncilBacking     bool
	ActiveInGovernance bool

	Performance         float64
	RelativePerformance float64

	ClusterName       string `gorm:"size:128;index"`
	ClusterMembers    int
	PartOfCluster     bool
	ShowClusterMember bool

	Dominated bool
	Rank      int `gorm:"index"`

	IncludedThousandValidators bool

	CreatedAt time.Time
}

// TableName pins the gorm table name to "ranking" regardless of struct
// naming conventions.
func (RankingRow) TableName() string { return "ranking" }

// TotalRow is a singleton scalar row in the "total" table, keyed by name.
type TotalRow struct {
	Name      string `gorm:"primaryKey;size:64"`
	Count     string `gorm:"size:128"`
	UpdatedAt time.Time
}

// TableName pins the gorm table name to "total".
func (TotalRow) TableName() string { return "total" }

// RunAuditRow records one scheduler invocation for operator visibility,
// supplementing the bare ranking/total tables per SPEC_FULL.md §4.
type RunAuditRow struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	StartedAt      time.Time
	FinishedAt     time.Time
	BlockHeight    uint64
	ValidatorCount int
	Outcome        string `gorm:"size:32"`
	ErrorText      string `gorm:"size:2048"`
}

// TableName pins the gorm table name to "run_audit".
func (RunAuditRow) TableName() string { return "run_audit" }
