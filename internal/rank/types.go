// Package rank implements the ranking pipeline's domain types and the pure,
// deterministic scoring, clustering, and dominance analysis that turn a
// chain snapshot into an annotated, totally ordered validator ranking.
package rank

import (
	"math/big"
)

// Stake is an arbitrary-precision, non-negative chain-native balance. All
// arithmetic on it is exact; the zero value is a usable zero quantity.
type Stake struct {
	v *big.Int
}

// NewStake wraps a big.Int as a Stake, treating a nil input as zero.
func NewStake(v *big.Int) Stake {
	if v == nil {
		return Stake{v: new(big.Int)}
	}
	return Stake{v: new(big.Int).Set(v)}
}

// StakeFromString parses a base-10 integer string into a Stake.
func StakeFromString(s string) (Stake, bool) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Stake{}, false
	}
	return Stake{v: v}, true
}

// ZeroStake returns the additive identity.
func ZeroStake() Stake { return Stake{v: new(big.Int)} }

// Int returns the underlying *big.Int; callers must not mutate it.
func (s Stake) Int() *big.Int {
	if s.v == nil {
		return new(big.Int)
	}
	return s.v
}

// Add returns s + other.
func (s Stake) Add(other Stake) Stake {
	return Stake{v: new(big.Int).Add(s.Int(), other.Int())}
}

// Sub returns s - other, clamped to zero if the result would be negative
// (otherStake is never allowed to go negative per the stake invariants).
func (s Stake) Sub(other Stake) Stake {
	d := new(big.Int).Sub(s.Int(), other.Int())
	if d.Sign() < 0 {
		return ZeroStake()
	}
	return Stake{v: d}
}

// Cmp compares two stakes the way big.Int.Cmp does.
func (s Stake) Cmp(other Stake) int {
	return s.Int().Cmp(other.Int())
}

// Float normalizes the stake by 10^decimals, for use in performance ratios.
func (s Stake) Float(decimals int) *big.Float {
	f := new(big.Float).SetInt(s.Int())
	if decimals <= 0 {
		return f
	}
	scale := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	return f.Quo(f, scale)
}

// String renders the stake as a base-10 string.
func (s Stake) String() string { return s.Int().String() }

// MarshalJSON renders the stake as a JSON string to avoid float truncation
// of values that exceed 2^53.
func (s Stake) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.Int().String() + `"`), nil
}

// UnmarshalJSON accepts either a JSON string or number.
func (s *Stake) UnmarshalJSON(data []byte) error {
	str := string(data)
	if len(str) >= 2 && str[0] == '"' && str[len(str)-1] == '"' {
		str = str[1 : len(str)-1]
	}
	v, ok := new(big.Int).SetString(str, 10)
	if !ok {
		v = new(big.Int)
	}
	s.v = v
	return nil
}

// Era identifies a staking epoch.
type Era uint32

// JudgementKind enumerates the registrar judgement kinds an Identity may
// carry.
type JudgementKind string

// Recognized judgement kinds.
const (
	JudgementFeePaid    JudgementKind = "FeePaid"
	JudgementKnownGood  JudgementKind = "KnownGood"
	JudgementReasonable JudgementKind = "Reasonable"
	JudgementOther      JudgementKind = "Other"
)

// Judgement is a registrar's attestation about an identity.
type Judgement struct {
	Kind JudgementKind `json:"kind"`
}

// Identity mirrors the on-chain identity record. Every field is optional.
type Identity struct {
	Display       string      `json:"display,omitempty"`
	Legal         string      `json:"legal,omitempty"`
	Web           string      `json:"web,omitempty"`
	Email         string      `json:"email,omitempty"`
	Twitter       string      `json:"twitter,omitempty"`
	Riot          string      `json:"riot,omitempty"`
	DisplayParent string      `json:"displayParent,omitempty"`
	Parent        string      `json:"parent,omitempty"`
	Judgements    []Judgement `json:"judgements,omitempty"`
}

// Verified reports whether the identity carries at least one non-FeePaid
// judgement whose kind is KnownGood or Reasonable.
func (id Identity) Verified() bool {
	for _, j := range id.Judgements {
		if j.Kind == JudgementFeePaid {
			continue
		}
		if j.Kind == JudgementKnownGood || j.Kind == JudgementReasonable {
			return true
		}
	}
	return false
}

// AllFieldsSet reports whether every "social" field is populated: display,
// legal, web, email, twitter, riot.
func (id Identity) AllFieldsSet() bool {
	return id.Display != "" && id.Legal != "" && id.Web != "" &&
		id.Email != "" && id.Twitter != "" && id.Riot != ""
}

// Name assembles the display name per spec.md §4.3: "{parent}/{display}"
// when both are set, else just display (possibly empty).
func (id Identity) Name() string {
	if id.DisplayParent != "" && id.Display != "" {
		return id.DisplayParent + "/" + id.Display
	}
	return id.Display
}

// ExposureOther is a single nominator's contribution to a validator's
// exposure.
type ExposureOther struct {
	Who   string `json:"who"`
	Value Stake  `json:"value"`
}

// Exposure is a validator's per-era stake exposure: its own stake plus all
// nominator stakes, only populated for active validators.
type Exposure struct {
	Own   Stake           `json:"own"`
	Total Stake           `json:"total"`
	Other []ExposureOther `json:"others"`
}

// StakingLedger is the validator's bonded stake ledger.
type StakingLedger struct {
	Total          Stake       `json:"total"`
	ClaimedRewards map[Era]bool `json:"-"`
}

// ValidatorPrefs carries the validator's declared preferences.
type ValidatorPrefs struct {
	// CommissionPerbill is commission in parts-per-billion, as returned by
	// the chain (divide by 1e7 to get a percent with two decimal places).
	CommissionPerbill uint32 `json:"commission"`
}

// CommissionPercent converts the raw perbill commission into a percent with
// two decimal places of precision.
func (p ValidatorPrefs) CommissionPercent() float64 {
	return float64(p.CommissionPerbill) / 1e7
}

// Nomination is a single nominator's targets.
type Nomination struct {
	Nominator string
	Targets   []string
}

// EraPrefs is a validator's declared commission for a specific era.
type EraPrefs struct {
	Era        Era
	Validator  string
	Commission uint32
}

// EraPoints is a validator's earned era points for a specific era.
type EraPoints struct {
	Era       Era
	Validator string
	Points    uint64
}

// EraExposure is a validator's exposure for a specific historic era.
type EraExposure struct {
	Era       Era
	Validator string
	Exposure  Exposure
}

// Slash is a single slashing event against a validator within the history
// window.
type Slash struct {
	Era       Era
	Validator string
	Amount    Stake
}

// GovernanceActivity captures the raw council/democracy facts the Scorer
// needs; ChainSnapshot populates this once per run from the council vote
// set and the democracy proposal/referendum/voter sets.
type GovernanceActivity struct {
	CouncilVoters   map[string]bool
	ActiveAddresses map[string]bool // proposers, seconders, referendum voters
}

// ValidatorRecord is the pre-scoring view of a validator, as assembled by
// ChainSnapshot + AccountAgeResolver.
type ValidatorRecord struct {
	StashID    string
	Controller string
	Active     bool
	Identity   Identity
	Exposure   Exposure // only meaningful when Active
	Ledger     StakingLedger
	Prefs      ValidatorPrefs

	StashCreatedAtBlock  uint64
	ParentCreatedAtBlock *uint64 // nil if no identity parent

	IncludedThousandValidators bool
}

// CommissionHistoryEntry is one era's recorded commission (nil when the
// validator was absent from that era's preferences).
type CommissionHistoryEntry struct {
	Era        Era      `json:"era"`
	Commission *float64 `json:"commission"`
}

// EraPointsHistoryEntry records one era's earned points (0 for inactive
// eras).
type EraPointsHistoryEntry struct {
	Era    Era    `json:"era"`
	Points uint64 `json:"points"`
}

// PayoutStatus enumerates the status of a reward payout for an active era.
type PayoutStatus string

// Recognized payout statuses.
const (
	PayoutPaid     PayoutStatus = "paid"
	PayoutPending  PayoutStatus = "pending"
	PayoutInactive PayoutStatus = "inactive"
)

// PayoutHistoryEntry records the payout status of a single era.
type PayoutHistoryEntry struct {
	Era    Era          `json:"era"`
	Status PayoutStatus `json:"status"`
}

// RankedValidator is a ValidatorRecord extended with the scoring, cluster,
// and dominance results of a single run. It is produced once and never
// mutated afterwards.
type RankedValidator struct {
	ValidatorRecord

	ActiveRating           int
	AddressCreationRating  int
	IdentityRating         int
	SubAccountsRating      int
	NominatorsRating       int
	CommissionRating       int
	EraPointsRating        int
	SlashRating            int
	GovernanceRating       int
	PayoutRating           int
	TotalRating            int

	CommissionHistory []CommissionHistoryEntry
	EraPointsHistory  []EraPointsHistoryEntry
	PayoutHistory     []PayoutHistoryEntry
	Slashes           []Slash

	CouncilBacking     bool
	ActiveInGovernance bool

	SelfStake  Stake
	TotalStake Stake
	OtherStake Stake
	Nominators int
	ActiveEras int

	Performance         float64
	RelativePerformance float64

	ClusterName    string
	ClusterMembers int
	PartOfCluster  bool
	ShowClusterMember bool

	Dominated bool
	Rank      int
}
