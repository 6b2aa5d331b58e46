package rank

import (
	"math/big"
	"testing"
)

func TestCommissionRatingBands(t *testing.T) {
	cases := []struct {
		name       string
		commission float64
		history    []CommissionHistoryEntry
		want       int
	}{
		{"zero is rejected", 0, nil, 0},
		{"exactly one hundred is rejected", 100, nil, 0},
		{"above ten", 10.5, nil, 1},
		{"mid band flat", 7, nil, 2},
		{"mid band trending down upgrades to three", 7, trendHistory(12, 7), 3},
		{"mid band trending up stays two", 7, trendHistory(5, 7), 2},
		{"below five", 4.99, nil, 3},
		{"boundary five", 5, nil, 2},
		{"boundary ten", 10, nil, 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := commissionRating(tc.commission, tc.history)
			if got != tc.want {
				t.Fatalf("commissionRating(%v) = %d, want %d", tc.commission, got, tc.want)
			}
		})
	}
}

func trendHistory(oldest, newest float64) []CommissionHistoryEntry {
	return []CommissionHistoryEntry{
		{Era: 1, Commission: &oldest},
		{Era: 2, Commission: nil},
		{Era: 3, Commission: &newest},
	}
}

// TestCommissionRatingComparesNumericValues pins the open-question
// resolution of spec.md §9: the trend comparison must use the commission
// values, never pointer/object identity. Two distinct *float64 holding the
// same value must read as "no trend", not as a change.
func TestCommissionRatingComparesNumericValues(t *testing.T) {
	same := 7.0
	sameAgain := 7.0
	history := []CommissionHistoryEntry{
		{Era: 1, Commission: &same},
		{Era: 2, Commission: &sameAgain},
	}
	if trendingDown(history) {
		t.Fatalf("equal commissions across distinct pointers must not read as trending down")
	}
}

func TestPayoutRatingBands(t *testing.T) {
	erasPerDay := 4
	cases := []struct {
		pending int
		want    int
	}{
		{0, 3},
		{4, 3},
		{5, 2},
		{12, 2},
		{13, 1},
		{27, 1},
		{28, 0},
	}
	for _, tc := range cases {
		history := make([]PayoutHistoryEntry, 0, tc.pending)
		for i := 0; i < tc.pending; i++ {
			history = append(history, PayoutHistoryEntry{Status: PayoutPending})
		}
		got := payoutRating(history, erasPerDay)
		if got != tc.want {
			t.Fatalf("payoutRating(pending=%d) = %d, want %d", tc.pending, got, tc.want)
		}
	}
}

func TestIdentityRatingBands(t *testing.T) {
	full := Identity{
		Display: "Alice", Legal: "Alice L.", Web: "alice.example", Email: "a@example.com",
		Twitter: "@alice", Riot: "@alice:matrix.org",
		Judgements: []Judgement{{Kind: JudgementKnownGood}},
	}
	if got := identityRating(full); got != 3 {
		t.Fatalf("verified + all fields = %d, want 3", got)
	}

	verifiedSparse := Identity{Display: "Bob", Judgements: []Judgement{{Kind: JudgementReasonable}}}
	if got := identityRating(verifiedSparse); got != 2 {
		t.Fatalf("verified, sparse fields = %d, want 2", got)
	}

	nameOnly := Identity{Display: "Carol"}
	if got := identityRating(nameOnly); got != 1 {
		t.Fatalf("name only = %d, want 1", got)
	}

	empty := Identity{}
	if got := identityRating(empty); got != 0 {
		t.Fatalf("no identity = %d, want 0", got)
	}

	feePaidOnly := Identity{Display: "Dave", Judgements: []Judgement{{Kind: JudgementFeePaid}}}
	if got := identityRating(feePaidOnly); got != 1 {
		t.Fatalf("fee-paid-only judgement must not count as verified, got %d want 1", got)
	}
}

func TestAddressCreationRatingBands(t *testing.T) {
	const h = uint64(1000)
	v := &ValidatorRecord{StashCreatedAtBlock: 100}
	if got := addressCreationRating(v, h); got != 3 {
		t.Fatalf("<=H/4 = %d, want 3", got)
	}
	v.StashCreatedAtBlock = 400
	if got := addressCreationRating(v, h); got != 2 {
		t.Fatalf("<=H/2 = %d, want 2", got)
	}
	v.StashCreatedAtBlock = 600
	if got := addressCreationRating(v, h); got != 1 {
		t.Fatalf("<=3H/4 = %d, want 1", got)
	}
	v.StashCreatedAtBlock = 999
	if got := addressCreationRating(v, h); got != 0 {
		t.Fatalf("else = %d, want 0", got)
	}

	// An older identity parent improves the rating even if the stash
	// itself is young.
	v.StashCreatedAtBlock = 999
	parent := uint64(10)
	v.ParentCreatedAtBlock = &parent
	if got := addressCreationRating(v, h); got != 3 {
		t.Fatalf("best-of stash/parent = %d, want 3", got)
	}
}

func TestNameAssembly(t *testing.T) {
	if got := (Identity{DisplayParent: "Foo", Display: "Bar"}).Name(); got != "Foo/Bar" {
		t.Fatalf("parent+display = %q, want Foo/Bar", got)
	}
	if got := (Identity{Display: "Bar"}).Name(); got != "Bar" {
		t.Fatalf("display only = %q, want Bar", got)
	}
	if got := (Identity{}).Name(); got != "" {
		t.Fatalf("no fields = %q, want empty", got)
	}
}

func TestRelativePerformanceMinimumIsZeroNotInfinity(t *testing.T) {
	// spec.md §9's flagged quirk: minPerf starts at 0, not +Inf, so when
	// every validator's performance is positive the minimum used is 0,
	// biasing relativePerformance upward rather than stretching across the
	// true [min,max] range.
	validators := []*RankedValidator{
		{Performance: 10},
		{Performance: 20},
	}
	applyRelativePerformance(validators)
	if validators[0].RelativePerformance != 0.5 {
		t.Fatalf("lowest positive performer should land at 0.5 (measured against 0, not 10), got %v", validators[0].RelativePerformance)
	}
	if validators[1].RelativePerformance != 1.0 {
		t.Fatalf("max performer should be 1.0, got %v", validators[1].RelativePerformance)
	}
}

func TestRelativePerformanceAllEqualMapsToZero(t *testing.T) {
	validators := []*RankedValidator{{Performance: 5}, {Performance: 5}}
	applyRelativePerformance(validators)
	for i, v := range validators {
		if v.RelativePerformance != 0 {
			t.Fatalf("validator %d: all-equal performances must map to 0, got %v", i, v.RelativePerformance)
		}
	}
}

func TestScoreTinyWorldScenario(t *testing.T) {
	// spec.md §8 scenario 1: two validators, no clusters.
	commissionHistory := []EraPrefs{}
	_ = commissionHistory

	v1Stash := "v1-stash"
	v2Stash := "v2-stash"

	snap := &Snapshot{
		BlockHeight: 1000,
		EraIndexes:  []Era{1, 2, 3},
		Validators: []ValidatorRecord{
			{
				StashID: v1Stash,
				Active:  true,
				Identity: Identity{
					Display: "V1", Legal: "V One", Web: "v1.example", Email: "v1@example.com",
					Twitter: "@v1", Riot: "@v1:matrix.org",
					Judgements: []Judgement{{Kind: JudgementKnownGood}},
				},
				Exposure: Exposure{
					Own:   NewStake(big.NewInt(100)),
					Total: NewStake(big.NewInt(500)),
					Other: []ExposureOther{{Who: "n1", Value: NewStake(big.NewInt(400))}},
				},
				Ledger:              StakingLedger{Total: NewStake(big.NewInt(100)), ClaimedRewards: map[Era]bool{1: true, 2: true, 3: true}},
				Prefs:               ValidatorPrefs{CommissionPerbill: 70_000_000}, // 7%
				StashCreatedAtBlock: 1,
			},
			{
				StashID:             v2Stash,
				Active:              false,
				Identity:            Identity{},
				Ledger:              StakingLedger{Total: NewStake(big.NewInt(50))},
				Prefs:               ValidatorPrefs{CommissionPerbill: 1_000_000_000}, // 100%
				StashCreatedAtBlock: 999,
			},
		},
		EraPrefs: map[Era][]EraPrefs{
			1: {{Era: 1, Validator: v1Stash, Commission: 120_000_000}},
			2: {{Era: 2, Validator: v1Stash, Commission: 90_000_000}},
			3: {{Era: 3, Validator: v1Stash, Commission: 70_000_000}},
		},
		EraPoints: map[Era][]EraPoints{
			1: {{Era: 1, Validator: v1Stash, Points: 100}},
			2: {{Era: 2, Validator: v1Stash, Points: 100}},
			3: {{Era: 3, Validator: v1Stash, Points: 100}},
		},
		EraExposures: map[Era][]EraExposure{
			1: {{Era: 1, Validator: v1Stash, Exposure: Exposure{Own: NewStake(big.NewInt(100)), Total: NewStake(big.NewInt(500))}}},
			2: {{Era: 2, Validator: v1Stash, Exposure: Exposure{Own: NewStake(big.NewInt(100)), Total: NewStake(big.NewInt(500))}}},
			3: {{Era: 3, Validator: v1Stash, Exposure: Exposure{Own: NewStake(big.NewInt(100)), Total: NewStake(big.NewInt(500))}}},
		},
		EraSlashes: map[Era][]Slash{},
		Governance: GovernanceActivity{
			CouncilVoters:   map[string]bool{v1Stash: true},
			ActiveAddresses: map[string]bool{},
		},
	}

	cfg := ScoringConfig{HistorySize: 3, ErasPerDay: 4, TokenDecimals: 0, MaxNominatorRewardedPerValidator: 256}
	ranked := Score(snap, cfg)

	if len(ranked) != 2 {
		t.Fatalf("expected 2 ranked validators, got %d", len(ranked))
	}

	var v1, v2 *RankedValidator
	for _, v := range ranked {
		switch v.StashID {
		case v1Stash:
			v1 = v
		case v2Stash:
			v2 = v
		}
	}
	if v1 == nil || v2 == nil {
		t.Fatalf("missing expected validators in ranked output")
	}

	if v1.Rank != 1 {
		t.Fatalf("v1 should rank first, got rank %d", v1.Rank)
	}
	if v1.TotalRating <= v2.TotalRating {
		t.Fatalf("v1.TotalRating (%d) should exceed v2.TotalRating (%d)", v1.TotalRating, v2.TotalRating)
	}
	if v1.CommissionRating != 3 {
		t.Fatalf("v1 commission trending down 12%%->7%% should rate 3, got %d", v1.CommissionRating)
	}
	if v2.CommissionRating != 0 {
		t.Fatalf("v2 commission of 100%% should rate 0, got %d", v2.CommissionRating)
	}
	if v2.PayoutRating != 3 {
		t.Fatalf("waiting validator has no active eras so 0 pending payouts, want payoutRating 3, got %d", v2.PayoutRating)
	}
	for _, rating := range []int{v1.TotalRating, v2.TotalRating} {
		if rating < 0 {
			t.Fatalf("total rating must never be negative")
		}
	}
	if v1.TotalRating != v1.ActiveRating+v1.AddressCreationRating+v1.IdentityRating+v1.SubAccountsRating+
		v1.NominatorsRating+v1.CommissionRating+v1.EraPointsRating+v1.SlashRating+v1.GovernanceRating+v1.PayoutRating {
		t.Fatalf("v1.TotalRating must equal the sum of its component ratings")
	}
}

func TestScoreExactlyOneHundredCommissionIgnoresHistory(t *testing.T) {
	// spec.md §8 scenario 2.
	oldest, newest := 50.0, 10.0
	got := commissionRating(100, []CommissionHistoryEntry{{Commission: &oldest}, {Commission: &newest}})
	if got != 0 {
		t.Fatalf("commission=100 must rate 0 regardless of a trending-down history, got %d", got)
	}
}

func TestStakeFieldsActiveVsWaiting(t *testing.T) {
	active := &ValidatorRecord{
		Active: true,
		Exposure: Exposure{
			Own:   NewStake(big.NewInt(100)),
			Total: NewStake(big.NewInt(300)),
		},
	}
	self, total, other := stakeFields(active)
	if self.Cmp(NewStake(big.NewInt(100))) != 0 || total.Cmp(NewStake(big.NewInt(300))) != 0 || other.Cmp(NewStake(big.NewInt(200))) != 0 {
		t.Fatalf("active stake fields wrong: self=%s total=%s other=%s", self, total, other)
	}

	waiting := &ValidatorRecord{
		Active: false,
		Ledger: StakingLedger{Total: NewStake(big.NewInt(50))},
	}
	self, total, other = stakeFields(waiting)
	if self.Cmp(NewStake(big.NewInt(50))) != 0 || total.Cmp(self) != 0 || other.Cmp(ZeroStake()) != 0 {
		t.Fatalf("waiting stake fields wrong: self=%s total=%s other=%s", self, total, other)
	}
}
