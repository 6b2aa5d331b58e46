package rank

import (
	"math"
	"sort"
)

// ScoringConfig carries the knobs the Scorer needs beyond the snapshot
// itself: window sizing, token normalization, and the chain constant
// bounding rewarded nominators per validator.
type ScoringConfig struct {
	HistorySize                     int
	ErasPerDay                      int
	TokenDecimals                   int
	MaxNominatorRewardedPerValidator int
}

// Score applies the fixed scoring function of spec.md §4.3 to every
// validator in the snapshot, producing ranked validators sorted by
// descending total rating with a dense 1-based rank. It is pure and
// deterministic given the same snapshot and config (save for
// ClusterAnalyzer's random hiding step, applied separately).
func Score(snap *Snapshot, cfg ScoringConfig) []*RankedValidator {
	derived := buildDerivedEraData(snap)

	out := make([]*RankedValidator, 0, len(snap.Validators))
	for i := range snap.Validators {
		rv := scoreOne(&snap.Validators[i], snap, derived, cfg)
		out = append(out, rv)
	}

	applyRelativePerformance(out)

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TotalRating > out[j].TotalRating
	})
	for i, rv := range out {
		rv.Rank = i + 1
	}
	return out
}

// derivedEraData indexes the snapshot's per-era slices by validator stash
// for O(1) lookups while scoring.
type derivedEraData struct {
	prefsByEra    map[Era]map[string]uint32
	pointsByEra   map[Era]map[string]uint64
	exposureByEra map[Era]map[string]Exposure
	slashesByEra  map[Era]map[string][]Slash
	nominationsByTarget map[string]int
	averageEraPoints    float64
}

func buildDerivedEraData(snap *Snapshot) derivedEraData {
	d := derivedEraData{
		prefsByEra:          make(map[Era]map[string]uint32, len(snap.EraIndexes)),
		pointsByEra:         make(map[Era]map[string]uint64, len(snap.EraIndexes)),
		exposureByEra:       make(map[Era]map[string]Exposure, len(snap.EraIndexes)),
		slashesByEra:        make(map[Era]map[string][]Slash, len(snap.EraIndexes)),
		nominationsByTarget: make(map[string]int),
	}
	for _, era := range snap.EraIndexes {
		prefs := make(map[string]uint32, len(snap.EraPrefs[era]))
		for _, p := range snap.EraPrefs[era] {
			prefs[p.Validator] = p.Commission
		}
		d.prefsByEra[era] = prefs

		points := make(map[string]uint64, len(snap.EraPoints[era]))
		for _, p := range snap.EraPoints[era] {
			points[p.Validator] = p.Points
		}
		d.pointsByEra[era] = points

		exposures := make(map[string]Exposure, len(snap.EraExposures[era]))
		for _, e := range snap.EraExposures[era] {
			exposures[e.Validator] = e.Exposure
		}
		d.exposureByEra[era] = exposures

		slashes := make(map[string][]Slash)
		for _, s := range snap.EraSlashes[era] {
			slashes[s.Validator] = append(slashes[s.Validator], s)
		}
		d.slashesByEra[era] = slashes
	}

	for _, n := range snap.Nominations {
		for _, target := range n.Targets {
			d.nominationsByTarget[target]++
		}
	}

	var sum float64
	var count int
	for _, v := range snap.Validators {
		total := 0.0
		for _, era := range snap.EraIndexes {
			total += float64(d.pointsByEra[era][v.StashID])
		}
		sum += total
		count++
	}
	if count > 0 {
		d.averageEraPoints = sum / float64(count)
	}
	return d
}

func scoreOne(v *ValidatorRecord, snap *Snapshot, derived derivedEraData, cfg ScoringConfig) *RankedValidator {
	rv := &RankedValidator{ValidatorRecord: *v}

	h := snap.BlockHeight

	rv.ActiveRating = activeRating(v.Active)
	rv.AddressCreationRating = addressCreationRating(v, h)
	rv.IdentityRating = identityRating(v.Identity)
	rv.SubAccountsRating = subAccountsRating(v.Identity)

	rv.Nominators = nominatorCount(v, derived)
	rv.NominatorsRating = nominatorsRating(rv.Nominators, cfg.MaxNominatorRewardedPerValidator)

	rv.CommissionHistory = commissionHistory(v.StashID, snap.EraIndexes, derived)
	rv.CommissionRating = commissionRating(v.Prefs.CommissionPercent(), rv.CommissionHistory)

	totalPoints := 0.0
	for _, era := range snap.EraIndexes {
		totalPoints += float64(derived.pointsByEra[era][v.StashID])
	}
	rv.EraPointsRating = 0
	if totalPoints > derived.averageEraPoints {
		rv.EraPointsRating = 2
	}

	rv.Slashes = validatorSlashes(v.StashID, snap.EraIndexes, derived)
	rv.SlashRating = 2
	if len(rv.Slashes) > 0 {
		rv.SlashRating = 0
	}

	rv.CouncilBacking = inSet(snap.Governance.CouncilVoters, v.StashID, v.Identity.Parent)
	rv.ActiveInGovernance = inSet(snap.Governance.ActiveAddresses, v.StashID, v.Identity.Parent)
	rv.GovernanceRating = governanceRating(rv.CouncilBacking, rv.ActiveInGovernance)

	rv.EraPointsHistory, rv.PayoutHistory, rv.Performance, rv.ActiveEras = erasAndPerformance(v, snap, derived, cfg)
	rv.PayoutRating = payoutRating(rv.PayoutHistory, cfg.ErasPerDay)

	rv.SelfStake, rv.TotalStake, rv.OtherStake = stakeFields(v)

	rv.TotalRating = rv.ActiveRating + rv.AddressCreationRating + rv.IdentityRating +
		rv.SubAccountsRating + rv.NominatorsRating + rv.CommissionRating +
		rv.EraPointsRating + rv.SlashRating + rv.GovernanceRating + rv.PayoutRating

	return rv
}

func activeRating(active bool) int {
	if active {
		return 2
	}
	return 0
}

func addressCreationRating(v *ValidatorRecord, blockHeight uint64) int {
	best := v.StashCreatedAtBlock
	if v.ParentCreatedAtBlock != nil && *v.ParentCreatedAtBlock < best {
		best = *v.ParentCreatedAtBlock
	}
	h := blockHeight
	switch {
	case best <= h/4:
		return 3
	case best <= h/2:
		return 2
	case best <= 3*h/4:
		return 1
	default:
		return 0
	}
}

func identityRating(id Identity) int {
	switch {
	case id.Verified() && id.AllFieldsSet():
		return 3
	case id.Verified():
		return 2
	case id.Name() != "":
		return 1
	default:
		return 0
	}
}

func subAccountsRating(id Identity) int {
	if id.Parent != "" {
		return 2
	}
	return 0
}

func nominatorCount(v *ValidatorRecord, derived derivedEraData) int {
	if v.Active {
		return len(v.Exposure.Other)
	}
	return derived.nominationsByTarget[v.StashID]
}

func nominatorsRating(nominators, maxRewarded int) int {
	if nominators > 0 && nominators <= maxRewarded {
		return 2
	}
	return 0
}

func commissionHistory(stash string, eras []Era, derived derivedEraData) []CommissionHistoryEntry {
	entries := make([]CommissionHistoryEntry, 0, len(eras))
	for _, era := range eras {
		raw, ok := derived.prefsByEra[era][stash]
		if !ok {
			entries = append(entries, CommissionHistoryEntry{Era: era, Commission: nil})
			continue
		}
		pct := float64(raw) / 1e7
		entries = append(entries, CommissionHistoryEntry{Era: era, Commission: &pct})
	}
	return entries
}

// commissionRating implements spec.md §4.3's commission band algorithm.
// The trend-upgrade comparison is deliberately numeric (comparing the
// commission values themselves), not object identity — see §9's flagged
// open question; a faithful port of the source's apparent bug would
// compare object references, which this implementation does not do.
func commissionRating(commission float64, history []CommissionHistoryEntry) int {
	switch {
	case commission == 0 || commission == 100:
		return 0
	case commission > 10:
		return 1
	case commission >= 5 && commission <= 10:
		if trendingDown(history) {
			return 3
		}
		return 2
	default:
		return 3
	}
}

func trendingDown(history []CommissionHistoryEntry) bool {
	var oldest, newest *float64
	for _, entry := range history {
		if entry.Commission == nil {
			continue
		}
		if oldest == nil {
			oldest = entry.Commission
		}
		newest = entry.Commission
	}
	if oldest == nil || newest == nil || oldest == newest {
		return false
	}
	return *oldest > *newest
}

func validatorSlashes(stash string, eras []Era, derived derivedEraData) []Slash {
	var out []Slash
	for _, era := range eras {
		out = append(out, derived.slashesByEra[era][stash]...)
	}
	return out
}

func governanceRating(councilBacking, activeInGovernance bool) int {
	switch {
	case councilBacking && activeInGovernance:
		return 3
	case councilBacking || activeInGovernance:
		return 2
	default:
		return 0
	}
}

func inSet(set map[string]bool, candidates ...string) bool {
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if set[c] {
			return true
		}
	}
	return false
}

// erasAndPerformance walks the history window once, producing the era
// points / payout history arrays, summed performance, and active-era count
// for a single validator, per spec.md §4.3.
func erasAndPerformance(v *ValidatorRecord, snap *Snapshot, derived derivedEraData, cfg ScoringConfig) ([]EraPointsHistoryEntry, []PayoutHistoryEntry, float64, int) {
	pointsHistory := make([]EraPointsHistoryEntry, 0, len(snap.EraIndexes))
	payoutHistory := make([]PayoutHistoryEntry, 0, len(snap.EraIndexes))
	var performance float64
	var activeEras int

	for _, era := range snap.EraIndexes {
		exposure, wasActive := derived.exposureByEra[era][v.StashID]
		if !wasActive {
			pointsHistory = append(pointsHistory, EraPointsHistoryEntry{Era: era, Points: 0})
			payoutHistory = append(payoutHistory, PayoutHistoryEntry{Era: era, Status: PayoutInactive})
			continue
		}
		activeEras++
		points := derived.pointsByEra[era][v.StashID]
		pointsHistory = append(pointsHistory, EraPointsHistoryEntry{Era: era, Points: points})

		status := PayoutPending
		if v.Ledger.ClaimedRewards != nil && v.Ledger.ClaimedRewards[era] {
			status = PayoutPaid
		}
		payoutHistory = append(payoutHistory, PayoutHistoryEntry{Era: era, Status: status})

		commission := float64(derived.prefsByEra[era][v.StashID]) / 1e7
		eraTotalStake := exposure.Total.Float(cfg.TokenDecimals)
		totalF, _ := eraTotalStake.Float64()
		if totalF == 0 {
			continue
		}
		performance += (float64(points) * (1 - commission/100)) / totalF
	}
	return pointsHistory, payoutHistory, performance, activeEras
}

func payoutRating(history []PayoutHistoryEntry, erasPerDay int) int {
	pending := 0
	for _, h := range history {
		if h.Status == PayoutPending {
			pending++
		}
	}
	e := erasPerDay
	switch {
	case pending <= e:
		return 3
	case pending <= 3*e:
		return 2
	case pending < 7*e:
		return 1
	default:
		return 0
	}
}

func stakeFields(v *ValidatorRecord) (self, total, other Stake) {
	if v.Active {
		self = v.Exposure.Own
		total = v.Exposure.Total
		other = total.Sub(self)
		return
	}
	self = v.Ledger.Total
	total = self
	other = ZeroStake()
	return
}

// applyRelativePerformance computes each validator's relativePerformance in
// [0,1]. minPerf is deliberately initialized to 0, not +Inf, per spec.md
// §9's flagged quirk: when every performance is non-negative this biases
// relativePerformance upward rather than stretching it across the true
// range. Preserved intentionally, not a bug to fix here. When every
// validator has the same performance, every relativePerformance is 0.
func applyRelativePerformance(validators []*RankedValidator) {
	minPerf := 0.0
	maxPerf := math.Inf(-1)
	allEqual := true
	for _, v := range validators {
		if v.Performance > maxPerf {
			maxPerf = v.Performance
		}
		if v.Performance != validators[0].Performance {
			allEqual = false
		}
	}
	if len(validators) == 0 {
		return
	}
	if allEqual || maxPerf == minPerf {
		for _, v := range validators {
			v.RelativePerformance = 0
		}
		return
	}
	for _, v := range validators {
		rel := (v.Performance - minPerf) / (maxPerf - minPerf)
		v.RelativePerformance = math.Round(rel*1e6) / 1e6
	}
}
