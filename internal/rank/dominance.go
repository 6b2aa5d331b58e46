package rank

// AssignDominance marks every validator that is Pareto-dominated by at
// least one other validator per spec.md §4.5. The comparison is
// deliberately non-strict (>= on all four dimensions): two validators tied
// on every dimension are both marked dominated, since each weakly
// dominates the other. This is an O(N^2) pass over the ranking, acceptable
// for the validator-set sizes this pipeline targets (a few thousand).
func AssignDominance(validators []*RankedValidator) {
	for _, v := range validators {
		v.Dominated = false
	}
	for i, v := range validators {
		for j, o := range validators {
			if i == j {
				continue
			}
			if dominates(o, v) {
				v.Dominated = true
				break
			}
		}
	}
}

func dominates(o, v *RankedValidator) bool {
	return o.RelativePerformance >= v.RelativePerformance &&
		o.SelfStake.Cmp(v.SelfStake) >= 0 &&
		o.ActiveEras >= v.ActiveEras &&
		o.TotalRating >= v.TotalRating
}
