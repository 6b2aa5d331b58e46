package rank

import (
	"math/rand"
	"strings"
)

// AssignClusters computes cluster membership, size, and the per-cluster
// random visibility sampling of spec.md §4.4, mutating each ranked
// validator in place.
func AssignClusters(validators []*RankedValidator) {
	groupKeys := make([]string, len(validators))
	for i, v := range validators {
		key, name := clusterKeyAndName(v.Identity)
		groupKeys[i] = key
		v.ClusterName = name
		v.ClusterMembers = 0
		v.PartOfCluster = false
		v.ShowClusterMember = true
	}

	byGroup := make(map[string][]int)
	for i, key := range groupKeys {
		if key == "" {
			continue
		}
		byGroup[key] = append(byGroup[key], i)
	}

	for _, idxs := range byGroup {
		size := len(idxs)
		for _, i := range idxs {
			validators[i].ClusterMembers = size
			validators[i].PartOfCluster = size > 1
		}
		if size <= 1 {
			continue
		}
		hide := size - showCount(size)
		hideMembers(validators, idxs, hide)
	}
}

// clusterKeyAndName returns (a) the grouping key used to count cluster
// membership and select hidden members, and (b) the display name stored on
// the validator. Per spec.md §4.4 these can differ for prefix clusters:
// membership is keyed by the first six runes of display, but each member's
// displayed clusterName is derived from its own display string.
func clusterKeyAndName(id Identity) (key, name string) {
	switch {
	case id.DisplayParent != "":
		return "dp:" + id.DisplayParent, id.DisplayParent
	case id.Display != "":
		return "px:" + clusterPrefixKey(id.Display), prefixClusterName(id.Display)
	default:
		return "", ""
	}
}

// prefixClusterName derives the displayed cluster name for a no-sub-identity
// validator: its own display with trailing digits (up to 2) and a trailing
// '-'/'_' stripped.
func prefixClusterName(display string) string {
	name := display
	trimmed := 0
	for len(name) > 0 && trimmed < 2 && isDigit(name[len(name)-1]) {
		name = name[:len(name)-1]
		trimmed++
	}
	name = strings.TrimRight(name, "-_")
	return name
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

// clusterPrefixKey returns the first 6 runes of display, the heuristic
// prefix-cluster membership key.
func clusterPrefixKey(display string) string {
	r := []rune(display)
	if len(r) > 6 {
		r = r[:6]
	}
	return string(r)
}

// showCount maps a cluster size to the number of members that stay visible,
// per spec.md §4.4's band table.
func showCount(size int) int {
	switch {
	case size == 2:
		return 2
	case size >= 3 && size <= 10:
		return int(0.8 * float64(size))
	case size >= 11 && size <= 20:
		return int(0.6 * float64(size))
	case size >= 21 && size <= 50:
		return int(0.4 * float64(size))
	default:
		return int(0.2 * float64(size))
	}
}

// hideMembers uniformly selects `hide` members without replacement from the
// cluster's index set and flips ShowClusterMember to false for each.
func hideMembers(validators []*RankedValidator, idxs []int, hide int) {
	if hide <= 0 {
		return
	}
	if hide > len(idxs) {
		hide = len(idxs)
	}
	perm := rand.Perm(len(idxs))
	for i := 0; i < hide; i++ {
		validators[idxs[perm[i]]].ShowClusterMember = false
	}
}
