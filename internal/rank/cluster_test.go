package rank

import "testing"

func TestShowCountBands(t *testing.T) {
	cases := []struct {
		size int
		show int
	}{
		{2, 2},
		{3, 2},
		{10, 8},
		{11, 6},
		{20, 12},
		{21, 8},
		{50, 20},
		{51, 10},
		{100, 20},
	}
	for _, tc := range cases {
		if got := showCount(tc.size); got != tc.show {
			t.Fatalf("showCount(%d) = %d, want %d", tc.size, got, tc.show)
		}
	}
}

// TestClusterSamplingSizeTwelveScenario pins spec.md §8 scenario 3: an M-band
// cluster of size 12 must show exactly floor(0.6*12)=7 and hide exactly 5,
// regardless of which members are chosen.
func TestClusterSamplingSizeTwelveScenario(t *testing.T) {
	validators := make([]*RankedValidator, 12)
	for i := range validators {
		validators[i] = &RankedValidator{
			ValidatorRecord: ValidatorRecord{
				Identity: Identity{DisplayParent: "BigPool"},
			},
		}
	}
	AssignClusters(validators)

	hidden := 0
	for _, v := range validators {
		if v.ClusterMembers != 12 {
			t.Fatalf("expected clusterMembers=12 for every member, got %d", v.ClusterMembers)
		}
		if !v.PartOfCluster {
			t.Fatalf("a 12-member cluster must report partOfCluster=true")
		}
		if !v.ShowClusterMember {
			hidden++
		}
	}
	if hidden != 5 {
		t.Fatalf("expected exactly 5 hidden members, got %d", hidden)
	}
}

func TestClusterHidingCountExactAcrossBands(t *testing.T) {
	sizes := []int{2, 3, 7, 10, 11, 18, 21, 40, 60}
	for _, size := range sizes {
		validators := make([]*RankedValidator, size)
		for i := range validators {
			validators[i] = &RankedValidator{
				ValidatorRecord: ValidatorRecord{Identity: Identity{DisplayParent: "Pool"}},
			}
		}
		AssignClusters(validators)

		hidden := 0
		for _, v := range validators {
			if !v.ShowClusterMember {
				hidden++
			}
		}
		wantHidden := size - showCount(size)
		if hidden != wantHidden {
			t.Fatalf("size %d: hidden=%d, want %d", size, hidden, wantHidden)
		}
	}
}

func TestSingletonNotSampled(t *testing.T) {
	validators := []*RankedValidator{
		{ValidatorRecord: ValidatorRecord{Identity: Identity{}}},
	}
	AssignClusters(validators)
	if validators[0].ClusterMembers != 0 {
		t.Fatalf("no-display validator should have clusterMembers=0, got %d", validators[0].ClusterMembers)
	}
	if validators[0].PartOfCluster {
		t.Fatalf("singleton must not be partOfCluster")
	}
	if !validators[0].ShowClusterMember {
		t.Fatalf("singleton must remain visible")
	}
}

func TestPrefixClusterNaming(t *testing.T) {
	validators := []*RankedValidator{
		{ValidatorRecord: ValidatorRecord{StashID: "a", Identity: Identity{Display: "Binance01"}}},
		{ValidatorRecord: ValidatorRecord{StashID: "b", Identity: Identity{Display: "Binance_"}}},
	}
	AssignClusters(validators)
	if validators[0].ClusterMembers != 2 {
		t.Fatalf("expected both validators to share the 'Binanc' prefix cluster, got members=%d", validators[0].ClusterMembers)
	}
	if validators[0].ClusterName != "Binance" {
		t.Fatalf("trailing digits must be stripped from the display name, got %q", validators[0].ClusterName)
	}
	if validators[1].ClusterName != "Binance" {
		t.Fatalf("trailing underscore must be stripped from the display name, got %q", validators[1].ClusterName)
	}
}

func TestDisplayParentClusterOverridesPrefixHeuristic(t *testing.T) {
	validators := []*RankedValidator{
		{ValidatorRecord: ValidatorRecord{Identity: Identity{DisplayParent: "Foundation", Display: "Node1"}}},
		{ValidatorRecord: ValidatorRecord{Identity: Identity{DisplayParent: "Foundation", Display: "Node2"}}},
		{ValidatorRecord: ValidatorRecord{Identity: Identity{Display: "Nodeolone"}}},
	}
	AssignClusters(validators)
	if validators[0].ClusterMembers != 2 || validators[1].ClusterMembers != 2 {
		t.Fatalf("sub-identity cluster must count only the two Foundation members")
	}
	if validators[0].ClusterName != "Foundation" {
		t.Fatalf("sub-identity cluster name must be the displayParent, got %q", validators[0].ClusterName)
	}
}
