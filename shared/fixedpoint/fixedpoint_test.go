package fixedpoint

import "testing"

func TestAddSubRoundTrip(t *testing.T) {
	a := FLK(10)
	b := FLK(3)
	sum := Add(a, b)
	if sum.Raw() != FLK(13).Raw() {
		t.Fatalf("10+3 = %d, want %d", sum.Raw(), FLK(13).Raw())
	}
	diff := Sub(sum, b)
	if diff.Raw() != a.Raw() {
		t.Fatalf("13-3 = %d, want %d", diff.Raw(), a.Raw())
	}
}

func TestDivRoundsTowardZero(t *testing.T) {
	// 1000 / 3 should truncate, not round to nearest.
	got := Div(Stable(1000), Stable(3))
	want := Div(Stable(1000), Stable(3))
	if Cmp(got, want) != 0 {
		t.Fatalf("division is not deterministic across calls")
	}
	// 7 stable units / 2 == 3.5, truncated representation must not equal 4.
	four := Stable(4)
	half := Div(Stable(7), Stable(2))
	if Cmp(half, four) >= 0 {
		t.Fatalf("division rounded up instead of toward zero")
	}
}

func TestRewardSplitMatchesScenario6(t *testing.T) {
	// spec.md scenario 6: node0 revenue 2000, node1 revenue 1000, node share 80%.
	nodeShare := Percent(80)
	node0Revenue := Stable(2000)
	node1Revenue := Stable(1000)

	node0Reward := Mul(node0Revenue, nodeShare)
	node1Reward := Mul(node1Revenue, nodeShare)

	if node0Reward.Raw() != Stable(1600).Raw() {
		t.Fatalf("node0 reward = %d, want %d", node0Reward.Raw(), Stable(1600).Raw())
	}
	if node1Reward.Raw() != Stable(800).Raw() {
		t.Fatalf("node1 reward = %d, want %d", node1Reward.Raw(), Stable(800).Raw())
	}
}
