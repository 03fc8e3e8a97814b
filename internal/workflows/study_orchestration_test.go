package workflows

import "testing"

func TestStudyNavigationPercent(t *testing.T) {
	cases := []struct {
		completed, total, want int
	}{
		{0, 5, 5},
		{1, 5, 5 + 16},
		{5, 5, 85},
		{3, 4, 5 + int(80.0*3/4)},
		{1, 1, 85},
		{0, 0, 85},
	}
	for _, c := range cases {
		if got := studyNavigationPercent(c.completed, c.total); got != c.want {
			t.Errorf("studyNavigationPercent(%d, %d) = %d, want %d", c.completed, c.total, got, c.want)
		}
	}
}

func TestStudyNavigationPercent_MonotonicallyNonDecreasing(t *testing.T) {
	total := 7
	prev := 0
	for completed := 0; completed <= total; completed++ {
		pct := studyNavigationPercent(completed, total)
		if pct < prev {
			t.Fatalf("percent decreased at completed=%d: %d < %d", completed, pct, prev)
		}
		if pct < 0 || pct > 100 {
			t.Fatalf("percent out of [0,100] at completed=%d: %d", completed, pct)
		}
		prev = pct
	}
}
