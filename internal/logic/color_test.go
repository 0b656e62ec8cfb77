package logic

import "testing"

func TestColorForSequence(t *testing.T) {
	cfg := ThresholdConfig{Low: 40, High: 45}
	metrics := []int{30, 40, 42, 45, 50}
	want := []ColorLevel{LevelLow, LevelMid, LevelMid, LevelMid, LevelHigh}

	for i, m := range metrics {
		if got := ColorFor(m, cfg); got != want[i] {
			t.Errorf("metric %d: got %s, want %s", m, got, want[i])
		}
	}
}

func TestColorForBoundaries(t *testing.T) {
	for low := -3; low <= 3; low++ {
		for high := low; high <= low+4; high++ {
			cfg := ThresholdConfig{Low: low, High: high}
			for m := low - 2; m <= high+2; m++ {
				got := ColorFor(m, cfg)
				var want ColorLevel
				switch {
				case m > high:
					want = LevelHigh
				case m < low:
					want = LevelLow
				default:
					want = LevelMid
				}
				if got != want {
					t.Errorf("ColorFor(%d, %+v): got %s, want %s", m, cfg, got, want)
				}
			}
		}
	}
}

func TestColorForParseSentinel(t *testing.T) {
	if got := ColorFor(-1, DefaultThresholds()); got != LevelLow {
		t.Errorf("sentinel -1: got %s, want LOW", got)
	}
}
