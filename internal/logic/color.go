package logic

// ColorFor maps a metric onto a colour band. Values equal to either
// boundary are Mid. The mapping is evaluated in the order high, low, so
// crossed thresholds (low > high) still yield a deterministic result.
func ColorFor(metric int, cfg ThresholdConfig) ColorLevel {
	if metric > cfg.High {
		return LevelHigh
	}
	if metric < cfg.Low {
		return LevelLow
	}
	return LevelMid
}
