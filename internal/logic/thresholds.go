package logic

import "strconv"

// Thresholds is the threshold/mode state machine. It owns the threshold
// pair and the active edit mode; nothing else mutates them.
type Thresholds struct {
	cfg  ThresholdConfig
	mode EditMode
}

// NewThresholds creates the state machine with the given pair, editing Low.
func NewThresholds(cfg ThresholdConfig) *Thresholds {
	return &Thresholds{cfg: cfg, mode: EditLow}
}

// Config returns a copy of the current threshold pair.
func (t *Thresholds) Config() ThresholdConfig {
	return t.cfg
}

// Mode returns the active edit mode.
func (t *Thresholds) Mode() EditMode {
	return t.mode
}

// Increment raises the threshold named by the active mode by one.
// No bounds are applied.
func (t *Thresholds) Increment() {
	t.adjust(1)
}

// Decrement lowers the threshold named by the active mode by one.
func (t *Thresholds) Decrement() {
	t.adjust(-1)
}

func (t *Thresholds) adjust(delta int) {
	switch t.mode {
	case EditLow:
		t.cfg.Low += delta
	case EditHigh:
		t.cfg.High += delta
	}
}

// SelectLow makes Low the active edit mode.
func (t *Thresholds) SelectLow() {
	t.mode = EditLow
}

// SelectHigh makes High the active edit mode.
func (t *Thresholds) SelectHigh() {
	t.mode = EditHigh
}

// Label returns the display text for the active mode, e.g. "MIN:40".
func (t *Thresholds) Label() string {
	if t.mode == EditHigh {
		return "MAX:" + strconv.Itoa(t.cfg.High)
	}
	return "MIN:" + strconv.Itoa(t.cfg.Low)
}
