package device

import (
	"context"
	"sort"

	"github.com/sweeney/semaphor/internal/logic"
)

// Key identifies one gesture on one button.
type Key struct {
	Source logic.ButtonID
	Kind   logic.EventKind
}

// Handler reacts to a decoded gesture.
type Handler func(d *Device, ctx context.Context)

// DispatchTable maps every recognised gesture to its reaction.
type DispatchTable map[Key]Handler

// DefaultDispatch returns the front-panel bindings.
func DefaultDispatch() DispatchTable {
	return DispatchTable{
		{logic.ButtonPrimary, logic.Click}:            (*Device).decrement,
		{logic.ButtonPrimary, logic.DoubleClick}:      (*Device).selectLow,
		{logic.ButtonPrimary, logic.LongPressStart}:   (*Device).forceRefresh,
		{logic.ButtonSecondary, logic.Click}:          (*Device).increment,
		{logic.ButtonSecondary, logic.DoubleClick}:    (*Device).selectHigh,
		{logic.ButtonSecondary, logic.LongPressStart}: (*Device).reprovision,
	}
}

// Keys lists the bound gestures in a stable order.
func (t DispatchTable) Keys() []Key {
	keys := make([]Key, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Source != keys[j].Source {
			return keys[i].Source < keys[j].Source
		}
		return keys[i].Kind < keys[j].Kind
	})
	return keys
}

func (d *Device) decrement(ctx context.Context) {
	d.thresholds.Decrement()
	d.thresholdsChanged()
}

func (d *Device) increment(ctx context.Context) {
	d.thresholds.Increment()
	d.thresholdsChanged()
}

func (d *Device) selectLow(ctx context.Context) {
	d.thresholds.SelectLow()
	d.thresholdsChanged()
}

func (d *Device) selectHigh(ctx context.Context) {
	d.thresholds.SelectHigh()
	d.thresholdsChanged()
}

// forceRefresh starts a poll cycle now. The periodic timer is left alone.
func (d *Device) forceRefresh(ctx context.Context) {
	d.log.Infow("forced refresh")
	d.poll(ctx, true)
}

// reprovision reopens the portal. A fetch still in flight went out on the
// network being torn down, so its result is discarded.
func (d *Device) reprovision(ctx context.Context) {
	if d.online() {
		d.deps.Poller.Abandon()
	}
	if err := d.deps.Connectivity.Reprovision(ctx); err != nil && ctx.Err() == nil {
		d.fatal = err
	}
}
