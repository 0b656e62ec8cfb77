package mqtt

// outgoing is one serialized message. kind is the event type or system
// event name it was built from.
type outgoing struct {
	kind     string
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// Backlog describes messages held back while the broker is unreachable.
type Backlog struct {
	Queued int
	// Dropped counts evicted messages by kind since start.
	Dropped map[string]int
}

// outbox holds messages while the broker is unreachable and hands them
// back in publish order on reconnect.
//
// When full, readings go first: the oldest READING or POLL_FAILED is
// evicted, and a lifecycle notice is evicted only when nothing else is
// left. THRESHOLDS and HEARTBEAT describe current state, so a newer one
// replaces the queued one instead of taking a second slot.
//
// Not safe for concurrent use; the caller must synchronize.
type outbox struct {
	limit   int
	queue   []outgoing
	dropped map[string]int
}

func newOutbox(limit int) *outbox {
	return &outbox{limit: limit, dropped: make(map[string]int)}
}

// add queues m. It reports the kind of the message evicted to make room.
func (o *outbox) add(m outgoing) (evicted string, ok bool) {
	if replaceable(m.kind) {
		for i, q := range o.queue {
			if q.kind == m.kind {
				o.remove(i)
				break
			}
		}
	}
	if len(o.queue) >= o.limit {
		i := o.victim()
		evicted, ok = o.queue[i].kind, true
		o.dropped[evicted]++
		o.remove(i)
	}
	o.queue = append(o.queue, m)
	return evicted, ok
}

// take empties the queue. Drop counts are kept.
func (o *outbox) take() []outgoing {
	q := o.queue
	o.queue = nil
	return q
}

func (o *outbox) backlog() Backlog {
	dropped := make(map[string]int, len(o.dropped))
	for k, n := range o.dropped {
		dropped[k] = n
	}
	return Backlog{Queued: len(o.queue), Dropped: dropped}
}

func (o *outbox) victim() int {
	for i, q := range o.queue {
		if expendable(q.kind) {
			return i
		}
	}
	return 0
}

func (o *outbox) remove(i int) {
	o.queue = append(o.queue[:i], o.queue[i+1:]...)
}

func expendable(kind string) bool {
	return kind == string(EventReading) || kind == string(EventPollFailed)
}

func replaceable(kind string) bool {
	return kind == string(EventThresholds) || kind == "HEARTBEAT"
}
