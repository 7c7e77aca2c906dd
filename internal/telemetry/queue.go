package telemetry

// outMsg is a fully rendered MQTT message waiting for the broker to return.
type outMsg struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

// sendQueue holds messages published while the broker is unreachable so the
// reconnect handler can replay them in order. It is bounded: once max entries
// are queued, each new message evicts the oldest. Callers synchronize access
// themselves.
type sendQueue struct {
	msgs []outMsg
	max  int
}

func newSendQueue(max int) *sendQueue {
	return &sendQueue{max: max}
}

// add enqueues m, evicting the oldest entry if the queue is full.
// It reports whether an eviction happened.
func (q *sendQueue) add(m outMsg) bool {
	evicted := false
	if q.max > 0 && len(q.msgs) >= q.max {
		n := copy(q.msgs, q.msgs[1:])
		q.msgs = q.msgs[:n]
		evicted = true
	}
	q.msgs = append(q.msgs, m)
	return evicted
}

// takeAll empties the queue and returns its contents oldest first.
// An empty queue yields nil.
func (q *sendQueue) takeAll() []outMsg {
	if len(q.msgs) == 0 {
		return nil
	}
	out := q.msgs
	q.msgs = nil
	return out
}

func (q *sendQueue) size() int {
	return len(q.msgs)
}
