package mqtt

// bufferedMsg stores a serialized MQTT message for replay after reconnection.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// ringBuffer is a fixed-capacity FIFO that stores messages while disconnected.
// Not safe for concurrent use; the caller must synchronize.
type ringBuffer struct {
	buf      []bufferedMsg
	capacity int
	head     int // next write position
	count    int
	dropped  int // messages overwritten since last drain
}

func newRingBuffer(capacity int) *ringBuffer {
	return &ringBuffer{
		buf:      make([]bufferedMsg, capacity),
		capacity: capacity,
	}
}

// push stores msg, overwriting the oldest entry when full.
// Returns true on the first drop since the last drain.
func (r *ringBuffer) push(msg bufferedMsg) bool {
	r.buf[r.head] = msg
	r.head = (r.head + 1) % r.capacity
	if r.count == r.capacity {
		r.dropped++
		return r.dropped == 1
	}
	r.count++
	return false
}

// drainAll returns buffered messages oldest first and empties the buffer.
// Retained messages for a topic that appears again later are collapsed to
// the newest one, since only the last value matters to subscribers.
func (r *ringBuffer) drainAll() []bufferedMsg {
	if r.count == 0 {
		return nil
	}

	all := make([]bufferedMsg, r.count)
	// Oldest item is at (head - count) mod capacity
	start := (r.head - r.count + r.capacity) % r.capacity
	for i := 0; i < r.count; i++ {
		all[i] = r.buf[(start+i)%r.capacity]
	}

	lastRetained := make(map[string]int)
	for i, m := range all {
		if m.retained {
			lastRetained[m.topic] = i
		}
	}
	result := make([]bufferedMsg, 0, len(all))
	for i, m := range all {
		if m.retained && lastRetained[m.topic] != i {
			continue
		}
		result = append(result, m)
	}

	r.count = 0
	r.head = 0
	r.dropped = 0
	return result
}

func (r *ringBuffer) len() int {
	return r.count
}
