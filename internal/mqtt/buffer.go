package mqtt

import "github.com/rs/zerolog/log"

// outgoing is a serialized message held for replay after reconnection.
type outgoing struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// offlineQueue is a fixed-capacity FIFO of messages published while the
// broker was unreachable. A retained message replaces any queued message on
// the same topic, so only the latest relay state is replayed.
// Not safe for concurrent use; the caller synchronizes.
type offlineQueue struct {
	buf     []outgoing
	size    int
	head    int // next write position
	count   int
	dropped int  // messages overwritten since the last drain
	warned  bool // overflow already logged since the last drain
}

func newOfflineQueue(size int) *offlineQueue {
	if size < 1 {
		size = 1
	}
	return &offlineQueue{buf: make([]outgoing, size), size: size}
}

func (q *offlineQueue) at(i int) *outgoing {
	return &q.buf[(q.head-q.count+i+q.size)%q.size]
}

func (q *offlineQueue) push(m outgoing) {
	if m.retained {
		for i := 0; i < q.count; i++ {
			if e := q.at(i); e.retained && e.topic == m.topic {
				*e = m
				return
			}
		}
	}
	if q.count == q.size {
		if !q.warned {
			log.Warn().Int("size", q.size).Msg("mqtt: offline queue full, dropping oldest")
			q.warned = true
		}
		q.dropped++
		q.count--
	}
	q.buf[q.head] = m
	q.head = (q.head + 1) % q.size
	q.count++
}

// drain returns the queued messages oldest first and empties the queue.
func (q *offlineQueue) drain() []outgoing {
	if q.count == 0 {
		return nil
	}
	out := make([]outgoing, 0, q.count)
	for i := 0; i < q.count; i++ {
		out = append(out, *q.at(i))
	}
	q.head, q.count, q.dropped, q.warned = 0, 0, 0, false
	return out
}

func (q *offlineQueue) len() int {
	return q.count
}
