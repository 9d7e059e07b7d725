package gateway

import (
	"strconv"
	"time"
)

// Envelope kinds.
const (
	KindAlert  = "alert"
	KindStatus = "status"
)

// buildEnvelope writes {"type":...,"data":...,"ts":"...","seq":N} without a
// reflection pass over the already-encoded payload.
func buildEnvelope(kind string, data []byte, now time.Time, seq int64) []byte {
	buf := make([]byte, 0, len(kind)+len(data)+96)
	buf = append(buf, `{"type":"`...)
	buf = append(buf, kind...)
	buf = append(buf, `","data":`...)
	buf = append(buf, data...)
	buf = append(buf, `,"ts":"`...)
	buf = now.AppendFormat(buf, time.RFC3339Nano)
	buf = append(buf, `","seq":`...)
	buf = strconv.AppendInt(buf, seq, 10)
	buf = append(buf, '}')
	return buf
}

// Broadcast stamps data with the next seq, keeps alerts in the replay
// buffer and fans the envelope out to every client. Slow clients whose send
// queue is full miss the message and can backfill by seq. The whole step
// runs under the hub lock so seq order equals delivery order.
func (h *Hub) Broadcast(kind string, data []byte) int64 {
	now := h.now().UTC()

	h.mu.Lock()
	defer h.mu.Unlock()

	h.seq++
	seq := h.seq
	buf := buildEnvelope(kind, data, now, seq)
	if kind == KindAlert {
		h.replay.Push(seq, buf)
	}

	for client := range h.clients {
		select {
		case client.send <- buf:
		default:
		}
	}
	return seq
}
