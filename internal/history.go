package internal

// History is the append-only log replayed to every joining connection.
// It is memory-only and unbounded; the log is gone on restart.
//
// Like Registry, History has no lock of its own: the Server guards both as
// one unit so an append and its broadcast never interleave with a replay.
type History struct {
	entries []Message
}

func NewHistory() *History {
	return &History{entries: make([]Message, 0, 64)}
}

func (h *History) Append(msg Message) {
	h.entries = append(h.entries, msg)
}

// Replay returns a snapshot of the full log in arrival order.
func (h *History) Replay() []Message {
	out := make([]Message, len(h.entries))
	copy(out, h.entries)
	return out
}

func (h *History) Len() int {
	return len(h.entries)
}
