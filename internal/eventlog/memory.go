package eventlog

import "sync"

// MemorySink collects events in-process. Used by tests and by callers that
// want to inspect the event stream (e.g. the health surface's recent-event
// view) without round-tripping through the filesystem.
type MemorySink struct {
	mu     sync.Mutex
	seq    uint64
	Events []Event
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Emit(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	e.Seq = s.seq
	s.Events = append(s.Events, e)
}

func (s *MemorySink) Close() error { return nil }

// ByType returns all recorded events of the given type, in emission order.
func (s *MemorySink) ByType(t Type) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Event
	for _, e := range s.Events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
