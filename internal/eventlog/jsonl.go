package eventlog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/sawpanic/basisengine/internal/health"
)

// JSONLSink writes one self-contained JSON record per line into a
// per-run, per-category file tree: a directory keyed by correlation id,
// within it per-category JSON-lines files appended line-by-line with no
// cross-line compression. Emit enqueues onto a bounded channel and
// returns immediately; a single background goroutine owns the actual
// file writes. Emit never blocks, and an event that finds the queue full
// is dropped, so delivery is not guaranteed.
type JSONLSink struct {
	log     zerolog.Logger
	dir     string
	runPID  int
	seq     uint64
	queue   chan Event
	done    chan struct{}
	files   map[Type]*os.File
	mu      sync.Mutex
	closeOnce sync.Once
}

// NewJSONLSink creates the per-run directory under root and starts the
// background writer. queueDepth bounds the enqueue so a stalled disk
// cannot unbound memory growth; Emit drops the event and logs a warning
// if the queue is full rather than blocking the tick.
func NewJSONLSink(root, correlationID string, queueDepth int, log zerolog.Logger) (*JSONLSink, error) {
	dir := filepath.Join(root, correlationID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create event log dir: %w", err)
	}
	s := &JSONLSink{
		log:    log.With().Str("component", "eventlog.JSONLSink").Logger(),
		dir:    dir,
		runPID: os.Getpid(),
		queue:  make(chan Event, queueDepth),
		done:   make(chan struct{}),
		files:  make(map[Type]*os.File),
	}
	go s.run()
	return s, nil
}

func (s *JSONLSink) Emit(e Event) {
	e.RunPID = s.runPID
	e.Seq = atomic.AddUint64(&s.seq, 1)
	select {
	case s.queue <- e:
	default:
		s.log.Warn().Str("event_type", string(e.Type)).Msg("event log queue full, dropping event")
	}
}

func (s *JSONLSink) run() {
	for e := range s.queue {
		if err := s.write(e); err != nil {
			s.log.Error().Err(err).Msg("failed to write event")
		}
	}
	close(s.done)
}

func (s *JSONLSink) write(e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.files[e.Type]
	if !ok {
		path := filepath.Join(s.dir, string(e.Type)+".jsonl")
		var err error
		f, err = os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open %s: %w", path, err)
		}
		s.files[e.Type] = f
	}

	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	line = append(line, '\n')
	_, err = f.Write(line)
	return err
}

// QueueUsage reports the fraction of the bounded queue currently occupied,
// for the health surface.
func (s *JSONLSink) QueueUsage() float64 {
	if cap(s.queue) == 0 {
		return 0
	}
	return float64(len(s.queue)) / float64(cap(s.queue))
}

// CheckHealth reports degraded once the queue is more than half full: a
// disk that can't keep up shows up here before it ever drops an event.
func (s *JSONLSink) CheckHealth(ctx context.Context) health.ComponentHealth {
	usage := s.QueueUsage()
	status := health.StatusHealthy
	if usage > 0.5 {
		status = health.StatusDegraded
	}
	if usage >= 1.0 {
		status = health.StatusDown
	}
	return health.ComponentHealth{
		Component:   "eventlog.JSONLSink",
		Status:      status,
		LastChecked: time.Now(),
		Detail:      map[string]string{"queue_usage": fmt.Sprintf("%.2f", usage)},
	}
}

// Close drains the queue, writes a terminal marker event, and closes all
// open files.
func (s *JSONLSink) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.queue)
		<-s.done
		marker := Event{Type: "terminal", Component: "eventlog.JSONLSink", Payload: map[string]any{"clean_shutdown": true}}
		_ = s.write(marker)

		s.mu.Lock()
		defer s.mu.Unlock()
		for _, f := range s.files {
			if cerr := f.Close(); cerr != nil {
				err = cerr
			}
		}
	})
	return err
}
