package queue

import (
	"context"
	"errors"
	"hash/fnv"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tafelzaak/identity/internal/core/domain"
	"github.com/tafelzaak/identity/internal/core/ports"
	"github.com/tafelzaak/identity/internal/pkg/metrics"
)

const (
	defaultWorkers = 4
	defaultBuffer  = 256
	writeTimeout   = 5 * time.Second
)

var (
	// ErrQueueFull is returned by Append when the actor's worker is saturated.
	ErrQueueFull = errors.New("audit queue full")
	// ErrDispatcherStopped is returned by Append after Stop.
	ErrDispatcherStopped = errors.New("audit dispatcher stopped")
)

// Dispatcher takes audit writes off the request path. Entries are sharded by
// actor onto a fixed set of workers, so the entries of one actor reach the
// sink in the order they were appended.
type Dispatcher struct {
	workers []chan domain.AuditLogEntry
	sink    ports.AuditSink
	log     zerolog.Logger

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

var _ ports.AuditSink = (*Dispatcher)(nil)

// NewDispatcher creates a Dispatcher with numWorkers workers of buffer
// entries each, writing to sink. Non-positive values fall back to defaults.
func NewDispatcher(numWorkers, buffer int, sink ports.AuditSink, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	d := &Dispatcher{
		workers: make([]chan domain.AuditLogEntry, numWorkers),
		sink:    sink,
		log:     log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan domain.AuditLogEntry, buffer)
	}
	return d
}

// Start launches the worker goroutines. They run until Stop drains them.
func (d *Dispatcher) Start() {
	for i, ch := range d.workers {
		d.wg.Add(1)
		go d.runWorker(i, ch)
	}
}

// Append hands entry to its actor's worker without blocking.
func (d *Dispatcher) Append(_ context.Context, entry domain.AuditLogEntry) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		return ErrDispatcherStopped
	}

	idx := d.shardIndex(entry.ActorID)
	select {
	case d.workers[idx] <- entry:
		metrics.AuditQueueDepth.WithLabelValues(strconv.Itoa(idx)).Set(float64(len(d.workers[idx])))
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop refuses new entries and waits until queued ones are written or ctx
// expires.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.stopped {
		d.stopped = true
		for _, ch := range d.workers {
			close(ch)
		}
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// shardIndex maps an actor deterministically to a worker index.
func (d *Dispatcher) shardIndex(actorID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(actorID))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(id int, ch <-chan domain.AuditLogEntry) {
	defer d.wg.Done()
	label := strconv.Itoa(id)

	for entry := range ch {
		metrics.AuditQueueDepth.WithLabelValues(label).Set(float64(len(ch)))

		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := d.sink.Append(ctx, entry)
		cancel()
		if err != nil {
			metrics.AuditWriteFailuresTotal.Inc()
			d.log.Error().Err(err).
				Str("actor_id", entry.ActorID).
				Str("action", entry.Action).
				Int("worker_id", id).
				Msg("audit write failed")
		}
	}
}
