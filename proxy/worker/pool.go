// Package worker provides an asynchronous worker pool that charges quota and
// publishes usage events for relayed streams that completed successfully.
//
// The pool decouples the quota decrement from the relay's HTTP hot path so
// the client-relay-upstream stream is never held up by the quota store.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/streamrelay/streamrelay/pkg/eventstream"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 256
	defaultJobTimeout        = 10 * time.Second
)

// Job describes one completed relay to charge.
type Job struct {
	Token       string
	Path        string
	Fragments   int
	Bytes       int64
	StartedAt   time.Time
	CompletedAt time.Time
}

// Charger lowers a token's quota by one unit.
type Charger interface {
	Consume(ctx context.Context, token string) (int64, error)
}

// Config is the configuration options for the worker pool.
type Config struct {
	// Charger decrements quota for each job.
	Charger Charger

	// Publisher is the optional usage event publisher. Nil disables
	// publishing.
	Publisher eventstream.Publisher

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	// JobTimeout bounds the charge and publish of one job (defaults to 10s).
	JobTimeout time.Duration

	Logger *slog.Logger
}

// Pool processes usage jobs asynchronously via a worker pool.
type Pool struct {
	config *Config
	queue  chan Job
	wg     sync.WaitGroup
	logger *slog.Logger

	// mu guards closed so no send races the close of queue.
	mu     sync.RWMutex
	closed bool
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.Charger == nil {
		return nil, fmt.Errorf("worker pool requires a charger")
	}

	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.JobTimeout <= 0 {
		c.JobTimeout = defaultJobTimeout
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	wp := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: c.Logger,
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// Enqueue submits a job for processing by the worker pool.
// Returns true if enqueued, false if the queue is full, resulting in the job
// being dropped and the stream going uncharged. Jobs submitted after Close
// are dropped the same way.
func (p *Pool) Enqueue(job Job) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.logger.Error("usage job not queued, pool closed, job dropped",
			"token_fingerprint", eventstream.Fingerprint(job.Token),
			"path", job.Path,
		)
		return false
	}

	select {
	case p.queue <- job:
		p.logger.Debug("usage job queued",
			"token_fingerprint", eventstream.Fingerprint(job.Token),
			"path", job.Path,
		)
		return true
	default:
		p.logger.Error("usage job not queued, queue full, job dropped",
			"token_fingerprint", eventstream.Fingerprint(job.Token),
			"path", job.Path,
		)
		return false
	}
}

// Close signals workers to stop and waits for in-flight jobs to drain.
// Call this during graceful shutdown after the relay HTTP server has stopped.
// Close is safe to call more than once.
func (p *Pool) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	p.wg.Wait()
}

// worker is the inner worker thread that continuously pulls jobs off the jobs queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", "worker_id", id)

	for job := range p.queue {
		p.processJob(job)
	}

	p.logger.Debug("usage worker stopped", "worker_id", id)
}

// processJob charges the job's token and publishes a usage event. A failed
// charge is logged and not retried.
func (p *Pool) processJob(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), p.config.JobTimeout)
	defer cancel()

	fingerprint := eventstream.Fingerprint(job.Token)

	var remaining *int64
	n, err := p.config.Charger.Consume(ctx, job.Token)
	if err != nil {
		p.logger.Error("quota decrement failed",
			"token_fingerprint", fingerprint,
			"error", err,
		)
	} else {
		remaining = &n
		p.logger.Info("usage recorded",
			"token_fingerprint", fingerprint,
			"remaining", n,
			"fragments", job.Fragments,
			"duration", job.CompletedAt.Sub(job.StartedAt),
		)
	}

	if p.config.Publisher == nil {
		return
	}

	event := eventstream.NewUsageEvent(eventstream.Usage{
		Token:       job.Token,
		Path:        job.Path,
		Fragments:   job.Fragments,
		Bytes:       job.Bytes,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
		Remaining:   remaining,
	})
	if err := p.config.Publisher.PublishUsage(ctx, event); err != nil {
		p.logger.Warn("failed to publish usage event",
			"token_fingerprint", fingerprint,
			"event_id", event.EventID,
			"error", err,
		)
	}
}
