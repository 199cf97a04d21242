// Package worker runs document ingestions asynchronously on a bounded pool so
// that independent documents are embedded and indexed in parallel.
//
// The watcher and bulk CLI ingest feed the pool; the per-document lock inside
// the pipeline still serializes jobs that target the same document.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/papercomputeco/hrdesk/pkg/document"
	"github.com/papercomputeco/hrdesk/pkg/ingest"
	"github.com/papercomputeco/hrdesk/pkg/roles"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 256
)

// ErrQueueFull is returned by Enqueue when the job would have to wait.
var ErrQueueFull = errors.New("ingest queue full")

// Ingester is the pipeline operation the pool drives.
type Ingester interface {
	Ingest(ctx context.Context, actor roles.Principal, up ingest.Upload) (*document.Document, error)
}

// Job is a unit of work for the worker pool to execute against.
type Job struct {
	Actor  roles.Principal
	Upload ingest.Upload

	// Done, if set, is called with the outcome from the worker goroutine.
	Done func(doc *document.Document, err error)
}

// Config is the configuration options for the worker pool.
type Config struct {
	// Ingester runs each job.
	Ingester Ingester

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	Logger *slog.Logger
}

// Pool processes ingestion jobs asynchronously via a worker pool.
type Pool struct {
	ingester Ingester
	queue    chan Job
	wg       sync.WaitGroup
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.Ingester == nil {
		return nil, errors.New("worker pool requires an ingester")
	}

	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	logger := c.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	ctx, cancel := context.WithCancel(context.Background())
	wp := &Pool{
		ingester: c.Ingester,
		queue:    make(chan Job, c.QueueSize),
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// Enqueue submits a job without blocking. It returns ErrQueueFull, dropping the
// job, when the queue has no room.
func (p *Pool) Enqueue(job Job) error {
	select {
	case p.queue <- job:
		p.logger.Debug("job queued", "filename", job.Upload.Filename)
		return nil
	default:
		p.logger.Error("job not queued, queue full, job dropped", "filename", job.Upload.Filename)
		return ErrQueueFull
	}
}

// Submit waits for room in the queue or for ctx to be done.
func (p *Pool) Submit(ctx context.Context, job Job) error {
	select {
	case p.queue <- job:
		p.logger.Debug("job queued", "filename", job.Upload.Filename)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting jobs and waits for queued and in-flight jobs to drain.
func (p *Pool) Close() {
	close(p.queue)
	p.wg.Wait()
	p.cancel()
}

// Abort cancels in-flight jobs, then drains like Close. Cancelled jobs fail and
// clean up their partial index state.
func (p *Pool) Abort() {
	p.cancel()
	p.Close()
}

// worker is the inner worker thread that continuously pulls jobs off the jobs queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", "worker_id", id)

	for job := range p.queue {
		p.processJob(job)
	}

	p.logger.Debug("ingest worker stopped", "worker_id", id)
}

func (p *Pool) processJob(job Job) {
	doc, err := p.ingester.Ingest(p.ctx, job.Actor, job.Upload)
	if err != nil {
		p.logger.Error("async ingestion failed",
			"filename", job.Upload.Filename,
			"error", err,
		)
	}

	if job.Done != nil {
		job.Done(doc, err)
	}
}
