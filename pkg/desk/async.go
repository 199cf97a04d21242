package desk

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/papercomputeco/hrdesk/pkg/document"
	"github.com/papercomputeco/hrdesk/pkg/errdefs"
	"github.com/papercomputeco/hrdesk/pkg/ingest/worker"
	"github.com/papercomputeco/hrdesk/pkg/loader"
	"github.com/papercomputeco/hrdesk/pkg/roles"
	"github.com/papercomputeco/hrdesk/pkg/watcher"
)

// ResultFunc receives the outcome of one file's ingestion. It may be called
// from several goroutines at once.
type ResultFunc func(path string, doc *document.Document, err error)

// NewPool starts a worker pool that ingests through the service. Zero values
// use the pool defaults.
func (s *Service) NewPool(workers, queueSize uint) (*worker.Pool, error) {
	return worker.NewPool(&worker.Config{
		Ingester:   s,
		NumWorkers: workers,
		QueueSize:  queueSize,
		Logger:     s.logger.With("component", "worker"),
	})
}

// IngestFiles ingests paths in parallel and returns once every file is done.
// A file that cannot be loaded is reported through onResult and does not stop
// the others.
func (s *Service) IngestFiles(ctx context.Context, actor roles.Principal, paths []string, visibility roles.Policy, workers uint, onResult ResultFunc) error {
	if !roles.CanUpload(actor.Role) {
		return errdefs.PermissionDenied(actor.Role.String(), "upload documents")
	}
	if onResult == nil {
		onResult = func(string, *document.Document, error) {}
	}

	pool, err := s.NewPool(workers, 0)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	for _, path := range paths {
		up, err := LoadFile(path, visibility)
		if err != nil {
			onResult(path, nil, err)
			continue
		}

		wg.Add(1)
		job := worker.Job{
			Actor:  actor,
			Upload: up,
			Done: func(doc *document.Document, err error) {
				defer wg.Done()
				onResult(path, doc, err)
			},
		}
		if err := pool.Submit(ctx, job); err != nil {
			wg.Done()
			pool.Abort()
			return err
		}
	}

	pool.Close()
	wg.Wait()
	return nil
}

// WatchOptions configures Watch.
type WatchOptions struct {
	Dir        string
	Actor      roles.Principal
	Visibility roles.Policy
	Workers    uint

	// QueueSize bounds the files waiting for a worker. A file that settles
	// while the queue is full is skipped until it changes again.
	QueueSize uint

	Debounce time.Duration

	// ScanExisting ingests files already in Dir before watching for changes.
	ScanExisting bool

	OnResult ResultFunc
}

// Watch ingests every supported file that settles in o.Dir until ctx is done.
// Queued ingestions finish before Watch returns.
func (s *Service) Watch(ctx context.Context, o WatchOptions) error {
	if !roles.CanUpload(o.Actor.Role) {
		return errdefs.PermissionDenied(o.Actor.Role.String(), "upload documents")
	}
	onResult := o.OnResult
	if onResult == nil {
		onResult = func(string, *document.Document, error) {}
	}

	w, err := watcher.New(watcher.Config{
		Dir:          o.Dir,
		Accept:       loader.Supported,
		Debounce:     o.Debounce,
		ScanExisting: o.ScanExisting,
		Logger:       s.logger.With("component", "watcher"),
	})
	if err != nil {
		return err
	}
	defer w.Close()

	pool, err := s.NewPool(o.Workers, o.QueueSize)
	if err != nil {
		return err
	}
	defer pool.Close()

	err = w.Run(ctx, func(ctx context.Context, path string) {
		up, err := LoadFile(path, o.Visibility)
		if err != nil {
			s.logger.Warn("skipping file", "path", path, "error", err)
			onResult(path, nil, err)
			return
		}

		job := worker.Job{
			Actor:  o.Actor,
			Upload: up,
			Done: func(doc *document.Document, err error) {
				onResult(path, doc, err)
			},
		}
		if err := pool.Enqueue(job); err != nil {
			s.logger.Warn("ingest queue full, skipping file until it changes", "path", path)
			onResult(path, nil, err)
		}
	})
	if err != nil {
		return fmt.Errorf("watching %s: %w", o.Dir, err)
	}
	return nil
}
