package serviceimpl

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/RCXD/Bros-back/domain/models"
	"github.com/RCXD/Bros-back/domain/ports"
	"github.com/RCXD/Bros-back/pkg/logger"
	"github.com/RCXD/Bros-back/pkg/utils"
)

const (
	DefaultDispatcherWorkers = 4
	DefaultDispatcherQueue   = 256
)

// CompressJob asks for the raw file at Path to be recompressed in place,
// keeping its format.
type CompressJob struct {
	ExternalID uuid.UUID
	Path       string
	Category   models.ImageCategory
	Ext        string
	RequestID  string
}

type CompressDispatcherConfig struct {
	Workers   int
	QueueSize int
}

// CompletionFunc runs after a job's file has been replaced.
type CompletionFunc func(ctx context.Context, job CompressJob, result *ports.CompressResult)

// CompressDispatcher is a fixed pool of workers fed by a bounded queue.
// Enqueue never blocks; a full queue is reported to the caller. Failed jobs
// are logged and dropped, the raw file stays servable.
type CompressDispatcher struct {
	storage    ports.StoragePort
	compressor ports.CompressorPort
	workers    int

	jobs       chan CompressJob
	mu         sync.RWMutex
	closed     bool
	startOnce  sync.Once
	wg         sync.WaitGroup
	onComplete CompletionFunc

	processed atomic.Int64
	failed    atomic.Int64
}

func NewCompressDispatcher(cfg CompressDispatcherConfig, storage ports.StoragePort, compressor ports.CompressorPort) *CompressDispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultDispatcherWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultDispatcherQueue
	}
	return &CompressDispatcher{
		storage:    storage,
		compressor: compressor,
		workers:    cfg.Workers,
		jobs:       make(chan CompressJob, cfg.QueueSize),
	}
}

// OnComplete sets the hook run after a successful replace. Call before Start.
func (d *CompressDispatcher) OnComplete(fn CompletionFunc) {
	d.onComplete = fn
}

func (d *CompressDispatcher) Start() {
	d.startOnce.Do(func() {
		for i := 0; i < d.workers; i++ {
			d.wg.Add(1)
			go d.worker(i + 1)
		}
		logger.Info("Compression dispatcher started", "workers", d.workers, "queue_size", cap(d.jobs))
	})
}

// Enqueue hands job to the pool without waiting.
func (d *CompressDispatcher) Enqueue(job CompressJob) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return models.ErrDispatcherClosed
	}
	select {
	case d.jobs <- job:
		return nil
	default:
		return models.ErrDispatcherFull
	}
}

// Shutdown stops accepting jobs and waits for queued ones to finish or for
// ctx to end, whichever comes first.
func (d *CompressDispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.jobs)
	}
	d.mu.Unlock()

	// workers that were never started cannot drain the queue
	d.Start()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("Compression dispatcher drained",
			"processed", d.processed.Load(),
			"failed", d.failed.Load(),
		)
		return nil
	case <-ctx.Done():
		logger.Warn("Compression dispatcher shutdown timed out", "pending", len(d.jobs))
		return ctx.Err()
	}
}

// Pending is the number of queued jobs not yet picked up.
func (d *CompressDispatcher) Pending() int {
	return len(d.jobs)
}

func (d *CompressDispatcher) Stats() (processed, failed int64) {
	return d.processed.Load(), d.failed.Load()
}

func (d *CompressDispatcher) worker(id int) {
	defer d.wg.Done()
	for job := range d.jobs {
		d.run(id, job)
	}
}

func (d *CompressDispatcher) run(workerID int, job CompressJob) {
	ctx := logger.ContextWithRequestID(context.Background(), job.RequestID)

	defer func() {
		if r := recover(); r != nil {
			d.failed.Add(1)
			logger.ErrorContext(ctx, "Compression job panicked", "worker", workerID, "path", job.Path, "panic", r)
		}
	}()

	result, err := d.process(ctx, job)
	if errors.Is(err, ports.ErrFileNotFound) {
		logger.InfoContext(ctx, "Image deleted while queued, dropping job",
			"external_id", job.ExternalID,
			"path", job.Path,
		)
		return
	}
	if err != nil {
		d.failed.Add(1)
		logger.ErrorContext(ctx, "Compression job failed",
			"worker", workerID,
			"external_id", job.ExternalID,
			"path", job.Path,
			"error", err,
		)
		return
	}
	d.processed.Add(1)

	if result != nil && d.onComplete != nil {
		d.onComplete(ctx, job, result)
	}
}

// process returns a nil result when the raw file was kept as is.
func (d *CompressDispatcher) process(ctx context.Context, job CompressJob) (*ports.CompressResult, error) {
	rc, _, err := d.storage.GetFileContent(job.Path)
	if err != nil {
		return nil, fmt.Errorf("read raw image: %w", err)
	}
	raw, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return nil, fmt.Errorf("read raw image: %w", err)
	}

	info, err := d.compressor.Probe(raw)
	if err != nil {
		return nil, err
	}

	result, err := d.compressor.Recompress(raw, job.Category, job.Ext)
	if err != nil {
		return nil, err
	}

	sameSize := result.Width == info.Width && result.Height == info.Height
	if sameSize && result.Size() >= int64(len(raw)) {
		logger.DebugContext(ctx, "Recompressed image is not smaller, keeping raw file",
			"path", job.Path,
			"raw_kb", len(raw)/1024,
			"compressed_kb", result.Size()/1024,
		)
		return nil, nil
	}

	if err := d.storage.ReplaceFile(bytes.NewReader(result.Data), job.Path, utils.ImageContentType(result.Ext)); err != nil {
		if errors.Is(err, ports.ErrFileNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", models.ErrStorageWrite, err)
	}

	logger.InfoContext(ctx, "Background compression finished",
		"external_id", job.ExternalID,
		"path", job.Path,
		"size_kb", result.Size()/1024,
		"quality", result.Quality,
		"budget_met", result.BudgetMet,
	)
	return result, nil
}
