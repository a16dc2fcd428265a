package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"sync"

	"coursebridge/apperr"
	"coursebridge/metrics"
	"coursebridge/models/learning"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Pool runs ingestion off the request path. Submit records a PENDING job and
// returns at once; a worker extracts the archive and marks the job SUCCEEDED
// or FAILED. Staged archives are removed once their job is done.
type Pool struct {
	ingestor *Ingestor
	db       *gorm.DB
	workers  int
	queue    chan string
	wg       sync.WaitGroup
	logger   *slog.Logger
}

func NewPool(ingestor *Ingestor, db *gorm.DB, workers, queueSize int, logger *slog.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	return &Pool{
		ingestor: ingestor,
		db:       db,
		workers:  workers,
		queue:    make(chan string, queueSize),
		logger:   logger.With(slog.String("component", "ingest_pool")),
	}
}

// Start launches the workers and re-queues jobs left PENDING by a previous run.
// Workers exit when ctx is cancelled or Stop is called.
func (p *Pool) Start(ctx context.Context) {
	for w := 0; w < p.workers; w++ {
		p.wg.Add(1)
		go p.work(ctx)
	}

	var pending []string
	if err := p.db.Model(&learning.IngestJob{}).Where("status = ?", learning.JobPending).Order("created_at asc").Pluck("id", &pending).Error; err != nil {
		p.logger.Error("could not load pending jobs", slog.String("error", err.Error()))
		return
	}
	for _, id := range pending {
		select {
		case p.queue <- id:
			metrics.IngestQueueDepth.Inc()
		default:
			p.logger.Warn("queue full, pending job left for next start", slog.String("job_id", id))
		}
	}
}

// Stop closes the queue and waits for in-flight jobs.
func (p *Pool) Stop() {
	close(p.queue)
	p.wg.Wait()
}

// Submit records a job for the staged archive and queues it.
func (p *Pool) Submit(ctx context.Context, archivePath string, meta Metadata) (*learning.IngestJob, error) {
	if err := meta.Validate(); err != nil {
		return nil, err
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return nil, apperr.Validation("metadata invalid: %v", err)
	}

	job := learning.IngestJob{
		ID:             uuid.NewString(),
		OrganizationID: meta.OrganizationID,
		Status:         learning.JobPending,
		ArchivePath:    archivePath,
		Metadata:       raw,
	}
	if err := p.db.WithContext(ctx).Create(&job).Error; err != nil {
		return nil, apperr.Storage(err, "create ingest job")
	}

	select {
	case p.queue <- job.ID:
		metrics.IngestQueueDepth.Inc()
	default:
		p.finish(job.ID, archivePath, nil, apperr.State("ingest queue is full, retry later"))
		return nil, apperr.State("ingest queue is full, retry later")
	}
	return &job, nil
}

// Job returns the job with id.
func (p *Pool) Job(ctx context.Context, id string) (*learning.IngestJob, error) {
	var job learning.IngestJob
	err := p.db.WithContext(ctx).Where("id = ?", id).First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("ingest job %s not found", id)
	}
	if err != nil {
		return nil, apperr.Storage(err, "load ingest job")
	}
	return &job, nil
}

func (p *Pool) work(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case id, ok := <-p.queue:
			if !ok {
				return
			}
			metrics.IngestQueueDepth.Dec()
			p.run(ctx, id)
		}
	}
}

func (p *Pool) run(ctx context.Context, id string) {
	job, err := p.Job(ctx, id)
	if err != nil {
		p.logger.Error("job vanished", slog.String("job_id", id), slog.String("error", err.Error()))
		return
	}
	if job.Status != learning.JobPending {
		return
	}

	var meta Metadata
	if err := json.Unmarshal(job.Metadata, &meta); err != nil {
		p.finish(job.ID, job.ArchivePath, nil, apperr.Validation("metadata invalid: %v", err))
		return
	}
	pkg, err := p.ingestor.Ingest(ctx, job.ArchivePath, meta)
	p.finish(job.ID, job.ArchivePath, pkg, err)
}

func (p *Pool) finish(id, archivePath string, pkg *learning.ContentPackage, ingestErr error) {
	updates := map[string]interface{}{"status": learning.JobSucceeded}
	if ingestErr != nil {
		updates = map[string]interface{}{"status": learning.JobFailed, "error": apperr.MessageOf(ingestErr)}
	} else if pkg != nil {
		updates["content_package_id"] = pkg.ID
	}
	if err := p.db.Model(&learning.IngestJob{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		p.logger.Error("could not record job outcome", slog.String("job_id", id), slog.String("error", err.Error()))
	}
	if err := os.Remove(archivePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		p.logger.Warn("could not remove staged archive", slog.String("path", archivePath), slog.String("error", err.Error()))
	}
	p.logger.Info("ingest job done", slog.String("job_id", id), slog.Any("status", updates["status"]))
}
