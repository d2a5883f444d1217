// Package worker consumes extraction jobs and writes file metadata rows.
// Delivery is at-least-once: offsets are committed only after a job has been
// fully processed or legitimately abandoned, so every failure path results
// in redelivery rather than data loss.
package worker

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	kafka "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/docstore-labs/deptdocs-api/internal/docparse"
	"github.com/docstore-labs/deptdocs-api/internal/models"
	"github.com/docstore-labs/deptdocs-api/pkg/blobstore"
)

type jobConsumer interface {
	Fetch(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, msgs ...kafka.Message) error
}

type metadataStore interface {
	GetByID(ctx context.Context, id string) (*models.File, error)
	UpsertMetadata(ctx context.Context, meta *models.FileMetadata) error
}

type blobReader interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// Extractor runs the metadata extraction loop.
type Extractor struct {
	consumer jobConsumer
	files    metadataStore
	blobs    blobReader
	log      *zap.Logger
}

// NewExtractor constructs the worker.
func NewExtractor(consumer jobConsumer, files metadataStore, blobs blobReader, log *zap.Logger) *Extractor {
	return &Extractor{consumer: consumer, files: files, blobs: blobs, log: log}
}

// Run consumes jobs until ctx is cancelled. A failed job is left
// uncommitted so the broker redelivers it; processing is idempotent
// because the metadata write is an upsert keyed by file ID.
func (e *Extractor) Run(ctx context.Context) error {
	for {
		msg, err := e.consumer.Fetch(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return fmt.Errorf("fetch job: %w", err)
		}

		if err := e.processMessage(ctx, msg); err != nil {
			e.log.Error("extraction job failed, leaving uncommitted",
				zap.ByteString("key", msg.Key),
				zap.Error(err))
			continue
		}

		if err := e.consumer.Commit(ctx, msg); err != nil {
			e.log.Error("commit failed", zap.ByteString("key", msg.Key), zap.Error(err))
		}
	}
}

func (e *Extractor) processMessage(ctx context.Context, msg kafka.Message) error {
	var job models.ExtractionJob
	if err := json.Unmarshal(msg.Value, &job); err != nil {
		// A malformed message can never succeed; commit it away.
		e.log.Warn("dropping malformed job message", zap.Error(err))
		return nil
	}
	return e.processJob(ctx, job)
}

// processJob extracts and stores metadata for one file. Returning nil means
// the message may be committed; that includes abandoning jobs whose file row
// or blob has disappeared, since the file was deleted between enqueue and
// processing.
func (e *Extractor) processJob(ctx context.Context, job models.ExtractionJob) error {
	data, err := e.blobs.Get(ctx, job.BlobKey)
	if err != nil {
		if errors.Is(err, blobstore.ErrKeyNotFound) {
			e.log.Info("abandoning job, blob gone", zap.String("file_id", job.FileID))
			return nil
		}
		return fmt.Errorf("read blob: %w", err)
	}

	var meta *models.FileMetadata
	switch job.FileType {
	case models.FileTypePDF:
		meta, err = docparse.ParsePDF(data)
	case models.FileTypeDOCX:
		meta, err = docparse.ParseDOCX(data)
	default:
		e.log.Warn("abandoning job, unknown file type",
			zap.String("file_id", job.FileID),
			zap.String("file_type", string(job.FileType)))
		return nil
	}
	if err != nil {
		// Corrupt content fails the job; the queue's redelivery policy
		// decides whether it is retried.
		return fmt.Errorf("parse %s: %w", job.FileID, err)
	}

	// The file may have been deleted while the job sat in the queue.
	// Re-check before writing so no metadata row outlives its file.
	if _, err := e.files.GetByID(ctx, job.FileID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			e.log.Info("abandoning job, file row gone", zap.String("file_id", job.FileID))
			return nil
		}
		return fmt.Errorf("check file row: %w", err)
	}

	meta.FileID = job.FileID
	if err := e.files.UpsertMetadata(ctx, meta); err != nil {
		return fmt.Errorf("store metadata: %w", err)
	}

	e.log.Info("metadata extracted",
		zap.String("file_id", job.FileID),
		zap.String("file_type", string(job.FileType)))
	return nil
}
