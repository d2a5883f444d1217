package service

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/docstore-labs/deptdocs-api/internal/dto"
	"github.com/docstore-labs/deptdocs-api/internal/models"
	"github.com/docstore-labs/deptdocs-api/internal/policy"
	"github.com/docstore-labs/deptdocs-api/pkg/blobstore"
	appErrors "github.com/docstore-labs/deptdocs-api/pkg/errors"
)

var contentTypes = map[models.FileType]string{
	models.FileTypePDF:  "application/pdf",
	models.FileTypeDOCX: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

type fileStore interface {
	Create(ctx context.Context, file *models.File) error
	GetByID(ctx context.Context, id string) (*models.File, error)
	List(ctx context.Context, filter models.FileFilter) ([]models.File, error)
	IncrementDownloadCount(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	GetMetadata(ctx context.Context, fileID string) (*models.FileMetadata, error)
	GetMetadataByFileIDs(ctx context.Context, fileIDs []string) (map[string]models.FileMetadata, error)
	DeleteMetadata(ctx context.Context, fileID string) error
}

type blobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

type jobPublisher interface {
	Publish(ctx context.Context, key string, payload interface{}) error
}

// FileService orchestrates upload, download, listing and deletion of files.
// All access decisions are delegated to the policy package.
type FileService struct {
	files fileStore
	blobs blobStore
	jobs  jobPublisher
	log   *zap.Logger
}

// NewFileService constructs the service.
func NewFileService(files fileStore, blobs blobStore, jobs jobPublisher, log *zap.Logger) *FileService {
	return &FileService{files: files, blobs: blobs, jobs: jobs, log: log}
}

// Upload validates and stores a new file. The blob is written before the
// database row so a row never points at missing bytes; if the row insert
// fails afterwards the blob is left orphaned and only logged.
func (s *FileService) Upload(ctx context.Context, actor *models.JWTClaims, header *multipart.FileHeader, visibility models.Visibility) (*dto.FileResponse, error) {
	fileType, err := policy.DetectType(header.Filename)
	if err != nil {
		return nil, err
	}

	src, err := header.Open()
	if err != nil {
		return nil, appErrors.Internal(err, "open uploaded file")
	}
	defer src.Close()

	// Size checks run against the bytes actually read, never the
	// client-declared Content-Length.
	data, err := io.ReadAll(io.LimitReader(src, policy.MaxUploadSize(actor.Role)+1))
	if err != nil {
		return nil, appErrors.Internal(err, "read uploaded file")
	}

	if err := policy.ValidateUpload(fileType, int64(len(data)), visibility, actor); err != nil {
		return nil, err
	}

	filename := path.Base(header.Filename)
	blobKey := buildBlobKey(actor.UserID, filename)

	if err := s.blobs.Put(ctx, blobKey, data, contentTypes[fileType]); err != nil {
		return nil, appErrors.Internal(err, "store file content")
	}

	file := &models.File{
		OwnerID:      actor.UserID,
		DepartmentID: actor.DepartmentID,
		Filename:     filename,
		FileType:     fileType,
		Visibility:   visibility,
		FileSize:     int64(len(data)),
		BlobKey:      blobKey,
	}
	if err := s.files.Create(ctx, file); err != nil {
		// The blob stays orphaned; no compensating delete.
		s.log.Error("file row insert failed, blob orphaned",
			zap.String("blob_key", blobKey),
			zap.Error(err))
		return nil, appErrors.Internal(err, "create file record")
	}

	job := models.ExtractionJob{FileID: file.ID, BlobKey: blobKey, FileType: fileType}
	if err := s.jobs.Publish(ctx, file.ID, job); err != nil {
		// Extraction is best-effort enrichment; the upload already succeeded.
		s.log.Error("enqueue extraction job failed",
			zap.String("file_id", file.ID),
			zap.Error(err))
	}

	resp := dto.NewFileResponse(file, nil)
	return &resp, nil
}

// Get returns one file with its metadata, subject to read policy.
func (s *FileService) Get(ctx context.Context, actor *models.JWTClaims, id string) (*dto.FileResponse, error) {
	file, err := s.authorizeRead(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	meta, err := s.files.GetMetadata(ctx, id)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Internal(err, "load file metadata")
	}

	resp := dto.NewFileResponse(file, meta)
	return &resp, nil
}

// List returns all files visible to the actor, newest first.
func (s *FileService) List(ctx context.Context, actor *models.JWTClaims, departmentFilter string) ([]dto.FileResponse, error) {
	filter, err := policy.ListScope(actor, departmentFilter)
	if err != nil {
		return nil, err
	}

	records, err := s.files.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Internal(err, "list files")
	}

	ids := make([]string, len(records))
	for i := range records {
		ids[i] = records[i].ID
	}
	metaByFile, err := s.files.GetMetadataByFileIDs(ctx, ids)
	if err != nil {
		return nil, appErrors.Internal(err, "load file metadata")
	}

	resp := make([]dto.FileResponse, 0, len(records))
	for i := range records {
		var meta *models.FileMetadata
		if m, ok := metaByFile[records[i].ID]; ok {
			meta = &m
		}
		resp = append(resp, dto.NewFileResponse(&records[i], meta))
	}
	return resp, nil
}

// Download returns the file bytes, subject to read policy. The download
// counter is incremented asynchronously so a slow or failed update never
// delays or breaks the response.
func (s *FileService) Download(ctx context.Context, actor *models.JWTClaims, id string) (*dto.DownloadResult, error) {
	file, err := s.authorizeRead(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	data, err := s.blobs.Get(ctx, file.BlobKey)
	if err != nil {
		if errors.Is(err, blobstore.ErrKeyNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "file content missing")
		}
		return nil, appErrors.Internal(err, "read file content")
	}

	go func() {
		bgCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.files.IncrementDownloadCount(bgCtx, file.ID); err != nil {
			s.log.Warn("download counter update failed",
				zap.String("file_id", file.ID),
				zap.Error(err))
		}
	}()

	return &dto.DownloadResult{
		Filename:    file.Filename,
		ContentType: contentTypes[file.FileType],
		Data:        data,
	}, nil
}

// Delete removes blob, file row and metadata row in that order, subject to
// delete policy. A failure partway leaves later steps undone; the operation
// can be retried because each step tolerates prior completion.
func (s *FileService) Delete(ctx context.Context, actor *models.JWTClaims, id string) error {
	file, err := s.files.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrNotFound
		}
		return appErrors.Internal(err, "load file")
	}

	if !policy.CanDelete(file, actor) {
		return appErrors.ErrAccessDenied
	}

	if err := s.blobs.Delete(ctx, file.BlobKey); err != nil {
		return appErrors.Internal(err, "delete file content")
	}
	if err := s.files.Delete(ctx, id); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return appErrors.Internal(err, "delete file record")
	}
	if err := s.files.DeleteMetadata(ctx, id); err != nil {
		return appErrors.Internal(err, "delete file metadata")
	}
	return nil
}

// authorizeRead loads the file and applies read policy.
func (s *FileService) authorizeRead(ctx context.Context, actor *models.JWTClaims, id string) (*models.File, error) {
	file, err := s.files.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Internal(err, "load file")
	}
	if !policy.CanRead(file, actor) {
		return nil, appErrors.ErrAccessDenied
	}
	return file, nil
}

func buildBlobKey(ownerID, filename string) string {
	id := uuid.New()
	return fmt.Sprintf("files/%s/%s/%s", ownerID, hex.EncodeToString(id[:]), filename)
}
