package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"mime/multipart"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/docstore-labs/deptdocs-api/internal/dto"
	"github.com/docstore-labs/deptdocs-api/internal/models"
	"github.com/docstore-labs/deptdocs-api/pkg/blobstore"
	appErrors "github.com/docstore-labs/deptdocs-api/pkg/errors"
)

type stubFileStore struct {
	mu        sync.Mutex
	files     map[string]*models.File
	meta      map[string]*models.FileMetadata
	downloads map[string]int
	createErr error
}

func newStubFileStore() *stubFileStore {
	return &stubFileStore{
		files:     map[string]*models.File{},
		meta:      map[string]*models.FileMetadata{},
		downloads: map[string]int{},
	}
}

func (s *stubFileStore) Create(_ context.Context, file *models.File) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	if file.ID == "" {
		file.ID = "f-generated"
	}
	cp := *file
	s.files[file.ID] = &cp
	return nil
}

func (s *stubFileStore) GetByID(_ context.Context, id string) (*models.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.files[id]; ok {
		cp := *f
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (s *stubFileStore) List(_ context.Context, _ models.FileFilter) ([]models.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.File, 0, len(s.files))
	for _, f := range s.files {
		out = append(out, *f)
	}
	return out, nil
}

func (s *stubFileStore) IncrementDownloadCount(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.downloads[id]++
	return nil
}

func (s *stubFileStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.files, id)
	return nil
}

func (s *stubFileStore) GetMetadata(_ context.Context, fileID string) (*models.FileMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.meta[fileID]; ok {
		cp := *m
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (s *stubFileStore) GetMetadataByFileIDs(_ context.Context, fileIDs []string) (map[string]models.FileMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]models.FileMetadata{}
	for _, id := range fileIDs {
		if m, ok := s.meta[id]; ok {
			out[id] = *m
		}
	}
	return out, nil
}

func (s *stubFileStore) DeleteMetadata(_ context.Context, fileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.meta, fileID)
	return nil
}

func (s *stubFileStore) downloadCount(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.downloads[id]
}

type stubBlobStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newStubBlobStore() *stubBlobStore {
	return &stubBlobStore{objects: map[string][]byte{}}
}

func (s *stubBlobStore) Put(_ context.Context, key string, data []byte, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	s.objects[key] = append([]byte(nil), data...)
	return nil
}

func (s *stubBlobStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if data, ok := s.objects[key]; ok {
		return data, nil
	}
	return nil, blobstore.ErrKeyNotFound
}

func (s *stubBlobStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *stubBlobStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

type stubPublisher struct {
	mu   sync.Mutex
	jobs []models.ExtractionJob
	err  error
}

func (s *stubPublisher) Publish(_ context.Context, _ string, payload interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.jobs = append(s.jobs, payload.(models.ExtractionJob))
	return nil
}

func multipartHeader(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	reader := multipart.NewReader(&buf, writer.Boundary())
	form, err := reader.ReadForm(32 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })
	return form.File["file"][0]
}

func newFileService(files *stubFileStore, blobs *stubBlobStore, jobs *stubPublisher) *FileService {
	return NewFileService(files, blobs, jobs, zap.NewNop())
}

func TestFileServiceUploadPersistsActualSize(t *testing.T) {
	files, blobs, jobs := newStubFileStore(), newStubBlobStore(), &stubPublisher{}
	svc := newFileService(files, blobs, jobs)

	content := bytes.Repeat([]byte("x"), 4096)
	header := multipartHeader(t, "report.pdf", content)
	// A lying declared size must not be trusted.
	header.Size = 1

	actor := actorClaims(models.RoleUser, "u-1", "d-1")
	resp, err := svc.Upload(context.Background(), actor, header, models.VisibilityPrivate)
	require.NoError(t, err)
	require.Equal(t, int64(4096), resp.FileSize)
	require.Equal(t, "report.pdf", resp.Filename)
	require.Equal(t, models.FileTypePDF, resp.FileType)
	require.Equal(t, "d-1", resp.DepartmentID)
	require.Equal(t, 1, blobs.count())

	require.Len(t, jobs.jobs, 1)
	require.Equal(t, resp.ID, jobs.jobs[0].FileID)
	require.Equal(t, models.FileTypePDF, jobs.jobs[0].FileType)
}

func TestFileServiceUploadBlobFailureLeavesNoRow(t *testing.T) {
	files, blobs, jobs := newStubFileStore(), newStubBlobStore(), &stubPublisher{}
	blobs.putErr = errors.New("minio unreachable")
	svc := newFileService(files, blobs, jobs)

	header := multipartHeader(t, "report.pdf", []byte("content"))
	_, err := svc.Upload(context.Background(), actorClaims(models.RoleUser, "u-1", "d-1"), header, models.VisibilityPrivate)
	require.Error(t, err)
	require.Empty(t, files.files)
	require.Empty(t, jobs.jobs)
}

func TestFileServiceUploadRowFailureLeavesBlobOrphaned(t *testing.T) {
	files, blobs, jobs := newStubFileStore(), newStubBlobStore(), &stubPublisher{}
	files.createErr = errors.New("db down")
	svc := newFileService(files, blobs, jobs)

	header := multipartHeader(t, "report.pdf", []byte("content"))
	_, err := svc.Upload(context.Background(), actorClaims(models.RoleUser, "u-1", "d-1"), header, models.VisibilityPrivate)
	require.Error(t, err)

	// The blob is intentionally not rolled back.
	require.Equal(t, 1, blobs.count())
	require.Empty(t, jobs.jobs)
}

func TestFileServiceUploadEnqueueFailureStillSucceeds(t *testing.T) {
	files, blobs, jobs := newStubFileStore(), newStubBlobStore(), &stubPublisher{err: errors.New("kafka down")}
	svc := newFileService(files, blobs, jobs)

	header := multipartHeader(t, "report.pdf", []byte("content"))
	resp, err := svc.Upload(context.Background(), actorClaims(models.RoleUser, "u-1", "d-1"), header, models.VisibilityPrivate)
	require.NoError(t, err)
	require.NotEmpty(t, resp.ID)
	require.Len(t, files.files, 1)
}

func TestFileServiceUploadRejectsOversize(t *testing.T) {
	files, blobs, jobs := newStubFileStore(), newStubBlobStore(), &stubPublisher{}
	svc := newFileService(files, blobs, jobs)

	content := bytes.Repeat([]byte("x"), int(10<<20)+1)
	header := multipartHeader(t, "big.pdf", content)

	_, err := svc.Upload(context.Background(), actorClaims(models.RoleUser, "u-1", "d-1"), header, models.VisibilityPrivate)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrSizeExceeded.Code, appErrors.FromError(err).Code)
	require.Equal(t, 0, blobs.count())
	require.Empty(t, files.files)
}

func seedFile(files *stubFileStore, blobs *stubBlobStore, id, owner, dept string, vis models.Visibility) *models.File {
	f := &models.File{
		ID:           id,
		OwnerID:      owner,
		DepartmentID: dept,
		Filename:     "doc.pdf",
		FileType:     models.FileTypePDF,
		Visibility:   vis,
		FileSize:     7,
		BlobKey:      "files/" + owner + "/key/" + id,
	}
	files.files[id] = f
	blobs.objects[f.BlobKey] = []byte("content")
	return f
}

func TestFileServiceDownloadCrossDepartmentDenied(t *testing.T) {
	files, blobs, jobs := newStubFileStore(), newStubBlobStore(), &stubPublisher{}
	svc := newFileService(files, blobs, jobs)
	seedFile(files, blobs, "f-1", "u-owner", "d-1", models.VisibilityDepartment)

	_, err := svc.Download(context.Background(), actorClaims(models.RoleUser, "u-other", "d-2"), "f-1")
	require.ErrorIs(t, err, appErrors.ErrAccessDenied)
}

func TestFileServiceDownloadIncrementsCounterAsync(t *testing.T) {
	files, blobs, jobs := newStubFileStore(), newStubBlobStore(), &stubPublisher{}
	svc := newFileService(files, blobs, jobs)
	seedFile(files, blobs, "f-1", "u-owner", "d-1", models.VisibilityPublic)

	result, err := svc.Download(context.Background(), actorClaims(models.RoleUser, "u-other", "d-2"), "f-1")
	require.NoError(t, err)
	require.Equal(t, []byte("content"), result.Data)
	require.Equal(t, "application/pdf", result.ContentType)

	require.Eventually(t, func() bool {
		return files.downloadCount("f-1") == 1
	}, time.Second, 10*time.Millisecond)
}

func TestFileServiceDownloadMissingBlobIs404(t *testing.T) {
	files, blobs, jobs := newStubFileStore(), newStubBlobStore(), &stubPublisher{}
	svc := newFileService(files, blobs, jobs)
	f := seedFile(files, blobs, "f-1", "u-owner", "d-1", models.VisibilityPublic)
	delete(blobs.objects, f.BlobKey)

	_, err := svc.Download(context.Background(), actorClaims(models.RoleAdmin, "a-1", "d-9"), "f-1")
	require.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestFileServiceGetIncludesMetadataWhenPresent(t *testing.T) {
	files, blobs, jobs := newStubFileStore(), newStubBlobStore(), &stubPublisher{}
	svc := newFileService(files, blobs, jobs)
	seedFile(files, blobs, "f-1", "u-owner", "d-1", models.VisibilityPublic)

	actor := actorClaims(models.RoleUser, "u-other", "d-2")

	resp, err := svc.Get(context.Background(), actor, "f-1")
	require.NoError(t, err)
	require.Nil(t, resp.FileMetadata.PageCount)

	pages := 3
	files.meta["f-1"] = &models.FileMetadata{FileID: "f-1", PageCount: &pages, Title: "T"}

	resp, err = svc.Get(context.Background(), actor, "f-1")
	require.NoError(t, err)
	require.NotNil(t, resp.FileMetadata.PageCount)
	require.Equal(t, 3, *resp.FileMetadata.PageCount)
}

func TestFileServiceDeleteCleansUpEverything(t *testing.T) {
	files, blobs, jobs := newStubFileStore(), newStubBlobStore(), &stubPublisher{}
	svc := newFileService(files, blobs, jobs)
	f := seedFile(files, blobs, "f-1", "u-owner", "d-1", models.VisibilityPrivate)
	files.meta["f-1"] = &models.FileMetadata{FileID: "f-1"}

	err := svc.Delete(context.Background(), actorClaims(models.RoleUser, "u-owner", "d-1"), "f-1")
	require.NoError(t, err)
	require.Empty(t, files.files)
	require.Empty(t, files.meta)
	require.NotContains(t, blobs.objects, f.BlobKey)
}

func TestFileServiceDeleteDenied(t *testing.T) {
	files, blobs, jobs := newStubFileStore(), newStubBlobStore(), &stubPublisher{}
	svc := newFileService(files, blobs, jobs)
	seedFile(files, blobs, "f-1", "u-owner", "d-1", models.VisibilityPrivate)

	// A manager from another department may read nothing into delete rights.
	err := svc.Delete(context.Background(), actorClaims(models.RoleManager, "m-1", "d-2"), "f-1")
	require.ErrorIs(t, err, appErrors.ErrAccessDenied)
	require.Len(t, files.files, 1)
}

func TestFileServiceListJoinsMetadata(t *testing.T) {
	files, blobs, jobs := newStubFileStore(), newStubBlobStore(), &stubPublisher{}
	svc := newFileService(files, blobs, jobs)
	seedFile(files, blobs, "f-1", "u-1", "d-1", models.VisibilityPublic)
	seedFile(files, blobs, "f-2", "u-1", "d-1", models.VisibilityPublic)
	pages := 9
	files.meta["f-1"] = &models.FileMetadata{FileID: "f-1", PageCount: &pages}

	out, err := svc.List(context.Background(), actorClaims(models.RoleAdmin, "a-1", "d-9"), "")
	require.NoError(t, err)
	require.Len(t, out, 2)

	byID := map[string]dto.FileResponse{}
	for _, r := range out {
		byID[r.ID] = r
	}
	require.NotNil(t, byID["f-1"].FileMetadata.PageCount)
	require.Nil(t, byID["f-2"].FileMetadata.PageCount)
}

func actorClaims(role models.Role, userID, deptID string) *models.JWTClaims {
	return &models.JWTClaims{UserID: userID, Role: role, DepartmentID: deptID}
}
