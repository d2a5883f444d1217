package dto

import (
	"time"

	"github.com/docstore-labs/deptdocs-api/internal/models"
)

// FileResponse is the API shape of a file. Metadata is always present as an
// object: empty until the extraction worker has written its row.
type FileResponse struct {
	ID            string              `json:"id"`
	OwnerID       string              `json:"owner_id"`
	DepartmentID  string              `json:"department_id"`
	Filename      string              `json:"filename"`
	FileType      models.FileType     `json:"file_type"`
	Visibility    models.Visibility   `json:"visibility"`
	FileSize      int64               `json:"file_size"`
	DownloadCount int                 `json:"download_count"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
	FileMetadata  models.FileMetadata `json:"file_metadata"`
}

// NewFileResponse combines a file row with its optional metadata row.
func NewFileResponse(file *models.File, meta *models.FileMetadata) FileResponse {
	resp := FileResponse{
		ID:            file.ID,
		OwnerID:       file.OwnerID,
		DepartmentID:  file.DepartmentID,
		Filename:      file.Filename,
		FileType:      file.FileType,
		Visibility:    file.Visibility,
		FileSize:      file.FileSize,
		DownloadCount: file.DownloadCount,
		CreatedAt:     file.CreatedAt,
		UpdatedAt:     file.UpdatedAt,
	}
	if meta != nil {
		resp.FileMetadata = *meta
	}
	return resp
}

// DownloadResult bundles the blob bytes with the headers a download needs.
type DownloadResult struct {
	Filename    string
	ContentType string
	Data        []byte
}
