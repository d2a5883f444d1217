package models

import "time"

// FileType is the detected document type of an uploaded file.
type FileType string

const (
	FileTypePDF  FileType = "PDF"
	FileTypeDOCX FileType = "DOCX"
)

// Visibility constrains who may read a file.
type Visibility string

const (
	VisibilityPrivate    Visibility = "PRIVATE"
	VisibilityDepartment Visibility = "DEPARTMENT"
	VisibilityPublic     Visibility = "PUBLIC"
)

// Valid reports whether v is one of the known visibility levels.
func (v Visibility) Valid() bool {
	switch v {
	case VisibilityPrivate, VisibilityDepartment, VisibilityPublic:
		return true
	}
	return false
}

// File represents one stored document. The department is the owner's
// department at upload time and is never re-derived.
type File struct {
	ID            string     `db:"id" json:"id"`
	OwnerID       string     `db:"owner_id" json:"owner_id"`
	DepartmentID  string     `db:"department_id" json:"department_id"`
	Filename      string     `db:"filename" json:"filename"`
	FileType      FileType   `db:"file_type" json:"file_type"`
	Visibility    Visibility `db:"visibility" json:"visibility"`
	FileSize      int64      `db:"file_size" json:"file_size"`
	BlobKey       string     `db:"blob_key" json:"-"`
	DownloadCount int        `db:"download_count" json:"download_count"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// FileMetadata holds structural metadata extracted asynchronously.
// At most one row exists per file; counts are type-conditional.
type FileMetadata struct {
	ID             string    `db:"id" json:"id,omitempty"`
	FileID         string    `db:"file_id" json:"file_id,omitempty"`
	PageCount      *int      `db:"page_count" json:"page_count,omitempty"`
	ParagraphCount *int      `db:"paragraph_count" json:"paragraph_count,omitempty"`
	TableCount     *int      `db:"table_count" json:"table_count,omitempty"`
	Title          string    `db:"title" json:"title,omitempty"`
	Author         string    `db:"author" json:"author,omitempty"`
	CreationDate   string    `db:"creation_date" json:"creation_date,omitempty"`
	Creator        string    `db:"creator" json:"creator,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"-"`
}

// FileFilter is the list-scoping result produced by the policy engine.
// The repository translates it into the matching WHERE clause.
type FileFilter struct {
	Role               Role
	ViewerID           string
	ViewerDepartmentID string
	// DepartmentID is an explicit, already-authorized department filter.
	DepartmentID string
}

// ExtractionJob is the queue message handed to the metadata worker.
type ExtractionJob struct {
	FileID   string   `json:"file_id"`
	BlobKey  string   `json:"blob_key"`
	FileType FileType `json:"file_type"`
}
