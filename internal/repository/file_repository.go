package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/docstore-labs/deptdocs-api/internal/models"
)

const fileColumns = `id, owner_id, department_id, filename, file_type, visibility, file_size, blob_key, download_count, created_at, updated_at`

// FileRepository handles file and file-metadata persistence.
type FileRepository struct {
	db *sqlx.DB
}

// NewFileRepository constructs the repository.
func NewFileRepository(db *sqlx.DB) *FileRepository {
	return &FileRepository{db: db}
}

// Create inserts one file row.
func (r *FileRepository) Create(ctx context.Context, file *models.File) error {
	if file.ID == "" {
		file.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if file.CreatedAt.IsZero() {
		file.CreatedAt = now
	}
	file.UpdatedAt = now

	const query = `INSERT INTO files
	(id, owner_id, department_id, filename, file_type, visibility, file_size, blob_key, download_count, created_at, updated_at)
	VALUES (:id, :owner_id, :department_id, :filename, :file_type, :visibility, :file_size, :blob_key, :download_count, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, file); err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	return nil
}

// GetByID retrieves one file row. sql.ErrNoRows passes through untouched.
func (r *FileRepository) GetByID(ctx context.Context, id string) (*models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE id = $1`
	var file models.File
	if err := r.db.GetContext(ctx, &file, query, id); err != nil {
		return nil, err
	}
	return &file, nil
}

// List returns files matching the scoping filter, newest first.
func (r *FileRepository) List(ctx context.Context, filter models.FileFilter) ([]models.File, error) {
	builder := strings.Builder{}
	builder.WriteString(`SELECT ` + fileColumns + ` FROM files`)
	args := make([]interface{}, 0, 3)
	conditions := make([]string, 0, 2)

	switch filter.Role {
	case models.RoleAdmin:
		// Unrestricted; optional department filter only.
	case models.RoleManager:
		args = append(args, filter.ViewerDepartmentID)
		conditions = append(conditions, fmt.Sprintf(
			"(visibility = 'PUBLIC' OR department_id = $%d OR visibility = 'DEPARTMENT')", len(args)))
	default:
		args = append(args, filter.ViewerDepartmentID)
		deptArg := len(args)
		args = append(args, filter.ViewerID)
		conditions = append(conditions, fmt.Sprintf(
			"(visibility = 'PUBLIC' OR (department_id = $%d AND visibility = 'DEPARTMENT') OR owner_id = $%d)", deptArg, len(args)))
	}

	if filter.DepartmentID != "" {
		args = append(args, filter.DepartmentID)
		conditions = append(conditions, fmt.Sprintf("department_id = $%d", len(args)))
	}

	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY created_at DESC")

	var records []models.File
	if err := r.db.SelectContext(ctx, &records, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	return records, nil
}

// IncrementDownloadCount bumps the counter by one. Best-effort: callers may
// ignore the returned error without affecting an in-flight download.
func (r *FileRepository) IncrementDownloadCount(ctx context.Context, id string) error {
	const query = `UPDATE files SET download_count = download_count + 1, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("increment download count: %w", err)
	}
	return nil
}

// Delete removes one file row.
func (r *FileRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM files WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check file delete rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpsertMetadata writes the extracted metadata row. The unique constraint on
// file_id plus ON CONFLICT makes redelivered extraction jobs idempotent.
func (r *FileRepository) UpsertMetadata(ctx context.Context, meta *models.FileMetadata) error {
	if meta.ID == "" {
		meta.ID = uuid.NewString()
	}
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now().UTC()
	}

	const query = `INSERT INTO file_metadata
	(id, file_id, page_count, paragraph_count, table_count, title, author, creation_date, creator, created_at)
	VALUES (:id, :file_id, :page_count, :paragraph_count, :table_count, :title, :author, :creation_date, :creator, :created_at)
	ON CONFLICT (file_id) DO UPDATE SET
	page_count = EXCLUDED.page_count,
	paragraph_count = EXCLUDED.paragraph_count,
	table_count = EXCLUDED.table_count,
	title = EXCLUDED.title,
	author = EXCLUDED.author,
	creation_date = EXCLUDED.creation_date,
	creator = EXCLUDED.creator`
	if _, err := r.db.NamedExecContext(ctx, query, meta); err != nil {
		return fmt.Errorf("upsert file metadata: %w", err)
	}
	return nil
}

// GetMetadata retrieves the metadata row for a file. sql.ErrNoRows passes
// through; absence is a normal state until the worker has run.
func (r *FileRepository) GetMetadata(ctx context.Context, fileID string) (*models.FileMetadata, error) {
	const query = `SELECT id, file_id, page_count, paragraph_count, table_count, title, author, creation_date, creator, created_at
	FROM file_metadata WHERE file_id = $1`
	var meta models.FileMetadata
	if err := r.db.GetContext(ctx, &meta, query, fileID); err != nil {
		return nil, err
	}
	return &meta, nil
}

// GetMetadataByFileIDs loads metadata rows for a batch of files, keyed by
// file_id. Files without a row are simply absent from the map.
func (r *FileRepository) GetMetadataByFileIDs(ctx context.Context, fileIDs []string) (map[string]models.FileMetadata, error) {
	if len(fileIDs) == 0 {
		return map[string]models.FileMetadata{}, nil
	}

	const query = `SELECT id, file_id, page_count, paragraph_count, table_count, title, author, creation_date, creator, created_at
	FROM file_metadata WHERE file_id = ANY($1)`
	var rows []models.FileMetadata
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(fileIDs)); err != nil {
		return nil, fmt.Errorf("load file metadata batch: %w", err)
	}

	result := make(map[string]models.FileMetadata, len(rows))
	for _, row := range rows {
		result[row.FileID] = row
	}
	return result, nil
}

// DeleteMetadata removes the metadata row if present. Absence is not an error.
func (r *FileRepository) DeleteMetadata(ctx context.Context, fileID string) error {
	const query = `DELETE FROM file_metadata WHERE file_id = $1`
	if _, err := r.db.ExecContext(ctx, query, fileID); err != nil {
		return fmt.Errorf("delete file metadata: %w", err)
	}
	return nil
}
