package repository

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/docstore-labs/deptdocs-api/internal/models"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return sqlx.NewDb(db, "postgres"), mock
}

func fileRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "owner_id", "department_id", "filename", "file_type", "visibility",
		"file_size", "blob_key", "download_count", "created_at", "updated_at",
	})
}

func TestFileRepositoryCreate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewFileRepository(db)

	mock.ExpectExec(`INSERT INTO files`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	file := &models.File{
		OwnerID:      "u-1",
		DepartmentID: "d-1",
		Filename:     "report.pdf",
		FileType:     models.FileTypePDF,
		Visibility:   models.VisibilityPrivate,
		FileSize:     2048,
		BlobKey:      "files/u-1/abc/report.pdf",
	}
	require.NoError(t, repo.Create(context.Background(), file))
	require.NotEmpty(t, file.ID)
	require.False(t, file.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFileRepositoryGetByIDNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewFileRepository(db)

	mock.ExpectQuery(`SELECT (.+) FROM files WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFileRepositoryListScoping(t *testing.T) {
	t.Run("user predicate binds department and viewer", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewFileRepository(db)

		mock.ExpectQuery(`visibility = 'PUBLIC' OR \(department_id = \$1 AND visibility = 'DEPARTMENT'\) OR owner_id = \$2`).
			WithArgs("d-1", "u-1").
			WillReturnRows(fileRows())

		_, err := repo.List(context.Background(), models.FileFilter{
			Role:               models.RoleUser,
			ViewerID:           "u-1",
			ViewerDepartmentID: "d-1",
		})
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("manager predicate sees department-wide files", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewFileRepository(db)

		mock.ExpectQuery(`visibility = 'PUBLIC' OR department_id = \$1 OR visibility = 'DEPARTMENT'`).
			WithArgs("d-1").
			WillReturnRows(fileRows())

		_, err := repo.List(context.Background(), models.FileFilter{
			Role:               models.RoleManager,
			ViewerID:           "m-1",
			ViewerDepartmentID: "d-1",
		})
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("admin without filter has no where clause", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewFileRepository(db)

		mock.ExpectQuery(`SELECT (.+) FROM files ORDER BY created_at DESC`).
			WillReturnRows(fileRows())

		_, err := repo.List(context.Background(), models.FileFilter{Role: models.RoleAdmin})
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("admin department filter binds single argument", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewFileRepository(db)

		mock.ExpectQuery(`WHERE department_id = \$1 ORDER BY created_at DESC`).
			WithArgs("d-9").
			WillReturnRows(fileRows())

		_, err := repo.List(context.Background(), models.FileFilter{
			Role:         models.RoleAdmin,
			DepartmentID: "d-9",
		})
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestFileRepositoryDelete(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewFileRepository(db)

	mock.ExpectExec(`DELETE FROM files WHERE id = \$1`).
		WithArgs("f-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Delete(context.Background(), "f-1"))

	mock.ExpectExec(`DELETE FROM files WHERE id = \$1`).
		WithArgs("f-2").
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.ErrorIs(t, repo.Delete(context.Background(), "f-2"), sql.ErrNoRows)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFileRepositoryUpsertMetadataIdempotent(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewFileRepository(db)

	pages := 12
	meta := &models.FileMetadata{
		FileID:    "f-1",
		PageCount: &pages,
		Title:     "Quarterly Report",
	}

	// Two deliveries of the same extraction job end in a single logical row;
	// the second write takes the ON CONFLICT path and must not fail.
	mock.ExpectExec(`(?s)INSERT INTO file_metadata.+ON CONFLICT \(file_id\) DO UPDATE`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`(?s)INSERT INTO file_metadata.+ON CONFLICT \(file_id\) DO UPDATE`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpsertMetadata(context.Background(), meta))
	firstID := meta.ID
	require.NotEmpty(t, firstID)
	require.NoError(t, repo.UpsertMetadata(context.Background(), meta))
	require.Equal(t, firstID, meta.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFileRepositoryDeleteMetadataAbsenceOK(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewFileRepository(db)

	mock.ExpectExec(`DELETE FROM file_metadata WHERE file_id = \$1`).
		WithArgs("f-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.DeleteMetadata(context.Background(), "f-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFileRepositoryIncrementDownloadCount(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewFileRepository(db)

	mock.ExpectExec(`UPDATE files SET download_count = download_count \+ 1`).
		WithArgs("f-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.IncrementDownloadCount(context.Background(), "f-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}
