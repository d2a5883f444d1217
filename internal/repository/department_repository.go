package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/docstore-labs/deptdocs-api/internal/models"
)

// DepartmentRepository handles department persistence.
type DepartmentRepository struct {
	db *sqlx.DB
}

// NewDepartmentRepository constructs the repository.
func NewDepartmentRepository(db *sqlx.DB) *DepartmentRepository {
	return &DepartmentRepository{db: db}
}

// Create inserts one department row.
func (r *DepartmentRepository) Create(ctx context.Context, dept *models.Department) error {
	if dept.ID == "" {
		dept.ID = uuid.NewString()
	}
	const query = `INSERT INTO departments (id, name) VALUES (:id, :name)`
	if _, err := r.db.NamedExecContext(ctx, query, dept); err != nil {
		return fmt.Errorf("create department: %w", err)
	}
	return nil
}

// GetByID retrieves one department row. sql.ErrNoRows passes through untouched.
func (r *DepartmentRepository) GetByID(ctx context.Context, id string) (*models.Department, error) {
	const query = `SELECT id, name FROM departments WHERE id = $1`
	var dept models.Department
	if err := r.db.GetContext(ctx, &dept, query, id); err != nil {
		return nil, err
	}
	return &dept, nil
}

// List returns all departments ordered by name.
func (r *DepartmentRepository) List(ctx context.Context) ([]models.Department, error) {
	const query = `SELECT id, name FROM departments ORDER BY name`
	var depts []models.Department
	if err := r.db.SelectContext(ctx, &depts, query); err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	return depts, nil
}
