package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"github.com/docstore-labs/deptdocs-api/internal/models"
	appErrors "github.com/docstore-labs/deptdocs-api/pkg/errors"
)

type departmentStore interface {
	Create(ctx context.Context, dept *models.Department) error
	GetByID(ctx context.Context, id string) (*models.Department, error)
	List(ctx context.Context) ([]models.Department, error)
}

// DepartmentService handles department management.
type DepartmentService struct {
	depts departmentStore
}

// NewDepartmentService constructs the service.
func NewDepartmentService(depts departmentStore) *DepartmentService {
	return &DepartmentService{depts: depts}
}

// Create adds a department. Admin only.
func (s *DepartmentService) Create(ctx context.Context, actor *models.JWTClaims, name string) (*models.Department, error) {
	if actor.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrAccessDenied, "only admins can create departments")
	}

	dept := &models.Department{Name: name}
	if err := s.depts.Create(ctx, dept); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return nil, appErrors.Clone(appErrors.ErrConflict, "department already exists")
		}
		return nil, appErrors.Internal(err, "create department")
	}
	return dept, nil
}

// Get returns one department. Any authenticated actor may look one up.
func (s *DepartmentService) Get(ctx context.Context, id string) (*models.Department, error) {
	dept, err := s.depts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Internal(err, "look up department")
	}
	return dept, nil
}

// List returns all departments.
func (s *DepartmentService) List(ctx context.Context) ([]models.Department, error) {
	depts, err := s.depts.List(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "list departments")
	}
	return depts, nil
}
