package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"

	"github.com/docstore-labs/deptdocs-api/internal/dto"
	"github.com/docstore-labs/deptdocs-api/internal/models"
	appErrors "github.com/docstore-labs/deptdocs-api/pkg/errors"
)

type userStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	List(ctx context.Context, departmentID string) ([]models.User, error)
	UpdateRole(ctx context.Context, id string, role models.Role) error
}

type departmentFinder interface {
	GetByID(ctx context.Context, id string) (*models.Department, error)
}

// UserService handles account management.
type UserService struct {
	users userStore
	depts departmentFinder
}

// NewUserService constructs the service.
func NewUserService(users userStore, depts departmentFinder) *UserService {
	return &UserService{users: users, depts: depts}
}

// Create provisions a new account. Admins may create users anywhere;
// managers only inside their own department. Managers cannot mint admins.
func (s *UserService) Create(ctx context.Context, actor *models.JWTClaims, req dto.CreateUserRequest) (*models.User, error) {
	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleManager:
		if req.DepartmentID != actor.DepartmentID {
			return nil, appErrors.Clone(appErrors.ErrAccessDenied, "managers can only create users in their own department")
		}
		if req.Role == models.RoleAdmin {
			return nil, appErrors.Clone(appErrors.ErrAccessDenied, "managers cannot create admin accounts")
		}
	default:
		return nil, appErrors.ErrAccessDenied
	}

	if !req.Role.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown role")
	}

	if _, err := s.depts.GetByID(ctx, req.DepartmentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "department does not exist")
		}
		return nil, appErrors.Internal(err, "look up department")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Internal(err, "hash password")
	}

	user := &models.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
		Role:         req.Role,
		DepartmentID: req.DepartmentID,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return nil, appErrors.Clone(appErrors.ErrConflict, "username or email already taken")
		}
		return nil, appErrors.Internal(err, "create user")
	}
	return user, nil
}

// Get returns one user. Everyone may read themselves; admins anyone;
// managers anyone in their own department.
func (s *UserService) Get(ctx context.Context, actor *models.JWTClaims, id string) (*models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Internal(err, "look up user")
	}

	switch {
	case actor.UserID == user.ID:
	case actor.Role == models.RoleAdmin:
	case actor.Role == models.RoleManager && actor.DepartmentID == user.DepartmentID:
	default:
		return nil, appErrors.ErrAccessDenied
	}
	return user, nil
}

// List returns users visible to the actor. Admins see everyone and may
// filter by department; managers see their own department only.
func (s *UserService) List(ctx context.Context, actor *models.JWTClaims, departmentID string) ([]models.User, error) {
	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleManager:
		if departmentID != "" && departmentID != actor.DepartmentID {
			return nil, appErrors.Clone(appErrors.ErrAccessDenied, "cannot list users of another department")
		}
		departmentID = actor.DepartmentID
	default:
		return nil, appErrors.ErrAccessDenied
	}

	users, err := s.users.List(ctx, departmentID)
	if err != nil {
		return nil, appErrors.Internal(err, "list users")
	}
	return users, nil
}

// UpdateRole changes a user's role. Admin only.
func (s *UserService) UpdateRole(ctx context.Context, actor *models.JWTClaims, id string, role models.Role) (*models.User, error) {
	if actor.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrAccessDenied, "only admins can change roles")
	}
	if !role.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown role")
	}

	if err := s.users.UpdateRole(ctx, id, role); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Internal(err, "update role")
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, appErrors.Internal(err, "reload user")
	}
	return user, nil
}
