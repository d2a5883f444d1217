package dto

import "github.com/docstore-labs/deptdocs-api/internal/models"

// CreateUserRequest is the payload for creating an account.
type CreateUserRequest struct {
	Username     string      `json:"username" validate:"required,min=3,max=64"`
	Email        string      `json:"email" validate:"required,email"`
	Password     string      `json:"password" validate:"required,min=8"`
	Role         models.Role `json:"role" validate:"required"`
	DepartmentID string      `json:"department_id" validate:"required"`
}

// UpdateUserRoleRequest changes a user's role.
type UpdateUserRoleRequest struct {
	Role models.Role `json:"role" validate:"required"`
}

// CreateDepartmentRequest is the payload for creating a department.
type CreateDepartmentRequest struct {
	Name string `json:"name" validate:"required,min=2,max=128"`
}
