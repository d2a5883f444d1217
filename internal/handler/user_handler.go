package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/docstore-labs/deptdocs-api/internal/dto"
	"github.com/docstore-labs/deptdocs-api/internal/models"
	appErrors "github.com/docstore-labs/deptdocs-api/pkg/errors"
	"github.com/docstore-labs/deptdocs-api/pkg/response"
)

type userService interface {
	Create(ctx context.Context, actor *models.JWTClaims, req dto.CreateUserRequest) (*models.User, error)
	Get(ctx context.Context, actor *models.JWTClaims, id string) (*models.User, error)
	List(ctx context.Context, actor *models.JWTClaims, departmentID string) ([]models.User, error)
	UpdateRole(ctx context.Context, actor *models.JWTClaims, id string, role models.Role) (*models.User, error)
}

// UserHandler wires HTTP endpoints to the user service.
type UserHandler struct {
	service  userService
	validate *validator.Validate
}

// NewUserHandler creates a new handler.
func NewUserHandler(svc userService) *UserHandler {
	return &UserHandler{service: svc, validate: validator.New()}
}

// Create godoc
// @Summary Create user
// @Description Provision a new account
// @Tags Users
// @Accept json
// @Produce json
// @Param payload body dto.CreateUserRequest true "User payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /users [post]
func (h *UserHandler) Create(c *gin.Context) {
	var req dto.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid user payload"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, err.Error()))
		return
	}

	user, err := h.service.Create(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, user)
}

// Get godoc
// @Summary Get user
// @Tags Users
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /users/{id} [get]
func (h *UserHandler) Get(c *gin.Context) {
	user, err := h.service.Get(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user)
}

// List godoc
// @Summary List users
// @Tags Users
// @Produce json
// @Param department_id query string false "Department filter"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /users [get]
func (h *UserHandler) List(c *gin.Context) {
	users, err := h.service.List(c.Request.Context(), claimsFromContext(c), c.Query("department_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, users)
}

// UpdateRole godoc
// @Summary Update user role
// @Tags Users
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param payload body dto.UpdateUserRoleRequest true "Role payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /users/{id}/role [patch]
func (h *UserHandler) UpdateRole(c *gin.Context) {
	var req dto.UpdateUserRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid role payload"))
		return
	}

	user, err := h.service.UpdateRole(c.Request.Context(), claimsFromContext(c), c.Param("id"), req.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user)
}
