package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/docstore-labs/deptdocs-api/internal/dto"
	"github.com/docstore-labs/deptdocs-api/internal/models"
	appErrors "github.com/docstore-labs/deptdocs-api/pkg/errors"
	"github.com/docstore-labs/deptdocs-api/pkg/response"
)

type departmentService interface {
	Create(ctx context.Context, actor *models.JWTClaims, name string) (*models.Department, error)
	Get(ctx context.Context, id string) (*models.Department, error)
	List(ctx context.Context) ([]models.Department, error)
}

// DepartmentHandler wires HTTP endpoints to the department service.
type DepartmentHandler struct {
	service departmentService
}

// NewDepartmentHandler creates a new handler.
func NewDepartmentHandler(svc departmentService) *DepartmentHandler {
	return &DepartmentHandler{service: svc}
}

// Create godoc
// @Summary Create department
// @Tags Departments
// @Accept json
// @Produce json
// @Param payload body dto.CreateDepartmentRequest true "Department payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /departments [post]
func (h *DepartmentHandler) Create(c *gin.Context) {
	var req dto.CreateDepartmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid department payload"))
		return
	}

	dept, err := h.service.Create(c.Request.Context(), claimsFromContext(c), req.Name)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dept)
}

// Get godoc
// @Summary Get department
// @Tags Departments
// @Produce json
// @Param id path string true "Department ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /departments/{id} [get]
func (h *DepartmentHandler) Get(c *gin.Context) {
	dept, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dept)
}

// List godoc
// @Summary List departments
// @Tags Departments
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /departments [get]
func (h *DepartmentHandler) List(c *gin.Context) {
	depts, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, depts)
}
