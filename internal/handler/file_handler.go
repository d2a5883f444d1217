package handler

import (
	"context"
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/docstore-labs/deptdocs-api/internal/dto"
	"github.com/docstore-labs/deptdocs-api/internal/models"
	"github.com/docstore-labs/deptdocs-api/internal/service"
	appErrors "github.com/docstore-labs/deptdocs-api/pkg/errors"
	"github.com/docstore-labs/deptdocs-api/pkg/response"
)

type fileService interface {
	Upload(ctx context.Context, actor *models.JWTClaims, header *multipart.FileHeader, visibility models.Visibility) (*dto.FileResponse, error)
	Get(ctx context.Context, actor *models.JWTClaims, id string) (*dto.FileResponse, error)
	List(ctx context.Context, actor *models.JWTClaims, departmentFilter string) ([]dto.FileResponse, error)
	Download(ctx context.Context, actor *models.JWTClaims, id string) (*dto.DownloadResult, error)
	Delete(ctx context.Context, actor *models.JWTClaims, id string) error
}

// FileHandler wires HTTP endpoints to the file service.
type FileHandler struct {
	service fileService
	metrics *service.MetricsService
}

// NewFileHandler creates a new handler.
func NewFileHandler(svc fileService, metrics *service.MetricsService) *FileHandler {
	return &FileHandler{service: svc, metrics: metrics}
}

// Upload godoc
// @Summary Upload file
// @Description Upload a PDF or DOCX document
// @Tags Files
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Document"
// @Param visibility formData string true "PRIVATE, DEPARTMENT or PUBLIC"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Router /files [post]
func (h *FileHandler) Upload(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "file field is required"))
		return
	}

	visibility := models.Visibility(c.PostForm("visibility"))
	if visibility == "" {
		visibility = models.VisibilityPrivate
	}

	resp, err := h.service.Upload(c.Request.Context(), claimsFromContext(c), header, visibility)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.metrics.RecordUpload(resp.FileType)
	response.Created(c, resp)
}

// Get godoc
// @Summary Get file
// @Description Returns a file record with its extracted metadata
// @Tags Files
// @Produce json
// @Param id path string true "File ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /files/{id} [get]
func (h *FileHandler) Get(c *gin.Context) {
	resp, err := h.service.Get(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resp)
}

// List godoc
// @Summary List files
// @Description Lists files visible to the caller, newest first
// @Tags Files
// @Produce json
// @Param department_id query string false "Department filter"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /files [get]
func (h *FileHandler) List(c *gin.Context) {
	resp, err := h.service.List(c.Request.Context(), claimsFromContext(c), c.Query("department_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resp)
}

// Download godoc
// @Summary Download file
// @Description Streams the file content as an attachment
// @Tags Files
// @Produce octet-stream
// @Param id path string true "File ID"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /files/{id}/download [get]
func (h *FileHandler) Download(c *gin.Context) {
	result, err := h.service.Download(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	h.metrics.RecordDownload()
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	c.Data(http.StatusOK, result.ContentType, result.Data)
}

// Delete godoc
// @Summary Delete file
// @Description Removes the file content, record and metadata
// @Tags Files
// @Param id path string true "File ID"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /files/{id} [delete]
func (h *FileHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), claimsFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
