// Package policy is the pure access-control decision engine. Every function
// here is side-effect free: decisions are taken over the actor's claims and
// the file row alone, never over I/O.
package policy

import (
	"path/filepath"
	"strings"

	"github.com/docstore-labs/deptdocs-api/internal/models"
	appErrors "github.com/docstore-labs/deptdocs-api/pkg/errors"
)

// Per-role upload ceilings in bytes. The boundary is inclusive: a file of
// exactly the maximum size is accepted.
var maxUploadBytes = map[models.Role]int64{
	models.RoleUser:    10 << 20,
	models.RoleManager: 50 << 20,
	models.RoleAdmin:   100 << 20,
}

// MaxUploadSize returns the byte ceiling for the given role.
func MaxUploadSize(role models.Role) int64 {
	return maxUploadBytes[role]
}

// CanRead decides read eligibility.
//
//	ADMIN                 -> always
//	PUBLIC                -> anyone
//	DEPARTMENT            -> managers, or same-department actors
//	PRIVATE               -> owner only
func CanRead(file *models.File, actor *models.JWTClaims) bool {
	if actor.Role == models.RoleAdmin {
		return true
	}
	switch file.Visibility {
	case models.VisibilityPublic:
		return true
	case models.VisibilityDepartment:
		return actor.Role == models.RoleManager || actor.DepartmentID == file.DepartmentID
	case models.VisibilityPrivate:
		return actor.UserID == file.OwnerID
	default:
		return false
	}
}

// CanDelete decides delete eligibility.
//
//	USER    -> owner only
//	MANAGER -> own department only
//	ADMIN   -> always
func CanDelete(file *models.File, actor *models.JWTClaims) bool {
	switch actor.Role {
	case models.RoleUser:
		return actor.UserID == file.OwnerID
	case models.RoleManager:
		return actor.DepartmentID == file.DepartmentID
	case models.RoleAdmin:
		return true
	default:
		return false
	}
}

// ValidateUpload checks size against the role ceiling and enforces the
// USER-role restrictions (PDF only, PRIVATE only). Size must be the actual
// byte count read, not a caller-declared value.
func ValidateUpload(fileType models.FileType, size int64, visibility models.Visibility, actor *models.JWTClaims) error {
	if !visibility.Valid() {
		return appErrors.Clone(appErrors.ErrInvalidVisibility, "unknown visibility")
	}
	if size > MaxUploadSize(actor.Role) {
		return appErrors.ErrSizeExceeded
	}
	if actor.Role == models.RoleUser {
		if fileType != models.FileTypePDF {
			return appErrors.Clone(appErrors.ErrInvalidFileType, "users can only upload PDF files")
		}
		if visibility != models.VisibilityPrivate {
			return appErrors.Clone(appErrors.ErrInvalidVisibility, "users can only upload private files")
		}
	}
	return nil
}

// DetectType derives the file type from the filename extension,
// case-insensitively, before any blob I/O happens.
func DetectType(filename string) (models.FileType, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return models.FileTypePDF, nil
	case ".doc", ".docx":
		return models.FileTypeDOCX, nil
	default:
		return "", appErrors.ErrInvalidFileType
	}
}

// ListScope produces the list predicate for the actor. An explicit department
// filter outside the actor's own department is rejected for USER and MANAGER
// alike; ADMIN may filter freely.
func ListScope(actor *models.JWTClaims, departmentFilter string) (models.FileFilter, error) {
	filter := models.FileFilter{
		Role:               actor.Role,
		ViewerID:           actor.UserID,
		ViewerDepartmentID: actor.DepartmentID,
	}

	switch actor.Role {
	case models.RoleAdmin:
		filter.DepartmentID = departmentFilter
	case models.RoleManager, models.RoleUser:
		if departmentFilter != "" && departmentFilter != actor.DepartmentID {
			return models.FileFilter{}, appErrors.Clone(appErrors.ErrAccessDenied, "cannot list files of another department")
		}
		filter.DepartmentID = departmentFilter
	default:
		return models.FileFilter{}, appErrors.ErrAccessDenied
	}

	return filter, nil
}
