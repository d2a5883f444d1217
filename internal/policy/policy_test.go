package policy

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/docstore-labs/deptdocs-api/internal/models"
	appErrors "github.com/docstore-labs/deptdocs-api/pkg/errors"
)

func actor(role models.Role, userID, deptID string) *models.JWTClaims {
	return &models.JWTClaims{UserID: userID, Role: role, DepartmentID: deptID}
}

func file(ownerID, deptID string, vis models.Visibility) *models.File {
	return &models.File{ID: "f-1", OwnerID: ownerID, DepartmentID: deptID, Visibility: vis}
}

func TestCanReadDecisionTable(t *testing.T) {
	owner := "u-owner"
	dept := "d-1"
	otherDept := "d-2"

	cases := []struct {
		name       string
		visibility models.Visibility
		actor      *models.JWTClaims
		want       bool
	}{
		{"user/private/owner", models.VisibilityPrivate, actor(models.RoleUser, owner, dept), true},
		{"user/private/same-dept-non-owner", models.VisibilityPrivate, actor(models.RoleUser, "u-other", dept), false},
		{"user/private/other-dept", models.VisibilityPrivate, actor(models.RoleUser, "u-other", otherDept), false},
		{"user/department/same-dept", models.VisibilityDepartment, actor(models.RoleUser, "u-other", dept), true},
		{"user/department/other-dept", models.VisibilityDepartment, actor(models.RoleUser, "u-other", otherDept), false},
		{"user/public/other-dept", models.VisibilityPublic, actor(models.RoleUser, "u-other", otherDept), true},
		{"manager/private/same-dept", models.VisibilityPrivate, actor(models.RoleManager, "m-1", dept), false},
		{"manager/private/owner", models.VisibilityPrivate, actor(models.RoleManager, owner, dept), true},
		{"manager/department/other-dept", models.VisibilityDepartment, actor(models.RoleManager, "m-1", otherDept), true},
		{"manager/public", models.VisibilityPublic, actor(models.RoleManager, "m-1", otherDept), true},
		{"admin/private", models.VisibilityPrivate, actor(models.RoleAdmin, "a-1", otherDept), true},
		{"admin/department", models.VisibilityDepartment, actor(models.RoleAdmin, "a-1", otherDept), true},
		{"admin/public", models.VisibilityPublic, actor(models.RoleAdmin, "a-1", otherDept), true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := CanRead(file(owner, dept, tc.visibility), tc.actor)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestCanReadUnknownVisibility(t *testing.T) {
	f := file("u-owner", "d-1", models.Visibility("SECRET"))
	require.False(t, CanRead(f, actor(models.RoleUser, "u-owner", "d-1")))
	require.True(t, CanRead(f, actor(models.RoleAdmin, "a-1", "d-9")))
}

func TestCanDelete(t *testing.T) {
	f := file("u-owner", "d-1", models.VisibilityPrivate)

	require.True(t, CanDelete(f, actor(models.RoleUser, "u-owner", "d-1")))
	require.False(t, CanDelete(f, actor(models.RoleUser, "u-other", "d-1")))
	require.True(t, CanDelete(f, actor(models.RoleManager, "m-1", "d-1")))
	require.False(t, CanDelete(f, actor(models.RoleManager, "m-1", "d-2")))
	require.True(t, CanDelete(f, actor(models.RoleAdmin, "a-1", "d-9")))
}

func TestValidateUploadSizeBoundaries(t *testing.T) {
	cases := []struct {
		role models.Role
		max  int64
	}{
		{models.RoleUser, 10 << 20},
		{models.RoleManager, 50 << 20},
		{models.RoleAdmin, 100 << 20},
	}

	for _, tc := range cases {
		t.Run(string(tc.role), func(t *testing.T) {
			a := actor(tc.role, "u-1", "d-1")
			vis := models.VisibilityPrivate
			if tc.role != models.RoleUser {
				vis = models.VisibilityPublic
			}

			// Exactly at the ceiling is accepted.
			require.NoError(t, ValidateUpload(models.FileTypePDF, tc.max, vis, a))

			err := ValidateUpload(models.FileTypePDF, tc.max+1, vis, a)
			require.Error(t, err)
			require.Equal(t, appErrors.ErrSizeExceeded.Code, appErrors.FromError(err).Code)
		})
	}
}

func TestValidateUploadUserRestrictions(t *testing.T) {
	a := actor(models.RoleUser, "u-1", "d-1")

	err := ValidateUpload(models.FileTypeDOCX, 1024, models.VisibilityPrivate, a)
	require.Equal(t, appErrors.ErrInvalidFileType.Code, appErrors.FromError(err).Code)

	err = ValidateUpload(models.FileTypePDF, 1024, models.VisibilityDepartment, a)
	require.Equal(t, appErrors.ErrInvalidVisibility.Code, appErrors.FromError(err).Code)

	require.NoError(t, ValidateUpload(models.FileTypePDF, 1024, models.VisibilityPrivate, a))
}

func TestValidateUploadManagerAndAdminUnrestricted(t *testing.T) {
	for _, role := range []models.Role{models.RoleManager, models.RoleAdmin} {
		a := actor(role, "u-1", "d-1")
		require.NoError(t, ValidateUpload(models.FileTypeDOCX, 1024, models.VisibilityPublic, a))
		require.NoError(t, ValidateUpload(models.FileTypePDF, 1024, models.VisibilityDepartment, a))
	}
}

func TestDetectType(t *testing.T) {
	cases := []struct {
		filename string
		want     models.FileType
		wantErr  bool
	}{
		{"report.pdf", models.FileTypePDF, false},
		{"REPORT.PDF", models.FileTypePDF, false},
		{"notes.docx", models.FileTypeDOCX, false},
		{"legacy.DOC", models.FileTypeDOCX, false},
		{"image.png", "", true},
		{"noextension", "", true},
	}

	for _, tc := range cases {
		got, err := DetectType(tc.filename)
		if tc.wantErr {
			require.Error(t, err, tc.filename)
			require.Equal(t, appErrors.ErrInvalidFileType.Code, appErrors.FromError(err).Code)
			continue
		}
		require.NoError(t, err, tc.filename)
		require.Equal(t, tc.want, got, tc.filename)
	}
}

func TestListScope(t *testing.T) {
	t.Run("admin unrestricted with optional filter", func(t *testing.T) {
		filter, err := ListScope(actor(models.RoleAdmin, "a-1", "d-1"), "d-9")
		require.NoError(t, err)
		require.Equal(t, models.RoleAdmin, filter.Role)
		require.Equal(t, "d-9", filter.DepartmentID)
	})

	t.Run("user foreign department rejected", func(t *testing.T) {
		_, err := ListScope(actor(models.RoleUser, "u-1", "d-1"), "d-2")
		require.Error(t, err)
		require.Equal(t, appErrors.ErrAccessDenied.Code, appErrors.FromError(err).Code)
	})

	t.Run("manager foreign department rejected", func(t *testing.T) {
		_, err := ListScope(actor(models.RoleManager, "m-1", "d-1"), "d-2")
		require.Error(t, err)
		require.Equal(t, appErrors.ErrAccessDenied.Code, appErrors.FromError(err).Code)
	})

	t.Run("own department filter allowed", func(t *testing.T) {
		filter, err := ListScope(actor(models.RoleUser, "u-1", "d-1"), "d-1")
		require.NoError(t, err)
		require.Equal(t, "d-1", filter.DepartmentID)
		require.Equal(t, "u-1", filter.ViewerID)
		require.Equal(t, "d-1", filter.ViewerDepartmentID)
	})

	t.Run("no filter", func(t *testing.T) {
		filter, err := ListScope(actor(models.RoleManager, "m-1", "d-1"), "")
		require.NoError(t, err)
		require.Empty(t, filter.DepartmentID)
	})
}
