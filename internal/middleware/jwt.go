package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/docstore-labs/deptdocs-api/internal/models"
	appErrors "github.com/docstore-labs/deptdocs-api/pkg/errors"
	"github.com/docstore-labs/deptdocs-api/pkg/response"
)

// ContextUserKey is the gin context key storing JWT claims.
const ContextUserKey = "currentUser"

type authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.JWTClaims, error)
}

// JWT protects routes by requiring a valid access token. The account is
// re-checked against the database so deactivation takes effect immediately.
func JWT(auth authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, appErrors.ErrUnauthenticated)
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthenticated, "invalid authorization header"))
			c.Abort()
			return
		}

		claims, err := auth.Authenticate(c.Request.Context(), parts[1])
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextUserKey, claims)
		c.Next()
	}
}
