package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ppdb-admissions-api/internal/models"
	appErrors "github.com/noah-isme/ppdb-admissions-api/pkg/errors"
	"github.com/noah-isme/ppdb-admissions-api/pkg/response"
)

// TenantHeader lets a super admin act on a specific school.
const TenantHeader = "X-Tenant-ID"

// Tenant resolves the school the request operates on. Regular users are bound
// to the tenant in their token; super admins choose one through TenantHeader.
// Must run after JWT.
func Tenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := Claims(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		tenantID := claims.TenantID
		if claims.Role == models.RoleSuperAdmin {
			if override := strings.TrimSpace(c.GetHeader(TenantHeader)); override != "" {
				tenantID = override
			}
		}
		if tenantID == "" {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "token is not bound to a school"))
			c.Abort()
			return
		}

		c.Set(ContextTenantKey, tenantID)
		c.Next()
	}
}
