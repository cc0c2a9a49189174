package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ppdb-admissions-api/internal/middleware"
	"github.com/noah-isme/ppdb-admissions-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	return middleware.Claims(c)
}

func tenantFromContext(c *gin.Context) string {
	return c.GetString(middleware.ContextTenantKey)
}

func actorFromContext(c *gin.Context) string {
	if claims := claimsFromContext(c); claims != nil {
		return claims.UserID
	}
	return ""
}
