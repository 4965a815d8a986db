package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/altavia-air/altavia-api/internal/middleware"
	"github.com/altavia-air/altavia-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.TokenClaims {
	return middleware.ClaimsFrom(c)
}

func subjectFromContext(c *gin.Context) string {
	if claims := claimsFromContext(c); claims != nil {
		return claims.SubjectID()
	}
	return ""
}
