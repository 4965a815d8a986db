package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/altavia-air/altavia-api/internal/models"
	"github.com/altavia-air/altavia-api/internal/service"
	appErrors "github.com/altavia-air/altavia-api/pkg/errors"
	"github.com/altavia-air/altavia-api/pkg/response"
)

// AuthHandler wires HTTP endpoints to the auth service.
type AuthHandler struct {
	service *service.AuthService
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(svc *service.AuthService) *AuthHandler {
	return &AuthHandler{service: svc}
}

// Login authenticates a passenger account and returns a token pair.
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.KindValidation, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid login payload"))
		return
	}
	req.IP = c.ClientIP()

	res, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res)
}

// Refresh exchanges a refresh token for a rotated pair.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req models.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.KindValidation, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid refresh payload"))
		return
	}
	req.IP = c.ClientIP()

	res, err := h.service.Refresh(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res)
}

// Logout revokes the presented refresh token for the current subject.
func (h *AuthHandler) Logout(c *gin.Context) {
	var req models.LogoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.KindValidation, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid logout payload"))
		return
	}
	req.IP = c.ClientIP()

	if err := h.service.Logout(c.Request.Context(), subjectFromContext(c), req); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// LogoutEverywhere revokes every live session for the current subject.
func (h *AuthHandler) LogoutEverywhere(c *gin.Context) {
	revoked, err := h.service.LogoutEverywhere(c.Request.Context(), subjectFromContext(c), c.ClientIP())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{"revokedSessions": revoked})
}
