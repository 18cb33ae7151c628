package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kurihiro0119/github-compatibility/internal/domain"
	apperrors "github.com/kurihiro0119/github-compatibility/internal/errors"
)

// Analyzer runs a compatibility analysis on behalf of the caller's token
type Analyzer interface {
	Analyze(ctx context.Context, token, username1, username2 string) (*domain.CompatibilityResult, error)
}

// Handler handles API requests
type Handler struct {
	analyzer Analyzer
}

// NewHandler creates a new API handler
func NewHandler(analyzer Analyzer) *Handler {
	return &Handler{
		analyzer: analyzer,
	}
}

// Root reports that the service is up
// GET /
func (h *Handler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "GitHub Compatibility Tool is live!",
	})
}

// HealthCheck returns the health status
// GET /health
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// AnalyzeCompatibility compares two GitHub users
// GET /analyze-compatibility?username1=:u1&username2=:u2
func (h *Handler) AnalyzeCompatibility(c *gin.Context) {
	token, err := bearerToken(c.GetHeader("Authorization"))
	if err != nil {
		respondError(c, err)
		return
	}

	username1 := strings.TrimSpace(c.Query("username1"))
	username2 := strings.TrimSpace(c.Query("username2"))
	if username1 == "" || username2 == "" {
		respondError(c, apperrors.NewBadRequestError("query parameters username1 and username2 are required"))
		return
	}

	result, err := h.analyzer.Analyze(c.Request.Context(), token, username1, username2)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// bearerToken extracts the credential from "Bearer <t>" or "token <t>"
func bearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", apperrors.NewUnauthorizedError("Authorization header is required")
	}

	scheme, token, ok := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !ok || token == "" {
		return "", apperrors.NewUnauthorizedError("Authorization header must be 'Bearer <token>'")
	}
	if !strings.EqualFold(scheme, "Bearer") && !strings.EqualFold(scheme, "token") {
		return "", apperrors.NewUnauthorizedError("unsupported authorization scheme " + scheme)
	}
	return token, nil
}

// respondError writes the error body shared by every endpoint
func respondError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		appErr = apperrors.NewInternalError("internal server error", err)
	}

	status := appErr.HTTPStatus()
	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", "request_id", requestIDFrom(c), "code", appErr.Code, "error", err)
	}
	_ = c.Error(err)

	c.AbortWithStatusJSON(status, gin.H{
		"detail": appErr.Message,
		"error": gin.H{
			"code":    appErr.Code,
			"message": appErr.Message,
		},
	})
}
