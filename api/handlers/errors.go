package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/mediagrab-go/internal/domain"
)

// StatusForError maps a domain error kind to an HTTP status
func StatusForError(err error) int {
	var de *domain.Error
	if !errors.As(err, &de) {
		return http.StatusInternalServerError
	}
	switch de.Kind {
	case domain.KindInvalidInput:
		return http.StatusBadRequest
	case domain.KindSelectionMismatch:
		return http.StatusConflict
	case domain.KindProvider, domain.KindIO:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	body := gin.H{"error": err.Error()}
	var de *domain.Error
	if errors.As(err, &de) {
		body["kind"] = de.Kind
	}
	c.JSON(StatusForError(err), body)
}
