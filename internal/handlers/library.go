package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kineticare/kineticare-backend/internal/services"
)

type LibraryHandler struct {
	libraryService services.LibraryService
}

func NewLibraryHandler(libraryService services.LibraryService) *LibraryHandler {
	return &LibraryHandler{libraryService: libraryService}
}

func (h *LibraryHandler) ListExercises(c *gin.Context) {
	entries, err := h.libraryService.ListExercises(c.Request.Context())
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "LIBRARY_UNAVAILABLE", err)
		return
	}
	RespondOK(c, gin.H{"exercises": entries})
}

func (h *LibraryHandler) GetSuggestionSet(c *gin.Context) {
	setID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "BAD_REQUEST", fmt.Errorf("invalid suggestion set id"))
		return
	}
	set, err := h.libraryService.GetSuggestionSet(c.Request.Context(), setID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, set)
}
