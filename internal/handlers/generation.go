package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kineticare/kineticare-backend/internal/generation"
	"github.com/kineticare/kineticare-backend/internal/platform/logger"
	"github.com/kineticare/kineticare-backend/internal/services"
	"github.com/kineticare/kineticare-backend/internal/sse"
)

type GenerationHandler struct {
	log               *logger.Logger
	generationService services.GenerationService
}

func NewGenerationHandler(log *logger.Logger, generationService services.GenerationService) *GenerationHandler {
	return &GenerationHandler{
		log:               log.With("handler", "GenerationHandler"),
		generationService: generationService,
	}
}

// Generate streams progress events for one generation request. The stream
// carries its own terminal error events, so anything after the handshake is
// reported in-band rather than with an HTTP status.
func (h *GenerationHandler) Generate(c *gin.Context) {
	var req generation.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "BAD_REQUEST", err)
		return
	}

	stream, err := sse.NewStream(c.Writer, h.log)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "STREAMING_UNSUPPORTED", err)
		return
	}

	h.generationService.Stream(c.Request.Context(), req, stream)
}
