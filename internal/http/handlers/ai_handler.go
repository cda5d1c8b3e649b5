// README: Manifest import handler (Gemini parses pasted text into stops).
package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"routetrip/internal/service"
)

// MaxManifestBytes bounds the pasted manifest text.
const MaxManifestBytes = 64 << 10

type ImportHandler struct {
	importer *service.ManifestImporter
	timeout  time.Duration
}

func NewImportHandler(importer *service.ManifestImporter) *ImportHandler {
	return &ImportHandler{importer: importer, timeout: 60 * time.Second}
}

type importReq struct {
	Text string `json:"text"`
}

// Import handles POST /api/trips/current/import.
func (h *ImportHandler) Import(c *gin.Context) {
	var req importReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	req.Text = strings.TrimSpace(req.Text)
	if req.Text == "" {
		writeError(c, http.StatusBadRequest, "missing text")
		return
	}
	if len(req.Text) > MaxManifestBytes {
		writeError(c, http.StatusRequestEntityTooLarge, "manifest too large")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	res, err := h.importer.Import(ctx, req.Text)
	if err != nil {
		writeTripError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, res)
}
