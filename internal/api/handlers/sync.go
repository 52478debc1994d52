package handlers

import (
	"net/http"
	"strconv"

	"contractor-sync/internal/api"
	"contractor-sync/internal/logger"
	"contractor-sync/internal/service"

	"github.com/gin-gonic/gin"
)

// SyncHandler triggers mapping sync runs
type SyncHandler struct {
	sync *service.SyncService
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(sync *service.SyncService) *SyncHandler {
	return &SyncHandler{sync: sync}
}

// Run triggers a full mapping sync and returns the run summary.
// Pass ?dry_run=true to score without persisting anything.
// POST /api/v1/sync/run
func (h *SyncHandler) Run(c *gin.Context) {
	dryRun := false
	if raw := c.Query("dry_run"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			api.SendBadRequest(c, "dry_run must be a boolean")
			return
		}
		dryRun = parsed
	}

	summary, err := h.sync.Run(c.Request.Context(), dryRun)
	if err != nil {
		logger.Error().Err(err).Msg("Mapping sync run failed")
		api.SendInternalError(c, "Sync run failed")
		return
	}

	api.SendSuccess(c, http.StatusOK, summary)
}
