package handlers

import (
	"errors"
	"net/http"

	"contractor-sync/internal/api"
	"contractor-sync/internal/db"
	"contractor-sync/internal/service"

	"github.com/gin-gonic/gin"
)

// MappingHandler serves mapping read and review endpoints
type MappingHandler struct {
	reviews *service.ReviewService
}

// NewMappingHandler creates a new mapping handler
func NewMappingHandler(reviews *service.ReviewService) *MappingHandler {
	return &MappingHandler{reviews: reviews}
}

// List returns all active mappings, newest first
// GET /api/v1/mappings
func (h *MappingHandler) List(c *gin.Context) {
	mappings, err := h.reviews.ListActive(c.Request.Context())
	if err != nil {
		api.SendInternalError(c, "Failed to list mappings")
		return
	}
	api.SendSuccess(c, http.StatusOK, mappings)
}

// ListPending returns mappings awaiting human review, highest
// confidence first
// GET /api/v1/mappings/pending
func (h *MappingHandler) ListPending(c *gin.Context) {
	mappings, err := h.reviews.Pending(c.Request.Context())
	if err != nil {
		api.SendInternalError(c, "Failed to list pending reviews")
		return
	}
	api.SendSuccess(c, http.StatusOK, mappings)
}

// VerifyRequest is the body for the verify endpoint
type VerifyRequest struct {
	Approved   *bool  `json:"approved" binding:"required"`
	ReviewedBy string `json:"reviewed_by" binding:"required"`
}

// Verify records a human verdict on a mapping
// POST /api/v1/mappings/:source_id/verify
func (h *MappingHandler) Verify(c *gin.Context) {
	sourceID := c.Param("source_id")

	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.SendError(c, http.StatusBadRequest, api.ErrCodeValidation, "Invalid request body", err.Error())
		return
	}

	var mapping interface{}
	var err error
	if *req.Approved {
		mapping, err = h.reviews.Approve(c.Request.Context(), sourceID, req.ReviewedBy)
	} else {
		mapping, err = h.reviews.Reject(c.Request.Context(), sourceID, req.ReviewedBy)
	}
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			api.SendNotFound(c, "Mapping")
			return
		}
		api.SendInternalError(c, "Failed to verify mapping")
		return
	}

	api.SendSuccess(c, http.StatusOK, mapping)
}
