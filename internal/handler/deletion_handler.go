package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/division-console/internal/models"
	appErrors "github.com/noah-isme/division-console/pkg/errors"
	"github.com/noah-isme/division-console/pkg/response"
)

type batchSubmitter interface {
	SubmitBatch(ctx context.Context, ids []string, path string) (*models.DeletionBatchResponse, error)
}

type deletionAuditReader interface {
	ListByBatch(ctx context.Context, batchID string) ([]models.DeletionAuditEntry, error)
}

// DeletionHandler accepts bulk deletion commands.
type DeletionHandler struct {
	orchestrator batchSubmitter
	audit        deletionAuditReader
}

// NewDeletionHandler constructs the handler. audit may be nil when the audit trail is disabled.
func NewDeletionHandler(orchestrator batchSubmitter, audit deletionAuditReader) *DeletionHandler {
	return &DeletionHandler{orchestrator: orchestrator, audit: audit}
}

// Submit godoc
// @Summary Queue a bulk deletion
// @Description Deletes the given ids one at a time in the background. Progress is streamed on /ws/deletions.
// @Tags Deletions
// @Accept json
// @Produce json
// @Param payload body models.DeletionCommand true "Batch command"
// @Success 202 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Router /deletions [post]
func (h *DeletionHandler) Submit(c *gin.Context) {
	var cmd models.DeletionCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload"))
		return
	}
	ack, err := h.orchestrator.SubmitBatch(c.Request.Context(), cmd.IDs, cmd.Path)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, ack)
}

// Audit godoc
// @Summary Per-item outcomes of a deletion batch
// @Tags Deletions
// @Produce json
// @Param batchId path string true "Batch ID"
// @Success 200 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /deletions/{batchId}/audit [get]
func (h *DeletionHandler) Audit(c *gin.Context) {
	if h.audit == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrUnavailable, "deletion audit is disabled"))
		return
	}
	batchID := strings.TrimSpace(c.Param("batchId"))
	if batchID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "batch not found"))
		return
	}
	entries, err := h.audit.ListByBatch(c.Request.Context(), batchID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}
