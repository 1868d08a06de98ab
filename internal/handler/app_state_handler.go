package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/division-console/internal/models"
	"github.com/noah-isme/division-console/internal/service"
	appErrors "github.com/noah-isme/division-console/pkg/errors"
	"github.com/noah-isme/division-console/pkg/response"
)

type deletingResetter interface {
	ClearDeleting()
}

// AppStateHandler reads and updates the shared console state.
type AppStateHandler struct {
	state     *service.AppState
	resetter  deletingResetter
	validator *validator.Validate
}

// NewAppStateHandler constructs the handler.
func NewAppStateHandler(state *service.AppState, resetter deletingResetter, validate *validator.Validate) *AppStateHandler {
	if validate == nil {
		validate = service.NewValidator()
	}
	return &AppStateHandler{state: state, resetter: resetter, validator: validate}
}

// Get godoc
// @Summary Current console state
// @Tags AppState
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /app/state [get]
func (h *AppStateHandler) Get(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.state.Snapshot(), nil)
}

// UpdateSearch godoc
// @Summary Store the list search text
// @Tags AppState
// @Accept json
// @Produce json
// @Param payload body models.SearchRequest true "Search text"
// @Success 200 {object} response.Envelope
// @Router /app/state/search [put]
func (h *AppStateHandler) UpdateSearch(c *gin.Context) {
	var req models.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload"))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		response.Error(c, appErrors.WithFields(
			appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload"),
			map[string]string{"search": "The search may not be greater than 255 characters."},
		))
		return
	}
	h.state.SetSearch(req.Search)
	response.JSON(c, http.StatusOK, h.state.Snapshot(), nil)
}

// ClearDeleting godoc
// @Summary Reset a stuck deleting indicator
// @Tags AppState
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /app/state/deleting [delete]
func (h *AppStateHandler) ClearDeleting(c *gin.Context) {
	h.resetter.ClearDeleting()
	response.JSON(c, http.StatusOK, h.state.Snapshot(), nil)
}
