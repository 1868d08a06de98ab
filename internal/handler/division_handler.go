package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/division-console/internal/middleware"
	"github.com/noah-isme/division-console/internal/models"
	appErrors "github.com/noah-isme/division-console/pkg/errors"
	"github.com/noah-isme/division-console/pkg/response"
)

type divisionService interface {
	FetchPage(ctx context.Context, page int, search string) (*models.DivisionPage, error)
	FetchOne(ctx context.Context, id int64) (*models.Division, error)
	Create(ctx context.Context, input models.DivisionInput) (*models.Division, error)
	Update(ctx context.Context, id int64, input models.DivisionInput) error
	DeleteOne(ctx context.Context, id int64) (string, error)
	Options(ctx context.Context, search string, page int, exclude int64) ([]models.DivisionOption, error)
}

type parentResolver interface {
	ResolveTerminal(ctx context.Context, parentID *int64) models.ParentState
}

type searchSource interface {
	Search() string
}

// DivisionHandler exposes division CRUD endpoints.
type DivisionHandler struct {
	service  divisionService
	resolver parentResolver
	state    searchSource
}

// NewDivisionHandler constructs a division handler.
func NewDivisionHandler(svc divisionService, resolver parentResolver, state searchSource) *DivisionHandler {
	return &DivisionHandler{service: svc, resolver: resolver, state: state}
}

// List godoc
// @Summary List divisions
// @Tags Divisions
// @Produce json
// @Param page query int false "Page"
// @Param search query string false "Search keyword, defaults to the stored search text"
// @Success 200 {object} response.Envelope
// @Router /divisions [get]
func (h *DivisionHandler) List(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil {
		response.Error(c, appErrors.WithFields(appErrors.Clone(appErrors.ErrValidation, "invalid page"), map[string]string{"page": "The page must be a number."}))
		return
	}

	search, ok := c.GetQuery("search")
	if !ok && h.state != nil {
		search = h.state.Search()
	}
	search = strings.TrimSpace(search)

	result, err := h.service.FetchPage(c.Request.Context(), page, search)
	if err != nil {
		response.Error(c, err)
		return
	}

	middleware.SetMeta(c, "search", search)
	pagination := &models.Pagination{
		Page:       result.CurrentPage,
		PageSize:   result.PerPage,
		TotalCount: result.TotalCount,
		LastPage:   result.LastPage,
	}
	response.JSON(c, http.StatusOK, result.Items, pagination, middleware.ExtractMeta(c))
}

// Options godoc
// @Summary Parent selector options
// @Tags Divisions
// @Produce json
// @Param search query string false "Search keyword"
// @Param page query int false "Page"
// @Param exclude query int false "Division ID to leave out"
// @Success 200 {object} response.Envelope
// @Router /divisions/options [get]
func (h *DivisionHandler) Options(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	exclude, _ := strconv.ParseInt(c.Query("exclude"), 10, 64)

	options, err := h.service.Options(c.Request.Context(), c.Query("search"), page, exclude)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, options, nil)
}

// Get godoc
// @Summary Get division by id
// @Tags Divisions
// @Produce json
// @Param id path int true "Division ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /divisions/{id} [get]
func (h *DivisionHandler) Get(c *gin.Context) {
	division, ok := h.load(c)
	if !ok {
		return
	}
	response.JSON(c, http.StatusOK, division, nil)
}

// Parent godoc
// @Summary Resolve the parent of a division
// @Tags Divisions
// @Produce json
// @Param id path int true "Division ID"
// @Success 200 {object} response.Envelope
// @Router /divisions/{id}/parent [get]
func (h *DivisionHandler) Parent(c *gin.Context) {
	division, ok := h.load(c)
	if !ok {
		return
	}
	state := h.resolver.ResolveTerminal(c.Request.Context(), division.ParentID)
	response.JSON(c, http.StatusOK, state, nil, map[string]interface{}{"label": state.Label()})
}

// Create godoc
// @Summary Create division
// @Tags Divisions
// @Accept json
// @Produce json
// @Param payload body models.DivisionInput true "Division payload"
// @Success 201 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /divisions [post]
func (h *DivisionHandler) Create(c *gin.Context) {
	var input models.DivisionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload"))
		return
	}
	division, err := h.service.Create(c.Request.Context(), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, division)
}

// Update godoc
// @Summary Update division
// @Tags Divisions
// @Accept json
// @Produce json
// @Param id path int true "Division ID"
// @Param payload body models.DivisionInput true "Division payload"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /divisions/{id} [put]
func (h *DivisionHandler) Update(c *gin.Context) {
	id, ok := parseDivisionID(c)
	if !ok {
		return
	}
	var input models.DivisionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload"))
		return
	}
	if err := h.service.Update(c.Request.Context(), id, input); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"id": id, "message": "Division updated"}, nil)
}

// Delete godoc
// @Summary Delete a single division
// @Tags Divisions
// @Produce json
// @Param id path int true "Division ID"
// @Success 200 {object} response.Envelope
// @Failure 500 {object} response.Envelope
// @Router /divisions/{id} [delete]
func (h *DivisionHandler) Delete(c *gin.Context) {
	id, ok := parseDivisionID(c)
	if !ok {
		return
	}
	message, err := h.service.DeleteOne(c.Request.Context(), id)
	if err != nil {
		appErr := appErrors.FromError(err)
		if appErr.Code == appErrors.ErrGateway.Code {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, appErr.Message))
			return
		}
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"message": message}, nil)
}

func (h *DivisionHandler) load(c *gin.Context) (*models.Division, bool) {
	id, ok := parseDivisionID(c)
	if !ok {
		return nil, false
	}
	division, err := h.service.FetchOne(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return nil, false
	}
	if division == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "division not found"))
		return nil, false
	}
	return division, true
}

func parseDivisionID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "division not found"))
		return 0, false
	}
	return id, true
}
