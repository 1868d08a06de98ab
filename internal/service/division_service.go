package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/division-console/internal/models"
	appErrors "github.com/noah-isme/division-console/pkg/errors"
	applog "github.com/noah-isme/division-console/pkg/logger"
)

type divisionGateway interface {
	List(ctx context.Context, filter models.DivisionFilter) (*models.DivisionPage, error)
	FindByID(ctx context.Context, id int64) (*models.Division, error)
	Create(ctx context.Context, input models.DivisionInput) (*models.Division, error)
	Update(ctx context.Context, id int64, input models.DivisionInput) error
	Delete(ctx context.Context, id int64) (string, error)
}

type divisionCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Forget(ctx context.Context, keys ...string) error
}

// DivisionService is the typed access layer over the division gateway.
type DivisionService struct {
	repo      divisionGateway
	cache     divisionCache
	validator *validator.Validate
	logger    *zap.Logger
}

// NewDivisionService creates a new division service. cache may be nil.
func NewDivisionService(repo divisionGateway, cache divisionCache, validate *validator.Validate, logger *zap.Logger) *DivisionService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DivisionService{repo: repo, cache: cache, validator: validate, logger: logger}
}

// FetchPage returns a page of divisions. Gateway failures yield an empty page, not an error.
func (s *DivisionService) FetchPage(ctx context.Context, page int, search string) (*models.DivisionPage, error) {
	if page < 1 {
		return nil, appErrors.WithFields(appErrors.Clone(appErrors.ErrValidation, "invalid page"), map[string]string{"page": "The page must be at least 1."})
	}
	result, err := s.repo.List(ctx, models.DivisionFilter{Page: page, Search: strings.TrimSpace(search)})
	if err != nil {
		applog.For(ctx, s.logger).Warn("division list unavailable", zap.Int("page", page), zap.Error(err))
		return models.EmptyDivisionPage(), nil
	}
	return result, nil
}

// FetchOne returns a division with its parent embedded, or nil when it does not exist.
func (s *DivisionService) FetchOne(ctx context.Context, id int64) (*models.Division, error) {
	if id <= 0 {
		return nil, nil
	}
	division, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, appErrors.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	division.DivisionParent = nil
	if division.HasParent() {
		parent, err := s.Lookup(ctx, *division.ParentID)
		if err != nil {
			applog.For(ctx, s.logger).Debug("parent lookup failed", zap.Int64("division_id", id), zap.Int64("parent_id", *division.ParentID), zap.Error(err))
		} else {
			division.DivisionParent = parent
		}
	}
	return division, nil
}

// Lookup fetches a single division without expanding its parent. It consults the cache first
// and returns nil when the division does not exist.
func (s *DivisionService) Lookup(ctx context.Context, id int64) (*models.Division, error) {
	key := DivisionCacheKey(id)
	if s.cache != nil {
		var cached models.Division
		if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
			return &cached, nil
		}
	}

	division, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, appErrors.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	division.DivisionParent = nil
	if s.cache != nil {
		_ = s.cache.Set(ctx, key, division, 0)
	}
	return division, nil
}

// Create validates the payload and persists a new division.
func (s *DivisionService) Create(ctx context.Context, input models.DivisionInput) (*models.Division, error) {
	input = normaliseDivisionInput(input)
	if err := s.validator.Struct(input); err != nil {
		return nil, validationError(err, "invalid division payload")
	}
	division, err := s.repo.Create(ctx, input)
	if err != nil {
		return nil, err
	}
	return division, nil
}

// Update validates the payload and replaces the division's fields.
func (s *DivisionService) Update(ctx context.Context, id int64, input models.DivisionInput) error {
	if id <= 0 {
		return appErrors.Clone(appErrors.ErrNotFound, "division not found")
	}
	input = normaliseDivisionInput(input)
	if err := s.validator.Struct(input); err != nil {
		return validationError(err, "invalid division payload")
	}
	if input.ParentID != nil && *input.ParentID == id {
		return appErrors.WithFields(
			appErrors.Clone(appErrors.ErrValidation, "invalid division payload"),
			map[string]string{"division_id": "A division cannot be its own parent."},
		)
	}
	if err := s.repo.Update(ctx, id, input); err != nil {
		return err
	}
	s.forget(ctx, id)
	return nil
}

// DeleteOne removes a division and returns the gateway's confirmation message.
func (s *DivisionService) DeleteOne(ctx context.Context, id int64) (string, error) {
	if id <= 0 {
		return "", appErrors.Clone(appErrors.ErrNotFound, "division not found")
	}
	message, err := s.repo.Delete(ctx, id)
	if err != nil {
		return "", err
	}
	s.forget(ctx, id)
	return message, nil
}

// DeleteItem deletes a division addressed by its textual identifier, as carried in batch commands.
func (s *DivisionService) DeleteItem(ctx context.Context, ref string) (string, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(ref), 10, 64)
	if err != nil || id <= 0 {
		return "", appErrors.Clone(appErrors.ErrValidation, "invalid division id "+strconv.Quote(ref))
	}
	return s.DeleteOne(ctx, id)
}

// Options returns parent-selector entries matching search, omitting exclude.
func (s *DivisionService) Options(ctx context.Context, search string, page int, exclude int64) ([]models.DivisionOption, error) {
	if page < 1 {
		page = 1
	}
	result, err := s.FetchPage(ctx, page, search)
	if err != nil {
		return nil, err
	}
	options := make([]models.DivisionOption, 0, len(result.Items))
	for _, item := range result.Items {
		if exclude > 0 && item.ID == exclude {
			continue
		}
		options = append(options, models.DivisionOption{ID: item.ID, Label: item.Name})
	}
	return options, nil
}

func (s *DivisionService) forget(ctx context.Context, id int64) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Forget(ctx, DivisionCacheKey(id))
}

func normaliseDivisionInput(input models.DivisionInput) models.DivisionInput {
	input.Name = strings.TrimSpace(input.Name)
	if input.Description != nil {
		desc := strings.TrimSpace(*input.Description)
		if desc == "" {
			input.Description = nil
		} else {
			input.Description = &desc
		}
	}
	if input.ParentID != nil && *input.ParentID == 0 {
		input.ParentID = nil
	}
	return input
}
