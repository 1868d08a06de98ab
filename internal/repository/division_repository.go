package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/division-console/internal/models"
	"github.com/noah-isme/division-console/pkg/config"
	"github.com/noah-isme/division-console/pkg/credentials"
	appErrors "github.com/noah-isme/division-console/pkg/errors"
	"github.com/noah-isme/division-console/pkg/middleware/requestid"
)

const maxResponseBody = 1 << 20

type gatewayObserver interface {
	ObserveGatewayCall(operation string, status int, duration time.Duration)
}

// DivisionRepository talks to the upstream division REST gateway.
type DivisionRepository struct {
	endpoint string
	client   *http.Client
	metrics  gatewayObserver
	logger   *zap.Logger
}

// gatewayEnvelope is the response contract shared by every gateway endpoint.
type gatewayEnvelope struct {
	Success bool                     `json:"success"`
	Code    int                      `json:"code"`
	Message string                   `json:"message"`
	Data    json.RawMessage          `json:"data"`
	Meta    *models.DivisionPageMeta `json:"meta"`
	Errors  json.RawMessage          `json:"errors"`
}

// NewDivisionRepository constructs the repository. A nil client gets one with cfg.Timeout.
func NewDivisionRepository(cfg config.GatewayConfig, client *http.Client, metrics gatewayObserver, logger *zap.Logger) *DivisionRepository {
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	path := cfg.DivisionPath
	if path == "" {
		path = "/division"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return &DivisionRepository{
		endpoint: strings.TrimRight(cfg.BaseURL, "/") + path,
		client:   client,
		metrics:  metrics,
		logger:   logger,
	}
}

// List returns one page of divisions, optionally filtered by free text.
func (r *DivisionRepository) List(ctx context.Context, filter models.DivisionFilter) (*models.DivisionPage, error) {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	if search := strings.TrimSpace(filter.Search); search != "" {
		query.Set("search", search)
	}

	var items []models.Division
	env, err := r.do(ctx, "list", http.MethodGet, r.endpoint+"?"+query.Encode(), nil, &items)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.Division{}
	}

	result := &models.DivisionPage{Items: items, CurrentPage: page, LastPage: 1, PerPage: len(items), TotalCount: len(items)}
	if env.Meta != nil {
		result.CurrentPage = env.Meta.CurrentPage
		result.LastPage = env.Meta.LastPage
		result.PerPage = env.Meta.PerPage
		result.TotalCount = env.Meta.Total
	}
	return result, nil
}

// FindByID returns a single division.
func (r *DivisionRepository) FindByID(ctx context.Context, id int64) (*models.Division, error) {
	var division models.Division
	if _, err := r.do(ctx, "get", http.MethodGet, r.itemURL(id), nil, &division); err != nil {
		return nil, err
	}
	if division.ID == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "division not found")
	}
	return &division, nil
}

// Create persists a new division and returns the created record.
func (r *DivisionRepository) Create(ctx context.Context, input models.DivisionInput) (*models.Division, error) {
	var division models.Division
	if _, err := r.do(ctx, "create", http.MethodPost, r.endpoint, input, &division); err != nil {
		return nil, err
	}
	return &division, nil
}

// Update replaces the mutable fields of a division.
func (r *DivisionRepository) Update(ctx context.Context, id int64, input models.DivisionInput) error {
	_, err := r.do(ctx, "update", http.MethodPut, r.itemURL(id), input, nil)
	return err
}

// Delete removes a division and returns the gateway's confirmation message.
func (r *DivisionRepository) Delete(ctx context.Context, id int64) (string, error) {
	env, err := r.do(ctx, "delete", http.MethodDelete, r.itemURL(id), nil, nil)
	if err != nil {
		return "", err
	}
	return env.Message, nil
}

func (r *DivisionRepository) itemURL(id int64) string {
	return fmt.Sprintf("%s/%d", r.endpoint, id)
}

func (r *DivisionRepository) do(ctx context.Context, operation, method, endpoint string, body interface{}, out interface{}) (*gatewayEnvelope, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", operation, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", operation, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := credentials.Bearer(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if reqID := requestid.FromContext(ctx); reqID != "" {
		req.Header.Set(requestid.HeaderKey, reqID)
	}

	start := time.Now()
	resp, err := r.client.Do(req)
	if err != nil {
		r.observe(operation, 0, start)
		return nil, appErrors.Wrap(err, appErrors.ErrGateway.Code, appErrors.ErrGateway.Status, appErrors.ErrGateway.Message)
	}
	defer resp.Body.Close()
	r.observe(operation, resp.StatusCode, start)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrGateway.Code, appErrors.ErrGateway.Status, appErrors.ErrGateway.Message)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		appErr := decodeGatewayError(resp.StatusCode, raw)
		r.logger.Debug("gateway call failed",
			zap.String("operation", operation),
			zap.Int("status", resp.StatusCode),
			zap.String("message", appErr.Message),
		)
		return nil, appErr
	}

	env := &gatewayEnvelope{}
	if len(bytes.TrimSpace(raw)) == 0 {
		return env, nil
	}
	if err := json.Unmarshal(raw, env); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrGateway.Code, appErrors.ErrGateway.Status, "unexpected gateway response")
	}
	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrGateway.Code, appErrors.ErrGateway.Status, "unexpected gateway payload")
		}
	}
	return env, nil
}

func (r *DivisionRepository) observe(operation string, status int, start time.Time) {
	if r.metrics == nil {
		return
	}
	r.metrics.ObserveGatewayCall(operation, status, time.Since(start))
}

// decodeGatewayError maps a non-2xx gateway response onto the error taxonomy,
// preferring the gateway's own message and per-field validation errors.
func decodeGatewayError(status int, raw []byte) *appErrors.Error {
	var env gatewayEnvelope
	_ = json.Unmarshal(raw, &env)
	message := strings.TrimSpace(env.Message)

	switch status {
	case http.StatusNotFound:
		return appErrors.Clone(appErrors.ErrNotFound, firstNonEmpty(message, "division not found"))
	case http.StatusUnauthorized:
		return appErrors.Clone(appErrors.ErrUnauthorized, firstNonEmpty(message, appErrors.ErrUnauthorized.Message))
	case http.StatusForbidden:
		return appErrors.Clone(appErrors.ErrForbidden, firstNonEmpty(message, appErrors.ErrForbidden.Message))
	}

	fields := parseFieldErrors(env.Errors)
	if len(fields) > 0 || status == http.StatusUnprocessableEntity {
		return appErrors.WithFields(appErrors.Clone(appErrors.ErrValidation, firstNonEmpty(message, appErrors.ErrValidation.Message)), fields)
	}

	appErr := appErrors.Clone(appErrors.ErrGateway, firstNonEmpty(message, appErrors.ErrGateway.Message))
	appErr.Err = fmt.Errorf("gateway status %d", status)
	return appErr
}

// parseFieldErrors accepts both {"field": ["msg", ...]} and {"field": "msg"}.
func parseFieldErrors(raw json.RawMessage) map[string]string {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var generic map[string]json.RawMessage
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil
	}
	fields := make(map[string]string, len(generic))
	for field, value := range generic {
		var list []string
		if err := json.Unmarshal(value, &list); err == nil {
			if len(list) > 0 {
				fields[field] = list[0]
			}
			continue
		}
		var single string
		if err := json.Unmarshal(value, &single); err == nil && single != "" {
			fields[field] = single
		}
	}
	return fields
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
