// Package client talks to a geoplan server over HTTP. Client satisfies
// editor.PositionClient, so a headless editor session can run against a
// remote store.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/starford/geoplan/internal/apperr"
	"github.com/starford/geoplan/internal/models"
)

// ErrUnauthorized is returned when the server rejects the token.
var ErrUnauthorized = errors.New("client: unauthorized")

// Client is an HTTP client for the geoplan API.
type Client struct {
	base  string
	token string
	http  *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithToken sends a Bearer token with every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a client for the server at baseURL (scheme and host, no /api).
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SavePosition upserts a position.
func (c *Client) SavePosition(ctx context.Context, req models.SaveRequest) (*models.Position, error) {
	var pos models.Position
	if err := c.do(ctx, http.MethodPost, "/api/positions", req, &pos); err != nil {
		return nil, err
	}
	return &pos, nil
}

// RemovePosition deletes one position. It reports false when the position
// was already gone.
func (c *Client) RemovePosition(ctx context.Context, positionID int64) (bool, error) {
	var out successResponse
	err := c.do(ctx, http.MethodDelete, "/api/positions/"+strconv.FormatInt(positionID, 10), nil, &out)
	return out.Success, err
}

// RemoveAllPositions removes every instance of a geo code from a plan.
func (c *Client) RemoveAllPositions(ctx context.Context, geoCodeID, planID int64) (bool, error) {
	var out successResponse
	path := fmt.Sprintf("/api/plans/%d/geocodes/%d/positions", planID, geoCodeID)
	err := c.do(ctx, http.MethodDelete, path, nil, &out)
	return out.Success, err
}

// ListPositions returns the positions of a plan.
func (c *Client) ListPositions(ctx context.Context, planID int64, withDetails bool) ([]models.Position, error) {
	path := fmt.Sprintf("/api/plans/%d/positions?details=%t", planID, withDetails)
	var out struct {
		Positions []models.Position `json:"positions"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Positions, nil
}

// GetPlan returns one plan.
func (c *Client) GetPlan(ctx context.Context, planID int64) (*models.Plan, error) {
	var p models.Plan
	if err := c.do(ctx, http.MethodGet, "/api/plans/"+strconv.FormatInt(planID, 10), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListGeoCodes returns every geo code, optionally filtered by category.
func (c *Client) ListGeoCodes(ctx context.Context, category string) ([]models.GeoCode, error) {
	path := "/api/geocodes"
	if category != "" {
		path += "?category=" + url.QueryEscape(category)
	}
	var out struct {
		GeoCodes []models.GeoCode `json:"geo_codes"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.GeoCodes, nil
}

type successResponse struct {
	Success bool `json:"success"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%w: encode body: %v", apperr.ErrValidation, err)
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrValidation, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", apperr.ErrTransient, method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", apperr.ErrTransient, err)
	}
	if resp.StatusCode >= 300 {
		return statusError(resp.StatusCode, data)
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", apperr.ErrTransient, err)
	}
	return nil
}

// statusError maps a failed response onto the application's error kinds.
func statusError(code int, body []byte) error {
	var er errorResponse
	msg := http.StatusText(code)
	if json.Unmarshal(body, &er) == nil && er.Error != "" {
		msg = er.Error
	}
	var kind error
	switch {
	case code == http.StatusBadRequest || code == http.StatusUnprocessableEntity:
		kind = apperr.ErrValidation
	case code == http.StatusNotFound:
		kind = apperr.ErrNotFound
	case code == http.StatusConflict:
		kind = apperr.ErrConflict
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		kind = ErrUnauthorized
	default:
		kind = apperr.ErrTransient
	}
	return fmt.Errorf("%w: %d %s", kind, code, msg)
}
