package editor

import (
	"context"
	"errors"
	"fmt"

	"github.com/starford/geoplan/internal/apperr"
	"github.com/starford/geoplan/internal/models"
)

// PositionClient is the request/response channel to the position store. The
// session does not care whether it is in-process or remote.
type PositionClient interface {
	SavePosition(ctx context.Context, req models.SaveRequest) (*models.Position, error)
	RemovePosition(ctx context.Context, positionID int64) (bool, error)
	RemoveAllPositions(ctx context.Context, geoCodeID, planID int64) (bool, error)
	ListPositions(ctx context.Context, planID int64, withDetails bool) ([]models.Position, error)
}

// LocalClient adapts an in-process backend so its failures use the same
// taxonomy as the HTTP client: not-found, validation and conflict pass
// through, anything else becomes apperr.ErrTransient.
type LocalClient struct {
	backend PositionClient
}

// NewLocalClient wraps backend.
func NewLocalClient(backend PositionClient) *LocalClient {
	return &LocalClient{backend: backend}
}

// SavePosition implements PositionClient.
func (c *LocalClient) SavePosition(ctx context.Context, req models.SaveRequest) (*models.Position, error) {
	p, err := c.backend.SavePosition(ctx, req)
	return p, classify(err)
}

// RemovePosition implements PositionClient.
func (c *LocalClient) RemovePosition(ctx context.Context, positionID int64) (bool, error) {
	ok, err := c.backend.RemovePosition(ctx, positionID)
	return ok, classify(err)
}

// RemoveAllPositions implements PositionClient.
func (c *LocalClient) RemoveAllPositions(ctx context.Context, geoCodeID, planID int64) (bool, error) {
	ok, err := c.backend.RemoveAllPositions(ctx, geoCodeID, planID)
	return ok, classify(err)
}

// ListPositions implements PositionClient.
func (c *LocalClient) ListPositions(ctx context.Context, planID int64, withDetails bool) ([]models.Position, error) {
	ps, err := c.backend.ListPositions(ctx, planID, withDetails)
	return ps, classify(err)
}

func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, apperr.ErrNotFound),
		errors.Is(err, apperr.ErrValidation),
		errors.Is(err, apperr.ErrConflict),
		errors.Is(err, apperr.ErrAlreadyExists),
		errors.Is(err, apperr.ErrTransient):
		return err
	}
	return fmt.Errorf("%w: %v", apperr.ErrTransient, err)
}
