package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"pdf-assistant/internal/history"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

var ErrNotFound = errors.New("interaction not found")

// Store persists interaction history; an external DB implementation can replace this.
type Store interface {
	SaveInteraction(ctx context.Context, it history.Interaction) error
	GetInteraction(ctx context.Context, id uuid.UUID) (history.Interaction, error)
	ListInteractions(ctx context.Context, limit int) ([]history.Interaction, error)
	Close() error
}

// ClampLimit maps a requested page size onto [1, MaxListLimit], using
// DefaultListLimit for non-positive values.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	default:
		return limit
	}
}
