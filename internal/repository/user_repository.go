package repository

import (
	"context"

	"github.com/13g7895123/crm-questionnaire-sub001/internal/domain"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	// Create creates a new user
	Create(ctx context.Context, user *domain.User) error
	// GetByID retrieves a user by ID, nil if not found
	GetByID(ctx context.Context, id string) (*domain.User, error)
	// GetByUsername retrieves a user by username, nil if not found
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	// Update updates an existing user
	Update(ctx context.Context, user *domain.User) error
	// Delete deletes a user by ID
	Delete(ctx context.Context, id string) error
}
