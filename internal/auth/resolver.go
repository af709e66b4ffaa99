package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/flowdeck/chat-core/internal/domain"
	"github.com/flowdeck/chat-core/internal/repository"
	"github.com/flowdeck/chat-core/pkg/jwt"
	"github.com/flowdeck/chat-core/pkg/log"
)

// Resolver turns an opaque connection credential into a verified identity.
// It runs once per connection, before any room operation; failure rejects
// the connection with no session created.
type Resolver struct {
	tokens *jwt.Manager
	store  repository.Store
}

// NewResolver creates a Resolver backed by the platform's token secret and
// user store.
func NewResolver(tokens *jwt.Manager, store repository.Store) *Resolver {
	return &Resolver{tokens: tokens, store: store}
}

// Resolve validates the credential and confirms the user against the user
// store. The store is authoritative for the display name and active flag;
// the token supplies role and department.
func (r *Resolver) Resolve(ctx context.Context, credential string) (*domain.Identity, error) {
	if credential == "" {
		return nil, fmt.Errorf("missing credential: %w", domain.ErrUnauthenticated)
	}

	claims, err := r.tokens.ValidateToken(credential)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, domain.ErrUnauthenticated)
	}

	user, err := r.store.FindUser(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("unknown user %s: %w", claims.UserID, domain.ErrUnauthenticated)
		}
		log.Ctx(ctx).Error().Err(err).Str(log.FieldUserID, claims.UserID).Msg("user lookup failed")
		return nil, fmt.Errorf("user lookup: %w", domain.ErrUnauthenticated)
	}
	if !user.IsActive {
		return nil, fmt.Errorf("user %s inactive: %w", claims.UserID, domain.ErrUnauthenticated)
	}

	return &domain.Identity{
		UserID:      user.ID,
		DisplayName: user.DisplayName,
		Role:        user.Role,
		Department:  user.Department,
	}, nil
}
