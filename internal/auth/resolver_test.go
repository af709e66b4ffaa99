package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowdeck/chat-core/internal/domain"
	"github.com/flowdeck/chat-core/internal/repository"
	"github.com/flowdeck/chat-core/pkg/jwt"
)

type fakeUserStore struct {
	repository.Store
	users map[string]*domain.User
}

func (f *fakeUserStore) FindUser(ctx context.Context, id string) (*domain.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return u, nil
}

func newResolverFixture(t *testing.T) (*Resolver, *jwt.Manager, *fakeUserStore) {
	t.Helper()
	tokens := jwt.NewManager("test-secret", time.Hour, "flowdeck")
	store := &fakeUserStore{users: make(map[string]*domain.User)}
	return NewResolver(tokens, store), tokens, store
}

func TestResolveValidCredential(t *testing.T) {
	resolver, tokens, store := newResolverFixture(t)
	store.users["alice"] = &domain.User{
		ID: "alice", DisplayName: "Alice", Role: "engineer", Department: "platform", IsActive: true,
	}

	token, err := tokens.GenerateToken("alice", "Alice", "engineer", "platform")
	require.NoError(t, err)

	id, err := resolver.Resolve(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "alice", id.UserID)
	assert.Equal(t, "Alice", id.DisplayName)
	assert.Equal(t, "engineer", id.Role)
	assert.Equal(t, "platform", id.Department)
}

func TestResolveEmptyCredential(t *testing.T) {
	resolver, _, _ := newResolverFixture(t)

	_, err := resolver.Resolve(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestResolveBadSignature(t *testing.T) {
	resolver, _, store := newResolverFixture(t)
	store.users["alice"] = &domain.User{ID: "alice", IsActive: true}

	forged := jwt.NewManager("wrong-secret", time.Hour, "flowdeck")
	token, err := forged.GenerateToken("alice", "Alice", "engineer", "platform")
	require.NoError(t, err)

	_, err = resolver.Resolve(context.Background(), token)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestResolveUnknownUser(t *testing.T) {
	resolver, tokens, _ := newResolverFixture(t)

	token, err := tokens.GenerateToken("ghost", "Ghost", "engineer", "platform")
	require.NoError(t, err)

	_, err = resolver.Resolve(context.Background(), token)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestResolveInactiveUser(t *testing.T) {
	resolver, tokens, store := newResolverFixture(t)
	store.users["alice"] = &domain.User{ID: "alice", DisplayName: "Alice", IsActive: false}

	token, err := tokens.GenerateToken("alice", "Alice", "engineer", "platform")
	require.NoError(t, err)

	_, err = resolver.Resolve(context.Background(), token)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestResolveStorePrevailsOverTokenClaims(t *testing.T) {
	resolver, tokens, store := newResolverFixture(t)
	// The user renamed themselves after the token was issued.
	store.users["alice"] = &domain.User{
		ID: "alice", DisplayName: "Alice Cooper", Role: "manager", IsActive: true,
	}

	token, err := tokens.GenerateToken("alice", "Alice", "engineer", "platform")
	require.NoError(t, err)

	id, err := resolver.Resolve(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "Alice Cooper", id.DisplayName)
	assert.Equal(t, "manager", id.Role)
}
