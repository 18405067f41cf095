package httpapi

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockflow/backend/internal/domain"
)

type userStoreStub struct {
	mu      sync.Mutex
	users   map[string]domain.UserAccount
	updates int
}

func (s *userStoreStub) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.users == nil {
		s.users = make(map[string]domain.UserAccount)
	}
	s.users[user.Username] = user
	return nil
}

func (s *userStoreStub) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.UserAccount, 0, len(s.users))
	for _, user := range s.users {
		out = append(out, user)
	}
	return out, nil
}

func (s *userStoreStub) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := s.users[username]
	user.Password = password
	s.users[username] = user
	s.updates++
	return nil
}

func legacyAdminStore() *userStoreStub {
	return &userStoreStub{
		users: map[string]domain.UserAccount{
			"admin": {
				Username:  "admin",
				Password:  "admin123",
				Role:      domain.RoleAdmin,
				Active:    true,
				CreatedAt: time.Now().UTC(),
			},
		},
	}
}

func TestAuthManagerUpgradesLegacyPlainPassword(t *testing.T) {
	store := legacyAdminStore()

	manager := NewAuthManager("test-secret", time.Hour, store)
	_, err := manager.Login(context.Background(), domain.LoginRequest{Username: "admin", Password: "admin123"})
	require.NoError(t, err)

	users, err := store.ListUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.NotEqual(t, "admin123", users[0].Password)
	assert.True(t, isPasswordHash(users[0].Password))
	assert.GreaterOrEqual(t, store.updates, 1)
}

func TestLoginTokenRoundTrip(t *testing.T) {
	manager := NewAuthManager("test-secret", time.Hour, legacyAdminStore())

	resp, err := manager.Login(context.Background(), domain.LoginRequest{Username: " ADMIN ", Password: "admin123"})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, resp.Role)

	actor, err := manager.ParseToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, domain.Actor{Username: "admin", Role: domain.RoleAdmin}, actor)

	other := NewAuthManager("another-secret", time.Hour, nil)
	_, err = other.ParseToken(resp.AccessToken)
	assert.ErrorIs(t, err, errInvalidToken)
}

func TestLoginRejectsWrongPasswordAndInactive(t *testing.T) {
	store := legacyAdminStore()
	store.users["ghost"] = domain.UserAccount{
		Username: "ghost",
		Password: "ghost123",
		Role:     domain.RoleCashier,
		Active:   false,
	}
	manager := NewAuthManager("test-secret", time.Hour, store)

	_, err := manager.Login(context.Background(), domain.LoginRequest{Username: "admin", Password: "nope"})
	assert.ErrorIs(t, err, errInvalidCredentials)

	_, err = manager.Login(context.Background(), domain.LoginRequest{Username: "nobody", Password: "admin123"})
	assert.ErrorIs(t, err, errInvalidCredentials)

	_, err = manager.Login(context.Background(), domain.LoginRequest{Username: "ghost", Password: "ghost123"})
	assert.ErrorIs(t, err, errInactiveAccount)
}

func TestCreateCashierStoresPasswordHash(t *testing.T) {
	store := legacyAdminStore()
	manager := NewAuthManager("test-secret", time.Hour, store)

	cashier, err := manager.CreateCashier(context.Background(), domain.CashierCreateRequest{
		Username: "Counter2",
		Password: "pass1234",
	})
	require.NoError(t, err)
	assert.Equal(t, "counter2", cashier.Username)
	assert.Equal(t, domain.RoleCashier, cashier.Role)

	saved, ok := store.users["counter2"]
	require.True(t, ok, "cashier should be persisted")
	assert.NotEqual(t, "pass1234", saved.Password)
	assert.True(t, isPasswordHash(saved.Password))

	_, err = manager.Login(context.Background(), domain.LoginRequest{Username: "counter2", Password: "pass1234"})
	require.NoError(t, err)

	cashiers := manager.ListCashiers(context.Background())
	require.Len(t, cashiers, 1)
	assert.Equal(t, "counter2", cashiers[0].Username)
}

func TestCreateCashierValidation(t *testing.T) {
	manager := NewAuthManager("test-secret", time.Hour, legacyAdminStore())
	ctx := context.Background()

	_, err := manager.CreateCashier(ctx, domain.CashierCreateRequest{Username: "abc", Password: "pass1234"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = manager.CreateCashier(ctx, domain.CashierCreateRequest{Username: "two words", Password: "pass1234"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = manager.CreateCashier(ctx, domain.CashierCreateRequest{Username: "counter", Password: "123"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = manager.CreateCashier(ctx, domain.CashierCreateRequest{Username: "admin", Password: "pass1234"})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestEnsureAdminOnlyOnEmptyStore(t *testing.T) {
	ctx := context.Background()

	empty := &userStoreStub{}
	manager := NewAuthManager("test-secret", time.Hour, empty)
	_, err := manager.EnsureAdmin(ctx, "owner", "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	created, err := manager.EnsureAdmin(ctx, "owner", "owner-pass")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, domain.RoleAdmin, empty.users["owner"].Role)

	created, err = manager.EnsureAdmin(ctx, "owner2", "owner-pass")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Len(t, empty.users, 1)
}
