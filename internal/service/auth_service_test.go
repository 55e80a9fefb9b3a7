package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/clefbook/clefbook-api/internal/models"
	"github.com/clefbook/clefbook-api/pkg/config"
	appErrors "github.com/clefbook/clefbook-api/pkg/errors"
)

type mockUserRepo struct {
	users     map[string]*models.User
	lastLogin map[string]time.Time
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	if m.lastLogin == nil {
		m.lastLogin = make(map[string]time.Time)
	}
	m.lastLogin[id] = ts
	return nil
}

func newAuthFixture(t *testing.T) (*AuthService, *mockUserRepo) {
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	require.NoError(t, err)
	users := &mockUserRepo{users: map[string]*models.User{
		"u1": {ID: "u1", Email: "admin@example.com", PasswordHash: string(hash), FullName: "Admin", Role: models.RoleAdmin, Active: true},
		"u2": {ID: "u2", Email: "gone@example.com", PasswordHash: string(hash), Role: models.RoleTeacher, Active: false},
	}}
	cfg := config.JWTConfig{Secret: "test-secret", Expiration: time.Hour}
	return NewAuthService(users, cfg, validator.New(), zap.NewNop()), users
}

func TestAuthLoginAndValidate(t *testing.T) {
	svc, users := newAuthFixture(t)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@example.com", Password: "correct-horse"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, int64(3600), resp.ExpiresIn)
	assert.Equal(t, models.RoleAdmin, resp.User.Role)
	assert.Contains(t, users.lastLogin, "u1")

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
}

func TestAuthLoginWrongPassword(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@example.com", Password: "wrong-password"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthLoginUnknownEmail(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "nobody@example.com", Password: "correct-horse"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthLoginInactiveAccount(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "gone@example.com", Password: "correct-horse"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestAuthValidateTokenRejectsGarbage(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.ValidateToken("not.a.token")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestAuthValidateTokenRejectsWrongSecret(t *testing.T) {
	svc, _ := newAuthFixture(t)
	other := NewAuthService(&mockUserRepo{}, config.JWTConfig{Secret: "different", Expiration: time.Hour}, validator.New(), zap.NewNop())

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@example.com", Password: "correct-horse"})
	require.NoError(t, err)

	_, err = other.ValidateToken(resp.AccessToken)
	require.Error(t, err)
}
