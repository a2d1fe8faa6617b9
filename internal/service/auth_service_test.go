package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/sakchai-dev/school-grading-api/internal/models"
)

type mockUserRepo struct {
	users map[string]*models.User
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, user := range m.users {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	user, ok := m.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func newAuthFixture(t *testing.T) (*mockUserRepo, *AuthService) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	require.NoError(t, err)
	repo := &mockUserRepo{users: map[string]*models.User{
		"user-1": {
			ID:           "user-1",
			Email:        "kru.somsak@school.ac.th",
			PasswordHash: string(hash),
			FullName:     "Somsak P",
			Role:         models.RoleTeacher,
			Active:       true,
		},
	}}
	svc := NewAuthService(repo, nil, zap.NewNop(), AuthConfig{
		AccessTokenSecret: "jwt-test-secret",
		AccessTokenExpiry: time.Hour,
		Issuer:            "school-grading-api",
	})
	return repo, svc
}

func TestLoginIssuesToken(t *testing.T) {
	_, svc := newAuthFixture(t)

	resp, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "kru.somsak@school.ac.th",
		Password: "secret123",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, models.RoleTeacher, resp.User.Role)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, models.RoleTeacher, claims.Role)
}

func TestLoginWrongPassword(t *testing.T) {
	_, svc := newAuthFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "kru.somsak@school.ac.th",
		Password: "nope",
	})
	assert.Error(t, err)
}

func TestLoginUnknownEmail(t *testing.T) {
	_, svc := newAuthFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "nobody@school.ac.th",
		Password: "secret123",
	})
	assert.Error(t, err)
}

func TestLoginInactiveAccount(t *testing.T) {
	repo, svc := newAuthFixture(t)
	repo.users["user-1"].Active = false

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "kru.somsak@school.ac.th",
		Password: "secret123",
	})
	assert.Error(t, err)
}

func TestValidateTokenRejectsForeignSignature(t *testing.T) {
	_, svc := newAuthFixture(t)
	other := NewAuthService(&mockUserRepo{}, nil, zap.NewNop(), AuthConfig{
		AccessTokenSecret: "another-secret",
		AccessTokenExpiry: time.Hour,
	})

	foreign, _, err := other.generateAccessToken(&models.User{ID: "user-1", Role: models.RoleTeacher})
	require.NoError(t, err)

	_, err = svc.ValidateToken(foreign)
	assert.Error(t, err)
}

func TestValidateTokenGarbage(t *testing.T) {
	_, svc := newAuthFixture(t)

	_, err := svc.ValidateToken("not-a-token")
	assert.Error(t, err)
}
