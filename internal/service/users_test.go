package service

import (
	"context"
	"testing"
	"time"

	"garage-repair-api-server/internal/apperr"
	"garage-repair-api-server/internal/auth"
	"garage-repair-api-server/internal/models"
	"garage-repair-api-server/internal/permission"
	"garage-repair-api-server/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newUserService(t *testing.T) (*UserService, *repository.Memory, *auth.TokenManager) {
	t.Helper()
	repo := repository.NewMemory()
	for i := range roster {
		require.NoError(t, repo.CreateWorker(context.Background(), &roster[i]))
	}
	tm, err := auth.NewTokenManager("test-secret", time.Hour)
	require.NoError(t, err)
	return NewUserService(repo, tm, zap.NewNop()), repo, tm
}

func TestCreateUserAndLogin(t *testing.T) {
	svc, _, tm := newUserService(t)
	ctx := context.Background()

	u, err := svc.CreateUser(ctx, admin, CreateUserInput{
		Username: "minh", Password: "secret1", DisplayName: "Minh", Role: "worker", WorkerID: "W1",
	})
	require.NoError(t, err)
	assert.NotEqual(t, "secret1", u.Password)

	token, user, err := svc.Login(ctx, "minh", "secret1")
	require.NoError(t, err)
	assert.Equal(t, u.ID, user.ID)

	claims, err := tm.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, permission.Principal{UserID: u.ID, Role: permission.RoleWorker, WorkerID: "W1", DisplayName: "Minh"}, claims.Principal())

	_, _, err = svc.Login(ctx, "minh", "wrong")
	isKind(t, err, apperr.ErrUnauthorized)
	_, _, err = svc.Login(ctx, "nobody", "secret1")
	isKind(t, err, apperr.ErrUnauthorized)

	_, err = svc.CreateUser(ctx, admin, CreateUserInput{Username: "minh", Password: "secret2", Role: "sales"})
	isKind(t, err, apperr.ErrConflict)
}

func TestCreateUser_Validation(t *testing.T) {
	svc, _, _ := newUserService(t)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, lead, CreateUserInput{Username: "x", Password: "secret1", Role: "sales"})
	isKind(t, err, apperr.ErrForbidden)
	_, err = svc.CreateUser(ctx, admin, CreateUserInput{Username: "x", Password: "secret1", Role: "owner"})
	isKind(t, err, apperr.ErrValidation)
	_, err = svc.CreateUser(ctx, admin, CreateUserInput{Username: "x", Password: "123", Role: "sales"})
	isKind(t, err, apperr.ErrValidation)
	_, err = svc.CreateUser(ctx, admin, CreateUserInput{Username: "x", Password: "secret1", Role: "paint"})
	isKind(t, err, apperr.ErrValidation)
	_, err = svc.CreateUser(ctx, admin, CreateUserInput{Username: "x", Password: "secret1", Role: "paint", WorkerID: "W1"})
	isKind(t, err, apperr.ErrValidation)
	_, err = svc.CreateUser(ctx, admin, CreateUserInput{Username: "x", Password: "secret1", Role: "worker", WorkerID: "W404"})
	isKind(t, err, apperr.ErrNotFound)

	u, err := svc.CreateUser(ctx, admin, CreateUserInput{Username: " hoa ", Password: "secret1", Role: "paint", WorkerID: "P1"})
	require.NoError(t, err)
	assert.Equal(t, "hoa", u.Username)
	assert.Equal(t, "hoa", u.DisplayName)
}

func TestLogin_InactiveUser(t *testing.T) {
	svc, repo, _ := newUserService(t)
	ctx := context.Background()
	hash, err := auth.HashPassword("secret1")
	require.NoError(t, err)
	require.NoError(t, repo.CreateUser(ctx, &models.User{ID: "u9", Username: "old", Password: hash, Role: "sales"}))

	_, _, err = svc.Login(ctx, "old", "secret1")
	isKind(t, err, apperr.ErrUnauthorized)
}
