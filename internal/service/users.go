package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"garage-repair-api-server/internal/apperr"
	"garage-repair-api-server/internal/auth"
	"garage-repair-api-server/internal/models"
	"garage-repair-api-server/internal/permission"
	"garage-repair-api-server/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UserService handles sign-in and account creation.
type UserService struct {
	repo   repository.Repository
	tokens *auth.TokenManager
	logger *zap.Logger
}

func NewUserService(repo repository.Repository, tokens *auth.TokenManager, logger *zap.Logger) *UserService {
	return &UserService{repo: repo, tokens: tokens, logger: logger}
}

func principalOf(u *models.User) permission.Principal {
	return permission.Principal{
		UserID:      u.ID,
		Role:        permission.Role(u.Role),
		WorkerID:    u.WorkerID,
		DisplayName: u.DisplayName,
	}
}

// Login checks the credentials and returns a signed token.
func (s *UserService) Login(ctx context.Context, username, password string) (string, *models.User, error) {
	bad := fmt.Errorf("%w: invalid username or password", apperr.ErrUnauthorized)

	user, err := s.repo.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return "", nil, bad
		}
		return "", nil, err
	}
	if !user.Active || !auth.CheckPasswordHash(password, user.Password) {
		return "", nil, bad
	}
	token, err := s.tokens.Generate(principalOf(user))
	if err != nil {
		return "", nil, err
	}
	s.logger.Info("User logged in", zap.String("user_id", user.ID), zap.String("role", user.Role))
	return token, user, nil
}

type CreateUserInput struct {
	Username    string
	Password    string
	DisplayName string
	Role        string
	WorkerID    string
}

// CreateUser adds an account. Worker and paint roles must be linked to a roster entry
// of the matching type so that self-assignment works.
func (s *UserService) CreateUser(ctx context.Context, p permission.Principal, in CreateUserInput) (*models.User, error) {
	if !permission.CanManageRoster(p) {
		return nil, apperr.Forbidden("only an admin can create users")
	}
	role, ok := permission.ParseRole(in.Role)
	if !ok {
		return nil, apperr.Validation("unknown role %q", in.Role)
	}
	in.Username = strings.TrimSpace(in.Username)
	if in.Username == "" || len(in.Password) < 6 {
		return nil, apperr.Validation("username and a password of at least 6 characters are required")
	}

	if role == permission.RoleWorker || role == permission.RolePaint {
		if in.WorkerID == "" {
			return nil, apperr.Validation("role %s needs a worker_id", role)
		}
		w, err := s.repo.GetWorker(ctx, in.WorkerID)
		if err != nil {
			return nil, err
		}
		want := models.WorkerTypeRepair
		if role == permission.RolePaint {
			want = models.WorkerTypePaint
		}
		if w.WorkerType != want {
			return nil, apperr.Validation("worker %s is a %s worker, role %s needs a %s worker", w.Name, w.WorkerType, role, want)
		}
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	u := models.User{
		ID:          uuid.New().String(),
		Username:    in.Username,
		DisplayName: strings.TrimSpace(in.DisplayName),
		Password:    hash,
		Role:        string(role),
		WorkerID:    in.WorkerID,
		Active:      true,
	}
	if u.DisplayName == "" {
		u.DisplayName = u.Username
	}
	if err := s.repo.CreateUser(ctx, &u); err != nil {
		return nil, err
	}
	return &u, nil
}
