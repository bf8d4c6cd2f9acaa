// server/internal/database/seeder.go
package database

import (
	"context"
	"errors"

	"garage-repair-api-server/config"
	"garage-repair-api-server/internal/auth"
	"garage-repair-api-server/internal/models"
	"garage-repair-api-server/internal/permission"
	"garage-repair-api-server/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SeedAdmin tạo tài khoản admin đầu tiên khi chưa có user nào.
func SeedAdmin(ctx context.Context, users repository.UserStore, cfg config.SeedConfig, logger *zap.Logger) error {
	count, err := users.CountUsers(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		logger.Info("Users already exist. Seeding skipped.", zap.Int64("count", count))
		return nil
	}

	if cfg.AdminPassword == "" {
		return errors.New("seed.adminPassword is required to create the first admin")
	}

	logger.Info("No users found. Seeding admin...", zap.String("username", cfg.AdminUsername))
	hashedPassword, err := auth.HashPassword(cfg.AdminPassword)
	if err != nil {
		return err
	}

	admin := &models.User{
		ID:          uuid.New().String(),
		Username:    cfg.AdminUsername,
		DisplayName: "Administrator",
		Password:    hashedPassword,
		Role:        string(permission.RoleAdmin),
		Active:      true,
	}
	if err := users.CreateUser(ctx, admin); err != nil {
		return err
	}

	logger.Info("Admin seeded successfully.", zap.String("user_id", admin.ID))
	return nil
}
