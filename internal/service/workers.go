package service

import (
	"context"
	"strings"

	"garage-repair-api-server/internal/apperr"
	"garage-repair-api-server/internal/models"
	"garage-repair-api-server/internal/permission"

	"github.com/google/uuid"
)

// EligibleWorkers returns the roster the caller may pick from for an item of
// repairType. An empty repairType lists every active worker the caller may assign.
func (s *RepairService) EligibleWorkers(ctx context.Context, p permission.Principal, repairType string) ([]models.RepairWorker, error) {
	if !validRepairType(repairType) {
		return nil, apperr.Validation("unknown repair type %q", repairType)
	}
	roster, err := s.repo.ListWorkers(ctx)
	if err != nil {
		return nil, err
	}
	return permission.EligibleWorkers(p, repairType, roster), nil
}

func (s *RepairService) CreateWorker(ctx context.Context, p permission.Principal, name, workerType string) (*models.RepairWorker, error) {
	if !permission.CanManageRoster(p) {
		return nil, apperr.Forbidden("only an admin can add workers")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation("worker name is required")
	}
	if workerType != models.WorkerTypeRepair && workerType != models.WorkerTypePaint {
		return nil, apperr.Validation("worker type must be %q or %q", models.WorkerTypeRepair, models.WorkerTypePaint)
	}
	w := models.RepairWorker{
		ID:         uuid.New().String(),
		Name:       name,
		Active:     true,
		WorkerType: workerType,
		CreatedAt:  s.now(),
	}
	if err := s.repo.CreateWorker(ctx, &w); err != nil {
		return nil, err
	}
	return &w, nil
}
