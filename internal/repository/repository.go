// Package repository persists repair orders, their item trees, the worker
// ledger and evidence records.
package repository

import (
	"context"

	"garage-repair-api-server/internal/models"
)

type OrderStore interface {
	CreateOrder(ctx context.Context, order *models.RepairOrder) error
	GetOrder(ctx context.Context, id string) (*models.RepairOrder, error)
	ListOrders(ctx context.Context, status string) ([]models.RepairOrder, error)
	UpdateOrderStatus(ctx context.Context, id, status string) error
	UpdatePartsWaiting(ctx context.Context, id string, pw models.PartsWaiting) error
	// DeleteOrder removes the order together with its items, ledger rows and image records.
	DeleteOrder(ctx context.Context, id string) error
}

type ItemStore interface {
	CreateItem(ctx context.Context, item *models.RepairItem) error
	GetItem(ctx context.Context, id string) (*models.RepairItem, error)
	ListItems(ctx context.Context, orderID string) ([]models.RepairItem, error)
	CountChildren(ctx context.Context, itemID string) (int64, error)
	// UpdateItem writes item only if the stored status still equals fromStatus,
	// otherwise it returns apperr.ErrConflict.
	UpdateItem(ctx context.Context, item *models.RepairItem, fromStatus string) error
}

type LedgerStore interface {
	AddAssignment(ctx context.Context, a *models.RepairItemAssignedWorker) error
	UpdateAssignment(ctx context.Context, a *models.RepairItemAssignedWorker) error
	RemoveAssignment(ctx context.Context, itemID, workerID string) error
	ListAssignments(ctx context.Context, itemIDs []string) ([]models.RepairItemAssignedWorker, error)
	AddTransfer(ctx context.Context, t *models.RepairItemTransfer) error
	ListTransfers(ctx context.Context, itemIDs []string) ([]models.RepairItemTransfer, error)
}

type ImageStore interface {
	AddImage(ctx context.Context, img *models.RepairItemImage) error
	ListImages(ctx context.Context, itemIDs []string) ([]models.RepairItemImage, error)
}

type RosterStore interface {
	CreateWorker(ctx context.Context, w *models.RepairWorker) error
	GetWorker(ctx context.Context, id string) (*models.RepairWorker, error)
	ListWorkers(ctx context.Context) ([]models.RepairWorker, error)
}

type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	CountUsers(ctx context.Context) (int64, error)
}

// Repository is the whole backing store of the service.
type Repository interface {
	OrderStore
	ItemStore
	LedgerStore
	ImageStore
	RosterStore
	UserStore
}
