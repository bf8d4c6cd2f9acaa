// Package service runs the repair workflow against the stores: it loads the
// state a transition needs, applies the rules from package workflow, persists
// the result and fans out the side effects (order status, push events).
package service

import (
	"context"
	"errors"
	"time"

	"garage-repair-api-server/internal/apperr"
	"garage-repair-api-server/internal/evidence"
	"garage-repair-api-server/internal/repository"
	"garage-repair-api-server/internal/socket"
	"garage-repair-api-server/internal/workflow"

	"go.uber.org/zap"
)

// Notifier receives an event after every successful mutation. SendToWorker
// reaches only the accounts linked to one worker.
type Notifier interface {
	Broadcast(ev socket.Event)
	SendToWorker(workerID string, ev socket.Event) int
}

// Recorder counts workflow actions and stored evidence.
type Recorder interface {
	ItemAction(action, outcome string)
	EvidenceStored(n int)
}

type RepairService struct {
	repo     repository.Repository
	evidence evidence.Store
	logger   *zap.Logger

	// Optional collaborators.
	Hub     Notifier
	Metrics Recorder
	Now     func() time.Time
}

func NewRepairService(repo repository.Repository, store evidence.Store, logger *zap.Logger) *RepairService {
	return &RepairService{
		repo:     repo,
		evidence: store,
		logger:   logger,
		Now:      time.Now,
	}
}

func (s *RepairService) now() time.Time {
	return s.Now().UTC()
}

func (s *RepairService) notify(orderID, itemID, action string) {
	if s.Hub == nil {
		return
	}
	s.Hub.Broadcast(socket.Event{
		Type:    socket.EventRepairOrderUpdated,
		OrderID: orderID,
		ItemID:  itemID,
		Action:  action,
		At:      s.now(),
	})
}

func (s *RepairService) notifyWorker(workerID, orderID, itemID, action string) {
	if s.Hub == nil {
		return
	}
	s.Hub.SendToWorker(workerID, socket.Event{
		Type:    socket.EventRepairItemTransferred,
		OrderID: orderID,
		ItemID:  itemID,
		Action:  action,
		At:      s.now(),
	})
}

func (s *RepairService) record(action string, err error) {
	if s.Metrics == nil {
		return
	}
	s.Metrics.ItemAction(action, outcome(err))
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, apperr.ErrValidation):
		return "invalid"
	case errors.Is(err, apperr.ErrForbidden):
		return "forbidden"
	case errors.Is(err, apperr.ErrNotFound):
		return "not_found"
	case errors.Is(err, apperr.ErrConflict):
		return "conflict"
	}
	return "store_error"
}

// loadState reads everything a single-item transition needs.
func (s *RepairService) loadState(ctx context.Context, itemID string) (workflow.ItemState, error) {
	item, err := s.repo.GetItem(ctx, itemID)
	if err != nil {
		return workflow.ItemState{}, err
	}
	children, err := s.repo.CountChildren(ctx, itemID)
	if err != nil {
		return workflow.ItemState{}, err
	}
	assigned, err := s.repo.ListAssignments(ctx, []string{itemID})
	if err != nil {
		return workflow.ItemState{}, err
	}
	transfers, err := s.repo.ListTransfers(ctx, []string{itemID})
	if err != nil {
		return workflow.ItemState{}, err
	}
	return workflow.ItemState{Item: *item, HasChildren: children > 0, Assigned: assigned, Transfers: transfers}, nil
}

// loadTree reads the whole order and arranges it as a forest.
func (s *RepairService) loadTree(ctx context.Context, orderID string) (*workflow.Tree, error) {
	items, err := s.repo.ListItems(ctx, orderID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	assignments, err := s.repo.ListAssignments(ctx, ids)
	if err != nil {
		return nil, err
	}
	transfers, err := s.repo.ListTransfers(ctx, ids)
	if err != nil {
		return nil, err
	}
	images, err := s.repo.ListImages(ctx, ids)
	if err != nil {
		return nil, err
	}
	roster, err := s.repo.ListWorkers(ctx)
	if err != nil {
		return nil, err
	}
	return workflow.BuildTree(items, assignments, transfers, images, roster), nil
}

// syncOrderStatus re-derives the order status from its leaves. A failure is
// logged and the item write that triggered it stays in place.
func (s *RepairService) syncOrderStatus(ctx context.Context, orderID string) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		s.logger.Warn("Order status sync skipped", zap.String("order_id", orderID), zap.Error(err))
		return
	}
	items, err := s.repo.ListItems(ctx, orderID)
	if err != nil {
		s.logger.Warn("Order status sync skipped", zap.String("order_id", orderID), zap.Error(err))
		return
	}
	status := workflow.BuildTree(items, nil, nil, nil, nil).DeriveOrderStatus()
	if status == order.Status {
		return
	}
	if err := s.repo.UpdateOrderStatus(ctx, orderID, status); err != nil {
		s.logger.Error("Failed to update order status",
			zap.String("order_id", orderID),
			zap.String("status", status),
			zap.Error(err),
		)
		return
	}
	s.logger.Info("Order status changed",
		zap.String("order_id", orderID),
		zap.String("from", order.Status),
		zap.String("to", status),
	)
}
