package service

import (
	"context"
	"strings"
	"time"

	"garage-repair-api-server/internal/apperr"
	"garage-repair-api-server/internal/models"
	"garage-repair-api-server/internal/permission"
	"garage-repair-api-server/internal/workflow"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ItemInput is one line of the intake form. Children may only be one level deep.
type ItemInput struct {
	Name       string      `json:"name"`
	RepairType string      `json:"repair_type"`
	Children   []ItemInput `json:"children"`
}

type CreateOrderInput struct {
	LicensePlate string
	CustomerName string
	VehicleName  string
	ReceivedAt   *time.Time
	ReturnAt     *time.Time
	Items        []ItemInput
}

type AddItemInput struct {
	Name       string
	RepairType string
	ParentID   string
}

// OrderSummary is a list row: the order and its leaf progress.
type OrderSummary struct {
	models.RepairOrder
	Progress workflow.Progress `json:"progress"`
}

// OrderDetail is the full read model of one order.
type OrderDetail struct {
	Order      models.RepairOrder    `json:"order"`
	Workers    []models.RepairWorker `json:"workers"`
	ServerTime time.Time             `json:"serverTime"`
	Items      []*workflow.Node      `json:"items"`
	Progress   workflow.Progress     `json:"progress"`
}

// PartsInput is the waiting-for-parts form.
type PartsInput struct {
	WaitingForParts      bool
	PartsOrderStartTime  *time.Time
	PartsExpectedEndTime *time.Time
	PartsNote            string
}

func newOrderCode() string {
	return "RO-" + strings.ToUpper(uuid.New().String()[:8])
}

func validRepairType(t string) bool {
	return t == "" || t == models.RepairTypeMechanical || t == models.RepairTypePaint
}

func (in ItemInput) validate(depth int) error {
	if strings.TrimSpace(in.Name) == "" {
		return apperr.Validation("item name is required")
	}
	if !validRepairType(in.RepairType) {
		return apperr.Validation("unknown repair type %q", in.RepairType)
	}
	if depth > 0 && len(in.Children) > 0 {
		return apperr.Validation("item %q: sub-items cannot have sub-items", in.Name)
	}
	for _, c := range in.Children {
		if err := c.validate(depth + 1); err != nil {
			return err
		}
	}
	return nil
}

func (s *RepairService) newItem(orderID, parentID string, in ItemInput, index int) models.RepairItem {
	return models.RepairItem{
		ID:         uuid.New().String(),
		OrderID:    orderID,
		Name:       strings.TrimSpace(in.Name),
		Status:     models.StatusPending,
		OrderIndex: index,
		ParentID:   parentID,
		RepairType: in.RepairType,
		CreatedAt:  s.now(),
	}
}

// CreateOrder records a vehicle intake together with its item tree.
func (s *RepairService) CreateOrder(ctx context.Context, p permission.Principal, in CreateOrderInput) (*models.RepairOrder, error) {
	if !permission.CanCreateOrder(p) {
		return nil, apperr.Forbidden("role %s cannot create repair orders", p.Role)
	}
	if strings.TrimSpace(in.LicensePlate) == "" {
		return nil, apperr.Validation("license plate is required")
	}
	for _, it := range in.Items {
		if err := it.validate(0); err != nil {
			return nil, err
		}
	}

	now := s.now()
	order := models.RepairOrder{
		ID:           uuid.New().String(),
		Code:         newOrderCode(),
		LicensePlate: strings.ToUpper(strings.TrimSpace(in.LicensePlate)),
		CustomerName: strings.TrimSpace(in.CustomerName),
		VehicleName:  strings.TrimSpace(in.VehicleName),
		ReceivedAt:   now,
		ReturnAt:     in.ReturnAt,
		Status:       models.StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if in.ReceivedAt != nil {
		order.ReceivedAt = in.ReceivedAt.UTC()
	}
	if err := s.repo.CreateOrder(ctx, &order); err != nil {
		return nil, err
	}

	for i, it := range in.Items {
		parent := s.newItem(order.ID, "", it, i)
		if err := s.repo.CreateItem(ctx, &parent); err != nil {
			return nil, err
		}
		for j, c := range it.Children {
			// Sub-items inherit the category of their group unless set.
			if c.RepairType == "" {
				c.RepairType = it.RepairType
			}
			child := s.newItem(order.ID, parent.ID, c, j)
			if err := s.repo.CreateItem(ctx, &child); err != nil {
				return nil, err
			}
		}
	}

	s.logger.Info("Repair order created",
		zap.String("order_id", order.ID),
		zap.String("code", order.Code),
		zap.Int("items", len(in.Items)),
	)
	s.notify(order.ID, "", "create")
	return &order, nil
}

// AddItem appends an item, or a sub-item when ParentID is set, to an order.
func (s *RepairService) AddItem(ctx context.Context, p permission.Principal, orderID string, in AddItemInput) (*models.RepairItem, error) {
	if !permission.CanCreateOrder(p) {
		return nil, apperr.Forbidden("role %s cannot add repair items", p.Role)
	}
	if err := (ItemInput{Name: in.Name, RepairType: in.RepairType}).validate(0); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetOrder(ctx, orderID); err != nil {
		return nil, err
	}
	items, err := s.repo.ListItems(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if in.ParentID != "" {
		var parent *models.RepairItem
		for i := range items {
			if items[i].ID == in.ParentID {
				parent = &items[i]
				break
			}
		}
		if parent == nil {
			return nil, apperr.NotFound("parent item %s in order %s", in.ParentID, orderID)
		}
		if parent.ParentID != "" {
			return nil, apperr.Validation("sub-items cannot have sub-items")
		}
		if parent.Status != models.StatusPending {
			return nil, apperr.Validation("item %q is already %s and cannot be split", parent.Name, parent.Status)
		}
		if in.RepairType == "" {
			in.RepairType = parent.RepairType
		}
	}

	index := 0
	for _, it := range items {
		if it.ParentID == in.ParentID && it.OrderIndex >= index {
			index = it.OrderIndex + 1
		}
	}
	item := s.newItem(orderID, in.ParentID, ItemInput{Name: in.Name, RepairType: in.RepairType}, index)
	if err := s.repo.CreateItem(ctx, &item); err != nil {
		return nil, err
	}
	s.syncOrderStatus(ctx, orderID)
	s.notify(orderID, item.ID, "add_item")
	return &item, nil
}

func (s *RepairService) ListOrders(ctx context.Context, status string) ([]OrderSummary, error) {
	if status != "" && status != models.StatusPending && status != models.StatusInProgress && status != models.StatusCompleted {
		return nil, apperr.Validation("unknown status %q", status)
	}
	orders, err := s.repo.ListOrders(ctx, status)
	if err != nil {
		return nil, err
	}
	out := make([]OrderSummary, 0, len(orders))
	for _, o := range orders {
		items, err := s.repo.ListItems(ctx, o.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, OrderSummary{
			RepairOrder: o,
			Progress:    workflow.BuildTree(items, nil, nil, nil, nil).Progress(),
		})
	}
	return out, nil
}

// Detail reads an order with its item forest, recomputing progress and the
// caller's capability flags. It never writes.
func (s *RepairService) Detail(ctx context.Context, p permission.Principal, orderID string) (*OrderDetail, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	tree, err := s.loadTree(ctx, orderID)
	if err != nil {
		return nil, err
	}
	tree.Annotate(p)

	roster, err := s.repo.ListWorkers(ctx)
	if err != nil {
		return nil, err
	}
	workers := []models.RepairWorker{}
	for _, w := range roster {
		if w.Active {
			workers = append(workers, w)
		}
	}

	return &OrderDetail{
		Order:      *order,
		Workers:    workers,
		ServerTime: s.now(),
		Items:      tree.Roots(),
		Progress:   tree.Progress(),
	}, nil
}

// SetPartsWaiting toggles the advisory waiting-for-parts flag.
func (s *RepairService) SetPartsWaiting(ctx context.Context, p permission.Principal, orderID string, in PartsInput) (*models.RepairOrder, error) {
	pw, err := workflow.PartsWaiting(p, in.WaitingForParts, in.PartsOrderStartTime, in.PartsExpectedEndTime, in.PartsNote)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdatePartsWaiting(ctx, orderID, pw); err != nil {
		return nil, err
	}
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	s.notify(orderID, "", "parts_waiting")
	return order, nil
}

// DeleteOrder removes an order and everything it owns.
func (s *RepairService) DeleteOrder(ctx context.Context, p permission.Principal, orderID string) error {
	if !permission.CanDeleteOrder(p) {
		return apperr.Forbidden("only an admin can delete repair orders")
	}
	if err := s.repo.DeleteOrder(ctx, orderID); err != nil {
		return err
	}
	s.logger.Info("Repair order deleted", zap.String("order_id", orderID), zap.String("by", p.UserID))
	s.notify(orderID, "", "delete")
	return nil
}
