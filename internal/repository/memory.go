package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"garage-repair-api-server/internal/apperr"
	"garage-repair-api-server/internal/models"
)

// Memory is a Repository kept in process memory. It follows the same
// conflict and not-found rules as MongoRepository.
type Memory struct {
	mu          sync.RWMutex
	orders      map[string]models.RepairOrder
	items       map[string]models.RepairItem
	assignments []models.RepairItemAssignedWorker
	transfers   []models.RepairItemTransfer
	images      []models.RepairItemImage
	workers     map[string]models.RepairWorker
	users       map[string]models.User
}

func NewMemory() *Memory {
	return &Memory{
		orders:  map[string]models.RepairOrder{},
		items:   map[string]models.RepairItem{},
		workers: map[string]models.RepairWorker{},
		users:   map[string]models.User{},
	}
}

func idSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func (m *Memory) CreateOrder(_ context.Context, order *models.RepairOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[order.ID]; ok {
		return apperr.Conflict("repair order %s already exists", order.ID)
	}
	m.orders[order.ID] = *order
	return nil
}

func (m *Memory) GetOrder(_ context.Context, id string) (*models.RepairOrder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, apperr.NotFound("repair order %s", id)
	}
	return &o, nil
}

func (m *Memory) ListOrders(_ context.Context, status string) ([]models.RepairOrder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []models.RepairOrder{}
	for _, o := range m.orders {
		if status == "" || o.Status == status {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ReceivedAt.Equal(out[j].ReceivedAt) {
			return out[i].ReceivedAt.After(out[j].ReceivedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) UpdateOrderStatus(_ context.Context, id, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return apperr.NotFound("repair order %s", id)
	}
	o.Status = status
	o.UpdatedAt = time.Now()
	m.orders[id] = o
	return nil
}

func (m *Memory) UpdatePartsWaiting(_ context.Context, id string, pw models.PartsWaiting) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return apperr.NotFound("repair order %s", id)
	}
	o.WaitingForParts = pw.WaitingForParts
	o.PartsOrderStartTime = pw.PartsOrderStartTime
	o.PartsExpectedEndTime = pw.PartsExpectedEndTime
	o.PartsNote = pw.PartsNote
	o.UpdatedAt = time.Now()
	m.orders[id] = o
	return nil
}

func (m *Memory) DeleteOrder(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[id]; !ok {
		return apperr.NotFound("repair order %s", id)
	}
	gone := map[string]bool{}
	for itemID, it := range m.items {
		if it.OrderID == id {
			gone[itemID] = true
			delete(m.items, itemID)
		}
	}
	m.assignments = filter(m.assignments, func(a models.RepairItemAssignedWorker) bool { return !gone[a.ItemID] })
	m.transfers = filter(m.transfers, func(t models.RepairItemTransfer) bool { return !gone[t.ItemID] })
	m.images = filter(m.images, func(img models.RepairItemImage) bool { return !gone[img.ItemID] })
	delete(m.orders, id)
	return nil
}

func filter[T any](in []T, keep func(T) bool) []T {
	out := in[:0]
	for _, v := range in {
		if keep(v) {
			out = append(out, v)
		}
	}
	return out
}

func (m *Memory) CreateItem(_ context.Context, item *models.RepairItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[item.ID]; ok {
		return apperr.Conflict("repair item %s already exists", item.ID)
	}
	m.items[item.ID] = *item
	return nil
}

func (m *Memory) GetItem(_ context.Context, id string) (*models.RepairItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	it, ok := m.items[id]
	if !ok {
		return nil, apperr.NotFound("repair item %s", id)
	}
	return &it, nil
}

func (m *Memory) ListItems(_ context.Context, orderID string) ([]models.RepairItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []models.RepairItem{}
	for _, it := range m.items {
		if it.OrderID == orderID {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OrderIndex != out[j].OrderIndex {
			return out[i].OrderIndex < out[j].OrderIndex
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) CountChildren(_ context.Context, itemID string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var n int64
	for _, it := range m.items {
		if it.ParentID == itemID {
			n++
		}
	}
	return n, nil
}

func (m *Memory) UpdateItem(_ context.Context, item *models.RepairItem, fromStatus string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.items[item.ID]
	if !ok {
		return apperr.NotFound("repair item %s", item.ID)
	}
	if cur.Status != fromStatus {
		return apperr.Conflict("item %s is no longer %s", item.ID, fromStatus)
	}
	m.items[item.ID] = *item
	return nil
}

func (m *Memory) AddAssignment(_ context.Context, a *models.RepairItemAssignedWorker) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cur := range m.assignments {
		if cur.ItemID == a.ItemID && cur.WorkerID == a.WorkerID {
			return apperr.Conflict("worker %s is already assigned to item %s", a.WorkerID, a.ItemID)
		}
	}
	m.assignments = append(m.assignments, *a)
	return nil
}

func (m *Memory) UpdateAssignment(_ context.Context, a *models.RepairItemAssignedWorker) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, cur := range m.assignments {
		if cur.ItemID == a.ItemID && cur.WorkerID == a.WorkerID {
			m.assignments[i] = *a
			return nil
		}
	}
	return apperr.NotFound("assignment of %s on item %s", a.WorkerID, a.ItemID)
}

func (m *Memory) RemoveAssignment(_ context.Context, itemID, workerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, cur := range m.assignments {
		if cur.ItemID == itemID && cur.WorkerID == workerID {
			m.assignments = append(m.assignments[:i], m.assignments[i+1:]...)
			return nil
		}
	}
	return apperr.NotFound("assignment of %s on item %s", workerID, itemID)
}

func (m *Memory) ListAssignments(_ context.Context, itemIDs []string) ([]models.RepairItemAssignedWorker, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	want := idSet(itemIDs)
	out := []models.RepairItemAssignedWorker{}
	for _, a := range m.assignments {
		if want[a.ItemID] {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *Memory) AddTransfer(_ context.Context, t *models.RepairItemTransfer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transfers = append(m.transfers, *t)
	return nil
}

func (m *Memory) ListTransfers(_ context.Context, itemIDs []string) ([]models.RepairItemTransfer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	want := idSet(itemIDs)
	out := []models.RepairItemTransfer{}
	for _, t := range m.transfers {
		if want[t.ItemID] {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *Memory) AddImage(_ context.Context, img *models.RepairItemImage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.images = append(m.images, *img)
	return nil
}

func (m *Memory) ListImages(_ context.Context, itemIDs []string) ([]models.RepairItemImage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	want := idSet(itemIDs)
	out := []models.RepairItemImage{}
	for _, img := range m.images {
		if want[img.ItemID] {
			out = append(out, img)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CapturedAt.Before(out[j].CapturedAt) })
	return out, nil
}

func (m *Memory) CreateWorker(_ context.Context, w *models.RepairWorker) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.workers[w.ID]; ok {
		return apperr.Conflict("worker %s already exists", w.ID)
	}
	m.workers[w.ID] = *w
	return nil
}

func (m *Memory) GetWorker(_ context.Context, id string) (*models.RepairWorker, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.workers[id]
	if !ok {
		return nil, apperr.NotFound("worker %s", id)
	}
	return &w, nil
}

func (m *Memory) ListWorkers(_ context.Context) ([]models.RepairWorker, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.RepairWorker, 0, len(m.workers))
	for _, w := range m.workers {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) CreateUser(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.Username]; ok {
		return apperr.Conflict("username %s is taken", u.Username)
	}
	m.users[u.Username] = *u
	return nil
}

func (m *Memory) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[username]
	if !ok {
		return nil, apperr.NotFound("user %s", username)
	}
	return &u, nil
}

func (m *Memory) CountUsers(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.users)), nil
}

var _ Repository = (*Memory)(nil)
