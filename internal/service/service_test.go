package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"garage-repair-api-server/internal/apperr"
	"garage-repair-api-server/internal/evidence"
	"garage-repair-api-server/internal/models"
	"garage-repair-api-server/internal/permission"
	"garage-repair-api-server/internal/repository"
	"garage-repair-api-server/internal/socket"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const jpeg = "data:image/jpeg;base64,/9j/4AAQ"

var (
	t0     = time.Date(2024, 5, 6, 8, 0, 0, 0, time.UTC)
	admin  = permission.Principal{UserID: "u-admin", Role: permission.RoleAdmin}
	lead   = permission.Principal{UserID: "u-lead", Role: permission.RoleWorkerLead}
	sales  = permission.Principal{UserID: "u-sales", Role: permission.RoleSales}
	asW1   = permission.Principal{UserID: "u-w1", Role: permission.RoleWorker, WorkerID: "W1"}
	asW2   = permission.Principal{UserID: "u-w2", Role: permission.RoleWorker, WorkerID: "W2"}
	roster = []models.RepairWorker{
		{ID: "W1", Name: "Minh", Active: true, WorkerType: models.WorkerTypeRepair},
		{ID: "W2", Name: "Tuan", Active: true, WorkerType: models.WorkerTypeRepair},
		{ID: "P1", Name: "Hoa", Active: true, WorkerType: models.WorkerTypePaint},
	}
)

type recordingHub struct {
	mu     sync.Mutex
	events []socket.Event
	direct map[string][]socket.Event
}

func (h *recordingHub) SendToWorker(workerID string, ev socket.Event) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.direct == nil {
		h.direct = map[string][]socket.Event{}
	}
	h.direct[workerID] = append(h.direct[workerID], ev)
	return 1
}

func (h *recordingHub) sentTo(workerID string) []socket.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.direct[workerID]
}

func (h *recordingHub) Broadcast(ev socket.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, ev)
}

func (h *recordingHub) actions() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := []string{}
	for _, ev := range h.events {
		out = append(out, ev.Action)
	}
	return out
}

type fixture struct {
	svc   *RepairService
	repo  *repository.Memory
	store *evidence.MemoryStore
	hub   *recordingHub
	clock time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:  repository.NewMemory(),
		store: evidence.NewMemoryStore(),
		hub:   &recordingHub{},
		clock: t0,
	}
	for i := range roster {
		require.NoError(t, f.repo.CreateWorker(context.Background(), &roster[i]))
	}
	f.svc = NewRepairService(f.repo, f.store, zap.NewNop())
	f.svc.Hub = f.hub
	f.svc.Now = func() time.Time { return f.clock }
	return f
}

func (f *fixture) tick(d time.Duration) {
	f.clock = f.clock.Add(d)
}

// createOrder creates an order and returns its items keyed by name.
func (f *fixture) createOrder(t *testing.T, items ...ItemInput) (*models.RepairOrder, map[string]models.RepairItem) {
	t.Helper()
	ctx := context.Background()
	order, err := f.svc.CreateOrder(ctx, sales, CreateOrderInput{
		LicensePlate: "51a-123.45", CustomerName: "Lan", VehicleName: "Vios", Items: items,
	})
	require.NoError(t, err)
	rows, err := f.repo.ListItems(ctx, order.ID)
	require.NoError(t, err)
	byName := map[string]models.RepairItem{}
	for _, it := range rows {
		byName[it.Name] = it
	}
	return order, byName
}

func isKind(t *testing.T, err, kind error) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, errors.Is(err, kind), "got %v, want %v", err, kind)
}

func TestScenario_SingleLeafOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, items := f.createOrder(t, ItemInput{Name: "I1", RepairType: models.RepairTypeMechanical})
	i1 := items["I1"].ID
	assert.Equal(t, "51A-123.45", order.LicensePlate)
	assert.Regexp(t, `^RO-[0-9A-F]{8}$`, order.Code)

	a, err := f.svc.AssignWorker(ctx, lead, i1, "W1", 60)
	require.NoError(t, err)
	assert.Equal(t, 60, a.EstimatedDurationMinutes)

	f.tick(time.Minute)
	started, err := f.svc.StartItem(ctx, asW1, i1, EvidenceInput{Image: jpeg, WorkerID: "W1", OrderID: order.ID})
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, started.Status)
	assert.Equal(t, "W1", started.WorkerID)
	require.NotNil(t, started.StartedAt)
	assert.Equal(t, t0.Add(time.Minute), *started.StartedAt)
	require.NotNil(t, started.EstimatedDurationMinutes)
	assert.Equal(t, 60, *started.EstimatedDurationMinutes)

	o, _ := f.repo.GetOrder(ctx, order.ID)
	assert.Equal(t, models.StatusInProgress, o.Status)

	f.tick(time.Hour)
	done, err := f.svc.CompleteItem(ctx, admin, i1, EvidenceInput{Image: jpeg})
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, done.Status)
	require.NotNil(t, done.CompletedAt)

	d, err := f.svc.Detail(ctx, admin, order.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, d.Progress.Completed)
	assert.Equal(t, 1, d.Progress.Total)
	assert.Equal(t, 100, d.Progress.Percentage)
	assert.Equal(t, models.StatusCompleted, d.Order.Status)

	require.Len(t, d.Items, 1)
	node := d.Items[0]
	require.Len(t, node.Images, 2)
	assert.Equal(t, models.ImageTypeStart, node.Images[0].Type)
	assert.Equal(t, models.ImageTypeComplete, node.Images[1].Type)
	assert.Equal(t, "u-w1", node.Images[0].CapturedBy)
	require.Len(t, node.AssignedWorkers, 1)
	assert.Equal(t, models.EngagedByStart, node.AssignedWorkers[0].EngagedBy)
	assert.Equal(t, 2, f.store.Len())

	assert.Equal(t, []string{"create", "assign", "start", "complete"}, f.hub.actions())
}

func TestScenario_ParentProgressFromChildren(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, items := f.createOrder(t, ItemInput{
		Name: "P", RepairType: models.RepairTypeMechanical,
		Children: []ItemInput{{Name: "C1"}, {Name: "C2"}},
	})
	assert.Equal(t, models.RepairTypeMechanical, items["C1"].RepairType)
	assert.Equal(t, items["P"].ID, items["C2"].ParentID)

	d, err := f.svc.Detail(ctx, admin, order.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, d.Progress.Total)
	assert.Equal(t, 0, d.Progress.Completed)
	assert.Equal(t, 0, d.Progress.Percentage)

	c1 := items["C1"].ID
	_, err = f.svc.AssignWorker(ctx, admin, c1, "W1", 30)
	require.NoError(t, err)
	_, err = f.svc.StartItem(ctx, admin, c1, EvidenceInput{Image: jpeg, WorkerID: "W1", ParentID: items["P"].ID})
	require.NoError(t, err)
	_, err = f.svc.CompleteItem(ctx, asW1, c1, EvidenceInput{Image: jpeg})
	require.NoError(t, err)

	d, err = f.svc.Detail(ctx, admin, order.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, d.Progress.Completed)
	assert.Equal(t, 2, d.Progress.Total)
	assert.Equal(t, 50, d.Progress.Percentage)
	assert.Equal(t, 1, d.Progress.Repair.Completed)
	assert.Equal(t, models.StatusInProgress, d.Order.Status)

	// The group itself has no worker actions.
	_, err = f.svc.AssignWorker(ctx, admin, items["P"].ID, "W2", 30)
	isKind(t, err, apperr.ErrValidation)
}

func TestStart_GatingLeavesStateUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, items := f.createOrder(t, ItemInput{Name: "I1", RepairType: models.RepairTypeMechanical})
	i1 := items["I1"].ID

	// Not assigned yet.
	_, err := f.svc.StartItem(ctx, admin, i1, EvidenceInput{Image: jpeg, WorkerID: "W1"})
	isKind(t, err, apperr.ErrValidation)

	_, err = f.svc.AssignWorker(ctx, admin, i1, "W1", 45)
	require.NoError(t, err)

	_, err = f.svc.StartItem(ctx, asW1, i1, EvidenceInput{WorkerID: "W1"})
	isKind(t, err, apperr.ErrValidation)
	_, err = f.svc.StartItem(ctx, asW1, i1, EvidenceInput{Image: "%%%", WorkerID: "W1"})
	isKind(t, err, apperr.ErrValidation)
	_, err = f.svc.StartItem(ctx, asW1, i1, EvidenceInput{Image: jpeg})
	isKind(t, err, apperr.ErrValidation)
	_, err = f.svc.StartItem(ctx, asW1, i1, EvidenceInput{Image: jpeg, WorkerID: "W1", OrderID: "other"})
	isKind(t, err, apperr.ErrValidation)
	_, err = f.svc.StartItem(ctx, asW2, i1, EvidenceInput{Image: jpeg, WorkerID: "W1"})
	isKind(t, err, apperr.ErrForbidden)

	f.store.Err = errors.New("bucket offline")
	_, err = f.svc.StartItem(ctx, asW1, i1, EvidenceInput{Image: jpeg, WorkerID: "W1"})
	require.Error(t, err)
	assert.Equal(t, "bucket offline", err.Error())
	f.store.Err = nil

	it, _ := f.repo.GetItem(ctx, i1)
	assert.Equal(t, models.StatusPending, it.Status)
	assert.Nil(t, it.StartedAt)
	assert.Equal(t, 0, f.store.Len())

	_, err = f.svc.StartItem(ctx, asW1, i1, EvidenceInput{Image: jpeg, WorkerID: "W1"})
	require.NoError(t, err)
	before, _ := f.repo.GetItem(ctx, i1)

	// Starting an in_progress item is rejected and changes nothing.
	_, err = f.svc.StartItem(ctx, admin, i1, EvidenceInput{Image: jpeg, WorkerID: "W1"})
	isKind(t, err, apperr.ErrValidation)
	after, _ := f.repo.GetItem(ctx, i1)
	assert.Equal(t, before, after)

	imgs, err := f.svc.ItemImages(ctx, i1)
	require.NoError(t, err)
	assert.Len(t, imgs, 1)
}

func TestComplete_Ownership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, items := f.createOrder(t, ItemInput{Name: "I1", RepairType: models.RepairTypeMechanical})
	i1 := items["I1"].ID

	_, err := f.svc.CompleteItem(ctx, admin, i1, EvidenceInput{Image: jpeg})
	isKind(t, err, apperr.ErrValidation) // pending -> completed does not exist

	_, err = f.svc.AssignWorker(ctx, admin, i1, "W1", 45)
	require.NoError(t, err)
	_, err = f.svc.StartItem(ctx, asW1, i1, EvidenceInput{Image: jpeg, WorkerID: "W1"})
	require.NoError(t, err)

	_, err = f.svc.CompleteItem(ctx, asW2, i1, EvidenceInput{Image: jpeg})
	isKind(t, err, apperr.ErrForbidden)
	_, err = f.svc.CompleteItem(ctx, asW1, i1, EvidenceInput{})
	isKind(t, err, apperr.ErrValidation)

	done, err := f.svc.CompleteItem(ctx, asW1, i1, EvidenceInput{Image: jpeg})
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, done.Status)

	_, err = f.svc.CompleteItem(ctx, admin, i1, EvidenceInput{Image: jpeg})
	isKind(t, err, apperr.ErrValidation)
}

// racingRepo lets another writer finish the same transition between the
// read and the write of the service.
type racingRepo struct {
	*repository.Memory
	once sync.Once
}

func (r *racingRepo) UpdateItem(ctx context.Context, item *models.RepairItem, fromStatus string) error {
	r.once.Do(func() {
		winner := *item
		_ = r.Memory.UpdateItem(ctx, &winner, fromStatus)
	})
	return r.Memory.UpdateItem(ctx, item, fromStatus)
}

func TestComplete_LostRaceIsConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, items := f.createOrder(t, ItemInput{Name: "I1", RepairType: models.RepairTypeMechanical})
	i1 := items["I1"].ID
	_, err := f.svc.AssignWorker(ctx, admin, i1, "W1", 45)
	require.NoError(t, err)
	_, err = f.svc.StartItem(ctx, asW1, i1, EvidenceInput{Image: jpeg, WorkerID: "W1"})
	require.NoError(t, err)

	racing := NewRepairService(&racingRepo{Memory: f.repo}, f.store, zap.NewNop())
	_, err = racing.CompleteItem(ctx, admin, i1, EvidenceInput{Image: jpeg})
	isKind(t, err, apperr.ErrConflict)

	imgs, _ := f.repo.ListImages(ctx, []string{i1})
	assert.Len(t, imgs, 1, "the losing request records no image")
}

func TestTransfer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, items := f.createOrder(t, ItemInput{Name: "I1", RepairType: models.RepairTypeMechanical})
	i1 := items["I1"].ID

	_, err := f.svc.TransferItem(ctx, admin, i1, "W1", "W2", "")
	isKind(t, err, apperr.ErrValidation) // still pending

	_, err = f.svc.AssignWorker(ctx, asW1, i1, "W1", 90)
	require.NoError(t, err)
	_, err = f.svc.StartItem(ctx, asW1, i1, EvidenceInput{Image: jpeg, WorkerID: "W1"})
	require.NoError(t, err)

	_, err = f.svc.TransferItem(ctx, asW1, i1, "W1", "P1", "")
	isKind(t, err, apperr.ErrValidation) // paint worker on a mechanical item
	_, err = f.svc.TransferItem(ctx, asW2, i1, "W1", "W2", "")
	isKind(t, err, apperr.ErrForbidden)

	f.tick(10 * time.Minute)
	tr, err := f.svc.TransferItem(ctx, asW1, i1, "W1", "W2", " end of shift ")
	require.NoError(t, err)
	assert.NotEmpty(t, tr.ID)
	assert.Equal(t, "W1", tr.FromWorkerID)
	assert.Equal(t, "W2", tr.ToWorkerID)
	assert.Equal(t, "end of shift", tr.Notes)

	it, _ := f.repo.GetItem(ctx, i1)
	assert.Equal(t, "W2", it.WorkerID)
	assert.Equal(t, models.StatusInProgress, it.Status)

	d, err := f.svc.Detail(ctx, asW2, order.ID)
	require.NoError(t, err)
	node := d.Items[0]
	require.Len(t, node.Transfers, 1)
	require.Len(t, node.AssignedWorkers, 2)
	chips := map[string]bool{}
	for _, a := range node.AssignedWorkers {
		chips[a.WorkerID] = a.Transferred
	}
	assert.True(t, chips["W1"])
	assert.False(t, chips["W2"])
	assert.True(t, node.CanComplete)

	// The receiver now owns completion.
	_, err = f.svc.CompleteItem(ctx, asW1, i1, EvidenceInput{Image: jpeg})
	isKind(t, err, apperr.ErrForbidden)
	_, err = f.svc.CompleteItem(ctx, asW2, i1, EvidenceInput{Image: jpeg})
	require.NoError(t, err)
}

func TestTransferCannotBeReclaimed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w3 := models.RepairWorker{ID: "W3", Name: "Khoa", Active: true, WorkerType: models.WorkerTypeRepair}
	require.NoError(t, f.repo.CreateWorker(ctx, &w3))
	_, items := f.createOrder(t, ItemInput{Name: "I1", RepairType: models.RepairTypeMechanical})
	i1 := items["I1"].ID

	_, err := f.svc.AssignWorker(ctx, lead, i1, "W1", 60)
	require.NoError(t, err)
	_, err = f.svc.StartItem(ctx, asW1, i1, EvidenceInput{Image: jpeg, WorkerID: "W1"})
	require.NoError(t, err)
	_, err = f.svc.TransferItem(ctx, lead, i1, "W1", "W2", "")
	require.NoError(t, err)

	_, err = f.svc.TransferItem(ctx, asW1, i1, "W1", "W2", "")
	isKind(t, err, apperr.ErrValidation)
	_, err = f.svc.TransferItem(ctx, asW1, i1, "W1", "W3", "")
	isKind(t, err, apperr.ErrValidation)

	it, _ := f.repo.GetItem(ctx, i1)
	assert.Equal(t, "W2", it.WorkerID)
	transfers, _ := f.repo.ListTransfers(ctx, []string{i1})
	require.Len(t, transfers, 1)

	tr, err := f.svc.TransferItem(ctx, asW2, i1, "W2", "W3", "")
	require.NoError(t, err)
	assert.Equal(t, "W2", tr.FromWorkerID)
	it, _ = f.repo.GetItem(ctx, i1)
	assert.Equal(t, "W3", it.WorkerID)

	// mỗi lần chuyển chỉ báo riêng cho người nhận
	assert.Len(t, f.hub.sentTo("W2"), 1)
	require.Len(t, f.hub.sentTo("W3"), 1)
	assert.Equal(t, socket.EventRepairItemTransferred, f.hub.sentTo("W3")[0].Type)
	assert.Equal(t, i1, f.hub.sentTo("W3")[0].ItemID)
	assert.Empty(t, f.hub.sentTo("W1"))
}

func TestUnassignAndPriority(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, items := f.createOrder(t, ItemInput{Name: "I1", RepairType: models.RepairTypeMechanical})
	i1 := items["I1"].ID

	_, err := f.svc.MarkPriorityToday(ctx, lead, i1)
	isKind(t, err, apperr.ErrValidation) // nobody assigned

	_, err = f.svc.AssignWorker(ctx, lead, i1, "W1", 30)
	require.NoError(t, err)
	_, err = f.svc.AssignWorker(ctx, lead, i1, "W2", 30)
	require.NoError(t, err)

	require.NoError(t, f.svc.UnassignWorker(ctx, lead, i1, "W2"))
	isKind(t, f.svc.UnassignWorker(ctx, lead, i1, "W2"), apperr.ErrNotFound)

	marked, err := f.svc.MarkPriorityToday(ctx, lead, i1)
	require.NoError(t, err)
	require.Len(t, marked, 1)
	assert.Equal(t, models.EngagedByPriority, marked[0].EngagedBy)

	_, err = f.svc.MarkPriorityToday(ctx, lead, i1)
	isKind(t, err, apperr.ErrValidation)

	rows, _ := f.repo.ListAssignments(ctx, []string{i1})
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].PriorityMarkedAt)
	assert.Equal(t, t0, *rows[0].PriorityMarkedAt)

	// Starting keeps the engagement that came first.
	_, err = f.svc.StartItem(ctx, asW1, i1, EvidenceInput{Image: jpeg, WorkerID: "W1"})
	require.NoError(t, err)
	rows, _ = f.repo.ListAssignments(ctx, []string{i1})
	assert.Equal(t, models.EngagedByPriority, rows[0].EngagedBy)

	isKind(t, f.svc.UnassignWorker(ctx, lead, i1, "W1"), apperr.ErrValidation)
}

func TestDetail_IsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, items := f.createOrder(t,
		ItemInput{Name: "Engine", RepairType: models.RepairTypeMechanical, Children: []ItemInput{{Name: "Oil"}, {Name: "Filter"}}},
		ItemInput{Name: "Door", RepairType: models.RepairTypePaint},
	)
	_, err := f.svc.AssignWorker(ctx, admin, items["Door"].ID, "P1", 120)
	require.NoError(t, err)

	first, err := f.svc.Detail(ctx, lead, order.ID)
	require.NoError(t, err)
	second, err := f.svc.Detail(ctx, lead, order.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	require.Len(t, first.Items, 2)
	assert.Equal(t, "Engine", first.Items[0].Name)
	assert.Equal(t, []string{"Oil", "Filter"}, []string{first.Items[0].Children[0].Name, first.Items[0].Children[1].Name})
	assert.Equal(t, 3, first.Progress.Total)
	assert.Equal(t, 2, first.Progress.Repair.Total)
	assert.Equal(t, 1, first.Progress.Paint.Total)
	assert.Len(t, first.Workers, 3)

	// A worker lead may assign mechanical leaves but not the paint item.
	assert.True(t, first.Items[0].Children[0].CanAssign)
	assert.False(t, first.Items[1].CanAssign)

	_, err = f.svc.Detail(ctx, lead, "missing")
	isKind(t, err, apperr.ErrNotFound)
}

func TestCreateOrder_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateOrder(ctx, asW1, CreateOrderInput{LicensePlate: "X"})
	isKind(t, err, apperr.ErrForbidden)
	_, err = f.svc.CreateOrder(ctx, sales, CreateOrderInput{})
	isKind(t, err, apperr.ErrValidation)
	_, err = f.svc.CreateOrder(ctx, sales, CreateOrderInput{LicensePlate: "X", Items: []ItemInput{{Name: "A", RepairType: "wash"}}})
	isKind(t, err, apperr.ErrValidation)
	_, err = f.svc.CreateOrder(ctx, sales, CreateOrderInput{LicensePlate: "X", Items: []ItemInput{
		{Name: "A", Children: []ItemInput{{Name: "B", Children: []ItemInput{{Name: "C"}}}}},
	}})
	isKind(t, err, apperr.ErrValidation)

	orders, err := f.svc.ListOrders(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestAddItemReopensCompletedOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, items := f.createOrder(t, ItemInput{Name: "I1", RepairType: models.RepairTypeMechanical})
	i1 := items["I1"].ID

	_, err := f.svc.AssignWorker(ctx, lead, i1, "W1", 30)
	require.NoError(t, err)
	_, err = f.svc.StartItem(ctx, asW1, i1, EvidenceInput{Image: jpeg, WorkerID: "W1"})
	require.NoError(t, err)
	_, err = f.svc.CompleteItem(ctx, asW1, i1, EvidenceInput{Image: jpeg})
	require.NoError(t, err)
	o, _ := f.repo.GetOrder(ctx, order.ID)
	require.Equal(t, models.StatusCompleted, o.Status)

	_, err = f.svc.AddItem(ctx, lead, order.ID, AddItemInput{Name: "I2", RepairType: models.RepairTypeMechanical})
	require.NoError(t, err)

	d, err := f.svc.Detail(ctx, lead, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, d.Order.Status)
	assert.Equal(t, 1, d.Progress.Completed)
	assert.Equal(t, 2, d.Progress.Total)
}

func TestAddItem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, items := f.createOrder(t, ItemInput{Name: "Body", RepairType: models.RepairTypePaint})

	top, err := f.svc.AddItem(ctx, lead, order.ID, AddItemInput{Name: "Brakes", RepairType: models.RepairTypeMechanical})
	require.NoError(t, err)
	assert.Equal(t, 1, top.OrderIndex)

	sub, err := f.svc.AddItem(ctx, lead, order.ID, AddItemInput{Name: "Bumper", ParentID: items["Body"].ID})
	require.NoError(t, err)
	assert.Equal(t, models.RepairTypePaint, sub.RepairType)
	assert.Equal(t, 0, sub.OrderIndex)

	_, err = f.svc.AddItem(ctx, lead, order.ID, AddItemInput{Name: "Deep", ParentID: sub.ID})
	isKind(t, err, apperr.ErrValidation)
	_, err = f.svc.AddItem(ctx, lead, order.ID, AddItemInput{Name: "X", ParentID: "nope"})
	isKind(t, err, apperr.ErrNotFound)
	_, err = f.svc.AddItem(ctx, asW1, order.ID, AddItemInput{Name: "X"})
	isKind(t, err, apperr.ErrForbidden)

	summaries, err := f.svc.ListOrders(ctx, models.StatusPending)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, 2, summaries[0].Progress.Total)

	_, err = f.svc.ListOrders(ctx, "archived")
	isKind(t, err, apperr.ErrValidation)
}

func TestPartsWaitingAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, items := f.createOrder(t, ItemInput{Name: "I1", RepairType: models.RepairTypeMechanical})
	start, end := t0, t0.Add(48*time.Hour)

	_, err := f.svc.SetPartsWaiting(ctx, asW1, order.ID, PartsInput{WaitingForParts: true, PartsOrderStartTime: &start, PartsExpectedEndTime: &end})
	isKind(t, err, apperr.ErrForbidden)
	_, err = f.svc.SetPartsWaiting(ctx, lead, order.ID, PartsInput{WaitingForParts: true})
	isKind(t, err, apperr.ErrValidation)

	o, err := f.svc.SetPartsWaiting(ctx, lead, order.ID, PartsInput{WaitingForParts: true, PartsOrderStartTime: &start, PartsExpectedEndTime: &end, PartsNote: "gasket"})
	require.NoError(t, err)
	assert.True(t, o.WaitingForParts)
	assert.Equal(t, "gasket", o.PartsNote)

	// Advisory only: items still move.
	_, err = f.svc.AssignWorker(ctx, admin, items["I1"].ID, "W1", 15)
	require.NoError(t, err)

	o, err = f.svc.SetPartsWaiting(ctx, admin, order.ID, PartsInput{PartsNote: "ignored"})
	require.NoError(t, err)
	assert.False(t, o.WaitingForParts)
	assert.Nil(t, o.PartsOrderStartTime)
	assert.Nil(t, o.PartsExpectedEndTime)
	assert.Empty(t, o.PartsNote)

	isKind(t, f.svc.DeleteOrder(ctx, lead, order.ID), apperr.ErrForbidden)
	require.NoError(t, f.svc.DeleteOrder(ctx, admin, order.ID))
	_, err = f.repo.GetItem(ctx, items["I1"].ID)
	isKind(t, err, apperr.ErrNotFound)
	rows, _ := f.repo.ListAssignments(ctx, []string{items["I1"].ID})
	assert.Empty(t, rows)
	isKind(t, f.svc.DeleteOrder(ctx, admin, order.ID), apperr.ErrNotFound)
}

func TestWorkers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ws, err := f.svc.EligibleWorkers(ctx, asW1, models.RepairTypeMechanical)
	require.NoError(t, err)
	require.Len(t, ws, 1)
	assert.Equal(t, "W1", ws[0].ID)

	ws, err = f.svc.EligibleWorkers(ctx, admin, models.RepairTypePaint)
	require.NoError(t, err)
	require.Len(t, ws, 1)
	assert.Equal(t, "P1", ws[0].ID)

	_, err = f.svc.CreateWorker(ctx, lead, "Nam", models.WorkerTypeRepair)
	isKind(t, err, apperr.ErrForbidden)
	_, err = f.svc.CreateWorker(ctx, admin, "Nam", "welder")
	isKind(t, err, apperr.ErrValidation)
	w, err := f.svc.CreateWorker(ctx, admin, " Nam ", models.WorkerTypeRepair)
	require.NoError(t, err)
	assert.Equal(t, "Nam", w.Name)
	assert.True(t, w.Active)
}
