// Package workflow holds the repair item lifecycle: assignment ledger rules,
// status transitions and progress over the item tree. Nothing in here touches
// storage; callers load an ItemState, apply a transition and persist the result.
package workflow

import (
	"strings"
	"time"

	"garage-repair-api-server/internal/apperr"
	"garage-repair-api-server/internal/models"
	"garage-repair-api-server/internal/permission"
)

// ItemState is everything a transition needs to know about one item.
type ItemState struct {
	Item        models.RepairItem
	HasChildren bool
	Assigned    []models.RepairItemAssignedWorker
	Transfers   []models.RepairItemTransfer
}

// handedOff reports whether workerID passed the item on and no longer owns it.
func (s ItemState) handedOff(workerID string) bool {
	if s.Item.WorkerID == workerID {
		return false
	}
	for _, tr := range s.Transfers {
		if tr.FromWorkerID == workerID {
			return true
		}
	}
	return false
}

func (s ItemState) assignment(workerID string) (models.RepairItemAssignedWorker, bool) {
	for _, a := range s.Assigned {
		if a.WorkerID == workerID {
			return a, true
		}
	}
	return models.RepairItemAssignedWorker{}, false
}

func (s ItemState) requireLeaf() error {
	if s.HasChildren {
		return apperr.Validation("item %q groups sub-items and has no status of its own", s.Item.Name)
	}
	return nil
}

func (s ItemState) requireStatus(status string) error {
	if s.Item.Status != status {
		return apperr.Validation("item %q is %s, expected %s", s.Item.Name, s.Item.Status, status)
	}
	return nil
}

func checkWorkerType(item models.RepairItem, w models.RepairWorker) error {
	if !w.Active {
		return apperr.Validation("worker %s is not active", w.Name)
	}
	want := permission.WorkerTypeFor(item.RepairType)
	if want != "" && w.WorkerType != want {
		return apperr.Validation("worker %s (%s) cannot work on %s items", w.Name, w.WorkerType, item.RepairType)
	}
	return nil
}

// Assign adds worker to the pending item's ledger with an estimated duration.
func Assign(p permission.Principal, s ItemState, w models.RepairWorker, minutes int, now time.Time) (models.RepairItemAssignedWorker, error) {
	if err := s.requireLeaf(); err != nil {
		return models.RepairItemAssignedWorker{}, err
	}
	if err := s.requireStatus(models.StatusPending); err != nil {
		return models.RepairItemAssignedWorker{}, err
	}
	if !permission.CanAssignWorker(p, s.Item, w.ID) {
		return models.RepairItemAssignedWorker{}, apperr.Forbidden("role %s cannot assign %s to %q", p.Role, w.Name, s.Item.Name)
	}
	if minutes <= 0 {
		return models.RepairItemAssignedWorker{}, apperr.Validation("estimated duration must be greater than zero")
	}
	if err := checkWorkerType(s.Item, w); err != nil {
		return models.RepairItemAssignedWorker{}, err
	}
	if _, ok := s.assignment(w.ID); ok {
		return models.RepairItemAssignedWorker{}, apperr.Validation("worker %s is already assigned to %q", w.Name, s.Item.Name)
	}
	return models.RepairItemAssignedWorker{
		ItemID:                   s.Item.ID,
		WorkerID:                 w.ID,
		EstimatedDurationMinutes: minutes,
		AssignedAt:               now,
	}, nil
}

// Unassign checks that workerID may be removed from the pending item.
func Unassign(p permission.Principal, s ItemState, workerID string) error {
	if err := s.requireStatus(models.StatusPending); err != nil {
		return err
	}
	if !permission.CanAssignWorker(p, s.Item, workerID) {
		return apperr.Forbidden("role %s cannot unassign workers from %q", p.Role, s.Item.Name)
	}
	if _, ok := s.assignment(workerID); !ok {
		return apperr.NotFound("worker %s is not assigned to %q", workerID, s.Item.Name)
	}
	return nil
}

// StartResult is the item after pending -> in_progress plus the acting worker's ledger row.
type StartResult struct {
	Item       models.RepairItem
	Assignment models.RepairItemAssignedWorker
}

// Start moves a pending leaf item to in_progress on behalf of workerID.
func Start(p permission.Principal, s ItemState, workerID string, photo []byte, now time.Time) (StartResult, error) {
	if err := s.requireLeaf(); err != nil {
		return StartResult{}, err
	}
	if err := s.requireStatus(models.StatusPending); err != nil {
		return StartResult{}, err
	}
	workerID = strings.TrimSpace(workerID)
	if workerID == "" {
		return StartResult{}, apperr.Validation("worker_id is required to start an item")
	}
	a, ok := s.assignment(workerID)
	if !ok {
		return StartResult{}, apperr.Validation("worker %s is not assigned to %q", workerID, s.Item.Name)
	}
	if !permission.CanActAs(p, s.Item, workerID) {
		return StartResult{}, apperr.Forbidden("you can only start items as yourself")
	}
	if len(photo) == 0 {
		return StartResult{}, apperr.Validation("a start photo is required")
	}

	item := s.Item
	started := now
	minutes := a.EstimatedDurationMinutes
	item.Status = models.StatusInProgress
	item.StartedAt = &started
	item.WorkerID = workerID
	item.EstimatedDurationMinutes = &minutes

	if a.EngagedBy == "" {
		a.EngagedBy = models.EngagedByStart
	}
	return StartResult{Item: item, Assignment: a}, nil
}

// Complete moves an in_progress leaf item to completed.
func Complete(p permission.Principal, s ItemState, photo []byte, now time.Time) (models.RepairItem, error) {
	if err := s.requireLeaf(); err != nil {
		return models.RepairItem{}, err
	}
	if err := s.requireStatus(models.StatusInProgress); err != nil {
		return models.RepairItem{}, err
	}
	if !permission.CanComplete(p, s.Item) {
		return models.RepairItem{}, apperr.Forbidden("only an admin or the worker on %q can complete it", s.Item.Name)
	}
	if len(photo) == 0 {
		return models.RepairItem{}, apperr.Validation("a completion photo is required")
	}

	item := s.Item
	done := now
	item.Status = models.StatusCompleted
	item.CompletedAt = &done
	return item, nil
}

// TransferResult carries the writes of a handoff. Assignment is set when the
// receiving worker was not yet on the item's ledger.
type TransferResult struct {
	Item       models.RepairItem
	Transfer   models.RepairItemTransfer
	Assignment *models.RepairItemAssignedWorker
}

// Transfer hands an in_progress item from one worker to another.
func Transfer(p permission.Principal, s ItemState, fromWorkerID string, to models.RepairWorker, notes string, now time.Time) (TransferResult, error) {
	if err := s.requireLeaf(); err != nil {
		return TransferResult{}, err
	}
	if err := s.requireStatus(models.StatusInProgress); err != nil {
		return TransferResult{}, err
	}
	if fromWorkerID == "" || to.ID == "" {
		return TransferResult{}, apperr.Validation("from_worker_id and to_worker_id are required")
	}
	if fromWorkerID == to.ID {
		return TransferResult{}, apperr.Validation("cannot transfer an item to the same worker")
	}
	if to.ID == s.Item.WorkerID {
		return TransferResult{}, apperr.Validation("%q is already with worker %s", s.Item.Name, to.ID)
	}
	if _, assigned := s.assignment(fromWorkerID); s.Item.WorkerID != fromWorkerID && !assigned {
		return TransferResult{}, apperr.Validation("worker %s is not working on %q", fromWorkerID, s.Item.Name)
	}
	if s.handedOff(fromWorkerID) {
		return TransferResult{}, apperr.Validation("worker %s already handed %q over", fromWorkerID, s.Item.Name)
	}
	if !permission.CanActAs(p, s.Item, fromWorkerID) {
		return TransferResult{}, apperr.Forbidden("you can only hand over your own work")
	}
	if err := checkWorkerType(s.Item, to); err != nil {
		return TransferResult{}, err
	}

	item := s.Item
	item.WorkerID = to.ID
	res := TransferResult{
		Item: item,
		Transfer: models.RepairItemTransfer{
			ItemID:        s.Item.ID,
			FromWorkerID:  fromWorkerID,
			ToWorkerID:    to.ID,
			TransferredAt: now,
			Notes:         strings.TrimSpace(notes),
		},
	}
	if _, ok := s.assignment(to.ID); !ok {
		minutes := 0
		if s.Item.EstimatedDurationMinutes != nil {
			minutes = *s.Item.EstimatedDurationMinutes
		}
		res.Assignment = &models.RepairItemAssignedWorker{
			ItemID:                   s.Item.ID,
			WorkerID:                 to.ID,
			EstimatedDurationMinutes: minutes,
			AssignedAt:               now,
			EngagedBy:                models.EngagedByStart,
		}
	}
	return res, nil
}

// MarkPriorityToday flags every ledger row of a pending item. It is advisory only.
func MarkPriorityToday(p permission.Principal, s ItemState, now time.Time) ([]models.RepairItemAssignedWorker, error) {
	if err := s.requireLeaf(); err != nil {
		return nil, err
	}
	if err := s.requireStatus(models.StatusPending); err != nil {
		return nil, err
	}
	if len(s.Assigned) == 0 {
		return nil, apperr.Validation("assign a worker to %q before marking it as priority", s.Item.Name)
	}
	allowed := permission.CanAssign(p, s.Item)
	for _, a := range s.Assigned {
		if a.PriorityMarkedAt != nil {
			return nil, apperr.Validation("%q is already marked as priority", s.Item.Name)
		}
		if a.WorkerID == p.WorkerID && p.WorkerID != "" {
			allowed = true
		}
	}
	if !allowed {
		return nil, apperr.Forbidden("role %s cannot mark %q as priority", p.Role, s.Item.Name)
	}

	marked := make([]models.RepairItemAssignedWorker, 0, len(s.Assigned))
	for _, a := range s.Assigned {
		at := now
		a.PriorityMarkedAt = &at
		if a.EngagedBy == "" {
			a.EngagedBy = models.EngagedByPriority
		}
		marked = append(marked, a)
	}
	return marked, nil
}
