package service

import (
	"context"
	"strings"

	"garage-repair-api-server/internal/apperr"
	"garage-repair-api-server/internal/evidence"
	"garage-repair-api-server/internal/models"
	"garage-repair-api-server/internal/permission"
	"garage-repair-api-server/internal/workflow"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EvidenceInput is the body of start and complete. ParentID and OrderID are
// optional cross-checks against the stored item.
type EvidenceInput struct {
	Image    string
	WorkerID string
	ParentID string
	OrderID  string
}

func (in EvidenceInput) check(item models.RepairItem) error {
	if in.OrderID != "" && in.OrderID != item.OrderID {
		return apperr.Validation("item %s does not belong to order %s", item.ID, in.OrderID)
	}
	if in.ParentID != "" && in.ParentID != item.ParentID {
		return apperr.Validation("item %s is not a sub-item of %s", item.ID, in.ParentID)
	}
	return nil
}

// photo decodes the image if one was sent. A missing image is left to the
// state machine so that state errors are reported first.
func (in EvidenceInput) photo() (evidence.Photo, error) {
	if strings.TrimSpace(in.Image) == "" {
		return evidence.Photo{}, nil
	}
	return evidence.Decode(in.Image)
}

// storePhoto uploads the photo and returns the image record to append once the
// item write went through.
func (s *RepairService) storePhoto(ctx context.Context, p permission.Principal, itemID, kind string, photo evidence.Photo) (models.RepairItemImage, error) {
	url, err := s.evidence.Put(ctx, evidence.ObjectKey(itemID, kind, photo.ContentType), photo.Data, photo.ContentType)
	if err != nil {
		return models.RepairItemImage{}, err
	}
	if s.Metrics != nil {
		s.Metrics.EvidenceStored(len(photo.Data))
	}
	return models.RepairItemImage{
		ID:         uuid.New().String(),
		ItemID:     itemID,
		Type:       kind,
		URL:        url,
		CapturedAt: s.now(),
		CapturedBy: p.UserID,
	}, nil
}

func (s *RepairService) AssignWorker(ctx context.Context, p permission.Principal, itemID, workerID string, minutes int) (assignment models.RepairItemAssignedWorker, err error) {
	defer func() { s.record("assign", err) }()

	state, err := s.loadState(ctx, itemID)
	if err != nil {
		return assignment, err
	}
	worker, err := s.repo.GetWorker(ctx, workerID)
	if err != nil {
		return assignment, err
	}
	assignment, err = workflow.Assign(p, state, *worker, minutes, s.now())
	if err != nil {
		return assignment, err
	}
	if err = s.repo.AddAssignment(ctx, &assignment); err != nil {
		return assignment, err
	}
	s.notify(state.Item.OrderID, itemID, "assign")
	return assignment, nil
}

func (s *RepairService) UnassignWorker(ctx context.Context, p permission.Principal, itemID, workerID string) (err error) {
	defer func() { s.record("unassign", err) }()

	state, err := s.loadState(ctx, itemID)
	if err != nil {
		return err
	}
	if err = workflow.Unassign(p, state, workerID); err != nil {
		return err
	}
	if err = s.repo.RemoveAssignment(ctx, itemID, workerID); err != nil {
		return err
	}
	s.notify(state.Item.OrderID, itemID, "unassign")
	return nil
}

// StartItem moves a pending leaf to in_progress with a start photo.
func (s *RepairService) StartItem(ctx context.Context, p permission.Principal, itemID string, in EvidenceInput) (item *models.RepairItem, err error) {
	defer func() { s.record("start", err) }()

	state, err := s.loadState(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if err = in.check(state.Item); err != nil {
		return nil, err
	}
	photo, err := in.photo()
	if err != nil {
		return nil, err
	}
	res, err := workflow.Start(p, state, in.WorkerID, photo.Data, s.now())
	if err != nil {
		return nil, err
	}
	img, err := s.storePhoto(ctx, p, itemID, models.ImageTypeStart, photo)
	if err != nil {
		return nil, err
	}
	if err = s.repo.UpdateItem(ctx, &res.Item, models.StatusPending); err != nil {
		return nil, err
	}

	if err = s.repo.AddImage(ctx, &img); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateAssignment(ctx, &res.Assignment); err != nil {
		s.logger.Warn("Failed to record engagement on assignment",
			zap.String("item_id", itemID), zap.String("worker_id", res.Assignment.WorkerID), zap.Error(err))
	}
	s.syncOrderStatus(ctx, res.Item.OrderID)
	s.notify(res.Item.OrderID, itemID, "start")
	return &res.Item, nil
}

// CompleteItem moves an in_progress leaf to completed with a completion photo.
func (s *RepairService) CompleteItem(ctx context.Context, p permission.Principal, itemID string, in EvidenceInput) (item *models.RepairItem, err error) {
	defer func() { s.record("complete", err) }()

	state, err := s.loadState(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if err = in.check(state.Item); err != nil {
		return nil, err
	}
	photo, err := in.photo()
	if err != nil {
		return nil, err
	}
	done, err := workflow.Complete(p, state, photo.Data, s.now())
	if err != nil {
		return nil, err
	}
	img, err := s.storePhoto(ctx, p, itemID, models.ImageTypeComplete, photo)
	if err != nil {
		return nil, err
	}
	if err = s.repo.UpdateItem(ctx, &done, models.StatusInProgress); err != nil {
		return nil, err
	}
	if err = s.repo.AddImage(ctx, &img); err != nil {
		return nil, err
	}
	s.syncOrderStatus(ctx, done.OrderID)
	s.notify(done.OrderID, itemID, "complete")
	return &done, nil
}

// TransferItem hands an in_progress item over to another worker.
func (s *RepairService) TransferItem(ctx context.Context, p permission.Principal, itemID, fromWorkerID, toWorkerID, notes string) (transfer *models.RepairItemTransfer, err error) {
	defer func() { s.record("transfer", err) }()

	state, err := s.loadState(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(toWorkerID) == "" {
		return nil, apperr.Validation("to_worker_id is required")
	}
	to, err := s.repo.GetWorker(ctx, toWorkerID)
	if err != nil {
		return nil, err
	}
	res, err := workflow.Transfer(p, state, fromWorkerID, *to, notes, s.now())
	if err != nil {
		return nil, err
	}
	if err = s.repo.UpdateItem(ctx, &res.Item, models.StatusInProgress); err != nil {
		return nil, err
	}

	res.Transfer.ID = uuid.New().String()
	if err = s.repo.AddTransfer(ctx, &res.Transfer); err != nil {
		return nil, err
	}
	if res.Assignment != nil {
		if err := s.repo.AddAssignment(ctx, res.Assignment); err != nil {
			s.logger.Warn("Failed to add assignment for transfer receiver",
				zap.String("item_id", itemID), zap.String("worker_id", toWorkerID), zap.Error(err))
		}
	}
	s.notify(res.Item.OrderID, itemID, "transfer")
	s.notifyWorker(to.ID, res.Item.OrderID, itemID, "transfer")
	return &res.Transfer, nil
}

// MarkPriorityToday flags a pending item's assignments. Advisory only.
func (s *RepairService) MarkPriorityToday(ctx context.Context, p permission.Principal, itemID string) (marked []models.RepairItemAssignedWorker, err error) {
	defer func() { s.record("priority", err) }()

	state, err := s.loadState(ctx, itemID)
	if err != nil {
		return nil, err
	}
	marked, err = workflow.MarkPriorityToday(p, state, s.now())
	if err != nil {
		return nil, err
	}
	for i := range marked {
		if err = s.repo.UpdateAssignment(ctx, &marked[i]); err != nil {
			return nil, err
		}
	}
	s.notify(state.Item.OrderID, itemID, "priority")
	return marked, nil
}

// ItemImages lists an item's photos in capture order.
func (s *RepairService) ItemImages(ctx context.Context, itemID string) ([]models.RepairItemImage, error) {
	if _, err := s.repo.GetItem(ctx, itemID); err != nil {
		return nil, err
	}
	return s.repo.ListImages(ctx, []string{itemID})
}

// OpenImage serves photo bytes for stores that keep them in-house.
func (s *RepairService) OpenImage(ctx context.Context, id string) ([]byte, string, error) {
	opener, ok := s.evidence.(evidence.Opener)
	if !ok {
		return nil, "", apperr.NotFound("image %s", id)
	}
	return opener.Open(ctx, id)
}
