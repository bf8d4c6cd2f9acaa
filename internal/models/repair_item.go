// server/internal/models/repair_item.go
package models

import "time"

// Loại hạng mục.
const (
	RepairTypeMechanical = "sua_chua"
	RepairTypePaint      = "dong_son"
)

// Loại ảnh minh chứng.
const (
	ImageTypeStart    = "start"
	ImageTypeComplete = "complete"
)

// Hành động đầu tiên làm phát sinh khối lượng công việc cho thợ.
const (
	EngagedByStart    = "start"
	EngagedByPriority = "priority"
)

type RepairItem struct {
	ID                       string     `bson:"_id" json:"id"`
	OrderID                  string     `bson:"order_id" json:"order_id"`
	Name                     string     `bson:"name" json:"name"`
	Status                   string     `bson:"status" json:"status"`
	StartedAt                *time.Time `bson:"started_at,omitempty" json:"started_at"`
	CompletedAt              *time.Time `bson:"completed_at,omitempty" json:"completed_at"`
	EstimatedDurationMinutes *int       `bson:"estimated_duration_minutes,omitempty" json:"estimated_duration_minutes"`
	WorkerID                 string     `bson:"worker_id,omitempty" json:"worker_id"`
	OrderIndex               int        `bson:"order_index" json:"order_index"`
	ParentID                 string     `bson:"parent_id,omitempty" json:"parent_id"`
	RepairType               string     `bson:"repair_type,omitempty" json:"repair_type"`
	CreatedAt                time.Time  `bson:"created_at" json:"created_at"`
}

// RepairItemAssignedWorker là một dòng trong sổ phân công.
type RepairItemAssignedWorker struct {
	ItemID                   string     `bson:"item_id" json:"item_id"`
	WorkerID                 string     `bson:"worker_id" json:"worker_id"`
	EstimatedDurationMinutes int        `bson:"estimated_duration_minutes" json:"estimated_duration_minutes"`
	AssignedAt               time.Time  `bson:"assigned_at" json:"assigned_at"`
	PriorityMarkedAt         *time.Time `bson:"priority_marked_at,omitempty" json:"priority_marked_at"`
	EngagedBy                string     `bson:"engaged_by,omitempty" json:"engaged_by"`
}

type RepairItemTransfer struct {
	ID            string    `bson:"_id" json:"id"`
	ItemID        string    `bson:"item_id" json:"item_id"`
	FromWorkerID  string    `bson:"from_worker_id" json:"from_worker_id"`
	ToWorkerID    string    `bson:"to_worker_id" json:"to_worker_id"`
	TransferredAt time.Time `bson:"transferred_at" json:"transferred_at"`
	Notes         string    `bson:"notes,omitempty" json:"notes"`
}

// RepairItemImage là ảnh minh chứng, chỉ thêm mới, không sửa.
type RepairItemImage struct {
	ID         string    `bson:"_id" json:"id"`
	ItemID     string    `bson:"item_id" json:"item_id"`
	Type       string    `bson:"type" json:"type"`
	URL        string    `bson:"url" json:"url"`
	CapturedAt time.Time `bson:"captured_at" json:"captured_at"`
	CapturedBy string    `bson:"captured_by" json:"captured_by"`
}
