// server/internal/models/repair_order.go
package models

import "time"

// Trạng thái dùng chung cho đơn sửa chữa và hạng mục.
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

type RepairOrder struct {
	ID           string     `bson:"_id" json:"id"`
	Code         string     `bson:"code" json:"code"` // e.g. "RO-3F9A12BC"
	LicensePlate string     `bson:"license_plate" json:"license_plate"`
	CustomerName string     `bson:"customer_name" json:"customer_name"`
	VehicleName  string     `bson:"vehicle_name" json:"vehicle_name"`
	ReceivedAt   time.Time  `bson:"received_at" json:"received_at"`
	ReturnAt     *time.Time `bson:"return_at,omitempty" json:"return_at"`
	Status       string     `bson:"status" json:"status"`

	WaitingForParts      bool       `bson:"waiting_for_parts" json:"waiting_for_parts"`
	PartsOrderStartTime  *time.Time `bson:"parts_order_start_time,omitempty" json:"parts_order_start_time"`
	PartsExpectedEndTime *time.Time `bson:"parts_expected_end_time,omitempty" json:"parts_expected_end_time"`
	PartsNote            string     `bson:"parts_note,omitempty" json:"parts_note"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// PartsWaiting là trạng thái "chờ phụ tùng" của một đơn.
type PartsWaiting struct {
	WaitingForParts      bool
	PartsOrderStartTime  *time.Time
	PartsExpectedEndTime *time.Time
	PartsNote            string
}
