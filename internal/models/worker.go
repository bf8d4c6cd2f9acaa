// server/internal/models/worker.go
package models

import "time"

const (
	WorkerTypeRepair = "repair"
	WorkerTypePaint  = "paint"
)

type RepairWorker struct {
	ID         string    `bson:"_id" json:"id"`
	Name       string    `bson:"name" json:"name"`
	Active     bool      `bson:"active" json:"active"`
	WorkerType string    `bson:"worker_type" json:"worker_type"`
	CreatedAt  time.Time `bson:"created_at" json:"created_at"`
}
