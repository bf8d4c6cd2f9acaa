// server/internal/api/handlers/repair_item_handler.go
package handlers

import (
	"encoding/json"
	"net/http"

	"garage-repair-api-server/internal/apperr"
	"garage-repair-api-server/internal/service"
	"garage-repair-api-server/internal/workflow"

	"github.com/gin-gonic/gin"
)

// durationPart nhận cả số lẫn chuỗi, ví dụ "hours": 2 hoặc "hours": "2".
type durationPart string

func (d *durationPart) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*d = durationPart(s)
		return nil
	}
	if string(b) == "null" {
		*d = ""
		return nil
	}
	*d = durationPart(b)
	return nil
}

type AssignWorkerRequest struct {
	WorkerID                 string       `json:"worker_id" binding:"required"`
	EstimatedDurationMinutes *int         `json:"estimated_duration_minutes"`
	Hours                    durationPart `json:"hours"`
	Minutes                  durationPart `json:"minutes"`
}

func (r AssignWorkerRequest) minutes() (int, error) {
	if r.EstimatedDurationMinutes != nil {
		return *r.EstimatedDurationMinutes, nil
	}
	if r.Hours == "" && r.Minutes == "" {
		return 0, apperr.Validation("estimated duration is required")
	}
	return workflow.DurationMinutes(string(r.Hours), string(r.Minutes))
}

type EvidenceRequest struct {
	Image    string `json:"image"`
	WorkerID string `json:"worker_id"`
	ParentID string `json:"parent_id"`
	OrderID  string `json:"order_id"`
}

func (r EvidenceRequest) input() service.EvidenceInput {
	return service.EvidenceInput{
		Image:    r.Image,
		WorkerID: r.WorkerID,
		ParentID: r.ParentID,
		OrderID:  r.OrderID,
	}
}

type TransferRequest struct {
	FromWorkerID string `json:"from_worker_id" binding:"required"`
	ToWorkerID   string `json:"to_worker_id" binding:"required"`
	Notes        string `json:"notes"`
}

func (h *RepairHandler) AssignWorker(c *gin.Context) {
	p, ok := currentPrincipal(c)
	if !ok {
		return
	}
	var req AssignWorkerRequest
	if !bindJSON(c, &req) {
		return
	}
	minutes, err := req.minutes()
	if err != nil {
		respondError(c, err)
		return
	}

	assignment, err := h.Service.AssignWorker(c.Request.Context(), p, c.Param("itemId"), req.WorkerID, minutes)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, assignment)
}

func (h *RepairHandler) UnassignWorker(c *gin.Context) {
	p, ok := currentPrincipal(c)
	if !ok {
		return
	}
	if err := h.Service.UnassignWorker(c.Request.Context(), p, c.Param("itemId"), c.Param("workerId")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "Worker unassigned"})
}

// StartItem bắt đầu hạng mục, bắt buộc có ảnh.
func (h *RepairHandler) StartItem(c *gin.Context) {
	p, ok := currentPrincipal(c)
	if !ok {
		return
	}
	var req EvidenceRequest
	if !bindJSON(c, &req) {
		return
	}
	item, err := h.Service.StartItem(c.Request.Context(), p, c.Param("itemId"), req.input())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// CompleteItem hoàn thành hạng mục, bắt buộc có ảnh.
func (h *RepairHandler) CompleteItem(c *gin.Context) {
	p, ok := currentPrincipal(c)
	if !ok {
		return
	}
	var req EvidenceRequest
	if !bindJSON(c, &req) {
		return
	}
	item, err := h.Service.CompleteItem(c.Request.Context(), p, c.Param("itemId"), req.input())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *RepairHandler) TransferItem(c *gin.Context) {
	p, ok := currentPrincipal(c)
	if !ok {
		return
	}
	var req TransferRequest
	if !bindJSON(c, &req) {
		return
	}
	transfer, err := h.Service.TransferItem(c.Request.Context(), p, c.Param("itemId"), req.FromWorkerID, req.ToWorkerID, req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, transfer)
}

func (h *RepairHandler) MarkPriorityToday(c *gin.Context) {
	p, ok := currentPrincipal(c)
	if !ok {
		return
	}
	marked, err := h.Service.MarkPriorityToday(c.Request.Context(), p, c.Param("itemId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, marked)
}

func (h *RepairHandler) ListItemImages(c *gin.Context) {
	images, err := h.Service.ItemImages(c.Request.Context(), c.Param("itemId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, images)
}

// GetRawImage trả nội dung ảnh lưu trong GridFS.
func (h *RepairHandler) GetRawImage(c *gin.Context) {
	data, contentType, err := h.Service.OpenImage(c.Request.Context(), c.Param("imageId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Cache-Control", "private, max-age=86400")
	c.Data(http.StatusOK, contentType, data)
}
