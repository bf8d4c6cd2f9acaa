// server/internal/api/handlers/worker_handler.go
package handlers

import (
	"net/http"

	"garage-repair-api-server/internal/service"

	"github.com/gin-gonic/gin"
)

type WorkerHandler struct {
	Service *service.RepairService
}

type CreateWorkerRequest struct {
	Name       string `json:"name" binding:"required"`
	WorkerType string `json:"worker_type" binding:"required"`
}

// ListWorkers trả danh sách thợ có thể giao việc, lọc theo ?repair_type=.
func (h *WorkerHandler) ListWorkers(c *gin.Context) {
	p, ok := currentPrincipal(c)
	if !ok {
		return
	}
	workers, err := h.Service.EligibleWorkers(c.Request.Context(), p, c.Query("repair_type"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, workers)
}

func (h *WorkerHandler) CreateWorker(c *gin.Context) {
	p, ok := currentPrincipal(c)
	if !ok {
		return
	}
	var req CreateWorkerRequest
	if !bindJSON(c, &req) {
		return
	}
	worker, err := h.Service.CreateWorker(c.Request.Context(), p, req.Name, req.WorkerType)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, worker)
}
