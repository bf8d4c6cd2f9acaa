// server/internal/api/handlers/repair_order_handler.go
package handlers

import (
	"fmt"
	"net/http"
	"time"

	"garage-repair-api-server/internal/report"
	"garage-repair-api-server/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type RepairHandler struct {
	Service *service.RepairService
	Logger  *zap.Logger
}

type CreateOrderRequest struct {
	LicensePlate string              `json:"license_plate" binding:"required"`
	CustomerName string              `json:"customer_name"`
	VehicleName  string              `json:"vehicle_name"`
	ReceivedAt   *time.Time          `json:"received_at"`
	ReturnAt     *time.Time          `json:"return_at"`
	Items        []service.ItemInput `json:"items"`
}

type AddItemRequest struct {
	Name       string `json:"name" binding:"required"`
	RepairType string `json:"repair_type"`
	ParentID   string `json:"parent_id"`
}

type PartsWaitingRequest struct {
	WaitingForParts      *bool      `json:"waiting_for_parts" binding:"required"`
	PartsOrderStartTime  *time.Time `json:"parts_order_start_time"`
	PartsExpectedEndTime *time.Time `json:"parts_expected_end_time"`
	PartsNote            string     `json:"parts_note"`
}

// ListOrders trả danh sách đơn, lọc theo ?status=.
func (h *RepairHandler) ListOrders(c *gin.Context) {
	orders, err := h.Service.ListOrders(c.Request.Context(), c.Query("status"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (h *RepairHandler) CreateOrder(c *gin.Context) {
	p, ok := currentPrincipal(c)
	if !ok {
		return
	}
	var req CreateOrderRequest
	if !bindJSON(c, &req) {
		return
	}

	order, err := h.Service.CreateOrder(c.Request.Context(), p, service.CreateOrderInput{
		LicensePlate: req.LicensePlate,
		CustomerName: req.CustomerName,
		VehicleName:  req.VehicleName,
		ReceivedAt:   req.ReceivedAt,
		ReturnAt:     req.ReturnAt,
		Items:        req.Items,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

// GetDetail trả chi tiết đơn. Vai trò lấy từ token, không nhận từ query.
func (h *RepairHandler) GetDetail(c *gin.Context) {
	p, ok := currentPrincipal(c)
	if !ok {
		return
	}
	detail, err := h.Service.Detail(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *RepairHandler) AddItem(c *gin.Context) {
	p, ok := currentPrincipal(c)
	if !ok {
		return
	}
	var req AddItemRequest
	if !bindJSON(c, &req) {
		return
	}

	item, err := h.Service.AddItem(c.Request.Context(), p, c.Param("id"), service.AddItemInput{
		Name:       req.Name,
		RepairType: req.RepairType,
		ParentID:   req.ParentID,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (h *RepairHandler) SetPartsWaiting(c *gin.Context) {
	p, ok := currentPrincipal(c)
	if !ok {
		return
	}
	var req PartsWaitingRequest
	if !bindJSON(c, &req) {
		return
	}

	order, err := h.Service.SetPartsWaiting(c.Request.Context(), p, c.Param("id"), service.PartsInput{
		WaitingForParts:      *req.WaitingForParts,
		PartsOrderStartTime:  req.PartsOrderStartTime,
		PartsExpectedEndTime: req.PartsExpectedEndTime,
		PartsNote:            req.PartsNote,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *RepairHandler) DeleteOrder(c *gin.Context) {
	p, ok := currentPrincipal(c)
	if !ok {
		return
	}
	if err := h.Service.DeleteOrder(c.Request.Context(), p, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "Repair order deleted"})
}

// ExportOrder xuất tiến độ đơn ra file Excel.
func (h *RepairHandler) ExportOrder(c *gin.Context) {
	p, ok := currentPrincipal(c)
	if !ok {
		return
	}
	detail, err := h.Service.Detail(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	f, filename, err := report.OrderWorkbook(detail.Order, detail.Items, detail.Progress, detail.Workers)
	if err != nil {
		h.Logger.Error("Failed to build workbook", zap.String("order_id", detail.Order.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build workbook"})
		return
	}
	defer f.Close()

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if err := f.Write(c.Writer); err != nil {
		h.Logger.Error("Failed to write workbook", zap.String("order_id", detail.Order.ID), zap.Error(err))
	}
}
