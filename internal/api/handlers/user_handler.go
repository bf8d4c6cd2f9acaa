// server/internal/api/handlers/user_handler.go
package handlers

import (
	"net/http"

	"garage-repair-api-server/internal/service"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	Service *service.UserService
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type CreateUserRequest struct {
	Username    string `json:"username" binding:"required"`
	Password    string `json:"password" binding:"required"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role" binding:"required"` // admin, sales, leads, worker, paint
	WorkerID    string `json:"worker_id"`               // bắt buộc với worker và paint
}

func (h *UserHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	token, user, err := h.Service.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user":  user,
	})
}

func (h *UserHandler) CreateUser(c *gin.Context) {
	p, ok := currentPrincipal(c)
	if !ok {
		return
	}
	var req CreateUserRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.Service.CreateUser(c.Request.Context(), p, service.CreateUserInput{
		Username:    req.Username,
		Password:    req.Password,
		DisplayName: req.DisplayName,
		Role:        req.Role,
		WorkerID:    req.WorkerID,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"status":  "success",
		"message": "User created successfully",
		"user":    user,
	})
}
