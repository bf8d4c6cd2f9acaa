// server/internal/api/handlers/response.go
package handlers

import (
	"net/http"

	"garage-repair-api-server/internal/api/middleware"
	"garage-repair-api-server/internal/apperr"
	"garage-repair-api-server/internal/permission"

	"github.com/gin-gonic/gin"
)

// respondError trả lỗi dạng {"error": "..."} với status code theo loại lỗi.
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(apperr.Status(err), gin.H{"error": err.Error()})
}

func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

func currentPrincipal(c *gin.Context) (permission.Principal, bool) {
	p, ok := middleware.Principal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
	}
	return p, ok
}
