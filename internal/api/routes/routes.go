// server/internal/api/routes/routes.go
package routes

import (
	"context"
	"net/http"
	"time"

	"garage-repair-api-server/config"
	"garage-repair-api-server/internal/api/handlers"
	"garage-repair-api-server/internal/api/middleware"
	"garage-repair-api-server/internal/auth"
	"garage-repair-api-server/internal/metrics"
	"garage-repair-api-server/internal/permission"
	"garage-repair-api-server/internal/service"
	"garage-repair-api-server/internal/socket"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HealthCheck kiểm tra kết nối tới database.
type HealthCheck func(ctx context.Context) error

// SetupRouter nhận vào các thành phần phụ thuộc và thiết lập các route
func SetupRouter(
	cfg config.Config,
	logger *zap.Logger,
	tokens *auth.TokenManager,
	repairService *service.RepairService,
	userService *service.UserService,
	wsHub *socket.Hub,
	collector *metrics.Collector,
	health HealthCheck,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Metrics(collector))

	corsCfg := cors.DefaultConfig()
	if len(cfg.CORS.AllowOrigins) > 0 {
		corsCfg.AllowOrigins = cfg.CORS.AllowOrigins
	} else {
		corsCfg.AllowAllOrigins = true
	}
	corsCfg.AddAllowHeaders("Authorization", "X-Request-ID")
	corsCfg.AddExposeHeaders("Content-Disposition", "X-Request-ID")
	router.Use(cors.New(corsCfg))
	router.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/api/v1/ws", "/api/v1/repairs/images/"})))

	// Khởi tạo các handlers
	repairHandler := &handlers.RepairHandler{Service: repairService, Logger: logger}
	workerHandler := &handlers.WorkerHandler{Service: repairService}
	userHandler := &handlers.UserHandler{Service: userService}
	webSocketHandler := &handlers.WebSocketHandler{Hub: wsHub, Tokens: tokens, Logger: logger}

	router.GET("/healthz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if health != nil {
			if err := health(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(collector.Handler()))

	apiV1 := router.Group("/api/v1")
	{
		// Route cho WebSocket, token truyền qua query
		apiV1.GET("/ws", webSocketHandler.ServeWs)

		// === CÁC ROUTE KHÔNG YÊU CẦU XÁC THỰC ===
		authRoutes := apiV1.Group("/auth")
		{
			authRoutes.POST("/login", userHandler.Login)
		}

		// === CÁC ROUTE YÊU CẦU XÁC THỰC (PROTECTED) ===
		// Quyền chi tiết theo hạng mục được kiểm tra ở tầng service.
		protected := apiV1.Group("/")
		protected.Use(middleware.Authenticate(tokens))
		{
			// Quản lý tài khoản, chỉ admin
			protected.POST("/users", middleware.Authorize(permission.RoleAdmin), userHandler.CreateUser)

			workers := protected.Group("/workers")
			{
				workers.GET("", workerHandler.ListWorkers)
				workers.POST("", middleware.Authorize(permission.RoleAdmin), workerHandler.CreateWorker)
			}

			repairs := protected.Group("/repairs")
			{
				repairs.GET("", repairHandler.ListOrders)
				repairs.POST("", repairHandler.CreateOrder)

				repairs.GET("/:id/detail", repairHandler.GetDetail)
				repairs.GET("/:id/export", repairHandler.ExportOrder)
				repairs.POST("/:id/items", repairHandler.AddItem)
				repairs.PUT("/:id/parts-waiting",
					middleware.Authorize(permission.RoleAdmin, permission.RolePaintLead, permission.RoleWorkerLead),
					repairHandler.SetPartsWaiting)
				repairs.DELETE("/:id", middleware.Authorize(permission.RoleAdmin), repairHandler.DeleteOrder)

				// Hạng mục sửa chữa
				items := repairs.Group("/items/:itemId")
				{
					items.POST("/workers", repairHandler.AssignWorker)
					items.DELETE("/workers/:workerId", repairHandler.UnassignWorker)
					items.POST("/start", repairHandler.StartItem)
					items.POST("/complete", repairHandler.CompleteItem)
					items.POST("/transfer", repairHandler.TransferItem)
					items.POST("/priority-today", repairHandler.MarkPriorityToday)
					items.GET("/images", repairHandler.ListItemImages)
				}

				repairs.GET("/images/:imageId/raw", repairHandler.GetRawImage)
			}
		}
	}

	return router
}
