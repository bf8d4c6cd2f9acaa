// server/cmd/api/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"garage-repair-api-server/config"
	"garage-repair-api-server/internal/api/routes"
	"garage-repair-api-server/internal/auth"
	"garage-repair-api-server/internal/database"
	"garage-repair-api-server/internal/evidence"
	"garage-repair-api-server/internal/logger"
	"garage-repair-api-server/internal/metrics"
	"garage-repair-api-server/internal/repository"
	"garage-repair-api-server/internal/service"
	"garage-repair-api-server/internal/socket"
	"garage-repair-api-server/internal/tracing"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

func main() {
	// 1. Load .env (nếu có) và cấu hình
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}
	cfg, err := config.LoadConfig("./config")
	if err != nil {
		log.Fatalf("Could not load config: %v", err)
	}

	// 2. Logger và tracing
	zapLogger, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLogger.Sync()

	ctx := context.Background()
	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to init tracing", zap.Error(err))
	}

	// 3. Kết nối MongoDB
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		zapLogger.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		zapLogger.Fatal("Failed to ping MongoDB", zap.Error(err))
	}
	zapLogger.Info("Connected to MongoDB", zap.String("db", cfg.Mongo.DBName))
	db := client.Database(cfg.Mongo.DBName)

	repo := repository.NewMongoRepository(db)
	if err := repo.EnsureIndexes(connectCtx); err != nil {
		zapLogger.Fatal("Failed to create indexes", zap.Error(err))
	}
	if err := database.SeedAdmin(connectCtx, repo, cfg.Seed, zapLogger); err != nil {
		zapLogger.Fatal("Failed to seed admin", zap.Error(err))
	}

	// 4. Nơi lưu ảnh: S3 nếu có bucket, không thì GridFS
	var store evidence.Store
	if cfg.S3.Bucket != "" {
		s3Store, err := evidence.NewS3Store(ctx, cfg.S3)
		if err != nil {
			zapLogger.Fatal("Failed to create S3 store", zap.Error(err))
		}
		store = s3Store
		zapLogger.Info("Evidence photos go to S3", zap.String("bucket", cfg.S3.Bucket))
	} else {
		gridStore, err := evidence.NewGridFSStore(db)
		if err != nil {
			zapLogger.Fatal("Failed to create GridFS store", zap.Error(err))
		}
		store = gridStore
		zapLogger.Info("Evidence photos go to GridFS", zap.String("bucket", evidence.GridFSBucketName))
	}

	// 5. Các service
	tokens, err := auth.NewTokenManager(cfg.JWT.Secret, cfg.JWT.Expiration)
	if err != nil {
		zapLogger.Fatal("Invalid JWT config", zap.Error(err))
	}
	wsHub := socket.NewHub(zapLogger)
	collector := metrics.New()

	repairService := service.NewRepairService(repo, store, zapLogger)
	repairService.Hub = wsHub
	repairService.Metrics = collector
	userService := service.NewUserService(repo, tokens, zapLogger)

	// 6. Router và HTTP server
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := routes.SetupRouter(cfg, zapLogger, tokens, repairService, userService, wsHub, collector,
		func(ctx context.Context) error { return client.Ping(ctx, nil) })

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zapLogger.Info("Starting API server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to run server", zap.Error(err))
		}
	}()

	// 7. Tắt server an toàn
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("Shutting down server...")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		zapLogger.Error("Failed to flush traces", zap.Error(err))
	}
	if err := client.Disconnect(shutdownCtx); err != nil {
		zapLogger.Error("Failed to disconnect MongoDB", zap.Error(err))
	}

	zapLogger.Info("Server exited")
}
