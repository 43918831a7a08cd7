package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/langchou/runtrack/internal/api/handlers"
	"github.com/langchou/runtrack/internal/config"
	"github.com/langchou/runtrack/internal/device"
	"github.com/langchou/runtrack/internal/repository"
	"github.com/langchou/runtrack/internal/service"
	"github.com/langchou/runtrack/internal/snapshot"
	"github.com/langchou/runtrack/pkg/ws"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	logger := initLogger(cfg.Debug)
	defer logger.Sync()

	logger.Info("Starting Runtrack", zap.String("port", cfg.ServerPort))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 连接数据库
	db, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Failed to connect database", zap.Error(err))
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}
	logger.Info("Database migrated successfully")

	store := repository.NewStore(
		repository.NewUserRepository(db.Pool),
		repository.NewRunRepository(db.Pool),
	)

	// Redis 可选，用于多实例共享实时状态
	redisClient, err := repository.ConnectRedis(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to connect redis", zap.Error(err))
	}
	if redisClient != nil {
		defer redisClient.Close()
		logger.Info("Live state relay enabled", zap.String("redis", cfg.RedisAddr))
	}

	// 创建 WebSocket Hub
	wsHub := ws.NewHub(logger, redisClient)

	// 地图快照
	var snapshotter snapshot.Snapshotter = snapshot.Nop{}
	if cfg.MapSnapshots {
		snapshotter = snapshot.NewPlotRenderer(logger, cfg.MapSnapshotDir)
		logger.Info("Map snapshots enabled", zap.String("dir", cfg.MapSnapshotDir))
	}

	// 手机数据源
	devices := device.NewRegistry(logger)

	// 创建跑步服务
	runService := service.NewRunService(
		service.OptionsFromConfig(cfg),
		logger,
		devices,
		store,
		snapshotter,
		wsHub,
	)

	// 新连接先收到当前状态，需在 Hub 启动前设置
	wsHub.SetInitDataProvider(func(userID string) interface{} {
		ls, err := runService.State(userID)
		if err != nil {
			return nil
		}
		return ls
	})
	go wsHub.Run(ctx)

	handler := handlers.NewHandler(logger, runService, devices, store, wsHub)

	// 设置 Gin 模式
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	handler.RegisterRoutes(router)

	server := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.String("addr", server.Addr))

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// 进行中的跑步不保存
	runService.Shutdown()
	devices.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	cancel()

	logger.Info("Server exited")
}

// initLogger 初始化日志
func initLogger(debug bool) *zap.Logger {
	var config zap.Config
	if debug {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config = zap.NewProductionConfig()
	}

	logger, _ := config.Build()
	return logger
}

// corsMiddleware CORS 中间件
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
