package main

import (
	"context"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/paulchi-intel/lsb-watermark-embedder/config"
	"github.com/paulchi-intel/lsb-watermark-embedder/handler"
	"github.com/paulchi-intel/lsb-watermark-embedder/middleware"
	"github.com/paulchi-intel/lsb-watermark-embedder/service"
	"github.com/paulchi-intel/lsb-watermark-embedder/utils"
	"go.uber.org/zap"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	BuildID   = "unknown"
	GitCommit = "unknown"
	GitBranch = "unknown"
)

func main() {
	// 加载配置
	cfg := config.New()

	// 初始化日志
	if err := utils.InitLogger(cfg.Server.Mode); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer utils.Sync()

	utils.Logger.Info("starting lsb-watermark-embedder server",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
		zap.String("git_branch", GitBranch))

	// 确保上传目录存在
	if err := os.MkdirAll(cfg.Upload.UploadDir, 0755); err != nil {
		utils.Logger.Fatal("failed to create upload directory", zap.Error(err))
	}

	// 初始化Redis
	redisService := service.NewRedisService(&cfg.Redis)
	ctx := context.Background()
	if !redisService.Enabled() {
		utils.Logger.Info("redis disabled, extraction cache off")
	} else if err := redisService.Ping(ctx); err != nil {
		utils.Logger.Warn("redis connection failed, cache disabled", zap.Error(err))
	} else {
		utils.Logger.Info("redis connected successfully")
	}
	defer redisService.Close()

	// 初始化快照存储
	store, err := service.NewSnapshotStore(cfg.Storage.SnapshotDir)
	if err != nil {
		utils.Logger.Fatal("failed to open snapshot store", zap.Error(err))
	}
	defer store.Close()

	codec := service.NewCodec(&cfg.Watermark)
	comparison := service.NewComparisonService(store, codec)

	// 初始化Handler
	watermarkHandler := handler.NewWatermarkHandler(cfg, redisService, codec, store)
	streamHandler := handler.NewStreamHandler(cfg, codec, store, comparison, func() (service.FrameSource, error) {
		return service.OpenSource(&cfg.Stream)
	})

	// 设置Gin模式
	gin.SetMode(cfg.Server.Mode)

	// 创建路由
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS())

	// 静态文件服务
	r.Static("/static", "./static")
	r.StaticFile("/", "./static/index.html")

	// 健康检查和版本信息
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"version": Version,
		})
	})

	r.GET("/version", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"version":    Version,
			"build_time": BuildTime,
			"build_id":   BuildID,
			"git_commit": GitCommit,
			"git_branch": GitBranch,
		})
	})

	// API路由
	api := r.Group("/api/v1")
	watermarkHandler.Register(api)
	streamHandler.Register(api)

	// 启动服务器
	utils.Logger.Info("server starting", zap.String("port", cfg.Server.Port))
	if err := r.Run(cfg.Server.Port); err != nil {
		utils.Logger.Fatal("failed to start server", zap.Error(err))
	}
}
