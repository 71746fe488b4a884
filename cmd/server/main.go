package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"raid-loot/backend/config"
	"raid-loot/backend/internal/api/handler"
	"raid-loot/backend/internal/api/router"
	"raid-loot/backend/internal/repository"
	"raid-loot/backend/internal/service"
	"raid-loot/backend/pkg/database"
	"raid-loot/backend/pkg/jwt"
	applogger "raid-loot/backend/pkg/logger"
	"raid-loot/backend/pkg/redis"
)

func main() {
	configPath := flag.String("config", "", "配置文件路径（缺省时查找 ./config/config.yaml）")
	flag.Parse()

	// 1. 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("应用启动中...",
		zap.Int("port", cfg.Server.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.String("log_level", cfg.Log.Level),
	)

	// 3. 连接数据库并执行迁移
	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}
	logger.Info("数据库连接成功")

	if err := database.RunMigrations(db, cfg.Database.Driver, logger); err != nil {
		logger.Fatal("数据库迁移失败", zap.Error(err))
	}

	// 4. 连接 Redis（可选：未启用或连接失败时降级为单实例模式）
	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb, err = redis.NewClient(&cfg.Redis, logger)
		if err != nil {
			logger.Warn("Redis 连接失败，写锁退化为进程内锁，Token 黑名单不可用", zap.Error(err))
			rdb = nil
		}
	}

	var (
		locker    service.WriteLocker
		blacklist service.TokenBlacklist
	)
	if rdb != nil {
		locker = service.NewRedisLocker(rdb, &cfg.Loot, logger)
		blacklist = rdb
	} else {
		locker = service.NewLocalLocker()
	}

	// 5. 初始化 JWT 管理器与外部配装清单客户端
	jwtMgr := jwt.NewManager(&cfg.Auth)
	source := service.NewGearListSource(&cfg.Gear, logger)

	// 6. 依赖注入: Repository → Service → Handler
	repo := repository.NewRepository(db)
	svc := service.NewService(repo, jwtMgr, locker, source, blacklist, logger)
	h := handler.NewHandler(svc)

	// 6.1 名单为空时创建初始管理员
	bootCtx, bootCancel := context.WithTimeout(context.Background(), 10*time.Second)
	err = svc.Member.EnsureAdmin(bootCtx, cfg.Auth.BootstrapAdminName, cfg.Auth.BootstrapAdminPIN)
	bootCancel()
	if err != nil {
		logger.Fatal("创建初始管理员失败", zap.Error(err))
	}

	// 7. 初始化路由
	engine := router.Setup(cfg, h, jwtMgr, rdb, db, logger)

	// 8. 启动 HTTP 服务器（优雅关闭）
	// 写超时需覆盖外部配装清单的获取时间
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Gear.FetchTimeout*time.Duration(cfg.Gear.RetryCount+1) + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("HTTP 服务器已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP 服务器异常", zap.Error(err))
		}
	}()

	// 9. 监听系统信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("收到关闭信号，开始优雅关闭...", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}

	// 关闭数据库连接
	if sqlDB, _ := db.DB(); sqlDB != nil {
		sqlDB.Close()
	}

	// 关闭 Redis 连接
	if rdb != nil {
		rdb.Close()
	}

	logger.Info("服务器已关闭")
}
