package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"raid-loot/backend/config"
	"raid-loot/backend/internal/api/handler"
	"raid-loot/backend/internal/api/middleware"
	"raid-loot/backend/internal/model"
	"raid-loot/backend/pkg/jwt"
	"raid-loot/backend/pkg/redis"
)

// Setup 初始化并返回 Gin 路由引擎
// rdb 可为 nil（未启用 Redis）
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, db *gorm.DB, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	// ── 健康检查 ──
	r.GET(middleware.HealthRoute, healthCheck(db, rdb))

	// 角色组合
	admin := middleware.RoleAuth(model.RoleAdmin)
	manager := middleware.RoleAuth(model.RoleAdmin, model.RoleManager)

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		// 认证模块（无需认证）
		v1.POST("/auth/login",
			middleware.RateLimit(rdb, cfg.RateLimit.LoginPerMinute, time.Minute),
			h.Auth.Login)

		// 需要认证的路由
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(jwtMgr, rdb))
		{
			authorized.POST("/auth/logout", h.Auth.Logout)
			authorized.GET("/auth/me", h.Auth.Me)

			// 成员模块
			members := authorized.Group("/members")
			{
				members.GET("", h.Member.List)
				members.GET("/:id", h.Member.Get)
				members.POST("", admin, h.Member.Create)
				members.PUT("/:id", admin, h.Member.Update)
				members.DELETE("/:id", admin, h.Member.Delete)
				members.POST("/:id/reset-pin", admin, h.Member.ResetPIN)
				members.POST("/import", admin, h.Member.Import)

				// 配装：本人或 manager/admin（Service 层鉴权）
				members.POST("/:id/gear/import",
					middleware.RateLimit(rdb, cfg.RateLimit.ImportPerMinute, time.Minute),
					h.Gear.Import)
				members.PUT("/:id/gear/:slot/acquired", h.Gear.SetAcquired)
				members.PUT("/:id/gear/:slot/upgrade", h.Gear.SetUpgrade)
			}

			// 战利品模块
			loot := authorized.Group("/loot")
			{
				loot.GET("/eligibility", h.Loot.Eligibility)
				loot.GET("/extra-counts", h.Loot.ExtraCounts)
				loot.GET("/assignments", h.Loot.ListAssignments)
				loot.POST("/assignments", manager, h.Loot.Assign)
				loot.POST("/assignments/:id/undo", manager, h.Loot.Undo)
			}

			// 周次模块
			weeks := authorized.Group("/weeks")
			{
				weeks.GET("", h.Week.List)
				weeks.GET("/current", h.Week.Current)
				weeks.POST("", manager, h.Week.Create)
				weeks.PUT("/:number/current", manager, h.Week.SetCurrent)
				weeks.DELETE("/:number", manager, h.Week.Delete)
			}

			// 导出模块
			export := authorized.Group("/export")
			{
				export.GET("/weeks/:number", h.Export.ExportWeek)
				export.GET("/calendar.ics", h.Export.Calendar)
			}
		}
	}

	return r
}

// healthCheck 检查数据库与 Redis 连通性
func healthCheck(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := gin.H{"status": "ok", "database": "ok"}
		code := 200

		if db != nil {
			sqlDB, err := db.DB()
			if err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
				status["status"] = "degraded"
				status["database"] = "unavailable"
				code = 503
			}
		}

		if rdb == nil {
			status["redis"] = "disabled"
		} else if err := rdb.Ping(c.Request.Context()); err != nil {
			status["redis"] = "unavailable"
		} else {
			status["redis"] = "ok"
		}

		c.JSON(code, status)
	}
}
