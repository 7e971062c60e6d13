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
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/sucaihub/backend/internal/cache"
	"github.com/sucaihub/backend/internal/config"
	"github.com/sucaihub/backend/internal/database"
	"github.com/sucaihub/backend/internal/handler"
	"github.com/sucaihub/backend/internal/logger"
	"github.com/sucaihub/backend/internal/middleware"
	"github.com/sucaihub/backend/internal/models"
	"github.com/sucaihub/backend/internal/ratelimit"
	"github.com/sucaihub/backend/internal/service"
	"github.com/sucaihub/backend/internal/tasks"
	"github.com/sucaihub/backend/pkg/jwt"
)

// 版本信息（构建时注入）
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// .env 可选，本地开发用
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("加载配置失败: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Server.Mode); err != nil {
		fmt.Printf("初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("素材汇后端启动中...",
		zap.String("version", Version),
		zap.String("build_time", BuildTime))

	if err := database.Init(cfg); err != nil {
		logger.Fatal("初始化数据库失败", zap.Error(err))
	}
	defer database.Close()

	if err := database.AutoMigrate(
		&models.User{},
		&models.PointsRecord{},
		&models.RechargeOrder{},
		&models.RechargeCallback{},
		&models.RechargePackage{},
		&models.VipPackage{},
		&models.VipPrivilege{},
		&models.Notification{},
	); err != nil {
		logger.Fatal("同步表结构失败", zap.Error(err))
	}

	// Redis 可选：不可用时限流与分布式锁退化为单机模式
	if err := cache.Init(cfg); err != nil {
		logger.Warn("Redis 初始化失败，降级为单机模式", zap.Error(err))
	}
	defer cache.Close()

	jwt.Init(cfg.Auth.JWTSecret)

	// 空表时写入默认充值套餐
	if err := service.NewRechargePackageService().InitDefaultPackages(); err != nil {
		logger.Warn("初始化默认套餐失败", zap.Error(err))
	}

	taskManager := tasks.GetManager()
	tasks.RegisterAll(taskManager)
	taskManager.Start()
	defer taskManager.Stop()

	gin.SetMode(cfg.Server.Mode)
	router := setupRouter(cfg)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("服务器启动",
			zap.Int("port", cfg.Server.Port),
			zap.String("mode", cfg.Server.Mode))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("服务器启动失败", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("服务器正在关闭...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("服务器强制关闭", zap.Error(err))
	}
	logger.Info("服务器已关闭")
}

// newSMSLimiter Redis 可用时用共享状态，否则退化为进程内存
func newSMSLimiter(cfg *config.Config) *ratelimit.Limiter {
	limits := ratelimit.LimitsFromConfig(cfg.SMS)
	if cache.IsConnected() {
		client := cache.GetClient()
		return ratelimit.NewLimiter(
			ratelimit.NewRedisStore(client, "phone"),
			ratelimit.NewRedisStore(client, "ip"),
			limits)
	}
	return ratelimit.NewLimiter(ratelimit.NewMemoryStore(), ratelimit.NewMemoryStore(), limits)
}

// setupRouter 设置路由
func setupRouter(cfg *config.Config) *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.CORSMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", handler.HealthCheck)
	router.GET("/api/health", handler.HealthCheck)

	sms := handler.NewSMSHandler(newSMSLimiter(cfg))

	api := router.Group("/api")
	{
		// 认证（无需 JWT）
		auth := api.Group("/auth")
		{
			auth.POST("/admin/login", handler.AdminLogin)
			auth.POST("/sms/send", sms.SendCode)
			auth.POST("/sms/login", sms.Login)
			auth.POST("/logout", handler.Logout)
		}

		// 公开接口
		api.GET("/recharge/packages", handler.GetRechargePackages)
		api.GET("/vip/packages", handler.GetVipPackages)
		api.POST("/payment/callback/:channel", handler.PaymentCallback)

		// 需要认证的用户接口
		authenticated := api.Group("")
		authenticated.Use(middleware.AuthMiddleware())
		{
			authenticated.GET("/me", handler.GetCurrentUser)

			points := authenticated.Group("/points")
			{
				points.GET("/info", handler.GetPointsInfo)
				points.GET("/records", handler.GetPointsRecords)
				points.GET("/expiring", handler.GetExpiringPoints)
				points.GET("/expiry-details", handler.GetPointsExpiryDetails)
				points.GET("/expiry-reminder", handler.GetExpiryReminder)
			}

			recharge := authenticated.Group("/recharge")
			{
				recharge.POST("/orders", handler.CreateRechargeOrder)
				recharge.GET("/orders", handler.GetMyOrders)
				recharge.GET("/orders/:order_id", handler.GetOrder)
				recharge.POST("/orders/:order_id/cancel", handler.CancelMyOrder)
			}

			vip := authenticated.Group("/vip")
			{
				vip.GET("/info", handler.GetVipInfo)
				vip.GET("/privileges", handler.GetVipPrivileges)
				vip.POST("/activate", handler.ActivateVip)
			}

			notifications := authenticated.Group("/notifications")
			{
				notifications.GET("", handler.GetNotifications)
				notifications.POST("/:id/read", handler.MarkNotificationRead)
				notifications.POST("/read-all", handler.MarkAllNotificationsRead)
			}
		}

		// 管理后台
		admin := api.Group("/admin")
		admin.Use(middleware.AuthMiddleware(), middleware.AdminMiddleware())
		{
			admin.GET("/orders", handler.AdminGetOrders)
			admin.GET("/packages", handler.AdminGetPackages)
			admin.POST("/packages", handler.AdminCreatePackage)
			admin.PUT("/packages/:package_id", handler.AdminUpdatePackage)
			admin.POST("/packages/:package_id/status", handler.AdminSetPackageStatus)

			admin.POST("/vip/packages", handler.AdminCreateVipPackage)
			admin.POST("/vip/users/:user_id/activate", handler.AdminActivateVip)

			reconciliation := admin.Group("/reconciliation")
			{
				reconciliation.POST("/run", handler.AdminReconcile)
				reconciliation.GET("/anomalous", handler.AdminGetAnomalousOrders)
				reconciliation.POST("/orders/:order_id/autofix", handler.AdminAutoFix)
				reconciliation.GET("/duplicates", handler.AdminGetDuplicatePayments)
				reconciliation.GET("/stats", handler.AdminGetReconciliationStats)
				reconciliation.POST("/cancel-expired", handler.AdminCancelExpiredOrders)
			}

			admin.GET("/tasks", handler.AdminGetTaskStatus)
			admin.POST("/tasks/:name/run", handler.AdminRunTask)
		}
	}

	return router
}
