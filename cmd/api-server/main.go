package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/docstore-labs/deptdocs-api/api/swagger"
	"github.com/docstore-labs/deptdocs-api/internal/handler"
	"github.com/docstore-labs/deptdocs-api/internal/middleware"
	"github.com/docstore-labs/deptdocs-api/internal/models"
	"github.com/docstore-labs/deptdocs-api/internal/repository"
	"github.com/docstore-labs/deptdocs-api/internal/service"
	"github.com/docstore-labs/deptdocs-api/pkg/blobstore"
	"github.com/docstore-labs/deptdocs-api/pkg/config"
	"github.com/docstore-labs/deptdocs-api/pkg/database"
	"github.com/docstore-labs/deptdocs-api/pkg/logger"
	corsmiddleware "github.com/docstore-labs/deptdocs-api/pkg/middleware/cors"
	reqidmiddleware "github.com/docstore-labs/deptdocs-api/pkg/middleware/requestid"
	"github.com/docstore-labs/deptdocs-api/pkg/queue"
)

// @title DeptDocs API
// @version 1.0.0
// @description Department-scoped document store with role-based access control
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("database connection failed", "error", err)
	}
	defer db.Close()

	setupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	blobs, err := blobstore.New(setupCtx, cfg.MinIO)
	if err != nil {
		logr.Sugar().Fatalw("blob store connection failed", "error", err)
	}

	publisher := queue.NewPublisher(cfg.Kafka)
	defer publisher.Close() //nolint:errcheck

	fileRepo := repository.NewFileRepository(db)
	userRepo := repository.NewUserRepository(db)
	deptRepo := repository.NewDepartmentRepository(db)

	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(userRepo, cfg.JWT)
	userSvc := service.NewUserService(userRepo, deptRepo)
	deptSvc := service.NewDepartmentService(deptRepo)
	fileSvc := service.NewFileService(fileRepo, blobs, publisher, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	deptHandler := handler.NewDepartmentHandler(deptSvc)
	fileHandler := handler.NewFileHandler(fileSvc, metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "database unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	authRequired := middleware.JWT(authSvc)

	api.POST("/auth/login", authHandler.Login)
	api.GET("/auth/me", authRequired, authHandler.Me)

	users := api.Group("/users", authRequired)
	users.POST("", middleware.RequireRoles(models.RoleAdmin, models.RoleManager), userHandler.Create)
	users.GET("", middleware.RequireRoles(models.RoleAdmin, models.RoleManager), userHandler.List)
	users.GET("/:id", userHandler.Get)
	users.PATCH("/:id/role", middleware.RequireRoles(models.RoleAdmin), userHandler.UpdateRole)

	depts := api.Group("/departments", authRequired)
	depts.POST("", middleware.RequireRoles(models.RoleAdmin), deptHandler.Create)
	depts.GET("", deptHandler.List)
	depts.GET("/:id", deptHandler.Get)

	files := api.Group("/files", authRequired)
	files.POST("", fileHandler.Upload)
	files.GET("", fileHandler.List)
	files.GET("/:id", fileHandler.Get)
	files.GET("/:id/download", fileHandler.Download)
	files.DELETE("/:id", fileHandler.Delete)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
