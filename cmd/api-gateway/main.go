package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/sakchai-dev/school-grading-api/api/swagger"
	"github.com/sakchai-dev/school-grading-api/internal/handler"
	"github.com/sakchai-dev/school-grading-api/internal/middleware"
	"github.com/sakchai-dev/school-grading-api/internal/models"
	"github.com/sakchai-dev/school-grading-api/internal/repository"
	"github.com/sakchai-dev/school-grading-api/internal/service"
	"github.com/sakchai-dev/school-grading-api/pkg/cache"
	"github.com/sakchai-dev/school-grading-api/pkg/config"
	"github.com/sakchai-dev/school-grading-api/pkg/database"
	"github.com/sakchai-dev/school-grading-api/pkg/jobs"
	"github.com/sakchai-dev/school-grading-api/pkg/logger"
	corsmiddleware "github.com/sakchai-dev/school-grading-api/pkg/middleware/cors"
	reqidmiddleware "github.com/sakchai-dev/school-grading-api/pkg/middleware/requestid"
	"github.com/sakchai-dev/school-grading-api/pkg/token"
)

// @title School Grading API
// @version 0.1.0
// @description Grade aggregation, attendance eligibility and remediation workflow
// @BasePath /
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
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// the report cache degrades to recompute-on-read without redis
		logr.Warn("redis unavailable, report caching disabled", zap.Error(err))
		redisClient = nil
	}

	validate := validator.New()

	courseRepo := repository.NewCourseRepository(db)
	structureRepo := repository.NewStructureRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	scoreRepo := repository.NewScoreRepository(db)
	courseGradeRepo := repository.NewCourseGradeRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	userRepo := repository.NewUserRepository(db)

	notifications := jobs.NewQueue("notifications", func(ctx context.Context, job jobs.Job) error {
		logr.Info("notification dispatched",
			zap.String("job_id", job.ID),
			zap.String("type", job.Type),
			zap.Any("payload", job.Payload))
		return nil
	}, jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		BufferSize: cfg.Notifications.BufferSize,
		MaxRetries: cfg.Notifications.MaxRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
		Logger:     logr,
	})
	notifications.Start(context.Background())
	defer notifications.Stop()

	reportCache := service.NewReportCacheService(redisClient, cfg.Grading.SummaryCacheTTL, logr)

	structureSvc := service.NewStructureService(structureRepo, logr)
	attendanceSvc := service.NewAttendanceService(attendanceRepo, validate, logr)
	gradebookSvc := service.NewGradebookService(courseRepo, structureSvc, enrollmentRepo, scoreRepo, courseGradeRepo, attendanceSvc, reportCache, logr, cfg.Grading.PersistOnCompute)
	scoreSvc := service.NewScoreService(scoreRepo, structureSvc, gradebookSvc, validate, logr)
	remediationSvc := service.NewRemediationService(courseGradeRepo, scoreRepo, courseRepo, gradebookSvc, notifications, validate, logr)

	signer := token.NewCapabilitySigner(cfg.Webhook.CapabilitySecret, cfg.Webhook.TokenTTL)
	webhookSvc := service.NewWebhookService(signer, enrollmentRepo, scoreRepo, structureSvc, courseGradeRepo, gradebookSvc, validate, logr)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            "school-grading-api",
	})

	var exportSvc *service.ExportService
	if cfg.Exports.Enabled {
		exportSvc = service.NewExportService(gradebookSvc, courseRepo, cfg.Exports.SchoolName, logr)
	}

	metricsSvc := service.NewMetricsService()

	authHandler := handler.NewAuthHandler(authSvc)
	gradebookHandler := handler.NewGradebookHandler(gradebookSvc, exportSvc)
	scoreHandler := handler.NewScoreHandler(scoreSvc)
	attendanceHandler := handler.NewAttendanceHandler(attendanceSvc)
	remediationHandler := handler.NewRemediationHandler(remediationSvc)
	webhookHandler := handler.NewWebhookHandler(webhookSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)
	api.POST("/webhooks/scores", webhookHandler.Ingest)

	authed := api.Group("", middleware.JWT(authSvc))

	staff := authed.Group("", middleware.RequireRoles(models.RoleTeacher, models.RoleDeptHead, models.RoleAdmin))
	staff.GET("/courses/:courseId/grades", gradebookHandler.Report)
	staff.GET("/courses/:courseId/students/:studentId/grade", gradebookHandler.StudentGrade)
	staff.GET("/courses/:courseId/attendance/eligibility/:studentId", attendanceHandler.Eligibility)
	if exportSvc != nil {
		staff.GET("/courses/:courseId/grades/export/csv", gradebookHandler.ExportCSV)
		staff.GET("/courses/:courseId/grades/export/pdf", gradebookHandler.ExportPDF)
	}

	teachers := authed.Group("", middleware.RequireRoles(models.RoleTeacher, models.RoleAdmin))
	teachers.POST("/courses/:courseId/grades/recompute", gradebookHandler.Recompute)
	teachers.POST("/scores", scoreHandler.Upsert)
	teachers.POST("/scores/bulk", scoreHandler.Bulk)
	teachers.POST("/scores/group", scoreHandler.Group)
	teachers.POST("/scores/qualitative", scoreHandler.Qualitative)
	teachers.POST("/attendance", attendanceHandler.Mark)
	teachers.POST("/attendance/bulk", attendanceHandler.BulkMark)
	teachers.POST("/remediation/scores", remediationHandler.SaveScore)
	teachers.POST("/remediation/submit", remediationHandler.Submit)
	teachers.POST("/remediation/attendance", remediationHandler.ResolveAttendance)
	teachers.POST("/webhooks/tokens", webhookHandler.MintToken)

	heads := authed.Group("", middleware.RequireRoles(models.RoleDeptHead, models.RoleAdmin))
	heads.GET("/courses/:courseId/remediation", remediationHandler.Awaiting)
	heads.POST("/remediation/approve", remediationHandler.Approve)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
