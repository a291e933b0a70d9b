package main

import (
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/campustime/timetable-api/api/swagger"
	"github.com/campustime/timetable-api/internal/handler"
	"github.com/campustime/timetable-api/internal/middleware"
	"github.com/campustime/timetable-api/internal/models"
	"github.com/campustime/timetable-api/internal/repository"
	"github.com/campustime/timetable-api/internal/service"
	"github.com/campustime/timetable-api/pkg/cache"
	"github.com/campustime/timetable-api/pkg/config"
	"github.com/campustime/timetable-api/pkg/database"
	"github.com/campustime/timetable-api/pkg/export"
	"github.com/campustime/timetable-api/pkg/logger"
	corsmiddleware "github.com/campustime/timetable-api/pkg/middleware/cors"
	reqidmiddleware "github.com/campustime/timetable-api/pkg/middleware/requestid"
)

// @title CampusTime Timetable API
// @version 1.0.0
// @description Automatic weekly timetable generation and management for academic groups
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close()

	validate := validator.New()

	groupRepo := repository.NewGroupRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	venueRepo := repository.NewVenueRepository(db)
	lecturerRepo := repository.NewLecturerRepository(db)
	timetableRepo := repository.NewTimetableRepository(db)
	userRepo := repository.NewUserRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	grid, err := gridFromConfig(cfg.Timetable)
	if err != nil {
		logr.Sugar().Fatalw("invalid timetable grid config", "error", err)
	}

	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	generationSvc := service.NewGenerationService(
		groupRepo, subjectRepo, venueRepo, timetableRepo, cacheRepo, metricsSvc,
		validate, logr,
		service.GenerationConfig{
			Grid:                  grid,
			SupportingDepartments: cfg.Timetable.SupportingDepartments,
		},
	)
	scoreSvc := service.NewScoreService(timetableRepo, subjectRepo, logr, service.ScoreConfig{
		GapWeight:          cfg.Scorer.GapWeight,
		DistributionWeight: cfg.Scorer.DistributionWeight,
		PreferenceWeight:   cfg.Scorer.PreferenceWeight,
		MaxGapMinutes:      cfg.Scorer.MaxGapMinutes,
		Days:               grid.Days,
	})
	timetableSvc := service.NewTimetableService(
		timetableRepo, groupRepo, subjectRepo, venueRepo, lecturerRepo,
		cacheRepo, export.NewPDFExporter(), export.NewCSVExporter(),
		validate, logr,
		service.TimetableConfig{CacheTTL: cfg.Timetable.CacheTTL},
	)

	authHandler := handler.NewAuthHandler(authSvc)
	timetableHandler := handler.NewTimetableHandler(generationSvc, timetableSvc, scoreSvc)
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
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)

	timetables := api.Group("/timetables", middleware.JWT(authSvc))
	timetables.GET("", timetableHandler.List)
	timetables.GET("/:id", timetableHandler.Get)
	timetables.GET("/:id/score", timetableHandler.Score)
	timetables.GET("/:id/export", timetableHandler.Export)

	staff := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin)
	timetables.POST("/generate", staff, timetableHandler.Generate)
	timetables.POST("/:id/assignments", staff, timetableHandler.ManualAssign)
	timetables.PATCH("/:id/slots/:slotId/lock", staff, timetableHandler.LockSlot)
	timetables.POST("/:id/publish", staff, timetableHandler.Publish)
	timetables.DELETE("/:id", staff, timetableHandler.Delete)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

// gridFromConfig translates the configured day count and window ranges into
// the engine grid.
func gridFromConfig(cfg config.TimetableConfig) (service.GridConfig, error) {
	grid := service.GridConfig{}
	if cfg.Days < 1 || cfg.Days > 5 {
		return grid, fmt.Errorf("teaching days must be between 1 and 5, got %d", cfg.Days)
	}
	for day := models.Monday; day < models.Monday+cfg.Days; day++ {
		grid.Days = append(grid.Days, day)
	}
	for _, raw := range cfg.Windows {
		window, err := models.ParseWindow(raw)
		if err != nil {
			return grid, fmt.Errorf("window %q: %w", raw, err)
		}
		grid.Windows = append(grid.Windows, window)
	}
	if len(grid.Windows) == 0 {
		return grid, fmt.Errorf("at least one teaching window is required")
	}
	return grid, nil
}
