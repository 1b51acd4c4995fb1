package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-timetable-api/api/swagger"
	"github.com/noah-isme/sma-timetable-api/internal/handler"
	internalmiddleware "github.com/noah-isme/sma-timetable-api/internal/middleware"
	"github.com/noah-isme/sma-timetable-api/internal/repository"
	"github.com/noah-isme/sma-timetable-api/internal/scheduler"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	"github.com/noah-isme/sma-timetable-api/pkg/cache"
	"github.com/noah-isme/sma-timetable-api/pkg/config"
	"github.com/noah-isme/sma-timetable-api/pkg/database"
	"github.com/noah-isme/sma-timetable-api/pkg/jobs"
	"github.com/noah-isme/sma-timetable-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-timetable-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-timetable-api/pkg/middleware/requestid"
)

// @title School Timetable API
// @version 1.0.0
// @description Teacher availability, conflict-free timetables and automatic slot assignment.
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) (err error) {
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer func() { err = multierr.Append(err, db.Close()) }()

	if err := database.Migrate(ctx, db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	redisClient, redisErr := cache.NewRedis(ctx, cfg.Redis)
	if redisErr != nil {
		logr.Warn("redis unavailable, caching disabled and generation locks are process local", zap.Error(redisErr))
		redisClient = nil
	} else {
		defer func() { err = multierr.Append(err, redisClient.Close()) }()
	}

	engine, err := buildEngine(cfg.Scheduler)
	if err != nil {
		return fmt.Errorf("scheduler config: %w", err)
	}

	validate := validator.New()
	metrics := service.NewMetricsService()

	teacherRepo := repository.NewTeacherRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	availabilityRepo := repository.NewAvailabilityRepository(db)
	timetableRepo := repository.NewTimetableRepository(db)

	cacheSvc := service.NewCacheService(
		repository.NewCacheRepository(redisClient, logr),
		metrics,
		cfg.Cache.TimetableTTL,
		logr,
		cfg.Cache.Enabled && redisClient != nil,
	)

	locks := lockBackend(redisClient)

	teacherSvc := service.NewTeacherService(teacherRepo, cacheSvc, validate, logr)
	subjectSvc := service.NewSubjectService(subjectRepo, teacherRepo, timetableRepo, db, cacheSvc, validate, logr)
	studentSvc := service.NewStudentService(studentRepo, timetableRepo, cacheSvc, validate, logr)
	availabilitySvc := service.NewAvailabilityService(availabilityRepo, teacherRepo, timetableRepo, db, validate, logr)
	timetableSvc := service.NewTimetableService(timetableRepo, subjectRepo, studentRepo, teacherRepo, availabilityRepo, db, service.TimetableServiceConfig{
		CheckRooms: cfg.Scheduler.CheckRooms,
		CacheTTL:   cfg.Cache.TimetableTTL,
		Cache:      cacheSvc,
		Metrics:    metrics,
		Validator:  validate,
		Logger:     logr,
	})
	generatorSvc := service.NewTimetableGeneratorService(timetableRepo, subjectRepo, studentRepo, teacherRepo, availabilityRepo, locks, db, service.GeneratorConfig{
		Engine:    engine,
		Rooms:     cfg.Scheduler.Rooms,
		LockTTL:   cfg.Scheduler.LockTTL,
		Cache:     cacheSvc,
		Metrics:   metrics,
		Validator: validate,
		Logger:    logr,
	})

	tracker := jobs.NewTracker(0)
	queue := jobs.NewQueue("timetable-generation", generatorSvc.HandleJob, jobs.QueueConfig{
		Workers:    cfg.Jobs.Workers,
		BufferSize: cfg.Jobs.Buffer,
		MaxRetries: cfg.Jobs.Retries,
		RetryDelay: time.Second,
		Logger:     logr,
		Tracker:    tracker,
	})
	generatorSvc.UseQueue(queue, tracker)
	queue.Start(ctx)
	defer queue.Stop()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(logger.Recovery(logr))
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics, "/metrics"))
	r.Use(internalmiddleware.WithResponseMeta())

	checks := map[string]handler.Pinger{"postgres": db}
	if redisClient != nil {
		checks["redis"] = cache.Pinger{Client: redisClient}
	}
	metricsHandler := handler.NewMetricsHandler(metrics, checks, logr)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.Register(r.Group(cfg.APIPrefix), handler.Handlers{
		Teachers:     handler.NewTeacherHandler(teacherSvc),
		Subjects:     handler.NewSubjectHandler(subjectSvc),
		Students:     handler.NewStudentHandler(studentSvc, timetableSvc),
		Availability: handler.NewAvailabilityHandler(availabilitySvc),
		Timetable:    handler.NewTimetableHandler(timetableSvc),
		Generation:   handler.NewGenerationHandler(generatorSvc),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

type lockRepository interface {
	TryAcquire(ctx context.Context, name string, ttl time.Duration) (func(context.Context) error, bool, error)
}

func lockBackend(client *redis.Client) lockRepository {
	if client == nil {
		return repository.NewLocalLockRepository()
	}
	return repository.NewRedisLockRepository(client, "timetable:lock:")
}

func buildEngine(cfg config.SchedulerConfig) (*scheduler.Engine, error) {
	days, err := scheduler.ParseDays(cfg.Days)
	if err != nil {
		return nil, err
	}
	var times []scheduler.TimeRange
	if cfg.Period > 0 {
		times, err = scheduler.ParsePeriodGrid(cfg.DayHours, cfg.Period, cfg.Breaks)
	} else {
		times, err = scheduler.ParseTimeRanges(cfg.Slots)
	}
	if err != nil {
		return nil, err
	}
	catalog, err := scheduler.NewCatalog(days, times)
	if err != nil {
		return nil, err
	}
	return scheduler.NewEngine(scheduler.EngineConfig{
		Catalog:    catalog,
		Rooms:      cfg.Rooms,
		CheckRooms: cfg.CheckRooms,
	}), nil
}
