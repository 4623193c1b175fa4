package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/NureSalohubAndrii/carvision/internal/analytics"
	"github.com/NureSalohubAndrii/carvision/internal/events"
	"github.com/NureSalohubAndrii/carvision/internal/reports"
	"github.com/NureSalohubAndrii/carvision/internal/telemetry"
	"github.com/NureSalohubAndrii/carvision/internal/users"
	"github.com/NureSalohubAndrii/carvision/internal/vehicles"
	"github.com/NureSalohubAndrii/carvision/pkg/common"
	"github.com/NureSalohubAndrii/carvision/pkg/config"
	"github.com/NureSalohubAndrii/carvision/pkg/database"
	"github.com/NureSalohubAndrii/carvision/pkg/locks"
	"github.com/NureSalohubAndrii/carvision/pkg/logger"
	"github.com/NureSalohubAndrii/carvision/pkg/middleware"
	"github.com/NureSalohubAndrii/carvision/pkg/redis"
	"github.com/NureSalohubAndrii/carvision/pkg/validation"
)

const (
	serviceName = "carvision-api"
	version     = "1.0.0"
)

func main() {
	cfg, err := config.Load(serviceName)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	if err := logger.Init(cfg.Server.Environment); err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer logger.Sync()

	if err := validation.RegisterCustomValidators(); err != nil {
		logger.Fatal("failed to register validators", zap.Error(err))
	}

	if err := database.RunMigrations(&cfg.Database); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	pool, err := database.NewPostgresPool(&cfg.Database)
	if err != nil {
		logger.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer database.Close(pool)

	redisClient, err := redis.NewRedisClient(&cfg.Redis)
	if err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer redisClient.Close()

	vehicleLocks := locks.NewKeyed()

	userRepo := users.NewRepository(pool)
	vehicleRepo := vehicles.NewRepository(pool)
	eventRepo := events.NewRepository(pool)
	telemetryRepo := telemetry.NewRepository(pool)
	analyticsRepo := analytics.NewRepository(pool)
	reportRepo := reports.NewRepository(pool)

	vehicleService := vehicles.NewService(vehicleRepo, userRepo, eventRepo, vehicleLocks)
	eventService := events.NewService(eventRepo, vehicleService, vehicleLocks)
	telemetryService := telemetry.NewService(telemetryRepo, vehicleService, eventRepo, redisClient, vehicleLocks)
	analyticsService := analytics.NewService(analyticsRepo)
	reportService := reports.NewService(reportRepo, redisClient)

	vehicleHandler := vehicles.NewHandler(vehicleService)
	eventHandler := events.NewHandler(eventService)
	telemetryHandler := telemetry.NewHandler(telemetryService)
	analyticsHandler := analytics.NewHandler(analyticsService)
	reportHandler := reports.NewHandler(reportService)

	var bridge *telemetry.MQTTBridge
	if cfg.MQTT.Enabled {
		bridge = telemetry.NewMQTTBridge(&cfg.MQTT, telemetryService)
		if err := bridge.Start(); err != nil {
			logger.Fatal("failed to start mqtt bridge", zap.Error(err))
		}
		defer bridge.Stop()
	}

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.Metrics(serviceName))
	router.Use(middleware.SecurityHeaders())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = strings.Split(cfg.Server.CORSOrigins, ",")
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Correlation-ID"}
	router.Use(cors.New(corsConfig))

	router.GET("/healthz", common.HealthCheckWithDeps(serviceName, version, map[string]func() error{
		"postgres": func() error { return pool.Ping(context.Background()) },
		"redis":    func() error { return redisClient.Ping(context.Background()).Err() },
	}))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := middleware.AuthMiddleware(cfg.JWT.Secret)

	api := router.Group("/api/v1")
	{
		v := api.Group("/vehicles")
		{
			v.POST("", auth, vehicleHandler.Create)
			v.GET("/high-risk", auth, vehicleHandler.ListHighRisk)
			v.GET("/vin/:vin", vehicleHandler.GetByVIN)
			v.GET("/:id", vehicleHandler.GetByID)
			v.PUT("/:id", auth, vehicleHandler.Update)
			v.GET("/:id/risk", vehicleHandler.GetRiskReport)
			v.POST("/:id/events", auth, eventHandler.Create)
			v.GET("/:id/events", eventHandler.List)
		}

		ev := api.Group("/events")
		{
			ev.PUT("/:id", auth, eventHandler.Update)
			ev.DELETE("/:id", auth, eventHandler.Delete)
		}

		// Device-facing endpoints authenticate at the broker/gateway level,
		// not with user JWTs.
		iot := api.Group("/iot")
		{
			iot.POST("/telemetry", telemetryHandler.Ingest)
			iot.POST("/sync/:vin", telemetryHandler.Sync)
			iot.GET("/config/:vin", telemetryHandler.GetConfig)
			iot.PUT("/config/:vin", telemetryHandler.UpdateConfig)
			iot.GET("/telemetry/:vin/latest", telemetryHandler.GetLatest)
			iot.GET("/telemetry/:vin/history", telemetryHandler.GetHistory)
			iot.GET("/telemetry/:vin/stats", telemetryHandler.GetStats)
			iot.GET("/tampering/:vin", telemetryHandler.GetTamperingHistory)
		}

		an := api.Group("/analytics")
		{
			an.GET("/vehicles/:id/anomalies", analyticsHandler.DetectAnomalies)
			an.GET("/vehicles/:id/forecast", analyticsHandler.Forecast)
		}

		api.POST("/reports/:vin", auth, reportHandler.Generate)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("forced shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}
