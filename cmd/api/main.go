package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "societyledger/api/swagger" // swagger docs
	"societyledger/internal/auth"
	"societyledger/internal/config"
	"societyledger/internal/database"
	"societyledger/internal/handler"
	"societyledger/internal/lock"
	"societyledger/internal/logger"
	"societyledger/internal/middleware"
	"societyledger/internal/notification"
	"societyledger/internal/repository"
	"societyledger/internal/service"
	"societyledger/internal/storage"
	"societyledger/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

// @title           Society Ledger API
// @version         1.0
// @description     Bill approval and expense tracking for housing societies.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zlog, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output})
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	if err := run(cfg, zlog); err != nil {
		zlog.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, zlog *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := middleware.SetupValidator(); err != nil {
		return err
	}

	db, err := database.NewConnection(cfg, zlog)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	rdb, err := database.NewRedis(cfg.Redis, zlog)
	if err != nil {
		return err
	}

	// Repository -> Service -> Handler
	txManager := repository.NewTransactionManager(db)
	userRepo := repository.NewUserRepository(db)
	societyRepo := repository.NewSocietyRepository(db)
	billRepo := repository.NewBillRepository(db)
	paymentRepo := repository.NewAdvancePaymentRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	invitationRepo := repository.NewInvitationRepository(db)

	scopes := service.NewAccessScopeService(userRepo, societyRepo)

	wsHub := websocket.NewHub(zlog)
	go wsHub.Run(ctx)

	senders := []notification.Sender{notification.NewHubSender(wsHub)}
	if cfg.Email.ServiceURL != "" {
		senders = append(senders, notification.NewEmailSender(cfg.Email))
	}
	var locker lock.Locker = lock.Nop{}
	if rdb != nil {
		senders = append(senders, notification.NewRedisSender(rdb, cfg.Redis.Channel))
		locker = lock.NewRedisLocker(rdb, cfg.Redis.LockTTL, zlog)
	}
	dispatcher := notification.NewDispatcher(
		service.NewRecipientResolver(societyRepo, userRepo),
		cfg.Notification.QueueSize, cfg.Notification.Workers, zlog, senders...,
	)
	dispatcher.Start()

	store, err := storage.New(ctx, cfg.Storage, zlog)
	if err != nil {
		return err
	}

	tokens := auth.NewTokenManager(cfg.JWT)

	userService := service.NewUserService(userRepo, societyRepo, auditRepo, txManager, scopes, tokens, zlog)
	societyService := service.NewSocietyService(societyRepo, userRepo, auditRepo, txManager, scopes)
	billService := service.NewBillService(billRepo, auditRepo, txManager, scopes, locker, dispatcher, cfg.Workflow, zlog)
	paymentService := service.NewAdvancePaymentService(paymentRepo, billRepo, auditRepo, txManager, scopes, cfg.Workflow, zlog)
	reportService := service.NewReportService(billRepo, societyRepo, scopes)
	auditService := service.NewAuditService(auditRepo)
	invitationService := service.NewInvitationService(invitationRepo, userRepo, societyRepo, auditRepo, txManager, tokens, dispatcher, cfg.Invitation, zlog)
	uploadService := service.NewUploadService(store, cfg.HTTP.MaxUploadSize, cfg.HTTP.MaxUploadFiles, zlog)

	if err := userService.SeedAdmin(ctx, cfg.Seed); err != nil {
		return err
	}

	authn := middleware.NewAuthenticator(tokens, scopes, cfg.IsProduction())

	userHandler := handler.NewUserHandler(userService, authn)
	societyHandler := handler.NewSocietyHandler(societyService)
	billHandler := handler.NewBillHandler(billService)
	paymentHandler := handler.NewAdvancePaymentHandler(paymentService)
	reportHandler := handler.NewReportHandler(reportService)
	auditHandler := handler.NewAuditHandler(auditService)
	invitationHandler := handler.NewInvitationHandler(invitationService, authn)
	// multipart overhead on top of the files themselves
	uploadHandler := handler.NewUploadHandler(uploadService, cfg.HTTP.MaxUploadSize*int64(cfg.HTTP.MaxUploadFiles)+1<<20)

	router := gin.New()
	router.Use(middleware.RequestID(), logger.GinMiddleware(zlog), logger.Recovery(zlog))
	if cfg.Telemetry.Enabled {
		router.Use(otelgin.Middleware(cfg.Telemetry.ServiceName))
	}

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept", logger.RequestIDKey}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})

	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, c, func(ctx context.Context, token string) (websocket.Subscription, error) {
			p, err := authn.Principal(ctx, token)
			if err != nil {
				return websocket.Subscription{}, err
			}
			if p.IsAdmin() {
				return websocket.Subscription{All: true}, nil
			}
			scope, err := scopes.Resolve(ctx, p)
			if err != nil {
				return websocket.Subscription{}, err
			}
			return websocket.Subscription{Societies: scope.IDs()}, nil
		})
	})

	if local, ok := store.(*storage.LocalStore); ok {
		router.Static("/uploads", local.Dir())
	}

	api := router.Group("/api")
	userHandler.RegisterPublicRoutes(api)
	invitationHandler.RegisterPublicRoutes(api)

	protected := api.Group("", authn.Authenticate())
	userHandler.RegisterRoutes(protected)
	societyHandler.RegisterRoutes(protected)
	billHandler.RegisterRoutes(protected)
	paymentHandler.RegisterRoutes(protected)
	reportHandler.RegisterRoutes(protected)
	auditHandler.RegisterRoutes(protected)
	invitationHandler.RegisterRoutes(protected)
	uploadHandler.RegisterRoutes(protected)

	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		zlog.Info("server listening", zap.String("addr", srv.Addr), zap.String("env", cfg.App.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}
	zlog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Warn("http shutdown", zap.Error(err))
	}
	if err := dispatcher.Close(shutdownCtx); err != nil {
		zlog.Warn("notification shutdown", zap.Error(err))
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	return nil
}
