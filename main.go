package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/campusware/school-admin-server/src/clock"
	"github.com/campusware/school-admin-server/src/config"
	"github.com/campusware/school-admin-server/src/database"
	"github.com/campusware/school-admin-server/src/handlers"
	"github.com/campusware/school-admin-server/src/logging"
	"github.com/campusware/school-admin-server/src/middleware"
	"github.com/campusware/school-admin-server/src/models"
	"github.com/campusware/school-admin-server/src/ratelimit"
	"github.com/campusware/school-admin-server/src/repositories"
	"github.com/campusware/school-admin-server/src/services"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize structured logging
	logging.Setup(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})

	log.Info().
		Int("port", cfg.Port).
		Str("log_level", cfg.LogLevel).
		Msg("starting server")

	// Initialize database
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	db, err := database.New(ctx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer db.Close()

	log.Info().Msg("database connected")

	// Initialize JWT secret in middleware
	if err := middleware.SetJWTSecret(cfg.JWTSecret); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize JWT secret")
	}

	clk := clock.System{}

	// Initialize services
	keyStore := repositories.NewPostgresKeyStore(db.GetPool())
	apiKeyService := services.NewAPIKeyService(keyStore, clk)
	auditService := services.NewAuditService(db.GetPool())
	staffService := services.NewStaffService(db.GetPool())
	studentService := services.NewStudentService(db.GetPool(), clk)
	assignmentService := services.NewAssignmentService(db.GetPool(), clk)
	referralService := services.NewReferralService(db.GetPool(), clk)
	iepService := services.NewIEPService(db.GetPool(), clk)
	parentService := services.NewParentService(db.GetPool(), clk)
	reportService := services.NewReportService(db.GetPool(), clk, studentService, assignmentService, referralService)
	retentionService := services.NewRetentionService(db.GetPool(), cfg.EnableAuditRetention, cfg.AuditRetention)

	// Auto-seed admin user on first run (if ADMIN_USERNAME and ADMIN_PASSWORD are set)
	if err := staffService.SeedInitialAdmin(context.Background(), cfg.AdminUsername, cfg.AdminPassword); err != nil {
		log.Error().Err(err).Msg("failed to seed initial admin user")
	}

	// Initialize email delivery for scheduled reports
	emailService := services.NewEmailService(
		cfg.MailgunDomain,
		cfg.MailgunAPIKey,
		cfg.MailgunFromEmail,
		cfg.MailgunFromName,
	)
	if emailService.Enabled() {
		log.Info().Str("domain", cfg.MailgunDomain).Msg("Mailgun email service initialized")
	} else {
		log.Warn().Msg("Mailgun credentials not configured - report delivery disabled")
	}

	// Initialize Analytics Service
	analyticsService, err := services.NewAnalyticsService(services.AnalyticsConfig{
		PostHogAPIKey: cfg.PostHogAPIKey,
		PostHogHost:   cfg.PostHogHost,
		Enabled:       cfg.PostHogEnabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize analytics service")
	}
	defer analyticsService.Close()

	if cfg.PostHogEnabled {
		log.Info().Str("host", cfg.PostHogHost).Msg("PostHog analytics enabled")
	} else {
		log.Info().Msg("PostHog analytics disabled")
	}

	reportScheduler := services.NewReportScheduler(reportService, emailService, analyticsService, cfg.EnableReportScheduler)

	// Per-key rate limiting with periodic eviction of idle buckets
	limiter := ratelimit.New(clk)

	// Start background services
	bgCtx, bgCancel := context.WithCancel(context.Background())
	auditService.Start(bgCtx)
	retentionService.Start(bgCtx)
	reportScheduler.Start(bgCtx)

	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-bgCtx.Done():
				return
			case <-ticker.C:
				if evicted := limiter.Cleanup(); evicted > 0 {
					log.Debug().Int("evicted", evicted).Msg("idle rate limit buckets evicted")
				}
			}
		}
	}()

	// Create Gin router
	router := gin.New()

	// Add middleware
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware())
	router.Use(gin.Recovery())

	// CORS for the staff admin frontend
	allowed := splitOrigins(cfg.AllowedOrigins)
	corsConfig := cors.Config{
		AllowOriginFunc: func(origin string) bool {
			if origin == "http://localhost" || strings.HasPrefix(origin, "http://localhost:") {
				return true
			}
			for _, a := range allowed {
				if origin == a {
					return true
				}
			}
			return false
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-API-Key"},
		ExposeHeaders:    []string{"Content-Length", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	router.Use(cors.New(corsConfig))

	// Setup routes
	setupRoutes(router, db, apiKeyService, auditService, analyticsService, staffService, studentService, assignmentService, referralService, iepService, parentService, reportService, limiter)

	// Create HTTP server with timeouts (protect from Slowloris attack)
	srv := &http.Server{
		Addr:              ":" + formatPort(cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Int("port", cfg.Port).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGUSR2)
	sig := <-sigChan

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	// Stop background services, then let the audit writer drain its queue
	reportScheduler.Stop()
	retentionService.Stop()
	bgCancel()
	auditService.Stop()

	// Graceful shutdown with timeout
	ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}

	log.Info().Msg("server shut down successfully")
}

func setupRoutes(
	router *gin.Engine,
	db *database.Database,
	apiKeyService *services.APIKeyService,
	auditService *services.AuditService,
	analyticsService *services.AnalyticsService,
	staffService *services.StaffService,
	studentService *services.StudentService,
	assignmentService *services.AssignmentService,
	referralService *services.ReferralService,
	iepService *services.IEPService,
	parentService *services.ParentService,
	reportService *services.ReportService,
	limiter *ratelimit.Limiter,
) {
	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(db)
	authHandler := handlers.NewAuthHandler(staffService, analyticsService)
	keyHandler := handlers.NewKeyHandler(apiKeyService, auditService, analyticsService)
	studentHandler := handlers.NewStudentHandler(studentService)
	assignmentHandler := handlers.NewAssignmentHandler(assignmentService)
	referralHandler := handlers.NewReferralHandler(referralService)
	iepHandler := handlers.NewIEPHandler(iepService)
	parentHandler := handlers.NewParentHandler(parentService)
	reportHandler := handlers.NewReportHandler(reportService)

	// Health check endpoints
	router.GET("/health", healthHandler.HandleHealth)
	router.GET("/ready", healthHandler.HandleReady)
	router.GET("/info", healthHandler.HandleInfo)

	// Staff authentication. Login is rate limited per IP to slow down
	// credential stuffing.
	router.POST("/auth/login", middleware.AuthRateLimitMiddleware(), authHandler.HandleLogin)
	router.GET("/auth/me", middleware.StaffAuthMiddleware(), authHandler.HandleMe)

	// Key management endpoints require a staff JWT; the keys themselves are
	// what programmatic clients use against /api below.
	keys := router.Group("/api/keys")
	keys.Use(middleware.StaffAuthMiddleware())
	{
		keys.POST("", keyHandler.HandleGenerate)
		keys.GET("", keyHandler.HandleList)
		keys.POST("/:key_id/rotate", keyHandler.HandleRotate)
		keys.POST("/:key_id/revoke", keyHandler.HandleRevoke)
		keys.PATCH("/:key_id", keyHandler.HandleUpdate)
		keys.DELETE("/:key_id", keyHandler.HandleDelete)
	}

	// Programmatic API. Every request is authenticated by API key and
	// charged against the key's hourly budget before any scope check.
	api := router.Group("/api")
	api.Use(middleware.APIKeyAuth(apiKeyService, auditService))
	api.Use(middleware.KeyRateLimitMiddleware(limiter))
	{
		api.POST("/students", middleware.RequireScope(models.ScopeStudentsWrite, auditService), studentHandler.HandleCreate)
		api.GET("/students", middleware.RequireScope(models.ScopeStudentsRead, auditService), studentHandler.HandleList)
		api.GET("/students/:student_id", middleware.RequireScope(models.ScopeStudentsRead, auditService), studentHandler.HandleGet)
		api.PATCH("/students/:student_id", middleware.RequireScope(models.ScopeStudentsWrite, auditService), studentHandler.HandleUpdate)
		api.POST("/students/:student_id/withdraw", middleware.RequireScope(models.ScopeStudentsWrite, auditService), studentHandler.HandleWithdraw)
		api.DELETE("/students/:student_id", middleware.RequireScope(models.ScopeStudentsWrite, auditService), studentHandler.HandleDelete)

		api.POST("/students/:student_id/assignments", middleware.RequireScope(models.ScopeAssignmentsWrite, auditService), assignmentHandler.HandleCreate)
		api.GET("/students/:student_id/assignments", middleware.RequireScope(models.ScopeAssignmentsRead, auditService), assignmentHandler.HandleList)
		api.POST("/assignments/:assignment_id/grade", middleware.RequireScope(models.ScopeAssignmentsWrite, auditService), assignmentHandler.HandleGrade)
		api.DELETE("/assignments/:assignment_id", middleware.RequireScope(models.ScopeAssignmentsWrite, auditService), assignmentHandler.HandleDelete)

		api.POST("/students/:student_id/referrals", middleware.RequireScope(models.ScopeReferralsWrite, auditService), referralHandler.HandleFile)
		api.GET("/students/:student_id/referrals", middleware.RequireScope(models.ScopeReferralsRead, auditService), referralHandler.HandleListByStudent)
		api.GET("/referrals/open", middleware.RequireScope(models.ScopeReferralsRead, auditService), referralHandler.HandleListOpen)
		api.POST("/referrals/:referral_id/resolve", middleware.RequireScope(models.ScopeReferralsWrite, auditService), referralHandler.HandleResolve)

		api.POST("/students/:student_id/iep-meetings", middleware.RequireScope(models.ScopeIEPWrite, auditService), iepHandler.HandleSchedule)
		api.GET("/students/:student_id/iep-meetings", middleware.RequireScope(models.ScopeIEPRead, auditService), iepHandler.HandleListByStudent)
		api.GET("/iep-meetings/upcoming", middleware.RequireScope(models.ScopeIEPRead, auditService), iepHandler.HandleListUpcoming)
		api.POST("/iep-meetings/:meeting_id/outcome", middleware.RequireScope(models.ScopeIEPWrite, auditService), iepHandler.HandleRecordOutcome)

		api.POST("/students/:student_id/parents", middleware.RequireScope(models.ScopeParentsWrite, auditService), parentHandler.HandleLink)
		api.GET("/students/:student_id/parents", middleware.RequireScope(models.ScopeParentsRead, auditService), parentHandler.HandleListByStudent)
		api.GET("/students/:student_id/parents/primary", middleware.RequireScope(models.ScopeParentsRead, auditService), parentHandler.HandlePrimaryContact)
		api.DELETE("/parents/:parent_id", middleware.RequireScope(models.ScopeParentsWrite, auditService), parentHandler.HandleUnlink)

		api.POST("/students/:student_id/reports", middleware.RequireScope(models.ScopeReportsWrite, auditService), reportHandler.HandleCreateSchedule)
		api.GET("/students/:student_id/reports", middleware.RequireScope(models.ScopeReportsRead, auditService), reportHandler.HandleListByStudent)
		api.DELETE("/reports/:schedule_id", middleware.RequireScope(models.ScopeReportsWrite, auditService), reportHandler.HandleDeleteSchedule)
	}
}

func splitOrigins(raw string) []string {
	var out []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func formatPort(port int) string {
	return fmt.Sprintf("%d", port)
}
