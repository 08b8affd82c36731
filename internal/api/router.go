// Package api wires together all HTTP routes for the workdesk portal backend.
//
// Route grouping philosophy:
//   - /auth/login and /auth/client-login are public but sit behind the strict
//     auth rate limiter; everything else under /api/v1 requires a session.
//   - All authenticated writes pass through the audit middleware.
//   - /api/v1/admin/* additionally requires an admin principal. Client sessions
//     never reach those routes regardless of which tenant they belong to.
//   - The /projects/:projectID subtree is guarded by RequireTenantAccess so
//     that tenant ownership is checked once, before any nested handler runs.
package api

import (
	"context"
	"database/sql"
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/workdesk/workdesk/internal/api/admin"
	"github.com/workdesk/workdesk/internal/api/authapi"
	"github.com/workdesk/workdesk/internal/api/portal"
	"github.com/workdesk/workdesk/internal/audit"
	"github.com/workdesk/workdesk/internal/auth"
	"github.com/workdesk/workdesk/internal/auth/oidc"
	"github.com/workdesk/workdesk/internal/config"
	"github.com/workdesk/workdesk/internal/db/repositories"
	"github.com/workdesk/workdesk/internal/jobs"
	"github.com/workdesk/workdesk/internal/middleware"
	"github.com/workdesk/workdesk/internal/safego"
	"github.com/workdesk/workdesk/internal/storage"

	// Import storage backends to register them
	_ "github.com/workdesk/workdesk/internal/storage/local"
	_ "github.com/workdesk/workdesk/internal/storage/s3"
)

// BackgroundServices holds references to background jobs and resources that
// must be stopped during graceful shutdown. The caller (cmd/server) is
// responsible for calling Shutdown() when the process receives a termination
// signal.
type BackgroundServices struct {
	cancel       context.CancelFunc
	lockSweeper  *jobs.StaleLockSweeper
	sessionClean *jobs.SessionCleaner
	rateLimiters []*middleware.RateLimiter
	auditShipper *audit.MultiShipper
}

// Shutdown stops all background goroutines. It should be called after the
// HTTP server has been shut down so that in-flight requests are drained first.
func (bg *BackgroundServices) Shutdown() {
	slog.Info("stopping background services")
	if bg.cancel != nil {
		bg.cancel()
	}
	if bg.lockSweeper != nil {
		bg.lockSweeper.Stop()
	}
	if bg.sessionClean != nil {
		bg.sessionClean.Stop()
	}
	for _, rl := range bg.rateLimiters {
		rl.Stop()
	}
	if bg.auditShipper != nil {
		if err := bg.auditShipper.Close(); err != nil {
			slog.Error("failed to close audit shippers", "error", err)
		}
	}
	slog.Info("all background services stopped")
}

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, db *sql.DB) (*gin.Engine, *BackgroundServices) {
	router := gin.New()

	// Initialize storage backend
	store, err := storage.NewStorage(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize storage backend: %v", err)
	}
	log.Printf("Initialized storage backend: %s", cfg.Storage.DefaultBackend)

	// Repositories needed by middleware, guards, and background jobs. The
	// handler packages construct their own repositories from the same *sql.DB.
	userRepo := repositories.NewUserRepository(db)
	keyRepo := repositories.NewClientKeyRepository(db)
	sessionRepo := repositories.NewSessionRepository(db)
	projectRepo := repositories.NewProjectRepository(db)
	auditRepo := repositories.NewAuditRepository(db)

	resolver := auth.NewResolver(userRepo, keyRepo)

	// Background jobs share one cancellable context so Shutdown stops them all.
	jobCtx, cancel := context.WithCancel(context.Background())

	lockSweeper := jobs.NewStaleLockSweeper(keyRepo, cfg.Auth.ClientKeys.LockTimeout, cfg.Auth.ClientKeys.SweepInterval)
	safego.Go(func() { lockSweeper.Start(jobCtx) })

	sessionClean := jobs.NewSessionCleaner(sessionRepo, time.Hour)
	safego.Go(func() { sessionClean.Start(jobCtx) })

	// External audit shipping (file and/or webhook) is optional.
	auditShipper, err := audit.NewMultiShipper(shipperConfigs(cfg))
	if err != nil {
		log.Fatalf("Failed to initialize audit shippers: %v", err)
	}
	var shipper audit.Shipper
	if auditShipper.Count() > 0 {
		shipper = auditShipper
	}

	// Middleware chain
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.LoggerMiddleware())
	router.Use(middleware.CORSMiddleware(cfg.Security.CORS.AllowedOrigins))
	router.Use(middleware.SecurityHeadersMiddleware(middleware.APISecurityHeadersConfig()))

	router.GET("/health", healthCheckHandler(db))
	router.GET("/ready", readinessHandler(db, store))
	router.GET("/version", versionHandler())

	// Handlers
	authHandlers := authapi.NewAuthHandlers(cfg, db)
	projectHandlers := portal.NewProjectHandlers(cfg, db)
	taskHandlers := portal.NewTaskHandlers(cfg, db)
	commentHandlers := portal.NewCommentHandlers(cfg, db)
	invoiceHandlers := portal.NewInvoiceHandlers(cfg, db)
	attachmentHandlers := portal.NewAttachmentHandlers(cfg, db, store)
	portalDashboard := portal.NewDashboardHandlers(cfg, db)

	keyAdminHandlers := admin.NewClientKeyHandlers(cfg, db)
	userAdminHandlers := admin.NewUserHandlers(cfg, db)
	adminDashboard := admin.NewDashboardHandlers(cfg, db)
	auditLogHandlers := admin.NewAuditLogHandlers(cfg, db)

	// Rate limiters
	authRateLimiter := middleware.NewRateLimiter(middleware.AuthRateLimitConfig())
	generalRateLimiter := middleware.NewRateLimiter(middleware.DefaultRateLimitConfig())
	uploadRateLimiter := middleware.NewRateLimiter(middleware.UploadRateLimitConfig())

	apiV1 := router.Group("/api/v1")
	{
		// Public authentication endpoints (no session required, strictly rate
		// limited — these are the brute-force surface).
		authGroup := apiV1.Group("/auth")
		authGroup.Use(middleware.RateLimitMiddleware(authRateLimiter))
		{
			authGroup.POST("/login", authHandlers.AdminLoginHandler())
			authGroup.POST("/client-login", authHandlers.ClientLoginHandler())

			if cfg.Auth.OIDC.Enabled {
				provider, provErr := oidc.New(context.Background(), &cfg.Auth.OIDC)
				if provErr != nil {
					log.Fatalf("Failed to initialize OIDC provider: %v", provErr)
				}
				oidcHandlers := authapi.NewOIDCHandlers(authHandlers, provider)
				authGroup.GET("/oidc/login", oidcHandlers.LoginHandler())
				authGroup.GET("/oidc/callback", oidcHandlers.CallbackHandler())
				slog.Info("OIDC admin login enabled", "issuer", cfg.Auth.OIDC.IssuerURL)
			}
		}

		// Everything below requires a valid session.
		authenticated := apiV1.Group("")
		authenticated.Use(middleware.AuthMiddlewareWithCookie(cfg.Auth.Sessions.CookieName, sessionRepo, userRepo, resolver))
		authenticated.Use(middleware.RateLimitMiddleware(generalRateLimiter))
		authenticated.Use(middleware.AuditMiddlewareWithShipper(auditRepo, shipper))
		{
			authenticated.POST("/auth/logout", authHandlers.LogoutHandler())
			authenticated.GET("/auth/me", authHandlers.MeHandler())

			authenticated.GET("/dashboard", portalDashboard.DashboardHandler())

			// Project collection routes. Tenant scoping happens inside the
			// handlers: clients are pinned to their own tenant, admins may
			// filter freely.
			authenticated.GET("/projects", projectHandlers.ListProjectsHandler())
			authenticated.POST("/projects", projectHandlers.CreateProjectHandler())

			// Everything under a specific project is guarded once, here. The
			// lookup resolves the project's tenant; the middleware compares it
			// against the caller's principal before any nested handler runs.
			projectGroup := authenticated.Group("/projects/:projectID")
			projectGroup.Use(middleware.RequireTenantAccess(portal.ProjectTenantLookup(projectRepo)))
			{
				projectGroup.GET("", projectHandlers.GetProjectHandler())
				projectGroup.PUT("", projectHandlers.UpdateProjectHandler())
				projectGroup.DELETE("", projectHandlers.DeleteProjectHandler())

				projectGroup.GET("/tasks", taskHandlers.ListTasksHandler())
				projectGroup.POST("/tasks", taskHandlers.CreateTaskHandler())

				projectGroup.GET("/comments", commentHandlers.ListProjectCommentsHandler())
				projectGroup.POST("/comments", commentHandlers.CreateProjectCommentHandler())
			}

			// Task routes addressed by task ID authorize inside the handler
			// (the task row carries its tenant).
			authenticated.GET("/tasks/:taskID", taskHandlers.GetTaskHandler())
			authenticated.PUT("/tasks/:taskID", taskHandlers.UpdateTaskHandler())
			authenticated.DELETE("/tasks/:taskID", taskHandlers.DeleteTaskHandler())
			authenticated.GET("/tasks/:taskID/comments", commentHandlers.ListTaskCommentsHandler())
			authenticated.POST("/tasks/:taskID/comments", commentHandlers.CreateTaskCommentHandler())

			authenticated.DELETE("/comments/:commentID", commentHandlers.DeleteCommentHandler())
			authenticated.POST("/comments/:commentID/reactions", commentHandlers.ToggleReactionHandler())

			// Invoice reads are tenant-scoped; mutations are admin-only.
			authenticated.GET("/invoices", invoiceHandlers.ListInvoicesHandler())
			authenticated.GET("/invoices/:invoiceID", invoiceHandlers.GetInvoiceHandler())
			authenticated.GET("/invoices/:invoiceID/payments", invoiceHandlers.ListPaymentsHandler())
			authenticated.POST("/invoices", middleware.RequireAdmin(), invoiceHandlers.CreateInvoiceHandler())
			authenticated.PUT("/invoices/:invoiceID", middleware.RequireAdmin(), invoiceHandlers.UpdateInvoiceHandler())
			authenticated.POST("/invoices/:invoiceID/payments", middleware.RequireAdmin(), invoiceHandlers.AddPaymentHandler())
			authenticated.DELETE("/invoices/:invoiceID", middleware.RequireAdmin(), invoiceHandlers.DeleteInvoiceHandler())

			// Attachments
			authenticated.POST("/attachments",
				middleware.RateLimitMiddleware(uploadRateLimiter),
				attachmentHandlers.UploadAttachmentHandler())
			authenticated.GET("/attachments", attachmentHandlers.ListAttachmentsHandler())
			authenticated.GET("/attachments/:attachmentID", attachmentHandlers.GetAttachmentHandler())
			authenticated.GET("/attachments/:attachmentID/download", attachmentHandlers.DownloadAttachmentHandler())
			authenticated.DELETE("/attachments/:attachmentID", attachmentHandlers.DeleteAttachmentHandler())

			// Admin surface
			adminGroup := authenticated.Group("/admin")
			adminGroup.Use(middleware.RequireAdmin())
			{
				adminGroup.POST("/client-keys", keyAdminHandlers.GenerateKeyHandler())
				adminGroup.GET("/client-keys", keyAdminHandlers.ListKeysHandler())
				adminGroup.GET("/client-keys/:id", keyAdminHandlers.GetKeyHandler())
				adminGroup.POST("/client-keys/:id/unlock", keyAdminHandlers.ForceUnlockHandler())
				adminGroup.DELETE("/client-keys/:id", keyAdminHandlers.DeleteKeyHandler())

				adminGroup.GET("/users", userAdminHandlers.ListAdminsHandler())
				adminGroup.GET("/users/:id", userAdminHandlers.GetUserHandler())
				adminGroup.POST("/users", userAdminHandlers.CreateAdminHandler())
				adminGroup.PUT("/users/:id", userAdminHandlers.UpdateUserHandler())
				adminGroup.DELETE("/users/:id", userAdminHandlers.DeleteUserHandler())

				adminGroup.GET("/stats", adminDashboard.StatsHandler())

				adminGroup.GET("/audit-logs", auditLogHandlers.ListAuditLogsHandler())
				adminGroup.DELETE("/audit-logs", auditLogHandlers.PurgeAuditLogsHandler())
			}
		}
	}

	bg := &BackgroundServices{
		cancel:       cancel,
		lockSweeper:  lockSweeper,
		sessionClean: sessionClean,
		rateLimiters: []*middleware.RateLimiter{authRateLimiter, generalRateLimiter, uploadRateLimiter},
		auditShipper: auditShipper,
	}

	return router, bg
}

// shipperConfigs maps the audit shipper configuration onto the audit
// package's destination configs. Disabled entries are filtered out by
// NewMultiShipper.
func shipperConfigs(cfg *config.Config) []audit.ShipperConfig {
	return []audit.ShipperConfig{
		{
			Enabled: cfg.Audit.Shippers.File.Enabled,
			Type:    "file",
			File: &audit.FileConfig{
				Path: cfg.Audit.Shippers.File.Path,
			},
		},
		{
			Enabled: cfg.Audit.Shippers.Webhook.Enabled,
			Type:    "webhook",
			Webhook: &audit.WebhookConfig{
				URL:     cfg.Audit.Shippers.Webhook.URL,
				Headers: cfg.Audit.Shippers.Webhook.Headers,
				Timeout: cfg.Audit.Shippers.Webhook.Timeout,
			},
		},
	}
}

// healthCheckHandler returns the health status of the service
func healthCheckHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database connection failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// readinessHandler returns the readiness status of the service.
// Unlike the liveness probe (/health), this also checks the storage backend so
// that a readiness gate fails when uploads/downloads would error.
func readinessHandler(db *sql.DB, store storage.Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := gin.H{}

		if err := db.Ping(); err != nil {
			checks["database"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  "database not ready",
			})
			return
		}
		checks["database"] = "healthy"

		// Probe storage with a known-absent sentinel path. Exists() exercises
		// authentication and connectivity without creating any state.
		if _, err := store.Exists(c.Request.Context(), ".readiness-probe"); err != nil {
			checks["storage"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  "storage backend not ready",
			})
			return
		}
		checks["storage"] = "healthy"

		c.JSON(http.StatusOK, gin.H{
			"ready":  true,
			"checks": checks,
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// versionHandler returns the API version
func versionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":     "0.1.0",
			"api_version": "v1",
		})
	}
}
