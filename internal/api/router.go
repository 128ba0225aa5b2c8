package api

import (
	"context"
	"database/sql"
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis_rate/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/classdesk/classdesk/internal/audit"
	"github.com/classdesk/classdesk/internal/auth"
	"github.com/classdesk/classdesk/internal/auth/oidc"
	"github.com/classdesk/classdesk/internal/config"
	"github.com/classdesk/classdesk/internal/db/repositories"
	"github.com/classdesk/classdesk/internal/jobs"
	"github.com/classdesk/classdesk/internal/middleware"
	"github.com/classdesk/classdesk/internal/notify"
	"github.com/classdesk/classdesk/internal/services"
	"github.com/classdesk/classdesk/internal/tenant"
)

// BackgroundServices holds references to background jobs and resources that must
// be stopped during graceful shutdown. The caller (cmd/server) is responsible for
// calling Shutdown() when the process receives a termination signal.
type BackgroundServices struct {
	invitationSweeper *jobs.InvitationSweeper
	rateLimiters      []*middleware.RateLimiter
	redisClient       *redis.Client
	auditShipper      *audit.MultiShipper
}

// Shutdown stops all background goroutines. It should be called after the HTTP
// server has been shut down so that in-flight requests are drained first.
func (bg *BackgroundServices) Shutdown() {
	slog.Info("stopping background services")
	if bg.invitationSweeper != nil {
		bg.invitationSweeper.Stop()
	}
	for _, rl := range bg.rateLimiters {
		rl.Stop()
	}
	if bg.redisClient != nil {
		if err := bg.redisClient.Close(); err != nil {
			slog.Warn("failed to close redis client", "error", err)
		}
	}
	if bg.auditShipper != nil {
		if err := bg.auditShipper.Close(); err != nil {
			slog.Warn("failed to close audit shipper", "error", err)
		}
	}
	slog.Info("all background services stopped")
}

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, db *sql.DB) (*gin.Engine, *BackgroundServices) {
	router := gin.New()

	// Repositories. User and audit repositories run on database/sql; the
	// membership-domain repositories use sqlx for named and rebindable queries.
	userRepo := repositories.NewUserRepository(db)
	auditRepo := repositories.NewAuditRepository(db)

	sqlxDB := sqlx.NewDb(db, "postgres")
	orgRepo := repositories.NewOrganizationRepository(sqlxDB)
	membershipRepo := repositories.NewMembershipRepository(sqlxDB)
	invitationRepo := repositories.NewInvitationRepository(sqlxDB)

	// OIDC provider (optional). When disabled, sessions can only be minted from
	// existing JWTs, which is the local-development path.
	var oidcProvider *oidc.Provider
	if cfg.Auth.OIDC.Enabled {
		provider, err := oidc.NewProvider(context.Background(), oidc.Options{
			IssuerURL:    cfg.Auth.OIDC.IssuerURL,
			ClientID:     cfg.Auth.OIDC.ClientID,
			ClientSecret: cfg.Auth.OIDC.ClientSecret,
			RedirectURL:  cfg.Auth.OIDC.RedirectURL,
			Scopes:       cfg.Auth.OIDC.Scopes,
		})
		if err != nil {
			log.Fatalf("Failed to initialize OIDC provider: %v", err)
		}
		oidcProvider = provider
		slog.Info("OIDC provider initialized", "issuer", cfg.Auth.OIDC.IssuerURL)
	}

	// Invitation email sender. NopSender logs instead of delivering when
	// notifications are disabled or SMTP is not configured.
	var sender notify.Sender = notify.NopSender{}
	if cfg.Notifications.Enabled && cfg.Notifications.SMTP.Host != "" {
		sender = notify.NewSMTPSender(notify.SMTPConfig{
			Host:     cfg.Notifications.SMTP.Host,
			Port:     cfg.Notifications.SMTP.Port,
			Username: cfg.Notifications.SMTP.Username,
			Password: cfg.Notifications.SMTP.Password,
			From:     cfg.Notifications.SMTP.From,
			UseTLS:   cfg.Notifications.SMTP.UseTLS,
		})
	}

	// Services
	membershipService := services.NewMembershipService(orgRepo, membershipRepo, auditRepo)
	invitationService := services.NewInvitationService(
		orgRepo, membershipRepo, invitationRepo, userRepo, auditRepo,
		sender, cfg.Invitations.TTL, cfg.Invitations.AcceptBaseURL,
	)
	tenantResolver := tenant.NewResolver(membershipRepo)

	// Background sweeper for expired invitation rows
	invitationSweeper := jobs.NewInvitationSweeper(invitationRepo, cfg.Invitations.SweepIntervalHours)
	go invitationSweeper.Start(context.Background())

	// Handlers
	orgHandlers := NewOrganizationHandlers(membershipService)
	invitationHandlers := NewInvitationHandlers(invitationService)
	sessionHandlers := NewSessionHandlers(oidcProvider, userRepo, cfg.Auth.SessionTTL)
	auditHandlers := NewAuditHandlers(auditRepo)

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(middleware.SecurityHeadersMiddleware(middleware.APISecurityHeadersConfig()))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.LoggingMiddleware())
	router.Use(CORSMiddleware(cfg))

	// Rate limiting. A Redis-backed limiter is shared across replicas when
	// redis.enabled is set; otherwise each replica keeps in-process buckets.
	var bg BackgroundServices
	generalLimit := noLimit
	authLimit := noLimit
	acceptLimit := noLimit
	if cfg.Security.RateLimiting.Enabled {
		generalCfg := middleware.RateLimitConfig{
			RequestsPerMinute: cfg.Security.RateLimiting.RequestsPerMinute,
			BurstSize:         cfg.Security.RateLimiting.Burst,
			CleanupInterval:   5 * time.Minute,
		}
		if cfg.Redis.Enabled {
			bg.redisClient = redis.NewClient(&redis.Options{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			limiter := redis_rate.NewLimiter(bg.redisClient)
			generalLimit = middleware.RedisRateLimitMiddleware(limiter, generalCfg)
			authLimit = middleware.RedisRateLimitMiddleware(limiter, middleware.AuthRateLimitConfig())
			acceptLimit = middleware.RedisRateLimitMiddleware(limiter, middleware.InvitationAcceptRateLimitConfig())
			slog.Info("rate limiting enabled", "backend", "redis", "addr", cfg.Redis.Addr)
		} else {
			generalLimiter := middleware.NewRateLimiter(generalCfg)
			authLimiter := middleware.NewRateLimiter(middleware.AuthRateLimitConfig())
			acceptLimiter := middleware.NewRateLimiter(middleware.InvitationAcceptRateLimitConfig())
			bg.rateLimiters = []*middleware.RateLimiter{generalLimiter, authLimiter, acceptLimiter}
			generalLimit = middleware.RateLimitMiddleware(generalLimiter)
			authLimit = middleware.RateLimitMiddleware(authLimiter)
			acceptLimit = middleware.RateLimitMiddleware(acceptLimiter)
			slog.Info("rate limiting enabled", "backend", "memory")
		}
	}

	// System endpoints
	router.GET("/health", healthCheckHandler(db))
	router.GET("/ready", readinessHandler(db))
	router.GET("/version", versionHandler())

	// Public invitation preview for the accept page; token-bearer only, no auth.
	router.GET("/v1/invitations/:token", acceptLimit, invitationHandlers.PreviewInvitationHandler())

	// Login endpoints run before any session exists
	router.GET("/api/v1/auth/login", authLimit, sessionHandlers.LoginHandler())
	router.GET("/api/v1/auth/callback", authLimit, sessionHandlers.CallbackHandler())

	// Authenticated API
	v1 := router.Group("/api/v1")
	v1.Use(generalLimit)
	v1.Use(middleware.AuthMiddleware(userRepo, oidcProvider))
	if len(cfg.Audit.Shippers) > 0 {
		shipper, err := audit.NewMultiShipper(cfg.Audit.Shippers)
		if err != nil {
			log.Fatalf("Failed to initialize audit shippers: %v", err)
		}
		bg.auditShipper = shipper
		v1.Use(middleware.RequestAuditMiddleware(shipper))
	}
	{
		v1.GET("/auth/me", sessionHandlers.MeHandler())
		v1.POST("/auth/refresh", sessionHandlers.RefreshHandler())

		v1.POST("/orgs", orgHandlers.CreateOrganizationHandler())
		v1.GET("/orgs", orgHandlers.ListMyOrganizationsHandler())

		v1.POST("/invitations/accept", acceptLimit, invitationHandlers.AcceptInvitationHandler())

		// Tenant-scoped routes. The resolver rejects callers without an active
		// membership, so CapOrgRead holds for everything below it.
		org := v1.Group("/orgs/:org_id")
		org.Use(middleware.TenantMiddleware(tenantResolver))
		{
			org.GET("", orgHandlers.GetOrganizationHandler())
			org.PATCH("", middleware.RequireCapability(auth.CapOrgUpdate), orgHandlers.UpdateOrganizationHandler())
			org.DELETE("", middleware.RequireCapability(auth.CapOrgDelete), orgHandlers.DeleteOrganizationHandler())

			org.GET("/members", middleware.RequireCapability(auth.CapMembersRead), orgHandlers.ListMembersHandler())
			org.PUT("/members/roles", middleware.RequireCapability(auth.CapMembersUpdateRoles), orgHandlers.BulkUpdateRolesHandler())
			org.DELETE("/members/:user_id", middleware.RequireCapability(auth.CapMembersRemove), orgHandlers.RemoveMemberHandler())

			org.POST("/invitations", middleware.RequireCapability(auth.CapInvitesCreate), invitationHandlers.CreateInvitationHandler())
			org.GET("/invitations", middleware.RequireCapability(auth.CapInvitesRead), invitationHandlers.ListPendingInvitationsHandler())
			org.DELETE("/invitations/:id", middleware.RequireCapability(auth.CapInvitesRevoke), invitationHandlers.RevokeInvitationHandler())

			org.GET("/audit", middleware.RequireCapability(auth.CapAuditRead), auditHandlers.ListAuditLogHandler())
		}
	}

	bg.invitationSweeper = invitationSweeper
	return router, &bg
}

// noLimit is the pass-through used when rate limiting is disabled.
func noLimit(c *gin.Context) {
	c.Next()
}

// @Summary      Health check
// @Description  Returns the health status of the service, including database connectivity.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "status: healthy, time: RFC3339 timestamp"
// @Failure      503  {object}  map[string]interface{}  "status: unhealthy, error: database connection failed"
// @Router       /health [get]
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

// @Summary      Readiness check
// @Description  Returns whether the service is ready to accept traffic.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "ready: true, time: RFC3339 timestamp"
// @Failure      503  {object}  map[string]interface{}  "ready: false, error: database not ready"
// @Router       /ready [get]
func readinessHandler(db *sql.DB) gin.HandlerFunc {
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

		c.JSON(http.StatusOK, gin.H{
			"ready":  true,
			"checks": checks,
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// @Summary      API version
// @Description  Returns the current API version.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "version, api_version"
// @Router       /version [get]
func versionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":     "0.1.0",
			"api_version": "v1",
		})
	}
}

// CORSMiddleware handles CORS
func CORSMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		allowed := false
		for _, allowedOrigin := range cfg.Security.CORS.AllowedOrigins {
			if allowedOrigin == "*" || allowedOrigin == origin {
				allowed = true
				break
			}
		}

		if allowed {
			if origin == "" {
				c.Header("Access-Control-Allow-Origin", "*")
			} else {
				c.Header("Access-Control-Allow-Origin", origin)
			}
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Requested-With")
			c.Header("Access-Control-Max-Age", "3600")
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
