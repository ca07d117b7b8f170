package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/OlsenSM91/Open-Server-Shares/internal/config"
	"github.com/OlsenSM91/Open-Server-Shares/internal/directory"
	"github.com/OlsenSM91/Open-Server-Shares/internal/handlers"
	"github.com/OlsenSM91/Open-Server-Shares/internal/metrics"
	"github.com/OlsenSM91/Open-Server-Shares/internal/middleware"
	"github.com/OlsenSM91/Open-Server-Shares/internal/services"
	"github.com/OlsenSM91/Open-Server-Shares/internal/session"
	"github.com/OlsenSM91/Open-Server-Shares/internal/smb"
	"github.com/OlsenSM91/Open-Server-Shares/internal/store"
	"github.com/OlsenSM91/Open-Server-Shares/internal/templates"
	"github.com/OlsenSM91/Open-Server-Shares/internal/util"
	"github.com/OlsenSM91/Open-Server-Shares/internal/version"

	"github.com/appleboy/graceful"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Define flags
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	flag.Usage = printUsage
	flag.Parse()

	// Show version and exit if requested
	if *showVersion {
		version.PrintVersion()
		os.Exit(0)
	}

	// Check if command is provided
	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	// Handle subcommands
	switch args[0] {
	case "server":
		runServer()
	default:
		fmt.Printf("Unknown command: %s\n\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf("Usage: %s [OPTIONS] COMMAND\n\n", os.Args[0])
	fmt.Println("Session-gated console for open SMB server file handles")
	fmt.Println("\nCommands:")
	fmt.Println("  server    Start the web console")
	fmt.Println("\nOptions:")
	fmt.Println("  -v, --version    Show version information")
	fmt.Println("  -h, --help       Show this help message")
}

func runServer() {
	// Load configuration
	cfg := config.Load()

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Initialize audit log store
	db, err := store.New(cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Initialize metrics
	prometheusMetrics := metrics.Init(cfg.MetricsEnabled)
	if cfg.MetricsEnabled {
		log.Println("Prometheus metrics initialized")
	} else {
		log.Println("Metrics disabled (using noop implementation)")
	}

	// Initialize audit service
	auditService := services.NewAuditService(db, cfg.EnableAuditLogging, cfg.AuditLogBufferSize)

	// Initialize the directory authenticator and the handle registry
	authenticator := directory.NewLDAPAuthenticator(cfg)
	log.Printf("Directory backend: %s (group: %s)", cfg.LDAPURL, cfg.LDAPGroup)

	runner := smb.NewPowerShellRunner(cfg.PowerShellPath, cfg.CommandTimeout)
	registry := smb.NewRegistry(runner)
	log.Printf("Handle enumerator: %s (timeout: %s)", cfg.PowerShellPath, cfg.CommandTimeout)

	// Initialize the server-side session store
	sessionStore := session.NewStore(cfg.SessionIdleTimeout)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(
		authenticator,
		sessionStore,
		cfg,
		auditService,
		prometheusMetrics,
	)
	filesHandler := handlers.NewFilesHandler(registry, auditService, prometheusMetrics)

	// Setup Gin
	if cfg.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	// Setup Prometheus metrics middleware (must be before other routes)
	r.Use(metrics.HTTPMetricsMiddleware(prometheusMetrics))
	r.Use(gin.Logger(), gin.Recovery())

	// Setup cookie session middleware; the cookie only carries the
	// opaque token pointing at the server-side session. The configured
	// passphrase is stretched into signing and encryption keys.
	cookieStore := cookie.NewStore(
		util.DeriveKey(cfg.SessionSecret, "cookie-auth", 64),
		util.DeriveKey(cfg.SessionSecret, "cookie-encrypt", 32),
	)
	cookieStore.Options(sessions.Options{
		Path:     "/",
		MaxAge:   cfg.SessionMaxAge,
		HttpOnly: true,
		Secure:   cfg.IsProduction,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions("openshares_session", cookieStore))

	// Serve embedded pages and static assets
	r.SetHTMLTemplate(templates.Load())
	r.StaticFS("/static", templates.StaticFS())

	// Health check endpoint
	r.GET("/health", createHealthCheckHandler(db))

	// Prometheus metrics endpoint (with optional authentication)
	switch {
	case !cfg.MetricsEnabled:
		log.Printf("Prometheus metrics disabled")
	case cfg.MetricsToken != "":
		log.Printf("Prometheus metrics enabled at /metrics with Bearer token authentication")
		r.GET(
			"/metrics",
			middleware.MetricsAuthMiddleware(cfg.MetricsToken),
			gin.WrapH(promhttp.Handler()),
		)
	default:
		log.Printf("Prometheus metrics enabled at /metrics (no authentication)")
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	// Setup rate limiting
	loginLimiter, redisClient := setupRateLimiting(cfg, auditService, prometheusMetrics)

	// Public routes
	r.GET("/", authHandler.LoginPage)
	r.POST("/login", loginLimiter, authHandler.Login)
	r.GET("/logout", authHandler.Logout)

	// Protected routes (require an authenticated session)
	protected := r.Group("")
	protected.Use(middleware.RequireAuth(sessionStore), middleware.CSRFMiddleware())
	{
		protected.GET("/files", filesHandler.ListFiles)
		protected.POST("/release", filesHandler.Release)
	}

	// Start server
	log.Printf("OpenShares console starting on %s", cfg.ServerAddr)
	log.Printf("Authorization group: %s", cfg.LDAPGroup)

	// Create HTTP server
	srv := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Create graceful manager
	m := graceful.NewManager()

	// Add server as a running job
	m.AddRunningJob(func(ctx context.Context) error {
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Failed to start server: %v", err)
			}
		}()
		<-ctx.Done()
		return nil
	})

	// Add session janitor job: expires idle sessions and keeps the
	// active-session gauge current.
	m.AddRunningJob(func(ctx context.Context) error {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if expired := sessionStore.ExpireIdle(); expired > 0 {
					log.Printf("Expired %d idle sessions", expired)
					prometheusMetrics.RecordSessionsExpired(expired)
				}
				prometheusMetrics.SetActiveSessions(sessionStore.Len())
			case <-ctx.Done():
				return nil
			}
		}
	})

	// Add cleanup job for old audit logs (runs daily)
	if cfg.EnableAuditLogging && cfg.AuditLogRetention > 0 {
		m.AddRunningJob(func(ctx context.Context) error {
			ticker := time.NewTicker(24 * time.Hour)
			defer ticker.Stop()

			// Run cleanup immediately on startup
			if deleted, err := auditService.CleanupOldLogs(cfg.AuditLogRetention); err != nil {
				log.Printf("Failed to cleanup old audit logs: %v", err)
			} else if deleted > 0 {
				log.Printf("Cleaned up %d old audit logs", deleted)
			}

			for {
				select {
				case <-ticker.C:
					if deleted, err := auditService.CleanupOldLogs(
						cfg.AuditLogRetention,
					); err != nil {
						log.Printf("Failed to cleanup old audit logs: %v", err)
					} else if deleted > 0 {
						log.Printf("Cleaned up %d old audit logs", deleted)
					}
				case <-ctx.Done():
					return nil
				}
			}
		})
	}

	// Add shutdown job for HTTP server
	m.AddShutdownJob(func() error {
		log.Println("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Server forced to shutdown: %v", err)
			return err
		}

		log.Println("Server exited")
		return nil
	})

	// Add shutdown job for Redis client (if used)
	if redisClient != nil {
		m.AddShutdownJob(func() error {
			log.Println("Closing Redis connection...")
			if err := redisClient.Close(); err != nil {
				log.Printf("Error closing Redis client: %v", err)
				return err
			}
			log.Println("Redis connection closed")
			return nil
		})
	}

	// Add shutdown job for audit service
	m.AddShutdownJob(func() error {
		log.Println("Shutting down audit service...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := auditService.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down audit service: %v", err)
			return err
		}
		return nil
	})

	// Add shutdown job for the session store
	m.AddShutdownJob(func() error {
		sessionStore.Clear()
		return nil
	})

	// Add shutdown job for the store
	m.AddShutdownJob(func() error {
		if err := db.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
			return err
		}
		return nil
	})

	// Wait for graceful shutdown
	<-m.Done()
}

// createHealthCheckHandler reports liveness plus audit store health.
func createHealthCheckHandler(db *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Health(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"version": version.Version,
		})
	}
}

// setupRateLimiting configures the login rate limiter based on
// configuration. Returns the middleware and an optional shared Redis
// client that needs cleanup on shutdown.
func setupRateLimiting(
	cfg *config.Config,
	auditService *services.AuditService,
	m metrics.Recorder,
) (gin.HandlerFunc, *redis.Client) {
	if !cfg.EnableRateLimit {
		return func(c *gin.Context) { c.Next() }, nil
	}

	log.Printf("Rate limiting enabled (store: %s)", cfg.RateLimitStore)

	storeType := middleware.RateLimitStoreType(cfg.RateLimitStore)
	var sharedRedisClient *redis.Client

	if storeType == middleware.RateLimitStoreRedis {
		var err error
		sharedRedisClient, err = middleware.CreateRedisClient(
			cfg.RedisAddr,
			cfg.RedisPassword,
			cfg.RedisDB,
		)
		if err != nil {
			log.Fatalf("Failed to create shared Redis client: %v", err)
		}
		log.Printf("Redis rate limiting configured: %s (DB: %d)", cfg.RedisAddr, cfg.RedisDB)
	} else {
		log.Printf("In-memory rate limiting configured (single instance only)")
	}

	limiter, err := middleware.NewRateLimiter(middleware.RateLimitConfig{
		RequestsPerMinute: cfg.LoginRateLimit,
		StoreType:         storeType,
		RedisClient:       sharedRedisClient,
		RedisAddr:         cfg.RedisAddr,
		RedisPassword:     cfg.RedisPassword,
		RedisDB:           cfg.RedisDB,
		CleanupInterval:   cfg.RateLimitCleanupInterval,
		Endpoint:          "/login",
		AuditService:      auditService,
		Metrics:           m,
	})
	if err != nil {
		log.Fatalf("Failed to create rate limiter for /login: %v", err)
	}
	return limiter, sharedRedisClient
}
