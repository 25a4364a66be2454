// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, idempotency, and per-action rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	_ "github.com/cjdportal/go-ideas-backend/docs"
	"github.com/cjdportal/go-ideas-backend/internal/config"
	"github.com/cjdportal/go-ideas-backend/internal/domain"
	"github.com/cjdportal/go-ideas-backend/internal/http/handlers"
	"github.com/cjdportal/go-ideas-backend/internal/http/middleware"
	"github.com/cjdportal/go-ideas-backend/internal/repo"
	"github.com/cjdportal/go-ideas-backend/internal/services"
)

// Rate-gated action names. Each carries its own quota in config.
const (
	actionCreateIdea = "create_idea"
	actionCastVote   = "cast_vote"
)

// ideaRepoShim adapts the repository free functions to the services.IdeaRepo
// interface expected by the IdeaService. This keeps services decoupled from
// the concrete repo package while reusing existing functions.
type ideaRepoShim struct{}

// CreateIdea proxies repo.CreateIdea.
func (ideaRepoShim) CreateIdea(ctx context.Context, db *gorm.DB, title, description, proposedBy, proposedByEmail string) (*domain.Idea, error) {
	return repo.CreateIdea(ctx, db, title, description, proposedBy, proposedByEmail)
}

// GetIdea proxies repo.GetIdea.
func (ideaRepoShim) GetIdea(ctx context.Context, db *gorm.DB, id string) (*domain.Idea, error) {
	return repo.GetIdea(ctx, db, id)
}

// CountIdeas proxies repo.CountIdeas (pagination support).
func (ideaRepoShim) CountIdeas(ctx context.Context, db *gorm.DB) (int64, error) {
	return repo.CountIdeas(ctx, db)
}

// ListIdeasPage proxies repo.ListIdeasPage (pagination support).
func (ideaRepoShim) ListIdeasPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Idea, error) {
	return repo.ListIdeasPage(ctx, db, offset, limit)
}

// UpdateIdeaStatus proxies repo.UpdateIdeaStatus.
func (ideaRepoShim) UpdateIdeaStatus(ctx context.Context, db *gorm.DB, id, status string) error {
	return repo.UpdateIdeaStatus(ctx, db, id, status)
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), idempotency and
// per-action rate limiting, CORS and security headers, health and metrics
// endpoints, and then mounts the versioned public API under /api/v*.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with voter-email scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter, gzip
//  6. Metrics
//  7. Vote receipt validator (before rate gates to allow bypass on replay)
//  8. CORS and Security headers
//
// The rate gates themselves are attached per mutating route rather than
// globally, since each action carries its own quota.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction (voter emails show up in paths
	//    and query strings; X-Voter-Email and X-Admin-Token are masked by
	//    default)
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB) and response compression
	r.Use(limitBody(1 << 20))
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Idempotency validation (before rate gates)
	r.Use(middleware.VoteReceiptValidator(
		middleware.IdempotencyOptions{
			MaxLen: 200,
		},
		func(ctx context.Context, voterEmail, ideaID, key string, now time.Time) (bool, error) {
			rec, err := repo.GetVoteReceipt(ctx, db, services.NormalizeEmail(voterEmail), ideaID, key, now)
			if err != nil || rec == nil {
				return false, nil
			}
			return true, nil
		},
	))

	// 8) Per-action token-bucket rate gates, keyed by client IP
	gate := middleware.NewRateGate(map[string]middleware.Quota{
		actionCreateIdea: {Limit: cfg.IdeaRateLimit, Window: cfg.IdeaRateWindow},
		actionCastVote:   {Limit: cfg.VoteRateLimit, Window: cfg.VoteRateWindow},
	}, middleware.KeyByClientIP())

	// 9) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Admin-Token", middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Admin-Token", middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// API docs (flag-gated)
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← repo/db
	engSvc := &services.EngagementService{DB: db, Impacts: cfg.ScoreImpacts}
	ideaSvc := services.NewIdeaService(db, ideaRepoShim{}, engSvc)
	voteSvc := &services.VoteService{
		DB:         db,
		Engagement: engSvc,
		ReceiptTTL: cfg.IdempotencyTTL,
	}
	h := handlers.New(ideaSvc, voteSvc, engSvc)
	h.ListStats = func(ctx context.Context) (int64, int64, *time.Time, error) {
		return repo.IdeasStats(ctx, db)
	}

	// Public API
	apiBase := cfg.APIBasePath // e.g. "/api/v1"
	api := groupWithPrefix(r, apiBase)
	{
		// Ideas
		api.POST("/ideas", gate.Handler(actionCreateIdea), h.ProposeIdea)
		api.GET("/ideas", h.ListIdeas)
		api.GET("/ideas/:id", h.GetIdea)
		api.PUT("/ideas/:id/status", h.UpdateIdeaStatus)

		// Votes
		api.POST("/ideas/:id/votes", gate.Handler(actionCastVote), h.CastVote)
		api.GET("/ideas/:id/votes/count", h.GetVoteCount)

		// Members
		api.POST("/members/activity", h.RecordActivity)
		api.GET("/members/:email/score", h.GetMemberScore)
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
