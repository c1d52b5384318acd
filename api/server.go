// Package api serves scraping control, articles and settings over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pevans/newsharvest/orchestrator"
	"github.com/pevans/newsharvest/store"
)

// Store is the persistence the API reads and writes.
type Store interface {
	ListArticles(ctx context.Context, filter store.ArticleFilter) (*store.ArticlePage, error)
	GetArticle(ctx context.Context, id string) (*store.Article, error)
	GetSettings(ctx context.Context) (*store.Settings, error)
	UpdateSettings(ctx context.Context, settings store.Settings) (*store.Settings, error)
	Ping(ctx context.Context) error
}

// Scraper runs scrapes on request.
type Scraper interface {
	ScrapeSource(ctx context.Context, sourceID string) orchestrator.ScrapeResult
	ScrapeAllSources(ctx context.Context) ([]orchestrator.ScrapeResult, error)
	Status(ctx context.Context) (*orchestrator.Status, error)
}

// Server is the HTTP API server.
type Server struct {
	store   Store
	scraper Scraper
	logger  *slog.Logger
}

// NewServer creates a new API server.
func NewServer(s Store, scraper Scraper, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		store:   s,
		scraper: scraper,
		logger:  logger,
	}
}

// SetupRouter configures the Gin router with all API routes.
func (s *Server) SetupRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())

	// Add CORS middleware
	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	})

	api := router.Group("/api")
	api.GET("/health", s.HandleHealth)
	api.GET("/scrape", s.HandleScrapeStatus)
	api.POST("/scrape", s.HandleScrape)
	api.GET("/articles", s.HandleListArticles)
	api.GET("/articles/:id", s.HandleGetArticle)
	api.GET("/settings", s.HandleGetSettings)
	api.PUT("/settings", s.HandleUpdateSettings)

	return router
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("Handled request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

// errorResponse creates a standardized error response.
func errorResponse(code, message string) gin.H {
	return gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
}
