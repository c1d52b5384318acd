package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pevans/newsharvest/orchestrator"
	"github.com/pevans/newsharvest/runlock"
	"github.com/pevans/newsharvest/store"
)

// ScrapeRequest is the optional body of POST /api/scrape.
type ScrapeRequest struct {
	SourceID string `json:"sourceId"`
}

// ScrapeResponse is the response for POST /api/scrape.
type ScrapeResponse struct {
	Results []orchestrator.ScrapeResult `json:"results"`
	Summary orchestrator.Summary        `json:"summary"`
}

// UpdateSettingsRequest is the request for PUT /api/settings. Omitted
// fields keep their current value.
type UpdateSettingsRequest struct {
	ScrapeInterval   *int  `json:"scrapeInterval,omitempty"`
	EnableAutoScrape *bool `json:"enableAutoScrape,omitempty"`
}

// HealthResponse is the response for GET /api/health.
type HealthResponse struct {
	Status      string `json:"status"`
	DBConnected bool   `json:"dbConnected"`
	DBError     string `json:"dbError,omitempty"`
}

// handleError maps domain errors to HTTP responses.
func (s *Server) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrArticleNotFound), errors.Is(err, store.ErrSourceNotFound):
		c.JSON(http.StatusNotFound, errorResponse("not_found", err.Error()))
	case errors.Is(err, runlock.ErrLocked):
		c.JSON(http.StatusConflict, errorResponse("conflict", "A scrape is already running"))
	default:
		s.logger.Error("Request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse("internal_error", "Failed to process request"))
	}
}

// HandleHealth handles GET /api/health.
func (s *Server) HandleHealth(c *gin.Context) {
	if err := s.store.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, HealthResponse{
			Status:  "unavailable",
			DBError: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, HealthResponse{Status: "ok", DBConnected: true})
}

// HandleScrapeStatus handles GET /api/scrape.
func (s *Server) HandleScrapeStatus(c *gin.Context) {
	status, err := s.scraper.Status(c.Request.Context())
	if err != nil {
		s.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}

// HandleScrape handles POST /api/scrape. With a sourceId only that source
// is scraped; otherwise every active source is.
func (s *Server) HandleScrape(c *gin.Context) {
	var req ScrapeRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, errorResponse("bad_request", err.Error()))
		return
	}

	// A client disconnect must not abandon the sources still queued
	ctx := context.WithoutCancel(c.Request.Context())

	var results []orchestrator.ScrapeResult
	if req.SourceID != "" {
		results = []orchestrator.ScrapeResult{s.scraper.ScrapeSource(ctx, req.SourceID)}
	} else {
		var err error
		results, err = s.scraper.ScrapeAllSources(ctx)
		if err != nil {
			s.handleError(c, err)
			return
		}
	}

	c.JSON(http.StatusOK, ScrapeResponse{
		Results: results,
		Summary: orchestrator.Summarize(results),
	})
}

// HandleListArticles handles GET /api/articles.
func (s *Server) HandleListArticles(c *gin.Context) {
	filter := store.ArticleFilter{SourceID: c.Query("sourceId")}

	var err error
	if filter.Page, err = queryInt(c, "page"); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("validation_error", "page must be a number"))
		return
	}
	if filter.PageSize, err = queryInt(c, "pageSize"); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("validation_error", "pageSize must be a number"))
		return
	}

	page, err := s.store.ListArticles(c.Request.Context(), filter)
	if err != nil {
		s.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

// HandleGetArticle handles GET /api/articles/{id}.
func (s *Server) HandleGetArticle(c *gin.Context) {
	article, err := s.store.GetArticle(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, article)
}

// HandleGetSettings handles GET /api/settings.
func (s *Server) HandleGetSettings(c *gin.Context) {
	settings, err := s.store.GetSettings(c.Request.Context())
	if err != nil {
		s.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, settings)
}

// HandleUpdateSettings handles PUT /api/settings.
func (s *Server) HandleUpdateSettings(c *gin.Context) {
	var req UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("bad_request", err.Error()))
		return
	}

	if req.ScrapeInterval != nil && *req.ScrapeInterval < 1 {
		c.JSON(http.StatusBadRequest, errorResponse("validation_error", "scrapeInterval must be at least 1 minute"))
		return
	}

	settings, err := s.store.GetSettings(c.Request.Context())
	if err != nil {
		s.handleError(c, err)
		return
	}

	if req.ScrapeInterval != nil {
		settings.ScrapeInterval = *req.ScrapeInterval
	}
	if req.EnableAutoScrape != nil {
		settings.EnableAutoScrape = *req.EnableAutoScrape
	}

	updated, err := s.store.UpdateSettings(c.Request.Context(), *settings)
	if err != nil {
		s.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, updated)
}

// queryInt parses an optional integer query parameter. Missing means 0.
func queryInt(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
