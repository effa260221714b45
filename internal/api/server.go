// Package api exposes the query views and refresh triggers over HTTP.
package api

import (
	"fmt"
	"log"
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"

	"payon-market/internal/query"
	"payon-market/internal/refresh"
)

// Server wires the query service and refresh runner into HTTP routes.
type Server struct {
	engine      *gin.Engine
	query       *query.Service
	runner      *refresh.Runner
	iconBaseURL string
	logger      *log.Logger

	// refreshMu serializes refresh cycles: overlapping cycles would fight
	// over the purge/insert sequence.
	refreshMu sync.Mutex
}

// Options contains configuration for creating a Server.
type Options struct {
	Query       *query.Service
	Runner      *refresh.Runner
	IconBaseURL string // base URL for item icon images, may be empty
	Logger      *log.Logger
}

// NewServer creates an HTTP server over the query service.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	s := &Server{
		query:       opts.Query,
		runner:      opts.Runner,
		iconBaseURL: opts.IconBaseURL,
		logger:      logger,
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.GET("/healthz", s.handleHealth)

	v1 := engine.Group("/api/v1")
	{
		v1.GET("/items", s.handleItems)
		v1.GET("/items/:id", s.handleItem)
		v1.GET("/vending", s.handleVending)

		v1.POST("/refresh/history", s.handleRefreshHistory)
		v1.POST("/refresh/vending", s.handleRefreshVending)
		v1.POST("/refresh/index", s.handleRefreshIndex)
	}

	s.engine = engine
	return s
}

// Handler returns the underlying HTTP handler, for tests and custom servers.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves HTTP on the given address until the listener fails.
func (s *Server) Run(addr string) error {
	return s.engine.Run(addr)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// itemResponse decorates a history view with its icon URL.
type itemResponse struct {
	query.HistoryView
	IconURL string `json:"iconUrl"`
}

// vendingResponse decorates a vending view with its icon URL.
type vendingResponse struct {
	query.VendingView
	IconURL string `json:"iconUrl"`
}

func (s *Server) handleItems(c *gin.Context) {
	offset, take, ok := s.pagination(c)
	if !ok {
		return
	}

	views, hasMore, err := s.query.Items(c.Request.Context(), offset, take)
	if err != nil {
		s.serverError(c, "list items", err)
		return
	}

	items := make([]itemResponse, len(views))
	for i, v := range views {
		items[i] = itemResponse{HistoryView: v, IconURL: s.iconURL(v.ItemID)}
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "hasMore": hasMore})
}

func (s *Server) handleItem(c *gin.Context) {
	itemID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item id"})
		return
	}

	views, err := s.query.Item(c.Request.Context(), itemID)
	if err != nil {
		s.serverError(c, "get item", err)
		return
	}

	items := make([]itemResponse, len(views))
	for i, v := range views {
		items[i] = itemResponse{HistoryView: v, IconURL: s.iconURL(v.ItemID)}
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (s *Server) handleVending(c *gin.Context) {
	offset, take, ok := s.pagination(c)
	if !ok {
		return
	}

	views, hasMore, err := s.query.Vending(c.Request.Context(), offset, take)
	if err != nil {
		s.serverError(c, "list vending", err)
		return
	}

	items := make([]vendingResponse, len(views))
	for i, v := range views {
		items[i] = vendingResponse{VendingView: v, IconURL: s.iconURL(v.ItemID)}
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "hasMore": hasMore})
}

func (s *Server) handleRefreshHistory(c *gin.Context) {
	opts, ok := s.cycleOptions(c)
	if !ok {
		return
	}

	if !s.refreshMu.TryLock() {
		c.JSON(http.StatusConflict, gin.H{"error": "a refresh cycle is already running"})
		return
	}
	defer s.refreshMu.Unlock()

	result, err := s.runner.RefreshHistory(c.Request.Context(), opts)
	if err != nil {
		s.serverError(c, "refresh history", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleRefreshVending(c *gin.Context) {
	opts, ok := s.cycleOptions(c)
	if !ok {
		return
	}

	if !s.refreshMu.TryLock() {
		c.JSON(http.StatusConflict, gin.H{"error": "a refresh cycle is already running"})
		return
	}
	defer s.refreshMu.Unlock()

	result, err := s.runner.RefreshVending(c.Request.Context(), opts)
	if err != nil {
		s.serverError(c, "refresh vending", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleRefreshIndex(c *gin.Context) {
	if !s.refreshMu.TryLock() {
		c.JSON(http.StatusConflict, gin.H{"error": "a refresh cycle is already running"})
		return
	}
	defer s.refreshMu.Unlock()

	if err := s.runner.RefreshItemIndex(c.Request.Context()); err != nil {
		s.serverError(c, "refresh index", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// pagination reads offset/take query params with the original defaults.
func (s *Server) pagination(c *gin.Context) (offset, take int, ok bool) {
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid offset"})
		return 0, 0, false
	}
	take, err = strconv.Atoi(c.DefaultQuery("take", "50"))
	if err != nil || take <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid take"})
		return 0, 0, false
	}
	return offset, take, true
}

// cycleOptions reads full/offset/limit query params into cycle options.
// Presence of offset or limit switches the cycle into slice mode.
func (s *Server) cycleOptions(c *gin.Context) (refresh.CycleOptions, bool) {
	opts := refresh.CycleOptions{
		Full: c.Query("full") == "true",
	}

	offsetStr, hasOffset := c.GetQuery("offset")
	limitStr, hasLimit := c.GetQuery("limit")
	if !hasOffset && !hasLimit {
		return opts, true
	}

	slice := &refresh.Slice{}
	if hasOffset {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil || offset < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid offset"})
			return refresh.CycleOptions{}, false
		}
		slice.Offset = offset
	}
	if hasLimit {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return refresh.CycleOptions{}, false
		}
		slice.Limit = limit
	}
	opts.Slice = slice
	return opts, true
}

func (s *Server) iconURL(itemID int) string {
	if s.iconBaseURL == "" {
		return ""
	}
	return fmt.Sprintf("%s/%d.png", s.iconBaseURL, itemID)
}

func (s *Server) serverError(c *gin.Context, op string, err error) {
	s.logger.Printf("[api] %s: %v", op, err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
