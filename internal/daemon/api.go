package daemon

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"dailycast/internal/logging"
	"dailycast/internal/services"
)

// apiServer exposes the daemon over a loopback HTTP listener. The ntfy
// action buttons and the CLI both talk to it.
type apiServer struct {
	daemon *Daemon
	server *http.Server
	addr   string
}

func newAPIServer(d *Daemon) *apiServer {
	return &apiServer{daemon: d}
}

// Start binds the configured address and serves in the background.
func (a *apiServer) Start(ctx context.Context) error {
	gin.SetMode(gin.ReleaseMode)

	listener, err := net.Listen("tcp", a.daemon.cfg.Paths.APIBind)
	if err != nil {
		return err
	}
	a.addr = listener.Addr().String()
	a.server = &http.Server{
		Handler:           a.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := a.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.daemon.logger.Error("api server stopped", logging.Error(err))
		}
	}()
	return nil
}

// Stop shuts the HTTP server down, letting in-flight requests finish.
func (a *apiServer) Stop() {
	if a.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.server.Shutdown(ctx); err != nil {
		a.daemon.logger.Warn("api shutdown incomplete", logging.Error(err))
	}
	a.server = nil
}

// Addr returns the bound listener address.
func (a *apiServer) Addr() string {
	return a.addr
}

func (a *apiServer) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	api := r.Group("/api")
	{
		api.GET("/status", a.handleStatus)

		api.POST("/items", a.handleEnqueue)
		api.GET("/items", a.handleList)
		api.GET("/items/:id", a.handleGet)
		api.DELETE("/items/:id", a.handleRemove)
		api.PATCH("/items/:id", a.handleEdit)
		api.POST("/items/swap", a.handleSwap)
		api.POST("/items/:id/quality", a.handleQuality)

		api.GET("/history", a.handleHistory)
		api.GET("/choices", a.handleChoices)

		api.POST("/run", a.handleRun)
		api.PUT("/settings/publish-time", a.handlePublishTime)
		api.POST("/notify/test", a.handleTestNotify)
	}
	return r
}

func (a *apiServer) handleStatus(c *gin.Context) {
	status, err := a.daemon.Status(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (a *apiServer) handleEnqueue(c *gin.Context) {
	var req struct {
		URL string `json:"url" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must include a url field"})
		return
	}
	item, err := a.daemon.Enqueue(c.Request.Context(), req.URL)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (a *apiServer) handleList(c *gin.Context) {
	items, err := a.daemon.store.ListActive(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (a *apiServer) handleGet(c *gin.Context) {
	id, ok := itemID(c)
	if !ok {
		return
	}
	item, err := a.daemon.store.GetByID(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (a *apiServer) handleRemove(c *gin.Context) {
	id, ok := itemID(c)
	if !ok {
		return
	}
	if err := a.daemon.store.Remove(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": id})
}

func (a *apiServer) handleEdit(c *gin.Context) {
	id, ok := itemID(c)
	if !ok {
		return
	}
	var req struct {
		Title       *string `json:"title"`
		Description *string `json:"description"`
		ThumbMode   *string `json:"thumb_mode"`
		ThumbRef    *string `json:"thumb_ref"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed edit body"})
		return
	}

	ctx := c.Request.Context()
	if req.Title != nil {
		if err := a.daemon.store.UpdateTitle(ctx, id, *req.Title); err != nil {
			writeError(c, err)
			return
		}
	}
	if req.Description != nil {
		if err := a.daemon.store.UpdateDescription(ctx, id, *req.Description); err != nil {
			writeError(c, err)
			return
		}
	}
	if req.ThumbMode != nil {
		ref := ""
		if req.ThumbRef != nil {
			ref = *req.ThumbRef
		}
		if err := a.daemon.store.UpdateThumbnail(ctx, id, *req.ThumbMode, ref); err != nil {
			writeError(c, err)
			return
		}
	}

	item, err := a.daemon.store.GetByID(ctx, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (a *apiServer) handleSwap(c *gin.Context) {
	var req struct {
		A int64 `json:"a" binding:"required"`
		B int64 `json:"b" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must include item ids a and b"})
		return
	}
	if err := a.daemon.store.SwapOrder(c.Request.Context(), req.A, req.B); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"swapped": []int64{req.A, req.B}})
}

// handleQuality accepts the bare height ntfy posts when an action
// button is tapped, e.g. a body of "1080".
func (a *apiServer) handleQuality(c *gin.Context) {
	id, ok := itemID(c)
	if !ok {
		return
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 64))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}
	height, err := strconv.Atoi(strings.TrimSpace(string(body)))
	if err != nil || height <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must be a positive height in pixels"})
		return
	}
	if err := a.daemon.SubmitQuality(id, height); err != nil {
		writeError(c, err)
		return
	}
	a.daemon.RunNow(id)
	c.JSON(http.StatusAccepted, gin.H{"item_id": id, "height": height})
}

func (a *apiServer) handleHistory(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}
	items, err := a.daemon.store.ListPublished(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (a *apiServer) handleChoices(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"pending": a.daemon.runner.PendingChoices()})
}

func (a *apiServer) handleRun(c *gin.Context) {
	var req struct {
		ID int64 `json:"id"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "malformed run body"})
			return
		}
	}
	a.daemon.RunNow(req.ID)
	c.JSON(http.StatusAccepted, gin.H{"started": true, "item_id": req.ID})
}

func (a *apiServer) handlePublishTime(c *gin.Context) {
	var req struct {
		Time string `json:"time" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must include a time field"})
		return
	}
	if err := a.daemon.SetPublishTime(c.Request.Context(), req.Time); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"publish_time": req.Time})
}

func (a *apiServer) handleTestNotify(c *gin.Context) {
	ok, detail, err := a.daemon.TestNotification(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"sent": false, "detail": detail, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sent": ok, "detail": detail})
}

func itemID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "item id must be a positive integer"})
		return 0, false
	}
	return id, true
}

func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrNotEditable):
		status = http.StatusConflict
	case errors.Is(err, services.ErrConfiguration):
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
