package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"portfolio-hub/internal/models"
	"portfolio-hub/internal/remote"
	"portfolio-hub/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Handler holds service dependencies
type Handler struct {
	svc      *services.DataService
	log      logrus.FieldLogger
	gatherer prometheus.Gatherer
	upgrader websocket.Upgrader
}

// NewHandler creates a new API handler. A nil gatherer serves the default
// prometheus registry.
func NewHandler(svc *services.DataService, log logrus.FieldLogger, gatherer prometheus.Gatherer) *Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Handler{
		svc:      svc,
		log:      log.WithField("component", "api"),
		gatherer: gatherer,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// SetupRoutes configures all API routes
func SetupRoutes(r *gin.Engine, h *Handler) {
	r.GET("/healthz", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})))

	api := r.Group("/api/v1")
	{
		// Public site
		api.GET("/projects", h.ListProjects)
		api.GET("/skills", h.ListSkills)
		api.GET("/news", h.ListNews)
		api.GET("/settings", h.GetSettings)
		api.POST("/messages", h.CreateMessage)
		api.POST("/requests", h.SubmitRequest)
		api.GET("/domains/pricing", h.DomainPricing)
		api.GET("/domains/check", h.CheckDomain)

		// Authentication
		api.POST("/auth/admin/login", h.AdminLogin)
		api.POST("/auth/portal/signup", h.PortalSignUp)
		api.POST("/auth/portal/login", h.PortalLogin)
		api.POST("/auth/logout", h.Logout)

		// Change stream for any signed-in user
		api.GET("/events", h.RequireRole(services.RoleAdmin, services.RoleClient), h.Events)
	}

	admin := api.Group("/admin", h.RequireRole(services.RoleAdmin))
	h.adminRoutes(admin)

	portal := api.Group("/portal", h.RequireRole(services.RoleClient))
	h.portalRoutes(portal)
}

// Health reports liveness and the depth of the pending write queue
func (h *Handler) Health(c *gin.Context) {
	ctx := c.Request.Context()
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"pending_writes": len(h.svc.PendingWrites(ctx)),
		"open_intents":   len(h.svc.Intents(ctx)),
	})
}

// ListProjects returns the portfolio projects. ?cached=true skips the
// remote read.
func (h *Handler) ListProjects(c *gin.Context) {
	ctx := h.ctx(c)
	list(c, func() []models.Project { return h.svc.GetProjects(ctx) },
		func() []models.Project { return h.svc.FetchProjects(ctx) })
}

func (h *Handler) ListSkills(c *gin.Context) {
	ctx := h.ctx(c)
	list(c, func() []models.Skill { return h.svc.GetSkills(ctx) },
		func() []models.Skill { return h.svc.FetchSkills(ctx) })
}

func (h *Handler) ListNews(c *gin.Context) {
	ctx := h.ctx(c)
	list(c, func() []models.NewsItem { return h.svc.GetNews(ctx) },
		func() []models.NewsItem { return h.svc.FetchNews(ctx) })
}

// GetSettings returns the site settings
func (h *Handler) GetSettings(c *gin.Context) {
	ctx := h.ctx(c)
	if c.Query("cached") == "true" {
		c.JSON(http.StatusOK, h.svc.GetSettings(ctx))
		return
	}
	c.JSON(http.StatusOK, h.svc.FetchSettings(ctx))
}

// CreateMessage stores a contact form submission
func (h *Handler) CreateMessage(c *gin.Context) {
	var req struct {
		Name    string `json:"name" binding:"required"`
		Email   string `json:"email" binding:"required,email"`
		Subject string `json:"subject"`
		Message string `json:"message" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res := h.svc.AddMessage(h.ctx(c), models.Message{
		Name:    req.Name,
		Email:   req.Email,
		Subject: req.Subject,
		Body:    req.Message,
	})
	writeResult(c, http.StatusCreated, res)
}

// SubmitRequest stores a generated project request and clears its draft
func (h *Handler) SubmitRequest(c *gin.Context) {
	var req struct {
		DraftID string                  `json:"draftId"`
		Project models.GeneratedProject `json:"project"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if strings.TrimSpace(req.Project.Name) == "" || strings.TrimSpace(req.Project.UserEmail) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "projectName and userEmail are required"})
		return
	}

	res := h.svc.SaveGeneratedProject(h.ctx(c), req.DraftID, req.Project)
	writeResult(c, http.StatusCreated, res)
}

// DomainPricing lists the registration price per extension
func (h *Handler) DomainPricing(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.FetchDomainPricing(h.ctx(c)))
}

// CheckDomain answers whether ?name= can be registered
func (h *Handler) CheckDomain(c *gin.Context) {
	name := strings.TrimSpace(c.Query("name"))
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	c.JSON(http.StatusOK, h.svc.CheckDomain(h.ctx(c), name))
}

// AdminLogin handles administrator login
func (h *Handler) AdminLogin(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}

	admin, token, err := h.svc.LoginAdmin(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user":  admin,
	})
}

// PortalSignUp registers a client account
func (h *Handler) PortalSignUp(c *gin.Context) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required,min=6"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, err := h.svc.PortalSignUp(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"token": token, "email": strings.ToLower(strings.TrimSpace(req.Email))})
}

// PortalLogin opens a client session
func (h *Handler) PortalLogin(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}

	token, err := h.svc.PortalSignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "email": strings.ToLower(strings.TrimSpace(req.Email))})
}

// Logout forgets the stored sessions
func (h *Handler) Logout(c *gin.Context) {
	if err := h.svc.SignOut(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Signed out"})
}

// ctx returns the request context attributed to the signed-in user
func (h *Handler) ctx(c *gin.Context) context.Context {
	ctx := c.Request.Context()
	if claims := claimsFrom(c); claims != nil && claims.Email != "" {
		return services.WithActor(ctx, claims.Email)
	}
	return ctx
}

func list[T any](c *gin.Context, cached, fetch func() []T) {
	if c.Query("cached") == "true" {
		c.JSON(http.StatusOK, cached())
		return
	}
	c.JSON(http.StatusOK, fetch())
}

// writeResult answers 202 when the write only reached the local cache
func writeResult[T any](c *gin.Context, status int, res services.Result[T]) {
	if res.Pending() {
		status = http.StatusAccepted
	}
	c.JSON(status, res)
}

func writeMutation[T any](c *gin.Context, res services.Result[T], err error) {
	if err != nil {
		writeError(c, err)
		return
	}
	writeResult(c, http.StatusOK, res)
}

func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	var remoteErr *remote.Error
	switch {
	case errors.Is(err, services.ErrNotFound), errors.Is(err, remote.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	case errors.Is(err, remote.ErrAuthUnsupported):
		status = http.StatusNotImplemented
	case errors.Is(err, remote.ErrUnavailable):
		status = http.StatusServiceUnavailable
	case errors.As(err, &remoteErr) && remoteErr.Status >= 400 && remoteErr.Status < 500:
		status = http.StatusBadRequest
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func bindPatch(c *gin.Context) (map[string]any, bool) {
	var patch map[string]any
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	return patch, true
}
