package api

import (
	"net/http"
	"slices"
	"strings"

	"portfolio-hub/internal/models"

	"github.com/gin-gonic/gin"
)

func (h *Handler) portalRoutes(g *gin.RouterGroup) {
	g.GET("/projects", h.MyProjects)
	g.GET("/projects/:id/messages", h.MyProjectChat)
	g.POST("/projects/:id/messages", h.SendClientChat)

	g.GET("/contracts", h.MyContracts)
	g.POST("/contracts/:id/sign", h.SignContract)
	g.GET("/invoices", h.MyInvoices)
	g.POST("/invoices/:id/pay", h.PayInvoice)

	g.GET("/notifications", h.MyNotifications)
	g.PUT("/notifications/:id/read", h.ReadNotification)
	g.PUT("/notifications/read-all", h.ReadAllNotifications)

	g.GET("/domains", h.MyDomains)
	g.POST("/domains", h.RegisterDomain)
	g.PUT("/domains/:id/auto-renew", h.SetAutoRenew)
	g.PUT("/domains/:id/website", h.SetWebsite)

	g.GET("/drafts", h.ListDrafts)
	g.GET("/drafts/:id", h.GetDraft)
	g.PUT("/drafts/:id", h.SaveDraft)
	g.DELETE("/drafts/:id", h.DeleteDraft)
}

// owns reports whether one of the lists holds id. Lists are read in order
// and later ones only when the earlier ones miss.
func owns[T any](id string, idOf func(T) string, lists ...func() []T) bool {
	for _, items := range lists {
		if slices.ContainsFunc(items(), func(item T) bool { return idOf(item) == id }) {
			return true
		}
	}
	return false
}

func notFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
}

func (h *Handler) MyProjects(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.FetchUserProjects(h.ctx(c), sessionEmail(c)))
}

func (h *Handler) ownsProject(c *gin.Context, id string) bool {
	ctx := h.ctx(c)
	email := sessionEmail(c)
	return owns(id, func(p models.GeneratedProject) string { return p.ID },
		func() []models.GeneratedProject {
			mine := h.svc.GetGeneratedProjects(ctx)
			return slices.DeleteFunc(mine, func(p models.GeneratedProject) bool { return p.UserEmail != email })
		},
		func() []models.GeneratedProject { return h.svc.FetchUserProjects(ctx, email) })
}

// MyProjectChat returns the chat of one of the client's requests and marks
// the studio's messages read
func (h *Handler) MyProjectChat(c *gin.Context) {
	id := c.Param("id")
	if !h.ownsProject(c, id) {
		notFound(c)
		return
	}
	ctx := h.ctx(c)
	chat := h.svc.FetchProjectMessages(ctx, id)
	h.svc.MarkProjectMessagesRead(ctx, id, "client")
	c.JSON(http.StatusOK, chat)
}

func (h *Handler) SendClientChat(c *gin.Context) {
	id := c.Param("id")
	if !h.ownsProject(c, id) {
		notFound(c)
		return
	}
	h.sendChat(c, id, "client")
}

func (h *Handler) MyContracts(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.FetchContracts(h.ctx(c), sessionEmail(c)))
}

// SignContract signs one of the client's contracts
func (h *Handler) SignContract(c *gin.Context) {
	ctx := h.ctx(c)
	id := c.Param("id")
	email := sessionEmail(c)
	if !owns(id, func(ct models.Contract) string { return ct.ID },
		func() []models.Contract { return h.svc.GetContracts(ctx, email) },
		func() []models.Contract { return h.svc.FetchContracts(ctx, email) }) {
		notFound(c)
		return
	}
	res, err := h.svc.SignContract(ctx, id)
	writeMutation(c, res, err)
}

func (h *Handler) MyInvoices(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.FetchInvoices(h.ctx(c), sessionEmail(c)))
}

func (h *Handler) PayInvoice(c *gin.Context) {
	ctx := h.ctx(c)
	id := c.Param("id")
	email := sessionEmail(c)
	if !owns(id, func(inv models.Invoice) string { return inv.ID },
		func() []models.Invoice { return h.svc.GetInvoices(ctx, email) },
		func() []models.Invoice { return h.svc.FetchInvoices(ctx, email) }) {
		notFound(c)
		return
	}
	res, err := h.svc.PayInvoice(ctx, id)
	writeMutation(c, res, err)
}

func (h *Handler) MyNotifications(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.FetchNotifications(h.ctx(c), sessionEmail(c)))
}

func (h *Handler) ReadNotification(c *gin.Context) {
	ctx := h.ctx(c)
	id := c.Param("id")
	email := sessionEmail(c)
	if !owns(id, func(n models.Notification) string { return n.ID },
		func() []models.Notification { return h.svc.GetNotifications(ctx, email) },
		func() []models.Notification { return h.svc.FetchNotifications(ctx, email) }) {
		notFound(c)
		return
	}
	res, err := h.svc.MarkNotificationRead(ctx, id)
	writeMutation(c, res, err)
}

func (h *Handler) ReadAllNotifications(c *gin.Context) {
	writeResult(c, http.StatusOK, h.svc.MarkAllNotificationsRead(h.ctx(c), sessionEmail(c)))
}

func (h *Handler) MyDomains(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.FetchDomains(h.ctx(c), sessionEmail(c)))
}

// RegisterDomain records a domain bought by the client
func (h *Handler) RegisterDomain(c *gin.Context) {
	var d models.Domain
	if err := c.ShouldBindJSON(&d); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if strings.TrimSpace(d.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "domainName is required"})
		return
	}
	d.Owner = sessionEmail(c)
	writeResult(c, http.StatusCreated, h.svc.AddDomain(h.ctx(c), d))
}

func (h *Handler) ownsDomain(c *gin.Context, id string) bool {
	ctx := h.ctx(c)
	email := sessionEmail(c)
	return owns(id, func(d models.Domain) string { return d.ID },
		func() []models.Domain { return h.svc.GetDomains(ctx, email) },
		func() []models.Domain { return h.svc.FetchDomains(ctx, email) })
}

func (h *Handler) SetAutoRenew(c *gin.Context) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id := c.Param("id")
	if !h.ownsDomain(c, id) {
		notFound(c)
		return
	}
	res, err := h.svc.ToggleAutoRenew(h.ctx(c), id, req.Enabled)
	writeMutation(c, res, err)
}

// SetWebsite links the domain to one of the client's projects. An empty
// websiteId unlinks it.
func (h *Handler) SetWebsite(c *gin.Context) {
	var req struct {
		WebsiteID string `json:"websiteId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id := c.Param("id")
	if !h.ownsDomain(c, id) {
		notFound(c)
		return
	}
	res, err := h.svc.LinkWebsite(h.ctx(c), id, req.WebsiteID)
	writeMutation(c, res, err)
}

func (h *Handler) ListDrafts(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.GetDrafts(h.ctx(c), sessionEmail(c)))
}

func (h *Handler) GetDraft(c *gin.Context) {
	draft, ok := h.svc.GetDraft(h.ctx(c), sessionEmail(c), c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Draft not found"})
		return
	}
	c.JSON(http.StatusOK, draft)
}

func (h *Handler) SaveDraft(c *gin.Context) {
	data, ok := bindPatch(c)
	if !ok {
		return
	}
	if err := h.svc.SaveDraft(h.ctx(c), sessionEmail(c), c.Param("id"), data); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, data)
}

func (h *Handler) DeleteDraft(c *gin.Context) {
	if err := h.svc.DeleteDraft(h.ctx(c), sessionEmail(c), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Draft deleted"})
}
