package api

import (
	"net/http"
	"strings"

	"portfolio-hub/internal/models"
	"portfolio-hub/internal/services"

	"github.com/gin-gonic/gin"
)

func (h *Handler) adminRoutes(g *gin.RouterGroup) {
	// Portfolio content
	g.POST("/projects", h.CreateProject)
	g.PUT("/projects/:id", h.UpdateProject)
	g.DELETE("/projects/:id", h.DeleteProject)
	g.POST("/skills", h.CreateSkill)
	g.PUT("/skills/:id", h.UpdateSkill)
	g.DELETE("/skills/:id", h.DeleteSkill)
	g.POST("/news", h.CreateNews)
	g.PUT("/news/:id", h.UpdateNews)
	g.DELETE("/news/:id", h.DeleteNews)
	g.PUT("/settings", h.UpdateSettings)
	g.POST("/reset", h.ResetContent)

	// Clients
	g.GET("/leads", h.ListLeads)
	g.POST("/leads", h.CreateLead)
	g.DELETE("/leads/:id", h.DeleteLead)
	g.GET("/requests", h.ListRequests)
	g.GET("/requests/:id", h.GetRequest)
	g.PUT("/requests/:id", h.UpdateRequest)
	g.DELETE("/requests/:id", h.DeleteRequest)
	g.GET("/requests/:id/messages", h.ListProjectChat)
	g.POST("/requests/:id/messages", h.SendAdminChat)
	g.GET("/messages", h.ListMessages)
	g.PUT("/messages/:id/read", h.ReadMessage)
	g.POST("/messages/:id/reply", h.ReplyMessage)
	g.DELETE("/messages/:id", h.DeleteMessage)

	// Billing
	g.GET("/contracts", h.ListContracts)
	g.POST("/contracts", h.CreateContract)
	g.PUT("/contracts/:id", h.UpdateContract)
	g.DELETE("/contracts/:id", h.DeleteContract)
	g.GET("/invoices", h.ListInvoices)
	g.POST("/invoices", h.CreateInvoice)
	g.PUT("/invoices/:id", h.UpdateInvoice)
	g.DELETE("/invoices/:id", h.DeleteInvoice)
	g.GET("/transactions", h.ListTransactions)
	g.POST("/transactions", h.CreateTransaction)
	g.PUT("/transactions/:id", h.UpdateTransaction)

	// Domains
	g.GET("/domains", h.ListDomains)
	g.POST("/domains", h.CreateDomain)
	g.PUT("/domains/:id/status", h.SetDomainStatus)
	g.DELETE("/domains/:id", h.DeleteDomain)
	g.POST("/domains/sweep", h.SweepDomains)

	// Notifications, activity log and sync state
	g.GET("/notifications", h.ListAdminNotifications)
	g.PUT("/notifications/read-all", h.ReadAllAdminNotifications)
	g.GET("/activities", h.ListActivities)
	g.GET("/stats", h.DashboardStats)
	g.GET("/sync/queue", h.ListPendingWrites)
	g.GET("/sync/intents", h.ListIntents)
	g.POST("/sync/replay", h.Replay)
}

func (h *Handler) CreateProject(c *gin.Context) {
	var p models.Project
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if strings.TrimSpace(p.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	writeResult(c, http.StatusCreated, h.svc.AddProject(h.ctx(c), p))
}

func (h *Handler) UpdateProject(c *gin.Context) {
	patch, ok := bindPatch(c)
	if !ok {
		return
	}
	res, err := h.svc.UpdateProject(h.ctx(c), c.Param("id"), patch)
	writeMutation(c, res, err)
}

func (h *Handler) DeleteProject(c *gin.Context) {
	res, err := h.svc.DeleteProject(h.ctx(c), c.Param("id"))
	writeMutation(c, res, err)
}

func (h *Handler) CreateSkill(c *gin.Context) {
	var k models.Skill
	if err := c.ShouldBindJSON(&k); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if strings.TrimSpace(k.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	writeResult(c, http.StatusCreated, h.svc.AddSkill(h.ctx(c), k))
}

func (h *Handler) UpdateSkill(c *gin.Context) {
	patch, ok := bindPatch(c)
	if !ok {
		return
	}
	res, err := h.svc.UpdateSkill(h.ctx(c), c.Param("id"), patch)
	writeMutation(c, res, err)
}

func (h *Handler) DeleteSkill(c *gin.Context) {
	res, err := h.svc.DeleteSkill(h.ctx(c), c.Param("id"))
	writeMutation(c, res, err)
}

func (h *Handler) CreateNews(c *gin.Context) {
	var n models.NewsItem
	if err := c.ShouldBindJSON(&n); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if strings.TrimSpace(n.Title) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title is required"})
		return
	}
	writeResult(c, http.StatusCreated, h.svc.AddNews(h.ctx(c), n))
}

func (h *Handler) UpdateNews(c *gin.Context) {
	patch, ok := bindPatch(c)
	if !ok {
		return
	}
	res, err := h.svc.UpdateNews(h.ctx(c), c.Param("id"), patch)
	writeMutation(c, res, err)
}

func (h *Handler) DeleteNews(c *gin.Context) {
	res, err := h.svc.DeleteNews(h.ctx(c), c.Param("id"))
	writeMutation(c, res, err)
}

// UpdateSettings merges the posted fields into the site settings
func (h *Handler) UpdateSettings(c *gin.Context) {
	patch, ok := bindPatch(c)
	if !ok {
		return
	}
	writeResult(c, http.StatusOK, h.svc.UpdateSettings(h.ctx(c), patch))
}

// ResetContent restores the built-in projects, skills, news and settings
func (h *Handler) ResetContent(c *gin.Context) {
	if err := h.svc.ResetToDefaults(h.ctx(c)); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Content reset to defaults"})
}

func (h *Handler) ListLeads(c *gin.Context) {
	ctx := h.ctx(c)
	list(c, func() []models.Lead { return h.svc.GetUsers(ctx) },
		func() []models.Lead { return h.svc.FetchUsers(ctx) })
}

func (h *Handler) CreateLead(c *gin.Context) {
	var lead models.Lead
	if err := c.ShouldBindJSON(&lead); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if strings.TrimSpace(lead.Email) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email is required"})
		return
	}
	writeResult(c, http.StatusOK, h.svc.AddUser(h.ctx(c), lead))
}

func (h *Handler) DeleteLead(c *gin.Context) {
	res, err := h.svc.DeleteUser(h.ctx(c), c.Param("id"))
	writeMutation(c, res, err)
}

func (h *Handler) ListRequests(c *gin.Context) {
	ctx := h.ctx(c)
	list(c, func() []models.GeneratedProject { return h.svc.GetGeneratedProjects(ctx) },
		func() []models.GeneratedProject { return h.svc.FetchGeneratedProjects(ctx) })
}

func (h *Handler) GetRequest(c *gin.Context) {
	p, ok := h.svc.GetGeneratedProject(h.ctx(c), c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Request not found"})
		return
	}
	c.JSON(http.StatusOK, p)
}

// UpdateRequest patches a request, typically its stage or status
func (h *Handler) UpdateRequest(c *gin.Context) {
	patch, ok := bindPatch(c)
	if !ok {
		return
	}
	res, err := h.svc.UpdateGeneratedProject(h.ctx(c), c.Param("id"), patch)
	writeMutation(c, res, err)
}

func (h *Handler) DeleteRequest(c *gin.Context) {
	res, err := h.svc.DeleteGeneratedProject(h.ctx(c), c.Param("id"))
	writeMutation(c, res, err)
}

// ListProjectChat returns the chat of a request and marks the client's
// messages read
func (h *Handler) ListProjectChat(c *gin.Context) {
	ctx := h.ctx(c)
	id := c.Param("id")
	chat := h.svc.FetchProjectMessages(ctx, id)
	h.svc.MarkProjectMessagesRead(ctx, id, "admin")
	c.JSON(http.StatusOK, chat)
}

func (h *Handler) SendAdminChat(c *gin.Context) {
	h.sendChat(c, c.Param("id"), "admin")
}

func (h *Handler) sendChat(c *gin.Context, projectID, sender string) {
	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res := h.svc.SendProjectMessage(h.ctx(c), models.ProjectMessage{
		ProjectID:  projectID,
		SenderType: sender,
		Content:    req.Content,
	})
	writeResult(c, http.StatusCreated, res)
}

func (h *Handler) ListMessages(c *gin.Context) {
	ctx := h.ctx(c)
	list(c, func() []models.Message { return h.svc.GetMessages(ctx) },
		func() []models.Message { return h.svc.FetchMessages(ctx) })
}

func (h *Handler) ReadMessage(c *gin.Context) {
	res, err := h.svc.MarkMessageRead(h.ctx(c), c.Param("id"))
	writeMutation(c, res, err)
}

func (h *Handler) ReplyMessage(c *gin.Context) {
	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := h.svc.ReplyToMessage(h.ctx(c), c.Param("id"), req.Content)
	writeMutation(c, res, err)
}

func (h *Handler) DeleteMessage(c *gin.Context) {
	res, err := h.svc.DeleteMessage(h.ctx(c), c.Param("id"))
	writeMutation(c, res, err)
}

// ListContracts returns every contract, or those of ?email=
func (h *Handler) ListContracts(c *gin.Context) {
	ctx := h.ctx(c)
	email := c.Query("email")
	list(c, func() []models.Contract { return h.svc.GetContracts(ctx, email) },
		func() []models.Contract { return h.svc.FetchContracts(ctx, email) })
}

func (h *Handler) CreateContract(c *gin.Context) {
	var ct models.Contract
	if err := c.ShouldBindJSON(&ct); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if strings.TrimSpace(ct.UserEmail) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userEmail is required"})
		return
	}
	writeResult(c, http.StatusCreated, h.svc.AddContract(h.ctx(c), ct))
}

func (h *Handler) UpdateContract(c *gin.Context) {
	patch, ok := bindPatch(c)
	if !ok {
		return
	}
	res, err := h.svc.UpdateContract(h.ctx(c), c.Param("id"), patch)
	writeMutation(c, res, err)
}

func (h *Handler) DeleteContract(c *gin.Context) {
	res, err := h.svc.DeleteContract(h.ctx(c), c.Param("id"))
	writeMutation(c, res, err)
}

func (h *Handler) ListInvoices(c *gin.Context) {
	ctx := h.ctx(c)
	email := c.Query("email")
	list(c, func() []models.Invoice { return h.svc.GetInvoices(ctx, email) },
		func() []models.Invoice { return h.svc.FetchInvoices(ctx, email) })
}

func (h *Handler) CreateInvoice(c *gin.Context) {
	var inv models.Invoice
	if err := c.ShouldBindJSON(&inv); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if strings.TrimSpace(inv.UserEmail) == "" || inv.Amount <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userEmail and a positive amount are required"})
		return
	}
	writeResult(c, http.StatusCreated, h.svc.AddInvoice(h.ctx(c), inv))
}

func (h *Handler) UpdateInvoice(c *gin.Context) {
	patch, ok := bindPatch(c)
	if !ok {
		return
	}
	res, err := h.svc.UpdateInvoice(h.ctx(c), c.Param("id"), patch)
	writeMutation(c, res, err)
}

func (h *Handler) DeleteInvoice(c *gin.Context) {
	res, err := h.svc.DeleteInvoice(h.ctx(c), c.Param("id"))
	writeMutation(c, res, err)
}

// DashboardStats returns lead, request and message analytics
func (h *Handler) DashboardStats(c *gin.Context) {
	ctx := h.ctx(c)
	if c.Query("cached") == "true" {
		c.JSON(http.StatusOK, h.svc.DashboardStats(ctx))
		return
	}
	c.JSON(http.StatusOK, h.svc.FetchDashboardStats(ctx))
}

// ListTransactions returns every domain transaction with the finance summary
func (h *Handler) ListTransactions(c *gin.Context) {
	ctx := h.ctx(c)
	if c.Query("cached") == "true" {
		txs := h.svc.GetTransactions(ctx)
		c.JSON(http.StatusOK, gin.H{"transactions": txs, "summary": services.Summarize(txs)})
		return
	}
	txs, summary := h.svc.FetchAllTransactions(ctx)
	c.JSON(http.StatusOK, gin.H{"transactions": txs, "summary": summary})
}

func (h *Handler) CreateTransaction(c *gin.Context) {
	var t models.DomainTransaction
	if err := c.ShouldBindJSON(&t); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	writeResult(c, http.StatusCreated, h.svc.AddTransaction(h.ctx(c), t))
}

func (h *Handler) UpdateTransaction(c *gin.Context) {
	patch, ok := bindPatch(c)
	if !ok {
		return
	}
	res, err := h.svc.UpdateTransaction(h.ctx(c), c.Param("id"), patch)
	writeMutation(c, res, err)
}

// ListDomains returns every registered domain, or those of ?owner=
func (h *Handler) ListDomains(c *gin.Context) {
	ctx := h.ctx(c)
	owner := c.Query("owner")
	list(c, func() []models.Domain { return h.svc.GetDomains(ctx, owner) },
		func() []models.Domain { return h.svc.FetchDomains(ctx, owner) })
}

func (h *Handler) CreateDomain(c *gin.Context) {
	var d models.Domain
	if err := c.ShouldBindJSON(&d); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if strings.TrimSpace(d.Name) == "" || strings.TrimSpace(d.Owner) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "domainName and owner are required"})
		return
	}
	writeResult(c, http.StatusCreated, h.svc.AddDomain(h.ctx(c), d))
}

func (h *Handler) SetDomainStatus(c *gin.Context) {
	var req struct {
		Status models.DomainStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := h.svc.UpdateDomainStatus(h.ctx(c), c.Param("id"), req.Status)
	writeMutation(c, res, err)
}

func (h *Handler) DeleteDomain(c *gin.Context) {
	res, err := h.svc.DeleteDomain(h.ctx(c), c.Param("id"))
	writeMutation(c, res, err)
}

// SweepDomains runs the expiry sweep now
func (h *Handler) SweepDomains(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.CheckDomainExpiry(h.ctx(c)))
}

func (h *Handler) ListAdminNotifications(c *gin.Context) {
	ctx := h.ctx(c)
	c.JSON(http.StatusOK, h.svc.FetchNotifications(ctx, h.svc.AdminEmail(ctx)))
}

func (h *Handler) ReadAllAdminNotifications(c *gin.Context) {
	ctx := h.ctx(c)
	writeResult(c, http.StatusOK, h.svc.MarkAllNotificationsRead(ctx, h.svc.AdminEmail(ctx)))
}

func (h *Handler) ListActivities(c *gin.Context) {
	ctx := h.ctx(c)
	list(c, func() []models.Activity { return h.svc.GetActivities(ctx) },
		func() []models.Activity { return h.svc.FetchActivities(ctx) })
}

// ListPendingWrites shows the writes still waiting for the remote store
func (h *Handler) ListPendingWrites(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.PendingWrites(h.ctx(c)))
}

func (h *Handler) ListIntents(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Intents(h.ctx(c)))
}

// Replay drains the pending write queue now
func (h *Handler) Replay(c *gin.Context) {
	report, err := h.svc.Reconcile(h.ctx(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
