package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nurpe/supply-settlement/internal/http/middleware"
	"github.com/nurpe/supply-settlement/internal/model"
	"github.com/nurpe/supply-settlement/internal/service"
)

type InvoiceService interface {
	OpenPeriod(ctx context.Context, input service.OpenPeriodInput) (*service.OpenPeriodResult, error)
	Generate(ctx context.Context, input service.GenerateInput) (*service.RegenerateResult, error)
	GetStatus(ctx context.Context, principal model.Principal, invoiceID, organizationID uuid.UUID) (*model.InvoiceOrganization, error)
	DownloadAttachment(ctx context.Context, principal model.Principal, attachmentID uuid.UUID) (*model.Attachment, error)
	ExportStatement(ctx context.Context, principal model.Principal, invoiceID, organizationID uuid.UUID, format model.Format) (*service.ExportResult, error)
	ClosePeriod(ctx context.Context, principal model.Principal, invoiceID, organizationID uuid.UUID) error
}

type Handler struct {
	invoices InvoiceService
	log      zerolog.Logger
}

func NewHandler(invoices InvoiceService, log zerolog.Logger) *Handler {
	return &Handler{invoices: invoices, log: log}
}

func (h *Handler) Register(router *gin.Engine, authMiddleware gin.HandlerFunc) {
	protected := router.Group("/")
	protected.Use(authMiddleware)
	protected.POST("/invoices", h.openPeriod)
	protected.POST("/invoices/:id/organizations/:orgId/generate", h.generate)
	protected.GET("/invoices/:id/organizations/:orgId", h.status)
	protected.GET("/invoices/:id/organizations/:orgId/statement", h.statement)
	protected.DELETE("/invoices/:id/organizations/:orgId", h.closePeriod)
	protected.GET("/attachments/:id", h.download)
}

type openPeriodRequest struct {
	PeriodStart     string   `json:"start_date" binding:"required"`
	PeriodEnd       string   `json:"end_date" binding:"required"`
	InvoiceDate     string   `json:"invoice_date"`
	Layout          string   `json:"layout"`
	OrganizationIDs []string `json:"organization_ids" binding:"required"`
}

func (h *Handler) openPeriod(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	var req openPeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	start, err := parseDate(req.PeriodStart)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start_date"})
		return
	}
	end, err := parseDate(req.PeriodEnd)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end_date"})
		return
	}
	var invoiceDate time.Time
	if strings.TrimSpace(req.InvoiceDate) != "" {
		if invoiceDate, err = parseDate(req.InvoiceDate); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid invoice_date"})
			return
		}
	}
	layoutKind, err := parseLayout(req.Layout)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid layout"})
		return
	}

	orgIDs := make([]uuid.UUID, 0, len(req.OrganizationIDs))
	for _, raw := range req.OrganizationIDs {
		id, err := uuid.Parse(strings.TrimSpace(raw))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid organization_ids"})
			return
		}
		orgIDs = append(orgIDs, id)
	}

	result, err := h.invoices.OpenPeriod(c.Request.Context(), service.OpenPeriodInput{
		PeriodStart:     start,
		PeriodEnd:       end,
		InvoiceDate:     invoiceDate,
		Layout:          layoutKind,
		OrganizationIDs: orgIDs,
		Principal:       principal,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	organizations := make([]string, 0, len(result.Organizations))
	for _, join := range result.Organizations {
		organizations = append(organizations, join.OrganizationID.String())
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":               result.Invoice.ID,
		"start_date":       formatDate(result.Invoice.Period.Start),
		"end_date":         formatDate(result.Invoice.Period.End),
		"invoice_date":     formatDate(result.Invoice.InvoiceDate),
		"layout":           result.Invoice.Layout,
		"organization_ids": organizations,
	})
}

type generateRequest struct {
	Layout   string   `json:"layout"`
	Password string   `json:"password"`
	Formats  []string `json:"formats"`
}

func (h *Handler) generate(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	invoiceID, orgID, ok := h.pathIDs(c)
	if !ok {
		return
	}

	var req generateRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	layoutKind, err := parseLayout(req.Layout)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid layout"})
		return
	}
	formats := make([]model.Format, 0, len(req.Formats))
	for _, raw := range req.Formats {
		format, err := model.ParseFormat(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid formats"})
			return
		}
		formats = append(formats, format)
	}

	result, err := h.invoices.Generate(c.Request.Context(), service.GenerateInput{
		InvoiceID:      invoiceID,
		OrganizationID: orgID,
		Layout:         layoutKind,
		Formats:        formats,
		Password:       req.Password,
		Principal:      principal,
	})
	if err != nil {
		if result != nil && len(result.Formats) > 0 {
			h.log.Warn().Err(err).
				Str("invoice_id", invoiceID.String()).
				Str("organization_id", orgID.String()).
				Int("committed_formats", len(result.Formats)).
				Msg("generation left partial results")
		}
		h.handleError(c, err)
		return
	}

	documents := make([]gin.H, 0, len(result.Formats))
	for _, f := range result.Formats {
		doc := gin.H{"format": f.Format, "skipped": f.Skipped}
		if !f.Skipped {
			doc["attachment_id"] = f.AttachmentID
			doc["file_name"] = f.FileName
			doc["units"] = f.Units
			doc["page_count"] = f.PageCount
		}
		documents = append(documents, doc)
	}
	c.JSON(http.StatusOK, gin.H{
		"state":     result.State,
		"completed": result.Completed,
		"passwords": result.Passwords,
		"documents": documents,
	})
}

func (h *Handler) status(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	invoiceID, orgID, ok := h.pathIDs(c)
	if !ok {
		return
	}

	join, err := h.invoices.GetStatus(c.Request.Context(), principal, invoiceID, orgID)
	if err != nil {
		h.handleError(c, err)
		return
	}

	attachments := make([]gin.H, 0, len(join.Attachments))
	for _, a := range join.Attachments {
		attachments = append(attachments, gin.H{
			"id":         a.ID,
			"format":     a.Format,
			"file_name":  a.FileName,
			"page_count": a.PageCount,
			"created_at": a.CreatedAt,
		})
	}
	body := gin.H{
		"invoice_id":      join.InvoiceID,
		"organization_id": join.OrganizationID,
		"completed":       join.Completed,
		"attachments":     attachments,
		"updated_at":      join.UpdatedAt,
	}
	if join.Passwords != nil {
		body["passwords"] = join.Passwords
	}
	c.JSON(http.StatusOK, body)
}

func (h *Handler) statement(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	invoiceID, orgID, ok := h.pathIDs(c)
	if !ok {
		return
	}

	format := model.FormatOrganization
	if raw := c.Query("format"); raw != "" {
		parsed, err := model.ParseFormat(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid format"})
			return
		}
		format = parsed
	}

	result, err := h.invoices.ExportStatement(c.Request.Context(), principal, invoiceID, orgID, format)
	if err != nil {
		h.handleError(c, err)
		return
	}

	const contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	c.Header("Content-Disposition", "attachment; filename=\""+result.FileName+"\"")
	c.Data(http.StatusOK, contentType, result.Content)
}

func (h *Handler) download(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	attachmentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid attachment id"})
		return
	}

	attachment, err := h.invoices.DownloadAttachment(c.Request.Context(), principal, attachmentID)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename=\""+attachment.FileName+"\"")
	c.Data(http.StatusOK, attachment.ContentType, attachment.Content)
}

func (h *Handler) closePeriod(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	invoiceID, orgID, ok := h.pathIDs(c)
	if !ok {
		return
	}

	if err := h.invoices.ClosePeriod(c.Request.Context(), principal, invoiceID, orgID); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) pathIDs(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	invoiceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid invoice id"})
		return uuid.Nil, uuid.Nil, false
	}
	orgID, err := uuid.Parse(c.Param("orgId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid organization id"})
		return uuid.Nil, uuid.Nil, false
	}
	return invoiceID, orgID, true
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrRender):
		h.log.Error().Err(err).Msg("document render failed")
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "document could not be rendered"})
	default:
		h.log.Error().Err(err).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func parseLayout(raw string) (model.Layout, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	layoutKind, err := model.ParseLayout(raw)
	if err != nil {
		return "", service.ErrInvalidInput
	}
	return layoutKind, nil
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, service.ErrInvalidInput
	}
	layouts := []string{
		time.RFC3339,
		"2006-01-02",
		"2006-01-02T15:04:05",
	}
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, service.ErrInvalidInput
}

func formatDate(t time.Time) string {
	return t.Format("2006-01-02")
}
