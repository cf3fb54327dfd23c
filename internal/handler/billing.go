// Package handler exposes the billing pipeline over JSON HTTP endpoints.
package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/NachoGeno/kinetix-flow-scheduler-sub001/internal/domain"
	"github.com/NachoGeno/kinetix-flow-scheduler-sub001/internal/middleware"
)

const dateLayout = "2006-01-02"

// BillingHandler serves the invoice and package-generation endpoints.
type BillingHandler struct {
	service domain.BillingService
	logger  zerolog.Logger
}

// NewBillingHandler returns a BillingHandler.
func NewBillingHandler(service domain.BillingService, logger zerolog.Logger) *BillingHandler {
	return &BillingHandler{
		service: service,
		logger:  logger.With().Str("component", "handler").Logger(),
	}
}

type createInvoiceRequest struct {
	PayerID     uuid.UUID   `json:"payer_id" validate:"required"`
	PeriodStart string      `json:"period_start" validate:"required"`
	PeriodEnd   string      `json:"period_end" validate:"required"`
	OrderIDs    []uuid.UUID `json:"order_ids" validate:"required,min=1"`
}

// CreateInvoice handles POST /api/billing/invoices.
func (h *BillingHandler) CreateInvoice(c echo.Context) error {
	var req createInvoiceRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, domain.Invalid("handler.create_invoice", "Cuerpo de solicitud inválido"))
	}
	if err := c.Validate(&req); err != nil {
		return respondError(c, err)
	}

	periodStart, periodEnd, err := parsePeriod(req.PeriodStart, req.PeriodEnd)
	if err != nil {
		return respondError(c, err)
	}

	invoice, err := h.service.CreateInvoice(c.Request().Context(), domain.CreateInvoiceParams{
		PayerID:     req.PayerID,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
		OrderIDs:    req.OrderIDs,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, invoiceResponse(invoice))
}

type generateRequest struct {
	Regeneration bool `json:"regeneration"`
}

// Generate handles POST /api/billing/invoices/:id/generate. A body with
// regeneration set marks the run as a regeneration; that requires operator
// attribution via the X-Operator-ID header.
func (h *BillingHandler) Generate(c echo.Context) error {
	invoiceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return respondError(c, domain.Invalid("handler.generate", "Identificador de factura inválido"))
	}

	var req generateRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, domain.Invalid("handler.generate", "Cuerpo de solicitud inválido"))
	}

	params := domain.GenerateParams{InvoiceID: invoiceID}
	if req.Regeneration {
		operatorID, ok := middleware.GetOperatorID(c)
		if !ok {
			return respondError(c, domain.Invalid("handler.generate", "Falta el operador para regenerar el paquete"))
		}
		params.Regeneration = true
		params.OperatorID = operatorID
	}

	result, err := h.service.Generate(c.Request().Context(), params)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success":         true,
		"package_url":     result.PackageURL,
		"pdf_count":       result.PDFCount,
		"excel_generated": result.ExcelGenerated,
	})
}

// Cancel handles POST /api/billing/invoices/:id/cancel.
func (h *BillingHandler) Cancel(c echo.Context) error {
	invoiceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return respondError(c, domain.Invalid("handler.cancel", "Identificador de factura inválido"))
	}
	if err := h.service.Cancel(c.Request().Context(), invoiceID); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

type validateRequest struct {
	OrderIDs []uuid.UUID `json:"order_ids" validate:"required,min=1"`
}

// Validate handles POST /api/billing/validate: the standalone completeness
// check operators run before assembling an invoice.
func (h *BillingHandler) Validate(c echo.Context) error {
	var req validateRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, domain.Invalid("handler.validate_orders", "Cuerpo de solicitud inválido"))
	}
	if err := c.Validate(&req); err != nil {
		return respondError(c, err)
	}

	results, err := h.service.Validate(c.Request().Context(), req.OrderIDs)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"results": results})
}

// GetInvoice handles GET /api/billing/invoices/:id.
func (h *BillingHandler) GetInvoice(c echo.Context) error {
	invoiceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return respondError(c, domain.Invalid("handler.get_invoice", "Identificador de factura inválido"))
	}
	invoice, err := h.service.GetInvoice(c.Request().Context(), invoiceID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, invoiceResponse(invoice))
}

// ListInvoices handles GET /api/billing/invoices?payer_id=...
func (h *BillingHandler) ListInvoices(c echo.Context) error {
	payerID, err := uuid.Parse(c.QueryParam("payer_id"))
	if err != nil {
		return respondError(c, domain.Invalid("handler.list_invoices", "Debe indicar la obra social"))
	}
	limit := queryInt(c, "limit", 50)
	offset := queryInt(c, "offset", 0)

	invoices, err := h.service.ListInvoices(c.Request().Context(), payerID, limit, offset)
	if err != nil {
		return respondError(c, err)
	}

	out := make([]map[string]any, 0, len(invoices))
	for i := range invoices {
		out = append(out, invoiceResponse(&invoices[i]))
	}
	return c.JSON(http.StatusOK, map[string]any{"invoices": out})
}

// ListEligibleOrders handles GET /api/billing/orders/eligible.
func (h *BillingHandler) ListEligibleOrders(c echo.Context) error {
	payerID, err := uuid.Parse(c.QueryParam("payer_id"))
	if err != nil {
		return respondError(c, domain.Invalid("handler.list_eligible", "Debe indicar la obra social"))
	}
	periodStart, periodEnd, err := parsePeriod(c.QueryParam("period_start"), c.QueryParam("period_end"))
	if err != nil {
		return respondError(c, err)
	}

	orders, err := h.service.ListEligibleOrders(c.Request().Context(), payerID, periodStart, periodEnd)
	if err != nil {
		return respondError(c, err)
	}

	out := make([]map[string]any, 0, len(orders))
	for _, o := range orders {
		out = append(out, map[string]any{
			"id":             o.ID,
			"patient":        o.PatientLabel(),
			"dni":            o.PatientDNI,
			"prescriber":     o.PrescriberName,
			"order_date":     o.OrderDate.Format(dateLayout),
			"total_sessions": o.TotalSessions,
			"used_sessions":  o.UsedSessions,
		})
	}
	return c.JSON(http.StatusOK, map[string]any{"orders": out})
}

func invoiceResponse(inv *domain.Invoice) map[string]any {
	resp := map[string]any{
		"id":                 inv.ID,
		"payer_id":           inv.PayerID,
		"invoice_number":     inv.InvoiceNumber,
		"period_start":       inv.PeriodStart.Format(dateLayout),
		"period_end":         inv.PeriodEnd.Format(dateLayout),
		"status":             inv.Status,
		"package_status":     inv.PackageStatus,
		"regeneration_count": inv.RegenerationCount,
		"created_at":         inv.CreatedAt,
		"updated_at":         inv.UpdatedAt,
	}
	if inv.ArchivePath != "" {
		resp["archive_path"] = inv.ArchivePath
	}
	if inv.LastRegeneratedAt != nil {
		resp["last_regenerated_at"] = inv.LastRegeneratedAt
	}
	if inv.LastRegeneratedBy != nil {
		resp["last_regenerated_by"] = inv.LastRegeneratedBy
	}
	return resp
}

func parsePeriod(start, end string) (time.Time, time.Time, error) {
	periodStart, err := time.Parse(dateLayout, start)
	if err != nil {
		return time.Time{}, time.Time{}, domain.Invalid("handler.period", "Fecha de inicio inválida (AAAA-MM-DD)")
	}
	periodEnd, err := time.Parse(dateLayout, end)
	if err != nil {
		return time.Time{}, time.Time{}, domain.Invalid("handler.period", "Fecha de fin inválida (AAAA-MM-DD)")
	}
	return periodStart, periodEnd, nil
}

func queryInt(c echo.Context, name string, def int32) int32 {
	raw := c.QueryParam(name)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return def
	}
	return int32(v)
}
