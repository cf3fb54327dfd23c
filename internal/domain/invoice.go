package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Invoice lifecycle errors.
var (
	ErrInvoiceNotFound         = &Error{Code: ENOTFOUND, Message: "Factura no encontrada"}
	ErrInvoiceCancelled        = &Error{Code: EGONE, Message: "La factura fue anulada"}
	ErrNoLineItems             = &Error{Code: EINVALID, Message: "La factura no tiene presentaciones asociadas"}
	ErrGenerationInProgress    = &Error{Code: ECONFLICT, Message: "Ya hay una generación en curso para esta factura"}
	ErrNoOrdersSelected        = &Error{Code: EINVALID, Message: "Debe seleccionar al menos una presentación"}
	ErrOrderNotBillable        = &Error{Code: EINVALID, Message: "La presentación no está completa"}
	ErrOrderAlreadySubmitted   = &Error{Code: ECONFLICT, Message: "La presentación ya fue enviada a la obra social"}
	ErrOrderWrongPayer         = &Error{Code: EINVALID, Message: "La presentación pertenece a otra obra social"}
	ErrOrderOutsidePeriod      = &Error{Code: EINVALID, Message: "La presentación está fuera del período facturado"}
	ErrIncompleteDocumentation = &Error{Code: EINVALID, Message: "Documentación incompleta: no se puede generar el paquete"}
)

// InvoiceStatus is the administrative state of an invoice.
// Invoices are never deleted; cancellation is a status transition.
type InvoiceStatus string

const (
	InvoiceStatusActive    InvoiceStatus = "active"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

// PackageStatus tracks the billing-package generation state machine:
// pending -> ready | error, with "sent" layered on top of ready once the
// package has actually gone out to the payer.
type PackageStatus string

const (
	PackageStatusPending PackageStatus = "pending"
	PackageStatusReady   PackageStatus = "ready"
	PackageStatusError   PackageStatus = "error"
	PackageStatusSent    PackageStatus = "sent"
)

// Invoice represents one billing submission to one payer for one period.
type Invoice struct {
	ID                uuid.UUID
	PayerID           uuid.UUID
	InvoiceNumber     string
	PeriodStart       time.Time
	PeriodEnd         time.Time
	Status            InvoiceStatus
	PackageStatus     PackageStatus
	ArchivePath       string
	RegenerationCount int32
	LastRegeneratedAt *time.Time
	LastRegeneratedBy *uuid.UUID
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// LineItem links an Invoice to one billable order included in it.
type LineItem struct {
	ID        uuid.UUID
	InvoiceID uuid.UUID
	OrderID   uuid.UUID
	CreatedAt time.Time
}

// CreateInvoiceParams contains parameters for creating an invoice from a set
// of eligible orders.
type CreateInvoiceParams struct {
	PayerID     uuid.UUID
	PeriodStart time.Time
	PeriodEnd   time.Time
	OrderIDs    []uuid.UUID
}

// GenerateParams contains parameters for one generation run.
type GenerateParams struct {
	InvoiceID uuid.UUID

	// Regeneration marks this run as a re-generation: the regeneration
	// counter is incremented and the acting operator is stamped.
	Regeneration bool

	// OperatorID is the acting operator's profile id, recorded on
	// regeneration.
	OperatorID uuid.UUID
}

// GenerateResult is the success envelope returned by a generation run.
type GenerateResult struct {
	PackageURL     string
	PDFCount       int
	ExcelGenerated bool
}

// BillingService drives the insurer billing-package lifecycle.
type BillingService interface {
	// CreateInvoice creates an invoice plus line items from the selected
	// order set. It does not touch the orders' sent flag.
	CreateInvoice(ctx context.Context, params CreateInvoiceParams) (*Invoice, error)

	// Generate runs the full package pipeline for an invoice: validate,
	// spreadsheet, per-order PDF consolidation, archive, then commit.
	// Safe to re-invoke after a failure; with Regeneration set it
	// overwrites the archive at the same logical location.
	Generate(ctx context.Context, params GenerateParams) (*GenerateResult, error)

	// Cancel anulls the invoice and returns its orders to the eligible
	// pool by resetting their sent flag.
	Cancel(ctx context.Context, invoiceID uuid.UUID) error

	// Validate checks document completeness for a set of orders without
	// touching any invoice. Usable standalone before invoice creation.
	Validate(ctx context.Context, orderIDs []uuid.UUID) ([]ValidationResult, error)

	// GetInvoice retrieves an invoice by id.
	GetInvoice(ctx context.Context, invoiceID uuid.UUID) (*Invoice, error)

	// ListInvoices lists invoices for a payer, newest first.
	ListInvoices(ctx context.Context, payerID uuid.UUID, limit, offset int32) ([]Invoice, error)

	// ListEligibleOrders returns completed, not-yet-sent orders for the
	// payer within the period: the selection feed for CreateInvoice.
	ListEligibleOrders(ctx context.Context, payerID uuid.UUID, periodStart, periodEnd time.Time) ([]Order, error)
}
