// Package billing implements the insurer billing-package pipeline: document
// completeness validation, summary spreadsheet generation, per-order PDF
// consolidation, zip bundling and the atomic submission commit.
package billing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/NachoGeno/kinetix-flow-scheduler-sub001/internal/domain"
	"github.com/NachoGeno/kinetix-flow-scheduler-sub001/internal/store"
	"github.com/NachoGeno/kinetix-flow-scheduler-sub001/internal/telemetry"
)

// Datastore is the persistence surface the service needs: the query set plus
// transactional execution. Satisfied by *store.Store.
type Datastore interface {
	store.Querier
	WithTx(ctx context.Context, fn func(q store.Querier) error) error
}

// Service implements domain.BillingService.
type Service struct {
	db           Datastore
	validator    *Validator
	sheets       *SpreadsheetBuilder
	consolidator *Consolidator
	bundler      *Bundler
	locks        *keyedLock
	metrics      *telemetry.Metrics
	logger       zerolog.Logger
	now          func() time.Time
}

// Compile-time check that Service implements domain.BillingService.
var _ domain.BillingService = (*Service)(nil)

// NewService wires the pipeline stages into a BillingService.
func NewService(db Datastore, validator *Validator, sheets *SpreadsheetBuilder, consolidator *Consolidator, bundler *Bundler, metrics *telemetry.Metrics, logger zerolog.Logger) *Service {
	return &Service{
		db:           db,
		validator:    validator,
		sheets:       sheets,
		consolidator: consolidator,
		bundler:      bundler,
		locks:        newKeyedLock(),
		metrics:      metrics,
		logger:       logger.With().Str("component", "billing").Logger(),
		now:          time.Now,
	}
}

// CreateInvoice creates an invoice and its line items from the selected
// orders in one transaction. Every order must exist, belong to the payer,
// fall inside the billing period, be completed and not yet submitted. The
// orders' sent flag is untouched here; it only flips when a generated
// package commits.
func (s *Service) CreateInvoice(ctx context.Context, params domain.CreateInvoiceParams) (*domain.Invoice, error) {
	const op = "billing.create_invoice"

	if len(params.OrderIDs) == 0 {
		return nil, domain.ErrNoOrdersSelected
	}
	if _, err := s.db.GetPayer(ctx, params.PayerID); err != nil {
		return nil, err
	}

	orders, err := s.db.ListOrdersByIDs(ctx, params.OrderIDs)
	if err != nil {
		return nil, domain.Internal(err, op, "No se pudieron obtener las presentaciones")
	}
	if len(orders) != len(params.OrderIDs) {
		return nil, domain.ErrOrderNotFound
	}
	for _, order := range orders {
		if order.PayerID != params.PayerID {
			return nil, domain.Invalid(op, fmt.Sprintf("%s: %s", domain.ErrOrderWrongPayer.Message, order.PatientLabel()))
		}
		if order.OrderDate.Before(params.PeriodStart) || order.OrderDate.After(params.PeriodEnd) {
			return nil, domain.Invalid(op, fmt.Sprintf("%s: %s", domain.ErrOrderOutsidePeriod.Message, order.PatientLabel()))
		}
		if !order.Completed {
			return nil, domain.Invalid(op, fmt.Sprintf("%s: %s", domain.ErrOrderNotBillable.Message, order.PatientLabel()))
		}
		if order.SentToInsurer {
			return nil, domain.Conflict(op, fmt.Sprintf("%s: %s", domain.ErrOrderAlreadySubmitted.Message, order.PatientLabel()))
		}
	}

	var invoice domain.Invoice
	err = s.db.WithTx(ctx, func(q store.Querier) error {
		inv, err := q.CreateInvoice(ctx, store.CreateInvoiceParams{
			PayerID:       params.PayerID,
			InvoiceNumber: newInvoiceNumber(params.PeriodStart),
			PeriodStart:   params.PeriodStart,
			PeriodEnd:     params.PeriodEnd,
		})
		if err != nil {
			return err
		}
		for _, orderID := range params.OrderIDs {
			if err := q.CreateLineItem(ctx, inv.ID, orderID); err != nil {
				return err
			}
		}
		invoice = inv
		return nil
	})
	if err != nil {
		return nil, domain.Internal(err, op, "No se pudo crear la factura")
	}

	s.logger.Info().
		Str("invoice_id", invoice.ID.String()).
		Str("payer_id", params.PayerID.String()).
		Int("orders", len(params.OrderIDs)).
		Msg("invoice created")
	return &invoice, nil
}

// Generate runs the full package pipeline. Exactly one run per invoice at a
// time; a second caller gets ErrGenerationInProgress immediately. The sent
// flags, the package-document rows and the ready status commit in a single
// transaction only after the archive is safely uploaded, so a failure at any
// stage leaves the orders billable and the invoice retriable.
func (s *Service) Generate(ctx context.Context, params domain.GenerateParams) (*domain.GenerateResult, error) {
	const op = "billing.generate"

	if !s.locks.TryLock(params.InvoiceID) {
		return nil, domain.ErrGenerationInProgress
	}
	defer s.locks.Unlock(params.InvoiceID)

	start := s.now()
	res, err := s.generate(ctx, op, params)
	if s.metrics != nil {
		s.metrics.GenerationDuration.Observe(s.now().Sub(start).Seconds())
		s.metrics.GenerationsTotal.WithLabelValues(generationOutcome(err)).Inc()
	}
	return res, err
}

func (s *Service) generate(ctx context.Context, op string, params domain.GenerateParams) (*domain.GenerateResult, error) {
	invoice, err := s.db.GetInvoice(ctx, params.InvoiceID)
	if err != nil {
		return nil, err
	}
	if invoice.Status == domain.InvoiceStatusCancelled {
		return nil, domain.ErrInvoiceCancelled
	}

	orderIDs, err := s.db.ListLineItemOrderIDs(ctx, invoice.ID)
	if err != nil {
		return nil, s.fail(ctx, op, invoice.ID, "No se pudieron obtener las presentaciones de la factura", err)
	}
	if len(orderIDs) == 0 {
		return nil, domain.ErrNoLineItems
	}

	orders, err := s.db.ListOrdersByIDs(ctx, orderIDs)
	if err != nil {
		return nil, s.fail(ctx, op, invoice.ID, "No se pudieron obtener las presentaciones", err)
	}

	results, err := s.validator.ValidateOrders(ctx, orders)
	if err != nil {
		return nil, s.fail(ctx, op, invoice.ID, "No se pudo validar la documentación", err)
	}
	if ok, failed := AllComplete(results); !ok {
		if s.metrics != nil {
			s.metrics.ValidationFailures.Inc()
		}
		s.markError(ctx, invoice.ID)
		return nil, domain.Invalid(op, incompleteMessage(failed))
	}

	payer, err := s.db.GetPayer(ctx, invoice.PayerID)
	if err != nil {
		return nil, s.fail(ctx, op, invoice.ID, "No se pudo obtener la obra social", err)
	}
	columns, err := s.db.GetActiveTemplateColumns(ctx, invoice.PayerID)
	if err != nil {
		return nil, s.fail(ctx, op, invoice.ID, "No se pudo obtener la plantilla de exportación", err)
	}

	spreadsheet, err := s.sheets.Build(payer, columns, orders)
	if err != nil {
		return nil, s.fail(ctx, op, invoice.ID, "No se pudo generar la planilla", err)
	}

	baseName := packageBaseName(payer.Name, invoice.PeriodEnd)
	sheetPath, err := s.bundler.StoreSpreadsheet(ctx, invoice.ID.String(), "presentacion_"+baseName+".xlsx", spreadsheet)
	if err != nil {
		return nil, s.fail(ctx, op, invoice.ID, "No se pudo guardar la planilla", err)
	}

	docs, err := s.consolidator.ConsolidateAll(ctx, invoice.ID.String(), orders)
	if err != nil {
		return nil, s.fail(ctx, op, invoice.ID, "No se pudieron consolidar los documentos", err)
	}

	bundle, err := s.bundler.Bundle(ctx, invoice.ID.String(), "paquete_"+baseName+".zip", sheetPath, docs)
	if err != nil {
		return nil, s.fail(ctx, op, invoice.ID, "No se pudo armar el paquete", err)
	}

	err = s.db.WithTx(ctx, func(q store.Querier) error {
		if err := q.MarkInvoiceReady(ctx, invoice.ID, bundle.ArchivePath); err != nil {
			return err
		}
		if err := q.ReplacePackageDocuments(ctx, invoice.ID, docs); err != nil {
			return err
		}
		if err := q.SetOrdersSent(ctx, orderIDs, true); err != nil {
			return err
		}
		if params.Regeneration {
			return q.RecordRegeneration(ctx, invoice.ID, params.OperatorID, s.now())
		}
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, op, invoice.ID, "No se pudo confirmar el paquete", err)
	}

	if s.metrics != nil {
		s.metrics.ArchiveSizeBytes.Observe(float64(bundle.SizeBytes))
	}
	s.logger.Info().
		Str("invoice_id", invoice.ID.String()).
		Str("archive", bundle.ArchivePath).
		Int("pdfs", bundle.PDFCount).
		Int("skipped", bundle.Skipped).
		Bool("regeneration", params.Regeneration).
		Msg("package generated")

	return &domain.GenerateResult{
		PackageURL:     bundle.ArchivePath,
		PDFCount:       bundle.PDFCount,
		ExcelGenerated: true,
	}, nil
}

// Cancel anulls the invoice and returns its orders to the eligible pool.
// Both sides happen in one transaction so the orders never stay flagged for
// a dead invoice.
func (s *Service) Cancel(ctx context.Context, invoiceID uuid.UUID) error {
	const op = "billing.cancel"

	invoice, err := s.db.GetInvoice(ctx, invoiceID)
	if err != nil {
		return err
	}
	if invoice.Status == domain.InvoiceStatusCancelled {
		return domain.ErrInvoiceCancelled
	}

	orderIDs, err := s.db.ListLineItemOrderIDs(ctx, invoiceID)
	if err != nil {
		return domain.Internal(err, op, "No se pudieron obtener las presentaciones de la factura")
	}

	err = s.db.WithTx(ctx, func(q store.Querier) error {
		if err := q.CancelInvoice(ctx, invoiceID); err != nil {
			return err
		}
		return q.SetOrdersSent(ctx, orderIDs, false)
	})
	if err != nil {
		return domain.Internal(err, op, "No se pudo anular la factura")
	}

	s.logger.Info().
		Str("invoice_id", invoiceID.String()).
		Int("orders_released", len(orderIDs)).
		Msg("invoice cancelled")
	return nil
}

// Validate runs the completeness check for arbitrary orders, outside any
// invoice.
func (s *Service) Validate(ctx context.Context, orderIDs []uuid.UUID) ([]domain.ValidationResult, error) {
	const op = "billing.validate"

	if len(orderIDs) == 0 {
		return nil, domain.ErrNoOrdersSelected
	}
	orders, err := s.db.ListOrdersByIDs(ctx, orderIDs)
	if err != nil {
		return nil, domain.Internal(err, op, "No se pudieron obtener las presentaciones")
	}
	if len(orders) != len(orderIDs) {
		return nil, domain.ErrOrderNotFound
	}
	return s.validator.ValidateOrders(ctx, orders)
}

// GetInvoice retrieves an invoice by id.
func (s *Service) GetInvoice(ctx context.Context, invoiceID uuid.UUID) (*domain.Invoice, error) {
	invoice, err := s.db.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

// ListInvoices lists invoices for a payer, newest first.
func (s *Service) ListInvoices(ctx context.Context, payerID uuid.UUID, limit, offset int32) ([]domain.Invoice, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.db.ListInvoicesByPayer(ctx, payerID, limit, offset)
}

// ListEligibleOrders returns the billable orders an operator can pick from
// when assembling an invoice for the payer and period.
func (s *Service) ListEligibleOrders(ctx context.Context, payerID uuid.UUID, periodStart, periodEnd time.Time) ([]domain.Order, error) {
	const op = "billing.list_eligible_orders"

	if periodEnd.Before(periodStart) {
		return nil, domain.Invalid(op, "El período es inválido: la fecha de fin es anterior a la de inicio")
	}
	if _, err := s.db.GetPayer(ctx, payerID); err != nil {
		return nil, err
	}
	return s.db.ListEligibleOrders(ctx, payerID, periodStart, periodEnd)
}

// fail marks the invoice's package as errored and wraps the underlying
// cause. The status write is best effort; the original error always wins.
func (s *Service) fail(ctx context.Context, op string, invoiceID uuid.UUID, message string, err error) error {
	s.markError(ctx, invoiceID)
	return domain.Internal(err, op, message)
}

func (s *Service) markError(ctx context.Context, invoiceID uuid.UUID) {
	if err := s.db.UpdatePackageStatus(ctx, invoiceID, domain.PackageStatusError); err != nil {
		s.logger.Error().
			Str("invoice_id", invoiceID.String()).
			Err(err).
			Msg("failed to mark package as errored")
	}
}

func generationOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case domain.IsCode(err, domain.EINVALID):
		return "validation_failed"
	case domain.IsCode(err, domain.ECONFLICT):
		return "conflict"
	default:
		return "error"
	}
}

// incompleteMessage renders the operator-facing rejection, one line per
// incomplete order.
func incompleteMessage(failed []domain.ValidationResult) string {
	var b strings.Builder
	b.WriteString(domain.ErrIncompleteDocumentation.Message)
	for _, r := range failed {
		b.WriteString(fmt.Sprintf("\n%s: %s", r.PatientLabel, strings.Join(r.Missing, ", ")))
	}
	return b.String()
}

// packageBaseName builds the archive and spreadsheet base name, e.g.
// "OSDE_Nandu_2024-05" for payer "OSDE Ñandú" and a period ending May 2024.
func packageBaseName(payerName string, periodEnd time.Time) string {
	name := sanitizeFilename(payerName)
	if name == "" {
		name = "obra_social"
	}
	return fmt.Sprintf("%s_%s", name, periodEnd.Format("2006-01"))
}

// newInvoiceNumber builds a period-scoped invoice number with a random
// suffix, e.g. "FP-202405-9F2A41C7". Uniqueness is backed by the database
// constraint.
func newInvoiceNumber(periodStart time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
	return fmt.Sprintf("FP-%s-%s", periodStart.Format("200601"), suffix)
}
