package billing

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/NachoGeno/kinetix-flow-scheduler-sub001/internal/domain"
	"github.com/NachoGeno/kinetix-flow-scheduler-sub001/internal/store"
)

// fakeDocs is a DocumentSource backed by a map.
type fakeDocs struct {
	byOrder map[uuid.UUID][]domain.PresentationDocument
	err     error
}

func (f *fakeDocs) ListPresentationDocuments(_ context.Context, orderID uuid.UUID) ([]domain.PresentationDocument, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byOrder[orderID], nil
}

// fakeStore is an in-memory Datastore for service tests. WithTx runs the
// callback against the same state; commit atomicity itself is the real
// store's concern.
type fakeStore struct {
	invoices  map[uuid.UUID]domain.Invoice
	lineItems map[uuid.UUID][]uuid.UUID
	orders    map[uuid.UUID]domain.Order
	payers    map[uuid.UUID]domain.Payer
	templates map[uuid.UUID][]domain.TemplateColumn
	docs      *fakeDocs

	packageDocs map[uuid.UUID][]domain.PackageDocument

	regenerations int
	lastOperator  uuid.UUID

	lineItemsErr  error
	listOrdersErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		invoices:    make(map[uuid.UUID]domain.Invoice),
		lineItems:   make(map[uuid.UUID][]uuid.UUID),
		orders:      make(map[uuid.UUID]domain.Order),
		payers:      make(map[uuid.UUID]domain.Payer),
		templates:   make(map[uuid.UUID][]domain.TemplateColumn),
		docs:        &fakeDocs{byOrder: make(map[uuid.UUID][]domain.PresentationDocument)},
		packageDocs: make(map[uuid.UUID][]domain.PackageDocument),
	}
}

func (f *fakeStore) WithTx(ctx context.Context, fn func(q store.Querier) error) error {
	return fn(f)
}

func (f *fakeStore) CreateInvoice(_ context.Context, params store.CreateInvoiceParams) (domain.Invoice, error) {
	inv := domain.Invoice{
		ID:            uuid.New(),
		PayerID:       params.PayerID,
		InvoiceNumber: params.InvoiceNumber,
		PeriodStart:   params.PeriodStart,
		PeriodEnd:     params.PeriodEnd,
		Status:        domain.InvoiceStatusActive,
		PackageStatus: domain.PackageStatusPending,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	f.invoices[inv.ID] = inv
	return inv, nil
}

func (f *fakeStore) GetInvoice(_ context.Context, id uuid.UUID) (domain.Invoice, error) {
	inv, ok := f.invoices[id]
	if !ok {
		return domain.Invoice{}, domain.ErrInvoiceNotFound
	}
	return inv, nil
}

func (f *fakeStore) ListInvoicesByPayer(_ context.Context, payerID uuid.UUID, limit, offset int32) ([]domain.Invoice, error) {
	var out []domain.Invoice
	for _, inv := range f.invoices {
		if inv.PayerID == payerID {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdatePackageStatus(_ context.Context, id uuid.UUID, status domain.PackageStatus) error {
	inv, ok := f.invoices[id]
	if !ok {
		return domain.ErrInvoiceNotFound
	}
	inv.PackageStatus = status
	f.invoices[id] = inv
	return nil
}

func (f *fakeStore) MarkInvoiceReady(_ context.Context, id uuid.UUID, archivePath string) error {
	inv, ok := f.invoices[id]
	if !ok {
		return domain.ErrInvoiceNotFound
	}
	inv.PackageStatus = domain.PackageStatusReady
	inv.ArchivePath = archivePath
	f.invoices[id] = inv
	return nil
}

func (f *fakeStore) CancelInvoice(_ context.Context, id uuid.UUID) error {
	inv, ok := f.invoices[id]
	if !ok {
		return domain.ErrInvoiceNotFound
	}
	inv.Status = domain.InvoiceStatusCancelled
	inv.PackageStatus = domain.PackageStatusError
	f.invoices[id] = inv
	return nil
}

func (f *fakeStore) RecordRegeneration(_ context.Context, id uuid.UUID, operatorID uuid.UUID, at time.Time) error {
	inv, ok := f.invoices[id]
	if !ok {
		return domain.ErrInvoiceNotFound
	}
	inv.RegenerationCount++
	inv.LastRegeneratedAt = &at
	inv.LastRegeneratedBy = &operatorID
	f.invoices[id] = inv
	f.regenerations++
	f.lastOperator = operatorID
	return nil
}

func (f *fakeStore) CreateLineItem(_ context.Context, invoiceID, orderID uuid.UUID) error {
	f.lineItems[invoiceID] = append(f.lineItems[invoiceID], orderID)
	return nil
}

func (f *fakeStore) ListLineItemOrderIDs(_ context.Context, invoiceID uuid.UUID) ([]uuid.UUID, error) {
	if f.lineItemsErr != nil {
		return nil, f.lineItemsErr
	}
	return f.lineItems[invoiceID], nil
}

func (f *fakeStore) GetOrder(_ context.Context, id uuid.UUID) (domain.Order, error) {
	ord, ok := f.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return ord, nil
}

func (f *fakeStore) ListOrdersByIDs(_ context.Context, ids []uuid.UUID) ([]domain.Order, error) {
	if f.listOrdersErr != nil {
		return nil, f.listOrdersErr
	}
	var out []domain.Order
	for _, id := range ids {
		if ord, ok := f.orders[id]; ok {
			out = append(out, ord)
		}
	}
	return out, nil
}

func (f *fakeStore) ListEligibleOrders(_ context.Context, payerID uuid.UUID, periodStart, periodEnd time.Time) ([]domain.Order, error) {
	var out []domain.Order
	for _, ord := range f.orders {
		if ord.PayerID != payerID || !ord.Completed || ord.SentToInsurer {
			continue
		}
		if ord.OrderDate.Before(periodStart) || ord.OrderDate.After(periodEnd) {
			continue
		}
		out = append(out, ord)
	}
	return out, nil
}

func (f *fakeStore) SetOrdersSent(_ context.Context, orderIDs []uuid.UUID, sent bool) error {
	for _, id := range orderIDs {
		ord, ok := f.orders[id]
		if !ok {
			continue
		}
		ord.SentToInsurer = sent
		f.orders[id] = ord
	}
	return nil
}

func (f *fakeStore) ListPresentationDocuments(ctx context.Context, orderID uuid.UUID) ([]domain.PresentationDocument, error) {
	return f.docs.ListPresentationDocuments(ctx, orderID)
}

func (f *fakeStore) ReplacePackageDocuments(_ context.Context, invoiceID uuid.UUID, docs []domain.PackageDocument) error {
	f.packageDocs[invoiceID] = docs
	return nil
}

func (f *fakeStore) ListPackageDocuments(_ context.Context, invoiceID uuid.UUID) ([]domain.PackageDocument, error) {
	return f.packageDocs[invoiceID], nil
}

func (f *fakeStore) GetPayer(_ context.Context, id uuid.UUID) (domain.Payer, error) {
	p, ok := f.payers[id]
	if !ok {
		return domain.Payer{}, domain.ErrPayerNotFound
	}
	return p, nil
}

func (f *fakeStore) GetActiveTemplateColumns(_ context.Context, payerID uuid.UUID) ([]domain.TemplateColumn, error) {
	return f.templates[payerID], nil
}
