package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NachoGeno/kinetix-flow-scheduler-sub001/internal/domain"
	"github.com/NachoGeno/kinetix-flow-scheduler-sub001/internal/pdf"
	"github.com/NachoGeno/kinetix-flow-scheduler-sub001/internal/storage"
)

type serviceFixture struct {
	service *Service
	store   *fakeStore
	objects *storage.MemoryStore
	merger  *pdf.MockMerger

	payer   domain.Payer
	invoice domain.Invoice
	orders  []domain.Order
}

// newServiceFixture wires a complete service over in-memory fakes with one
// payer, one invoice and two fully documented orders.
func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	ctx := context.Background()

	fs := newFakeStore()
	objects := storage.NewMemoryStore()
	merger := &pdf.MockMerger{}

	payer := domain.Payer{ID: uuid.New(), Name: "OSDE Ñandú", Kind: "obra_social", Active: true}
	fs.payers[payer.ID] = payer

	orders := []domain.Order{
		seedConsolidationOrder(t, fs.docs, objects, "orders/1"),
		seedConsolidationOrder(t, fs.docs, objects, "orders/2"),
	}
	orders[1].PatientFirstName = "Juan"
	orders[1].PatientLastName = "Pérez"
	orders[1].PatientDNI = "28999111"
	for i := range orders {
		orders[i].PayerID = payer.ID
		fs.orders[orders[i].ID] = orders[i]
	}

	invoice := domain.Invoice{
		ID:            uuid.New(),
		PayerID:       payer.ID,
		InvoiceNumber: "FP-202405-TEST0001",
		PeriodStart:   time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:     time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC),
		Status:        domain.InvoiceStatusActive,
		PackageStatus: domain.PackageStatusPending,
	}
	fs.invoices[invoice.ID] = invoice
	for _, o := range orders {
		require.NoError(t, fs.CreateLineItem(ctx, invoice.ID, o.ID))
	}

	logger := zerolog.Nop()
	service := NewService(
		fs,
		NewValidator(fs, objects, testBucket, logger),
		NewSpreadsheetBuilder(),
		NewConsolidator(fs, objects, merger, testBucket, nil, logger),
		NewBundler(objects, testBucket, logger),
		nil,
		logger,
	)

	return &serviceFixture{
		service: service,
		store:   fs,
		objects: objects,
		merger:  merger,
		payer:   payer,
		invoice: invoice,
		orders:  orders,
	}
}

func TestGenerateSuccess(t *testing.T) {
	ctx := context.Background()
	fx := newServiceFixture(t)

	result, err := fx.service.Generate(ctx, domain.GenerateParams{InvoiceID: fx.invoice.ID})
	require.NoError(t, err)

	assert.Equal(t, 2, result.PDFCount)
	assert.True(t, result.ExcelGenerated)
	assert.Equal(t, "invoices/"+fx.invoice.ID.String()+"/paquete_OSDE_Nandu_2024-05.zip", result.PackageURL)

	// Invoice flipped to ready with the archive recorded.
	inv, err := fx.store.GetInvoice(ctx, fx.invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PackageStatusReady, inv.PackageStatus)
	assert.Equal(t, result.PackageURL, inv.ArchivePath)

	// Every order is now flagged as sent.
	for _, o := range fx.orders {
		got, err := fx.store.GetOrder(ctx, o.ID)
		require.NoError(t, err)
		assert.True(t, got.SentToInsurer)
	}

	// Package documents recorded for the run.
	docs, err := fx.store.ListPackageDocuments(ctx, fx.invoice.ID)
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	// No regeneration bookkeeping on a first run.
	assert.Zero(t, fx.store.regenerations)

	// The archive actually exists in storage.
	data, err := fx.objects.Download(ctx, testBucket, result.PackageURL)
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	// The spreadsheet is its own object under the invoice prefix, so it
	// stays retrievable without unpacking the archive.
	sheet, err := fx.objects.Download(ctx, testBucket, "invoices/"+fx.invoice.ID.String()+"/presentacion_OSDE_Nandu_2024-05.xlsx")
	require.NoError(t, err)
	assert.NotEmpty(t, sheet)
}

func TestGenerateFailsWhenOrderFetchFails(t *testing.T) {
	ctx := context.Background()
	fx := newServiceFixture(t)
	fx.store.listOrdersErr = errors.New("connection reset")

	_, err := fx.service.Generate(ctx, domain.GenerateParams{InvoiceID: fx.invoice.ID})
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.EINTERNAL))

	// A pipeline failure before the flag flip still lands on the package
	// status so operators see the errored run.
	inv, err := fx.store.GetInvoice(ctx, fx.invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PackageStatusError, inv.PackageStatus)
}

func TestGenerateRejectsIncompleteDocumentation(t *testing.T) {
	ctx := context.Background()
	fx := newServiceFixture(t)

	// One authorization object disappears.
	fx.objects.Delete(ctx, testBucket, "orders/2/autorizacion.pdf")

	_, err := fx.service.Generate(ctx, domain.GenerateParams{InvoiceID: fx.invoice.ID})
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.EINVALID))

	// The message names the patient and the exact gap.
	msg := domain.ErrorMessage(err)
	assert.Contains(t, msg, "Documentación incompleta")
	assert.Contains(t, msg, "Pérez, Juan")
	assert.Contains(t, msg, "Autorización: archivo no encontrado en Storage")

	// Nothing was merged or committed: flags untouched, status errored.
	assert.Empty(t, fx.merger.Merged)
	for _, o := range fx.orders {
		got, err := fx.store.GetOrder(ctx, o.ID)
		require.NoError(t, err)
		assert.False(t, got.SentToInsurer)
	}
	inv, err := fx.store.GetInvoice(ctx, fx.invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PackageStatusError, inv.PackageStatus)
	assert.Empty(t, inv.ArchivePath)
}

func TestGenerateFailsOnMergeErrorWithoutCommitting(t *testing.T) {
	ctx := context.Background()
	fx := newServiceFixture(t)
	fx.merger.FailOn = []byte("P-evolucion")

	_, err := fx.service.Generate(ctx, domain.GenerateParams{InvoiceID: fx.invoice.ID})
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.EINTERNAL))

	for _, o := range fx.orders {
		got, err := fx.store.GetOrder(ctx, o.ID)
		require.NoError(t, err)
		assert.False(t, got.SentToInsurer)
	}
	inv, err := fx.store.GetInvoice(ctx, fx.invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PackageStatusError, inv.PackageStatus)
}

func TestGenerateCancelledInvoice(t *testing.T) {
	ctx := context.Background()
	fx := newServiceFixture(t)
	require.NoError(t, fx.store.CancelInvoice(ctx, fx.invoice.ID))

	_, err := fx.service.Generate(ctx, domain.GenerateParams{InvoiceID: fx.invoice.ID})
	assert.ErrorIs(t, err, domain.ErrInvoiceCancelled)
}

func TestGenerateUnknownInvoice(t *testing.T) {
	ctx := context.Background()
	fx := newServiceFixture(t)

	_, err := fx.service.Generate(ctx, domain.GenerateParams{InvoiceID: uuid.New()})
	assert.ErrorIs(t, err, domain.ErrInvoiceNotFound)
}

func TestGenerateEmptyInvoice(t *testing.T) {
	ctx := context.Background()
	fx := newServiceFixture(t)
	fx.store.lineItems[fx.invoice.ID] = nil

	_, err := fx.service.Generate(ctx, domain.GenerateParams{InvoiceID: fx.invoice.ID})
	assert.ErrorIs(t, err, domain.ErrNoLineItems)
}

func TestGenerateSingleFlight(t *testing.T) {
	ctx := context.Background()
	fx := newServiceFixture(t)

	// Simulate an in-flight run holding the invoice lock.
	require.True(t, fx.service.locks.TryLock(fx.invoice.ID))

	_, err := fx.service.Generate(ctx, domain.GenerateParams{InvoiceID: fx.invoice.ID})
	assert.ErrorIs(t, err, domain.ErrGenerationInProgress)

	// A different invoice is unaffected.
	fx.service.locks.Unlock(fx.invoice.ID)
	_, err = fx.service.Generate(ctx, domain.GenerateParams{InvoiceID: fx.invoice.ID})
	assert.NoError(t, err)
}

func TestGenerateRegenerationStampsOperator(t *testing.T) {
	ctx := context.Background()
	fx := newServiceFixture(t)

	_, err := fx.service.Generate(ctx, domain.GenerateParams{InvoiceID: fx.invoice.ID})
	require.NoError(t, err)

	operator := uuid.New()
	result, err := fx.service.Generate(ctx, domain.GenerateParams{
		InvoiceID:    fx.invoice.ID,
		Regeneration: true,
		OperatorID:   operator,
	})
	require.NoError(t, err)

	inv, err := fx.store.GetInvoice(ctx, fx.invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, int32(1), inv.RegenerationCount)
	require.NotNil(t, inv.LastRegeneratedBy)
	assert.Equal(t, operator, *inv.LastRegeneratedBy)

	// Regeneration lands at the same deterministic archive path.
	assert.Equal(t, inv.ArchivePath, result.PackageURL)

	// Package documents were replaced, not accumulated.
	docs, err := fx.store.ListPackageDocuments(ctx, fx.invoice.ID)
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestCancelReleasesOrders(t *testing.T) {
	ctx := context.Background()
	fx := newServiceFixture(t)

	_, err := fx.service.Generate(ctx, domain.GenerateParams{InvoiceID: fx.invoice.ID})
	require.NoError(t, err)

	require.NoError(t, fx.service.Cancel(ctx, fx.invoice.ID))

	inv, err := fx.store.GetInvoice(ctx, fx.invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusCancelled, inv.Status)

	// Orders are billable again.
	for _, o := range fx.orders {
		got, err := fx.store.GetOrder(ctx, o.ID)
		require.NoError(t, err)
		assert.False(t, got.SentToInsurer)
	}

	// Cancelling twice reports the invoice as already gone.
	err = fx.service.Cancel(ctx, fx.invoice.ID)
	assert.ErrorIs(t, err, domain.ErrInvoiceCancelled)
}

func TestCreateInvoice(t *testing.T) {
	ctx := context.Background()
	fx := newServiceFixture(t)

	params := domain.CreateInvoiceParams{
		PayerID:     fx.payer.ID,
		PeriodStart: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC),
		OrderIDs:    []uuid.UUID{fx.orders[0].ID, fx.orders[1].ID},
	}

	inv, err := fx.service.CreateInvoice(ctx, params)
	require.NoError(t, err)

	assert.Equal(t, domain.InvoiceStatusActive, inv.Status)
	assert.Equal(t, domain.PackageStatusPending, inv.PackageStatus)
	assert.Contains(t, inv.InvoiceNumber, "FP-202405-")

	ids, err := fx.store.ListLineItemOrderIDs(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, params.OrderIDs, ids)

	// Creating an invoice does not flag the orders as sent.
	got, err := fx.store.GetOrder(ctx, fx.orders[0].ID)
	require.NoError(t, err)
	assert.False(t, got.SentToInsurer)
}

func TestCreateInvoiceRejections(t *testing.T) {
	ctx := context.Background()
	periodStart := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	periodEnd := time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC)

	t.Run("no orders selected", func(t *testing.T) {
		fx := newServiceFixture(t)
		_, err := fx.service.CreateInvoice(ctx, domain.CreateInvoiceParams{PayerID: fx.payer.ID})
		assert.ErrorIs(t, err, domain.ErrNoOrdersSelected)
	})

	t.Run("unknown payer", func(t *testing.T) {
		fx := newServiceFixture(t)
		_, err := fx.service.CreateInvoice(ctx, domain.CreateInvoiceParams{
			PayerID:  uuid.New(),
			OrderIDs: []uuid.UUID{fx.orders[0].ID},
		})
		assert.ErrorIs(t, err, domain.ErrPayerNotFound)
	})

	t.Run("unknown order", func(t *testing.T) {
		fx := newServiceFixture(t)
		_, err := fx.service.CreateInvoice(ctx, domain.CreateInvoiceParams{
			PayerID:  fx.payer.ID,
			OrderIDs: []uuid.UUID{uuid.New()},
		})
		assert.ErrorIs(t, err, domain.ErrOrderNotFound)
	})

	t.Run("order not completed", func(t *testing.T) {
		fx := newServiceFixture(t)
		o := fx.orders[0]
		o.Completed = false
		fx.store.orders[o.ID] = o

		_, err := fx.service.CreateInvoice(ctx, domain.CreateInvoiceParams{
			PayerID:     fx.payer.ID,
			PeriodStart: periodStart,
			PeriodEnd:   periodEnd,
			OrderIDs:    []uuid.UUID{o.ID},
		})
		assert.True(t, domain.IsCode(err, domain.EINVALID))
	})

	t.Run("order already submitted", func(t *testing.T) {
		fx := newServiceFixture(t)
		o := fx.orders[0]
		o.SentToInsurer = true
		fx.store.orders[o.ID] = o

		_, err := fx.service.CreateInvoice(ctx, domain.CreateInvoiceParams{
			PayerID:     fx.payer.ID,
			PeriodStart: periodStart,
			PeriodEnd:   periodEnd,
			OrderIDs:    []uuid.UUID{o.ID},
		})
		assert.True(t, domain.IsCode(err, domain.ECONFLICT))
	})

	t.Run("order from another payer", func(t *testing.T) {
		fx := newServiceFixture(t)
		other := domain.Payer{ID: uuid.New(), Name: "Swiss Medical", Kind: "prepaga", Active: true}
		fx.store.payers[other.ID] = other

		_, err := fx.service.CreateInvoice(ctx, domain.CreateInvoiceParams{
			PayerID:     other.ID,
			PeriodStart: periodStart,
			PeriodEnd:   periodEnd,
			OrderIDs:    []uuid.UUID{fx.orders[0].ID},
		})
		require.Error(t, err)
		assert.True(t, domain.IsCode(err, domain.EINVALID))
		assert.Contains(t, domain.ErrorMessage(err), "pertenece a otra obra social")
	})

	t.Run("order outside period", func(t *testing.T) {
		fx := newServiceFixture(t)

		_, err := fx.service.CreateInvoice(ctx, domain.CreateInvoiceParams{
			PayerID:     fx.payer.ID,
			PeriodStart: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
			PeriodEnd:   time.Date(2030, 1, 31, 0, 0, 0, 0, time.UTC),
			OrderIDs:    []uuid.UUID{fx.orders[0].ID},
		})
		require.Error(t, err)
		assert.True(t, domain.IsCode(err, domain.EINVALID))
		assert.Contains(t, domain.ErrorMessage(err), "fuera del período facturado")
	})
}

func TestValidateStandalone(t *testing.T) {
	ctx := context.Background()
	fx := newServiceFixture(t)

	results, err := fx.service.Validate(ctx, []uuid.UUID{fx.orders[0].ID, fx.orders[1].ID})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[0].Complete)
	assert.True(t, results[1].Complete)

	_, err = fx.service.Validate(ctx, nil)
	assert.ErrorIs(t, err, domain.ErrNoOrdersSelected)

	_, err = fx.service.Validate(ctx, []uuid.UUID{uuid.New()})
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestListEligibleOrdersChecksPeriod(t *testing.T) {
	ctx := context.Background()
	fx := newServiceFixture(t)

	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	_, err := fx.service.ListEligibleOrders(ctx, fx.payer.ID, start, start.AddDate(0, 0, -1))
	assert.True(t, domain.IsCode(err, domain.EINVALID))

	orders, err := fx.service.ListEligibleOrders(ctx, fx.payer.ID, start, start.AddDate(0, 1, 0))
	require.NoError(t, err)
	assert.Len(t, orders, 2)
}
