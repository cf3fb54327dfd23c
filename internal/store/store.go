// Package store implements PostgreSQL persistence for the billing pipeline
// using pgx. Queries is the concrete implementation; Querier is the
// interface the service layer depends on so tests can substitute fakes.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/NachoGeno/kinetix-flow-scheduler-sub001/internal/domain"
)

// DBTX is the subset of pgx methods shared by pools and transactions.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Querier is the persistence contract consumed by the billing service.
type Querier interface {
	// Invoices
	CreateInvoice(ctx context.Context, params CreateInvoiceParams) (domain.Invoice, error)
	GetInvoice(ctx context.Context, id uuid.UUID) (domain.Invoice, error)
	ListInvoicesByPayer(ctx context.Context, payerID uuid.UUID, limit, offset int32) ([]domain.Invoice, error)
	UpdatePackageStatus(ctx context.Context, id uuid.UUID, status domain.PackageStatus) error
	MarkInvoiceReady(ctx context.Context, id uuid.UUID, archivePath string) error
	CancelInvoice(ctx context.Context, id uuid.UUID) error
	RecordRegeneration(ctx context.Context, id uuid.UUID, operatorID uuid.UUID, at time.Time) error

	// Line items
	CreateLineItem(ctx context.Context, invoiceID, orderID uuid.UUID) error
	ListLineItemOrderIDs(ctx context.Context, invoiceID uuid.UUID) ([]uuid.UUID, error)

	// Billable orders (clinical subsystem; read-only except the sent flag)
	GetOrder(ctx context.Context, id uuid.UUID) (domain.Order, error)
	ListOrdersByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Order, error)
	ListEligibleOrders(ctx context.Context, payerID uuid.UUID, periodStart, periodEnd time.Time) ([]domain.Order, error)
	SetOrdersSent(ctx context.Context, orderIDs []uuid.UUID, sent bool) error

	// Documents
	ListPresentationDocuments(ctx context.Context, orderID uuid.UUID) ([]domain.PresentationDocument, error)
	ReplacePackageDocuments(ctx context.Context, invoiceID uuid.UUID, docs []domain.PackageDocument) error
	ListPackageDocuments(ctx context.Context, invoiceID uuid.UUID) ([]domain.PackageDocument, error)

	// Payers and templates
	GetPayer(ctx context.Context, id uuid.UUID) (domain.Payer, error)
	GetActiveTemplateColumns(ctx context.Context, payerID uuid.UUID) ([]domain.TemplateColumn, error)
}

// Store owns the connection pool and provides transactional execution.
type Store struct {
	pool *pgxpool.Pool
	*Queries
}

// Queries implements Querier against a DBTX (pool or transaction).
type Queries struct {
	db DBTX
}

// Compile-time check that Queries implements Querier.
var _ Querier = (*Queries)(nil)

// New creates a Store backed by the given pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{
		pool:    pool,
		Queries: &Queries{db: pool},
	}
}

// WithTx runs fn inside a single database transaction. The Querier passed to
// fn is bound to that transaction, so the sent-flag flips and the invoice
// status transition of a package commit land atomically.
func (s *Store) WithTx(ctx context.Context, fn func(q Querier) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&Queries{db: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
