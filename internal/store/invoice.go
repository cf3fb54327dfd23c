package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/NachoGeno/kinetix-flow-scheduler-sub001/internal/domain"
)

// CreateInvoiceParams contains the fields needed to insert an invoice row.
type CreateInvoiceParams struct {
	PayerID       uuid.UUID
	InvoiceNumber string
	PeriodStart   time.Time
	PeriodEnd     time.Time
}

const invoiceColumns = `
	id, payer_id, invoice_number, period_start, period_end,
	status, package_status, archive_path,
	regeneration_count, last_regenerated_at, last_regenerated_by,
	created_at, updated_at`

func scanInvoice(row pgx.Row) (domain.Invoice, error) {
	var (
		inv         domain.Invoice
		archivePath pgtype.Text
		regenAt     pgtype.Timestamptz
		regenBy     pgtype.UUID
	)
	err := row.Scan(
		&inv.ID, &inv.PayerID, &inv.InvoiceNumber, &inv.PeriodStart, &inv.PeriodEnd,
		&inv.Status, &inv.PackageStatus, &archivePath,
		&inv.RegenerationCount, &regenAt, &regenBy,
		&inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return domain.Invoice{}, err
	}
	if archivePath.Valid {
		inv.ArchivePath = archivePath.String
	}
	if regenAt.Valid {
		t := regenAt.Time
		inv.LastRegeneratedAt = &t
	}
	if regenBy.Valid {
		id := uuid.UUID(regenBy.Bytes)
		inv.LastRegeneratedBy = &id
	}
	return inv, nil
}

// CreateInvoice inserts a new invoice in active/pending state.
func (q *Queries) CreateInvoice(ctx context.Context, params CreateInvoiceParams) (domain.Invoice, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO invoices (id, payer_id, invoice_number, period_start, period_end, status, package_status)
		VALUES ($1, $2, $3, $4, $5, 'active', 'pending')
		RETURNING`+invoiceColumns,
		uuid.New(), params.PayerID, params.InvoiceNumber, params.PeriodStart, params.PeriodEnd,
	)
	inv, err := scanInvoice(row)
	if err != nil {
		return domain.Invoice{}, fmt.Errorf("failed to create invoice: %w", err)
	}
	return inv, nil
}

// GetInvoice retrieves an invoice by id.
func (q *Queries) GetInvoice(ctx context.Context, id uuid.UUID) (domain.Invoice, error) {
	row := q.db.QueryRow(ctx, `SELECT`+invoiceColumns+` FROM invoices WHERE id = $1`, id)
	inv, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Invoice{}, domain.ErrInvoiceNotFound
		}
		return domain.Invoice{}, fmt.Errorf("failed to get invoice: %w", err)
	}
	return inv, nil
}

// ListInvoicesByPayer lists invoices for a payer, newest first.
func (q *Queries) ListInvoicesByPayer(ctx context.Context, payerID uuid.UUID, limit, offset int32) ([]domain.Invoice, error) {
	rows, err := q.db.Query(ctx, `
		SELECT`+invoiceColumns+`
		FROM invoices
		WHERE payer_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		payerID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	defer rows.Close()

	var invoices []domain.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

// UpdatePackageStatus sets only the package status.
func (q *Queries) UpdatePackageStatus(ctx context.Context, id uuid.UUID, status domain.PackageStatus) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE invoices SET package_status = $2, updated_at = now() WHERE id = $1`,
		id, status,
	)
	if err != nil {
		return fmt.Errorf("failed to update package status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInvoiceNotFound
	}
	return nil
}

// MarkInvoiceReady records the archive location and flips the package status
// to ready in one statement.
func (q *Queries) MarkInvoiceReady(ctx context.Context, id uuid.UUID, archivePath string) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE invoices
		SET package_status = 'ready', archive_path = $2, updated_at = now()
		WHERE id = $1`,
		id, archivePath,
	)
	if err != nil {
		return fmt.Errorf("failed to mark invoice ready: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInvoiceNotFound
	}
	return nil
}

// CancelInvoice anulls the invoice. The row is kept: cancellation is a
// status transition, not a delete.
func (q *Queries) CancelInvoice(ctx context.Context, id uuid.UUID) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE invoices
		SET status = 'cancelled', package_status = 'error', updated_at = now()
		WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to cancel invoice: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInvoiceNotFound
	}
	return nil
}

// RecordRegeneration increments the regeneration counter and stamps the
// acting operator.
func (q *Queries) RecordRegeneration(ctx context.Context, id uuid.UUID, operatorID uuid.UUID, at time.Time) error {
	_, err := q.db.Exec(ctx, `
		UPDATE invoices
		SET regeneration_count = regeneration_count + 1,
		    last_regenerated_at = $2,
		    last_regenerated_by = $3,
		    updated_at = now()
		WHERE id = $1`,
		id, at, operatorID,
	)
	if err != nil {
		return fmt.Errorf("failed to record regeneration: %w", err)
	}
	return nil
}

// CreateLineItem links an order to an invoice.
func (q *Queries) CreateLineItem(ctx context.Context, invoiceID, orderID uuid.UUID) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO invoice_line_items (id, invoice_id, order_id)
		VALUES ($1, $2, $3)`,
		uuid.New(), invoiceID, orderID,
	)
	if err != nil {
		return fmt.Errorf("failed to create line item: %w", err)
	}
	return nil
}

// ListLineItemOrderIDs returns the order ids linked to an invoice in
// insertion order. This list is the sole source of truth for what an invoice
// bills.
func (q *Queries) ListLineItemOrderIDs(ctx context.Context, invoiceID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := q.db.Query(ctx, `
		SELECT order_id FROM invoice_line_items
		WHERE invoice_id = $1
		ORDER BY created_at, id`,
		invoiceID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list line items: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan line item: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
