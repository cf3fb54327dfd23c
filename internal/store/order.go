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

const orderColumns = `
	o.id, p.payer_id, p.first_name, p.last_name, p.dni, pr.full_name,
	o.order_date, o.total_sessions, o.used_sessions,
	o.attachment_ref, o.completed, o.sent_to_insurer`

const orderJoins = `
	FROM medical_orders o
	JOIN patients p ON p.id = o.patient_id
	JOIN professionals pr ON pr.id = o.professional_id`

func scanOrder(row pgx.Row) (domain.Order, error) {
	var (
		ord           domain.Order
		attachmentRef pgtype.Text
	)
	err := row.Scan(
		&ord.ID, &ord.PayerID, &ord.PatientFirstName, &ord.PatientLastName, &ord.PatientDNI, &ord.PrescriberName,
		&ord.OrderDate, &ord.TotalSessions, &ord.UsedSessions,
		&attachmentRef, &ord.Completed, &ord.SentToInsurer,
	)
	if err != nil {
		return domain.Order{}, err
	}
	if attachmentRef.Valid {
		ord.AttachmentRef = attachmentRef.String
	}
	return ord, nil
}

// GetOrder retrieves a billable order with its patient and prescriber joined
// in.
func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (domain.Order, error) {
	row := q.db.QueryRow(ctx, `SELECT`+orderColumns+orderJoins+` WHERE o.id = $1`, id)
	ord, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("failed to get order: %w", err)
	}
	return ord, nil
}

// ListOrdersByIDs fetches the given orders. Ordering follows patient surname
// so downstream spreadsheet rows and merge output come out alphabetical.
func (q *Queries) ListOrdersByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Order, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := q.db.Query(ctx, `
		SELECT`+orderColumns+orderJoins+`
		WHERE o.id = ANY($1)
		ORDER BY p.last_name, p.first_name, o.order_date`,
		ids,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		ord, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, ord)
	}
	return orders, rows.Err()
}

// ListEligibleOrders returns completed, not-yet-submitted orders for the
// payer whose order date falls inside the billing period.
func (q *Queries) ListEligibleOrders(ctx context.Context, payerID uuid.UUID, periodStart, periodEnd time.Time) ([]domain.Order, error) {
	rows, err := q.db.Query(ctx, `
		SELECT`+orderColumns+orderJoins+`
		WHERE p.payer_id = $1
		  AND o.completed
		  AND NOT o.sent_to_insurer
		  AND o.order_date >= $2
		  AND o.order_date <= $3
		ORDER BY p.last_name, p.first_name, o.order_date`,
		payerID, periodStart, periodEnd,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list eligible orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		ord, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, ord)
	}
	return orders, rows.Err()
}

// SetOrdersSent flips the sent-to-insurer flag on all given orders. Runs as
// one statement so a package commit (or a cancellation rollback) cannot leave
// a subset flagged.
func (q *Queries) SetOrdersSent(ctx context.Context, orderIDs []uuid.UUID, sent bool) error {
	if len(orderIDs) == 0 {
		return nil
	}
	_, err := q.db.Exec(ctx, `
		UPDATE medical_orders SET sent_to_insurer = $2, updated_at = now()
		WHERE id = ANY($1)`,
		orderIDs, sent,
	)
	if err != nil {
		return fmt.Errorf("failed to update sent flag: %w", err)
	}
	return nil
}
