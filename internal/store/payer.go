package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/NachoGeno/kinetix-flow-scheduler-sub001/internal/domain"
)

// GetPayer retrieves a payer by id.
func (q *Queries) GetPayer(ctx context.Context, id uuid.UUID) (domain.Payer, error) {
	var p domain.Payer
	err := q.db.QueryRow(ctx, `
		SELECT id, name, kind, cuit, active FROM payers WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.Name, &p.Kind, &p.CUIT, &p.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Payer{}, domain.ErrPayerNotFound
		}
		return domain.Payer{}, fmt.Errorf("failed to get payer: %w", err)
	}
	return p, nil
}

// GetActiveTemplateColumns returns the column layout of the payer's active
// spreadsheet template, or nil when the payer has none. The caller decides
// the fallback.
func (q *Queries) GetActiveTemplateColumns(ctx context.Context, payerID uuid.UUID) ([]domain.TemplateColumn, error) {
	var raw []byte
	err := q.db.QueryRow(ctx, `
		SELECT columns FROM billing_templates
		WHERE payer_id = $1 AND active
		ORDER BY created_at DESC
		LIMIT 1`,
		payerID,
	).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get template: %w", err)
	}

	var cols []domain.TemplateColumn
	if err := json.Unmarshal(raw, &cols); err != nil {
		return nil, fmt.Errorf("failed to decode template columns: %w", err)
	}
	return cols, nil
}
