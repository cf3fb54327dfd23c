package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/NachoGeno/kinetix-flow-scheduler-sub001/internal/domain"
)

// ListPresentationDocuments returns the registered non-order documents for an
// order. At most one row per kind thanks to the unique(order_id, kind)
// constraint.
func (q *Queries) ListPresentationDocuments(ctx context.Context, orderID uuid.UUID) ([]domain.PresentationDocument, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, order_id, kind, file_ref
		FROM presentation_documents
		WHERE order_id = $1`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list presentation documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.PresentationDocument
	for rows.Next() {
		var d domain.PresentationDocument
		if err := rows.Scan(&d.ID, &d.OrderID, &d.Kind, &d.FileRef); err != nil {
			return nil, fmt.Errorf("failed to scan presentation document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// ReplacePackageDocuments deletes the invoice's previous package-document
// rows and inserts the new set. Regeneration replaces wholesale; stale rows
// from an earlier run never survive.
func (q *Queries) ReplacePackageDocuments(ctx context.Context, invoiceID uuid.UUID, docs []domain.PackageDocument) error {
	_, err := q.db.Exec(ctx, `DELETE FROM package_documents WHERE invoice_id = $1`, invoiceID)
	if err != nil {
		return fmt.Errorf("failed to clear package documents: %w", err)
	}
	for _, d := range docs {
		id := d.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		_, err := q.db.Exec(ctx, `
			INSERT INTO package_documents (id, invoice_id, order_id, patient_label, order_date, file_path)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			id, invoiceID, d.OrderID, d.PatientLabel, d.OrderDate, d.FilePath,
		)
		if err != nil {
			return fmt.Errorf("failed to insert package document: %w", err)
		}
	}
	return nil
}

// ListPackageDocuments returns the consolidated outputs of the last
// generation run, surname-first alphabetical.
func (q *Queries) ListPackageDocuments(ctx context.Context, invoiceID uuid.UUID) ([]domain.PackageDocument, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, invoice_id, order_id, patient_label, order_date, file_path, created_at
		FROM package_documents
		WHERE invoice_id = $1
		ORDER BY patient_label, order_date`,
		invoiceID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list package documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.PackageDocument
	for rows.Next() {
		var d domain.PackageDocument
		if err := rows.Scan(&d.ID, &d.InvoiceID, &d.OrderID, &d.PatientLabel, &d.OrderDate, &d.FilePath, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan package document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}
