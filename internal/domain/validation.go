package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// Reasons a required document can be reported missing. The two cases are
// kept distinct so operators know whether to upload a document or to chase
// a storage problem.
const (
	MissingReasonNotRegistered = "no registrada"
	MissingReasonNotInStorage  = "archivo no encontrado en Storage"
)

// ValidationResult is the per-order outcome of the completeness check.
// Ephemeral: computed per request, never persisted.
type ValidationResult struct {
	OrderID      uuid.UUID `json:"order_id"`
	PatientLabel string    `json:"patient_label"`
	Complete     bool      `json:"complete"`

	// Missing holds one operator-facing description per absent document,
	// e.g. "Orden médica: no registrada" or
	// "Autorización: archivo no encontrado en Storage".
	Missing []string `json:"missing,omitempty"`
}

// AddMissing records a missing document on the result and flips it to
// incomplete.
func (r *ValidationResult) AddMissing(kind DocumentKind, reason string) {
	r.Complete = false
	r.Missing = append(r.Missing, fmt.Sprintf("%s: %s", kind.Label(), reason))
}
