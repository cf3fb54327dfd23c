package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrOrderNotFound = &Error{Code: ENOTFOUND, Message: "Presentación no encontrada"}
)

// DocumentKind identifies one of the four mandatory document kinds attached
// to a billable order. The declaration order here is also the merge order of
// the consolidated per-patient PDF; it must stay stable.
type DocumentKind string

const (
	DocumentKindOrder         DocumentKind = "order"         // the prescribing medical order itself
	DocumentKindEvolution     DocumentKind = "evolution"     // clinical-evolution note
	DocumentKindAttendance    DocumentKind = "attendance"    // signed attendance record
	DocumentKindAuthorization DocumentKind = "authorization" // payer authorization
)

// DocumentKinds is the fixed, deterministic processing order for
// consolidation and validation.
var DocumentKinds = [4]DocumentKind{
	DocumentKindOrder,
	DocumentKindEvolution,
	DocumentKindAttendance,
	DocumentKindAuthorization,
}

// Label returns the operator-facing Spanish label for the kind.
func (k DocumentKind) Label() string {
	switch k {
	case DocumentKindOrder:
		return "Orden médica"
	case DocumentKindEvolution:
		return "Evolución clínica"
	case DocumentKindAttendance:
		return "Planilla de asistencia"
	case DocumentKindAuthorization:
		return "Autorización"
	default:
		return string(k)
	}
}

// Order is the billing view of a billable order (one completed course of
// clinical sessions). It is owned by the clinical subsystem; the pipeline
// reads everything and writes only the SentToInsurer flag.
type Order struct {
	ID               uuid.UUID
	PayerID          uuid.UUID
	PatientFirstName string
	PatientLastName  string
	PatientDNI       string
	PrescriberName   string
	OrderDate        time.Time
	TotalSessions    int32
	UsedSessions     int32

	// AttachmentRef points at the scanned source order in the object
	// store. May be a relative key or a full (possibly signed) URL.
	AttachmentRef string

	Completed     bool
	SentToInsurer bool
}

// PatientLabel returns the surname-first display label used in spreadsheets,
// filenames and validation reports.
func (o Order) PatientLabel() string {
	return fmt.Sprintf("%s, %s", o.PatientLastName, o.PatientFirstName)
}

// PresentationDocument is one of the three non-order document kinds
// registered for a billable order. At most one per (order, kind).
type PresentationDocument struct {
	ID      uuid.UUID
	OrderID uuid.UUID
	Kind    DocumentKind
	FileRef string
}

// PackageDocument describes one consolidated per-patient output produced by
// a generation run. Never mutated; replaced wholesale on regeneration.
type PackageDocument struct {
	ID           uuid.UUID
	InvoiceID    uuid.UUID
	OrderID      uuid.UUID
	PatientLabel string
	OrderDate    time.Time
	FilePath     string
	CreatedAt    time.Time
}
