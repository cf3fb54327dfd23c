package domain

import "github.com/google/uuid"

var (
	ErrPayerNotFound = &Error{Code: ENOTFOUND, Message: "Obra social no encontrada"}
)

// Payer is the insurer or workers'-compensation entity being billed.
type Payer struct {
	ID     uuid.UUID
	Name   string
	Kind   string // "obra_social" or "art"
	CUIT   string
	Active bool
}

// TemplateColumn is one column of a payer-scoped spreadsheet template.
// Columns are rendered by ascending Position regardless of storage order.
type TemplateColumn struct {
	Field    string `json:"field"`
	Header   string `json:"header"`
	Position int32  `json:"position"`
}

// Spreadsheet field names a template column may map to. A template
// referencing anything else degrades gracefully: the cell is left empty
// rather than failing the export.
const (
	FieldPatientName   = "patient_name"
	FieldPatientDNI    = "dni"
	FieldOrderDate     = "order_date"
	FieldTotalSessions = "total_sessions"
	FieldUsedSessions  = "used_sessions"
	FieldPrescriber    = "prescriber"
)

// DefaultTemplateColumns is the fallback column set used when the payer has
// no active template.
func DefaultTemplateColumns() []TemplateColumn {
	return []TemplateColumn{
		{Field: FieldPatientName, Header: "Paciente", Position: 1},
		{Field: FieldPatientDNI, Header: "DNI", Position: 2},
		{Field: FieldOrderDate, Header: "Fecha de orden", Position: 3},
		{Field: FieldTotalSessions, Header: "Sesiones totales", Position: 4},
		{Field: FieldUsedSessions, Header: "Sesiones utilizadas", Position: 5},
	}
}
