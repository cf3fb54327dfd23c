package billing

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/NachoGeno/kinetix-flow-scheduler-sub001/internal/domain"
	"github.com/NachoGeno/kinetix-flow-scheduler-sub001/internal/storage"
)

// Validator checks, per order, that all four required document kinds are
// both registered in the database and physically present in the object
// store. It mutates nothing.
type Validator struct {
	docs    DocumentSource
	objects storage.ObjectStore
	bucket  string
	logger  zerolog.Logger
}

// NewValidator creates a Validator reading documents from bucket.
func NewValidator(docs DocumentSource, objects storage.ObjectStore, bucket string, logger zerolog.Logger) *Validator {
	return &Validator{
		docs:    docs,
		objects: objects,
		bucket:  bucket,
		logger:  logger.With().Str("component", "validator").Logger(),
	}
}

// ValidateOrders runs the completeness check over every order. The returned
// slice has one entry per order in input order. A missing document marks the
// order incomplete; it never aborts the check, so operators get the full
// picture in one pass.
func (v *Validator) ValidateOrders(ctx context.Context, orders []domain.Order) ([]domain.ValidationResult, error) {
	results := make([]domain.ValidationResult, 0, len(orders))
	for _, order := range orders {
		res, err := v.validateOrder(ctx, order)
		if err != nil {
			return nil, fmt.Errorf("failed to validate order %s: %w", order.ID, err)
		}
		results = append(results, res)
	}
	return results, nil
}

func (v *Validator) validateOrder(ctx context.Context, order domain.Order) (domain.ValidationResult, error) {
	res := domain.ValidationResult{
		OrderID:      order.ID,
		PatientLabel: order.PatientLabel(),
		Complete:     true,
	}

	refs, err := documentRefs(ctx, v.docs, order)
	if err != nil {
		return domain.ValidationResult{}, err
	}

	for _, kind := range domain.DocumentKinds {
		raw, ok := refs[kind]
		if !ok {
			res.AddMissing(kind, domain.MissingReasonNotRegistered)
			continue
		}

		key, err := resolveKey(raw, v.bucket)
		if err != nil {
			// An unresolvable reference is indistinguishable from a
			// lost object as far as the operator is concerned.
			v.logger.Warn().
				Str("order_id", order.ID.String()).
				Str("kind", string(kind)).
				Str("ref", raw).
				Err(err).
				Msg("unresolvable document reference")
			res.AddMissing(kind, domain.MissingReasonNotInStorage)
			continue
		}

		exists, err := v.objects.Exists(ctx, v.bucket, key)
		if err != nil || !exists {
			if err != nil {
				v.logger.Warn().
					Str("order_id", order.ID.String()).
					Str("kind", string(kind)).
					Str("key", key).
					Err(err).
					Msg("storage existence check failed")
			}
			res.AddMissing(kind, domain.MissingReasonNotInStorage)
		}
	}

	return res, nil
}

// AllComplete reports whether every result passed, and returns the failing
// results for error reporting.
func AllComplete(results []domain.ValidationResult) (bool, []domain.ValidationResult) {
	var failed []domain.ValidationResult
	for _, r := range results {
		if !r.Complete {
			failed = append(failed, r)
		}
	}
	return len(failed) == 0, failed
}
