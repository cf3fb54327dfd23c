package billing

import (
	"context"

	"github.com/google/uuid"

	"github.com/NachoGeno/kinetix-flow-scheduler-sub001/internal/domain"
	"github.com/NachoGeno/kinetix-flow-scheduler-sub001/internal/storage"
)

// DocumentSource lists the registered non-order documents of a billable
// order. Satisfied by store.Querier.
type DocumentSource interface {
	ListPresentationDocuments(ctx context.Context, orderID uuid.UUID) ([]domain.PresentationDocument, error)
}

// documentRefs collects the raw storage references of an order's required
// documents, keyed by kind. Kinds with no registered document are absent
// from the map.
func documentRefs(ctx context.Context, docs DocumentSource, order domain.Order) (map[domain.DocumentKind]string, error) {
	refs := make(map[domain.DocumentKind]string, len(domain.DocumentKinds))
	if order.AttachmentRef != "" {
		refs[domain.DocumentKindOrder] = order.AttachmentRef
	}

	registered, err := docs.ListPresentationDocuments(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	for _, d := range registered {
		if d.FileRef == "" {
			continue
		}
		refs[d.Kind] = d.FileRef
	}
	return refs, nil
}

// resolveKey normalizes a raw document reference (relative key, public URL
// or signed URL) to a bucket-relative object key.
func resolveKey(raw, bucket string) (string, error) {
	return storage.NormalizeKey(raw, bucket)
}
