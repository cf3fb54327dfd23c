package billing

import (
	"context"
	"fmt"
	"path"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/NachoGeno/kinetix-flow-scheduler-sub001/internal/domain"
	"github.com/NachoGeno/kinetix-flow-scheduler-sub001/internal/pdf"
	"github.com/NachoGeno/kinetix-flow-scheduler-sub001/internal/storage"
	"github.com/NachoGeno/kinetix-flow-scheduler-sub001/internal/telemetry"
)

const pdfContentType = "application/pdf"

// consolidationConcurrency bounds how many orders are consolidated at once.
// Within one order, downloads and the merge stay sequential so the page
// order of the output is deterministic.
const consolidationConcurrency = 4

// Consolidator produces one merged PDF per order, containing the four
// required documents in fixed kind order, and uploads it under the invoice's
// storage prefix.
type Consolidator struct {
	docs    DocumentSource
	objects storage.ObjectStore
	merger  pdf.Merger
	bucket  string
	metrics *telemetry.Metrics
	logger  zerolog.Logger
}

// NewConsolidator creates a Consolidator.
func NewConsolidator(docs DocumentSource, objects storage.ObjectStore, merger pdf.Merger, bucket string, metrics *telemetry.Metrics, logger zerolog.Logger) *Consolidator {
	return &Consolidator{
		docs:    docs,
		objects: objects,
		merger:  merger,
		bucket:  bucket,
		metrics: metrics,
		logger:  logger.With().Str("component", "consolidator").Logger(),
	}
}

// ConsolidateAll merges and uploads the documents for every order. Orders
// run concurrently with a fixed limit; results come back in input order so
// retried runs produce identical output. Any per-order failure fails the
// whole call: the pipeline only commits complete packages.
func (c *Consolidator) ConsolidateAll(ctx context.Context, invoiceID string, orders []domain.Order) ([]domain.PackageDocument, error) {
	results := make([]domain.PackageDocument, len(orders))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(consolidationConcurrency)
	for i, order := range orders {
		g.Go(func() error {
			doc, err := c.consolidateOrder(ctx, invoiceID, order)
			if err != nil {
				return fmt.Errorf("order %s (%s): %w", order.ID, order.PatientLabel(), err)
			}
			results[i] = doc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (c *Consolidator) consolidateOrder(ctx context.Context, invoiceID string, order domain.Order) (domain.PackageDocument, error) {
	refs, err := documentRefs(ctx, c.docs, order)
	if err != nil {
		return domain.PackageDocument{}, err
	}

	inputs := make([][]byte, 0, len(domain.DocumentKinds))
	for _, kind := range domain.DocumentKinds {
		raw, ok := refs[kind]
		if !ok {
			return domain.PackageDocument{}, fmt.Errorf("%s: %s", kind.Label(), domain.MissingReasonNotRegistered)
		}
		key, err := resolveKey(raw, c.bucket)
		if err != nil {
			return domain.PackageDocument{}, fmt.Errorf("%s: %w", kind.Label(), err)
		}
		data, err := c.objects.Download(ctx, c.bucket, key)
		if err != nil {
			return domain.PackageDocument{}, fmt.Errorf("%s: %w", kind.Label(), err)
		}
		inputs = append(inputs, data)
	}

	merged, err := c.merger.Merge(inputs)
	if err != nil {
		return domain.PackageDocument{}, fmt.Errorf("merge: %w", err)
	}

	pages, err := c.merger.PageCount(merged)
	if err != nil {
		return domain.PackageDocument{}, fmt.Errorf("page count: %w", err)
	}

	filename := consolidatedFilename(order)
	key := path.Join("invoices", invoiceID, "pdfs", filename)
	if err := c.objects.Upload(ctx, c.bucket, key, merged, pdfContentType, true); err != nil {
		return domain.PackageDocument{}, fmt.Errorf("upload: %w", err)
	}

	c.logger.Info().
		Str("order_id", order.ID.String()).
		Str("patient", order.PatientLabel()).
		Int("pages", pages).
		Str("key", key).
		Msg("consolidated order documents")
	if c.metrics != nil {
		c.metrics.DocumentsConsolidated.Inc()
	}

	return domain.PackageDocument{
		OrderID:      order.ID,
		PatientLabel: order.PatientLabel(),
		OrderDate:    order.OrderDate,
		FilePath:     key,
	}, nil
}

// consolidatedFilename builds the per-patient output name, e.g.
// "Garcia_Maria_12345678_2024-05-01.pdf". The DNI keeps homonymous patients
// apart inside one archive.
func consolidatedFilename(order domain.Order) string {
	base := sanitizeFilename(order.PatientLabel())
	if order.PatientDNI != "" {
		base += "_" + sanitizeFilename(order.PatientDNI)
	}
	return fmt.Sprintf("%s_%s.pdf", base, order.OrderDate.Format("2006-01-02"))
}
