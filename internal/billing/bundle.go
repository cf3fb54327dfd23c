package billing

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/rs/zerolog"

	"github.com/NachoGeno/kinetix-flow-scheduler-sub001/internal/domain"
	"github.com/NachoGeno/kinetix-flow-scheduler-sub001/internal/storage"
)

const (
	zipContentType  = "application/zip"
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Bundler assembles the final zip archive: the summary spreadsheet at the
// root plus every consolidated PDF under documentos/.
type Bundler struct {
	objects storage.ObjectStore
	bucket  string
	logger  zerolog.Logger
}

// NewBundler creates a Bundler.
func NewBundler(objects storage.ObjectStore, bucket string, logger zerolog.Logger) *Bundler {
	return &Bundler{
		objects: objects,
		bucket:  bucket,
		logger:  logger.With().Str("component", "bundler").Logger(),
	}
}

// BundleResult reports what went into the archive.
type BundleResult struct {
	ArchivePath string
	PDFCount    int
	Skipped     int
	SizeBytes   int
}

// StoreSpreadsheet uploads the summary spreadsheet under the invoice prefix
// with upsert semantics and returns its storage path. The spreadsheet lives
// as its own object so it stays retrievable from the invoice namespace
// independently of the archive.
func (b *Bundler) StoreSpreadsheet(ctx context.Context, invoiceID string, name string, data []byte) (string, error) {
	key := path.Join("invoices", invoiceID, name)
	if err := b.objects.Upload(ctx, b.bucket, key, data, xlsxContentType, true); err != nil {
		return "", fmt.Errorf("failed to upload spreadsheet: %w", err)
	}
	return key, nil
}

// Bundle writes the archive to the invoice prefix and returns its storage
// path. The spreadsheet is fetched back by its storage path and is
// mandatory; a consolidated PDF that cannot be fetched back is skipped and
// logged rather than failing the archive; a package with most documents
// beats no package, and the skip count surfaces in the result.
func (b *Bundler) Bundle(ctx context.Context, invoiceID string, archiveName string, spreadsheetPath string, docs []domain.PackageDocument) (BundleResult, error) {
	spreadsheet, err := b.objects.Download(ctx, b.bucket, spreadsheetPath)
	if err != nil {
		return BundleResult{}, fmt.Errorf("failed to fetch spreadsheet %s: %w", spreadsheetPath, err)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	w, err := zw.Create(path.Base(spreadsheetPath))
	if err != nil {
		return BundleResult{}, fmt.Errorf("failed to add spreadsheet entry: %w", err)
	}
	if _, err := w.Write(spreadsheet); err != nil {
		return BundleResult{}, fmt.Errorf("failed to write spreadsheet entry: %w", err)
	}

	res := BundleResult{}
	for _, doc := range docs {
		data, err := b.objects.Download(ctx, b.bucket, doc.FilePath)
		if err != nil {
			b.logger.Warn().
				Str("order_id", doc.OrderID.String()).
				Str("key", doc.FilePath).
				Err(err).
				Msg("skipping unreadable consolidated document")
			res.Skipped++
			continue
		}

		w, err := zw.Create(path.Join("documentos", path.Base(doc.FilePath)))
		if err != nil {
			return BundleResult{}, fmt.Errorf("failed to add document entry: %w", err)
		}
		if _, err := w.Write(data); err != nil {
			return BundleResult{}, fmt.Errorf("failed to write document entry: %w", err)
		}
		res.PDFCount++
	}

	if err := zw.Close(); err != nil {
		return BundleResult{}, fmt.Errorf("failed to finalize archive: %w", err)
	}

	key := path.Join("invoices", invoiceID, archiveName)
	if err := b.objects.Upload(ctx, b.bucket, key, buf.Bytes(), zipContentType, true); err != nil {
		return BundleResult{}, fmt.Errorf("failed to upload archive: %w", err)
	}

	b.logger.Info().
		Str("key", key).
		Int("pdfs", res.PDFCount).
		Int("skipped", res.Skipped).
		Int("bytes", buf.Len()).
		Msg("archive uploaded")

	res.ArchivePath = key
	res.SizeBytes = buf.Len()
	return res, nil
}
