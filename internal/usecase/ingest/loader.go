package ingest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/futig/medical-chatbot/internal/entity"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"github.com/ledongthuc/pdf"
	"github.com/tmc/langchaingo/schema"
	"go.uber.org/zap"
)

// Loader metadata keys. Only entity.MetadataSource survives FilterToMinimal.
const (
	metadataPage       = "page"
	metadataTotalPages = "total_pages"
)

// LoadDir reads every PDF directly under dir, one document per page.
// A missing or empty directory yields no documents and no error.
func LoadDir(ctx context.Context, dir string) ([]schema.Document, int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			ctxzap.Warn(ctx, "data directory does not exist", zap.String("dir", dir))
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("read data directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)

	var docs []schema.Document
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}

		pages, err := loadPDF(path)
		if err != nil {
			return nil, 0, fmt.Errorf("load %s: %w", path, err)
		}

		ctxzap.Debug(ctx, "pdf loaded", zap.String("source", path), zap.Int("pages", len(pages)))
		docs = append(docs, pages...)
	}

	return docs, len(files), nil
}

func loadPDF(path string) ([]schema.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}

	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	numPages := reader.NumPage()
	docs := make([]schema.Document, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := pageText(page)
		if err != nil {
			return nil, fmt.Errorf("extract page %d: %w", i, err)
		}

		docs = append(docs, schema.Document{
			PageContent: text,
			Metadata: map[string]any{
				entity.MetadataSource: path,
				metadataPage:          i - 1,
				metadataTotalPages:    numPages,
			},
		})
	}

	return docs, nil
}

// pageText rebuilds the page text from its positioned glyphs, starting a new
// line whenever the baseline moves. Wrapped lines carry no whitespace of
// their own between them.
func pageText(page pdf.Page) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed page content: %v", r)
		}
	}()

	var b strings.Builder
	var lastY float64
	for i, t := range page.Content().Text {
		if i > 0 && math.Abs(t.Y-lastY) > baselineTolerance(t.FontSize) {
			b.WriteByte('\n')
		}
		b.WriteString(t.S)
		lastY = t.Y
	}

	return b.String(), nil
}

// baselineTolerance ignores the small vertical jitter of glyphs on one line.
func baselineTolerance(fontSize float64) float64 {
	return max(fontSize/4, 0.5)
}
