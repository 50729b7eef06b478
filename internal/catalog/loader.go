package catalog

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"smart-supermarket/internal/apperr"
	"smart-supermarket/internal/pkg/logger"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const (
	colAisleID        = "aisle_id"
	colAisle          = "aisle"
	colDepartment     = "department"
	colTotalPurchases = "total_purchases"
)

type ICatalogLoader interface {
	Load(ctx context.Context) (*Catalog, error)
}

// Loader reads the aisle reference CSV from a file path or an http(s) URL.
// It does not cache; the survey holding the result does.
type Loader struct {
	source string
	client *resty.Client
	logger logger.ILogger
}

func NewLoader(source string, timeout time.Duration, log logger.ILogger) *Loader {
	return &Loader{
		source: source,
		client: resty.New().SetTimeout(timeout),
		logger: log,
	}
}

func (l *Loader) Load(ctx context.Context) (*Catalog, error) {
	ctx, span := otel.Tracer("catalog").Start(ctx, "catalog.Load")
	defer span.End()

	raw, err := l.fetch(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	records, skipped, err := Parse(bytes.NewReader(raw))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	c := New(records)
	span.SetAttributes(attribute.Int("catalog.aisles", c.Len()), attribute.Int("catalog.skipped", skipped))
	l.logger.Info("Catalog", "Aisle catalog loaded", map[string]interface{}{
		"source":      l.source,
		"aisles":      c.Len(),
		"departments": len(c.departments),
		"skipped":     skipped,
	})
	return c, nil
}

func (l *Loader) fetch(ctx context.Context) ([]byte, error) {
	if strings.HasPrefix(l.source, "http://") || strings.HasPrefix(l.source, "https://") {
		resp, err := l.client.R().SetContext(ctx).Get(l.source)
		if err != nil {
			return nil, apperr.Transport("Failed to load aisles.", err)
		}
		if resp.IsError() {
			return nil, apperr.Transport("Failed to load aisles.", fmt.Errorf("status %d", resp.StatusCode()))
		}
		return resp.Body(), nil
	}

	raw, err := os.ReadFile(l.source)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", l.source, err)
	}
	return raw, nil
}

// Parse reads aisle rows. Rows with a blank aisle name or a non-integer
// aisle_id / total_purchases are skipped and counted.
func Parse(r io.Reader) ([]AisleRecord, int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, 0, errors.New("catalog is empty")
		}
		return nil, 0, fmt.Errorf("read catalog header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, required := range []string{colAisleID, colAisle, colTotalPurchases} {
		if _, ok := cols[required]; !ok {
			return nil, 0, fmt.Errorf("catalog is missing column %q", required)
		}
	}

	field := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	var (
		records []AisleRecord
		skipped int
	)
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, skipped, fmt.Errorf("read catalog row: %w", err)
		}

		name := field(row, colAisle)
		if strings.TrimSpace(name) == "" {
			skipped++
			continue
		}
		id, err := strconv.Atoi(strings.TrimSpace(field(row, colAisleID)))
		if err != nil {
			skipped++
			continue
		}
		total, err := strconv.Atoi(strings.TrimSpace(field(row, colTotalPurchases)))
		if err != nil {
			skipped++
			continue
		}

		records = append(records, AisleRecord{
			AisleID:        id,
			Name:           name,
			Department:     field(row, colDepartment),
			TotalPurchases: total,
		})
	}

	return records, skipped, nil
}
