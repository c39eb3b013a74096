package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"storefront/internal/domain"
	"storefront/internal/logger"
	"storefront/internal/service/catalog"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ProductWriter is the catalog write path; imported rows go through the same
// validation as the admin product form.
type ProductWriter interface {
	Create(ctx context.Context, in catalog.ProductInput) (*domain.Product, error)
	Update(ctx context.Context, id string, in catalog.ProductInput) (*domain.Product, error)
}

// CSVImporter reads product CSV files with the header
// id,name,description,price,category,stock,image_url (id optional).
// Rows with an id update that product, rows without one create a new product.
type CSVImporter struct {
	reader   *csv.Reader
	products ProductWriter
	logger   zerolog.Logger
}

func NewCSVImporter(r io.Reader, products ProductWriter, log *zerolog.Logger) *CSVImporter {
	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1 // rows may have trailing commas
	csvr.TrimLeadingSpace = true
	return &CSVImporter{
		reader:   csvr,
		products: products,
		logger:   logger.OrNop(log).With().Str("component", "importer").Logger(),
	}
}

type csvRow struct {
	line  int
	id    string
	input catalog.ProductInput
}

// Run imports every row and returns how many products were written. It stops
// at the first row that fails to parse or validate.
func (i *CSVImporter) Run(ctx context.Context) (int, error) {
	headers, err := i.reader.Read()
	if err != nil {
		return 0, fmt.Errorf("read headers: %w", err)
	}
	index := headerIndex(headers)
	for _, required := range []string{"name", "price"} {
		if _, ok := index[required]; !ok {
			return 0, fmt.Errorf("missing %q column", required)
		}
	}

	imported := 0
	for {
		record, err := i.reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return imported, fmt.Errorf("read row: %w", err)
		}
		line, _ := i.reader.FieldPos(0)

		row, err := parseRow(record, index, line)
		if err != nil {
			return imported, err
		}
		if row == nil {
			continue
		}
		if err := i.save(ctx, row); err != nil {
			return imported, err
		}
		imported++
	}

	i.logger.Info().Int("count", imported).Msg("products imported")
	return imported, nil
}

func (i *CSVImporter) save(ctx context.Context, row *csvRow) error {
	var err error
	if row.id != "" {
		_, err = i.products.Update(ctx, row.id, row.input)
	} else {
		_, err = i.products.Create(ctx, row.input)
	}
	if err != nil {
		return fmt.Errorf("line %d (%q): %w", row.line, row.input.Name, err)
	}
	return nil
}

func headerIndex(headers []string) map[string]int {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return idx
}

// parseRow returns nil for blank rows.
func parseRow(record []string, index map[string]int, line int) (*csvRow, error) {
	blank := true
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			blank = false
			break
		}
	}
	if blank {
		return nil, nil
	}

	in := catalog.ProductInput{
		Name:        pick(record, index, "name"),
		Description: pick(record, index, "description"),
		Category:    pick(record, index, "category"),
		ImageURL:    pick(record, index, "image_url"),
	}
	row := &csvRow{line: line, id: pick(record, index, "id"), input: in}
	if row.id != "" {
		if _, err := uuid.Parse(row.id); err != nil {
			return nil, fmt.Errorf("line %d: invalid id %q", line, row.id)
		}
	}
	if s := pick(record, index, "price"); s != "" {
		price, err := decimal.NewFromString(s)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid price %q", line, s)
		}
		row.input.Price = &price
	}
	stock := 0
	if s := pick(record, index, "stock"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid stock %q", line, s)
		}
		stock = n
	}
	row.input.Stock = &stock
	return row, nil
}

func pick(record []string, index map[string]int, key string) string {
	pos, ok := index[key]
	if !ok || pos >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[pos])
}
