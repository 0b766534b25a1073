package export

import (
	"fmt"
	"io"
	"time"

	"github.com/parquet-go/parquet-go"
	"gopkg.in/yaml.v3"

	"github.com/lehigh-university-libraries/catalog-admin/internal/models"
)

// Header describes where an export came from
type Header struct {
	APIURL     string               `yaml:"apiurl"`
	Filter     models.ProductFilter `yaml:"filter"`
	ExportedAt string               `yaml:"exportedat"`
	Count      int                  `yaml:"count"`
}

// Document is the YAML export layout
type Document struct {
	Header   Header           `yaml:"header"`
	Products []models.Product `yaml:"products"`
}

// ProductRow is the flat Parquet layout of a product. Price is kept as its
// decimal string so no precision is lost.
type ProductRow struct {
	ID          int64    `parquet:"id"`
	Name        string   `parquet:"name"`
	Description string   `parquet:"description"`
	Price       string   `parquet:"price"`
	Category    string   `parquet:"category"`
	Brand       string   `parquet:"brand"`
	Stock       int64    `parquet:"stock"`
	Rating      *float64 `parquet:"rating,optional"`
	ImagePath   *string  `parquet:"image_path,optional"`
	CreatedAt   *string  `parquet:"created_at,optional"`
}

// WriteYAML writes products with a header describing the view they came from
func WriteYAML(w io.Writer, apiURL string, filter models.ProductFilter, products []models.Product) error {
	doc := Document{
		Header: Header{
			APIURL:     apiURL,
			Filter:     filter,
			ExportedAt: time.Now().UTC().Format(time.RFC3339),
			Count:      len(products),
		},
		Products: products,
	}

	data, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write YAML: %w", err)
	}
	return nil
}

// WriteParquet writes one row per product
func WriteParquet(w io.Writer, products []models.Product) error {
	rows := make([]ProductRow, 0, len(products))
	for _, p := range products {
		rows = append(rows, toRow(p))
	}

	writer := parquet.NewGenericWriter[ProductRow](w)
	if _, err := writer.Write(rows); err != nil {
		return fmt.Errorf("failed to write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return nil
}

func toRow(p models.Product) ProductRow {
	row := ProductRow{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price.String(),
		Category:    p.Category,
		Brand:       p.Brand,
		Stock:       int64(p.Stock),
		Rating:      p.Rating,
		ImagePath:   p.ImagePath,
	}
	if p.CreatedAt != nil {
		created := p.CreatedAt.UTC().Format(time.RFC3339Nano)
		row.CreatedAt = &created
	}
	return row
}
