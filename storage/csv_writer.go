package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"canalpro-publisher/models"
)

var csvHeader = []string{
	"codigo", "status", "tipo", "titulo", "preco", "condominio", "iptu", "iptu_periodo",
	"area", "quartos", "suites", "banheiros", "vagas", "cidade", "estado",
	"cep", "endereco", "numero", "bairro", "codigo_anuncio_canalpro", "fotos", "scraped_at",
}

// CSVWriter exports stored properties to a CSV file.
// It is safe for concurrent use.
type CSVWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

// NewCSVWriter creates (or truncates) the CSV file at the given path and
// writes the header row. Intermediate directories are created automatically.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: write header: %w", err)
	}
	w.Flush()

	return &CSVWriter{file: f, writer: w}, nil
}

// WriteProperties writes one row per property, merged with its draft when
// there is one. Photo URLs are joined with "|".
func (c *CSVWriter) WriteProperties(records []*models.PropertyRecord, drafts map[string]*models.ListingDraft) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, p := range records {
		d := drafts[p.Codigo]
		status := models.DeriveStatus(d)
		if d == nil {
			d = &models.ListingDraft{}
		}

		row := []string{
			p.Codigo,
			string(status),
			p.Tipo,
			p.Titulo,
			formatFloat(p.Preco),
			formatFloat(p.Condominio),
			formatFloat(p.IPTU),
			p.IPTUPeriodo,
			formatFloat(p.Area),
			strconv.Itoa(p.Quartos),
			strconv.Itoa(p.Suites),
			strconv.Itoa(p.Banheiros),
			strconv.Itoa(p.Vagas),
			p.Cidade,
			p.Estado,
			d.CEP,
			d.Endereco,
			d.Numero,
			d.Bairro,
			d.CodigoAnuncio,
			strings.Join(p.Fotos, "|"),
			p.ScrapedAt.Format(time.RFC3339),
		}
		if err := c.writer.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the underlying file.
func (c *CSVWriter) Close() error {
	c.writer.Flush()
	return c.file.Close()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
