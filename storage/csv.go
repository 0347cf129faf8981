package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"tripscout/models"
)

// CSVWriter dumps the raw (pre-reconciliation) offer union to a CSV file
// for offline inspection. It is safe for concurrent use.
type CSVWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

var _ RawOfferWriter = (*CSVWriter)(nil)

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

	if err := w.Write([]string{
		"source", "origin", "destination", "carrier", "departure", "depart_time",
		"return", "return_time", "price_each", "price_total", "direct",
		"booking_ref", "observed_at",
	}); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: write header: %w", err)
	}
	w.Flush()

	return &CSVWriter{file: f, writer: w}, nil
}

// WriteRaw appends every raw offer to the file.
func (c *CSVWriter) WriteRaw(offers []*models.Offer) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, o := range offers {
		ret := ""
		if o.IsRoundTrip() {
			ret = o.ReturnDate.Format("2006-01-02")
		}
		row := []string{
			o.Source,
			o.Origin,
			o.Destination,
			o.Carrier,
			o.DepartureDate.Format("2006-01-02"),
			o.DepartureTime,
			ret,
			o.ReturnTime,
			strconv.FormatFloat(o.PricePerTraveler, 'f', 2, 64),
			strconv.FormatFloat(o.TotalPrice, 'f', 2, 64),
			strconv.FormatBool(o.Direct),
			o.BookingRef,
			o.ObservedAt.Format(time.RFC3339),
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
