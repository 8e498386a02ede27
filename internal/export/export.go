package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/handiism/bandcamp-purchases/internal/bandcamp/dto"
	ioutils "github.com/handiism/bandcamp-purchases/internal/io"
	"github.com/handiism/bandcamp-purchases/internal/model"
)

// Format represents supported export file formats.
//
// Each format targets a different consumer:
//   - CSV: spreadsheets
//   - JSON: scripts, with the raw upstream records included
//   - Parquet: columnar analysis tools
type Format int

const (
	// FormatCSV creates .csv files with a fixed header row.
	FormatCSV Format = iota

	// FormatJSON creates .json files wrapped in an envelope with run metadata.
	FormatJSON

	// FormatParquet creates .parquet files with one row group.
	FormatParquet
)

// FileNamePrefix starts every default export file name.
const FileNamePrefix = "bandcamp-purchases"

// CSVHeader is the first row of every CSV export.
var CSVHeader = []string{
	"Artist", "Title", "Type", "Purchase Date", "Preorder Status", "Item URL", "Art URL", "Hidden",
}

// ParseFormat maps "csv", "json" and "parquet" to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv", "":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	case "parquet":
		return FormatParquet, nil
	default:
		return FormatCSV, fmt.Errorf("unsupported export format %q", s)
	}
}

// String returns the format name, which is also its file extension.
func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatParquet:
		return "parquet"
	default:
		return "csv"
	}
}

// ContentType returns the MIME type served by the local API.
func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatParquet:
		return "application/vnd.apache.parquet"
	default:
		return "text/csv; charset=utf-8"
	}
}

// FileName returns "bandcamp-purchases-<YYYY-MM-DD>.<ext>" for the given day.
func FileName(f Format, day time.Time) string {
	return fmt.Sprintf("%s-%s.%s", FileNamePrefix, day.Format("2006-01-02"), f)
}

// Envelope is the top-level JSON export document.
type Envelope struct {
	ExportedAt time.Time           `json:"exportedAt"`
	RunID      string              `json:"runId,omitempty"`
	Count      int                 `json:"count"`
	Purchases  []model.PurchaseRow `json:"purchases"`
}

// parquetRow is the Parquet schema. Columns mirror the CSV export plus the
// identifiers and a parsed purchase time.
type parquetRow struct {
	PurchaseKey    string `parquet:"purchase_key"`
	ItemID         string `parquet:"item_id"`
	Artist         string `parquet:"artist"`
	Title          string `parquet:"title"`
	Type           string `parquet:"type"`
	PurchaseDate   string `parquet:"purchase_date"`
	PurchasedAtMS  *int64 `parquet:"purchased_at_ms,optional"`
	PreorderStatus string `parquet:"preorder_status"`
	ItemURL        string `parquet:"item_url"`
	ArtURL         string `parquet:"art_url"`
	Hidden         bool   `parquet:"hidden"`
}

// Exporter writes purchase rows in one format.
//
// Example:
//
//	exp := export.NewExporter(export.FormatCSV, runID)
//	path, err := exp.WriteFile(ctx, "/home/me/Documents", rows)
//	// /home/me/Documents/bandcamp-purchases-2024-05-01.csv
type Exporter struct {
	format Format
	runID  string
	now    func() time.Time
}

// NewExporter creates an Exporter. runID is recorded in JSON exports.
func NewExporter(format Format, runID string) *Exporter {
	return &Exporter{
		format: format,
		runID:  runID,
		now:    time.Now,
	}
}

// Format returns the exporter's output format.
func (e *Exporter) Format() Format {
	return e.format
}

// Write encodes rows to w.
func (e *Exporter) Write(w io.Writer, rows []model.PurchaseRow) error {
	switch e.format {
	case FormatJSON:
		return e.writeJSON(w, rows)
	case FormatParquet:
		return e.writeParquet(w, rows)
	default:
		return e.writeCSV(w, rows)
	}
}

// WriteFile writes rows to dir under the default file name for today and
// returns the full path.
func (e *Exporter) WriteFile(ctx context.Context, dir string, rows []model.PurchaseRow) (string, error) {
	path := filepath.Join(dir, FileName(e.format, e.now()))
	err := ioutils.WriteFileAtomic(ctx, path, func(w io.Writer) error {
		return e.Write(w, rows)
	})
	if err != nil {
		return "", fmt.Errorf("write %s export: %w", e.format, err)
	}
	return path, nil
}

// writeCSV writes the header and one record per row.
//
//	Artist,Title,Type,Purchase Date,Preorder Status,Item URL,Art URL,Hidden
//	Band,Record,album,01 Jan 2023 00:00:00 GMT,unknown,https://...,https://...,false
func (e *Exporter) writeCSV(w io.Writer, rows []model.PurchaseRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for i := range rows {
		r := &rows[i]
		record := []string{
			r.Artist,
			r.Title,
			string(r.ItemType),
			r.PurchaseDateOrEmpty(),
			string(r.PreorderStatus),
			r.ItemURL,
			r.ArtURL,
			strconv.FormatBool(r.IsHidden),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func (e *Exporter) writeJSON(w io.Writer, rows []model.PurchaseRow) error {
	if rows == nil {
		rows = []model.PurchaseRow{}
	}
	// No indent: an indenting encoder would reformat each rawItem too.
	return json.NewEncoder(w).Encode(Envelope{
		ExportedAt: e.now().UTC(),
		RunID:      e.runID,
		Count:      len(rows),
		Purchases:  rows,
	})
}

func (e *Exporter) writeParquet(w io.Writer, rows []model.PurchaseRow) error {
	out := make([]parquetRow, 0, len(rows))
	for i := range rows {
		out = append(out, toParquetRow(&rows[i]))
	}

	pw := parquet.NewGenericWriter[parquetRow](w)
	if _, err := pw.Write(out); err != nil {
		pw.Close()
		return err
	}
	return pw.Close()
}

func toParquetRow(r *model.PurchaseRow) parquetRow {
	pr := parquetRow{
		PurchaseKey:    r.PurchaseKey,
		ItemID:         r.ItemID,
		Artist:         r.Artist,
		Title:          r.Title,
		Type:           string(r.ItemType),
		PurchaseDate:   r.PurchaseDateOrEmpty(),
		PreorderStatus: string(r.PreorderStatus),
		ItemURL:        r.ItemURL,
		ArtURL:         r.ArtURL,
		Hidden:         r.IsHidden,
	}
	// Unparseable dates stay in the text column only.
	if t, err := dto.ParseBandcampTime(pr.PurchaseDate); err == nil && !t.IsZero() {
		ms := t.UnixMilli()
		pr.PurchasedAtMS = &ms
	}
	return pr
}
