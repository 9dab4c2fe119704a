// Package report writes the run artifacts: validation report,
// recommendations, priced rows, baseline items and the summary, as CSV
// files plus a machine-readable summary JSON.
package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/peralese/cloud-pricing-calculator/internal/baseline"
	"github.com/peralese/cloud-pricing-calculator/internal/summary"
	"github.com/peralese/cloud-pricing-calculator/internal/validate"
)

// Artifact file names within a run directory.
const (
	ValidationFile = "validator_report.csv"
	RecommendFile  = "recommend.csv"
	PriceFile      = "price.csv"
	BaselineFile   = "baseline.csv"
	SummaryFile    = "summary.csv"
	SummaryJSON    = "summary.json"
	TopFile        = "summary_top5.csv"
)

// Writer emits run artifacts into a directory.
type Writer struct {
	dir    string
	logger zerolog.Logger
}

// NewWriter creates the run directory if needed.
func NewWriter(dir string, logger zerolog.Logger) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating run directory: %w", err)
	}
	return &Writer{dir: dir, logger: logger}, nil
}

// Dir returns the run directory.
func (w *Writer) Dir() string {
	return w.dir
}

func (w *Writer) writeCSV(name string, header []string, rows [][]string) error {
	path := filepath.Join(w.dir, name)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", name, err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing %s header: %w", name, err)
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("writing %s rows: %w", name, err)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing %s: %w", name, err)
	}
	w.logger.Debug().Str("file", path).Int("rows", len(rows)).Msg("report written")
	return nil
}

// WriteValidation emits one line per row with its verdict.
func (w *Writer) WriteValidation(lines []summary.Line) error {
	header := []string{"id", "cloud", "region", "status", "blocked_for", "reasons", "fix_hints"}
	rows := make([][]string, 0, len(lines))
	for _, l := range lines {
		rows = append(rows, []string{
			l.Row.ID, l.Row.Provider, l.Row.Region,
			string(l.Verdict.Status), l.Verdict.BlockedFor,
			l.Verdict.Reasons(), l.Verdict.FixHints(),
		})
	}
	return w.writeCSV(ValidationFile, header, rows)
}

// WriteRecommendations emits sizing results for rows that were not
// rejected.
func (w *Writer) WriteRecommendations(lines []summary.Line) error {
	header := []string{
		"id", "cloud", "region", "requested_vcpu", "requested_memory_gib",
		"profile", "recommended_instance_type", "native_vcpu", "native_memory_gib",
		"fit_reason", "overprovisioned", "db_instance_class", "db_class_provenance", "note",
	}
	var rows [][]string
	for _, l := range lines {
		if l.Verdict.Status == validate.StatusRejected {
			continue
		}
		rows = append(rows, []string{
			l.Row.ID, l.Row.Provider, l.Row.Region,
			floatField(l.Row.VCPU), floatField(l.Row.MemoryGiB),
			l.Rec.Profile, l.Rec.SKU,
			num(l.Rec.VCPU), num(l.Rec.MemoryGiB),
			string(l.Rec.FitReason), strconv.FormatBool(l.Rec.Overprov),
			l.DB.Class, string(l.DB.Provenance),
			l.Rec.Note,
		})
	}
	return w.writeCSV(RecommendFile, header, rows)
}

// WritePrices emits the monthly breakdown per row. Recommendation-only
// rows appear with zeroed dimensions and their degradation notes.
func (w *Writer) WritePrices(lines []summary.Line) error {
	header := []string{
		"id", "cloud", "region", "recommended_instance_type", "price_per_hour_usd",
		"monthly_compute_usd", "monthly_block_usd", "monthly_object_usd",
		"monthly_network_usd", "monthly_db_usd", "monthly_total_usd",
		"price_sources", "pricing_note",
	}
	var rows [][]string
	for _, l := range lines {
		if l.Verdict.Status == validate.StatusRejected {
			continue
		}
		rows = append(rows, []string{
			l.Row.ID, l.Row.Provider, l.Row.Region, l.Rec.SKU,
			strconv.FormatFloat(l.Costs.ComputeHourly, 'f', 6, 64),
			money(l.Costs.MonthlyCompute), money(l.Costs.MonthlyBlock),
			money(l.Costs.MonthlyObject), money(l.Costs.MonthlyNetwork),
			money(l.Costs.MonthlyDB), money(l.Costs.MonthlyTotal),
			strings.Join(l.Costs.PriceSources, "; "),
			strings.Join(l.Costs.Notes, " | "),
		})
	}
	return w.writeCSV(PriceFile, header, rows)
}

// WriteBaseline emits the itemized overhead with a trailing TOTAL row.
func (w *Writer) WriteBaseline(o baseline.Overhead) error {
	header := []string{"component", "detail", "qty", "unit", "rate", "monthly_usd", "region", "notes"}
	rows := make([][]string, 0, len(o.Items)+1)
	for _, item := range o.Items {
		rows = append(rows, []string{
			item.Component, item.Detail,
			strconv.FormatFloat(item.Quantity, 'f', -1, 64),
			item.Unit,
			strconv.FormatFloat(item.Rate, 'f', 5, 64),
			money(item.Monthly), o.Region, item.Note,
		})
	}
	rows = append(rows, []string{"TOTAL", "", "", "", "", money(o.Monthly), o.Region, ""})
	return w.writeCSV(BaselineFile, header, rows)
}

// WriteSummary emits the metric/value table, the bucket JSON and the
// top-spenders list.
func (w *Writer) WriteSummary(r summary.Rollup) error {
	metrics := r.Metrics()
	rows := make([][]string, 0, len(metrics))
	for _, kv := range metrics {
		rows = append(rows, []string{kv[0], kv[1]})
	}
	if err := w.writeCSV(SummaryFile, []string{"metric", "value"}, rows); err != nil {
		return err
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding summary json: %w", err)
	}
	if err := os.WriteFile(filepath.Join(w.dir, SummaryJSON), data, 0o644); err != nil {
		return fmt.Errorf("writing summary json: %w", err)
	}

	if len(r.Top) == 0 {
		return nil
	}
	topRows := make([][]string, 0, len(r.Top))
	for _, t := range r.Top {
		topRows = append(topRows, []string{t.ID, t.Region, t.SKU, money(t.Monthly)})
	}
	return w.writeCSV(TopFile, []string{"id", "region", "recommended_instance_type", "monthly_total_usd"}, topRows)
}

func floatField(p *float64) string {
	if p == nil {
		return ""
	}
	return num(*p)
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func money(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
