package pipeline

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peralese/cloud-pricing-calculator/internal/catalog"
	"github.com/peralese/cloud-pricing-calculator/internal/dbclass"
	"github.com/peralese/cloud-pricing-calculator/internal/validate"
	"github.com/peralese/cloud-pricing-calculator/internal/workload"
)

// stubSource prices everything at a flat hourly rate.
type stubSource struct {
	computeHourly float64
	dbHourly      float64
}

func (s stubSource) ComputeHourly(context.Context, string, string, string) (float64, string, error) {
	return s.computeHourly, "USD/hour", nil
}

func (s stubSource) DatabaseHourly(context.Context, string, string, string, bool) (float64, string, error) {
	return s.dbHourly, "USD/hour", nil
}

func testSizes() []catalog.InstanceSize {
	mk := func(sku string, vcpu, mem float64) catalog.InstanceSize {
		family, _, gen, _ := catalog.ParseSKU(sku)
		return catalog.InstanceSize{
			SKU: sku, VCPU: vcpu, MemoryGiB: mem,
			Family: family, Generation: gen, CurrentGen: true,
			Architecture: []string{"x86"},
		}
	}
	return []catalog.InstanceSize{
		mk("m7i.large", 2, 8), mk("m7i.xlarge", 4, 16), mk("m7i.2xlarge", 8, 32),
		mk("c7i.large", 2, 4), mk("c7i.xlarge", 4, 8),
		mk("r7i.large", 2, 16), mk("r7i.xlarge", 4, 32),
	}
}

func testOptions() Options {
	return Options{
		Provider:    "aws",
		Region:      "us-east-1",
		Catalog:     catalog.Static{Sizes: testSizes()},
		PriceSource: stubSource{computeHourly: 0.2, dbHourly: 0.5},
		Logger:      zerolog.Nop(),
	}
}

func ptr(v float64) *float64 { return &v }

func baseRow(id string) workload.Row {
	return workload.Row{
		ID:             id,
		Provider:       "aws",
		Region:         "us-east-1",
		OS:             "linux",
		PurchaseOption: "ondemand",
		VCPU:           ptr(4),
		MemoryGiB:      ptr(16),
		RootGB:         ptr(100),
		RootType:       "gp3",
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	opts := testOptions()
	opts.Provider = "oci"
	_, err := New(opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oci")

	opts = testOptions()
	opts.Region = "mars-central-1"
	_, err = New(opts)
	require.Error(t, err)

	opts = testOptions()
	opts.Catalog = nil
	_, err = New(opts)
	require.Error(t, err)
}

func TestRunPricesCleanRow(t *testing.T) {
	p, err := New(testOptions())
	require.NoError(t, err)

	report, err := p.Run(context.Background(), []workload.Row{baseRow("r1")})
	require.NoError(t, err)
	require.Len(t, report.Lines, 1)

	line := report.Lines[0]
	assert.Equal(t, validate.StatusOK, line.Verdict.Status)
	assert.Equal(t, "m7i.xlarge", line.Rec.SKU)
	assert.Equal(t, 146.0, line.Costs.MonthlyCompute) // 0.2 * 730
	assert.Equal(t, 8.0, line.Costs.MonthlyBlock)
	assert.Equal(t, report.Rollup.GrandTotal, line.Costs.MonthlyTotal)
	assert.NotEmpty(t, report.RunID)
}

func TestRunRejectsCrossCloudRow(t *testing.T) {
	p, err := New(testOptions())
	require.NoError(t, err)

	row := baseRow("r1")
	row.Provider = "azure"
	row.Region = "eastus"
	report, err := p.Run(context.Background(), []workload.Row{row})
	require.NoError(t, err)

	line := report.Lines[0]
	assert.Equal(t, validate.StatusRejected, line.Verdict.Status)
	assert.Empty(t, line.Rec.SKU, "cross-cloud row must not be sized onto an aws shape")
	assert.Contains(t, line.Verdict.Reasons(), "row targets azure")
	assert.Equal(t, 1, report.Stats.Rejected)
}

func TestRunMissingOSRecommendsButDoesNotPrice(t *testing.T) {
	p, err := New(testOptions())
	require.NoError(t, err)

	row := baseRow("r1")
	row.OS = ""
	report, err := p.Run(context.Background(), []workload.Row{row})
	require.NoError(t, err)

	line := report.Lines[0]
	assert.Equal(t, validate.StatusRecommendOnly, line.Verdict.Status)
	assert.Equal(t, "m7i.xlarge", line.Rec.SKU, "sizing still happens without pricing fields")
	assert.Zero(t, line.Costs.MonthlyTotal)
	require.NotEmpty(t, line.Costs.Notes)
	assert.Contains(t, line.Costs.Notes[0], "not priced")
	assert.Contains(t, line.Costs.Notes[0], "os")
}

func TestRunRejectsBadRegionWithSuggestion(t *testing.T) {
	p, err := New(testOptions())
	require.NoError(t, err)

	row := baseRow("r1")
	row.Region = "US-East"
	report, err := p.Run(context.Background(), []workload.Row{row})
	require.NoError(t, err)

	line := report.Lines[0]
	assert.Equal(t, validate.StatusRejected, line.Verdict.Status)
	assert.Contains(t, line.Verdict.FixHints(), "us-east-1")
	assert.Empty(t, line.Rec.SKU, "rejected rows are never sized")
	assert.Zero(t, report.Rollup.RowsMonthly)
}

func TestRunDerivesDatabaseClassWithFallback(t *testing.T) {
	p, err := New(testOptions())
	require.NoError(t, err)

	row := baseRow("r1")
	row.VCPU = ptr(4)
	row.MemoryGiB = ptr(8) // 2 GiB/vCPU infers a compute profile
	row.DBEngine = "sql server"
	row.DBStorageGB = ptr(100)

	report, err := p.Run(context.Background(), []workload.Row{row})
	require.NoError(t, err)

	line := report.Lines[0]
	assert.Equal(t, "c7i.xlarge", line.Rec.SKU)
	assert.Equal(t, "db.m6i.xlarge", line.DB.Class)
	assert.Equal(t, dbclass.ProvenanceFallback, line.DB.Provenance)
	assert.Equal(t, "sqlserver-se", line.DB.Engine)
	assert.Greater(t, line.Costs.MonthlyDB, 0.0)
}

func TestRunPreservesInputOrder(t *testing.T) {
	rows := make([]workload.Row, 20)
	for i := range rows {
		rows[i] = baseRow(fmt.Sprintf("row-%02d", i))
	}
	// Sprinkle in rejections so the slice is not uniform.
	rows[3].Region = "US-East"
	rows[11].VCPU = nil
	rows[11].MemoryGiB = nil

	for _, workers := range []int{0, 4} {
		opts := testOptions()
		opts.Workers = workers
		p, err := New(opts)
		require.NoError(t, err)

		report, err := p.Run(context.Background(), rows)
		require.NoError(t, err)
		require.Len(t, report.Lines, len(rows))
		for i, line := range report.Lines {
			assert.Equal(t, rows[i].ID, line.Row.ID, "workers=%d position %d", workers, i)
		}
		assert.Equal(t, validate.StatusRejected, report.Lines[3].Verdict.Status)
		assert.Equal(t, validate.StatusRejected, report.Lines[11].Verdict.Status)
	}
}

func TestRunWorkerPoolMatchesSequential(t *testing.T) {
	rows := make([]workload.Row, 12)
	for i := range rows {
		rows[i] = baseRow(fmt.Sprintf("row-%02d", i))
		if i%3 == 0 {
			rows[i].MemoryGiB = ptr(32) // memory profile
		}
	}

	run := func(workers int) float64 {
		opts := testOptions()
		opts.Workers = workers
		p, err := New(opts)
		require.NoError(t, err)
		report, err := p.Run(context.Background(), rows)
		require.NoError(t, err)
		return report.Rollup.GrandTotal
	}
	assert.Equal(t, run(1), run(6))
}

func TestRunSkipPricing(t *testing.T) {
	opts := testOptions()
	opts.SkipPricing = true
	p, err := New(opts)
	require.NoError(t, err)

	report, err := p.Run(context.Background(), []workload.Row{baseRow("r1")})
	require.NoError(t, err)
	assert.Equal(t, "m7i.xlarge", report.Lines[0].Rec.SKU)
	assert.Zero(t, report.Lines[0].Costs.MonthlyTotal)
	assert.Zero(t, report.Rollup.GrandTotal)
}

func TestRunRowRegionFallsBackToRunRegion(t *testing.T) {
	p, err := New(testOptions())
	require.NoError(t, err)

	row := baseRow("r1")
	row.Region = ""
	report, err := p.Run(context.Background(), []workload.Row{row})
	require.NoError(t, err)
	assert.Equal(t, validate.StatusOK, report.Lines[0].Verdict.Status)
	assert.Equal(t, "m7i.xlarge", report.Lines[0].Rec.SKU)
}

func TestRunCatalogFailureBecomesRowNote(t *testing.T) {
	opts := testOptions()
	opts.Catalog = catalog.Static{} // empty catalog errors on fetch
	p, err := New(opts)
	require.NoError(t, err)

	report, err := p.Run(context.Background(), []workload.Row{baseRow("r1")})
	require.NoError(t, err)
	line := report.Lines[0]
	assert.Empty(t, line.Rec.SKU)
	require.NotEmpty(t, line.Costs.Notes)
	assert.True(t, strings.Contains(line.Costs.Notes[0], "recommendation unavailable"))
}
