package costs

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peralese/cloud-pricing-calculator/internal/dbclass"
	"github.com/peralese/cloud-pricing-calculator/internal/pricecache"
	"github.com/peralese/cloud-pricing-calculator/internal/workload"
)

// stubSource returns fixed prices and records what was asked for.
type stubSource struct {
	computeHourly float64
	dbHourly      float64
	err           error
	computeOS     []string
	dbMultiAZ     []bool
}

func (s *stubSource) ComputeHourly(_ context.Context, _, _, osValue string) (float64, string, error) {
	if s.err != nil {
		return 0, "", s.err
	}
	s.computeOS = append(s.computeOS, osValue)
	return s.computeHourly, "USD/hour", nil
}

func (s *stubSource) DatabaseHourly(_ context.Context, _, _, _ string, multiAZ bool) (float64, string, error) {
	if s.err != nil {
		return 0, "", s.err
	}
	s.dbMultiAZ = append(s.dbMultiAZ, multiAZ)
	return s.dbHourly, "USD/hour", nil
}

func newTestAggregator(src PriceSource) *Aggregator {
	cache := pricecache.New(pricecache.NewMemoryBackend(), zerolog.Nop())
	return NewAggregator(cache, src, DefaultRates(), time.Hour, zerolog.Nop())
}

func ptr(v float64) *float64 { return &v }

func baseRow() workload.Row {
	return workload.Row{
		ID:             "r1",
		Provider:       "aws",
		Region:         "us-east-1",
		OS:             "linux",
		PurchaseOption: "ondemand",
		RootGB:         ptr(100),
		RootType:       "gp3",
	}
}

func TestPriceComputeMonthly(t *testing.T) {
	src := &stubSource{computeHourly: 0.2}
	agg := newTestAggregator(src)

	b := agg.Price(context.Background(), baseRow(), "us-east-1", "m7i.xlarge", dbclass.Resolved{})
	assert.Equal(t, 0.2, b.ComputeHourly)
	assert.Equal(t, 146.0, b.MonthlyCompute) // 0.2 * 730
	assert.Equal(t, 8.0, b.MonthlyBlock)     // 100 GB gp3 * 0.08
	assert.Equal(t, b.MonthlyCompute+b.MonthlyBlock, b.MonthlyTotal)
}

func TestPriceBYOLUsesLinuxRate(t *testing.T) {
	src := &stubSource{computeHourly: 0.2}
	agg := newTestAggregator(src)

	row := baseRow()
	row.OS = "windows"
	row.LicenseModel = "byol"
	b := agg.Price(context.Background(), row, "us-east-1", "m7i.xlarge", dbclass.Resolved{})

	require.Len(t, src.computeOS, 1)
	assert.Equal(t, "linux", src.computeOS[0])
	assert.True(t, hasNote(b, "byol"), "expected a byol note, got %v", b.Notes)
}

func TestPriceStorageObjectNetwork(t *testing.T) {
	agg := newTestAggregator(&stubSource{computeHourly: 0.1})
	row := baseRow()
	row.DataGB = ptr(200)
	row.DataType = "io1"
	row.S3GB = ptr(1000)
	row.NetworkTier = "medium"

	b := agg.Price(context.Background(), row, "us-east-1", "m7i.xlarge", dbclass.Resolved{})
	assert.Equal(t, 33.0, b.MonthlyBlock)   // 100*0.08 + 200*0.125
	assert.Equal(t, 23.0, b.MonthlyObject)  // 1000*0.023
	assert.Equal(t, 45.0, b.MonthlyNetwork) // 500 GB * 0.09
}

func TestPriceUnknownNetworkTierZeroWithNote(t *testing.T) {
	agg := newTestAggregator(&stubSource{computeHourly: 0.1})
	row := baseRow()
	row.NetworkTier = "extreme"

	b := agg.Price(context.Background(), row, "us-east-1", "m7i.xlarge", dbclass.Resolved{})
	assert.Equal(t, 0.0, b.MonthlyNetwork)
	assert.True(t, hasNote(b, "network unpriced"))
}

func TestPriceNoSKUZeroComputeWithNote(t *testing.T) {
	agg := newTestAggregator(&stubSource{computeHourly: 0.1})
	b := agg.Price(context.Background(), baseRow(), "us-east-1", "", dbclass.Resolved{})
	assert.Equal(t, 0.0, b.MonthlyCompute)
	assert.True(t, hasNote(b, "no instance size"))
	// Storage still prices; one dead dimension never blanks the others.
	assert.Equal(t, 8.0, b.MonthlyBlock)
}

func TestPriceDatabase(t *testing.T) {
	src := &stubSource{computeHourly: 0.2, dbHourly: 0.5}
	agg := newTestAggregator(src)

	row := baseRow()
	row.DBEngine = "postgres"
	row.DBStorageGB = ptr(100)
	multi := true
	row.MultiAZ = &multi

	db := dbclass.Resolved{Class: "db.m7i.xlarge", Engine: "postgresql", Provenance: dbclass.ProvenanceDerived}
	b := agg.Price(context.Background(), row, "us-east-1", "m7i.xlarge", db)

	// 0.5 * 730 + 100 * 0.115
	assert.Equal(t, 376.5, b.MonthlyDB)
	require.Len(t, src.dbMultiAZ, 1)
	assert.True(t, src.dbMultiAZ[0], "multi-az must reach the price filter")
}

func TestPriceDatabaseFallbackNoteCarried(t *testing.T) {
	agg := newTestAggregator(&stubSource{computeHourly: 0.2, dbHourly: 0.5})
	row := baseRow()
	row.DBEngine = "sql server"

	db := dbclass.Resolved{
		Class:      "db.m6i.xlarge",
		Engine:     "sqlserver-se",
		Provenance: dbclass.ProvenanceFallback,
		Note:       "db.m7i.xlarge unavailable for sqlserver-se; using db.m6i.xlarge",
	}
	b := agg.Price(context.Background(), row, "us-east-1", "m7i.xlarge", db)
	assert.True(t, hasNote(b, "unavailable for sqlserver-se"))
}

func TestPriceAzureSQL(t *testing.T) {
	agg := newTestAggregator(&stubSource{computeHourly: 0.2})
	row := workload.Row{
		ID:             "az1",
		Provider:       "azure",
		Region:         "eastus",
		OS:             "windows",
		PurchaseOption: "ondemand",
		RootGB:         ptr(128),
		RootType:       "gp3",
		DBEngine:       "sqlserver",
		DBTier:         "GeneralPurpose",
		DBVCores:       ptr(4),
		DBStorageGB:    ptr(256),
	}
	db := dbclass.Resolved{Engine: "sqlserver-se", Provenance: dbclass.ProvenanceUnresolved}

	b := agg.Price(context.Background(), row, "eastus", "m7i.xlarge", db)
	// 4 vcores * 0.5218 * 730 + 256 * 0.115
	want := round2(4*0.5218*730 + 256*0.115)
	assert.Equal(t, want, b.MonthlyDB)

	ahub := true
	row.AHUB = &ahub
	b = agg.Price(context.Background(), row, "eastus", "m7i.xlarge", db)
	discounted := round2(4*0.5218*0.55*730 + 256*0.115)
	assert.Equal(t, discounted, b.MonthlyDB)
	assert.True(t, hasNote(b, "hybrid benefit"))
}

func TestPriceFetchFailureDegradesToHeuristicNote(t *testing.T) {
	cache := pricecache.New(pricecache.NewMemoryBackend(), zerolog.Nop(),
		pricecache.WithHeuristic(pricecache.DefaultHeuristic()))
	agg := NewAggregator(cache, &stubSource{err: errors.New("api down")}, DefaultRates(), time.Hour, zerolog.Nop())

	b := agg.Price(context.Background(), baseRow(), "us-east-1", "m7i.xlarge", dbclass.Resolved{})
	assert.Greater(t, b.MonthlyCompute, 0.0)
	assert.True(t, hasNote(b, "heuristic estimate"))
}

func TestRatesEnvAndFileOverlay(t *testing.T) {
	t.Setenv("S3_STD_GB_MONTH", "0.03")
	t.Setenv("NETWORK_EGRESS_GB_LOW", "25")
	r := FromEnv()
	assert.Equal(t, 0.03, r.ObjectGBMonth)
	assert.Equal(t, 25.0, r.NetworkTierGB["low"])
	assert.Equal(t, 0.08, r.BlockGBMonth["gp3"])
}

func hasNote(b Breakdown, fragment string) bool {
	for _, n := range b.Notes {
		if strings.Contains(n, fragment) {
			return true
		}
	}
	return false
}
