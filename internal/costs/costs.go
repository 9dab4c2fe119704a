// Package costs turns a sized row into a monthly cost breakdown across
// compute, block storage, object storage, network egress and database
// dimensions.
package costs

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/peralese/cloud-pricing-calculator/internal/dbclass"
	"github.com/peralese/cloud-pricing-calculator/internal/pricecache"
	"github.com/peralese/cloud-pricing-calculator/internal/workload"
)

// PriceSource fetches live unit prices. Implemented by priceapi clients;
// tests inject stubs.
type PriceSource interface {
	ComputeHourly(ctx context.Context, region, sku, osValue string) (float64, string, error)
	DatabaseHourly(ctx context.Context, region, class, engine string, multiAZ bool) (float64, string, error)
}

// Breakdown is one row's monthly cost by dimension. An unpriceable
// dimension contributes exactly 0.00 and a Note naming why; it is never
// silently dropped.
type Breakdown struct {
	ComputeHourly  float64
	MonthlyCompute float64
	MonthlyBlock   float64
	MonthlyObject  float64
	MonthlyNetwork float64
	MonthlyDB      float64
	MonthlyTotal   float64
	PriceSources   []string
	Notes          []string
}

// addNote appends a degradation note.
func (b *Breakdown) addNote(format string, args ...any) {
	b.Notes = append(b.Notes, fmt.Sprintf(format, args...))
}

// Aggregator prices rows through the cache.
type Aggregator struct {
	cache  *pricecache.Cache
	source PriceSource
	rates  Rates
	ttl    time.Duration
	logger zerolog.Logger
}

// DefaultTTL bounds how long a cached live price is trusted.
const DefaultTTL = 7 * 24 * time.Hour

// NewAggregator builds an Aggregator. A nil source restricts pricing to
// overrides, cached entries and the heuristic.
func NewAggregator(cache *pricecache.Cache, source PriceSource, rates Rates, ttl time.Duration, logger zerolog.Logger) *Aggregator {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Aggregator{cache: cache, source: source, rates: rates, ttl: ttl, logger: logger}
}

// Price computes the monthly breakdown for a row that passed the pricing
// gate. region is the row's canonical region; computeSKU the recommended
// (or supplied) instance size; db the resolved database class.
func (a *Aggregator) Price(ctx context.Context, row workload.Row, region, computeSKU string, db dbclass.Resolved) Breakdown {
	var b Breakdown

	a.priceCompute(ctx, &b, row, region, computeSKU)
	a.priceBlock(&b, row)
	a.priceObject(&b, row)
	a.priceNetwork(&b, row)
	a.priceDatabase(ctx, &b, row, region, db)

	b.MonthlyTotal = round2(b.MonthlyCompute + b.MonthlyBlock + b.MonthlyObject + b.MonthlyNetwork + b.MonthlyDB)
	return b
}

func (a *Aggregator) priceCompute(ctx context.Context, b *Breakdown, row workload.Row, region, computeSKU string) {
	if computeSKU == "" {
		b.addNote("compute unpriced: no instance size")
		return
	}

	// BYOL rows carry their own OS license; the compute component is
	// priced at the base Linux rate.
	osValue := row.OS
	if row.IsBYOL() && osValue != "linux" {
		osValue = "linux"
		b.addNote("byol: compute priced at linux rate")
	}

	key := pricecache.Key{
		Provider: workload.Provider(row.Provider),
		Region:   region,
		Service:  pricecache.ServiceCompute,
		SKU:      computeSKU,
		Variant:  osValue,
	}
	entry, err := a.cache.GetOrFetch(ctx, key, a.ttl, func(ctx context.Context, k pricecache.Key) (float64, string, error) {
		if a.source == nil {
			return 0, "", fmt.Errorf("no live price source configured")
		}
		return a.source.ComputeHourly(ctx, k.Region, k.SKU, k.Variant)
	})
	if err != nil {
		b.addNote("compute unpriced: %v", err)
		return
	}

	b.ComputeHourly = entry.UnitPrice
	b.MonthlyCompute = round2(entry.UnitPrice * a.rates.HoursPerMonth)
	b.PriceSources = append(b.PriceSources, fmt.Sprintf("compute=%s", entry.Source))
	if entry.Source == pricecache.SourceHeuristic {
		b.addNote("compute price is a heuristic estimate")
	}
}

func (a *Aggregator) priceBlock(b *Breakdown, row workload.Row) {
	root := workload.FloatOrZero(row.RootGB) * a.rates.BlockRate(row.RootType)
	data := workload.FloatOrZero(row.DataGB) * a.rates.BlockRate(row.DataType)
	b.MonthlyBlock = round2(root + data)
	if _, ok := a.rates.BlockGBMonth[row.RootType]; !ok && row.RootType != "" && workload.FloatOrZero(row.RootGB) > 0 {
		b.addNote("unknown volume type %q priced at gp3 rate", row.RootType)
	}
}

func (a *Aggregator) priceObject(b *Breakdown, row workload.Row) {
	b.MonthlyObject = round2(workload.FloatOrZero(row.S3GB) * a.rates.ObjectGBMonth)
}

func (a *Aggregator) priceNetwork(b *Breakdown, row workload.Row) {
	if row.NetworkTier == "" {
		return
	}
	gb, ok := a.rates.NetworkTierGB[row.NetworkTier]
	if !ok {
		b.addNote("network unpriced: unknown tier %q", row.NetworkTier)
		return
	}
	b.MonthlyNetwork = round2(gb * a.rates.EgressGBPrice)
}

func (a *Aggregator) priceDatabase(ctx context.Context, b *Breakdown, row workload.Row, region string, db dbclass.Resolved) {
	if !row.HasDatabase() {
		return
	}

	if workload.Provider(row.Provider) == workload.ProviderAzure && strings.HasPrefix(db.Engine, "sqlserver") {
		a.priceAzureSQL(b, row)
		return
	}

	if db.Class == "" {
		b.addNote("database unpriced: %s", db.Note)
		return
	}

	multiAZ := workload.BoolOrFalse(row.MultiAZ)
	variant := db.Engine
	if multiAZ {
		variant += "/multi-az"
	}
	key := pricecache.Key{
		Provider: workload.Provider(row.Provider),
		Region:   region,
		Service:  pricecache.ServiceDatabase,
		SKU:      db.Class,
		Variant:  variant,
	}
	entry, err := a.cache.GetOrFetch(ctx, key, a.ttl, func(ctx context.Context, k pricecache.Key) (float64, string, error) {
		if a.source == nil {
			return 0, "", fmt.Errorf("no live price source configured")
		}
		// Multi-AZ pricing comes from the deployment filter, not a
		// client-side multiplier; the API rate already covers the standby.
		return a.source.DatabaseHourly(ctx, k.Region, k.SKU, db.Engine, multiAZ)
	})
	if err != nil {
		b.addNote("database unpriced: %v", err)
		return
	}

	monthly := entry.UnitPrice * a.rates.HoursPerMonth
	if entry.Source == pricecache.SourceHeuristic {
		b.addNote("database price is a heuristic estimate")
	}
	if db.Provenance == dbclass.ProvenanceFallback {
		b.addNote(db.Note)
	}
	monthly += workload.FloatOrZero(row.DBStorageGB) * a.rates.DBStorageGBMonth
	b.MonthlyDB = round2(monthly)
	b.PriceSources = append(b.PriceSources, fmt.Sprintf("database=%s", entry.Source))
}

// priceAzureSQL applies the vCore model: per-vCore hourly rate by tier,
// optionally discounted by Azure Hybrid Benefit, plus storage.
func (a *Aggregator) priceAzureSQL(b *Breakdown, row workload.Row) {
	rates := a.rates.AzureSQL

	tier := strings.ToLower(strings.ReplaceAll(row.DBTier, " ", ""))
	if tier == "" {
		tier = "generalpurpose"
	}
	perVCore, ok := rates.VCoreHourly[tier]
	if !ok {
		b.addNote("database unpriced: unknown azure sql tier %q", row.DBTier)
		return
	}

	vcores := workload.FloatOrZero(row.DBVCores)
	if vcores <= 0 {
		vcores = rates.DefaultVCores
		b.addNote("azure sql vcores defaulted to %g", vcores)
	}
	storageGB := workload.FloatOrZero(row.DBStorageGB)
	if storageGB <= 0 {
		storageGB = rates.DefaultGB
	}

	hourly := perVCore * vcores
	if workload.BoolOrFalse(row.AHUB) || row.IsBYOL() {
		hourly *= 1 - rates.AHUBDiscount
		b.addNote("azure hybrid benefit applied (%.0f%% off vcore rate)", rates.AHUBDiscount*100)
	}

	b.MonthlyDB = round2(hourly*a.rates.HoursPerMonth + storageGB*rates.StorageGBMonth)
	b.PriceSources = append(b.PriceSources, "database=vcore-rate-card")
	b.addNote("azure sql %s: %g vcores, %g GB", tier, vcores, storageGB)
}

// round2 rounds to cents. Totals are computed from already-rounded
// dimension values so the printed columns sum exactly.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
