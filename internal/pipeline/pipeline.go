// Package pipeline orchestrates a run: validate every row, size and
// price the survivors, compute the baseline overhead once, and roll the
// results up.
//
// Configuration problems (unknown provider, unreadable catalog) abort
// the run before any row is processed. Row-level problems never do; they
// become verdicts and notes carried through to the reports.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/peralese/cloud-pricing-calculator/internal/baseline"
	"github.com/peralese/cloud-pricing-calculator/internal/catalog"
	"github.com/peralese/cloud-pricing-calculator/internal/costs"
	"github.com/peralese/cloud-pricing-calculator/internal/dbclass"
	"github.com/peralese/cloud-pricing-calculator/internal/pricecache"
	"github.com/peralese/cloud-pricing-calculator/internal/recommend"
	"github.com/peralese/cloud-pricing-calculator/internal/regions"
	"github.com/peralese/cloud-pricing-calculator/internal/summary"
	"github.com/peralese/cloud-pricing-calculator/internal/validate"
	"github.com/peralese/cloud-pricing-calculator/internal/workload"
)

// Options configures a run.
type Options struct {
	// Provider is the run-level cloud. Rows tagged for another cloud are
	// rejected by validation, not silently repointed.
	Provider string
	// Region is the default region for rows that omit one.
	Region string

	Catalog     catalog.Source
	PriceSource costs.PriceSource
	Cache       *pricecache.Cache
	Rates       costs.Rates
	Resolver    *dbclass.Resolver
	TTL         time.Duration

	// Workers bounds row parallelism. Zero or one means sequential.
	Workers int

	// Baseline, when non-nil, adds the fixed overhead to the rollup.
	Baseline      *baseline.Inputs
	BaselineRates baseline.Rates

	SkipPricing bool

	Logger zerolog.Logger
}

// Report is the complete outcome of one run.
type Report struct {
	RunID    string
	Provider workload.Provider
	Lines    []summary.Line
	Stats    validate.Stats
	Overhead *baseline.Overhead
	Rollup   summary.Rollup
}

// Pipeline executes runs.
type Pipeline struct {
	opts      Options
	provider  workload.Provider
	regions   *regions.Catalog
	validator *validate.Validator
	resolver  *dbclass.Resolver
	agg       *costs.Aggregator
	logger    zerolog.Logger

	mu       sync.Mutex
	catalogs map[string]*recommend.Recommender
}

// New validates the configuration and builds a Pipeline.
func New(opts Options) (*Pipeline, error) {
	provider, ok := workload.KnownProvider(opts.Provider)
	if !ok {
		return nil, fmt.Errorf("unknown provider %q", opts.Provider)
	}
	regionCatalog := regions.NewCatalog()
	if opts.Region != "" {
		valid, suggestions, err := regionCatalog.Validate(provider, opts.Region)
		if err != nil {
			return nil, err
		}
		if !valid {
			return nil, fmt.Errorf("invalid %s region %q (closest: %v)", provider, opts.Region, suggestions)
		}
	}
	if opts.Catalog == nil {
		return nil, fmt.Errorf("no instance catalog source configured")
	}
	if opts.Cache == nil {
		opts.Cache = pricecache.New(pricecache.NewMemoryBackend(), opts.Logger)
	}
	if opts.Rates.HoursPerMonth == 0 {
		opts.Rates = costs.DefaultRates()
	}
	if opts.TTL <= 0 {
		opts.TTL = costs.DefaultTTL
	}
	if opts.Baseline != nil && opts.BaselineRates == (baseline.Rates{}) {
		opts.BaselineRates = baseline.DefaultBaselineRates()
	}
	resolver := opts.Resolver
	if resolver == nil {
		resolver = dbclass.New(opts.Logger)
	}

	return &Pipeline{
		opts:      opts,
		provider:  provider,
		regions:   regionCatalog,
		validator: validate.New(regionCatalog, provider, opts.Logger),
		resolver:  resolver,
		agg:       costs.NewAggregator(opts.Cache, opts.PriceSource, opts.Rates, opts.TTL, opts.Logger),
		logger:    opts.Logger,
		catalogs:  map[string]*recommend.Recommender{},
	}, nil
}

// Run processes rows in input order. The returned report's Lines always
// has one entry per input row, position-aligned.
func (p *Pipeline) Run(ctx context.Context, rows []workload.Row) (*Report, error) {
	runID := uuid.NewString()
	logger := p.logger.With().Str("run_id", runID).Logger()
	logger.Info().Int("rows", len(rows)).Str("provider", string(p.provider)).Msg("run started")

	rows = p.applyDefaultRegion(rows)
	verdicts, stats := p.validator.Rows(rows)

	lines := make([]summary.Line, len(rows))
	process := func(i int) {
		lines[i] = p.processRow(ctx, rows[i], verdicts[i])
	}
	if p.opts.Workers > 1 {
		var wg sync.WaitGroup
		sem := make(chan struct{}, p.opts.Workers)
		for i := range rows {
			wg.Add(1)
			sem <- struct{}{}
			go func(i int) {
				defer wg.Done()
				defer func() { <-sem }()
				process(i)
			}(i)
		}
		wg.Wait()
	} else {
		for i := range rows {
			process(i)
		}
	}

	report := &Report{
		RunID:    runID,
		Provider: p.provider,
		Lines:    lines,
		Stats:    stats,
	}

	var baselineMonthly float64
	if p.opts.Baseline != nil {
		overhead := p.baselineOverhead(ctx)
		report.Overhead = &overhead
		baselineMonthly = overhead.Monthly
	}
	report.Rollup = summary.Build(lines, stats, baselineMonthly)

	logger.Info().
		Int("ok", stats.OK).
		Int("rec_only", stats.RecommendOnly).
		Int("rejected", stats.Rejected).
		Float64("monthly_grand_total", report.Rollup.GrandTotal).
		Msg("run finished")
	return report, nil
}

// processRow sizes and prices a single row according to its verdict.
func (p *Pipeline) processRow(ctx context.Context, row workload.Row, verdict validate.Verdict) summary.Line {
	line := summary.Line{Row: row, Verdict: verdict}
	if verdict.Status == validate.StatusRejected {
		return line
	}

	region := p.rowRegion(row)
	rec, err := p.recommendRow(ctx, row, region)
	if err != nil {
		line.Costs.Notes = append(line.Costs.Notes, fmt.Sprintf("recommendation unavailable: %v", err))
		return line
	}
	line.Rec = rec

	if row.HasDatabase() {
		line.DB = p.resolver.Resolve(row.DBClass, row.DBEngine, rec.SKU)
	}

	switch {
	case p.opts.SkipPricing:
	case verdict.Status == validate.StatusRecommendOnly:
		missing := verdict.MissingPricingFields()
		line.Costs.Notes = append(line.Costs.Notes,
			fmt.Sprintf("not priced: missing %v", missing))
	case rec.SKU == "" && !row.HasDatabase():
		line.Costs.Notes = append(line.Costs.Notes, "not priced: no instance fit")
	default:
		line.Costs = p.agg.Price(ctx, row, region, rec.SKU, line.DB)
	}
	return line
}

// applyDefaultRegion fills the run-level region into rows that omit one,
// before validation sees them. The input slice is left untouched.
func (p *Pipeline) applyDefaultRegion(rows []workload.Row) []workload.Row {
	if p.opts.Region == "" {
		return rows
	}
	out := make([]workload.Row, len(rows))
	copy(out, rows)
	for i := range out {
		if out[i].Region == "" {
			out[i].Region = p.opts.Region
		}
	}
	return out
}

// rowRegion resolves a row's canonical region. Validation already
// guaranteed normalizability for non-rejected rows.
func (p *Pipeline) rowRegion(row workload.Row) string {
	canonical, _, ok, err := p.regions.Normalize(p.provider, row.Region)
	if err != nil || !ok {
		return row.Region
	}
	return canonical
}

// recommendRow sizes a row against the (lazily loaded) region catalog.
func (p *Pipeline) recommendRow(ctx context.Context, row workload.Row, region string) (recommend.Result, error) {
	rec, err := p.recommender(ctx, region)
	if err != nil {
		return recommend.Result{}, err
	}
	return rec.Recommend(row), nil
}

// recommender returns the cached per-region recommender, fetching the
// catalog on first use. The lock also serializes the first fetch.
func (p *Pipeline) recommender(ctx context.Context, region string) (*recommend.Recommender, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if rec, ok := p.catalogs[region]; ok {
		return rec, nil
	}
	sizes, err := p.opts.Catalog.Fetch(ctx, p.provider, region)
	if err != nil {
		return nil, fmt.Errorf("loading instance catalog for %s: %w", region, err)
	}
	rec := recommend.New(sizes, p.logger)
	p.catalogs[region] = rec
	return rec, nil
}

func (p *Pipeline) baselineOverhead(ctx context.Context) baseline.Overhead {
	in := *p.opts.Baseline
	if in.Region == "" {
		in.Region = p.opts.Region
	}
	var fetch pricecache.FetchFunc
	if p.opts.PriceSource != nil {
		fetch = func(ctx context.Context, k pricecache.Key) (float64, string, error) {
			return p.opts.PriceSource.ComputeHourly(ctx, k.Region, k.SKU, k.Variant)
		}
	}
	calc := baseline.NewCalculator(p.opts.Cache, fetch, p.opts.TTL, p.logger)
	return calc.Compute(ctx, in, p.opts.BaselineRates)
}
