// Package baseline computes the fixed monthly platform overhead shared
// by every workload in a run: transit gateway attachments and data,
// interface endpoints per availability zone, the shared CI runner, and
// the state-backend object storage.
//
// The overhead is computed once per run and added to the summary total;
// it is never attributed to individual rows.
package baseline

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/peralese/cloud-pricing-calculator/internal/pricecache"
	"github.com/peralese/cloud-pricing-calculator/internal/workload"
)

// Inputs are the operator-supplied quantities.
type Inputs struct {
	Region         string  `yaml:"region"`
	TGWAttachments int     `yaml:"tgw_attachments"`
	TGWDataGB      float64 `yaml:"tgw_data_gb"`
	// Interface endpoints are provisioned per availability zone:
	// total = (base + extra) x AZs.
	EndpointsBasePerAZ  int     `yaml:"vpce_base_per_az"`
	EndpointsExtraPerAZ int     `yaml:"vpce_extra_per_az"`
	EndpointAZs         int     `yaml:"vpce_azs"`
	EndpointDataGB      float64 `yaml:"vpce_data_gb"`

	RunnerInstanceType string  `yaml:"runner_instance_type"`
	RunnerCount        int     `yaml:"runner_count"`
	RunnerOSDiskGB     float64 `yaml:"runner_os_disk_gb"`
	StateBackendGB     float64 `yaml:"state_backend_gb"`

	HoursPerMonth float64 `yaml:"hours_per_month"`
}

// DefaultInputs carries the conservative shared-infrastructure shape.
func DefaultInputs(region string) Inputs {
	return Inputs{
		Region:             region,
		TGWAttachments:     1,
		TGWDataGB:          100,
		EndpointsBasePerAZ: 4,
		EndpointAZs:        2,
		EndpointDataGB:     50,
		RunnerInstanceType: "t3.medium",
		RunnerCount:        1,
		RunnerOSDiskGB:     256,
		StateBackendGB:     1,
		HoursPerMonth:      730,
	}
}

// Rates are the unit prices for the overhead components.
type Rates struct {
	TGWAttachmentHourly float64 `yaml:"tgw_attachment_hourly"`
	TGWDataGB           float64 `yaml:"tgw_data_gb"`
	EndpointHourly      float64 `yaml:"vpce_if_hourly"`
	EndpointDataGB      float64 `yaml:"vpce_data_gb"`
	BlockGBMonth        float64 `yaml:"block_gb_month"`
	ObjectGBMonth       float64 `yaml:"object_gb_month"`
}

// DefaultBaselineRates returns the built-in overhead unit prices.
func DefaultBaselineRates() Rates {
	return Rates{
		TGWAttachmentHourly: 0.06,
		TGWDataGB:           0.02,
		EndpointHourly:      0.01,
		EndpointDataGB:      0.01,
		BlockGBMonth:        0.08,
		ObjectGBMonth:       0.023,
	}
}

// Item is one overhead line.
type Item struct {
	Component string
	Detail    string
	Quantity  float64
	Unit      string
	Rate      float64
	Monthly   float64
	Note      string
}

// Overhead is the computed baseline.
type Overhead struct {
	Region  string
	Items   []Item
	Monthly float64
}

// Calculator prices the shared runner through the same cache the row
// aggregator uses, so a cached runner price survives across runs.
type Calculator struct {
	cache  *pricecache.Cache
	fetch  pricecache.FetchFunc
	ttl    time.Duration
	logger zerolog.Logger
}

// NewCalculator builds a Calculator. fetch resolves the runner's hourly
// compute price; nil disables runner compute pricing.
func NewCalculator(cache *pricecache.Cache, fetch pricecache.FetchFunc, ttl time.Duration, logger zerolog.Logger) *Calculator {
	return &Calculator{cache: cache, fetch: fetch, ttl: ttl, logger: logger}
}

// Compute itemizes the overhead and totals it.
func (c *Calculator) Compute(ctx context.Context, in Inputs, rates Rates) Overhead {
	hours := in.HoursPerMonth
	if hours <= 0 {
		hours = 730
	}

	var items []Item

	tgwAttach := float64(max(0, in.TGWAttachments)) * rates.TGWAttachmentHourly * hours
	items = append(items, Item{
		Component: "TGW Attachment",
		Detail:    "attachments",
		Quantity:  float64(in.TGWAttachments),
		Unit:      "attachment-hour",
		Rate:      rates.TGWAttachmentHourly,
		Monthly:   round2(tgwAttach),
		Note:      fmt.Sprintf("%g hours assumed", hours),
	})
	items = append(items, Item{
		Component: "TGW Data",
		Detail:    "data processed",
		Quantity:  in.TGWDataGB,
		Unit:      "GB",
		Rate:      rates.TGWDataGB,
		Monthly:   round2(math.Max(0, in.TGWDataGB) * rates.TGWDataGB),
	})

	azs := max(1, in.EndpointAZs)
	endpoints := (max(0, in.EndpointsBasePerAZ) + max(0, in.EndpointsExtraPerAZ)) * azs
	items = append(items, Item{
		Component: "Interface Endpoint",
		Detail:    "endpoints x AZs",
		Quantity:  float64(endpoints),
		Unit:      "endpoint-hour",
		Rate:      rates.EndpointHourly,
		Monthly:   round2(float64(endpoints) * rates.EndpointHourly * hours),
		Note:      fmt.Sprintf("%g hours assumed", hours),
	})
	items = append(items, Item{
		Component: "Interface Endpoint Data",
		Detail:    "data processed",
		Quantity:  in.EndpointDataGB,
		Unit:      "GB",
		Rate:      rates.EndpointDataGB,
		Monthly:   round2(math.Max(0, in.EndpointDataGB) * rates.EndpointDataGB),
	})

	if in.RunnerCount > 0 && in.RunnerInstanceType != "" {
		hourly, note := c.runnerHourly(ctx, in)
		items = append(items, Item{
			Component: "Shared Runner Compute",
			Detail:    fmt.Sprintf("%s x %d", in.RunnerInstanceType, in.RunnerCount),
			Quantity:  float64(in.RunnerCount),
			Unit:      "instance-hour",
			Rate:      hourly,
			Monthly:   round2(float64(in.RunnerCount) * hourly * hours),
			Note:      note,
		})
		items = append(items, Item{
			Component: "Shared Runner Disk",
			Detail:    fmt.Sprintf("gp3 %g GB x %d", in.RunnerOSDiskGB, in.RunnerCount),
			Quantity:  in.RunnerOSDiskGB,
			Unit:      "GB-month",
			Rate:      rates.BlockGBMonth,
			Monthly:   round2(float64(in.RunnerCount) * math.Max(0, in.RunnerOSDiskGB) * rates.BlockGBMonth),
		})
	}

	if in.StateBackendGB > 0 {
		items = append(items, Item{
			Component: "State Backend Storage",
			Detail:    "standard object storage",
			Quantity:  in.StateBackendGB,
			Unit:      "GB-month",
			Rate:      rates.ObjectGBMonth,
			Monthly:   round2(in.StateBackendGB * rates.ObjectGBMonth),
		})
	}

	var total float64
	for _, item := range items {
		total += item.Monthly
	}
	c.logger.Info().
		Str("region", in.Region).
		Int("items", len(items)).
		Float64("monthly_usd", round2(total)).
		Msg("baseline overhead computed")
	return Overhead{Region: in.Region, Items: items, Monthly: round2(total)}
}

// runnerHourly prices the runner instance via the cache, degrading to an
// unpriced line when no price is reachable.
func (c *Calculator) runnerHourly(ctx context.Context, in Inputs) (float64, string) {
	if c.fetch == nil {
		return 0, "runner compute unpriced: no price source"
	}
	key := pricecache.Key{
		Provider: workload.ProviderAWS,
		Region:   in.Region,
		Service:  pricecache.ServiceCompute,
		SKU:      in.RunnerInstanceType,
		Variant:  "linux",
	}
	entry, err := c.cache.GetOrFetch(ctx, key, c.ttl, c.fetch)
	if err != nil {
		return 0, fmt.Sprintf("runner compute unpriced: %v", err)
	}
	if entry.Source == pricecache.SourceHeuristic {
		return entry.UnitPrice, "heuristic estimate"
	}
	return entry.UnitPrice, ""
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
