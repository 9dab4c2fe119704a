// Package summary rolls priced rows up into named cost buckets, run
// metrics and a grand total. The rollup is read-only: it never mutates
// or re-prices the breakdowns it aggregates.
package summary

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/peralese/cloud-pricing-calculator/internal/costs"
	"github.com/peralese/cloud-pricing-calculator/internal/dbclass"
	"github.com/peralese/cloud-pricing-calculator/internal/recommend"
	"github.com/peralese/cloud-pricing-calculator/internal/validate"
	"github.com/peralese/cloud-pricing-calculator/internal/workload"
)

// TopN is how many rows the highest-spend list carries.
const TopN = 5

// Line is the per-row slice the rollup reads.
type Line struct {
	Row     workload.Row
	Verdict validate.Verdict
	Rec     recommend.Result
	DB      dbclass.Resolved
	Costs   costs.Breakdown
}

// Bucket is one named cost category.
type Bucket struct {
	Name    string
	Rows    int
	Monthly float64
	Annual  float64
}

// TopRow identifies one of the costliest rows.
type TopRow struct {
	ID      string
	Region  string
	SKU     string
	Monthly float64
}

// Rollup is the run-level summary.
type Rollup struct {
	Buckets         []Bucket
	Top             []TopRow
	Stats           validate.Stats
	FitCounts       map[string]int
	AvgVCPU         float64
	AvgMemoryGiB    float64
	RowsMonthly     float64
	BaselineMonthly float64
	// GrandTotal = rows + baseline. Buckets always sum to GrandTotal.
	GrandTotal float64
}

// Build aggregates lines and the run baseline into a Rollup.
func Build(lines []Line, stats validate.Stats, baselineMonthly float64) Rollup {
	buckets := map[string]*Bucket{}
	add := func(name string, monthly float64) {
		if monthly == 0 {
			return
		}
		b, ok := buckets[name]
		if !ok {
			b = &Bucket{Name: name}
			buckets[name] = b
		}
		b.Rows++
		b.Monthly += monthly
	}

	fitCounts := map[string]int{}
	var top []TopRow
	var sumVCPU, sumMem, rowsMonthly float64
	var capacityRows int

	for _, l := range lines {
		if l.Verdict.Status == validate.StatusRejected {
			continue
		}
		if l.Rec.FitReason != "" {
			fitCounts[string(l.Rec.FitReason)]++
		}
		if workload.PositiveFloat(l.Row.VCPU) || workload.PositiveFloat(l.Row.MemoryGiB) {
			sumVCPU += workload.FloatOrZero(l.Row.VCPU)
			sumMem += workload.FloatOrZero(l.Row.MemoryGiB)
			capacityRows++
		}

		add(computeBucket(l.Row), l.Costs.MonthlyCompute)
		add("Block Storage", l.Costs.MonthlyBlock)
		add("Object Storage", l.Costs.MonthlyObject)
		add("Network Egress", l.Costs.MonthlyNetwork)
		add(databaseBucket(l.Row, l.DB), l.Costs.MonthlyDB)

		rowsMonthly += l.Costs.MonthlyTotal
		if l.Costs.MonthlyTotal > 0 {
			top = append(top, TopRow{
				ID:      l.Row.ID,
				Region:  l.Row.Region,
				SKU:     l.Rec.SKU,
				Monthly: l.Costs.MonthlyTotal,
			})
		}
	}

	if baselineMonthly > 0 {
		buckets["Baseline"] = &Bucket{Name: "Baseline", Monthly: baselineMonthly}
	}

	ordered := make([]Bucket, 0, len(buckets))
	for _, b := range buckets {
		b.Monthly = round2(b.Monthly)
		b.Annual = round2(b.Monthly * 12)
		ordered = append(ordered, *b)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Name < ordered[j].Name })

	sort.Slice(top, func(i, j int) bool {
		if top[i].Monthly != top[j].Monthly {
			return top[i].Monthly > top[j].Monthly
		}
		return top[i].ID < top[j].ID
	})
	if len(top) > TopN {
		top = top[:TopN]
	}

	r := Rollup{
		Buckets:         ordered,
		Top:             top,
		Stats:           stats,
		FitCounts:       fitCounts,
		RowsMonthly:     round2(rowsMonthly),
		BaselineMonthly: round2(baselineMonthly),
		GrandTotal:      round2(rowsMonthly + baselineMonthly),
	}
	if capacityRows > 0 {
		r.AvgVCPU = round2(sumVCPU / float64(capacityRows))
		r.AvgMemoryGiB = round2(sumMem / float64(capacityRows))
	}
	return r
}

// Metrics flattens the rollup into ordered metric/value pairs for the
// two-column summary report.
func (r Rollup) Metrics() [][2]string {
	out := [][2]string{
		{"rows_total", fmt.Sprintf("%d", r.Stats.Total)},
		{"rows_ok", fmt.Sprintf("%d", r.Stats.OK)},
		{"rows_rec_only", fmt.Sprintf("%d", r.Stats.RecommendOnly)},
		{"rows_rejected", fmt.Sprintf("%d", r.Stats.Rejected)},
	}
	fits := make([]string, 0, len(r.FitCounts))
	for k := range r.FitCounts {
		fits = append(fits, k)
	}
	sort.Strings(fits)
	for _, k := range fits {
		out = append(out, [2]string{"fit_" + k, fmt.Sprintf("%d", r.FitCounts[k])})
	}
	out = append(out,
		[2]string{"avg_requested_vcpu", fmt.Sprintf("%.2f", r.AvgVCPU)},
		[2]string{"avg_requested_memory_gib", fmt.Sprintf("%.2f", r.AvgMemoryGiB)},
	)
	for _, b := range r.Buckets {
		out = append(out, [2]string{"monthly_" + metricKey(b.Name), fmt.Sprintf("%.2f", b.Monthly)})
	}
	out = append(out,
		[2]string{"monthly_rows_total", fmt.Sprintf("%.2f", r.RowsMonthly)},
		[2]string{"monthly_baseline_total", fmt.Sprintf("%.2f", r.BaselineMonthly)},
		[2]string{"monthly_grand_total", fmt.Sprintf("%.2f", r.GrandTotal)},
		[2]string{"annual_grand_total", fmt.Sprintf("%.2f", round2(r.GrandTotal*12))},
	)
	return out
}

func computeBucket(row workload.Row) string {
	if row.OS == "windows" {
		return "Windows VMs"
	}
	return "Linux VMs"
}

func databaseBucket(row workload.Row, db dbclass.Resolved) string {
	if workload.Provider(row.Provider) == workload.ProviderAzure {
		return "Azure SQL"
	}
	engine := db.Engine
	if engine == "" {
		engine = "unknown"
	}
	return "RDS " + engine
}

func metricKey(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), " ", "_")
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
