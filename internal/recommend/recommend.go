// Package recommend maps requested vCPU/memory capacity onto the
// smallest suitable instance size, with diagnostics explaining which
// dimension drove the choice.
package recommend

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/peralese/cloud-pricing-calculator/internal/catalog"
	"github.com/peralese/cloud-pricing-calculator/internal/workload"
)

// FitReason explains how a recommendation relates to the request.
type FitReason string

const (
	FitExact        FitReason = "exact"
	FitCPUBound     FitReason = "cpu-bound"
	FitMemoryBound  FitReason = "memory-bound"
	FitMinSizeFloor FitReason = "min-size-floor"
	FitNone         FitReason = "no-fit"
)

// DefaultOverprovisionRatio is the threshold above which a match is
// flagged as heavily overprovisioned. Flagged, never rejected: the
// caller decides whether a 4x oversize is acceptable.
const DefaultOverprovisionRatio = 4.0

// familyPreferences ranks instance families per workload profile, newest
// generation first.
var familyPreferences = map[string][]string{
	workload.ProfileBalanced: {"m7i", "m6i", "m5"},
	workload.ProfileCompute:  {"c7i", "c6i", "c5"},
	workload.ProfileMemory:   {"r7i", "r6i", "r5"},
}

// Result is one sizing recommendation. A no-fit result carries an empty
// SKU and a Note naming the smallest candidates per dimension.
type Result struct {
	SKU       string
	VCPU      float64
	MemoryGiB float64
	Profile   string // profile actually used, after inference
	FitReason FitReason
	ExtraVCPU float64
	ExtraGiB  float64
	CPURatio  float64 // native vCPU / requested vCPU; 0 when vCPU not requested
	MemRatio  float64
	Overprov  bool // any requested dimension exceeds the overprovision threshold
	Note      string
}

// Found reports whether a SKU was selected.
func (r Result) Found() bool {
	return r.SKU != ""
}

// InferProfile derives a workload profile from the memory-per-vCPU ratio
// when none was supplied. Thresholds follow the conventional family
// ratios: compute-optimized runs near 2 GiB/vCPU, memory-optimized near 8.
func InferProfile(vcpu, memGiB float64) string {
	if vcpu <= 0 || memGiB <= 0 {
		return workload.ProfileBalanced
	}
	ratio := memGiB / vcpu
	switch {
	case ratio <= 3:
		return workload.ProfileCompute
	case ratio >= 6:
		return workload.ProfileMemory
	default:
		return workload.ProfileBalanced
	}
}

// Recommender selects instance sizes from a catalog.
type Recommender struct {
	sizes         []catalog.InstanceSize
	overprovRatio float64
	logger        zerolog.Logger
}

// Option configures a Recommender.
type Option func(*Recommender)

// WithOverprovisionRatio overrides the flagging threshold.
func WithOverprovisionRatio(ratio float64) Option {
	return func(r *Recommender) {
		if ratio > 1 {
			r.overprovRatio = ratio
		}
	}
}

// New builds a Recommender over a catalog slice. The slice is sorted
// defensively; selection must not depend on source ordering.
func New(sizes []catalog.InstanceSize, logger zerolog.Logger, opts ...Option) *Recommender {
	owned := append([]catalog.InstanceSize{}, sizes...)
	catalog.SortSizes(owned)
	r := &Recommender{sizes: owned, overprovRatio: DefaultOverprovisionRatio, logger: logger}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Recommend sizes a row. The row must have passed the recommendation
// gate: at least one of vCPU/memory is positive.
func (r *Recommender) Recommend(row workload.Row) Result {
	wantCPU := workload.FloatOrZero(row.VCPU)
	wantMem := workload.FloatOrZero(row.MemoryGiB)
	profile := row.Profile
	if profile == "" {
		profile = InferProfile(wantCPU, wantMem)
	}

	eligible := r.eligible(row.Arch)
	candidates := satisfying(eligible, wantCPU, wantMem)
	if len(candidates) == 0 {
		return r.noFit(eligible, wantCPU, wantMem, profile)
	}

	// Prefer the profile's families, newest generation first; fall back to
	// the full candidate set when no preferred family can satisfy the ask.
	pool := candidates
	for _, fam := range familyPreferences[profile] {
		if narrowed := inFamily(candidates, fam); len(narrowed) > 0 {
			pool = narrowed
			break
		}
	}

	best := pool[0]
	bestWaste := waste(best, wantCPU, wantMem)
	for _, c := range pool[1:] {
		if w := waste(c, wantCPU, wantMem); w < bestWaste {
			best, bestWaste = c, w
		}
	}

	res := Result{
		SKU:       best.SKU,
		VCPU:      best.VCPU,
		MemoryGiB: best.MemoryGiB,
		Profile:   profile,
		ExtraVCPU: best.VCPU - wantCPU,
		ExtraGiB:  best.MemoryGiB - wantMem,
	}
	if wantCPU > 0 {
		res.CPURatio = best.VCPU / wantCPU
	}
	if wantMem > 0 {
		res.MemRatio = best.MemoryGiB / wantMem
	}
	res.FitReason = classify(best, eligible, wantCPU, wantMem)
	res.Overprov = res.CPURatio > r.overprovRatio || res.MemRatio > r.overprovRatio
	if res.Overprov {
		res.Note = fmt.Sprintf("heavily overprovisioned: %s offers %.0f vCPU / %.0f GiB for a %.0f vCPU / %.0f GiB request",
			best.SKU, best.VCPU, best.MemoryGiB, wantCPU, wantMem)
	}

	r.logger.Debug().
		Str("row_id", row.ID).
		Str("sku", res.SKU).
		Str("profile", profile).
		Str("fit", string(res.FitReason)).
		Msg("recommendation selected")
	return res
}

// eligible filters to current-generation sizes compatible with the
// requested architecture.
func (r *Recommender) eligible(arch string) []catalog.InstanceSize {
	var out []catalog.InstanceSize
	for _, s := range r.sizes {
		if s.CurrentGen && s.SupportsArch(arch) {
			out = append(out, s)
		}
	}
	return out
}

// satisfying keeps the sizes meeting both requested dimensions. A zero
// request on a dimension is always satisfied.
func satisfying(sizes []catalog.InstanceSize, wantCPU, wantMem float64) []catalog.InstanceSize {
	var out []catalog.InstanceSize
	for _, s := range sizes {
		if s.VCPU >= wantCPU && s.MemoryGiB >= wantMem {
			out = append(out, s)
		}
	}
	return out
}

func inFamily(sizes []catalog.InstanceSize, family string) []catalog.InstanceSize {
	var out []catalog.InstanceSize
	for _, s := range sizes {
		if s.Family == family {
			out = append(out, s)
		}
	}
	return out
}

// waste scores a candidate by total surplus capacity. The catalog sort
// guarantees ties resolve to the smaller, lexically earlier SKU because
// candidates are visited in sorted order and only a strictly better
// score displaces the incumbent.
func waste(s catalog.InstanceSize, wantCPU, wantMem float64) float64 {
	return (s.VCPU - wantCPU) + (s.MemoryGiB - wantMem)
}

// classify names the binding dimension of a selection: the dimension
// whose single-dimension requirement alone forces the larger machine.
func classify(chosen catalog.InstanceSize, eligible []catalog.InstanceSize, wantCPU, wantMem float64) FitReason {
	cpuExact := wantCPU > 0 && chosen.VCPU == wantCPU
	memExact := wantMem > 0 && chosen.MemoryGiB == wantMem
	switch {
	case cpuExact && memExact:
		return FitExact
	case cpuExact && wantMem == 0:
		return FitExact
	case memExact && wantCPU == 0:
		return FitExact
	}

	// When even the smallest eligible size in the chosen family exceeds
	// both asks, the request fell below the size floor.
	smallest := smallestInFamily(eligible, chosen.Family)
	if smallest.SKU == chosen.SKU && wantCPU > 0 && wantMem > 0 &&
		wantCPU < smallest.VCPU && wantMem < smallest.MemoryGiB {
		return FitMinSizeFloor
	}

	cpuOnly, cpuFound := smallestMeetingCPU(eligible, wantCPU)
	memOnly, memFound := smallestMeetingMem(eligible, wantMem)
	cpuRank := rank(cpuOnly, cpuFound)
	memRank := rank(memOnly, memFound)
	if memRank[0] > cpuRank[0] || (memRank[0] == cpuRank[0] && memRank[1] >= cpuRank[1]) {
		return FitMemoryBound
	}
	return FitCPUBound
}

// rank orders sizes by (vcpu, memory); an unservable dimension ranks
// above everything.
func rank(s catalog.InstanceSize, found bool) [2]float64 {
	if !found {
		return [2]float64{math.Inf(1), math.Inf(1)}
	}
	return [2]float64{s.VCPU, s.MemoryGiB}
}

// smallestMeetingCPU finds the smallest size covering the CPU ask alone.
// Sizes arrive sorted by (vcpu, memory, sku).
func smallestMeetingCPU(sizes []catalog.InstanceSize, wantCPU float64) (catalog.InstanceSize, bool) {
	for _, s := range sizes {
		if s.VCPU >= wantCPU {
			return s, true
		}
	}
	return catalog.InstanceSize{}, false
}

// smallestMeetingMem finds the smallest size covering the memory ask
// alone, smallest memory first.
func smallestMeetingMem(sizes []catalog.InstanceSize, wantMem float64) (catalog.InstanceSize, bool) {
	best, found := catalog.InstanceSize{}, false
	for _, s := range sizes {
		if s.MemoryGiB < wantMem {
			continue
		}
		if !found || s.MemoryGiB < best.MemoryGiB ||
			(s.MemoryGiB == best.MemoryGiB && s.VCPU < best.VCPU) {
			best, found = s, true
		}
	}
	return best, found
}

func smallestInFamily(sizes []catalog.InstanceSize, family string) catalog.InstanceSize {
	for _, s := range sizes {
		if s.Family == family {
			return s // sizes are sorted ascending
		}
	}
	return catalog.InstanceSize{}
}

// noFit handles an unservable request. An empty catalog yields the
// no-fit sentinel; otherwise the closest size by the dominant deficient
// dimension is returned, so a row is never silently dropped while any
// size exists.
func (r *Recommender) noFit(eligible []catalog.InstanceSize, wantCPU, wantMem float64, profile string) Result {
	if len(eligible) == 0 {
		return Result{Profile: profile, FitReason: FitNone, Note: "no instance sizes available"}
	}

	cpuShort := !anyMeets(eligible, func(s catalog.InstanceSize) bool { return s.VCPU >= wantCPU })
	memShort := !anyMeets(eligible, func(s catalog.InstanceSize) bool { return s.MemoryGiB >= wantMem })

	var best catalog.InstanceSize
	var reason FitReason
	var note string
	switch {
	case cpuShort && !memShort:
		// Among sizes covering the memory ask, maximize vCPU.
		best = closest(eligible, wantMem,
			func(s catalog.InstanceSize) float64 { return s.MemoryGiB },
			func(s catalog.InstanceSize) float64 { return s.VCPU })
		reason = FitCPUBound
		note = fmt.Sprintf("no size offers %.0f vCPU; closest: %s (%.0f vCPU)", wantCPU, best.SKU, best.VCPU)
	case memShort && !cpuShort:
		best = closest(eligible, wantCPU,
			func(s catalog.InstanceSize) float64 { return s.VCPU },
			func(s catalog.InstanceSize) float64 { return s.MemoryGiB })
		reason = FitMemoryBound
		note = fmt.Sprintf("no size offers %.0f GiB; closest: %s (%.0f GiB)", wantMem, best.SKU, best.MemoryGiB)
	default:
		// Both dimensions exceed the catalog: take the largest size and
		// name the proportionally worse shortfall.
		best = closest(eligible, 0,
			func(s catalog.InstanceSize) float64 { return 0 },
			func(s catalog.InstanceSize) float64 { return s.VCPU + s.MemoryGiB })
		reason = FitCPUBound
		if wantMem/best.MemoryGiB > wantCPU/best.VCPU {
			reason = FitMemoryBound
		}
		note = fmt.Sprintf("no size offers %.0f vCPU or %.0f GiB; closest: %s", wantCPU, wantMem, best.SKU)
	}

	res := Result{
		SKU:       best.SKU,
		VCPU:      best.VCPU,
		MemoryGiB: best.MemoryGiB,
		Profile:   profile,
		FitReason: reason,
		ExtraVCPU: best.VCPU - wantCPU,
		ExtraGiB:  best.MemoryGiB - wantMem,
		Note:      note,
	}
	if wantCPU > 0 {
		res.CPURatio = best.VCPU / wantCPU
	}
	if wantMem > 0 {
		res.MemRatio = best.MemoryGiB / wantMem
	}
	return res
}

func anyMeets(sizes []catalog.InstanceSize, meets func(catalog.InstanceSize) bool) bool {
	for _, s := range sizes {
		if meets(s) {
			return true
		}
	}
	return false
}

// closest picks the size maximizing the deficient dimension among those
// covering the servable ask; ties resolve to the smaller servable value,
// then the lexically earlier SKU via the catalog sort order.
func closest(sizes []catalog.InstanceSize, servableWant float64, servable, deficient func(catalog.InstanceSize) float64) catalog.InstanceSize {
	var best catalog.InstanceSize
	found := false
	for _, s := range sizes {
		if servable(s) < servableWant {
			continue
		}
		if !found || deficient(s) > deficient(best) ||
			(deficient(s) == deficient(best) && servable(s) < servable(best)) {
			best, found = s, true
		}
	}
	if !found {
		// No size covers the servable ask either; fall back to the whole set.
		return closest(sizes, 0, func(catalog.InstanceSize) float64 { return 0 }, deficient)
	}
	return best
}
