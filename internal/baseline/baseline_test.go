package baseline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/peralese/cloud-pricing-calculator/internal/pricecache"
)

func fixedFetch(price float64) pricecache.FetchFunc {
	return func(context.Context, pricecache.Key) (float64, string, error) {
		return price, "USD/hour", nil
	}
}

func newCalc(fetch pricecache.FetchFunc) *Calculator {
	cache := pricecache.New(pricecache.NewMemoryBackend(), zerolog.Nop())
	return NewCalculator(cache, fetch, time.Hour, zerolog.Nop())
}

func findItem(o Overhead, component string) (Item, bool) {
	for _, item := range o.Items {
		if item.Component == component {
			return item, true
		}
	}
	return Item{}, false
}

func TestComputeItemizesAndTotals(t *testing.T) {
	calc := newCalc(fixedFetch(0.0416))
	in := Inputs{
		Region:              "us-east-1",
		TGWAttachments:      2,
		TGWDataGB:           100,
		EndpointsBasePerAZ:  4,
		EndpointsExtraPerAZ: 1,
		EndpointAZs:         2,
		EndpointDataGB:      50,
		RunnerInstanceType:  "t3.medium",
		RunnerCount:         1,
		RunnerOSDiskGB:      256,
		StateBackendGB:      1,
		HoursPerMonth:       730,
	}
	o := calc.Compute(context.Background(), in, DefaultBaselineRates())

	tgw, ok := findItem(o, "TGW Attachment")
	if !ok || tgw.Monthly != 87.6 { // 2 * 0.06 * 730
		t.Errorf("TGW attachment = %+v", tgw)
	}

	vpce, ok := findItem(o, "Interface Endpoint")
	if !ok || vpce.Quantity != 10 { // (4+1) x 2 AZs
		t.Errorf("endpoint count = %+v, want 10", vpce)
	}
	if vpce.Monthly != 73.0 { // 10 * 0.01 * 730
		t.Errorf("endpoint monthly = %v", vpce.Monthly)
	}

	runner, ok := findItem(o, "Shared Runner Compute")
	if !ok || runner.Monthly != 30.37 { // 0.0416 * 730, rounded
		t.Errorf("runner = %+v", runner)
	}
	disk, ok := findItem(o, "Shared Runner Disk")
	if !ok || disk.Monthly != 20.48 { // 256 * 0.08
		t.Errorf("runner disk = %+v", disk)
	}

	var sum float64
	for _, item := range o.Items {
		sum += item.Monthly
	}
	if diff := o.Monthly - sum; diff > 0.01 || diff < -0.01 {
		t.Errorf("total %v does not match item sum %v", o.Monthly, sum)
	}
}

func TestComputeNoRunner(t *testing.T) {
	calc := newCalc(fixedFetch(1))
	in := DefaultInputs("us-east-1")
	in.RunnerCount = 0
	o := calc.Compute(context.Background(), in, DefaultBaselineRates())
	if _, ok := findItem(o, "Shared Runner Compute"); ok {
		t.Error("zero runners should produce no runner items")
	}
}

func TestComputeUnpriceableRunnerDegrades(t *testing.T) {
	failing := func(context.Context, pricecache.Key) (float64, string, error) {
		return 0, "", errors.New("api down")
	}
	calc := newCalc(failing)
	o := calc.Compute(context.Background(), DefaultInputs("us-east-1"), DefaultBaselineRates())

	runner, ok := findItem(o, "Shared Runner Compute")
	if !ok {
		t.Fatal("runner item should still appear")
	}
	if runner.Monthly != 0 || runner.Note == "" {
		t.Errorf("unpriceable runner should be zero with a note: %+v", runner)
	}
}
