package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/peralese/cloud-pricing-calculator/internal/catalog"
	"github.com/peralese/cloud-pricing-calculator/internal/priceapi"
)

func writeTestCatalog(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.json")
	sizes := map[string][]catalog.InstanceSize{
		"azure/eastus": {
			{SKU: "Standard_D4s_v5", VCPU: 4, MemoryGiB: 16, Family: "dsv5", CurrentGen: true, Architecture: []string{"x86"}},
		},
	}
	if err := catalog.WriteSnapshot(path, "2026-01-01T00:00:00Z", sizes); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}
	return path
}

func TestBuildOptionsWiresAzurePriceSource(t *testing.T) {
	flags := &rootFlags{
		cloud:    "azure",
		region:   "eastus",
		catalog:  writeTestCatalog(t),
		cacheDir: t.TempDir(),
	}
	opts, err := buildOptions(context.Background(), flags, zerolog.Nop(), true)
	if err != nil {
		t.Fatalf("buildOptions: %v", err)
	}
	if _, ok := opts.PriceSource.(*priceapi.AzureClient); !ok {
		t.Errorf("azure run price source = %T, want the retail prices client", opts.PriceSource)
	}
}

func TestBuildOptionsAzureNeedsCatalogFile(t *testing.T) {
	flags := &rootFlags{cloud: "azure", region: "eastus", cacheDir: t.TempDir()}
	if _, err := buildOptions(context.Background(), flags, zerolog.Nop(), false); err == nil {
		t.Error("azure without --catalog should error")
	}
}

func TestBuildOptionsNoLivePricingWhenDisabled(t *testing.T) {
	flags := &rootFlags{
		cloud:    "azure",
		region:   "eastus",
		catalog:  writeTestCatalog(t),
		cacheDir: t.TempDir(),
	}
	opts, err := buildOptions(context.Background(), flags, zerolog.Nop(), false)
	if err != nil {
		t.Fatalf("buildOptions: %v", err)
	}
	if opts.PriceSource != nil {
		t.Errorf("recommend-only runs should not wire a price source, got %T", opts.PriceSource)
	}
}
