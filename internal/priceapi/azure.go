package priceapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// DefaultAzureEndpoint is the public, unauthenticated Retail Prices API.
const DefaultAzureEndpoint = "https://prices.azure.com/api/retail/prices"

// AzureClient fetches pay-as-you-go unit prices from the Azure Retail
// Prices API.
type AzureClient struct {
	endpoint string
	http     *http.Client
	logger   zerolog.Logger
}

// NewAzureClient builds a client against endpoint; empty means the
// public API.
func NewAzureClient(endpoint string, logger zerolog.Logger) *AzureClient {
	if endpoint == "" {
		endpoint = DefaultAzureEndpoint
	}
	return &AzureClient{
		endpoint: endpoint,
		http:     &http.Client{Timeout: 30 * time.Second},
		logger:   logger,
	}
}

// retailResponse is the subset of the Retail Prices payload read here.
type retailResponse struct {
	Items []struct {
		RetailPrice   float64 `json:"retailPrice"`
		UnitOfMeasure string  `json:"unitOfMeasure"`
		Type          string  `json:"type"`
		SKUName       string  `json:"skuName"`
		ProductName   string  `json:"productName"`
	} `json:"Items"`
}

// ComputeHourly returns the consumption price of a VM size in a region.
// The armSkuName is the Azure SKU, e.g. "Standard_D4s_v5". Windows rows
// select the Windows product for the SKU; every other OS gets the base
// rate.
func (c *AzureClient) ComputeHourly(ctx context.Context, region, armSkuName, osValue string) (float64, string, error) {
	filter := fmt.Sprintf(
		"serviceName eq 'Virtual Machines' and armRegionName eq '%s' and armSkuName eq '%s' and priceType eq 'Consumption'",
		region, armSkuName)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.endpoint+"?$filter="+url.QueryEscape(filter), nil)
	if err != nil {
		return 0, "", fmt.Errorf("building retail prices request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("querying retail prices: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, "", fmt.Errorf("retail prices returned %s", resp.Status)
	}

	var payload retailResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, "", fmt.Errorf("parsing retail prices response: %w", err)
	}

	wantWindows := osValue == "windows"
	for _, item := range payload.Items {
		// Spot and low-priority SKUs share the armSkuName; skip them.
		if item.Type != "Consumption" || item.RetailPrice <= 0 {
			continue
		}
		// Linux and Windows rates ship as separate products for one SKU.
		if strings.Contains(item.ProductName, "Windows") != wantWindows {
			continue
		}
		return item.RetailPrice, "USD/hour", nil
	}
	return 0, "", fmt.Errorf("%s in %s: %w", armSkuName, region, ErrPriceNotFound)
}

// DatabaseHourly implements the price-source contract for Azure runs.
// Azure managed databases are priced by the vCore rate card, not a
// per-class hourly lookup, so there is nothing to fetch here.
func (c *AzureClient) DatabaseHourly(ctx context.Context, region, class, engine string, multiAZ bool) (float64, string, error) {
	return 0, "", fmt.Errorf("azure database %s in %s: priced by the vcore rate card: %w", engine, region, ErrPriceNotFound)
}
