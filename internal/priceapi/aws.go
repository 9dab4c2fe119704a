// Package priceapi holds the live price-fetch collaborators: the AWS
// Pricing API client and the Azure Retail Prices client. Both plug into
// the price cache as fetch functions; neither caches anything itself.
package priceapi

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/pricing"
	pricingtypes "github.com/aws/aws-sdk-go-v2/service/pricing/types"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// ErrPriceNotFound is returned when the API answers but no on-demand
// price matches the filters.
var ErrPriceNotFound = errors.New("price not found")

// pricingEndpointRegion hosts the AWS Pricing API. Prices for every
// region are served from here; the workload's region goes into the
// location filter, not the endpoint.
const pricingEndpointRegion = "us-east-1"

// regionLocations maps region codes to the location names the Pricing
// API filters on.
var regionLocations = map[string]string{
	"us-east-1":      "US East (N. Virginia)",
	"us-east-2":      "US East (Ohio)",
	"us-west-1":      "US West (N. California)",
	"us-west-2":      "US West (Oregon)",
	"ca-central-1":   "Canada (Central)",
	"eu-west-1":      "Europe (Ireland)",
	"eu-west-2":      "Europe (London)",
	"eu-west-3":      "Europe (Paris)",
	"eu-central-1":   "Europe (Frankfurt)",
	"eu-central-2":   "Europe (Zurich)",
	"eu-north-1":     "Europe (Stockholm)",
	"eu-south-1":     "Europe (Milan)",
	"eu-south-2":     "Europe (Spain)",
	"ap-south-1":     "Asia Pacific (Mumbai)",
	"ap-south-2":     "Asia Pacific (Hyderabad)",
	"ap-southeast-1": "Asia Pacific (Singapore)",
	"ap-southeast-2": "Asia Pacific (Sydney)",
	"ap-southeast-3": "Asia Pacific (Jakarta)",
	"ap-southeast-4": "Asia Pacific (Melbourne)",
	"ap-northeast-1": "Asia Pacific (Tokyo)",
	"ap-northeast-2": "Asia Pacific (Seoul)",
	"ap-northeast-3": "Asia Pacific (Osaka)",
	"ap-east-1":      "Asia Pacific (Hong Kong)",
	"sa-east-1":      "South America (Sao Paulo)",
	"af-south-1":     "Africa (Cape Town)",
	"me-south-1":     "Middle East (Bahrain)",
	"me-central-1":   "Middle East (UAE)",
	"us-gov-west-1":  "AWS GovCloud (US-West)",
	"us-gov-east-1":  "AWS GovCloud (US-East)",
}

// osNames maps normalized OS values to the Pricing API operatingSystem
// attribute.
var osNames = map[string]string{
	"linux":   "Linux",
	"windows": "Windows",
	"rhel":    "RHEL",
	"suse":    "SUSE",
}

// engineNames maps normalized engines to the Pricing API databaseEngine
// attribute.
var engineNames = map[string]string{
	"postgresql":        "PostgreSQL",
	"mysql":             "MySQL",
	"mariadb":           "MariaDB",
	"oracle-se2":        "Oracle",
	"oracle-ee":         "Oracle",
	"sqlserver-se":      "SQL Server",
	"sqlserver-ee":      "SQL Server",
	"sqlserver-ex":      "SQL Server",
	"sqlserver-web":     "SQL Server",
	"aurora-postgresql": "Aurora PostgreSQL",
	"aurora-mysql":      "Aurora MySQL",
}

// GetProductsAPI is the slice of the Pricing client the fetcher needs.
type GetProductsAPI interface {
	GetProducts(ctx context.Context, params *pricing.GetProductsInput, optFns ...func(*pricing.Options)) (*pricing.GetProductsOutput, error)
}

// AWSClient fetches on-demand unit prices from the AWS Pricing API.
type AWSClient struct {
	client GetProductsAPI
	logger zerolog.Logger
}

// NewAWSClient wraps a Pricing API client.
func NewAWSClient(client GetProductsAPI, logger zerolog.Logger) *AWSClient {
	return &AWSClient{client: client, logger: logger}
}

// NewAWSClientFromConfig builds a client against the pricing endpoint
// region using the default credential chain.
func NewAWSClientFromConfig(ctx context.Context, logger zerolog.Logger) (*AWSClient, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(pricingEndpointRegion))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return NewAWSClient(pricing.NewFromConfig(cfg), logger), nil
}

// ComputeHourly returns the on-demand hourly price of an instance type
// for a given OS, shared tenancy, no pre-installed software.
func (c *AWSClient) ComputeHourly(ctx context.Context, region, instanceType, osValue string) (float64, string, error) {
	location, ok := regionLocations[region]
	if !ok {
		return 0, "", fmt.Errorf("no pricing location for region %q", region)
	}
	osName, ok := osNames[osValue]
	if !ok {
		return 0, "", fmt.Errorf("no pricing OS name for %q", osValue)
	}

	filters := []pricingtypes.Filter{
		termMatch("servicecode", "AmazonEC2"),
		termMatch("instanceType", instanceType),
		termMatch("location", location),
		termMatch("operatingSystem", osName),
		termMatch("preInstalledSw", "NA"),
		termMatch("tenancy", "Shared"),
		termMatch("capacitystatus", "Used"),
	}
	return c.firstOnDemandUSD(ctx, "AmazonEC2", filters)
}

// DatabaseHourly returns the on-demand hourly price of a database
// instance class with license included.
func (c *AWSClient) DatabaseHourly(ctx context.Context, region, class, engine string, multiAZ bool) (float64, string, error) {
	location, ok := regionLocations[region]
	if !ok {
		return 0, "", fmt.Errorf("no pricing location for region %q", region)
	}
	engineName, ok := engineNames[engine]
	if !ok {
		return 0, "", fmt.Errorf("no pricing engine name for %q", engine)
	}
	deployment := "Single-AZ"
	if multiAZ {
		deployment = "Multi-AZ"
	}

	filters := []pricingtypes.Filter{
		termMatch("servicecode", "AmazonRDS"),
		termMatch("instanceType", class),
		termMatch("location", location),
		termMatch("databaseEngine", engineName),
		termMatch("deploymentOption", deployment),
	}
	return c.firstOnDemandUSD(ctx, "AmazonRDS", filters)
}

func termMatch(field, value string) pricingtypes.Filter {
	return pricingtypes.Filter{
		Field: aws.String(field),
		Type:  pricingtypes.FilterTypeTermMatch,
		Value: aws.String(value),
	}
}

// priceListEntry is the subset of the offer-file document the fetcher
// reads: the first on-demand price dimension carrying a USD rate.
type priceListEntry struct {
	Terms struct {
		OnDemand map[string]struct {
			PriceDimensions map[string]struct {
				Unit         string            `json:"unit"`
				PricePerUnit map[string]string `json:"pricePerUnit"`
			} `json:"priceDimensions"`
		} `json:"OnDemand"`
	} `json:"terms"`
}

// firstOnDemandUSD runs GetProducts and extracts the first positive USD
// on-demand rate from the result.
func (c *AWSClient) firstOnDemandUSD(ctx context.Context, serviceCode string, filters []pricingtypes.Filter) (float64, string, error) {
	out, err := c.client.GetProducts(ctx, &pricing.GetProductsInput{
		ServiceCode: aws.String(serviceCode),
		Filters:     filters,
		MaxResults:  aws.Int32(10),
	})
	if err != nil {
		return 0, "", fmt.Errorf("querying %s prices: %w", serviceCode, err)
	}

	for _, raw := range out.PriceList {
		var entry priceListEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			c.logger.Warn().Err(err).Str("service", serviceCode).Msg("skipping unparsable price list entry")
			continue
		}
		for _, term := range entry.Terms.OnDemand {
			for _, dim := range term.PriceDimensions {
				usd, ok := dim.PricePerUnit["USD"]
				if !ok {
					continue
				}
				price, err := strconv.ParseFloat(strings.TrimSpace(usd), 64)
				if err != nil || price <= 0 {
					continue
				}
				return price, "USD/" + strings.ToLower(dim.Unit), nil
			}
		}
	}
	return 0, "", fmt.Errorf("%s: %w", serviceCode, ErrPriceNotFound)
}
