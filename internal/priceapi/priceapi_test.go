package priceapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/pricing"
	"github.com/rs/zerolog"

	"github.com/peralese/cloud-pricing-calculator/internal/costs"
)

type fakeProducts struct {
	priceList []string
	err       error
	lastInput *pricing.GetProductsInput
}

func (f *fakeProducts) GetProducts(_ context.Context, in *pricing.GetProductsInput, _ ...func(*pricing.Options)) (*pricing.GetProductsOutput, error) {
	f.lastInput = in
	if f.err != nil {
		return nil, f.err
	}
	return &pricing.GetProductsOutput{PriceList: f.priceList}, nil
}

const offerDoc = `{
  "terms": {
    "OnDemand": {
      "ABC.JRTCKXETXF": {
        "priceDimensions": {
          "ABC.JRTCKXETXF.6YS6EN2CT7": {
            "unit": "Hrs",
            "pricePerUnit": {"USD": "0.1920000000"}
          }
        }
      }
    }
  }
}`

func TestComputeHourlyParsesFirstUSDRate(t *testing.T) {
	fake := &fakeProducts{priceList: []string{offerDoc}}
	c := NewAWSClient(fake, zerolog.Nop())

	price, unit, err := c.ComputeHourly(context.Background(), "us-east-1", "m7i.xlarge", "linux")
	if err != nil {
		t.Fatalf("ComputeHourly: %v", err)
	}
	if price != 0.192 || unit != "USD/hrs" {
		t.Errorf("got (%v, %q)", price, unit)
	}

	filters := map[string]string{}
	for _, f := range fake.lastInput.Filters {
		filters[*f.Field] = *f.Value
	}
	if filters["location"] != "US East (N. Virginia)" {
		t.Errorf("location filter = %q", filters["location"])
	}
	if filters["operatingSystem"] != "Linux" || filters["tenancy"] != "Shared" {
		t.Errorf("filters = %v", filters)
	}
}

func TestComputeHourlySkipsZeroPriceEntries(t *testing.T) {
	// Reserved-capacity entries carry a zero USD rate; the first positive
	// rate wins regardless of position.
	zero := `{"terms":{"OnDemand":{"a":{"priceDimensions":{"a.1":{"unit":"Hrs","pricePerUnit":{"USD":"0.0000000000"}}}}}}}`
	fake := &fakeProducts{priceList: []string{zero, offerDoc}}
	c := NewAWSClient(fake, zerolog.Nop())

	price, _, err := c.ComputeHourly(context.Background(), "us-east-1", "m7i.xlarge", "linux")
	if err != nil || price != 0.192 {
		t.Errorf("got (%v, %v), want first positive rate", price, err)
	}
}

func TestComputeHourlyUnknownRegion(t *testing.T) {
	c := NewAWSClient(&fakeProducts{}, zerolog.Nop())
	if _, _, err := c.ComputeHourly(context.Background(), "mars-central-1", "m7i.xlarge", "linux"); err == nil {
		t.Error("unknown region should error before calling the API")
	}
}

func TestComputeHourlyNoMatch(t *testing.T) {
	c := NewAWSClient(&fakeProducts{}, zerolog.Nop())
	_, _, err := c.ComputeHourly(context.Background(), "us-east-1", "m7i.xlarge", "linux")
	if !errors.Is(err, ErrPriceNotFound) {
		t.Errorf("err = %v, want ErrPriceNotFound", err)
	}
}

func TestDatabaseHourlyDeploymentFilter(t *testing.T) {
	fake := &fakeProducts{priceList: []string{offerDoc}}
	c := NewAWSClient(fake, zerolog.Nop())

	if _, _, err := c.DatabaseHourly(context.Background(), "us-east-1", "db.m7i.xlarge", "postgresql", true); err != nil {
		t.Fatalf("DatabaseHourly: %v", err)
	}
	filters := map[string]string{}
	for _, f := range fake.lastInput.Filters {
		filters[*f.Field] = *f.Value
	}
	if filters["deploymentOption"] != "Multi-AZ" {
		t.Errorf("deploymentOption = %q, want Multi-AZ", filters["deploymentOption"])
	}
	if filters["databaseEngine"] != "PostgreSQL" {
		t.Errorf("databaseEngine = %q", filters["databaseEngine"])
	}
}

func TestAzureComputeHourlySkipsSpot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Items":[
			{"retailPrice":0.02,"unitOfMeasure":"1 Hour","type":"DevTestConsumption","skuName":"D4s v5","productName":"Virtual Machines Dsv5 Series"},
			{"retailPrice":0.192,"unitOfMeasure":"1 Hour","type":"Consumption","skuName":"D4s v5","productName":"Virtual Machines Dsv5 Series"}
		]}`))
	}))
	defer srv.Close()

	c := NewAzureClient(srv.URL, zerolog.Nop())
	price, unit, err := c.ComputeHourly(context.Background(), "eastus", "Standard_D4s_v5", "linux")
	if err != nil {
		t.Fatalf("ComputeHourly: %v", err)
	}
	if price != 0.192 || unit != "USD/hour" {
		t.Errorf("got (%v, %q)", price, unit)
	}
}

func TestAzureComputeHourlySelectsOSProduct(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Items":[
			{"retailPrice":0.192,"unitOfMeasure":"1 Hour","type":"Consumption","skuName":"D4s v5","productName":"Virtual Machines Dsv5 Series"},
			{"retailPrice":0.376,"unitOfMeasure":"1 Hour","type":"Consumption","skuName":"D4s v5","productName":"Virtual Machines Dsv5 Series Windows"}
		]}`))
	}))
	defer srv.Close()

	c := NewAzureClient(srv.URL, zerolog.Nop())
	linux, _, err := c.ComputeHourly(context.Background(), "eastus", "Standard_D4s_v5", "linux")
	if err != nil || linux != 0.192 {
		t.Errorf("linux = (%v, %v), want base product rate", linux, err)
	}
	windows, _, err := c.ComputeHourly(context.Background(), "eastus", "Standard_D4s_v5", "windows")
	if err != nil || windows != 0.376 {
		t.Errorf("windows = (%v, %v), want Windows product rate", windows, err)
	}
}

func TestAzureComputeHourlyEmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Items":[]}`))
	}))
	defer srv.Close()

	c := NewAzureClient(srv.URL, zerolog.Nop())
	if _, _, err := c.ComputeHourly(context.Background(), "eastus", "Standard_D4s_v5", "linux"); !errors.Is(err, ErrPriceNotFound) {
		t.Errorf("err = %v, want ErrPriceNotFound", err)
	}
}

func TestAzureClientSatisfiesPriceSource(t *testing.T) {
	var _ costs.PriceSource = NewAzureClient("", zerolog.Nop())
}
