package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/rs/zerolog"

	"github.com/peralese/cloud-pricing-calculator/internal/workload"
)

// DescribeInstanceTypesAPI is the slice of the EC2 client the source needs.
type DescribeInstanceTypesAPI interface {
	DescribeInstanceTypes(ctx context.Context, params *ec2.DescribeInstanceTypesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstanceTypesOutput, error)
}

// EC2Source loads the offerable instance sizes for a region from the EC2
// DescribeInstanceTypes API. Metal shapes and previous-generation types
// are filtered out; the recommender never places workloads on either.
type EC2Source struct {
	client DescribeInstanceTypesAPI
	logger zerolog.Logger
}

// NewEC2Source wraps an EC2 client.
func NewEC2Source(client DescribeInstanceTypesAPI, logger zerolog.Logger) *EC2Source {
	return &EC2Source{client: client, logger: logger}
}

// NewEC2SourceFromConfig builds the source from the default AWS
// credential chain. region is only the client default; Fetch re-scopes
// each call to the region it is asked for.
func NewEC2SourceFromConfig(ctx context.Context, region string, logger zerolog.Logger) (*EC2Source, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return NewEC2Source(ec2.NewFromConfig(cfg), logger), nil
}

// Fetch pages through DescribeInstanceTypes for the region. The client's
// configured region is overridden per call so one source can serve every
// region a run touches. Only AWS is served; Azure catalogs come from
// snapshot files.
func (s *EC2Source) Fetch(ctx context.Context, provider workload.Provider, region string) ([]InstanceSize, error) {
	if provider != workload.ProviderAWS {
		return nil, fmt.Errorf("ec2 catalog source cannot serve provider %q", provider)
	}
	scope := func(o *ec2.Options) {
		if region != "" {
			o.Region = region
		}
	}

	input := &ec2.DescribeInstanceTypesInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("current-generation"), Values: []string{"true"}},
			{Name: aws.String("bare-metal"), Values: []string{"false"}},
		},
	}

	var sizes []InstanceSize
	paginator := ec2.NewDescribeInstanceTypesPaginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx, scope)
		if err != nil {
			return nil, fmt.Errorf("describing instance types in %s: %w", region, err)
		}
		for _, it := range page.InstanceTypes {
			size, ok := fromInstanceTypeInfo(it)
			if !ok {
				continue
			}
			sizes = append(sizes, size)
		}
	}
	if len(sizes) == 0 {
		return nil, fmt.Errorf("region %s: %w", region, ErrEmptyCatalog)
	}

	SortSizes(sizes)
	s.logger.Debug().
		Str("region", region).
		Int("sizes", len(sizes)).
		Msg("loaded instance catalog from ec2")
	return sizes, nil
}

// fromInstanceTypeInfo converts one API record, dropping shapes the
// recommender cannot use (missing vCPU/memory data, metal suffixes).
func fromInstanceTypeInfo(it ec2types.InstanceTypeInfo) (InstanceSize, bool) {
	sku := string(it.InstanceType)
	if sku == "" || it.VCpuInfo == nil || it.VCpuInfo.DefaultVCpus == nil ||
		it.MemoryInfo == nil || it.MemoryInfo.SizeInMiB == nil {
		return InstanceSize{}, false
	}
	family, size, generation, err := ParseSKU(sku)
	if err != nil || strings.Contains(size, "metal") {
		return InstanceSize{}, false
	}

	var archs []string
	for _, a := range it.ProcessorInfo.SupportedArchitectures {
		switch a {
		case ec2types.ArchitectureTypeX8664:
			archs = append(archs, "x86")
		case ec2types.ArchitectureTypeArm64:
			archs = append(archs, "arm")
		}
	}
	if len(archs) == 0 {
		return InstanceSize{}, false
	}

	return InstanceSize{
		SKU:          sku,
		VCPU:         float64(*it.VCpuInfo.DefaultVCpus),
		MemoryGiB:    float64(*it.MemoryInfo.SizeInMiB) / 1024,
		Family:       family,
		Generation:   generation,
		CurrentGen:   it.CurrentGeneration == nil || *it.CurrentGeneration,
		Architecture: archs,
	}, true
}
