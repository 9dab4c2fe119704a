package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/peralese/cloud-pricing-calculator/internal/baseline"
	"github.com/peralese/cloud-pricing-calculator/internal/catalog"
	"github.com/peralese/cloud-pricing-calculator/internal/costs"
	"github.com/peralese/cloud-pricing-calculator/internal/dbclass"
	"github.com/peralese/cloud-pricing-calculator/internal/pipeline"
	"github.com/peralese/cloud-pricing-calculator/internal/priceapi"
	"github.com/peralese/cloud-pricing-calculator/internal/pricecache"
	"github.com/peralese/cloud-pricing-calculator/internal/regions"
	"github.com/peralese/cloud-pricing-calculator/internal/report"
	"github.com/peralese/cloud-pricing-calculator/internal/workload"
)

// awsSource adapts the AWS pricing client to the aggregator interface.
type awsSource struct {
	client *priceapi.AWSClient
}

func (s awsSource) ComputeHourly(ctx context.Context, region, sku, osValue string) (float64, string, error) {
	return s.client.ComputeHourly(ctx, region, sku, osValue)
}

func (s awsSource) DatabaseHourly(ctx context.Context, region, class, engine string, multiAZ bool) (float64, string, error) {
	return s.client.DatabaseHourly(ctx, region, class, engine, multiAZ)
}

// buildOptions assembles pipeline options from flags.
func buildOptions(ctx context.Context, flags *rootFlags, logger zerolog.Logger, live bool) (pipeline.Options, error) {
	opts := pipeline.Options{
		Provider: flags.cloud,
		Region:   flags.region,
		Workers:  flags.workers,
		TTL:      flags.ttl,
		Logger:   logger,
	}

	if flags.catalog != "" {
		src, err := catalog.NewFileSource(flags.catalog)
		if err != nil {
			return opts, err
		}
		opts.Catalog = src
	} else {
		provider, _ := workload.KnownProvider(flags.cloud)
		if provider != workload.ProviderAWS {
			return opts, fmt.Errorf("provider %s needs --catalog (no live catalog API wired)", flags.cloud)
		}
		region := flags.region
		if region == "" {
			region = "us-east-1"
		}
		src, err := catalog.NewEC2SourceFromConfig(ctx, region, logger)
		if err != nil {
			return opts, err
		}
		opts.Catalog = src
	}

	backend, err := pricecache.NewFileBackend(flags.cacheDir)
	if err != nil {
		return opts, err
	}
	cacheOpts := []pricecache.Option{
		pricecache.WithHeuristic(pricecache.DefaultHeuristic()),
		pricecache.WithForcedRefresh(flags.refresh),
	}
	if flags.overrides != "" {
		overrides, err := pricecache.LoadOverrides(flags.overrides)
		if err != nil {
			return opts, fmt.Errorf("loading price overrides: %w", err)
		}
		cacheOpts = append(cacheOpts, pricecache.WithOverrides(overrides))
	}
	opts.Cache = pricecache.New(backend, logger, cacheOpts...)

	if live {
		provider, _ := workload.KnownProvider(flags.cloud)
		if provider == workload.ProviderAzure {
			// The Retail Prices API is public; no credential chain to fail.
			opts.PriceSource = priceapi.NewAzureClient("", logger)
		} else {
			client, err := priceapi.NewAWSClientFromConfig(ctx, logger)
			if err != nil {
				logger.Warn().Err(err).Msg("live pricing unavailable; relying on cache and heuristics")
			} else {
				opts.PriceSource = awsSource{client: client}
			}
		}
	}

	opts.Rates = costs.FromEnv()
	if flags.ratesFile != "" {
		opts.Rates, err = costs.Load(flags.ratesFile, opts.Rates)
		if err != nil {
			return opts, err
		}
	}

	if flags.fallbacks != "" {
		resolver, err := dbclass.NewFromFile(flags.fallbacks, logger)
		if err != nil {
			return opts, err
		}
		opts.Resolver = resolver
	}
	return opts, nil
}

// runPipeline executes a run and writes its artifacts.
func runPipeline(cmd *cobra.Command, flags *rootFlags, inPath string, opts pipeline.Options) error {
	rows, err := readRows(inPath)
	if err != nil {
		return err
	}

	p, err := pipeline.New(opts)
	if err != nil {
		return err
	}
	rep, err := p.Run(cmd.Context(), rows)
	if err != nil {
		return err
	}

	runDir := filepath.Join(flags.outDir, time.Now().Format("20060102-150405"))
	writer, err := report.NewWriter(runDir, opts.Logger)
	if err != nil {
		return err
	}
	if err := writer.WriteValidation(rep.Lines); err != nil {
		return err
	}
	if err := writer.WriteRecommendations(rep.Lines); err != nil {
		return err
	}
	if !opts.SkipPricing {
		if err := writer.WritePrices(rep.Lines); err != nil {
			return err
		}
	}
	if rep.Overhead != nil {
		if err := writer.WriteBaseline(*rep.Overhead); err != nil {
			return err
		}
	}
	if err := writer.WriteSummary(rep.Rollup); err != nil {
		return err
	}
	opts.Logger.Info().Str("dir", writer.Dir()).Msg("reports written")

	if flags.strict && !rep.Stats.Clean() {
		return errStrictViolations
	}
	return nil
}

func newRecommendCmd(flags *rootFlags) *cobra.Command {
	var inPath string
	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Validate rows and produce sizing recommendations without pricing",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(flags.logLevel)
			opts, err := buildOptions(cmd.Context(), flags, logger, false)
			if err != nil {
				return err
			}
			opts.SkipPricing = true
			return runPipeline(cmd, flags, inPath, opts)
		},
	}
	cmd.Flags().StringVarP(&inPath, "in", "i", "", "workload inventory CSV")
	cmd.MarkFlagRequired("in")
	return cmd
}

func newPriceCmd(flags *rootFlags) *cobra.Command {
	var inPath string
	var withBaseline bool
	var baselineFile string
	cmd := &cobra.Command{
		Use:   "price",
		Short: "Validate, size and price a workload inventory",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(flags.logLevel)
			opts, err := buildOptions(cmd.Context(), flags, logger, true)
			if err != nil {
				return err
			}
			if withBaseline || baselineFile != "" {
				in, err := loadBaselineInputs(baselineFile, flags.region)
				if err != nil {
					return err
				}
				opts.Baseline = &in
			}
			return runPipeline(cmd, flags, inPath, opts)
		},
	}
	cmd.Flags().StringVarP(&inPath, "in", "i", "", "workload inventory CSV")
	cmd.Flags().BoolVar(&withBaseline, "with-baseline", false, "include the default baseline overhead")
	cmd.Flags().StringVar(&baselineFile, "baseline-inputs", "", "YAML baseline inputs file")
	cmd.MarkFlagRequired("in")
	return cmd
}

func newBaselineCmd(flags *rootFlags) *cobra.Command {
	var inputsFile string
	cmd := &cobra.Command{
		Use:   "baseline",
		Short: "Compute the fixed monthly platform overhead",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(flags.logLevel)
			opts, err := buildOptions(cmd.Context(), flags, logger, true)
			if err != nil {
				return err
			}

			in, err := loadBaselineInputs(inputsFile, flags.region)
			if err != nil {
				return err
			}
			var fetch pricecache.FetchFunc
			if opts.PriceSource != nil {
				fetch = func(ctx context.Context, k pricecache.Key) (float64, string, error) {
					return opts.PriceSource.ComputeHourly(ctx, k.Region, k.SKU, k.Variant)
				}
			}
			calc := baseline.NewCalculator(opts.Cache, fetch, flags.ttl, logger)
			overhead := calc.Compute(cmd.Context(), in, baseline.DefaultBaselineRates())

			writer, err := report.NewWriter(filepath.Join(flags.outDir, time.Now().Format("20060102-150405")), logger)
			if err != nil {
				return err
			}
			if err := writer.WriteBaseline(overhead); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "baseline monthly total: $%.2f\n", overhead.Monthly)
			return nil
		},
	}
	cmd.Flags().StringVar(&inputsFile, "inputs", "", "YAML baseline inputs file")
	return cmd
}

func newRegionsCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "regions",
		Short: "List canonical region codes for the selected cloud",
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, ok := workload.KnownProvider(flags.cloud)
			if !ok {
				return fmt.Errorf("unknown provider %q", flags.cloud)
			}
			list, err := regions.NewCatalog().Regions(provider)
			if err != nil {
				return err
			}
			for _, r := range list {
				fmt.Fprintln(cmd.OutOrStdout(), r)
			}
			return nil
		},
	}
}
