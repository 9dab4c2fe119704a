// fetch-catalog snapshots the offerable instance sizes for one or more
// regions into a JSON file that cloudcost can use offline via --catalog.
//
// Fail-fast behavior: if any region fetch fails, the program exits with
// status 1 rather than writing a partial snapshot.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/peralese/cloud-pricing-calculator/internal/catalog"
	"github.com/peralese/cloud-pricing-calculator/internal/workload"
)

func main() {
	regions := flag.String("regions", "us-east-1", "Comma-separated AWS regions")
	out := flag.String("out", "catalog.json", "Output snapshot path")
	timeout := flag.Duration("timeout", 5*time.Minute, "Overall fetch timeout")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	snapshot := map[string][]catalog.InstanceSize{}
	for _, region := range strings.Split(*regions, ",") {
		region = strings.TrimSpace(region)
		if region == "" {
			continue
		}
		source, err := catalog.NewEC2SourceFromConfig(ctx, region, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to build EC2 client for %s: %v\n", region, err)
			os.Exit(1)
		}
		sizes, err := source.Fetch(ctx, workload.ProviderAWS, region)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to fetch catalog for %s: %v\n", region, err)
			os.Exit(1)
		}
		snapshot[fmt.Sprintf("%s/%s", workload.ProviderAWS, region)] = sizes
		logger.Info().Str("region", region).Int("sizes", len(sizes)).Msg("region fetched")
	}

	generated := time.Now().UTC().Format(time.RFC3339)
	if err := catalog.WriteSnapshot(*out, generated, snapshot); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write snapshot: %v\n", err)
		os.Exit(1)
	}
	logger.Info().Str("path", *out).Int("regions", len(snapshot)).Msg("catalog snapshot written")
}
