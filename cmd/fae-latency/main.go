// Command fae-latency is a minimal latency harness for host-boundary
// baseline checks. It round-trips host.ping through the command channel and
// writes the percentile report under the diagnostics directory.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/saorsa-labs/fae/internal/host"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fae-latency: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	samples := flag.Int("samples", 1000, "number of command round-trips to measure")
	payload := flag.Int("payload", 1024, "payload padding in bytes")
	out := flag.String("out", defaultReportPath(), "report output path")
	flag.Parse()

	report, err := host.GenerateBaselineReport(host.BenchConfig{
		Samples:      *samples,
		PayloadBytes: *payload,
	})
	if err != nil {
		return err
	}

	if err := host.WriteBaselineReport(report, *out); err != nil {
		return err
	}

	pretty, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(pretty))
	fmt.Printf("saved baseline report: %s\n", *out)
	return nil
}

func defaultReportPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "native-app-latency-baseline.json"
	}
	return filepath.Join(home, ".fae", "diagnostics", "native-app-latency-baseline.json")
}
