package host

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	ferrors "github.com/saorsa-labs/fae/internal/errors"
)

// BenchConfig tunes the host-boundary latency baseline run.
type BenchConfig struct {
	// Samples is how many command round-trips to measure.
	Samples int

	// PayloadBytes pads each command payload to this size so the
	// measurement includes realistic envelope encode/decode cost.
	PayloadBytes int
}

// LatencyReport is the serialised baseline written under diagnostics/.
type LatencyReport struct {
	Samples      int     `json:"samples"`
	PayloadBytes int     `json:"payload_bytes"`
	P50Micros    int64   `json:"p50_us"`
	P95Micros    int64   `json:"p95_us"`
	P99Micros    int64   `json:"p99_us"`
	MeanMicros   float64 `json:"mean_us"`
	GeneratedAt  int64   `json:"generated_at"`
}

// GenerateBaselineReport round-trips host.ping through a fresh channel
// Samples times and reports latency percentiles. The report establishes the
// floor the full pipeline's host overhead is compared against.
func GenerateBaselineReport(cfg BenchConfig) (*LatencyReport, error) {
	const op = "host.GenerateBaselineReport"

	if cfg.Samples <= 0 {
		return nil, ferrors.New(ferrors.KindConfig, op, "samples must be > 0")
	}

	channel := NewChannel()
	defer channel.Close()
	NewCore(channel)

	padding := strings.Repeat("x", cfg.PayloadBytes)
	payload, err := json.Marshal(map[string]string{"padding": padding})
	if err != nil {
		return nil, ferrors.Wrap(ferrors.KindParse, op, "encode padding payload", err)
	}

	ctx := context.Background()
	durations := make([]time.Duration, 0, cfg.Samples)
	var total time.Duration

	for i := 0; i < cfg.Samples; i++ {
		env := CommandEnvelope{
			V:         ProtocolVersion,
			Command:   "host.ping",
			Payload:   payload,
			RequestID: "bench",
		}
		start := time.Now()
		resp := channel.SendCommand(ctx, env)
		elapsed := time.Since(start)
		if !resp.OK {
			return nil, ferrors.New(ferrors.KindPipeline, op, "ping failed during baseline run")
		}
		durations = append(durations, elapsed)
		total += elapsed
	}

	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })

	return &LatencyReport{
		Samples:      cfg.Samples,
		PayloadBytes: cfg.PayloadBytes,
		P50Micros:    percentile(durations, 0.50).Microseconds(),
		P95Micros:    percentile(durations, 0.95).Microseconds(),
		P99Micros:    percentile(durations, 0.99).Microseconds(),
		MeanMicros:   float64(total.Microseconds()) / float64(cfg.Samples),
		GeneratedAt:  time.Now().UnixMilli(),
	}, nil
}

// WriteBaselineReport serialises report as pretty JSON at path, creating the
// diagnostics directory if needed.
func WriteBaselineReport(report *LatencyReport, path string) error {
	const op = "host.WriteBaselineReport"

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return ferrors.Wrap(ferrors.KindStorage, op, "create diagnostics dir", err)
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return ferrors.Wrap(ferrors.KindParse, op, "encode report", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return ferrors.Wrap(ferrors.KindStorage, op, "write report", err)
	}
	return nil
}

// percentile returns the value at quantile q from sorted durations.
func percentile(sorted []time.Duration, q float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted)-1) * q)
	return sorted[idx]
}
