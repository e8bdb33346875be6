package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"text/tabwriter"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Reporter writes benchmark results in some output format.
type Reporter interface {
	Generate(results *Results) error
}

// NewReporter returns a Reporter for cfg.OutputFormat, along with the
// writer it uses. The caller closes the writer when it is not os.Stdout.
func NewReporter(cfg *Config) (Reporter, io.WriteCloser, error) {
	var writer io.WriteCloser = os.Stdout
	if cfg.OutputFile != "" {
		f, err := os.Create(cfg.OutputFile)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create output file %s: %w", cfg.OutputFile, err)
		}
		writer = f
	}
	return newReporter(cfg.OutputFormat, writer), writer, nil
}

func newReporter(format string, w io.Writer) Reporter {
	if strings.EqualFold(format, "json") {
		return &JSONReporter{writer: w}
	}
	return &TextReporter{writer: w}
}

// JSONReporter writes results as indented JSON.
type JSONReporter struct {
	writer io.Writer
}

// Generate encodes results to the reporter's writer.
func (r *JSONReporter) Generate(results *Results) error {
	enc := json.NewEncoder(r.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

// TextReporter writes a human-readable tabular report.
type TextReporter struct {
	writer io.Writer
}

// Generate writes the report sections to the reporter's writer.
func (r *TextReporter) Generate(results *Results) error {
	w := tabwriter.NewWriter(r.writer, 0, 0, 3, ' ', 0)
	p := func(format string, a ...any) {
		fmt.Fprintf(w, format+"\n", a...)
	}
	heading := func(s string) {
		s = cases.Title(language.English).String(s)
		p("")
		p("%s", s)
		p("%s", strings.Repeat("-", len(s)))
	}

	cfg := results.Config
	p("Locksmith Contention Benchmark %s", benchmarkVersion)
	p("Started:\t%s", results.StartTime.Format("2006-01-02 15:04:05"))
	p("Duration:\t%s", results.Duration)

	heading("workload")
	p("Workers:\t%d", cfg.Workers)
	p("Resources:\t%d", cfg.Resources)
	p("Contention ratio:\t%.2f workers/resource", results.ContentionRatio)
	p("Operations:\t%d", results.Latency.Count)
	p("Hold time:\t%s", cfg.HoldTime)

	heading("outcome")
	p("Successful:\t%d (%.2f%%)", results.Latency.Successful, results.Latency.SuccessRate)
	p("Failed:\t%d", results.Latency.Failed)
	p("Timeouts:\t%d", results.Timeouts)
	p("Overlapping holders:\t%d", results.Overlaps)
	p("Throughput:\t%.1f ops/sec", results.Throughput)
	p("Average attempts:\t%.2f", results.AverageAttempts)

	if results.Latency.Successful > 0 {
		heading("acquire latency")
		l := results.Latency
		p("Mean:\t%s", l.Mean)
		p("Median:\t%s", l.Median)
		p("P90:\t%s", l.P90)
		p("P99:\t%s", l.P99)
		p("Min / Max:\t%s / %s", l.Min, l.Max)
		p("Std dev:\t%s", l.StdDev)
	}

	if len(results.Errors) > 0 {
		heading("errors by operation")
		keys := make([]string, 0, len(results.Errors))
		for k := range results.Errors {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			p("%s:\t%d", k, results.Errors[k])
		}
	}

	return w.Flush()
}
