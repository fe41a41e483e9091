// ABOUTME: Benchmark runner: builds a fresh index per scenario and scores its queries
// ABOUTME: Scenarios run concurrently; results export as a JSON summary
package resolution

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/harper/homefacts/internal/core"
	"github.com/harper/homefacts/internal/storage"
	"github.com/harper/homefacts/internal/storage/sqlite"
)

// BenchmarkRunner executes resolution scenarios
type BenchmarkRunner struct {
	embedder storage.Embedder
	opts     core.Options
	topK     int
	workers  int
	logger   *zap.Logger
}

// NewBenchmarkRunner creates a runner. topK bounds each ranking; workers bounds
// how many scenarios run at once.
func NewBenchmarkRunner(embedder storage.Embedder, opts core.Options, topK, workers int, logger *zap.Logger) *BenchmarkRunner {
	if topK <= 0 {
		topK = 3
	}
	if workers <= 0 {
		workers = 2
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BenchmarkRunner{embedder: embedder, opts: opts, topK: topK, workers: workers, logger: logger}
}

// RunTest seeds a fresh in-memory index with the scenario's home and scores its queries
func (r *BenchmarkRunner) RunTest(ctx context.Context, s Scenario) (TestResult, error) {
	idx, err := sqlite.NewStorageInMemory(r.embedder)
	if err != nil {
		return TestResult{}, fmt.Errorf("failed to create test index: %w", err)
	}
	defer func() { _ = idx.Close() }()

	engine := core.NewEngine(idx, r.opts, r.logger)
	writer := core.NewWriter(engine)

	if _, err := writer.Seed(ctx, s.Home); err != nil {
		return TestResult{}, fmt.Errorf("setup failed: %w", err)
	}

	for i, e := range s.Edits {
		var out core.WriteOutcome
		switch e.Op {
		case "update":
			out, err = writer.Update(ctx, e.DeviceID, e.Old, e.New)
		case "delete":
			out, err = writer.Delete(ctx, e.DeviceID, e.Old)
		default:
			return TestResult{}, fmt.Errorf("edit %d: unknown op %q", i, e.Op)
		}
		if err != nil {
			return TestResult{}, fmt.Errorf("edit %d failed: %w", i, err)
		}
		r.logger.Debug("edit applied", zap.String("scenario", s.ID), zap.String("message", core.RenderOutcome(out)))
	}

	devices, err := engine.ListDevices(ctx)
	if err != nil {
		return TestResult{}, fmt.Errorf("list devices: %w", err)
	}

	queries := make([]QueryResult, 0, len(s.Queries))
	for _, q := range s.Queries {
		// rank every device so the baseline can reorder the full list
		rankings, err := engine.RankDevices(ctx, q.Clues, len(devices))
		if err != nil {
			return TestResult{}, fmt.Errorf("query %v failed: %w", q.Clues, err)
		}
		got := HarmonicOrder(rankings, r.topK)
		baseline := ArithmeticOrder(rankings, r.topK)
		queries = append(queries, QueryResult{
			Clues:        q.Clues,
			Expect:       q.Expect,
			Got:          got,
			Rank:         RankOf(got, q.Expect),
			BaselineGot:  baseline,
			BaselineRank: RankOf(baseline, q.Expect),
		})
	}

	res := Evaluate(s, queries)
	r.logger.Info("scenario finished",
		zap.String("scenario", s.ID),
		zap.Float64("mrr", res.MRR),
		zap.Float64("baseline_mrr", res.BaselineMRR),
		zap.String("status", res.Status))
	return res, nil
}

// RunAll runs scenarios concurrently and returns results in input order
func (r *BenchmarkRunner) RunAll(ctx context.Context, scenarios []Scenario) ([]TestResult, error) {
	results := make([]TestResult, len(scenarios))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, s := range scenarios {
		g.Go(func() error {
			res, err := r.RunTest(ctx, s)
			if err != nil {
				return fmt.Errorf("%s: %w", s.ID, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Summary is the exported benchmark report
type Summary struct {
	Timestamp       time.Time    `json:"timestamp"`
	Embedder        string       `json:"embedder"`
	TopK            int          `json:"top_k"`
	Passed          int          `json:"passed"`
	Failed          int          `json:"failed"`
	MeanMRR         float64      `json:"mean_mrr"`
	BaselineMeanMRR float64      `json:"baseline_mean_mrr"`
	Results         []TestResult `json:"results"`
}

// Summarize totals the results
func (r *BenchmarkRunner) Summarize(results []TestResult) Summary {
	s := Summary{
		Timestamp: time.Now().UTC(),
		Embedder:  r.embedder.Model(),
		TopK:      r.topK,
		Results:   results,
	}
	for _, res := range results {
		if res.Status == "PASS" {
			s.Passed++
		} else {
			s.Failed++
		}
		s.MeanMRR += res.MRR
		s.BaselineMeanMRR += res.BaselineMRR
	}
	if len(results) > 0 {
		s.MeanMRR /= float64(len(results))
		s.BaselineMeanMRR /= float64(len(results))
	}
	return s
}

// WriteSummary writes the summary as indented JSON
func WriteSummary(w io.Writer, s Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

// ExportResults writes the summary to outputPath
func (r *BenchmarkRunner) ExportResults(results []TestResult, outputPath string) error {
	f, err := os.Create(outputPath) // #nosec G304
	if err != nil {
		return fmt.Errorf("failed to create results file: %w", err)
	}
	if err := WriteSummary(f, r.Summarize(results)); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write results: %w", err)
	}
	return f.Close()
}
