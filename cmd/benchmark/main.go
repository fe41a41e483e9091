// ABOUTME: Command-line runner for the device resolution benchmark
// ABOUTME: Runs labelled scenarios and writes hit@1, hit@k and MRR, with an arithmetic-mean baseline, as JSON

package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/harper/homefacts/benchmarks/resolution"
	"github.com/harper/homefacts/internal/app"
	"github.com/harper/homefacts/internal/config"
	"github.com/harper/homefacts/internal/logging"
)

func main() {
	testID := flag.String("test", "", "Run one scenario (locate, moved, shared-room). If empty, runs all.")
	outputPath := flag.String("output", "benchmark_results.json", "Output path for JSON results")
	embedder := flag.String("embedder", "", "Override HOMEFACTS_EMBEDDER (hash or openai)")
	topK := flag.Int("top-k", 3, "Devices ranked per query")
	verbose := flag.Bool("verbose", false, "Enable verbose output")
	flag.Parse()

	failed, err := run(*testID, *outputPath, *embedder, *topK, *verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "benchmark failed: %v\n", err)
		os.Exit(2)
	}
	if failed > 0 {
		os.Exit(1)
	}
}

// run returns the number of failed scenarios
func run(testID, outputPath, embedderName string, topK int, verbose bool) (int, error) {
	if err := config.LoadDotEnv(); err != nil {
		return 0, err
	}
	cfg, err := config.Load()
	if err != nil {
		return 0, err
	}
	if embedderName != "" {
		cfg.Embedder = embedderName
	}

	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, Verbose: verbose})
	if err != nil {
		return 0, err
	}
	defer func() { _ = logger.Sync() }()

	client, err := app.NewLLMClient(cfg)
	if err != nil {
		return 0, err
	}
	emb, err := app.NewEmbedder(cfg, client)
	if err != nil {
		return 0, err
	}

	scenarios := resolution.AllScenarios()
	if testID != "" {
		s, ok := resolution.ScenarioByID(testID)
		if !ok {
			return 0, fmt.Errorf("unknown scenario %q", testID)
		}
		scenarios = []resolution.Scenario{s}
	}

	fmt.Println("========================================")
	fmt.Println("homefacts resolution benchmark")
	fmt.Println("========================================")
	logger.Info("running scenarios", zap.Int("count", len(scenarios)), zap.String("embedder", emb.Model()))

	runner := resolution.NewBenchmarkRunner(emb, app.EngineOptions(cfg), topK, cfg.RankWorkers, logger)
	results, err := runner.RunAll(context.Background(), scenarios)
	if err != nil {
		return 0, err
	}

	summary := runner.Summarize(results)
	for _, r := range results {
		fmt.Printf("\n%s: %s\n", r.TestID, r.TestName)
		fmt.Printf("  hit@1: %.2f\n", r.HitAt1)
		fmt.Printf("  hit@%d: %.2f\n", topK, r.HitAtK)
		fmt.Printf("  MRR:   %.2f\n", r.MRR)
		fmt.Printf("  arithmetic baseline hit@1: %.2f  MRR: %.2f\n", r.BaselineHitAt1, r.BaselineMRR)
		fmt.Printf("  Status: %s (%s)\n", r.Status, r.Detail)
	}
	fmt.Println("\n========================================")
	fmt.Printf("Scenarios: %d  Passed: %d  Failed: %d  Mean MRR: %.2f  (arithmetic baseline %.2f)\n",
		len(results), summary.Passed, summary.Failed, summary.MeanMRR, summary.BaselineMeanMRR)
	fmt.Println("========================================")

	if err := runner.ExportResults(results, outputPath); err != nil {
		return 0, err
	}
	fmt.Printf("Results written to %s\n", outputPath)

	return summary.Failed, nil
}
