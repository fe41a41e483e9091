// ABOUTME: Retrieval metrics for device resolution: hit@1, hit@k and reciprocal rank
// ABOUTME: Each query is scored twice: harmonic-mean ranking and an arithmetic-mean baseline
package resolution

import (
	"fmt"
	"sort"

	"github.com/harper/homefacts/internal/core"
	"github.com/harper/homefacts/internal/models"
)

// PassThreshold is the minimum mean reciprocal rank for a scenario to pass
const PassThreshold = 0.9

// QueryResult is the outcome of one labelled query
type QueryResult struct {
	Clues  []string `json:"clues"`
	Expect string   `json:"expect"`
	Got    []string `json:"got"`
	Rank   int      `json:"rank"` // 1-based position of Expect; 0 when absent

	BaselineGot  []string `json:"baseline_got"`
	BaselineRank int      `json:"baseline_rank"`
}

// TestResult aggregates a scenario's queries
type TestResult struct {
	TestID         string        `json:"test_id"`
	TestName       string        `json:"test_name"`
	HitAt1         float64       `json:"hit_at_1"`
	HitAtK         float64       `json:"hit_at_k"`
	MRR            float64       `json:"mrr"`
	BaselineHitAt1 float64       `json:"baseline_hit_at_1"`
	BaselineMRR    float64       `json:"baseline_mrr"`
	Status         string        `json:"status"`
	Detail         string        `json:"detail"`
	Queries        []QueryResult `json:"queries"`
}

// RankOf returns the 1-based position of want in ranked, or 0
func RankOf(ranked []string, want string) int {
	for i, id := range ranked {
		if id == want {
			return i + 1
		}
	}
	return 0
}

// HarmonicOrder returns the ids of the first k rankings as the engine ordered them
func HarmonicOrder(rankings []models.DeviceRanking, k int) []string {
	ids := make([]string, 0, k)
	for i := 0; i < len(rankings) && i < k; i++ {
		ids = append(ids, rankings[i].DeviceID)
	}
	return ids
}

// ArithmeticOrder re-ranks by the arithmetic mean of each device's per-clue
// distances and returns the first k ids. Ties keep the harmonic order.
func ArithmeticOrder(rankings []models.DeviceRanking, k int) []string {
	type scored struct {
		id    string
		score float64
	}
	all := make([]scored, len(rankings))
	for i := range rankings {
		all[i] = scored{rankings[i].DeviceID, core.ArithmeticMean(rankings[i].Distances())}
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].score < all[j].score })

	ids := make([]string, 0, k)
	for i := 0; i < len(all) && i < k; i++ {
		ids = append(ids, all[i].id)
	}
	return ids
}

// Evaluate computes the scenario metrics from its query results
func Evaluate(s Scenario, queries []QueryResult) TestResult {
	res := TestResult{TestID: s.ID, TestName: s.Name, Queries: queries}
	if len(queries) == 0 {
		res.Status = "FAIL"
		res.Detail = "no queries"
		return res
	}

	var misses []string
	for _, q := range queries {
		if q.Rank == 1 {
			res.HitAt1++
		}
		if q.Rank > 0 {
			res.HitAtK++
			res.MRR += 1 / float64(q.Rank)
		} else {
			misses = append(misses, q.Expect)
		}
		if q.BaselineRank == 1 {
			res.BaselineHitAt1++
		}
		if q.BaselineRank > 0 {
			res.BaselineMRR += 1 / float64(q.BaselineRank)
		}
	}
	n := float64(len(queries))
	res.HitAt1 /= n
	res.HitAtK /= n
	res.MRR /= n
	res.BaselineHitAt1 /= n
	res.BaselineMRR /= n

	res.Status = "FAIL"
	if res.MRR >= PassThreshold {
		res.Status = "PASS"
	}
	switch {
	case res.HitAt1 == 1:
		res.Detail = "every query resolved to the labelled device"
	case len(misses) > 0:
		res.Detail = fmt.Sprintf("labelled devices missing from top-k: %v", misses)
	default:
		res.Detail = fmt.Sprintf("labelled devices found below first place (mrr %.2f)", res.MRR)
	}
	return res
}
