// ABOUTME: Tests for resolution benchmark metrics
// ABOUTME: Covers rank lookup, averaging and pass/fail thresholds
package resolution

import (
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/harper/homefacts/internal/models"
)

func TestRankOf(t *testing.T) {
	ranked := []string{"a", "b", "c"}
	tests := []struct {
		want string
		rank int
	}{
		{"a", 1},
		{"c", 3},
		{"z", 0},
	}
	for _, tt := range tests {
		if got := RankOf(ranked, tt.want); got != tt.rank {
			t.Errorf("RankOf(%q) = %d, want %d", tt.want, got, tt.rank)
		}
	}
}

func TestEvaluate(t *testing.T) {
	s := Scenario{ID: "x", Name: "x"}

	tests := []struct {
		name    string
		ranks   []int
		hit1    float64
		hitK    float64
		mrr     float64
		status  string
		details string
	}{
		{"all first", []int{1, 1}, 1, 1, 1, "PASS", "every query"},
		{"one second", []int{1, 2}, 0.5, 1, 0.75, "FAIL", "below first place"},
		{"one missing", []int{1, 0}, 0.5, 0.5, 0.5, "FAIL", "missing from top-k"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var qs []QueryResult
			for _, r := range tt.ranks {
				qs = append(qs, QueryResult{Expect: "dev", Rank: r})
			}
			res := Evaluate(s, qs)
			if math.Abs(res.HitAt1-tt.hit1) > 1e-9 || math.Abs(res.HitAtK-tt.hitK) > 1e-9 || math.Abs(res.MRR-tt.mrr) > 1e-9 {
				t.Errorf("metrics = %v/%v/%v, want %v/%v/%v", res.HitAt1, res.HitAtK, res.MRR, tt.hit1, tt.hitK, tt.mrr)
			}
			if res.Status != tt.status {
				t.Errorf("Status = %s, want %s", res.Status, tt.status)
			}
			if !strings.Contains(res.Detail, tt.details) {
				t.Errorf("Detail = %q", res.Detail)
			}
		})
	}

	if res := Evaluate(s, nil); res.Status != "FAIL" {
		t.Errorf("empty scenario should fail, got %s", res.Status)
	}
}

func TestScenarioByID(t *testing.T) {
	for _, s := range AllScenarios() {
		got, ok := ScenarioByID(s.ID)
		if !ok || got.Name != s.Name {
			t.Errorf("ScenarioByID(%q) = %v, %v", s.ID, got.Name, ok)
		}
		if len(s.Queries) == 0 || len(s.Home) == 0 {
			t.Errorf("scenario %s is empty", s.ID)
		}
	}
	if _, ok := ScenarioByID("nope"); ok {
		t.Error("unknown id should not be found")
	}
}

func ranking(id string, distances ...float64) models.DeviceRanking {
	r := models.DeviceRanking{DeviceID: id}
	for _, d := range distances {
		r.Clues = append(r.Clues, models.ClueScore{Distance: d})
	}
	return r
}

func TestArithmeticOrder(t *testing.T) {
	// harmonic order: one exact clue beats two middling ones
	rankings := []models.DeviceRanking{
		ranking("lamp", 1e-6, 1.0),
		ranking("fan", 0.4, 0.4),
		ranking("socket", 1.0, 1.0),
		ranking("hall", 0.4, 0.4),
	}

	if got := HarmonicOrder(rankings, 3); !reflect.DeepEqual(got, []string{"lamp", "fan", "socket"}) {
		t.Errorf("HarmonicOrder = %v", got)
	}
	// fan and hall tie and keep their input order
	if got := ArithmeticOrder(rankings, 3); !reflect.DeepEqual(got, []string{"fan", "hall", "lamp"}) {
		t.Errorf("ArithmeticOrder = %v", got)
	}
	if got := ArithmeticOrder(rankings, 10); len(got) != 4 {
		t.Errorf("k beyond length returned %v", got)
	}
	if got := ArithmeticOrder(nil, 3); len(got) != 0 {
		t.Errorf("empty input returned %v", got)
	}
}

func TestEvaluateBaseline(t *testing.T) {
	qs := []QueryResult{
		{Expect: "lamp", Rank: 1, BaselineRank: 2},
		{Expect: "fan", Rank: 1, BaselineRank: 1},
		{Expect: "hall", Rank: 1, BaselineRank: 0},
	}
	res := Evaluate(Scenario{ID: "x"}, qs)
	if res.MRR != 1 || res.Status != "PASS" {
		t.Errorf("harmonic metrics = %+v", res)
	}
	if math.Abs(res.BaselineHitAt1-1.0/3) > 1e-9 || math.Abs(res.BaselineMRR-0.5) > 1e-9 {
		t.Errorf("baseline = %v / %v, want 1/3 / 0.5", res.BaselineHitAt1, res.BaselineMRR)
	}
}
