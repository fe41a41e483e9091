// ABOUTME: Tests for ranking devices by harmonic mean of per-clue distances
// ABOUTME: Includes the bedroom lamp scenario and tie ordering across workers
package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/harper/homefacts/internal/models"
)

func seedHome(t *testing.T, w *Writer) {
	t.Helper()
	mustEnsure(t, w, "lamp", "bedside lamp")
	mustAdd(t, w, "lamp", "in the bedroom", models.CategoryLocatingClue)
	mustAdd(t, w, "lamp", "near the bed", models.CategoryLocatingClue)

	mustEnsure(t, w, "ceiling", "living room ceiling light")
	mustAdd(t, w, "ceiling", "in the living room", models.CategoryLocatingClue)

	mustEnsure(t, w, "socket", "kitchen socket")
	mustAdd(t, w, "socket", "in the kitchen", models.CategoryLocatingClue)
	mustAdd(t, w, "socket", "connects the fridge", models.CategoryLocatingClue)
}

func TestRankDevicesScenario(t *testing.T) {
	e, w := newTestEngine(t)
	seedHome(t, w)

	ranked, err := e.RankDevices(context.Background(), []string{"bedroom", "near bed"}, 3)
	if err != nil {
		t.Fatalf("RankDevices() error = %v", err)
	}
	if len(ranked) != 3 {
		t.Fatalf("len = %d, want 3", len(ranked))
	}

	top := ranked[0]
	if top.DeviceID != "lamp" || top.DeviceName != "bedside lamp" {
		t.Errorf("top = %s (%s), want lamp", top.DeviceID, top.DeviceName)
	}
	if !near(top.Score, DefaultEpsilon) {
		t.Errorf("lamp score = %v, want epsilon", top.Score)
	}
	if len(top.Clues) != 2 || top.Clues[0].BestFact.Content != "in the bedroom" || top.Clues[1].BestFact.Content != "near the bed" {
		t.Errorf("lamp clues = %+v", top.Clues)
	}

	// the other two match nothing and keep creation order
	if ranked[1].DeviceID != "ceiling" || ranked[2].DeviceID != "socket" {
		t.Errorf("order = %s, %s", ranked[1].DeviceID, ranked[2].DeviceID)
	}
	for _, r := range ranked[1:] {
		if !near(r.Score, 1.0) {
			t.Errorf("%s score = %v, want 1.0", r.DeviceID, r.Score)
		}
	}

	text := RenderRanking(ranked)
	if !strings.Contains(text, "device lamp's best match for clue 'bedroom' was fact: in the bedroom") {
		t.Errorf("rendering:\n%s", text)
	}
}

func TestRankDevicesTopK(t *testing.T) {
	e, w := newTestEngine(t)
	seedHome(t, w)
	ctx := context.Background()

	ranked, err := e.RankDevices(ctx, []string{"kitchen"}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(ranked) != 1 || ranked[0].DeviceID != "socket" {
		t.Errorf("ranked = %+v", ranked)
	}

	ranked, err = e.RankDevices(ctx, []string{"kitchen"}, 0)
	if err != nil || len(ranked) != 0 {
		t.Errorf("topK 0 = %v, %v; want empty", ranked, err)
	}

	ranked, err = e.RankDevices(ctx, []string{"kitchen"}, 50)
	if err != nil || len(ranked) != 3 {
		t.Errorf("topK beyond device count = %d, %v", len(ranked), err)
	}
}

func TestRankDevicesInvalid(t *testing.T) {
	e, w := newTestEngine(t)
	seedHome(t, w)
	ctx := context.Background()

	cases := []struct {
		name  string
		clues []string
		topK  int
	}{
		{"no clues", nil, 3},
		{"empty clues", []string{}, 3},
		{"blank clue", []string{"bedroom", " "}, 3},
		{"negative k", []string{"bedroom"}, -1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := e.RankDevices(ctx, tc.clues, tc.topK); !errors.Is(err, ErrInvalidInput) {
				t.Errorf("err = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestRankDevicesEmptyIndex(t *testing.T) {
	e, _ := newTestEngine(t)
	ranked, err := e.RankDevices(context.Background(), []string{"bedroom"}, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(ranked) != 0 {
		t.Errorf("ranked = %+v, want empty", ranked)
	}
}

func TestRankDevicesEmptyCollectionRanksLast(t *testing.T) {
	e, w := newTestEngine(t)
	mustEnsure(t, w, "new", "unconfigured plug")
	mustAdd(t, w, "lamp", "in the bedroom", models.CategoryLocatingClue)

	ranked, err := e.RankDevices(context.Background(), []string{"bedroom", "window"}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(ranked) != 2 || ranked[0].DeviceID != "lamp" || ranked[1].DeviceID != "new" {
		t.Fatalf("ranked = %+v", ranked)
	}
	last := ranked[1]
	if last.Score != 1.0 || last.FactCount != 0 {
		t.Errorf("empty device = %+v", last)
	}
	for _, c := range last.Clues {
		if c.BestFact.Matched() || c.Distance != 1.0 {
			t.Errorf("empty device clue = %+v", c)
		}
	}
	// lamp: bedroom hits, window misses
	want := HarmonicMean([]float64{DefaultEpsilon, 1.0})
	if !near(ranked[0].Score, want) {
		t.Errorf("lamp score = %v, want %v", ranked[0].Score, want)
	}
}

func TestRankDevicesTiesKeepCreationOrder(t *testing.T) {
	idx := newTestIndex(t)
	e := NewEngine(idx, Options{RankWorkers: 2}, nil)
	w := NewWriter(e)

	var want []string
	for i := 0; i < 8; i++ {
		id := fmt.Sprintf("plug-%d", i)
		mustAdd(t, w, id, "in the garage", models.CategoryLocatingClue)
		want = append(want, id)
	}

	ranked, err := e.RankDevices(context.Background(), []string{"garage"}, len(want))
	if err != nil {
		t.Fatal(err)
	}
	for i, r := range ranked {
		if r.DeviceID != want[i] {
			t.Fatalf("position %d = %s, want %s", i, r.DeviceID, want[i])
		}
	}
}

func TestRankDevicesIndexFailure(t *testing.T) {
	e, w := newTestEngine(t)
	seedHome(t, w)

	broken := NewEngine(failingIndex{e.Index()}, Options{}, nil)
	if _, err := broken.RankDevices(context.Background(), []string{"bedroom"}, 3); !errors.Is(err, ErrIndex) {
		t.Errorf("err = %v, want ErrIndex", err)
	}
}
