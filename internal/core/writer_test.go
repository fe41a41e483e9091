// ABOUTME: Tests for adding, updating and deleting facts
// ABOUTME: Covers resolve-then-apply, immutable fields, not-found outcomes and per-device locking
package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/harper/homefacts/internal/models"
)

func TestAddValidation(t *testing.T) {
	_, w := newTestEngine(t)
	ctx := context.Background()

	if _, err := w.Add(ctx, "", "bedroom", models.CategoryLocatingClue); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("blank device err = %v", err)
	}
	if _, err := w.Add(ctx, "lamp", "   ", models.CategoryLocatingClue); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("blank content err = %v", err)
	}
	if _, err := w.Add(ctx, "lamp", "bedroom", models.Category("vibes")); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("bad category err = %v", err)
	}
}

func TestAddCreatesDevice(t *testing.T) {
	e, w := newTestEngine(t)
	ctx := context.Background()

	f := mustAdd(t, w, "lamp", "  in the bedroom ", models.CategoryLocatingClue)
	if !strings.HasPrefix(f.FactID, "fact_") {
		t.Errorf("FactID = %q", f.FactID)
	}
	if f.Content != "in the bedroom" {
		t.Errorf("Content = %q, want trimmed", f.Content)
	}
	if !f.CreatedAt.Equal(f.UpdatedAt) {
		t.Errorf("timestamps differ on add: %v %v", f.CreatedAt, f.UpdatedAt)
	}

	devices, err := e.ListDevices(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(devices) != 1 || devices[0].DeviceName != models.DefaultDeviceName || devices[0].FactCount != 1 {
		t.Errorf("devices = %+v", devices)
	}
}

func TestUpdateRoundTrip(t *testing.T) {
	e, w := newTestEngine(t)
	ctx := context.Background()

	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	w.now = func() time.Time { return fixed }

	added := mustAdd(t, w, "dev", "foo", models.CategoryCapability)

	out, err := w.Update(ctx, "dev", "foo", "bar")
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if !out.Applied || out.FactID != added.FactID || out.Before != "foo" || out.After != "bar" {
		t.Errorf("outcome = %+v", out)
	}

	facts, err := e.DeviceFacts(ctx, "dev", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(facts) != 1 {
		t.Fatalf("len(facts) = %d", len(facts))
	}
	got := facts[0]
	if got.FactID != added.FactID || got.Content != "bar" || got.Category != models.CategoryCapability {
		t.Errorf("fact = %+v", got)
	}
	if !got.CreatedAt.Equal(added.CreatedAt) {
		t.Errorf("CreatedAt changed: %v -> %v", added.CreatedAt, got.CreatedAt)
	}
	// the clock did not move, yet updated_at must still advance
	if !got.UpdatedAt.After(added.UpdatedAt) {
		t.Errorf("UpdatedAt = %v, want after %v", got.UpdatedAt, added.UpdatedAt)
	}
}

func TestDeleteThenBestMatch(t *testing.T) {
	e, w := newTestEngine(t)
	ctx := context.Background()

	f := mustAdd(t, w, "lamp", "in the bedroom", models.CategoryLocatingClue)

	out, err := w.Delete(ctx, "lamp", "bedroom")
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if !out.Applied || out.FactID != f.FactID || out.Before != "in the bedroom" {
		t.Errorf("outcome = %+v", out)
	}

	m, err := e.BestMatch(ctx, "lamp", "bedroom")
	if err != nil {
		t.Fatal(err)
	}
	if m.Matched() || m.Distance != 1.0 {
		t.Errorf("after delete = %+v, want default", m)
	}
}

func TestUpdateDeleteNothingToChange(t *testing.T) {
	_, w := newTestEngine(t)
	ctx := context.Background()
	mustEnsure(t, w, "empty", "")

	for _, id := range []string{"empty", "ghost"} {
		out, err := w.Update(ctx, id, "foo", "bar")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Update(%s) err = %v", id, err)
		}
		if out.Applied || !strings.Contains(out.Message, "nothing to update") {
			t.Errorf("Update(%s) outcome = %+v", id, out)
		}

		out, err = w.Delete(ctx, id, "foo")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Delete(%s) err = %v", id, err)
		}
		if out.Applied || !strings.Contains(out.Message, "nothing to delete") {
			t.Errorf("Delete(%s) outcome = %+v", id, out)
		}
	}

	out, err := w.Update(ctx, "empty", "foo", " ")
	if !errors.Is(err, ErrInvalidInput) || out.Applied {
		t.Errorf("blank new content: %+v, %v", out, err)
	}
}

func TestResolveCandidateScope(t *testing.T) {
	_, w := newTestEngine(t)
	ctx := context.Background()

	mustAdd(t, w, "kettle", "in the kitchen", models.CategoryLocatingClue)
	boils := mustAdd(t, w, "kettle", "boils water", models.CategoryCapability)
	mustAdd(t, w, "fan", "speed", models.CategoryState)

	tests := []struct {
		name      string
		device    string
		text      string
		category  models.Category
		want      string
		wantScope models.Category
	}{
		{"capability beats unrelated clue", "kettle", "boils water", "", "boils water", ""},
		{"clue still resolves", "kettle", "kitchen", "", "in the kitchen", models.CategoryLocatingClue},
		{"device without clues", "fan", "fan speed", "", "speed", ""},
		{"scoped to capability", "kettle", "water", models.CategoryCapability, "boils water", models.CategoryCapability},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := w.ResolveCandidateIn(ctx, tt.device, tt.text, tt.category)
			if err != nil {
				t.Fatal(err)
			}
			if c.Fact.Content != tt.want || c.Scope != tt.wantScope {
				t.Errorf("candidate = %q scope %q, want %q scope %q", c.Fact.Content, c.Scope, tt.want, tt.wantScope)
			}
		})
	}

	c, _ := w.ResolveCandidate(ctx, "kettle", "boils water")
	if c == nil || c.Fact.FactID != boils.FactID {
		t.Errorf("resolved %+v, want fact %s", c, boils.FactID)
	}

	// nothing in the scope resembles the text
	if _, err := w.ResolveCandidateIn(ctx, "kettle", "kitchen", models.CategoryState); !errors.Is(err, ErrNotFound) {
		t.Errorf("empty scope err = %v", err)
	}
	if _, err := w.ResolveCandidateIn(ctx, "kettle", "kitchen", "colour"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("bad scope err = %v", err)
	}
	if _, err := w.ResolveCandidate(ctx, "fan", ""); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("blank text err = %v", err)
	}
}

func TestResolvePrefersClueOnTie(t *testing.T) {
	_, w := newTestEngine(t)
	ctx := context.Background()

	mustAdd(t, w, "lamp", "nightstand", models.CategoryOther)
	clue := mustAdd(t, w, "lamp", "on the nightstand", models.CategoryLocatingClue)

	c, err := w.ResolveCandidate(ctx, "lamp", "nightstand")
	if err != nil {
		t.Fatal(err)
	}
	if c.Fact.FactID != clue.FactID || c.Scope != models.CategoryLocatingClue {
		t.Errorf("candidate = %+v, want the locating clue", c)
	}
}

func TestUpdateLeavesUnrelatedClues(t *testing.T) {
	e, w := newTestEngine(t)
	ctx := context.Background()

	clue := mustAdd(t, w, "lamp", "in the bedroom", models.CategoryLocatingClue)
	dims := mustAdd(t, w, "lamp", "dims", models.CategoryCapability)

	out, err := w.Update(ctx, "lamp", "dims", "dims slowly")
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if out.FactID != dims.FactID || out.Before != "dims" {
		t.Errorf("outcome = %+v, want capability %s", out, dims.FactID)
	}

	clues, _ := e.FactsByCategory(ctx, "lamp", models.CategoryLocatingClue)
	if len(clues) != 1 || clues[0] != clue.Content {
		t.Errorf("locating clues = %v, want untouched", clues)
	}
	caps, _ := e.FactsByCategory(ctx, "lamp", models.CategoryCapability)
	if len(caps) != 1 || caps[0] != "dims slowly" {
		t.Errorf("capabilities = %v", caps)
	}

	// text unlike every fact changes nothing
	out, err = w.Update(ctx, "lamp", "kitchen", "in the kitchen")
	if !errors.Is(err, ErrNotFound) || out.Applied {
		t.Errorf("unrelated update = %+v, %v", out, err)
	}
	out, err = w.Delete(ctx, "lamp", "kitchen")
	if !errors.Is(err, ErrNotFound) || out.Applied {
		t.Errorf("unrelated delete = %+v, %v", out, err)
	}
	if clues, _ := e.FactsByCategory(ctx, "lamp", models.CategoryLocatingClue); len(clues) != 1 {
		t.Errorf("locating clues after unrelated writes = %v", clues)
	}
}

func TestApplyByID(t *testing.T) {
	e, w := newTestEngine(t)
	ctx := context.Background()

	f := mustAdd(t, w, "lamp", "dims", models.CategoryCapability)

	out, err := w.ApplyUpdate(ctx, "lamp", f.FactID, "dims to ten percent")
	if err != nil {
		t.Fatal(err)
	}
	if !out.Applied || out.FactID != f.FactID || out.Before != "dims" || out.After != "dims to ten percent" {
		t.Errorf("update outcome = %+v", out)
	}
	got, _ := e.DeviceFacts(ctx, "lamp", "")
	if len(got) != 1 || got[0].Content != "dims to ten percent" || !got[0].CreatedAt.Equal(f.CreatedAt) {
		t.Errorf("facts after update = %+v", got)
	}

	if out, err := w.ApplyUpdate(ctx, "lamp", "fact_missing", "x"); !errors.Is(err, ErrNotFound) || out.Applied {
		t.Errorf("missing fact update = %+v, %v", out, err)
	}
	if _, err := w.ApplyUpdate(ctx, "lamp", f.FactID, "  "); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("blank content err = %v", err)
	}

	out, err = w.ApplyDelete(ctx, "lamp", f.FactID)
	if err != nil {
		t.Fatal(err)
	}
	if !out.Applied || out.Before != "dims to ten percent" {
		t.Errorf("delete outcome = %+v", out)
	}
	if out, err := w.ApplyDelete(ctx, "lamp", f.FactID); !errors.Is(err, ErrNotFound) || out.Applied {
		t.Errorf("second delete = %+v, %v", out, err)
	}

	facts, _ := e.DeviceFacts(ctx, "lamp", "")
	if len(facts) != 0 {
		t.Errorf("facts = %+v", facts)
	}
}

func TestConcurrentAdds(t *testing.T) {
	e, w := newTestEngine(t)
	ctx := context.Background()

	const perDevice = 10
	var wg sync.WaitGroup
	errs := make(chan error, perDevice*2)
	for _, dev := range []string{"a", "b"} {
		for i := 0; i < perDevice; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := w.Add(ctx, dev, fmt.Sprintf("clue %d", i), models.CategoryLocatingClue)
				errs <- err
			}()
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("Add() error = %v", err)
		}
	}

	for _, dev := range []string{"a", "b"} {
		facts, err := e.DeviceFacts(ctx, dev, "")
		if err != nil {
			t.Fatal(err)
		}
		seen := map[string]bool{}
		for _, f := range facts {
			seen[f.FactID] = true
		}
		if len(facts) != perDevice || len(seen) != perDevice {
			t.Errorf("%s: %d facts, %d unique ids", dev, len(facts), len(seen))
		}
	}
}

func TestKeyedMutex(t *testing.T) {
	k := newKeyedMutex()

	unlockA := k.Lock("a")

	// another key is independent
	done := make(chan struct{})
	go func() {
		k.Lock("b")()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on b blocked behind a")
	}

	acquired := make(chan struct{})
	released := make(chan struct{})
	go func() {
		unlock := k.Lock("a")
		close(acquired)
		unlock()
		close(released)
	}()
	select {
	case <-acquired:
		t.Fatal("second lock on a did not wait")
	case <-time.After(50 * time.Millisecond):
	}

	unlockA()
	<-released

	k.mu.Lock()
	defer k.mu.Unlock()
	if len(k.locks) != 0 {
		t.Errorf("locks not released: %v", k.locks)
	}
}

func TestConcurrentDeletesApplyOnce(t *testing.T) {
	e, w := newTestEngine(t)
	ctx := context.Background()

	target := mustAdd(t, w, "lamp", "near the window", models.CategoryLocatingClue)
	mustAdd(t, w, "lamp", "dims", models.CategoryCapability)

	const n = 8
	outs := make([]WriteOutcome, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outs[i], errs[i] = w.Delete(ctx, "lamp", "window")
		}()
	}
	wg.Wait()

	applied := 0
	for i := range outs {
		switch {
		case outs[i].Applied:
			applied++
			if outs[i].FactID != target.FactID {
				t.Errorf("deleted %s, want %s", outs[i].FactID, target.FactID)
			}
		case !errors.Is(errs[i], ErrNotFound):
			t.Errorf("losing delete err = %v", errs[i])
		}
	}
	if applied != 1 {
		t.Errorf("%d deletes applied, want exactly 1", applied)
	}

	facts, _ := e.DeviceFacts(ctx, "lamp", "")
	if len(facts) != 1 || facts[0].Content != "dims" {
		t.Errorf("facts = %+v, want only the capability", facts)
	}
}

func TestConcurrentUpdateAndDelete(t *testing.T) {
	e, w := newTestEngine(t)
	ctx := context.Background()

	f := mustAdd(t, w, "fan", "speed", models.CategoryState)

	const updaters = 8
	type result struct {
		out WriteOutcome
		err error
	}
	results := make(chan result, updaters)
	var deleted WriteOutcome
	var deleteErr error

	var wg sync.WaitGroup
	for i := 0; i < updaters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := w.Update(ctx, "fan", "speed", fmt.Sprintf("speed %d", i))
			results <- result{out, err}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		deleted, deleteErr = w.Delete(ctx, "fan", "speed")
	}()
	wg.Wait()
	close(results)

	if deleteErr != nil || !deleted.Applied || deleted.FactID != f.FactID {
		t.Fatalf("delete = %+v, %v", deleted, deleteErr)
	}
	for r := range results {
		if r.out.Applied {
			if r.out.FactID != f.FactID {
				t.Errorf("update hit %s, want %s", r.out.FactID, f.FactID)
			}
			continue
		}
		if !errors.Is(r.err, ErrNotFound) {
			t.Errorf("update after delete err = %v", r.err)
		}
	}

	// an update applied after the delete would have recreated the fact
	facts, err := e.DeviceFacts(ctx, "fan", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(facts) != 0 {
		t.Errorf("facts after delete = %+v", facts)
	}
}

func TestConcurrentApplyByID(t *testing.T) {
	e, w := newTestEngine(t)
	ctx := context.Background()

	f := mustAdd(t, w, "kettle", "boils water", models.CategoryCapability)

	const writers = 8
	var applied atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			out, err := w.ApplyDelete(ctx, "kettle", f.FactID)
			if out.Applied {
				applied.Add(1)
			} else if !errors.Is(err, ErrNotFound) {
				t.Errorf("delete err = %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			out, err := w.ApplyUpdate(ctx, "kettle", f.FactID, fmt.Sprintf("boils water %d", i))
			if !out.Applied && !errors.Is(err, ErrNotFound) {
				t.Errorf("update err = %v", err)
			}
		}()
	}
	wg.Wait()

	if applied.Load() != 1 {
		t.Errorf("%d deletes applied, want exactly 1", applied.Load())
	}
	facts, err := e.DeviceFacts(ctx, "kettle", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(facts) != 0 {
		t.Errorf("facts after delete = %+v", facts)
	}
}
