// ABOUTME: Plain-text renderings of rankings, constraint matches and write outcomes
// ABOUTME: Used by MCP tools and the CLI so agents and people read the same explanation
package core

import (
	"fmt"
	"strings"

	"github.com/harper/homefacts/internal/models"
)

// RenderRanking explains each ranked device and its best fact per clue
func RenderRanking(rankings []models.DeviceRanking) string {
	if len(rankings) == 0 {
		return "No devices found."
	}
	var b strings.Builder
	for i, r := range rankings {
		fmt.Fprintf(&b, "%d. %s (%s) score=%.4f\n", i+1, r.DeviceName, r.DeviceID, r.Score)
		for _, c := range r.Clues {
			if c.BestFact.Matched() {
				fmt.Fprintf(&b, "   device %s's best match for clue '%s' was fact: %s (distance %.4f)\n",
					r.DeviceID, c.Clue, c.BestFact.Content, c.Distance)
			} else {
				fmt.Fprintf(&b, "   device %s has no fact matching clue '%s' (distance %.4f)\n",
					r.DeviceID, c.Clue, c.Distance)
			}
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// RenderConstraintMatches lists, per constraint group, the facts that matched
func RenderConstraintMatches(deviceID string, matches []models.ConstraintMatch) string {
	var b strings.Builder
	for i, m := range matches {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "constraint [%s] on %s: harmonic distance %.4f\n", m.Key, deviceID, m.HarmonicDistance)
		if !m.Matched {
			b.WriteString("   no matching facts\n")
			continue
		}
		for _, h := range m.Hits {
			fmt.Fprintf(&b, "   - %s (distance %.4f, clues: %s)\n", h.Content, h.Distance, strings.Join(h.Clues, ", "))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// RenderOutcome is the one-line result of a write
func RenderOutcome(o WriteOutcome) string {
	if o.Message != "" {
		return o.Message
	}
	if o.Applied {
		return fmt.Sprintf("%s applied to %s", o.Op, o.DeviceID)
	}
	return fmt.Sprintf("nothing to %s on %s", o.Op, o.DeviceID)
}

// RenderReport summarizes a memory update
func RenderReport(r *UpdateReport) string {
	if r == nil || len(r.Results) == 0 {
		return "No fact changes."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d applied, %d failed\n", r.Applied, r.Failed)
	for _, res := range r.Results {
		status := "ok"
		if !res.Outcome.Applied {
			status = "skipped"
		}
		fmt.Fprintf(&b, "   [%s] %s: %s\n", status, res.Op.Op, RenderOutcome(res.Outcome))
	}
	return strings.TrimRight(b.String(), "\n")
}
