// ABOUTME: Query-scoped results produced by the resolution engine
// ABOUTME: None of these are persisted; they exist for one ranking or match call
package models

// MatchResult is the best fact found for a clue. An empty FactID means no match.
type MatchResult struct {
	FactID   string            `json:"fact_id"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Distance float64           `json:"distance"`
}

// Matched reports whether a real fact backs this result.
func (m MatchResult) Matched() bool {
	return m.FactID != ""
}

// ClueScore pairs one clue with the best fact a device had for it
type ClueScore struct {
	Clue     string      `json:"clue"`
	Distance float64     `json:"distance"`
	BestFact MatchResult `json:"best_fact"`
}

// DeviceRanking is one row of a RankDevices result
type DeviceRanking struct {
	DeviceID   string      `json:"device_id"`
	DeviceName string      `json:"device_name"`
	FactCount  int         `json:"fact_count"`
	Clues      []ClueScore `json:"clues"`
	Score      float64     `json:"score"`
}

// Distances returns the per-clue distances in clue order.
func (r *DeviceRanking) Distances() []float64 {
	out := make([]float64, len(r.Clues))
	for i, c := range r.Clues {
		out[i] = c.Distance
	}
	return out
}

// ConstraintHit is a fact matched by one or more clues of a constraint group
type ConstraintHit struct {
	MatchResult
	Clues []string `json:"clues"`
}

// ConstraintMatch is the merged, de-duplicated result for one constraint group.
// When nothing matched, Hits holds a single placeholder with an empty FactID.
type ConstraintMatch struct {
	Key              string          `json:"key"`
	Clues            []string        `json:"clues"`
	HarmonicDistance float64         `json:"harmonic_distance"`
	Matched          bool            `json:"matched"`
	Hits             []ConstraintHit `json:"hits"`
}

// ByFactID indexes the hits by fact id. The placeholder is keyed by "".
func (c *ConstraintMatch) ByFactID() map[string]ConstraintHit {
	out := make(map[string]ConstraintHit, len(c.Hits))
	for _, h := range c.Hits {
		out[h.FactID] = h
	}
	return out
}
