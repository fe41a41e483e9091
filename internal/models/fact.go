// ABOUTME: Fact represents one categorized statement about a device
// ABOUTME: Category is a closed set; only content and updated_at ever change
package models

import (
	"fmt"
	"strings"
	"time"
)

// Category tags what kind of information a fact carries.
type Category string

const (
	CategoryCapability   Category = "capability"    // What the device can do
	CategoryState        Category = "state"         // What the device can report
	CategoryLocatingClue Category = "locating-clue" // Location, nickname, anything that identifies it
	CategoryUsageHabit   Category = "usage-habit"   // How the user tends to use it
	CategoryOther        Category = "other"
)

// Categories lists every valid category in display order.
var Categories = []Category{
	CategoryCapability,
	CategoryState,
	CategoryLocatingClue,
	CategoryUsageHabit,
	CategoryOther,
}

// categoryAliases accepts the spellings used by agents and older seed files.
var categoryAliases = map[string]Category{
	"capabilities":    CategoryCapability,
	"states":          CategoryState,
	"clue":            CategoryLocatingClue,
	"clues":           CategoryLocatingClue,
	"locating_clue":   CategoryLocatingClue,
	"locating-clues":  CategoryLocatingClue,
	"device_id_clues": CategoryLocatingClue,
	"usage_habit":     CategoryUsageHabit,
	"usage_habits":    CategoryUsageHabit,
	"habit":           CategoryUsageHabit,
	"others":          CategoryOther,
}

// ParseCategory normalizes s into a Category.
func ParseCategory(s string) (Category, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	for _, c := range Categories {
		if string(c) == norm {
			return c, nil
		}
	}
	if c, ok := categoryAliases[norm]; ok {
		return c, nil
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// Valid reports whether c is one of the closed set.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Fact is a single persisted statement about a device
type Fact struct {
	FactID    string            `json:"fact_id" yaml:"fact_id"`
	DeviceID  string            `json:"device_id" yaml:"device_id"`
	Content   string            `json:"content" yaml:"content"`
	Category  Category          `json:"category" yaml:"category"`
	Source    string            `json:"source,omitempty" yaml:"source,omitempty"`
	Extra     map[string]string `json:"extra,omitempty" yaml:"extra,omitempty"`
	CreatedAt time.Time         `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time         `json:"updated_at" yaml:"updated_at"`
}

// Metadata flattens the non-content fields for index results.
func (f *Fact) Metadata() map[string]string {
	meta := map[string]string{
		"category":   string(f.Category),
		"created_at": f.CreatedAt.Format(time.RFC3339),
		"updated_at": f.UpdatedAt.Format(time.RFC3339),
	}
	if f.Source != "" {
		meta["source"] = f.Source
	}
	for k, v := range f.Extra {
		if _, reserved := meta[k]; !reserved {
			meta[k] = v
		}
	}
	return meta
}
