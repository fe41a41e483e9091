// ABOUTME: Device collections and the seed profiles used to populate them
// ABOUTME: A profile lists facts per category and expands to one Fact per entry
package models

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultDeviceName is stored when a collection is created without a name.
const DefaultDeviceName = "N/A"

// Device is the collection-level record for one device
type Device struct {
	DeviceID   string    `json:"device_id" yaml:"device_id"`
	DeviceName string    `json:"device_name" yaml:"device_name"`
	FactCount  int       `json:"fact_count" yaml:"fact_count"`
	CreatedAt  time.Time `json:"created_at" yaml:"created_at"`
}

// DeviceProfile describes a device's initial facts, one list per category.
type DeviceProfile struct {
	DeviceID      string   `json:"device_id" yaml:"device_id"`
	DeviceName    string   `json:"device_name,omitempty" yaml:"device_name,omitempty"`
	States        []string `json:"states,omitempty" yaml:"states,omitempty"`
	Capabilities  []string `json:"capabilities,omitempty" yaml:"capabilities,omitempty"`
	LocatingClues []string `json:"locating_clues,omitempty" yaml:"locating_clues,omitempty"`
	UsageHabits   []string `json:"usage_habits,omitempty" yaml:"usage_habits,omitempty"`
	Others        []string `json:"others,omitempty" yaml:"others,omitempty"`
}

// ProfileFile is the on-disk layout of a seed file
type ProfileFile struct {
	Devices []DeviceProfile `yaml:"devices"`
}

// LoadProfiles reads device profiles from a YAML (or JSON) file.
func LoadProfiles(path string) ([]DeviceProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file ProfileFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	for i, p := range file.Devices {
		if strings.TrimSpace(p.DeviceID) == "" {
			return nil, fmt.Errorf("device %d in %s has no device_id", i, path)
		}
	}
	return file.Devices, nil
}

// Entries returns (category, content) pairs in category order, skipping blanks.
func (p *DeviceProfile) Entries() []ProfileEntry {
	var out []ProfileEntry
	add := func(c Category, items []string) {
		for _, item := range items {
			if s := strings.TrimSpace(item); s != "" {
				out = append(out, ProfileEntry{Category: c, Content: s})
			}
		}
	}
	add(CategoryState, p.States)
	add(CategoryCapability, p.Capabilities)
	add(CategoryLocatingClue, p.LocatingClues)
	add(CategoryUsageHabit, p.UsageHabits)
	add(CategoryOther, p.Others)
	return out
}

// Merge folds another profile for the same device into p without duplicates.
func (p *DeviceProfile) Merge(other DeviceProfile) {
	if other.DeviceName != "" {
		p.DeviceName = other.DeviceName
	}
	p.States = appendUnique(p.States, other.States)
	p.Capabilities = appendUnique(p.Capabilities, other.Capabilities)
	p.LocatingClues = appendUnique(p.LocatingClues, other.LocatingClues)
	p.UsageHabits = appendUnique(p.UsageHabits, other.UsageHabits)
	p.Others = appendUnique(p.Others, other.Others)
}

// ProfileEntry is one fact-to-be from a profile
type ProfileEntry struct {
	Category Category
	Content  string
}

func appendUnique(dst, src []string) []string {
	for _, s := range src {
		if !contains(dst, s) {
			dst = append(dst, s)
		}
	}
	return dst
}

// contains checks if a string slice contains a specific string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
