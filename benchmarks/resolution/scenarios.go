// ABOUTME: Labelled home layouts and clue queries for the resolution benchmark
// ABOUTME: Each scenario seeds a home, applies fact edits, then asks which device is meant
package resolution

import "github.com/harper/homefacts/internal/models"

// Scenario is one benchmark home plus the queries asked of it
type Scenario struct {
	ID          string
	Name        string
	Description string
	Home        []models.DeviceProfile
	Edits       []Edit
	Queries     []Query
}

// Edit changes a fact before the queries run, the way a user correcting the system would
type Edit struct {
	Op       string // "update" or "delete"
	DeviceID string
	Old      string
	New      string
}

// Query is a clue list and the device the user meant
type Query struct {
	Clues  []string
	Expect string
}

func baseHome() []models.DeviceProfile {
	return []models.DeviceProfile{
		{
			DeviceID:      "bedroom_lamp",
			DeviceName:    "bedside lamp",
			Capabilities:  []string{"turn on", "dims"},
			LocatingClues: []string{"in the bedroom", "near the bed", "on the nightstand"},
		},
		{
			DeviceID:      "living_light",
			DeviceName:    "living room ceiling light",
			LocatingClues: []string{"in the living room", "above the sofa"},
		},
		{
			DeviceID:      "kitchen_socket",
			DeviceName:    "kitchen socket",
			LocatingClues: []string{"in the kitchen", "connects the fridge"},
		},
		{
			DeviceID:      "garage_fan",
			DeviceName:    "garage fan",
			Capabilities:  []string{"speed control"},
			LocatingClues: []string{"in the garage", "by the window"},
		},
	}
}

// GetLocateScenario asks for devices by room and nearby objects
func GetLocateScenario() Scenario {
	return Scenario{
		ID:          "locate",
		Name:        "Locate by room and landmark",
		Description: "Single and multi-clue lookups against an unchanged home",
		Home:        baseHome(),
		Queries: []Query{
			{Clues: []string{"bedroom"}, Expect: "bedroom_lamp"},
			{Clues: []string{"near bed", "nightstand"}, Expect: "bedroom_lamp"},
			{Clues: []string{"living room"}, Expect: "living_light"},
			{Clues: []string{"kitchen", "fridge"}, Expect: "kitchen_socket"},
			{Clues: []string{"garage"}, Expect: "garage_fan"},
		},
	}
}

// GetMovedScenario moves a device and checks the old location no longer wins
func GetMovedScenario() Scenario {
	home := baseHome()
	home = append(home, models.DeviceProfile{
		DeviceID:      "bedroom_fan",
		DeviceName:    "ceiling fan",
		LocatingClues: []string{"in the bedroom"},
	})
	return Scenario{
		ID:          "moved",
		Name:        "Device moved to another room",
		Description: "The lamp's room is updated; queries must follow the new fact",
		Home:        home,
		Edits: []Edit{
			{Op: "update", DeviceID: "bedroom_lamp", Old: "in the bedroom", New: "in the study"},
			{Op: "delete", DeviceID: "bedroom_lamp", Old: "near the bed"},
			{Op: "delete", DeviceID: "bedroom_lamp", Old: "on the nightstand"},
		},
		Queries: []Query{
			{Clues: []string{"study"}, Expect: "bedroom_lamp"},
			{Clues: []string{"bedroom"}, Expect: "bedroom_fan"},
		},
	}
}

// GetSharedRoomScenario puts two devices in one room so only the landmark separates them
func GetSharedRoomScenario() Scenario {
	home := baseHome()
	home = append(home, models.DeviceProfile{
		DeviceID:      "kitchen_kettle",
		DeviceName:    "kettle",
		Capabilities:  []string{"boils water"},
		LocatingClues: []string{"in the kitchen", "on the counter"},
	})
	return Scenario{
		ID:          "shared-room",
		Name:        "Two devices in one room",
		Description: "A landmark clue decides between devices sharing a room",
		Home:        home,
		Queries: []Query{
			{Clues: []string{"kitchen", "counter"}, Expect: "kitchen_kettle"},
			{Clues: []string{"kitchen", "connects fridge"}, Expect: "kitchen_socket"},
		},
	}
}

// AllScenarios returns every built-in scenario
func AllScenarios() []Scenario {
	return []Scenario{
		GetLocateScenario(),
		GetMovedScenario(),
		GetSharedRoomScenario(),
	}
}

// ScenarioByID finds a built-in scenario
func ScenarioByID(id string) (Scenario, bool) {
	for _, s := range AllScenarios() {
		if s.ID == id {
			return s, true
		}
	}
	return Scenario{}, false
}
