// ABOUTME: Export functionality for device fact data
// ABOUTME: Supports YAML, JSON and Markdown export from any Index backend
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/harper/homefacts/internal/models"
	"gopkg.in/yaml.v3"
)

// ExportVersion is bumped when the export layout changes
const ExportVersion = "1.0"

// ExportData represents the complete exportable data structure
type ExportData struct {
	Version    string         `yaml:"version" json:"version"`
	ExportedAt string         `yaml:"exported_at" json:"exported_at"`
	Tool       string         `yaml:"tool" json:"tool"`
	Devices    []ExportDevice `yaml:"devices" json:"devices"`
}

// ExportDevice is one collection and its facts in insertion order
type ExportDevice struct {
	DeviceID   string        `yaml:"device_id" json:"device_id"`
	DeviceName string        `yaml:"device_name" json:"device_name"`
	CreatedAt  string        `yaml:"created_at" json:"created_at"`
	Facts      []models.Fact `yaml:"facts" json:"facts"`
}

// Export reads every collection from idx
func Export(ctx context.Context, idx Index) (*ExportData, error) {
	devices, err := idx.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	data := &ExportData{
		Version:    ExportVersion,
		ExportedAt: time.Now().Format(time.RFC3339),
		Tool:       "homefacts",
		Devices:    make([]ExportDevice, 0, len(devices)),
	}
	for _, d := range devices {
		facts, err := idx.Facts(ctx, d.DeviceID, "")
		if err != nil {
			return nil, fmt.Errorf("failed to list facts for %s: %w", d.DeviceID, err)
		}
		data.Devices = append(data.Devices, ExportDevice{
			DeviceID:   d.DeviceID,
			DeviceName: d.DeviceName,
			CreatedAt:  d.CreatedAt.Format(time.RFC3339),
			Facts:      facts,
		})
	}
	return data, nil
}

// Profiles converts the export back into seed profiles so it can be re-imported.
func (e *ExportData) Profiles() []models.DeviceProfile {
	profiles := make([]models.DeviceProfile, 0, len(e.Devices))
	for _, d := range e.Devices {
		p := models.DeviceProfile{DeviceID: d.DeviceID, DeviceName: d.DeviceName}
		for _, f := range d.Facts {
			switch f.Category {
			case models.CategoryState:
				p.States = append(p.States, f.Content)
			case models.CategoryCapability:
				p.Capabilities = append(p.Capabilities, f.Content)
			case models.CategoryLocatingClue:
				p.LocatingClues = append(p.LocatingClues, f.Content)
			case models.CategoryUsageHabit:
				p.UsageHabits = append(p.UsageHabits, f.Content)
			default:
				p.Others = append(p.Others, f.Content)
			}
		}
		profiles = append(profiles, p)
	}
	return profiles
}

// WriteYAML encodes the export as YAML
func (e *ExportData) WriteYAML(w io.Writer) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(e); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	return encoder.Close()
}

// WriteJSON encodes the export as indented JSON
func (e *ExportData) WriteJSON(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(e)
}

// WriteMarkdown renders one section per device, facts grouped by category
func (e *ExportData) WriteMarkdown(w io.Writer) error {
	_, _ = fmt.Fprintf(w, "# Home Facts Export - %s\n\n", time.Now().Format("2006-01-02"))
	_, _ = fmt.Fprintf(w, "Generated: %s\n\n", e.ExportedAt)

	for _, d := range e.Devices {
		_, _ = fmt.Fprintf(w, "## %s (%s)\n\n", d.DeviceName, d.DeviceID)
		if len(d.Facts) == 0 {
			_, _ = fmt.Fprintln(w, "_No facts._")
			_, _ = fmt.Fprintln(w)
			continue
		}
		for _, c := range models.Categories {
			var lines []string
			for _, f := range d.Facts {
				if f.Category == c {
					lines = append(lines, f.Content)
				}
			}
			if len(lines) == 0 {
				continue
			}
			_, _ = fmt.Fprintf(w, "### %s\n\n", c)
			for _, l := range lines {
				_, _ = fmt.Fprintf(w, "- %s\n", l)
			}
			_, _ = fmt.Fprintln(w)
		}
	}
	return nil
}

// WriteFile writes the export to path in the given format (yaml, json, markdown)
func (e *ExportData) WriteFile(path, format string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	file, err := os.Create(path) // #nosec G304
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() { _ = file.Close() }()

	return e.Write(file, format)
}

// Write encodes the export to w in the given format
func (e *ExportData) Write(w io.Writer, format string) error {
	switch format {
	case "yaml", "yml", "":
		return e.WriteYAML(w)
	case "json":
		return e.WriteJSON(w)
	case "markdown", "md":
		return e.WriteMarkdown(w)
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
}

// ReadExport loads a YAML or JSON export written by Write.
func ReadExport(path string) (*ExportData, error) {
	raw, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return nil, err
	}
	var data ExportData
	unmarshal := yaml.Unmarshal
	if strings.EqualFold(filepath.Ext(path), ".json") {
		unmarshal = json.Unmarshal
	}
	if err := unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if data.Version == "" {
		return nil, fmt.Errorf("%s is not a homefacts export", path)
	}
	return &data, nil
}
