// ABOUTME: Fact operations proposed by the memory-update flow
// ABOUTME: Each op adds, updates or deletes one fact, optionally naming the device by clues
package models

import (
	"fmt"
	"strings"
)

// OpKind names a fact mutation
type OpKind string

const (
	OpAdd    OpKind = "add"
	OpUpdate OpKind = "update"
	OpDelete OpKind = "delete"
)

// FactOp is one mutation extracted from a dialogue. When DeviceID is empty the
// device is resolved from Clues.
type FactOp struct {
	Op         OpKind   `json:"op"`
	DeviceID   string   `json:"device_id,omitempty"`
	Clues      []string `json:"clues,omitempty"`
	Content    string   `json:"content,omitempty"`
	OldContent string   `json:"old_content,omitempty"`
	Category   string   `json:"category,omitempty"`
}

// Validate checks that the op carries what its kind needs.
func (o FactOp) Validate() error {
	if o.DeviceID == "" && len(o.Clues) == 0 {
		return fmt.Errorf("%s op needs a device_id or clues", o.Op)
	}
	switch o.Op {
	case OpAdd:
		if strings.TrimSpace(o.Content) == "" {
			return fmt.Errorf("add op needs content")
		}
		if _, err := ParseCategory(o.Category); err != nil {
			return err
		}
	case OpUpdate:
		if strings.TrimSpace(o.OldContent) == "" || strings.TrimSpace(o.Content) == "" {
			return fmt.Errorf("update op needs old_content and content")
		}
	case OpDelete:
		if strings.TrimSpace(o.Content) == "" && strings.TrimSpace(o.OldContent) == "" {
			return fmt.Errorf("delete op needs content")
		}
	default:
		return fmt.Errorf("unknown op %q", o.Op)
	}
	// update and delete take an optional category that narrows resolution
	if o.Op != OpAdd && o.Category != "" {
		if _, err := ParseCategory(o.Category); err != nil {
			return err
		}
	}
	return nil
}

// Target returns the text used to resolve the fact an update or delete refers to.
func (o FactOp) Target() string {
	if o.Op == OpDelete && strings.TrimSpace(o.Content) != "" {
		return o.Content
	}
	return o.OldContent
}
