// ABOUTME: Category digests summarize what a device can do, report, or is used for
// ABOUTME: Unique non-empty fact contents in insertion order, optionally joined
package core

import (
	"context"
	"errors"
	"strings"

	"github.com/harper/homefacts/internal/models"
)

// DigestSeparator joins contents in CombinedContent
const DigestSeparator = "; "

// FactsByCategory returns the distinct non-empty contents of one category.
// A missing device yields an empty list.
func (e *Engine) FactsByCategory(ctx context.Context, deviceID string, category models.Category) ([]string, error) {
	if !category.Valid() {
		return nil, invalidf("unknown category %q", category)
	}
	facts, err := e.DeviceFacts(ctx, deviceID, category)
	if errors.Is(err, ErrNotFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(facts))
	out := make([]string, 0, len(facts))
	for _, f := range facts {
		c := strings.TrimSpace(f.Content)
		if c == "" {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out, nil
}

// CombinedContent joins FactsByCategory with DigestSeparator. Missing devices give "".
func (e *Engine) CombinedContent(ctx context.Context, deviceID string, category models.Category) (string, error) {
	contents, err := e.FactsByCategory(ctx, deviceID, category)
	if err != nil {
		return "", err
	}
	return strings.Join(contents, DigestSeparator), nil
}
