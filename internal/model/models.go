// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"fmt"
	"strconv"
)

// =============================================================================
// MODEL INFO TYPE
// =============================================================================

// Pricing is the upstream per-token price, kept as the decimal strings the API
// returns so no precision is lost.
type Pricing struct {
	Prompt     string `json:"prompt"`
	Completion string `json:"completion"`
}

// ModelInfo is one entry of the upstream model catalog.
type ModelInfo struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Pricing     *Pricing `json:"pricing,omitempty"`
}

// DisplayName returns Name, falling back to ID.
func (m ModelInfo) DisplayName() string {
	if m.Name != "" {
		return m.Name
	}
	return m.ID
}

// IsFree reports whether both prompt and completion are priced at zero.
func (m ModelInfo) IsFree() bool {
	if m.Pricing == nil {
		return false
	}
	p, err1 := strconv.ParseFloat(m.Pricing.Prompt, 64)
	c, err2 := strconv.ParseFloat(m.Pricing.Completion, 64)
	return err1 == nil && err2 == nil && p == 0 && c == 0
}

// CostString returns a human-readable price per million tokens.
func (m ModelInfo) CostString() string {
	if m.Pricing == nil {
		return "n/a"
	}
	if m.IsFree() {
		return "Free"
	}
	p, err1 := strconv.ParseFloat(m.Pricing.Prompt, 64)
	c, err2 := strconv.ParseFloat(m.Pricing.Completion, 64)
	if err1 != nil || err2 != nil {
		return "n/a"
	}
	return fmt.Sprintf("$%.2f / $%.2f per 1M", p*1e6, c*1e6)
}

// FindModel returns the catalog entry with id.
func FindModel(models []ModelInfo, id string) (ModelInfo, bool) {
	for _, m := range models {
		if m.ID == id {
			return m, true
		}
	}
	return ModelInfo{}, false
}
