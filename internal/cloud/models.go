// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/jeranaias/chatflow/internal/model"
)

// Catalog is the set of models usable with one credential.
type Catalog struct {
	// Models in upstream order, filtered to the allow-list when one is set.
	Models []model.ModelInfo

	// Missing lists allow-list ids the upstream catalog did not contain.
	Missing []string
}

// modelsResponse is the internal response structure for listing models.
type modelsResponse struct {
	Data []struct {
		ID          string         `json:"id"`
		Name        string         `json:"name"`
		Description string         `json:"description"`
		Pricing     *model.Pricing `json:"pricing"`
	} `json:"data"`
}

// FetchAvailableModels retrieves the model catalog for credential. With a
// non-empty allowList only models whose id is listed are kept, in catalog
// order; listed ids the catalog lacks are reported in Catalog.Missing and
// logged, never returned as an error.
func (c *OpenRouterClient) FetchAvailableModels(ctx context.Context, credential string, allowList []string) (Catalog, error) {
	if credential == "" {
		return Catalog{}, ErrNoCredential
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return Catalog{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.do(req, credential)
	if err != nil {
		return Catalog{}, err
	}
	defer resp.Body.Close()

	body, err := readResponse(resp)
	if err != nil {
		return Catalog{}, err
	}
	if !isSuccess(resp.StatusCode) {
		return Catalog{}, handleErrorResponse(resp.StatusCode, body)
	}

	var parsed modelsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Catalog{}, fmt.Errorf("failed to parse models: %w", err)
	}

	all := make([]model.ModelInfo, 0, len(parsed.Data))
	for _, m := range parsed.Data {
		name := m.Name
		if name == "" {
			name = m.ID
		}
		all = append(all, model.ModelInfo{
			ID:          m.ID,
			Name:        name,
			Description: m.Description,
			Pricing:     m.Pricing,
		})
	}

	catalog := filterCatalog(all, allowList)
	if len(catalog.Missing) > 0 {
		c.logger.Warn("configured models not found in catalog",
			"missing", catalog.Missing, "key", KeyFingerprint(credential))
	}
	return catalog, nil
}

// filterCatalog keeps the models named in allowList.
func filterCatalog(all []model.ModelInfo, allowList []string) Catalog {
	if len(allowList) == 0 {
		return Catalog{Models: all}
	}

	allowed := make(map[string]bool, len(allowList))
	for _, id := range allowList {
		allowed[id] = true
	}

	found := make(map[string]bool)
	out := Catalog{Models: []model.ModelInfo{}}
	for _, m := range all {
		if allowed[m.ID] {
			out.Models = append(out.Models, m)
			found[m.ID] = true
		}
	}
	for _, id := range allowList {
		if !found[id] {
			out.Missing = append(out.Missing, id)
		}
	}
	return out
}

// ToChatMessages converts persisted messages to the wire format.
func ToChatMessages(msgs []model.Message) []ChatMessage {
	out := make([]ChatMessage, len(msgs))
	for i, m := range msgs {
		out[i] = ChatMessage{Role: string(m.Role), Content: m.Content}
	}
	return out
}
