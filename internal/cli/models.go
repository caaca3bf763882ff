// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jeranaias/chatflow/internal/cloud"
	"github.com/jeranaias/chatflow/internal/config"
	"github.com/jeranaias/chatflow/internal/model"
)

var (
	modelsKey  string
	modelsFree bool
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models available to each API key",
	Long: `List the models available to each configured API key.

Catalogs are fetched in parallel. When VITE_MODEL_<n> entries are set only
those models are shown, and allow-listed ids the upstream catalog lacks are
reported.`,
	Args: cobra.NoArgs,
	RunE: runModels,
}

func init() {
	modelsCmd.Flags().StringVarP(&modelsKey, "key", "k", "", "only this API key")
	modelsCmd.Flags().BoolVar(&modelsFree, "free", false, "only models with zero pricing")
}

// keyCatalog is the catalog fetched for one key.
type keyCatalog struct {
	Key     config.APIKey
	Catalog cloud.Catalog
	Err     error
}

// fetchCatalogs fetches the catalog of every key concurrently. A failing key
// is reported in its entry and does not cancel the others.
func fetchCatalogs(ctx context.Context, client *cloud.OpenRouterClient, keys []config.APIKey, allowList []string) []keyCatalog {
	results := make([]keyCatalog, len(keys))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, k := range keys {
		i, k := i, k
		g.Go(func() error {
			cat, err := client.FetchAvailableModels(ctx, k.Key, allowList)
			results[i] = keyCatalog{Key: k, Catalog: cat, Err: err}
			if err != nil {
				logger.Warn("model catalog fetch failed", "key", k.String(), "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func runModels(cmd *cobra.Command, args []string) error {
	keys := creds.Keys
	if modelsKey != "" {
		k, err := creds.Key(modelsKey)
		if err != nil {
			return err
		}
		keys = []config.APIKey{k}
	}
	if len(keys) == 0 {
		return config.ErrNoKeys
	}

	results := fetchCatalogs(cmd.Context(), newClient(), keys, creds.Models)
	out := cmd.OutOrStdout()
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
		printCatalog(out, r, modelsFree)
	}
	if failed == len(results) {
		return fmt.Errorf("no model catalog could be fetched")
	}
	return nil
}

func printCatalog(w io.Writer, r keyCatalog, freeOnly bool) {
	fmt.Fprintln(w, TitleStyle.Render(r.Key.Name)+" "+DimStyle.Render(cloud.KeyFingerprint(r.Key.Key)))
	if r.Err != nil {
		fmt.Fprintf(w, "  %s %v\n\n", RenderStatus("fail"), r.Err)
		return
	}

	width := GetTerminalWidth()
	idW := width / 2
	shown := 0
	for _, m := range r.Catalog.Models {
		if freeOnly && !m.IsFree() {
			continue
		}
		shown++
		fmt.Fprintf(w, "  %s %s %s\n",
			InfoStyle.Render(fitCell(m.ID, idW)),
			fitCell(m.DisplayName(), width-idW-18),
			DimStyle.Render(m.CostString()))
	}
	if shown == 0 {
		fmt.Fprintln(w, "  No models.")
	}
	if len(r.Catalog.Missing) > 0 {
		fmt.Fprintf(w, "  %s not in catalog: %s\n",
			RenderStatus("warn"), strings.Join(r.Catalog.Missing, ", "))
	}
	fmt.Fprintln(w)
}

// catalogIndex maps model ids to their info across every fetched catalog.
func catalogIndex(results []keyCatalog) map[string]model.ModelInfo {
	idx := make(map[string]model.ModelInfo)
	for _, r := range results {
		for _, m := range r.Catalog.Models {
			if _, ok := idx[m.ID]; !ok {
				idx[m.ID] = m
			}
		}
	}
	return idx
}
