package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/rafaeljc/gefjon/internal/campaign"
	"github.com/rafaeljc/gefjon/internal/cart"
)

// Scenario describes an offline cart: its lines, the catalogue used when the
// engine adds gifts, collection memberships, and the answers to give when a
// campaign asks the shopper to choose a gift.
type Scenario struct {
	Catalog     map[int64]cart.Variant `json:"catalog"`
	Cart        []cart.Line            `json:"cart"`
	Collections map[string][]int64     `json:"collections"`
	Selections  map[string][]int64     `json:"selections"`
}

// readJSON reads a JSON or YAML file and returns it as JSON.
func readJSON(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if json.Valid(raw) {
		return raw, nil
	}

	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	out, err := json.Marshal(jsonCompatible(doc))
	if err != nil {
		return nil, fmt.Errorf("failed to convert %s: %w", path, err)
	}
	return out, nil
}

// jsonCompatible rewrites the map[any]any nodes yaml.v3 produces for
// non-string keys (e.g. catalogue variant ids) into string-keyed maps.
func jsonCompatible(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			t[k] = jsonCompatible(val)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = jsonCompatible(val)
		}
		return out
	case []any:
		for i, val := range t {
			t[i] = jsonCompatible(val)
		}
		return t
	default:
		return v
	}
}

// loadCampaigns reads a campaign document. It returns the raw JSON too, so
// callers can feed it to a campaign.Store.
func loadCampaigns(path string, log *slog.Logger) ([]campaign.Campaign, []byte, error) {
	raw, err := readJSON(path)
	if err != nil {
		return nil, nil, err
	}
	campaigns, err := campaign.ParseDocument(raw, log)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return campaigns, raw, nil
}

func loadScenario(path string) (*Scenario, error) {
	raw, err := readJSON(path)
	if err != nil {
		return nil, err
	}
	var s Scenario
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}
	return &s, nil
}
