// Package cart models the storefront cart as the engine sees it: read-only
// snapshots fetched from the authoritative cart service, and the add/change
// mutations the engine sends back.
package cart

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"maps"
	"sort"
	"strconv"

	"github.com/spaolacci/murmur3"
)

// Line property names understood by the storefront theme and the checkout function.
const (
	PropFreeGift       = "isFreeGift"
	PropBXGYGift       = "isBXGYGift"
	PropBXGYCampaignID = "bxgyCampaignId"
)

// Properties is the line item property bag. The gift markers are lifted into
// typed fields; anything else the storefront attached is preserved in Extra.
type Properties struct {
	FreeGift       bool
	BXGYGift       bool
	BXGYCampaignID string
	Extra          map[string]string
}

// IsGift reports whether the line was added by the engine as a reward.
func (p Properties) IsGift() bool {
	return p.FreeGift || p.BXGYGift
}

// MarshalJSON flattens the properties back into the storefront's string map.
func (p Properties) MarshalJSON() ([]byte, error) {
	out := make(map[string]string, len(p.Extra)+3)
	maps.Copy(out, p.Extra)
	if p.FreeGift {
		out[PropFreeGift] = "true"
	}
	if p.BXGYGift {
		out[PropBXGYGift] = "true"
	}
	if p.BXGYCampaignID != "" {
		out[PropBXGYCampaignID] = p.BXGYCampaignID
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts null, and values of any JSON type (themes are not strict about strings).
func (p *Properties) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("invalid line properties: %w", err)
	}

	*p = Properties{}
	for k, v := range raw {
		s := propertyString(v)
		switch k {
		case PropFreeGift:
			p.FreeGift = truthy(s)
		case PropBXGYGift:
			p.BXGYGift = truthy(s)
		case PropBXGYCampaignID:
			p.BXGYCampaignID = s
		default:
			if p.Extra == nil {
				p.Extra = make(map[string]string)
			}
			p.Extra[k] = s
		}
	}
	return nil
}

func propertyString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}

// truthy mirrors how the storefront theme reads markers: any non-empty value
// other than an explicit false counts.
func truthy(s string) bool {
	return s != "" && s != "false" && s != "0"
}

// Line is one cart entry. Prices are in minor currency units.
type Line struct {
	Key            string     `json:"key"`
	VariantID      int64      `json:"variant_id"`
	ProductID      int64      `json:"product_id"`
	Title          string     `json:"title,omitempty"`
	Quantity       int        `json:"quantity"`
	UnitPrice      int64      `json:"price"`
	FinalLinePrice int64      `json:"final_line_price"`
	Properties     Properties `json:"properties"`
}

// IsGift reports whether the line is a reward line of either family.
func (l Line) IsGift() bool {
	return l.Properties.IsGift()
}

// OwnedBy reports whether the line is a BXGY gift tagged with campaignID.
func (l Line) OwnedBy(campaignID string) bool {
	return l.Properties.BXGYGift && l.Properties.BXGYCampaignID == campaignID
}

// Snapshot is an immutable view of the cart at fetch time.
// It is shared between coalesced readers and must not be modified.
type Snapshot struct {
	Token string `json:"token"`
	Lines []Line `json:"items"`
}

// NonGiftLines returns the lines that count toward campaign conditions.
func (s *Snapshot) NonGiftLines() []Line {
	return s.filter(func(l Line) bool { return !l.IsGift() })
}

// GiftLines returns every reward line, whatever family added it.
func (s *Snapshot) GiftLines() []Line {
	return s.filter(Line.IsGift)
}

// BXGYGiftLines returns the BXGY gift lines that carry an owning campaign id.
func (s *Snapshot) BXGYGiftLines() []Line {
	return s.filter(func(l Line) bool {
		return l.Properties.BXGYGift && l.Properties.BXGYCampaignID != ""
	})
}

// OwnedBy returns the BXGY gift lines tagged with campaignID.
func (s *Snapshot) OwnedBy(campaignID string) []Line {
	return s.filter(func(l Line) bool { return l.OwnedBy(campaignID) })
}

// FreeGiftLines returns the tiered (untagged) free gift lines.
func (s *Snapshot) FreeGiftLines() []Line {
	return s.filter(func(l Line) bool { return l.Properties.FreeGift })
}

// Line looks a line up by key.
func (s *Snapshot) Line(key string) (Line, bool) {
	for _, l := range s.Lines {
		if l.Key == key {
			return l, true
		}
	}
	return Line{}, false
}

// Fingerprint hashes (key, variant, quantity) of every line, order independent.
// Two snapshots with the same fingerprint hold the same lines.
func (s *Snapshot) Fingerprint() string {
	if s == nil || len(s.Lines) == 0 {
		return "empty"
	}

	keys := make([]string, 0, len(s.Lines))
	for _, l := range s.Lines {
		keys = append(keys, fmt.Sprintf("%s|%d|%d", l.Key, l.VariantID, l.Quantity))
	}
	sort.Strings(keys)

	h := murmur3.New64()
	for _, k := range keys {
		_, _ = h.Write([]byte(k))
		_, _ = h.Write([]byte{0})
	}

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], h.Sum64())
	return fmt.Sprintf("%x", buf)
}

func (s *Snapshot) filter(keep func(Line) bool) []Line {
	if s == nil {
		return nil
	}
	var out []Line
	for _, l := range s.Lines {
		if keep(l) {
			out = append(out, l)
		}
	}
	return out
}
