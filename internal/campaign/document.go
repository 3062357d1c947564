package campaign

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rafaeljc/gefjon/internal/ruleengine"
)

// ErrMalformedDocument is returned when the campaign document is not valid JSON
// of the expected shape.
var ErrMalformedDocument = errors.New("malformed campaign document")

// Tiered goal kinds ("type").
const (
	goalFreeProduct   = "free_product"
	goalOrderDiscount = "order_discount"
	goalFreeShipping  = "free_shipping"
)

// number accepts a JSON number, a numeric string, "" or null.
type number struct {
	decimal.Decimal
	Valid bool
}

func (n *number) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) || bytes.Equal(trimmed, []byte(`""`)) {
		*n = number{}
		return nil
	}
	if err := n.Decimal.UnmarshalJSON(trimmed); err != nil {
		return err
	}
	n.Valid = true
	return nil
}

// count returns the value as a positive count; absent or zero means def.
func (n number) count(field string, def int) (int, error) {
	if !n.Valid || n.IsZero() {
		return def, nil
	}
	if !n.Equal(n.Truncate(0)) || n.IsNegative() {
		return 0, fmt.Errorf("%s must be a positive whole number, got %s", field, n.String())
	}
	return int(n.IntPart()), nil
}

// amount returns the value, absent meaning zero.
func (n number) amount() decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	return n.Decimal
}

// flexID accepts ids published either as strings or as numbers.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or a number: %w", err)
	}
	*f = flexID(n.String())
	return nil
}

type rawDocument struct {
	Campaigns []rawCampaign `json:"campaigns"`
}

type rawCampaign struct {
	ID        flexID            `json:"id"`
	Name      string            `json:"campaignName"`
	Type      string            `json:"campaignType"`
	Status    string            `json:"status"`
	TrackType string            `json:"trackType"`
	Goals     []json.RawMessage `json:"goals"`
}

type rawImage struct {
	URL string `json:"url"`
}

type rawProduct struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	ProductTitle string    `json:"productTitle"`
	Image        *rawImage `json:"image"`
	ProductImage *rawImage `json:"productImage"`
}

type rawCollection struct {
	Handle string `json:"handle"`
}

type rawGoal struct {
	ID   flexID `json:"id"`
	Type string `json:"type"`

	// BXGY
	BXGYMode       string          `json:"bxgyMode"`
	BuyQty         number          `json:"buyQty"`
	BuyProducts    []rawProduct    `json:"buyProducts"`
	BuyCollections []rawCollection `json:"buyCollections"`
	SpendAmount    number          `json:"spendAmount"`
	GetQty         number          `json:"getQty"`
	GetProducts    []rawProduct    `json:"getProducts"`
	DiscountType   string          `json:"discountType"`
	DiscountValue  number          `json:"discountValue"`

	// Tiered
	Target   number       `json:"target"`
	GiftQty  number       `json:"giftQty"`
	Products []rawProduct `json:"products"`
}

// ParseGID extracts the numeric id from a Shopify GID
// ("gid://shopify/ProductVariant/123" → 123). Plain numeric ids are accepted.
func ParseGID(gid string) (int64, error) {
	tail := gid
	if i := strings.LastIndex(gid, "/"); i >= 0 {
		tail = gid[i+1:]
	}
	id, err := strconv.ParseInt(tail, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid product id %q", gid)
	}
	return id, nil
}

// ParseDocument decodes a campaign document and returns the active campaigns
// sorted by id. Campaigns that cannot be compiled are skipped with a warning;
// only a document that is not valid JSON is an error.
func ParseDocument(raw []byte, log *slog.Logger) ([]Campaign, error) {
	if log == nil {
		log = slog.Default()
	}

	var doc rawDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}

	var out []Campaign
	for _, rc := range doc.Campaigns {
		if rc.Status != StatusActive {
			continue
		}

		c, err := compileCampaign(rc, log)
		if err != nil {
			// Fail open: one bad campaign must not hide the others.
			log.Warn("skipping uncompilable campaign",
				slog.String("campaign_id", string(rc.ID)),
				slog.String("type", rc.Type),
				slog.String("error", err.Error()),
			)
			continue
		}
		out = append(out, c)
	}

	SortByID(out)
	return out, nil
}

// SortByID orders campaigns by id, numerically when both ids are numbers.
// The order decides which campaign claims a shared reward first.
func SortByID(campaigns []Campaign) {
	slices.SortStableFunc(campaigns, func(a, b Campaign) int {
		return CompareIDs(a.ID, b.ID)
	})
}

// CompareIDs compares two campaign ids, numerically when both are integers.
func CompareIDs(a, b string) int {
	ai, aErr := strconv.ParseInt(a, 10, 64)
	bi, bErr := strconv.ParseInt(b, 10, 64)
	if aErr == nil && bErr == nil {
		switch {
		case ai < bi:
			return -1
		case ai > bi:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(a, b)
}

func compileCampaign(rc rawCampaign, log *slog.Logger) (Campaign, error) {
	if rc.ID == "" {
		return Campaign{}, fmt.Errorf("campaign id is required")
	}

	c := Campaign{
		ID:    string(rc.ID),
		Name:  rc.Name,
		Type:  Type(rc.Type),
		Track: ruleengine.Track(rc.TrackType),
	}

	for i, rawGoalJSON := range rc.Goals {
		var rg rawGoal
		if err := json.Unmarshal(rawGoalJSON, &rg); err != nil {
			return Campaign{}, fmt.Errorf("goal %d: %w", i, err)
		}

		var (
			g   Goal
			err error
		)
		switch c.Type {
		case TypeBXGY:
			g, err = compileBXGYGoal(rg, log)
		case TypeTiered:
			g, err = compileTieredGoal(rg, rc.TrackType, log)
		default:
			return Campaign{}, fmt.Errorf("unknown campaignType %q", rc.Type)
		}
		if err != nil {
			return Campaign{}, fmt.Errorf("goal %q: %w", string(rg.ID), err)
		}
		if g != nil {
			c.Goals = append(c.Goals, g)
		}
	}

	if c.Type != TypeBXGY && c.Type != TypeTiered {
		return Campaign{}, fmt.Errorf("unknown campaignType %q", rc.Type)
	}
	return c, nil
}

func compileBXGYGoal(rg rawGoal, log *slog.Logger) (Goal, error) {
	buyQty, err := rg.BuyQty.count("buyQty", 1)
	if err != nil {
		return nil, err
	}
	getQty, err := rg.GetQty.count("getQty", 1)
	if err != nil {
		return nil, err
	}

	handles := make([]string, 0, len(rg.BuyCollections))
	for _, col := range rg.BuyCollections {
		if col.Handle != "" {
			handles = append(handles, col.Handle)
		}
	}

	cond, err := ruleengine.CompileBXGY(ruleengine.BXGYParams{
		Mode:        rg.BXGYMode,
		BuyQty:      buyQty,
		BuyVariants: VariantIDs(parseProducts(rg.BuyProducts, log)),
		Handles:     handles,
		SpendAmount: rg.SpendAmount.amount(),
	})
	if err != nil {
		return nil, err
	}

	return BXGYGoal{
		ID:            string(rg.ID),
		Condition:     cond,
		GetQty:        getQty,
		Rewards:       parseProducts(rg.GetProducts, log),
		DiscountType:  rg.DiscountType,
		DiscountValue: rg.DiscountValue.amount(),
	}, nil
}

func compileTieredGoal(rg rawGoal, track string, log *slog.Logger) (Goal, error) {
	cond, err := ruleengine.CompileTiered(track, rg.Target.amount())
	if err != nil {
		return nil, err
	}
	tiered := cond.(ruleengine.TieredCondition)

	switch rg.Type {
	case goalFreeProduct:
		giftQty, err := rg.GiftQty.count("giftQty", 1)
		if err != nil {
			return nil, err
		}
		return FreeProductGoal{
			ID:        string(rg.ID),
			Condition: tiered,
			GiftQty:   giftQty,
			Rewards:   parseProducts(rg.Products, log),
		}, nil
	case goalOrderDiscount:
		return OrderDiscountGoal{
			ID:            string(rg.ID),
			Condition:     tiered,
			DiscountType:  rg.DiscountType,
			DiscountValue: rg.DiscountValue.amount(),
		}, nil
	case goalFreeShipping:
		return FreeShippingGoal{ID: string(rg.ID), Condition: tiered}, nil
	default:
		log.Warn("skipping unknown tiered goal type",
			slog.String("goal_id", string(rg.ID)),
			slog.String("type", rg.Type),
		)
		return nil, nil
	}
}

// parseProducts keeps the products whose id resolves to a variant id.
func parseProducts(raw []rawProduct, log *slog.Logger) []Product {
	out := make([]Product, 0, len(raw))
	for _, rp := range raw {
		id, err := ParseGID(rp.ID)
		if err != nil {
			log.Warn("dropping product with invalid id", slog.String("id", rp.ID))
			continue
		}

		p := Product{GID: rp.ID, VariantID: id, Title: rp.ProductTitle}
		if p.Title == "" {
			p.Title = rp.Title
		}
		switch {
		case rp.Image != nil && rp.Image.URL != "":
			p.ImageURL = rp.Image.URL
		case rp.ProductImage != nil:
			p.ImageURL = rp.ProductImage.URL
		}
		out = append(out, p)
	}
	return out
}
