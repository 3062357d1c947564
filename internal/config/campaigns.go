package config

import (
	"fmt"
	"strings"
	"time"
)

const (
	// CampaignSourceHTTP reads the campaign document from the storefront.
	CampaignSourceHTTP = "http"
	// CampaignSourcePostgres reads the published metafield document from PostgreSQL.
	CampaignSourcePostgres = "postgres"
)

// CampaignsConfig controls where campaign definitions come from and how long they are cached.
type CampaignsConfig struct {
	Source string `envconfig:"SOURCE" default:"http" validate:"oneof=http postgres"`

	// Path is appended to the storefront base URL when Source is "http".
	Path string `envconfig:"PATH" default:"/apps/gefjon/campaigns"`

	// CacheInterval is the freshness window: the source is read at most once per interval.
	CacheInterval time.Duration `envconfig:"CACHE_INTERVAL" default:"60s" validate:"min=1s"`

	// CacheCapacity bounds the in-memory (L1) cache.
	CacheCapacity int `envconfig:"CACHE_CAPACITY" default:"64" validate:"min=1"`

	// Metafield coordinates used by the postgres source.
	MetafieldNamespace string `envconfig:"METAFIELD_NAMESPACE" default:"gefjon"`
	MetafieldKey       string `envconfig:"METAFIELD_KEY" default:"campaigns"`
}

// Validate checks source specific settings.
func (c *CampaignsConfig) Validate() error {
	switch c.Source {
	case CampaignSourceHTTP:
		if !strings.HasPrefix(c.Path, "/") {
			return fmt.Errorf("campaigns path must start with '/', got %q", c.Path)
		}
	case CampaignSourcePostgres:
		if err := checkToken("metafield namespace", c.MetafieldNamespace); err != nil {
			return err
		}
		if err := checkToken("metafield key", c.MetafieldKey); err != nil {
			return err
		}
	}
	return nil
}
