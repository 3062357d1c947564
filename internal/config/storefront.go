package config

import (
	"fmt"
	"time"
)

// StorefrontConfig points the engine at the authoritative cart service and the
// collection catalogue it pages through.
type StorefrontConfig struct {
	BaseURL string        `envconfig:"BASE_URL" default:"http://localhost:3000"`
	Timeout time.Duration `envconfig:"TIMEOUT" default:"10s" validate:"gt=0"`

	// CollectionPageSize is the "limit" sent on each collection page request.
	// A page shorter than this ends the paging loop.
	CollectionPageSize int `envconfig:"COLLECTION_PAGE_SIZE" default:"250" validate:"min=1,max=250"`

	// CollectionMaxPages bounds the paging loop for very large (or misbehaving) catalogues.
	CollectionMaxPages int `envconfig:"COLLECTION_MAX_PAGES" default:"40" validate:"min=1"`

	// CartToken binds the engine to an existing cart through the storefront's
	// "cart" session cookie. Empty means the storefront assigns one on first contact.
	CartToken string `envconfig:"CART_TOKEN"`
}

// Validate checks the storefront base URL and the cart token.
func (c *StorefrontConfig) Validate() error {
	if _, err := parseURL(c.BaseURL, "http", "https"); err != nil {
		return fmt.Errorf("invalid storefront base URL: %w", err)
	}
	if c.CartToken != "" {
		if err := checkToken("storefront cart token", c.CartToken); err != nil {
			return err
		}
	}
	return nil
}
