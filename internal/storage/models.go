package storage

import (
	"time"
)

// ObservationFilter narrows observation queries. Zero values are ignored.
type ObservationFilter struct {
	ProductID string
	Country   string
	Sizes     []string
	Gender    string
	Tiers     []string
	Since     time.Time
	Until     time.Time
	Limit     int
	// Newest orders by descending observation time.
	Newest bool
}

// SentDigest records a product included in a delivered digest.
type SentDigest struct {
	ProductID string
	Country   string
	SentAt    time.Time
}

// BlockedProduct is the persisted form of a blocklist rule.
type BlockedProduct struct {
	ProductID  string
	Country    string
	BlockedAll bool
	Colors     []string
	Sizes      []string
}
