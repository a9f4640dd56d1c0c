package models

import (
	"time"

	"github.com/google/uuid"
)

// Product is a catalog item as the client caches it after a fetch.
type Product struct {
	ID        uuid.UUID `json:"id"`
	SellerID  uuid.UUID `json:"seller_id"`
	Title     string    `json:"title"`
	Price     float64   `json:"price"`
	Image     string    `json:"image"`
	Category  string    `json:"category"`
	Province  string    `json:"province"`
	Sold      bool      `json:"sold"`
	CreatedAt time.Time `json:"created_at"`
}

// CartLine carries a snapshot of the product at the moment it was added, so
// the cart stays renderable after a restart before the catalog refetch lands.
// Identity is ProductID; duplicate adds bump Quantity.
type CartLine struct {
	ProductID     uuid.UUID `json:"product_id"`
	SnapshotTitle string    `json:"snapshot_title"`
	SnapshotPrice float64   `json:"snapshot_price"`
	SnapshotImage string    `json:"snapshot_image"`
	Quantity      uint      `json:"quantity"`
}

// EntitlementSnapshot holds the server-sourced facts a posting decision is
// derived from. PostCountUsed must come from a live count before gating.
type EntitlementSnapshot struct {
	PostCountUsed  int        `json:"post_count_used"`
	PostLimit      int        `json:"post_limit"`
	UnlimitedUntil *time.Time `json:"unlimited_until,omitempty"`
}

type AuditRecord struct {
	Action    string    `json:"action"`
	Details   string    `json:"details"`
	Timestamp time.Time `json:"timestamp"`
	Actor     string    `json:"actor"`
}
