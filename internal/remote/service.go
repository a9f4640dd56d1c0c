package remote

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/baraholka/storefront/internal/models"
)

var (
	// ErrUnavailable wraps transport-level failures so callers can fail
	// closed on indeterminate answers.
	ErrUnavailable = errors.New("data service unavailable")
	ErrNotFound    = errors.New("not found")
)

// Listing is the server-side record behind a catalog product.
type Listing struct {
	ID          uuid.UUID `gorm:"primaryKey"     json:"id"`
	SellerID    uuid.UUID `gorm:"index;not null" json:"seller_id"`
	Title       string    `gorm:"not null"       json:"title"`
	Description string    `json:"description"`
	Price       float64   `gorm:"not null"       json:"price"`
	Image       string    `json:"image"`
	Category    string    `gorm:"index"          json:"category"`
	Province    string    `json:"province"`
	Sold        bool      `gorm:"default:false"  json:"sold"`
	CreatedAt   time.Time `json:"created_at"`
}

func (l *Listing) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

func (Listing) TableName() string { return "listings" }

// Profile carries the entitlement facts for one user.
type Profile struct {
	UserID         uuid.UUID  `gorm:"primaryKey"  json:"user_id"`
	PostLimit      int        `gorm:"default:6"   json:"post_limit"`
	UnlimitedUntil *time.Time `json:"unlimited_until"`
}

func (Profile) TableName() string { return "profiles" }

// ListingUpdate is a partial patch; nil fields are left untouched.
type ListingUpdate struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price"`
	Image       *string  `json:"image"`
	Category    *string  `json:"category"`
	Province    *string  `json:"province"`
}

// DataService is the injected remote collaborator. The engine never talks to
// the backing store directly, so tests run against a fake implementation.
type DataService interface {
	FetchProfile(ctx context.Context, userID uuid.UUID) (models.EntitlementSnapshot, error)
	CountListings(ctx context.Context, userID uuid.UUID) (int, error)
	FetchCatalog(ctx context.Context) ([]models.Product, error)

	CreateListing(ctx context.Context, listing *Listing) error
	UpdateListing(ctx context.Context, id, sellerID uuid.UUID, upd ListingUpdate) (*Listing, error)
	DeleteListing(ctx context.Context, id, sellerID uuid.UUID) error
	MarkSold(ctx context.Context, id, sellerID uuid.UUID) error

	GrantQuota(ctx context.Context, userID uuid.UUID, delta int) error
	GrantUnlimitedUntil(ctx context.Context, userID uuid.UUID, until time.Time) error
	DeleteAccount(ctx context.Context, userID uuid.UUID) error
}
