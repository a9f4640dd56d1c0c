package remote

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/baraholka/storefront/internal/models"
)

// GormService implements DataService against the marketplace database.
// DefaultLimit seeds the post limit when a first grant creates the profile
// row; zero falls back to the standard limit of 6.
type GormService struct {
	DB           *gorm.DB
	DefaultLimit int
}

func (s *GormService) baseLimit() int {
	if s.DefaultLimit > 0 {
		return s.DefaultLimit
	}
	return 6
}

func configurePool(sqlDB *sql.DB) {
	const (
		maxOpenConns    = 20
		maxIdleConns    = 10
		connMaxLifetime = 30 * time.Minute
		connMaxIdleTime = 5 * time.Minute
	)

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)
}

func Open(ctx context.Context, dsn string) (*GormService, error) {
	if dsn == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		PrepareStmt: true,
		NowFunc:     func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("unwrap sql.DB: %w", err)
	}
	configurePool(sqlDB)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := db.AutoMigrate(&Listing{}, &Profile{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &GormService{DB: db}, nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
}

func (s *GormService) FetchProfile(ctx context.Context, userID uuid.UUID) (models.EntitlementSnapshot, error) {
	var p Profile
	err := s.DB.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// no profile row yet: defaults apply
		return models.EntitlementSnapshot{PostLimit: 0}, nil
	}
	if err != nil {
		return models.EntitlementSnapshot{}, unavailable("fetch profile", err)
	}
	return models.EntitlementSnapshot{
		PostLimit:      p.PostLimit,
		UnlimitedUntil: p.UnlimitedUntil,
	}, nil
}

func (s *GormService) CountListings(ctx context.Context, userID uuid.UUID) (int, error) {
	var total int64
	err := s.DB.WithContext(ctx).Model(&Listing{}).Where("seller_id = ?", userID).Count(&total).Error
	if err != nil {
		return 0, unavailable("count listings", err)
	}
	return int(total), nil
}

func (s *GormService) FetchCatalog(ctx context.Context) ([]models.Product, error) {
	var listings []Listing
	err := s.DB.WithContext(ctx).Order("created_at DESC").Find(&listings).Error
	if err != nil {
		return nil, unavailable("fetch catalog", err)
	}

	products := make([]models.Product, 0, len(listings))
	for _, l := range listings {
		products = append(products, models.Product{
			ID:        l.ID,
			SellerID:  l.SellerID,
			Title:     l.Title,
			Price:     l.Price,
			Image:     l.Image,
			Category:  l.Category,
			Province:  l.Province,
			Sold:      l.Sold,
			CreatedAt: l.CreatedAt,
		})
	}
	return products, nil
}

func (s *GormService) CreateListing(ctx context.Context, listing *Listing) error {
	if err := s.DB.WithContext(ctx).Create(listing).Error; err != nil {
		return unavailable("create listing", err)
	}
	return nil
}

func (s *GormService) UpdateListing(ctx context.Context, id, sellerID uuid.UUID, upd ListingUpdate) (*Listing, error) {
	patch := map[string]any{}
	if upd.Title != nil {
		patch["title"] = *upd.Title
	}
	if upd.Description != nil {
		patch["description"] = *upd.Description
	}
	if upd.Price != nil {
		patch["price"] = *upd.Price
	}
	if upd.Image != nil {
		patch["image"] = *upd.Image
	}
	if upd.Category != nil {
		patch["category"] = *upd.Category
	}
	if upd.Province != nil {
		patch["province"] = *upd.Province
	}

	var listing Listing
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND seller_id = ?", id, sellerID).First(&listing).Error; err != nil {
			return err
		}
		if len(patch) == 0 {
			return nil
		}
		if err := tx.Model(&listing).Updates(patch).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).First(&listing).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("listing %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, unavailable("update listing", err)
	}
	return &listing, nil
}

func (s *GormService) DeleteListing(ctx context.Context, id, sellerID uuid.UUID) error {
	res := s.DB.WithContext(ctx).Where("id = ? AND seller_id = ?", id, sellerID).Delete(&Listing{})
	if res.Error != nil {
		return unavailable("delete listing", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("listing %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *GormService) MarkSold(ctx context.Context, id, sellerID uuid.UUID) error {
	res := s.DB.WithContext(ctx).Model(&Listing{}).
		Where("id = ? AND seller_id = ?", id, sellerID).
		Update("sold", true)
	if res.Error != nil {
		return unavailable("mark sold", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("listing %s: %w", id, ErrNotFound)
	}
	return nil
}

// GrantQuota raises the user's post limit by delta, creating the profile row
// on first grant.
func (s *GormService) GrantQuota(ctx context.Context, userID uuid.UUID, delta int) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Profile{}).
			Where("user_id = ?", userID).
			Update("post_limit", gorm.Expr("post_limit + ?", delta))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}
		return tx.Create(&Profile{UserID: userID, PostLimit: s.baseLimit() + delta}).Error
	})
	if err != nil {
		return unavailable("grant quota", err)
	}
	return nil
}

func (s *GormService) GrantUnlimitedUntil(ctx context.Context, userID uuid.UUID, until time.Time) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Profile{}).
			Where("user_id = ?", userID).
			Update("unlimited_until", until)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}
		return tx.Create(&Profile{UserID: userID, PostLimit: s.baseLimit(), UnlimitedUntil: &until}).Error
	})
	if err != nil {
		return unavailable("grant unlimited", err)
	}
	return nil
}

func (s *GormService) DeleteAccount(ctx context.Context, userID uuid.UUID) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("seller_id = ?", userID).Delete(&Listing{}).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ?", userID).Delete(&Profile{}).Error
	})
	if err != nil {
		return unavailable("delete account", err)
	}
	return nil
}
