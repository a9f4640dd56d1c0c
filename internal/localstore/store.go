package localstore

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Logical keys owned exclusively by this engine. Nothing else in the
// application may write to them.
const (
	KeyCart       = "cart-collection"
	KeyFavorites  = "favorite-id-set"
	KeyLastViewed = "last-viewed-product"
	KeyTheme      = "theme-preference"
)

type entry struct {
	Key       string `gorm:"primaryKey"`
	Payload   []byte `gorm:"not null"`
	UpdatedAt time.Time
}

func (entry) TableName() string { return "collections" }

// Store is a durable key-value echo of the in-memory collections. Load never
// fails: a missing key or a payload that does not deserialize is treated as
// first run, not as an error.
type Store struct {
	db  *gorm.DB
	log *slog.Logger
}

func Open(path string, l *slog.Logger) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}
	if err := db.AutoMigrate(&entry{}); err != nil {
		return nil, fmt.Errorf("migrate local store: %w", err)
	}
	if l == nil {
		l = slog.Default()
	}
	return &Store{db: db, log: l}, nil
}

// Load fills dest from the payload under key and reports whether it did.
// Callers pre-fill dest with their fallback; on a miss dest is left alone.
// A corrupt payload is dropped so the next Save starts clean.
func (s *Store) Load(key string, dest any) bool {
	var e entry
	if err := s.db.Where("key = ?", key).First(&e).Error; err != nil {
		return false
	}
	if err := json.Unmarshal(e.Payload, dest); err != nil {
		s.log.Warn("local_store_corrupt", "key", key, "error", err)
		s.db.Where("key = ?", key).Delete(&entry{})
		return false
	}
	return true
}

// Save overwrites the full payload for key. Failures are logged and
// swallowed: durability is best-effort and never surfaces to the caller.
func (s *Store) Save(key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		s.log.Error("local_store_marshal", "key", key, "error", err)
		return
	}
	err = s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		UpdateAll: true,
	}).Create(&entry{Key: key, Payload: data}).Error
	if err != nil {
		s.log.Error("local_store_save", "key", key, "error", err)
	}
}

// Delete removes the payload under key, if any.
func (s *Store) Delete(key string) {
	if err := s.db.Where("key = ?", key).Delete(&entry{}).Error; err != nil {
		s.log.Error("local_store_delete", "key", key, "error", err)
	}
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
