package indexer

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ListingStatus tracks a listing row through its lifecycle.
type ListingStatus string

const (
	ListingActive    ListingStatus = "ACTIVE"
	ListingSold      ListingStatus = "SOLD"
	ListingCancelled ListingStatus = "CANCELLED"
)

// Marketplace mirrors a registered marketplace. Addresses are lower-case hex
// without prefix, as carried by the chain events.
type Marketplace struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Address    string    `gorm:"size:40;uniqueIndex"`
	Name       string    `gorm:"size:32;uniqueIndex"`
	Admin      string    `gorm:"size:40;index"`
	FeeBps     uint16    `gorm:"not null"`
	Treasury   string    `gorm:"size:40"`
	RewardMint string    `gorm:"size:40"`
	CreatedAt  time.Time
}

// Listing records one escrow listing. Amounts are decimal strings so the full
// uint64 range survives every SQL backend.
type Listing struct {
	ID          uuid.UUID     `gorm:"type:uuid;primaryKey"`
	Marketplace string        `gorm:"size:40;index"`
	Address     string        `gorm:"size:40;index"`
	Maker       string        `gorm:"size:40;index"`
	Asset       string        `gorm:"size:40;index"`
	Vault       string        `gorm:"size:40"`
	Price       string        `gorm:"size:20"`
	Status      ListingStatus `gorm:"size:16;index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Sale records a settled purchase.
type Sale struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Marketplace string    `gorm:"size:40;index"`
	Listing     string    `gorm:"size:40"`
	Maker       string    `gorm:"size:40;index"`
	Taker       string    `gorm:"size:40;index"`
	Asset       string    `gorm:"size:40;index"`
	Price       string    `gorm:"size:20"`
	Fee         string    `gorm:"size:20"`
	Proceeds    string    `gorm:"size:20"`
	Reward      string    `gorm:"size:20"`
	CreatedAt   time.Time
}

// AutoMigrate creates or updates the index tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Marketplace{}, &Listing{}, &Sale{})
}
