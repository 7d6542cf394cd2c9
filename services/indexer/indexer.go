package indexer

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"marketchain/core/events"
	"marketchain/native/fees"
	"marketchain/native/marketplace"
)

// ErrDSNRequired is returned when no database location is configured.
var ErrDSNRequired = errors.New("indexer: dsn must be configured")

// ErrNotIndexed is returned when a marketplace has no indexed registration.
var ErrNotIndexed = errors.New("indexer: marketplace not indexed")

// Indexer persists marketplace events into SQL tables. It implements
// events.Emitter so it can be attached to the state processor directly.
type Indexer struct {
	db     *gorm.DB
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	lastErr error
}

// Open connects to dsn and migrates the schema. postgres:// and postgresql://
// DSNs use the postgres driver, anything else is treated as a sqlite path or
// URI.
func Open(dsn string) (*Indexer, error) {
	trimmed := strings.TrimSpace(dsn)
	if trimmed == "" {
		return nil, ErrDSNRequired
	}
	var dialector gorm.Dialector
	if strings.HasPrefix(trimmed, "postgres://") || strings.HasPrefix(trimmed, "postgresql://") {
		dialector = postgres.Open(trimmed)
	} else {
		dialector = sqlite.Open(trimmed)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open index database: %w", err)
	}
	return New(db)
}

// New wraps an existing gorm handle.
func New(db *gorm.DB) (*Indexer, error) {
	if db == nil {
		return nil, fmt.Errorf("indexer: nil database")
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("migrate index: %w", err)
	}
	return &Indexer{db: db, logger: slog.Default(), now: time.Now}, nil
}

// SetLogger overrides the logger used to report write failures.
func (i *Indexer) SetLogger(logger *slog.Logger) {
	if logger != nil {
		i.logger = logger
	}
}

// Close releases the underlying connection pool.
func (i *Indexer) Close() error {
	if i == nil || i.db == nil {
		return nil
	}
	sqlDB, err := i.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Err returns the most recent write failure, if any.
func (i *Indexer) Err() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.lastErr
}

// Emit implements events.Emitter. Events unrelated to marketplaces are
// ignored. Write failures are logged and never reach the caller, since the
// chain state has already been adopted.
func (i *Indexer) Emit(evt events.Event) {
	if i == nil || evt == nil || evt.Event() == nil {
		return
	}
	attrs := evt.Event().Attributes
	var err error
	switch evt.EventType() {
	case marketplace.EventTypeInitialized:
		err = i.recordMarketplace(attrs)
	case marketplace.EventTypeListed:
		err = i.recordListing(attrs)
	case marketplace.EventTypePurchased:
		err = i.recordSale(attrs)
	case marketplace.EventTypeCancelled:
		err = i.closeListing(attrs["listing"], ListingCancelled)
	default:
		return
	}
	if err != nil {
		i.logger.Error("index event", "type", evt.EventType(), "error", err)
	}
	i.mu.Lock()
	i.lastErr = err
	i.mu.Unlock()
}

func (i *Indexer) recordMarketplace(attrs map[string]string) error {
	var fee uint16
	if _, err := fmt.Sscan(attrs["feeBps"], &fee); err != nil {
		return fmt.Errorf("parse feeBps: %w", err)
	}
	row := Marketplace{
		ID:         uuid.New(),
		Address:    attrs["marketplace"],
		Name:       attrs["name"],
		Admin:      attrs["admin"],
		FeeBps:     fee,
		Treasury:   attrs["treasury"],
		RewardMint: attrs["rewardMint"],
		CreatedAt:  i.now().UTC(),
	}
	return i.db.Create(&row).Error
}

func (i *Indexer) recordListing(attrs map[string]string) error {
	now := i.now().UTC()
	row := Listing{
		ID:          uuid.New(),
		Marketplace: attrs["marketplace"],
		Address:     attrs["listing"],
		Maker:       attrs["maker"],
		Asset:       attrs["asset"],
		Vault:       attrs["vault"],
		Price:       attrs["price"],
		Status:      ListingActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return i.db.Create(&row).Error
}

func (i *Indexer) recordSale(attrs map[string]string) error {
	return i.db.Transaction(func(tx *gorm.DB) error {
		row := Sale{
			ID:          uuid.New(),
			Marketplace: attrs["marketplace"],
			Listing:     attrs["listing"],
			Maker:       attrs["maker"],
			Taker:       attrs["taker"],
			Asset:       attrs["asset"],
			Price:       attrs["price"],
			Fee:         attrs["fee"],
			Proceeds:    attrs["proceeds"],
			Reward:      attrs["reward"],
			CreatedAt:   i.now().UTC(),
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		return markListing(tx, attrs["listing"], ListingSold, i.now().UTC())
	})
}

func (i *Indexer) closeListing(listing string, status ListingStatus) error {
	return markListing(i.db, listing, status, i.now().UTC())
}

// markListing moves the active row for the listing address. Listing
// addresses are reused when an asset is relisted, so only ACTIVE rows move.
func markListing(db *gorm.DB, listing string, status ListingStatus, now time.Time) error {
	return db.Model(&Listing{}).
		Where("address = ? AND status = ?", listing, ListingActive).
		Updates(map[string]interface{}{"status": status, "updated_at": now}).Error
}

// MarketplaceByName returns the indexed marketplace row.
func (i *Indexer) MarketplaceByName(name string) (*Marketplace, error) {
	var row Marketplace
	if err := i.db.Where("name = ?", name).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// Sales returns the settled purchases of a marketplace, oldest first.
func (i *Indexer) Sales(mkt [20]byte, limit int) ([]Sale, error) {
	var rows []Sale
	query := i.db.Where("marketplace = ?", hex.EncodeToString(mkt[:])).Order("created_at asc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Listings returns the listing history of a marketplace. An empty status
// returns every row.
func (i *Indexer) Listings(mkt [20]byte, status ListingStatus) ([]Listing, error) {
	var rows []Listing
	query := i.db.Where("marketplace = ?", hex.EncodeToString(mkt[:]))
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.Order("created_at asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// FeeTotals folds every indexed sale of a marketplace into the fee accounting
// of its treasury.
func (i *Indexer) FeeTotals(mkt [20]byte) (fees.Totals, error) {
	var totals fees.Totals
	var row Marketplace
	if err := i.db.Where("address = ?", hex.EncodeToString(mkt[:])).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return totals, ErrNotIndexed
		}
		return totals, err
	}
	treasury, err := decodeAddress(row.Treasury)
	if err != nil {
		return totals, fmt.Errorf("treasury: %w", err)
	}
	totals.Wallet = treasury
	sales, err := i.Sales(mkt, 0)
	if err != nil {
		return totals, err
	}
	for _, sale := range sales {
		result, err := saleResult(sale, treasury)
		if err != nil {
			return totals, fmt.Errorf("sale %s: %w", sale.ID, err)
		}
		if err := totals.Add(result); err != nil {
			return totals, err
		}
	}
	return totals, nil
}

func saleResult(sale Sale, wallet [20]byte) (fees.ApplyResult, error) {
	result := fees.ApplyResult{RouteWallet: wallet}
	var err error
	if result.Gross, err = strconv.ParseUint(sale.Price, 10, 64); err != nil {
		return result, err
	}
	if result.Fee, err = strconv.ParseUint(sale.Fee, 10, 64); err != nil {
		return result, err
	}
	if result.Net, err = strconv.ParseUint(sale.Proceeds, 10, 64); err != nil {
		return result, err
	}
	return result, nil
}

func decodeAddress(value string) ([20]byte, error) {
	var out [20]byte
	raw, err := hex.DecodeString(value)
	if err != nil {
		return out, err
	}
	if len(raw) != len(out) {
		return out, fmt.Errorf("address length %d", len(raw))
	}
	copy(out[:], raw)
	return out, nil
}
