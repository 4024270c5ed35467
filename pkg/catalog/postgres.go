package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// productRow maps the products table.
type productRow struct {
	ID    int64           `gorm:"column:id;primaryKey"`
	Name  string          `gorm:"column:name;not null"`
	Price decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
}

func (productRow) TableName() string { return "products" }

// barcodeRow maps the barcodes table.
type barcodeRow struct {
	Barcode   string `gorm:"column:barcode;primaryKey"`
	ProductID int64  `gorm:"column:product_id;not null;index"`
}

func (barcodeRow) TableName() string { return "barcodes" }

// PostgresSource reads the catalog from the products and barcodes tables.
type PostgresSource struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewPostgres opens a connection pool for the given DSN.
func NewPostgres(dsn string, log *slog.Logger) (*PostgresSource, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("catalog: open postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("catalog: postgres pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(4)
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return NewPostgresFromDB(db, log), nil
}

// NewPostgresFromDB wraps an existing gorm handle.
func NewPostgresFromDB(db *gorm.DB, log *slog.Logger) *PostgresSource {
	if log == nil {
		log = slog.Default()
	}
	return &PostgresSource{
		db:     db,
		logger: log.With("component", "catalog.postgres"),
	}
}

// Fetch loads every product and barcode.
func (s *PostgresSource) Fetch(ctx context.Context) (*Snapshot, error) {
	var products []productRow
	if err := s.db.WithContext(ctx).Find(&products).Error; err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}

	var barcodes []barcodeRow
	if err := s.db.WithContext(ctx).Find(&barcodes).Error; err != nil {
		return nil, fmt.Errorf("load barcodes: %w", err)
	}

	list := make([]Product, len(products))
	for i, p := range products {
		list[i] = Product{ID: p.ID, Name: p.Name, Price: p.Price}
	}
	index := make(map[string]int64, len(barcodes))
	for _, b := range barcodes {
		index[b.Barcode] = b.ProductID
	}

	s.logger.Debug("catalog fetched", "products", len(list), "barcodes", len(index))
	return NewSnapshot(list, index), nil
}

// Migrate creates the catalog tables if they do not exist.
func (s *PostgresSource) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&productRow{}, &barcodeRow{})
}

// Upsert writes a product and its barcodes. Used for seeding.
func (s *PostgresSource) Upsert(ctx context.Context, p Product, barcodes ...string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := productRow{ID: p.ID, Name: p.Name, Price: p.Price}
		if err := tx.Save(&row).Error; err != nil {
			return fmt.Errorf("save product %d: %w", p.ID, err)
		}
		for _, code := range barcodes {
			if err := tx.Save(&barcodeRow{Barcode: code, ProductID: p.ID}).Error; err != nil {
				return fmt.Errorf("save barcode %s: %w", code, err)
			}
		}
		return nil
	})
}

// Close releases the connection pool.
func (s *PostgresSource) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
