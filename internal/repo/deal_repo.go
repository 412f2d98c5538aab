// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the deal
// catalog, including loading a JSON seed file for local/mock mode.
package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-deals-backend/internal/domain"
)

// GetDeal fetches a single deal by id, or ErrNotFound.
func GetDeal(ctx context.Context, db *gorm.DB, id string) (*domain.Deal, error) {
	var d domain.Deal
	if err := db.WithContext(ctx).Where("id = ?", id).First(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

// ListDealsPage returns a page of deals ordered by title. An empty kind
// lists every kind.
func ListDealsPage(ctx context.Context, db *gorm.DB, kind string, offset, limit int) ([]domain.Deal, error) {
	var out []domain.Deal
	q := db.WithContext(ctx)
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}
	err := q.Order("title asc").Order("id asc").Offset(offset).Limit(limit).Find(&out).Error
	return out, err
}

// CountDeals returns the number of deals of the given kind (all kinds if empty).
func CountDeals(ctx context.Context, db *gorm.DB, kind string) (int64, error) {
	var total int64
	q := db.WithContext(ctx).Model(&domain.Deal{})
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}
	err := q.Count(&total).Error
	return total, err
}

// ListAllDeals returns the full catalog. Used to build the search index.
func ListAllDeals(ctx context.Context, db *gorm.DB) ([]domain.Deal, error) {
	var out []domain.Deal
	err := db.WithContext(ctx).Order("id asc").Find(&out).Error
	return out, err
}

// UpsertDeals inserts deals, replacing the display fields of rows whose id
// already exists.
func UpsertDeals(ctx context.Context, db *gorm.DB, deals []domain.Deal) error {
	if len(deals) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for i := range deals {
		if deals[i].ID == "" {
			deals[i].ID = uuid.NewString()
		}
		if deals[i].CreatedAt.IsZero() {
			deals[i].CreatedAt = now
		}
		deals[i].UpdatedAt = now
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"kind", "title", "brand_name", "store_name", "description",
				"discount_value", "coupon_code", "price_credits", "valid_days", "updated_at",
			}),
		}).
		Create(&deals).Error
}

// LoadDealsFile reads a JSON array of deals from path and validates each entry.
func LoadDealsFile(path string) ([]domain.Deal, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read deals seed: %w", err)
	}
	var deals []domain.Deal
	if err := json.Unmarshal(raw, &deals); err != nil {
		return nil, fmt.Errorf("parse deals seed %s: %w", path, err)
	}
	for i, d := range deals {
		if strings.TrimSpace(d.Title) == "" || strings.TrimSpace(d.DiscountValue) == "" {
			return nil, fmt.Errorf("deals seed entry %d: title and discount_value are required", i)
		}
		if d.Kind != domain.DealKindBrand && d.Kind != domain.DealKindDiscount {
			return nil, fmt.Errorf("deals seed entry %d: unknown kind %q", i, d.Kind)
		}
	}
	return deals, nil
}

// SeedDeals loads path and upserts its deals, returning how many were applied.
func SeedDeals(ctx context.Context, db *gorm.DB, path string) (int, error) {
	deals, err := LoadDealsFile(path)
	if err != nil {
		return 0, err
	}
	if err := UpsertDeals(ctx, db, deals); err != nil {
		return 0, fmt.Errorf("upsert deals: %w", err)
	}
	return len(deals), nil
}
