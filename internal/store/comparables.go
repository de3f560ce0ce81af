package store

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// ReplaceComparables atomically swaps the comparables table with the provided slice.
func (d *Database) ReplaceComparables(rows []Comparable) error {
	if d == nil {
		return errors.New("database is nil")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&Comparable{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		// SQLite caps bound variables at 999 per statement.
		const batchSize = 100
		for start := 0; start < len(rows); start += batchSize {
			end := start + batchSize
			if end > len(rows) {
				end = len(rows)
			}
			if err := tx.CreateInBatches(rows[start:end], batchSize).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// FindComparables returns peers for a sector, narrowed by stage and geo when
// given. Matching is case-insensitive.
func (d *Database) FindComparables(sector, stage, geo string, limit int) ([]Comparable, error) {
	if d == nil {
		return nil, errors.New("database is nil")
	}
	query := d.gorm.Model(&Comparable{})
	if v := strings.TrimSpace(sector); v != "" {
		query = query.Where("LOWER(sector) = ?", strings.ToLower(v))
	}
	if v := strings.TrimSpace(stage); v != "" {
		query = query.Where("LOWER(stage) = ?", strings.ToLower(v))
	}
	if v := strings.TrimSpace(geo); v != "" {
		query = query.Where("LOWER(geo) = ?", strings.ToLower(v))
	}
	query = query.Order("id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []Comparable
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find comparables: %w", err)
	}
	return rows, nil
}

// CountComparables returns the number of stored comparables.
func (d *Database) CountComparables() (int64, error) {
	var count int64
	if err := d.gorm.Model(&Comparable{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
