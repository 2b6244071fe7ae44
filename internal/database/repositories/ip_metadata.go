// MIT License
//
// # Copyright (c) 2026 Kolin
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.
package repositories

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"geolynx/internal/database/models"
)

type IPMetadataRepository interface {
	// Upsert inserts the record or refreshes the stored one for the same IP,
	// counting each call as one lookup.
	Upsert(ctx context.Context, record *models.IPMetadata) error
	FindByIP(ctx context.Context, ip string) (*models.IPMetadata, error)
	// FindAssembledSince returns records assembled after since, newest first.
	FindAssembledSince(ctx context.Context, since time.Time, limit int) ([]*models.IPMetadata, error)
	// DeleteAssembledBefore deletes at most batchSize records assembled before cutoff.
	DeleteAssembledBefore(ctx context.Context, cutoff time.Time, batchSize int) (int64, error)
	Count(ctx context.Context) (int64, error)
}

type ipMetadataRepo struct {
	db *gorm.DB
}

func NewIPMetadataRepository(db *gorm.DB) IPMetadataRepository {
	return &ipMetadataRepo{db: db}
}

func (r *ipMetadataRepo) Upsert(ctx context.Context, record *models.IPMetadata) error {
	if record.FirstSeen.IsZero() {
		record.FirstSeen = record.AssembledAt
	}
	record.LookupCount = 1

	updates := clause.AssignmentColumns([]string{
		"asn", "latitude", "longitude", "zip_code", "city", "state", "country",
		"assembled_at", "updated_at",
	})
	updates = append(updates, clause.Assignment{
		Column: clause.Column{Name: "lookup_count"},
		Value:  gorm.Expr("ip_metadata.lookup_count + 1"),
	})

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "ip_address"}},
		DoUpdates: updates,
	}).Create(record).Error
}

func (r *ipMetadataRepo) FindByIP(ctx context.Context, ip string) (*models.IPMetadata, error) {
	var record models.IPMetadata
	err := r.db.WithContext(ctx).Where("ip_address = ?", ip).First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *ipMetadataRepo) FindAssembledSince(ctx context.Context, since time.Time, limit int) ([]*models.IPMetadata, error) {
	var records []*models.IPMetadata
	err := r.db.WithContext(ctx).
		Where("assembled_at > ?", since).
		Order("assembled_at DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

func (r *ipMetadataRepo) DeleteAssembledBefore(ctx context.Context, cutoff time.Time, batchSize int) (int64, error) {
	// Subquery keeps each delete short so writers are not blocked for long.
	result := r.db.WithContext(ctx).Exec(`
		DELETE FROM ip_metadata
		WHERE id IN (
			SELECT id FROM ip_metadata
			WHERE assembled_at < ?
			LIMIT ?
		)
	`, cutoff, batchSize)
	return result.RowsAffected, result.Error
}

func (r *ipMetadataRepo) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.IPMetadata{}).Count(&count).Error
	return count, err
}
