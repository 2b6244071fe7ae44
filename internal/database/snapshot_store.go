package database

import (
	"context"
	"time"

	"gorm.io/gorm"

	"geolynx/internal/database/models"
	"geolynx/internal/database/repositories"
	"geolynx/internal/enrichment"
)

// SnapshotStore persists assembled metadata in the ip_metadata table.
type SnapshotStore struct {
	repo repositories.IPMetadataRepository
}

func NewSnapshotStore(db *gorm.DB) *SnapshotStore {
	return &SnapshotStore{repo: repositories.NewIPMetadataRepository(db)}
}

func (s *SnapshotStore) Save(ctx context.Context, snapshot enrichment.Snapshot) error {
	md := snapshot.Metadata
	return s.repo.Upsert(ctx, &models.IPMetadata{
		IPAddress:   snapshot.IP,
		ASN:         md.AutonomousSystemNumber,
		Latitude:    md.Latitude,
		Longitude:   md.Longitude,
		ZipCode:     md.ZipCode,
		City:        md.City,
		State:       md.State,
		Country:     md.Country,
		AssembledAt: snapshot.AssembledAt,
	})
}

func (s *SnapshotStore) Recent(ctx context.Context, since time.Time, limit int) ([]enrichment.Snapshot, error) {
	records, err := s.repo.FindAssembledSince(ctx, since, limit)
	if err != nil {
		return nil, err
	}

	snapshots := make([]enrichment.Snapshot, 0, len(records))
	for _, r := range records {
		snapshots = append(snapshots, enrichment.Snapshot{
			IP: r.IPAddress,
			Metadata: enrichment.Metadata{
				AutonomousSystemNumber: r.ASN,
				Latitude:               r.Latitude,
				Longitude:              r.Longitude,
				ZipCode:                r.ZipCode,
				City:                   r.City,
				State:                  r.State,
				Country:                r.Country,
			},
			AssembledAt: r.AssembledAt,
		})
	}
	return snapshots, nil
}

// Count returns the number of stored snapshots.
func (s *SnapshotStore) Count(ctx context.Context) (int64, error) {
	return s.repo.Count(ctx)
}
