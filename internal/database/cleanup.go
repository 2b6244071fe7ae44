package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pterm/pterm"
	"gorm.io/gorm"

	"geolynx/internal/database/repositories"
)

const cleanupBatchSize = 1000

// CleanupService deletes snapshots older than the retention period on an
// interval.
type CleanupService struct {
	db              *gorm.DB
	repo            repositories.IPMetadataRepository
	logger          *pterm.Logger
	retentionDays   int
	cleanupInterval time.Duration
	vacuumEnabled   bool
	batchPause      time.Duration
	now             func() time.Time
	stopChan        chan struct{}
	wg              sync.WaitGroup

	mu sync.Mutex
	// Stats tracking
	running         bool
	lastRunTime     time.Time
	recordsDeleted  int64
	cleanupDuration time.Duration
}

// CleanupStats holds statistics about cleanup operations
type CleanupStats struct {
	LastRunTime      time.Time     `json:"last_run_time"`
	RecordsDeleted   int64         `json:"records_deleted"`
	CleanupDuration  time.Duration `json:"cleanup_duration"`
	NextScheduledRun time.Time     `json:"next_scheduled_run"`
}

func NewCleanupService(db *gorm.DB, logger *pterm.Logger, retentionDays int, cleanupInterval time.Duration, vacuumEnabled bool) *CleanupService {
	if cleanupInterval <= 0 {
		cleanupInterval = time.Hour
	}
	return &CleanupService{
		db:              db,
		repo:            repositories.NewIPMetadataRepository(db),
		logger:          logger,
		retentionDays:   retentionDays,
		cleanupInterval: cleanupInterval,
		vacuumEnabled:   vacuumEnabled,
		batchPause:      100 * time.Millisecond,
		now:             time.Now,
		stopChan:        make(chan struct{}),
	}
}

// Start begins the cleanup service
func (s *CleanupService) Start() {
	if s.retentionDays <= 0 {
		s.logger.Info("Data retention disabled (DB_RETENTION_DAYS=0), cleanup service not started")
		return
	}

	s.mu.Lock()
	s.running = true
	s.mu.Unlock()

	s.logger.Info("Starting database cleanup service",
		s.logger.Args(
			"retention_days", s.retentionDays,
			"interval", s.cleanupInterval.String(),
			"vacuum_enabled", s.vacuumEnabled,
		))

	s.wg.Add(1)
	go s.cleanupLoop()
}

// Stop stops the cleanup service and waits for a running cleanup to finish.
func (s *CleanupService) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Info("Stopping database cleanup service")
	close(s.stopChan)
	s.wg.Wait()
}

func (s *CleanupService) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			if _, err := s.RunCleanup(context.Background()); err != nil {
				s.logger.WithCaller().Error("Failed to delete old snapshots", s.logger.Args("error", err))
			}
		}
	}
}

// RunCleanup deletes expired snapshots in batches and returns how many were
// deleted.
func (s *CleanupService) RunCleanup(ctx context.Context) (int64, error) {
	if s.retentionDays <= 0 {
		return 0, fmt.Errorf("retention disabled (DB_RETENTION_DAYS=0)")
	}

	startTime := s.now()
	cutoffDate := startTime.AddDate(0, 0, -s.retentionDays)

	s.logger.Debug("Deleting snapshots in batches",
		s.logger.Args("batch_size", cleanupBatchSize, "cutoff_date", cutoffDate.Format("2006-01-02")))

	var totalDeleted int64
	for {
		deleted, err := s.repo.DeleteAssembledBefore(ctx, cutoffDate, cleanupBatchSize)
		if err != nil {
			return totalDeleted, err
		}
		totalDeleted += deleted
		if deleted < cleanupBatchSize {
			break
		}

		s.logger.Trace("Deleted batch",
			s.logger.Args("batch_deleted", deleted, "total_deleted", totalDeleted))

		select {
		case <-ctx.Done():
			return totalDeleted, ctx.Err()
		case <-s.stopChan:
			return totalDeleted, nil
		case <-time.After(s.batchPause):
		}
	}

	duration := time.Since(startTime)
	s.mu.Lock()
	s.lastRunTime = startTime
	s.recordsDeleted = totalDeleted
	s.cleanupDuration = duration
	s.mu.Unlock()

	s.logger.Info("Cleanup completed",
		s.logger.Args(
			"records_deleted", totalDeleted,
			"duration", duration.Round(time.Millisecond),
			"cutoff_date", cutoffDate.Format("2006-01-02"),
		))

	if s.vacuumEnabled && totalDeleted > 0 {
		s.runVacuum(ctx)
	}
	return totalDeleted, nil
}

// runVacuum runs VACUUM to reclaim space
func (s *CleanupService) runVacuum(ctx context.Context) {
	s.logger.Info("Running VACUUM to reclaim disk space (database will be briefly unavailable)")

	startTime := time.Now()
	ctx, cancel := context.WithTimeout(ctx, 10*time.Minute)
	defer cancel()

	if err := s.db.WithContext(ctx).Exec("VACUUM").Error; err != nil {
		s.logger.WithCaller().Error("Failed to run VACUUM", s.logger.Args("error", err))
		return
	}

	s.logger.Info("VACUUM completed", s.logger.Args("duration", time.Since(startTime).Round(time.Millisecond)))
}

// GetStats returns cleanup statistics
func (s *CleanupService) GetStats() *CleanupStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.lastRunTime.Add(s.cleanupInterval)
	if s.lastRunTime.IsZero() {
		next = s.now().Add(s.cleanupInterval)
	}
	return &CleanupStats{
		LastRunTime:      s.lastRunTime,
		RecordsDeleted:   s.recordsDeleted,
		CleanupDuration:  s.cleanupDuration,
		NextScheduledRun: next,
	}
}
