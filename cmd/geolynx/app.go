package main

import (
	"context"
	"time"

	"github.com/pterm/pterm"
	"gorm.io/gorm"

	"geolynx/internal/cache"
	"geolynx/internal/config"
	"geolynx/internal/database"
	"geolynx/internal/enrichment"
	"geolynx/internal/geoip"
	"geolynx/internal/metrics"
)

type configLoader func() (*config.Config, *pterm.Logger, error)

// app holds the wired components shared by the serve and lookup commands.
type app struct {
	cfg     *config.Config
	logger  *pterm.Logger
	source  *geoip.Source
	cache   *cache.Cache[enrichment.Metadata]
	service *enrichment.Service

	db      *gorm.DB
	cleanup *database.CleanupService
	watcher *geoip.Watcher
	janitor *cache.Janitor
}

// newApp opens the GeoIP databases and builds the metadata service. With
// persist set, snapshots are written to the configured database.
func newApp(cfg *config.Config, logger *pterm.Logger, persist bool) (*app, error) {
	asn, city, err := geoip.OpenPair(cfg.GeoIP.ASNPath, cfg.GeoIP.CityPath, geoip.OpenOptions{Verify: cfg.GeoIP.Verify})
	if err != nil {
		logger.WithCaller().Error("Failed to open GeoIP databases", logger.Args("error", err))
		return nil, err
	}
	source := geoip.NewSourceFromDatabases(asn, city, logger)
	for _, info := range source.Databases() {
		logger.Info("Loaded GeoIP database",
			logger.Args("kind", string(info.Kind), "type", info.DatabaseType, "path", info.Path, "build_time", info.BuildTime))
	}

	var cacheOpts []cache.Option
	if cfg.MetricsEnabled {
		cacheOpts = append(cacheOpts, cache.WithObserver(metrics.CacheObserver{}))
	}
	c, err := cache.New[enrichment.Metadata](cfg.Cache.Size, cfg.Cache.TTL, cacheOpts...)
	if err != nil {
		source.Close()
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, source: source, cache: c}

	var serviceOpts []enrichment.ServiceOption
	if persist && cfg.Database.Enabled {
		db, err := database.NewConnection(&database.Config{
			Path:         cfg.Database.Path,
			MaxOpenConns: cfg.Database.MaxOpenConns,
			MaxIdleConns: cfg.Database.MaxIdleConns,
			ConnMaxLife:  cfg.Database.ConnMaxLife,
		}, logger)
		if err != nil {
			source.Close()
			return nil, err
		}
		a.db = db
		serviceOpts = append(serviceOpts, enrichment.WithStore(database.NewSnapshotStore(db)))
		a.cleanup = database.NewCleanupService(db, logger, cfg.Database.RetentionDays, cfg.Database.CleanupInterval, cfg.Database.VacuumEnabled)
	}

	a.service = enrichment.NewService(enrichment.NewAssembler(source, cfg.GeoIP.Locale, logger), c, logger, serviceOpts...)
	return a, nil
}

// startBackground warms the cache and starts the janitor, the snapshot
// cleanup and the database watcher.
func (a *app) startBackground(ctx context.Context) {
	if a.db != nil {
		warmCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		if _, err := a.service.Warm(warmCtx, a.cfg.Database.WarmLimit); err != nil {
			a.logger.Warn("Starting with a cold cache", a.logger.Args("error", err))
		}
		cancel()
		a.cleanup.Start()
	}

	if a.cfg.MetricsEnabled {
		metrics.RegisterCacheEntries(a.cache.Len)
	}

	a.janitor = cache.NewJanitor(a.cache, a.cfg.Cache.JanitorInterval, a.logger)
	a.janitor.Start()

	if a.cfg.GeoIP.Watch {
		watcher, err := geoip.NewWatcher(a.source, a.cfg.GeoIP.ASNPath, a.cfg.GeoIP.CityPath,
			geoip.OpenOptions{Verify: a.cfg.GeoIP.Verify}, a.service.HandleReload, a.logger)
		if err != nil {
			a.logger.Warn("GeoIP hot reload disabled", a.logger.Args("error", err))
		} else {
			a.watcher = watcher
		}
	}
}

func (a *app) Close() {
	if a.watcher != nil {
		a.watcher.Close()
	}
	if a.janitor != nil {
		a.janitor.Stop()
	}
	if a.cleanup != nil {
		a.cleanup.Stop()
	}
	a.service.Close()
	if a.db != nil {
		if err := database.Close(a.db); err != nil {
			a.logger.Warn("Failed to close database", a.logger.Args("error", err))
		}
	}
	if err := a.source.Close(); err != nil {
		a.logger.Warn("Failed to close GeoIP databases", a.logger.Args("error", err))
	}
}

func (a *app) databaseRows() [][]string {
	var rows [][]string
	for _, info := range a.source.Databases() {
		rows = append(rows, []string{string(info.Kind), info.DatabaseType, info.BuildTime.Format(time.DateOnly), info.Path})
	}
	return rows
}
