// MIT License
//
// Copyright (c) 2026 Kolin
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
//
package handlers

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"geolynx/internal/cache"
	"geolynx/internal/database"
	"geolynx/internal/geoip"
	"geolynx/internal/version"

	"github.com/gin-gonic/gin"
	"github.com/pterm/pterm"
)

// CacheService is the cache side of enrichment.Service.
type CacheService interface {
	Stats() cache.Stats
	Purge()
}

// DatabaseLister reports the GeoIP databases currently in use.
type DatabaseLister interface {
	Databases() []geoip.DatabaseInfo
}

// SystemHandler handles cache statistics, cache purges and health checks
type SystemHandler struct {
	cache          CacheService
	databases      DatabaseLister
	cleanupService *database.CleanupService
	logger         *pterm.Logger
	startTime      time.Time
}

// SystemStats holds cache and process statistics
type SystemStats struct {
	// Process Info
	AppVersion    string  `json:"app_version"`
	Uptime        string  `json:"uptime"`
	UptimeSeconds int64   `json:"uptime_seconds"`
	StartTime     string  `json:"start_time"`
	GoVersion     string  `json:"go_version"`
	NumGoroutines int     `json:"num_goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`

	// Cache Info
	CacheEntries     int     `json:"cache_entries"`
	CacheCapacity    int     `json:"cache_capacity"`
	CacheTTL         string  `json:"cache_ttl"`
	CacheHits        uint64  `json:"cache_hits"`
	CacheMisses      uint64  `json:"cache_misses"`
	CacheHitRatio    float64 `json:"cache_hit_ratio"`
	CacheEvictions   uint64  `json:"cache_evictions"`
	CacheExpirations uint64  `json:"cache_expirations"`

	// GeoIP databases
	Databases []geoip.DatabaseInfo `json:"databases"`

	// Snapshot cleanup, present when persistence is enabled
	LastCleanupTime string `json:"last_cleanup_time,omitempty"`
	NextCleanupTime string `json:"next_cleanup_time,omitempty"`
}

// NewSystemHandler creates a new system handler. cleanupService may be nil.
func NewSystemHandler(
	cacheService CacheService,
	databases DatabaseLister,
	cleanupService *database.CleanupService,
	logger *pterm.Logger,
) *SystemHandler {
	return &SystemHandler{
		cache:          cacheService,
		databases:      databases,
		cleanupService: cleanupService,
		logger:         logger,
		startTime:      time.Now(),
	}
}

// GetCacheStats returns cache counters, database metadata and process info
func (h *SystemHandler) GetCacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.collectSystemStats())
}

// PurgeCache drops every cached record
func (h *SystemHandler) PurgeCache(c *gin.Context) {
	before := h.cache.Stats().Entries
	h.cache.Purge()
	h.logger.Info("Cache purged via API", h.logger.Args("entries", before, "remote", c.ClientIP()))
	c.JSON(http.StatusOK, gin.H{"purged": before})
}

// Health reports liveness and whether any GeoIP database is loaded
func (h *SystemHandler) Health(c *gin.Context) {
	dbs := h.databases.Databases()
	if len(dbs) == 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "databases": 0})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "databases": len(dbs), "version": version.Version})
}

// collectSystemStats gathers all system statistics
func (h *SystemHandler) collectSystemStats() *SystemStats {
	cacheStats := h.cache.Stats()
	stats := &SystemStats{
		AppVersion:       version.Version,
		StartTime:        h.startTime.Format(time.RFC3339),
		GoVersion:        runtime.Version(),
		NumGoroutines:    runtime.NumGoroutine(),
		CacheEntries:     cacheStats.Entries,
		CacheCapacity:    cacheStats.Capacity,
		CacheTTL:         cacheStats.TTL.String(),
		CacheHits:        cacheStats.Hits,
		CacheMisses:      cacheStats.Misses,
		CacheHitRatio:    cacheStats.HitRatio(),
		CacheEvictions:   cacheStats.Evictions,
		CacheExpirations: cacheStats.Expirations,
		Databases:        h.databases.Databases(),
	}

	// Calculate uptime
	uptime := time.Since(h.startTime)
	stats.UptimeSeconds = int64(uptime.Seconds())
	stats.Uptime = formatDuration(uptime)

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	stats.MemoryAllocMB = float64(m.Alloc) / 1024 / 1024

	if h.cleanupService != nil {
		cleanupStats := h.cleanupService.GetStats()
		stats.NextCleanupTime = cleanupStats.NextScheduledRun.Format(time.DateTime)
		if !cleanupStats.LastRunTime.IsZero() {
			stats.LastCleanupTime = cleanupStats.LastRunTime.Format(time.DateTime)
		} else {
			stats.LastCleanupTime = "Never"
		}
	}

	return stats
}

// formatDuration formats a duration into a human-readable string
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = -d
	}

	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if days > 0 {
		return formatPlural(days, "day", hours, "hour")
	}
	if hours > 0 {
		return formatPlural(hours, "hour", minutes, "minute")
	}
	if minutes > 0 {
		return formatPlural(minutes, "minute", seconds, "second")
	}
	return formatPlural(seconds, "second", 0, "")
}

// formatPlural formats numbers with proper pluralization
func formatPlural(n1 int, unit1 string, n2 int, unit2 string) string {
	result := formatSingle(n1, unit1)
	if n2 > 0 && unit2 != "" {
		result += ", " + formatSingle(n2, unit2)
	}
	return result
}

// formatSingle formats a single value with pluralization
func formatSingle(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

