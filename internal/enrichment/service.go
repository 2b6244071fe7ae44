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
package enrichment

import (
	"context"
	"sync"
	"time"

	"github.com/pterm/pterm"

	"geolynx/internal/cache"
	"geolynx/internal/geoip"
)

const defaultPersistTimeout = 5 * time.Second

// Store persists assembled records so a restarted process can start warm.
type Store interface {
	Save(ctx context.Context, snapshot Snapshot) error
	// Recent returns snapshots assembled after since, newest first.
	Recent(ctx context.Context, since time.Time, limit int) ([]Snapshot, error)
}

// Service is the entry point for IP metadata: a bounded TTL cache in front of
// the Assembler.
type Service struct {
	assembler *Assembler
	cache     *cache.Cache[Metadata]
	store     Store
	logger    *pterm.Logger
	now       func() time.Time
	wg        sync.WaitGroup
}

type ServiceOption func(*Service)

// WithStore enables asynchronous persistence of every assembled record.
func WithStore(store Store) ServiceOption {
	return func(s *Service) { s.store = store }
}

// WithClock sets the clock used to timestamp snapshots. It should match the
// cache clock.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

func NewService(assembler *Assembler, c *cache.Cache[Metadata], logger *pterm.Logger, opts ...ServiceOption) *Service {
	s := &Service{
		assembler: assembler,
		cache:     c,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetIPMetadata returns the cached record for ip, assembling and caching it on
// a miss or after expiry. It never fails.
func (s *Service) GetIPMetadata(ip string) Metadata {
	md, hit := s.cache.GetOrLoad(ip, func() Metadata {
		md := s.assembler.Assemble(ip)
		s.persist(ip, md)
		return md
	})

	if hit {
		s.logger.Trace("IP metadata cache hit", s.logger.Args("ip", ip))
	} else {
		s.logger.Trace("IP metadata cache miss", s.logger.Args("ip", ip))
	}
	return md
}

func (s *Service) persist(ip string, md Metadata) {
	if s.store == nil {
		return
	}

	snapshot := Snapshot{IP: ip, Metadata: md, AssembledAt: s.now()}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), defaultPersistTimeout)
		defer cancel()
		// The cache already holds the record; the store is only a backup.
		if err := s.store.Save(ctx, snapshot); err != nil {
			s.logger.Warn("Failed to persist IP metadata", s.logger.Args("ip", ip, "error", err))
		}
	}()
}

// Warm loads records assembled within the cache TTL from the store, keeping
// their original assembly time so they expire on schedule. The most recently
// assembled records end up most recently used.
func (s *Service) Warm(ctx context.Context, limit int) (int, error) {
	if s.store == nil {
		return 0, nil
	}
	if limit <= 0 || limit > s.cache.Capacity() {
		limit = s.cache.Capacity()
	}

	since := s.now().Add(-s.cache.TTL())
	snapshots, err := s.store.Recent(ctx, since, limit)
	if err != nil {
		s.logger.WithCaller().Error("Failed to load IP metadata snapshots", s.logger.Args("error", err))
		return 0, err
	}

	loaded := 0
	for i := len(snapshots) - 1; i >= 0; i-- {
		snap := snapshots[i]
		if s.cache.AddAt(snap.IP, snap.Metadata, snap.AssembledAt) {
			loaded++
		}
	}

	s.logger.Info("Warmed IP metadata cache",
		s.logger.Args("loaded", loaded, "candidates", len(snapshots), "since", since.Format(time.RFC3339)))
	return loaded, nil
}

// Purge drops every cached record.
func (s *Service) Purge() {
	entries := s.cache.Len()
	s.cache.Purge()
	s.logger.Info("Purged IP metadata cache", s.logger.Args("entries", entries))
}

// HandleReload purges the cache after a database was replaced, so records
// assembled from the old data are not served.
func (s *Service) HandleReload(kind geoip.Kind) {
	s.logger.Info("GeoIP database reloaded, purging cache", s.logger.Args("kind", string(kind)))
	s.Purge()
}

func (s *Service) Stats() cache.Stats {
	return s.cache.Stats()
}

// Close waits for pending snapshot writes.
func (s *Service) Close() {
	s.wg.Wait()
}
