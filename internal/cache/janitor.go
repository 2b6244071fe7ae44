package cache

import (
	"sync"
	"time"

	"github.com/pterm/pterm"
)

// Janitor periodically drops expired entries so that idle keys do not hold
// capacity until they are next read.
type Janitor struct {
	purge    func() int
	interval time.Duration
	logger   *pterm.Logger
	stopChan chan struct{}
	once     sync.Once
	wg       sync.WaitGroup
}

type expirer interface {
	PurgeExpired() int
}

func NewJanitor(c expirer, interval time.Duration, logger *pterm.Logger) *Janitor {
	return &Janitor{
		purge:    c.PurgeExpired,
		interval: interval,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Start launches the background loop. A non-positive interval disables it.
func (j *Janitor) Start() {
	if j.interval <= 0 {
		j.logger.Debug("Cache janitor disabled")
		return
	}

	j.logger.Info("Starting cache janitor", j.logger.Args("interval", j.interval.String()))
	j.wg.Add(1)
	go j.loop()
}

func (j *Janitor) loop() {
	defer j.wg.Done()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.RunOnce()
		case <-j.stopChan:
			j.logger.Debug("Cache janitor stopped")
			return
		}
	}
}

// RunOnce performs a single sweep and returns the number of removed entries.
func (j *Janitor) RunOnce() int {
	removed := j.purge()
	if removed > 0 {
		j.logger.Debug("Removed expired cache entries", j.logger.Args("count", removed))
	} else {
		j.logger.Trace("No expired cache entries")
	}
	return removed
}

func (j *Janitor) Stop() {
	j.once.Do(func() {
		close(j.stopChan)
		j.wg.Wait()
	})
}
