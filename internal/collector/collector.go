// Package collector polls sensors on an interval and stores what they report.
package collector

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"

	"emt-madrid/internal/sensor"
	"emt-madrid/internal/storage"
)

// DefaultConcurrency bounds how many sources are refreshed at once.
const DefaultConcurrency = 8

// Collector refreshes a fixed set of sensors and writes their readings.
type Collector struct {
	groups      [][]sensor.Sensor
	sensors     []sensor.Sensor
	store       storage.Writer
	interval    time.Duration
	concurrency int
	now         func() time.Time

	mu       sync.RWMutex
	readings []sensor.Reading
	last     time.Time
}

// New creates a collector. store may be nil, in which case readings are only kept in memory.
func New(sensors []sensor.Sensor, store storage.Writer, interval time.Duration) *Collector {
	return &Collector{
		groups:      groupBySource(sensors),
		sensors:     sensors,
		store:       store,
		interval:    interval,
		concurrency: DefaultConcurrency,
		now:         time.Now,
	}
}

// WithConcurrency sets how many sources are refreshed in parallel.
func (c *Collector) WithConcurrency(n int) *Collector {
	if n > 0 {
		c.concurrency = n
	}
	return c
}

// groupBySource keeps the first-seen order of sources and of sensors within each.
func groupBySource(sensors []sensor.Sensor) [][]sensor.Sensor {
	index := map[string]int{}
	var groups [][]sensor.Sensor
	for _, s := range sensors {
		i, ok := index[s.Source()]
		if !ok {
			i = len(groups)
			index[s.Source()] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], s)
	}
	return groups
}

// Run polls until ctx is cancelled. An interval of zero runs a single pass.
func (c *Collector) Run(ctx context.Context) error {
	if err := c.Poll(ctx); err != nil {
		log.Error().Err(err).Msg("Initial poll failed")
	}

	if c.interval <= 0 {
		log.Info().Msg("One-shot mode: exiting after single poll")
		return nil
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", c.interval).Int("sensors", len(c.sensors)).Msg("Collector running")

	for {
		select {
		case <-ticker.C:
			if err := c.Poll(ctx); err != nil {
				log.Error().Err(err).Msg("Poll failed")
			}
		case <-ctx.Done():
			log.Info().Msg("Collector stopping")
			return nil
		}
	}
}

// Poll refreshes every source once and stores the resulting readings.
// Sensors sharing a source are served by a single update of their client.
func (c *Collector) Poll(ctx context.Context) error {
	start := c.now()

	p := pool.New().WithMaxGoroutines(c.concurrency)
	for _, group := range c.groups {
		p.Go(func() {
			if ctx.Err() != nil {
				return
			}
			if err := group[0].Update(ctx); err != nil {
				log.Error().Err(err).Str("source", group[0].Source()).Msg("Failed to update sensor")
			}
		})
	}
	p.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}

	readings := make([]sensor.Reading, 0, len(c.sensors))
	for _, s := range c.sensors {
		readings = append(readings, s.Reading(start))
	}

	c.mu.Lock()
	c.readings = readings
	c.last = start
	c.mu.Unlock()

	log.Debug().Dur("took", time.Since(start)).Int("readings", len(readings)).Msg("Poll completed")

	if c.store == nil {
		return nil
	}

	where, err := c.store.WriteReadings(ctx, readings)
	if err != nil {
		return err
	}
	log.Info().Int("readings", len(readings)).Str("location", where).Msg("Saved readings")
	return nil
}

// Readings returns the readings of the last completed poll.
func (c *Collector) Readings() ([]sensor.Reading, time.Time) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	readings := make([]sensor.Reading, len(c.readings))
	copy(readings, c.readings)
	return readings, c.last
}
