package stats

import (
	"sync"
	"time"

	"github.com/varunjain2021/guido-1-sub002/pkg/navigation"
)

type RecordsStats struct {
	SessionsStarted   int64
	SessionsArrived   int64
	SessionsCancelled int64
	Reroutes          int64
	Announcements     int64
	Errors            int64
	Warnings          int64

	LastEventAt *time.Time
}

// Collector counts navigation events for the stats endpoint
type Collector struct {
	mu      sync.RWMutex
	records RecordsStats
	now     func() time.Time
}

func NewCollector() *Collector {
	return &Collector{now: time.Now}
}

func (c *Collector) Run(events <-chan navigation.Event) {
	for event := range events {
		c.Record(event)
	}
}

func (c *Collector) Record(event navigation.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch event.Kind() {
	case navigation.EventStarted:
		c.records.SessionsStarted++
	case navigation.EventArrived:
		c.records.SessionsArrived++
	case navigation.EventCancelled:
		c.records.SessionsCancelled++
	case navigation.EventRerouting:
		c.records.Reroutes++
	case navigation.EventInitialDirections, navigation.EventApproachingTurn:
		c.records.Announcements++
	case navigation.EventError:
		c.records.Errors++
	case navigation.EventWarning:
		c.records.Warnings++
	}

	now := c.now()
	c.records.LastEventAt = &now
}

func (c *Collector) Current() RecordsStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.records
}
