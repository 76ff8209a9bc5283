package tracking

import (
	"sort"
	"sync"
	"time"
)

// Feed keeps the latest transmission per driver. It is the single source
// the REST surface reads from, so all access is mutex-guarded.
type Feed struct {
	mu      sync.RWMutex
	drivers map[string]Transmission
	now     func() time.Time
}

// NewFeed creates an empty feed.
func NewFeed() *Feed {
	return &Feed{
		drivers: make(map[string]Transmission),
		now:     time.Now,
	}
}

// Update records a transmission, replacing any older one for the driver.
// Out-of-order reports are dropped: the feed never moves backwards.
func (f *Feed) Update(t Transmission) {
	if t.DriverID == "" {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if existing, ok := f.drivers[t.DriverID]; ok && t.Timestamp.Before(existing.Timestamp) {
		return
	}
	f.drivers[t.DriverID] = t
}

// UpdateStatus records a status change without touching the last position.
func (f *Feed) UpdateStatus(driverID, status string, at time.Time) {
	if driverID == "" {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	existing, ok := f.drivers[driverID]
	if !ok {
		f.drivers[driverID] = Transmission{DriverID: driverID, Status: status, Timestamp: at}
		return
	}
	if at.Before(existing.Timestamp) {
		return
	}
	existing.Status = status
	existing.Timestamp = at
	f.drivers[driverID] = existing
}

// Driver returns the current view of one driver.
func (f *Feed) Driver(driverID string) (DriverView, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	t, ok := f.drivers[driverID]
	if !ok {
		return DriverView{}, false
	}
	return f.view(t), true
}

// Drivers returns the current view of every known driver, ordered by
// driver ID for stable output.
func (f *Feed) Drivers() []DriverView {
	f.mu.RLock()
	defer f.mu.RUnlock()

	views := make([]DriverView, 0, len(f.drivers))
	for _, t := range f.drivers {
		views = append(views, f.view(t))
	}
	sort.Slice(views, func(i, j int) bool {
		return views[i].DriverID < views[j].DriverID
	})
	return views
}

// RealStatus applies the offline inference to a reported status.
func RealStatus(status string, lastSeen, now time.Time) string {
	if now.Sub(lastSeen) > OfflineAfter {
		return StatusOffline
	}
	return status
}

func (f *Feed) view(t Transmission) DriverView {
	return DriverView{
		Transmission: t,
		RealStatus:   RealStatus(t.Status, t.Timestamp, f.now()),
	}
}
