package radio

import (
	"github.com/Cascoda/ca821x-posix-thread/internal/coproc"
)

// activityEntry is one cached device-table row, keyed by extended address.
// currentFrameCounter is refreshed from the device table on every query;
// lastQueriedCounter/queried record the state as of the previous
// isActive call for this address, which is what "active" is measured
// against (not the previous refresh).
type activityEntry struct {
	currentFrameCounter uint32
	lastQueriedCounter  uint32
	queried             bool
}

// activityCache answers "is-device-active(extended)" queries by re-reading
// the co-processor's device table on every query (component H, spec.md
// §4.8). It is touched only from the main thread, like the channel and
// promiscuous caches.
type activityCache struct {
	client coproc.Client
	live   map[uint64]*activityEntry
}

func newActivityCache(client coproc.Client) *activityCache {
	return &activityCache{client: client, live: make(map[uint64]*activityEntry)}
}

// isActive re-reads the device table, reconciles the cache (discarding
// entries no longer present, inserting new ones via a staged/live swap so a
// failed read never leaves the cache half-updated), then reports whether
// extAddr's frame counter changed since its previous query. The first query
// after insertion always returns false, since there is no prior counter to
// compare against.
func (c *activityCache) isActive(extAddr uint64) bool {
	c.live = c.refresh()

	entry, ok := c.live[extAddr]
	if !ok {
		return false
	}
	active := entry.queried && entry.currentFrameCounter != entry.lastQueriedCounter
	entry.lastQueriedCounter = entry.currentFrameCounter
	entry.queried = true
	return active
}

// refresh builds the staged table from a fresh read of the co-processor's
// device table, carrying forward per-address query history for addresses
// still present and dropping everything else.
func (c *activityCache) refresh() map[uint64]*activityEntry {
	countVal, status := c.client.MlmeGet(coproc.AttrDeviceTableEntries, 0)
	if status != coproc.StatusSuccess {
		return c.live // read failed; keep the previous snapshot rather than wiping it
	}
	count, _ := countVal.(uint8)

	staged := make(map[uint64]*activityEntry, count)
	for i := uint8(0); i < count; i++ {
		raw, status := c.client.MlmeGet(coproc.AttrDeviceTable, i)
		if status != coproc.StatusSuccess {
			continue
		}
		d, ok := raw.(coproc.DeviceDescriptor)
		if !ok {
			continue
		}
		extAddr := reverseBytes(d.ExtAddr)

		entry := &activityEntry{currentFrameCounter: d.FrameCounter}
		if prior, wasLive := c.live[extAddr]; wasLive {
			entry.lastQueriedCounter = prior.lastQueriedCounter
			entry.queried = prior.queried
		}
		staged[extAddr] = entry
	}
	return staged
}
