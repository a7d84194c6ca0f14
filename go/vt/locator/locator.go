/*
Copyright 2019 The Vitess Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package locator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/singleflight"

	"github.com/vitessio/tabletlocator/go/vt/key"
	"github.com/vitessio/tabletlocator/go/vt/log"
	"github.com/vitessio/tabletlocator/go/vt/locatorconfig"
	"github.com/vitessio/tabletlocator/go/vt/stats"
	"github.com/vitessio/tabletlocator/go/vt/vterrors"
)

// TabletLocator is the per-table recursive locator.
// It holds the ordered cache of discovered tablets for one table, plus a
// reference to the parent locator (the metadata table's locator, or the
// RootLocator) it consults on a cache miss.
type TabletLocator struct {
	tableID string
	parent  Locator
	obtain  LocationObtainer
	locks   LockChecker
	cfg     *locatorconfig.Config

	// mu is the reader-writer lock: reads (cache probes) run
	// concurrently; removeOverlapping/insert/badExtents draining hold the
	// write lock.
	mu    sync.RWMutex
	cache *orderedCache

	// badExtents holds extents pending eviction because their server lost
	// its session, drained under the write lock at the start of any
	// locking operation.
	badExtentsMu sync.Mutex
	badExtents   []key.Extent

	// dependents lists table locators whose parent is this one (only
	// populated on the metadata table's locator), so that
	// InvalidateCacheForServer can recurse into them.
	dependentsMu sync.Mutex
	dependents   []*TabletLocator

	sf singleflight.Group

	hits, misses, refreshes *stats.Counter
}

// New creates a TabletLocator for tableID, recursing to parent on a cache
// miss. obtain and locks are the external collaborators it consults.
func New(tableID string, parent Locator, obtain LocationObtainer, locks LockChecker, cfg *locatorconfig.Config) *TabletLocator {
	if cfg == nil {
		cfg = locatorconfig.Default()
	}
	return &TabletLocator{
		tableID: tableID,
		parent:  parent,
		obtain:  obtain,
		locks:   locks,
		cfg:     cfg,
		cache:   newOrderedCache(),
	}
}

var _ Locator = (*TabletLocator)(nil)

// RegisterStats registers per-table counters, mirroring vitess's own
// TabletGateway.RegisterStats/getStatsAggregator shape.
func (l *TabletLocator) RegisterStats() {
	l.hits = stats.NewCounter(fmt.Sprintf("LocatorCacheHits.%s", l.tableID), "cache hits")
	l.misses = stats.NewCounter(fmt.Sprintf("LocatorCacheMisses.%s", l.tableID), "cache misses")
	l.refreshes = stats.NewCounter(fmt.Sprintf("LocatorCacheRefreshes.%s", l.tableID), "metadata refreshes")
}

func (l *TabletLocator) addDependent(child *TabletLocator) {
	l.dependentsMu.Lock()
	l.dependents = append(l.dependents, child)
	l.dependentsMu.Unlock()
}

func (l *TabletLocator) count(c *stats.Counter) {
	if c != nil {
		c.Add(1)
	}
}

// drainBadExtents removes every queued bad extent from the cache. Must be
// called with l.mu held for writing.
func (l *TabletLocator) drainBadExtents() {
	l.badExtentsMu.Lock()
	pending := l.badExtents
	l.badExtents = nil
	l.badExtentsMu.Unlock()

	for _, e := range pending {
		l.cache.removeOverlapping(e)
	}
}

// LocateTablet resolves the tablet owning row (or
// row's immediate successor, if skipRow), refreshing from the parent
// locator on a miss and validating every returned location against the
// LockChecker before it leaves the cache boundary.
func (l *TabletLocator) LocateTablet(ctx context.Context, row key.Row, skipRow, retry bool) (*TabletLocation, error) {
	lookupRow := row
	if skipRow {
		succ, ok := key.SuccessorRow(row)
		if !ok {
			// row is already the maximum possible key; returning nil
			// here is the safe choice.
			return nil, nil
		}
		lookupRow = succ
	}

	for {
		loc, _, err := l.probeAndValidate(ctx, lookupRow)
		if err != nil {
			return nil, err
		}
		if loc != nil {
			l.count(l.hits)
			return loc, nil
		}
		l.count(l.misses)

		loc, err = l.refresh(ctx, lookupRow)
		if err != nil {
			return nil, err
		}
		if loc != nil {
			return loc, nil
		}

		if !retry {
			return nil, nil
		}
		select {
		case <-ctx.Done():
			return nil, nil
		case <-time.After(l.cfg.RefreshBackoff):
		}
	}
}

// probeAndValidate performs steps 1-3: drain deferred invalidations under
// the write lock, ceiling-probe the cache under the read lock, and validate
// the candidate's lock. It returns (nil, true, nil) on a hole/miss.
func (l *TabletLocator) probeAndValidate(ctx context.Context, row key.Row) (loc *TabletLocation, hole bool, err error) {
	for {
		l.mu.Lock()
		l.drainBadExtents()
		l.mu.Unlock()

		l.mu.RLock()
		candidate := l.cache.ceiling(row)
		l.mu.RUnlock()

		if candidate == nil {
			return nil, true, nil
		}
		if !candidate.Extent.RowOwnedBy(row) {
			// hole: the ceiling entry doesn't actually cover row.
			return nil, true, nil
		}

		held, err := l.locks.IsLockHeld(ctx, candidate.Server, candidate.Session)
		if err != nil {
			return nil, false, err
		}
		if held {
			loc := *candidate
			return &loc, false, nil
		}

		log.V(2).Infof("locator: session lost for server %s, evicting and retrying lookup", candidate.Server)
		l.InvalidateCacheForServer(candidate.Server)
		// loop: re-probe after eviction.
	}
}

// refreshKey identifies a singleflight group for coalescing concurrent
// misses on the same metadata row.
func (l *TabletLocator) refreshKey(row key.Row) string {
	return l.tableID + "|" + string(row)
}

// refresh asks the parent for the tablet holding the metadata row, then
// materializes and validates new entries.
func (l *TabletLocator) refresh(ctx context.Context, row key.Row) (*TabletLocation, error) {
	if l.parent == nil {
		return nil, vterrors.Errorf(vterrors.CodeInternal, "locator for table %s has no parent to refresh from", l.tableID)
	}

	sfKey := l.refreshKey(row)
	v, err, _ := l.sf.Do(sfKey, func() (interface{}, error) {
		return l.doRefresh(ctx, row)
	})
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	loc := v.(TabletLocation)
	return &loc, nil
}

func (l *TabletLocator) doRefresh(ctx context.Context, row key.Row) (interface{}, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.drainBadExtents()

	// double-checked: another goroutine may have already populated this
	// under the write lock while we waited for it.
	if candidate := l.cache.ceiling(row); candidate != nil && candidate.Extent.RowOwnedBy(row) {
		return *candidate, nil
	}

	parentRow := encodeMetadataLookup(l.tableID, row)
	parentLoc, err := l.parent.LocateTablet(ctx, parentRow, false, true)
	if err != nil {
		return nil, err
	}
	if parentLoc == nil {
		return nil, nil
	}

	stopRow, _ := key.SuccessorRow(parentRow)
	locs, err := l.obtain.LookupTablet(ctx, *parentLoc, parentRow, stopRow, l.parent)
	if err != nil {
		return nil, err
	}
	if len(locs) == 0 {
		return nil, nil
	}

	if err := checkConsistent(locs); err != nil {
		return nil, err
	}

	l.count(l.refreshes)
	var result *TabletLocation
	for _, loc := range locs {
		l.cache.removeOverlapping(loc.Extent)
		held, err := l.locks.IsLockHeld(ctx, loc.Server, loc.Session)
		if err != nil {
			continue
		}
		if !held {
			continue
		}
		l.cache.insert(loc)
		if loc.Extent.RowOwnedBy(row) {
			cp := loc
			result = &cp
		}
	}
	if result == nil {
		return nil, nil
	}
	return *result, nil
}

// encodeMetadataLookup returns the row used to look up, in the parent
// metadata tablet, the tablet of `tableID` that owns `row`. This is NOT the same as an extent's own
// MetadataRow: it is the lookup key for an arbitrary row, not a stored
// entry's endRow, so it is encoded as the non-sentinel form.
func encodeMetadataLookup(tableID string, row key.Row) key.Row {
	return key.MetadataRow(tableID, row)
}

// checkConsistent reports InconsistentMetadata if two distinct locations
// within one metadata read map the same endRow to a different server or
// session, so
// that a refresh can fail closed before the cache is touched (doRefresh
// never inserts before this check).
func checkConsistent(locs []TabletLocation) error {
	seen := make(map[string]TabletLocation, len(locs))
	for _, loc := range locs {
		endKey := string(loc.Extent.EndRow)
		if prev, ok := seen[endKey]; ok {
			if prev.Server != loc.Server || prev.Session != loc.Session {
				return vterrors.InconsistentMetadata(fmt.Sprintf("%s;%s", loc.Extent.TableID, endKey))
			}
		}
		seen[endKey] = loc
	}
	return nil
}

// InvalidateCacheForExtent implements invalidateCache(extent).
func (l *TabletLocator) InvalidateCacheForExtent(extent key.Extent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache.removeOverlapping(extent)
}

// InvalidateCacheForExtents implements invalidateCache(extents[]) (spec
// §4.6): enqueued for deferred, batched processing on next access.
func (l *TabletLocator) InvalidateCacheForExtents(extents []key.Extent) {
	l.badExtentsMu.Lock()
	l.badExtents = append(l.badExtents, extents...)
	l.badExtentsMu.Unlock()
}

// InvalidateCacheForServer implements invalidateCache(server):
// removes every entry hosted by server, tells the LockChecker to drop its
// memo, and recurses into dependent table locators if this is the
// metadata table's locator.
func (l *TabletLocator) InvalidateCacheForServer(server string) {
	l.mu.Lock()
	l.cache.removeByServer(server)
	l.mu.Unlock()

	l.locks.InvalidateCache(server)

	l.dependentsMu.Lock()
	dependents := append([]*TabletLocator(nil), l.dependents...)
	l.dependentsMu.Unlock()
	for _, d := range dependents {
		d.InvalidateCacheForServer(server)
	}
}

// InvalidateCacheAll implements invalidateCache(): clears the
// whole table's cache.
func (l *TabletLocator) InvalidateCacheAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache.clear()
}

// ChecksumCache returns an xxhash checksum of the currently cached
// extents, mirroring vitess's own topologyWatcherChecksum diagnostic.
func (l *TabletLocator) ChecksumCache() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	h := xxhash.New()
	for _, loc := range l.cache.all() {
		h.Write(loc.Extent.EndRow)
		h.Write([]byte(loc.Server))
	}
	return h.Sum64()
}
