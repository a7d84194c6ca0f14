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
	"github.com/google/btree"

	"github.com/vitessio/tabletlocator/go/vt/key"
)

// cacheEntry is one node of the ordered cache, keyed by endRow. A nil EndRow sorts last, via entry.Less below.
type cacheEntry struct {
	loc TabletLocation
}

func (e *cacheEntry) endRow() key.Row {
	return e.loc.Extent.EndRow
}

// Less implements btree.Item. A nil EndRow (the +infinity sentinel)
// always sorts after every non-nil EndRow.
func (e *cacheEntry) Less(than btree.Item) bool {
	o := than.(*cacheEntry)
	if e.endRow() == nil {
		return false
	}
	if o.endRow() == nil {
		return true
	}
	return string(e.endRow()) < string(o.endRow())
}

// orderedCache is the per-table ordered map: endRow ->
// TabletLocation, supporting ceiling lookups and head/tail range scans.
// It is not itself synchronized; callers (TabletLocator) hold their own
// reader-writer lock around it.
type orderedCache struct {
	tree *btree.BTree
}

func newOrderedCache() *orderedCache {
	return &orderedCache{tree: btree.New(32)}
}

func (c *orderedCache) len() int {
	return c.tree.Len()
}

// insert adds or replaces the entry for loc.Extent.EndRow.
func (c *orderedCache) insert(loc TabletLocation) {
	c.tree.ReplaceOrInsert(&cacheEntry{loc: loc})
}

// ceiling returns the first cached entry whose EndRow >= row, or nil if none exists.
func (c *orderedCache) ceiling(row key.Row) *TabletLocation {
	probe := &cacheEntry{loc: TabletLocation{Extent: key.Extent{EndRow: row}}}
	var found *TabletLocation
	c.tree.AscendGreaterOrEqual(probe, func(item btree.Item) bool {
		e := item.(*cacheEntry)
		found = &e.loc
		return false
	})
	return found
}

// removeOverlapping deletes every cached entry overlapping extent:
// from the first entry whose endRow > lo, delete while the
// entry's prevEndRow < hi, stopping at the first entry with prevEndRow
// >= hi. Returns the removed locations.
func (c *orderedCache) removeOverlapping(extent key.Extent) []TabletLocation {
	lo := extent.PrevEndRow

	var toDelete []*cacheEntry
	visit := func(item btree.Item) bool {
		e := item.(*cacheEntry)
		if !extent.Overlaps(e.loc.Extent) {
			return false
		}
		toDelete = append(toDelete, e)
		return true
	}

	if lo == nil {
		c.tree.Ascend(visit)
	} else {
		// A predecessor entry can end exactly at lo (endRow == lo); it
		// doesn't overlap extent, but starting there would hit it first
		// and stop the ascend before the genuinely overlapping entries.
		// Probe strictly past lo instead.
		probe := &cacheEntry{loc: TabletLocation{Extent: key.Extent{EndRow: successorOf(lo)}}}
		c.tree.AscendGreaterOrEqual(probe, visit)
	}

	removed := make([]TabletLocation, 0, len(toDelete))
	for _, e := range toDelete {
		c.tree.Delete(e)
		removed = append(removed, e.loc)
	}
	return removed
}

// clear empties the cache, for the whole-table invalidateCache().
func (c *orderedCache) clear() {
	c.tree = btree.New(32)
}

// removeByServer deletes every entry whose server matches, for
// invalidateCache(server).
func (c *orderedCache) removeByServer(server string) []TabletLocation {
	var toDelete []*cacheEntry
	c.tree.Ascend(func(item btree.Item) bool {
		e := item.(*cacheEntry)
		if e.loc.Server == server {
			toDelete = append(toDelete, e)
		}
		return true
	})
	removed := make([]TabletLocation, 0, len(toDelete))
	for _, e := range toDelete {
		c.tree.Delete(e)
		removed = append(removed, e.loc)
	}
	return removed
}

// all returns every cached location in ascending endRow order, for
// diagnostics (ChecksumCache) and tests.
func (c *orderedCache) all() []TabletLocation {
	out := make([]TabletLocation, 0, c.tree.Len())
	c.tree.Ascend(func(item btree.Item) bool {
		out = append(out, item.(*cacheEntry).loc)
		return true
	})
	return out
}
