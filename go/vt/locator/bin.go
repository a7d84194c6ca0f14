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

	"github.com/vitessio/tabletlocator/go/vt/key"
)

// BinRanges groups each input range by the server/extent combinations that
// cover it, aborting (to failures) any range whose coverage is interrupted
// by a hole.
func (l *TabletLocator) BinRanges(ctx context.Context, ranges []Range) (map[string]map[key.Extent][]Range, []Range, error) {
	binned := make(map[string]map[key.Extent][]Range)
	var failures []Range

	for _, r := range ranges {
		covering, ok, err := l.coverRange(ctx, r)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			failures = append(failures, r)
			continue
		}
		for _, loc := range covering {
			perServer, ok := binned[loc.Server]
			if !ok {
				perServer = make(map[key.Extent][]Range)
				binned[loc.Server] = perServer
			}
			perServer[loc.Extent] = append(perServer[loc.Extent], r)
		}
	}
	return binned, failures, nil
}

// coverRange resolves the ordered set of tablets covering r, or reports
// ok=false if a hole interrupts coverage before r.EndRow is reached.
func (l *TabletLocator) coverRange(ctx context.Context, r Range) ([]TabletLocation, bool, error) {
	startKey := r.StartRow
	if startKey == nil {
		// a nil StartRow stands for the minimum key, represented
		// concretely as the empty row, which byte-lexicographically
		// precedes every other row (see gohbase's getRegionFromCache
		// edge case for the same convention).
		startKey = key.MinRow
	}
	skipRow := !r.StartInclusive && r.StartRow != nil

	first, err := l.LocateTablet(ctx, startKey, skipRow, false)
	if err != nil {
		return nil, false, err
	}
	if first == nil {
		return nil, false, nil
	}

	var covering []TabletLocation
	cur := first

	for {
		covering = append(covering, *cur)

		if rangeEndsAt(r, cur.Extent) {
			return covering, true, nil
		}
		if cur.Extent.EndRow == nil {
			// this tablet runs to +infinity; since rangeEndsAt above
			// was false, r.EndRow can never be reached.
			return nil, false, nil
		}

		l.mu.RLock()
		next := l.cache.ceiling(successorOf(cur.Extent.EndRow))
		l.mu.RUnlock()

		if next == nil || compareRows(next.Extent.PrevEndRow, cur.Extent.EndRow) != 0 {
			// gap: either nothing cached past this tablet, or the next
			// cached entry's prevEndRow doesn't chain onto this one.
			return nil, false, nil
		}
		cur = next
	}
}

// rangeEndsAt reports whether extent is the last tablet r needs: r's
// EndRow falls within, or at the closed boundary of, extent. A range whose
// endRow equals a tablet's endRow with endInclusive=false does not extend
// into the next tablet, since that tablet already covers the row up to and
// including its own endRow — the walk still stops here either way.
func rangeEndsAt(r Range, extent key.Extent) bool {
	if r.EndRow == nil {
		return extent.EndRow == nil
	}
	if extent.EndRow == nil {
		return true
	}
	return compareRows(r.EndRow, extent.EndRow) <= 0
}

func successorOf(row key.Row) key.Row {
	succ, ok := key.SuccessorRow(row)
	if !ok {
		return nil
	}
	return succ
}

// compareRows orders two concrete (non-Extent-field) row values, treating
// a nil row as +infinity — the convention used when comparing against an
// EndRow. Callers dealing with a "minimum key" StartRow must substitute
// key.MinRow before reaching here.
func compareRows(a, b key.Row) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	case string(a) < string(b):
		return -1
	case string(a) > string(b):
		return 1
	default:
		return 0
	}
}

// BinMutations routes each mutation to the tablet owning its row, or to
// failures on a hole.
func (l *TabletLocator) BinMutations(ctx context.Context, mutations []Mutation) (map[string]*TabletServerMutations, []Mutation, error) {
	binned := make(map[string]*TabletServerMutations)
	var failures []Mutation

	for _, m := range mutations {
		loc, err := l.LocateTablet(ctx, m.Row, false, false)
		if err != nil {
			return nil, nil, err
		}
		if loc == nil {
			failures = append(failures, m)
			continue
		}
		tsm, ok := binned[loc.Server]
		if !ok {
			tsm = newTabletServerMutations(loc.Server)
			binned[loc.Server] = tsm
		}
		tsm.Add(loc.Extent, m)
	}
	return binned, failures, nil
}
