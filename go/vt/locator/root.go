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
	"strings"
	"sync"

	"github.com/vitessio/tabletlocator/go/vt/key"
	"github.com/vitessio/tabletlocator/go/vt/vterrors"
)

// Registry abstracts the well-known-path read the RootLocator performs:
// the root tablet's location lives at a fixed registry path. Implemented
// by zklock.Registry over ZooKeeper.
type Registry interface {
	// Get reads the blob at path, e.g. the "SERVICE_TAG|host:port" value,
	// returning the raw bytes.
	Get(ctx context.Context, path string) ([]byte, error)
}

// RootTabletPath is the fixed well-known path the root tablet's location
// is stored at.
const RootTabletPath = "/vt/root_tablet"

// RootLocator is the specialised locator for the singleton root tablet.
// It holds no ordered cache — there is exactly one root tablet — and
// re-reads the registry on every miss.
type RootLocator struct {
	registry Registry
	locks    LockChecker

	mu  sync.RWMutex
	cur *TabletLocation
}

var _ Locator = (*RootLocator)(nil)

// NewRootLocator creates a RootLocator reading from registry and
// validating sessions against locks.
func NewRootLocator(registry Registry, locks LockChecker) *RootLocator {
	return &RootLocator{registry: registry, locks: locks}
}

// LocateTablet returns the root tablet's current location for any row —
// the root tablet owns the entire key space. skipRow is accepted for
// interface compatibility but has no effect: there is only one tablet.
func (r *RootLocator) LocateTablet(ctx context.Context, row key.Row, skipRow, retry bool) (*TabletLocation, error) {
	r.mu.RLock()
	cur := r.cur
	r.mu.RUnlock()

	if cur != nil {
		held, err := r.locks.IsLockHeld(ctx, cur.Server, cur.Session)
		if err != nil {
			return nil, err
		}
		if held {
			loc := *cur
			return &loc, nil
		}
		r.InvalidateCacheForServer(cur.Server)
	}

	return r.refresh(ctx)
}

func (r *RootLocator) refresh(ctx context.Context) (*TabletLocation, error) {
	blob, err := r.registry.Get(ctx, RootTabletPath)
	if err != nil {
		return nil, vterrors.Wrapf(err, "reading root tablet registry path %s", RootTabletPath)
	}
	addr, session, err := parseRegistryBlob(blob)
	if err != nil {
		return nil, err
	}

	loc := TabletLocation{
		Extent:  key.Extent{TableID: "", EndRow: nil, PrevEndRow: nil},
		Server:  addr,
		Session: session,
	}

	r.mu.Lock()
	r.cur = &loc
	r.mu.Unlock()

	out := loc
	return &out, nil
}

// BinRanges is unsupported for the root tablet: callers never bin ranges
// against the root table directly, only against leaf-level tables.
func (r *RootLocator) BinRanges(ctx context.Context, ranges []Range) (map[string]map[key.Extent][]Range, []Range, error) {
	return nil, nil, vterrors.Errorf(vterrors.CodeFailedPrecondition, "binRanges is not supported on the root locator")
}

// BinMutations is unsupported for the same reason as BinRanges.
func (r *RootLocator) BinMutations(ctx context.Context, mutations []Mutation) (map[string]*TabletServerMutations, []Mutation, error) {
	return nil, nil, vterrors.Errorf(vterrors.CodeFailedPrecondition, "binMutations is not supported on the root locator")
}

// InvalidateCacheForExtent is a no-op: the root tablet has no ordered
// cache to evict from.
func (r *RootLocator) InvalidateCacheForExtent(extent key.Extent) {}

// InvalidateCacheForExtents is a no-op for the same reason.
func (r *RootLocator) InvalidateCacheForExtents(extents []key.Extent) {}

// InvalidateCacheForServer forces the next resolution to re-read the
// registry and drops the LockChecker's memo for server.
func (r *RootLocator) InvalidateCacheForServer(server string) {
	r.mu.Lock()
	if r.cur != nil && r.cur.Server == server {
		r.cur = nil
	}
	r.mu.Unlock()
	r.locks.InvalidateCache(server)
}

// InvalidateCacheAll forces the next resolution to re-read the registry.
func (r *RootLocator) InvalidateCacheAll() {
	r.mu.Lock()
	r.cur = nil
	r.mu.Unlock()
}

// parseRegistryBlob decodes the opaque "SERVICE_TAG|host:port|session"
// registry value into (host:port, session). The session segment is an
// extension beyond the bare "SERVICE_TAG|host:port" form, needed because
// every TabletLocation must carry a session for lock fencing. The blob is
// parsed as stored; a missing third segment degrades to an empty session
// rather than failing.
func parseRegistryBlob(blob []byte) (addr, session string, err error) {
	parts := strings.SplitN(string(blob), "|", 3)
	if len(parts) < 2 {
		return "", "", vterrors.Errorf(vterrors.CodeInternal, "malformed registry blob %q: want SERVICE_TAG|host:port[|session]", string(blob))
	}
	addr = parts[1]
	if len(parts) == 3 {
		session = parts[2]
	}
	return addr, session, nil
}
