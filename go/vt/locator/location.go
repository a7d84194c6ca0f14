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

// Package locator implements the client-side tablet locator: a recursive,
// cache-backed resolver mapping (tableID, row) to the server currently
// hosting that row's tablet.
package locator

import (
	"context"

	"github.com/vitessio/tabletlocator/go/vt/key"
)

// TabletLocation is a resolved (extent, server, session) triple. Session
// is the server's liveness token; a location is only valid while
// LockChecker reports the session as held.
type TabletLocation struct {
	Extent  key.Extent
	Server  string
	Session string
}

// Range is a half-open-or-closed row range as used by binRanges:
// [StartRow, EndRow] with independent inclusivity flags. A nil
// StartRow means the minimum key; a nil EndRow means the maximum key.
type Range struct {
	StartRow       key.Row
	StartInclusive bool
	EndRow         key.Row
	EndInclusive   bool
}

// Mutation is the minimal shape binMutations needs: a target row plus an
// opaque payload the caller attaches. Payload is never inspected by the
// locator.
type Mutation struct {
	Row     key.Row
	Payload interface{}
}

// TabletServerMutations groups mutations destined for one server by
// extent, preserving per-extent insertion order.
type TabletServerMutations struct {
	Server string
	// order preserves the order extents were first seen for this server;
	// Mutations holds each extent's mutations in arrival order.
	order     []key.Extent
	Mutations map[key.Extent][]Mutation
}

func newTabletServerMutations(server string) *TabletServerMutations {
	return &TabletServerMutations{Server: server, Mutations: make(map[key.Extent][]Mutation)}
}

// Add appends m to extent's mutation list, recording extent's first-seen
// order.
func (t *TabletServerMutations) Add(extent key.Extent, m Mutation) {
	if _, ok := t.Mutations[extent]; !ok {
		t.order = append(t.order, extent)
	}
	t.Mutations[extent] = append(t.Mutations[extent], m)
}

// Extents returns the extents in first-seen order.
func (t *TabletServerMutations) Extents() []key.Extent {
	return t.order
}

// LocationObtainer is the external collaborator that fetches tablet
// locations from a parent metadata tablet. The locator
// core never talks to a server directly except through this interface.
type LocationObtainer interface {
	// LookupTablet returns the TabletLocations for the single tablet
	// containing row, bounded by stopRow, resolved against the metadata
	// tablet hosted at parent. On transport failure it must call
	// parentLocator.InvalidateCacheForServer(parent.Server) and return a
	// transport error.
	LookupTablet(ctx context.Context, parent TabletLocation, row, stopRow key.Row, parentLocator Locator) ([]TabletLocation, error)

	// LookupTablets resolves a batch of extent->ranges against server in
	// one round trip. On miss it must call
	// parentLocator.InvalidateCacheForExtents(extents) and return an error.
	LookupTablets(ctx context.Context, server string, ranges map[key.Extent][]Range, parentLocator Locator) ([]TabletLocation, error)
}

// LockChecker answers whether a server still holds its liveness session.
// It is process-wide and multi-reader-safe.
type LockChecker interface {
	IsLockHeld(ctx context.Context, server, session string) (bool, error)
	InvalidateCache(server string)
}

// Locator is the capability set both RootLocator and TabletLocator
// implement, so that parents reference children through it rather than
// through a concrete type.
type Locator interface {
	LocateTablet(ctx context.Context, row key.Row, skipRow, retry bool) (*TabletLocation, error)
	BinRanges(ctx context.Context, ranges []Range) (binned map[string]map[key.Extent][]Range, failures []Range, err error)
	BinMutations(ctx context.Context, mutations []Mutation) (binned map[string]*TabletServerMutations, failures []Mutation, err error)

	InvalidateCacheForExtent(extent key.Extent)
	InvalidateCacheForExtents(extents []key.Extent)
	InvalidateCacheForServer(server string)
	InvalidateCacheAll()
}
