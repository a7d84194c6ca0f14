package locator

import (
	"context"
	"sync"

	"github.com/vitessio/tabletlocator/go/vt/key"
)

// fakeLockChecker is an in-memory LockChecker double: servers default to
// "held" until explicitly set otherwise.
type fakeLockChecker struct {
	mu   sync.Mutex
	held map[string]bool // keyed by server+"/"+session
}

func newFakeLockChecker() *fakeLockChecker {
	return &fakeLockChecker{held: make(map[string]bool)}
}

func (f *fakeLockChecker) key(server, session string) string { return server + "/" + session }

func (f *fakeLockChecker) IsLockHeld(ctx context.Context, server, session string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	held, ok := f.held[f.key(server, session)]
	if !ok {
		return true, nil
	}
	return held, nil
}

func (f *fakeLockChecker) setHeld(server, session string, held bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.held[f.key(server, session)] = held
}

func (f *fakeLockChecker) InvalidateCache(server string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k := range f.held {
		if len(k) >= len(server) && k[:len(server)] == server {
			delete(f.held, k)
		}
	}
}

// fakeObtainer is a scriptable LocationObtainer double: tests pre-load the
// locations a given parent+row lookup should return.
type fakeObtainer struct {
	mu        sync.Mutex
	responses map[string][]TabletLocation // keyed by parent.Server+"|"+row
	calls     int
}

func newFakeObtainer() *fakeObtainer {
	return &fakeObtainer{responses: make(map[string][]TabletLocation)}
}

func (f *fakeObtainer) script(parentServer string, row key.Row, locs []TabletLocation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[parentServer+"|"+string(row)] = locs
}

func (f *fakeObtainer) LookupTablet(ctx context.Context, parent TabletLocation, row, stopRow key.Row, parentLocator Locator) ([]TabletLocation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.responses[parent.Server+"|"+string(row)], nil
}

func (f *fakeObtainer) LookupTablets(ctx context.Context, server string, ranges map[key.Extent][]Range, parentLocator Locator) ([]TabletLocation, error) {
	return nil, nil
}

// fakeRootParent is a Locator double standing in for the root/metadata
// parent chain in tests that only exercise a single TabletLocator's own
// cache behavior.
type fakeRootParent struct {
	loc *TabletLocation
}

func (f *fakeRootParent) LocateTablet(ctx context.Context, row key.Row, skipRow, retry bool) (*TabletLocation, error) {
	return f.loc, nil
}
func (f *fakeRootParent) BinRanges(ctx context.Context, ranges []Range) (map[string]map[key.Extent][]Range, []Range, error) {
	return nil, nil, nil
}
func (f *fakeRootParent) BinMutations(ctx context.Context, mutations []Mutation) (map[string]*TabletServerMutations, []Mutation, error) {
	return nil, nil, nil
}
func (f *fakeRootParent) InvalidateCacheForExtent(extent key.Extent)    {}
func (f *fakeRootParent) InvalidateCacheForExtents(extents []key.Extent) {}
func (f *fakeRootParent) InvalidateCacheForServer(server string)        {}
func (f *fakeRootParent) InvalidateCacheAll()                           {}
