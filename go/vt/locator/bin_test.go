package locator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitessio/tabletlocator/go/vt/key"
)

// S3-like: three contiguous tablets; ranges spanning a tablet boundary
// bind to both covering tablets, and a range entirely within one tablet
// binds to just that one.
func TestBinRanges_ContiguousTablets(t *testing.T) {
	l := newTestLocator(nil, newFakeObtainer(), newFakeLockChecker())
	e1 := key.Extent{TableID: "foo", EndRow: key.Row("g")}
	e2 := key.Extent{TableID: "foo", PrevEndRow: key.Row("g"), EndRow: key.Row("m")}
	e3 := key.Extent{TableID: "foo", PrevEndRow: key.Row("m")}
	l.cache.insert(TabletLocation{Extent: e1, Server: "l1", Session: "s1"})
	l.cache.insert(TabletLocation{Extent: e2, Server: "l2", Session: "s1"})
	l.cache.insert(TabletLocation{Extent: e3, Server: "l2", Session: "s1"})

	ranges := []Range{
		{StartRow: nil, StartInclusive: true, EndRow: key.Row("c"), EndInclusive: true},
		{StartRow: key.Row("f"), StartInclusive: true, EndRow: key.Row("i"), EndInclusive: true},
		{StartRow: key.Row("s"), StartInclusive: true, EndRow: key.Row("y"), EndInclusive: true},
		{StartRow: key.Row("z"), StartInclusive: true, EndRow: nil, EndInclusive: true},
	}

	binned, failures, err := l.BinRanges(context.Background(), ranges)
	require.NoError(t, err)
	assert.Empty(t, failures)

	assert.ElementsMatch(t, []Range{ranges[0], ranges[1]}, binned["l1"][e1])
	assert.ElementsMatch(t, []Range{ranges[1]}, binned["l2"][e2])
	assert.ElementsMatch(t, []Range{ranges[2], ranges[3]}, binned["l2"][e3])
}

// S4-like: a hole between two tablets causes the overlapping range to be
// abandoned to failures, while an unrelated, fully-covered range still
// binds normally.
func TestBinRanges_HoleAbortsOnlyAffectedRange(t *testing.T) {
	l := newTestLocator(nil, newFakeObtainer(), newFakeLockChecker())
	e0 := key.Extent{TableID: "foo", EndRow: key.Row("0")}
	e1 := key.Extent{TableID: "foo", PrevEndRow: key.Row("0"), EndRow: key.Row("1")}
	// hole: ("1","2"] is not cached.
	e4 := key.Extent{TableID: "foo", PrevEndRow: key.Row("2"), EndRow: key.Row("3")}
	e5 := key.Extent{TableID: "foo", PrevEndRow: key.Row("3")}
	l.cache.insert(TabletLocation{Extent: e0, Server: "l1", Session: "s1"})
	l.cache.insert(TabletLocation{Extent: e1, Server: "l2", Session: "s1"})
	l.cache.insert(TabletLocation{Extent: e4, Server: "l4", Session: "s1"})
	l.cache.insert(TabletLocation{Extent: e5, Server: "l5", Session: "s1"})

	ranges := []Range{
		{StartRow: key.Row("0"), StartInclusive: false, EndRow: key.Row("2"), EndInclusive: false},
		{StartRow: key.Row("2"), StartInclusive: false, EndRow: key.Row("4"), EndInclusive: false},
	}

	binned, failures, err := l.BinRanges(context.Background(), ranges)
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, ranges[0], failures[0])

	assert.ElementsMatch(t, []Range{ranges[1]}, binned["l4"][e4])
	assert.ElementsMatch(t, []Range{ranges[1]}, binned["l5"][e5])
	_, abandoned := binned["l1"]
	assert.False(t, abandoned, "no partial binding should be recorded for the aborted range")
}

// Single-row ranges bind to exactly one tablet.
func TestBinRanges_SingleRow(t *testing.T) {
	l := newTestLocator(nil, newFakeObtainer(), newFakeLockChecker())
	e := key.Extent{TableID: "foo"}
	l.cache.insert(TabletLocation{Extent: e, Server: "l1", Session: "s1"})

	ranges := []Range{{StartRow: key.Row("x"), StartInclusive: true, EndRow: key.Row("x"), EndInclusive: true}}
	binned, failures, err := l.BinRanges(context.Background(), ranges)
	require.NoError(t, err)
	assert.Empty(t, failures)
	assert.Len(t, binned["l1"][e], 1)
}

func TestBinMutations_RoutesOrFails(t *testing.T) {
	l := newTestLocator(nil, newFakeObtainer(), newFakeLockChecker())
	e1 := key.Extent{TableID: "foo", EndRow: key.Row("m")}
	e2 := key.Extent{TableID: "foo", PrevEndRow: key.Row("m")}
	l.cache.insert(TabletLocation{Extent: e1, Server: "l1", Session: "s1"})
	l.cache.insert(TabletLocation{Extent: e2, Server: "l2", Session: "s1"})

	muts := []Mutation{
		{Row: key.Row("a"), Payload: 1},
		{Row: key.Row("z"), Payload: 2},
		{Row: key.Row("a"), Payload: 3},
	}
	binned, failures, err := l.BinMutations(context.Background(), muts)
	require.NoError(t, err)
	assert.Empty(t, failures)

	l1 := binned["l1"]
	require.NotNil(t, l1)
	assert.Equal(t, []key.Extent{e1}, l1.Extents())
	assert.Len(t, l1.Mutations[e1], 2)

	l2 := binned["l2"]
	require.NotNil(t, l2)
	assert.Len(t, l2.Mutations[e2], 1)
}

func TestBinMutations_HoleGoesToFailures(t *testing.T) {
	root := &fakeRootParent{loc: &TabletLocation{Server: "metaserver", Session: "m1"}}
	l := newTestLocator(root, newFakeObtainer(), newFakeLockChecker())
	// no cache entries and nothing scripted on the obtainer: every row is
	// a hole.
	muts := []Mutation{{Row: key.Row("a")}}
	binned, failures, err := l.BinMutations(context.Background(), muts)
	require.NoError(t, err)
	assert.Empty(t, binned)
	assert.Len(t, failures, 1)
}
