package key

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtentOverlaps(t *testing.T) {
	a := Extent{TableID: "foo", PrevEndRow: nil, EndRow: Row("g")}
	b := Extent{TableID: "foo", PrevEndRow: Row("g"), EndRow: nil}
	assert.False(t, a.Overlaps(b), "adjacent half-open extents must not overlap")
	assert.True(t, a.Overlaps(a))

	c := Extent{TableID: "foo", PrevEndRow: Row("c"), EndRow: Row("m")}
	assert.True(t, a.Overlaps(c))
	assert.True(t, b.Overlaps(c))
}

func TestExtentRowOwnedBy(t *testing.T) {
	e := Extent{TableID: "foo", PrevEndRow: Row("g"), EndRow: Row("m")}
	assert.False(t, e.RowOwnedBy(Row("g")), "prevEndRow is exclusive")
	assert.True(t, e.RowOwnedBy(Row("m")), "endRow is inclusive")
	assert.True(t, e.RowOwnedBy(Row("h")))
	assert.False(t, e.RowOwnedBy(Row("z")))
}

func TestMetadataRowEncoding(t *testing.T) {
	withEnd := MetadataRow("foo", Row("m"))
	assert.Equal(t, "foo;m", string(withEnd))

	withoutEnd := MetadataRow("foo", nil)
	assert.Equal(t, "foo<", string(withoutEnd))

	// ';' must sort before any printable endRow sharing the tableID
	// prefix, and '<' must sort after all of them.
	assert.Less(t, string(withEnd), string(withoutEnd))
}

func TestCompareNullAsMax(t *testing.T) {
	finite := Extent{TableID: "foo", EndRow: Row("m")}
	infinite := Extent{TableID: "foo", EndRow: nil}
	assert.Negative(t, finite.Compare(infinite), "nil EndRow must sort as the greatest value")
}

func TestSuccessorRow(t *testing.T) {
	row := Row("g")
	succ, ok := SuccessorRow(row)
	assert.True(t, ok)
	assert.Equal(t, Row("g"), row, "original row must be left unchanged")
	assert.Greater(t, string(succ), string(row))

	_, ok = SuccessorRow(nil)
	assert.False(t, ok, "the maximum key has no successor")
}
