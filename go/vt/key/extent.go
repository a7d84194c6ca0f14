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

// Package key implements KeyExtent, the value type identifying a tablet:
// (tableID, endRow, prevEndRow), half-open on the low side and closed on
// the high side.
package key

import "bytes"

// Row is a raw row key. A nil Row stands for the appropriate infinity:
// -infinity as a prevEndRow, +infinity as an endRow.
type Row []byte

// MinRow is the concrete representation of "the minimum possible key"
// when a real (non-Extent-field) row value is required — e.g. a range's
// StartRow of null. It is the empty row, which
// byte-lexicographically precedes every other row.
var MinRow = Row{}

// Extent identifies a tablet: the rows r with PrevEndRow < r <= EndRow of
// table TableID. EndRow == nil means +infinity; PrevEndRow == nil means
// -infinity.
type Extent struct {
	TableID    string
	EndRow     Row
	PrevEndRow Row
}

// compareEndRow orders two EndRow values, treating nil as +infinity (the
// greatest value) so a nil EndRow always sorts last.
func compareEndRow(a, b Row) int {
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return 1
	}
	if b == nil {
		return -1
	}
	return bytes.Compare(a, b)
}

func comparePrevEndRow(a, b Row) int {
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return -1
	}
	if b == nil {
		return 1
	}
	return bytes.Compare(a, b)
}

// Compare implements the total order:
// (tableID, endRow-with-null-as-max, prevEndRow-with-null-as-min).
func (e Extent) Compare(o Extent) int {
	if e.TableID != o.TableID {
		if e.TableID < o.TableID {
			return -1
		}
		return 1
	}
	if c := compareEndRow(e.EndRow, o.EndRow); c != 0 {
		return c
	}
	return comparePrevEndRow(e.PrevEndRow, o.PrevEndRow)
}

// Equal reports whether e and o identify the same tablet.
func (e Extent) Equal(o Extent) bool {
	return e.Compare(o) == 0
}

// endRowLEPrevEndRow reports whether endRow <= prevEndRow, under the
// mixed infinities the two fields carry: a nil endRow is +infinity (never
// <=), a nil prevEndRow is -infinity (never >=). compareEndRow can't be
// reused here since it treats both arguments as EndRow-shaped (nil ==
// +infinity on both sides), which is wrong for the PrevEndRow side.
func endRowLEPrevEndRow(endRow, prevEndRow Row) bool {
	if endRow == nil || prevEndRow == nil {
		return false
	}
	return bytes.Compare(endRow, prevEndRow) <= 0
}

// Overlaps reports whether e and o share at least one row: neither's
// EndRow <= the other's PrevEndRow.
func (e Extent) Overlaps(o Extent) bool {
	if endRowLEPrevEndRow(e.EndRow, o.PrevEndRow) {
		return false
	}
	if endRowLEPrevEndRow(o.EndRow, e.PrevEndRow) {
		return false
	}
	return true
}

// RowOwnedBy reports whether row falls within (PrevEndRow, EndRow], the
// half-open-low/closed-high containment rule.
func (e Extent) RowOwnedBy(row Row) bool {
	if e.PrevEndRow != nil && bytes.Compare(row, e.PrevEndRow) <= 0 {
		return false
	}
	if e.EndRow != nil && bytes.Compare(row, e.EndRow) > 0 {
		return false
	}
	return true
}

const (
	metadataRowSeparator byte = ';'
	metadataRowSentinel  byte = '<'
)

// MetadataRow computes the encoded row used to look this extent's child up
// in the parent metadata tablet: "T;er" when endRow is non-nil, else "T<".
// The '<' sentinel sorts after any ';'-prefixed row sharing the tableID
// prefix, making it the maximum row for that table.
func MetadataRow(tableID string, endRow Row) []byte {
	if endRow == nil {
		out := make([]byte, 0, len(tableID)+1)
		out = append(out, tableID...)
		out = append(out, metadataRowSentinel)
		return out
	}
	out := make([]byte, 0, len(tableID)+1+len(endRow))
	out = append(out, tableID...)
	out = append(out, metadataRowSeparator)
	out = append(out, endRow...)
	return out
}

// MetadataRow returns the metadata-table lookup key for e's own entry,
// i.e. the row under which e is filed in its parent's metadata tablet.
func (e Extent) MetadataRow() []byte {
	return MetadataRow(e.TableID, e.EndRow)
}

// SuccessorRow appends a minimal byte to row, used to implement skipRow:
// resolving row's immediate successor instead of row itself.
// The returned slice is newly allocated; row is left unchanged. A nil row
// has no successor (it stands for +infinity, the maximum possible key);
// this is the one case where the caller should return nil.
func SuccessorRow(row Row) (Row, bool) {
	if row == nil {
		return nil, false
	}
	out := make(Row, len(row)+1)
	copy(out, row)
	out[len(row)] = 0x00
	return out, true
}
