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
	"sync"

	"github.com/vitessio/tabletlocator/go/vt/locatorconfig"
)

// MetadataTableID is the well-known tableID of the single metadata table
// every user table's locator recurses through on its way to the root.
const MetadataTableID = "__metadata__"

// TableRegistry is the process-wide, table-keyed mapping from tableID to
// its TabletLocator instance, modeled as a keyed store with an explicit
// getOrCreate(tableId). It is created lazily and
// scoped to the client context, mirroring tabletgateway.go's
// check-lock-recheck-create shape in getStatsAggregator.
type TableRegistry struct {
	obtain LocationObtainer
	locks  LockChecker
	cfg    *locatorconfig.Config

	root *RootLocator

	mu       sync.Mutex
	metadata *TabletLocator
	tables   map[string]*TabletLocator
}

// NewTableRegistry creates a registry rooted at root, using obtain and
// locks for every locator it creates.
func NewTableRegistry(root *RootLocator, obtain LocationObtainer, locks LockChecker, cfg *locatorconfig.Config) *TableRegistry {
	return &TableRegistry{
		obtain: obtain,
		locks:  locks,
		cfg:    cfg,
		root:   root,
		tables: make(map[string]*TabletLocator),
	}
}

// metadataLocator returns the single locator for the metadata table,
// creating it (parented on root) on first use.
func (tr *TableRegistry) metadataLocator() *TabletLocator {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if tr.metadata == nil {
		tr.metadata = New(MetadataTableID, tr.root, tr.obtain, tr.locks, tr.cfg)
		tr.metadata.RegisterStats()
	}
	return tr.metadata
}

// GetOrCreate returns the locator for tableID, creating it (parented on
// the metadata table's locator, per the fixed depth-3 tree) if
// it does not already exist.
func (tr *TableRegistry) GetOrCreate(tableID string) *TabletLocator {
	if tableID == MetadataTableID {
		return tr.metadataLocator()
	}

	tr.mu.Lock()
	l, ok := tr.tables[tableID]
	tr.mu.Unlock()
	if ok {
		return l
	}

	meta := tr.metadataLocator()

	tr.mu.Lock()
	defer tr.mu.Unlock()
	if l, ok := tr.tables[tableID]; ok {
		return l
	}
	l = New(tableID, meta, tr.obtain, tr.locks, tr.cfg)
	l.RegisterStats()
	meta.addDependent(l)
	tr.tables[tableID] = l
	return l
}

// Close releases the registry's resources. The locator core holds no
// background goroutines or connections of its own, so this exists purely to
// give callers a symmetric acquire/release lifecycle.
func (tr *TableRegistry) Close() {
	tr.mu.Lock()
	tr.tables = make(map[string]*TabletLocator)
	tr.metadata = nil
	tr.mu.Unlock()
}
