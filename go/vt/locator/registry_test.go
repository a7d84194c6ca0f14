package locator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitessio/tabletlocator/go/vt/locatorconfig"
)

func TestTableRegistry_GetOrCreateIsSingleton(t *testing.T) {
	reg := &fakeRegistry{blob: []byte("VT_ROOT|root-host:1|sess")}
	root := NewRootLocator(reg, newFakeLockChecker())
	tr := NewTableRegistry(root, newFakeObtainer(), newFakeLockChecker(), locatorconfig.Default())

	a := tr.GetOrCreate("orders")
	b := tr.GetOrCreate("orders")
	require.Same(t, a, b)
}

func TestTableRegistry_TablesShareMetadataParent(t *testing.T) {
	reg := &fakeRegistry{blob: []byte("VT_ROOT|root-host:1|sess")}
	root := NewRootLocator(reg, newFakeLockChecker())
	tr := NewTableRegistry(root, newFakeObtainer(), newFakeLockChecker(), locatorconfig.Default())

	orders := tr.GetOrCreate("orders")
	customers := tr.GetOrCreate("customers")
	meta := tr.metadataLocator()

	assert.Same(t, meta, orders.parent)
	assert.Same(t, meta, customers.parent)
}

func TestTableRegistry_MetadataTableIDReturnsMetadataLocator(t *testing.T) {
	reg := &fakeRegistry{blob: []byte("VT_ROOT|root-host:1|sess")}
	root := NewRootLocator(reg, newFakeLockChecker())
	tr := NewTableRegistry(root, newFakeObtainer(), newFakeLockChecker(), locatorconfig.Default())

	l := tr.GetOrCreate(MetadataTableID)
	assert.Same(t, root, l.parent)
}

func TestTableRegistry_CloseResetsState(t *testing.T) {
	reg := &fakeRegistry{blob: []byte("VT_ROOT|root-host:1|sess")}
	root := NewRootLocator(reg, newFakeLockChecker())
	tr := NewTableRegistry(root, newFakeObtainer(), newFakeLockChecker(), locatorconfig.Default())

	a := tr.GetOrCreate("orders")
	tr.Close()
	b := tr.GetOrCreate("orders")
	assert.NotSame(t, a, b)
}
