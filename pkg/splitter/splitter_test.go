package splitter

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwhite/budgeteer/pkg/sqlutils"
	"github.com/mwhite/budgeteer/pkg/transactionstore"
	"github.com/mwhite/budgeteer/pkg/vendorregistry"
)

func newTestEngine(t *testing.T) (*Engine, *transactionstore.Store, int64) {
	db, err := sqlutils.CreateSQLiteClient(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	store := transactionstore.NewStore(db)
	registry := vendorregistry.NewRegistry(db, store, filepath.Join(t.TempDir(), "vendors.yml"))
	require.NoError(t, store.Migrate(ctx))
	require.NoError(t, registry.Migrate(ctx))

	require.NoError(t, registry.AddOrRebrand(ctx, []vendorregistry.VendorSpec{
		{Name: "VendorA", Pattern: "VENDORA", Tag: "Books"},
		{Name: "VendorB", Pattern: "VENDORB", Tag: "Electronics"},
	}))

	parent := transactionstore.Transaction{
		Date:            "2022-02-01T00:00:00",
		TransactionType: "Debit",
		Name:            "AMAZON",
		Memo:            "order 123",
		Amount:          decimal.RequireFromString("-100.00"),
		VendorUUID:      vendorregistry.UnresolvedVendor,
		Hash:            "h1",
	}
	require.NoError(t, store.Insert(ctx, &parent))

	return NewEngine(store, registry), store, parent.ID
}

func TestProposeSplitCommitsValidChildren(t *testing.T) {
	engine, store, parentID := newTestEngine(t)
	ctx := context.Background()

	result, err := engine.ProposeSplit(ctx, parentID, []ChildRow{
		{Amount: decimal.RequireFromString("-60.00"), Vendor: "VendorA", Tag: "Books", Description: "item1"},
		{Amount: decimal.RequireFromString("-40.00"), Vendor: "VendorA", Tag: "Electronics", Description: "item2"},
	})
	require.NoError(t, err)

	assert.True(t, result.OK())
	assert.Equal(t, 2, result.Committed)

	children, err := store.ChildrenOf(ctx, parentID)
	require.NoError(t, err)
	require.Len(t, children, 2)

	// children snapshot the parent's descriptive fields
	assert.Equal(t, "AMAZON", children[0].Name)
	assert.Equal(t, "order 123", children[0].Memo)
	assert.Equal(t, "2022-02-01T00:00:00", children[0].Date)
	assert.Equal(t, "Debit", children[0].TransactionType)
	assert.Equal(t, "item1", children[0].Description)
	assert.False(t, children[0].Initialized.IsZero())

	parent, err := store.Get(ctx, parentID)
	require.NoError(t, err)
	assert.True(t, parent.HasChild)
}

func TestProposeSplitAmountMismatch(t *testing.T) {
	engine, store, parentID := newTestEngine(t)
	ctx := context.Background()

	result, err := engine.ProposeSplit(ctx, parentID, []ChildRow{
		{Amount: decimal.RequireFromString("-60.00"), Vendor: "VendorA", Tag: "Books"},
		{Amount: decimal.RequireFromString("-30.00"), Vendor: "VendorA", Tag: "Electronics"},
	})
	require.NoError(t, err)

	assert.False(t, result.OK())
	assert.False(t, result.AmountOK)
	assert.True(t, result.TagsOK)
	assert.True(t, result.ParentAmount.Equal(decimal.RequireFromString("-100.00")))
	assert.True(t, result.ChildSum.Equal(decimal.RequireFromString("-90.00")))
	assert.Zero(t, result.Committed)

	children, err := store.ChildrenOf(ctx, parentID)
	require.NoError(t, err)
	assert.Empty(t, children)

	parent, err := store.Get(ctx, parentID)
	require.NoError(t, err)
	assert.False(t, parent.HasChild)
}

func TestProposeSplitUnknownTag(t *testing.T) {
	engine, store, parentID := newTestEngine(t)
	ctx := context.Background()

	result, err := engine.ProposeSplit(ctx, parentID, []ChildRow{
		{Amount: decimal.RequireFromString("-100.00"), Vendor: "VendorA", Tag: "Bokos"},
	})
	require.NoError(t, err)

	assert.False(t, result.OK())
	assert.True(t, result.AmountOK)
	assert.False(t, result.TagsOK)
	assert.Equal(t, []string{"Bokos"}, result.UnknownTags)

	children, err := store.ChildrenOf(ctx, parentID)
	require.NoError(t, err)
	assert.Empty(t, children)
}

func TestProposeSplitReportsBothFailuresTogether(t *testing.T) {
	engine, _, parentID := newTestEngine(t)
	ctx := context.Background()

	result, err := engine.ProposeSplit(ctx, parentID, []ChildRow{
		{Amount: decimal.RequireFromString("-10.00"), Vendor: "VendorA", Tag: "Nope"},
	})
	require.NoError(t, err)

	assert.False(t, result.AmountOK)
	assert.False(t, result.TagsOK)
	assert.Contains(t, result.String(), "-10")
	assert.Contains(t, result.String(), "Nope")
}

func TestProposeSplitUnknownVendorName(t *testing.T) {
	engine, store, parentID := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.ProposeSplit(ctx, parentID, []ChildRow{
		{Amount: decimal.RequireFromString("-100.00"), Vendor: "Nobody", Tag: "Books"},
	})
	assert.ErrorIs(t, err, vendorregistry.ErrVendorNotFound)

	// nothing committed
	children, err := store.ChildrenOf(ctx, parentID)
	require.NoError(t, err)
	assert.Empty(t, children)
}

func TestProposeSplitRejectsEmptyProposal(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	ctx := context.Background()

	// a zero-amount parent would reconcile against an empty child list
	refunded := transactionstore.Transaction{
		Date:       "2022-02-02T00:00:00",
		Name:       "REFUNDED ORDER",
		Amount:     decimal.Zero,
		VendorUUID: vendorregistry.UnresolvedVendor,
		Hash:       "h2",
	}
	require.NoError(t, store.Insert(ctx, &refunded))

	_, err := engine.ProposeSplit(ctx, refunded.ID, nil)
	assert.Error(t, err)

	got, err := store.Get(ctx, refunded.ID)
	require.NoError(t, err)
	assert.False(t, got.HasChild)
}

func TestProposeSplitParentNotFound(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	_, err := engine.ProposeSplit(context.Background(), 9999, nil)
	assert.ErrorIs(t, err, transactionstore.ErrTransactionNotFound)
}
