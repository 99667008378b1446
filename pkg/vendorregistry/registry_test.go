package vendorregistry

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"github.com/mwhite/budgeteer/pkg/sqlutils"
	"github.com/mwhite/budgeteer/pkg/transactionstore"
)

func newTestRegistry(t *testing.T) (*Registry, *transactionstore.Store, string) {
	db, err := sqlutils.CreateSQLiteClient(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return newRegistryOn(t, db)
}

func newRegistryOn(t *testing.T, db *bun.DB) (*Registry, *transactionstore.Store, string) {
	mirror := filepath.Join(t.TempDir(), "vendors.yml")

	store := transactionstore.NewStore(db)
	registry := NewRegistry(db, store, mirror)

	ctx := context.Background()
	require.NoError(t, store.Migrate(ctx))
	require.NoError(t, registry.Migrate(ctx))

	return registry, store, mirror
}

func TestResolveFirstMatchWins(t *testing.T) {
	registry, _, _ := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, registry.AddOrRebrand(ctx, []VendorSpec{
		{Name: "Costco", Pattern: "COSTCO", Tag: "Groceries"},
		{Name: "Anything", Pattern: "CO", Tag: "Misc"},
	}))

	// both patterns match, the earlier row wins, repeatably
	costco, err := registry.UUIDForName(ctx, "Costco")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		got, err := registry.Resolve(ctx, "COSTCO WHSE #0553")
		require.NoError(t, err)
		assert.Equal(t, costco, got)
	}
}

func TestResolveNoMatchReturnsSentinel(t *testing.T) {
	registry, _, _ := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, registry.AddOrRebrand(ctx, []VendorSpec{
		{Name: "Geico", Pattern: "GEICO", Tag: "Insurance"},
	}))

	got, err := registry.Resolve(ctx, "TACO DELI")
	require.NoError(t, err)
	assert.Equal(t, UnresolvedVendor, got)
}

func TestAddOrRebrandDuplicateNameRollsBackBatch(t *testing.T) {
	registry, _, _ := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, registry.AddOrRebrand(ctx, []VendorSpec{
		{Name: "Geico", Pattern: "GEICO", Tag: "Insurance"},
	}))

	err := registry.AddOrRebrand(ctx, []VendorSpec{
		{Name: "Nandos", Pattern: "NANDOS", Tag: "Eating Out"},
		{Name: "Geico", Pattern: "GEICO", Tag: "Insurance"},
	})
	assert.ErrorIs(t, err, ErrDuplicateVendor)

	// the whole batch rolled back: Nandos was not committed either
	_, err = registry.UUIDForName(ctx, "Nandos")
	assert.ErrorIs(t, err, ErrVendorNotFound)

	tags, err := registry.Tags(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Insurance"}, tags)
}

func TestRebrandKeepsUUIDAndNewestRowWins(t *testing.T) {
	registry, _, _ := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, registry.AddOrRebrand(ctx, []VendorSpec{
		{Name: "Time Warner Cable", Pattern: "TIME WARNER", Tag: "Utilities"},
	}))

	id, err := registry.UUIDForName(ctx, "Time Warner Cable")
	require.NoError(t, err)

	require.NoError(t, registry.AddOrRebrand(ctx, []VendorSpec{
		{UUID: id, Name: "Spectrum", Pattern: "SPECTRUM", Tag: "Utilities"},
	}))

	name, err := registry.NameForUUID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Spectrum", name)

	tag, err := registry.TagForUUID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Utilities", tag)

	// old name still resolves to the same identity
	oldID, err := registry.UUIDForName(ctx, "Time Warner Cable")
	require.NoError(t, err)
	assert.Equal(t, id, oldID)
}

func TestLookupSentinelPassthroughAndNotFound(t *testing.T) {
	registry, _, _ := newTestRegistry(t)
	ctx := context.Background()

	tag, err := registry.TagForUUID(ctx, UnresolvedVendor)
	require.NoError(t, err)
	assert.Equal(t, UnresolvedVendor, tag)

	_, err = registry.TagForUUID(ctx, "does-not-exist")
	assert.ErrorIs(t, err, ErrVendorNotFound)

	_, err = registry.NameForUUID(ctx, "does-not-exist")
	assert.ErrorIs(t, err, ErrVendorNotFound)

	_, err = registry.UUIDForName(ctx, "Nobody")
	assert.ErrorIs(t, err, ErrVendorNotFound)
}

func TestBackfillResolvesUnresolvedTransactions(t *testing.T) {
	registry, store, _ := newTestRegistry(t)
	ctx := context.Background()

	txn := transactionstore.Transaction{
		Date:       "2022-03-01T00:00:00",
		Name:       "GEICO AUTOPAY",
		Amount:     decimal.RequireFromString("-120.00"),
		VendorUUID: UnresolvedVendor,
		Hash:       "h1",
	}
	other := transactionstore.Transaction{
		Date:       "2022-03-02T00:00:00",
		Name:       "TACO DELI",
		Amount:     decimal.RequireFromString("-12.00"),
		VendorUUID: UnresolvedVendor,
		Hash:       "h2",
	}
	require.NoError(t, store.Insert(ctx, &txn))
	require.NoError(t, store.Insert(ctx, &other))

	require.NoError(t, registry.AddOrRebrand(ctx, []VendorSpec{
		{Name: "Geico", Pattern: "GEICO", Tag: "Insurance"},
	}))

	id, err := registry.UUIDForName(ctx, "Geico")
	require.NoError(t, err)

	got, err := store.Get(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, id, got.VendorUUID)

	// the non-matching transaction stays unresolved
	got, err = store.Get(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, UnresolvedVendor, got.VendorUUID)
}

func TestMirrorSurvivesDatabaseLoss(t *testing.T) {
	db, err := sqlutils.CreateSQLiteClient(":memory:")
	require.NoError(t, err)

	registry, _, mirror := newRegistryOn(t, db)
	ctx := context.Background()

	require.NoError(t, registry.AddOrRebrand(ctx, []VendorSpec{
		{Name: "Costco", Pattern: "COSTCO", Tag: "Groceries"},
		{Name: "Geico", Pattern: "GEICO", Tag: "Insurance"},
	}))

	// simulate losing the database
	db.Close()

	fresh, err := sqlutils.CreateSQLiteClient(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { fresh.Close() })

	store := transactionstore.NewStore(fresh)
	rebuilt := NewRegistry(fresh, store, mirror)
	require.NoError(t, store.Migrate(ctx))
	require.NoError(t, rebuilt.Migrate(ctx))
	require.NoError(t, rebuilt.LoadVendors(ctx))

	tags, err := rebuilt.Tags(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Groceries", "Insurance"}, tags)

	// loading again is a no-op
	require.NoError(t, rebuilt.LoadVendors(ctx))

	id, err := rebuilt.UUIDForName(ctx, "Costco")
	require.NoError(t, err)
	got, err := rebuilt.Resolve(ctx, "COSTCO WHSE")
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestUpdateVendor(t *testing.T) {
	registry, _, mirror := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, registry.AddOrRebrand(ctx, []VendorSpec{
		{Name: "Whataburger", Pattern: "WHATABRG", Tag: "Eating Out"},
	}))

	id, err := registry.UUIDForName(ctx, "Whataburger")
	require.NoError(t, err)

	require.NoError(t, registry.UpdateVendor(ctx, id, "", "WHATABURG"))

	got, err := registry.Resolve(ctx, "WHATABURG #123")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	// the mirror picked up the pattern change
	raw, err := os.ReadFile(mirror)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "WHATABURG")
	assert.NotContains(t, string(raw), "WHATABRG")

	err = registry.UpdateVendor(ctx, "missing-uuid", "New Name", "")
	assert.ErrorIs(t, err, ErrVendorNotFound)
}

func TestUpdateVendorMirrorFailureRollsBack(t *testing.T) {
	registry, _, mirror := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, registry.AddOrRebrand(ctx, []VendorSpec{
		{Name: "Whataburger", Pattern: "WHATABRG", Tag: "Eating Out"},
	}))

	id, err := registry.UUIDForName(ctx, "Whataburger")
	require.NoError(t, err)

	// make the mirror unwritable by replacing the file with a directory
	require.NoError(t, os.Remove(mirror))
	require.NoError(t, os.Mkdir(mirror, 0o755))

	err = registry.UpdateVendor(ctx, id, "", "WHATABURG")
	require.Error(t, err)

	// the pattern change rolled back with the mirror failure
	got, err := registry.Resolve(ctx, "WHATABRG #123")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	got, err = registry.Resolve(ctx, "WHATABURG #123")
	require.NoError(t, err)
	assert.Equal(t, UnresolvedVendor, got)
}

func TestUpdateVendorRenamesOnlyNewestRow(t *testing.T) {
	registry, _, mirror := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, registry.AddOrRebrand(ctx, []VendorSpec{
		{Name: "Time Warner Cable", Pattern: "TIME WARNER", Tag: "Utilities"},
	}))

	id, err := registry.UUIDForName(ctx, "Time Warner Cable")
	require.NoError(t, err)

	require.NoError(t, registry.AddOrRebrand(ctx, []VendorSpec{
		{UUID: id, Name: "Spectrum", Pattern: "SPECTRUM", Tag: "Utilities"},
	}))

	// renaming an identity with rebrand history must not collide with its
	// own older rows on the unique name column
	require.NoError(t, registry.UpdateVendor(ctx, id, "Charter", ""))

	name, err := registry.NameForUUID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Charter", name)

	// the historical name is untouched and still maps to the identity
	oldID, err := registry.UUIDForName(ctx, "Time Warner Cable")
	require.NoError(t, err)
	assert.Equal(t, id, oldID)

	raw, err := os.ReadFile(mirror)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Charter")
	assert.Contains(t, string(raw), "Time Warner Cable")
	assert.NotContains(t, string(raw), "Spectrum")
}
