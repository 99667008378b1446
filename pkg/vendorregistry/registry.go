package vendorregistry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"k8s.io/klog"

	"github.com/mwhite/budgeteer/pkg/sqlutils"
	"github.com/mwhite/budgeteer/pkg/transactionstore"
)

// UnresolvedVendor is the vendor reference stored on transactions whose payee
// matched no pattern. It is a legitimate stored value, not an error.
const UnresolvedVendor = "No Vendor Found"

var (
	// ErrVendorNotFound means no vendor row exists for the requested
	// identity or name. Distinct from the UnresolvedVendor sentinel.
	ErrVendorNotFound = errors.New("vendor not found")
	// ErrDuplicateVendor means a display name collided during add or
	// rebrand. The whole batch is rolled back.
	ErrDuplicateVendor = errors.New("duplicate vendor")
)

// Vendor is one classification rule: payees matching Pattern belong to the
// vendor identified by UUID. Rebranding inserts a new row with the same UUID;
// lookups pick the row with the newest Initialized timestamp.
type Vendor struct {
	bun.BaseModel `bun:"table:vendors"`

	ID          int64     `bun:",pk,autoincrement"`
	Name        string    `bun:"vendor,unique"`
	Pattern     string    `bun:"pattern"`
	Tag         string    `bun:"tag"`
	UUID        string    `bun:"uuid"`
	Initialized time.Time `bun:"initialized"`
}

// VendorSpec is the input to AddOrRebrand. A populated UUID marks a rebrand of
// an existing identity; an empty one a brand-new vendor.
type VendorSpec struct {
	UUID    string `json:"UUID,omitempty"`
	Name    string `json:"Vendor"`
	Pattern string `json:"Pattern"`
	Tag     string `json:"Tag"`
}

type Registry struct {
	db         *bun.DB
	store      *transactionstore.Store
	mirrorPath string
}

func NewRegistry(db *bun.DB, store *transactionstore.Store, mirrorPath string) *Registry {
	return &Registry{db: db, store: store, mirrorPath: mirrorPath}
}

func (r *Registry) Migrate(ctx context.Context) error {
	_, err := r.db.NewCreateTable().Model((*Vendor)(nil)).IfNotExists().Exec(ctx)
	if err != nil {
		return fmt.Errorf("error creating vendors table: %w", err)
	}

	return nil
}

// Resolve returns the UUID of the first vendor whose pattern matches the
// description. Patterns are tried in row id order, so first-match-wins is
// stable across calls. Returns UnresolvedVendor when nothing matches.
func (r *Registry) Resolve(ctx context.Context, description string) (string, error) {
	var vendors []Vendor

	err := r.db.NewSelect().
		Model(&vendors).
		Column("uuid", "pattern").
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return "", err
	}

	for _, vendor := range vendors {
		pattern, err := regexp.Compile(vendor.Pattern)
		if err != nil {
			klog.Warningf("Skipping vendor %s: invalid pattern %q: %v", vendor.UUID, vendor.Pattern, err)
			continue
		}

		if pattern.MatchString(description) {
			return vendor.UUID, nil
		}
	}

	return UnresolvedVendor, nil
}

// Tags returns the distinct tag universe across all vendors.
func (r *Registry) Tags(ctx context.Context) ([]string, error) {
	var tags []string

	err := r.db.NewSelect().
		Model((*Vendor)(nil)).
		ColumnExpr("DISTINCT tag").
		Scan(ctx, &tags)

	return tags, err
}

// AddOrRebrand inserts the given vendors in one transaction. Specs without a
// UUID get a fresh identity; specs with one are rebrands that keep historical
// transaction references intact. Any failure rolls back the whole batch. On
// success the vendors are appended to the YAML mirror and previously
// unresolved transactions are backfilled against the new patterns.
func (r *Registry) AddOrRebrand(ctx context.Context, specs []VendorSpec) error {
	rows := make([]Vendor, 0, len(specs))
	now := time.Now()

	for _, spec := range specs {
		if spec.Name == "" {
			return fmt.Errorf("vendor name is mandatory")
		}

		vendorUUID := spec.UUID
		if vendorUUID == "" {
			vendorUUID = uuid.NewString()
		} else {
			// rebrands inherit whatever the caller leaves blank
			if spec.Pattern == "" || spec.Tag == "" {
				previous, err := r.latestByUUID(ctx, vendorUUID)
				if err != nil {
					return err
				}
				if previous == nil {
					return fmt.Errorf("cannot rebrand %q", vendorUUID)
				}
				if spec.Pattern == "" {
					spec.Pattern = previous.Pattern
				}
				if spec.Tag == "" {
					spec.Tag = previous.Tag
				}
			}

			klog.Infof("%s rebranded", spec.Name)
		}

		rows = append(rows, Vendor{
			Name:        spec.Name,
			Pattern:     spec.Pattern,
			Tag:         spec.Tag,
			UUID:        vendorUUID,
			Initialized: now,
		})
	}

	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for i := range rows {
			_, err := tx.NewInsert().Model(&rows[i]).Exec(ctx)
			if sqlutils.IsUniqueViolation(err) {
				return fmt.Errorf("%w: %s", ErrDuplicateVendor, rows[i].Name)
			}
			if err != nil {
				return fmt.Errorf("error inserting vendor %s: %w", rows[i].Name, err)
			}
		}

		return nil
	})
	if err != nil {
		return err
	}

	if err := appendMirror(r.mirrorPath, rows); err != nil {
		return fmt.Errorf("vendors committed but mirror update failed: %w", err)
	}

	for _, row := range rows {
		if err := r.backfill(ctx, row); err != nil {
			return err
		}
	}

	return nil
}

// backfill re-resolves unresolved transactions against one new vendor. Runs
// outside the insert transaction; it is re-runnable and touches only
// transactions still carrying the sentinel.
func (r *Registry) backfill(ctx context.Context, vendor Vendor) error {
	pattern, err := regexp.Compile(vendor.Pattern)
	if err != nil {
		klog.Warningf("Skipping backfill for %s: invalid pattern %q: %v", vendor.Name, vendor.Pattern, err)
		return nil
	}

	unresolved, err := r.store.ListByVendor(ctx, UnresolvedVendor)
	if err != nil {
		return err
	}

	matched := 0
	for _, txn := range unresolved {
		if !pattern.MatchString(txn.Name) {
			continue
		}

		if err := r.store.ReassignVendor(ctx, txn.ID, vendor.UUID); err != nil {
			return fmt.Errorf("error backfilling transaction %d: %w", txn.ID, err)
		}
		matched++
	}

	if matched > 0 {
		klog.Infof("Backfilled %d transactions to vendor %s", matched, vendor.Name)
	}

	return nil
}

// UpdateVendor changes the pattern of every row sharing the given identity
// and the display name of only the newest row. Older rebrand rows keep their
// historical names, which also keeps them clear of the unique name column.
// The mirror is rewritten inside the same transaction scope: a mirror failure
// rolls the database change back.
func (r *Registry) UpdateVendor(ctx context.Context, vendorUUID, newName, newPattern string) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		latest := new(Vendor)

		err := tx.NewSelect().
			Model(latest).
			Where("uuid = ?", vendorUUID).
			OrderExpr("initialized DESC, id DESC").
			Limit(1).
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrVendorNotFound, vendorUUID)
		}
		if err != nil {
			return err
		}

		if newName != "" {
			_, err = tx.NewUpdate().
				Model((*Vendor)(nil)).
				Set("vendor = ?", newName).
				Where("id = ?", latest.ID).
				Exec(ctx)
			if sqlutils.IsUniqueViolation(err) {
				return fmt.Errorf("%w: %s", ErrDuplicateVendor, newName)
			}
			if err != nil {
				return err
			}
		}

		if newPattern != "" {
			_, err = tx.NewUpdate().
				Model((*Vendor)(nil)).
				Set("pattern = ?", newPattern).
				Where("uuid = ?", vendorUUID).
				Exec(ctx)
			if err != nil {
				return err
			}
		}

		return updateMirror(r.mirrorPath, vendorUUID, latest.Name, newName, newPattern)
	})
}

// TagForUUID returns the tag of the newest row for the identity. The
// unresolved sentinel passes through untouched.
func (r *Registry) TagForUUID(ctx context.Context, vendorUUID string) (string, error) {
	vendor, err := r.latestByUUID(ctx, vendorUUID)
	if err != nil {
		return "", err
	}
	if vendor == nil {
		return UnresolvedVendor, nil
	}

	return vendor.Tag, nil
}

// NameForUUID returns the display name of the newest row for the identity.
func (r *Registry) NameForUUID(ctx context.Context, vendorUUID string) (string, error) {
	vendor, err := r.latestByUUID(ctx, vendorUUID)
	if err != nil {
		return "", err
	}
	if vendor == nil {
		return UnresolvedVendor, nil
	}

	return vendor.Name, nil
}

func (r *Registry) latestByUUID(ctx context.Context, vendorUUID string) (*Vendor, error) {
	if vendorUUID == UnresolvedVendor {
		return nil, nil
	}

	vendor := new(Vendor)

	err := r.db.NewSelect().
		Model(vendor).
		Where("uuid = ?", vendorUUID).
		OrderExpr("initialized DESC, id DESC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrVendorNotFound, vendorUUID)
	}
	if err != nil {
		return nil, err
	}

	return vendor, nil
}

// UUIDForName is the reverse lookup used when split rows name their vendor.
func (r *Registry) UUIDForName(ctx context.Context, name string) (string, error) {
	vendor := new(Vendor)

	err := r.db.NewSelect().
		Model(vendor).
		Column("uuid").
		Where("vendor = ?", name).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ErrVendorNotFound, name)
	}
	if err != nil {
		return "", err
	}

	return vendor.UUID, nil
}

// LoadVendors seeds the vendors table from the YAML mirror. Rows already
// present are left alone, so running it on every startup is safe.
func (r *Registry) LoadVendors(ctx context.Context) error {
	rows, err := readMirror(r.mirrorPath)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	_, err = r.db.NewInsert().
		Model(&rows).
		On("CONFLICT DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("error loading vendors from %s: %w", r.mirrorPath, err)
	}

	klog.Infof("Vendors are loaded")

	return nil
}
