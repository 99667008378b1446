package splitter

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
	"k8s.io/klog"

	"github.com/mwhite/budgeteer/pkg/transactionstore"
	"github.com/mwhite/budgeteer/pkg/vendorregistry"
)

// ChildRow is one proposed piece of a split: where part of the parent's amount
// actually went.
type ChildRow struct {
	Amount      decimal.Decimal
	Vendor      string
	Tag         string
	Description string
}

// SplitResult reports both validations. Children are only committed when both
// pass; the failure details carry enough structure to act on.
type SplitResult struct {
	AmountOK     bool
	ParentAmount decimal.Decimal
	ChildSum     decimal.Decimal

	TagsOK      bool
	UnknownTags []string

	Committed int
}

// OK reports whether both checks passed.
func (r *SplitResult) OK() bool {
	return r.AmountOK && r.TagsOK
}

func (r *SplitResult) String() string {
	if r.OK() {
		return fmt.Sprintf("split committed %d children", r.Committed)
	}

	s := ""
	if !r.AmountOK {
		s = fmt.Sprintf("Amount doesn't add up. Parent Amount: %s, Child Amount: %s.", r.ParentAmount, r.ChildSum)
	}
	if !r.TagsOK {
		if s != "" {
			s += " "
		}
		s += fmt.Sprintf("Unknown tags %v. Check spelling or add the tag to a vendor first.", r.UnknownTags)
	}

	return s
}

type Engine struct {
	db       *bun.DB
	store    *transactionstore.Store
	registry *vendorregistry.Registry
}

func NewEngine(store *transactionstore.Store, registry *vendorregistry.Registry) *Engine {
	return &Engine{db: store.DB(), store: store, registry: registry}
}

// ProposeSplit validates the child rows against the parent and, only if the
// amounts reconcile exactly and every tag is known, commits all children and
// the parent's has-child flag in a single transaction. Validation failures
// come back in the result, not as an error.
func (e *Engine) ProposeSplit(ctx context.Context, parentID int64, rows []ChildRow) (*SplitResult, error) {
	parent, err := e.store.Get(ctx, parentID)
	if err != nil {
		return nil, err
	}

	// an empty proposal would pass both checks against a zero-amount parent
	if len(rows) == 0 {
		return nil, fmt.Errorf("no child rows to split transaction %d into", parentID)
	}

	result := &SplitResult{ParentAmount: parent.Amount}

	result.ChildSum = decimal.Zero
	for _, row := range rows {
		result.ChildSum = result.ChildSum.Add(row.Amount)
	}
	result.AmountOK = result.ChildSum.Equal(parent.Amount)

	known, err := e.registry.Tags(ctx)
	if err != nil {
		return nil, err
	}

	knownSet := make(map[string]bool, len(known))
	for _, tag := range known {
		knownSet[tag] = true
	}

	result.TagsOK = true
	for _, row := range rows {
		if !knownSet[row.Tag] {
			result.TagsOK = false
			result.UnknownTags = append(result.UnknownTags, row.Tag)
		}
	}

	if !result.OK() {
		klog.Warningf("Split of transaction %d rejected: %s", parentID, result)
		return result, nil
	}

	children := make([]transactionstore.ChildTransaction, 0, len(rows))
	now := time.Now()

	for _, row := range rows {
		vendorUUID, err := e.registry.UUIDForName(ctx, row.Vendor)
		if err != nil {
			return nil, err
		}

		children = append(children, transactionstore.ChildTransaction{
			ParentID:        parent.ID,
			Date:            parent.Date,
			TransactionType: parent.TransactionType,
			Name:            parent.Name,
			Memo:            parent.Memo,
			Amount:          row.Amount,
			VendorUUID:      vendorUUID,
			Tag:             row.Tag,
			Description:     row.Description,
			Initialized:     now,
		})
	}

	err = e.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for i := range children {
			if _, err := tx.NewInsert().Model(&children[i]).Exec(ctx); err != nil {
				return fmt.Errorf("error inserting child transaction: %w", err)
			}
		}

		_, err := tx.NewUpdate().
			Model((*transactionstore.Transaction)(nil)).
			Set("has_child = ?", true).
			Where("id = ?", parent.ID).
			Exec(ctx)

		return err
	})
	if err != nil {
		return nil, err
	}

	result.Committed = len(children)
	klog.Infof("Split transaction %d into %d children", parentID, result.Committed)

	return result, nil
}
