// Package reporting aggregates persisted transactions by tag and month for
// visualization. Read-only consumer of the stores.
package reporting

import (
	"context"
	"errors"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/mwhite/budgeteer/pkg/transactionstore"
	"github.com/mwhite/budgeteer/pkg/vendorregistry"
)

// TagTotal is the spend total of one tag in one month.
type TagTotal struct {
	Month string
	Tag   string
	Total decimal.Decimal
}

type Aggregator struct {
	store    *transactionstore.Store
	registry *vendorregistry.Registry
}

func NewAggregator(store *transactionstore.Store, registry *vendorregistry.Registry) *Aggregator {
	return &Aggregator{store: store, registry: registry}
}

// SpendingByTag totals amounts per (month, tag). Split parents are replaced by
// their children, which carry their own tags; unsplit transactions resolve
// through the vendor registry. Vendors that disappeared from the registry
// report under the unresolved label rather than failing the aggregation.
func (a *Aggregator) SpendingByTag(ctx context.Context) ([]TagTotal, error) {
	totals := make(map[string]map[string]decimal.Decimal)

	add := func(month, tag string, amount decimal.Decimal) {
		if totals[month] == nil {
			totals[month] = make(map[string]decimal.Decimal)
		}
		totals[month][tag] = totals[month][tag].Add(amount)
	}

	parents, err := a.store.Parents(ctx)
	if err != nil {
		return nil, err
	}

	for _, txn := range parents {
		if txn.HasChild {
			continue
		}

		tag, err := a.registry.TagForUUID(ctx, txn.VendorUUID)
		if errors.Is(err, vendorregistry.ErrVendorNotFound) {
			tag = vendorregistry.UnresolvedVendor
		} else if err != nil {
			return nil, err
		}

		add(month(txn.Date), tag, txn.Amount)
	}

	children, err := a.store.Children(ctx)
	if err != nil {
		return nil, err
	}

	for _, child := range children {
		add(month(child.Date), child.Tag, child.Amount)
	}

	var rows []TagTotal
	for m, tags := range totals {
		for tag, total := range tags {
			rows = append(rows, TagTotal{Month: m, Tag: tag, Total: total})
		}
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Month != rows[j].Month {
			return rows[i].Month < rows[j].Month
		}
		return rows[i].Tag < rows[j].Tag
	})

	return rows, nil
}

// MonthlyTotals collapses SpendingByTag over tags.
func (a *Aggregator) MonthlyTotals(ctx context.Context) ([]TagTotal, error) {
	byTag, err := a.SpendingByTag(ctx)
	if err != nil {
		return nil, err
	}

	totals := make(map[string]decimal.Decimal)
	for _, row := range byTag {
		totals[row.Month] = totals[row.Month].Add(row.Total)
	}

	var rows []TagTotal
	for m, total := range totals {
		rows = append(rows, TagTotal{Month: m, Total: total})
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].Month < rows[j].Month })

	return rows, nil
}

// month extracts YYYY-MM from a stored ISO 8601 date.
func month(date string) string {
	if len(date) < 7 {
		return date
	}
	return date[:7]
}
