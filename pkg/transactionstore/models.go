package transactionstore

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// Transaction is one imported bank transaction. The Hash column is the sole
// duplicate detection mechanism: two rows with the same normalized
// date/type/name/memo/amount collapse into one.
type Transaction struct {
	bun.BaseModel `bun:"table:transactions"`

	ID              int64           `bun:",pk,autoincrement"`
	Date            string          `bun:"date"`
	TransactionType string          `bun:"transaction_type"`
	Name            string          `bun:"name"`
	Memo            string          `bun:"memo,type:text"`
	Amount          decimal.Decimal `bun:"amount,type:numeric"`
	VendorUUID      string          `bun:"vendor_uuid"`
	HasChild        bool            `bun:"has_child"`
	Hash            string          `bun:"hash,unique"`
}

// ChildTransaction is one row of a split. Date, type, name and memo are a
// snapshot of the parent at split time, not a live reference.
type ChildTransaction struct {
	bun.BaseModel `bun:"table:child_transactions"`

	ID              int64           `bun:",pk,autoincrement"`
	ParentID        int64           `bun:"parent_id"`
	Date            string          `bun:"date"`
	TransactionType string          `bun:"transaction_type"`
	Name            string          `bun:"name"`
	Memo            string          `bun:"memo,type:text"`
	Amount          decimal.Decimal `bun:"amount,type:numeric"`
	VendorUUID      string          `bun:"vendor_uuid"`
	Tag             string          `bun:"tag"`
	Description     string          `bun:"description"`
	Initialized     time.Time       `bun:"initialized"`
}

// ImportBatch records a source filename once it has been opened for import, so
// the same file is never consumed twice.
type ImportBatch struct {
	bun.BaseModel `bun:"table:import_batches"`

	ID       int64  `bun:",pk,autoincrement"`
	Filename string `bun:"filename,unique"`
}
