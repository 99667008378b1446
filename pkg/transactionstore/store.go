package transactionstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/mwhite/budgeteer/pkg/sqlutils"
)

var (
	// ErrDuplicateHash means the transaction's content hash is already
	// stored. Routine during re-imports, not fatal.
	ErrDuplicateHash = errors.New("duplicate content hash")
	// ErrDuplicateBatch means the import file was already recorded.
	ErrDuplicateBatch = errors.New("duplicate import batch")
	// ErrTransactionNotFound means no transaction row has the requested id.
	ErrTransactionNotFound = errors.New("transaction not found")
)

type Store struct {
	db *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle so collaborators can group writes with
// store writes in one transaction.
func (s *Store) DB() *bun.DB {
	return s.db
}

func (s *Store) Migrate(ctx context.Context) error {
	models := []interface{}{
		(*Transaction)(nil),
		(*ChildTransaction)(nil),
		(*ImportBatch)(nil),
	}

	for _, model := range models {
		_, err := s.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx)
		if err != nil {
			return fmt.Errorf("error creating table: %w", err)
		}
	}

	return nil
}

func (s *Store) Insert(ctx context.Context, txn *Transaction) error {
	_, err := s.db.NewInsert().Model(txn).Exec(ctx)
	if sqlutils.IsUniqueViolation(err) {
		return fmt.Errorf("%w: %s", ErrDuplicateHash, txn.Hash)
	}

	return err
}

func (s *Store) RecordImportBatch(ctx context.Context, filename string) error {
	batch := ImportBatch{Filename: filename}

	_, err := s.db.NewInsert().Model(&batch).Exec(ctx)
	if sqlutils.IsUniqueViolation(err) {
		return fmt.Errorf("%w: %s", ErrDuplicateBatch, filename)
	}

	return err
}

func (s *Store) ImportedBatches(ctx context.Context) ([]string, error) {
	var names []string

	err := s.db.NewSelect().
		Model((*ImportBatch)(nil)).
		Column("filename").
		Scan(ctx, &names)

	return names, err
}

// ListUnimportedSources returns the subset of known source names that have no
// import batch recorded yet.
func (s *Store) ListUnimportedSources(ctx context.Context, known []string) ([]string, error) {
	imported, err := s.ImportedBatches(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(imported))
	for _, name := range imported {
		seen[name] = true
	}

	var fresh []string
	for _, name := range known {
		if !seen[name] {
			fresh = append(fresh, name)
		}
	}

	return fresh, nil
}

func (s *Store) Get(ctx context.Context, id int64) (*Transaction, error) {
	txn := new(Transaction)

	err := s.db.NewSelect().Model(txn).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", ErrTransactionNotFound, id)
	}

	return txn, err
}

func (s *Store) MarkHasChildren(ctx context.Context, id int64) error {
	_, err := s.db.NewUpdate().
		Model((*Transaction)(nil)).
		Set("has_child = ?", true).
		Where("id = ?", id).
		Exec(ctx)

	return err
}

// ListByVendor returns all transactions carrying the given vendor reference,
// oldest first. Called with the unresolved sentinel to find backfill
// candidates.
func (s *Store) ListByVendor(ctx context.Context, vendorUUID string) ([]Transaction, error) {
	var txns []Transaction

	err := s.db.NewSelect().
		Model(&txns).
		Where("vendor_uuid = ?", vendorUUID).
		Order("id ASC").
		Scan(ctx)

	return txns, err
}

func (s *Store) ReassignVendor(ctx context.Context, id int64, vendorUUID string) error {
	_, err := s.db.NewUpdate().
		Model((*Transaction)(nil)).
		Set("vendor_uuid = ?", vendorUUID).
		Where("id = ?", id).
		Exec(ctx)

	return err
}

// Parents returns all transactions, oldest first.
func (s *Store) Parents(ctx context.Context) ([]Transaction, error) {
	var txns []Transaction

	err := s.db.NewSelect().Model(&txns).Order("id ASC").Scan(ctx)

	return txns, err
}

// Children returns all child transactions, oldest first.
func (s *Store) Children(ctx context.Context) ([]ChildTransaction, error) {
	var children []ChildTransaction

	err := s.db.NewSelect().Model(&children).Order("id ASC").Scan(ctx)

	return children, err
}

// ChildrenOf returns the child transactions of one parent.
func (s *Store) ChildrenOf(ctx context.Context, parentID int64) ([]ChildTransaction, error) {
	var children []ChildTransaction

	err := s.db.NewSelect().
		Model(&children).
		Where("parent_id = ?", parentID).
		Order("id ASC").
		Scan(ctx)

	return children, err
}
