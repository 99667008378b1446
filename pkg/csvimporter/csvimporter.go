package csvimporter

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"k8s.io/klog"

	"github.com/mwhite/budgeteer/pkg/transactionstore"
	"github.com/mwhite/budgeteer/pkg/vendorregistry"
)

// ImportCSVRunner walks the bank export folder and ingests every file that has
// not been imported yet. Idempotent at the file level via import batch markers
// and at the row level via the content hash.
type ImportCSVRunner struct {
	store    *transactionstore.Store
	registry *vendorregistry.Registry
	folder   string
	profiles map[string]BankProfile
}

func NewImportCSVRunner(store *transactionstore.Store, registry *vendorregistry.Registry, folder, profilesPath string) (*ImportCSVRunner, error) {
	profiles, err := LoadBankProfiles(profilesPath)
	if err != nil {
		return nil, err
	}

	return &ImportCSVRunner{
		store:    store,
		registry: registry,
		folder:   folder,
		profiles: profiles,
	}, nil
}

func (i *ImportCSVRunner) Run() error {
	ctx := context.Background()

	names, err := listCSVNames(i.folder)
	if err != nil {
		return err
	}

	fresh, err := i.store.ListUnimportedSources(ctx, names)
	if err != nil {
		return err
	}

	if len(fresh) == 0 {
		klog.Infof("no new bank files to import")
		return nil
	}

	for _, name := range fresh {
		if err := i.importFile(ctx, name); err != nil {
			return err
		}
	}

	return nil
}

func (i *ImportCSVRunner) importFile(ctx context.Context, name string) error {
	path := filepath.Join(i.folder, name)

	csvFile, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s csv file: %w", path, err)
	}
	defer csvFile.Close()

	reader := csv.NewReader(bufio.NewReader(csvFile))

	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("failed to parse %s csv header: %w", name, err)
	}

	profile := detectBank(header, i.profiles)
	if profile == nil {
		klog.Warningf("No bank profile detected for %s, skipping", name)
		return nil
	}

	klog.Infof("Detected %s", profile.BankName)

	err = i.store.RecordImportBatch(ctx, name)
	if errors.Is(err, transactionstore.ErrDuplicateBatch) {
		klog.Infof("%s already imported, skipping", name)
		return nil
	}
	if err != nil {
		return err
	}

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to parse %s csv row: %w", name, err)
		}

		if err := i.importRow(ctx, profile, row); err != nil {
			return fmt.Errorf("error importing row from %s: %w", name, err)
		}
	}

	klog.Infof("Successfully imported all transactions from %s", name)

	return nil
}

func (i *ImportCSVRunner) importRow(ctx context.Context, profile *BankProfile, row []string) error {
	cols := profile.Columns

	date, err := processDate(profile, row[cols["date"].Index])
	if err != nil {
		return err
	}

	transactionType := row[cols["transaction"].Index]
	payee := row[cols["name"].Index]
	memo := row[cols["memo"].Index]

	amountString, err := cleanMoney(row[cols["amount"].Index], profile.FlipValues)
	if err != nil {
		return err
	}

	amount, err := decimal.NewFromString(amountString)
	if err != nil {
		return fmt.Errorf("error parsing amount %q: %w", amountString, err)
	}

	hash := HashTransaction(date, transactionType, payee, memo, amountString)

	vendorUUID, err := i.registry.Resolve(ctx, payee)
	if err != nil {
		return err
	}

	err = i.store.Insert(ctx, &transactionstore.Transaction{
		Date:            date,
		TransactionType: transactionType,
		Name:            payee,
		Memo:            memo,
		Amount:          amount,
		VendorUUID:      vendorUUID,
		Hash:            hash,
	})
	if errors.Is(err, transactionstore.ErrDuplicateHash) {
		klog.Infof("%s is a duplicate expense", hash)
		return nil
	}

	return err
}

func listCSVNames(folder string) ([]string, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("error reading csv folder %s: %w", folder, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			continue
		}
		names = append(names, e.Name())
	}

	return names, nil
}
