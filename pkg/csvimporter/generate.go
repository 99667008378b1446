package csvimporter

import (
	"encoding/csv"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"
)

var exampleNames = []string{
	"COSTCO",
	"TOM THUMB",
	"SCOOTER'S COFFEE",
	"VELVET TACO",
	"NANDOS",
	"Coffee Shop",
	"ATM withdrawl",
	"CVS",
	"CASH APP",
	"Taco Deli",
	"WHATABURG",
	"GEICO",
}

// GenerateExampleData writes a fake bank export into the folder so the
// pipeline can be tried without real statements. Returns the filename.
func GenerateExampleData(numRows int, accountType, folder string) (string, error) {
	if accountType == "" {
		accountType = []string{"Checking", "Credit Card"}[rand.Intn(2)]
	}

	filename := fmt.Sprintf("TEST DATA %s - %s.csv", accountType, time.Now().Format("2006-01-02 15-04-05"))

	f, err := os.Create(filepath.Join(folder, filename))
	if err != nil {
		return "", fmt.Errorf("error creating example data file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"Date", "Transaction", "Name", "Memo", "Amount"}); err != nil {
		return "", err
	}

	month, day := 1, 1
	for i := 0; i < numRows; i++ {
		if day > 28 {
			month++
			day = 1
		}

		row := []string{
			fmt.Sprintf("2022-%02d-%02d", month, day),
			[]string{"Debit", "Credit"}[rand.Intn(2)],
			exampleNames[rand.Intn(len(exampleNames))],
			"this is test data",
			fmt.Sprintf("%.2f", -rand.Float64()*1000),
		}
		if err := w.Write(row); err != nil {
			return "", err
		}

		day++
	}

	w.Flush()

	return filename, w.Error()
}
