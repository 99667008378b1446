package vendorregistry

import (
	"fmt"
	"os"
	"time"

	"github.com/ghodss/yaml"
)

// mirrorEntry is the on-disk form of a vendor row. The mirror file is a
// store-independent backup: if the database is ever deleted, LoadVendors
// rebuilds the vendor table from it.
type mirrorEntry struct {
	UUID        string `json:"UUID"`
	Vendor      string `json:"Vendor"`
	Pattern     string `json:"Pattern"`
	Tag         string `json:"Tag"`
	Initialized string `json:"Initialized"`
}

func readMirror(path string) ([]Vendor, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var entries []mirrorEntry
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("error parsing vendor mirror %s: %w", path, err)
	}

	rows := make([]Vendor, 0, len(entries))
	for _, entry := range entries {
		initialized, err := time.Parse(time.RFC3339, entry.Initialized)
		if err != nil {
			return nil, fmt.Errorf("error parsing vendor mirror %s: bad timestamp %q: %w", path, entry.Initialized, err)
		}

		rows = append(rows, Vendor{
			Name:        entry.Vendor,
			Pattern:     entry.Pattern,
			Tag:         entry.Tag,
			UUID:        entry.UUID,
			Initialized: initialized,
		})
	}

	return rows, nil
}

func writeMirror(path string, rows []Vendor) error {
	entries := make([]mirrorEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, mirrorEntry{
			UUID:        row.UUID,
			Vendor:      row.Name,
			Pattern:     row.Pattern,
			Tag:         row.Tag,
			Initialized: row.Initialized.Format(time.RFC3339),
		})
	}

	raw, err := yaml.Marshal(entries)
	if err != nil {
		return err
	}

	return os.WriteFile(path, raw, 0o644)
}

// appendMirror rewrites the mirror file with the new vendors added to the end.
func appendMirror(path string, rows []Vendor) error {
	existing, err := readMirror(path)
	if err != nil {
		return err
	}

	return writeMirror(path, append(existing, rows...))
}

// updateMirror applies a pattern change to every mirror entry sharing the
// identity and a name change to the entry carrying latestName, matching what
// UpdateVendor does in the database.
func updateMirror(path, vendorUUID, latestName, newName, newPattern string) error {
	rows, err := readMirror(path)
	if err != nil {
		return err
	}

	found := false
	for i := range rows {
		if rows[i].UUID != vendorUUID {
			continue
		}
		found = true

		if newName != "" && rows[i].Name == latestName {
			rows[i].Name = newName
		}
		if newPattern != "" {
			rows[i].Pattern = newPattern
		}
	}

	if !found {
		return fmt.Errorf("%w: %s not in mirror %s", ErrVendorNotFound, vendorUUID, path)
	}

	return writeMirror(path, rows)
}
