package batch

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Author identifies one batch job: a display name plus the Scholar user ID
// whose profile should be scraped.
type Author struct {
	Name   string
	UserID string
}

// LoadAuthors reads a roster CSV. Two header shapes are recognized:
// "name,user_id" and the export form "ID,Nama,GoogleScholarID,Status".
// Rows without a user ID are skipped.
func LoadAuthors(path string) ([]Author, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open authors csv: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read authors csv header: %w", err)
	}
	nameCol, idCol, err := resolveColumns(header)
	if err != nil {
		return nil, err
	}

	var authors []Author
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read authors csv row: %w", err)
		}
		if idCol >= len(record) {
			continue
		}
		id := strings.TrimSpace(record[idCol])
		if id == "" {
			continue
		}
		name := ""
		if nameCol >= 0 && nameCol < len(record) {
			name = strings.TrimSpace(record[nameCol])
		}
		authors = append(authors, Author{Name: name, UserID: id})
	}
	return authors, nil
}

// resolveColumns maps the header row onto name and user ID column indexes.
func resolveColumns(header []string) (nameCol, idCol int, err error) {
	nameCol, idCol = -1, -1
	for i, col := range header {
		switch strings.ToLower(strings.TrimSpace(col)) {
		case "user_id", "googlescholarid":
			if idCol == -1 {
				idCol = i
			}
		case "name", "nama":
			if nameCol == -1 {
				nameCol = i
			}
		}
	}
	if idCol == -1 {
		return 0, 0, fmt.Errorf("authors csv: no user id column in header %q", strings.Join(header, ","))
	}
	return nameCol, idCol, nil
}
