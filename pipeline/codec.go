package pipeline

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aluiziolira/go-wishlist-tracker/models"
)

// EncodeRawItems renders extracted items as an indented JSON array.
func EncodeRawItems(items []models.RawItem) ([]byte, error) {
	if items == nil {
		items = []models.RawItem{}
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode raw items: %w", err)
	}
	return data, nil
}

// DecodeRawItems reads a JSON array written by EncodeRawItems.
func DecodeRawItems(data []byte) ([]models.RawItem, error) {
	var items []models.RawItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode raw items: %w", err)
	}
	return items, nil
}

// EncodeTable writes rows as delimited text with the canonical header.
func EncodeTable(table models.Table, sep rune) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	writer.Comma = sep

	if err := writer.Write(models.TableColumns); err != nil {
		return nil, fmt.Errorf("write table header: %w", err)
	}
	for _, row := range table.Rows {
		record := []string{
			row.Name,
			row.URL,
			strconv.Itoa(row.ReviewCount),
			row.ReviewStars,
			row.AddedDate,
			strconv.FormatFloat(row.TotalPrice, 'f', -1, 64),
			strconv.Itoa(row.Availability),
			row.ReferenceDate.Format(ReferenceDateLayout),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("write table record: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush table: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeTable reads delimited text into a table. Leading index columns left by older
// exports (an empty or "Unnamed: N" header) are dropped. Columns outside the canonical
// set are kept in Columns so a later merge can reject them.
func DecodeTable(data []byte, sep rune) (models.Table, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = sep
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return models.Table{}, fmt.Errorf("read table header: %w", err)
	}
	offset := 0
	for offset < len(header) && isIndexColumn(header[offset]) {
		offset++
	}
	columns := header[offset:]

	positions := make(map[string]int, len(columns))
	for i, name := range columns {
		positions[strings.TrimSpace(name)] = i
	}

	records, err := reader.ReadAll()
	if err != nil {
		return models.Table{}, fmt.Errorf("read table records: %w", err)
	}

	rows := make([]models.DerivedRow, 0, len(records))
	for line, record := range records {
		if len(record) < len(header) {
			return models.Table{}, fmt.Errorf("table record %d: %d fields, want %d", line+2, len(record), len(header))
		}
		row, err := decodeRow(record[offset:], positions)
		if err != nil {
			return models.Table{}, fmt.Errorf("table record %d: %w", line+2, err)
		}
		rows = append(rows, row)
	}

	return models.Table{Columns: columns, Rows: rows}, nil
}

func decodeRow(record []string, positions map[string]int) (models.DerivedRow, error) {
	field := func(name string) string {
		if i, ok := positions[name]; ok {
			return record[i]
		}
		return ""
	}

	var row models.DerivedRow
	var err error
	row.Name = field(models.ColumnName)
	row.URL = field(models.ColumnURL)
	row.ReviewStars = field(models.ColumnReviewStars)
	row.AddedDate = field(models.ColumnAddedDate)

	if row.ReviewCount, err = decodeInt(field(models.ColumnReviewCount)); err != nil {
		return row, fmt.Errorf("%s: %w", models.ColumnReviewCount, err)
	}
	if row.Availability, err = decodeInt(field(models.ColumnAvailability)); err != nil {
		return row, fmt.Errorf("%s: %w", models.ColumnAvailability, err)
	}
	if raw := field(models.ColumnTotalPrice); raw != "" {
		if row.TotalPrice, err = strconv.ParseFloat(raw, 64); err != nil {
			return row, fmt.Errorf("%s: %w", models.ColumnTotalPrice, err)
		}
	}
	if raw := field(models.ColumnReferenceDate); raw != "" {
		if row.ReferenceDate, err = time.ParseInLocation(ReferenceDateLayout, raw, time.Local); err != nil {
			return row, fmt.Errorf("%s: %w", models.ColumnReferenceDate, err)
		}
	}
	return row, nil
}

// decodeInt accepts "12" as well as "12.0", which float-typed columns produce.
func decodeInt(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

func isIndexColumn(name string) bool {
	name = strings.TrimSpace(name)
	return name == "" || strings.HasPrefix(name, "Unnamed:")
}
