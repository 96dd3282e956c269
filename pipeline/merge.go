package pipeline

import (
	"slices"

	"github.com/aluiziolira/go-wishlist-tracker/models"
)

type rowKey struct {
	name      string
	reference string
}

// Merge appends newRows after master and drops later duplicates of (name, reference_date).
// Since every run stamps a fresh reference date, only duplicates from the same run collapse.
// Tables with different column sets are rejected with a *MergeError.
func Merge(newRows, master models.Table) (models.Table, error) {
	if !sameColumns(newRows.Columns, master.Columns) {
		return models.Table{}, &MergeError{
			NewColumns:    slices.Clone(newRows.Columns),
			MasterColumns: slices.Clone(master.Columns),
		}
	}

	merged := make([]models.DerivedRow, 0, master.Len()+newRows.Len())
	seen := make(map[rowKey]struct{}, master.Len()+newRows.Len())
	for _, rows := range [][]models.DerivedRow{master.Rows, newRows.Rows} {
		for _, row := range rows {
			key := rowKey{name: row.Name, reference: row.ReferenceDate.Format(ReferenceDateLayout)}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, row)
		}
	}

	return models.Table{Columns: slices.Clone(master.Columns), Rows: merged}, nil
}

func sameColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	left := slices.Clone(a)
	right := slices.Clone(b)
	slices.Sort(left)
	slices.Sort(right)
	return slices.Equal(left, right)
}
