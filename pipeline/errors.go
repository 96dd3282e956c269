package pipeline

import (
	"fmt"
	"strings"
)

// MergeError reports new rows and a master table with different column sets.
type MergeError struct {
	NewColumns    []string
	MasterColumns []string
}

func (e *MergeError) Error() string {
	return fmt.Sprintf("merge: schema mismatch: new rows have [%s], master has [%s]",
		strings.Join(e.NewColumns, ", "), strings.Join(e.MasterColumns, ", "))
}
