package extract

import "fmt"

// ExtractionError indicates a listing node without one of the required fields.
type ExtractionError struct {
	Field string
	Name  string
	Err   error
}

func (e *ExtractionError) Error() string {
	subject := e.Name
	if subject == "" {
		subject = "listing node"
	}
	if e.Err != nil {
		return fmt.Sprintf("extract %s: field %s: %v", subject, e.Field, e.Err)
	}
	return fmt.Sprintf("extract %s: missing field %s", subject, e.Field)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}
