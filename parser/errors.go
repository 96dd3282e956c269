package parser

import "fmt"

// NumericParseError reports a currency or count string that could not be read as a number.
type NumericParseError struct {
	Input string
	Err   error
}

func (e *NumericParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("numeric: cannot parse %q: %v", e.Input, e.Err)
	}
	return fmt.Sprintf("numeric: cannot parse %q", e.Input)
}

func (e *NumericParseError) Unwrap() error {
	return e.Err
}

// DateParseError reports an added-date phrase that does not match the expected shape
// or names a month missing from the table.
type DateParseError struct {
	Phrase string
	Reason string
}

func (e *DateParseError) Error() string {
	return fmt.Sprintf("date: %s: %q", e.Reason, e.Phrase)
}
