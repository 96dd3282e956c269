package scraper

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/aluiziolira/go-wishlist-tracker/extract"
)

// scrollState is the inline a-state payload carrying the next page path.
type scrollState struct {
	ShowMoreURL *string `json:"showMoreUrl"`
}

// ResolveContinuation decodes a continuation payload and returns the absolute URL of the next
// page, or "" when the payload carries no showMoreUrl. Malformed payloads return a
// *PaginationDecodeError.
func ResolveContinuation(domain string, payload []byte) (string, error) {
	payload = bytes.TrimSpace(payload)

	var state scrollState
	if err := json.Unmarshal(payload, &state); err != nil {
		return "", &PaginationDecodeError{Payload: string(payload), Err: err}
	}
	if state.ShowMoreURL == nil {
		return "", nil
	}
	next := strings.TrimSpace(*state.ShowMoreURL)
	if next == "" {
		return "", nil
	}
	return extract.ResolveURL(domain, next), nil
}
