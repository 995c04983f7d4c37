package domain

import (
	"encoding/base64"
	"strconv"
)

// DefaultPageSize is the page size used by callers that do not specify one.
const DefaultPageSize = 100

// MaxPageSize caps a single page of tasks, batches, or snapshots.
const MaxPageSize = 1000

// Page is an offset/limit window. A zero or negative Limit means "no limit"
// to the repositories; callers that need bounding use Clamp.
type Page struct {
	Offset int
	Limit  int
}

// Clamp returns the page with Offset >= 0 and Limit within [1, MaxPageSize],
// using DefaultPageSize when Limit is unset.
func (p Page) Clamp() Page {
	if p.Offset < 0 {
		p.Offset = 0
	}
	switch {
	case p.Limit <= 0:
		p.Limit = DefaultPageSize
	case p.Limit > MaxPageSize:
		p.Limit = MaxPageSize
	}
	return p
}

// Next returns the page following p, or false when fetched < p.Limit.
func (p Page) Next(fetched int) (Page, bool) {
	if p.Limit <= 0 || fetched < p.Limit {
		return Page{}, false
	}
	return Page{Offset: p.Offset + p.Limit, Limit: p.Limit}, true
}

// EncodePageToken creates an opaque page token from an offset.
// Returns empty string if offset is 0 or negative.
func EncodePageToken(offset int) string {
	if offset <= 0 {
		return ""
	}
	return base64.StdEncoding.EncodeToString([]byte(strconv.Itoa(offset)))
}

// DecodePageToken turns a page token back into an offset.
// Returns 0 if the token is empty or invalid.
func DecodePageToken(token string) int {
	if token == "" {
		return 0
	}
	decoded, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return 0
	}
	offset, err := strconv.Atoi(string(decoded))
	if err != nil || offset < 0 {
		return 0
	}
	return offset
}
