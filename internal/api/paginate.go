package api

import (
	"encoding/base64"
	"net/http"
	"strconv"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

// parsePagination extracts cursor and limit from query parameters.
// limit defaults to 50 and is silently capped at 200.
func parsePagination(r *http.Request) (cursor string, limit int) {
	cursor = r.URL.Query().Get("cursor")
	limit = defaultLimit

	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	if limit > maxLimit {
		limit = maxLimit
	}

	return cursor, limit
}

// encodeCursor encodes the offset of the next page as an opaque cursor.
func encodeCursor(offset int) string {
	return base64.URLEncoding.EncodeToString([]byte(strconv.Itoa(offset)))
}

// decodeCursor decodes a cursor back to an offset. Empty or invalid cursors
// start from the beginning.
func decodeCursor(cursor string) int {
	if cursor == "" {
		return 0
	}
	b, err := base64.URLEncoding.DecodeString(cursor)
	if err != nil {
		return 0
	}
	n, err := strconv.Atoi(string(b))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// page slices items according to the request's cursor and limit and returns
// the cursor of the following page, or nil on the last page.
func page[T any](r *http.Request, items []T) ([]T, *string) {
	cursor, limit := parsePagination(r)
	start := decodeCursor(cursor)
	if start > len(items) {
		start = len(items)
	}
	end := start + limit
	if end >= len(items) {
		return items[start:], nil
	}
	next := encodeCursor(end)
	return items[start:end], &next
}
