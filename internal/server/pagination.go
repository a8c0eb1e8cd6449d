package server

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

func normalizeLimit(in int) int {
	switch {
	case in <= 0:
		return defaultPageSize
	case in > maxPageSize:
		return maxPageSize
	}
	return in
}

var errBadCursor = errors.New("invalid cursor")

// Keyset cursors for lists ordered by (created_at, id) are opaque to
// clients: base64url of "created_at|id".
func parseCompositeCursor(cursor string) (createdAt, id string, err error) {
	if cursor == "" {
		return "", "", nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return "", "", errBadCursor
	}
	createdAt, id, ok := strings.Cut(string(raw), "|")
	if !ok || createdAt == "" || id == "" {
		return "", "", errBadCursor
	}
	return createdAt, id, nil
}

func composeCursor(createdAt, id string) string {
	if createdAt == "" || id == "" {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString([]byte(createdAt + "|" + id))
}

func badCursor(cursor string) huma.StatusError {
	return newAPIError(http.StatusBadRequest, "bad_request", errBadCursor.Error(), map[string]any{"cursor": cursor})
}

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
