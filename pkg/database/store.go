package database

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

// ErrAbortTransaction can be returned from a TransactionFunc to leave the node untouched.
var ErrAbortTransaction = errors.New("transaction aborted")

// TransactionFunc receives the current JSON value at a path ("null" when absent) and
// returns the value to write in its place.
type TransactionFunc func(current json.RawMessage) (interface{}, error)

// Store is a tree-structured JSON document store addressed by slash separated paths.
// It mirrors the subset of the Firebase Realtime Database API the service relies on.
type Store interface {
	// Get decodes the value at path into v. It reports false when nothing is stored there.
	Get(ctx context.Context, path string, v interface{}) (bool, error)
	// Set replaces the value at path.
	Set(ctx context.Context, path string, v interface{}) error
	// Update writes each key of values (keys may contain slashes) below path.
	Update(ctx context.Context, path string, values map[string]interface{}) error
	// Remove deletes the value at path.
	Remove(ctx context.Context, path string) error
	// FindByChild returns the first child of path whose field child equals value,
	// decoded into v. Children are visited in key order.
	FindByChild(ctx context.Context, path, child string, value interface{}, v interface{}) (string, bool, error)
	// Transaction atomically replaces the value at path with the result of fn.
	Transaction(ctx context.Context, path string, fn TransactionFunc) error
}

func splitPath(path string) []string {
	var parts []string
	for _, p := range strings.Split(path, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

func joinPath(parts ...string) string {
	var out []string
	for _, p := range parts {
		out = append(out, splitPath(p)...)
	}
	return strings.Join(out, "/")
}

func isNull(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return trimmed == "" || trimmed == "null"
}
