package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"firebase.google.com/go/v4/db"
)

// FirebaseStore implements Store on top of the Firebase Realtime Database.
type FirebaseStore struct {
	client *db.Client
}

// NewFirebaseStore wraps an initialized Realtime Database client
func NewFirebaseStore(client *db.Client) *FirebaseStore {
	return &FirebaseStore{client: client}
}

func (s *FirebaseStore) Get(ctx context.Context, path string, v interface{}) (bool, error) {
	var raw json.RawMessage
	if err := s.client.NewRef(path).Get(ctx, &raw); err != nil {
		return false, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if isNull(raw) {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return true, nil
}

func (s *FirebaseStore) Set(ctx context.Context, path string, v interface{}) error {
	if err := s.client.NewRef(path).Set(ctx, v); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func (s *FirebaseStore) Update(ctx context.Context, path string, values map[string]interface{}) error {
	if len(values) == 0 {
		return nil
	}
	if err := s.client.NewRef(path).Update(ctx, values); err != nil {
		return fmt.Errorf("failed to update %s: %w", path, err)
	}
	return nil
}

func (s *FirebaseStore) Remove(ctx context.Context, path string) error {
	if err := s.client.NewRef(path).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}
	return nil
}

// FindByChild requires an ".indexOn" rule for child in the database rules.
func (s *FirebaseStore) FindByChild(ctx context.Context, path, child string, value interface{}, v interface{}) (string, bool, error) {
	nodes, err := s.client.NewRef(path).OrderByChild(child).EqualTo(value).GetOrdered(ctx)
	if err != nil {
		return "", false, fmt.Errorf("failed to query %s by %s: %w", path, child, err)
	}
	if len(nodes) == 0 {
		return "", false, nil
	}
	first := nodes[0]
	if err := first.Unmarshal(v); err != nil {
		return "", false, fmt.Errorf("failed to decode %s/%s: %w", path, first.Key(), err)
	}
	return first.Key(), true, nil
}

func (s *FirebaseStore) Transaction(ctx context.Context, path string, fn TransactionFunc) error {
	var fnErr error
	err := s.client.NewRef(path).Transaction(ctx, func(node db.TransactionNode) (interface{}, error) {
		var raw json.RawMessage
		if err := node.Unmarshal(&raw); err != nil {
			return nil, err
		}
		next, err := fn(raw)
		if err != nil {
			fnErr = err
			return nil, err
		}
		return next, nil
	})
	if fnErr != nil {
		return fnErr
	}
	if err != nil {
		if errors.Is(err, ErrAbortTransaction) {
			return ErrAbortTransaction
		}
		return fmt.Errorf("transaction on %s failed: %w", path, err)
	}
	return nil
}
