package database

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// MemoryStore is an in-process Store backed by a JSON tree. It is used for local
// development when no Firebase project is configured.
type MemoryStore struct {
	mu   sync.RWMutex
	root map[string]interface{}
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{root: map[string]interface{}{}}
}

func (s *MemoryStore) Get(ctx context.Context, path string, v interface{}) (bool, error) {
	s.mu.RLock()
	node, ok := s.lookup(splitPath(path))
	var raw []byte
	var err error
	if ok {
		raw, err = json.Marshal(node)
	}
	s.mu.RUnlock()

	if !ok {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return true, nil
}

func (s *MemoryStore) Set(ctx context.Context, path string, v interface{}) error {
	value, err := normalize(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(splitPath(path), value)
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, path string, values map[string]interface{}) error {
	normalized := make(map[string]interface{}, len(values))
	for key, v := range values {
		value, err := normalize(v)
		if err != nil {
			return fmt.Errorf("failed to encode %s/%s: %w", path, key, err)
		}
		normalized[key] = value
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for key, value := range normalized {
		s.put(splitPath(joinPath(path, key)), value)
	}
	return nil
}

func (s *MemoryStore) Remove(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(splitPath(path), nil)
	return nil
}

func (s *MemoryStore) FindByChild(ctx context.Context, path, child string, value interface{}, v interface{}) (string, bool, error) {
	want, err := normalize(value)
	if err != nil {
		return "", false, err
	}

	s.mu.RLock()
	node, ok := s.lookup(splitPath(path))
	children, isMap := node.(map[string]interface{})
	if !ok || !isMap {
		s.mu.RUnlock()
		return "", false, nil
	}

	keys := make([]string, 0, len(children))
	for key := range children {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var matchKey string
	var raw []byte
	for _, key := range keys {
		fields, ok := children[key].(map[string]interface{})
		if !ok {
			continue
		}
		if reflect.DeepEqual(fields[child], want) {
			matchKey = key
			raw, err = json.Marshal(fields)
			break
		}
	}
	s.mu.RUnlock()

	if matchKey == "" {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return "", false, fmt.Errorf("failed to decode %s/%s: %w", path, matchKey, err)
	}
	return matchKey, true, nil
}

func (s *MemoryStore) Transaction(ctx context.Context, path string, fn TransactionFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	parts := splitPath(path)
	current := json.RawMessage("null")
	if node, ok := s.lookup(parts); ok {
		raw, err := json.Marshal(node)
		if err != nil {
			return err
		}
		current = raw
	}

	next, err := fn(current)
	if err != nil {
		return err
	}
	value, err := normalize(next)
	if err != nil {
		return err
	}
	s.put(parts, value)
	return nil
}

func (s *MemoryStore) lookup(parts []string) (interface{}, bool) {
	var node interface{} = s.root
	for _, part := range parts {
		m, ok := node.(map[string]interface{})
		if !ok {
			return nil, false
		}
		node, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return node, node != nil
}

// put writes value at parts, deleting the leaf when value is nil.
func (s *MemoryStore) put(parts []string, value interface{}) {
	if len(parts) == 0 {
		if m, ok := value.(map[string]interface{}); ok {
			s.root = m
		} else {
			s.root = map[string]interface{}{}
		}
		return
	}

	node := s.root
	for _, part := range parts[:len(parts)-1] {
		next, ok := node[part].(map[string]interface{})
		if !ok {
			if value == nil {
				return
			}
			next = map[string]interface{}{}
			node[part] = next
		}
		node = next
	}

	leaf := parts[len(parts)-1]
	if value == nil {
		delete(node, leaf)
		return
	}
	node[leaf] = value
}

// normalize converts v into the generic form produced by encoding/json so values
// compare and serialize the same way they would after a round trip to Firebase.
func normalize(v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
