// Package fake implements an in-memory stand-in for store.Client's public surface, used by service-layer unit
// tests so they exercise real optimistic-concurrency semantics without a DynamoDB Local dependency. Pagination is
// not modelled.
package fake

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/goalguild/core-service/internal/store"
)

type row struct {
	attrs map[string]any
}

// Store is a single in-memory table keyed by (PK, SK). It has no secondary-index layer; only base-table access by
// PK and SK prefix is supported.
type Store struct {
	mu   sync.Mutex
	rows map[string]map[string]row
}

func New() *Store {
	return &Store{rows: make(map[string]map[string]row)}
}

func attrsOf(item any) map[string]any {
	// Tests construct fake rows via Put with a map[string]any; repository structs go through store.Client in
	// production. Service-level tests that want the fake should build plain maps mirroring the dynamodbav tags.
	if m, ok := item.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

func (s *Store) Put(ctx context.Context, pk, sk string, item any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rows[pk] == nil {
		s.rows[pk] = make(map[string]row)
	}
	s.rows[pk][sk] = row{attrs: attrsOf(item)}
	return nil
}

func (s *Store) PutIfNotExists(ctx context.Context, pk, sk string, item any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rows[pk] != nil {
		if _, exists := s.rows[pk][sk]; exists {
			return store.ErrVersionConflict
		}
	} else {
		s.rows[pk] = make(map[string]row)
	}
	s.rows[pk][sk] = row{attrs: attrsOf(item)}
	return nil
}

func (s *Store) Get(ctx context.Context, pk, sk string) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	part, ok := s.rows[pk]
	if !ok {
		return nil, store.ErrNotFound
	}
	r, ok := part[sk]
	if !ok {
		return nil, store.ErrNotFound
	}
	return r.attrs, nil
}

func (s *Store) Delete(ctx context.Context, pk, sk string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows[pk], sk)
	return nil
}

// UpdateWithVersion applies mutate to the stored attrs map if the current "version" attribute matches
// expectedVersion, then bumps it by one. mutate is expected to set/overwrite fields directly on the map.
func (s *Store) UpdateWithVersion(ctx context.Context, pk, sk string, expectedVersion int64, mutate func(map[string]any)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	part, ok := s.rows[pk]
	if !ok {
		return store.ErrNotFound
	}
	r, ok := part[sk]
	if !ok {
		return store.ErrNotFound
	}
	current, _ := r.attrs["version"].(int64)
	if current != expectedVersion {
		return store.ErrVersionConflict
	}
	mutate(r.attrs)
	r.attrs["version"] = expectedVersion + 1
	part[sk] = r
	return nil
}

// QueryByPartition returns every row under pk whose sk has the given prefix, sorted ascending by sk unless
// descending is set. Pagination is ignored; fakes serve whole partitions since test fixtures are small.
func (s *Store) QueryByPartition(ctx context.Context, pk, skPrefix string, descending bool) ([]map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	part := s.rows[pk]
	var out []map[string]any
	var sks []string
	for sk := range part {
		if strings.HasPrefix(sk, skPrefix) {
			sks = append(sks, sk)
		}
	}
	sort.Strings(sks)
	if descending {
		for i, j := 0, len(sks)-1; i < j; i, j = i+1, j-1 {
			sks[i], sks[j] = sks[j], sks[i]
		}
	}
	for _, sk := range sks {
		out = append(out, part[sk].attrs)
	}
	return out, nil
}

// TransactWrite applies a sequence of put/delete thunks in order. It is not atomic: the first op that fails stops
// the sequence and ops already applied stay applied. Conditions aren't separately modeled: callers pass
// already-checked operations (tests construct scenarios that don't need partial-failure fidelity beyond what
// UpdateWithVersion already covers).
func (s *Store) TransactWrite(ctx context.Context, ops []func(*Store) error) error {
	for _, op := range ops {
		if err := op(s); err != nil {
			return err
		}
	}
	return nil
}
