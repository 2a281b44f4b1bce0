package store

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps rows in process memory. Used for local development and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	tables map[string][]map[string]any
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: make(map[string][]map[string]any)}
}

func (m *MemoryStore) Select(ctx context.Context, table string, q Query, dest any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	rows := m.tables[table]
	matched := make([]map[string]any, 0)
	for i := range rows {
		row := rows[i]
		if q.Desc {
			// ties keep the most recently inserted row first
			row = rows[len(rows)-1-i]
		}
		if matches(row, q.Filters) {
			matched = append(matched, row)
		}
	}

	if q.OrderBy != "" {
		sort.SliceStable(matched, func(i, j int) bool {
			c := compareValues(matched[i][q.OrderBy], matched[j][q.OrderBy])
			if q.Desc {
				return c > 0
			}
			return c < 0
		})
	}
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}

	data, err := json.Marshal(matched)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

func (m *MemoryStore) Insert(ctx context.Context, table string, row any, dest any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	doc, err := toDocument(row)
	if err != nil {
		return err
	}

	m.mu.Lock()
	if pk, ok := PrimaryKeys[table]; ok {
		for _, existing := range m.tables[table] {
			if existing[pk] != nil && reflect.DeepEqual(existing[pk], doc[pk]) {
				m.mu.Unlock()
				return fmt.Errorf("%s %v: %w", table, doc[pk], ErrDuplicate)
			}
		}
	}
	data, err := json.Marshal(doc)
	m.tables[table] = append(m.tables[table], doc)
	m.mu.Unlock()

	if err != nil || dest == nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

func (m *MemoryStore) Update(ctx context.Context, table string, filters []Filter, patch map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	updated := 0
	for _, row := range m.tables[table] {
		if !matches(row, filters) {
			continue
		}
		for k, v := range patch {
			row[k] = normalize(v)
		}
		updated++
	}
	if updated == 0 {
		return fmt.Errorf("%s: %w", table, ErrNotFound)
	}
	return nil
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func matches(row map[string]any, filters []Filter) bool {
	for _, f := range filters {
		if !reflect.DeepEqual(row[f.Column], normalize(f.Value)) {
			return false
		}
	}
	return true
}

// compareValues orders timestamps chronologically, numbers numerically,
// and everything else by its string form. Nil sorts first.
func compareValues(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}
	if as, ok := a.(string); ok {
		if bs, ok := b.(string); ok {
			ta, errA := time.Parse(time.RFC3339Nano, as)
			tb, errB := time.Parse(time.RFC3339Nano, bs)
			if errA == nil && errB == nil {
				return ta.Compare(tb)
			}
			switch {
			case as < bs:
				return -1
			case as > bs:
				return 1
			}
			return 0
		}
	}
	if af, ok := a.(float64); ok {
		if bf, ok := b.(float64); ok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			}
			return 0
		}
	}
	as, bs := fmt.Sprint(a), fmt.Sprint(b)
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	}
	return 0
}
