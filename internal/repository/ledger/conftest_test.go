package ledger

import (
	"context"
	"strconv"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	rpushFn   func(ctx context.Context, key string, values ...string) error
	lrangeFn  func(ctx context.Context, key string, start, stop int64) ([]string, error)
	llenFn    func(ctx context.Context, key string) (int64, error)
	hincrByFn func(ctx context.Context, key, field string, val int64) (int64, error)
	hgetAllFn func(ctx context.Context, key string) (map[string]string, error)
}

func (m *mockStore) RPush(ctx context.Context, key string, values ...string) error {
	if m.rpushFn != nil {
		return m.rpushFn(ctx, key, values...)
	}
	return nil
}

func (m *mockStore) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	if m.lrangeFn != nil {
		return m.lrangeFn(ctx, key, start, stop)
	}
	return nil, nil
}

func (m *mockStore) LLen(ctx context.Context, key string) (int64, error) {
	if m.llenFn != nil {
		return m.llenFn(ctx, key)
	}
	return 0, nil
}

func (m *mockStore) HIncrBy(ctx context.Context, key, field string, val int64) (int64, error) {
	if m.hincrByFn != nil {
		return m.hincrByFn(ctx, key, field, val)
	}
	return val, nil
}

func (m *mockStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	if m.hgetAllFn != nil {
		return m.hgetAllFn(ctx, key)
	}
	return map[string]string{}, nil
}

// memStore is an in-memory list+hash store for behavioral tests.
type memStore struct {
	lists  map[string][]string
	hashes map[string]map[string]string
}

func newMemStore() *memStore {
	return &memStore{
		lists:  map[string][]string{},
		hashes: map[string]map[string]string{},
	}
}

func (m *memStore) RPush(_ context.Context, key string, values ...string) error {
	m.lists[key] = append(m.lists[key], values...)
	return nil
}

func (m *memStore) LRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	list := m.lists[key]
	if stop == -1 || stop >= int64(len(list)) {
		stop = int64(len(list)) - 1
	}
	if start > stop {
		return nil, nil
	}
	return list[start : stop+1], nil
}

func (m *memStore) LLen(_ context.Context, key string) (int64, error) {
	return int64(len(m.lists[key])), nil
}

func (m *memStore) HIncrBy(_ context.Context, key, field string, val int64) (int64, error) {
	h, ok := m.hashes[key]
	if !ok {
		h = map[string]string{}
		m.hashes[key] = h
	}
	cur, _ := strconv.ParseInt(h[field], 10, 64)
	cur += val
	h[field] = strconv.FormatInt(cur, 10)
	return cur, nil
}

func (m *memStore) HGetAll(_ context.Context, key string) (map[string]string, error) {
	out := map[string]string{}
	for f, v := range m.hashes[key] {
		out[f] = v
	}
	return out, nil
}
